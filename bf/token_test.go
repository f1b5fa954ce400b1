package bf_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bfil/bf"
)

var _ = Describe("Parse", func() {
	It("should keep only command characters", func() {
		p := bf.Parse("a+b\n[>.<]?")

		Expect(p.Tokens).To(Equal([]bf.Token{
			bf.Increment, bf.LoopStart, bf.MoveRight,
			bf.Output, bf.MoveLeft, bf.LoopEnd,
		}))
		Expect(p.Offsets).To(Equal([]int{1, 4, 5, 6, 7, 8}))
	})

	It("should parse an empty source", func() {
		p := bf.Parse("")
		Expect(p.Len()).To(Equal(0))
		Expect(p.String()).To(Equal(""))
	})

	It("should format back to source text", func() {
		src := "+[>+<-],."
		Expect(bf.Parse(src).String()).To(Equal(src))
	})

	It("should compare programs by tokens only", func() {
		a := bf.Parse(" + - ")
		b := bf.FromTokens(bf.Increment, bf.Decrement)
		Expect(a.Equal(b)).To(BeTrue())
		Expect(a.Equal(bf.FromTokens(bf.Increment))).To(BeFalse())
	})

	It("should fall back to the index without offsets", func() {
		p := bf.FromTokens(bf.Output, bf.Output)
		Expect(p.Offset(1)).To(Equal(1))
	})
})

var _ = Describe("Token", func() {
	It("should map every command character both ways", func() {
		for _, c := range []byte("><+-.,[]") {
			tok, ok := bf.Lookup(c)
			Expect(ok).To(BeTrue())
			Expect(tok.Char()).To(Equal(c))
		}
	})

	It("should reject comment characters", func() {
		_, ok := bf.Lookup('x')
		Expect(ok).To(BeFalse())
	})

	It("should name tokens", func() {
		Expect(bf.LoopEnd.Name()).To(Equal("LoopEnd"))
		Expect(bf.Illegal.String()).To(Equal("token(0)"))
	})
})
