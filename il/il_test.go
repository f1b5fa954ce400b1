package il_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bfil/il"
)

func loopBody() *il.MethodBody {
	body := il.NewMethodBody(il.TypeByteArray, il.TypeInt32)
	head := il.Create(il.Nop)
	loop := il.Create(il.Nop)
	body.Append(il.CreateBranch(il.Br, head))
	body.Append(loop)
	body.Emit(il.Ldloc1)
	body.Emit(il.LdcI4One)
	body.Emit(il.Add)
	body.Emit(il.Stloc1)
	body.Append(head)
	body.Emit(il.Ldloc0)
	body.Emit(il.Ldloc1)
	body.Emit(il.LdelemU1)
	body.Append(il.CreateBranch(il.Brtrue, loop))
	body.Emit(il.Ret)
	return body
}

var _ = Describe("ISA", func() {
	It("should look up opcodes by name and encoding", func() {
		op, ok := il.DefaultISA.Lookup("LDELEM.U1")
		Expect(ok).To(BeTrue())
		Expect(op).To(Equal(il.LdelemU1))

		op, ok = il.DefaultISA.Decode(0x2A)
		Expect(ok).To(BeTrue())
		Expect(op).To(Equal(il.Ret))
	})

	It("should reject unknown mnemonics", func() {
		_, err := il.ParseOpCode("jmp")
		Expect(err).To(HaveOccurred())
	})

	It("should panic on an operand of the wrong kind", func() {
		Expect(func() { il.CreateInt(il.Add, 1) }).To(Panic())
	})
})

var _ = Describe("Instruction", func() {
	It("should report implied constants and slots", func() {
		v, ok := il.Create(il.LdcI4One).Int()
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(int32(1)))

		slot, ok := il.Create(il.Stloc2).Slot()
		Expect(ok).To(BeTrue())
		Expect(slot).To(Equal(uint8(2)))
	})

	It("should derive call stack effects from the signature", func() {
		pop, push := il.CreateMethod(il.Call, il.MethodKeyChar).StackEffect()
		Expect(pop).To(Equal(1))
		Expect(push).To(Equal(1))

		pop, push = il.CreateMethod(il.Call, il.MethodConsoleWrite).StackEffect()
		Expect(pop).To(Equal(1))
		Expect(push).To(Equal(0))
	})

	It("should size instructions by operand", func() {
		Expect(il.CreateInt(il.LdcI4, 7).Size()).To(Equal(5))
		Expect(il.CreateVar(il.LdlocaS, 2).Size()).To(Equal(2))
		Expect(il.Create(il.Dup).Size()).To(Equal(1))
	})
})

var _ = Describe("MethodRef", func() {
	It("should parse its own formatting", func() {
		for _, m := range []il.MethodRef{
			il.MethodObjectCtor, il.MethodConsoleWrite,
			il.MethodConsoleReadKey, il.MethodKeyChar,
		} {
			parsed, err := il.ParseMethodRef(m.String())
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed.Equal(m)).To(BeTrue(), m.String())
		}
	})

	It("should reject malformed signatures", func() {
		_, err := il.ParseMethodRef("System.Void Write")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("MethodBody", func() {
	It("should compute byte offsets", func() {
		body := loopBody()
		offsets := body.Offsets()
		Expect(offsets[1]).To(Equal(5))
		Expect(body.CodeSize()).To(Equal(5 + 1 + 4 + 1 + 3 + 5 + 1))
	})

	It("should detect branches leaving the body", func() {
		body := il.NewMethodBody()
		body.Append(il.CreateBranch(il.Br, il.Create(il.Nop)))
		Expect(body.CheckTargets()).To(HaveOccurred())
		Expect(loopBody().CheckTargets()).To(Succeed())
	})

	It("should format labels by offset", func() {
		text := loopBody().Format()
		Expect(text).To(HavePrefix("IL_0000: br IL_000a\n"))
		Expect(text).To(ContainSubstring("IL_000e: brtrue IL_0005\n"))
	})

	It("should compare bodies structurally", func() {
		Expect(il.Equal(loopBody(), loopBody())).To(BeTrue())

		other := loopBody()
		other.Instructions[4] = il.Create(il.Sub)
		Expect(il.Equal(loopBody(), other)).To(BeFalse())
	})
})

var _ = Describe("Listing", func() {
	It("should load what it marshals", func() {
		data, err := il.MarshalListing("<Main>$", loopBody())
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("op: brtrue"))

		name, body, err := il.LoadListing(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("<Main>$"))
		Expect(il.Equal(body, loopBody())).To(BeTrue())
	})

	It("should report undefined branch targets", func() {
		_, _, err := il.LoadListing([]byte(`
method: m
instructions:
  - offset: IL_0000
    op: br
    operand: IL_0040
`))
		Expect(err).To(MatchError(ContainSubstring("undefined branch target")))
	})
})
