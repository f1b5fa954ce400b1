package compiler_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bfil/compiler"
	"github.com/sarchlab/bfil/config"
	"github.com/sarchlab/bfil/il"
)

func opcodes(body *il.MethodBody) []il.OpCode {
	ops := make([]il.OpCode, 0, body.Len())
	for _, inst := range body.Instructions {
		ops = append(ops, inst.OpCode)
	}
	return ops
}

var prologue = []il.OpCode{il.LdcI4, il.Newarr, il.Stloc0, il.LdcI4Zero, il.Stloc1}

var _ = Describe("Compiler", func() {
	var opts config.CompileOptions

	BeforeEach(func() {
		opts = config.DefaultCompileOptions("Test", "1.0.0")
	})

	It("should compile an empty program to the prologue and ret", func() {
		body, err := compiler.Compile("", opts)

		Expect(err).NotTo(HaveOccurred())
		Expect(opcodes(body)).To(Equal(append(prologue, il.Ret)))
		Expect(body.Locals).To(Equal(compiler.Locals))

		cells, ok := body.Instructions[0].Int()
		Expect(ok).To(BeTrue())
		Expect(cells).To(Equal(int32(config.DefaultCellCount)))

		elem, _ := body.Instructions[1].Type()
		Expect(elem).To(Equal(il.TypeByte))
	})

	It("should allocate the configured number of cells", func() {
		body, err := compiler.Compile("", opts.WithCellCount(2))

		Expect(err).NotTo(HaveOccurred())
		cells, _ := body.Instructions[0].Int()
		Expect(cells).To(Equal(int32(2)))
	})

	DescribeTable("token templates",
		func(source string, expected []il.OpCode) {
			body, err := compiler.Compile(source, opts)

			Expect(err).NotTo(HaveOccurred())
			ops := opcodes(body)
			Expect(ops[:len(prologue)]).To(Equal(prologue))
			Expect(ops[len(prologue) : len(ops)-1]).To(Equal(expected))
			Expect(ops[len(ops)-1]).To(Equal(il.Ret))
		},
		Entry("move right", ">",
			[]il.OpCode{il.Ldloc1, il.LdcI4One, il.Add, il.Stloc1}),
		Entry("move left", "<",
			[]il.OpCode{il.Ldloc1, il.LdcI4One, il.Sub, il.Stloc1}),
		Entry("increment", "+",
			[]il.OpCode{il.Ldloc0, il.Ldloc1, il.Ldelema, il.Dup, il.LdindU1,
				il.LdcI4One, il.Add, il.ConvU1, il.StindI1}),
		Entry("decrement", "-",
			[]il.OpCode{il.Ldloc0, il.Ldloc1, il.Ldelema, il.Dup, il.LdindU1,
				il.LdcI4One, il.Sub, il.ConvU1, il.StindI1}),
		Entry("output", ".",
			[]il.OpCode{il.Ldloc0, il.Ldloc1, il.LdelemU1, il.Call}),
		Entry("input", ",",
			[]il.OpCode{il.Ldloc0, il.Ldloc1, il.LdcI4One, il.Call, il.Stloc2,
				il.LdlocaS, il.Call, il.ConvU1, il.StelemI1}),
		Entry("empty loop", "[]",
			[]il.OpCode{il.Br, il.Nop, il.Nop, il.Ldloc0, il.Ldloc1, il.LdelemU1, il.Brtrue}),
	)

	It("should call the console methods", func() {
		body, err := compiler.Compile(".,", opts)
		Expect(err).NotTo(HaveOccurred())

		var calls []il.MethodRef
		for _, inst := range body.Instructions {
			if m, ok := inst.Method(); ok {
				calls = append(calls, m)
			}
		}
		Expect(calls).To(Equal([]il.MethodRef{
			il.MethodConsoleWrite,
			il.MethodConsoleReadKey,
			il.MethodKeyChar,
		}))
	})

	It("should echo input when interception is off", func() {
		body, err := compiler.Compile(",", opts.WithInterceptInput(false))
		Expect(err).NotTo(HaveOccurred())

		Expect(body.Instructions[len(prologue)+2].OpCode).To(Equal(il.LdcI4Zero))
	})

	It("should jump to the loop head and branch back to the body", func() {
		body, err := compiler.Compile("[>]", opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(body.CheckTargets()).To(Succeed())

		idx := body.Index()
		br := body.Instructions[len(prologue)]
		Expect(br.OpCode).To(Equal(il.Br))

		head := br.Target()
		Expect(idx[head]).To(Equal(len(prologue) + 6))

		brtrue := body.Instructions[idx[head]+4]
		Expect(brtrue.OpCode).To(Equal(il.Brtrue))
		Expect(idx[brtrue.Target()]).To(Equal(len(prologue) + 1))
	})

	It("should pair nested loops innermost first", func() {
		body, err := compiler.Compile("[[]]", opts)
		Expect(err).NotTo(HaveOccurred())

		idx := body.Index()
		outer := body.Instructions[len(prologue)]
		inner := body.Instructions[len(prologue)+2]
		Expect(idx[inner.Target()]).To(BeNumerically("<", idx[outer.Target()]))
	})

	It("should ignore comment characters", func() {
		plain, err := compiler.Compile("+[-]>.", opts)
		Expect(err).NotTo(HaveOccurred())

		commented, err := compiler.Compile("a+ [ comment -]\n>x.", opts)
		Expect(err).NotTo(HaveOccurred())

		Expect(il.Equal(plain, commented)).To(BeTrue())
	})

	Context("when brackets are unbalanced", func() {
		It("should report an unmatched loop end", func() {
			_, err := compiler.Compile("+]", opts)

			Expect(errors.Is(err, compiler.ErrUnmatchedLoopEnd)).To(BeTrue())

			var syntaxErr *compiler.SyntaxError
			Expect(errors.As(err, &syntaxErr)).To(BeTrue())
			Expect(syntaxErr.Offset).To(Equal(1))
		})

		It("should report an unmatched loop start", func() {
			_, err := compiler.Compile("[[]", opts)

			Expect(errors.Is(err, compiler.ErrUnmatchedLoopStart)).To(BeTrue())

			var syntaxErr *compiler.SyntaxError
			Expect(errors.As(err, &syntaxErr)).To(BeTrue())
			Expect(syntaxErr.Offset).To(Equal(0))
		})
	})

	It("should reject invalid options", func() {
		_, err := compiler.Compile("+", opts.WithCellCount(0))

		Expect(err).To(MatchError(config.ErrInvalidOptions))
	})
})
