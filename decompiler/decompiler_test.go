package decompiler_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bfil/compiler"
	"github.com/sarchlab/bfil/config"
	"github.com/sarchlab/bfil/decompiler"
	"github.com/sarchlab/bfil/il"
)

var _ = Describe("Decompiler", func() {
	var (
		opts  config.CompileOptions
		dopts config.DecompileOptions
	)

	compile := func(source string, o config.CompileOptions) *il.MethodBody {
		body, err := compiler.Compile(source, o)
		Expect(err).NotTo(HaveOccurred())
		return body
	}

	BeforeEach(func() {
		opts = config.DefaultCompileOptions("Test", "1.0.0")
		dopts = config.DefaultDecompileOptions()
	})

	DescribeTable("round trip",
		func(source string) {
			d, err := decompiler.Decompile(compile(source, opts), dopts)

			Expect(err).NotTo(HaveOccurred())
			Expect(d.Program.String()).To(Equal(source))
			Expect(d.CellCount).To(Equal(config.DefaultCellCount))
		},
		Entry("empty", ""),
		Entry("moves", "><<>"),
		Entry("arithmetic", "+-+-"),
		Entry("io", ".,"),
		Entry("copy loop", "+[>+<-]"),
		Entry("nested loops", "++[>++[>+<-]<-]>>."),
	)

	It("should drop comments", func() {
		d, err := decompiler.Decompile(compile("add: + then print: .", opts), dopts)

		Expect(err).NotTo(HaveOccurred())
		Expect(d.Program.String()).To(Equal("+."))
	})

	It("should recover the cell count", func() {
		d, err := decompiler.Decompile(compile("+", opts.WithCellCount(64)), dopts)

		Expect(err).NotTo(HaveOccurred())
		Expect(d.CellCount).To(Equal(64))
	})

	It("should recover input interception", func() {
		d, err := decompiler.Decompile(compile(",", opts.WithInterceptInput(true)), dopts)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.InterceptInput).To(BeTrue())

		d, err = decompiler.Decompile(compile(",", opts.WithInterceptInput(false)), dopts)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.InterceptInput).To(BeFalse())
	})

	It("should report no interception without input", func() {
		d, err := decompiler.Decompile(compile("+.", opts), dopts)

		Expect(err).NotTo(HaveOccurred())
		Expect(d.InterceptInput).To(BeFalse())
	})

	It("should ignore instructions after ret", func() {
		body := compile("+", opts)
		body.Emit(il.Ldloc1)
		body.Emit(il.Dup)

		d, err := decompiler.Decompile(body, dopts)

		Expect(err).NotTo(HaveOccurred())
		Expect(d.Program.String()).To(Equal("+"))
	})

	It("should stop at the end of a body without ret", func() {
		body := compile("><", opts)
		body.Instructions = body.Instructions[:body.Len()-1]

		d, err := decompiler.Decompile(body, dopts)

		Expect(err).NotTo(HaveOccurred())
		Expect(d.Program.String()).To(Equal("><"))
	})

	It("should reject a foreign prologue", func() {
		body := il.NewMethodBody(il.TypeInt32)
		body.Emit(il.LdcI4Zero)
		body.Emit(il.Stloc0)
		body.Emit(il.Ret)

		_, err := decompiler.Decompile(body, dopts)

		Expect(err).To(MatchError(decompiler.ErrUnexpectedMethodPrologue))
	})

	It("should reject a tape of the wrong element type", func() {
		body := compile("", opts)
		body.Instructions[1] = il.CreateType(il.Newarr, il.TypeInt32)

		_, err := decompiler.Decompile(body, dopts)

		Expect(errors.Is(err, decompiler.ErrUnexpectedMethodPrologue)).To(BeTrue())
	})

	It("should locate an unrecognized instruction", func() {
		body := compile("+", opts)
		stray := il.Create(il.Dup)
		ret := body.Instructions[body.Len()-1]
		body.Instructions = append(body.Instructions[:body.Len()-1], stray, ret)

		_, err := decompiler.Decompile(body, dopts)

		Expect(errors.Is(err, decompiler.ErrUnexpectedOpcode)).To(BeTrue())

		var opErr *decompiler.UnexpectedOpcodeError
		Expect(errors.As(err, &opErr)).To(BeTrue())
		Expect(opErr.Position).To(Equal(14))
		Expect(opErr.OpCode).To(Equal(il.Dup))
	})

	It("should reject a partial template", func() {
		body := compile(">", opts)
		body.Instructions = append(body.Instructions[:7], body.Instructions[9:]...)

		_, err := decompiler.Decompile(body, dopts)

		var opErr *decompiler.UnexpectedOpcodeError
		Expect(errors.As(err, &opErr)).To(BeTrue())
		Expect(opErr.Position).To(Equal(5))
	})
})
