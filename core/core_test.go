package core_test

import (
	"bytes"
	"errors"
	"io"
	"strings"

	gomock "github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/bfil/compiler"
	"github.com/sarchlab/bfil/config"
	"github.com/sarchlab/bfil/core"
	"github.com/sarchlab/bfil/il"
)

var _ = Describe("Core", func() {
	var (
		mockCtrl *gomock.Controller
		console  *MockConsole
		engine   sim.Engine
		opts     config.CompileOptions
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		console = NewMockConsole(mockCtrl)
		engine = sim.NewSerialEngine()
		opts = config.DefaultCompileOptions("Test", "1.0.0").WithCellCount(16)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	build := func(maxSteps int) *core.Core {
		return core.NewBuilder().
			WithEngine(engine).
			WithFreq(1 * sim.GHz).
			WithConsole(console).
			WithMaxSteps(maxSteps).
			Build("Core")
	}

	run := func(c *core.Core, body *il.MethodBody) {
		c.MapProgram(body)
		Expect(engine.Run()).To(Succeed())
		Expect(c.Halted()).To(BeTrue())
	}

	runSource := func(source string, o config.CompileOptions) *core.Core {
		body, err := compiler.Compile(source, o)
		Expect(err).NotTo(HaveOccurred())

		c := build(0)
		run(c, body)
		return c
	}

	It("should allocate the tape and stop at ret", func() {
		c := runSource("", opts)

		Expect(c.Err()).NotTo(HaveOccurred())
		Expect(c.Cells()).To(HaveLen(16))
		Expect(c.Pointer()).To(Equal(0))
		Expect(c.Steps()).To(Equal(6))
	})

	It("should wrap cells below zero", func() {
		c := runSource("-", opts)

		Expect(c.Err()).NotTo(HaveOccurred())
		Expect(c.Cells()[0]).To(Equal(byte(255)))
	})

	It("should wrap cells above 255", func() {
		c := runSource(strings.Repeat("+", 256)+">+++", opts)

		Expect(c.Err()).NotTo(HaveOccurred())
		Expect(c.Cells()[0]).To(Equal(byte(0)))
		Expect(c.Cells()[1]).To(Equal(byte(3)))
		Expect(c.Pointer()).To(Equal(1))
	})

	It("should run loops until the cell is zero", func() {
		c := runSource("+[>+<-]", opts.WithCellCount(2))

		Expect(c.Err()).NotTo(HaveOccurred())
		Expect(c.Cells()).To(Equal([]byte{0, 1}))
		Expect(c.Pointer()).To(Equal(0))
	})

	It("should run a second program after the first halted", func() {
		first, err := compiler.Compile("+", opts)
		Expect(err).NotTo(HaveOccurred())
		second, err := compiler.Compile("++>+", opts)
		Expect(err).NotTo(HaveOccurred())

		c := build(0)
		run(c, first)
		Expect(c.Err()).NotTo(HaveOccurred())
		Expect(c.Cells()[0]).To(Equal(byte(1)))

		run(c, second)
		Expect(c.Err()).NotTo(HaveOccurred())
		Expect(c.Steps()).To(BeNumerically(">", 0))
		Expect(c.Cells()[0]).To(Equal(byte(2)))
		Expect(c.Cells()[1]).To(Equal(byte(1)))
		Expect(c.Pointer()).To(Equal(1))
	})

	It("should skip loops over a zero cell", func() {
		c := runSource("[+]>+", opts)

		Expect(c.Err()).NotTo(HaveOccurred())
		Expect(c.Cells()[0]).To(Equal(byte(0)))
		Expect(c.Cells()[1]).To(Equal(byte(1)))
	})

	It("should write the current cell", func() {
		console.EXPECT().Write(uint16(3)).Return(nil)

		c := runSource("+++.", opts)

		Expect(c.Err()).NotTo(HaveOccurred())
	})

	It("should read intercepted keys into the current cell", func() {
		console.EXPECT().ReadKey(true).Return(uint16('A'), nil)

		c := runSource(">,", opts)

		Expect(c.Err()).NotTo(HaveOccurred())
		Expect(c.Cells()[1]).To(Equal(byte('A')))
	})

	It("should ask for echoed keys when interception is off", func() {
		console.EXPECT().ReadKey(false).Return(uint16('z'), nil)

		c := runSource(",", opts.WithInterceptInput(false))

		Expect(c.Err()).NotTo(HaveOccurred())
		Expect(c.Cells()[0]).To(Equal(byte('z')))
	})

	It("should truncate wide characters", func() {
		console.EXPECT().ReadKey(true).Return(uint16(0x263A), nil)

		c := runSource(",", opts)

		Expect(c.Cells()[0]).To(Equal(byte(0x3A)))
	})

	It("should stop on console errors", func() {
		console.EXPECT().ReadKey(true).Return(uint16(0), io.EOF)

		c := runSource(",+", opts)

		Expect(errors.Is(c.Err(), io.EOF)).To(BeTrue())
		Expect(c.Cells()[0]).To(Equal(byte(0)))
	})

	It("should report moves off the tape", func() {
		c := runSource("<+", opts)

		Expect(errors.Is(c.Err(), core.ErrIndexOutOfRange)).To(BeTrue())
	})

	It("should stop after the step limit", func() {
		body, err := compiler.Compile("+[]", opts)
		Expect(err).NotTo(HaveOccurred())

		c := build(100)
		run(c, body)

		Expect(errors.Is(c.Err(), core.ErrStepLimit)).To(BeTrue())
		Expect(c.Steps()).To(Equal(100))
	})

	It("should report stack underflow", func() {
		body := il.NewMethodBody()
		body.Emit(il.LdcI4One)
		body.Emit(il.Add)
		body.Emit(il.Ret)

		c := build(0)
		run(c, body)

		Expect(errors.Is(c.Err(), core.ErrStackUnderflow)).To(BeTrue())
	})

	It("should report unknown methods", func() {
		body := il.NewMethodBody()
		body.Append(il.CreateMethod(il.Call, il.MethodRef{
			Return:        il.TypeVoid,
			DeclaringType: il.TypeConsole,
			Name:          "Beep",
		}))
		body.Emit(il.Ret)

		c := build(0)
		run(c, body)

		Expect(errors.Is(c.Err(), core.ErrUnknownMethod)).To(BeTrue())
	})

	It("should report running past the end of the method", func() {
		body := il.NewMethodBody()
		body.Emit(il.Nop)

		c := build(0)
		run(c, body)

		Expect(errors.Is(c.Err(), core.ErrInvalidProgram)).To(BeTrue())
	})

	It("should print the tape around the pointer", func() {
		c := runSource("++>+", opts)

		var buf bytes.Buffer
		core.PrintState(&buf, c)

		Expect(buf.String()).To(ContainSubstring("Tape (16 cells)"))
		Expect(buf.String()).To(ContainSubstring("*1"))
	})
})
