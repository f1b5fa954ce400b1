package api

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/bfil/compiler"
	"github.com/sarchlab/bfil/config"
	"github.com/sarchlab/bfil/core"
	"github.com/sarchlab/bfil/il"
)

const helloWorld = `++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++.`

var _ = Describe("Driver", func() {
	var (
		driver *driverImpl
		opts   config.CompileOptions
	)

	BeforeEach(func() {
		driver = DriverBuilder{}.
			WithEngine(sim.NewSerialEngine()).
			WithFreq(1 * sim.GHz).
			WithMaxSteps(1_000_000).
			Build("Driver").(*driverImpl)
		opts = config.DefaultCompileOptions("Test", "1.0.0")
	})

	compile := func(source string, o config.CompileOptions) *il.MethodBody {
		body, err := compiler.Compile(source, o)
		Expect(err).NotTo(HaveOccurred())
		return body
	}

	It("should handle FeedIn API", func() {
		driver.FeedIn([]byte("ab"))
		driver.FeedIn([]byte("c"))

		Expect(driver.input).To(Equal([]byte("abc")))
	})

	It("should consume one fed-in byte per key read", func() {
		driver.FeedIn([]byte("xy"))

		ch, err := driver.ReadKey(true)
		Expect(err).NotTo(HaveOccurred())
		Expect(ch).To(Equal(uint16('x')))
		Expect(driver.input).To(Equal([]byte("y")))
		Expect(driver.Collect()).To(BeEmpty())
	})

	It("should echo keys that are not intercepted", func() {
		driver.FeedIn([]byte("q"))

		_, err := driver.ReadKey(false)
		Expect(err).NotTo(HaveOccurred())
		Expect(driver.Collect()).To(Equal([]byte("q")))
	})

	It("should report exhausted input", func() {
		_, err := driver.ReadKey(true)

		Expect(err).To(MatchError(ErrInputExhausted))
	})

	It("should refuse to run without a program", func() {
		Expect(driver.Run()).To(MatchError(ErrNoProgram))
	})

	It("should run hello world", func() {
		driver.MapProgram(compile(helloWorld, opts))

		Expect(driver.Run()).To(Succeed())
		Expect(string(driver.Collect())).To(Equal("Hello World!\n"))
	})

	It("should echo input back", func() {
		driver.FeedIn([]byte("hi"))
		driver.MapProgram(compile(",.,.", opts))

		Expect(driver.Run()).To(Succeed())
		Expect(string(driver.Collect())).To(Equal("hi"))
	})

	It("should collect echoed keys when interception is off", func() {
		driver.FeedIn([]byte("k"))
		driver.MapProgram(compile(",+.", opts.WithInterceptInput(false)))

		Expect(driver.Run()).To(Succeed())
		Expect(string(driver.Collect())).To(Equal("kl"))
	})

	It("should surface core errors", func() {
		driver.MapProgram(compile(",", opts))

		err := driver.Run()

		Expect(errors.Is(err, ErrInputExhausted)).To(BeTrue())
		Expect(driver.Core().Halted()).To(BeTrue())
	})

	It("should stop runaway programs", func() {
		driver.MapProgram(compile("+[]", opts))

		Expect(errors.Is(driver.Run(), core.ErrStepLimit)).To(BeTrue())
	})

	It("should run programs again after remapping", func() {
		driver.MapProgram(compile("++++++++[>++++++++<-]>+.", opts))
		Expect(driver.Run()).To(Succeed())

		driver.MapProgram(compile("++++++++[>++++++++<-]>++.", opts))
		Expect(driver.Run()).To(Succeed())

		Expect(string(driver.Collect())).To(Equal("AB"))
	})
})
