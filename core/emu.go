package core

import (
	"errors"
	"fmt"

	"github.com/sarchlab/bfil/il"
)

var (
	// ErrIndexOutOfRange is reported for array accesses outside the array.
	ErrIndexOutOfRange = errors.New("index was outside the bounds of the array")
	// ErrStackUnderflow is reported when an instruction pops an empty stack.
	ErrStackUnderflow = errors.New("evaluation stack underflow")
	// ErrStepLimit is reported when the step budget runs out.
	ErrStepLimit = errors.New("step limit exceeded")
	// ErrUnknownMethod is reported for calls to methods the core does not
	// provide.
	ErrUnknownMethod = errors.New("unknown method")
	// ErrInvalidProgram is reported for ill-typed instruction sequences.
	ErrInvalidProgram = errors.New("invalid program")
	// ErrNoConsole is reported for console calls on a core without console.
	ErrNoConsole = errors.New("no console attached")
)

type valueKind uint8

const (
	kindInt32 valueKind = iota
	kindArray
	kindElemPtr
	kindLocalPtr
	kindKeyInfo
	kindObject
)

func (k valueKind) String() string {
	switch k {
	case kindInt32:
		return "int32"
	case kindArray:
		return "uint8[]"
	case kindElemPtr:
		return "uint8&"
	case kindLocalPtr:
		return "local&"
	case kindKeyInfo:
		return "ConsoleKeyInfo"
	case kindObject:
		return "object"
	}
	return "unknown"
}

// value is an evaluation stack slot or local. i holds the int32 value, the
// element index of an element pointer, the slot of a local pointer or the
// key char of a key info.
type value struct {
	kind valueKind
	i    int32
	arr  []byte
}

func int32Value(v int32) value {
	return value{kind: kindInt32, i: v}
}

func (v value) String() string {
	switch v.kind {
	case kindInt32:
		return fmt.Sprintf("%d", v.i)
	case kindArray:
		return fmt.Sprintf("uint8[%d]", len(v.arr))
	case kindElemPtr:
		return fmt.Sprintf("&[%d]", v.i)
	case kindLocalPtr:
		return fmt.Sprintf("&V_%d", v.i)
	case kindKeyInfo:
		return fmt.Sprintf("key(%d)", v.i)
	}
	return v.kind.String()
}

type coreState struct {
	Body   *il.MethodBody
	Index  map[*il.Instruction]int
	PC     int
	NextPC int

	Stack  []value
	Locals []value
	Args   []value

	Steps    int
	MaxSteps int
	Halted   bool
	Err      error

	Console Console
}

func (s *coreState) push(v value) {
	s.Stack = append(s.Stack, v)
}

func (s *coreState) pop() (value, error) {
	n := len(s.Stack)
	if n == 0 {
		return value{}, ErrStackUnderflow
	}
	v := s.Stack[n-1]
	s.Stack = s.Stack[:n-1]
	return v, nil
}

func (s *coreState) popKind(kind valueKind) (value, error) {
	v, err := s.pop()
	if err != nil {
		return v, err
	}
	if v.kind != kind {
		return v, fmt.Errorf("%w: expected %s on the stack, got %s", ErrInvalidProgram, kind, v.kind)
	}
	return v, nil
}

func (s *coreState) popInt32() (int32, error) {
	v, err := s.popKind(kindInt32)
	return v.i, err
}

// popElement pops an array and an index and checks the bounds.
func (s *coreState) popElement() ([]byte, int, error) {
	idx, err := s.popInt32()
	if err != nil {
		return nil, 0, err
	}
	arr, err := s.popKind(kindArray)
	if err != nil {
		return nil, 0, err
	}
	if idx < 0 || int(idx) >= len(arr.arr) {
		return nil, 0, fmt.Errorf("%w: index %d, length %d", ErrIndexOutOfRange, idx, len(arr.arr))
	}
	return arr.arr, int(idx), nil
}

func (s *coreState) local(slot uint8) (*value, error) {
	if int(slot) >= len(s.Locals) {
		return nil, fmt.Errorf("%w: local %d is not declared", ErrInvalidProgram, slot)
	}
	return &s.Locals[slot], nil
}

type builtin func(state *coreState) error

type instEmulator struct {
	instFuncs map[il.OpCode]func(inst *il.Instruction, state *coreState) error
	builtins  map[string]builtin
}

func newInstEmulator() instEmulator {
	i := instEmulator{}

	// builtins first: the method values below copy i.
	i.builtins = map[string]builtin{
		il.MethodObjectCtor.String():     i.callObjectCtor,
		il.MethodConsoleWrite.String():   i.callConsoleWrite,
		il.MethodConsoleReadKey.String(): i.callConsoleReadKey,
		il.MethodKeyChar.String():        i.callKeyChar,
	}

	i.instFuncs = map[il.OpCode]func(*il.Instruction, *coreState) error{
		il.Nop:       func(_ *il.Instruction, _ *coreState) error { return nil },
		il.Ldarg0:    i.runLdarg,
		il.Ldloc0:    i.runLdloc,
		il.Ldloc1:    i.runLdloc,
		il.Ldloc2:    i.runLdloc,
		il.Stloc0:    i.runStloc,
		il.Stloc1:    i.runStloc,
		il.Stloc2:    i.runStloc,
		il.LdlocaS:   i.runLdloca,
		il.LdcI4Zero: i.runLdc,
		il.LdcI4One:  i.runLdc,
		il.LdcI4:     i.runLdc,
		il.Dup:       i.runDup,
		il.Call:      i.runCall,
		il.Ret:       i.runRet,
		il.Br:        i.runBr,
		il.Brtrue:    i.runBrtrue,
		il.LdindU1:   i.runLdindU1,
		il.StindI1:   i.runStindI1,
		il.Add:       i.runArith,
		il.Sub:       i.runArith,
		il.ConvU1:    i.runConv,
		il.ConvU2:    i.runConv,
		il.Newarr:    i.runNewarr,
		il.Ldelema:   i.runLdelema,
		il.LdelemU1:  i.runLdelemU1,
		il.StelemI1:  i.runStelemI1,
	}

	return i
}

// RunInst executes one instruction. The program counter is advanced unless
// the instruction branches.
func (i instEmulator) RunInst(inst *il.Instruction, state *coreState) error {
	instFunc, ok := i.instFuncs[inst.OpCode]
	if !ok {
		return fmt.Errorf("%w: unsupported opcode %s", ErrInvalidProgram, inst.OpCode)
	}

	state.NextPC = state.PC + 1
	if err := instFunc(inst, state); err != nil {
		return err
	}
	state.PC = state.NextPC
	return nil
}

func (i instEmulator) runLdarg(_ *il.Instruction, state *coreState) error {
	if len(state.Args) == 0 {
		return fmt.Errorf("%w: method has no argument 0", ErrInvalidProgram)
	}
	state.push(state.Args[0])
	return nil
}

func (i instEmulator) runLdloc(inst *il.Instruction, state *coreState) error {
	slot, _ := inst.Slot()
	v, err := state.local(slot)
	if err != nil {
		return err
	}
	state.push(*v)
	return nil
}

func (i instEmulator) runStloc(inst *il.Instruction, state *coreState) error {
	slot, _ := inst.Slot()
	dst, err := state.local(slot)
	if err != nil {
		return err
	}
	v, err := state.pop()
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func (i instEmulator) runLdloca(inst *il.Instruction, state *coreState) error {
	slot, _ := inst.Slot()
	if _, err := state.local(slot); err != nil {
		return err
	}
	state.push(value{kind: kindLocalPtr, i: int32(slot)})
	return nil
}

func (i instEmulator) runLdc(inst *il.Instruction, state *coreState) error {
	v, _ := inst.Int()
	state.push(int32Value(v))
	return nil
}

func (i instEmulator) runDup(_ *il.Instruction, state *coreState) error {
	v, err := state.pop()
	if err != nil {
		return err
	}
	state.push(v)
	state.push(v)
	return nil
}

func (i instEmulator) runCall(inst *il.Instruction, state *coreState) error {
	m, _ := inst.Method()
	fn, ok := i.builtins[m.String()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMethod, m)
	}
	return fn(state)
}

func (i instEmulator) runRet(_ *il.Instruction, state *coreState) error {
	state.Halted = true
	return nil
}

func (i instEmulator) jump(inst *il.Instruction, state *coreState) error {
	target, ok := state.Index[inst.Target()]
	if !ok {
		return fmt.Errorf("%w: branch target outside the method body", ErrInvalidProgram)
	}
	state.NextPC = target
	return nil
}

func (i instEmulator) runBr(inst *il.Instruction, state *coreState) error {
	return i.jump(inst, state)
}

func (i instEmulator) runBrtrue(inst *il.Instruction, state *coreState) error {
	v, err := state.pop()
	if err != nil {
		return err
	}

	// Object references are never null here.
	if v.kind == kindInt32 && v.i == 0 {
		return nil
	}
	return i.jump(inst, state)
}

func (i instEmulator) runLdindU1(_ *il.Instruction, state *coreState) error {
	ptr, err := state.popKind(kindElemPtr)
	if err != nil {
		return err
	}
	state.push(int32Value(int32(ptr.arr[ptr.i])))
	return nil
}

func (i instEmulator) runStindI1(_ *il.Instruction, state *coreState) error {
	v, err := state.popInt32()
	if err != nil {
		return err
	}
	ptr, err := state.popKind(kindElemPtr)
	if err != nil {
		return err
	}
	ptr.arr[ptr.i] = byte(v)
	return nil
}

func (i instEmulator) runArith(inst *il.Instruction, state *coreState) error {
	b, err := state.popInt32()
	if err != nil {
		return err
	}
	a, err := state.popInt32()
	if err != nil {
		return err
	}

	switch inst.OpCode {
	case il.Add:
		state.push(int32Value(a + b))
	case il.Sub:
		state.push(int32Value(a - b))
	}
	return nil
}

func (i instEmulator) runConv(inst *il.Instruction, state *coreState) error {
	v, err := state.popInt32()
	if err != nil {
		return err
	}

	switch inst.OpCode {
	case il.ConvU1:
		state.push(int32Value(int32(uint8(v))))
	case il.ConvU2:
		state.push(int32Value(int32(uint16(v))))
	}
	return nil
}

func (i instEmulator) runNewarr(inst *il.Instruction, state *coreState) error {
	elem, _ := inst.Type()
	if elem != il.TypeByte {
		return fmt.Errorf("%w: arrays of %s are not supported", ErrInvalidProgram, elem)
	}

	n, err := state.popInt32()
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("%w: negative array length %d", ErrInvalidProgram, n)
	}

	state.push(value{kind: kindArray, arr: make([]byte, n)})
	return nil
}

func (i instEmulator) runLdelema(_ *il.Instruction, state *coreState) error {
	arr, idx, err := state.popElement()
	if err != nil {
		return err
	}
	state.push(value{kind: kindElemPtr, i: int32(idx), arr: arr})
	return nil
}

func (i instEmulator) runLdelemU1(_ *il.Instruction, state *coreState) error {
	arr, idx, err := state.popElement()
	if err != nil {
		return err
	}
	state.push(int32Value(int32(arr[idx])))
	return nil
}

func (i instEmulator) runStelemI1(_ *il.Instruction, state *coreState) error {
	v, err := state.popInt32()
	if err != nil {
		return err
	}
	arr, idx, err := state.popElement()
	if err != nil {
		return err
	}
	arr[idx] = byte(v)
	return nil
}

func (i instEmulator) callObjectCtor(state *coreState) error {
	_, err := state.popKind(kindObject)
	return err
}

func (i instEmulator) callConsoleWrite(state *coreState) error {
	ch, err := state.popInt32()
	if err != nil {
		return err
	}
	if state.Console == nil {
		return ErrNoConsole
	}
	return state.Console.Write(uint16(ch))
}

func (i instEmulator) callConsoleReadKey(state *coreState) error {
	intercept, err := state.popInt32()
	if err != nil {
		return err
	}
	if state.Console == nil {
		return ErrNoConsole
	}

	ch, err := state.Console.ReadKey(intercept != 0)
	if err != nil {
		return err
	}
	state.push(value{kind: kindKeyInfo, i: int32(ch)})
	return nil
}

func (i instEmulator) callKeyChar(state *coreState) error {
	this, err := state.pop()
	if err != nil {
		return err
	}

	key := this
	if this.kind == kindLocalPtr {
		local, err := state.local(uint8(this.i))
		if err != nil {
			return err
		}
		key = *local
	}
	if key.kind != kindKeyInfo {
		return fmt.Errorf("%w: get_KeyChar on %s", ErrInvalidProgram, key.kind)
	}

	state.push(int32Value(key.i))
	return nil
}
