package decompiler

import (
	"github.com/sarchlab/bfil/bf"
	"github.com/sarchlab/bfil/il"
)

// template is the instruction window one token compiles to.
type template struct {
	token     bf.Token
	window    []il.OpCode
	intercept *bool
}

var (
	intercepted = true
	echoed      = false
)

// templates in match priority order.
var templates = []template{
	// pointer moves
	{token: bf.MoveRight, window: []il.OpCode{il.Ldloc1, il.LdcI4One, il.Add, il.Stloc1}},
	{token: bf.MoveLeft, window: []il.OpCode{il.Ldloc1, il.LdcI4One, il.Sub, il.Stloc1}},

	// cell updates
	{token: bf.Increment, window: cellUpdate(il.Add)},
	{token: bf.Decrement, window: cellUpdate(il.Sub)},
	{token: bf.Output, window: []il.OpCode{il.Ldloc0, il.Ldloc1, il.LdelemU1, il.Call}},
	{token: bf.Input, window: readKey(il.LdcI4One), intercept: &intercepted},
	{token: bf.Input, window: readKey(il.LdcI4Zero), intercept: &echoed},

	// loops
	{token: bf.LoopStart, window: []il.OpCode{il.Br, il.Nop}},
	{token: bf.LoopEnd, window: []il.OpCode{il.Nop, il.Ldloc0, il.Ldloc1, il.LdelemU1, il.Brtrue}},
}

func cellUpdate(op il.OpCode) []il.OpCode {
	return []il.OpCode{
		il.Ldloc0, il.Ldloc1, il.Ldelema, il.Dup, il.LdindU1,
		il.LdcI4One, op, il.ConvU1, il.StindI1,
	}
}

func readKey(flag il.OpCode) []il.OpCode {
	return []il.OpCode{
		il.Ldloc0, il.Ldloc1, flag, il.Call, il.Stloc2,
		il.LdlocaS, il.Call, il.ConvU1, il.StelemI1,
	}
}
