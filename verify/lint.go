package verify

import (
	"fmt"

	"github.com/sarchlab/bfil/il"
)

// RunLint performs static lint checks on a method body.
// It validates structure (STRUCT) and evaluation stack use (STACK).
// Stack checks only run when the structure is sound, since they need every
// branch target to resolve.
// Returns a list of issues found, or empty list if no issues.
func RunLint(body *il.MethodBody) []Issue {
	issues := lintStruct(body)
	if len(issues) > 0 {
		return issues
	}
	return lintStack(body)
}

type linter struct {
	body    *il.MethodBody
	offsets []int
	issues  []Issue
}

func (l *linter) report(t IssueType, idx int, msg string, details map[string]interface{}) {
	issue := Issue{
		Type:    t,
		Index:   idx,
		Offset:  -1,
		Message: msg,
		Details: details,
	}
	if idx >= 0 && idx < len(l.body.Instructions) {
		issue.Offset = l.offsets[idx]
		issue.OpCode = l.body.Instructions[idx].OpCode.String()
	}
	l.issues = append(l.issues, issue)
}

func lintStruct(body *il.MethodBody) []Issue {
	l := &linter{body: body, offsets: body.Offsets()}

	// STRUCT: A method needs at least its ret
	if body.Len() == 0 {
		l.report(IssueStruct, -1, "Empty method body", nil)
		return l.issues
	}

	idx := body.Index()
	for i, inst := range body.Instructions {
		// STRUCT: Opcode must be part of the ISA
		if !inst.OpCode.Valid() {
			l.report(IssueStruct, i, fmt.Sprintf("Unknown opcode %d", inst.OpCode), nil)
			continue
		}

		// STRUCT: Branch targets must be instructions of this body
		if inst.OpCode.IsBranch() {
			target := inst.Target()
			if target == nil {
				l.report(IssueStruct, i, "Branch without target", nil)
			} else if _, ok := idx[target]; !ok {
				l.report(IssueStruct, i, "Branch target outside the method body", nil)
			}
		}

		// STRUCT: Local slots must be declared
		if slot, ok := inst.Slot(); ok && int(slot) >= len(body.Locals) {
			l.report(IssueStruct, i,
				fmt.Sprintf("Local %d is not declared (%d locals)", slot, len(body.Locals)),
				map[string]interface{}{"slot": slot, "locals": len(body.Locals)})
		}
	}

	// STRUCT: Control must not run past the last instruction
	last := body.Instructions[body.Len()-1]
	if last.OpCode != il.Ret && last.OpCode != il.Br {
		l.report(IssueStruct, body.Len()-1, "Control falls through the end of the method", nil)
	}

	return l.issues
}

func lintStack(body *il.MethodBody) []Issue {
	l := &linter{body: body, offsets: body.Offsets()}
	idx := body.Index()

	depth := make([]int, body.Len())
	for i := range depth {
		depth[i] = -1
	}
	reported := make(map[int]bool)

	// STACK: Propagate depths along every control flow edge
	depth[0] = 0
	worklist := []int{0}
	for len(worklist) > 0 {
		i := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		inst := body.Instructions[i]
		pop, push := inst.StackEffect()
		d := depth[i]

		if d < pop {
			if !reported[i] {
				reported[i] = true
				l.report(IssueStack, i,
					fmt.Sprintf("Stack underflow: needs %d, has %d", pop, d),
					map[string]interface{}{"required": pop, "depth": d})
			}
			continue
		}
		d = d - pop + push

		var succs []int
		switch inst.OpCode {
		case il.Ret:
			if d != 0 && !reported[i] {
				reported[i] = true
				l.report(IssueStack, i,
					fmt.Sprintf("%d values left on the stack at ret", d),
					map[string]interface{}{"depth": d})
			}
		case il.Br:
			succs = append(succs, idx[inst.Target()])
		case il.Brtrue:
			succs = append(succs, idx[inst.Target()], i+1)
		default:
			succs = append(succs, i+1)
		}

		for _, s := range succs {
			if s >= body.Len() {
				continue
			}
			switch {
			case depth[s] < 0:
				depth[s] = d
				worklist = append(worklist, s)
			case depth[s] != d && !reported[s]:
				reported[s] = true
				l.report(IssueStack, s,
					fmt.Sprintf("Inconsistent stack depth: %d on one path, %d on another", depth[s], d),
					map[string]interface{}{"first": depth[s], "second": d})
			}
		}
	}

	return l.issues
}
