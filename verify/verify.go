// Package verify provides debugging tools for compiled method bodies.
//
// This package implements two complementary verification stages:
//
// 1. Static Lint (lint.go): Fast structural and stack checks
//   - STRUCT checks: unknown opcodes, branch targets, local slots, fall-through
//     past the last instruction
//   - STACK checks: evaluation stack underflow, inconsistent stack depth where
//     control flow merges, values left on the stack at ret
//
// 2. Execution (report.go): Runs the body on a core through the api driver
//   - Feeds the given input bytes and collects the output
//   - Uses a step budget so runaway loops end the run instead of hanging it
//
// # Stack Model
//
// The lint stage interprets the body abstractly. Only the stack depth is
// tracked, never the values. Every instruction pops and pushes the number of
// slots its opcode declares; calls pop their arguments, plus the receiver for
// instance methods, and push one slot unless they return void. Depths are
// propagated along both edges of brtrue and the single edge of br.
//
// # Usage Example
//
//	body, _ := compiler.Compile(source, opts)
//
//	// Stage 1: Lint checks
//	for _, issue := range verify.RunLint(body) {
//	    log.Printf("[%s] IL_%04x: %s", issue.Type, issue.Offset, issue.Message)
//	}
//
//	// Stage 2: Lint plus execution
//	report := verify.GenerateReport(body, []byte("input"), 1_000_000)
//	report.WriteReport(os.Stdout)
package verify

import (
	"fmt"
)

// IssueType categorizes lint issues
type IssueType string

const (
	IssueStruct IssueType = "STRUCT" // Malformed body (bad target, undeclared local)
	IssueStack  IssueType = "STACK"  // Evaluation stack error (underflow, depth mismatch)
)

// Issue represents a single lint issue
type Issue struct {
	Type    IssueType              // STRUCT or STACK
	Index   int                    // Instruction index (-1 if not applicable)
	Offset  int                    // Byte offset (-1 if not applicable)
	OpCode  string                 // Mnemonic of the instruction
	Message string                 // Human-readable description
	Details map[string]interface{} // Additional structured data
}

func (i Issue) String() string {
	if i.Offset < 0 {
		return fmt.Sprintf("[%s] %s", i.Type, i.Message)
	}
	return fmt.Sprintf("[%s] IL_%04x %s: %s", i.Type, i.Offset, i.OpCode, i.Message)
}
