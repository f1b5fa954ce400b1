package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// LevelTrace is below debug, so per-instruction records only show when
// explicitly asked for.
const LevelTrace slog.Level = slog.LevelDebug - 4

// tapeWindow is the number of cells PrintState shows on each side of the
// pointer.
const tapeWindow = 8

func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}

// PrintState renders the registers, the evaluation stack and the tape
// around the pointer.
func PrintState(w io.Writer, c *Core) {
	state := &c.state
	fmt.Fprintf(w, "==============State@%s==============\n", c.Name())

	regTable := table.NewWriter()
	regTable.SetTitle("Registers")
	regTable.AppendHeader(table.Row{"PC", "Steps", "Halted", "Error"})
	errText := ""
	if state.Err != nil {
		errText = state.Err.Error()
	}
	regTable.AppendRow(table.Row{state.PC, state.Steps, state.Halted, errText})
	fmt.Fprintln(w, regTable.Render())

	localTable := table.NewWriter()
	localTable.SetTitle("Locals")
	localTable.AppendHeader(table.Row{"Slot", "Value"})
	for i, v := range state.Locals {
		localTable.AppendRow(table.Row{fmt.Sprintf("V_%d", i), v.String()})
	}
	fmt.Fprintln(w, localTable.Render())

	stack := make([]string, 0, len(state.Stack))
	for _, v := range state.Stack {
		stack = append(stack, v.String())
	}
	fmt.Fprintf(w, "Stack: [%s]\n", strings.Join(stack, " "))

	cells := c.Cells()
	if cells == nil {
		fmt.Fprintln(w, "================================================")
		return
	}

	ptr := c.Pointer()
	lo, hi := ptr-tapeWindow, ptr+tapeWindow+1
	if lo < 0 {
		lo = 0
	}
	if hi > len(cells) {
		hi = len(cells)
	}

	tapeTable := table.NewWriter()
	tapeTable.SetTitle(fmt.Sprintf("Tape (%d cells)", len(cells)))
	header := table.Row{"Cell"}
	row := table.Row{"Value"}
	for i := lo; i < hi; i++ {
		if i == ptr {
			header = append(header, fmt.Sprintf("*%d", i))
		} else {
			header = append(header, i)
		}
		row = append(row, cells[i])
	}
	tapeTable.AppendHeader(header)
	tapeTable.AppendRow(row)
	fmt.Fprintln(w, tapeTable.Render())
	fmt.Fprintln(w, "================================================")
}

func LogState(c *Core) {
	state := &c.state
	slog.Debug("StateCheckpoint",
		"Core", c.Name(),
		"PC", state.PC,
		"Steps", state.Steps,
		"Stack", len(state.Stack),
		"Pointer", c.Pointer(),
		"Halted", state.Halted,
	)
}
