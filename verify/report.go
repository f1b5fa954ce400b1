package verify

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sarchlab/bfil/api"
	"github.com/sarchlab/bfil/il"
)

// VerificationReport represents a complete verification report
type VerificationReport struct {
	InstructionCount int
	CodeSize         int
	LintIssues       []Issue
	StructIssues     []Issue
	StackIssues      []Issue
	Executed         bool
	ExecutionErr     error
	ExecutionOK      bool
	Steps            int
	Input            []byte
	Output           []byte
}

// GenerateReport runs both lint and execution, returns a report. Bodies
// with STRUCT issues are not executed.
func GenerateReport(body *il.MethodBody, input []byte, maxSteps int) *VerificationReport {
	report := &VerificationReport{
		InstructionCount: body.Len(),
		CodeSize:         body.CodeSize(),
		Input:            input,
	}

	// Run lint
	report.LintIssues = RunLint(body)

	// Categorize issues
	for _, issue := range report.LintIssues {
		if issue.Type == IssueStruct {
			report.StructIssues = append(report.StructIssues, issue)
		} else {
			report.StackIssues = append(report.StackIssues, issue)
		}
	}

	if len(report.StructIssues) > 0 {
		return report
	}

	// Run the body
	driver := api.DriverBuilder{}.
		WithMaxSteps(maxSteps).
		Build("Verify")
	driver.FeedIn(input)
	driver.MapProgram(body)

	report.Executed = true
	report.ExecutionErr = driver.Run()
	report.ExecutionOK = report.ExecutionErr == nil
	report.Steps = driver.Core().Steps()
	report.Output = driver.Collect()

	return report
}

// Passed reports whether lint found nothing and the execution succeeded.
func (r *VerificationReport) Passed() bool {
	return len(r.LintIssues) == 0 && r.ExecutionOK
}

// WriteReport writes a formatted report to a writer
func (r *VerificationReport) WriteReport(w io.Writer) {
	separator := strings.Repeat("=", 60)

	fmt.Fprintln(w, separator)
	fmt.Fprintln(w, "METHOD BODY VERIFICATION REPORT")
	fmt.Fprintln(w, separator)

	fmt.Fprintf(w, "\n✓ Loaded %d instructions (%d bytes of code)\n", r.InstructionCount, r.CodeSize)

	// STAGE 1: LINT
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "STAGE 1: STATIC LINT CHECKS")
	fmt.Fprintln(w, separator)

	if len(r.LintIssues) == 0 {
		fmt.Fprintln(w, "✓ No lint issues found!")
	} else {
		fmt.Fprintf(w, "⚠ Found %d lint issues:\n\n", len(r.LintIssues))

		issueTable := table.NewWriter()
		issueTable.SetTitle("Lint Issues")
		issueTable.AppendHeader(table.Row{"#", "Type", "Offset", "OpCode", "Message"})
		for i, issue := range r.LintIssues {
			offset := "-"
			if issue.Offset >= 0 {
				offset = il.OffsetLabel(issue.Offset)
			}
			issueTable.AppendRow(table.Row{i + 1, issue.Type, offset, issue.OpCode, issue.Message})
		}
		fmt.Fprintln(w, issueTable.Render())
	}

	// STAGE 2: EXECUTION
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "STAGE 2: EXECUTION")
	fmt.Fprintln(w, separator)

	switch {
	case !r.Executed:
		fmt.Fprintln(w, "⚠ Skipped: body has structural issues")
	case r.ExecutionOK:
		fmt.Fprintf(w, "✓ Execution completed in %d steps\n", r.Steps)
	default:
		fmt.Fprintf(w, "⚠ Execution error after %d steps: %v\n", r.Steps, r.ExecutionErr)
	}

	// STAGE 3: SUMMARY
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "VERIFICATION SUMMARY")
	fmt.Fprintln(w, separator)

	execStatus := "SKIPPED"
	if r.Executed {
		execStatus = "SUCCESS"
		if !r.ExecutionOK {
			execStatus = "FAILED: " + r.ExecutionErr.Error()
		}
	}

	summary := table.NewWriter()
	summary.AppendHeader(table.Row{"Check", "Result"})
	summary.AppendRow(table.Row{"Lint", fmt.Sprintf("%d issues (%d STRUCT, %d STACK)",
		len(r.LintIssues), len(r.StructIssues), len(r.StackIssues))})
	summary.AppendRow(table.Row{"Execution", execStatus})
	summary.AppendRow(table.Row{"Input", fmt.Sprintf("%q", r.Input)})
	summary.AppendRow(table.Row{"Output", fmt.Sprintf("%q", r.Output)})
	fmt.Fprintln(w, summary.Render())

	if r.Passed() {
		fmt.Fprintln(w, "\n✓ METHOD BODY PASSED ALL CHECKS")
	}

	fmt.Fprintln(w)
}

// SaveReportToFile saves the report to a file
func (r *VerificationReport) SaveReportToFile(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	r.WriteReport(file)
	return nil
}
