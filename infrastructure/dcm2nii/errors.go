package dcm2nii

import (
	"fmt"
	"strings"
)

// ConversionError reports a failed tool invocation: the command that
// ran, its exit code, and what it wrote to stderr. It applies to one
// request only.
type ConversionError struct {
	// Tool is the binary that was invoked.
	Tool string

	// Args are the arguments the binary was invoked with.
	Args []string

	// ExitCode is the process exit code, -1 when the process was killed.
	ExitCode int

	// Stderr is the captured error output.
	Stderr string
}

// Error implements the error interface for ConversionError.
func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("%s %s: exit code %d",
		e.Tool, strings.Join(e.Args, " "), e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}
