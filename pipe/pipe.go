// Package pipe runs an external program over a message: the serialized
// message goes to the program's stdin and its stdout is captured.
package pipe

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
)

// Runner executes an external program, feeding it input on stdin and
// returning its stdout. A non-zero exit status and a failure to launch
// both surface as a non-nil error.
type Runner interface {
	Run(program string, args []string, input []byte) ([]byte, error)
}

// NewRunner returns the os/exec backed runner.
func NewRunner() Runner {
	return execRunner{}
}

type execRunner struct{}

// Run blocks until the program exits. There is no timeout: a filter run
// is a single synchronous unit of work and the invoking MTA owns the
// overall deadline. The program's stderr passes through to ours.
func (execRunner) Run(program string, args []string, input []byte) ([]byte, error) {
	cmd := exec.Command(program, args...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stderr = os.Stderr

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("run %s: %w", program, err)
	}
	return out.Bytes(), nil
}
