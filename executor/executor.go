package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mvdan.cc/sh/v3/shell"
	"mvdan.cc/sh/v3/syntax"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates that the program could not be found or is not executable.
	ErrNotFound = errors.New("program not found")

	// ErrTimeout indicates that the program ran longer than its timeout and was killed.
	ErrTimeout = errors.New("program timed out")
)

// ExitError reports a program that ran but exited with a non-zero status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("program exited with status %d", e.Code)
}

// Result represents the outcome of a single program run.
type Result struct {
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	Err      error
}

// OK reports whether the program ran and exited with status 0.
func (r Result) OK() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Runner runs the signal generator program with the given arguments.
type Runner interface {
	Run(ctx context.Context, args []string) Result
}

// Program runs an external executable directly, without a shell in between.
type Program struct {
	command []string
	timeout time.Duration
}

// NewProgram parses commandLine into the executable and any leading arguments.
// Quotes and $VARIABLES are expanded the way a shell would; nothing else is interpreted.
func NewProgram(commandLine string, timeout time.Duration) (*Program, error) {
	fields, err := shell.Fields(commandLine, nil)
	if err != nil {
		return nil, fmt.Errorf("parsing program %q: %w", commandLine, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("program %q is empty", commandLine)
	}
	return &Program{command: fields, timeout: timeout}, nil
}

// Command returns the executable and the leading arguments configured for it.
func (p *Program) Command() []string {
	return append([]string(nil), p.command...)
}

// Run executes the program and blocks until it exits, the timeout passes or ctx is cancelled.
// Output is captured for logging only.
func (p *Program) Run(ctx context.Context, args []string) Result {
	argv := append(p.Command(), args...)
	res := Result{Args: argv}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res.Duration = time.Since(start)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	switch {
	case err == nil:
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.ExitCode = -1
		res.Err = fmt.Errorf("%w after %s", ErrTimeout, p.timeout)
	case ctx.Err() != nil:
		res.ExitCode = -1
		res.Err = fmt.Errorf("program run aborted: %w", ctx.Err())
	case errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission):
		res.ExitCode = -1
		res.Err = fmt.Errorf("%w: %s: %v", ErrNotFound, argv[0], err)
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			res.Err = &ExitError{Code: res.ExitCode}
		} else {
			res.ExitCode = -1
			res.Err = fmt.Errorf("failed to execute program: %w", err)
		}
	}
	return res
}

// CommandLine renders args as a single shell-quoted line for logs.
func CommandLine(args []string) string {
	quoted := make([]string, 0, len(args))
	for _, arg := range args {
		q, err := syntax.Quote(arg, syntax.LangBash)
		if err != nil {
			q = strconv.Quote(arg)
		}
		quoted = append(quoted, q)
	}
	return strings.Join(quoted, " ")
}
