package executor

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// script writes an executable shell script into a temp dir and returns its path.
func script(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not available on windows")
	}
	path := filepath.Join(t.TempDir(), "dspgen")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestNewProgram(t *testing.T) {
	t.Setenv("WAVEMINER", "/home/pi/development/waveminer")

	p, err := NewProgram("sudo -n $WAVEMINER/dspgen", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"sudo", "-n", "/home/pi/development/waveminer/dspgen"}, p.Command())

	p, err = NewProgram(`"/opt/signal gen/dspgen"`, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"/opt/signal gen/dspgen"}, p.Command())

	_, err = NewProgram("   ", 0)
	assert.Error(t, err)

	_, err = NewProgram(`"unterminated`, 0)
	assert.Error(t, err)
}

func TestProgramPassesArgumentVector(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "args")
	path := script(t, `printf '%s\n' "$@" > "`+out+`"; echo "Setting frequency"`)

	p, err := NewProgram(path, 0)
	require.NoError(t, err)

	res := p.Run(context.Background(), []string{"-f1000; touch " + filepath.Join(dir, "pwned")})
	require.NoError(t, res.Err)
	assert.True(t, res.OK())
	assert.Equal(t, []string{path, "-f1000; touch " + filepath.Join(dir, "pwned")}, res.Args)
	assert.Equal(t, "Setting frequency\n", res.Stdout)

	recorded, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "-f1000; touch "+filepath.Join(dir, "pwned")+"\n", string(recorded))
	assert.NoFileExists(t, filepath.Join(dir, "pwned"), "arguments must never reach a shell")
}

func TestProgramExitCode(t *testing.T) {
	p, err := NewProgram(script(t, "echo bad amplitude >&2; exit 3"), 0)
	require.NoError(t, err)

	res := p.Run(context.Background(), []string{"-a9"})
	assert.False(t, res.OK())
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "bad amplitude\n", res.Stderr)

	var exitErr *ExitError
	require.True(t, errors.As(res.Err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
}

func TestProgramNotFound(t *testing.T) {
	p, err := NewProgram(filepath.Join(t.TempDir(), "missing", "dspgen"), 0)
	require.NoError(t, err)

	res := p.Run(context.Background(), []string{"-f1000"})
	assert.False(t, res.OK())
	assert.ErrorIs(t, res.Err, ErrNotFound)
}

func TestProgramTimeout(t *testing.T) {
	p, err := NewProgram(script(t, "exec sleep 5"), 100*time.Millisecond)
	require.NoError(t, err)

	start := time.Now()
	res := p.Run(context.Background(), []string{"-f1000"})
	assert.ErrorIs(t, res.Err, ErrTimeout)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestProgramContextCancelled(t *testing.T) {
	p, err := NewProgram(script(t, "exec sleep 5"), 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	res := p.Run(ctx, nil)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.NotErrorIs(t, res.Err, ErrTimeout)
}

func TestCommandLine(t *testing.T) {
	line := CommandLine([]string{"/home/pi/dspgen", "-f1000", "-a0.1; reboot"})
	assert.True(t, strings.HasPrefix(line, "/home/pi/dspgen -f1000 "))
	assert.Contains(t, line, "'-a0.1; reboot'")
}
