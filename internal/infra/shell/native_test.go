package shell

import (
	"bytes"
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowman2/cimatrix/internal/domain"
)

func openNative(t *testing.T, env ...string) (domain.Session, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not installed")
	}
	var stdout, stderr bytes.Buffer
	session, err := NewNativeRuntime("bash").Open(context.Background(), domain.SessionOptions{
		Dir:    t.TempDir(),
		OS:     HostOS(),
		Env:    env,
		Stdout: &stdout,
		Stderr: &stderr,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session, &stdout, &stderr
}

func TestNativeSession_StateCarriesAcrossCommands(t *testing.T) {
	// Setup
	session, stdout, _ := openNative(t, "CI=true")
	ctx := context.Background()

	// Execute
	code, err := session.Run(ctx, `export MINICONDA_DIR="$HOME/miniconda"; cd /`)
	require.NoError(t, err)
	require.Equal(t, 0, code)
	code, err = session.Run(ctx, `echo "$CI $PWD ${MINICONDA_DIR##*/}"`)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, 0, code)
	assert.Equal(t, "true / miniconda\n", stdout.String())
}

func TestNativeSession_ExitCode(t *testing.T) {
	session, _, _ := openNative(t)

	code, err := session.Run(context.Background(), "exit_code=4; (exit $exit_code)")

	require.NoError(t, err)
	assert.Equal(t, 4, code)
}

func TestNativeSession_OutputWithoutNewline(t *testing.T) {
	session, stdout, _ := openNative(t)

	code, err := session.Run(context.Background(), "printf partial")

	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "partial\n", stdout.String())
}

func TestNativeSession_SyntaxErrorKeepsSession(t *testing.T) {
	session, stdout, _ := openNative(t)
	ctx := context.Background()

	code, err := session.Run(ctx, `echo "unterminated`)
	require.NoError(t, err)
	assert.NotEqual(t, 0, code)

	code, err = session.Run(ctx, "echo still-alive")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "still-alive")
}

func TestNativeSession_StdinIsNotProtocol(t *testing.T) {
	session, _, _ := openNative(t)
	ctx := context.Background()

	code, err := session.Run(ctx, "cat")
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	code, err = session.Run(ctx, "true")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestNativeSession_Exit(t *testing.T) {
	session, _, _ := openNative(t)
	ctx := context.Background()

	code, err := session.Run(ctx, "exit 5")
	require.ErrorIs(t, err, domain.ErrShellExited)
	assert.Equal(t, 5, code)

	_, err = session.Run(ctx, "true")
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
}

func TestNativeSession_ExitStatuses(t *testing.T) {
	tests := []struct {
		command string
		code    int
		exited  bool
	}{
		{"exit 0", 0, true},
		{"true || exit 1", 0, false},
		{"false || exit 1", 1, true},
		{"export X=1; exit", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			session, _, _ := openNative(t)

			code, err := session.Run(context.Background(), tt.command)

			assert.Equal(t, tt.code, code)
			if tt.exited {
				assert.ErrorIs(t, err, domain.ErrShellExited)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNativeSession_CloseAfterExit(t *testing.T) {
	session, _, _ := openNative(t)

	_, err := session.Run(context.Background(), "exit 1")
	require.ErrorIs(t, err, domain.ErrShellExited)

	assert.NoError(t, session.Close())
}

func TestNativeSession_Canceled(t *testing.T) {
	session, _, _ := openNative(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := session.Run(ctx, "sleep 30")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestShellArgs(t *testing.T) {
	assert.Equal(t, []string{"--noprofile", "--norc", "-s"}, shellArgs("/usr/bin/bash"))
	assert.Equal(t, []string{"-s"}, shellArgs("sh"))
}
