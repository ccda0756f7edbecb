package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/snowman2/cimatrix/internal/domain"
)

// closeTimeout bounds how long Close waits for the shell to exit.
const closeTimeout = 5 * time.Second

// streamSession drives a long-lived shell over stdin.
//
// Every command is sent as an eval of the quoted command line followed by a
// printf of a marker line carrying the exit status. The stdout reader
// strips marker lines and hands the status back to Run. eval keeps syntax
// errors inside the command from swallowing the marker, and stdin of the
// command is /dev/null so it cannot consume the protocol. The EXIT trap
// prints the marker with an exit suffix, so a command that ends the shell
// still reports its status.
type streamSession struct {
	stdin    io.WriteCloser
	cmd      *exec.Cmd
	kill     func() // Stops the shell and everything it started
	statuses chan status
	done     chan struct{} // Closed when stdout hits EOF
	marker   string
	mu       sync.Mutex // Serializes Run calls
	closed   bool
}

// startStream starts cmd and wires the marker protocol.
// cmd must not have Stdin or Stdout set.
func startStream(cmd *exec.Cmd, stdout io.Writer, kill func()) (*streamSession, error) {
	if stdout == nil {
		stdout = io.Discard
	}
	// Background processes holding stderr open must not block Wait forever
	cmd.WaitDelay = closeTimeout

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open shell stdin: %w", err)
	}
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open shell stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start shell: %w", err)
	}

	s := &streamSession{
		stdin:    stdin,
		cmd:      cmd,
		kill:     kill,
		statuses: make(chan status, 1),
		done:     make(chan struct{}),
		marker:   "__CIMATRIX_" + strings.ReplaceAll(uuid.NewString(), "-", "") + "__",
	}
	go s.scan(out, stdout)

	trap := fmt.Sprintf("trap %s EXIT\n", domain.ShellQuote(s.exitLine()))
	if _, err := io.WriteString(stdin, trap); err != nil {
		kill()
		_ = cmd.Wait()
		return nil, fmt.Errorf("initialize shell: %w", err)
	}
	return s, nil
}

// status is one marker line read back from the shell.
type status struct {
	code   int
	exited bool // Printed by the EXIT trap
}

// exitSuffix marks statuses printed while the shell exits.
const exitSuffix = ":exit"

// statusLine returns the shell command printing the marker and $?.
func (s *streamSession) statusLine() string {
	return fmt.Sprintf(`printf '%%s:%%d\n' %s "$?"`, s.marker)
}

// exitLine is statusLine for the EXIT trap.
func (s *streamSession) exitLine() string {
	return fmt.Sprintf(`printf '%%s:%%d%s\n' %s "$?"`, exitSuffix, s.marker)
}

// parseStatus parses the text following "<marker>:".
func parseStatus(text string) status {
	text = strings.TrimSpace(text)
	st := status{}
	if rest, ok := strings.CutSuffix(text, exitSuffix); ok {
		st.exited = true
		text = rest
	}
	code, err := strconv.Atoi(text)
	if err != nil {
		code = 1
	}
	st.code = code
	return st
}

// scan copies shell output to w, turning marker lines into statuses.
func (s *streamSession) scan(r io.Reader, w io.Writer) {
	defer close(s.done)

	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			if idx := strings.Index(line, s.marker+":"); idx >= 0 {
				if idx > 0 {
					// Command output without a trailing newline
					_, _ = io.WriteString(w, line[:idx]+"\n")
				}
				select {
				case s.statuses <- parseStatus(line[idx+len(s.marker)+1:]):
				default:
					// Nobody reads statuses once Run gave up on the session
				}
			} else {
				_, _ = io.WriteString(w, line)
			}
		}
		if err != nil {
			return
		}
	}
}

// Run executes one command line in the shell.
func (s *streamSession) Run(ctx context.Context, command string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return -1, domain.ErrSessionClosed
	}

	script := fmt.Sprintf("eval %s </dev/null\n%s\n", domain.ShellQuote(command), s.statusLine())
	if _, err := io.WriteString(s.stdin, script); err != nil {
		s.closed = true
		return -1, fmt.Errorf("%w: write command: %w", domain.ErrSessionClosed, err)
	}

	select {
	case st := <-s.statuses:
		return s.reported(st)
	case <-s.done:
		// The reader may have queued the final status before EOF
		select {
		case st := <-s.statuses:
			return s.reported(st)
		default:
		}
		s.closed = true
		return -1, fmt.Errorf("%w: shell exited while running %q", domain.ErrSessionClosed, command)
	case <-ctx.Done():
		s.closed = true
		s.kill()
		return -1, ctx.Err()
	}
}

// reported turns a status read by Run into its results.
// Callers must hold s.mu.
func (s *streamSession) reported(st status) (int, error) {
	if st.exited {
		s.closed = true
		return st.code, domain.ErrShellExited
	}
	return st.code, nil
}

// Close ends the shell, killing it if it does not exit in time.
func (s *streamSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		_, _ = io.WriteString(s.stdin, "exit 0\n")
	}
	s.closed = true
	_ = s.stdin.Close()

	select {
	case <-s.done:
	case <-time.After(closeTimeout):
		s.kill()
		<-s.done
	}

	var exitErr *exec.ExitError
	if err := s.cmd.Wait(); err != nil && !errors.As(err, &exitErr) && !errors.Is(err, exec.ErrWaitDelay) {
		return fmt.Errorf("wait for shell: %w", err)
	}
	return nil
}
