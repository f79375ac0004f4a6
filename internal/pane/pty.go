package pane

import (
	"errors"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// ErrWouldBlock is returned by PtyBackend.Read when no output is currently
// available. Callers treat it as end-of-drain, not as a failure.
var ErrWouldBlock = errors.New("pty: no data available")

// PtyBackend abstracts the pseudo-terminal behind a terminal plugin. Reads
// never block: implementations return ErrWouldBlock once drained.
type PtyBackend interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Resize(cols, rows int) error
	Pid() int
	Close() error
}

// UnixPty runs a child process on a pseudo-terminal with a non-blocking
// master fd.
type UnixPty struct {
	cmd    *exec.Cmd
	ptmx   *os.File
	closed bool
}

// StartPty spawns command on a new PTY sized cols x rows. An empty command
// falls back to $SHELL, then /bin/sh. The child gets TERM=xterm-256color.
func StartPty(command, cwd string, cols, rows int) (*UnixPty, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		shell := os.Getenv("SHELL")
		if shell == "" {
			shell = "/bin/sh"
		}
		argv = []string{shell}
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = cwd
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
	if err != nil {
		return nil, err
	}

	if err := unix.SetNonblock(int(ptmx.Fd()), true); err != nil {
		_ = ptmx.Close()
		_ = cmd.Process.Kill()
		return nil, err
	}

	// Reap the child so exited processes do not linger as zombies.
	go func() { _ = cmd.Wait() }()

	return &UnixPty{cmd: cmd, ptmx: ptmx}, nil
}

// Read drains available output. Returns ErrWouldBlock when the master has no
// pending bytes.
func (u *UnixPty) Read(p []byte) (int, error) {
	if u.closed {
		return 0, os.ErrClosed
	}
	n, err := u.ptmx.Read(p)
	if err != nil && isWouldBlock(err) {
		return n, ErrWouldBlock
	}
	return n, err
}

// Write forwards input bytes to the child.
func (u *UnixPty) Write(p []byte) (int, error) {
	if u.closed {
		return 0, os.ErrClosed
	}
	return u.ptmx.Write(p)
}

// Resize updates the PTY window size; the child receives SIGWINCH.
func (u *UnixPty) Resize(cols, rows int) error {
	if u.closed {
		return os.ErrClosed
	}
	return pty.Setsize(u.ptmx, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
}

// Pid returns the child process id, or 0 after close.
func (u *UnixPty) Pid() int {
	if u.closed || u.cmd == nil || u.cmd.Process == nil {
		return 0
	}
	return u.cmd.Process.Pid
}

// Close terminates the child and releases the master fd.
func (u *UnixPty) Close() error {
	if u.closed {
		return nil
	}
	u.closed = true
	if u.cmd != nil && u.cmd.Process != nil {
		_ = u.cmd.Process.Signal(syscall.SIGTERM)
	}
	return u.ptmx.Close()
}

func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}
