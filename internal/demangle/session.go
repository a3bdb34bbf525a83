// Package demangle drives an interactive swift-demangle helper over a
// pseudo-terminal, one mangled name per line.
//
// The terminal echoes every request, so each name written produces two lines:
// the echo, which must match the request byte for byte, and the result. An
// empty result means the helper could not demangle the name.
package demangle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/creack/pty"
)

const (
	// DefaultReadTimeout bounds every read from the helper.
	DefaultReadTimeout = 30 * time.Second
	// MaxLineLength is the longest name that fits in one canonical-mode
	// terminal line with its newline.
	MaxLineLength = 4000

	drainTimeout = 250 * time.Millisecond
	exitGrace    = 5 * time.Second
	lineBacklog  = 64
)

var errReadTimeout = errors.New("timed out waiting for swift-demangle")

// State of a Session.
type State int

const (
	NotStarted State = iota
	Running
	Dead
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Running:
		return "running"
	case Dead:
		return "dead"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ProtocolError is returned when the terminal echo does not match the name
// that was sent. Results can no longer be attributed to requests after this.
type ProtocolError struct {
	Sent string
	Echo string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("swift-demangle: got echo %q, expected %q", e.Echo, e.Sent)
}

type Config struct {
	Path        string
	Args        []string
	Env         []string
	ReadTimeout time.Duration
}

type process interface {
	Wait() error
	Kill() error
}

type cmdProcess struct {
	cmd *exec.Cmd
}

func (p cmdProcess) Wait() error { return p.cmd.Wait() }
func (p cmdProcess) Kill() error { return p.cmd.Process.Kill() }

// Session is a conversation with one helper process.
// Its methods are safe for concurrent use, requests are serialized.
type Session struct {
	mu      sync.Mutex
	state   State
	timeout time.Duration

	conn    io.ReadWriteCloser
	proc    process
	lines   chan string
	done    chan struct{}
	exited  chan struct{}
	waitErr error
}

// Disabled returns a session that never starts a helper and passes every
// name through unchanged.
func Disabled() *Session {
	return &Session{state: NotStarted}
}

// Start spawns the helper at conf.Path on a new pseudo-terminal.
func Start(conf Config) (*Session, error) {
	if conf.Path == "" {
		return nil, fmt.Errorf("swift-demangle: no helper path given")
	}
	path, err := exec.LookPath(conf.Path)
	if err != nil {
		return nil, fmt.Errorf("swift-demangle: %w", err)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	cmd := exec.Command(path, conf.Args...)
	cmd.Env = append(os.Environ(), "LD_LIBRARY_PATH="+filepath.Dir(path))
	cmd.Env = append(cmd.Env, conf.Env...)

	tty, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("swift-demangle: failed to start %s on a pseudo-terminal: %w", path, err)
	}

	log.WithFields(log.Fields{
		"path": path,
		"pid":  cmd.Process.Pid,
	}).Debug("Started swift-demangle")

	return newSession(tty, cmdProcess{cmd}, conf.ReadTimeout), nil
}

func newSession(conn io.ReadWriteCloser, proc process, timeout time.Duration) *Session {
	s := &Session{
		state:   Running,
		timeout: timeout,
		conn:    conn,
		proc:    proc,
		lines:   make(chan string, lineBacklog),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	go s.readLines()
	go func() {
		s.waitErr = proc.Wait()
		close(s.exited)
	}()
	return s
}

func (s *Session) readLines() {
	defer close(s.lines)
	sc := bufio.NewScanner(s.conn)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		select {
		case s.lines <- strings.TrimSuffix(sc.Text(), "\r"):
		case <-s.done:
			return
		}
	}
}

// State returns the current state of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Demangle is Send under the name the resolver expects.
func (s *Session) Demangle(name string) (string, error) {
	return s.Send(name)
}

// Send asks the helper to demangle name. The name comes back unchanged when
// the helper has no answer, is not running, or stops responding. The only
// error is a *ProtocolError.
func (s *Session) Send(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running {
		return name, nil
	}
	if !framable(name) {
		return name, nil
	}

	select {
	case <-s.exited:
		s.die(errors.New("helper exited"), false)
		return name, nil
	default:
	}

	if _, err := io.WriteString(s.conn, name+"\n"); err != nil {
		s.die(err, false)
		return name, nil
	}

	echo, err := s.readLine()
	if err != nil {
		s.die(err, errors.Is(err, errReadTimeout))
		return name, nil
	}
	if echo != name {
		s.die(errors.New("echo mismatch"), true)
		return name, &ProtocolError{Sent: name, Echo: echo}
	}

	out, err := s.readLine()
	if err != nil {
		s.die(err, errors.Is(err, errReadTimeout))
		return name, nil
	}
	if out == "" {
		return name, nil
	}
	return out, nil
}

// framable reports whether name survives the terminal line discipline
// unchanged. Control bytes are edited (erase, kill, literal-next) or turned
// into signals by the tty, so names holding any are never sent.
func framable(name string) bool {
	if name == "" || len(name) > MaxLineLength {
		return false
	}
	for i := 0; i < len(name); i++ {
		if c := name[i]; c < 0x20 || c == 0x7f {
			return false
		}
	}
	return true
}

func (s *Session) readLine() (string, error) {
	var deadline <-chan time.Time
	if s.timeout > 0 {
		t := time.NewTimer(s.timeout)
		defer t.Stop()
		deadline = t.C
	}
	select {
	case line, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-deadline:
		return "", errReadTimeout
	}
}

// die moves a running session to Dead and releases the helper.
func (s *Session) die(reason error, kill bool) {
	s.state = Dead
	log.WithError(reason).Warn("swift-demangle stopped; Swift names will be stored mangled")
	if kill {
		_ = s.proc.Kill()
	}
	s.drain()
	s.release()
}

// drain logs whatever the helper printed that was never read as a reply.
func (s *Session) drain() {
	t := time.NewTimer(drainTimeout)
	defer t.Stop()
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				return
			}
			log.Warnf("swift-demangle: %s", line)
		case <-t.C:
			return
		}
	}
}

// release closes the terminal, which hangs up the helper, and reaps the
// process.
func (s *Session) release() error {
	close(s.done)
	err := s.conn.Close()
	select {
	case <-s.exited:
	case <-time.After(exitGrace):
		log.Warn("swift-demangle did not exit, killing it")
		_ = s.proc.Kill()
		<-s.exited
	}
	if s.waitErr != nil {
		log.WithError(s.waitErr).Warn("swift-demangle terminated abnormally")
	}
	return err
}

// Close asks the helper to exit with an empty line and waits for it.
// It is safe to call Close more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running {
		s.state = Dead
		return nil
	}
	s.state = Dead

	if _, err := io.WriteString(s.conn, "\n"); err != nil {
		log.WithError(err).Debug("swift-demangle: failed to send terminating line")
		_ = s.proc.Kill()
	}
	if err := s.release(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("swift-demangle: failed to close terminal: %w", err)
	}
	return nil
}
