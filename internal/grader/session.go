// Package grader drives a matching engine binary through a script: it
// launches the engine as a child process, connects one goroutine per
// script thread to it over an AF_UNIX socket, and checks the resulting
// output trace for correctness.
package grader

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"

	"matchbook/internal/book"
	"matchbook/internal/oracle"
	"matchbook/internal/script"
	"matchbook/internal/wire"
)

// Exit codes mirror the three outcomes the original grader reports:
// clean pass, a definite correctness failure, and a failure the checker
// cannot rule out as a tie-break artifact of its own output-timestamp
// resolution.
const (
	ExitOK                = 0
	ExitFailed            = 1
	ExitPossiblySpurious  = 2
	launchSettleDelay     = 50 * time.Millisecond
	connectRetryInterval  = 100 * time.Millisecond
)

// Session is one run of a script against one engine binary.
type Session struct {
	enginePath string
	script     *script.Script
	log        zerolog.Logger

	tempDir    string
	socketPath string

	cmd    *exec.Cmd
	oracle *oracle.Oracle

	ioWG sync.WaitGroup
}

// NewSession builds a Session ready to Run. The script must already have
// passed script.Validate.
func NewSession(enginePath string, s *script.Script, log zerolog.Logger) *Session {
	return &Session{
		enginePath: enginePath,
		script:     s,
		log:        log.With().Str("component", "grader").Logger(),
		oracle:     oracle.NewOracle(seedOrders(s), s.NumThreads, log),
	}
}

// Run launches the engine, drives every client thread through the
// script, and checks the resulting trace, returning one of the Exit*
// codes.
func (sess *Session) Run() (int, error) {
	if err := script.Validate(sess.script); err != nil {
		return ExitFailed, err
	}

	if err := sess.startEngine(); err != nil {
		return ExitFailed, err
	}
	defer sess.cleanup()

	var tb tomb.Tomb
	programs := buildPrograms(sess.script)

	time.Sleep(launchSettleDelay)

	for i := 0; i < sess.script.NumThreads; i++ {
		threadID := i
		tb.Go(func() error {
			return sess.runThread(threadID, programs[threadID])
		})
	}

	if err := tb.Wait(); err != nil {
		sess.log.Error().Err(err).Msg("client thread failed")
		return ExitFailed, err
	}

	sess.awaitQuiescence()
	sess.stopEngine()
	sess.ioWG.Wait()

	result := sess.oracle.Check()
	if result.OK {
		return ExitOK, nil
	}
	sess.log.Error().Strs("failures", result.Failures).Msg("correctness check failed")
	if result.PossiblySpurious {
		return ExitPossiblySpurious, fmt.Errorf("grader: correctness check failed (possibly spurious)")
	}
	return ExitFailed, fmt.Errorf("grader: correctness check failed")
}

func (sess *Session) startEngine() error {
	dir, err := os.MkdirTemp("", fmt.Sprintf("matchbook-%d-", os.Getpid()))
	if err != nil {
		return fmt.Errorf("grader: create temp dir: %w", err)
	}
	sess.tempDir = dir
	sess.socketPath = filepath.Join(dir, "socket-"+uuid.New().String())

	cmd := exec.Command(sess.enginePath, sess.socketPath)
	cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: syscall.SIGKILL}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("grader: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("grader: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("grader: start engine: %w", err)
	}
	sess.cmd = cmd

	sess.ioWG.Add(2)
	go sess.readStdout(stdout)
	go sess.readStderr(stderr)

	return sess.waitForSocket()
}

func (sess *Session) waitForSocket() error {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(sess.socketPath); err == nil {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("grader: engine never created socket %s", sess.socketPath)
}

func (sess *Session) readStdout(r io.Reader) {
	defer sess.ioWG.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line, ok, err := wire.ParseLine(scanner.Text())
		if err != nil {
			sess.log.Warn().Err(err).Str("line", scanner.Text()).Msg("malformed engine output")
			continue
		}
		if !ok {
			continue
		}
		sess.oracle.Feed(line)
	}
}

func (sess *Session) readStderr(r io.Reader) {
	defer sess.ioWG.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		sess.log.Info().Str("engine", scanner.Text()).Msg("engine stderr")
	}
}

// awaitQuiescence gives the engine a last chance to flush output for
// orders no script directive ever explicitly waited on, once every client
// thread has finished sending its commands.
func (sess *Session) awaitQuiescence() {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sess.oracle.Quiescent() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func (sess *Session) stopEngine() {
	if sess.cmd == nil || sess.cmd.Process == nil {
		return
	}
	_ = sess.cmd.Process.Kill()
	_ = sess.cmd.Wait()
}

func (sess *Session) cleanup() {
	if sess.tempDir != "" {
		_ = os.RemoveAll(sess.tempDir)
	}
}

func (sess *Session) runThread(threadID int, ops []threadOp) error {
	var conn net.Conn
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	for _, op := range ops {
		switch op.cmd.Kind {
		case script.Sync:
			op.barrier.arrive()

		case script.Sleep:
			time.Sleep(time.Duration(op.cmd.SleepMS) * time.Millisecond)

		case script.Wait:
			sess.oracle.Latch(book.OrderID(op.cmd.OrderID)).Acquire(sess.log, op.cmd.OrderID)

		case script.Connect:
			c, err := sess.dial()
			if err != nil {
				return fmt.Errorf("grader: thread %d: %w", threadID, err)
			}
			conn = c

		case script.Disconnect:
			if conn != nil {
				conn.Close()
				conn = nil
			}

		case script.Send:
			frame, err := wire.EncodeCommand(op.cmd.Send)
			if err != nil {
				return fmt.Errorf("grader: thread %d: encode command: %w", threadID, err)
			}
			if _, err := conn.Write(frame); err != nil {
				return fmt.Errorf("grader: thread %d: send command: %w", threadID, err)
			}
		}
	}
	return nil
}

func (sess *Session) dial() (net.Conn, error) {
	deadline := time.Now().Add(5 * time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := net.Dial("unix", sess.socketPath)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		time.Sleep(connectRetryInterval)
	}
	return nil, fmt.Errorf("connect to engine: %w", lastErr)
}
