package gerrit

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/zoidberg-sync/zoidberg/pkg/log"
	"github.com/zoidberg-sync/zoidberg/pkg/metrics"
)

// streamCommand is the exact exec string run on the remote server.
const streamCommand = "gerrit stream-events"

// StreamError is the reason a stream transitioned to stopped. The next
// engine iteration observes the inactive client and reconnects.
type StreamError struct {
	Host   string
	Reason string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("event stream from %s stopped: %s", e.Host, e.Reason)
}

// Stream reads `gerrit stream-events` output line by line on its own
// goroutine and hands each non-empty line to the owning client's queue.
//
// A Stream is single-use: it goes stopped -> running via Start and
// running -> stopped via Stop or on error, and stopped is terminal. The
// client creates a fresh Stream for each activation.
type Stream struct {
	client  *SSHClient // non-owning back-pointer, outlives the stream
	conn    *ssh.Client
	session *ssh.Session
	logger  zerolog.Logger

	running atomic.Bool
	done    chan struct{}

	stderrMu   sync.Mutex
	lastStderr string
}

func newStream(client *SSHClient, conn *ssh.Client) *Stream {
	return &Stream{
		client: client,
		conn:   conn,
		logger: log.For("stream").With().Str("host", client.info.Host).Logger(),
		done:   make(chan struct{}),
	}
}

// Start opens a session on the transport, executes the stream command
// and starts the reader goroutine.
func (s *Stream) Start() error {
	session, err := s.conn.NewSession()
	if err != nil {
		return err
	}

	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return err
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		session.Close()
		return err
	}

	if err := session.Start(streamCommand); err != nil {
		session.Close()
		return err
	}

	s.session = session
	s.running.Store(true)

	// stderr only ever carries the reason the remote ended the stream;
	// remember the last line for the error report.
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			s.stderrMu.Lock()
			s.lastStderr = line
			s.stderrMu.Unlock()
		}
	}()

	go s.run(stdout)

	s.logger.Debug().Msg("Event stream started")
	return nil
}

// IsActive reports whether the stream is in the running state.
func (s *Stream) IsActive() bool {
	return s.running.Load()
}

func (s *Stream) run(stdout io.Reader) {
	defer close(s.done)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if !s.running.Load() {
			return
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		s.client.QueueEvent(line)
	}

	if !s.running.Load() {
		// cooperative stop closed the session under the reader
		return
	}

	reason := "remote server connection closed"
	if err := scanner.Err(); err != nil {
		reason = err.Error()
	} else if errLine := s.lastStderrLine(); errLine != "" {
		reason = errLine
	}
	s.stopWithError(reason)
}

func (s *Stream) lastStderrLine() string {
	s.stderrMu.Lock()
	defer s.stderrMu.Unlock()
	return s.lastStderr
}

func (s *Stream) stopWithError(reason string) {
	err := &StreamError{Host: s.client.info.Host, Reason: reason}
	s.logger.Error().Err(err).Msg("Event stream stopped")
	metrics.StreamDisconnectsTotal.WithLabelValues(s.client.info.Host).Inc()

	s.running.Store(false)
	if s.session != nil {
		s.session.Close()
	}
}

// Stop ends the stream cooperatively: the running flag is cleared first,
// then the session is closed to unblock the reader, then the reader is
// awaited. Closing before awaiting prevents a one-event tail.
func (s *Stream) Stop() {
	if !s.running.Swap(false) && s.session == nil {
		return
	}
	if s.session != nil {
		s.session.Close()
	}
	<-s.done
}
