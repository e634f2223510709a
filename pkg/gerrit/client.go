package gerrit

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/zoidberg-sync/zoidberg/pkg/event"
	"github.com/zoidberg-sync/zoidberg/pkg/log"
	"github.com/zoidberg-sync/zoidberg/pkg/metrics"
)

const (
	// eventQueueSize bounds the per-client event queue. The stream reader
	// blocks when the queue is full rather than dropping events.
	eventQueueSize = 1024

	keepaliveInterval = 30 * time.Second
	dialTimeout       = 10 * time.Second
)

// ConnectError is returned when the SSH connection to a gerrit server
// cannot be established. The engine logs it and retries on the next
// loop iteration.
type ConnectError struct {
	Host string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Host, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// ConnInfo is the connection tuple for one gerrit server. Two clients
// with equal ConnInfo are interchangeable, which is what config reload
// uses to decide whether an existing connection can be kept.
type ConnInfo struct {
	Host        string
	Port        int
	Username    string
	KeyFilename string
}

// Addr returns the host:port dial address.
func (c ConnInfo) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Client is the per-source owner of an SSH connection, an event stream
// and a failed-event buffer. The engine and actions only see this
// interface; tests substitute fakes.
type Client interface {
	// Activate establishes the SSH connection and starts a new event
	// stream. Returns a *ConnectError on SSH failure.
	Activate() error

	// IsActive reports whether the SSH transport is open and the event
	// stream is running.
	IsActive() bool

	// QueueEvent parses one stream line and pushes the event onto the
	// main queue. Malformed lines are logged and skipped.
	QueueEvent(line string)

	// GetEvent pops the next event, waiting at most timeout. Returns
	// nil when no event arrived in time.
	GetEvent(timeout time.Duration) *event.Event

	// StoreFailedEvent buffers an event whose action could not run
	// because the target was inactive.
	StoreFailedEvent(ev *event.Event)

	// EnqueueFailedEvents moves buffered failed events back onto the
	// main queue, preserving order.
	EnqueueFailedEvents()

	// RunCommand runs a one-shot `gerrit <cmd>` exec and returns stdout
	// lines. SSH errors are logged and yield an empty result.
	RunCommand(cmd string) []string

	// Shutdown stops the stream, closes the transport and clears the
	// main queue.
	Shutdown()

	// ConnInfo returns the connection tuple used for client equality.
	ConnInfo() ConnInfo
}

// SSHClient is the production Client backed by golang.org/x/crypto/ssh.
type SSHClient struct {
	info   ConnInfo
	logger zerolog.Logger

	mu        sync.Mutex
	conn      *ssh.Client
	stream    *Stream
	connected bool

	// quit is closed on shutdown to release a stream reader blocked on
	// a full queue. It has its own lock because QueueEvent runs on the
	// reader goroutine while Shutdown holds mu waiting for that reader.
	quitMu sync.Mutex
	quit   chan struct{}

	events chan *event.Event

	failedMu sync.Mutex
	failed   []*event.Event
}

// NewClient constructs an inactive client for the given connection
// tuple. The SSH connection is only established on Activate.
func NewClient(info ConnInfo) *SSHClient {
	if info.Port == 0 {
		info.Port = 29418
	}
	return &SSHClient{
		info:   info,
		logger: log.For("client").With().Str("host", info.Host).Logger(),
		events: make(chan *event.Event, eventQueueSize),
		quit:   make(chan struct{}),
	}
}

// ConnInfo returns the connection tuple for this client.
func (c *SSHClient) ConnInfo() ConnInfo {
	return c.info
}

// Activate establishes the SSH connection, enables keepalive and starts
// a new event stream. A fresh stream object is created per activation.
func (c *SSHClient) Activate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.closeLocked()
	}

	key, err := os.ReadFile(c.info.KeyFilename)
	if err != nil {
		return &ConnectError{Host: c.info.Host, Err: err}
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return &ConnectError{Host: c.info.Host, Err: err}
	}

	cfg := &ssh.ClientConfig{
		User:            c.info.Username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	}

	conn, err := ssh.Dial("tcp", c.info.Addr(), cfg)
	if err != nil {
		return &ConnectError{Host: c.info.Host, Err: err}
	}

	c.conn = conn
	c.connected = true

	c.quitMu.Lock()
	c.quit = make(chan struct{})
	quit := c.quit
	c.quitMu.Unlock()
	go c.keepalive(conn, quit)

	stream := newStream(c, conn)
	if err := stream.Start(); err != nil {
		c.closeLocked()
		return &ConnectError{Host: c.info.Host, Err: err}
	}
	c.stream = stream

	metrics.ConnectionsTotal.WithLabelValues(c.info.Host).Inc()
	c.logger.Info().Str("addr", c.info.Addr()).Msg("Client activated")
	return nil
}

// keepalive sends periodic transport-level keepalive requests. A send
// failure marks the client disconnected so the engine reconnects.
func (c *SSHClient) keepalive(conn *ssh.Client, quit <-chan struct{}) {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, _, err := conn.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				c.logger.Warn().Err(err).Msg("Keepalive failed, marking client disconnected")
				c.mu.Lock()
				if c.conn == conn {
					c.connected = false
				}
				c.mu.Unlock()
				return
			}
		case <-quit:
			return
		}
	}
}

// IsActive reports whether the transport is open and the stream is
// running. A dead transport clears the connected flag so a later
// Activate starts from a clean slate.
func (c *SSHClient) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.stream == nil {
		return false
	}
	if !c.connected {
		return false
	}
	if !c.stream.IsActive() {
		c.connected = false
		return false
	}
	return true
}

// QueueEvent parses one line of stream output and pushes the event onto
// the main queue. The push blocks when the queue is full; blocking the
// stream reader is preferred over dropping events.
func (c *SSHClient) QueueEvent(line string) {
	ev, err := event.Parse(line)
	if err != nil {
		metrics.ParseErrorsTotal.WithLabelValues(c.info.Host).Inc()
		c.logger.Debug().Err(err).Msg("Skipping unparseable stream line")
		return
	}

	c.quitMu.Lock()
	quit := c.quit
	c.quitMu.Unlock()

	select {
	case c.events <- ev:
		metrics.EventsReceivedTotal.WithLabelValues(c.info.Host, ev.Type).Inc()
	case <-quit:
	}
}

// GetEvent pops the next event, waiting at most timeout. Never fails;
// a timeout yields nil.
func (c *SSHClient) GetEvent(timeout time.Duration) *event.Event {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-c.events:
		return ev
	case <-timer.C:
		return nil
	}
}

// StoreFailedEvent appends an event to the failed buffer so it can be
// requeued once its target comes back.
func (c *SSHClient) StoreFailedEvent(ev *event.Event) {
	c.failedMu.Lock()
	defer c.failedMu.Unlock()

	c.failed = append(c.failed, ev)
	metrics.EventsFailedTotal.WithLabelValues(c.info.Host).Inc()
}

// EnqueueFailedEvents moves buffered events back onto the main queue in
// their original order. Events that do not fit in the queue stay in the
// buffer for the next pass, so nothing is lost.
func (c *SSHClient) EnqueueFailedEvents() {
	c.failedMu.Lock()
	defer c.failedMu.Unlock()

	for i, ev := range c.failed {
		select {
		case c.events <- ev:
			metrics.EventsRequeuedTotal.WithLabelValues(c.info.Host).Inc()
		default:
			c.failed = c.failed[i:]
			return
		}
	}
	c.failed = nil
}

// RunCommand sends `gerrit <cmd>` as a one-shot exec on the transport
// and returns stdout lines. Errors are logged and yield an empty result.
func (c *SSHClient) RunCommand(cmd string) []string {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		c.logger.Error().Str("cmd", cmd).Msg("Cannot run command, client not connected")
		return nil
	}

	session, err := conn.NewSession()
	if err != nil {
		c.logger.Error().Err(err).Msg("Command execution error")
		return nil
	}
	defer session.Close()

	out, err := session.Output("gerrit " + cmd)
	if err != nil {
		c.logger.Error().Err(err).Msg("Command execution error")
		return nil
	}

	var lines []string
	for _, line := range strings.Split(string(out), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Shutdown stops the event stream, closes the transport and clears the
// main queue. The stream's running flag is cleared and the transport
// closed before the reader is awaited, so the reader unblocks and cannot
// deliver a trailing event.
func (c *SSHClient) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()

	for {
		select {
		case <-c.events:
		default:
			return
		}
	}
}

func (c *SSHClient) closeLocked() {
	c.quitMu.Lock()
	select {
	case <-c.quit:
	default:
		close(c.quit)
	}
	c.quitMu.Unlock()
	if c.stream != nil {
		// cleared first so the reader treats the coming EOF as a
		// cooperative stop rather than a stream error
		c.stream.running.Store(false)
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if c.stream != nil {
		c.stream.Stop()
		c.stream = nil
	}
	c.connected = false
}
