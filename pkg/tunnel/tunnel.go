// Package tunnel manages an SSH port-forward from a local TCP port to a
// remote host:port, restoring it automatically when the SSH session drops.
//
// A Manager moves through Connecting -> Established -> Reconnecting ->
// Established or Failed. Reconnection makes up to three attempts, waiting
// 1s, 2s and 4s before them. After the last failure the Manager stays Failed
// and the failure hook fires once; nothing retries automatically after that.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/sethvargo/go-retry"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"
)

// State is the lifecycle state of a Manager.
type State int

const (
	// StateConnecting is the initial dial and handshake.
	StateConnecting State = iota
	// StateEstablished means the session is up and the listener is accepting.
	StateEstablished
	// StateReconnecting means the session dropped and has not been restored.
	StateReconnecting
	// StateFailed means reconnection was exhausted.
	StateFailed
	// StateClosed means Close was called.
	StateClosed
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateEstablished:
		return "established"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DefaultDelays are the waits before each reconnection attempt.
var DefaultDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

const handshakeTimeout = 15 * time.Second

// DialFunc opens the transport connection to the SSH server.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the TCP dialer used to reach the SSH server.
func WithDialer(dial DialFunc) Option {
	return func(m *Manager) { m.dial = dial }
}

// WithDelays replaces the reconnection wait table. One attempt is made per entry.
func WithDelays(delays ...time.Duration) Option {
	return func(m *Manager) { m.delays = delays }
}

// OnReconnect registers a hook called with the local port after a successful reconnect.
func OnReconnect(fn func(localPort int)) Option {
	return func(m *Manager) { m.onReconnect = fn }
}

// OnFailure registers a hook called once reconnection is exhausted.
func OnFailure(fn func(err error)) Option {
	return func(m *Manager) { m.onFailure = fn }
}

// Manager owns one SSH session and the local listener forwarding through it.
type Manager struct {
	cfg          core.TunnelConfig
	clientConfig *ssh.ClientConfig
	logger       *slog.Logger
	dial         DialFunc
	delays       []time.Duration
	onReconnect  func(int)
	onFailure    func(error)

	reconnectMu sync.Mutex

	mu             sync.Mutex
	state          State
	localPort      int
	client         *ssh.Client
	listener       net.Listener
	closed         bool
	needsReconnect bool
	lastErr        error
}

// Open allocates a local port, establishes the SSH session and starts
// forwarding. If logger is nil, a discard logger is used.
func Open(ctx context.Context, cfg core.TunnelConfig, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Port == 0 {
		cfg.Port = core.DefaultSSHPort
	}

	clientConfig, err := newClientConfig(cfg, logger)
	if err != nil {
		return nil, err
	}

	var dialer net.Dialer
	m := &Manager{
		cfg:          cfg,
		clientConfig: clientConfig,
		logger:       logger.With(slog.String("ssh_host", cfg.Host)),
		dial:         dialer.DialContext,
		delays:       DefaultDelays,
		state:        StateConnecting,
	}
	for _, opt := range opts {
		opt(m)
	}

	port, err := findAvailablePort()
	if err != nil {
		return nil, err
	}

	client, ln, err := m.connect(ctx, port)
	if err != nil {
		m.state = StateFailed
		return nil, err
	}
	m.install(client, ln)

	m.logger.Info("ssh tunnel established",
		slog.Int("local_port", m.LocalPort()),
		slog.String("remote", m.remoteAddr()))
	return m, nil
}

// findAvailablePort binds port 0 on loopback and reads back the port.
func findAvailablePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to allocate local port: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	if err := ln.Close(); err != nil {
		return 0, fmt.Errorf("failed to release local port: %w", err)
	}
	return port, nil
}

func (m *Manager) sshAddr() string {
	return net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
}

func (m *Manager) remoteAddr() string {
	return net.JoinHostPort(m.cfg.RemoteHost, strconv.Itoa(m.cfg.RemotePort))
}

// connect dials and authenticates a new session, then listens on port.
// If port was taken in the meantime a fresh ephemeral port is used.
func (m *Manager) connect(ctx context.Context, port int) (*ssh.Client, net.Listener, error) {
	addr := m.sshAddr()

	conn, err := m.dial(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	deadline := time.Now().Add(handshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, m.clientConfig)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})
	client := ssh.NewClient(c, chans, reqs)

	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		m.logger.Debug("local port unavailable, allocating a new one", slog.Int("port", port), slog.Any("error", err))
		ln, err = net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to listen on loopback: %w", err)
		}
	}
	return client, ln, nil
}

// install swaps in a new session and listener as a pair.
func (m *Manager) install(client *ssh.Client, ln net.Listener) {
	m.mu.Lock()
	m.client = client
	m.listener = ln
	m.localPort = ln.Addr().(*net.TCPAddr).Port
	m.state = StateEstablished
	m.needsReconnect = false
	m.lastErr = nil
	m.mu.Unlock()

	go m.serve(client, ln)
	go m.watch(client)
}

func (m *Manager) serve(client *ssh.Client, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go m.forward(client, conn)
	}
}

// forward pipes one local socket through its own SSH channel.
// A channel failure closes only that socket.
func (m *Manager) forward(client *ssh.Client, local net.Conn) {
	remote, err := client.Dial("tcp", m.remoteAddr())
	if err != nil {
		m.logger.Warn("failed to open forwarded channel", slog.String("remote", m.remoteAddr()), slog.Any("error", err))
		_ = local.Close()
		return
	}

	var g errgroup.Group
	g.Go(func() error {
		defer func() { _ = remote.Close() }()
		_, err := io.Copy(remote, local)
		return err
	})
	g.Go(func() error {
		defer func() { _ = local.Close() }()
		_, err := io.Copy(local, remote)
		return err
	})
	_ = g.Wait()
}

func (m *Manager) watch(client *ssh.Client) {
	err := client.Wait()
	m.markDisconnected(client, err)
}

func (m *Manager) markDisconnected(client *ssh.Client, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.client != client {
		return
	}
	m.needsReconnect = true
	m.state = StateReconnecting
	m.lastErr = err
	if m.listener != nil {
		_ = m.listener.Close()
	}
	m.logger.Warn("ssh session ended", slog.Any("error", err))
}

// Reconnect re-establishes the session and listener. It makes one attempt
// per configured delay, waiting that delay first. It returns false once the
// attempts are exhausted and leaves the Manager Failed.
func (m *Manager) Reconnect(ctx context.Context) bool {
	m.reconnectMu.Lock()
	defer m.reconnectMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	if m.state == StateEstablished && !m.needsReconnect {
		m.mu.Unlock()
		return true
	}
	port := m.localPort
	m.state = StateReconnecting
	oldClient := m.client
	m.mu.Unlock()

	if oldClient != nil {
		_ = oldClient.Close()
	}

	if len(m.delays) == 0 {
		return m.fail(errors.New("no reconnection attempts configured"))
	}

	attempt := 0
	if err := sleep(ctx, m.delays[0]); err != nil {
		return m.fail(err)
	}

	err := retry.Do(ctx, delayTable(m.delays[1:]), func(ctx context.Context) error {
		attempt++
		client, ln, err := m.connect(ctx, port)
		if err != nil {
			m.logger.Warn("ssh reconnect attempt failed",
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			return retry.RetryableError(err)
		}

		m.mu.Lock()
		closed := m.closed
		m.mu.Unlock()
		if closed {
			_ = ln.Close()
			_ = client.Close()
			return errClosedDuringReconnect
		}

		m.install(client, ln)
		return nil
	})
	if err != nil {
		if errors.Is(err, errClosedDuringReconnect) {
			return false
		}
		return m.fail(err)
	}

	port = m.LocalPort()
	m.logger.Info("ssh tunnel re-established", slog.Int("attempt", attempt), slog.Int("local_port", port))
	if m.onReconnect != nil {
		m.onReconnect(port)
	}
	return true
}

var errClosedDuringReconnect = errors.New("tunnel closed during reconnect")

func (m *Manager) fail(err error) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.state = StateFailed
	m.lastErr = err
	m.mu.Unlock()

	m.logger.Error("ssh tunnel reconnection failed", slog.Any("error", err))
	if m.onFailure != nil {
		m.onFailure(err)
	}
	return false
}

// delayTable yields each delay once, then stops.
func delayTable(delays []time.Duration) retry.Backoff {
	i := 0
	return retry.BackoffFunc(func() (time.Duration, bool) {
		if i >= len(delays) {
			return 0, true
		}
		d := delays[i]
		i++
		return d, false
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Close stops forwarding and ends the session. Both are attempted even if
// one fails. Calling Close again is a no-op.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.needsReconnect = false
	m.state = StateClosed
	ln, client := m.listener, m.client
	m.mu.Unlock()

	var errs []error
	if ln != nil {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("close listener: %w", err))
		}
	}
	if client != nil {
		if err := client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("close ssh session: %w", err))
		}
	}
	m.logger.Debug("ssh tunnel closed")
	return errors.Join(errs...)
}

// LocalPort returns the loopback port currently forwarding. It may change
// across a reconnect.
func (m *Manager) LocalPort() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.localPort
}

// NeedsReconnect reports whether the session dropped without an intentional close.
func (m *Manager) NeedsReconnect() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.needsReconnect
}

// Failed reports whether reconnection was exhausted.
func (m *Manager) Failed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateFailed
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the last session or reconnection error.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}
