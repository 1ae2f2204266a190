package tunnel

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leapstack-labs/dbdeck/internal/testutil"
	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// sshServer is an in-process SSH server that only serves direct-tcpip channels.
type sshServer struct {
	ln     net.Listener
	config *ssh.ServerConfig

	mu    sync.Mutex
	conns []net.Conn
}

func newSSHServer(t *testing.T, authorized ssh.PublicKey) *sshServer {
	t.Helper()

	_, hostKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(hostKey)
	require.NoError(t, err)

	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == "deploy" && string(pass) == "secret" {
				return nil, nil
			}
			return nil, errors.New("access denied")
		},
		PublicKeyCallback: func(c ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if authorized != nil && string(key.Marshal()) == string(authorized.Marshal()) {
				return nil, nil
			}
			return nil, errors.New("unknown key")
		},
	}
	config.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &sshServer{ln: ln, config: config}
	go s.serve()
	t.Cleanup(func() {
		_ = ln.Close()
		s.dropAll()
	})
	return s
}

func (s *sshServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *sshServer) serve() {
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, nc)
		s.mu.Unlock()
		go s.handle(nc)
	}
}

func (s *sshServer) handle(nc net.Conn) {
	sc, chans, reqs, err := ssh.NewServerConn(nc, s.config)
	if err != nil {
		_ = nc.Close()
		return
	}
	defer func() { _ = sc.Close() }()
	go ssh.DiscardRequests(reqs)

	for nch := range chans {
		if nch.ChannelType() != "direct-tcpip" {
			_ = nch.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}

		var req struct {
			Host     string
			Port     uint32
			OrigHost string
			OrigPort uint32
		}
		if err := ssh.Unmarshal(nch.ExtraData(), &req); err != nil {
			_ = nch.Reject(ssh.ConnectionFailed, "malformed payload")
			continue
		}

		target, err := net.Dial("tcp", net.JoinHostPort(req.Host, strconv.Itoa(int(req.Port))))
		if err != nil {
			_ = nch.Reject(ssh.ConnectionFailed, err.Error())
			continue
		}
		ch, chReqs, err := nch.Accept()
		if err != nil {
			_ = target.Close()
			continue
		}
		go ssh.DiscardRequests(chReqs)
		go func() {
			defer func() { _ = ch.Close() }()
			defer func() { _ = target.Close() }()
			go func() {
				_, _ = io.Copy(target, ch)
				_ = target.Close()
			}()
			_, _ = io.Copy(ch, target)
		}()
	}
}

// dropAll severs every SSH session, as a network failure would.
func (s *sshServer) dropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.conns = nil
}

// startEcho runs a line echo server and returns its port.
func startEcho(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer func() { _ = c.Close() }()
				_, _ = io.Copy(c, c)
			}()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func roundTrip(t *testing.T, port int, msg string) string {
	t.Helper()
	c, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), 2*time.Second)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	require.NoError(t, c.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = c.Write([]byte(msg + "\n"))
	require.NoError(t, err)
	line, err := bufio.NewReader(c).ReadString('\n')
	require.NoError(t, err)
	return line
}

func testConfig(server *sshServer, echoPort int) core.TunnelConfig {
	return core.TunnelConfig{
		Host:       "127.0.0.1",
		Port:       server.port(),
		Username:   "deploy",
		Password:   "secret",
		RemoteHost: "127.0.0.1",
		RemotePort: echoPort,
	}
}

// countingDialer counts dial attempts and refuses them while failing is set.
type countingDialer struct {
	attempts atomic.Int32
	failing  atomic.Bool
	failNext atomic.Int32
}

func (d *countingDialer) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	d.attempts.Add(1)
	if d.failing.Load() {
		return nil, errors.New("connection refused")
	}
	if d.failNext.Load() > 0 {
		d.failNext.Add(-1)
		return nil, errors.New("connection refused")
	}
	var nd net.Dialer
	return nd.DialContext(ctx, network, addr)
}

func openDropped(t *testing.T, cfg core.TunnelConfig, server *sshServer, opts ...Option) *Manager {
	t.Helper()
	m, err := Open(context.Background(), cfg, testutil.NewTestLogger(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	server.dropAll()
	require.Eventually(t, m.NeedsReconnect, 5*time.Second, 10*time.Millisecond)
	return m
}

func TestOpen_ForwardsTraffic(t *testing.T) {
	server := newSSHServer(t, nil)
	echoPort := startEcho(t)

	m, err := Open(context.Background(), testConfig(server, echoPort), testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	assert.Equal(t, StateEstablished, m.State())
	assert.NotZero(t, m.LocalPort())
	assert.False(t, m.NeedsReconnect())
	assert.Equal(t, "ping\n", roundTrip(t, m.LocalPort(), "ping"))
	assert.Equal(t, "pong\n", roundTrip(t, m.LocalPort(), "pong"), "each socket gets its own channel")
}

func TestOpen_BadCredentials(t *testing.T) {
	server := newSSHServer(t, nil)
	cfg := testConfig(server, startEcho(t))
	cfg.Password = "wrong"

	_, err := Open(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestOpen_RequiresAuth(t *testing.T) {
	_, err := Open(context.Background(), core.TunnelConfig{Host: "127.0.0.1", Username: "deploy"}, nil)
	assert.ErrorContains(t, err, "password or a private key")
}

func TestOpen_PrivateKeyWithPassphrase(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)

	block, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "test key", []byte("hunter2"))
	require.NoError(t, err)
	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600))

	server := newSSHServer(t, sshPub)
	cfg := testConfig(server, startEcho(t))
	cfg.Password = ""
	cfg.PrivateKeyPath = keyPath
	cfg.Passphrase = "hunter2"

	m, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	assert.Equal(t, "key\n", roundTrip(t, m.LocalPort(), "key"))
}

func TestReconnect_AfterSessionDrop(t *testing.T) {
	server := newSSHServer(t, nil)
	echoPort := startEcho(t)

	var reconnectedPort atomic.Int32
	m := openDropped(t, testConfig(server, echoPort), server,
		WithDelays(0, 0, 0),
		OnReconnect(func(port int) { reconnectedPort.Store(int32(port)) }))

	assert.Equal(t, StateReconnecting, m.State())
	require.True(t, m.Reconnect(context.Background()))

	assert.Equal(t, StateEstablished, m.State())
	assert.False(t, m.NeedsReconnect())
	assert.Equal(t, int32(m.LocalPort()), reconnectedPort.Load())
	assert.Equal(t, "again\n", roundTrip(t, m.LocalPort(), "again"))
}

func TestReconnect_GivesUpAfterThreeAttempts(t *testing.T) {
	server := newSSHServer(t, nil)
	dialer := &countingDialer{}

	var failures atomic.Int32
	m := openDropped(t, testConfig(server, startEcho(t)), server,
		WithDialer(dialer.dial),
		WithDelays(0, 0, 0),
		OnFailure(func(error) { failures.Add(1) }))

	dialer.attempts.Store(0)
	dialer.failing.Store(true)

	assert.False(t, m.Reconnect(context.Background()))
	assert.Equal(t, int32(3), dialer.attempts.Load())
	assert.Equal(t, StateFailed, m.State())
	assert.True(t, m.Failed())
	assert.Error(t, m.Err())
	assert.Equal(t, int32(1), failures.Load())
}

func TestReconnect_StopsAtFirstSuccess(t *testing.T) {
	server := newSSHServer(t, nil)
	dialer := &countingDialer{}

	m := openDropped(t, testConfig(server, startEcho(t)), server,
		WithDialer(dialer.dial),
		WithDelays(0, 0, 0))

	dialer.attempts.Store(0)
	dialer.failNext.Store(1)

	require.True(t, m.Reconnect(context.Background()))
	assert.Equal(t, int32(2), dialer.attempts.Load())
}

func TestReconnect_WaitsBeforeEachAttempt(t *testing.T) {
	server := newSSHServer(t, nil)
	dialer := &countingDialer{}

	m := openDropped(t, testConfig(server, startEcho(t)), server,
		WithDialer(dialer.dial),
		WithDelays(20*time.Millisecond, 40*time.Millisecond, 80*time.Millisecond))

	dialer.failing.Store(true)

	start := time.Now()
	assert.False(t, m.Reconnect(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 140*time.Millisecond)
}

func TestReconnect_HonorsContext(t *testing.T) {
	server := newSSHServer(t, nil)
	m := openDropped(t, testConfig(server, startEcho(t)), server,
		WithDelays(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, m.Reconnect(ctx))
	assert.ErrorIs(t, m.Err(), context.Canceled)
}

func TestClose(t *testing.T) {
	server := newSSHServer(t, nil)
	m, err := Open(context.Background(), testConfig(server, startEcho(t)), nil)
	require.NoError(t, err)
	port := m.LocalPort()

	require.NoError(t, m.Close())
	assert.Equal(t, StateClosed, m.State())
	assert.False(t, m.NeedsReconnect(), "an intentional close is not a drop")
	assert.False(t, m.Reconnect(context.Background()))
	assert.NoError(t, m.Close(), "second close is a no-op")

	_, err = net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), time.Second)
	assert.Error(t, err, "listener is released")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "established", StateEstablished.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(42).String())
}
