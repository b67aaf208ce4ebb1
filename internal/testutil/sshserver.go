package testutil

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
)

// Reply is what the scripted switch answers to one command
type Reply struct {
	Stdout string
	Stderr string
	Exit   int
	// Delay holds the reply back; a client signal or disconnect ends it early.
	Delay time.Duration
}

// Handler scripts the server's answer to command run by user
type Handler func(user, command string) Reply

// SSHServer is an in-process SSH server that runs exec requests through a
// Handler. It counts connections so tests can check that clients release
// them.
type SSHServer struct {
	listener net.Listener
	config   *ssh.ServerConfig
	signer   ssh.Signer
	users    map[string]string
	handler  Handler
	forward  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	commands []string

	accepted     atomic.Int64
	active       atomic.Int64
	authFailures atomic.Int64
	signals      atomic.Int64
}

// SSHOption configures an SSHServer
type SSHOption func(*SSHServer)

// WithUser adds a password login
func WithUser(name, password string) SSHOption {
	return func(s *SSHServer) { s.users[name] = password }
}

// WithHandler sets the command handler
func WithHandler(h Handler) SSHOption {
	return func(s *SSHServer) { s.handler = h }
}

// WithKeyboardInteractive offers keyboard-interactive instead of password
// authentication, the way AOS switches prompt for the password.
func WithKeyboardInteractive() SSHOption {
	return func(s *SSHServer) {
		s.config.PasswordCallback = nil
		s.config.KeyboardInteractiveCallback = s.keyboardInteractive
	}
}

// WithForwarding accepts direct-tcpip channels so the server can act as a
// jump host.
func WithForwarding() SSHOption {
	return func(s *SSHServer) { s.forward = true }
}

// Static returns a handler that answers from a fixed command table; unknown
// commands get an AOS-style error and exit status 1.
func Static(replies map[string]Reply) Handler {
	return func(_, command string) Reply {
		if r, ok := replies[command]; ok {
			return r
		}
		return Reply{Stderr: "ERROR: Invalid entry: \"" + command + "\"\n", Exit: 1}
	}
}

// NewSSHServer starts a server on 127.0.0.1 and stops it when the test ends.
func NewSSHServer(t testing.TB, opts ...SSHOption) *SSHServer {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("host key signer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &SSHServer{
		signer:  signer,
		users:   map[string]string{},
		handler: Static(nil),
		ctx:     ctx,
		cancel:  cancel,
		conns:   map[net.Conn]struct{}{},
	}
	s.config = &ssh.ServerConfig{PasswordCallback: s.password}
	s.config.AddHostKey(signer)
	for _, opt := range opts {
		opt(s)
	}

	s.listener, err = net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		cancel()
		t.Fatalf("listen: %v", err)
	}

	s.wg.Add(1)
	go s.acceptLoop()
	t.Cleanup(s.Close)
	return s
}

// Addr returns host:port of the listener
func (s *SSHServer) Addr() string {
	return s.listener.Addr().String()
}

// Host returns the listener's IP
func (s *SSHServer) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

// Port returns the listener's TCP port
func (s *SSHServer) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	n, _ := strconv.Atoi(port)
	return n
}

// HostKey returns the server's public host key
func (s *SSHServer) HostKey() ssh.PublicKey {
	return s.signer.PublicKey()
}

// Accepted returns the number of TCP connections accepted so far
func (s *SSHServer) Accepted() int { return int(s.accepted.Load()) }

// Active returns the number of connections not yet closed
func (s *SSHServer) Active() int { return int(s.active.Load()) }

// AuthFailures returns the number of rejected logins
func (s *SSHServer) AuthFailures() int { return int(s.authFailures.Load()) }

// Signals returns the number of signal requests received
func (s *SSHServer) Signals() int { return int(s.signals.Load()) }

// Commands returns every command received, in arrival order
func (s *SSHServer) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Close stops accepting, drops open connections and waits for handlers.
func (s *SSHServer) Close() {
	s.cancel()
	s.listener.Close()
	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *SSHServer) password(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
	if want, ok := s.users[c.User()]; ok && want == string(pass) {
		return nil, nil
	}
	s.authFailures.Add(1)
	return nil, fmt.Errorf("password rejected for %q", c.User())
}

func (s *SSHServer) keyboardInteractive(c ssh.ConnMetadata, challenge ssh.KeyboardInteractiveChallenge) (*ssh.Permissions, error) {
	answers, err := challenge("", "", []string{"Password: "}, []bool{false})
	if err != nil {
		return nil, err
	}
	if len(answers) != 1 {
		s.authFailures.Add(1)
		return nil, fmt.Errorf("expected one answer, got %d", len(answers))
	}
	return s.password(c, []byte(answers[0]))
}

func (s *SSHServer) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.accepted.Add(1)
		s.active.Add(1)
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		if s.ctx.Err() != nil {
			conn.Close()
		}

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *SSHServer) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		s.active.Add(-1)
	}()

	sconn, chans, reqs, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		return
	}
	defer sconn.Close()
	go ssh.DiscardRequests(reqs)

	var wg sync.WaitGroup
	for nc := range chans {
		switch {
		case nc.ChannelType() == "session":
			wg.Add(1)
			go func(nc ssh.NewChannel) {
				defer wg.Done()
				s.session(sconn.User(), nc)
			}(nc)
		case nc.ChannelType() == "direct-tcpip" && s.forward:
			wg.Add(1)
			go func(nc ssh.NewChannel) {
				defer wg.Done()
				s.directTCPIP(nc)
			}(nc)
		default:
			nc.Reject(ssh.UnknownChannelType, "unsupported channel type")
		}
	}
	wg.Wait()
}

type directTCPIPPayload struct {
	Host     string
	Port     uint32
	OrigHost string
	OrigPort uint32
}

func (s *SSHServer) directTCPIP(nc ssh.NewChannel) {
	var p directTCPIPPayload
	if err := ssh.Unmarshal(nc.ExtraData(), &p); err != nil {
		nc.Reject(ssh.ConnectionFailed, "bad payload")
		return
	}
	var d net.Dialer
	upstream, err := d.DialContext(s.ctx, "tcp", net.JoinHostPort(p.Host, strconv.Itoa(int(p.Port))))
	if err != nil {
		nc.Reject(ssh.ConnectionFailed, err.Error())
		return
	}
	defer upstream.Close()

	ch, reqs, err := nc.Accept()
	if err != nil {
		return
	}
	defer ch.Close()
	go ssh.DiscardRequests(reqs)

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(upstream, ch)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(ch, upstream)
		done <- struct{}{}
	}()
	select {
	case <-done:
	case <-s.ctx.Done():
	}
}

type execPayload struct {
	Command string
}

type exitStatus struct {
	Status uint32
}

func (s *SSHServer) session(user string, nc ssh.NewChannel) {
	ch, reqs, err := nc.Accept()
	if err != nil {
		return
	}
	defer ch.Close()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	cmds := make(chan string, 1)
	go func() {
		defer cancel()
		for req := range reqs {
			switch req.Type {
			case "exec":
				var p execPayload
				ok := ssh.Unmarshal(req.Payload, &p) == nil
				req.Reply(ok, nil)
				if ok {
					select {
					case cmds <- p.Command:
					default:
					}
				}
			case "signal":
				s.signals.Add(1)
				req.Reply(true, nil)
				cancel()
			case "pty-req", "env":
				req.Reply(true, nil)
			default:
				req.Reply(false, nil)
			}
		}
	}()

	var command string
	select {
	case command = <-cmds:
	case <-ctx.Done():
		return
	}

	s.mu.Lock()
	s.commands = append(s.commands, command)
	s.mu.Unlock()

	reply := s.handler(user, command)
	if reply.Delay > 0 {
		timer := time.NewTimer(reply.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		}
	}

	io.WriteString(ch, reply.Stdout)
	io.WriteString(ch.Stderr(), reply.Stderr)
	ch.CloseWrite()
	ch.SendRequest("exit-status", false, ssh.Marshal(exitStatus{Status: uint32(reply.Exit)}))
}
