// Package transport runs single commands on switches over SSH.
//
// Every Execute call owns its connection: it dials, authenticates, runs the
// configured pre-commands and the command on fresh sessions, and closes
// everything before returning. There are no retries and no credential
// fallback at this layer.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/newtron-network/omnigate/pkg/config"
	"github.com/newtron-network/omnigate/pkg/credentials"
	"github.com/newtron-network/omnigate/pkg/util"
	"github.com/newtron-network/omnigate/pkg/version"
)

// DefaultPort is used when a target has no port
const DefaultPort = 22

// Target is a switch management address
type Target struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Addr returns host:port, defaulting the port to 22
func (t Target) Addr() string {
	port := t.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

func (t Target) String() string {
	return t.Addr()
}

// Result is the outcome of one command
type Result struct {
	Command          string        `json:"command"`
	Stdout           string        `json:"stdout"`
	Stderr           string        `json:"stderr"`
	ExitStatus       int           `json:"exit_status"`
	Duration         time.Duration `json:"duration"`
	Truncated        bool          `json:"truncated"`
	Redacted         bool          `json:"redacted"`
	CredentialSource string        `json:"credential_source"`
}

// Jump is a bastion the target is reached through
type Jump struct {
	Target     Target
	Credential credentials.Candidate
}

// Config holds transport settings
type Config struct {
	ConnectTimeout  time.Duration
	CommandTimeout  time.Duration
	MaxOutputBytes  int
	Keepalive       time.Duration
	PreCommands     []string
	HostKeyCallback ssh.HostKeyCallback
	Jump            *Jump
}

// FromConfig builds a transport Config from the ssh section. The jump host
// credential, if any, is resolved here.
func FromConfig(c config.SSHConfig, hostKeys ssh.HostKeyCallback, lookup credentials.LookupFunc) (Config, error) {
	cfg := Config{
		ConnectTimeout:  c.ConnectTimeout(),
		CommandTimeout:  c.CommandTimeout(),
		MaxOutputBytes:  c.MaxOutputBytes,
		Keepalive:       c.Keepalive(),
		PreCommands:     append([]string(nil), c.PreCommands...),
		HostKeyCallback: hostKeys,
	}
	if j := c.Jump; j != nil {
		cred, ok := credentials.ResolveConfig(j.Credential, "jump", lookup)
		if !ok {
			return Config{}, util.NewConfigError("ssh.jump.credential", "username and password must both resolve")
		}
		cfg.Jump = &Jump{Target: Target{Host: j.Host, Port: j.Port}, Credential: cred}
	}
	return cfg, nil
}

// DialFunc opens the raw TCP connection
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Option configures a Transport
type Option func(*Transport)

// WithDialer replaces the TCP dialer
func WithDialer(d DialFunc) Option {
	return func(t *Transport) { t.dial = d }
}

// Transport executes commands over SSH. It is safe for concurrent use.
type Transport struct {
	cfg  Config
	dial DialFunc
}

// New creates a transport. A missing host key callback rejects every host.
func New(cfg Config, opts ...Option) *Transport {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 30 * time.Second
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = 200000
	}
	if cfg.HostKeyCallback == nil {
		cfg.HostKeyCallback = func(string, net.Addr, ssh.PublicKey) error {
			return errors.New("no known_hosts policy configured")
		}
	}
	var d net.Dialer
	t := &Transport{cfg: cfg, dial: d.DialContext}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// PreCommands returns the commands run before every command
func (t *Transport) PreCommands() []string {
	return append([]string(nil), t.cfg.PreCommands...)
}

// Execute runs command on target as cred. A timeout of zero uses the
// configured command timeout. A non-zero remote exit status is reported in
// the result, not as an error.
func (t *Transport) Execute(ctx context.Context, target Target, cred credentials.Candidate, command string, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		timeout = t.cfg.CommandTimeout
	}
	start := time.Now()

	client, closeAll, err := t.connect(ctx, target, cred)
	if err != nil {
		return nil, err
	}
	defer closeAll()

	stop := t.keepalive(client)
	defer stop()

	for _, pre := range t.cfg.PreCommands {
		if _, err := t.run(ctx, client, target, pre, timeout); err != nil {
			return nil, err
		}
	}

	res, err := t.run(ctx, client, target, command, timeout)
	if err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)
	res.CredentialSource = cred.Source
	return res, nil
}

func (t *Transport) clientConfig(cred credentials.Candidate) *ssh.ClientConfig {
	answer := func(_, _ string, questions []string, _ []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range answers {
			answers[i] = cred.Password
		}
		return answers, nil
	}
	return &ssh.ClientConfig{
		User: cred.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(cred.Password),
			ssh.KeyboardInteractive(answer),
		},
		HostKeyCallback: t.cfg.HostKeyCallback,
		Timeout:         t.cfg.ConnectTimeout,
		ClientVersion:   version.SSHClientVersion(),
	}
}

// connect returns an authenticated client and a function that closes it
// together with everything beneath it.
func (t *Transport) connect(ctx context.Context, target Target, cred credentials.Candidate) (*ssh.Client, func(), error) {
	var closers []io.Closer
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i].Close()
		}
	}

	util.WithTarget(target.Addr()).WithFields(map[string]interface{}{
		"user":   cred.Username,
		"source": cred.Source,
	}).Debug("Connecting")

	var conn net.Conn
	if j := t.cfg.Jump; j != nil {
		jump, jumpClose, err := t.direct(ctx, j.Target, j.Credential)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, closerFunc(jumpClose))

		dctx, cancel := context.WithTimeout(ctx, t.cfg.ConnectTimeout)
		conn, err = jump.DialContext(dctx, "tcp", target.Addr())
		cancel()
		if err != nil {
			closeAll()
			return nil, nil, &Error{Kind: KindConnect, Target: target, Err: fmt.Errorf("via jump host %s: %w", j.Target, err)}
		}
	} else {
		dctx, cancel := context.WithTimeout(ctx, t.cfg.ConnectTimeout)
		var err error
		conn, err = t.dial(dctx, "tcp", target.Addr())
		cancel()
		if err != nil {
			return nil, nil, &Error{Kind: KindConnect, Target: target, Err: err}
		}
	}
	closers = append(closers, conn)

	client, err := t.handshake(ctx, conn, target, cred)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	closers = append(closers, client)
	return client, closeAll, nil
}

// direct dials target without a jump host
func (t *Transport) direct(ctx context.Context, target Target, cred credentials.Candidate) (*ssh.Client, func(), error) {
	dctx, cancel := context.WithTimeout(ctx, t.cfg.ConnectTimeout)
	defer cancel()
	conn, err := t.dial(dctx, "tcp", target.Addr())
	if err != nil {
		return nil, nil, &Error{Kind: KindConnect, Target: target, Err: err}
	}
	client, err := t.handshake(ctx, conn, target, cred)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return client, func() {
		client.Close()
		conn.Close()
	}, nil
}

// handshake bounds the SSH handshake by ConnectTimeout. Streams opened
// through a jump host reject deadlines, so the timer closes conn instead.
func (t *Transport) handshake(ctx context.Context, conn net.Conn, target Target, cred credentials.Candidate) (*ssh.Client, error) {
	conn.SetDeadline(time.Now().Add(t.cfg.ConnectTimeout))

	type result struct {
		conn  ssh.Conn
		chans <-chan ssh.NewChannel
		reqs  <-chan *ssh.Request
		err   error
	}
	done := make(chan result, 1)
	go func() {
		c, chans, reqs, err := ssh.NewClientConn(conn, target.Addr(), t.clientConfig(cred))
		done <- result{c, chans, reqs, err}
	}()

	timer := time.NewTimer(t.cfg.ConnectTimeout)
	defer timer.Stop()

	var cause error
	select {
	case r := <-done:
		if r.err != nil {
			return nil, classifyHandshake(target, r.err)
		}
		conn.SetDeadline(time.Time{})
		return ssh.NewClient(r.conn, r.chans, r.reqs), nil
	case <-timer.C:
		cause = fmt.Errorf("handshake timed out after %s", t.cfg.ConnectTimeout)
	case <-ctx.Done():
		cause = ctx.Err()
	}

	conn.Close()
	if r := <-done; r.err == nil {
		r.conn.Close()
	}
	return nil, &Error{Kind: KindConnect, Target: target, Err: cause}
}

// run executes one command on a fresh session. On timeout the remote
// process is signalled and the connection torn down.
func (t *Transport) run(ctx context.Context, client *ssh.Client, target Target, command string, timeout time.Duration) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: KindSession, Target: target, Err: err}
	}

	sess, err := client.NewSession()
	if err != nil {
		return nil, &Error{Kind: KindSession, Target: target, Err: fmt.Errorf("open session: %w", err)}
	}
	defer sess.Close()

	stdout := newCappedBuffer(t.cfg.MaxOutputBytes)
	stderr := newCappedBuffer(t.cfg.MaxOutputBytes)
	sess.Stdout = stdout
	sess.Stderr = stderr

	util.WithTarget(target.Addr()).WithField("command", command).Debug("Running command")
	if err := sess.Start(command); err != nil {
		return nil, &Error{Kind: KindSession, Target: target, Err: fmt.Errorf("start %q: %w", command, err)}
	}

	done := make(chan error, 1)
	go func() { done <- sess.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err = <-done:
	case <-timer.C:
		sess.Signal(ssh.SIGKILL)
		client.Close()
		return nil, &Error{Kind: KindTimeout, Target: target, Err: fmt.Errorf("command timed out after %s", timeout)}
	}

	res := &Result{
		Command:   command,
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Truncated: stdout.Truncated() || stderr.Truncated(),
	}

	var exitErr *ssh.ExitError
	var missing *ssh.ExitMissingError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitStatus = exitErr.ExitStatus()
	case errors.As(err, &missing):
		res.ExitStatus = -1
	default:
		return nil, &Error{Kind: KindSession, Target: target, Err: err}
	}
	return res, nil
}

// keepalive sends OpenSSH keepalive requests until the returned func is called
func (t *Transport) keepalive(client *ssh.Client) func() {
	if t.cfg.Keepalive <= 0 {
		return func() {}
	}
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(t.cfg.Keepalive)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()
	return func() { close(stop) }
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}
