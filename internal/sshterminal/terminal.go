package sshterminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

const (
	// TargetAddr is the only host the terminal connects to: the scoreboard itself.
	TargetAddr = "127.0.0.1:22"
	// TermType is the PTY type requested for every shell.
	TermType = "xterm-256color"
	// DefaultDialTimeout bounds TCP connect plus SSH handshake and authentication.
	DefaultDialTimeout = 10 * time.Second
)

var (
	// ErrAuthentication means the remote host rejected the supplied credentials.
	ErrAuthentication = errors.New("authentication failed")
	// ErrConnection means the remote host could not be reached or the SSH
	// handshake failed for a reason other than credentials.
	ErrConnection = errors.New("connection failed")
)

// Channel is the interactive command stream of one session. Read blocks
// until output is available and returns io.EOF once the remote shell is gone.
type Channel interface {
	io.Reader
	io.Writer
	// Exited reports whether the remote side has delivered its exit status.
	Exited() bool
	// Active reports whether the channel can still carry input and output.
	Active() bool
	Close() error
}

// Connector opens password-authenticated SSH connections and starts a login
// shell on a PTY.
type Connector struct {
	// Addr is the host:port to dial. NewConnector sets TargetAddr.
	Addr    string
	Timeout time.Duration
	// HostKeyCallback verifies the server key. The target is always the
	// loopback interface, so NewConnector accepts any key.
	HostKeyCallback ssh.HostKeyCallback
}

// NewConnector returns a Connector for the local host.
func NewConnector() *Connector {
	return &Connector{
		Addr:            TargetAddr,
		Timeout:         DefaultDialTimeout,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}
}

// Connect dials the target, authenticates with username and password and
// requests an interactive shell. The returned closer owns the SSH connection;
// the channel owns the shell session running over it.
//
// Errors wrap ErrAuthentication or ErrConnection.
func (c *Connector) Connect(ctx context.Context, username, password string) (io.Closer, Channel, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := net.Dialer{}
	netConn, err := dialer.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: dial %s: %v", ErrConnection, c.Addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		netConn.SetDeadline(deadline)
	}

	hostKeyCallback := c.HostKeyCallback
	if hostKeyCallback == nil {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}
	cfg := &ssh.ClientConfig{
		User: username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, c.Addr, cfg)
	if err != nil {
		netConn.Close()
		if isAuthFailure(err) {
			return nil, nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
		}
		return nil, nil, fmt.Errorf("%w: ssh handshake: %v", ErrConnection, err)
	}
	netConn.SetDeadline(time.Time{})
	client := ssh.NewClient(sshConn, chans, reqs)

	shell, err := openShell(client)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return client, shell, nil
}

func isAuthFailure(err error) bool {
	return strings.Contains(err.Error(), "unable to authenticate")
}

// ShellChannel is a PTY-backed login shell over an SSH session.
type ShellChannel struct {
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader

	exited chan struct{}

	mu     sync.Mutex
	closed bool
}

func openShell(client *ssh.Client) (*ShellChannel, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("create ssh session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty(TermType, 24, 80, modes); err != nil {
		session.Close()
		return nil, fmt.Errorf("request pty: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := session.Shell(); err != nil {
		session.Close()
		return nil, fmt.Errorf("start shell: %w", err)
	}

	ch := &ShellChannel{
		session: session,
		stdin:   stdin,
		stdout:  stdout,
		exited:  make(chan struct{}),
	}
	go func() {
		session.Wait()
		close(ch.exited)
	}()
	return ch, nil
}

func (c *ShellChannel) Read(p []byte) (int, error) { return c.stdout.Read(p) }

func (c *ShellChannel) Write(p []byte) (int, error) { return c.stdin.Write(p) }

// Exited reports whether the remote shell has terminated.
func (c *ShellChannel) Exited() bool {
	select {
	case <-c.exited:
		return true
	default:
		return false
	}
}

func (c *ShellChannel) Active() bool {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	return !closed && !c.Exited()
}

// Resize changes the PTY dimensions.
func (c *ShellChannel) Resize(cols, rows uint16) error {
	return c.session.WindowChange(int(rows), int(cols))
}

func (c *ShellChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.session.Close()
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
