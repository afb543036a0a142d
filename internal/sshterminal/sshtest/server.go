// Package sshtest provides an in-process SSH server with password auth and a
// tiny line-oriented shell, for exercising terminal sessions in tests.
package sshtest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	gossh "golang.org/x/crypto/ssh"
)

// Prompt is written when a shell starts and after every command.
const Prompt = "$ "

// Server is a password-authenticated SSH server listening on loopback.
//
// The shell echoes typed characters like a PTY would. On carriage return or
// newline it runs the line: "echo ARGS" prints ARGS, "exit" ends the shell
// with status 0, anything else prints "sh: CMD: not found".
type Server struct {
	Addr string

	users    map[string]string
	listener net.Listener

	conns    atomic.Int64
	shells   atomic.Int64
	mu       sync.Mutex
	ptyTerms []string
	logins   []string
}

// NewServer starts a server accepting the given user/password pairs. It is
// closed automatically when the test ends.
func NewServer(t testing.TB, users map[string]string) *Server {
	t.Helper()

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	hostSigner, err := gossh.NewSignerFromKey(hostPriv)
	if err != nil {
		t.Fatalf("create host signer: %v", err)
	}

	s := &Server{users: users}

	cfg := &gossh.ServerConfig{
		PasswordCallback: func(meta gossh.ConnMetadata, password []byte) (*gossh.Permissions, error) {
			if want, ok := s.users[meta.User()]; ok && want == string(password) {
				s.mu.Lock()
				s.logins = append(s.logins, meta.User())
				s.mu.Unlock()
				return &gossh.Permissions{}, nil
			}
			return nil, fmt.Errorf("password rejected for %q", meta.User())
		},
	}
	cfg.AddHostKey(hostSigner)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s.listener = listener
	s.Addr = listener.Addr().String()

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go s.handleConn(conn, cfg)
		}
	}()
	t.Cleanup(s.Close)
	return s
}

// Close stops accepting connections. Existing connections stay up.
func (s *Server) Close() { s.listener.Close() }

// Conns returns the number of authenticated connections still open.
func (s *Server) Conns() int { return int(s.conns.Load()) }

// Shells returns the number of shell channels still open.
func (s *Server) Shells() int { return int(s.shells.Load()) }

// PTYTerms returns the TERM values of every PTY requested so far.
func (s *Server) PTYTerms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ptyTerms...)
}

// Logins returns the user names of every successful authentication.
func (s *Server) Logins() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.logins...)
}

func (s *Server) handleConn(netConn net.Conn, cfg *gossh.ServerConfig) {
	defer netConn.Close()
	srvConn, chans, reqs, err := gossh.NewServerConn(netConn, cfg)
	if err != nil {
		return
	}
	s.conns.Add(1)
	defer s.conns.Add(-1)
	defer srvConn.Close()
	go gossh.DiscardRequests(reqs)

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			newChan.Reject(gossh.UnknownChannelType, "unsupported channel type")
			continue
		}
		ch, requests, err := newChan.Accept()
		if err != nil {
			continue
		}
		go s.handleSession(ch, requests)
	}
}

func (s *Server) handleSession(ch gossh.Channel, reqs <-chan *gossh.Request) {
	defer ch.Close()

	for req := range reqs {
		switch req.Type {
		case "pty-req":
			s.mu.Lock()
			s.ptyTerms = append(s.ptyTerms, parseTerm(req.Payload))
			s.mu.Unlock()
			if req.WantReply {
				req.Reply(true, nil)
			}
		case "shell":
			if req.WantReply {
				req.Reply(true, nil)
			}
			go gossh.DiscardRequests(reqs)
			s.shells.Add(1)
			defer s.shells.Add(-1)
			runShell(ch)
			return
		default:
			if req.WantReply {
				req.Reply(req.Type == "window-change", nil)
			}
		}
	}
}

func parseTerm(payload []byte) string {
	if len(payload) < 4 {
		return ""
	}
	n := binary.BigEndian.Uint32(payload[:4])
	if int(n) > len(payload)-4 {
		return ""
	}
	return string(payload[4 : 4+n])
}

func runShell(ch gossh.Channel) {
	ch.Write([]byte(Prompt))

	var line []byte
	buf := make([]byte, 1024)
	for {
		n, err := ch.Read(buf)
		for _, b := range buf[:n] {
			if b != '\r' && b != '\n' {
				line = append(line, b)
				ch.Write([]byte{b})
				continue
			}
			ch.Write([]byte("\r\n"))
			cmd := strings.TrimSpace(string(line))
			line = line[:0]
			switch {
			case cmd == "":
			case cmd == "exit":
				ch.SendRequest("exit-status", false, gossh.Marshal(struct{ Status uint32 }{0}))
				return
			case cmd == "echo" || strings.HasPrefix(cmd, "echo "):
				ch.Write([]byte(strings.TrimPrefix(strings.TrimPrefix(cmd, "echo"), " ") + "\r\n"))
			default:
				ch.Write([]byte("sh: " + cmd + ": not found\r\n"))
			}
			ch.Write([]byte(Prompt))
		}
		if err != nil {
			return
		}
	}
}
