package reno

import (
	"bufio"
	"encoding/json"
	"net"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/reno-project/reno/internal/ocierr"
)

const (
	initSocketName      = "init.sock"
	containerSocketName = "container.sock"
)

// noProcessErrText is the one child-reported error string start() treats
// as a successful no-op rather than a genuine failure (spec.md §9 open
// question (a)): a bundle whose config.json has no process to run is a
// valid, if unusual, container.
const noProcessErrText = "container error: the 'process' doesn't exist"

// Message is the single socket payload shape of spec.md §4.1: one status
// word plus an optional error string, newline-terminated JSON.
type Message struct {
	Status string  `json:"status"`
	Error  *string `json:"error,omitempty"`
}

func errMessage(status string, err error) Message {
	if err == nil {
		return Message{Status: status}
	}
	s := err.Error()
	return Message{Status: status, Error: &s}
}

// socketServer owns one bound unix socket; Close removes the filesystem
// entry along with the listener. A process that ends through os.Exit or
// execve without calling Close leaves the entry behind.
type socketServer struct {
	path string
	ln   net.Listener
}

func bindSocket(dir, name string) (*socketServer, error) {
	path := filepath.Join(dir, name)
	_ = os.Remove(path) // stale socket from a previous crash, best effort
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, ocierr.New(ocierr.SocketError, err, "binding %s", path)
	}
	return &socketServer{path: path, ln: ln}, nil
}

// Close stops accepting and removes the socket file.
func (s *socketServer) Close() error {
	err := s.ln.Close()
	_ = os.Remove(s.path)
	return err
}

// accept blocks for exactly one incoming connection.
func (s *socketServer) accept() (net.Conn, error) {
	conn, err := s.ln.Accept()
	if err != nil {
		return nil, ocierr.New(ocierr.SocketError, err, "accepting on %s", s.path)
	}
	return conn, nil
}

// writeLine marshals msg as one newline-terminated JSON line.
func writeLine(conn net.Conn, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return ocierr.New(ocierr.SocketError, err, "serializing message")
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return ocierr.New(ocierr.SocketError, err, "writing message")
	}
	return nil
}

// readLine reads and parses exactly one newline-terminated JSON message.
func readLine(conn net.Conn) (Message, error) {
	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return Message{}, ocierr.New(ocierr.SocketError, err, "reading message")
		}
		return Message{}, ocierr.New(ocierr.SocketError, nil, "peer closed before sending a message")
	}
	var msg Message
	if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
		return Message{}, ocierr.New(ocierr.SocketError, err, "parsing message %q", scanner.Text())
	}
	return msg, nil
}

// initServer is bound by the CLI before clone and used exactly once as a
// readiness ping (spec.md §4.1).
type initServer struct{ *socketServer }

func bindInitSocket(dir string) (*initServer, error) {
	s, err := bindSocket(dir, initSocketName)
	if err != nil {
		return nil, err
	}
	return &initServer{s}, nil
}

// WaitReady accepts the child's readiness connection and discards it; the
// child shuts the connection down immediately after connecting.
func (s *initServer) WaitReady() error {
	conn, err := s.accept()
	if err != nil {
		return err
	}
	defer conn.Close()
	logrus.Debug("reno: init socket observed child readiness ping")
	return nil
}

func connectInitSocket(dir string) error {
	path := filepath.Join(dir, initSocketName)
	conn, err := net.Dial("unix", path)
	if err != nil {
		return ocierr.New(ocierr.SocketError, err, "connecting to %s", path)
	}
	return conn.Close()
}

// containerServer is bound by the child as its first action after clone.
// It carries the phase-status barrier described in spec.md §4.1: the
// child accepts a connection from the CLI, does one phase of work, then
// writes the phase's result message on that same connection before
// accepting the next one. The accept is what blocks the child until the
// CLI has caught up from the previous phase (run its hooks, etc).
type containerServer struct{ *socketServer }

func bindContainerSocket(dir string) (*containerServer, error) {
	s, err := bindSocket(dir, containerSocketName)
	if err != nil {
		return nil, err
	}
	return &containerServer{s}, nil
}

// phaseConn is one accepted CLI connection, held open across a phase's
// work so the result can be written back on it afterwards.
type phaseConn struct{ conn net.Conn }

// AwaitCLI blocks until the CLI connects for the next phase. Call it
// before doing that phase's work, then call Send on the result once the
// work (or its failure) is known.
func (s *containerServer) AwaitCLI() (*phaseConn, error) {
	conn, err := s.accept()
	if err != nil {
		return nil, err
	}
	return &phaseConn{conn: conn}, nil
}

// Send writes msg on the held connection and closes it, which is what
// lets the CLI's blocking read return.
func (p *phaseConn) Send(msg Message) error {
	defer p.conn.Close()
	return writeLine(p.conn, msg)
}

// containerClient is the CLI-side handle used to reconnect to the
// child's container socket once per phase.
type containerClient struct{ path string }

func dialContainerSocket(dir string) *containerClient {
	return &containerClient{path: filepath.Join(dir, containerSocketName)}
}

// ReadPhase connects, reads one message, and shuts the connection down.
// The connect is what the child's pending accept returns with; the
// child's following accept is unblocked by the *next* call to ReadPhase.
func (c *containerClient) ReadPhase() (Message, error) {
	conn, err := net.Dial("unix", c.path)
	if err != nil {
		return Message{}, ocierr.New(ocierr.SocketError, err, "connecting to %s", c.path)
	}
	defer conn.Close()
	return readLine(conn)
}
