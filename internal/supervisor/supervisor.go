// Package supervisor talks to the supervisord instance that runs the
// scoreboard process.
package supervisor

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/kolo/xmlrpc"
)

const (
	// CheckTimeout bounds the reachability probe.
	CheckTimeout = time.Second
	// rpcTimeout bounds one XML-RPC round trip.
	rpcTimeout = 10 * time.Second
	// tailBytes is how much of a stderr log TailStderr returns.
	tailBytes = 4096
)

// ProcessInfo is one entry of supervisor.getAllProcessInfo.
type ProcessInfo struct {
	Name          string `xmlrpc:"name" json:"name"`
	Group         string `xmlrpc:"group" json:"group"`
	Description   string `xmlrpc:"description" json:"description"`
	Start         int64  `xmlrpc:"start" json:"start"`
	Stop          int64  `xmlrpc:"stop" json:"stop"`
	Now           int64  `xmlrpc:"now" json:"now"`
	State         int64  `xmlrpc:"state" json:"state"`
	StateName     string `xmlrpc:"statename" json:"statename"`
	SpawnErr      string `xmlrpc:"spawnerr" json:"spawnerr"`
	ExitStatus    int64  `xmlrpc:"exitstatus" json:"exitstatus"`
	Logfile       string `xmlrpc:"logfile" json:"logfile"`
	StdoutLogfile string `xmlrpc:"stdout_logfile" json:"stdout_logfile"`
	StderrLogfile string `xmlrpc:"stderr_logfile" json:"stderr_logfile"`
	PID           int64  `xmlrpc:"pid" json:"pid"`
}

// LogTail is the result of supervisor.tailProcessStderrLog.
type LogTail struct {
	Log      string `json:"log"`
	Offset   int64  `json:"offset"`
	Overflow bool   `json:"overflow"`
}

// Client calls the supervisor XML-RPC interface. Each call opens its own
// connection, matching supervisord's one-request-per-connection HTTP server.
type Client struct {
	URL       string
	Addr      string
	Transport http.RoundTripper
}

// NewClient returns a client for the XML-RPC endpoint at url; addr is the
// host:port probed by Check.
func NewClient(url, addr string) *Client {
	return &Client{
		URL:  url,
		Addr: addr,
		Transport: &http.Transport{
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
			ResponseHeaderTimeout: rpcTimeout,
			DisableKeepAlives:     true,
		},
	}
}

func (c *Client) call(method string, args any, reply any) error {
	rpc, err := xmlrpc.NewClient(c.URL, c.Transport)
	if err != nil {
		return fmt.Errorf("supervisor client: %w", err)
	}
	defer rpc.Close()
	if err := rpc.Call(method, args, reply); err != nil {
		log.Printf("[supervisor] %s: %v", method, err)
		return err
	}
	return nil
}

// Processes returns the state of every managed process.
func (c *Client) Processes() ([]ProcessInfo, error) {
	var procs []ProcessInfo
	if err := c.call("supervisor.getAllProcessInfo", nil, &procs); err != nil {
		return nil, err
	}
	return procs, nil
}

// Start starts the named process and waits for it to be running.
func (c *Client) Start(name string) (bool, error) {
	var ok bool
	err := c.call("supervisor.startProcess", name, &ok)
	return ok, err
}

// Stop stops the named process.
func (c *Client) Stop(name string) (bool, error) {
	var ok bool
	err := c.call("supervisor.stopProcess", name, &ok)
	return ok, err
}

// TailStderr returns the last 4 KiB of the named process's stderr log.
func (c *Client) TailStderr(name string) (*LogTail, error) {
	var res []any
	if err := c.call("supervisor.tailProcessStderrLog", []any{name, -tailBytes, tailBytes}, &res); err != nil {
		return nil, err
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("tailProcessStderrLog: unexpected reply of %d values", len(res))
	}
	tail := &LogTail{}
	var ok1, ok2, ok3 bool
	tail.Log, ok1 = res[0].(string)
	tail.Offset, ok2 = res[1].(int64)
	tail.Overflow, ok3 = res[2].(bool)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("tailProcessStderrLog: unexpected reply types %T, %T, %T", res[0], res[1], res[2])
	}
	return tail, nil
}

// Check reports whether anything accepts TCP connections on the supervisor
// port.
func (c *Client) Check(ctx context.Context) bool {
	d := net.Dialer{Timeout: CheckTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
