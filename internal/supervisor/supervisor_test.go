package supervisor

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
)

var methodName = regexp.MustCompile(`<methodName>([^<]+)</methodName>`)

const processInfoReply = `<?xml version="1.0"?>
<methodResponse><params><param><value><array><data>
<value><struct>
<member><name>name</name><value><string>scoreboard</string></value></member>
<member><name>group</name><value><string>scoreboard</string></value></member>
<member><name>description</name><value><string>pid 1234, uptime 1:02:03</string></value></member>
<member><name>start</name><value><int>1760000000</int></value></member>
<member><name>stop</name><value><int>0</int></value></member>
<member><name>now</name><value><int>1760003723</int></value></member>
<member><name>state</name><value><int>20</int></value></member>
<member><name>statename</name><value><string>RUNNING</string></value></member>
<member><name>spawnerr</name><value><string></string></value></member>
<member><name>exitstatus</name><value><int>0</int></value></member>
<member><name>logfile</name><value><string>/var/log/scoreboard.log</string></value></member>
<member><name>stdout_logfile</name><value><string>/var/log/scoreboard.log</string></value></member>
<member><name>stderr_logfile</name><value><string>/var/log/scoreboard.err</string></value></member>
<member><name>pid</name><value><int>1234</int></value></member>
</struct></value>
</data></array></value></param></params></methodResponse>`

const boolReply = `<?xml version="1.0"?>
<methodResponse><params><param><value><boolean>1</boolean></value></param></params></methodResponse>`

const tailReply = `<?xml version="1.0"?>
<methodResponse><params><param><value><array><data>
<value><string>Traceback: boom</string></value>
<value><int>8192</int></value>
<value><boolean>0</boolean></value>
</data></array></value></param></params></methodResponse>`

const faultReply = `<?xml version="1.0"?>
<methodResponse><fault><value><struct>
<member><name>faultCode</name><value><int>10</int></value></member>
<member><name>faultString</name><value><string>BAD_NAME: nope</string></value></member>
</struct></value></fault></methodResponse>`

type fakeSupervisor struct {
	mu     sync.Mutex
	bodies map[string]string
}

func newFakeSupervisor(t *testing.T) (*Client, *fakeSupervisor) {
	t.Helper()
	f := &fakeSupervisor{bodies: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		m := methodName.FindStringSubmatch(string(body))
		if m == nil {
			http.Error(w, "no method", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.bodies[m[1]] = string(body)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "text/xml")
		switch m[1] {
		case "supervisor.getAllProcessInfo":
			io.WriteString(w, processInfoReply)
		case "supervisor.startProcess", "supervisor.stopProcess":
			if strings.Contains(string(body), "nope") {
				io.WriteString(w, faultReply)
				return
			}
			io.WriteString(w, boolReply)
		case "supervisor.tailProcessStderrLog":
			io.WriteString(w, tailReply)
		default:
			io.WriteString(w, faultReply)
		}
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL+"/RPC2", strings.TrimPrefix(srv.URL, "http://"))
	return c, f
}

func (f *fakeSupervisor) body(method string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[method]
}

func TestProcesses(t *testing.T) {
	c, _ := newFakeSupervisor(t)
	procs, err := c.Processes()
	if err != nil {
		t.Fatalf("Processes: %v", err)
	}
	if len(procs) != 1 {
		t.Fatalf("len = %d", len(procs))
	}
	p := procs[0]
	if p.Name != "scoreboard" || p.StateName != "RUNNING" || p.PID != 1234 || p.State != 20 {
		t.Errorf("process = %+v", p)
	}
	if p.StderrLogfile != "/var/log/scoreboard.err" {
		t.Errorf("StderrLogfile = %q", p.StderrLogfile)
	}
}

func TestStartStop(t *testing.T) {
	c, f := newFakeSupervisor(t)

	ok, err := c.Start("scoreboard")
	if err != nil || !ok {
		t.Errorf("Start = %v, %v", ok, err)
	}
	if !strings.Contains(f.body("supervisor.startProcess"), "scoreboard") {
		t.Error("process name not sent")
	}

	ok, err = c.Stop("scoreboard")
	if err != nil || !ok {
		t.Errorf("Stop = %v, %v", ok, err)
	}
}

func TestStart_Fault(t *testing.T) {
	c, _ := newFakeSupervisor(t)
	if _, err := c.Start("nope"); err == nil || !strings.Contains(err.Error(), "BAD_NAME") {
		t.Errorf("Start err = %v, want BAD_NAME fault", err)
	}
}

func TestTailStderr(t *testing.T) {
	c, f := newFakeSupervisor(t)
	tail, err := c.TailStderr("scoreboard")
	if err != nil {
		t.Fatalf("TailStderr: %v", err)
	}
	if tail.Log != "Traceback: boom" || tail.Offset != 8192 || tail.Overflow {
		t.Errorf("tail = %+v", tail)
	}
	body := f.body("supervisor.tailProcessStderrLog")
	if !strings.Contains(body, "-4096") || !strings.Contains(body, ">4096<") {
		t.Errorf("request body missing offset/length: %s", body)
	}
}

func TestCalls_Unreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1/RPC2", "127.0.0.1:1")
	if _, err := c.Processes(); err == nil {
		t.Error("Processes succeeded against a closed port")
	}
	if c.Check(context.Background()) {
		t.Error("Check = true for a closed port")
	}
}

func TestCheck(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	c := NewClient("", ln.Addr().String())
	if !c.Check(context.Background()) {
		t.Error("Check = false for a listening port")
	}
}
