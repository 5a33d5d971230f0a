package daemon

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"
)

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	d, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(d.cancel)
	return d
}

func roundTrip(t *testing.T, d *Daemon, line string) string {
	t.Helper()
	client, server := net.Pipe()
	defer client.Close()

	go d.handle(server)

	client.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := client.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	resp, err := bufio.NewReader(client).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return strings.TrimRight(resp, "\n")
}

func TestStatusCommand(t *testing.T) {
	d := newTestDaemon(t)

	resp := roundTrip(t, d, "s")
	if !strings.HasPrefix(resp, "STATUS status=idle") {
		t.Errorf("resp = %q", resp)
	}
	if !strings.Contains(resp, "connected=false") {
		t.Errorf("fresh daemon reports connected: %q", resp)
	}
}

func TestVersionCommand(t *testing.T) {
	d := newTestDaemon(t)

	resp := roundTrip(t, d, "v")
	if !strings.HasPrefix(resp, "STATUS proto=") {
		t.Errorf("resp = %q", resp)
	}
}

func TestUnknownCommand(t *testing.T) {
	d := newTestDaemon(t)

	resp := roundTrip(t, d, "z")
	if !strings.HasPrefix(resp, "ERR unknown") {
		t.Errorf("resp = %q", resp)
	}
}

func TestConnectionInfoDisconnected(t *testing.T) {
	d := newTestDaemon(t)

	resp := roundTrip(t, d, "h")
	if resp != "STATUS connected=false" {
		t.Errorf("resp = %q", resp)
	}
}

func TestDisconnectWhenAlreadyDisconnected(t *testing.T) {
	d := newTestDaemon(t)

	resp := roundTrip(t, d, "d")
	if resp != "OK disconnected" {
		t.Errorf("resp = %q", resp)
	}
}

func TestConnectRequiresURL(t *testing.T) {
	d := newTestDaemon(t)

	resp := roundTrip(t, d, "c")
	if resp != "ERR missing_url" {
		t.Errorf("resp = %q", resp)
	}
}

func TestKeyEventSyntax(t *testing.T) {
	d := newTestDaemon(t)

	cases := []struct {
		line string
		want string
	}{
		{"k 63 press", "OK key"},
		{"k 63 release", "OK key"},
		{"k 63", "ERR key_syntax"},
		{"k abc press", "ERR key_code"},
		{"k 63 tapdance", "ERR key_kind"},
	}
	for _, tc := range cases {
		resp := roundTrip(t, d, tc.line)
		if !strings.HasPrefix(resp, tc.want) {
			t.Errorf("%q -> %q, want prefix %q", tc.line, resp, tc.want)
		}
	}
}

func TestQuitCancelsContext(t *testing.T) {
	d := newTestDaemon(t)

	resp := roundTrip(t, d, "q")
	if resp != "OK quitting" {
		t.Errorf("resp = %q", resp)
	}
	select {
	case <-d.ctx.Done():
	case <-time.After(time.Second):
		t.Errorf("context not cancelled after quit")
	}
}
