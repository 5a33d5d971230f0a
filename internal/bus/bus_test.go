package bus

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setTempCacheHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", dir)
	return dir
}

func TestPaths(t *testing.T) {
	home := setTempCacheHome(t)

	sp, err := SockPath()
	if err != nil {
		t.Fatalf("SockPath: %v", err)
	}
	if sp != filepath.Join(home, "whisperme", SockName) {
		t.Errorf("sock path = %q", sp)
	}

	pp, err := PidPath()
	if err != nil {
		t.Fatalf("PidPath: %v", err)
	}
	if pp != filepath.Join(home, "whisperme", PidName) {
		t.Errorf("pid path = %q", pp)
	}
}

func TestSendCommandRoundTrip(t *testing.T) {
	setTempCacheHome(t)

	ln, err := Listen()
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				line, _ := bufio.NewReader(c).ReadString('\n')
				fmt.Fprintf(c, "ECHO %s", line)
			}(c)
		}
	}()

	resp, err := SendCommand('s')
	if err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if resp != "ECHO s" {
		t.Errorf("resp = %q", resp)
	}

	resp, err = SendCommandArg('c', "whisperme://connect?token=abc")
	if err != nil {
		t.Fatalf("SendCommandArg: %v", err)
	}
	if resp != "ECHO c whisperme://connect?token=abc" {
		t.Errorf("resp = %q", resp)
	}
}

func TestListenReplacesStaleSocket(t *testing.T) {
	setTempCacheHome(t)

	ln, err := Listen()
	if err != nil {
		t.Fatalf("first Listen: %v", err)
	}
	ln.Close()

	// Closed listener leaves no live socket; a new Listen must succeed
	// even when the socket file survived.
	ln2, err := Listen()
	if err != nil {
		t.Fatalf("second Listen: %v", err)
	}
	ln2.Close()
}

func TestPidFileLifecycle(t *testing.T) {
	setTempCacheHome(t)

	if err := CreatePidFile(); err != nil {
		t.Fatalf("CreatePidFile: %v", err)
	}

	pp, _ := PidPath()
	data, err := os.ReadFile(pp)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	if strings.TrimSpace(string(data)) != fmt.Sprint(os.Getpid()) {
		t.Errorf("pid file contents = %q", data)
	}

	// Our own pid counts as a running daemon.
	if err := CheckExistingDaemon(); err == nil {
		t.Errorf("CheckExistingDaemon ignored live pid")
	}

	if err := RemovePidFile(); err != nil {
		t.Fatalf("RemovePidFile: %v", err)
	}
	if err := CheckExistingDaemon(); err != nil {
		t.Errorf("CheckExistingDaemon after removal: %v", err)
	}
}

func TestCheckExistingDaemonStalePid(t *testing.T) {
	setTempCacheHome(t)

	pp, _ := PidPath()
	if err := os.MkdirAll(filepath.Dir(pp), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pp, []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := CheckExistingDaemon(); err != nil {
		t.Errorf("garbage pid file treated as live daemon: %v", err)
	}
}
