package notify

import "testing"

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		typ     string
		want    Notifier
	}{
		{"disabled", false, "desktop", Nop{}},
		{"log", true, "log", Log{}},
		{"none", true, "none", Nop{}},
		{"desktop", true, "desktop", Desktop{}},
		{"unknown falls back to desktop", true, "weird", Desktop{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.enabled, tt.typ)
			if got != tt.want {
				t.Errorf("New(%v, %q) = %T, want %T", tt.enabled, tt.typ, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 10); got != "hello" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("hello world", 5); got != "hello..." {
		t.Errorf("truncate long = %q", got)
	}
	if got := truncate("héllo wörld", 6); got != "héllo ..." {
		t.Errorf("truncate multi-byte = %q", got)
	}
	if got := truncate("日本語のテキストです", 4); got != "日本語の..." {
		t.Errorf("truncate wide runes = %q", got)
	}
}

func TestNopIsSilent(t *testing.T) {
	// Nop must be safe to call from any goroutine with any input.
	n := Nop{}
	n.RecordingStarted("transcription")
	n.RecordingStopped()
	n.Cancelled()
	n.LoginRequired()
	n.NoAudio()
	n.Connected("user@example.com")
	n.Disconnected()
	n.Result("text")
	n.Error("boom")
}
