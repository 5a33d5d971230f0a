package notify

import (
	"fmt"
	"log"
	"os/exec"
)

const appName = "WhisperMe"

// Notifier surfaces recording and connection state to the user. Every
// orchestrator dispatch path ends in exactly one of these calls.
type Notifier interface {
	RecordingStarted(mode string)
	RecordingStopped()
	Cancelled()
	LoginRequired()
	NoAudio()
	Connected(email string)
	Disconnected()
	Result(text string)
	Error(msg string)
}

// Desktop sends notifications via notify-send.
type Desktop struct{}

func (Desktop) send(urgency, msg string) {
	args := []string{"-a", appName}
	if urgency != "" {
		args = append(args, "-u", urgency)
	}
	args = append(args, msg)
	if err := exec.Command("notify-send", args...).Run(); err != nil {
		log.Printf("Notify: failed to send notification: %v", err)
	}
}

func (d Desktop) RecordingStarted(mode string) {
	d.send("", fmt.Sprintf("%s: Recording (%s)", appName, mode))
}

func (d Desktop) RecordingStopped() {
	d.send("", fmt.Sprintf("%s: Transcribing...", appName))
}

func (d Desktop) Cancelled() {
	d.send("", fmt.Sprintf("%s: Recording cancelled", appName))
}

func (d Desktop) LoginRequired() {
	d.send("critical", fmt.Sprintf("%s: Login required - connect your web account first", appName))
}

func (d Desktop) NoAudio() {
	d.send("", fmt.Sprintf("%s: No audio recorded", appName))
}

func (d Desktop) Connected(email string) {
	d.send("", fmt.Sprintf("%s: Connected to web account %s", appName, email))
}

func (d Desktop) Disconnected() {
	d.send("", fmt.Sprintf("%s: Disconnected from web account", appName))
}

func (d Desktop) Result(text string) {
	d.send("", fmt.Sprintf("%s: %s", appName, truncate(text, 120)))
}

func (d Desktop) Error(msg string) {
	d.send("critical", fmt.Sprintf("%s: %s", appName, msg))
}

// truncate counts runes so multi-byte text is never cut mid-sequence.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// Log writes notifications to the daemon log instead of the desktop.
type Log struct{}

func (Log) RecordingStarted(mode string) { log.Printf("Notify: recording started (%s)", mode) }
func (Log) RecordingStopped()            { log.Printf("Notify: recording stopped, transcribing") }
func (Log) Cancelled()                   { log.Printf("Notify: recording cancelled") }
func (Log) LoginRequired()               { log.Printf("Notify: login required") }
func (Log) NoAudio()                     { log.Printf("Notify: no audio recorded") }
func (Log) Connected(email string)       { log.Printf("Notify: connected as %s", email) }
func (Log) Disconnected()                { log.Printf("Notify: disconnected") }
func (Log) Result(text string)           { log.Printf("Notify: result %q", truncate(text, 120)) }
func (Log) Error(msg string)             { log.Printf("Notify: error: %s", msg) }

// Nop is a Notifier that does absolutely nothing.
// Useful in unit tests or headless builds.
type Nop struct{}

func (Nop) RecordingStarted(mode string) {}
func (Nop) RecordingStopped()            {}
func (Nop) Cancelled()                   {}
func (Nop) LoginRequired()               {}
func (Nop) NoAudio()                     {}
func (Nop) Connected(email string)       {}
func (Nop) Disconnected()                {}
func (Nop) Result(text string)           {}
func (Nop) Error(msg string)             {}

// New returns a notifier for the configured type ("desktop", "log", "none").
func New(enabled bool, typ string) Notifier {
	if !enabled {
		return Nop{}
	}
	switch typ {
	case "log":
		return Log{}
	case "none":
		return Nop{}
	default:
		return Desktop{}
	}
}
