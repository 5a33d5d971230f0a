package hotkey

import "context"

// Mode is the recording mode a session is locked into.
type Mode string

const (
	ModeTranscription  Mode = "transcription"
	ModeChatCompletion Mode = "chat_completion"
)

// Key codes for the modifier keys the machine tracks. These are the
// hardware key codes the desktop client observes.
const (
	KeyFn         uint16 = 63
	KeyLeftShift  uint16 = 56
	KeyRightShift uint16 = 60
)

// Kind distinguishes press from release events.
type Kind int

const (
	Press Kind = iota
	Release
)

// KeyEvent is a raw key-state change delivered by the OS hook.
type KeyEvent struct {
	Code uint16
	Kind Kind
}

// Source delivers raw key events. The real OS hook lives outside this
// package; tests and the daemon's control-socket feed implement it too.
type Source interface {
	Subscribe(ctx context.Context) (<-chan KeyEvent, error)
}

// ChanSource adapts a plain channel into a Source.
type ChanSource struct {
	Ch chan KeyEvent
}

func NewChanSource(buffer int) *ChanSource {
	return &ChanSource{Ch: make(chan KeyEvent, buffer)}
}

func (s *ChanSource) Subscribe(ctx context.Context) (<-chan KeyEvent, error) {
	return s.Ch, nil
}

// Send delivers an event, dropping it if the subscriber is gone.
func (s *ChanSource) Send(ctx context.Context, ev KeyEvent) {
	select {
	case s.Ch <- ev:
	case <-ctx.Done():
	}
}
