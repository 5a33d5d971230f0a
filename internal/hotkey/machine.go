package hotkey

import (
	"context"
	"log"
	"sync"
)

// Callbacks are the high-level signals the machine derives from raw key
// events. They are invoked synchronously on the event goroutine and must
// not block.
type Callbacks struct {
	OnStart      func(Mode)
	OnStop       func()
	OnCancel     func()
	OnModeChange func(Mode)
}

// Machine converts Fn / Shift press-release interleavings into recording
// start, stop, cancel and mode-change signals. Fn alone records in
// transcription mode; Fn together with Shift latches chat-completion mode,
// which survives either key releasing first and only ends when both are
// up. Any other key pressed while a session is active, or while work is
// still in flight after the keys were released, cancels it. That path is
// the safety valve against a stuck recording and must stay reachable
// from every state.
//
// The machine is a deterministic reducer over input events: same sequence
// in, same signals out, no external failure modes.
type Machine struct {
	mu sync.Mutex

	fnPressed    bool
	leftShift    bool
	rightShift   bool
	bothLatched  bool
	lockedMode   Mode
	activeRecord bool

	chatEnabled func() bool
	busy        func() bool
	cb          Callbacks
}

// NewMachine builds a machine. chatEnabled gates chat-completion latching;
// when it reports false, Fn+Shift behaves like plain Fn. busy reports
// downstream work still running after the keys were released, such as a
// transcription request in flight; the cancel key path consults it so a
// keypress can still discard a pending result. Nil means never busy.
func NewMachine(cb Callbacks, chatEnabled, busy func() bool) *Machine {
	if chatEnabled == nil {
		chatEnabled = func() bool { return true }
	}
	if busy == nil {
		busy = func() bool { return false }
	}
	return &Machine{cb: cb, chatEnabled: chatEnabled, busy: busy}
}

// Run consumes events from the source until the context ends.
func (m *Machine) Run(ctx context.Context, src Source) error {
	events, err := src.Subscribe(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			m.Handle(ev)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Active reports whether a recording session is in progress.
func (m *Machine) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeRecord
}

// LockedMode returns the mode of the active session, or "" when idle.
func (m *Machine) LockedMode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lockedMode
}

// Handle processes one raw key event. Events are expected in OS arrival
// order; the machine never blocks or reorders.
func (m *Machine) Handle(ev KeyEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev.Code {
	case KeyFn:
		m.handleFn(ev.Kind)
	case KeyLeftShift, KeyRightShift:
		m.handleShift(ev.Code, ev.Kind)
	default:
		m.handleOther(ev.Kind)
	}
}

func (m *Machine) handleFn(kind Kind) {
	switch kind {
	case Press:
		if m.fnPressed {
			return
		}
		m.fnPressed = true

		if m.shiftDown() && m.chatEnabled() {
			m.bothLatched = true
			m.lockedMode = ModeChatCompletion
			log.Printf("Hotkey: Fn pressed with Shift held, chat-completion mode locked")
		} else {
			m.lockedMode = ModeTranscription
			log.Printf("Hotkey: Fn pressed, transcription mode locked")
		}
		m.emitModeChange(m.lockedMode)

		m.activeRecord = true
		if m.cb.OnStart != nil {
			m.cb.OnStart(m.lockedMode)
		}

	case Release:
		if !m.fnPressed {
			return
		}
		m.fnPressed = false

		if m.bothLatched {
			if m.shiftDown() {
				// Shift still held: the session continues in the locked
				// mode. Re-emit as a no-op refresh.
				log.Printf("Hotkey: Fn released, Shift still held, keeping %s", m.lockedMode)
				m.emitModeChange(m.lockedMode)
				return
			}
			log.Printf("Hotkey: both keys released, stopping recording")
			m.stopSession()
			return
		}

		log.Printf("Hotkey: Fn released, stopping recording")
		m.stopSession()
	}
}

func (m *Machine) handleShift(code uint16, kind Kind) {
	wasDown := m.shiftDown()
	switch code {
	case KeyLeftShift:
		m.leftShift = kind == Press
	case KeyRightShift:
		m.rightShift = kind == Press
	}
	isDown := m.shiftDown()

	switch {
	case !wasDown && isDown:
		// Shift alone never starts a recording and never changes mode.
		if m.fnPressed && m.chatEnabled() && !m.bothLatched {
			m.bothLatched = true
			m.lockedMode = ModeChatCompletion
			log.Printf("Hotkey: Shift pressed with Fn held, chat-completion mode locked")
			m.emitModeChange(m.lockedMode)
		}

	case wasDown && !isDown:
		if !m.bothLatched {
			// Shift-only was down; nothing was recording.
			return
		}
		if m.fnPressed {
			log.Printf("Hotkey: Shift released, Fn still held, keeping %s", m.lockedMode)
			m.emitModeChange(m.lockedMode)
			return
		}
		log.Printf("Hotkey: both keys released, stopping recording")
		m.stopSession()
	}
}

// handleOther implements the cancel-on-any-other-key safety valve. Fn and
// Shift never reach here; their codes are routed to their own handlers.
func (m *Machine) handleOther(kind Kind) {
	if kind != Press {
		return
	}
	if !m.activeRecord && !m.busy() {
		return
	}

	log.Printf("Hotkey: non-modifier key pressed during active session, cancelling")
	m.reset()
	if m.cb.OnCancel != nil {
		m.cb.OnCancel()
	}
}

func (m *Machine) shiftDown() bool {
	return m.leftShift || m.rightShift
}

func (m *Machine) stopSession() {
	m.bothLatched = false
	m.lockedMode = ""
	m.activeRecord = false
	if m.cb.OnStop != nil {
		m.cb.OnStop()
	}
}

// reset clears all key and latch state, including physical key tracking,
// so releases arriving after a cancel are ignored.
func (m *Machine) reset() {
	m.fnPressed = false
	m.leftShift = false
	m.rightShift = false
	m.bothLatched = false
	m.lockedMode = ""
	m.activeRecord = false
}

func (m *Machine) emitModeChange(mode Mode) {
	if m.cb.OnModeChange != nil {
		m.cb.OnModeChange(mode)
	}
}
