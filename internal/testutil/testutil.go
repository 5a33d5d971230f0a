package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mmkontis/whisperme/internal/chat"
	"github.com/mmkontis/whisperme/internal/recording"
	"github.com/mmkontis/whisperme/internal/transcriber"
)

// WaitForCondition polls until the condition holds or the timeout
// elapses, then fails the test.
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

// MockSessionGate is a fixed answer to "is a user connected".
type MockSessionGate struct {
	mu        sync.Mutex
	connected bool
}

func NewMockSessionGate(connected bool) *MockSessionGate {
	return &MockSessionGate{connected: connected}
}

func (g *MockSessionGate) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

func (g *MockSessionGate) SetConnected(v bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connected = v
}

// MockRecorder produces a scripted set of frames, then keeps the
// channel open until Stop.
type MockRecorder struct {
	mu      sync.Mutex
	frames  [][]byte
	started int
	stopped int
	failErr error

	frameCh chan recording.Frame
	errCh   chan error
	done    chan struct{}
}

func NewMockRecorder(frames ...[]byte) *MockRecorder {
	return &MockRecorder{frames: frames}
}

// FailWith makes the next Start return err.
func (m *MockRecorder) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

func (m *MockRecorder) Start(ctx context.Context) (<-chan recording.Frame, <-chan error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, nil, m.failErr
	}
	m.started++
	m.frameCh = make(chan recording.Frame, len(m.frames)+1)
	m.errCh = make(chan error, 1)
	m.done = make(chan struct{})

	for _, data := range m.frames {
		m.frameCh <- recording.Frame{Data: data, Timestamp: time.Now()}
	}

	frameCh, errCh, done := m.frameCh, m.errCh, m.done
	go func() {
		select {
		case <-done:
		case <-ctx.Done():
		}
		close(frameCh)
		close(errCh)
	}()

	return frameCh, errCh, nil
}

func (m *MockRecorder) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != nil {
		select {
		case <-m.done:
		default:
			close(m.done)
		}
		m.stopped++
	}
}

func (m *MockRecorder) StartCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// MockTranscriber returns a fixed result and counts calls.
type MockTranscriber struct {
	mu     sync.Mutex
	Result transcriber.Result
	Err    error
	Delay  time.Duration
	calls  int
}

func NewMockTranscriber(text string) *MockTranscriber {
	return &MockTranscriber{Result: transcriber.Result{Text: text}}
}

func (m *MockTranscriber) Transcribe(ctx context.Context, wav []byte) (transcriber.Result, error) {
	m.mu.Lock()
	m.calls++
	delay := m.Delay
	res, err := m.Result, m.Err
	m.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return transcriber.Result{}, ctx.Err()
		}
	}
	return res, err
}

func (m *MockTranscriber) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockChatter completes chat turns with a fixed response and records
// the history windows it was given.
type MockChatter struct {
	mu       sync.Mutex
	Result   chat.Result
	Err      error
	Delay    time.Duration
	calls    int
	messages []string
	windows  [][]chat.Message
}

func NewMockChatter(response string) *MockChatter {
	return &MockChatter{Result: chat.Result{Response: response}}
}

func (m *MockChatter) Complete(ctx context.Context, message string, history []chat.Message) (chat.Result, error) {
	m.mu.Lock()
	m.calls++
	m.messages = append(m.messages, message)
	window := make([]chat.Message, len(history))
	copy(window, history)
	m.windows = append(m.windows, window)
	delay := m.Delay
	res, err := m.Result, m.Err
	m.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return chat.Result{}, ctx.Err()
		}
	}
	return res, err
}

func (m *MockChatter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockChatter) Windows() [][]chat.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.windows
}

// MockInjector records injected texts.
type MockInjector struct {
	mu    sync.Mutex
	Err   error
	texts []string
}

func NewMockInjector() *MockInjector {
	return &MockInjector{}
}

func (m *MockInjector) Inject(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.texts = append(m.texts, text)
	return nil
}

func (m *MockInjector) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.texts))
	copy(out, m.texts)
	return out
}

// NotifierCounts is a snapshot of everything a MockNotifier saw.
type NotifierCounts struct {
	Starts      []string
	Stops       int
	Cancels     int
	LoginAsks   int
	NoAudios    int
	Connections []string
	Disconnects int
	Results     []string
	Errors      []string
}

// MockNotifier counts every notification kind.
type MockNotifier struct {
	mu sync.Mutex
	c  NotifierCounts
}

func NewMockNotifier() *MockNotifier { return &MockNotifier{} }

func (m *MockNotifier) RecordingStarted(mode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.Starts = append(m.c.Starts, mode)
}

func (m *MockNotifier) RecordingStopped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.Stops++
}

func (m *MockNotifier) Cancelled() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.Cancels++
}

func (m *MockNotifier) LoginRequired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.LoginAsks++
}

func (m *MockNotifier) NoAudio() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.NoAudios++
}

func (m *MockNotifier) Connected(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.Connections = append(m.c.Connections, email)
}

func (m *MockNotifier) Disconnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.Disconnects++
}

func (m *MockNotifier) Result(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.Results = append(m.c.Results, text)
}

func (m *MockNotifier) Error(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.Errors = append(m.c.Errors, msg)
}

func (m *MockNotifier) Counts() NotifierCounts {
	m.mu.Lock()
	defer m.mu.Unlock()
	return NotifierCounts{
		Starts:      append([]string(nil), m.c.Starts...),
		Stops:       m.c.Stops,
		Cancels:     m.c.Cancels,
		LoginAsks:   m.c.LoginAsks,
		NoAudios:    m.c.NoAudios,
		Connections: append([]string(nil), m.c.Connections...),
		Disconnects: m.c.Disconnects,
		Results:     append([]string(nil), m.c.Results...),
		Errors:      append([]string(nil), m.c.Errors...),
	}
}
