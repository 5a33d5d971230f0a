package orchestrator

import (
	"context"
	"log"
	"sync"

	"github.com/mmkontis/whisperme/internal/chat"
	"github.com/mmkontis/whisperme/internal/hotkey"
	"github.com/mmkontis/whisperme/internal/injection"
	"github.com/mmkontis/whisperme/internal/notify"
	"github.com/mmkontis/whisperme/internal/recording"
	"github.com/mmkontis/whisperme/internal/transcriber"
)

type Status string

const (
	Idle        Status = "idle"
	Capturing   Status = "capturing"
	Finalizing  Status = "finalizing"
	Dispatching Status = "dispatching"
)

// Recorder is the audio capture collaborator.
type Recorder interface {
	Start(ctx context.Context) (<-chan recording.Frame, <-chan error, error)
	Stop()
}

// SessionGate answers whether a connected user exists. Recording is
// refused without one.
type SessionGate interface {
	Connected() bool
}

type signalKind int

const (
	sigStart signalKind = iota
	sigStop
	sigCancel
	sigFinalized
	sigTranscribed
	sigChatted
	sigDispatched
)

type signal struct {
	kind signalKind
	mode hotkey.Mode
	gen  uint64
	tres transcriber.Result
	cres chat.Result
	err  error
}

// Orchestrator reacts to hotkey signals, runs capture sessions and
// dispatches artifacts to the transcription or chat backend. All state
// lives on a single goroutine; callbacks and network completions post
// messages onto it and never touch state directly.
type Orchestrator struct {
	sessions    SessionGate
	recorder    Recorder
	transcriber transcriber.Adapter
	chatter     chat.Adapter
	injector    injection.Injector
	notifier    notify.Notifier
	history     *chat.History
	recOpts     recording.Options

	signals chan signal

	mu     sync.RWMutex
	status Status

	// actor-owned, never touched off the loop goroutine
	gen       uint64
	mode      hotkey.Mode
	collector *recording.Collector
}

func New(sessions SessionGate, rec Recorder, tr transcriber.Adapter, ch chat.Adapter,
	inj injection.Injector, n notify.Notifier, recOpts recording.Options) *Orchestrator {
	if n == nil {
		n = notify.Nop{}
	}
	return &Orchestrator{
		sessions:    sessions,
		recorder:    rec,
		transcriber: tr,
		chatter:     ch,
		injector:    inj,
		notifier:    n,
		history:     chat.NewHistory(),
		recOpts:     recOpts,
		signals:     make(chan signal, 16),
		status:      Idle,
	}
}

func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

func (o *Orchestrator) setStatus(s Status) {
	o.mu.Lock()
	o.status = s
	o.mu.Unlock()
}

// Start, Stop and Cancel are the hotkey-facing entry points. They post
// and return immediately so key handling never waits on the network.
func (o *Orchestrator) Start(mode hotkey.Mode) { o.post(signal{kind: sigStart, mode: mode}) }
func (o *Orchestrator) Stop()                  { o.post(signal{kind: sigStop}) }
func (o *Orchestrator) Cancel()                { o.post(signal{kind: sigCancel}) }

func (o *Orchestrator) post(s signal) {
	select {
	case o.signals <- s:
	default:
		log.Printf("Orchestrator: signal queue full, dropped %d", s.kind)
	}
}

// Run is the actor loop. It returns when the context ends.
func (o *Orchestrator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			o.recorder.Stop()
			return
		case s := <-o.signals:
			o.handle(ctx, s)
		}
	}
}

func (o *Orchestrator) handle(ctx context.Context, s signal) {
	switch s.kind {
	case sigStart:
		o.onStart(ctx, s.mode)
	case sigStop:
		o.onStop()
	case sigCancel:
		o.onCancel()
	case sigFinalized:
		if s.gen != o.gen {
			return
		}
		o.onFinalized(ctx)
	case sigTranscribed:
		if s.gen != o.gen {
			log.Printf("Orchestrator: discarding stale transcription")
			return
		}
		o.onTranscribed(ctx, s)
	case sigChatted:
		if s.gen != o.gen {
			log.Printf("Orchestrator: discarding stale chat completion")
			return
		}
		o.onChatted(ctx, s)
	case sigDispatched:
		if s.gen != o.gen {
			return
		}
		o.setStatus(Idle)
	}
}

func (o *Orchestrator) onStart(ctx context.Context, mode hotkey.Mode) {
	if o.Status() != Idle {
		return
	}
	if !o.sessions.Connected() {
		log.Printf("Orchestrator: recording refused, no connected user")
		o.notifier.LoginRequired()
		return
	}

	frames, errs, err := o.recorder.Start(ctx)
	if err != nil {
		log.Printf("Orchestrator: capture start failed: %v", err)
		o.notifier.Error("could not start recording")
		return
	}

	o.gen++
	o.mode = mode
	o.collector = recording.NewCollector(o.recOpts)
	o.setStatus(Capturing)
	o.notifier.RecordingStarted(string(mode))

	gen := o.gen
	collector := o.collector
	go func() {
		for frames != nil || errs != nil {
			select {
			case f, ok := <-frames:
				if !ok {
					frames = nil
					continue
				}
				collector.Append(f)
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				if err != nil {
					log.Printf("Orchestrator: capture error: %v", err)
				}
			}
		}
		o.post(signal{kind: sigFinalized, gen: gen})
	}()
}

func (o *Orchestrator) onStop() {
	if o.Status() != Capturing {
		return
	}
	o.setStatus(Finalizing)
	o.notifier.RecordingStopped()
	o.recorder.Stop()
}

func (o *Orchestrator) onCancel() {
	st := o.Status()
	if st == Idle {
		return
	}
	o.gen++ // in-flight completions become stale
	o.collector = nil
	o.recorder.Stop()
	o.setStatus(Idle)
	o.notifier.Cancelled()
}

// onFinalized runs once the capture goroutine has drained all frames.
func (o *Orchestrator) onFinalized(ctx context.Context) {
	st := o.Status()
	if st != Finalizing && st != Capturing {
		return
	}
	if st == Capturing {
		// Capture ended on its own (recorder error or EOF).
		o.notifier.RecordingStopped()
	}

	collector := o.collector
	o.collector = nil
	if collector == nil {
		o.setStatus(Idle)
		return
	}

	wav, ok := collector.Artifact()
	if !ok {
		log.Printf("Orchestrator: artifact below threshold (%d bytes), skipping", len(wav))
		o.notifier.NoAudio()
		o.setStatus(Idle)
		return
	}

	o.setStatus(Dispatching)
	gen := o.gen
	go func() {
		res, err := o.transcriber.Transcribe(ctx, wav)
		o.post(signal{kind: sigTranscribed, gen: gen, tres: res, err: err})
	}()
}

func (o *Orchestrator) onTranscribed(ctx context.Context, s signal) {
	if s.err != nil {
		o.notifier.Error(s.err.Error())
		o.setStatus(Idle)
		return
	}
	text := s.tres.Text
	if text == "" {
		o.notifier.NoAudio()
		o.setStatus(Idle)
		return
	}

	switch o.mode {
	case hotkey.ModeChatCompletion:
		if o.chatter == nil {
			// Chat can be enabled in the config after the daemon started
			// without an adapter. Fail the turn, never the process.
			log.Printf("Orchestrator: chat mode requested but no chat adapter is configured")
			o.notifier.Error("chat is not configured, restart the daemon")
			o.setStatus(Idle)
			return
		}
		// History mutations happen here, on the actor.
		o.history.Append("user", text)
		gen := o.gen
		window := o.history.Snapshot()
		go func() {
			res, err := o.chatter.Complete(ctx, text, window[:len(window)-1])
			o.post(signal{kind: sigChatted, gen: gen, cres: res, err: err})
		}()
	default:
		o.deliver(ctx, text)
	}
}

func (o *Orchestrator) onChatted(ctx context.Context, s signal) {
	if s.err != nil {
		o.notifier.Error(s.err.Error())
		o.setStatus(Idle)
		return
	}
	o.history.Append("assistant", s.cres.Response)
	o.deliver(ctx, s.cres.Response)
}

// deliver injects the final text and notifies, then returns the actor
// to idle. Injection shells out with its own timeouts, so it runs off
// the loop.
func (o *Orchestrator) deliver(ctx context.Context, text string) {
	gen := o.gen
	go func() {
		if err := o.injector.Inject(ctx, text); err != nil {
			log.Printf("Orchestrator: injection failed: %v", err)
			o.notifier.Error("could not deliver text")
		} else {
			o.notifier.Result(text)
		}
		o.post(signal{kind: sigDispatched, gen: gen})
	}()
}

// History exposes the chat window for status surfaces.
func (o *Orchestrator) History() *chat.History {
	return o.history
}
