package recording

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Frame is a chunk of raw PCM read from the capture process.
type Frame struct {
	Data      []byte
	Timestamp time.Time
}

type Options struct {
	SampleRate int
	Channels   int
	Format     string
	ReadSize   int
	Device     string
	FrameQueue int
}

func DefaultOptions() Options {
	return Options{
		SampleRate: 16000,
		Channels:   1,
		Format:     "s16le",
		ReadSize:   4096,
		FrameQueue: 20,
	}
}

func (o Options) validate() error {
	if o.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", o.SampleRate)
	}
	if o.Channels <= 0 {
		return fmt.Errorf("invalid channel count: %d", o.Channels)
	}
	if o.ReadSize <= 0 {
		return fmt.Errorf("invalid read size: %d", o.ReadSize)
	}
	if o.FrameQueue <= 0 {
		return fmt.Errorf("invalid frame queue size: %d", o.FrameQueue)
	}
	if o.Format == "" {
		return errors.New("format not set")
	}
	return nil
}

// Recorder captures microphone audio through pw-record and streams it
// as frames. One capture session at a time.
type Recorder struct {
	opts   Options
	active atomic.Bool

	mu     sync.Mutex // guards cmd and cancel
	cmd    *exec.Cmd
	cancel context.CancelFunc

	wg sync.WaitGroup
}

func NewRecorder(opts Options) *Recorder {
	return &Recorder{opts: opts}
}

func (r *Recorder) Active() bool {
	return r.active.Load()
}

// Start launches pw-record and returns the frame and error channels.
// Both channels are closed when the session ends.
func (r *Recorder) Start(ctx context.Context) (<-chan Frame, <-chan error, error) {
	if r.active.Load() {
		return nil, nil, errors.New("capture already running")
	}
	if err := r.opts.validate(); err != nil {
		return nil, nil, err
	}
	if err := CheckPipeWire(ctx); err != nil {
		return nil, nil, fmt.Errorf("pipewire unavailable: %w", err)
	}

	sessionCtx, cancel := context.WithCancel(ctx)

	frames := make(chan Frame, r.opts.FrameQueue)
	errs := make(chan error, 1)

	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	r.active.Store(true)
	r.wg.Add(1)
	go r.capture(sessionCtx, frames, errs)

	return frames, errs, nil
}

// Stop ends the current session. Safe to call when idle.
func (r *Recorder) Stop() {
	if !r.active.Load() {
		return
	}
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the capture goroutine has exited.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) capture(ctx context.Context, frames chan<- Frame, errs chan<- error) {
	defer func() {
		close(frames)
		close(errs)
		r.active.Store(false)

		// Reap the child before letting another session start.
		r.mu.Lock()
		if r.cmd != nil {
			_ = r.cmd.Wait()
			r.cmd = nil
		}
		r.cancel = nil
		r.mu.Unlock()

		r.wg.Done()
	}()

	cmd := exec.CommandContext(ctx, "pw-record", r.args()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.fail(errs, fmt.Errorf("stdout pipe: %w", err))
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		r.fail(errs, fmt.Errorf("stderr pipe: %w", err))
		return
	}

	r.mu.Lock()
	r.cmd = cmd
	r.mu.Unlock()

	if err := cmd.Start(); err != nil {
		r.fail(errs, fmt.Errorf("start pw-record: %w", err))
		return
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			log.Printf("Recording: pw-record: %s", scanner.Text())
		}
	}()

	buf := make([]byte, r.opts.ReadSize)
	dropped := 0
	lastDropLog := time.Now()

	for {
		n, readErr := stdout.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])

			select {
			case frames <- Frame{Data: data, Timestamp: time.Now()}:
			case <-ctx.Done():
				return
			default:
				dropped++
				if time.Since(lastDropLog) > time.Second {
					log.Printf("Recording: dropped %d frames, consumer too slow", dropped)
					lastDropLog = time.Now()
					dropped = 0
				}
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return
			}
			r.fail(errs, fmt.Errorf("read audio: %w", readErr))
			return
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (r *Recorder) fail(errs chan<- error, err error) {
	select {
	case errs <- err:
	default:
	}
	log.Printf("Recording error: %v", err)
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (r *Recorder) args() []string {
	args := []string{
		"--format", r.opts.Format,
		"--rate", strconv.Itoa(r.opts.SampleRate),
		"--channels", strconv.Itoa(r.opts.Channels),
		"-",
	}
	if r.opts.Device != "" {
		args = append(args, "--target", r.opts.Device)
	}
	return args
}

// CheckPipeWire verifies pw-record exists and the daemon answers.
func CheckPipeWire(ctx context.Context) error {
	if _, err := exec.LookPath("pw-record"); err != nil {
		return fmt.Errorf("pw-record not found: %w (install pipewire-tools)", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := exec.CommandContext(checkCtx, "pw-cli", "info").Run(); err != nil {
		return fmt.Errorf("pipewire not responding: %w", err)
	}
	return nil
}
