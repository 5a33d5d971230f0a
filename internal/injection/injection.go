package injection

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	ModeClipboard = "clipboard"
	ModeType      = "type"
	ModeFallback  = "fallback"
)

// Injector delivers transcribed or generated text to the focused
// application.
type Injector interface {
	Inject(ctx context.Context, text string) error
}

type Config struct {
	Mode             string
	RestoreClipboard bool
	TypeTimeout      time.Duration
	ClipboardTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Mode:             ModeFallback,
		RestoreClipboard: true,
		TypeTimeout:      5 * time.Second,
		ClipboardTimeout: 3 * time.Second,
	}
}

type injector struct {
	cfg Config

	// overridable in tests
	run  func(ctx context.Context, stdin string, name string, args ...string) (string, error)
	look func(name string) (string, error)
}

func New(cfg Config) Injector {
	return &injector{cfg: cfg, run: runCommand, look: exec.LookPath}
}

func NewDefault() Injector {
	return New(DefaultConfig())
}

func (i *injector) Inject(ctx context.Context, text string) error {
	if text == "" {
		return errors.New("nothing to inject")
	}

	switch i.cfg.Mode {
	case ModeClipboard:
		return i.copyToClipboard(ctx, text)
	case ModeType:
		return i.typeText(ctx, text)
	case ModeFallback:
		// Clipboard first so the text survives even when typing fails.
		if err := i.copyToClipboard(ctx, text); err != nil {
			return err
		}
		if err := i.typeText(ctx, text); err != nil {
			// Text is on the clipboard, treat as delivered.
			return nil
		}
		return nil
	default:
		return fmt.Errorf("unsupported injection mode: %s", i.cfg.Mode)
	}
}

func (i *injector) copyToClipboard(ctx context.Context, text string) error {
	if _, err := i.look("wl-copy"); err != nil {
		return fmt.Errorf("wl-copy not found: %w (install wl-clipboard)", err)
	}

	var previous string
	if i.cfg.RestoreClipboard {
		previous, _ = i.run(ctx, "", "wl-paste", "--no-newline")
	}

	clipCtx, cancel := context.WithTimeout(ctx, i.cfg.ClipboardTimeout)
	defer cancel()
	if _, err := i.run(clipCtx, text, "wl-copy"); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}

	if i.cfg.RestoreClipboard && previous != "" {
		go func() {
			time.Sleep(100 * time.Millisecond)
			restoreCtx, cancel := context.WithTimeout(context.Background(), i.cfg.ClipboardTimeout)
			defer cancel()
			i.run(restoreCtx, previous, "wl-copy")
		}()
	}
	return nil
}

func (i *injector) typeText(ctx context.Context, text string) error {
	if _, err := i.look("wtype"); err != nil {
		return fmt.Errorf("wtype not found: %w (install wtype)", err)
	}
	typeCtx, cancel := context.WithTimeout(ctx, i.cfg.TypeTimeout)
	defer cancel()
	if _, err := i.run(typeCtx, "", "wtype", text); err != nil {
		return fmt.Errorf("type text: %w", err)
	}
	return nil
}

func runCommand(ctx context.Context, stdin string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	out, err := cmd.Output()
	return string(out), err
}
