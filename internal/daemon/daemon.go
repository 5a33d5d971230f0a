package daemon

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/mmkontis/whisperme/internal/bus"
	"github.com/mmkontis/whisperme/internal/chat"
	"github.com/mmkontis/whisperme/internal/config"
	"github.com/mmkontis/whisperme/internal/deeplink"
	"github.com/mmkontis/whisperme/internal/hotkey"
	"github.com/mmkontis/whisperme/internal/injection"
	"github.com/mmkontis/whisperme/internal/notify"
	"github.com/mmkontis/whisperme/internal/orchestrator"
	"github.com/mmkontis/whisperme/internal/recording"
	"github.com/mmkontis/whisperme/internal/session"
	"github.com/mmkontis/whisperme/internal/transcriber"
)

// Daemon owns the long-running process: control socket, hotkey state
// machine, recording orchestrator and the local session.
type Daemon struct {
	manager  *config.Manager
	sessions *session.Store
	notifier notify.Notifier
	orch     *orchestrator.Orchestrator
	machine  *hotkey.Machine
	keys     *hotkey.ChanSource
	links    *deeplink.Handler

	ctx    context.Context
	cancel context.CancelFunc
}

func New() (*Daemon, error) {
	manager, err := config.NewManager()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := manager.Get()

	sessionPath, err := session.DefaultPath()
	if err != nil {
		return nil, err
	}
	sessions, err := session.NewStore(sessionPath)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	notifier := notify.New(cfg.Notifications.Enabled, cfg.Notifications.Type)

	deviceID, err := config.DeviceID()
	if err != nil {
		return nil, err
	}

	tr, err := transcriber.NewAdapter(cfg.ToTranscriberConfig(deviceID))
	if err != nil {
		return nil, fmt.Errorf("transcriber: %w", err)
	}

	// Built even with chat disabled so enabling it via a config reload
	// works without a restart. Construction failures only matter when
	// chat is actually on.
	var chatter chat.Adapter
	if c, err := chat.NewAdapter(cfg.ToChatConfig()); err == nil {
		chatter = c
	} else if cfg.Chat.Enabled {
		return nil, fmt.Errorf("chat: %w", err)
	}

	recorder := recording.NewRecorder(cfg.ToRecordingOptions())
	injector := injection.New(cfg.ToInjectionConfig())

	orch := orchestrator.New(sessions, recorder, tr, chatter, injector, notifier, cfg.ToRecordingOptions())

	machine := hotkey.NewMachine(hotkey.Callbacks{
		OnStart:  orch.Start,
		OnStop:   orch.Stop,
		OnCancel: orch.Cancel,
		OnModeChange: func(m hotkey.Mode) {
			log.Printf("Daemon: recording mode %s", m)
		},
	},
		func() bool { return manager.Get().Chat.Enabled },
		func() bool { return orch.Status() != orchestrator.Idle },
	)

	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		manager:  manager,
		sessions: sessions,
		notifier: notifier,
		orch:     orch,
		machine:  machine,
		keys:     hotkey.NewChanSource(64),
		links:    deeplink.NewHandler(cfg.Backend.WebAppURL, sessions, notifier),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

func (d *Daemon) Run() error {
	if err := bus.CheckExistingDaemon(); err != nil {
		return err
	}

	ln, err := bus.Listen()
	if err != nil {
		return err
	}
	defer ln.Close()

	if err := bus.CreatePidFile(); err != nil {
		return fmt.Errorf("create PID file: %w", err)
	}
	defer bus.RemovePidFile()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	go func() {
		sig := <-sigCh
		log.Printf("Daemon: received %v, shutting down", sig)
		d.cancel()
	}()

	if err := d.manager.StartWatching(d.ctx); err != nil {
		log.Printf("Daemon: config watching unavailable: %v", err)
	}
	defer d.manager.Stop()

	go d.orch.Run(d.ctx)
	go func() {
		if err := d.machine.Run(d.ctx, d.keys); err != nil && d.ctx.Err() == nil {
			log.Printf("Daemon: hotkey loop ended: %v", err)
		}
	}()

	go func() {
		<-d.ctx.Done()
		ln.Close()
	}()

	log.Printf("Daemon: listening on control socket")

	for {
		c, err := ln.Accept()
		if err != nil {
			if d.ctx.Err() != nil {
				log.Printf("Daemon: shutdown requested")
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go d.handle(c)
	}
}

func (d *Daemon) handle(c net.Conn) {
	defer c.Close()

	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		fmt.Fprintf(c, "ERR read_error: %v\n", err)
		return
	}
	line = strings.TrimRight(line, "\n")
	if line == "" {
		fmt.Fprint(c, "ERR empty\n")
		return
	}

	cmd := line[0]
	arg := ""
	if len(line) > 2 {
		arg = line[2:]
	}

	switch cmd {
	case 's':
		fmt.Fprintf(c, "STATUS status=%s connected=%t\n", d.orch.Status(), d.sessions.Connected())
	case 'v':
		fmt.Fprintf(c, "STATUS proto=%s\n", bus.ProtoVer)
	case 'q':
		fmt.Fprint(c, "OK quitting\n")
		d.cancel()
	case 'c':
		d.connect(c, arg)
	case 'd':
		d.disconnect(c)
	case 'h':
		d.connectionInfo(c)
	case 'k':
		d.keyEvent(c, arg)
	default:
		log.Printf("Daemon: unknown command: %c", cmd)
		fmt.Fprintf(c, "ERR unknown=%q\n", cmd)
	}
}

func (d *Daemon) connect(c net.Conn, rawURL string) {
	if rawURL == "" {
		fmt.Fprint(c, "ERR missing_url\n")
		return
	}
	if err := d.links.Handle(d.ctx, rawURL); err != nil {
		fmt.Fprintf(c, "ERR connect_failed: %v\n", err)
		return
	}
	s := d.sessions.Get()
	fmt.Fprintf(c, "OK connected email=%s\n", s.Email)
}

func (d *Daemon) disconnect(c net.Conn) {
	if err := d.sessions.Clear(); err != nil {
		fmt.Fprintf(c, "ERR disconnect_failed: %v\n", err)
		return
	}
	d.notifier.Disconnected()
	fmt.Fprint(c, "OK disconnected\n")
}

func (d *Daemon) connectionInfo(c net.Conn) {
	s := d.sessions.Get()
	if !s.Connected {
		fmt.Fprint(c, "STATUS connected=false\n")
		return
	}
	fmt.Fprintf(c, "STATUS connected=true user=%s email=%s\n", s.UserID, s.Email)
}

// keyEvent feeds a raw key transition into the hotkey machine. Format:
// "<code> press" or "<code> release", wired from compositor keybinds.
func (d *Daemon) keyEvent(c net.Conn, arg string) {
	fields := strings.Fields(arg)
	if len(fields) != 2 {
		fmt.Fprint(c, "ERR key_syntax\n")
		return
	}
	code, err := strconv.ParseUint(fields[0], 10, 16)
	if err != nil {
		fmt.Fprintf(c, "ERR key_code: %v\n", err)
		return
	}

	var kind hotkey.Kind
	switch fields[1] {
	case "press":
		kind = hotkey.Press
	case "release":
		kind = hotkey.Release
	default:
		fmt.Fprintf(c, "ERR key_kind=%q\n", fields[1])
		return
	}

	d.keys.Send(d.ctx, hotkey.KeyEvent{Code: uint16(code), Kind: kind})
	fmt.Fprint(c, "OK key\n")
}
