package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/mmkontis/whisperme/internal/bus"
	"github.com/mmkontis/whisperme/internal/config"
	"github.com/mmkontis/whisperme/internal/daemon"
	"github.com/mmkontis/whisperme/internal/deps"
	"github.com/mmkontis/whisperme/internal/server"
	"github.com/mmkontis/whisperme/internal/token"
	"github.com/mmkontis/whisperme/internal/tui"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "whisperme",
	Short: "Voice transcription and dictation for Linux",
	Long: `whisperme turns speech into text anywhere you can type.
Hold Fn to dictate, Fn+Shift to talk to the assistant. The daemon
listens for key events, records through PipeWire, transcribes via the
WhisperMe cloud or OpenAI directly, and types the result into the
focused window.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(
		serveCmd(),
		serverCmd(),
		statusCmd(),
		versionCmd(),
		stopCmd(),
		connectCmd(),
		disconnectCmd(),
		accountCmd(),
		keyCmd(),
		configureCmd(),
		doctorCmd(),
	)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the desktop daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := daemon.New()
			if err != nil {
				return fmt.Errorf("failed to create daemon: %w", err)
			}
			return d.Run()
		},
	}
}

func serverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Run the connection-token HTTP server",
		Long: `Runs the backend endpoint that issues one-time connection tokens
for the web dashboard and verifies them for desktop clients.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			store, err := token.OpenSQLite(cfg.Server.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open token store: %w", err)
			}
			defer store.Close()

			identity := token.NewHTTPIdentityProvider(cfg.Server.IdentityURL, cfg.Server.AdminKey)
			svc := token.NewService(store, identity)
			srv := server.New(svc, identity)

			log.Printf("Server: listening on %s (db %s)", cfg.Server.Addr, cfg.Server.DBPath)
			return http.ListenAndServe(cfg.Server.Addr, srv.Router())
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get current daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand('s')
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			fmt.Println(resp)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Get protocol version",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand('v')
			if err != nil {
				return fmt.Errorf("failed to get version: %w", err)
			}
			fmt.Println(resp)
			return nil
		},
	}
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand('q')
			if err != nil {
				return fmt.Errorf("failed to stop daemon: %w", err)
			}
			fmt.Println(resp)
			return nil
		},
	}
}

func connectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect <url>",
		Short: "Link this machine to a WhisperMe account",
		Long: `Handles a whisperme://connect deep link. The browser invokes this
command through the URL scheme handler after login; it can also be run
by hand with a link copied from the dashboard.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommandArg('c', args[0])
			if err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}
			fmt.Println(resp)
			return nil
		},
	}
}

func disconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Unlink this machine from its WhisperMe account",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand('d')
			if err != nil {
				return fmt.Errorf("failed to disconnect: %w", err)
			}
			fmt.Println(resp)
			return nil
		},
	}
}

func accountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "account",
		Short: "Show the linked account",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand('h')
			if err != nil {
				return fmt.Errorf("failed to query account: %w", err)
			}
			fmt.Println(resp)
			return nil
		},
	}
}

func keyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "key <code> <press|release>",
		Short: "Feed a key event to the daemon",
		Long: `Feeds a raw key event into the daemon's hotkey state machine.
Intended for compositor keybindings and scripting; code is the
numeric key code (63 for Fn, 56/60 for Shift).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := strconv.Atoi(args[0]); err != nil {
				return fmt.Errorf("invalid key code %q", args[0])
			}
			kind := strings.ToLower(args[1])
			if kind != "press" && kind != "release" {
				return fmt.Errorf("invalid event kind %q, want press or release", args[1])
			}
			resp, err := bus.SendCommandArg('k', args[0]+" "+kind)
			if err != nil {
				return fmt.Errorf("failed to send key event: %w", err)
			}
			fmt.Println(resp)
			return nil
		},
	}
}

func configureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Interactive configuration setup",
		Long: `Interactive configuration wizard.
This will guide you through setting up:
- Backend connection and web app URLs
- Transcription provider, language and model
- Chat mode and function calling
- Text injection and notification preferences`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure()
		},
	}
}

func runConfigure() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	result, err := tui.Run(cfg)
	if err != nil {
		return fmt.Errorf("configuration wizard error: %w", err)
	}

	if result.Cancelled {
		fmt.Println("Configuration cancelled.")
		return nil
	}

	if err := config.Save(result.Config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println("Configuration saved.")
	fmt.Println("Restart the daemon to pick up hotkey and server changes; the rest reloads live.")
	return nil
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check required external tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			missing := 0
			for _, st := range deps.CheckAll() {
				if st.Installed {
					version := st.Version
					if version == "" {
						version = "installed"
					}
					fmt.Printf("  ok      %-12s %s\n", st.Name, version)
					continue
				}
				missing++
				fmt.Printf("  MISSING %-12s %s\n", st.Name, st.Purpose)
			}
			if missing > 0 {
				return fmt.Errorf("%d required tool(s) missing", missing)
			}
			fmt.Println("All external tools found.")
			return nil
		},
	}
}
