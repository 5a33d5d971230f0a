package tui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mmkontis/whisperme/internal/config"
	"github.com/mmkontis/whisperme/internal/language"
	"github.com/muesli/termenv"
)

// ConfigureResult holds the configuration result from the TUI
type ConfigureResult struct {
	Config    *config.Config
	Cancelled bool
}

// ConfigSection represents a configuration section
type ConfigSection string

const (
	SectionConnection    ConfigSection = "connection"
	SectionTranscription ConfigSection = "transcription"
	SectionChat          ConfigSection = "chat"
	SectionInjection     ConfigSection = "injection"
	SectionNotifications ConfigSection = "notifications"
	SectionSaveExit      ConfigSection = "save_exit"
	SectionDiscardExit   ConfigSection = "discard_exit"
)

// providerDisplayNames maps provider IDs to human-readable names
var providerDisplayNames = map[string]string{
	"backend": "WhisperMe Cloud",
	"openai":  "OpenAI (direct)",
}

func providerDisplayName(name string) string {
	if display, ok := providerDisplayNames[name]; ok {
		return display
	}
	return name
}

// Interactive reports whether stdout is a color-capable terminal.
// The wizard refuses to run on pipes and dumb terminals.
func Interactive() bool {
	out := termenv.NewOutput(os.Stdout)
	return out.TTY() != nil && out.Profile != termenv.Ascii
}

// Run starts the configuration wizard on the given config.
// The caller persists the result; Run only mutates the in-memory config.
func Run(cfg *config.Config) (*ConfigureResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if !Interactive() {
		return nil, fmt.Errorf("configure requires an interactive terminal")
	}

	for {
		clearScreen()
		fmt.Println(Logo())
		fmt.Println()

		section, err := selectSection(cfg)
		if err != nil {
			return &ConfigureResult{Cancelled: true}, nil
		}

		switch section {
		case SectionSaveExit:
			confirmed, err := showSummary(cfg)
			if err != nil {
				return &ConfigureResult{Cancelled: true}, nil
			}
			if confirmed {
				if err := cfg.Validate(); err != nil {
					fmt.Println(StyleError.Render(fmt.Sprintf("Invalid configuration: %v", err)))
					fmt.Println(StyleMuted.Render("Press enter to go back."))
					fmt.Scanln()
					continue
				}
				return &ConfigureResult{Config: cfg, Cancelled: false}, nil
			}

		case SectionDiscardExit:
			return &ConfigureResult{Cancelled: true}, nil

		case SectionConnection:
			if err := editConnection(cfg); err != nil {
				continue
			}

		case SectionTranscription:
			if err := editTranscription(cfg); err != nil {
				continue
			}

		case SectionChat:
			if err := editChat(cfg); err != nil {
				continue
			}

		case SectionInjection:
			if err := editInjection(cfg); err != nil {
				continue
			}

		case SectionNotifications:
			if err := editNotifications(cfg); err != nil {
				continue
			}
		}
	}
}

func selectSection(cfg *config.Config) (ConfigSection, error) {
	options := []huh.Option[ConfigSection]{
		huh.NewOption(formatConnectionLabel(cfg), SectionConnection),
		huh.NewOption(formatTranscriptionLabel(cfg), SectionTranscription),
		huh.NewOption(formatChatLabel(cfg), SectionChat),
		huh.NewOption(formatInjectionLabel(cfg), SectionInjection),
		huh.NewOption(formatNotificationsLabel(cfg), SectionNotifications),
		huh.NewOption("Save & Exit", SectionSaveExit),
		huh.NewOption("Discard & Exit", SectionDiscardExit),
	}

	var selected ConfigSection
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[ConfigSection]().
				Title("Configuration Menu").
				Description("↑/↓ navigate • enter select • esc cancel").
				Options(options...).
				Value(&selected),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return "", err
	}

	return selected, nil
}

func editConnection(cfg *config.Config) error {
	baseURL := cfg.Backend.BaseURL
	webAppURL := cfg.Backend.WebAppURL

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API Base URL").
				Description("WhisperMe backend used for transcription and chat").
				Value(&baseURL).
				Validate(requireNonEmpty("API base URL")),
			huh.NewInput().
				Title("Web App URL").
				Description("Opened in the browser for login and account linking").
				Value(&webAppURL).
				Validate(requireNonEmpty("web app URL")),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Backend.BaseURL = baseURL
	cfg.Backend.WebAppURL = webAppURL
	return nil
}

func editTranscription(cfg *config.Config) error {
	provider := cfg.Transcription.Provider
	if provider == "" {
		provider = "backend"
	}
	apiKey := cfg.Transcription.APIKey
	lang := cfg.Transcription.Language
	model := cfg.Transcription.Model
	prompt := cfg.Transcription.Prompt

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Transcription Provider").
				Options(
					huh.NewOption(providerDisplayName("backend"), "backend"),
					huh.NewOption(providerDisplayName("openai"), "openai"),
				).
				Value(&provider),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("OpenAI API Key").
				Description("Only used with the direct OpenAI provider; leave empty to read OPENAI_API_KEY").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
		).WithHideFunc(func() bool { return provider != "openai" }),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Language").
				Description("Transcription language hint").
				Options(languageOptions()...).
				Value(&lang),
			huh.NewInput().
				Title("Model").
				Description("Transcription model identifier").
				Value(&model),
			huh.NewInput().
				Title("Prompt").
				Description("Optional context prompt sent with each transcription").
				Value(&prompt),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Transcription.Provider = provider
	cfg.Transcription.APIKey = apiKey
	cfg.Transcription.Language = lang
	cfg.Transcription.Model = model
	cfg.Transcription.Prompt = prompt
	return nil
}

func editChat(cfg *config.Config) error {
	enabled := cfg.Chat.Enabled
	provider := cfg.Chat.Provider
	if provider == "" {
		provider = "backend"
	}
	apiKey := cfg.Chat.APIKey
	model := cfg.Chat.Model
	functions := cfg.Chat.EnableFunctions

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable Chat Mode").
				Description("Fn+Shift sends the transcript to the assistant instead of typing it").
				Value(&enabled),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Chat Provider").
				Options(
					huh.NewOption(providerDisplayName("backend"), "backend"),
					huh.NewOption(providerDisplayName("openai"), "openai"),
				).
				Value(&provider),
			huh.NewInput().
				Title("Chat Model").
				Value(&model),
			huh.NewConfirm().
				Title("Enable Functions").
				Description("Allow the assistant to return structured function calls").
				Value(&functions),
		).WithHideFunc(func() bool { return !enabled }),
		huh.NewGroup(
			huh.NewInput().
				Title("OpenAI API Key").
				Description("Only used with the direct OpenAI provider; leave empty to read OPENAI_API_KEY").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
		).WithHideFunc(func() bool { return !enabled || provider != "openai" }),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Chat.Enabled = enabled
	cfg.Chat.Provider = provider
	cfg.Chat.APIKey = apiKey
	cfg.Chat.Model = model
	cfg.Chat.EnableFunctions = functions
	return nil
}

func editInjection(cfg *config.Config) error {
	mode := cfg.Injection.Mode
	restore := cfg.Injection.RestoreClipboard

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Injection Mode").
				Description("How transcribed text reaches the focused window").
				Options(
					huh.NewOption("Clipboard only (wl-copy)", "clipboard"),
					huh.NewOption("Type directly (wtype)", "type"),
					huh.NewOption("Clipboard, then type (recommended)", "fallback"),
				).
				Value(&mode),
			huh.NewConfirm().
				Title("Restore Clipboard").
				Description("Put the previous clipboard contents back after injecting").
				Value(&restore),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Injection.Mode = mode
	cfg.Injection.RestoreClipboard = restore
	return nil
}

func editNotifications(cfg *config.Config) error {
	enabled := cfg.Notifications.Enabled
	typ := cfg.Notifications.Type

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable Notifications").
				Value(&enabled),
			huh.NewSelect[string]().
				Title("Notification Type").
				Options(
					huh.NewOption("Desktop (notify-send)", "desktop"),
					huh.NewOption("Log only", "log"),
					huh.NewOption("None", "none"),
				).
				Value(&typ),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Notifications.Enabled = enabled
	cfg.Notifications.Type = typ
	return nil
}

func showSummary(cfg *config.Config) (bool, error) {
	fmt.Println()
	fmt.Println(StyleHeader.Render("Configuration Summary"))
	fmt.Printf("  Backend:        %s\n", cfg.Backend.BaseURL)
	fmt.Printf("  Transcription:  %s\n", formatTranscriptionSummary(cfg))
	fmt.Printf("  Chat:           %s\n", formatChatSummary(cfg))
	fmt.Printf("  Injection:      %s\n", cfg.Injection.Mode)
	fmt.Printf("  Notifications:  %s\n", formatNotificationsSummary(cfg))
	fmt.Println()

	confirmed := true
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save this configuration?").
				Value(&confirmed),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return false, err
	}
	return confirmed, nil
}

func languageOptions() []huh.Option[string] {
	langs := language.List()
	options := make([]huh.Option[string], 0, len(langs))
	for _, l := range langs {
		options = append(options, huh.NewOption(l.Name, l.Code))
	}
	return options
}

func requireNonEmpty(field string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s cannot be empty", field)
		}
		return nil
	}
}

// clearScreen clears the terminal screen
func clearScreen() {
	output := termenv.NewOutput(os.Stdout)
	output.ClearScreen()
}
