package tui

import (
	"fmt"

	"github.com/mmkontis/whisperme/internal/config"
	"github.com/mmkontis/whisperme/internal/language"
)

func formatConnectionLabel(cfg *config.Config) string {
	return fmt.Sprintf("Connection (%s)", cfg.Backend.BaseURL)
}

func formatTranscriptionLabel(cfg *config.Config) string {
	return fmt.Sprintf("Transcription (%s)", formatTranscriptionSummary(cfg))
}

func formatTranscriptionSummary(cfg *config.Config) string {
	lang := language.FromCode(cfg.Transcription.Language).Name
	return fmt.Sprintf("%s, %s, %s", providerDisplayName(cfg.Transcription.Provider), cfg.Transcription.Model, lang)
}

func formatChatLabel(cfg *config.Config) string {
	return fmt.Sprintf("Chat Mode (%s)", formatChatSummary(cfg))
}

func formatChatSummary(cfg *config.Config) string {
	if !cfg.Chat.Enabled {
		return "disabled"
	}
	summary := fmt.Sprintf("%s, %s", providerDisplayName(cfg.Chat.Provider), cfg.Chat.Model)
	if cfg.Chat.EnableFunctions {
		summary += ", functions"
	}
	return summary
}

func formatInjectionLabel(cfg *config.Config) string {
	return fmt.Sprintf("Injection (%s)", cfg.Injection.Mode)
}

func formatNotificationsLabel(cfg *config.Config) string {
	return fmt.Sprintf("Notifications (%s)", formatNotificationsSummary(cfg))
}

func formatNotificationsSummary(cfg *config.Config) string {
	if !cfg.Notifications.Enabled {
		return "disabled"
	}
	return cfg.Notifications.Type
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}
