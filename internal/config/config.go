package config

import (
	"fmt"
	"os"
	"strings"
)

type Config struct {
	Server   ServerConfig
	LLM      LLMConfig
	Telegram TelegramConfig
	Storage  StorageConfig
	Sync     SyncConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port      int
	MCPPort   int
	AuthToken string
}

type LLMConfig struct {
	BaseURL    string
	APIKey     string
	ChatModel  string
	ImageModel string
}

type TelegramConfig struct {
	Token string
	// DigestHour is the UTC hour of the daily schedule digest.
	DigestHour int
}

type StorageConfig struct {
	DataDir string
}

type SyncConfig struct {
	DownloadDir   string
	SweepInterval string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port:    4000,
			MCPPort: 4001,
		},
		LLM: LLMConfig{
			BaseURL:    "http://localhost:11434",
			ChatModel:  "mistral-nemo",
			ImageModel: "dall-e-3",
		},
		Telegram: TelegramConfig{
			DigestHour: 6,
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Sync: SyncConfig{
			SweepInterval: "1m",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.jarvis.app) and secrets
// fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/jarvis/config.json
// and secrets must be provided via environment variables.
//
// Environment variables (JARVIS_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts Keychain access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Try platform keychain for secrets still empty after env overrides.
	if cfg.Telegram.Token == "" {
		if tok, err := kc.Get("jarvis", "telegram_token"); err == nil && tok != "" {
			cfg.Telegram.Token = tok
		}
	}
	if cfg.LLM.APIKey == "" {
		if key, err := kc.Get("jarvis", "llm_api_key"); err == nil && key != "" {
			cfg.LLM.APIKey = key
		}
	}

	// The token stays optional: without it the server runs API-only and
	// the caller decides whether to start the bot.
	if cfg.Telegram.Token == "" {
		fmt.Fprintf(os.Stderr, "[WARN] no Telegram bot token configured. "+
			"Set it via environment variable JARVIS_TELEGRAM_TOKEN%s\n",
			secretHint("telegram_token"))
	}

	return cfg, nil
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
