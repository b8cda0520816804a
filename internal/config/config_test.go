package config

import (
	"testing"
)

// mockKeychain is a test double for the keychain interface.
type mockKeychain struct {
	values map[string]string
	err    error
}

func (m mockKeychain) Get(service, account string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.values[account], nil
}

// mockBackend is an in-memory ConfigBackend for tests.
type mockBackend struct {
	data map[string]any
}

func (b *mockBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	s, isStr := v.(string)
	if !isStr {
		return "", false, nil
	}
	return s, true, nil
}

func (b *mockBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	i, isInt := v.(int)
	if !isInt {
		return 0, false, nil
	}
	return i, true, nil
}

func (b *mockBackend) SetString(key, val string) error { b.data[key] = val; return nil }
func (b *mockBackend) SetInt(key string, val int) error {
	b.data[key] = val
	return nil
}
func (b *mockBackend) Delete(key string) error { delete(b.data, key); return nil }

func emptyBackend() *mockBackend {
	return &mockBackend{data: make(map[string]any)}
}

// TestDefaults verifies default values survive an empty backend.
func TestDefaults(t *testing.T) {
	t.Setenv("JARVIS_TELEGRAM_TOKEN", "test-token")

	cfg, err := loadWith(emptyBackend(), mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want 4000", cfg.Server.Port)
	}
	if cfg.Server.MCPPort != 4001 {
		t.Errorf("Server.MCPPort = %d, want 4001", cfg.Server.MCPPort)
	}
	if cfg.LLM.BaseURL != "http://localhost:11434" {
		t.Errorf("LLM.BaseURL = %q, want %q", cfg.LLM.BaseURL, "http://localhost:11434")
	}
	if cfg.LLM.ChatModel != "mistral-nemo" {
		t.Errorf("LLM.ChatModel = %q, want %q", cfg.LLM.ChatModel, "mistral-nemo")
	}
	if cfg.Sync.SweepInterval != "1m" {
		t.Errorf("Sync.SweepInterval = %q, want %q", cfg.Sync.SweepInterval, "1m")
	}
	if cfg.Telegram.DigestHour != 6 {
		t.Errorf("Telegram.DigestHour = %d, want 6", cfg.Telegram.DigestHour)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
}

// TestBackendValues verifies backend values replace defaults.
func TestBackendValues(t *testing.T) {
	t.Setenv("JARVIS_TELEGRAM_TOKEN", "test-token")

	b := &mockBackend{data: map[string]any{
		"server.port":     5000,
		"server.mcp_port": 5001,
		"llm.base_url":    "http://custom:11434",
		"llm.chat_model":  "custom-chat",
		"storage.data_dir": "/tmp/jarvis-test",
	}}

	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Server.MCPPort != 5001 {
		t.Errorf("Server.MCPPort = %d, want 5001", cfg.Server.MCPPort)
	}
	if cfg.LLM.BaseURL != "http://custom:11434" {
		t.Errorf("LLM.BaseURL = %q", cfg.LLM.BaseURL)
	}
	if cfg.LLM.ChatModel != "custom-chat" {
		t.Errorf("LLM.ChatModel = %q", cfg.LLM.ChatModel)
	}
	if cfg.Storage.DataDir != "/tmp/jarvis-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
}

// TestEnvOverride verifies that environment variables win over backend values.
func TestEnvOverride(t *testing.T) {
	t.Setenv("JARVIS_TELEGRAM_TOKEN", "test-token")
	t.Setenv("JARVIS_LLM_BASE_URL", "http://env:11434")

	b := &mockBackend{data: map[string]any{
		"llm.base_url": "http://backend:11434",
	}}

	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LLM.BaseURL != "http://env:11434" {
		t.Errorf("LLM.BaseURL = %q, want %q", cfg.LLM.BaseURL, "http://env:11434")
	}
}

// TestMissingTokenIsAllowed verifies the config loads without a bot token so
// the server can run API-only.
func TestMissingTokenIsAllowed(t *testing.T) {
	t.Setenv("JARVIS_TELEGRAM_TOKEN", "")

	cfg, err := loadWith(emptyBackend(), mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Telegram.Token != "" {
		t.Errorf("Telegram.Token = %q, want empty", cfg.Telegram.Token)
	}
}

// TestKeychainFallback verifies the secret store is consulted when no token is
// in backend or env.
func TestKeychainFallback(t *testing.T) {
	t.Setenv("JARVIS_TELEGRAM_TOKEN", "")
	t.Setenv("JARVIS_LLM_API_KEY", "")

	kc := mockKeychain{values: map[string]string{
		"telegram_token": "keychain-token",
		"llm_api_key":    "keychain-key",
	}}
	cfg, err := loadWith(emptyBackend(), kc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Telegram.Token != "keychain-token" {
		t.Errorf("Telegram.Token = %q, want %q", cfg.Telegram.Token, "keychain-token")
	}
	if cfg.LLM.APIKey != "keychain-key" {
		t.Errorf("LLM.APIKey = %q, want %q", cfg.LLM.APIKey, "keychain-key")
	}
}
