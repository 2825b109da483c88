package internal

import (
	"strings"
	"testing"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if !cfg.Options.AutoExpand {
		t.Error("auto-expand should default on")
	}
	if cfg.Options.ThumbWidth != 150 || cfg.Options.Quality != 0.8 {
		t.Errorf("image defaults = (%d, %v), want (150, 0.8)", cfg.Options.ThumbWidth, cfg.Options.Quality)
	}
	if cfg.Remote.Enabled {
		t.Error("remote mirroring should default off")
	}
}

func TestOptionsConfig_Bounds(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Options.Quality = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("quality above 1.0 should fail")
	}
	cfg = NewDefaultConfig()
	cfg.Options.ThumbWidth = 8
	if err := cfg.Validate(); err == nil {
		t.Fatal("thumb width below 16 should fail")
	}
}

func TestRemoteConfig_IgnoredWhenDisabled(t *testing.T) {
	cfg := RemoteConfig{Enabled: false}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled remote should skip validation: %v", err)
	}
}

func TestRemoteConfig_RequiresConnectionDetails(t *testing.T) {
	cfg := RemoteConfig{Enabled: true}
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled remote without user id should fail")
	}

	cfg = RemoteConfig{Enabled: true, UserID: "u1"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled remote without redis url should fail")
	}

	cfg = RemoteConfig{
		Enabled: true,
		UserID:  "u1",
		Redis:   RedisConfig{URL: "redis://localhost:6379"},
		Minio: MinioConfig{
			Endpoint:  "localhost:9000",
			AccessKey: "ak",
			SecretKey: "sk",
			Bucket:    "stacks",
		},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("complete remote config should pass: %v", err)
	}
}

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}
