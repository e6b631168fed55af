package config

import (
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"
)

func setRequiredKeys(t *testing.T) {
	t.Helper()
	for _, k := range []string{"COOKIE_HASH_KEY", "COOKIE_BLOCK_KEY", "CRED_ENC_KEY"} {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			t.Fatal(err)
		}
		t.Setenv(k, base64.StdEncoding.EncodeToString(b))
	}
}

func TestFromEnvDefaults(t *testing.T) {
	setRequiredKeys(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.DayOffset != 1 {
		t.Errorf("DayOffset = %d, want 1", cfg.DayOffset)
	}
	if cfg.ReleaseSkew != 2*time.Second {
		t.Errorf("ReleaseSkew = %v, want 2s", cfg.ReleaseSkew)
	}
	if cfg.Schedule.MaxElapsed != 35*time.Second {
		t.Errorf("Schedule.MaxElapsed = %v, want 35s", cfg.Schedule.MaxElapsed)
	}
	if cfg.Schedule.FastAttempts != 30 || cfg.Schedule.SlowAttempts != 20 {
		t.Errorf("Schedule attempts = %d/%d, want 30/20", cfg.Schedule.FastAttempts, cfg.Schedule.SlowAttempts)
	}
	if len(cfg.CredEncKey) != 32 {
		t.Errorf("len(CredEncKey) = %d, want 32", len(cfg.CredEncKey))
	}
}

func TestFromEnvTuningOverrides(t *testing.T) {
	setRequiredKeys(t)
	t.Setenv("SNIPE_RELEASE_SKEW_MS", "3500")
	t.Setenv("SNIPE_DAY_OFFSET", "0")
	t.Setenv("SNIPE_MAX_ELAPSED_SECONDS", "60")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.ReleaseSkew != 3500*time.Millisecond {
		t.Errorf("ReleaseSkew = %v, want 3.5s", cfg.ReleaseSkew)
	}
	if cfg.DayOffset != 0 {
		t.Errorf("DayOffset = %d, want 0", cfg.DayOffset)
	}
	if cfg.Schedule.MaxElapsed != time.Minute {
		t.Errorf("Schedule.MaxElapsed = %v, want 1m", cfg.Schedule.MaxElapsed)
	}
}

func TestFromEnvRequiresKeys(t *testing.T) {
	setRequiredKeys(t)
	t.Setenv("CRED_ENC_KEY", "")
	if _, err := FromEnv(); err == nil {
		t.Error("FromEnv() = nil error without CRED_ENC_KEY")
	}
}

func TestFromEnvRejectsShortEncKey(t *testing.T) {
	setRequiredKeys(t)
	t.Setenv("CRED_ENC_KEY", base64.StdEncoding.EncodeToString([]byte("short")))
	if _, err := FromEnv(); err == nil {
		t.Error("FromEnv() = nil error for a non-32-byte CRED_ENC_KEY")
	}
}
