package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fpang/forest-video-analyzer/internal/config"
)

func TestGetAPIKeyFromEnv(t *testing.T) {
	const testKey = "tlk_test_12345"
	t.Setenv(config.EnvAPIKey, testKey)

	key, err := GetAPIKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != testKey {
		t.Errorf("expected key %q, got %q", testKey, key)
	}
}

func TestGetAPIKeyNoSource(t *testing.T) {
	t.Setenv(config.EnvAPIKey, "")
	t.Setenv("HOME", t.TempDir())

	_, err := GetAPIKey()
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestGetCredentialPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := getCredentialPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := filepath.Join(home, ".forest-video-analyzer", "twelvelabs.gpg")
	if path != expected {
		t.Errorf("expected path %q, got %q", expected, path)
	}
}

func TestOwnerOnly(t *testing.T) {
	dir := t.TempDir()
	private := filepath.Join(dir, "private")
	shared := filepath.Join(dir, "shared")
	if err := os.WriteFile(private, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(shared, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(shared, 0o644); err != nil {
		t.Fatal(err)
	}

	if ok, _ := ownerOnly(private); !ok {
		t.Error("0600 file should be accepted")
	}
	if ok, mode := ownerOnly(shared); ok {
		t.Errorf("0644 file should be rejected (mode %04o)", mode)
	}
	if ok, _ := ownerOnly(filepath.Join(dir, "missing")); ok {
		t.Error("missing file should be rejected")
	}
}
