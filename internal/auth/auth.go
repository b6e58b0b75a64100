// Package auth resolves the TwelveLabs API key for local CLI runs, where
// SSM Parameter Store is not available.
package auth

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/forest-video-analyzer/internal/config"
)

const (
	credentialDir  = ".forest-video-analyzer"
	credentialFile = "twelvelabs.gpg"

	// EnvPassphraseFile points at a file holding the GPG passphrase for
	// non-interactive decryption.
	EnvPassphraseFile = "FOREST_GPG_PASSPHRASE_FILE"
)

// ErrNoAPIKey is returned when no key source is available.
var ErrNoAPIKey = errors.New("TwelveLabs API key not found")

// GetAPIKey retrieves the TwelveLabs API key.
// Priority order:
//  1. TWELVELABS_API_KEY environment variable
//  2. GPG-encrypted file at ~/.forest-video-analyzer/twelvelabs.gpg
func GetAPIKey() (string, error) {
	if key := os.Getenv(config.EnvAPIKey); key != "" {
		log.Debug().Msg("Using API key from environment variable")
		return key, nil
	}

	key, err := getFromGPG()
	if err == nil && key != "" {
		log.Debug().Msg("Using API key from GPG encrypted file")
		return key, nil
	}
	if err == nil {
		err = errors.New("decrypted credentials are empty")
	}
	return "", fmt.Errorf("%w: set %s or store it in ~/%s/%s: %v", ErrNoAPIKey, config.EnvAPIKey, credentialDir, credentialFile, err)
}

// getFromGPG decrypts the API key from the GPG-encrypted credentials file.
func getFromGPG() (string, error) {
	credPath, err := getCredentialPath()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(credPath); os.IsNotExist(err) {
		return "", fmt.Errorf("GPG credentials file not found at %s", credPath)
	}

	log.Debug().Str("file", credPath).Msg("Decrypting GPG credentials")

	args := []string{"--decrypt", "--quiet"}
	if passphrasePath := os.Getenv(EnvPassphraseFile); passphrasePath != "" {
		if ok, mode := ownerOnly(passphrasePath); ok {
			args = append(args, "--pinentry-mode", "loopback", "--passphrase-file", passphrasePath)
		} else {
			log.Warn().
				Str("passphrase_file", passphrasePath).
				Str("permissions", fmt.Sprintf("%04o", mode)).
				Msg("Passphrase file missing or has insecure permissions (should be 0600); skipping")
		}
	}
	args = append(args, credPath)

	output, err := exec.Command("gpg", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("GPG decryption failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("GPG decryption failed: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// ownerOnly reports whether path exists and is not readable by group or others.
func ownerOnly(path string) (bool, os.FileMode) {
	fi, err := os.Stat(path)
	if err != nil {
		return false, 0
	}
	mode := fi.Mode().Perm()
	return mode&0o077 == 0, mode
}

// getCredentialPath returns the full path to the credentials file.
func getCredentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, credentialDir, credentialFile), nil
}
