package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "markbase"
	keyringUser    = "token"
	authFile       = "auth.json"
)

// TokenSource says where a credential was found.
type TokenSource string

const (
	SourceNone    TokenSource = ""
	SourceEnv     TokenSource = "env"
	SourceKeyring TokenSource = "keyring"
	SourceFile    TokenSource = "file"
)

// AuthFile is the fallback credential store used when no OS keyring is
// available.
type AuthFile struct {
	Token   string `json:"token"`
	SavedAt string `json:"saved_at"`
}

// LoadToken returns the API credential.
// Priority: MB_TOKEN env > OS keyring > auth.json.
func LoadToken() (string, TokenSource, error) {
	if v := strings.TrimSpace(os.Getenv("MB_TOKEN")); v != "" {
		return v, SourceEnv, nil
	}

	token, err := keyring.Get(keyringService, keyringUser)
	switch {
	case err == nil && strings.TrimSpace(token) != "":
		return strings.TrimSpace(token), SourceKeyring, nil
	case err != nil && !errors.Is(err, keyring.ErrNotFound):
		slog.Debug("keyring unavailable, trying auth file", "err", err)
	}

	auth, err := loadAuthFile()
	if err != nil {
		return "", SourceNone, err
	}
	if auth == nil || auth.Token == "" {
		return "", SourceNone, nil
	}
	return auth.Token, SourceFile, nil
}

// SaveToken stores the credential in the OS keyring, falling back to
// auth.json (0600) when the keyring cannot be used.
func SaveToken(token string) (TokenSource, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return SourceNone, errors.New("empty token")
	}

	err := keyring.Set(keyringService, keyringUser, token)
	if err == nil {
		// Drop any copy left by an earlier file fallback.
		removeAuthFile()
		return SourceKeyring, nil
	}
	slog.Debug("keyring unavailable, writing auth file", "err", err)

	dir, err := Dir()
	if err != nil {
		return SourceNone, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return SourceNone, fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(AuthFile{Token: token, SavedAt: time.Now().UTC().Format(time.RFC3339)}, "", "  ")
	if err != nil {
		return SourceNone, err
	}
	if err := writeAtomic(dir, authFile, data, 0o600); err != nil {
		return SourceNone, fmt.Errorf("write %s: %w", authFile, err)
	}
	return SourceFile, nil
}

// ClearToken removes the credential from the keyring and auth.json.
func ClearToken() error {
	if err := keyring.Delete(keyringService, keyringUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		slog.Debug("keyring delete failed", "err", err)
	}
	return removeAuthFile()
}

func loadAuthFile() (*AuthFile, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, authFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var auth AuthFile
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, fmt.Errorf("parse %s: %w", authFile, err)
	}
	return &auth, nil
}

func removeAuthFile() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(dir, authFile))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// MaskToken shows only the last four characters of a credential.
func MaskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", 8) + token[len(token)-4:]
}
