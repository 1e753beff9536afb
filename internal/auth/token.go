// Package auth persists Spotify OAuth tokens and keeps a valid access token on hand.
//
// [FileTokenStore] reads and writes the token file. [Provider] wraps it with an
// [oauth2.Config] and refreshes the access token when it expires, saving every
// new token before handing it out.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// legacyExpiryLayout is the naive timestamp form older token files were written with.
const legacyExpiryLayout = "2006-01-02T15:04:05.999999"

// TokenFile is the on-disk token record.
type TokenFile struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenExpires Expiry `json:"token_expires"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri"`
}

// Valid reports whether the access token can be used at now.
func (t *TokenFile) Valid(now time.Time) bool {
	return t != nil && t.AccessToken != "" && now.Before(t.TokenExpires.Time)
}

// Expiry is an ISO-8601 timestamp. It is written as RFC 3339 and also accepts
// timestamps without an offset, which are read as local time.
type Expiry struct {
	time.Time
}

func (e Expiry) MarshalJSON() ([]byte, error) {
	if e.IsZero() {
		return []byte(`null`), nil
	}
	return json.Marshal(e.Format(time.RFC3339))
}

func (e *Expiry) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("token_expires: %w", err)
	}
	if s == nil || *s == "" {
		e.Time = time.Time{}
		return nil
	}

	if t, err := time.Parse(time.RFC3339Nano, *s); err == nil {
		e.Time = t
		return nil
	}
	t, err := time.ParseInLocation(legacyExpiryLayout, *s, time.Local)
	if err != nil {
		return fmt.Errorf("token_expires %q is not ISO-8601", *s)
	}
	e.Time = t
	return nil
}

// TokenStore persists a [TokenFile].
type TokenStore interface {
	Load() (*TokenFile, error) // Load returns (nil, nil) when nothing is stored
	Save(*TokenFile) error
	Delete() error // Delete is a no-op when nothing is stored
}

// FileTokenStore keeps the token file on the local filesystem.
type FileTokenStore struct {
	path string
}

// NewFileTokenStore creates a store backed by path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Path returns the token file location.
func (s *FileTokenStore) Path() string {
	return s.path
}

// Load reads the token file. Returns (nil, nil) if the file does not exist.
func (s *FileTokenStore) Load() (*TokenFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	var tf TokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing token file: %w", err)
	}
	return &tf, nil
}

// Save writes the token file with owner-only permissions.
//
// The file is written to a temporary sibling first and renamed into place.
func (s *FileTokenStore) Save(tf *TokenFile) error {
	if tf == nil {
		return errors.New("cannot save nil token")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.json")
	if err != nil {
		return fmt.Errorf("creating temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("setting token file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing token file: %w", err)
	}
	return nil
}

// Delete removes the token file. Returns nil if it does not exist.
func (s *FileTokenStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}
