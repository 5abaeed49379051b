package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"golang.org/x/oauth2"
)

// TokenStore saves and loads OAuth tokens per account.
type TokenStore interface {
	SaveToken(account string, token *oauth2.Token) error
	// LoadToken returns nil, nil when the account has no token.
	LoadToken(account string) (*oauth2.Token, error)
}

var unsafeAccountChars = regexp.MustCompile(`[^A-Za-z0-9._@-]`)

// FileTokenStore keeps one token-<account>.json file per account in Dir.
type FileTokenStore struct {
	Dir string
}

// NewFileTokenStore creates a new FileTokenStore rooted at dir.
func NewFileTokenStore(dir string) *FileTokenStore {
	return &FileTokenStore{Dir: dir}
}

// Path returns the token file used for account.
func (store *FileTokenStore) Path(account string) string {
	return filepath.Join(store.Dir, "token-"+unsafeAccountChars.ReplaceAllString(account, "_")+".json")
}

// SaveToken writes the token with owner-only permissions.
func (store *FileTokenStore) SaveToken(account string, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := os.MkdirAll(store.Dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(store.Path(account), data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

// LoadToken reads the account's token.
// Returns nil, nil if the file does not exist (no error).
func (store *FileTokenStore) LoadToken(account string) (*oauth2.Token, error) {
	data, err := os.ReadFile(store.Path(account))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	return &token, nil
}
