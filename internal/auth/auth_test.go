package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

// tokenServer answers the OAuth token endpoint with the given access token.
func tokenServer(t *testing.T, accessToken string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse token request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		fmt.Fprintf(w, `{"access_token":%q,"token_type":"Bearer","expires_in":3600}`, accessToken)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{AuthURL: "https://example.invalid/auth", TokenURL: tokenURL},
	}
}

func TestFileTokenStore(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "tokens"))

	token, err := store.LoadToken("alice")
	if err != nil || token != nil {
		t.Fatalf("Expected nil, nil for a missing token, got %v, %v", token, err)
	}

	if err := store.SaveToken("alice", &oauth2.Token{AccessToken: "a", RefreshToken: "r"}); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}
	info, err := os.Stat(store.Path("alice"))
	if err != nil {
		t.Fatalf("Expected token file: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected file mode 0600, got %o", info.Mode().Perm())
	}

	loaded, err := store.LoadToken("alice")
	if err != nil {
		t.Fatalf("LoadToken failed: %v", err)
	}
	if loaded.AccessToken != "a" || loaded.RefreshToken != "r" {
		t.Errorf("Expected token to round trip, got %+v", loaded)
	}
}

func TestFileTokenStorePathIsSanitised(t *testing.T) {
	store := NewFileTokenStore("/tokens")
	if got := store.Path("../../etc/passwd"); got != "/tokens/token-.._.._etc_passwd.json" {
		t.Errorf("Expected sanitised path, got %s", got)
	}
	if got := store.Path("alice@example.com"); got != "/tokens/token-alice@example.com.json" {
		t.Errorf("Expected email to be kept, got %s", got)
	}
}

type stubRefresher struct {
	token *oauth2.Token
	err   error
	calls int
}

func (s *stubRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	s.calls++
	return s.token, s.err
}

func TestManagerToken(t *testing.T) {
	ctx := context.Background()

	t.Run("no token", func(t *testing.T) {
		m := &Manager{Store: NewFileTokenStore(t.TempDir()), Refresher: &stubRefresher{}}
		if _, err := m.Token(ctx, "alice"); !errors.Is(err, ErrNoToken) {
			t.Errorf("Expected ErrNoToken, got %v", err)
		}
	})

	t.Run("refresh succeeds", func(t *testing.T) {
		store := NewFileTokenStore(t.TempDir())
		store.SaveToken("alice", &oauth2.Token{AccessToken: "old", RefreshToken: "r"})
		m := &Manager{Store: store, Refresher: &stubRefresher{token: &oauth2.Token{AccessToken: "new"}}}

		token, err := m.Token(ctx, "alice")
		if err != nil {
			t.Fatalf("Token failed: %v", err)
		}
		if token.AccessToken != "new" {
			t.Errorf("Expected refreshed token, got '%s'", token.AccessToken)
		}
		saved, _ := store.LoadToken("alice")
		if saved.AccessToken != "new" || saved.RefreshToken != "r" {
			t.Errorf("Expected refreshed token to be saved with its refresh token, got %+v", saved)
		}
	})

	t.Run("refresh fails", func(t *testing.T) {
		store := NewFileTokenStore(t.TempDir())
		store.SaveToken("alice", &oauth2.Token{AccessToken: "old", RefreshToken: "r"})
		m := &Manager{Store: store, Refresher: &stubRefresher{err: errors.New("invalid_grant")}}

		token, err := m.Token(ctx, "alice")
		if err != nil {
			t.Fatalf("Expected stored token to be used, got %v", err)
		}
		if token.AccessToken != "old" {
			t.Errorf("Expected 'old', got '%s'", token.AccessToken)
		}
	})

	t.Run("no refresh token", func(t *testing.T) {
		store := NewFileTokenStore(t.TempDir())
		store.SaveToken("alice", &oauth2.Token{AccessToken: "only"})
		refresher := &stubRefresher{}
		m := &Manager{Store: store, Refresher: refresher}

		token, err := m.Token(ctx, "alice")
		if err != nil || token.AccessToken != "only" {
			t.Fatalf("Expected stored token, got %v, %v", token, err)
		}
		if refresher.calls != 0 {
			t.Errorf("Expected no refresh attempt, got %d", refresher.calls)
		}
	})

	t.Run("refresh token only and refresh fails", func(t *testing.T) {
		store := NewFileTokenStore(t.TempDir())
		store.SaveToken("alice", &oauth2.Token{RefreshToken: "r"})
		m := &Manager{Store: store, Refresher: &stubRefresher{err: errors.New("revoked")}}

		if _, err := m.Token(ctx, "alice"); !errors.Is(err, ErrNoToken) {
			t.Errorf("Expected ErrNoToken, got %v", err)
		}
		if _, err := m.Stored("alice"); !errors.Is(err, ErrNoToken) {
			t.Errorf("Expected Stored to report ErrNoToken, got %v", err)
		}
	})
}

func TestOAuthRefresher(t *testing.T) {
	srv := tokenServer(t, "fresh", http.StatusOK)
	r := &OAuthRefresher{Config: testConfig(srv.URL)}

	token, err := r.Refresh(context.Background(), "refresh")
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if token.AccessToken != "fresh" {
		t.Errorf("Expected 'fresh', got '%s'", token.AccessToken)
	}
	if token.RefreshToken != "refresh" {
		t.Errorf("Expected refresh token to be kept, got '%s'", token.RefreshToken)
	}

	failing := tokenServer(t, "", http.StatusBadRequest)
	r = &OAuthRefresher{Config: testConfig(failing.URL)}
	if _, err := r.Refresh(context.Background(), "revoked"); err == nil {
		t.Error("Expected an error from a rejected refresh")
	}
}

func TestExchange(t *testing.T) {
	srv := tokenServer(t, "granted", http.StatusOK)
	store := NewFileTokenStore(t.TempDir())

	token, err := Exchange(context.Background(), testConfig(srv.URL), store, "alice", "code")
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if token.AccessToken != "granted" {
		t.Errorf("Expected 'granted', got '%s'", token.AccessToken)
	}
	saved, _ := store.LoadToken("alice")
	if saved == nil || saved.AccessToken != "granted" {
		t.Errorf("Expected token to be saved, got %+v", saved)
	}
}

func TestLoadOAuthConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	creds := `{"installed":{"client_id":"id.apps.googleusercontent.com","client_secret":"s","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`
	if err := os.WriteFile(path, []byte(creds), 0600); err != nil {
		t.Fatalf("failed to write credentials: %v", err)
	}

	cfg, err := LoadOAuthConfig(path)
	if err != nil {
		t.Fatalf("LoadOAuthConfig failed: %v", err)
	}
	if cfg.ClientID != "id.apps.googleusercontent.com" {
		t.Errorf("Expected client id, got '%s'", cfg.ClientID)
	}
	if len(cfg.Scopes) != len(Scopes) {
		t.Errorf("Expected %d scopes, got %d", len(Scopes), len(cfg.Scopes))
	}

	if _, err := LoadOAuthConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestStartLocalServer(t *testing.T) {
	redirectURL, codeChan, _, err := startLocalServer()
	if err != nil {
		t.Fatalf("startLocalServer failed: %v", err)
	}
	if !strings.HasPrefix(redirectURL, "http://127.0.0.1:") {
		t.Fatalf("Unexpected redirect URL %s", redirectURL)
	}

	resp, err := http.Get(redirectURL + "/?code=abc")
	if err != nil {
		t.Fatalf("callback request failed: %v", err)
	}
	resp.Body.Close()

	if code := <-codeChan; code != "abc" {
		t.Errorf("Expected code 'abc', got '%s'", code)
	}
}
