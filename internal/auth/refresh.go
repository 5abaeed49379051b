package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"
)

// ErrNoToken means the account has no usable access token and must
// authorise first.
var ErrNoToken = errors.New("no access token for account")

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// OAuthRefresher refreshes against the provider's token endpoint.
type OAuthRefresher struct {
	Config *oauth2.Config
}

// Refresh implements Refresher.
func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	// An empty access token is never valid, so the source always refreshes.
	token, err := r.Config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh access token: %w", err)
	}
	return token, nil
}

// Manager hands out the access token to use for an account's next remote
// call, refreshing it first when possible.
type Manager struct {
	Store     TokenStore
	Refresher Refresher
	Logger    *slog.Logger
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// Token loads the account's token and tries to refresh it. A failed refresh
// is logged and the stored access token is returned anyway, since it may
// still be accepted. ErrNoToken is returned when there is nothing to use.
func (m *Manager) Token(ctx context.Context, account string) (*oauth2.Token, error) {
	token, err := m.Store.LoadToken(account)
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	if token == nil {
		return nil, ErrNoToken
	}

	if token.RefreshToken != "" && m.Refresher != nil {
		fresh, err := m.Refresher.Refresh(ctx, token.RefreshToken)
		switch {
		case err != nil:
			m.logger().Warn("token refresh failed, using stored access token", "account", account, "error", err)
		case fresh.AccessToken != "" && fresh.AccessToken != token.AccessToken:
			if fresh.RefreshToken == "" {
				fresh.RefreshToken = token.RefreshToken
			}
			if err := m.Store.SaveToken(account, fresh); err != nil {
				m.logger().Warn("failed to save refreshed token", "account", account, "error", err)
			}
			token = fresh
		}
	}

	if token.AccessToken == "" {
		return nil, ErrNoToken
	}
	return token, nil
}

// Stored returns the account's stored token without refreshing it, or
// ErrNoToken when there is no usable access token.
func (m *Manager) Stored(account string) (*oauth2.Token, error) {
	token, err := m.Store.LoadToken(account)
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	if token == nil || token.AccessToken == "" {
		return nil, ErrNoToken
	}
	return token, nil
}
