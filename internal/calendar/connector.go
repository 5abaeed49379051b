package calendar

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// DefaultTimeout bounds each remote call made through a connected client.
const DefaultTimeout = 30 * time.Second

// Connector builds a Service for one access token. A new client is built for
// every operation so no credentials outlive the call that used them.
type Connector interface {
	Connect(ctx context.Context, token *oauth2.Token) (Service, error)
}

// GoogleConnector connects to the Google Calendar API.
type GoogleConnector struct {
	// Endpoint overrides the API base URL; empty means Google's.
	Endpoint string
	// Timeout applies to every HTTP request; zero means DefaultTimeout.
	Timeout time.Duration
	// Transport is the base round tripper; nil means http.DefaultTransport.
	Transport http.RoundTripper
}

// Connect returns a client that authenticates with token as-is. The token is
// used even if it looks expired, since the server may still accept it.
func (g *GoogleConnector) Connect(ctx context.Context, token *oauth2.Token) (Service, error) {
	if token == nil || token.AccessToken == "" {
		return nil, errors.New("no access token")
	}

	timeout := g.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	base := g.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(token),
			Base:   base,
		},
	}

	client, err := NewClient(ctx, httpClient, g.Endpoint)
	if err != nil {
		return nil, err
	}
	return client, nil
}
