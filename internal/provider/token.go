package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTokenSkew    = 60 * time.Second
	defaultTokenTimeout = 10 * time.Second
	tokenFlightKey      = "access_token"
)

// TokenFetcher retrieves a fresh token from the authorization server.
type TokenFetcher interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

type clientCredentials struct {
	cfg    clientcredentials.Config
	client *http.Client
}

// NewClientCredentialsFetcher fetches tokens with the OAuth2 client credentials grant.
func NewClientCredentialsFetcher(tokenURL, clientID, clientSecret string, client *http.Client) TokenFetcher {
	return &clientCredentials{
		cfg: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		client: client,
	}
}

func (c *clientCredentials) Token(ctx context.Context) (*oauth2.Token, error) {
	if c.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.client)
	}
	tok, err := c.cfg.Token(ctx)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			switch code := re.Response.StatusCode; {
			case code == http.StatusBadRequest || code == http.StatusUnauthorized || code == http.StatusForbidden:
				return nil, fmt.Errorf("%w: token request: %v", ErrAuth, err)
			case code == http.StatusTooManyRequests:
				return nil, fmt.Errorf("%w: token request: %v", ErrRateLimited, err)
			}
		}
		return nil, fmt.Errorf("%w: token request: %v", ErrTransient, err)
	}
	return tok, nil
}

// TokenOptions tune a TokenService.
type TokenOptions struct {
	Skew    time.Duration
	Timeout time.Duration
	Now     func() time.Time
}

// TokenService caches the provider access token. Concurrent callers that find
// the cache stale share a single fetch.
type TokenService struct {
	fetcher TokenFetcher
	skew    time.Duration
	timeout time.Duration
	now     func() time.Time
	logger  zerolog.Logger

	group singleflight.Group
	mu    sync.Mutex
	token *oauth2.Token
}

// NewTokenService constructs a TokenService around fetcher.
func NewTokenService(fetcher TokenFetcher, opts TokenOptions, logger zerolog.Logger) *TokenService {
	if opts.Skew <= 0 {
		opts.Skew = defaultTokenSkew
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTokenTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &TokenService{
		fetcher: fetcher,
		skew:    opts.Skew,
		timeout: opts.Timeout,
		now:     opts.Now,
		logger:  logger.With().Str("component", "provider_token").Logger(),
	}
}

// AccessToken returns a valid access token, fetching one if needed. The fetch
// outlives the caller's context so other waiters still get its result.
func (t *TokenService) AccessToken(ctx context.Context) (string, error) {
	if tok, ok := t.cached(); ok {
		return tok, nil
	}

	ch := t.group.DoChan(tokenFlightKey, func() (any, error) {
		if tok, ok := t.cached(); ok {
			return tok, nil
		}

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
		defer cancel()

		started := t.now()
		tok, err := t.fetcher.Token(fetchCtx)
		if err != nil {
			t.logger.Error().Err(err).Msg("access token fetch failed")
			return "", err
		}
		if tok.AccessToken == "" {
			return "", fmt.Errorf("%w: empty access token", ErrAuth)
		}

		t.mu.Lock()
		t.token = tok
		t.mu.Unlock()

		t.logger.Debug().Time("expiry", tok.Expiry).Dur("took", t.now().Sub(started)).Msg("access token refreshed")
		return tok.AccessToken, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token, e.g. after the provider rejected it.
func (t *TokenService) Invalidate() {
	t.mu.Lock()
	t.token = nil
	t.mu.Unlock()
}

func (t *TokenService) cached() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.token == nil || t.token.AccessToken == "" {
		return "", false
	}
	// tokens without expiry never go stale
	if !t.token.Expiry.IsZero() && !t.now().Add(t.skew).Before(t.token.Expiry) {
		return "", false
	}
	return t.token.AccessToken, true
}
