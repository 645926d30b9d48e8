package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/Joseda-hg/taskflow/internal/config"
)

const loginTimeout = 5 * time.Minute

// OAuthProvider runs the authorization-code flow against the hosted identity
// provider and keeps the resulting tokens in a file readable only by the
// owner. Refresh is delegated to the oauth2 token source.
type OAuthProvider struct {
	oauth     *oauth2.Config
	tokenPath string
	logger    *zap.Logger
	now       func() time.Time

	mu     sync.Mutex
	cached *storedToken
}

type storedToken struct {
	oauth2.Token
	IDToken string `json:"id_token"`
}

func NewOAuthProvider(cfg config.AuthConfig, tokenPath string, logger *zap.Logger) *OAuthProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OAuthProvider{
		oauth: &oauth2.Config{
			ClientID: cfg.ClientID,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
			RedirectURL: fmt.Sprintf("http://localhost:%d/callback", cfg.RedirectPort),
			Scopes:      cfg.Scopes,
		},
		tokenPath: tokenPath,
		logger:    logger,
		now:       time.Now,
	}
}

func (p *OAuthProvider) Session(ctx context.Context) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored, err := p.load()
	if err != nil {
		return Session{}, err
	}

	s, refreshed, err := p.resolve(ctx, stored, false)
	if err != nil {
		return Session{}, err
	}
	if !s.IsAuthenticated(p.now()) && stored.RefreshToken != "" && !refreshed {
		s, _, err = p.resolve(ctx, stored, true)
		if err != nil {
			return Session{}, err
		}
	}
	if !s.IsAuthenticated(p.now()) {
		return Session{}, fmt.Errorf("%w: session expired, run `taskflow login`", ErrNotAuthenticated)
	}
	return s, nil
}

func (p *OAuthProvider) resolve(ctx context.Context, stored *storedToken, force bool) (Session, bool, error) {
	current := stored.Token
	if force {
		current.Expiry = time.Unix(1, 0)
	}

	tok, err := p.oauth.TokenSource(ctx, &current).Token()
	if err != nil {
		return Session{}, false, fmt.Errorf("%w: refresh token: %v", ErrNotAuthenticated, err)
	}

	idToken := stored.IDToken
	if value, ok := tok.Extra("id_token").(string); ok && value != "" {
		idToken = value
	}
	refreshed := tok.AccessToken != stored.AccessToken || idToken != stored.IDToken
	if refreshed {
		next := &storedToken{Token: *tok, IDToken: idToken}
		if next.RefreshToken == "" {
			next.RefreshToken = stored.RefreshToken
		}
		if err := p.save(next); err != nil {
			p.logger.Warn("persist refreshed token", zap.Error(err))
		}
		*stored = *next
		p.logger.Info("session refreshed", zap.Time("expiry", next.Expiry))
	}

	s, err := New(idToken)
	if err != nil {
		return Session{}, refreshed, err
	}
	return s, refreshed, nil
}

// Login opens a local callback listener, hands the authorization URL to open
// and waits for the provider to redirect back with a code.
func (p *OAuthProvider) Login(ctx context.Context, port int, open func(url string)) error {
	verifier := oauth2.GenerateVerifier()
	state := uuid.NewString()

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("start callback listener on port %d: %w", port, err)
	}
	defer listener.Close()

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query := r.URL.Query()
			if query.Get("state") != state {
				http.Error(w, "state mismatch", http.StatusBadRequest)
				sendErr(errCh, fmt.Errorf("callback state mismatch"))
				return
			}
			if msg := query.Get("error"); msg != "" {
				http.Error(w, msg, http.StatusBadRequest)
				sendErr(errCh, fmt.Errorf("identity provider: %s", msg))
				return
			}
			code := query.Get("code")
			if code == "" {
				http.Error(w, "authorization code not found", http.StatusBadRequest)
				sendErr(errCh, fmt.Errorf("authorization code not found in redirect"))
				return
			}
			fmt.Fprint(w, "Signed in to taskflow. You can close this window.")
			select {
			case codeCh <- code:
			default:
			}
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sendErr(errCh, fmt.Errorf("callback server: %w", err))
		}
	}()
	defer server.Close()

	open(p.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)))

	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return fmt.Errorf("login: %w", ctx.Err())
	}

	tok, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return fmt.Errorf("identity provider returned no id_token (is the openid scope enabled?)")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.save(&storedToken{Token: *tok, IDToken: idToken}); err != nil {
		return err
	}
	p.logger.Info("signed in", zap.String("token_path", p.tokenPath))
	return nil
}

func (p *OAuthProvider) Logout() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cached = nil
	if err := os.Remove(p.tokenPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

func (p *OAuthProvider) load() (*storedToken, error) {
	if p.cached != nil {
		return p.cached, nil
	}
	data, err := os.ReadFile(p.tokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: run `taskflow login`", ErrNotAuthenticated)
		}
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var stored storedToken
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode token file %s: %w", p.tokenPath, err)
	}
	p.cached = &stored
	return p.cached, nil
}

func (p *OAuthProvider) save(tok *storedToken) error {
	if err := config.EnsureDir(p.tokenPath); err != nil {
		return err
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if err := os.WriteFile(p.tokenPath, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	p.cached = tok
	return nil
}

func sendErr(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}
