// Package auth owns the access/refresh token pair used to authenticate
// against the Corbo backend.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nomdev/corbo/internal/kv"
)

// DefaultSuite is the app group the refresh token is stored under.
const DefaultSuite = "group.settings.com.nomdevelopment.Corbo"

// Grant is a freshly issued token pair.
type Grant struct {
	AccessToken  string
	RefreshToken string
	UserID       int64
}

// Redeemer exchanges a refresh token for a new grant.
type Redeemer interface {
	RedeemRefreshToken(ctx context.Context, refreshToken string) (Grant, error)
}

// RedeemerFunc adapts a function to Redeemer.
type RedeemerFunc func(ctx context.Context, refreshToken string) (Grant, error)

func (f RedeemerFunc) RedeemRefreshToken(ctx context.Context, refreshToken string) (Grant, error) {
	return f(ctx, refreshToken)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// State is the provider's position in the login lifecycle.
type State int

const (
	StateLoggedOut State = iota
	StateTokenValid
	StateTokenExpired
)

func (s State) String() string {
	switch s {
	case StateTokenValid:
		return "logged in"
	case StateTokenExpired:
		return "logged in (token expired)"
	default:
		return "logged out"
	}
}

// Provider caches the access token, redeems the refresh token when the
// access token expires, and persists the refresh token in a kv.Store.
// All methods are safe for concurrent use; concurrent GetAccessToken calls
// share a single redemption.
type Provider struct {
	mu           sync.Mutex
	store        kv.Store
	redeemer     Redeemer
	clock        Clock
	logger       *slog.Logger
	suite        string
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	userID       int64

	listenersMu sync.Mutex
	onLogout    []func()
}

// Option configures a Provider.
type Option func(*Provider)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(p *Provider) { p.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// WithSuite sets the app group the refresh token key is scoped to.
func WithSuite(suite string) Option {
	return func(p *Provider) { p.suite = suite }
}

// NewProvider creates a provider persisting into store and redeeming
// refresh tokens through redeemer.
func NewProvider(store kv.Store, redeemer Redeemer, opts ...Option) *Provider {
	p := &Provider{
		store:    store,
		redeemer: redeemer,
		clock:    systemClock{},
		logger:   slog.Default(),
		suite:    DefaultSuite,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) refreshTokenKey() string {
	return p.suite + ".refreshToken"
}

// GetAccessToken returns the cached access token while it is valid and
// otherwise redeems the refresh token exactly once. A failed redemption
// logs out before returning ErrUnableToObtainToken.
func (p *Provider) GetAccessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	token, loggedOut, err := p.getAccessTokenLocked(ctx)
	p.mu.Unlock()

	if loggedOut {
		p.notifyLogout()
	}
	return token, err
}

func (p *Provider) getAccessTokenLocked(ctx context.Context) (string, bool, error) {
	if p.accessToken != "" && !p.expiresAt.IsZero() && !p.clock.Now().After(p.expiresAt) {
		return p.accessToken, false, nil
	}

	refresh, err := p.refreshTokenLocked(ctx)
	if err != nil {
		return "", false, fmt.Errorf("load refresh token: %w", err)
	}
	if refresh == "" {
		return "", false, ErrRefreshTokenMissing
	}

	p.logger.Debug("redeeming refresh token", "expired_at", p.expiresAt)
	grant, err := p.redeemer.RedeemRefreshToken(ctx, refresh)
	if err == nil {
		err = p.applyGrantLocked(ctx, grant)
	}
	if err != nil {
		// An abandoned request says nothing about the refresh token. Both the
		// cause and the redeemer's error are returned.
		if cause := context.Cause(ctx); cause != nil {
			if errors.Is(err, cause) {
				return "", false, err
			}
			return "", false, fmt.Errorf("%w: %w", cause, err)
		}
		p.logger.Error("refresh token redemption failed, logging out", "error", err)
		p.clearLocked(ctx)
		return "", true, fmt.Errorf("%w: %w", ErrUnableToObtainToken, err)
	}
	return p.accessToken, false, nil
}

// SetAccessToken caches raw and its expiry. It fails with ErrInvalidToken
// when the claims cannot be read, leaving the previous token in place.
func (p *Provider) SetAccessToken(raw string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setAccessTokenLocked(raw)
}

func (p *Provider) setAccessTokenLocked(raw string) error {
	claims, err := ParseAccessToken(raw)
	if err != nil {
		return err
	}
	p.accessToken = raw
	p.expiresAt = claims.ExpiresAt()
	p.userID = claims.UserID
	return nil
}

// Login stores a grant obtained from a code verification.
func (p *Provider) Login(ctx context.Context, grant Grant) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.applyGrantLocked(ctx, grant)
}

func (p *Provider) applyGrantLocked(ctx context.Context, grant Grant) error {
	if err := p.setAccessTokenLocked(grant.AccessToken); err != nil {
		return err
	}
	if grant.UserID != 0 {
		p.userID = grant.UserID
	}
	if grant.RefreshToken == "" {
		return nil
	}
	if err := p.store.SetString(ctx, p.refreshTokenKey(), grant.RefreshToken); err != nil {
		return fmt.Errorf("persist refresh token: %w", err)
	}
	p.refreshToken = grant.RefreshToken
	return nil
}

// SetRefreshToken persists raw as the refresh token.
func (p *Provider) SetRefreshToken(ctx context.Context, raw string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.store.SetString(ctx, p.refreshTokenKey(), raw); err != nil {
		return fmt.Errorf("persist refresh token: %w", err)
	}
	p.refreshToken = raw
	return nil
}

// RefreshToken returns the refresh token, reading it from the store when
// it is not cached. An empty string means none is stored.
func (p *Provider) RefreshToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshTokenLocked(ctx)
}

func (p *Provider) refreshTokenLocked(ctx context.Context) (string, error) {
	if p.refreshToken != "" {
		return p.refreshToken, nil
	}
	token, ok, err := p.store.GetString(ctx, p.refreshTokenKey())
	if err != nil {
		return "", err
	}
	if ok {
		p.refreshToken = token
	}
	return p.refreshToken, nil
}

// DeleteRefreshToken erases the refresh token from memory and the store.
func (p *Provider) DeleteRefreshToken(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshToken = ""
	if err := p.store.Remove(ctx, p.refreshTokenKey()); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// Logout clears both tokens and notifies OnLogout subscribers.
func (p *Provider) Logout(ctx context.Context) {
	p.mu.Lock()
	p.clearLocked(ctx)
	p.mu.Unlock()
	p.notifyLogout()
}

func (p *Provider) clearLocked(ctx context.Context) {
	p.accessToken = ""
	p.refreshToken = ""
	p.expiresAt = time.Time{}
	p.userID = 0
	// Logout must complete even when the request that triggered it was cancelled.
	if err := p.store.Remove(context.WithoutCancel(ctx), p.refreshTokenKey()); err != nil {
		p.logger.Error("failed to delete refresh token", "error", err)
	}
}

// OnLogout registers fn to run after every logout.
func (p *Provider) OnLogout(fn func()) {
	p.listenersMu.Lock()
	defer p.listenersMu.Unlock()
	p.onLogout = append(p.onLogout, fn)
}

func (p *Provider) notifyLogout() {
	p.listenersMu.Lock()
	listeners := append([]func(){}, p.onLogout...)
	p.listenersMu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// State reports where the provider is in the login lifecycle. A stored
// refresh token without a cached access token counts as expired.
func (p *Provider) State(ctx context.Context) State {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accessToken != "" && !p.clock.Now().After(p.expiresAt) {
		return StateTokenValid
	}
	refresh, err := p.refreshTokenLocked(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Warn("failed to read refresh token", "error", err)
	}
	if refresh != "" {
		return StateTokenExpired
	}
	return StateLoggedOut
}

// UserID returns the user the current access token was issued to.
func (p *Provider) UserID() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.userID
}

// ExpiresAt returns the cached token's expiry, zero when unknown.
func (p *Provider) ExpiresAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.expiresAt
}
