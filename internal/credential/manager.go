// Package credential resolves bearer tokens for a team's provider account.
//
// GetToken tries, in order: the injected token cache; the stored access
// token while it has more than the refresh margin left; a refresh with the
// stored refresh token; and finally a fresh login with the decrypted
// primary credentials. Any refresh failure falls through to a fresh login.
// New tokens are persisted encrypted and cached until expiry minus margin.
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/lleo5301/sports2-backend-sub005/internal/cache"
	"github.com/lleo5301/sports2-backend-sub005/internal/config"
	"github.com/lleo5301/sports2-backend-sub005/internal/provider/presto"
	"github.com/lleo5301/sports2-backend-sub005/internal/secret"
	"github.com/lleo5301/sports2-backend-sub005/internal/store"
)

const (
	defaultMargin     = 5 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour
	defaultAccessTTL  = time.Hour
	apiKeyCacheTTL    = time.Hour
	cacheKeyPrefix    = "presto:token:"
)

var (
	// ErrNotConfigured means the team has no credential or provider ids.
	ErrNotConfigured = errors.New("provider integration not configured")
	// ErrAuthenticationFailed means the upstream rejected the credentials.
	ErrAuthenticationFailed = errors.New("provider authentication failed")
)

// Authenticator is the upstream token endpoint.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*presto.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*presto.Tokens, error)
}

// Store is the persistence the manager needs.
type Store interface {
	store.Credentials
	SetTeamProvider(ctx context.Context, teamID int64, providerTeamID, seasonID string) error
}

// Options tunes the manager. Zero values select defaults.
type Options struct {
	Margin     time.Duration // minimum remaining lifetime for a token to be reused
	RefreshTTL time.Duration // assumed refresh-token lifetime
	Logger     *slog.Logger
}

// Manager is the credential and token manager.
type Manager struct {
	store      Store
	auth       Authenticator
	box        secret.Box
	cache      cache.Cache
	provider   string
	margin     time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// bundle is the decrypted primary credential.
type bundle struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	APIKey   string `json:"apiKey,omitempty"`
}

// NewManager creates a Manager.
func NewManager(st Store, auth Authenticator, box secret.Box, c cache.Cache, opts Options) *Manager {
	if opts.Margin <= 0 {
		opts.Margin = defaultMargin
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = defaultRefreshTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		store:      st,
		auth:       auth,
		box:        box,
		cache:      c,
		provider:   config.ProviderPresto,
		margin:     opts.Margin,
		refreshTTL: opts.RefreshTTL,
		now:        time.Now,
		logger:     opts.Logger,
	}
}

// ---------------------------------------------------------------------------
// Tokens
// ---------------------------------------------------------------------------

// GetToken returns a bearer token for the team.
func (m *Manager) GetToken(ctx context.Context, teamID int64) (string, error) {
	// Cached entries already expire a margin ahead of the token.
	if tok, _, ok := m.cache.Get(cacheKey(teamID)); ok {
		return tok, nil
	}
	return m.resolve(ctx, teamID, true)
}

// RenewToken discards the cached and stored access token and obtains a new
// one by refresh or login. Callers use it after the upstream answered 401.
func (m *Manager) RenewToken(ctx context.Context, teamID int64) (string, error) {
	m.Invalidate(teamID)
	return m.resolve(ctx, teamID, false)
}

// Invalidate drops the team's cached token.
func (m *Manager) Invalidate(teamID int64) {
	m.cache.Delete(cacheKey(teamID))
}

func (m *Manager) resolve(ctx context.Context, teamID int64, allowStored bool) (string, error) {
	cred, err := m.credential(ctx, teamID)
	if err != nil {
		return "", err
	}

	if cred.Kind == store.CredentialAPIKey {
		b, err := m.decryptBundle(cred)
		if err != nil {
			return "", err
		}
		if b.APIKey == "" {
			return "", ErrNotConfigured
		}
		m.cache.Set(cacheKey(teamID), b.APIKey, apiKeyCacheTTL)
		return b.APIKey, nil
	}

	now := m.now()

	// Stored access token still comfortably valid.
	if allowStored && len(cred.EncryptedAccessToken) > 0 && cred.AccessExpiresAt != nil &&
		cred.AccessExpiresAt.Sub(now) > m.margin {
		tok, err := secret.DecryptString(m.box, cred.EncryptedAccessToken)
		if err == nil && tok != "" {
			m.cacheToken(teamID, tok, *cred.AccessExpiresAt)
			return tok, nil
		}
		m.logger.Warn("Stored access token unreadable, re-authenticating", "team_id", teamID, "error", err)
	}

	// Refresh, falling through to login on any failure.
	if len(cred.EncryptedRefreshToken) > 0 && (cred.RefreshExpiresAt == nil || cred.RefreshExpiresAt.After(now)) {
		refreshToken, err := secret.DecryptString(m.box, cred.EncryptedRefreshToken)
		if err == nil && refreshToken != "" {
			tokens, err := m.auth.Refresh(ctx, refreshToken)
			if err == nil {
				if tokens.RefreshToken == "" {
					tokens.RefreshToken = refreshToken
				}
				m.logger.Info("Refreshed provider token", "team_id", teamID)
				return m.issue(ctx, teamID, tokens), nil
			}
			m.logger.Warn("Token refresh failed, falling back to login", "team_id", teamID, "error", err)
		}
	}

	b, err := m.decryptBundle(cred)
	if err != nil {
		return "", err
	}
	if b.Username == "" || b.Password == "" {
		return "", fmt.Errorf("%w: stored credential has no username/password", ErrNotConfigured)
	}

	tokens, err := m.Authenticate(ctx, b.Username, b.Password)
	if err != nil {
		return "", err
	}
	m.logger.Info("Authenticated with provider", "team_id", teamID)
	return m.issue(ctx, teamID, tokens), nil
}

// Authenticate performs a fresh login. Rejected credentials map to
// ErrAuthenticationFailed; transport failures pass through.
func (m *Manager) Authenticate(ctx context.Context, username, password string) (*presto.Tokens, error) {
	tokens, err := m.auth.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, presto.ErrInvalidCredentials) {
			return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	return tokens, nil
}

// issue persists and caches a new token pair and returns the access token.
// A persistence failure is logged; the token is still usable.
func (m *Manager) issue(ctx context.Context, teamID int64, tokens *presto.Tokens) string {
	now := m.now()
	ttl := time.Duration(tokens.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = defaultAccessTTL
	}
	accessExpires := now.Add(ttl)
	refreshExpires := now.Add(m.refreshTTL)

	if err := m.persist(ctx, teamID, tokens, accessExpires, refreshExpires); err != nil {
		m.logger.Warn("Failed to persist provider tokens", "team_id", teamID, "error", err)
	}
	m.cacheToken(teamID, tokens.AccessToken, accessExpires)
	return tokens.AccessToken
}

func (m *Manager) persist(ctx context.Context, teamID int64, tokens *presto.Tokens, accessExpires, refreshExpires time.Time) error {
	access, err := secret.EncryptString(m.box, tokens.AccessToken)
	if err != nil {
		return err
	}
	refresh, err := secret.EncryptString(m.box, tokens.RefreshToken)
	if err != nil {
		return err
	}
	upd := store.TokenUpdate{
		EncryptedAccessToken:  access,
		EncryptedRefreshToken: refresh,
		AccessExpiresAt:       accessExpires,
	}
	if refresh != nil {
		upd.RefreshExpiresAt = &refreshExpires
	}
	return m.store.SaveTokens(ctx, teamID, m.provider, upd)
}

func (m *Manager) cacheToken(teamID int64, token string, expiresAt time.Time) {
	m.cache.Set(cacheKey(teamID), token, expiresAt.Sub(m.now())-m.margin)
}

// ---------------------------------------------------------------------------
// Credential lifecycle
// ---------------------------------------------------------------------------

// Settings configures a team's provider integration. Either Username and
// Password or APIKey must be set.
type Settings struct {
	Username       string
	Password       string
	APIKey         string
	ProviderTeamID string
	SeasonID       string
	// Verify performs a login before saving and stores the resulting tokens.
	Verify bool
}

// Configure stores encrypted credentials and provider ids for a team,
// replacing any previous credential.
func (m *Manager) Configure(ctx context.Context, teamID int64, s Settings) error {
	if s.ProviderTeamID == "" {
		return fmt.Errorf("%w: provider team id is required", ErrNotConfigured)
	}
	kind := store.CredentialBasic
	switch {
	case s.APIKey != "":
		kind = store.CredentialAPIKey
	case s.Username == "" || s.Password == "":
		return fmt.Errorf("%w: username and password or api key required", ErrNotConfigured)
	}

	var tokens *presto.Tokens
	if s.Verify && kind == store.CredentialBasic {
		var err error
		if tokens, err = m.Authenticate(ctx, s.Username, s.Password); err != nil {
			return err
		}
	}

	raw, err := json.Marshal(bundle{Username: s.Username, Password: s.Password, APIKey: s.APIKey})
	if err != nil {
		return fmt.Errorf("encode credential bundle: %w", err)
	}
	sealed, err := m.box.Encrypt(raw)
	if err != nil {
		return fmt.Errorf("encrypt credentials: %w", err)
	}

	cred := &store.Credential{
		TeamID:               teamID,
		Provider:             m.provider,
		Kind:                 kind,
		EncryptedCredentials: sealed,
		Config: map[string]string{
			"team_id":   s.ProviderTeamID,
			"season_id": s.SeasonID,
		},
	}
	if err := m.store.SaveCredential(ctx, cred); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	if err := m.store.SetTeamProvider(ctx, teamID, s.ProviderTeamID, s.SeasonID); err != nil {
		return fmt.Errorf("save provider ids: %w", err)
	}

	m.Invalidate(teamID)
	if tokens != nil {
		m.issue(ctx, teamID, tokens)
	}
	m.logger.Info("Provider credentials configured", "team_id", teamID, "kind", kind)
	return nil
}

// Disconnect deletes the team's credential and provider ids.
func (m *Manager) Disconnect(ctx context.Context, teamID int64) error {
	if err := m.store.DeleteCredential(ctx, teamID, m.provider); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotConfigured
		}
		return fmt.Errorf("delete credential: %w", err)
	}
	if err := m.store.SetTeamProvider(ctx, teamID, "", ""); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("clear provider ids: %w", err)
	}
	m.Invalidate(teamID)
	m.logger.Info("Provider credentials removed", "team_id", teamID)
	return nil
}

func (m *Manager) credential(ctx context.Context, teamID int64) (*store.Credential, error) {
	cred, err := m.store.GetCredential(ctx, teamID, m.provider)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotConfigured
		}
		return nil, fmt.Errorf("load credential: %w", err)
	}
	return cred, nil
}

func (m *Manager) decryptBundle(cred *store.Credential) (*bundle, error) {
	raw, err := m.box.Decrypt(cred.EncryptedCredentials)
	if err != nil {
		return nil, fmt.Errorf("decrypt credentials: %w", err)
	}
	var b bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return &b, nil
}

func cacheKey(teamID int64) string {
	return cacheKeyPrefix + strconv.FormatInt(teamID, 10)
}
