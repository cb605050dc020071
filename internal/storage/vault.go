package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	apperrors "komun/internal/errors"
)

// The only two entries the client persists.
const (
	AccessTokenKey  = "komun_access_token"
	RefreshTokenKey = "komun_refresh_token"
)

// Session is the persisted credential pair plus the user id read from the
// access token's sub claim, when present.
type Session struct {
	UserID       string
	AccessToken  string
	RefreshToken string
}

// Vault stores the session credentials in a Store.
type Vault struct {
	mu    sync.Mutex
	store Store
}

func NewVault(store Store) *Vault {
	return &Vault{store: store}
}

// Tokens returns the stored access and refresh tokens. Missing entries are
// returned as empty strings.
func (v *Vault) Tokens() (access, refresh string, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if access, err = v.get(AccessTokenKey); err != nil {
		return "", "", err
	}
	if refresh, err = v.get(RefreshTokenKey); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// SetTokens stores the access token and, when refresh is non-empty, the
// refresh token. An empty refresh keeps the stored one.
func (v *Vault) SetTokens(access, refresh string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.store.Set(AccessTokenKey, access); err != nil {
		return err
	}
	if refresh == "" {
		return nil
	}
	return v.store.Set(RefreshTokenKey, refresh)
}

// Clear removes both credentials.
func (v *Vault) Clear() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	return errors.Join(
		v.store.Delete(AccessTokenKey),
		v.store.Delete(RefreshTokenKey),
	)
}

// Session returns the stored session or apperrors.ErrNoSession.
func (v *Vault) Session() (Session, error) {
	access, refresh, err := v.Tokens()
	if err != nil {
		return Session{}, err
	}
	if access == "" {
		return Session{}, apperrors.ErrNoSession
	}
	return Session{
		UserID:       SubjectOf(access),
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// Close closes the underlying store.
func (v *Vault) Close() error {
	return v.store.Close()
}

func (v *Vault) get(key string) (string, error) {
	value, err := v.store.Get(key)
	if errors.Is(err, apperrors.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("vault: %w", err)
	}
	return value, nil
}

// SubjectOf returns the sub claim of a JWT without verifying it, or "" when
// the token is opaque. The server is the only party that verifies tokens.
func SubjectOf(token string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}
