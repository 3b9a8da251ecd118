// Package auth resolves the current session on the client: which owner
// remote operations are scoped to and which subscription tier gates sync.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwtauth "github.com/dmitrijs2005/quotekeeper/internal/auth"
	"github.com/dmitrijs2005/quotekeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/quotekeeper/internal/common"
	"github.com/dmitrijs2005/quotekeeper/internal/timex"
)

// Session is the signed-in owner.
type Session struct {
	OwnerID   string
	Tier      string
	ExpiresAt *time.Time
}

// SessionSource returns the current session, or nil when nobody is signed
// in.
type SessionSource interface {
	Session(ctx context.Context) (*Session, error)
}

// Provider keeps the session token in the local key/value store.
type Provider struct {
	kv    kv.Repository
	clock timex.Clock
}

func NewProvider(repo kv.Repository, clock timex.Clock) *Provider {
	if clock == nil {
		clock = timex.SystemClock{}
	}
	return &Provider{kv: repo, clock: clock}
}

// Login validates and stores token.
func (p *Provider) Login(ctx context.Context, token string) (*Session, error) {
	claims, err := jwtauth.ParseUnverified(token, p.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := p.kv.Set(ctx, common.AccessTokenKey, []byte(token)); err != nil {
		return nil, fmt.Errorf("%w: save token: %w", common.ErrStorage, err)
	}
	return toSession(claims), nil
}

func (p *Provider) Logout(ctx context.Context) error {
	return p.kv.Delete(ctx, common.AccessTokenKey)
}

// Token returns the stored token, "" when there is none.
func (p *Provider) Token(ctx context.Context) (string, error) {
	b, err := p.kv.Get(ctx, common.AccessTokenKey)
	if err != nil {
		return "", fmt.Errorf("%w: load token: %w", common.ErrStorage, err)
	}
	return string(b), nil
}

// Session returns nil for a missing or expired token. A stored token that
// no longer parses is reported as an error.
func (p *Provider) Session(ctx context.Context) (*Session, error) {
	token, err := p.Token(ctx)
	if err != nil || token == "" {
		return nil, err
	}
	claims, err := jwtauth.ParseUnverified(token, p.clock.Now())
	if errors.Is(err, jwtauth.ErrTokenExpired) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toSession(claims), nil
}

// CurrentOwnerID returns "" when nobody is signed in.
func (p *Provider) CurrentOwnerID(ctx context.Context) (string, error) {
	s, err := p.Session(ctx)
	if err != nil || s == nil {
		return "", err
	}
	return s.OwnerID, nil
}

func toSession(c *jwtauth.Claims) *Session {
	s := &Session{OwnerID: c.OwnerID(), Tier: c.Tier}
	if c.ExpiresAt != nil {
		t := c.ExpiresAt.Time.UTC()
		s.ExpiresAt = &t
	}
	return s
}

// Static is a fixed session; an empty OwnerID means signed out.
type Static struct {
	OwnerID string
	Tier    string
}

func (s Static) Session(context.Context) (*Session, error) {
	if s.OwnerID == "" {
		return nil, nil
	}
	return &Session{OwnerID: s.OwnerID, Tier: s.Tier}, nil
}
