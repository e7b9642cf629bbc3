package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	defaultExpirySkew     = 30 * time.Second
	defaultRefreshTimeout = 30 * time.Second
)

// Refresher exchanges a refresh token for a fresh access token.
type Refresher interface {
	Refresh(ctx context.Context, cred Credential) (*oauth2.Token, error)
}

// OAuthRefresher refreshes against the credential's token endpoint.
type OAuthRefresher struct{}

// Refresh performs the network refresh.
func (OAuthRefresher) Refresh(ctx context.Context, cred Credential) (*oauth2.Token, error) {
	if cred.Token == nil || cred.Token.RefreshToken == "" {
		return nil, ErrCredentialExpired
	}
	src := cred.OAuthConfig().TokenSource(ctx, &oauth2.Token{RefreshToken: cred.Token.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
			return nil, fmt.Errorf("%w: %v", ErrCredentialExpired, err)
		}
		return nil, err
	}
	return tok, nil
}

// Resolver resolves user ids to valid credentials, refreshing on demand.
// Concurrent refreshes for the same user collapse into one network call.
type Resolver struct {
	Store          Store
	Refresher      Refresher
	Logger         *slog.Logger
	Clock          func() time.Time
	ExpirySkew     time.Duration
	RefreshTimeout time.Duration

	flights singleflight.Group
}

// NewResolver constructs a Resolver with sane defaults.
func NewResolver(store Store, refresher Refresher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if refresher == nil {
		refresher = OAuthRefresher{}
	}
	return &Resolver{
		Store:          store,
		Refresher:      refresher,
		Logger:         logger,
		Clock:          time.Now,
		ExpirySkew:     defaultExpirySkew,
		RefreshTimeout: defaultRefreshTimeout,
	}
}

// Resolve returns the registered credential for userID unchanged.
func (r *Resolver) Resolve(ctx context.Context, userID string) (Credential, error) {
	cred, err := r.Store.Get(ctx, userID)
	if err != nil {
		return Credential{}, err
	}
	return cred, nil
}

// Valid reports whether the credential's access token can be used now.
func (r *Resolver) Valid(cred Credential) bool {
	if cred.Token == nil || cred.Token.AccessToken == "" {
		return false
	}
	if cred.Token.Expiry.IsZero() {
		return true
	}
	return r.Clock().Add(r.ExpirySkew).Before(cred.Token.Expiry)
}

// EnsureValid returns cred if it is still valid, otherwise refreshes it and
// updates the stored copy.
func (r *Resolver) EnsureValid(ctx context.Context, cred Credential) (Credential, error) {
	if r.Valid(cred) {
		return cred, nil
	}
	if cred.Token == nil || cred.Token.RefreshToken == "" {
		return Credential{}, fmt.Errorf("%w: %s has no refresh token", ErrCredentialExpired, cred.UserID)
	}

	ch := r.flights.DoChan(cred.UserID, func() (any, error) {
		return r.refresh(ctx, cred)
	})
	select {
	case <-ctx.Done():
		return Credential{}, fmt.Errorf("refresh %s: %w", cred.UserID, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return Credential{}, res.Err
		}
		return res.Val.(Credential).clone(), nil
	}
}

// ResolveValid is Resolve followed by EnsureValid.
func (r *Resolver) ResolveValid(ctx context.Context, userID string) (Credential, error) {
	cred, err := r.Resolve(ctx, userID)
	if err != nil {
		return Credential{}, err
	}
	return r.EnsureValid(ctx, cred)
}

func (r *Resolver) refresh(ctx context.Context, cred Credential) (Credential, error) {
	// The flight outlives any single waiter; a waiter giving up must not
	// cancel the refresh for the others.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.RefreshTimeout)
	defer cancel()

	// Another flight may have completed between our read and this one.
	if stored, err := r.Store.Get(ctx, cred.UserID); err == nil && r.Valid(stored) {
		return stored, nil
	}

	r.Logger.InfoContext(ctx, "refreshing credential", slog.String("user", cred.UserID))
	tok, err := r.Refresher.Refresh(ctx, cred)
	if err != nil {
		return Credential{}, fmt.Errorf("refresh %s: %w", cred.UserID, err)
	}
	updated, err := r.Store.Refresh(ctx, cred.UserID, tok)
	if err != nil {
		return Credential{}, fmt.Errorf("store refreshed token for %s: %w", cred.UserID, err)
	}
	return updated, nil
}
