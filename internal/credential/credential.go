package credential

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var (
	// ErrNotAuthenticated is returned when no credential is registered for a user.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrCredentialExpired is returned when a credential is expired and cannot be refreshed.
	ErrCredentialExpired = errors.New("credential expired")
	// ErrInvalidCredential is returned by NewCredential for malformed input.
	ErrInvalidCredential = errors.New("invalid credential")
)

// Scope is one of the Gmail OAuth scopes mailsorter understands.
type Scope int

const (
	ScopeReadonly Scope = iota
	ScopeModify
	ScopeLabels
)

var scopeURLs = map[Scope]string{
	ScopeReadonly: "https://www.googleapis.com/auth/gmail.readonly",
	ScopeModify:   "https://www.googleapis.com/auth/gmail.modify",
	ScopeLabels:   "https://www.googleapis.com/auth/gmail.labels",
}

var scopeNames = map[string]Scope{
	"readonly": ScopeReadonly,
	"modify":   ScopeModify,
	"labels":   ScopeLabels,
}

// URL returns the OAuth scope URL.
func (s Scope) URL() string { return scopeURLs[s] }

func (s Scope) String() string {
	for name, sc := range scopeNames {
		if sc == s {
			return name
		}
	}
	return fmt.Sprintf("scope(%d)", int(s))
}

// ParseScope accepts either a short name ("modify") or a full scope URL.
func ParseScope(raw string) (Scope, error) {
	raw = strings.TrimSpace(raw)
	if sc, ok := scopeNames[strings.ToLower(raw)]; ok {
		return sc, nil
	}
	for sc, url := range scopeURLs {
		if url == raw {
			return sc, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown scope %q", ErrInvalidCredential, raw)
}

// ScopeSet is an unordered set of scopes.
type ScopeSet map[Scope]struct{}

// NewScopeSet builds a set from the given scopes.
func NewScopeSet(scopes ...Scope) ScopeSet {
	set := make(ScopeSet, len(scopes))
	for _, sc := range scopes {
		set[sc] = struct{}{}
	}
	return set
}

// ParseScopes parses a list of scope names or URLs.
func ParseScopes(raw []string) (ScopeSet, error) {
	set := make(ScopeSet, len(raw))
	for _, r := range raw {
		sc, err := ParseScope(r)
		if err != nil {
			return nil, err
		}
		set[sc] = struct{}{}
	}
	return set, nil
}

// Has reports whether sc is in the set.
func (s ScopeSet) Has(sc Scope) bool {
	_, ok := s[sc]
	return ok
}

// CanModify reports whether the set authorises label mutations on messages.
func (s ScopeSet) CanModify() bool { return s.Has(ScopeModify) }

// URLs returns the scope URLs in a stable order.
func (s ScopeSet) URLs() []string {
	out := make([]string, 0, len(s))
	for sc := range s {
		out = append(out, sc.URL())
	}
	sort.Strings(out)
	return out
}

func (s ScopeSet) clone() ScopeSet {
	out := make(ScopeSet, len(s))
	for sc := range s {
		out[sc] = struct{}{}
	}
	return out
}

// Credential is the OAuth2 token set authorising API calls on a user's behalf.
type Credential struct {
	UserID       string
	Token        *oauth2.Token
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       ScopeSet
}

// NewCredential validates the required fields. The access token may be
// empty: it is obtained lazily through the refresh token.
func NewCredential(
	userID string,
	token *oauth2.Token,
	clientID, clientSecret, tokenURL string,
	scopes ScopeSet,
) (Credential, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Credential{}, fmt.Errorf("%w: user id is required", ErrInvalidCredential)
	}
	if token == nil || token.RefreshToken == "" {
		return Credential{}, fmt.Errorf("%w: refresh token is required", ErrInvalidCredential)
	}
	if strings.TrimSpace(clientID) == "" {
		return Credential{}, fmt.Errorf("%w: client id is required", ErrInvalidCredential)
	}
	if len(scopes) == 0 {
		return Credential{}, fmt.Errorf("%w: at least one scope is required", ErrInvalidCredential)
	}
	if tokenURL == "" {
		tokenURL = google.Endpoint.TokenURL
	}
	tok := *token
	return Credential{
		UserID:       userID,
		Token:        &tok,
		TokenURL:     tokenURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       scopes.clone(),
	}, nil
}

// OAuthConfig returns the oauth2 configuration for this credential's client.
func (c Credential) OAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: c.TokenURL, AuthURL: google.Endpoint.AuthURL},
		Scopes:       c.Scopes.URLs(),
	}
}

// clone deep-copies the credential so stored state is never aliased.
func (c Credential) clone() Credential {
	out := c
	if c.Token != nil {
		tok := *c.Token
		out.Token = &tok
	}
	out.Scopes = c.Scopes.clone()
	return out
}
