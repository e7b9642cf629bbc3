// internal/runtime/auth.go
package runtime

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/joshsymonds/mailsorter/internal/config"
	"github.com/joshsymonds/mailsorter/internal/credential"
	gc "github.com/joshsymonds/mailsorter/internal/gmail"
)

// DefaultLogger is the process-wide text logger on stderr.
func DefaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// OAuthClientFactory builds Gmail clients from stored credentials.
type OAuthClientFactory struct {
	Options []option.ClientOption
}

// Client authorises a Gmail service with the credential's current token.
// Callers must have validated (refreshed) the credential first.
func (f OAuthClientFactory) Client(ctx context.Context, cred credential.Credential) (gc.Client, error) {
	if cred.Token == nil {
		return nil, fmt.Errorf("%w: %s has no token", credential.ErrCredentialExpired, cred.UserID)
	}
	opts := append([]option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(cred.Token)),
	}, f.Options...)
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewGoogleAPIClient(svc), nil
}

// OAuthConfig builds the authorization-code configuration from either a
// client secrets file or an explicit client id/secret.
func OAuthConfig(cfg config.OAuth, scopes credential.ScopeSet) (*oauth2.Config, error) {
	if cfg.CredentialsFile != "" {
		raw, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", config.ErrConfigurationMissing, cfg.CredentialsFile)
			}
			return nil, fmt.Errorf("read %s: %w", cfg.CredentialsFile, err)
		}
		oc, err := google.ConfigFromJSON(raw, scopes.URLs()...)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", cfg.CredentialsFile, err)
		}
		if cfg.RedirectURL != "" {
			oc.RedirectURL = cfg.RedirectURL
		}
		return oc, nil
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: oauth client id and secret", config.ErrConfigurationMissing)
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       scopes.URLs(),
	}, nil
}

// LocalClient is the single-user flow used by the command-line tools: it
// reuses tokenPath when present, otherwise asks for an authorization code
// on in/out and saves the resulting token (offline access, forced consent
// so a refresh token is always issued).
func LocalClient(
	ctx context.Context,
	oc *oauth2.Config,
	tokenPath string,
	in io.Reader,
	out io.Writer,
) (gc.Client, error) {
	tok, err := readToken(tokenPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		tok, err = exchangeInteractive(ctx, oc, in, out)
		if err != nil {
			return nil, err
		}
		if err := writeToken(tokenPath, tok); err != nil {
			return nil, err
		}
	}
	svc, err := gmail.NewService(ctx, option.WithTokenSource(oc.TokenSource(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewGoogleAPIClient(svc), nil
}

func exchangeInteractive(ctx context.Context, oc *oauth2.Config, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	url := oc.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	if _, err := fmt.Fprintf(out, "Open this link, approve access, then paste the code:\n%s\n> ", url); err != nil {
		return nil, fmt.Errorf("write prompt: %w", err)
	}
	code, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read authorization code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.New("empty authorization code")
	}
	tok, err := oc.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}

func readToken(path string) (*oauth2.Token, error) {
	raw, err := os.ReadFile(path) // #nosec G304 - operator supplied path
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &tok, nil
}

func writeToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	return nil
}

// Profile returns the mailbox address tok belongs to.
func (f OAuthClientFactory) Profile(ctx context.Context, tok *oauth2.Token) (string, error) {
	client, err := f.Client(ctx, credential.Credential{UserID: "me", Token: tok})
	if err != nil {
		return "", err
	}
	return client.Profile(ctx)
}
