package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/joshsymonds/mailsorter/internal/classify"
	"github.com/joshsymonds/mailsorter/internal/config"
	"github.com/joshsymonds/mailsorter/internal/credential"
	"github.com/joshsymonds/mailsorter/internal/pipeline"
)

// RegisterRequest registers a credential obtained outside the login flow.
type RegisterRequest struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	TokenURI     string    `json:"token_uri"`
	Scopes       []string  `json:"scopes"`
}

// ClassifyRequest overrides pass options for one request.
type ClassifyRequest struct {
	MaxResults int   `json:"max_results"`
	DryRun     *bool `json:"dry_run"`
}

// ClassifyResponse is the on-demand pass result.
type ClassifyResponse struct {
	PassID      string            `json:"pass_id,omitempty"`
	User        string            `json:"user,omitempty"`
	DryRun      bool              `json:"dry_run"`
	Emails      []pipeline.Result `json:"emails"`
	Skipped     int               `json:"skipped"`
	Placeholder bool              `json:"placeholder,omitempty"`
}

func (s *Server) status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "Backend is running!"})
}

func (s *Server) login(c *fiber.Ctx) error {
	if s.OAuth == nil {
		return fmt.Errorf("%w: oauth client", config.ErrConfigurationMissing)
	}
	state := uuid.NewString()
	s.mu.Lock()
	s.sweepStates()
	s.states[state] = s.Clock().Add(stateTTL)
	s.mu.Unlock()
	url := s.OAuth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	return c.Redirect(url, fiber.StatusFound)
}

func (s *Server) consumeState(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.states[state]
	delete(s.states, state)
	return ok && s.Clock().Before(exp)
}

// sweepStates drops expired states; callers hold s.mu.
func (s *Server) sweepStates() {
	now := s.Clock()
	for k, exp := range s.states {
		if !now.Before(exp) {
			delete(s.states, k)
		}
	}
}

func (s *Server) callback(c *fiber.Ctx) error {
	if s.OAuth == nil {
		return fmt.Errorf("%w: oauth client", config.ErrConfigurationMissing)
	}
	if msg := c.Query("error"); msg != "" {
		return fmt.Errorf("%w: consent denied: %s", errBadRequest, msg)
	}
	if !s.consumeState(c.Query("state")) {
		return fmt.Errorf("%w: unknown or expired state", errBadRequest)
	}
	code := c.Query("code")
	if code == "" {
		return fmt.Errorf("%w: missing code", errBadRequest)
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()

	tok, err := s.OAuth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	if s.Profile == nil {
		return fmt.Errorf("%w: profile lookup", config.ErrConfigurationMissing)
	}
	email, err := s.Profile(ctx, tok)
	if err != nil {
		return fmt.Errorf("lookup profile: %w", err)
	}
	cred, err := credential.NewCredential(
		email, tok, s.OAuth.ClientID, s.OAuth.ClientSecret, s.OAuth.Endpoint.TokenURL, s.Scopes,
	)
	if err != nil {
		return err
	}
	if err := s.Store.Put(ctx, cred); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	s.Logger.Info("user authenticated", slog.String("user", email))
	return c.JSON(fiber.Map{"user": email, "status": "authenticated"})
}

func (s *Server) register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	scopes := s.Scopes
	if len(req.Scopes) > 0 {
		parsed, err := credential.ParseScopes(req.Scopes)
		if err != nil {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
		scopes = parsed
	}
	clientID, clientSecret := req.ClientID, req.ClientSecret
	if clientID == "" && s.OAuth != nil {
		clientID, clientSecret = s.OAuth.ClientID, s.OAuth.ClientSecret
	}
	tok := &oauth2.Token{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       req.Expiry,
	}
	cred, err := credential.NewCredential(req.UserID, tok, clientID, clientSecret, req.TokenURI, scopes)
	if err != nil {
		return err
	}
	if err := s.Store.Put(c.UserContext(), cred); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	s.Logger.Info("user registered", slog.String("user", cred.UserID))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": cred.UserID})
}

func (s *Server) listUsers(c *fiber.Ctx) error {
	users, err := s.Store.List(c.UserContext())
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	return c.JSON(fiber.Map{"users": users})
}

func (s *Server) logout(c *fiber.Ctx) error {
	user := c.Params("id")
	if err := s.Store.Delete(c.UserContext(), user); err != nil {
		if errors.Is(err, credential.ErrNotAuthenticated) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return fmt.Errorf("delete credential: %w", err)
	}
	s.Logger.Info("user logged out", slog.String("user", user))
	return c.JSON(fiber.Map{"user": user, "status": "logged out"})
}

func (s *Server) classify(c *fiber.Ctx) error {
	opts := s.Options
	if len(c.Body()) > 0 {
		var req ClassifyRequest
		if err := c.BodyParser(&req); err != nil {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
		if req.MaxResults > 0 {
			opts.MaxResults = req.MaxResults
		}
		if req.DryRun != nil {
			opts.DryRun = *req.DryRun
		}
	}
	return s.runPass(c, c.Params("id"), opts)
}

func (s *Server) fetchEmails(c *fiber.Ctx) error {
	opts := s.Options
	if n := c.QueryInt("max_results", 0); n > 0 {
		opts.MaxResults = n
	}
	user := strings.TrimSpace(c.Query("user"))
	if user == "" {
		users, err := s.Store.List(c.UserContext())
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		if len(users) == 1 {
			user = users[0]
		}
	}
	return s.runPass(c, user, opts)
}

func (s *Server) runPass(c *fiber.Ctx, user string, opts pipeline.Options) error {
	if user == "" {
		if s.Config.Placeholder {
			return c.JSON(placeholderResponse())
		}
		return fmt.Errorf("%w: user is required", errBadRequest)
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()
	rep, err := s.Runner.Run(ctx, user, opts)
	if err != nil {
		if s.Config.Placeholder && errors.Is(err, credential.ErrNotAuthenticated) {
			return c.JSON(placeholderResponse())
		}
		return err
	}
	emails := rep.Results
	if emails == nil {
		emails = []pipeline.Result{}
	}
	return c.JSON(ClassifyResponse{
		PassID:  rep.PassID,
		User:    rep.User,
		DryRun:  rep.DryRun,
		Emails:  emails,
		Skipped: len(rep.Skipped),
	})
}

func placeholderResponse() ClassifyResponse {
	return ClassifyResponse{
		Emails: []pipeline.Result{
			{Subject: "Welcome to Gmail", Label: classify.Wanted, Confidence: 95.23, State: pipeline.StateUnmoved},
			{Subject: "You won a lottery!!!", Label: classify.Unwanted, Confidence: 98.67, State: pipeline.StateUnmoved},
			{Subject: "Meeting tomorrow at 10AM", Label: classify.Wanted, Confidence: 87.45, State: pipeline.StateUnmoved},
		},
		DryRun:      true,
		Placeholder: true,
	}
}
