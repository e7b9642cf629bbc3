// Package httpapi exposes the classification pipeline and credential
// registration over HTTP for the browser extension.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/oauth2"

	"github.com/joshsymonds/mailsorter/internal/credential"
	"github.com/joshsymonds/mailsorter/internal/pipeline"
)

const (
	defaultRequestTimeout = 60 * time.Second
	stateTTL              = 10 * time.Minute
)

// Runner runs one pass for a user. *pipeline.Service satisfies it.
type Runner interface {
	Run(ctx context.Context, userID string, opts pipeline.Options) (pipeline.Report, error)
}

// ProfileLookup returns the mailbox address a freshly issued token belongs to.
type ProfileLookup func(ctx context.Context, tok *oauth2.Token) (string, error)

// Config holds the HTTP-facing settings.
type Config struct {
	CORSOrigins string
	// RateLimit is requests per minute per client IP; 0 disables limiting.
	RateLimit      int
	RequestTimeout time.Duration
	// Placeholder answers unauthenticated classify requests with tagged
	// sample data instead of an error.
	Placeholder bool
	// AccessLog enables fiber's request logger.
	AccessLog bool
}

// Server wires handlers to the credential store and pipeline.
type Server struct {
	Store   credential.Store
	Runner  Runner
	OAuth   *oauth2.Config
	Scopes  credential.ScopeSet
	Profile ProfileLookup
	Options pipeline.Options
	Config  Config
	Logger  *slog.Logger
	Clock   func() time.Time

	mu     sync.Mutex
	states map[string]time.Time
}

// NewServer constructs a Server. oauthCfg may be nil when no OAuth client is
// configured; the login routes then report ConfigurationMissing.
func NewServer(
	store credential.Store,
	runner Runner,
	oauthCfg *oauth2.Config,
	scopes credential.ScopeSet,
	profile ProfileLookup,
	opts pipeline.Options,
	cfg Config,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	return &Server{
		Store:   store,
		Runner:  runner,
		OAuth:   oauthCfg,
		Scopes:  scopes,
		Profile: profile,
		Options: opts,
		Config:  cfg,
		Logger:  logger,
		Clock:   time.Now,
		states:  make(map[string]time.Time),
	}
}

// App builds the fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})
	app.Use(recover.New())
	if s.Config.AccessLog {
		app.Use(logger.New())
	}
	origins := s.Config.CORSOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{AllowOrigins: origins}))
	if s.Config.RateLimit > 0 {
		app.Use(RateLimiter(s.Config.RateLimit, time.Minute))
	}

	app.Get("/", s.status)

	auth := app.Group("/auth")
	auth.Get("/login", s.login)
	auth.Get("/callback", s.callback)

	users := app.Group("/users")
	users.Post("/", s.register)
	users.Get("/", s.listUsers)
	users.Delete("/:id", s.logout)
	users.Post("/:id/classify", s.classify)

	app.Get("/fetch-emails", s.fetchEmails)
	return app
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.Logger.Error("request failed", slog.String("path", c.Path()), "error", err)
	}
	return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
}

func (s *Server) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), s.Config.RequestTimeout)
}
