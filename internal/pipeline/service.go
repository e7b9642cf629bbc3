package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joshsymonds/mailsorter/internal/classify"
	"github.com/joshsymonds/mailsorter/internal/credential"
	"github.com/joshsymonds/mailsorter/internal/fetch"
	"github.com/joshsymonds/mailsorter/internal/gmail"
	"github.com/joshsymonds/mailsorter/internal/labels"
	"github.com/joshsymonds/mailsorter/internal/rate"
)

const defaultMaxResults = 10

// CredentialResolver yields a credential that is valid right now.
type CredentialResolver interface {
	ResolveValid(ctx context.Context, userID string) (credential.Credential, error)
}

// ClientFactory builds a Gmail client authorised by cred.
type ClientFactory interface {
	Client(ctx context.Context, cred credential.Credential) (gmail.Client, error)
}

// Options controls a single pass.
type Options struct {
	MaxResults int
	Label      string
	// Concurrency bounds how many messages are in flight; 1 is sequential.
	Concurrency int
	DryRun      bool
	// MoveThreshold is the minimum confidence needed to move Unwanted mail.
	MoveThreshold float64
	// UseSnippet appends the snippet to the subject before classifying.
	UseSnippet bool
}

func (o Options) withDefaults() Options {
	if o.MaxResults <= 0 {
		o.MaxResults = defaultMaxResults
	}
	if o.Label == "" {
		o.Label = labels.DefaultUnwanted
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	return o
}

// State is the terminal state of a message within one pass.
type State string

const (
	StateMoved   State = "moved"
	StateUnmoved State = "unmoved"
)

// Result is the outcome for one message.
type Result struct {
	ID         gmail.MessageID `json:"id"`
	Subject    string          `json:"subject"`
	Sender     string          `json:"sender"`
	Label      classify.Label  `json:"label"`
	Confidence float64         `json:"confidence"`
	State      State           `json:"state"`
	Error      string          `json:"error,omitempty"`

	Err error `json:"-"`
}

// Skipped records a message whose metadata could not be fetched.
type Skipped struct {
	ID    gmail.MessageID `json:"id"`
	Error string          `json:"error"`
}

// Report summarises one pass.
type Report struct {
	PassID      string    `json:"pass_id"`
	User        string    `json:"user"`
	GeneratedAt time.Time `json:"generated_at"`
	DryRun      bool      `json:"dry_run"`
	Results     []Result  `json:"emails"`
	Skipped     []Skipped `json:"skipped"`
}

// Moved counts results that ended in StateMoved.
func (r Report) Moved() int {
	n := 0
	for _, res := range r.Results {
		if res.State == StateMoved {
			n++
		}
	}
	return n
}

// Service runs fetch → classify → relabel passes.
type Service struct {
	Resolver   CredentialResolver
	Clients    ClientFactory
	Mutator    *labels.Mutator
	Classifier classify.Classifier
	Limiter    rate.Limiter
	Logger     *slog.Logger
	Clock      func() time.Time
}

// NewService constructs a Service with sane defaults.
func NewService(
	resolver CredentialResolver,
	clients ClientFactory,
	classifier classify.Classifier,
	limiter rate.Limiter,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{
		Resolver:   resolver,
		Clients:    clients,
		Mutator:    labels.NewMutator(limiter, logger),
		Classifier: classifier,
		Limiter:    limiter,
		Logger:     logger,
		Clock:      time.Now,
	}
}

// Run resolves the user's credential and runs one pass. Credential,
// listing and training failures abort the pass; per-message failures do not.
func (s *Service) Run(ctx context.Context, userID string, opts Options) (Report, error) {
	if s.Classifier == nil {
		return Report{}, classify.ErrNoTrainingData
	}
	cred, err := s.Resolver.ResolveValid(ctx, userID)
	if err != nil {
		return Report{}, err
	}
	if !cred.Scopes.CanModify() && !opts.DryRun {
		s.Logger.WarnContext(ctx, "credential lacks modify scope; running dry",
			slog.String("user", userID))
		opts.DryRun = true
	}
	client, err := s.Clients.Client(ctx, cred)
	if err != nil {
		return Report{}, fmt.Errorf("build gmail client for %s: %w", userID, err)
	}
	return s.Process(ctx, userID, client, opts)
}

// Process runs one pass against an already authorised client.
func (s *Service) Process(
	ctx context.Context,
	userID string,
	client gmail.Client,
	opts Options,
) (Report, error) {
	if s.Classifier == nil {
		return Report{}, classify.ErrNoTrainingData
	}
	opts = opts.withDefaults()
	rep := Report{
		PassID:      uuid.NewString(),
		User:        userID,
		GeneratedAt: s.Clock(),
		DryRun:      opts.DryRun,
	}
	logger := s.Logger.With(slog.String("pass", rep.PassID), slog.String("user", userID))
	logger.InfoContext(ctx, "starting pass",
		slog.Int("max_results", opts.MaxResults),
		slog.String("classifier", s.Classifier.Name()),
		slog.Bool("dry_run", opts.DryRun),
	)

	fetcher := fetch.New(client, s.Limiter, logger)
	ids, err := fetcher.ListRecent(ctx, opts.MaxResults)
	if err != nil {
		return Report{}, err
	}

	ensureLabel := sync.OnceValues(func() (gmail.LabelID, error) {
		return s.Mutator.EnsureLabel(ctx, userID, client, opts.Label)
	})

	results := make([]*Result, len(ids))
	var (
		mu      sync.Mutex
		skipped []Skipped
	)
	g := new(errgroup.Group)
	g.SetLimit(opts.Concurrency)
	for i, id := range ids {
		g.Go(func() error {
			msg, err := fetcher.GetMetadata(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.WarnContext(ctx, "skipping message", slog.String("id", string(id)), "error", err)
				mu.Lock()
				skipped = append(skipped, Skipped{ID: id, Error: err.Error()})
				mu.Unlock()
				return nil
			}
			res := s.handle(ctx, logger, client, msg, opts, ensureLabel)
			results[i] = &res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, fmt.Errorf("pass %s: %w", rep.PassID, err)
	}

	for _, r := range results {
		if r != nil {
			rep.Results = append(rep.Results, *r)
		}
	}
	rep.Skipped = skipped
	logger.InfoContext(ctx, "pass complete",
		slog.Int("classified", len(rep.Results)),
		slog.Int("moved", rep.Moved()),
		slog.Int("skipped", len(rep.Skipped)),
	)
	return rep, nil
}

func (s *Service) handle(
	ctx context.Context,
	logger *slog.Logger,
	client gmail.Client,
	msg fetch.Message,
	opts Options,
	ensureLabel func() (gmail.LabelID, error),
) Result {
	text := msg.Subject
	if opts.UseSnippet && msg.Snippet != "" {
		text += " " + msg.Snippet
	}
	pred := s.Classifier.Predict(text)
	res := Result{
		ID:         msg.ID,
		Subject:    msg.Subject,
		Sender:     msg.Sender,
		Label:      pred.Label,
		Confidence: pred.Confidence,
		State:      StateUnmoved,
	}
	logger.DebugContext(ctx, "classified",
		slog.String("id", string(msg.ID)),
		slog.String("label", string(pred.Label)),
		slog.Float64("confidence", pred.Confidence),
	)
	if pred.Label != classify.Unwanted || pred.Confidence < opts.MoveThreshold || opts.DryRun {
		return res
	}

	labelID, err := ensureLabel()
	if err == nil {
		if msg.HasLabel(labelID) && !msg.HasLabel(gmail.LabelInbox) {
			res.State = StateMoved
			return res
		}
		err = s.Mutator.MoveToLabel(ctx, client, msg.ID, labelID)
	}
	if err != nil {
		var mf *labels.MutationFailedError
		if !errors.As(err, &mf) {
			err = &labels.MutationFailedError{MessageID: msg.ID, Cause: err}
		}
		logger.WarnContext(ctx, "move failed", slog.String("id", string(msg.ID)), "error", err)
		res.Err = err
		res.Error = err.Error()
		return res
	}
	res.State = StateMoved
	return res
}
