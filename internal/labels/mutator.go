package labels

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/joshsymonds/mailsorter/internal/gmail"
	"github.com/joshsymonds/mailsorter/internal/rate"
)

// DefaultUnwanted is the label unwanted mail is moved into.
const DefaultUnwanted = "Filtered-Unwanted"

// MutationFailedError reports a failed label create or message modify.
type MutationFailedError struct {
	MessageID gmail.MessageID
	Label     string
	Cause     error
}

func (e *MutationFailedError) Error() string {
	if e.MessageID == "" {
		return fmt.Sprintf("mutation failed: label %q: %v", e.Label, e.Cause)
	}
	return fmt.Sprintf("mutation failed: message %s: %v", e.MessageID, e.Cause)
}

func (e *MutationFailedError) Unwrap() error { return e.Cause }

// Mutator ensures labels exist and moves messages into them.
//
// EnsureLabel serialises callers per (user, case-folded name), so concurrent
// first use of a name creates exactly one label from this process.
type Mutator struct {
	Limiter rate.Limiter
	Logger  *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMutator constructs a Mutator.
func NewMutator(limiter rate.Limiter, logger *slog.Logger) *Mutator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Mutator{Limiter: limiter, Logger: logger, locks: map[string]*sync.Mutex{}}
}

func (m *Mutator) lockFor(user, name string) *sync.Mutex {
	key := user + "\x00" + strings.ToLower(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks == nil {
		m.locks = map[string]*sync.Mutex{}
	}
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// EnsureLabel returns the id of the label named name (case-insensitive),
// creating it when absent.
func (m *Mutator) EnsureLabel(
	ctx context.Context,
	user string,
	client gmail.Client,
	name string,
) (gmail.LabelID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &MutationFailedError{Label: name, Cause: fmt.Errorf("label name must not be empty")}
	}
	lock := m.lockFor(user, name)
	lock.Lock()
	defer lock.Unlock()

	if err := m.wait(ctx); err != nil {
		return "", &MutationFailedError{Label: name, Cause: err}
	}
	existing, err := client.ListLabels(ctx)
	if err != nil {
		return "", &MutationFailedError{Label: name, Cause: fmt.Errorf("list labels: %w", err)}
	}
	for _, l := range existing {
		if strings.EqualFold(l.Name, name) {
			return l.ID, nil
		}
	}

	if err := m.wait(ctx); err != nil {
		return "", &MutationFailedError{Label: name, Cause: err}
	}
	created, err := client.CreateLabel(ctx, name)
	if err != nil {
		return "", &MutationFailedError{Label: name, Cause: err}
	}
	m.Logger.InfoContext(ctx, "created label",
		slog.String("user", user),
		slog.String("label", name),
		slog.String("id", string(created.ID)),
	)
	return created.ID, nil
}

// MoveToLabel adds labelID and removes INBOX in a single modify call. The
// provider treats both halves as set operations, so repeating the call is
// harmless.
func (m *Mutator) MoveToLabel(
	ctx context.Context,
	client gmail.Client,
	id gmail.MessageID,
	labelID gmail.LabelID,
) error {
	if err := m.wait(ctx); err != nil {
		return &MutationFailedError{MessageID: id, Cause: err}
	}
	ops := gmail.ModifyOps{
		AddLabels:    []gmail.LabelID{labelID},
		RemoveLabels: []gmail.LabelID{gmail.LabelInbox},
	}
	if err := client.Modify(ctx, id, ops); err != nil {
		return &MutationFailedError{MessageID: id, Cause: err}
	}
	return nil
}

func (m *Mutator) wait(ctx context.Context) error {
	if m.Limiter == nil {
		return nil
	}
	return m.Limiter.Wait(ctx)
}
