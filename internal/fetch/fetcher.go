package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joshsymonds/mailsorter/internal/gmail"
	"github.com/joshsymonds/mailsorter/internal/rate"
)

// NoSubject stands in for a missing Subject header.
const NoSubject = "(no subject)"

func defaultHeaders() []string {
	return []string{"Subject", "From"}
}

// Message is the metadata of one message as seen by a single pass.
type Message struct {
	ID      gmail.MessageID
	Subject string
	Sender  string
	Snippet string
	Labels  []gmail.LabelID
}

// HasLabel reports whether the message already carries id.
func (m Message) HasLabel(id gmail.LabelID) bool {
	for _, l := range m.Labels {
		if l == id {
			return true
		}
	}
	return false
}

// FetchFailedError reports a transport or auth failure while listing
// (MessageID empty) or retrieving one message.
type FetchFailedError struct {
	MessageID gmail.MessageID
	Cause     error
}

func (e *FetchFailedError) Error() string {
	if e.MessageID == "" {
		return fmt.Sprintf("fetch failed: list messages: %v", e.Cause)
	}
	return fmt.Sprintf("fetch failed: message %s: %v", e.MessageID, e.Cause)
}

func (e *FetchFailedError) Unwrap() error { return e.Cause }

// Fetcher lists and reads message metadata through a Gmail client.
type Fetcher struct {
	Client  gmail.Client
	Limiter rate.Limiter
	Logger  *slog.Logger
}

// New constructs a Fetcher.
func New(client gmail.Client, limiter rate.Limiter, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Fetcher{Client: client, Limiter: limiter, Logger: logger}
}

// ListRecent returns at most limit message ids, most recent first.
func (f *Fetcher) ListRecent(ctx context.Context, limit int) ([]gmail.MessageID, error) {
	if limit <= 0 {
		return nil, nil
	}
	if err := f.wait(ctx); err != nil {
		return nil, &FetchFailedError{Cause: err}
	}
	ids, err := f.Client.ListRecent(ctx, limit)
	if err != nil {
		return nil, &FetchFailedError{Cause: err}
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// GetMetadata fetches Subject/From and the snippet for one message.
func (f *Fetcher) GetMetadata(ctx context.Context, id gmail.MessageID) (Message, error) {
	if err := f.wait(ctx); err != nil {
		return Message{}, &FetchFailedError{MessageID: id, Cause: err}
	}
	meta, err := f.Client.GetMetadata(ctx, id, defaultHeaders())
	if err != nil {
		return Message{}, &FetchFailedError{MessageID: id, Cause: err}
	}
	return toMessage(id, meta), nil
}

// FetchAll fetches every id in order, skipping (and logging) messages that
// fail. Cancellation of ctx aborts the batch.
func (f *Fetcher) FetchAll(ctx context.Context, ids []gmail.MessageID) ([]Message, []error) {
	var (
		msgs []Message
		errs []error
	)
	for _, id := range ids {
		msg, err := f.GetMetadata(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				errs = append(errs, err)
				return msgs, errs
			}
			f.Logger.WarnContext(ctx, "skipping message", slog.String("id", string(id)), "error", err)
			errs = append(errs, err)
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, errs
}

func toMessage(id gmail.MessageID, meta gmail.MessageMeta) Message {
	msg := Message{ID: id, Snippet: meta.Snippet, Labels: meta.Labels, Subject: NoSubject}
	if subject, ok := meta.Header("Subject"); ok && subject != "" {
		msg.Subject = subject
	}
	if from, ok := meta.Header("From"); ok {
		msg.Sender = from
	}
	return msg
}

func (f *Fetcher) wait(ctx context.Context) error {
	if f.Limiter == nil {
		return nil
	}
	return f.Limiter.Wait(ctx)
}
