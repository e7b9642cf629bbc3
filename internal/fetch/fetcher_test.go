package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/joshsymonds/mailsorter/internal/gmail"
)

type fakeClient struct {
	ids     []gmail.MessageID
	listErr error
	metas   map[gmail.MessageID]gmail.MessageMeta
	failing map[gmail.MessageID]error
	limits  []int
}

func (f *fakeClient) ListRecent(ctx context.Context, limit int) ([]gmail.MessageID, error) {
	_ = ctx
	f.limits = append(f.limits, limit)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.ids, nil
}

func (f *fakeClient) GetMetadata(
	ctx context.Context,
	id gmail.MessageID,
	headers []string,
) (gmail.MessageMeta, error) {
	_ = ctx
	_ = headers
	if err := f.failing[id]; err != nil {
		return gmail.MessageMeta{}, err
	}
	return f.metas[id], nil
}

func (f *fakeClient) Modify(ctx context.Context, id gmail.MessageID, ops gmail.ModifyOps) error {
	_, _, _ = ctx, id, ops
	return nil
}

func (f *fakeClient) ListLabels(ctx context.Context) ([]gmail.Label, error) {
	_ = ctx
	return nil, nil
}

func (f *fakeClient) CreateLabel(ctx context.Context, name string) (gmail.Label, error) {
	_, _ = ctx, name
	return gmail.Label{}, nil
}

func (f *fakeClient) Profile(ctx context.Context) (string, error) {
	_ = ctx
	return "me@example.com", nil
}

func TestGetMetadataHeaderCasing(t *testing.T) {
	client := &fakeClient{metas: map[gmail.MessageID]gmail.MessageMeta{
		"1": {
			ID:      "1",
			Snippet: "claim now",
			Headers: []gmail.Header{
				{Name: "subject", Value: "You won"},
				{Name: "FROM", Value: "Lotto <win@lotto.example>"},
			},
		},
	}}
	f := New(client, nil, slogDiscard())

	msg, err := f.GetMetadata(context.Background(), "1")
	if err != nil {
		t.Fatalf("get metadata: %v", err)
	}
	if msg.Subject != "You won" || msg.Sender != "Lotto <win@lotto.example>" || msg.Snippet != "claim now" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestGetMetadataMissingSubject(t *testing.T) {
	client := &fakeClient{metas: map[gmail.MessageID]gmail.MessageMeta{
		"1": {ID: "1", Headers: []gmail.Header{{Name: "From", Value: "a@example.com"}}},
	}}
	msg, err := New(client, nil, slogDiscard()).GetMetadata(context.Background(), "1")
	if err != nil {
		t.Fatalf("get metadata: %v", err)
	}
	if msg.Subject != NoSubject {
		t.Fatalf("expected placeholder subject, got %q", msg.Subject)
	}
}

func TestGetMetadataFailure(t *testing.T) {
	cause := errors.New("boom")
	client := &fakeClient{failing: map[gmail.MessageID]error{"x": cause}}
	_, err := New(client, nil, slogDiscard()).GetMetadata(context.Background(), "x")
	var ff *FetchFailedError
	if !errors.As(err, &ff) {
		t.Fatalf("expected FetchFailedError, got %v", err)
	}
	if ff.MessageID != "x" || !errors.Is(err, cause) {
		t.Fatalf("unexpected error contents: %+v", ff)
	}
}

func TestListRecentTruncatesAndWrapsErrors(t *testing.T) {
	client := &fakeClient{ids: []gmail.MessageID{"1", "2", "3"}}
	f := New(client, nil, slogDiscard())
	ids, err := f.ListRecent(context.Background(), 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 || ids[0] != "1" {
		t.Fatalf("unexpected ids: %v", ids)
	}

	client.listErr = errors.New("unauthorized")
	_, err = f.ListRecent(context.Background(), 2)
	var ff *FetchFailedError
	if !errors.As(err, &ff) || ff.MessageID != "" {
		t.Fatalf("expected list FetchFailedError, got %v", err)
	}
}

func TestFetchAllSkipsFailures(t *testing.T) {
	client := &fakeClient{
		metas: map[gmail.MessageID]gmail.MessageMeta{
			"1": {ID: "1", Headers: []gmail.Header{{Name: "Subject", Value: "one"}}},
			"3": {ID: "3", Headers: []gmail.Header{{Name: "Subject", Value: "three"}}},
		},
		failing: map[gmail.MessageID]error{"2": errors.New("503")},
	}
	msgs, errs := New(client, nil, slogDiscard()).FetchAll(
		context.Background(),
		[]gmail.MessageID{"1", "2", "3"},
	)
	if len(msgs) != 2 || msgs[0].Subject != "one" || msgs[1].Subject != "three" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	if len(errs) != 1 {
		t.Fatalf("expected one skipped message, got %d", len(errs))
	}
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
