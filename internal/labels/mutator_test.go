package labels

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/joshsymonds/mailsorter/internal/gmail"
	"github.com/joshsymonds/mailsorter/internal/gmail/gmailtest"
)

func TestEnsureLabelIdempotentAcrossCasing(t *testing.T) {
	mb := gmailtest.NewMailbox()
	m := NewMutator(nil, slogDiscard())
	ctx := context.Background()

	first, err := m.EnsureLabel(ctx, "me", mb, "Filtered-Unwanted")
	if err != nil {
		t.Fatalf("ensure label: %v", err)
	}
	second, err := m.EnsureLabel(ctx, "me", mb, "filtered-unwanted")
	if err != nil {
		t.Fatalf("ensure label: %v", err)
	}
	if first != second {
		t.Fatalf("expected same id, got %s and %s", first, second)
	}
	if n := mb.Creates.Load(); n != 1 {
		t.Fatalf("expected one create, got %d", n)
	}
}

func TestEnsureLabelFindsExisting(t *testing.T) {
	mb := gmailtest.NewMailbox()
	mb.AddLabel("Label_9", "FILTERED-UNWANTED")
	id, err := NewMutator(nil, slogDiscard()).EnsureLabel(context.Background(), "me", mb, DefaultUnwanted)
	if err != nil {
		t.Fatalf("ensure label: %v", err)
	}
	if id != "Label_9" || mb.Creates.Load() != 0 {
		t.Fatalf("expected existing label, got %s (creates=%d)", id, mb.Creates.Load())
	}
}

func TestEnsureLabelConcurrentFirstUse(t *testing.T) {
	mb := gmailtest.NewMailbox()
	m := NewMutator(nil, slogDiscard())

	const callers = 16
	ids := make([]gmail.LabelID, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := m.EnsureLabel(context.Background(), "me", mb, "Filtered-Unwanted")
			if err != nil {
				t.Errorf("ensure label: %v", err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()
	if n := mb.LabelCount("Filtered-Unwanted"); n != 1 {
		t.Fatalf("expected exactly one label, got %d", n)
	}
	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("callers saw different ids: %v", ids)
		}
	}
}

func TestEnsureLabelCreateFailure(t *testing.T) {
	mb := gmailtest.NewMailbox()
	mb.CreateErr = errors.New("quota")
	_, err := NewMutator(nil, slogDiscard()).EnsureLabel(context.Background(), "me", mb, "X")
	var mf *MutationFailedError
	if !errors.As(err, &mf) || mf.Label != "X" {
		t.Fatalf("expected MutationFailedError, got %v", err)
	}
}

func TestMoveToLabelIdempotent(t *testing.T) {
	mb := gmailtest.NewMailbox(gmailtest.Message{ID: "m1", Subject: "You won"})
	m := NewMutator(nil, slogDiscard())
	ctx := context.Background()
	id, err := m.EnsureLabel(ctx, "me", mb, DefaultUnwanted)
	if err != nil {
		t.Fatalf("ensure label: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := m.MoveToLabel(ctx, mb, "m1", id); err != nil {
			t.Fatalf("move %d: %v", i, err)
		}
	}
	got := mb.LabelsOf("m1")
	if len(got) != 1 || got[0] != id {
		t.Fatalf("expected only %s, got %v", id, got)
	}
}

func TestMoveToLabelFailure(t *testing.T) {
	mb := gmailtest.NewMailbox(gmailtest.Message{ID: "m1", Subject: "x"})
	mb.ModifyErr["m1"] = errors.New("403")
	err := NewMutator(nil, slogDiscard()).MoveToLabel(context.Background(), mb, "m1", "Label_1")
	var mf *MutationFailedError
	if !errors.As(err, &mf) || mf.MessageID != "m1" {
		t.Fatalf("expected MutationFailedError for m1, got %v", err)
	}
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
