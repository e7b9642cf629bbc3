package classify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
)

func TestBuildPrefersSavedModel(t *testing.T) {
	dir := t.TempDir()
	m, err := Train(SeedExamples(), TrainOptions{})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	path := filepath.Join(dir, "model.json")
	if err := m.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	c, err := Build(context.Background(), BuildOptions{
		ModelPath:   path,
		TrainingCSV: filepath.Join(dir, "missing.csv"),
	}, slogDiscard())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if c.Name() != "tfidf-logreg" {
		t.Fatalf("unexpected classifier %s", c.Name())
	}
}

func TestBuildNoTrainingData(t *testing.T) {
	_, err := Build(context.Background(), BuildOptions{
		TrainingCSV: filepath.Join(t.TempDir(), "missing.csv"),
	}, slogDiscard())
	if !errors.Is(err, ErrNoTrainingData) {
		t.Fatalf("expected ErrNoTrainingData, got %v", err)
	}
}

func TestBuildSeedFallback(t *testing.T) {
	c, err := Build(context.Background(), BuildOptions{UseSeed: true}, slogDiscard())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if p := c.Predict("You won a lottery!!!"); p.Label != Unwanted {
		t.Fatalf("expected Unwanted, got %+v", p)
	}
}

func TestBuildKeywordWithExtraSource(t *testing.T) {
	extra := func(context.Context) ([]string, error) { return []string{"webinar"}, nil }
	c, err := Build(context.Background(), BuildOptions{Kind: "keyword", Keywords: []string{"lottery"}, Extra: extra}, slogDiscard())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if p := c.Predict("Join our webinar"); p.Label != Unwanted {
		t.Fatalf("expected extra keyword to match, got %+v", p)
	}

	failing := func(context.Context) ([]string, error) { return nil, errors.New("gmailctl missing") }
	c, err = Build(context.Background(), BuildOptions{Kind: "keyword", Extra: failing}, slogDiscard())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if p := c.Predict("Claim your prize"); p.Label != Unwanted {
		t.Fatalf("expected default keywords, got %+v", p)
	}
}

func TestBuildUnknownKind(t *testing.T) {
	if _, err := Build(context.Background(), BuildOptions{Kind: "bayes"}, slogDiscard()); err == nil {
		t.Fatalf("expected error")
	}
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
