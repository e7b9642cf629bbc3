package classify

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

// KeywordSource supplies extra keywords, typically compiled gmailctl filters.
type KeywordSource func(ctx context.Context) ([]string, error)

// BuildOptions selects and sources a classifier.
type BuildOptions struct {
	Kind        string // "tfidf" (default) or "keyword"
	ModelPath   string
	TrainingCSV string
	UseSeed     bool
	Keywords    []string
	Extra       KeywordSource
	Train       TrainOptions
}

// Build returns the configured classifier. For tfidf a saved model wins over
// the training CSV, and the seed examples are used only when the CSV is
// absent and UseSeed is set. ErrNoTrainingData is returned when nothing is
// available to train on.
func Build(ctx context.Context, opts BuildOptions, logger *slog.Logger) (Classifier, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	switch opts.Kind {
	case "keyword":
		return buildKeyword(ctx, opts, logger), nil
	case "", "tfidf":
	default:
		return nil, fmt.Errorf("unknown classifier kind %q", opts.Kind)
	}

	if opts.ModelPath != "" {
		m, err := LoadModel(opts.ModelPath)
		switch {
		case err == nil:
			logger.Info("loaded model", slog.String("path", opts.ModelPath), slog.Int("features", m.Vectorizer.Dim()))
			return m, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, err
		}
	}

	var examples []Example
	if opts.TrainingCSV != "" {
		ex, err := LoadCSV(opts.TrainingCSV)
		switch {
		case err == nil:
			examples = ex
		case errors.Is(err, fs.ErrNotExist):
			logger.Warn("training data not found", slog.String("path", opts.TrainingCSV))
		default:
			return nil, err
		}
	}
	if len(examples) == 0 && opts.UseSeed {
		examples = SeedExamples()
	}
	if len(examples) == 0 {
		return nil, ErrNoTrainingData
	}
	m, err := Train(examples, opts.Train)
	if err != nil {
		return nil, err
	}
	logger.Info("trained model", slog.Int("examples", len(examples)), slog.Int("features", m.Vectorizer.Dim()))
	return m, nil
}

func buildKeyword(ctx context.Context, opts BuildOptions, logger *slog.Logger) *KeywordClassifier {
	keywords := opts.Keywords
	if len(keywords) == 0 {
		keywords = DefaultKeywords()
	}
	if opts.Extra != nil {
		extra, err := opts.Extra(ctx)
		if err != nil {
			logger.Warn("keyword source failed; using configured keywords", "error", err)
		} else {
			keywords = append(append([]string(nil), keywords...), extra...)
		}
	}
	return NewKeywordClassifier(keywords...)
}
