// Package classify decides whether a message subject is Wanted or Unwanted.
//
// Two strategies satisfy the same Classifier capability: a TF-IDF vectorizer
// feeding a logistic regression (Model) and a keyword heuristic
// (KeywordClassifier). Both are read-only once built and safe to share
// between goroutines.
package classify

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrNoTrainingData is returned when training is attempted on an empty set.
var ErrNoTrainingData = errors.New("no training data")

// Label is the binary classification outcome.
type Label string

const (
	Wanted   Label = "Wanted"
	Unwanted Label = "Unwanted"
)

// ParseLabel accepts the canonical labels plus the aliases used in
// hand-labeled spreadsheets.
func ParseLabel(raw string) (Label, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "wanted", "not spam", "ham", "keep":
		return Wanted, nil
	case "unwanted", "spam", "junk":
		return Unwanted, nil
	default:
		return "", fmt.Errorf("unknown label %q", raw)
	}
}

// Example is one hand-labeled training row.
type Example struct {
	Text  string
	Label Label
}

// Prediction is a label with the classifier's confidence in [0, 100].
type Prediction struct {
	Label      Label
	Confidence float64
}

// Classifier maps message text to a Prediction. Predict never fails: text
// the classifier knows nothing about still yields a (low confidence) label.
type Classifier interface {
	Name() string
	Predict(text string) Prediction
}

func confidence(p float64) float64 {
	c := p * 100
	switch {
	case math.IsNaN(c):
		return 0
	case c < 0:
		return 0
	case c > 100:
		return 100
	}
	return c
}
