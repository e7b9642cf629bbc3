package classify

import (
	"fmt"
	"math"
)

const (
	defaultMaxIter      = 200
	defaultC            = 1.0
	defaultLearningRate = 1.0
)

// TrainOptions tunes the logistic regression.
type TrainOptions struct {
	// MaxIter is the number of full-batch gradient steps.
	MaxIter int
	// C is the inverse L2 regularisation strength.
	C float64
	// LearningRate is the gradient step size.
	LearningRate float64
}

func (o TrainOptions) withDefaults() TrainOptions {
	if o.MaxIter <= 0 {
		o.MaxIter = defaultMaxIter
	}
	if o.C <= 0 {
		o.C = defaultC
	}
	if o.LearningRate <= 0 {
		o.LearningRate = defaultLearningRate
	}
	return o
}

// Model is a trained TF-IDF + logistic regression classifier. The positive
// class is Unwanted.
type Model struct {
	Vectorizer *Vectorizer `json:"vectorizer"`
	Weights    []float64   `json:"weights"`
	Bias       float64     `json:"bias"`
}

// Train fits a model on the labeled examples. Weights start at zero and
// every step uses the whole batch, so a fixed dataset always produces the
// same model.
func Train(examples []Example, opts TrainOptions) (*Model, error) {
	if len(examples) == 0 {
		return nil, ErrNoTrainingData
	}
	opts = opts.withDefaults()

	docs := make([]string, len(examples))
	ys := make([]float64, len(examples))
	for i, ex := range examples {
		docs[i] = ex.Text
		switch ex.Label {
		case Unwanted:
			ys[i] = 1
		case Wanted:
			ys[i] = 0
		default:
			return nil, fmt.Errorf("example %d: unknown label %q", i, ex.Label)
		}
	}

	vec := FitVectorizer(docs)
	xs := make([][]float64, len(docs))
	for i, doc := range docs {
		xs[i] = vec.Transform(doc)
	}

	n := float64(len(xs))
	lambda := 1 / (opts.C * n)
	w := make([]float64, vec.Dim())
	grad := make([]float64, vec.Dim())
	var b float64
	for iter := 0; iter < opts.MaxIter; iter++ {
		for j := range grad {
			grad[j] = lambda * w[j]
		}
		var gradB float64
		for i, x := range xs {
			diff := (sigmoid(dot(w, x)+b) - ys[i]) / n
			for j, xj := range x {
				if xj != 0 {
					grad[j] += diff * xj
				}
			}
			gradB += diff
		}
		for j := range w {
			w[j] -= opts.LearningRate * grad[j]
		}
		b -= opts.LearningRate * gradB
	}
	return &Model{Vectorizer: vec, Weights: w, Bias: b}, nil
}

// Name identifies the strategy in logs.
func (m *Model) Name() string { return "tfidf-logreg" }

// Probability returns P(Unwanted | text).
func (m *Model) Probability(text string) float64 {
	return sigmoid(dot(m.Weights, m.Vectorizer.Transform(text)) + m.Bias)
}

// Predict labels text; confidence is the probability of the chosen label.
func (m *Model) Predict(text string) Prediction {
	p := m.Probability(text)
	if p > 0.5 {
		return Prediction{Label: Unwanted, Confidence: confidence(p)}
	}
	return Prediction{Label: Wanted, Confidence: confidence(1 - p)}
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

var _ Classifier = (*Model)(nil)
