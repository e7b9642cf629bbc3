package classify

import "strings"

const (
	keywordBaseConfidence  = 70.0
	keywordStepConfidence  = 10.0
	keywordMaxConfidence   = 99.0
	keywordCleanConfidence = 60.0
)

// DefaultKeywords flag the usual bulk and scam subjects.
func DefaultKeywords() []string {
	return []string{
		"lottery", "you won", "winner", "prize", "claim", "congratulations",
		"free", "offer", "limited time", "act now", "urgent", "click here",
		"unsubscribe", "discount", "deal",
	}
}

// KeywordClassifier marks text Unwanted when it contains any keyword.
// Single words match whole tokens; phrases match consecutive tokens.
type KeywordClassifier struct {
	keywords []string
}

// NewKeywordClassifier normalises and de-duplicates keywords.
func NewKeywordClassifier(keywords ...string) *KeywordClassifier {
	seen := map[string]struct{}{}
	norm := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		k := normalizePhrase(kw)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		norm = append(norm, k)
	}
	return &KeywordClassifier{keywords: norm}
}

// Keywords returns the normalised keyword list.
func (k *KeywordClassifier) Keywords() []string {
	return append([]string(nil), k.keywords...)
}

func (k *KeywordClassifier) Name() string { return "keyword" }

func (k *KeywordClassifier) Predict(text string) Prediction {
	padded := " " + normalizePhrase(text) + " "
	matches := 0
	for _, kw := range k.keywords {
		if strings.Contains(padded, " "+kw+" ") {
			matches++
		}
	}
	if matches == 0 {
		return Prediction{Label: Wanted, Confidence: keywordCleanConfidence}
	}
	c := keywordBaseConfidence + keywordStepConfidence*float64(matches-1)
	if c > keywordMaxConfidence {
		c = keywordMaxConfidence
	}
	return Prediction{Label: Unwanted, Confidence: c}
}

func normalizePhrase(s string) string {
	return strings.Join(tokenize(s), " ")
}

var _ Classifier = (*KeywordClassifier)(nil)
