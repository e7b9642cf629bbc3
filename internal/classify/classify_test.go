package classify

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func lotteryModel(t *testing.T) *Model {
	t.Helper()
	m, err := Train([]Example{
		{Text: "You won a lottery!!!", Label: Unwanted},
		{Text: "Meeting tomorrow at 10AM", Label: Wanted},
	}, TrainOptions{})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	return m
}

func TestTrainEmpty(t *testing.T) {
	m, err := Train(nil, TrainOptions{})
	if !errors.Is(err, ErrNoTrainingData) {
		t.Fatalf("expected ErrNoTrainingData, got %v", err)
	}
	if m != nil {
		t.Fatalf("expected no model, got %+v", m)
	}
}

func TestPredictLottery(t *testing.T) {
	m := lotteryModel(t)
	got := m.Predict("Claim your lottery prize now")
	if got.Label != Unwanted {
		t.Fatalf("expected Unwanted, got %s", got.Label)
	}
	if got.Confidence <= 50 {
		t.Fatalf("expected confidence > 50, got %.2f", got.Confidence)
	}
	if meeting := m.Predict("Meeting moved to tomorrow"); meeting.Label != Wanted {
		t.Fatalf("expected Wanted for meeting, got %+v", meeting)
	}
}

func TestPredictDeterministic(t *testing.T) {
	m := lotteryModel(t)
	first := m.Predict("You won a lottery!!!")
	second := m.Predict("You won a lottery!!!")
	if first != second {
		t.Fatalf("prediction changed between calls: %+v vs %+v", first, second)
	}
	again := lotteryModel(t)
	if again.Predict("You won a lottery!!!") != first {
		t.Fatalf("training on the same data produced a different model")
	}
}

func TestPredictUnseenVocabulary(t *testing.T) {
	m := lotteryModel(t)
	got := m.Predict("zzz qqq ¿?")
	if got.Label != Wanted && got.Label != Unwanted {
		t.Fatalf("undefined label %q", got.Label)
	}
	if got.Confidence < 0 || got.Confidence > 100 {
		t.Fatalf("confidence out of range: %v", got.Confidence)
	}
}

func TestConfidenceRange(t *testing.T) {
	m, err := Train(SeedExamples(), TrainOptions{MaxIter: 2000, C: 100})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	inputs := []string{"", "lottery lottery lottery lottery", "Meeting", "free free free offer prize"}
	for _, in := range inputs {
		got := m.Predict(in)
		if got.Confidence < 0 || got.Confidence > 100 {
			t.Fatalf("confidence for %q out of range: %v", in, got.Confidence)
		}
	}
	kw := NewKeywordClassifier(DefaultKeywords()...)
	for _, in := range inputs {
		got := kw.Predict(in)
		if got.Confidence < 0 || got.Confidence > 100 {
			t.Fatalf("keyword confidence for %q out of range: %v", in, got.Confidence)
		}
	}
}

func TestTrainSingleClass(t *testing.T) {
	m, err := Train([]Example{{Text: "hello there", Label: Wanted}}, TrainOptions{})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if got := m.Predict("anything"); got.Label != Wanted {
		t.Fatalf("expected Wanted, got %+v", got)
	}
}

func TestKeywordClassifier(t *testing.T) {
	kw := NewKeywordClassifier("lottery", "Limited Time", "lottery", "")
	if len(kw.Keywords()) != 2 {
		t.Fatalf("expected de-duplicated keywords, got %v", kw.Keywords())
	}
	tests := []struct {
		subject string
		want    Label
	}{
		{subject: "Claim your LOTTERY prize", want: Unwanted},
		{subject: "A limited-time sale", want: Unwanted},
		{subject: "Lotteryville town meeting", want: Wanted},
		{subject: "Quarterly planning", want: Wanted},
	}
	for _, tt := range tests {
		if got := kw.Predict(tt.subject); got.Label != tt.want {
			t.Fatalf("%q: got %s want %s", tt.subject, got.Label, tt.want)
		}
	}
}

func TestReadCSV(t *testing.T) {
	input := "Subject,Label\n" +
		"\"You won a lottery!!!\",Unwanted\n" +
		"\"Meeting tomorrow at 10AM\",wanted\n" +
		"\"Not yet labeled\",\n" +
		"\"Welcome\",Not Spam\n"
	examples, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(examples) != 3 {
		t.Fatalf("expected 3 labeled rows, got %d", len(examples))
	}
	if examples[2].Label != Wanted {
		t.Fatalf("alias not parsed: %+v", examples[2])
	}

	if _, err := ReadCSV(strings.NewReader("subject,label\nfoo,\n")); !errors.Is(err, ErrNoTrainingData) {
		t.Fatalf("expected ErrNoTrainingData for unlabeled sheet, got %v", err)
	}
	if _, err := ReadCSV(strings.NewReader("subject,label\nfoo,maybe\n")); err == nil {
		t.Fatalf("expected error for unknown label")
	}
}

func TestExportCSVDoesNotOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emails.csv")
	if err := ExportCSV(path, []string{"one", "two"}); err != nil {
		t.Fatalf("export: %v", err)
	}
	if err := ExportCSV(path, []string{"three"}); !errors.Is(err, os.ErrExist) {
		t.Fatalf("expected os.ErrExist, got %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(raw), "Subject,Label\n") || !strings.Contains(string(raw), "two") {
		t.Fatalf("unexpected export: %q", raw)
	}
}

func TestSaveAndLoadModelPredictSame(t *testing.T) {
	m := lotteryModel(t)
	path := filepath.Join(t.TempDir(), "model.json")
	if err := m.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadModel(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	subject := "Claim your lottery prize now"
	if loaded.Predict(subject) != m.Predict(subject) {
		t.Fatalf("loaded model disagrees: %+v vs %+v", loaded.Predict(subject), m.Predict(subject))
	}
}
