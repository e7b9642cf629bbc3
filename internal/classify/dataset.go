package classify

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// SeedExamples is a tiny hand-labeled set used when no spreadsheet exists.
func SeedExamples() []Example {
	return []Example{
		{Text: "You won a lottery!!!", Label: Unwanted},
		{Text: "Claim your free prize today", Label: Unwanted},
		{Text: "Limited time offer: 80% discount", Label: Unwanted},
		{Text: "Congratulations, you have been selected", Label: Unwanted},
		{Text: "Meeting tomorrow at 10AM", Label: Wanted},
		{Text: "Welcome to Gmail", Label: Wanted},
		{Text: "Invoice for your September order", Label: Wanted},
		{Text: "Re: project status and next steps", Label: Wanted},
	}
}

// ReadCSV parses a labeling spreadsheet with Subject and Label columns
// (header names are case-insensitive). Rows with an empty subject or label
// are dropped, matching how unlabeled rows are left blank while labeling.
func ReadCSV(r io.Reader) ([]Example, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoTrainingData
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	subjectCol, labelCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "subject":
			subjectCol = i
		case "label":
			labelCol = i
		}
	}
	if subjectCol < 0 || labelCol < 0 {
		return nil, fmt.Errorf("csv header must contain subject and label columns, got %v", header)
	}

	var examples []Example
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		if subjectCol >= len(record) || labelCol >= len(record) {
			continue
		}
		subject := strings.TrimSpace(record[subjectCol])
		rawLabel := strings.TrimSpace(record[labelCol])
		if subject == "" || rawLabel == "" {
			continue
		}
		label, err := ParseLabel(rawLabel)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		examples = append(examples, Example{Text: subject, Label: label})
	}
	if len(examples) == 0 {
		return nil, ErrNoTrainingData
	}
	return examples, nil
}

// LoadCSV reads labeled examples from path.
func LoadCSV(path string) ([]Example, error) {
	f, err := os.Open(path) // #nosec G304 - path supplied by operator
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	examples, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return examples, nil
}

// ExportCSV writes subjects with an empty Label column for manual labeling.
// An existing file is never overwritten since it may hold labels already.
func ExportCSV(path string, subjects []string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600) // #nosec G304
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"Subject", "Label"}); err != nil {
		_ = f.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, s := range subjects {
		if err := w.Write([]string{s, ""}); err != nil {
			_ = f.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}

// Save writes the model as JSON.
func (m *Model) Save(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	return nil
}

// LoadModel reads a model written by Save.
func LoadModel(path string) (*Model, error) {
	raw, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var m Model
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if m.Vectorizer == nil || len(m.Vectorizer.Vocabulary) != len(m.Vectorizer.IDF) ||
		len(m.Weights) != len(m.Vectorizer.Vocabulary) {
		return nil, fmt.Errorf("decode %s: model dimensions do not match", path)
	}
	m.Vectorizer.buildIndex()
	return &m, nil
}
