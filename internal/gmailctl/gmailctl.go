package gmailctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// Export mirrors the JSON payload produced by `gmailctl compile --format=json`.
type Export struct {
	Filters []Filter `json:"filters"`
	Labels  []Label  `json:"labels"`
}

// Filter is one compiled Gmail filter.
type Filter struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name,omitempty"`
	Criteria FilterCriteria `json:"criteria"`
	Action   FilterAction   `json:"action"`
}

type FilterCriteria struct {
	From    string `json:"from,omitempty"`
	Subject string `json:"subject,omitempty"`
	Query   string `json:"query,omitempty"`
}

type FilterAction struct {
	AddLabelIDs    []string `json:"addLabelIds,omitempty"`
	RemoveLabelIDs []string `json:"removeLabelIds,omitempty"`
}

type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Runner shells out to the gmailctl binary to obtain compiled filters.
type Runner struct {
	Binary    string
	ConfigDir string
}

// ExportFilters invokes gmailctl and parses the resulting JSON export.
func (r Runner) ExportFilters(ctx context.Context) (Export, error) {
	bin := r.Binary
	if bin == "" {
		bin = "gmailctl"
	}
	args := []string{"compile", "--format=json"}
	if strings.TrimSpace(r.ConfigDir) != "" {
		args = append(args, "--config", r.ConfigDir)
	}
	cmd := exec.CommandContext(ctx, bin, args...) // #nosec G204 - binary chosen by operator config
	out, err := cmd.Output()
	if err != nil {
		return Export{}, fmt.Errorf("run gmailctl: %w", err)
	}
	return Decode(out)
}

// Decode parses compiled gmailctl JSON.
func Decode(raw []byte) (Export, error) {
	var export Export
	if err := json.Unmarshal(raw, &export); err != nil {
		return Export{}, fmt.Errorf("decode gmailctl output: %w", err)
	}
	if len(export.Filters) == 0 {
		return Export{}, errors.New("gmailctl returned no filters")
	}
	return export, nil
}

// UnwantedKeywords collects the subject phrases of filters that archive,
// trash or spam mail. The result is lowercased, deduplicated and sorted.
func UnwantedKeywords(export Export) []string {
	seen := map[string]struct{}{}
	for _, f := range export.Filters {
		if !discards(f.Action) {
			continue
		}
		for _, phrase := range subjectPhrases(f.Criteria.Subject) {
			seen[phrase] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func discards(a FilterAction) bool {
	for _, id := range a.RemoveLabelIDs {
		if strings.EqualFold(id, "INBOX") {
			return true
		}
	}
	for _, id := range a.AddLabelIDs {
		if strings.EqualFold(id, "TRASH") || strings.EqualFold(id, "SPAM") {
			return true
		}
	}
	return false
}

// subjectPhrases splits a gmail subject criterion such as
// `{"free gift" lottery}` or `"a" OR "b"` into its phrases.
func subjectPhrases(subject string) []string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil
	}
	subject = strings.Trim(subject, "{}()")
	var (
		phrases []string
		cur     strings.Builder
		quoted  bool
	)
	flush := func() {
		p := strings.ToLower(strings.TrimSpace(cur.String()))
		cur.Reset()
		if p == "" || p == "or" || p == "and" {
			return
		}
		phrases = append(phrases, p)
	}
	for _, r := range subject {
		switch {
		case r == '"':
			flush()
			quoted = !quoted
		case (r == ' ' || r == '{' || r == '}' || r == '(' || r == ')') && !quoted:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return phrases
}
