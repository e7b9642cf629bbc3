package report

import (
	"encoding/json"
	"fmt"
	"io"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"github.com/joshsymonds/mailsorter/internal/pipeline"
)

const subjectDisplayLimit = 60

// PrintHuman writes one line per classified message followed by a summary.
func PrintHuman(rep pipeline.Report, w io.Writer) error {
	if w == nil {
		w = os.Stdout
	}
	var b strings.Builder
	mode := ""
	if rep.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(&b, "mailsorter pass %s for %s%s\n", rep.PassID, rep.User, mode)
	for _, res := range rep.Results {
		fmt.Fprintf(
			&b,
			"  %-60s → %-8s (%.2f%% confident) %s",
			truncate(res.Subject, subjectDisplayLimit),
			res.Label,
			res.Confidence,
			res.State,
		)
		if dom := DomainOf(res.Sender); dom != "" {
			fmt.Fprintf(&b, " [%s]", dom)
		}
		if res.Error != "" {
			fmt.Fprintf(&b, " error: %s", res.Error)
		}
		b.WriteByte('\n')
	}
	for _, sk := range rep.Skipped {
		fmt.Fprintf(&b, "  skipped %s: %s\n", sk.ID, sk.Error)
	}
	fmt.Fprintf(&b, "%d classified, %d moved, %d skipped\n", len(rep.Results), rep.Moved(), len(rep.Skipped))
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// WriteJSON encodes rep to a path relative to the working directory.
func WriteJSON(rep pipeline.Report, path string) error {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return fmt.Errorf("path must not be empty")
	}
	clean = filepath.Clean(clean)
	if filepath.IsAbs(clean) {
		return fmt.Errorf("output path must be relative, got %s", clean)
	}
	if strings.HasPrefix(clean, "..") {
		return fmt.Errorf("output path %s escapes working directory", clean)
	}
	f, err := os.OpenFile(clean, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304
	if err != nil {
		return fmt.Errorf("create %s: %w", clean, err)
	}
	defer func() { _ = f.Close() }()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// DomainOf extracts the lowercased sender domain from a From header.
func DomainOf(from string) string {
	from = strings.TrimSpace(from)
	if from == "" {
		return ""
	}
	addrs, err := mail.ParseAddressList(from)
	if err != nil {
		return extractDomain(from)
	}
	for _, addr := range addrs {
		if dom := extractDomain(addr.Address); dom != "" {
			return dom
		}
	}
	return ""
}

func extractDomain(address string) string {
	address = strings.ToLower(strings.TrimSpace(address))
	at := strings.LastIndex(address, "@")
	if at == -1 {
		return ""
	}
	return strings.Trim(address[at+1:], ".> ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
