// Package cli formats command output for the resumatch CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/resumatch/internal/models"
	"github.com/hyperjump/resumatch/internal/server"
	"github.com/hyperjump/resumatch/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteMatch writes an unsaved match result.
func WriteMatch(w io.Writer, res models.MatchResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "score:    %d/100\n", res.Score)
	fmt.Fprintf(w, "verdict:  %s\n", res.Verdict)
	fmt.Fprintf(w, "method:   %s\n", res.Method)
	fmt.Fprintf(w, "missing:  %s\n", skillList(res.MissingSkills))
	return nil
}

// WriteEvaluations writes evaluations as a table or a JSON array.
func WriteEvaluations(w io.Writer, evs []*models.Evaluation, format OutputFormat) error {
	if format == OutputJSON {
		if evs == nil {
			evs = []*models.Evaluation{}
		}
		return writeJSON(w, evs)
	}
	if len(evs) == 0 {
		fmt.Fprintln(w, "No new evaluations.")
		return nil
	}
	fmt.Fprintf(w, "%-6s %-8s %-8s %-6s %-8s %s\n", "ID", "RESUME", "JD", "SCORE", "VERDICT", "MISSING")
	for _, ev := range evs {
		fmt.Fprintf(w, "%-6d %-8d %-8d %-6d %-8s %s\n",
			ev.ID, ev.ResumeID, ev.JDID, ev.Score, ev.Verdict, utils.Truncate(skillList(ev.MissingSkills), 60))
	}
	return nil
}

// WriteStatus writes record counts, backends and disk usage.
func WriteStatus(w io.Writer, st *server.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "resumes:            %d\n", st.Resumes)
	fmt.Fprintf(w, "jds:                %d\n", st.JDs)
	fmt.Fprintf(w, "evaluations:        %d\n", st.Evaluations)
	fmt.Fprintf(w, "embedding_backend:  %s\n", st.EmbeddingBackend)
	fmt.Fprintf(w, "storage_driver:     %s\n", st.StorageDriver)
	fmt.Fprintf(w, "disk_usage_bytes:   %d   # storage + indices + uploads on disk\n", st.DiskUsageBytes)
	for _, u := range st.DiskUsage {
		fmt.Fprintf(w, "  %-16s  %d  %s\n", u.Name+":", u.Bytes, u.Path)
	}
	return nil
}

func skillList(skills []string) string {
	if len(skills) == 0 {
		return "-"
	}
	return strings.Join(skills, ", ")
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
