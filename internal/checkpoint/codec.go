// Package checkpoint serializes ResearchState to and from the durable
// checkpoint format: a key-per-line front-matter header followed by a
// rendered markdown body. The header is the machine-readable contract; the
// body is documentation only and is never re-parsed.
package checkpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-orchestrator/internal/model"
)

const delimiter = "---"

// Encode renders state into the checkpoint format. The output is
// deterministic: keys always appear in the same order, and every field
// needed to resume execution round-trips through Decode.
func Encode(state *model.ResearchState) ([]byte, error) {
	if state == nil {
		return nil, eris.New("checkpoint: nil state")
	}

	var b bytes.Buffer
	b.WriteString(delimiter + "\n")

	writeScalar(&b, "project_id", state.ProjectID)
	writeScalar(&b, "title", state.Title)
	writeScalar(&b, "status", string(state.Status))
	writeScalar(&b, "current_step", string(state.CurrentStep))
	b.WriteString(fmt.Sprintf("progress: %d\n", state.Progress))
	writeScalar(&b, "progress_message", state.ProgressMessage)
	writeScalar(&b, "started_at", state.StartedAt.UTC().Format(time.RFC3339Nano))
	writeScalar(&b, "updated_at", state.UpdatedAt.UTC().Format(time.RFC3339Nano))
	b.WriteString(fmt.Sprintf("search_iterations: %d\n", state.SearchIterations))
	b.WriteString(fmt.Sprintf("total_searches: %d\n", state.TotalSearches))
	b.WriteString(fmt.Sprintf("max_retries: %d\n", state.MaxRetries))
	b.WriteString(fmt.Sprintf("retry_count: %d\n", state.RetryCount))

	if err := writeJSON(&b, "thresholds", state.Thresholds); err != nil {
		return nil, err
	}
	if err := writeJSON(&b, "pending_queries", state.PendingQueries); err != nil {
		return nil, err
	}
	if err := writeJSON(&b, "search_results", state.SearchResults); err != nil {
		return nil, err
	}
	if err := writeJSON(&b, "extracted_content", state.ExtractedContent); err != nil {
		return nil, err
	}
	if state.Analysis != nil {
		if err := writeJSON(&b, "analysis", state.Analysis); err != nil {
			return nil, err
		}
	}
	if state.Report != "" {
		writeScalar(&b, "report", state.Report)
	}

	b.WriteString(delimiter + "\n\n")
	renderBody(&b, state)

	return b.Bytes(), nil
}

// writeScalar emits a string value, JSON-quoting it when raw text would be
// ambiguous (newlines, leading brackets, surrounding whitespace).
func writeScalar(b *bytes.Buffer, key, val string) {
	if needsQuoting(val) {
		quoted, _ := json.Marshal(val)
		fmt.Fprintf(b, "%s: %s\n", key, quoted)
		return
	}
	fmt.Fprintf(b, "%s: %s\n", key, val)
}

func needsQuoting(val string) bool {
	if val == "" {
		return false
	}
	if strings.ContainsAny(val, "\n\r") {
		return true
	}
	if val != strings.TrimSpace(val) {
		return true
	}
	switch val[0] {
	case '[', '{', '"':
		return true
	}
	return false
}

func writeJSON(b *bytes.Buffer, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "checkpoint: marshal %s", key)
	}
	fmt.Fprintf(b, "%s: %s\n", key, data)
	return nil
}

// Decode parses checkpoint text back into a ResearchState. Missing optional
// keys default to zero values, booleans and numbers are coerced from literal
// text, and malformed array literals are skipped (with the raw value
// discarded) rather than aborting the whole parse. Text without a
// recognizable header block yields an error, never a partial state.
func Decode(data []byte) (*model.ResearchState, error) {
	header, err := extractHeader(data)
	if err != nil {
		return nil, err
	}

	fields := parseHeader(header)
	if len(fields) == 0 {
		return nil, eris.New("checkpoint: empty header block")
	}
	if _, ok := fields["project_id"]; !ok {
		return nil, eris.New("checkpoint: header missing project_id")
	}

	state := &model.ResearchState{
		ProjectID:        parseString(fields["project_id"]),
		Title:            parseString(fields["title"]),
		Status:           model.ResearchStatus(parseString(fields["status"])),
		CurrentStep:      model.Step(parseString(fields["current_step"])),
		Progress:         parseInt(fields["progress"]),
		ProgressMessage:  parseString(fields["progress_message"]),
		StartedAt:        parseTime(fields["started_at"]),
		UpdatedAt:        parseTime(fields["updated_at"]),
		SearchIterations: parseInt(fields["search_iterations"]),
		TotalSearches:    parseInt(fields["total_searches"]),
		MaxRetries:       parseInt(fields["max_retries"]),
		RetryCount:       parseInt(fields["retry_count"]),
		Report:           parseString(fields["report"]),
	}

	parseJSONField(fields, "thresholds", &state.Thresholds)
	parseJSONField(fields, "pending_queries", &state.PendingQueries)
	parseJSONField(fields, "search_results", &state.SearchResults)
	parseJSONField(fields, "extracted_content", &state.ExtractedContent)
	if raw, ok := fields["analysis"]; ok && strings.TrimSpace(raw) != "" {
		var analysis model.AnalysisResult
		if jsonErr := json.Unmarshal([]byte(raw), &analysis); jsonErr == nil {
			state.Analysis = &analysis
		} else {
			zap.L().Debug("checkpoint: malformed analysis literal, skipping",
				zap.Error(jsonErr))
		}
	}

	if state.Status == "" {
		state.Status = model.ResearchStatusPending
	}
	if state.CurrentStep == "" {
		state.CurrentStep = model.StepPlanner
	}

	return state, nil
}

// extractHeader returns the text between the first pair of --- delimiters.
func extractHeader(data []byte) (string, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	if !strings.HasPrefix(strings.TrimLeft(text, "\n \t"), delimiter) {
		return "", eris.New("checkpoint: no header block")
	}
	trimmed := strings.TrimLeft(text, "\n \t")
	rest := strings.TrimPrefix(trimmed, delimiter)
	rest = strings.TrimPrefix(rest, "\n")
	end := strings.Index(rest, "\n"+delimiter)
	if end < 0 {
		return "", eris.New("checkpoint: unterminated header block")
	}
	return rest[:end], nil
}

func parseHeader(header string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(header, "\n") {
		line = strings.TrimRight(line, " \t")
		if line == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		idx := strings.Index(line, ":")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		fields[key] = val
	}
	return fields
}

// parseString unwraps a JSON-quoted string, else returns the raw text.
func parseString(raw string) string {
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal([]byte(raw), &s); err == nil {
			return s
		}
	}
	return raw
}

// parseInt coerces an integer from literal text, tolerating floats and
// quoted numbers.
func parseInt(raw string) int {
	raw = strings.Trim(parseString(raw), " ")
	if raw == "" {
		return 0
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(f)
	}
	return 0
}

func parseTime(raw string) time.Time {
	raw = parseString(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// parseJSONField decodes an inline JSON literal into target. A malformed
// literal leaves the target untouched and parsing continues.
func parseJSONField(fields map[string]string, key string, target any) {
	raw, ok := fields[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		zap.L().Debug("checkpoint: malformed literal, keeping field empty",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
