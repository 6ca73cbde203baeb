package pipeline

import (
	"strings"
)

// techKeywords are technology names matched case-insensitively in page
// content. Deliberately coarse: the analyzer refines these later.
var techKeywords = []string{
	"kubernetes", "docker", "terraform", "aws", "azure", "gcp",
	"postgresql", "postgres", "mysql", "mongodb", "redis", "kafka",
	"elasticsearch", "graphql", "grpc", "rest api", "websocket",
	"react", "angular", "vue", "typescript", "python", "golang",
	"java", "node.js", ".net", "rust", "mqtt", "opc-ua", "modbus",
	"spark", "snowflake", "databricks", "tensorflow", "pytorch",
}

var competitorMarkers = []string{"alternative to", "alternatives", "competitor", "compared to", "versus", " vs ", " vs. "}

var useCaseMarkers = []string{"use case", "used for", "used by", "helps teams", "enables", "designed for", "ideal for"}

var featureMarkers = []string{"feature", "capability", "supports", "built-in", "allows you to", "provides"}

// pageSignals holds heuristic extraction output for one fetched page.
type pageSignals struct {
	features    []string
	competitors []string
	useCases    []string
	techStack   []string
	quality     float64 // 0-10
}

// extractSignals scans fetched content line by line for dimension signals.
func extractSignals(content string) pageSignals {
	var sig pageSignals
	lower := strings.ToLower(content)

	for _, kw := range techKeywords {
		if strings.Contains(lower, kw) {
			sig.techStack = append(sig.techStack, kw)
		}
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || len(trimmed) > 300 {
			continue
		}
		lowerLine := strings.ToLower(trimmed)

		if isBullet(trimmed) {
			text := strings.TrimSpace(trimmed[1:])
			switch {
			case containsAny(lowerLine, featureMarkers):
				sig.features = appendCapped(sig.features, text, 20)
			case containsAny(lowerLine, useCaseMarkers):
				sig.useCases = appendCapped(sig.useCases, text, 20)
			case containsAny(lowerLine, competitorMarkers):
				sig.competitors = appendCapped(sig.competitors, competitorName(text), 20)
			case wordCount(text) <= 8:
				// short bullets on product pages are usually feature names
				sig.features = appendCapped(sig.features, text, 20)
			}
			continue
		}

		if containsAny(lowerLine, useCaseMarkers) {
			sig.useCases = appendCapped(sig.useCases, clampSentence(trimmed), 20)
		}
		if containsAny(lowerLine, competitorMarkers) {
			sig.competitors = appendCapped(sig.competitors, competitorName(trimmed), 20)
		}
	}

	sig.quality = scoreContent(content, sig)
	return sig
}

func isBullet(line string) bool {
	return strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") || strings.HasPrefix(line, "• ")
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func appendCapped(dst []string, v string, limit int) []string {
	v = strings.TrimSpace(v)
	if v == "" || len(dst) >= limit {
		return dst
	}
	for _, existing := range dst {
		if strings.EqualFold(existing, v) {
			return dst
		}
	}
	return append(dst, v)
}

// competitorName trims a comparison phrase down to the named product when
// the phrasing allows, otherwise returns the clamped phrase.
func competitorName(text string) string {
	lower := strings.ToLower(text)
	for _, marker := range []string{"alternative to ", "compared to ", "versus ", " vs ", " vs. "} {
		if idx := strings.Index(lower, marker); idx >= 0 {
			rest := text[idx+len(marker):]
			if cut := strings.IndexAny(rest, ".,;:"); cut > 0 {
				rest = rest[:cut]
			}
			return strings.TrimSpace(rest)
		}
	}
	return clampSentence(text)
}

func clampSentence(s string) string {
	if len(s) > 120 {
		return s[:120]
	}
	return s
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// scoreContent rates page usefulness 0-10 from length and signal density.
func scoreContent(content string, sig pageSignals) float64 {
	score := 0.0
	switch {
	case len(content) > 5000:
		score += 4
	case len(content) > 1500:
		score += 3
	case len(content) > 300:
		score += 2
	case len(content) > 50:
		score += 1
	}
	signals := len(sig.features) + len(sig.competitors) + len(sig.useCases) + len(sig.techStack)
	switch {
	case signals > 12:
		score += 6
	case signals > 6:
		score += 4
	case signals > 2:
		score += 2
	case signals > 0:
		score += 1
	}
	if score > 10 {
		score = 10
	}
	return score
}
