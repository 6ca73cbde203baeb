package pipeline

import (
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/research-orchestrator/internal/checksum"
)

var foldCaser = cases.Fold()

// trackingParams are query parameters stripped during URL normalization so
// the same page reached through different campaigns dedups to one entry.
var trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "ref", "fbclid", "gclid"}

// normalizeURL canonicalizes a URL for dedup: lowercased scheme and host,
// no fragment, no tracking parameters, no trailing slash. Unparsable URLs
// are returned trimmed as-is.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(strings.TrimPrefix(u.Host, "www."))
	u.Fragment = ""

	q := u.Query()
	for _, p := range trackingParams {
		q.Del(p)
	}
	u.RawQuery = q.Encode()

	return strings.TrimSuffix(u.String(), "/")
}

// contentFingerprint hashes content after Unicode NFKC normalization, case
// folding and whitespace collapsing, so trivially reformatted copies of the
// same text share a hash.
func contentFingerprint(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	normalized := foldCaser.String(norm.NFKC.String(content))
	normalized = strings.Join(strings.Fields(normalized), " ")
	return checksum.Sum([]byte(normalized))
}
