package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases scheme and host", "HTTPS://Example.COM/Path", "https://example.com/Path"},
		{"strips www", "https://www.example.com/docs", "https://example.com/docs"},
		{"strips fragment", "https://example.com/docs#install", "https://example.com/docs"},
		{"strips tracking params", "https://example.com/p?utm_source=x&utm_campaign=y&id=7", "https://example.com/p?id=7"},
		{"strips gclid and ref", "https://example.com/p?gclid=abc&ref=hn", "https://example.com/p"},
		{"strips trailing slash", "https://example.com/docs/", "https://example.com/docs"},
		{"trims whitespace on unparsable", "  not a url  ", "not a url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeURL(tt.in))
		})
	}
}

func TestNormalizeURL_CampaignVariantsCollapse(t *testing.T) {
	a := normalizeURL("https://www.example.com/pricing?utm_source=newsletter")
	b := normalizeURL("HTTPS://example.com/pricing/#plans")
	assert.Equal(t, a, b)
}

func TestContentFingerprint(t *testing.T) {
	// Case and whitespace variants of the same text share a fingerprint.
	a := contentFingerprint("Edge   Gateway supports MQTT\nand Modbus")
	b := contentFingerprint("edge gateway SUPPORTS mqtt and modbus")
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)

	assert.NotEqual(t, a, contentFingerprint("different text entirely"))
	assert.Empty(t, contentFingerprint("   \n\t "))
}
