package connector

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of source-wide block detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockBanPage    BlockType = "ban_page"
)

// DetectBlock checks an HTTP response for signs that the source has locked
// out the caller's network identity, as opposed to rejecting one request.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	// Cloudflare: 403/503 with cf-* headers.
	if resp.StatusCode == 403 || resp.StatusCode == 503 {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("cf-cache-status") != "" {
			return true, BlockCloudflare
		}
		if resp.Header.Get("server") == "cloudflare" {
			return true, BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))

	// Challenge page markers.
	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") {
		return true, BlockCloudflare
	}

	if strings.Contains(lower, "captcha") ||
		strings.Contains(lower, "recaptcha") ||
		strings.Contains(lower, "hcaptcha") {
		return true, BlockCaptcha
	}

	// Registry lockout pages: 403 with an explicit denial message.
	if resp.StatusCode == 403 {
		if strings.Contains(lower, "access denied") ||
			strings.Contains(lower, "too many requests from your network") ||
			strings.Contains(lower, "доступ ограничен") {
			return true, BlockBanPage
		}
	}

	return false, BlockNone
}
