package tracking

import (
	"encoding/base64"
	"strings"

	"github.com/CodeXGautam/mail-tracker/internal/logstore"
)

// pixelBase64 is a 1x1 transparent GIF, 43 bytes decoded. Mail clients
// that fail to load the pixel may retry or flag the message as broken,
// so the ingestion endpoint serves these exact bytes on every hit.
const pixelBase64 = "R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7"

// Pixel holds the fixed image bytes served by the pixel endpoint
var Pixel = mustDecodePixel()

func mustDecodePixel() []byte {
	b, err := base64.StdEncoding.DecodeString(pixelBase64)
	if err != nil {
		panic("tracking: invalid pixel image: " + err.Error())
	}
	return b
}

// DeriveDevice extracts coarse device hints from a user-agent string:
// a case-insensitive "mobile" substring marks mobile clients, and the
// text before the first "/" names the browser family.
func DeriveDevice(userAgent string) logstore.DeviceInfo {
	browser := userAgent
	if idx := strings.Index(userAgent, "/"); idx >= 0 {
		browser = userAgent[:idx]
	}
	if browser == "" {
		browser = "unknown"
	}
	return logstore.DeviceInfo{
		Mobile:  strings.Contains(strings.ToLower(userAgent), "mobile"),
		Browser: browser,
	}
}
