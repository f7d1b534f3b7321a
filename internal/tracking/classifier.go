package tracking

import (
	"net"
	"strings"

	"github.com/CodeXGautam/mail-tracker/internal/database/models"
)

// webmailDomain appears in the referer when the sender re-opens the
// message inside the webmail UI, which also fetches the pixel
const webmailDomain = "mail.google.com"

// IsSenderAccess decides whether a pixel fetch should be attributed to
// the email's own sender rather than a recipient. Sender accesses are
// still logged but must not flip status to read or bump open counters.
//
// The heuristics run in a fixed priority order; changing it is a
// product decision, not a correctness fix:
//  1. stored sender IP matches the requesting IP
//  2. stored sender user-agent matches the requesting user-agent
//  3. requesting IP is a loopback address (local/dev traffic)
//  4. referer carries the webmail provider's own domain
//
// There is no reliable signal either way, so false positives and
// negatives are expected. A nil record always classifies as recipient
// access: failing toward recording an open beats silently losing one.
func IsSenderAccess(record *models.EmailRecord, ip, userAgent, referer string) bool {
	if record == nil {
		return false
	}
	if record.SenderIP != "" && record.SenderIP == ip {
		return true
	}
	if record.SenderUserAgent != "" && record.SenderUserAgent == userAgent {
		return true
	}
	if parsed := net.ParseIP(ip); parsed != nil && parsed.IsLoopback() {
		return true
	}
	if referer != "" && strings.Contains(referer, webmailDomain) {
		return true
	}
	return false
}
