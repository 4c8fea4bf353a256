package geo

import (
	"net"

	"github.com/miekg/dns"
)

// countryLookup is the minimal contract Classifier needs; *Reader
// satisfies it, and tests supply a fake instead of a real .mmdb file.
type countryLookup interface {
	CountryCode(ip net.IP) string
}

// Classifier answers the spec §4.2 "is this answer domestic?" predicate
// against a shared, read-only country database.
type Classifier struct {
	db countryLookup
}

// NewClassifier wraps an already-opened Reader (or, in tests, a fake
// countryLookup).
func NewClassifier(db countryLookup) *Classifier {
	return &Classifier{db: db}
}

// CountryCode exposes the raw lookup for callers that need it directly (the
// router's passthrough/proxy branch decision, spec §4.6 step 2).
func (c *Classifier) CountryCode(ip net.IP) string {
	return c.db.CountryCode(ip)
}

// IsDomestic iterates the answer section and returns true on the first A
// record whose rdata resolves to country code "CN". An A record whose rdata
// fails to parse as IPv4 stops classification at "not domestic" without
// inspecting further records, per spec §4.2. A non-CN A record doesn't stop
// the scan — classification continues to the next A record. Non-A records
// are skipped.
func (c *Classifier) IsDomestic(msg *dns.Msg) bool {
	for _, rr := range msg.Answer {
		a, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		ip4 := a.A.To4()
		if ip4 == nil {
			return false
		}
		if c.db.CountryCode(ip4) == "CN" {
			return true
		}
	}
	return false
}
