package dnsfrontend

import (
	"net"
	"path"
	"strings"

	"github.com/datawire/edgegate/internal/config"
)

// overrides wraps the configured custom_hosts rules, preserving
// configuration order so the first matching pattern wins (spec §3,
// OverrideRule).
type overrides []config.CustomHost

// lookup returns the literal IP for the first pattern that matches qname,
// per spec §4.5 step 2.
func (o overrides) lookup(qname string) (net.IP, bool) {
	name := strings.ToLower(strings.TrimSuffix(qname, "."))
	for _, rule := range o {
		pattern := strings.ToLower(strings.TrimSuffix(rule.Pattern, "."))
		ok, err := path.Match(pattern, name)
		if err != nil {
			continue
		}
		if ok {
			if ip := net.ParseIP(rule.IP); ip != nil {
				return ip, true
			}
		}
	}
	return nil, false
}
