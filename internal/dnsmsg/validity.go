package dnsmsg

import "github.com/miekg/dns"

// IsValidStream implements the anti-poisoning acceptance filter shared by
// TCP, DoT and DoH (spec §4.3 "stream validity"): either the reply already
// carries an error RCODE (any error is accepted, never retried), or the
// additional section is non-empty and at least one of the answer/authority
// sections is non-empty.
func IsValidStream(resp *dns.Msg) bool {
	if resp.Rcode != dns.RcodeSuccess {
		return true
	}
	if len(resp.Extra) == 0 {
		return false
	}
	return len(resp.Answer) > 0 || len(resp.Ns) > 0
}

// IsValidUDP implements "strict UDP validity" (spec §4.3): IsValidStream's
// conditions, plus a present OPT record with DNSSEC-OK set — this defends
// against on-path poisoning that omits EDNS entirely.
func IsValidUDP(resp *dns.Msg) bool {
	if resp.Rcode != dns.RcodeSuccess {
		return true
	}
	if !IsValidStream(resp) {
		return false
	}
	opt := resp.IsEdns0()
	return opt != nil && opt.Do()
}
