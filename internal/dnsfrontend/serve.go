package dnsfrontend

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"
	"github.com/miekg/dns"

	"github.com/datawire/dlib/dlog"

	"github.com/datawire/edgegate/internal/dnsmsg"
)

// ServeDNS implements dns.Handler and runs the override → cache → race
// pipeline of spec §4.5 for a single inbound message.
func (f *FrontEnd) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	ctx := context.Background()

	if len(r.Question) == 0 {
		return
	}
	q := r.Question[0]
	key := cacheKey(q)

	// Tag every log line this query produces with a short trace id so a
	// single query's path through override/cache/race is greppable even
	// when many queries are in flight concurrently.
	trace := uuid.New().String()[:8]
	ctx = dlog.WithField(ctx, "trace", trace)

	dlog.Debugf(ctx, "query %5d %-6s %s", r.Id, dns.TypeToString[q.Qtype], q.Name)

	// Step 2: override.
	if ip, ok := f.overrides.lookup(q.Name); ok {
		answer := overrideAnswer(q, ip)
		resp := dnsmsg.BuildResponse(r.Id, r, r, []dns.RR{answer})
		writeReply(ctx, w, resp)
		return
	}

	// Step 3: cache.
	if f.cache != nil {
		if blob, ok := f.cache.Get(ctx, key); ok {
			if msg, _, ok := decodeCacheEntry(blob); ok {
				resp := dnsmsg.BuildResponse(r.Id, r, msg, nil)
				writeReply(ctx, w, resp)
				return
			}
		}
	}

	// Step 4: race.
	req := dnsmsg.BuildRequest(r)
	result, isDomestic, err := f.racer.Race(ctx, req)
	if err != nil {
		dlog.Debugf(ctx, "query %5d %s: %v, dropping", r.Id, q.Name, err)
		return // spec §4.5 step 4: on timeout, drop the query, no reply
	}

	// Step 5: cache write-back (best effort: errors are logged and ignored).
	// The write completes before the reply below is sent.
	if f.cache != nil && f.settings.CacheExpire > 0 {
		if blob, err := encodeCacheEntry(result.Msg, isDomestic); err == nil {
			f.cache.Set(ctx, key, blob, f.cacheTTL)
		}
	}

	// Step 6: reply.
	resp := dnsmsg.BuildResponse(r.Id, r, result.Msg, nil)
	writeReply(ctx, w, resp)
}

func writeReply(ctx context.Context, w dns.ResponseWriter, msg *dns.Msg) {
	if err := w.WriteMsg(msg); err != nil {
		dlog.Warnf(ctx, "writing reply %d: %v", msg.Id, err)
	}
}

// cacheKey computes the identifier of spec §3: "<qname>|<qtype>|<qclass>".
// The qname is lowercased before use (SPEC_FULL §9.1's binding decision);
// the response sent to the client is never touched by this normalization.
func cacheKey(q dns.Question) string {
	return fmt.Sprintf("%s|%d|%d", strings.ToLower(q.Name), q.Qtype, q.Qclass)
}

func overrideAnswer(q dns.Question, ip net.IP) dns.RR {
	hdr := dns.RR_Header{Name: q.Name, Class: dns.ClassINET, Ttl: overrideTTL}
	if v4 := ip.To4(); v4 != nil {
		hdr.Rrtype = dns.TypeA
		return &dns.A{Hdr: hdr, A: v4}
	}
	hdr.Rrtype = dns.TypeAAAA
	return &dns.AAAA{Hdr: hdr, AAAA: ip}
}
