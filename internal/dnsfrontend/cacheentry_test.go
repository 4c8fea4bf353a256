package dnsfrontend

import (
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

func TestCacheEntryRoundTrip(t *testing.T) {
	msg := new(dns.Msg)
	msg.SetQuestion("example.com.", dns.TypeA)
	msg.Answer = []dns.RR{
		&dns.A{Hdr: dns.RR_Header{Name: "example.com.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60}},
	}

	blob, err := encodeCacheEntry(msg, true)
	require.NoError(t, err)

	decoded, isDomestic, ok := decodeCacheEntry(blob)
	require.True(t, ok)
	require.True(t, isDomestic)
	require.Equal(t, msg.Question, decoded.Question)
	require.Equal(t, msg.Answer, decoded.Answer)
}

func TestCacheEntryDecodeRejectsShortBlob(t *testing.T) {
	_, _, ok := decodeCacheEntry([]byte{0x01})
	require.False(t, ok)
}

func TestCacheKeyLowercasesName(t *testing.T) {
	q1 := dns.Question{Name: "Example.COM.", Qtype: dns.TypeA, Qclass: dns.ClassINET}
	q2 := dns.Question{Name: "example.com.", Qtype: dns.TypeA, Qclass: dns.ClassINET}
	require.Equal(t, cacheKey(q1), cacheKey(q2))
}
