package geo

import (
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

// fakeDB is a minimal countryLookup stand-in so these tests don't need a
// real .mmdb file.
type fakeDB map[string]string

func (f fakeDB) CountryCode(ip net.IP) string {
	return f[ip.String()]
}

func TestIsDomesticFirstARecordCN(t *testing.T) {
	c := NewClassifier(fakeDB{"114.114.114.114": "CN"})

	msg := new(dns.Msg)
	msg.Answer = []dns.RR{
		&dns.A{Hdr: dns.RR_Header{Name: "example.cn.", Rrtype: dns.TypeA}, A: net.ParseIP("114.114.114.114")},
	}
	require.True(t, c.IsDomestic(msg))
}

func TestIsDomesticSingleNonCNARecord(t *testing.T) {
	c := NewClassifier(fakeDB{"1.1.1.1": "AU"})

	msg := new(dns.Msg)
	msg.Answer = []dns.RR{
		&dns.A{Hdr: dns.RR_Header{Name: "twitter.com.", Rrtype: dns.TypeA}, A: net.ParseIP("1.1.1.1")},
	}
	require.False(t, c.IsDomestic(msg))
}

func TestIsDomesticContinuesPastNonCNARecordToFindCN(t *testing.T) {
	c := NewClassifier(fakeDB{"1.1.1.1": "AU", "114.114.114.114": "CN"})

	msg := new(dns.Msg)
	msg.Answer = []dns.RR{
		&dns.A{Hdr: dns.RR_Header{Name: "example.com.", Rrtype: dns.TypeA}, A: net.ParseIP("1.1.1.1")},
		&dns.A{Hdr: dns.RR_Header{Name: "example.com.", Rrtype: dns.TypeA}, A: net.ParseIP("114.114.114.114")},
	}
	require.True(t, c.IsDomestic(msg))
}

func TestIsDomesticSkipsNonARecords(t *testing.T) {
	c := NewClassifier(fakeDB{"114.114.114.114": "CN"})

	msg := new(dns.Msg)
	msg.Answer = []dns.RR{
		&dns.CNAME{Hdr: dns.RR_Header{Name: "example.cn.", Rrtype: dns.TypeCNAME}, Target: "real.example.cn."},
		&dns.A{Hdr: dns.RR_Header{Name: "real.example.cn.", Rrtype: dns.TypeA}, A: net.ParseIP("114.114.114.114")},
	}
	require.True(t, c.IsDomestic(msg))
}

func TestIsDomesticEmptyAnswerIsNotDomestic(t *testing.T) {
	c := NewClassifier(fakeDB{})
	require.False(t, c.IsDomestic(new(dns.Msg)))
}
