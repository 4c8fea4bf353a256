package dnsmsg

import (
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

func TestWrapUnwrapStreamRoundTrip(t *testing.T) {
	msg := new(dns.Msg)
	msg.SetQuestion("example.com.", dns.TypeA)
	msg.Id = 0xBEEF

	framed, err := WrapStream(msg)
	require.NoError(t, err)

	raw, err := msg.Pack()
	require.NoError(t, err)
	require.Equal(t, len(raw), int(uint16(framed[0])<<8|uint16(framed[1])))

	unwrapped, err := UnwrapStream(framed)
	require.NoError(t, err)
	require.Equal(t, raw, unwrapped)
}

func TestUnwrapStreamShortFrame(t *testing.T) {
	_, err := UnwrapStream([]byte{0x00})
	require.ErrorIs(t, err, ErrShortFrame)

	_, err = UnwrapStream([]byte{0x00, 0x05, 0x01})
	require.ErrorIs(t, err, ErrShortFrame)
}

func TestBuildRequestPreservesIDAndQuestion(t *testing.T) {
	origin := new(dns.Msg)
	origin.SetQuestion("host.example.lan.", dns.TypeA)
	origin.Id = 1234

	req := BuildRequest(origin)

	require.Equal(t, origin.Id, req.Id)
	require.Equal(t, origin.Question, req.Question)
	require.False(t, req.Response)
	require.Equal(t, dns.OpcodeQuery, req.Opcode)
}

func TestBuildRequestAddsDefaultOPTWhenAbsent(t *testing.T) {
	origin := new(dns.Msg)
	origin.SetQuestion("host.example.lan.", dns.TypeA)

	req := BuildRequest(origin)

	opt := req.IsEdns0()
	require.NotNil(t, opt)
	require.True(t, opt.Do())
	require.Equal(t, uint16(defaultUDPSize), opt.UDPSize())
	require.Len(t, opt.Option, 5)
}

func TestBuildRequestCopiesExistingOPT(t *testing.T) {
	origin := new(dns.Msg)
	origin.SetQuestion("host.example.lan.", dns.TypeA)
	opt := &dns.OPT{Hdr: dns.RR_Header{Name: ".", Rrtype: dns.TypeOPT}}
	opt.SetUDPSize(4096)
	origin.Extra = append(origin.Extra, opt)

	req := BuildRequest(origin)

	got := req.IsEdns0()
	require.NotNil(t, got)
	require.Equal(t, uint16(4096), got.UDPSize())
}

func TestBuildResponseSetsClientID(t *testing.T) {
	clientReq := new(dns.Msg)
	clientReq.SetQuestion("example.com.", dns.TypeA)
	clientReq.Id = 42

	upstreamResp := new(dns.Msg)
	upstreamResp.SetQuestion("example.com.", dns.TypeA)
	upstreamResp.Id = 999
	upstreamResp.Response = true
	upstreamResp.Answer = []dns.RR{
		&dns.A{Hdr: dns.RR_Header{Name: "example.com.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60}},
	}

	resp := BuildResponse(clientReq.Id, clientReq, upstreamResp, nil)

	require.Equal(t, clientReq.Id, resp.Id)
	require.Equal(t, clientReq.Question, resp.Question)
	require.Equal(t, upstreamResp.Answer, resp.Answer)
	require.True(t, resp.Response)
}

func TestBuildResponseUsesSuppliedAnswers(t *testing.T) {
	clientReq := new(dns.Msg)
	clientReq.SetQuestion("host.example.lan.", dns.TypeA)
	clientReq.Id = 7

	answers := []dns.RR{
		&dns.A{Hdr: dns.RR_Header{Name: "host.example.lan.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 120}},
	}

	resp := BuildResponse(clientReq.Id, clientReq, clientReq, answers)

	require.Equal(t, answers, resp.Answer)
}
