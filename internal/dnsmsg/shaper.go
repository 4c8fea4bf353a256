// Package dnsmsg builds outbound queries and inbound replies and frames
// them for stream transports, per spec §4.1 and the wire constants in §6.
package dnsmsg

import (
	"encoding/binary"
	"errors"
	"net"

	"github.com/miekg/dns"
)

// ErrShortFrame is returned when a stream buffer is shorter than the
// length prefix it carries claims.
var ErrShortFrame = errors.New("dnsmsg: short frame")

const (
	defaultUDPSize = 1024
	keyTagOption   = 14 // RFC 8145 edns-key-tag, carried as an opaque EDNS0_LOCAL
)

var (
	clientSubnetV4 = net.ParseIP("122.233.242.188")
	clientSubnetV6 = net.ParseIP("240e:390:e5b:8280::1")
	keyTagValues   = []uint16{1, 2, 3, 82}
)

// defaultOPT builds the operator-configured OPT record used to normalize
// probes sent to upstreams, per spec §4.1 and the wire constants in §6.
func defaultOPT() *dns.OPT {
	o := &dns.OPT{Hdr: dns.RR_Header{Name: ".", Rrtype: dns.TypeOPT}}
	o.SetUDPSize(defaultUDPSize)
	o.SetVersion(0)
	o.SetDo(true)

	o.Option = append(o.Option,
		&dns.EDNS0_SUBNET{
			Code:          dns.EDNS0SUBNET,
			Family:        1,
			SourceNetmask: 24,
			SourceScope:   0,
			Address:       clientSubnetV4,
		},
		&dns.EDNS0_SUBNET{
			Code:          dns.EDNS0SUBNET,
			Family:        2,
			SourceNetmask: 64,
			SourceScope:   0,
			Address:       clientSubnetV6,
		},
		&dns.EDNS0_PADDING{Padding: make([]byte, 31)},
		&dns.EDNS0_TCP_KEEPALIVE{Code: dns.EDNS0TCPKEEPALIVE, Timeout: 20},
		&dns.EDNS0_LOCAL{Code: keyTagOption, Data: packKeyTags(keyTagValues)},
	)
	return o
}

func packKeyTags(tags []uint16) []byte {
	buf := make([]byte, 2*len(tags))
	for i, t := range tags {
		binary.BigEndian.PutUint16(buf[2*i:], t)
	}
	return buf
}

// BuildRequest copies origin's id and first question into a fresh outbound
// query, attaching either origin's own OPT records or the default OPT, per
// spec §4.1.
func BuildRequest(origin *dns.Msg) *dns.Msg {
	req := new(dns.Msg)
	req.Id = origin.Id
	req.Opcode = dns.OpcodeQuery
	req.RecursionDesired = true
	req.RecursionAvailable = true
	req.Authoritative = true
	req.Response = false
	req.Rcode = dns.RcodeSuccess

	if len(origin.Question) > 0 {
		req.Question = []dns.Question{origin.Question[0]}
	}

	var opts []*dns.OPT
	for _, rr := range origin.Extra {
		if opt, ok := rr.(*dns.OPT); ok {
			opts = append(opts, opt)
		}
	}
	if len(opts) == 0 {
		req.Extra = append(req.Extra, defaultOPT())
	} else {
		for _, opt := range opts {
			req.Extra = append(req.Extra, opt.Copy().(*dns.OPT))
		}
	}
	return req
}

// BuildResponse starts from originRequest, carries the question across, and
// sets the client-facing reply id to id. If answers is non-nil it replaces
// the answer section; otherwise origin's own answer section is copied.
// Additionals are always copied from origin. Per spec §4.1 and §9 note on
// "message mutation across cache": origin here may be either the upstream
// reply (when relaying) or the original client request (when synthesizing
// an override answer).
func BuildResponse(id uint16, originRequest *dns.Msg, origin *dns.Msg, answers []dns.RR) *dns.Msg {
	resp := new(dns.Msg)
	resp.Id = id
	resp.Response = true
	resp.CheckingDisabled = true
	resp.Rcode = dns.RcodeSuccess
	resp.Authoritative = origin.Authoritative
	resp.Truncated = origin.Truncated
	resp.RecursionDesired = origin.RecursionDesired
	resp.RecursionAvailable = origin.RecursionAvailable
	resp.AuthenticatedData = origin.AuthenticatedData

	if len(originRequest.Question) > 0 {
		resp.Question = []dns.Question{originRequest.Question[0]}
	}
	if answers != nil {
		resp.Answer = answers
	} else {
		resp.Answer = origin.Answer
	}
	resp.Extra = origin.Extra
	return resp
}

// WrapStream prepends the 16-bit big-endian length prefix stream transports
// require (spec §4.1, §6).
func WrapStream(msg *dns.Msg) ([]byte, error) {
	raw, err := msg.Pack()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 2+len(raw))
	binary.BigEndian.PutUint16(out, uint16(len(raw)))
	copy(out[2:], raw)
	return out, nil
}

// UnwrapStream strips and validates the length prefix, returning the
// message octets it frames. It is the inverse of WrapStream and exists
// mainly to make the framing round-trip testable per spec §8.
func UnwrapStream(framed []byte) ([]byte, error) {
	if len(framed) < 2 {
		return nil, ErrShortFrame
	}
	n := binary.BigEndian.Uint16(framed)
	if len(framed) < 2+int(n) {
		return nil, ErrShortFrame
	}
	return framed[2 : 2+int(n)], nil
}
