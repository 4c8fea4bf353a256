// Package upstream implements the four wire transports a racer candidate
// can speak to a configured resolver: plain UDP, plain TCP, DNS-over-TLS,
// and DNS-over-HTTPS (spec §4.3).
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/miekg/dns"

	"github.com/datawire/edgegate/internal/config"
)

// errInvalidReply is returned when a reply fails the transport's validity
// filter (spec §4.3); the racer treats it like any other lookup failure.
var errInvalidReply = errors.New("reply failed validity filter")

// Kind tags which transport produced a Response, preserved only for
// observability (spec §3, QueryResponse).
type Kind int

const (
	KindUDP Kind = iota
	KindTCP
	KindDoT
	KindDoH
	KindOverride
	KindCache
)

func (k Kind) String() string {
	switch k {
	case KindUDP:
		return "udp"
	case KindTCP:
		return "tcp"
	case KindDoT:
		return "dot"
	case KindDoH:
		return "doh"
	case KindOverride:
		return "override"
	case KindCache:
		return "cache"
	default:
		return "unknown"
	}
}

// Response is the tagged QueryResponse of spec §3.
type Response struct {
	Kind Kind
	Msg  *dns.Msg
}

// Lookup is the common shape all four transports expose, dispatched from
// the racer boundary (spec §9, "polymorphism over transports").
type Lookup func(ctx context.Context, req *dns.Msg, up config.UpstreamDescriptor) (Response, error)

// Candidates returns one Lookup call per transport enabled on up, each
// already bound to its Kind.
func Candidates(up config.UpstreamDescriptor) []Lookup {
	var out []Lookup
	if up.EnableUDP {
		out = append(out, LookupUDP)
	}
	if up.EnableTCP {
		out = append(out, LookupTCP)
	}
	if up.EnableDoT {
		out = append(out, LookupDoT)
	}
	if up.EnableDoH {
		out = append(out, LookupDoH)
	}
	return out
}

func addrErr(transport, addr string, err error) error {
	return fmt.Errorf("%s %s: %w", transport, addr, err)
}

// closeOnDone closes c as soon as ctx is cancelled, so a racer that drops
// this task structurally (spec §5, "dropping the task future releases its
// sockets and TLS session") doesn't have to wait out this transport's own
// timeout.
func closeOnDone(ctx context.Context, c io.Closer) {
	go func() {
		<-ctx.Done()
		c.Close()
	}()
}
