package upstream

import (
	"context"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/datawire/edgegate/internal/config"
	"github.com/datawire/edgegate/internal/dnsmsg"
)

const udpTimeout = 2 * time.Second

// LookupUDP implements spec §4.3's "UDP" transport: an ephemeral socket,
// one datagram out, loop receiving under a single overall timeout, keeping
// only replies that pass strict UDP validity.
func LookupUDP(ctx context.Context, req *dns.Msg, up config.UpstreamDescriptor) (Response, error) {
	raddr := net.JoinHostPort(up.Address, "53")
	conn, err := net.Dial("udp", raddr)
	if err != nil {
		return Response{}, addrErr("udp", raddr, err)
	}
	defer conn.Close()
	closeOnDone(ctx, conn)

	deadline := time.Now().Add(udpTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return Response{}, addrErr("udp", raddr, err)
	}

	wire, err := req.Pack()
	if err != nil {
		return Response{}, addrErr("udp", raddr, err)
	}
	if _, err := conn.Write(wire); err != nil {
		return Response{}, addrErr("udp", raddr, err)
	}

	buf := make([]byte, dns.MaxMsgSize)
	for {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		default:
		}

		n, err := conn.Read(buf)
		if err != nil {
			return Response{}, addrErr("udp", raddr, err)
		}

		resp := new(dns.Msg)
		if err := resp.Unpack(buf[:n]); err != nil {
			continue // malformed datagram, keep listening until timeout
		}
		if resp.Id != req.Id {
			continue
		}
		if !dnsmsg.IsValidUDP(resp) {
			continue
		}
		return Response{Kind: KindUDP, Msg: resp}, nil
	}
}
