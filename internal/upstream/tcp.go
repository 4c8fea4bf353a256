package upstream

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/datawire/edgegate/internal/config"
	"github.com/datawire/edgegate/internal/dnsmsg"
)

const tcpTimeout = 2 * time.Second

// LookupTCP implements spec §4.3's "TCP" transport.
func LookupTCP(ctx context.Context, req *dns.Msg, up config.UpstreamDescriptor) (Response, error) {
	raddr := net.JoinHostPort(up.Address, "53")
	conn, err := net.DialTimeout("tcp", raddr, tcpTimeout)
	if err != nil {
		return Response{}, addrErr("tcp", raddr, err)
	}
	defer conn.Close()
	closeOnDone(ctx, conn)
	return exchangeStream(conn, raddr, "tcp", req, tcpTimeout)
}

// exchangeStream sends a length-prefixed request over an already-connected
// stream conn and reads back a length-prefixed, validity-checked reply. It
// is shared by the TCP and DoT transports, which differ only in how the
// connection itself is established.
func exchangeStream(conn net.Conn, raddr, transport string, req *dns.Msg, timeout time.Duration) (Response, error) {
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return Response{}, addrErr(transport, raddr, err)
	}

	framed, err := dnsmsg.WrapStream(req)
	if err != nil {
		return Response{}, addrErr(transport, raddr, err)
	}
	if _, err := conn.Write(framed); err != nil {
		return Response{}, addrErr(transport, raddr, err)
	}

	var lenBuf [2]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return Response{}, addrErr(transport, raddr, err)
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(conn, body); err != nil {
		return Response{}, addrErr(transport, raddr, err)
	}

	resp := new(dns.Msg)
	if err := resp.Unpack(body); err != nil {
		return Response{}, addrErr(transport, raddr, err)
	}
	if !dnsmsg.IsValidStream(resp) {
		return Response{}, addrErr(transport, raddr, errInvalidReply)
	}

	kind := KindTCP
	if transport == "dot" {
		kind = KindDoT
	}
	return Response{Kind: kind, Msg: resp}, nil
}
