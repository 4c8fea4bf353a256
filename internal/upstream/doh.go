package upstream

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/miekg/dns"

	"github.com/datawire/edgegate/internal/config"
	"github.com/datawire/edgegate/internal/dnsmsg"
)

const dohTimeout = 1 * time.Second

// LookupDoH implements spec §4.3's "DoH" transport: a literal
// "POST /dns-query HTTP/1.1" request framed by hand over a TLS connection
// to address:443 with SNI set to hostname, accepted only on a 200 response
// carrying Content-Length (spec §6).
func LookupDoH(ctx context.Context, req *dns.Msg, up config.UpstreamDescriptor) (Response, error) {
	raddr := net.JoinHostPort(up.Address, "443")

	dialer := &net.Dialer{Timeout: dohTimeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", raddr, &tls.Config{ServerName: up.Hostname})
	if err != nil {
		return Response{}, addrErr("doh", raddr, err)
	}
	defer conn.Close()
	closeOnDone(ctx, conn)
	if err := conn.SetDeadline(time.Now().Add(dohTimeout)); err != nil {
		return Response{}, addrErr("doh", raddr, err)
	}

	wire, err := req.Pack()
	if err != nil {
		return Response{}, addrErr("doh", raddr, err)
	}

	var hdr bytes.Buffer
	fmt.Fprintf(&hdr, "POST /dns-query HTTP/1.1\r\n")
	fmt.Fprintf(&hdr, "Host: %s\r\n", up.Hostname)
	fmt.Fprintf(&hdr, "Content-Type: application/dns-message\r\n")
	fmt.Fprintf(&hdr, "Content-Length: %d\r\n", len(wire))
	fmt.Fprintf(&hdr, "\r\n")

	if _, err := conn.Write(hdr.Bytes()); err != nil {
		return Response{}, addrErr("doh", raddr, err)
	}
	if _, err := conn.Write(wire); err != nil {
		return Response{}, addrErr("doh", raddr, err)
	}

	httpResp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		return Response{}, addrErr("doh", raddr, err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return Response{}, addrErr("doh", raddr, fmt.Errorf("non-200 response: %s", httpResp.Status))
	}
	if httpResp.ContentLength < 0 {
		return Response{}, addrErr("doh", raddr, fmt.Errorf("missing Content-Length"))
	}

	body := make([]byte, httpResp.ContentLength)
	if _, err := io.ReadFull(httpResp.Body, body); err != nil {
		return Response{}, addrErr("doh", raddr, err)
	}

	resp := new(dns.Msg)
	if err := resp.Unpack(body); err != nil {
		return Response{}, addrErr("doh", raddr, err)
	}
	if !dnsmsg.IsValidStream(resp) {
		return Response{}, addrErr("doh", raddr, errInvalidReply)
	}
	return Response{Kind: KindDoH, Msg: resp}, nil
}
