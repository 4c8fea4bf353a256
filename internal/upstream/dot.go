package upstream

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/datawire/edgegate/internal/config"
)

const dotTimeout = 1 * time.Second

var dotSessionCache = tls.NewLRUClientSessionCache(64)

// LookupDoT implements spec §4.3's "DoT" transport: identical framing to
// TCP, port 853, TLS 1.2/1.3 with SNI set to the upstream's hostname, using
// the system root store.
func LookupDoT(ctx context.Context, req *dns.Msg, up config.UpstreamDescriptor) (Response, error) {
	raddr := net.JoinHostPort(up.Address, "853")

	dialer := &net.Dialer{Timeout: dotTimeout}
	// Session resumption is the closest the standard client exposes to the
	// spec's "early-data enabled": a cached session lets the handshake's
	// second round-trip carry application data on resumed connections.
	conn, err := tls.DialWithDialer(dialer, "tcp", raddr, &tls.Config{
		ServerName:         up.Hostname,
		MinVersion:         tls.VersionTLS12,
		MaxVersion:         tls.VersionTLS13,
		ClientSessionCache: dotSessionCache,
	})
	if err != nil {
		return Response{}, addrErr("dot", raddr, err)
	}
	defer conn.Close()
	closeOnDone(ctx, conn)
	return exchangeStream(conn, raddr, "dot", req, dotTimeout)
}
