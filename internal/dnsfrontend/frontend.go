// Package dnsfrontend implements the DNSFrontEnd component of spec §4.5:
// listen on UDP and TCP, run each query through the override → cache →
// race pipeline, and reply on the same transport that received it.
package dnsfrontend

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/miekg/dns"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"

	"github.com/datawire/edgegate/internal/cache"
	"github.com/datawire/edgegate/internal/config"
	"github.com/datawire/edgegate/internal/dnsmsg"
	"github.com/datawire/edgegate/internal/geo"
	"github.com/datawire/edgegate/internal/racer"
)

const overrideTTL = 120

// FrontEnd is the DNSFrontEnd component.
type FrontEnd struct {
	settings   *config.Settings
	overrides  overrides
	racer      *racer.Racer
	classifier *geo.Classifier
	cache      *cache.Cache
	cacheTTL   time.Duration
}

// New builds a FrontEnd from already-loaded settings and shared,
// process-wide collaborators. cache may be nil (spec §4.9: no cache
// configured).
func New(settings *config.Settings, classifier *geo.Classifier, c *cache.Cache) *FrontEnd {
	ttl := time.Duration(settings.CacheExpire) * time.Second
	return &FrontEnd{
		settings:   settings,
		overrides:  overrides(settings.CustomHosts),
		racer:      racer.New(settings.Upstreams, classifier),
		classifier: classifier,
		cache:      c,
		cacheTTL:   ttl,
	}
}

// Run binds listen_ip:listen_port on both UDP and TCP and serves both
// concurrently until ctx is cancelled.
func (f *FrontEnd) Run(ctx context.Context) error {
	port := f.settings.ListenPort
	if port == 0 {
		port = 53
	}
	addr := net.JoinHostPort(f.settings.ListenIP, strconv.Itoa(port))

	udpConn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return err
	}
	tcpListener, err := net.Listen("tcp", addr)
	if err != nil {
		udpConn.Close()
		return err
	}

	g := dgroup.NewGroup(ctx, dgroup.GroupConfig{})
	g.Go("dns-udp", func(c context.Context) error {
		srv := &dns.Server{PacketConn: udpConn, Handler: f, ReadTimeout: time.Second}
		go func() {
			<-c.Done()
			srv.Shutdown()
		}()
		dlog.Infof(c, "DNS front-end listening on udp/%s", addr)
		return srv.ActivateAndServe()
	})
	g.Go("dns-tcp", func(c context.Context) error {
		srv := &dns.Server{Listener: tcpListener, Handler: f, ReadTimeout: time.Second}
		go func() {
			<-c.Done()
			srv.Shutdown()
		}()
		dlog.Infof(c, "DNS front-end listening on tcp/%s", addr)
		return srv.ActivateAndServe()
	})
	return g.Wait()
}
