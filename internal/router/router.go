// Package router implements the TransparentRouter component of spec §4.6:
// accept redirected TCP connections, recover their pre-NAT destination,
// classify it, and either splice straight through or tunnel via SOCKS5.
package router

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"

	"golang.org/x/net/proxy"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"

	"github.com/datawire/edgegate/internal/geo"
)

const (
	v4Addr    = "0.0.0.0:3333"
	v6Addr    = "[::1]:3333"
	socksAddr = "127.0.0.1:1086"
)

// addrFamily distinguishes which listener accepted a connection, since v4
// and v6 recover their pre-redirect destination through different socket
// options (spec §4.6 step 1) and v6 never proxies (spec §4.6, "for v6,
// always passthrough").
type addrFamily int

const (
	familyV4 addrFamily = iota
	familyV6
)

// Router is the TransparentRouter. Its v6 listener binds [::1]:3333, so it
// accepts v6 connections from this host only; the v4 listener binds
// 0.0.0.0:3333.
type Router struct {
	Classifier *geo.Classifier
}

// New wraps a shared classifier handle.
func New(classifier *geo.Classifier) *Router {
	return &Router{Classifier: classifier}
}

// Run binds the v4 and v6 listeners and serves accepted connections until
// ctx is cancelled.
func (r *Router) Run(ctx context.Context) error {
	v4, err := net.Listen("tcp4", v4Addr)
	if err != nil {
		return err
	}
	v6, err := net.Listen("tcp6", v6Addr)
	if err != nil {
		v4.Close()
		return err
	}

	g := dgroup.NewGroup(ctx, dgroup.GroupConfig{})
	g.Go("router-v4", func(c context.Context) error { return r.serve(c, v4, familyV4) })
	g.Go("router-v6", func(c context.Context) error { return r.serve(c, v6, familyV6) })
	return g.Wait()
}

func (r *Router) serve(ctx context.Context, ln net.Listener, family addrFamily) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		tcpConn, ok := conn.(*net.TCPConn)
		if !ok {
			conn.Close()
			continue
		}
		go r.handle(ctx, tcpConn, family)
	}
}

// handle implements spec §4.6 steps 1-6 for one accepted connection. family
// identifies which listener accepted conn, so the v6 path never classifies
// and always passes through (spec §4.6, "for v6, always passthrough"; spec
// §4.6 also: "do not silently proxy v6").
func (r *Router) handle(ctx context.Context, conn *net.TCPConn, family addrFamily) {
	defer conn.Close()

	ip, port, err := getOriginalDst(conn, family)
	if err != nil {
		dlog.Warnf(ctx, "recovering original destination from %s: %v", conn.RemoteAddr(), err)
		return
	}

	passthrough, cc := r.decidePassthrough(family, ip)

	info := fmt.Sprintf("from %s, to %s:%d in %s", conn.RemoteAddr(), ip, port, cc)

	out, err := dialUpstream(ip, port, passthrough)
	if err != nil {
		dlog.Warnf(ctx, "%s: %v", info, err)
		return
	}
	defer out.Close()

	splice(ctx, conn, out, info)
}

// decidePassthrough implements spec §4.6 step 2: v6 always passes through
// without consulting the classifier (spec §4.6, "for v6, always
// passthrough" / "do not silently proxy v6"); v4 passes through only when
// the destination classifies as domestic.
func (r *Router) decidePassthrough(family addrFamily, ip net.IP) (passthrough bool, countryCode string) {
	if family == familyV6 {
		return true, ""
	}
	cc := r.Classifier.CountryCode(ip.To4())
	return cc == "CN", cc
}

// dialUpstream opens either a direct TCP connection (passthrough) or a
// SOCKS5-tunneled one (proxy branch), per spec §4.6 steps 3-4.
func dialUpstream(ip net.IP, port int, passthrough bool) (net.Conn, error) {
	dst := net.JoinHostPort(ip.String(), strconv.Itoa(port))
	if passthrough {
		return net.Dial("tcp", dst)
	}

	dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, proxy.Direct)
	if err != nil {
		return nil, err
	}
	return dialer.Dial("tcp", dst)
}

type halfCloser interface {
	CloseWrite() error
	CloseRead() error
}

// splice copies bytes in both directions until each side hits EOF,
// half-closing its peer's corresponding direction as it does, per spec §4.6
// step 5 and the "half-close" testable property of spec §8.
func splice(ctx context.Context, a, b net.Conn, info string) {
	done := make(chan struct{}, 2)
	go pipe(ctx, a, b, info, done)
	go pipe(ctx, b, a, info, done)
	<-done
	<-done
}

func pipe(ctx context.Context, from, to net.Conn, info string, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()

	const bufSize = 64 * 1024
	buf := make([]byte, bufSize)
	_, err := io.CopyBuffer(to, from, buf)
	if err != nil {
		dlog.Debugf(ctx, "%s: splice error: %v", info, err)
	}

	if tc, ok := to.(halfCloser); ok {
		tc.CloseWrite()
	}
	if fc, ok := from.(halfCloser); ok {
		fc.CloseRead()
	}
}
