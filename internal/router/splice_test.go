package router

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// tcpPipe returns a connected pair of *net.TCPConn over loopback, so the
// halfCloser type assertion in pipe() actually engages (net.Pipe's in-memory
// conns don't implement CloseWrite/CloseRead).
func tcpPipe(t *testing.T) (a, b *net.TCPConn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	acceptedCh := make(chan *net.TCPConn, 1)
	go func() {
		c, err := ln.Accept()
		require.NoError(t, err)
		acceptedCh <- c.(*net.TCPConn)
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	server := <-acceptedCh
	return client.(*net.TCPConn), server
}

func TestSpliceCopiesBothDirectionsAndHalfCloses(t *testing.T) {
	a1, a2 := tcpPipe(t)
	b1, b2 := tcpPipe(t)
	defer a1.Close()
	defer a2.Close()
	defer b1.Close()
	defer b2.Close()

	done := make(chan struct{})
	go func() {
		splice(context.Background(), a2, b2, "test")
		close(done)
	}()

	// client -> a1, splice relays a2->b2->b1; and the return path.
	_, err := a1.Write([]byte("hello"))
	require.NoError(t, err)
	buf := make([]byte, 5)
	_, err = io.ReadFull(b1, buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))

	_, err = b1.Write([]byte("world"))
	require.NoError(t, err)
	_, err = io.ReadFull(a1, buf)
	require.NoError(t, err)
	require.Equal(t, "world", string(buf))

	// closing both ends of the outer pair lets the copies hit EOF and the
	// splice goroutines complete.
	require.NoError(t, a1.Close())
	require.NoError(t, b1.Close())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("splice did not complete after both peers closed")
	}
}

func TestDialUpstreamPassthroughDialsDirect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	acceptedCh := make(chan struct{}, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			acceptedCh <- struct{}{}
			c.Close()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	conn, err := dialUpstream(addr.IP, addr.Port, true)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-acceptedCh:
	case <-time.After(time.Second):
		t.Fatal("passthrough dial never reached the listener")
	}
}
