// +build linux

package router

import (
	"net"
	"syscall"
	"unsafe"
)

// soOriginalDst is SO_ORIGINAL_DST, the socket option iptables' REDIRECT
// target uses to stash the pre-NAT destination (spec §4.6 step 1).
const soOriginalDst = 80

// ip6tOriginalDst is IP6T_SO_ORIGINAL_DST, ip6tables' v6 counterpart to
// soOriginalDst (spec §4.6 step 1, v6 listener).
const ip6tOriginalDst = 80

// sockaddrIn6 mirrors the kernel's struct sockaddr_in6 layout, which is what
// IP6T_SO_ORIGINAL_DST fills in. The syscall package has no typed helper for
// it the way it does (by coincidence of struct layout) for the v4 case via
// GetsockoptIPv6Mreq, so this is read out with a raw getsockopt call.
type sockaddrIn6 struct {
	Family   uint16
	Port     [2]byte
	Flowinfo uint32
	Addr     [16]byte
	ScopeID  uint32
}

// getOriginalDst recovers the pre-redirect (ip, port) of a TCP connection
// that arrived through an iptables/ip6tables REDIRECT rule, grounded on the
// kernel's SO_ORIGINAL_DST / IP6T_SO_ORIGINAL_DST socket options. family
// selects which option to query and must match the listener the connection
// was accepted on (spec §4.6 step 1: v4 and v6 use distinct recovery paths).
func getOriginalDst(conn *net.TCPConn, family addrFamily) (ip net.IP, port int, err error) {
	if family == familyV6 {
		return getOriginalDst6(conn)
	}
	return getOriginalDst4(conn)
}

func getOriginalDst4(conn *net.TCPConn) (ip net.IP, port int, err error) {
	var addr *syscall.IPv6Mreq

	rawConn, err := conn.SyscallConn()
	if err != nil {
		return nil, 0, err
	}
	ctrlErr := rawConn.Control(func(fd uintptr) {
		addr, err = syscall.GetsockoptIPv6Mreq(int(fd), syscall.IPPROTO_IP, soOriginalDst)
	})
	if ctrlErr != nil {
		return nil, 0, ctrlErr
	}
	if err != nil {
		return nil, 0, err
	}

	ip = net.IPv4(addr.Multiaddr[4], addr.Multiaddr[5], addr.Multiaddr[6], addr.Multiaddr[7])
	port = int(addr.Multiaddr[2])<<8 + int(addr.Multiaddr[3])
	return ip, port, nil
}

func getOriginalDst6(conn *net.TCPConn) (ip net.IP, port int, err error) {
	var addr sockaddrIn6

	rawConn, err := conn.SyscallConn()
	if err != nil {
		return nil, 0, err
	}
	var ctrlErr error
	getErr := rawConn.Control(func(fd uintptr) {
		size := uint32(unsafe.Sizeof(addr))
		_, _, errno := syscall.Syscall6(
			syscall.SYS_GETSOCKOPT,
			fd,
			uintptr(syscall.IPPROTO_IPV6),
			uintptr(ip6tOriginalDst),
			uintptr(unsafe.Pointer(&addr)),
			uintptr(unsafe.Pointer(&size)),
			0,
		)
		if errno != 0 {
			ctrlErr = errno
		}
	})
	if getErr != nil {
		return nil, 0, getErr
	}
	if ctrlErr != nil {
		return nil, 0, ctrlErr
	}

	ip = make(net.IP, 16)
	copy(ip, addr.Addr[:])
	port = int(addr.Port[0])<<8 + int(addr.Port[1])
	return ip, port, nil
}
