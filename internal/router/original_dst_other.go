// +build !linux

package router

import (
	"errors"
	"net"
)

func getOriginalDst(conn *net.TCPConn, family addrFamily) (net.IP, int, error) {
	return nil, 0, errors.New("original destination recovery requires linux (SO_ORIGINAL_DST)")
}
