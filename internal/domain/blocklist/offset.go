// Package blocklist defines the IP blocklist port and the fixed address-to-
// bitmap-offset mapping shared by every backend implementation.
package blocklist

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Offset maps an IP address to its bitmap bit offset. An IPv4 address maps to
// its 32-bit big-endian integer value. An IPv6 address is folded to a 32-bit
// offset by concatenating its eight 16-bit groups into a 128-bit big-endian
// integer and taking the result modulo 2^32 -- which depends only on the
// low 4 bytes of that integer, i.e. the last two 16-bit groups.
func Offset(ip net.IP) (uint32, error) {
	if ip == nil {
		return 0, fmt.Errorf("blocklist: nil IP address")
	}
	if v4 := ip.To4(); v4 != nil {
		return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3]), nil
	}
	v6 := ip.To16()
	if v6 == nil {
		return 0, fmt.Errorf("blocklist: not an IPv4 or IPv6 address: %v", ip)
	}
	return binary.BigEndian.Uint32(v6[12:16]), nil
}

// ParseOffset parses a textual IP address and returns its bitmap offset.
func ParseOffset(addr string) (uint32, error) {
	ip := net.ParseIP(addr)
	if ip == nil {
		return 0, fmt.Errorf("blocklist: invalid IP address %q", addr)
	}
	return Offset(ip)
}
