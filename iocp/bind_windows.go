//go:build windows
// +build windows

// File: iocp/bind_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// BindAny binds a socket to a wildcard local address. ConnectEx requires a
// bound socket even when the caller has no specific local address in mind,
// so every connect-style path in this package routes through it rather
// than duplicating ad hoc bind logic per caller.

package iocp

import (
	"fmt"
	"net"

	"golang.org/x/sys/windows"
)

// BindAny binds sock to addr. addr must be an AddrV4 or AddrV6 value; any
// other shape is rejected with ErrInvalidAddressTuple. Host is parsed
// numerically only, exactly like Connect's address argument: no name
// resolution is ever performed. A zero port lets the OS assign one.
func BindAny(sock windows.Handle, addr any) error {
	switch v := addr.(type) {
	case AddrV4:
		ip := net.ParseIP(v.Host)
		if ip == nil {
			return fmt.Errorf("iocp: %q is not a numeric IPv4 address", v.Host)
		}
		ip4 := ip.To4()
		if ip4 == nil {
			return fmt.Errorf("iocp: %q is not an IPv4 address", v.Host)
		}
		var sa windows.SockaddrInet4
		sa.Port = int(v.Port)
		copy(sa.Addr[:], ip4)
		return windows.Bind(sock, &sa)
	case AddrV6:
		ip := net.ParseIP(v.Host)
		if ip == nil {
			return fmt.Errorf("iocp: %q is not a numeric IPv6 address", v.Host)
		}
		ip16 := ip.To16()
		if ip16 == nil {
			return fmt.Errorf("iocp: %q is not an IPv6 address", v.Host)
		}
		var sa windows.SockaddrInet6
		sa.Port = int(v.Port)
		sa.ZoneId = v.ScopeID
		copy(sa.Addr[:], ip16)
		return windows.Bind(sock, &sa)
	default:
		return ErrInvalidAddressTuple
	}
}

// BindAnyV4 is a convenience wrapper binding sock to 0.0.0.0:port.
func BindAnyV4(sock windows.Handle, port uint16) error {
	return BindAny(sock, AddrV4{Host: "0.0.0.0", Port: port})
}

// BindAnyV6 is a convenience wrapper binding sock to [::]:port.
func BindAnyV6(sock windows.Handle, port uint16) error {
	return BindAny(sock, AddrV6{Host: "::", Port: port})
}
