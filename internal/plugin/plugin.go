// Package plugin defines the callback shapes the answer builder
// consults for GeoIP-style dynamic address and CNAME resources
// (spec.md §6), named after gdnsd's plugin_geoip_resolve_dynaddr /
// plugin_geoip_resolve_dyncname. The engine only ever calls through
// these interfaces; the plugin loading machinery itself is out of
// scope.
package plugin

import (
	"net"

	"github.com/geodnsd/geodnsd/internal/dname"
)

// ClientInfo carries the addressing context a dynamic resolver needs to
// pick a GeoIP-appropriate answer.
type ClientInfo struct {
	// DNSSource is the address the query arrived from.
	DNSSource net.IP
	// EDNSClientIP is the EDNS Client Subnet address, if present.
	EDNSClientIP net.IP
	// EDNSClientMask is the ECS source prefix length, 0 if ECS absent.
	EDNSClientMask uint8
}

// AddrResult is what a dynamic address resolution call returns.
type AddrResult struct {
	V4        []net.IP
	V6        []net.IP
	TTL       uint32
	ScopeMask uint8
}

// CNAMEResult is what a dynamic CNAME resolution call returns.
type CNAMEResult struct {
	Target    dname.Name
	TTL       uint32
	ScopeMask uint8
}

// AddrResolver resolves a dynamic Addr RR-set's resource identifier to
// concrete addresses at request time. ThreadID identifies the calling
// I/O thread (a resolver may keep small per-thread caches); it must not
// block.
type AddrResolver interface {
	ResolveAddr(threadID int, resourceID string, client ClientInfo) (AddrResult, error)
}

// CNAMEResolver resolves a dynamic CNAME RR-set's resource identifier to
// a concrete target name at request time.
type CNAMEResolver interface {
	ResolveCNAME(threadID int, resourceID string, origin dname.Name, client ClientInfo) (CNAMEResult, error)
}

// Resolvers bundles both callback kinds; a thread context holds one.
type Resolvers struct {
	Addr  AddrResolver
	CNAME CNAMEResolver
}
