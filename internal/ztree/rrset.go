package ztree

import (
	"net"

	"github.com/geodnsd/geodnsd/internal/dname"
)

// RRType enumerates the RR-set variants the zone tree stores. Numeric
// values match DNS wire type codes where one exists; RFC3597 carries its
// own explicit type code in RRSet.OpaqueType.
type RRType uint16

const (
	TypeAddr  RRType = 1 // holds both A and AAAA
	TypeNS    RRType = 2
	TypeCNAME RRType = 5
	TypeSOA   RRType = 6
	TypePTR   RRType = 12
	TypeMX    RRType = 15
	TypeTXT   RRType = 16
	TypeSPF   RRType = 99
	TypeSRV   RRType = 33
	TypeNAPTR RRType = 35
	TypeOpaque RRType = 0 // RFC3597, actual type carried in RRSet.OpaqueType
)

// AdditionalRef points from an MX/NS/PTR/SRV/NAPTR rdata entry at a
// target name to the Addr RR-set (in the same zone) providing glue or
// additional A/AAAA for that target.
type AdditionalRef struct {
	Addr     *RRSet // must have Type == TypeAddr
	Required bool   // true inside a delegation: this is required glue
}

// RRSet is one type-homogeneous resource-record set owned by a Node.
type RRSet struct {
	Type RRType
	TTL  uint32

	// KindAddr
	V4        []net.IP
	V6        []net.IP
	LimitV4   int // 0 means "no cap"
	LimitV6   int
	DynAddrID string // non-empty => dynamic, resolved via plugin.AddrResolver
	// GlueOwner is the name this Addr RR-set is attached under. Only
	// needed so an AdditionalRef can recover the owner to write for glue
	// emitted into the additional section, since the RR-set itself
	// carries no back-pointer to its node.
	GlueOwner dname.Name

	// KindName (NS/PTR/CNAME/MX priority+target/SRV/NAPTR/target)
	Targets   []NameTarget
	DynCNAME  string // non-empty CNAME resource id => dynamic

	// KindText (TXT/SPF)
	Text [][]byte

	// KindOpaque (RFC3597)
	OpaqueType RRType
	RData      []byte

	// KindSOA
	SOA *SOAFields
}

// NameTarget is one rdata entry whose value is a domain name (NS, PTR,
// CNAME target, MX exchange, SRV target, NAPTR replacement), optionally
// carrying MX/SRV priority/weight/port fields and an additional-data
// pointer to glue.
type NameTarget struct {
	Name       dname.Name
	Preference uint16 // MX preference, SRV priority
	Weight     uint16 // SRV only
	Port       uint16 // SRV only
	Additional *AdditionalRef
}

// SOAFields holds the fixed-layout portion of an SOA RR-set (exactly one
// per zone origin).
type SOAFields struct {
	MName   dname.Name
	RName   dname.Name
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}
