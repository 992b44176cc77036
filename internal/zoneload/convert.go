package zoneload

import (
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/miekg/dns"

	"github.com/geodnsd/geodnsd/internal/dname"
	"github.com/geodnsd/geodnsd/internal/ztree"
)

// nameFromPresentation converts a dotted presentation-form name (as
// dns.RR.Header().Name yields it) into this module's wire-form Name,
// honoring the RFC1035 backslash escapes (\X and \DDD) zone-file
// parsers emit for labels containing a literal dot or control byte.
func nameFromPresentation(s string) (dname.Name, error) {
	if s == "." || s == "" {
		return dname.Root, nil
	}
	s = strings.TrimSuffix(s, ".")

	var wire []byte
	var label []byte
	flush := func() error {
		if len(label) > dname.MaxLabelLength {
			return dname.ErrLabelTooLong
		}
		wire = append(wire, byte(len(label)))
		wire = append(wire, label...)
		label = label[:0]
		return nil
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+3 < len(s) && isDigit(s[i+1]) && isDigit(s[i+2]) && isDigit(s[i+3]):
			n, err := strconv.Atoi(s[i+1 : i+4])
			if err != nil || n > 255 {
				return nil, fmt.Errorf("dname: bad \\DDD escape in %q", s)
			}
			label = append(label, byte(n))
			i += 3
		case c == '\\' && i+1 < len(s):
			label = append(label, s[i+1])
			i++
		case c == '.':
			if err := flush(); err != nil {
				return nil, err
			}
		default:
			label = append(label, c)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	wire = append(wire, 0)
	return dname.FromWireLabels(wire)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// rrGrouper collects dns.RR values by (owner, rrtype) before lowering
// them into a single RRSet each, since the zone-tree model is
// type-homogeneous per node rather than one RR per entry.
type rrGrouper struct {
	order []groupKey
	byKey map[groupKey][]dns.RR
}

type groupKey struct {
	owner  string
	rrtype uint16
}

func newRRGrouper() *rrGrouper {
	return &rrGrouper{byKey: make(map[groupKey][]dns.RR)}
}

func (g *rrGrouper) add(rr dns.RR) error {
	if rr == nil {
		return fmt.Errorf("zoneload: nil RR")
	}
	rrtype := rr.Header().Rrtype
	if rrtype == dns.TypeAAAA {
		rrtype = dns.TypeA // A and AAAA share one Addr RR-set
	}
	k := groupKey{owner: strings.ToLower(rr.Header().Name), rrtype: rrtype}
	if _, ok := g.byKey[k]; !ok {
		g.order = append(g.order, k)
	}
	g.byKey[k] = append(g.byKey[k], rr)
	return nil
}

// build lowers every grouped (owner, rrtype) bucket into the builder.
func (g *rrGrouper) build(b *ztree.Builder) error {
	for _, k := range g.order {
		rrs := g.byKey[k]
		owner, err := nameFromPresentation(rrs[0].Header().Name)
		if err != nil {
			return err
		}
		rrset, err := lowerRRSet(k.rrtype, rrs)
		if err != nil {
			return fmt.Errorf("zoneload: %s: %w", rrs[0].Header().Name, err)
		}
		if rrset == nil {
			continue // lowerRRSet reports unsupported types as errors; guard only
		}
		if err := b.AddRRSet(owner, rrset); err != nil {
			return err
		}
	}
	return nil
}

// lowerRRSet converts one type-homogeneous group of dns.RR values into
// a ztree.RRSet. TTL is taken from the first record, matching RFC1035's
// "all RRs in an RRset share a TTL" convention.
func lowerRRSet(rrtype uint16, rrs []dns.RR) (*ztree.RRSet, error) {
	ttl := rrs[0].Header().Ttl

	switch rrtype {
	case dns.TypeA, dns.TypeAAAA:
		rs := &ztree.RRSet{Type: ztree.TypeAddr, TTL: ttl}
		for _, rr := range rrs {
			switch r := rr.(type) {
			case *dns.A:
				rs.V4 = append(rs.V4, r.A)
			case *dns.AAAA:
				rs.V6 = append(rs.V6, r.AAAA)
			}
		}
		return rs, nil

	case dns.TypeNS:
		rs := &ztree.RRSet{Type: ztree.TypeNS, TTL: ttl}
		for _, rr := range rrs {
			n := rr.(*dns.NS)
			target, err := nameFromPresentation(n.Ns)
			if err != nil {
				return nil, err
			}
			rs.Targets = append(rs.Targets, ztree.NameTarget{Name: target})
		}
		return rs, nil

	case dns.TypeCNAME:
		n := rrs[0].(*dns.CNAME)
		target, err := nameFromPresentation(n.Target)
		if err != nil {
			return nil, err
		}
		return &ztree.RRSet{Type: ztree.TypeCNAME, TTL: ttl,
			Targets: []ztree.NameTarget{{Name: target}}}, nil

	case dns.TypePTR:
		rs := &ztree.RRSet{Type: ztree.TypePTR, TTL: ttl}
		for _, rr := range rrs {
			p := rr.(*dns.PTR)
			target, err := nameFromPresentation(p.Ptr)
			if err != nil {
				return nil, err
			}
			rs.Targets = append(rs.Targets, ztree.NameTarget{Name: target})
		}
		return rs, nil

	case dns.TypeMX:
		rs := &ztree.RRSet{Type: ztree.TypeMX, TTL: ttl}
		for _, rr := range rrs {
			m := rr.(*dns.MX)
			target, err := nameFromPresentation(m.Mx)
			if err != nil {
				return nil, err
			}
			rs.Targets = append(rs.Targets, ztree.NameTarget{Name: target, Preference: m.Preference})
		}
		return rs, nil

	case dns.TypeSRV:
		rs := &ztree.RRSet{Type: ztree.TypeSRV, TTL: ttl}
		for _, rr := range rrs {
			s := rr.(*dns.SRV)
			target, err := nameFromPresentation(s.Target)
			if err != nil {
				return nil, err
			}
			rs.Targets = append(rs.Targets, ztree.NameTarget{
				Name: target, Preference: s.Priority, Weight: s.Weight, Port: s.Port,
			})
		}
		return rs, nil

	case dns.TypeTXT:
		rs := &ztree.RRSet{Type: ztree.TypeTXT, TTL: ttl}
		for _, rr := range rrs {
			t := rr.(*dns.TXT)
			for _, chunk := range t.Txt {
				rs.Text = append(rs.Text, []byte(chunk))
			}
		}
		return rs, nil

	case dns.TypeSOA:
		s := rrs[0].(*dns.SOA)
		mname, err := nameFromPresentation(s.Ns)
		if err != nil {
			return nil, err
		}
		rname, err := nameFromPresentation(s.Mbox)
		if err != nil {
			return nil, err
		}
		return &ztree.RRSet{Type: ztree.TypeSOA, TTL: ttl, SOA: &ztree.SOAFields{
			MName: mname, RName: rname, Serial: s.Serial, Refresh: s.Refresh,
			Retry: s.Retry, Expire: s.Expire, Minimum: s.Minttl,
		}}, nil

	default:
		// dns.ZoneParser itself falls back to *dns.RFC3597 (hex-encoded
		// rdata) for any type it doesn't have a concrete struct for;
		// that hex string is exactly the opaque passthrough rdata
		// answer.encodeOpaque expects.
		rfc, ok := rrs[0].(*dns.RFC3597)
		if !ok {
			return nil, fmt.Errorf("unsupported RR type %d", rrtype)
		}
		rdata, err := hex.DecodeString(rfc.Rdata)
		if err != nil {
			return nil, fmt.Errorf("decoding RFC3597 rdata: %w", err)
		}
		return &ztree.RRSet{Type: ztree.TypeOpaque, OpaqueType: ztree.RRType(rrtype), TTL: ttl,
			RData: rdata}, nil
	}
}

// parseIP is kept for the YAML parser's literal address fields.
func parseIP(s string) (net.IP, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, fmt.Errorf("zoneload: invalid IP address %q", s)
	}
	return ip, nil
}
