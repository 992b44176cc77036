package answer

import (
	"github.com/geodnsd/geodnsd/internal/dname"
	"github.com/geodnsd/geodnsd/internal/reqctx"
	"github.com/geodnsd/geodnsd/internal/wire"
	"github.com/geodnsd/geodnsd/internal/ztree"
)

// section selects which buffer/compression policy an encoder writes
// into: the main answer+authority buffer (compressed, targets
// registered) or the additional-section side buffer (compressed
// against existing targets, never itself registered).
type section int

const (
	sectionMain section = iota
	sectionAddtl
)

func writeOwner(buf []byte, owner dname.Name, targets *dname.Targets, sec section) []byte {
	if sec == sectionMain {
		return dname.WriteCompressed(buf, owner, targets)
	}
	return dname.WriteCompressedSideBuffer(buf, owner, targets)
}

func writeName(buf []byte, name dname.Name, targets *dname.Targets, sec section) []byte {
	return writeOwner(buf, name, targets, sec)
}

// encodeAddr writes A and/or AAAA RRs for rrset at owner, rotated, into
// buf. families selects which address families to emit (use both for
// ANY/CHAOS-free encoding, one for a plain A/AAAA query).
func encodeAddr(buf []byte, owner dname.Name, rrset *ztree.RRSet, ttl uint32, rng *reqctx.RNG, targets *dname.Targets, sec section, v4, v6 bool) ([]byte, int) {
	count := 0
	if v4 && len(rrset.V4) > 0 {
		for _, i := range rotateIndices(rng, len(rrset.V4), rrset.LimitV4) {
			buf = writeOwner(buf, owner, targets, sec)
			var rdlenOff int
			buf, rdlenOff = wire.RRHeaderFixed(buf, wire.TypeA, wire.ClassIN, ttl)
			ip4 := rrset.V4[i].To4()
			buf = append(buf, ip4...)
			wire.PatchRDLength(buf, rdlenOff)
			count++
		}
	}
	if v6 && len(rrset.V6) > 0 {
		for _, i := range rotateIndices(rng, len(rrset.V6), rrset.LimitV6) {
			buf = writeOwner(buf, owner, targets, sec)
			var rdlenOff int
			buf, rdlenOff = wire.RRHeaderFixed(buf, wire.TypeAAAA, wire.ClassIN, ttl)
			ip6 := rrset.V6[i].To16()
			buf = append(buf, ip6...)
			wire.PatchRDLength(buf, rdlenOff)
			count++
		}
	}
	return buf, count
}

// encodeNameRRs writes one RR per rotated target in rrset.Targets,
// using rrtype's fixed rdata shape (NS/PTR/CNAME: bare name; MX: 16-bit
// preference + name).
func encodeNameRRs(buf []byte, owner dname.Name, rrset *ztree.RRSet, rrtype uint16, rng *reqctx.RNG, targets *dname.Targets, sec section) ([]byte, int) {
	n := len(rrset.Targets)
	if n == 0 {
		return buf, 0
	}
	count := 0
	for _, i := range rotateIndices(rng, n, 0) {
		t := rrset.Targets[i]
		buf = writeOwner(buf, owner, targets, sec)
		var rdlenOff int
		buf, rdlenOff = wire.RRHeaderFixed(buf, rrtype, wire.ClassIN, rrset.TTL)
		if rrtype == wire.TypeMX {
			buf = wire.PutUint16(buf, t.Preference)
		}
		buf = writeName(buf, t.Name, targets, sec)
		wire.PatchRDLength(buf, rdlenOff)
		count++
	}
	return buf, count
}

// encodeSRV writes one RR per rotated target with SRV's priority/
// weight/port fixed fields ahead of the target name.
func encodeSRV(buf []byte, owner dname.Name, rrset *ztree.RRSet, rng *reqctx.RNG, targets *dname.Targets, sec section) ([]byte, int) {
	n := len(rrset.Targets)
	if n == 0 {
		return buf, 0
	}
	count := 0
	for _, i := range rotateIndices(rng, n, 0) {
		t := rrset.Targets[i]
		buf = writeOwner(buf, owner, targets, sec)
		var rdlenOff int
		buf, rdlenOff = wire.RRHeaderFixed(buf, wire.TypeSRV, wire.ClassIN, rrset.TTL)
		buf = wire.PutUint16(buf, t.Preference)
		buf = wire.PutUint16(buf, t.Weight)
		buf = wire.PutUint16(buf, t.Port)
		buf = writeName(buf, t.Name, targets, sec)
		wire.PatchRDLength(buf, rdlenOff)
		count++
	}
	return buf, count
}

// encodeTXT writes one RR whose rdata is the RR-set's sequence of
// length-prefixed character-strings (TXT, or SPF when serving a qtype
// override per spec.md §4.4.5).
func encodeTXT(buf []byte, owner dname.Name, rrset *ztree.RRSet, rrtype uint16, targets *dname.Targets, sec section) ([]byte, int) {
	if len(rrset.Text) == 0 {
		return buf, 0
	}
	buf = writeOwner(buf, owner, targets, sec)
	var rdlenOff int
	buf, rdlenOff = wire.RRHeaderFixed(buf, rrtype, wire.ClassIN, rrset.TTL)
	for _, chunk := range rrset.Text {
		buf = append(buf, byte(len(chunk)))
		buf = append(buf, chunk...)
	}
	wire.PatchRDLength(buf, rdlenOff)
	return buf, 1
}

// encodeOpaque writes an RFC3597 opaque RR whose rdata is stored
// verbatim.
func encodeOpaque(buf []byte, owner dname.Name, rrset *ztree.RRSet, targets *dname.Targets, sec section) ([]byte, int) {
	buf = writeOwner(buf, owner, targets, sec)
	var rdlenOff int
	buf, rdlenOff = wire.RRHeaderFixed(buf, uint16(rrset.OpaqueType), wire.ClassIN, rrset.TTL)
	buf = append(buf, rrset.RData...)
	wire.PatchRDLength(buf, rdlenOff)
	return buf, 1
}

// encodeSOA writes the zone's SOA RR.
func encodeSOA(buf []byte, owner dname.Name, rrset *ztree.RRSet, targets *dname.Targets, sec section) ([]byte, int) {
	s := rrset.SOA
	buf = writeOwner(buf, owner, targets, sec)
	var rdlenOff int
	buf, rdlenOff = wire.RRHeaderFixed(buf, wire.TypeSOA, wire.ClassIN, rrset.TTL)
	buf = writeName(buf, s.MName, targets, sec)
	buf = writeName(buf, s.RName, targets, sec)
	buf = wire.PutUint32(buf, s.Serial)
	buf = wire.PutUint32(buf, s.Refresh)
	buf = wire.PutUint32(buf, s.Retry)
	buf = wire.PutUint32(buf, s.Expire)
	buf = wire.PutUint32(buf, s.Minimum)
	wire.PatchRDLength(buf, rdlenOff)
	return buf, 1
}

// encodeCNAME writes a single CNAME RR (static or plugin-resolved
// target) and returns the offset within buf at which the target name
// was written.
func encodeCNAME(buf []byte, owner dname.Name, ttl uint32, target dname.Name, targets *dname.Targets) ([]byte, int) {
	buf = dname.WriteCompressed(buf, owner, targets)
	var rdlenOff int
	buf, rdlenOff = wire.RRHeaderFixed(buf, wire.TypeCNAME, wire.ClassIN, ttl)
	targetOff := len(buf)
	buf = dname.WriteCompressed(buf, target, targets)
	wire.PatchRDLength(buf, rdlenOff)
	return buf, targetOff
}
