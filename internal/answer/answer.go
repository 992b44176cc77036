// Package answer implements the answer builder: the CHAOS
// short-circuit, zone-tree search, CNAME chase, type-directed RR
// encoding, authority-section attachment and additional-section glue
// tracking of spec.md §4.4.
package answer

import (
	"github.com/geodnsd/geodnsd/internal/dname"
	"github.com/geodnsd/geodnsd/internal/plugin"
	"github.com/geodnsd/geodnsd/internal/qdecode"
	"github.com/geodnsd/geodnsd/internal/reqctx"
	"github.com/geodnsd/geodnsd/internal/wire"
	"github.com/geodnsd/geodnsd/internal/ztree"
)

var versionBindName = mustName([]byte{7, 'v', 'e', 'r', 's', 'i', 'o', 'n', 4, 'b', 'i', 'n', 'd', 0})

var chaosVersionText = []byte("geodnsd")

func mustName(w []byte) dname.Name {
	n, err := dname.FromWireLabels(w)
	if err != nil {
		panic(err)
	}
	return n
}

// Result reports the outcome of Build to the caller (the response
// assembler), which uses it to finish the header's RCODE/AA bit. The
// section counts themselves are read directly off th.Req.
type Result struct {
	RCODE int
	AA    bool
}

// Build runs the answer-builder algorithm against th's reused buffers.
// tree is the zone-tree snapshot to search; client carries the
// addressing context a dynamic (GeoIP) resolver needs.
func Build(th *reqctx.Thread, dec qdecode.Decoded, tree *ztree.Tree, client plugin.ClientInfo) Result {
	th.Reset()
	req := &th.Req
	req.QType = dec.QType
	req.Chaos = dec.Chaos
	req.EDNS = dec.EDNS

	th.AnswerBuf = append(th.AnswerBuf, make([]byte, wire.HeaderSize)...)
	if dec.RawQName.IsRoot() {
		th.AnswerBuf = dname.WriteUncompressed(th.AnswerBuf, dec.RawQName)
	} else {
		th.AnswerBuf = dname.WriteCompressed(th.AnswerBuf, dec.RawQName, th.Targets)
	}
	th.AnswerBuf = wire.PutUint16(th.AnswerBuf, dec.QType)
	th.AnswerBuf = wire.PutUint16(th.AnswerBuf, dec.QClass)

	if dec.Chaos && (dec.QType == wire.TypeTXT || dec.QType == wire.TypeANY) && dname.Equal(dec.QName, versionBindName) {
		th.AnswerBuf = dname.WritePointer(th.AnswerBuf, wire.HeaderSize)
		var rdlenOff int
		th.AnswerBuf, rdlenOff = wire.RRHeaderFixed(th.AnswerBuf, wire.TypeTXT, wire.ClassCH, 0)
		th.AnswerBuf = append(th.AnswerBuf, byte(len(chaosVersionText)))
		th.AnswerBuf = append(th.AnswerBuf, chaosVersionText...)
		wire.PatchRDLength(th.AnswerBuf, rdlenOff)
		req.ANCount = 1
		return Result{RCODE: wire.RcodeNoError}
	}

	res := tree.Search(dec.QName, nil)
	if res.Status == ztree.NoAuth {
		return Result{RCODE: wire.RcodeRefused}
	}
	if res.Status == ztree.Deleg {
		emitDelegation(th, dec, res, client)
		return Result{RCODE: wire.RcodeNoError}
	}

	authNode := res.Auth
	node := res.Node
	owner := dec.QName

	if node == nil {
		emitSOA(th, authNode)
		return Result{RCODE: wire.RcodeNXDomain, AA: true}
	}

	var pendingRefs []*ztree.AdditionalRef
	preChaseOffset := len(th.AnswerBuf)
	crossedOut := false

	for node.CNAME() != nil && dec.QType != wire.TypeCNAME {
		cname := node.CNAME()
		targetName, ttl, scopeMask, ok := resolveCNAMETarget(th, cname, authNode.Origin(), client)
		if !ok {
			break
		}
		if scopeMask > th.Req.EDNS.ECS.ScopeMask {
			th.Req.EDNS.ECS.ScopeMask = scopeMask
		}
		th.AnswerBuf, _ = encodeCNAME(th.AnswerBuf, owner, ttl, targetName, th.Targets)
		req.CNAMEANCount++

		if int(req.CNAMEANCount) > th.Limits.MaxCNAMEDepth {
			req.ANCount = 0
			req.CNAMEANCount = 0
			th.AnswerBuf = th.AnswerBuf[:preChaseOffset]
			return Result{RCODE: wire.RcodeNXDomain, AA: true}
		}

		res2 := tree.Search(targetName, authNode)
		if !res2.Crossed {
			node = nil
			crossedOut = true
			break
		}
		node = res2.Node
		authNode = res2.Auth
		owner = targetName
	}

	if node == nil {
		if crossedOut {
			// The chase target lies outside this zone: the chase stops,
			// AA stays set and no further records are added.
			return Result{RCODE: wire.RcodeNoError, AA: true}
		}
		emitSOA(th, authNode)
		return Result{RCODE: wire.RcodeNXDomain, AA: true}
	}

	// Step 5: type-directed encoding.
	switch dec.QType {
	case wire.TypeANY:
		for _, rs := range node.RRSets() {
			n, refs := encodeTypedRRSet(th, owner, rs, 0, client)
			req.ANCount += uint16(n)
			pendingRefs = append(pendingRefs, refs...)
		}
	case wire.TypeA, wire.TypeAAAA:
		if addr := node.RRSet(ztree.TypeAddr); addr != nil {
			resolved, ttl := resolveAddr(th, addr, client)
			wantV4 := dec.QType == wire.TypeA
			wantV6 := dec.QType == wire.TypeAAAA
			var n int
			th.AnswerBuf, n = encodeAddr(th.AnswerBuf, owner, resolved, ttl, th.RNG, th.Targets, sectionMain, wantV4, wantV6)
			req.ANCount += uint16(n)
			req.AnswerAddrRRSet = addr
			haveOther := (wantV6 && len(resolved.V4) > 0) || (wantV4 && len(resolved.V6) > 0)
			if haveOther {
				pushUnwind(th, false)
				var m int
				th.AddtlBuf, m = encodeAddr(th.AddtlBuf, owner, resolved, ttl, th.RNG, th.Targets, sectionAddtl, !wantV4, !wantV6)
				req.ARCount += uint16(m)
			}
		}
	default:
		rt, known := wireTypeToRRType(dec.QType)
		if known {
			if rs := node.RRSet(rt); rs != nil {
				var override uint16
				if dec.QType == wire.TypeSPF {
					override = wire.TypeSPF
				}
				n, refs := encodeTypedRRSet(th, owner, rs, override, client)
				req.ANCount += uint16(n)
				pendingRefs = append(pendingRefs, refs...)
			}
		} else {
			for _, rs := range node.RRSets() {
				if rs.Type == ztree.TypeOpaque && uint16(rs.OpaqueType) == dec.QType {
					var n int
					th.AnswerBuf, n = encodeOpaque(th.AnswerBuf, owner, rs, th.Targets, sectionMain)
					req.ANCount += uint16(n)
					break
				}
			}
		}
	}

	// Step 6: authority-section attachment.
	if req.ANCount == 0 {
		emitSOA(th, authNode)
	} else if th.Limits.IncludeOptionalNS && dec.QType != wire.TypeNS && (dec.QType != wire.TypeANY || node != authNode) {
		if nsRS := authNode.RRSet(ztree.TypeNS); nsRS != nil {
			var n int
			th.AnswerBuf, n = encodeNameRRs(th.AnswerBuf, authNode.Origin(), nsRS, wire.TypeNS, th.RNG, th.Targets, sectionMain)
			req.NSCount += uint16(n)
			pendingRefs = append(pendingRefs, refsFromTargets(nsRS.Targets)...)
		}
	}

	// Step 7: additional-section RR encoding (glue for MX/NS/PTR/SRV/NAPTR).
	enqueueGlue(th, pendingRefs, client, false)

	return Result{RCODE: wire.RcodeNoError, AA: true}
}

// emitSOA writes the zone's SOA into the authority section (NOERROR/
// empty or NXDOMAIN responses both reach here).
func emitSOA(th *reqctx.Thread, authNode *ztree.Node) {
	if authNode == nil {
		return
	}
	soa := authNode.RRSet(ztree.TypeSOA)
	if soa == nil {
		return
	}
	var n int
	th.AnswerBuf, n = encodeSOA(th.AnswerBuf, authNode.Origin(), soa, th.Targets, sectionMain)
	th.Req.NSCount += uint16(n)
}

// emitDelegation writes the delegation node's NS RR-set into the
// authority section (owner name is the zone-cut suffix of qname, not
// the full qname) and enqueues its glue as required additional data.
func emitDelegation(th *reqctx.Thread, dec qdecode.Decoded, res ztree.Result, client plugin.ClientInfo) {
	owner := dec.QName.Suffix(res.AuthDepth)
	nsRS := res.Deleg.RRSet(ztree.TypeNS)
	if nsRS == nil {
		return
	}
	var n int
	th.AnswerBuf, n = encodeNameRRs(th.AnswerBuf, owner, nsRS, wire.TypeNS, th.RNG, th.Targets, sectionMain)
	th.Req.NSCount += uint16(n)
	enqueueGlue(th, refsFromTargets(nsRS.Targets), client, true)
}

// refsFromTargets collects the additional-data pointers carried by a
// name-valued RR-set's rdata entries (NS/MX/SRV/NAPTR/PTR).
func refsFromTargets(targets []ztree.NameTarget) []*ztree.AdditionalRef {
	var refs []*ztree.AdditionalRef
	for _, t := range targets {
		if t.Additional != nil {
			refs = append(refs, t.Additional)
		}
	}
	return refs
}

// encodeTypedRRSet dispatches rs to its per-type encoder and, for
// name-valued types, returns any additional-data glue references
// carried by its rdata. overrideWireType, when non-zero, forces a TXT
// RR-set to be emitted under a different on-wire type (SPF-as-TXT).
func encodeTypedRRSet(th *reqctx.Thread, owner dname.Name, rs *ztree.RRSet, overrideWireType uint16, client plugin.ClientInfo) (int, []*ztree.AdditionalRef) {
	switch rs.Type {
	case ztree.TypeAddr:
		resolved, ttl := resolveAddr(th, rs, client)
		var n int
		th.AnswerBuf, n = encodeAddr(th.AnswerBuf, owner, resolved, ttl, th.RNG, th.Targets, sectionMain, true, true)
		th.Req.AnswerAddrRRSet = rs
		return n, nil
	case ztree.TypeNS:
		var n int
		th.AnswerBuf, n = encodeNameRRs(th.AnswerBuf, owner, rs, wire.TypeNS, th.RNG, th.Targets, sectionMain)
		return n, refsFromTargets(rs.Targets)
	case ztree.TypePTR:
		var n int
		th.AnswerBuf, n = encodeNameRRs(th.AnswerBuf, owner, rs, wire.TypePTR, th.RNG, th.Targets, sectionMain)
		return n, refsFromTargets(rs.Targets)
	case ztree.TypeCNAME:
		var n int
		th.AnswerBuf, n = encodeNameRRs(th.AnswerBuf, owner, rs, wire.TypeCNAME, th.RNG, th.Targets, sectionMain)
		return n, nil
	case ztree.TypeMX:
		var n int
		th.AnswerBuf, n = encodeNameRRs(th.AnswerBuf, owner, rs, wire.TypeMX, th.RNG, th.Targets, sectionMain)
		return n, refsFromTargets(rs.Targets)
	case ztree.TypeSRV:
		var n int
		th.AnswerBuf, n = encodeSRV(th.AnswerBuf, owner, rs, th.RNG, th.Targets, sectionMain)
		return n, refsFromTargets(rs.Targets)
	case ztree.TypeNAPTR:
		var n int
		th.AnswerBuf, n = encodeNameRRs(th.AnswerBuf, owner, rs, wire.TypeNAPTR, th.RNG, th.Targets, sectionMain)
		return n, refsFromTargets(rs.Targets)
	case ztree.TypeSOA:
		var n int
		th.AnswerBuf, n = encodeSOA(th.AnswerBuf, owner, rs, th.Targets, sectionMain)
		return n, nil
	case ztree.TypeTXT:
		wt := uint16(wire.TypeTXT)
		if overrideWireType != 0 {
			wt = overrideWireType
		}
		var n int
		th.AnswerBuf, n = encodeTXT(th.AnswerBuf, owner, rs, wt, th.Targets, sectionMain)
		return n, nil
	case ztree.TypeSPF:
		var n int
		th.AnswerBuf, n = encodeTXT(th.AnswerBuf, owner, rs, wire.TypeSPF, th.Targets, sectionMain)
		return n, nil
	case ztree.TypeOpaque:
		var n int
		th.AnswerBuf, n = encodeOpaque(th.AnswerBuf, owner, rs, th.Targets, sectionMain)
		return n, nil
	}
	return 0, nil
}

// wireTypeToRRType maps a wire qtype to the zone-tree RR-set type that
// answers it, for the single-type ("other qtypes") branch of step 5.
func wireTypeToRRType(qtype uint16) (ztree.RRType, bool) {
	switch qtype {
	case wire.TypeNS:
		return ztree.TypeNS, true
	case wire.TypeCNAME:
		return ztree.TypeCNAME, true
	case wire.TypeSOA:
		return ztree.TypeSOA, true
	case wire.TypePTR:
		return ztree.TypePTR, true
	case wire.TypeMX:
		return ztree.TypeMX, true
	case wire.TypeTXT:
		return ztree.TypeTXT, true
	case wire.TypeSRV:
		return ztree.TypeSRV, true
	case wire.TypeNAPTR:
		return ztree.TypeNAPTR, true
	case wire.TypeSPF:
		return ztree.TypeTXT, true
	}
	return ztree.TypeOpaque, false
}

// resolveAddr returns the RR-set to encode for an Addr RR-set:
// unchanged for a static one, or materialized via the plugin callback
// for a dynamic one (tracking the returned EDNS scope mask).
func resolveAddr(th *reqctx.Thread, rrset *ztree.RRSet, client plugin.ClientInfo) (*ztree.RRSet, uint32) {
	if rrset.DynAddrID == "" || th.Resolvers.Addr == nil {
		return rrset, rrset.TTL
	}
	result, err := th.Resolvers.Addr.ResolveAddr(th.ID, rrset.DynAddrID, client)
	if err != nil {
		return rrset, rrset.TTL
	}
	if result.ScopeMask > th.Req.EDNS.ECS.ScopeMask {
		th.Req.EDNS.ECS.ScopeMask = result.ScopeMask
	}
	return &ztree.RRSet{
		Type: ztree.TypeAddr, TTL: result.TTL,
		V4: result.V4, V6: result.V6,
		LimitV4: rrset.LimitV4, LimitV6: rrset.LimitV6,
	}, result.TTL
}

// resolveCNAMETarget returns the next CNAME hop's target name, TTL and
// EDNS scope mask: the stored static target, or a plugin-resolved one
// copied into the thread's dync arena.
func resolveCNAMETarget(th *reqctx.Thread, cname *ztree.RRSet, origin dname.Name, client plugin.ClientInfo) (dname.Name, uint32, uint8, bool) {
	if cname.DynCNAME != "" {
		if th.Resolvers.CNAME == nil {
			return nil, 0, 0, false
		}
		result, err := th.Resolvers.CNAME.ResolveCNAME(th.ID, cname.DynCNAME, origin, client)
		if err != nil {
			return nil, 0, 0, false
		}
		return storeDync(th, result.Target), result.TTL, result.ScopeMask, true
	}
	if len(cname.Targets) == 0 {
		return nil, 0, 0, false
	}
	return cname.Targets[0].Name, cname.TTL, 0, true
}

// storeDync copies name into the thread's reusable dync arena so it
// outlives the plugin call that produced it, for the lifetime of this
// request (spec.md §3 "dync arena sized max_cname_depth x 256").
func storeDync(th *reqctx.Thread, name dname.Name) dname.Name {
	n := len(name)
	if th.Req.DyncUsed+n > len(th.DyncArena) {
		return name
	}
	dst := th.DyncArena[th.Req.DyncUsed : th.Req.DyncUsed+n]
	copy(dst, name)
	th.Req.DyncUsed += n
	return dname.Name(dst)
}

// pushUnwind records the additional side buffer's current length and
// arcount before an encoder appends to it, so an over-size response
// can later roll back whole RR-sets (spec.md §4.4.7). required marks
// the record as delegation glue, which the response assembler must
// never pop.
func pushUnwind(th *reqctx.Thread, required bool) {
	th.Req.Unwind = append(th.Req.Unwind, reqctx.UnwindRecord{
		PrevAddtlOffset: len(th.AddtlBuf),
		PrevARCount:     th.Req.ARCount,
		Required:        required,
	})
}

// enqueueGlue writes the Addr RR-set behind each ref into the
// additional-section side buffer, deduplicating against the RR-set
// already written to the answer section and against refs already
// enqueued this response, and capping at MaxAddtlRRSets. required
// marks delegation glue, which the response assembler's truncation
// policy treats as non-droppable.
func enqueueGlue(th *reqctx.Thread, refs []*ztree.AdditionalRef, client plugin.ClientInfo, required bool) {
	seen := make(map[*ztree.RRSet]bool)
	count := 0
	for _, ref := range refs {
		if ref == nil || ref.Addr == nil {
			continue
		}
		if ref.Addr == th.Req.AnswerAddrRRSet || seen[ref.Addr] {
			continue
		}
		if count >= th.Limits.MaxAddtlRRSets {
			break
		}
		seen[ref.Addr] = true
		count++

		resolved, ttl := resolveAddr(th, ref.Addr, client)
		pushUnwind(th, required)
		var n int
		th.AddtlBuf, n = encodeAddr(th.AddtlBuf, ref.Addr.GlueOwner, resolved, ttl, th.RNG, th.Targets, sectionAddtl, true, true)
		th.Req.ARCount += uint16(n)
	}
}
