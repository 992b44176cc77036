// Package qdecode implements the query decoder: header validation with
// early exits, question extraction with case-folding, and OPT RR /
// EDNS Client Subnet parsing (spec.md §4.2).
package qdecode

import (
	"github.com/geodnsd/geodnsd/internal/dname"
	"github.com/geodnsd/geodnsd/internal/reqctx"
	"github.com/geodnsd/geodnsd/internal/wire"
)

// Outcome classifies how the caller must react to a decoded query.
type Outcome int

const (
	// Process means decoding succeeded; build and send a response.
	Process Outcome = iota
	// Ignore means the packet must be silently dropped (spec.md §7
	// class 1: malformed input).
	Ignore
	// NotImp means a NOTIMP response should be sent (non-QUERY opcode
	// or AXFR/IXFR qtype).
	NotImp
	// BadVers means a BADVERS response should be sent (OPT version != 0).
	BadVers
	// FormErr means a FORMERR response should be sent (OPT rdata
	// overrun or a malformed ECS option).
	FormErr
)

const (
	qtypeAXFR = 252
	qtypeIXFR = 251
	optCodeECS = 8
	optOPT    = wire.TypeOPT
)

// Decoded is the result of a successful (Process) decode.
type Decoded struct {
	Header Header
	// RawQName is the question name exactly as received on the wire
	// (case preserved), used only to echo the question section.
	RawQName dname.Name
	// QName is RawQName lower-cased, used for zone-tree search and
	// compression comparisons.
	QName dname.Name
	QType  uint16
	QClass uint16
	Chaos  bool
	EDNS   reqctx.EDNSState
	// QuestionEnd is the packet offset immediately after the qclass
	// field, i.e. where the answer section begins.
	QuestionEnd int
}

// Header is the subset of wire.Header plus opcode the decoder validates.
type Header = wire.Header

// Decode runs the query-decoder pipeline of spec.md §4.2 over packet.
// isUDP selects the UDP/TCP default max-response-size branch;
// advertisedUDPSize is this server's OPT RR receive-size advertisement
// (config, 4096-64000, default 16384); ecsEnabled gates EDNS Client
// Subnet option parsing.
func Decode(packet []byte, isUDP bool, maxResponse, advertisedUDPSize int, ecsEnabled bool) (Decoded, Outcome) {
	var d Decoded

	if len(packet) < wire.HeaderSize+5 {
		return d, Ignore
	}
	h := wire.ParseHeader(packet)
	if h.QDCount != 1 {
		return d, Ignore
	}
	if h.QR {
		return d, Ignore
	}
	if h.TC {
		return d, Ignore
	}

	raw, qname, qtype, qclass, pos, ok := parseQuestion(packet)
	if !ok {
		return d, Ignore
	}
	d.Header = h
	d.RawQName = raw
	d.QName = qname
	d.QType = qtype
	d.QClass = qclass
	d.QuestionEnd = pos
	d.Chaos = qclass == wire.ClassCH

	if h.Opcode != wire.OpQuery {
		return d, NotImp
	}
	if qtype == qtypeAXFR || qtype == qtypeIXFR {
		return d, NotImp
	}

	edns, outcome := parseOPT(packet, h, pos, isUDP, maxResponse, advertisedUDPSize, ecsEnabled)
	if outcome != Process {
		d.EDNS = edns
		return d, outcome
	}
	d.EDNS = edns
	return d, Process
}

// parseQuestion reads the question section starting at offset 12,
// canonicalizing the name (lowercasing while also preserving the raw
// on-wire bytes for echoing, per DESIGN.md's case-preservation
// resolution), then the 16-bit qtype and qclass. No compression pointer
// is permitted in a question name.
func parseQuestion(packet []byte) (raw, lower dname.Name, qtype, qclass uint16, next int, ok bool) {
	pos := wire.HeaderSize
	var rawWire []byte
	for {
		if pos >= len(packet) {
			return nil, nil, 0, 0, 0, false
		}
		l := int(packet[pos])
		if l&0xC0 != 0 {
			return nil, nil, 0, 0, 0, false
		}
		if l > dname.MaxLabelLength {
			return nil, nil, 0, 0, 0, false
		}
		if l == 0 {
			rawWire = append(rawWire, 0)
			pos++
			break
		}
		if pos+1+l > len(packet) {
			return nil, nil, 0, 0, 0, false
		}
		if len(rawWire)+1+l > dname.MaxWireLength {
			return nil, nil, 0, 0, 0, false
		}
		rawWire = append(rawWire, packet[pos:pos+1+l]...)
		pos += 1 + l
	}
	if pos+4 > len(packet) {
		return nil, nil, 0, 0, 0, false
	}
	rawName, err := dname.FromWireLabels(rawWire)
	if err != nil {
		return nil, nil, 0, 0, 0, false
	}
	qtype = wire.Uint16(packet[pos : pos+2])
	qclass = wire.Uint16(packet[pos+2 : pos+4])
	return rawName, rawName.Lower(), qtype, qclass, pos + 4, true
}

// parseOPT looks for an OPT RR immediately following the question
// (root owner, type OPT) when ARCOUNT >= 1, per spec.md §4.2.
func parseOPT(packet []byte, h Header, pos int, isUDP bool, maxResponse, advertisedUDPSize int, ecsEnabled bool) (reqctx.EDNSState, Outcome) {
	var e reqctx.EDNSState

	defaultMax := maxResponse
	if isUDP {
		defaultMax = 512
	}
	e.MaxResponse = defaultMax

	if h.ARCount < 1 {
		return e, Process
	}
	if pos >= len(packet) || packet[pos] != 0 {
		return e, Process // first additional RR isn't root-owned
	}
	rrPos := pos + 1
	if rrPos+10 > len(packet) {
		return e, Process
	}
	rrType := wire.Uint16(packet[rrPos : rrPos+2])
	if rrType != optOPT {
		return e, Process
	}
	udpSize := wire.Uint16(packet[rrPos+2 : rrPos+4])
	extRcodeVersFlags := packet[rrPos+4:rrPos+8]
	version := extRcodeVersFlags[1]
	rdlen := int(wire.Uint16(packet[rrPos+8 : rrPos+10]))
	rdStart := rrPos + 10
	if rdStart+rdlen > len(packet) {
		return e, FormErr
	}

	e.Present = true
	if version != 0 {
		e.BadVers = true
		return e, BadVers
	}

	reqMax := int(udpSize)
	if isUDP {
		if reqMax < 512 {
			reqMax = 512
		}
		if reqMax > maxResponse {
			reqMax = maxResponse
		}
		e.MaxResponse = reqMax - 11
	} else {
		e.MaxResponse = maxResponse - 11
	}

	rdata := packet[rdStart : rdStart+rdlen]
	off := 0
	for off < len(rdata) {
		if off+4 > len(rdata) {
			return e, FormErr
		}
		code := wire.Uint16(rdata[off : off+2])
		olen := int(wire.Uint16(rdata[off+2 : off+4]))
		off += 4
		if off+olen > len(rdata) {
			return e, FormErr
		}
		odata := rdata[off : off+olen]
		off += olen

		if code != optCodeECS {
			continue // unknown option: silently skipped
		}
		if !ecsEnabled {
			continue
		}
		ecs, ok := parseECS(odata)
		if !ok {
			return e, FormErr
		}
		e.ECS = ecs
		e.MaxResponse -= 8 + len(ecs.Address)
	}

	return e, Process
}

func parseECS(data []byte) (reqctx.ECSState, bool) {
	if len(data) < 4 {
		return reqctx.ECSState{}, false
	}
	family := data[0:2]
	srcMask := data[2]
	// scopeMask := data[3] // ignored in request, per spec.md §4.2
	fam := wire.Uint16(family)
	var maxMask uint8
	switch fam {
	case 1:
		maxMask = 32
	case 2:
		maxMask = 128
	default:
		return reqctx.ECSState{}, false
	}
	if srcMask > maxMask {
		return reqctx.ECSState{}, false
	}
	addrBytes := (int(srcMask) + 7) / 8
	if len(data) < 4+addrBytes {
		return reqctx.ECSState{}, false
	}
	addr := make([]byte, addrBytes)
	copy(addr, data[4:4+addrBytes])
	return reqctx.ECSState{
		Present:    true,
		Family:     uint8(fam),
		SourceMask: srcMask,
		Address:    addr,
	}, true
}
