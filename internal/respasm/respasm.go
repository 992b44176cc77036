// Package respasm implements the response assembler: TC-bit truncation
// policy, additional-section trim via unwind-record pop, OPT RR
// emission, and final header section counts (spec.md §4.5).
package respasm

import (
	"github.com/geodnsd/geodnsd/internal/qdecode"
	"github.com/geodnsd/geodnsd/internal/reqctx"
	"github.com/geodnsd/geodnsd/internal/wire"
)

const optCodeECS = 8

// Assemble finishes the packet th.AnswerBuf holds after answer.Build:
// truncates if oversize, trims additional glue via unwind, copies the
// additional side buffer in, appends an OPT RR if EDNS was in use, and
// writes the final header. It returns the complete wire-format
// response.
func Assemble(th *reqctx.Thread, dec qdecode.Decoded, rcode int, aa bool, isUDP bool) []byte {
	req := &th.Req
	maxResp := req.EDNS.MaxResponse
	if maxResp <= 0 {
		maxResp = th.Limits.MaxResponse
	}

	requiredLen := len(th.AnswerBuf) + requiredAddtlLen(th)
	truncated := false
	if requiredLen > maxResp {
		truncated = true
		th.AnswerBuf = th.AnswerBuf[:wire.HeaderSize+dec.RawQName.WireLen()+4]
		th.AddtlBuf = th.AddtlBuf[:0]
		req.ANCount = 0
		req.NSCount = 0
		req.CNAMEANCount = 0
		req.ARCount = 0
		req.Unwind = req.Unwind[:0]
		if isUDP {
			if req.EDNS.Present {
				th.Stats.IncUDPEDNSTC()
			} else {
				th.Stats.IncUDPTC()
			}
		}
	} else {
		for len(th.AddtlBuf) > maxResp-len(th.AnswerBuf) && len(req.Unwind) > 0 {
			last := req.Unwind[len(req.Unwind)-1]
			if last.Required {
				// Required (delegation) glue is never dropped to make
				// room; requiredAddtlLen already accounted for it in
				// the truncation check above, so this can only be
				// reached if that accounting under-counted.
				break
			}
			req.Unwind = req.Unwind[:len(req.Unwind)-1]
			th.AddtlBuf = th.AddtlBuf[:last.PrevAddtlOffset]
			req.ARCount = last.PrevARCount
		}
		th.AnswerBuf = append(th.AnswerBuf, th.AddtlBuf...)
	}

	if req.EDNS.Present {
		th.AnswerBuf = appendOPT(th, req, isUDP)
	}

	h := wire.Header{
		ID:      dec.Header.ID,
		QR:      true,
		RD:      dec.Header.RD,
		AA:      aa && !truncated,
		TC:      truncated,
		RCODE:   uint8(rcode & 0x0F),
		QDCount: 1,
		ANCount: req.CNAMEANCount + req.ANCount,
		NSCount: req.NSCount,
		ARCount: req.ARCount,
	}
	wire.PutHeader(th.AnswerBuf, h)
	return th.AnswerBuf
}


// requiredAddtlLen sums the additional-buffer bytes belonging to
// required (delegation) glue records, the portion of the additional
// section spec.md §4.5 says the TC decision must count even before the
// trim-via-unwind step below runs: optional glue can still be popped to
// fit, but required glue can't, so it has to be counted up front.
func requiredAddtlLen(th *reqctx.Thread) int {
	unwind := th.Req.Unwind
	total := 0
	for i, rec := range unwind {
		if !rec.Required {
			continue
		}
		end := len(th.AddtlBuf)
		if i+1 < len(unwind) {
			end = unwind[i+1].PrevAddtlOffset
		}
		total += end - rec.PrevAddtlOffset
	}
	return total
}

// appendOPT writes the EDNS0 OPT RR: root owner, advertised UDP
// payload size as class, BADVERS in the extended RCODE high byte, and
// an echoed ECS option when one was present on the request.
func appendOPT(th *reqctx.Thread, req *reqctx.Request, isUDP bool) []byte {
	buf := th.AnswerBuf
	buf = append(buf, 0)
	buf = wire.PutUint16(buf, wire.TypeOPT)
	buf = wire.PutUint16(buf, uint16(th.Limits.AdvertisedUDP))

	extRcode := byte(0)
	if req.EDNS.BadVers {
		extRcode = 1
	}
	buf = append(buf, extRcode, 0, 0, 0) // extrcode, version, flags(hi,lo)

	rdlenOff := len(buf)
	buf = wire.PutUint16(buf, 0)

	if req.EDNS.ECS.Present {
		addrBytes := req.EDNS.ECS.Address
		buf = wire.PutUint16(buf, optCodeECS)
		buf = wire.PutUint16(buf, uint16(4+len(addrBytes)))
		buf = wire.PutUint16(buf, uint16(req.EDNS.ECS.Family))
		buf = append(buf, req.EDNS.ECS.SourceMask, req.EDNS.ECS.ScopeMask)
		buf = append(buf, addrBytes...)
		req.ARCount++
	}
	wire.PatchRDLength(buf, rdlenOff)

	if isUDP && len(buf) > 512 {
		th.Stats.IncUDPEDNSBig()
	}
	req.ARCount++ // the OPT RR itself
	return buf
}
