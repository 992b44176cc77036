// Package wire implements the fixed-layout portions of the DNS wire
// format: the 12-byte header and the fixed fields of a resource record
// (type, class, TTL, rdlength).
package wire

import "encoding/binary"

const HeaderSize = 12

// Opcode values (RFC 1035 §4.1.1).
const (
	OpQuery = 0
)

// RCODE values the engine can produce.
const (
	RcodeNoError  = 0
	RcodeFormErr  = 1
	RcodeServFail = 2
	RcodeNXDomain = 3
	RcodeNotImp   = 4
	RcodeRefused  = 5
	// RcodeBadVers is carried in the OPT RR's extended RCODE, not the
	// header's 4-bit field; the header RCODE stays NOERROR.
	RcodeBadVers = 16
)

// Header flag bits, second 16-bit word of the DNS header.
const (
	flagQR = 1 << 15
	flagAA = 1 << 10
	flagTC = 1 << 9
	flagRD = 1 << 8
	flagRA = 1 << 7
)

// Header mirrors the 12-byte DNS message header.
type Header struct {
	ID      uint16
	QR      bool
	Opcode  uint8
	AA      bool
	TC      bool
	RD      bool
	RA      bool
	RCODE   uint8
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// ParseHeader decodes the 12-byte header at the start of packet. The
// caller must ensure len(packet) >= HeaderSize.
func ParseHeader(packet []byte) Header {
	flags := binary.BigEndian.Uint16(packet[2:4])
	return Header{
		ID:      binary.BigEndian.Uint16(packet[0:2]),
		QR:      flags&flagQR != 0,
		Opcode:  uint8(flags>>11) & 0x0F,
		AA:      flags&flagAA != 0,
		TC:      flags&flagTC != 0,
		RD:      flags&flagRD != 0,
		RA:      flags&flagRA != 0,
		RCODE:   uint8(flags & 0x0F),
		QDCount: binary.BigEndian.Uint16(packet[4:6]),
		ANCount: binary.BigEndian.Uint16(packet[6:8]),
		NSCount: binary.BigEndian.Uint16(packet[8:10]),
		ARCount: binary.BigEndian.Uint16(packet[10:12]),
	}
}

// ResponseHeaderFrom builds the response header bits from a decoded
// request header: QR=1, RD preserved, TC/AA cleared (the answer builder
// sets AA/TC explicitly later), opcode and other flags zeroed per
// spec.md §4.1.
func ResponseHeaderFrom(req Header) Header {
	return Header{
		ID:      req.ID,
		QR:      true,
		RD:      req.RD,
		QDCount: 1,
	}
}

// PutHeader writes h into buf[0:12]. The caller must ensure
// len(buf) >= HeaderSize.
func PutHeader(buf []byte, h Header) {
	var flags uint16
	if h.QR {
		flags |= flagQR
	}
	flags |= uint16(h.Opcode&0x0F) << 11
	if h.AA {
		flags |= flagAA
	}
	if h.TC {
		flags |= flagTC
	}
	if h.RD {
		flags |= flagRD
	}
	if h.RA {
		flags |= flagRA
	}
	flags |= uint16(h.RCODE & 0x0F)

	binary.BigEndian.PutUint16(buf[0:2], h.ID)
	binary.BigEndian.PutUint16(buf[2:4], flags)
	binary.BigEndian.PutUint16(buf[4:6], h.QDCount)
	binary.BigEndian.PutUint16(buf[6:8], h.ANCount)
	binary.BigEndian.PutUint16(buf[8:10], h.NSCount)
	binary.BigEndian.PutUint16(buf[10:12], h.ARCount)
}
