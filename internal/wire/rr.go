package wire

import "encoding/binary"

// Well-known RR types the engine encodes directly.
const (
	TypeA     = 1
	TypeNS    = 2
	TypeCNAME = 5
	TypeSOA   = 6
	TypePTR   = 12
	TypeMX    = 15
	TypeTXT   = 16
	TypeAAAA  = 28
	TypeSRV   = 33
	TypeNAPTR = 35
	TypeOPT   = 41
	TypeSPF   = 99
	TypeANY   = 255
)

const (
	ClassIN   = 1
	ClassCH   = 3
	ClassNONE = 254
	ClassANY  = 255
)

// PutUint16 and PutUint32 are thin wrappers kept for call-site symmetry
// with the rest of the codec; they exist so encoders never reach past
// this package into encoding/binary directly.
func PutUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func PutUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func Uint16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func Uint32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

// RRHeaderFixed writes the type, class, ttl and a placeholder rdlength
// of zero, returning the buffer and the offset of the two rdlength
// bytes so the caller can patch it in once rdata length is known.
func RRHeaderFixed(buf []byte, rrtype, class uint16, ttl uint32) (out []byte, rdlenOff int) {
	buf = PutUint16(buf, rrtype)
	buf = PutUint16(buf, class)
	buf = PutUint32(buf, ttl)
	rdlenOff = len(buf)
	buf = PutUint16(buf, 0)
	return buf, rdlenOff
}

// PatchRDLength writes the actual rdata length (len(buf)-rdlenOff-2)
// back into the placeholder written by RRHeaderFixed.
func PatchRDLength(buf []byte, rdlenOff int) {
	rdlen := len(buf) - rdlenOff - 2
	binary.BigEndian.PutUint16(buf[rdlenOff:rdlenOff+2], uint16(rdlen))
}
