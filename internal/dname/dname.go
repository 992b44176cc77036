// Package dname implements the canonical domain-name representation used
// throughout the engine: a length-prefixed byte string whose first byte is
// the total wire length of the labels-plus-root that follow.
package dname

import "errors"

const (
	// MaxWireLength is the maximum on-wire length of a domain name,
	// labels plus the terminating root octet.
	MaxWireLength = 255
	// MaxLabelLength is the maximum length of a single label.
	MaxLabelLength = 63
	// PointerRange bounds compression-pointer offsets to 14 bits.
	PointerRange = 16384
)

var (
	// ErrTooLong indicates a name exceeds MaxWireLength on the wire.
	ErrTooLong = errors.New("dname: name exceeds 255 octets")
	// ErrLabelTooLong indicates a label exceeds MaxLabelLength.
	ErrLabelTooLong = errors.New("dname: label exceeds 63 octets")
	// ErrBadPointer indicates a compression pointer was encountered
	// where none is allowed (e.g. in a question name) or pointed
	// somewhere invalid.
	ErrBadPointer = errors.New("dname: invalid compression pointer")
	ErrTruncated  = errors.New("dname: truncated name")
)

// Name is the canonical stored form: Name[0] is the wire length of
// Name[1:], and Name[1:] is the label sequence ending in the zero-length
// root label. The root name is Name{1, 0}.
type Name []byte

// Root is the canonical root domain name ".".
var Root = Name{1, 0}

// Wire returns the on-wire label sequence (without the length prefix).
func (n Name) Wire() []byte {
	if len(n) == 0 {
		return nil
	}
	return n[1:]
}

// WireLen returns the on-wire length of the name (labels plus root).
func (n Name) WireLen() int {
	if len(n) == 0 {
		return 0
	}
	return int(n[0])
}

// IsRoot reports whether n is the root name.
func (n Name) IsRoot() bool {
	return n.WireLen() == 1
}

// FromWireLabels builds a canonical Name from a raw wire-format label
// sequence (as produced by a question decode or a zone-file parser). It
// does not follow compression pointers; labels must already be
// dereferenced.
func FromWireLabels(wire []byte) (Name, error) {
	if len(wire) == 0 || len(wire) > MaxWireLength {
		return nil, ErrTooLong
	}
	i := 0
	for i < len(wire) {
		l := int(wire[i])
		if l&0xC0 != 0 {
			return nil, ErrBadPointer
		}
		if l > MaxLabelLength {
			return nil, ErrLabelTooLong
		}
		if l == 0 {
			i++
			if i != len(wire) {
				return nil, errors.New("dname: trailing bytes after root label")
			}
			out := make(Name, 1+len(wire))
			out[0] = byte(len(wire))
			copy(out[1:], wire)
			return out, nil
		}
		i += 1 + l
		if i > len(wire) {
			return nil, ErrTruncated
		}
	}
	return nil, ErrTruncated
}

// Lower returns a copy of n with ASCII A-Z folded to a-z, matching the
// canonicalization applied to query names and zone-tree keys.
func (n Name) Lower() Name {
	out := make(Name, len(n))
	copy(out, n)
	for i := 1; i < len(out); {
		l := int(out[i])
		i++
		for j := 0; j < l; j++ {
			c := out[i+j]
			if c >= 'A' && c <= 'Z' {
				out[i+j] = c + 0x20
			}
		}
		i += l
	}
	return out
}

// LabelOffsets returns the byte offset (into n.Wire()) of the start of
// each label, in wire order, including the offset of the final
// zero-length root label.
func (n Name) LabelOffsets() []int {
	wire := n.Wire()
	var offs []int
	for i := 0; i < len(wire); {
		offs = append(offs, i)
		l := int(wire[i])
		if l == 0 {
			break
		}
		i += 1 + l
	}
	return offs
}

// LabelCount returns the number of non-root labels in n.
func (n Name) LabelCount() int {
	offs := n.LabelOffsets()
	if len(offs) == 0 {
		return 0
	}
	return len(offs) - 1
}

// Suffix returns the Name formed by the labels starting at wire offset
// off (which must be a label boundary per LabelOffsets), i.e. the name
// with the leading `off` bytes of labels stripped.
func (n Name) Suffix(off int) Name {
	wire := n.Wire()
	sub := wire[off:]
	out := make(Name, 1+len(sub))
	out[0] = byte(len(sub))
	copy(out[1:], sub)
	return out
}

// Equal reports whether two names are identical after case folding.
func Equal(a, b Name) bool {
	aw, bw := a.Wire(), b.Wire()
	if len(aw) != len(bw) {
		return false
	}
	for i := range aw {
		ac, bc := aw[i], bw[i]
		if ac >= 'A' && ac <= 'Z' {
			ac += 0x20
		}
		if bc >= 'A' && bc <= 'Z' {
			bc += 0x20
		}
		if ac != bc {
			return false
		}
	}
	return true
}

// String renders n in conventional dotted-label presentation form for
// logging and test failure messages only; it is not used on the wire
// path.
func (n Name) String() string {
	wire := n.Wire()
	if len(wire) <= 1 {
		return "."
	}
	var out []byte
	for i := 0; i < len(wire); {
		l := int(wire[i])
		if l == 0 {
			break
		}
		i++
		out = append(out, wire[i:i+l]...)
		out = append(out, '.')
		i += l
	}
	return string(out)
}
