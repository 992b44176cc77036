package dname

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustName(t *testing.T, labels ...string) Name {
	t.Helper()
	var wire []byte
	for _, l := range labels {
		wire = append(wire, byte(len(l)))
		wire = append(wire, l...)
	}
	wire = append(wire, 0)
	n, err := FromWireLabels(wire)
	require.NoError(t, err)
	return n
}

func TestFromWireLabelsRoot(t *testing.T) {
	n, err := FromWireLabels([]byte{0})
	require.NoError(t, err)
	require.True(t, n.IsRoot())
	require.Equal(t, ".", n.String())
}

func TestLowerAndEqual(t *testing.T) {
	a := mustName(t, "WWW", "Example", "COM")
	b := mustName(t, "www", "example", "com")
	require.True(t, Equal(a, b))
	require.Equal(t, "www.example.com.", a.Lower().String())
}

func TestWriteCompressedBasic(t *testing.T) {
	targets := NewTargets(64)
	var buf []byte
	buf = append(buf, make([]byte, 12)...) // fake header

	owner := mustName(t, "example", "com")
	buf = WriteCompressed(buf, owner, targets)
	firstOff := 12

	www := mustName(t, "www", "example", "com")
	beforeLen := len(buf)
	buf = WriteCompressed(buf, www, targets)

	// Expect: "www" label literal (4 bytes) + 2-byte pointer to firstOff.
	require.Equal(t, beforeLen+4+2, len(buf))
	require.Equal(t, byte(3), buf[beforeLen])
	require.Equal(t, "www", string(buf[beforeLen+1:beforeLen+4]))
	ptr := buf[len(buf)-2:]
	require.Equal(t, byte(0xC0), ptr[0]&0xC0)
	off := (int(ptr[0]&0x3F) << 8) | int(ptr[1])
	require.Equal(t, firstOff, off)
}

func TestWriteCompressedSharedSuffix(t *testing.T) {
	targets := NewTargets(64)
	var buf []byte
	buf = append(buf, make([]byte, 12)...)

	a := mustName(t, "a", "example", "com")
	buf = WriteCompressed(buf, a, targets)

	// A name sharing only "example.com" as a suffix should compress
	// against the "example.com" portion of the first write, not its
	// unmatched "a" label.
	b := mustName(t, "b", "example", "com")
	before := len(buf)
	buf = WriteCompressed(buf, b, targets)
	require.Less(t, len(buf), before+b.WireLen())
}

func TestLabelBoundarySafety(t *testing.T) {
	// "oo.com." must not compress against the "foo.com." target's
	// "oo.com" tail, since that would start mid-label.
	targets := NewTargets(64)
	var buf []byte
	buf = append(buf, make([]byte, 12)...)

	foo := mustName(t, "foo", "com")
	buf = WriteCompressed(buf, foo, targets)

	oo := mustName(t, "oo", "com")
	before := len(buf)
	buf = WriteCompressed(buf, oo, targets)
	// Should match only the "com" label, not "oo.com" mid-label.
	require.Equal(t, before+3+2, len(buf)) // "oo" label (3 bytes) + pointer
}

func TestReadNameRoundTrip(t *testing.T) {
	targets := NewTargets(64)
	var buf []byte
	buf = append(buf, make([]byte, 12)...)
	n := mustName(t, "www", "example", "com")
	buf = WriteCompressed(buf, n, targets)

	decoded, _, err := ReadName(buf, 12)
	require.NoError(t, err)
	require.True(t, Equal(decoded, n))
}

func TestSkipLabels(t *testing.T) {
	targets := NewTargets(64)
	var buf []byte
	buf = append(buf, make([]byte, 12)...)
	zone := mustName(t, "example", "com")
	buf = WriteCompressed(buf, zone, targets)

	host := mustName(t, "www", "example", "com")
	hostOff := len(buf)
	buf = WriteCompressed(buf, host, targets)

	// Skip past "www" (4 bytes) to land on "example.com." suffix.
	authOff, err := SkipLabels(buf, hostOff, 4)
	require.NoError(t, err)
	decoded, _, err := ReadName(buf, authOff)
	require.NoError(t, err)
	require.True(t, Equal(decoded, zone))
}
