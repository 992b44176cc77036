package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{ID: 0xBEEF, QR: true, Opcode: OpQuery, AA: true, RD: true, RCODE: RcodeNXDomain,
		QDCount: 1, ANCount: 0, NSCount: 1, ARCount: 0}
	buf := make([]byte, HeaderSize)
	PutHeader(buf, h)
	got := ParseHeader(buf)
	require.Equal(t, h, got)
}

func TestResponseHeaderFrom(t *testing.T) {
	req := Header{ID: 42, RD: true, QDCount: 1}
	resp := ResponseHeaderFrom(req)
	require.True(t, resp.QR)
	require.True(t, resp.RD)
	require.False(t, resp.AA)
	require.False(t, resp.TC)
	require.Equal(t, uint16(1), resp.QDCount)
}

func TestRDLengthPatch(t *testing.T) {
	var buf []byte
	buf, off := RRHeaderFixed(buf, TypeA, ClassIN, 300)
	buf = append(buf, []byte{192, 0, 2, 1}...)
	PatchRDLength(buf, off)
	require.Equal(t, uint16(4), Uint16(buf[off:off+2]))
}
