package qdecode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/geodnsd/geodnsd/internal/wire"
)

func buildQuery(t *testing.T, name string, qtype, qclass uint16, opts ...func([]byte) []byte) []byte {
	t.Helper()
	buf := make([]byte, wire.HeaderSize)
	h := wire.Header{ID: 1, RD: true, QDCount: 1}
	wire.PutHeader(buf, h)
	for _, label := range splitLabels(name) {
		buf = append(buf, byte(len(label)))
		buf = append(buf, label...)
	}
	buf = append(buf, 0)
	buf = wire.PutUint16(buf, qtype)
	buf = wire.PutUint16(buf, qclass)
	for _, o := range opts {
		buf = o(buf)
	}
	return buf
}

func splitLabels(name string) []string {
	var labels []string
	start := 0
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			if i > start {
				labels = append(labels, name[start:i])
			}
			start = i + 1
		}
	}
	if start < len(name) {
		labels = append(labels, name[start:])
	}
	return labels
}

func withARCount(n uint16) func([]byte) []byte {
	return func(buf []byte) []byte {
		h := wire.ParseHeader(buf)
		h.ARCount = n
		wire.PutHeader(buf, h)
		return buf
	}
}

func withOPT(udpSize uint16, version uint8, ecs []byte) func([]byte) []byte {
	return func(buf []byte) []byte {
		buf = append(buf, 0) // root owner
		buf = wire.PutUint16(buf, wire.TypeOPT)
		buf = wire.PutUint16(buf, udpSize)
		buf = append(buf, 0, version, 0, 0) // extrcode, version, flags
		if ecs == nil {
			buf = wire.PutUint16(buf, 0)
			return buf
		}
		buf = wire.PutUint16(buf, uint16(4+len(ecs)))
		buf = wire.PutUint16(buf, 8) // ECS option code
		buf = wire.PutUint16(buf, uint16(len(ecs)))
		buf = append(buf, ecs...)
		return buf
	}
}

func TestDecodeBasicQuery(t *testing.T) {
	pkt := buildQuery(t, "www.example.com.", wire.TypeA, wire.ClassIN)
	d, outcome := Decode(pkt, true, 4096, 1232, true)
	require.Equal(t, Process, outcome)
	require.Equal(t, "www.example.com.", d.QName.String())
	require.Equal(t, uint16(wire.TypeA), d.QType)
}

func TestDecodeIgnoresResponses(t *testing.T) {
	pkt := buildQuery(t, "www.example.com.", wire.TypeA, wire.ClassIN)
	h := wire.ParseHeader(pkt)
	h.QR = true
	wire.PutHeader(pkt, h)
	_, outcome := Decode(pkt, true, 4096, 1232, true)
	require.Equal(t, Ignore, outcome)
}

func TestDecodeNotImpOnAXFR(t *testing.T) {
	pkt := buildQuery(t, "example.com.", qtypeAXFR, wire.ClassIN)
	_, outcome := Decode(pkt, true, 4096, 1232, true)
	require.Equal(t, NotImp, outcome)
}

func TestDecodeOPTAndECS(t *testing.T) {
	pkt := buildQuery(t, "example.com.", wire.TypeA, wire.ClassIN, withARCount(1),
		withOPT(4096, 0, []byte{0, 1, 24, 0, 192, 0, 2}))
	d, outcome := Decode(pkt, true, 4096, 1232, true)
	require.Equal(t, Process, outcome)
	require.True(t, d.EDNS.Present)
	require.True(t, d.EDNS.ECS.Present)
	require.Equal(t, uint8(24), d.EDNS.ECS.SourceMask)
}

func TestDecodeBadVers(t *testing.T) {
	pkt := buildQuery(t, "example.com.", wire.TypeA, wire.ClassIN, withARCount(1),
		withOPT(4096, 1, nil))
	_, outcome := Decode(pkt, true, 4096, 1232, true)
	require.Equal(t, BadVers, outcome)
}

func TestDecodeChaos(t *testing.T) {
	pkt := buildQuery(t, "version.bind.", wire.TypeTXT, wire.ClassCH)
	d, outcome := Decode(pkt, true, 4096, 1232, true)
	require.Equal(t, Process, outcome)
	require.True(t, d.Chaos)
}
