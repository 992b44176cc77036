package answer

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/geodnsd/geodnsd/internal/dname"
	"github.com/geodnsd/geodnsd/internal/plugin"
	"github.com/geodnsd/geodnsd/internal/qdecode"
	"github.com/geodnsd/geodnsd/internal/reqctx"
	"github.com/geodnsd/geodnsd/internal/stats"
	"github.com/geodnsd/geodnsd/internal/wire"
	"github.com/geodnsd/geodnsd/internal/ztree"
)

func name(t *testing.T, labels ...string) dname.Name {
	t.Helper()
	var w []byte
	for _, l := range labels {
		w = append(w, byte(len(l)))
		w = append(w, l...)
	}
	w = append(w, 0)
	n, err := dname.FromWireLabels(w)
	require.NoError(t, err)
	return n
}

func newTestThread(t *testing.T) *reqctx.Thread {
	t.Helper()
	lim := reqctx.Limits{
		MaxResponse: 4096, MaxCNAMEDepth: 8, MaxAddtlRRSets: 8, CompTargetsMax: 32,
		AdvertisedUDP: 4096, IncludeOptionalNS: true,
	}
	return reqctx.NewThread(0, lim, plugin.Resolvers{}, &stats.Counters{}, [16]byte{1})
}

func buildZone(t *testing.T) *ztree.Zone {
	t.Helper()
	origin := name(t, "example", "com")
	b := ztree.NewBuilder(origin, 3600)

	require.NoError(t, b.AddRRSet(origin, &ztree.RRSet{Type: ztree.TypeSOA, TTL: 3600, SOA: &ztree.SOAFields{
		MName: name(t, "ns1", "example", "com"), RName: name(t, "hostmaster", "example", "com"),
		Serial: 1, Refresh: 3600, Retry: 900, Expire: 604800, Minimum: 3600,
	}}))
	require.NoError(t, b.AddRRSet(origin, &ztree.RRSet{Type: ztree.TypeNS, TTL: 3600,
		Targets: []ztree.NameTarget{{Name: name(t, "ns1", "example", "com")}}}))

	www := name(t, "www", "example", "com")
	require.NoError(t, b.AddRRSet(www, &ztree.RRSet{Type: ztree.TypeAddr, TTL: 3600,
		V4: []net.IP{net.ParseIP("192.0.2.1")}, V6: []net.IP{net.ParseIP("2001:db8::1")}}))

	alias := name(t, "alias", "example", "com")
	require.NoError(t, b.AddRRSet(alias, &ztree.RRSet{Type: ztree.TypeCNAME, TTL: 3600,
		Targets: []ztree.NameTarget{{Name: www}}}))

	empty := name(t, "empty", "example", "com")
	require.NoError(t, b.AddRRSet(empty, &ztree.RRSet{Type: ztree.TypeTXT, TTL: 3600, Text: [][]byte{[]byte("hi")}}))

	z, err := b.Finish(time.Now())
	require.NoError(t, err)
	return z
}

func decodedFor(qname dname.Name, qtype uint16, chaos bool) qdecode.Decoded {
	return qdecode.Decoded{
		RawQName: qname, QName: qname, QType: qtype, QClass: wire.ClassIN, Chaos: chaos,
	}
}

func TestBuildAAnswer(t *testing.T) {
	tree := ztree.NewTree()
	tree.AddZone(buildZone(t))
	th := newTestThread(t)

	res := Build(th, decodedFor(name(t, "www", "example", "com"), wire.TypeA, false), tree, plugin.ClientInfo{})
	require.Equal(t, wire.RcodeNoError, res.RCODE)
	require.True(t, res.AA)
	require.Equal(t, uint16(1), th.Req.ANCount)
	require.NotNil(t, th.Req.AnswerAddrRRSet)
}

func TestBuildNXDomain(t *testing.T) {
	tree := ztree.NewTree()
	tree.AddZone(buildZone(t))
	th := newTestThread(t)

	res := Build(th, decodedFor(name(t, "nope", "example", "com"), wire.TypeA, false), tree, plugin.ClientInfo{})
	require.Equal(t, wire.RcodeNXDomain, res.RCODE)
	require.Equal(t, uint16(0), th.Req.ANCount)
	require.Equal(t, uint16(1), th.Req.NSCount) // SOA in authority
}

func TestBuildRefused(t *testing.T) {
	tree := ztree.NewTree()
	tree.AddZone(buildZone(t))
	th := newTestThread(t)

	res := Build(th, decodedFor(name(t, "www", "example", "net"), wire.TypeA, false), tree, plugin.ClientInfo{})
	require.Equal(t, wire.RcodeRefused, res.RCODE)
}

func TestBuildCNAMEChase(t *testing.T) {
	tree := ztree.NewTree()
	tree.AddZone(buildZone(t))
	th := newTestThread(t)

	res := Build(th, decodedFor(name(t, "alias", "example", "com"), wire.TypeA, false), tree, plugin.ClientInfo{})
	require.Equal(t, wire.RcodeNoError, res.RCODE)
	require.Equal(t, uint16(1), th.Req.CNAMEANCount)
	require.Equal(t, uint16(1), th.Req.ANCount)
}

func TestBuildEmptyNodeEmitsSOA(t *testing.T) {
	tree := ztree.NewTree()
	tree.AddZone(buildZone(t))
	th := newTestThread(t)

	res := Build(th, decodedFor(name(t, "empty", "example", "com"), wire.TypeA, false), tree, plugin.ClientInfo{})
	require.Equal(t, wire.RcodeNoError, res.RCODE)
	require.Equal(t, uint16(0), th.Req.ANCount)
	require.Equal(t, uint16(1), th.Req.NSCount)
}

func TestBuildChaosVersion(t *testing.T) {
	tree := ztree.NewTree()
	th := newTestThread(t)

	res := Build(th, decodedFor(name(t, "version", "bind"), wire.TypeTXT, true), tree, plugin.ClientInfo{})
	require.Equal(t, wire.RcodeNoError, res.RCODE)
	require.Equal(t, uint16(1), th.Req.ANCount)
}
