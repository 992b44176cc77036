package ztree

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/geodnsd/geodnsd/internal/dname"
)

func name(t *testing.T, labels ...string) dname.Name {
	t.Helper()
	var wire []byte
	for _, l := range labels {
		wire = append(wire, byte(len(l)))
		wire = append(wire, l...)
	}
	wire = append(wire, 0)
	n, err := dname.FromWireLabels(wire)
	require.NoError(t, err)
	return n
}

func buildExampleZone(t *testing.T) *Zone {
	t.Helper()
	origin := name(t, "example", "com")
	b := NewBuilder(origin, 3600)

	require.NoError(t, b.AddRRSet(origin, &RRSet{Type: TypeSOA, TTL: 3600, SOA: &SOAFields{
		MName: name(t, "ns1", "example", "com"), RName: name(t, "hostmaster", "example", "com"),
		Serial: 1, Refresh: 3600, Retry: 900, Expire: 604800, Minimum: 3600,
	}}))
	require.NoError(t, b.AddRRSet(origin, &RRSet{Type: TypeNS, TTL: 3600,
		Targets: []NameTarget{{Name: name(t, "ns1", "example", "com")}}}))

	www := name(t, "www", "example", "com")
	require.NoError(t, b.AddRRSet(www, &RRSet{Type: TypeAddr, TTL: 3600,
		V4: []net.IP{net.ParseIP("192.0.2.1")}, V6: []net.IP{net.ParseIP("2001:db8::1")}}))

	wild := name(t, "*", "wild", "example", "com")
	require.NoError(t, b.AddRRSet(wild, &RRSet{Type: TypeAddr, TTL: 3600,
		V4: []net.IP{net.ParseIP("192.0.2.9")}}))

	z, err := b.Finish(time.Now())
	require.NoError(t, err)
	return z
}

func TestSearchExactMatch(t *testing.T) {
	tree := NewTree()
	z := buildExampleZone(t)
	tree.AddZone(z)

	res := tree.Search(name(t, "www", "example", "com"), nil)
	require.Equal(t, Auth, res.Status)
	require.NotNil(t, res.Node)
	require.NotNil(t, res.Node.RRSet(TypeAddr))
}

func TestSearchNoAuth(t *testing.T) {
	tree := NewTree()
	tree.AddZone(buildExampleZone(t))

	res := tree.Search(name(t, "www", "example", "net"), nil)
	require.Equal(t, NoAuth, res.Status)
}

func TestSearchWildcard(t *testing.T) {
	tree := NewTree()
	tree.AddZone(buildExampleZone(t))

	res := tree.Search(name(t, "foo", "wild", "example", "com"), nil)
	require.Equal(t, Auth, res.Status)
	require.NotNil(t, res.Node)
	rs := res.Node.RRSet(TypeAddr)
	require.NotNil(t, rs)
	require.Equal(t, "192.0.2.9", rs.V4[0].String())
}

func TestSearchApexExhausted(t *testing.T) {
	tree := NewTree()
	tree.AddZone(buildExampleZone(t))

	res := tree.Search(name(t, "example", "com"), nil)
	require.Equal(t, Auth, res.Status)
	require.NotNil(t, res.Node)
	require.NotNil(t, res.Node.RRSet(TypeSOA))
}

func TestAuthDepth(t *testing.T) {
	tree := NewTree()
	tree.AddZone(buildExampleZone(t))

	res := tree.Search(name(t, "www", "example", "com"), nil)
	require.Equal(t, Auth, res.Status)
	// "www" label is 4 wire bytes (1 length + 3 content); auth_depth is
	// the remaining prefix length when the zone origin node is entered.
	require.Equal(t, 4, res.AuthDepth)
}

func TestDelegation(t *testing.T) {
	tree := NewTree()
	origin := name(t, "example", "com")
	b := NewBuilder(origin, 3600)
	require.NoError(t, b.AddRRSet(origin, &RRSet{Type: TypeSOA, TTL: 3600, SOA: &SOAFields{}}))
	require.NoError(t, b.AddRRSet(origin, &RRSet{Type: TypeNS, TTL: 3600}))

	sub := name(t, "deleg", "example", "com")
	// AddRRSet itself marks a non-apex NS RR-set as a delegation point;
	// no separate Delegate call is needed for the common zone-loading
	// path (Delegate remains available for callers that build a node's
	// flags before its NS RR-set exists).
	require.NoError(t, b.AddRRSet(sub, &RRSet{Type: TypeNS, TTL: 3600,
		Targets: []NameTarget{{Name: name(t, "ns1", "deleg", "example", "com")}}}))

	z, err := b.Finish(time.Now())
	require.NoError(t, err)
	tree.AddZone(z)

	res := tree.Search(name(t, "host", "deleg", "example", "com"), nil)
	require.Equal(t, Deleg, res.Status)
	require.NotNil(t, res.Deleg)
}
