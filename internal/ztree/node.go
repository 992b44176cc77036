package ztree

import "github.com/geodnsd/geodnsd/internal/dname"

// NodeFlags marks special trie nodes.
type NodeFlags uint8

const (
	// FlagZRoot marks a zone's origin node: the apex at which this
	// zone is authoritative.
	FlagZRoot NodeFlags = 1 << iota
	// FlagDeleg marks a delegation point: an NS RR-set here hands
	// authority to another (subzone) server.
	FlagDeleg
)

// Node is one label in the trie. label is the full length-prefixed wire
// form of this node's own label (e.g. "\x03www"), used for hash-table
// comparison; next chains nodes within the same child-table bucket.
type Node struct {
	label    []byte
	flags    NodeFlags
	origin   dname.Name // set only on a ZROOT node: the zone's full origin name
	rrsets   []*RRSet
	children *childTable
	next     *Node
}

// Origin returns the zone's origin name; only meaningful on a node
// flagged ZROOT.
func (n *Node) Origin() dname.Name { return n.origin }

// RRSets returns every RR-set owned by this node, in insertion order.
func (n *Node) RRSets() []*RRSet { return n.rrsets }

// IsZoneRoot reports whether n is a zone's origin node.
func (n *Node) IsZoneRoot() bool { return n.flags&FlagZRoot != 0 }

// IsDelegation reports whether n is a delegation point: the NS RR-set
// here hands authority to a subzone rather than being ordinary zone
// data (spec.md §3's DELEG flag).
func (n *Node) IsDelegation() bool { return n.flags&FlagDeleg != 0 }

// Label returns n's own length-prefixed label bytes.
func (n *Node) Label() []byte { return n.label }

// RRSet returns the RR-set of the given type at this node, or nil.
func (n *Node) RRSet(t RRType) *RRSet {
	for _, rs := range n.rrsets {
		if rs.Type == t {
			return rs
		}
	}
	return nil
}

// CNAME returns the node's CNAME RR-set if present. Per the
// CNAME-exclusivity invariant, a node with a CNAME RR-set has no other
// RR-sets, so checking the first entry suffices since Builder.AddRRSet
// enforces it.
func (n *Node) CNAME() *RRSet {
	if len(n.rrsets) == 1 && n.rrsets[0].Type == TypeCNAME {
		return n.rrsets[0]
	}
	return nil
}

// Empty reports whether the node carries no RR-sets (a NOERROR/empty
// answer).
func (n *Node) Empty() bool { return len(n.rrsets) == 0 }

// addChild inserts child into n's child table, growing the table first
// if it doesn't exist yet. Used only at zone-build time.
func (n *Node) addChild(child *Node) {
	if n.children == nil {
		n.children = newChildTable(4)
	}
	n.children.insert(child)
}

// child looks up an existing child by its length-prefixed label bytes,
// or returns nil.
func (n *Node) child(label []byte) *Node {
	return n.children.lookup(label)
}

// Children returns every direct child node, in no particular order.
// Used by the zone loader's post-build glue-linking pass, not on the
// request hot path.
func (n *Node) Children() []*Node {
	if n.children == nil {
		return nil
	}
	var out []*Node
	for _, head := range n.children.buckets {
		for c := head; c != nil; c = c.next {
			out = append(out, c)
		}
	}
	return out
}

func (n *Node) wildcardChild() *Node {
	return n.children.lookup(wildcardLabel)
}
