package zoneload

import (
	"github.com/geodnsd/geodnsd/internal/dname"
	"github.com/geodnsd/geodnsd/internal/ztree"
)

// linkGlue walks a freshly built zone, stamping every Addr RR-set's
// GlueOwner and wiring an AdditionalRef from every NS/MX/PTR/SRV target
// that resolves to an Addr RR-set within the same zone. It runs once,
// after Builder.Finish, since it needs the whole tree to resolve
// targets that may be defined at any owner.
func linkGlue(zone *ztree.Zone) {
	addrByOwner := make(map[string]*ztree.RRSet)
	walk(zone.Apex(), zone.Origin.Wire(), func(owner dname.Name, n *ztree.Node) {
		if rs := n.RRSet(ztree.TypeAddr); rs != nil {
			rs.GlueOwner = owner
			addrByOwner[string(owner.Wire())] = rs
		}
	})

	walk(zone.Apex(), zone.Origin.Wire(), func(owner dname.Name, n *ztree.Node) {
		for _, rs := range n.RRSets() {
			required := rs.Type == ztree.TypeNS && n != zone.Apex()
			for i := range rs.Targets {
				addr, ok := addrByOwner[string(rs.Targets[i].Name.Wire())]
				if !ok {
					continue
				}
				rs.Targets[i].Additional = &ztree.AdditionalRef{Addr: addr, Required: required}
			}
		}
	})
}

// walk invokes fn for every node in the subtree rooted at n (n
// included), reconstructing each node's absolute owner name from the
// accumulated wire suffix as it descends.
func walk(n *ztree.Node, ownerWire []byte, fn func(owner dname.Name, n *ztree.Node)) {
	owner := make(dname.Name, 1+len(ownerWire))
	owner[0] = byte(len(ownerWire))
	copy(owner[1:], ownerWire)
	fn(owner, n)

	for _, child := range n.Children() {
		childWire := append(append([]byte{}, child.Label()...), ownerWire...)
		walk(child, childWire, fn)
	}
}
