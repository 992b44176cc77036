package ztree

import (
	"fmt"
	"time"

	"github.com/geodnsd/geodnsd/internal/dname"
)

// Zone is one loaded authority: an origin name, its trie node (flagged
// ZROOT), and bookkeeping the reload thread and config validation use.
// Zones are immutable once built; a reload builds a new Tree of zones
// and publishes it via Manager.Swap.
type Zone struct {
	Origin     dname.Name
	DefaultTTL uint32
	Mtime      time.Time
	apex       *Node
	Subzones   []dname.Name
}

// Apex returns the zone's ZROOT-flagged origin node.
func (z *Zone) Apex() *Node { return z.apex }

// Builder constructs a Zone incrementally while loading a zone file. It
// is not safe for concurrent use; each loader goroutine owns one.
type Builder struct {
	origin     dname.Name
	defaultTTL uint32
	root       *Node // node representing the zone origin, flagged ZROOT
	subzones   []dname.Name
}

// NewBuilder starts a new zone rooted at origin.
func NewBuilder(origin dname.Name, defaultTTL uint32) *Builder {
	lower := origin.Lower()
	root := &Node{label: []byte{0}, flags: FlagZRoot, origin: lower}
	return &Builder{origin: lower, defaultTTL: defaultTTL, root: root}
}

// node returns (creating intermediate nodes as needed) the node for
// owner, which must be origin or a descendant of origin. Labels are
// walked from the outermost (closest to origin) inward, matching
// search's traversal direction.
func (b *Builder) node(owner dname.Name) (*Node, error) {
	owner = owner.Lower()
	rel, err := relativeLabels(owner, b.origin)
	if err != nil {
		return nil, err
	}
	cur := b.root
	for i := 0; i < len(rel); i++ {
		label := rel[i]
		child := cur.child(label)
		if child == nil {
			child = &Node{label: label}
			cur.addChild(child)
		}
		cur = child
	}
	return cur, nil
}

// relativeLabels returns the length-prefixed label byte slices of owner
// that lie strictly within origin, outermost first (i.e. the label
// nearest the origin is rel[0]).
func relativeLabels(owner, origin dname.Name) ([][]byte, error) {
	ownerWire := owner.Wire()
	originWire := origin.Wire()
	if len(ownerWire) < len(originWire) {
		return nil, fmt.Errorf("ztree: owner %s is not within zone %s", owner, origin)
	}
	suffixStart := len(ownerWire) - len(originWire)
	if !labelEq(ownerWire[suffixStart:], originWire) {
		return nil, fmt.Errorf("ztree: owner %s is not within zone %s", owner, origin)
	}
	offs := owner.LabelOffsets()
	var labels [][]byte
	for _, off := range offs {
		if off >= suffixStart {
			break
		}
		l := int(ownerWire[off])
		labels = append(labels, ownerWire[off:off+1+l])
	}
	// labels is left-to-right in the owner name (outermost label of the
	// full name first); reverse it so index 0 is the label nearest the
	// origin, matching the node-building walk direction.
	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
	}
	return labels, nil
}

// AddRRSet attaches rrset at owner. Duplicate-type and CNAME-exclusivity
// invariants are enforced here.
func (b *Builder) AddRRSet(owner dname.Name, rrset *RRSet) error {
	n, err := b.node(owner)
	if err != nil {
		return err
	}
	if n.RRSet(rrset.Type) != nil {
		return fmt.Errorf("ztree: duplicate RR-set type %d at %s", rrset.Type, owner)
	}
	if rrset.Type == TypeCNAME && len(n.rrsets) > 0 {
		return fmt.Errorf("ztree: CNAME must be the only RR-set at %s", owner)
	}
	if rrset.Type != TypeCNAME && n.CNAME() != nil {
		return fmt.Errorf("ztree: cannot add RR-set to CNAME-only node %s", owner)
	}
	n.rrsets = append(n.rrsets, rrset)
	if rrset.Type == TypeNS && n != b.root {
		n.flags |= FlagDeleg
		b.subzones = append(b.subzones, owner.Lower())
	}
	return nil
}

// Delegate marks owner as a delegation point (DELEG flag) for a
// subzone; the NS RR-set there is attached via AddRRSet as usual.
func (b *Builder) Delegate(owner dname.Name, sub dname.Name) error {
	n, err := b.node(owner)
	if err != nil {
		return err
	}
	n.flags |= FlagDeleg
	b.subzones = append(b.subzones, sub)
	return nil
}

// Finish validates required invariants (SOA present, NS present at
// apex) and returns the built Zone.
func (b *Builder) Finish(mtime time.Time) (*Zone, error) {
	if b.root.RRSet(TypeSOA) == nil {
		return nil, fmt.Errorf("ztree: zone %s has no SOA", b.origin)
	}
	if b.root.RRSet(TypeNS) == nil {
		return nil, fmt.Errorf("ztree: zone %s has no NS", b.origin)
	}
	return &Zone{
		Origin:     b.origin,
		DefaultTTL: b.defaultTTL,
		Mtime:      mtime,
		apex:       b.root,
		Subzones:   b.subzones,
	}, nil
}
