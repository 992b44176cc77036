package ztree

import "github.com/geodnsd/geodnsd/internal/dname"

// Status is the outcome of a zone-tree search.
type Status int

const (
	// NoAuth means the walk never entered an authoritative (ZROOT)
	// subtree: REFUSED.
	NoAuth Status = iota
	// Auth means qname resolved (exactly, or via wildcard, or simply
	// exhausted) within an authoritative zone.
	Auth
	// Deleg means the walk stopped at a delegation point: answer with
	// the delegation's NS RR-set and glue.
	Deleg
)

// Result is the outcome of Search.
type Result struct {
	Status    Status
	Node      *Node // resolved node (nil if AUTH but no exact/wildcard match)
	Auth      *Node // the authoritative zone apex node, if Status == Auth
	Deleg     *Node // the delegation node, if Status == Deleg
	AuthDepth int   // on-wire length of qname's prefix before the zone origin
	Crossed   bool  // set when checkRoot was walked through (CNAME re-search)
}

// Search walks qname (lowercase canonical form) against t starting from
// the global root, consuming labels from the TLD side inward. When
// checkRoot is non-nil (a CNAME re-search), Crossed reports whether the
// walk passed back through that node; if the walk never reaches an
// authoritative subtree under checkRoot, the caller should treat the
// result as NoAuth regardless of what's reported here, per spec.md §4.3
// point 6.
func (t *Tree) Search(qname dname.Name, checkRoot *Node) Result {
	wire := qname.Wire()
	offs := qname.LabelOffsets()
	var stack [][]byte // label slices, left-to-right (outermost label of qname first)
	for _, off := range offs {
		l := int(wire[off])
		if l == 0 {
			break
		}
		stack = append(stack, wire[off:off+1+l])
	}

	res := Result{Status: NoAuth}
	current := t.root
	labelIdx := len(stack)

	for {
		if checkRoot != nil && current == checkRoot {
			res.Crossed = true
		}
		if current.flags&(FlagZRoot|FlagDeleg) != 0 {
			depth := 0
			for i := 0; i < labelIdx; i++ {
				depth += len(stack[i])
			}
			res.AuthDepth = depth
			if current.flags&FlagZRoot != 0 {
				res.Auth = current
				res.Node = nil
				res.Status = Auth
			} else {
				res.Deleg = current
				res.Status = Deleg
			}
		}

		if labelIdx == 0 || current.children == nil {
			if labelIdx == 0 && res.Status == Auth {
				res.Node = current
			}
			return res
		}

		labelIdx--
		childLabel := stack[labelIdx]
		child := current.child(childLabel)
		if child == nil {
			break
		}
		current = child
	}

	if res.Status == Auth {
		if w := current.wildcardChild(); w != nil {
			res.Node = w
		}
	}
	return res
}

// ChaseAuthPtr recomputes the on-wire offset of the authoritative zone's
// name within an already-written (possibly compressed) name at
// startOffset, given the AuthDepth reported by a prior Search.
func ChaseAuthPtr(packet []byte, startOffset, authDepth int) (int, error) {
	if authDepth == 0 {
		return startOffset, nil
	}
	return dname.SkipLabels(packet, startOffset, authDepth)
}
