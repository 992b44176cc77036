package dname

// Target is a previously written name available for pointer-based reuse
// when compressing a later name. Name is the full canonical expansion of
// what was written; StoredAt is the packet offset where its first label
// begins; MatchLimit bounds how far into Name's wire bytes a match may
// start — bytes at or after MatchLimit were not written literally (the
// target itself ended in a compression pointer there), so they cannot
// serve as the target of a new pointer.
type Target struct {
	Name       Name
	StoredAt   int
	MatchLimit int
}

// Targets is the per-request list of recorded compression targets,
// scanned most-recently-added first.
type Targets struct {
	list []Target
	max  int
}

// NewTargets returns an empty target list capped at max entries
// (COMPTARGETS_MAX in the source terminology).
func NewTargets(max int) *Targets {
	return &Targets{max: max}
}

// Reset clears the list for reuse on the next request, without
// reallocating the backing array.
func (t *Targets) Reset() {
	t.list = t.list[:0]
}

// Len reports how many targets are currently recorded.
func (t *Targets) Len() int { return len(t.list) }

// Add registers a new compression target if there is room and its
// offset is within the 14-bit pointer range. Offsets >= PointerRange are
// silently not registered: they can never be pointed to.
func (t *Targets) Add(name Name, storedAt, matchLimit int) {
	if len(t.list) >= t.max || storedAt >= PointerRange {
		return
	}
	t.list = append(t.list, Target{Name: name, StoredAt: storedAt, MatchLimit: matchLimit})
}

// bestMatch finds the longest label-boundary-aligned suffix match of
// name against the recorded targets, scanning most-recently-added
// first. It returns the absolute buffer offset to point to and the
// number of wire bytes of name that remain unmatched (to be written
// literally before the pointer), or ok=false if no target shares more
// than the trivial root suffix with name.
func (t *Targets) bestMatch(name Name) (offset int, unmatchedLen int, ok bool) {
	nwire := name.Wire()
	noffs := name.LabelOffsets()
	bestNameOffset := -1
	bestAbs := -1
	for i := len(t.list) - 1; i >= 0; i-- {
		cand := t.list[i]
		cwire := cand.Name.Wire()
		coffs := cand.Name.LabelOffsets()
		ni, ci := len(noffs)-1, len(coffs)-1
		deepestName, deepestCand := -1, -1
		for ni >= 0 && ci >= 0 {
			no, co := noffs[ni], coffs[ci]
			nl := labelLen(nwire, no)
			cl := labelLen(cwire, co)
			if nl != cl || !labelEqual(nwire, no, cwire, co, nl) {
				break
			}
			deepestName, deepestCand = no, co
			if nl == 0 {
				break // matched the root label; cannot extend further
			}
			ni--
			ci--
		}
		if deepestName < 0 {
			continue
		}
		if deepestName == len(nwire)-1 {
			continue // only the root label matched
		}
		if deepestCand >= cand.MatchLimit {
			continue
		}
		if bestNameOffset == -1 || deepestName < bestNameOffset {
			bestNameOffset = deepestName
			bestAbs = cand.StoredAt + deepestCand
		}
	}
	if bestNameOffset < 0 {
		return 0, 0, false
	}
	return bestAbs, bestNameOffset, true
}

func labelLen(wire []byte, off int) int {
	return int(wire[off])
}

func labelEqual(a []byte, aOff int, b []byte, bOff int, l int) bool {
	for i := 1; i <= l; i++ {
		ac, bc := a[aOff+i], b[bOff+i]
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

// WriteCompressed appends name to buf at its current length, compressing
// against targets where possible, and registers a new target for the
// just-written name if its start offset is within the pointer range and
// the target list has room. It returns the updated buffer.
func WriteCompressed(buf []byte, name Name, targets *Targets) []byte {
	storedAt := len(buf)
	if name.IsRoot() {
		buf = append(buf, 0)
		targets.Add(name, storedAt, 1)
		return buf
	}
	unmatchedLen := name.WireLen()
	pointerTo := -1
	if off, ulen, ok := targets.bestMatch(name); ok {
		pointerTo = off
		unmatchedLen = ulen
	}
	wire := name.Wire()
	buf = append(buf, wire[:unmatchedLen]...)
	if pointerTo >= 0 {
		buf = append(buf, byte(0xC0|(pointerTo>>8)), byte(pointerTo))
	}
	targets.Add(name, storedAt, unmatchedLen)
	return buf
}

// WriteCompressedSideBuffer is WriteCompressed for names written into
// the additional-section side buffer: it searches existing targets
// (whose offsets are already fixed, absolute positions in the main
// answer section) for a match, but never registers the written name as
// a new target itself, since the side buffer's final absolute offset
// isn't known until response assembly (spec.md §4.1 point 5).
func WriteCompressedSideBuffer(buf []byte, name Name, targets *Targets) []byte {
	if name.IsRoot() {
		return append(buf, 0)
	}
	unmatchedLen := name.WireLen()
	pointerTo := -1
	if off, ulen, ok := targets.bestMatch(name); ok {
		pointerTo = off
		unmatchedLen = ulen
	}
	wire := name.Wire()
	buf = append(buf, wire[:unmatchedLen]...)
	if pointerTo >= 0 {
		buf = append(buf, byte(0xC0|(pointerTo>>8)), byte(pointerTo))
	}
	return buf
}

// WriteUncompressed appends the full, uncompressed wire form of name to
// buf and returns the updated buffer. No compression target is
// registered.
func WriteUncompressed(buf []byte, name Name) []byte {
	return append(buf, name.Wire()...)
}

// WritePointer appends a single two-byte compression pointer to off.
func WritePointer(buf []byte, off int) []byte {
	return append(buf, byte(0xC0|(off>>8)), byte(off))
}
