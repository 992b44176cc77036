// Package reqctx holds the per-thread, reused-across-requests state the
// answer builder and response assembler operate on: output buffers, the
// compression-target list, the dync arena, EDNS/ECS state, rotation RNG
// and a pointer to this thread's stats block (spec.md §3, §4.6).
package reqctx

import (
	"github.com/geodnsd/geodnsd/internal/dname"
	"github.com/geodnsd/geodnsd/internal/plugin"
	"github.com/geodnsd/geodnsd/internal/stats"
	"github.com/geodnsd/geodnsd/internal/ztree"
)

// UnwindRecord lets the response assembler pop the last additional
// RR-set written, restoring the side-buffer length and arcount
// atomically (spec.md §4.4.7, §4.5.2).
type UnwindRecord struct {
	PrevAddtlOffset int
	PrevARCount     uint16
	// Required marks delegation glue (spec.md §4.5 "required glue"):
	// the response assembler's trim loop must never pop a required
	// record to make room, only truncate the whole response instead.
	Required bool
}

// ECSState is the decoded (and, after answering, echoed) EDNS Client
// Subnet option.
type ECSState struct {
	Present    bool
	Family     uint8 // 1 = IPv4, 2 = IPv6
	SourceMask uint8
	ScopeMask  uint8
	Address    []byte // left-padded/truncated per spec.md §4.2
}

// EDNSState is the per-request EDNS negotiation outcome.
type EDNSState struct {
	Present         bool
	MaxResponse     int // this_max_response per spec.md §4.2
	BadVers         bool
	ECS             ECSState
}

// Limits bounds buffer sizes and per-request caps, set once from
// configuration at thread creation.
type Limits struct {
	MaxResponse    int
	MaxCNAMEDepth  int
	MaxAddtlRRSets int
	CompTargetsMax int
	AdvertisedUDP  int // advertised OPT RR receive size (DNS_EDNS0_SIZE)
	IncludeOptionalNS bool
}

// Thread is the per-I/O-thread reusable state. One Thread instance is
// owned exclusively by the goroutine reading its listener socket;
// nothing here is shared across threads.
type Thread struct {
	ID        int
	RNG       *RNG
	Resolvers plugin.Resolvers
	Stats     *stats.Counters
	Limits    Limits

	// Preallocated, reused buffers (spec.md §9 "no allocation per
	// request").
	AnswerBuf []byte
	AddtlBuf  []byte
	DyncArena []byte
	Targets   *dname.Targets

	Req Request
}

// Request is the subset of Thread's state reset at the start of every
// query (spec.md §3 "Per-request context"). It is a field of Thread
// rather than a separate heap allocation since a Thread processes one
// request at a time.
type Request struct {
	QType   uint16
	Chaos   bool
	ClassCH bool

	QNameComp int
	AuthComp  int

	ANCount      uint16
	NSCount      uint16
	ARCount      uint16
	CNAMEANCount uint16

	// AnswerAddrRRSet is the sentinel recording which Addr RR-set (if
	// any) was already written to the answer section, so ANY/A/AAAA
	// dispatch doesn't duplicate it into the additional section.
	AnswerAddrRRSet *ztree.RRSet

	EDNS EDNSState

	Unwind    []UnwindRecord
	DyncUsed  int // bytes of DyncArena consumed so far this request
}

// NewThread allocates a Thread's buffers from lim and seeds its
// rotation RNG.
func NewThread(id int, lim Limits, resolvers plugin.Resolvers, counters *stats.Counters, bootNonce [16]byte) *Thread {
	return &Thread{
		ID:        id,
		RNG:       SeedThread(id, bootNonce),
		Resolvers: resolvers,
		Stats:     counters,
		Limits:    lim,
		AnswerBuf: make([]byte, 0, lim.MaxResponse),
		AddtlBuf:  make([]byte, 0, lim.MaxResponse),
		DyncArena: make([]byte, lim.MaxCNAMEDepth*256),
		Targets:   dname.NewTargets(lim.CompTargetsMax),
	}
}

// Reset clears all per-request state before processing the next query,
// keeping the underlying buffer arrays (reset_context's partial-memset
// idiom, spec.md §4.4 "Reset the per-request context").
func (t *Thread) Reset() {
	t.AnswerBuf = t.AnswerBuf[:0]
	t.AddtlBuf = t.AddtlBuf[:0]
	t.Targets.Reset()
	t.Req = Request{Unwind: t.Req.Unwind[:0]}
}
