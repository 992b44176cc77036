package respasm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/geodnsd/geodnsd/internal/dname"
	"github.com/geodnsd/geodnsd/internal/plugin"
	"github.com/geodnsd/geodnsd/internal/qdecode"
	"github.com/geodnsd/geodnsd/internal/reqctx"
	"github.com/geodnsd/geodnsd/internal/stats"
	"github.com/geodnsd/geodnsd/internal/wire"
)

func testName(t *testing.T, labels ...string) dname.Name {
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

func newTestThread(t *testing.T, maxResponse int) *reqctx.Thread {
	t.Helper()
	lim := reqctx.Limits{
		MaxResponse: maxResponse, MaxCNAMEDepth: 8, MaxAddtlRRSets: 8, CompTargetsMax: 32,
		AdvertisedUDP: 4096, IncludeOptionalNS: true,
	}
	return reqctx.NewThread(0, lim, plugin.Resolvers{}, &stats.Counters{}, [16]byte{1})
}

func questionFor(t *testing.T, qname dname.Name) qdecode.Decoded {
	return qdecode.Decoded{
		Header:   wire.Header{ID: 0x1234, RD: true},
		RawQName: qname,
		QName:    qname,
		QType:    wire.TypeA,
		QClass:   wire.ClassIN,
	}
}

func appendQuestion(th *reqctx.Thread, qname dname.Name) {
	th.AnswerBuf = th.AnswerBuf[:0]
	th.AnswerBuf = append(th.AnswerBuf, make([]byte, wire.HeaderSize)...)
	th.AnswerBuf = append(th.AnswerBuf, []byte(qname)...)
	th.AnswerBuf = wire.PutUint16(th.AnswerBuf, wire.TypeA)
	th.AnswerBuf = wire.PutUint16(th.AnswerBuf, wire.ClassIN)
}

func TestAssembleNoTruncation(t *testing.T) {
	th := newTestThread(t, 4096)
	qname := testName(t, "www", "example", "com")
	dec := questionFor(t, qname)
	appendQuestion(th, qname)
	th.Req.ANCount = 1

	out := Assemble(th, dec, wire.RcodeNoError, true, true)
	h := wire.ParseHeader(out)
	require.True(t, h.QR)
	require.True(t, h.AA)
	require.False(t, h.TC)
	require.Equal(t, uint16(1), h.ANCount)
	require.Equal(t, wire.HeaderSize+qname.WireLen()+4, len(out))
}

func TestAssembleCNAMEPlusAnswerCounted(t *testing.T) {
	th := newTestThread(t, 4096)
	qname := testName(t, "alias", "example", "com")
	dec := questionFor(t, qname)
	appendQuestion(th, qname)
	th.Req.CNAMEANCount = 1
	th.Req.ANCount = 1

	out := Assemble(th, dec, wire.RcodeNoError, true, true)
	h := wire.ParseHeader(out)
	require.Equal(t, uint16(2), h.ANCount)
}

func TestAssembleTruncatesWhenOversize(t *testing.T) {
	th := newTestThread(t, 20)
	qname := testName(t, "www", "example", "com")
	dec := questionFor(t, qname)
	appendQuestion(th, qname)
	th.Req.ANCount = 1
	th.AnswerBuf = append(th.AnswerBuf, make([]byte, 64)...)

	out := Assemble(th, dec, wire.RcodeNoError, true, true)
	h := wire.ParseHeader(out)
	require.True(t, h.TC)
	require.False(t, h.AA)
	require.Equal(t, uint16(0), h.ANCount)
	require.Equal(t, wire.HeaderSize+qname.WireLen()+4, len(out))
	require.Equal(t, uint64(1), th.Stats.Snapshot().UDPTC)
}

func TestAssembleTrimsOptionalAdditionalViaUnwind(t *testing.T) {
	th := newTestThread(t, 40)
	qname := testName(t, "www", "example", "com")
	dec := questionFor(t, qname)
	appendQuestion(th, qname)
	th.Req.ANCount = 1

	prevOff := len(th.AddtlBuf)
	prevAR := th.Req.ARCount
	th.AddtlBuf = append(th.AddtlBuf, make([]byte, 32)...)
	th.Req.ARCount++
	th.Req.Unwind = append(th.Req.Unwind, reqctx.UnwindRecord{PrevAddtlOffset: prevOff, PrevARCount: prevAR})

	out := Assemble(th, dec, wire.RcodeNoError, true, true)
	h := wire.ParseHeader(out)
	require.False(t, h.TC)
	require.Equal(t, uint16(0), h.ARCount)
	require.Equal(t, 0, len(th.Req.Unwind))
}

func TestAssembleTruncatesWithEDNSIncrementsEDNSCounter(t *testing.T) {
	th := newTestThread(t, 20)
	qname := testName(t, "www", "example", "com")
	dec := questionFor(t, qname)
	appendQuestion(th, qname)
	th.Req.ANCount = 1
	th.Req.EDNS.Present = true
	th.AnswerBuf = append(th.AnswerBuf, make([]byte, 64)...)

	out := Assemble(th, dec, wire.RcodeNoError, true, true)
	h := wire.ParseHeader(out)
	require.True(t, h.TC)
	require.Equal(t, uint64(0), th.Stats.Snapshot().UDPTC)
	require.Equal(t, uint64(1), th.Stats.Snapshot().UDPEDNSTC)
}

func TestAssembleNeverPopsRequiredGlue(t *testing.T) {
	th := newTestThread(t, 40)
	qname := testName(t, "www", "example", "com")
	dec := questionFor(t, qname)
	appendQuestion(th, qname)
	th.Req.NSCount = 1

	prevOff := len(th.AddtlBuf)
	prevAR := th.Req.ARCount
	th.AddtlBuf = append(th.AddtlBuf, make([]byte, 32)...)
	th.Req.ARCount++
	th.Req.Unwind = append(th.Req.Unwind, reqctx.UnwindRecord{
		PrevAddtlOffset: prevOff, PrevARCount: prevAR, Required: true,
	})

	out := Assemble(th, dec, wire.RcodeNoError, true, true)
	h := wire.ParseHeader(out)
	// requiredAddtlLen already counted the 32 required bytes in the
	// initial truncation check, so the whole response truncates rather
	// than the trim loop dropping the required record; truncation then
	// clears the unwind list together with the additional section.
	require.True(t, h.TC)
	require.Equal(t, 0, len(th.Req.Unwind))
}

func TestRequiredAddtlLenSumsOnlyRequiredRecords(t *testing.T) {
	th := newTestThread(t, 4096)
	th.AddtlBuf = append(th.AddtlBuf, make([]byte, 10)...)
	th.Req.Unwind = append(th.Req.Unwind, reqctx.UnwindRecord{PrevAddtlOffset: 0, Required: true})
	th.AddtlBuf = append(th.AddtlBuf, make([]byte, 5)...)
	th.Req.Unwind = append(th.Req.Unwind, reqctx.UnwindRecord{PrevAddtlOffset: 10, Required: false})

	require.Equal(t, 10, requiredAddtlLen(th))
}

func TestAssembleAppendsOPTWithECS(t *testing.T) {
	th := newTestThread(t, 4096)
	qname := testName(t, "www", "example", "com")
	dec := questionFor(t, qname)
	appendQuestion(th, qname)
	th.Req.ANCount = 1
	th.Req.EDNS.Present = true
	th.Req.EDNS.ECS = reqctx.ECSState{
		Present: true, Family: 1, SourceMask: 24, ScopeMask: 24,
		Address: []byte{192, 0, 2},
	}

	out := Assemble(th, dec, wire.RcodeNoError, true, true)
	h := wire.ParseHeader(out)
	require.Equal(t, uint16(2), h.ARCount) // OPT RR + ECS option counted once each
}

func TestAssembleBadVersSetsExtendedRcode(t *testing.T) {
	th := newTestThread(t, 4096)
	qname := testName(t, "www", "example", "com")
	dec := questionFor(t, qname)
	appendQuestion(th, qname)
	th.Req.EDNS.Present = true
	th.Req.EDNS.BadVers = true

	out := Assemble(th, dec, wire.RcodeNoError, false, true)
	h := wire.ParseHeader(out)
	require.Equal(t, uint16(1), h.ARCount) // OPT RR only
	optStart := len(out) - 11
	require.Equal(t, byte(1), out[optStart+5]) // extended rcode high byte
}
