// Package stats implements the per-thread monotonic counters described
// in spec.md §4.6 and §5: one block per I/O thread, written only by its
// owning thread, summed lock-free by readers, plus the one-time startup
// barrier gdnsd's dnspacket_wait_stats implements with a pthread
// condition variable (here, a sync.WaitGroup).
package stats

import "sync/atomic"

// Counters is one thread's stats block. Every field is written only by
// the owning thread via the Inc* methods and read by any thread via
// Snapshot; both use atomic operations, so readers never need a lock.
type Counters struct {
	v6             atomic.Uint64
	edns           atomic.Uint64
	ednsClientSub  atomic.Uint64
	noerror        atomic.Uint64
	refused        atomic.Uint64
	nxdomain       atomic.Uint64
	notimp         atomic.Uint64
	badvers        atomic.Uint64
	formerr        atomic.Uint64
	dropped        atomic.Uint64

	// UDP-only.
	udpRecvFail atomic.Uint64
	udpSendFail atomic.Uint64
	udpTC       atomic.Uint64
	udpEDNSBig  atomic.Uint64
	udpEDNSTC   atomic.Uint64

	// TCP-only.
	tcpRecvFail atomic.Uint64
	tcpRecvSize atomic.Uint64
	tcpSendFail atomic.Uint64
}

func (c *Counters) IncV6()            { c.v6.Add(1) }
func (c *Counters) IncEDNS()          { c.edns.Add(1) }
func (c *Counters) IncEDNSClientSub() { c.ednsClientSub.Add(1) }
func (c *Counters) IncNoError()       { c.noerror.Add(1) }
func (c *Counters) IncRefused()       { c.refused.Add(1) }
func (c *Counters) IncNXDomain()      { c.nxdomain.Add(1) }
func (c *Counters) IncNotImp()        { c.notimp.Add(1) }
func (c *Counters) IncBadVers()       { c.badvers.Add(1) }
func (c *Counters) IncFormErr()       { c.formerr.Add(1) }
func (c *Counters) IncDropped()       { c.dropped.Add(1) }

func (c *Counters) IncUDPRecvFail() { c.udpRecvFail.Add(1) }
func (c *Counters) IncUDPSendFail() { c.udpSendFail.Add(1) }
func (c *Counters) IncUDPTC()       { c.udpTC.Add(1) }
func (c *Counters) IncUDPEDNSBig()  { c.udpEDNSBig.Add(1) }
func (c *Counters) IncUDPEDNSTC()   { c.udpEDNSTC.Add(1) }

func (c *Counters) IncTCPRecvFail() { c.tcpRecvFail.Add(1) }
func (c *Counters) AddTCPRecvSize(n uint64) { c.tcpRecvSize.Add(n) }
func (c *Counters) IncTCPSendFail() { c.tcpSendFail.Add(1) }

// Snapshot is a point-in-time, summable copy of a Counters block.
type Snapshot struct {
	V6, EDNS, EDNSClientSub                       uint64
	NoError, Refused, NXDomain, NotImp             uint64
	BadVers, FormErr, Dropped                      uint64
	UDPRecvFail, UDPSendFail, UDPTC                uint64
	UDPEDNSBig, UDPEDNSTC                          uint64
	TCPRecvFail, TCPRecvSize, TCPSendFail          uint64
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		V6: c.v6.Load(), EDNS: c.edns.Load(), EDNSClientSub: c.ednsClientSub.Load(),
		NoError: c.noerror.Load(), Refused: c.refused.Load(), NXDomain: c.nxdomain.Load(),
		NotImp: c.notimp.Load(), BadVers: c.badvers.Load(), FormErr: c.formerr.Load(),
		Dropped: c.dropped.Load(),
		UDPRecvFail: c.udpRecvFail.Load(), UDPSendFail: c.udpSendFail.Load(), UDPTC: c.udpTC.Load(),
		UDPEDNSBig: c.udpEDNSBig.Load(), UDPEDNSTC: c.udpEDNSTC.Load(),
		TCPRecvFail: c.tcpRecvFail.Load(), TCPRecvSize: c.tcpRecvSize.Load(), TCPSendFail: c.tcpSendFail.Load(),
	}
}

func Sum(blocks []*Counters) Snapshot {
	var s Snapshot
	for _, c := range blocks {
		b := c.Snapshot()
		s.V6 += b.V6
		s.EDNS += b.EDNS
		s.EDNSClientSub += b.EDNSClientSub
		s.NoError += b.NoError
		s.Refused += b.Refused
		s.NXDomain += b.NXDomain
		s.NotImp += b.NotImp
		s.BadVers += b.BadVers
		s.FormErr += b.FormErr
		s.Dropped += b.Dropped
		s.UDPRecvFail += b.UDPRecvFail
		s.UDPSendFail += b.UDPSendFail
		s.UDPTC += b.UDPTC
		s.UDPEDNSBig += b.UDPEDNSBig
		s.UDPEDNSTC += b.UDPEDNSTC
		s.TCPRecvFail += b.TCPRecvFail
		s.TCPRecvSize += b.TCPRecvSize
		s.TCPSendFail += b.TCPSendFail
	}
	return s
}
