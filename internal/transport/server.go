package transport

import (
	"context"
	"encoding/binary"
	"net"
	"sync"

	"github.com/geodnsd/geodnsd/internal/answer"
	"github.com/geodnsd/geodnsd/internal/plugin"
	"github.com/geodnsd/geodnsd/internal/qdecode"
	"github.com/geodnsd/geodnsd/internal/reqctx"
	"github.com/geodnsd/geodnsd/internal/respasm"
	"github.com/geodnsd/geodnsd/internal/stats"
	"github.com/geodnsd/geodnsd/internal/wire"
	"github.com/geodnsd/geodnsd/internal/ztree"
)

// Config is the subset of process configuration the transport layer
// needs; cmd/geodnsd/main.go builds this from internal/config.Config.
type Config struct {
	UDPAddr           string
	TCPAddr           string
	UDPListeners      int
	Limits            reqctx.Limits
	ECSEnabled        bool
	Resolvers         plugin.Resolvers
	BootNonce         [16]byte
}

// Server owns every listener goroutine and the per-thread reqctx state
// they read and write exclusively (spec.md §3, §9).
type Server struct {
	cfg  Config
	tree *ztree.Manager

	counters []*stats.Counters

	udpConns []*net.UDPConn
	tcpLn    *net.TCPListener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires a Server against a zone Manager; the Manager is owned by
// the caller, which also runs the zoneload.Reloader that keeps it
// current.
func New(cfg Config, tree *ztree.Manager) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{cfg: cfg, tree: tree, ctx: ctx, cancel: cancel}
}

// Stats returns every thread's stats block, for Sum-ing at the entry
// point's periodic log tick.
func (s *Server) Stats() []*stats.Counters { return s.counters }

// Start opens every configured listener and begins serving. It blocks
// until every I/O thread goroutine has registered its counter block on
// the startup barrier (spec.md §4.6, internal/stats.Barrier), the Go
// analogue of gdnsd's dnspacket_wait_stats, so Start only returns once
// the server is actually ready to answer on every thread; errors from
// an individual serve loop after that point are not returned (a failed
// UDP read is counted as recvfail, a failed TCP accept is skipped),
// matching the teacher's Start/goroutine-per-listener shape
// (internal/server/server.go).
func (s *Server) Start() error {
	barrier := stats.NewBarrier(s.cfg.UDPListeners + 1)

	for i := 0; i < s.cfg.UDPListeners; i++ {
		conn, err := listenUDP(s.ctx, s.cfg.UDPAddr)
		if err != nil {
			s.cancel()
			return err
		}
		s.udpConns = append(s.udpConns, conn)
		counters := &stats.Counters{}
		s.counters = append(s.counters, counters)
		th := reqctx.NewThread(i, s.cfg.Limits, s.cfg.Resolvers, counters, s.cfg.BootNonce)

		s.wg.Add(1)
		go func(conn *net.UDPConn, th *reqctx.Thread) {
			defer s.wg.Done()
			barrier.Registered()
			s.serveUDP(conn, th)
		}(conn, th)
	}

	tcpLn, err := listenTCP(s.ctx, s.cfg.TCPAddr)
	if err != nil {
		s.cancel()
		return err
	}
	s.tcpLn = tcpLn
	tcpCounters := &stats.Counters{}
	s.counters = append(s.counters, tcpCounters)
	tcpThread := reqctx.NewThread(s.cfg.UDPListeners, s.cfg.Limits, s.cfg.Resolvers, tcpCounters, s.cfg.BootNonce)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		barrier.Registered()
		s.serveTCP(tcpLn, tcpThread)
	}()

	barrier.Wait()
	return nil
}

// Stop cancels every listener's context, closes the underlying sockets
// to unblock any goroutine parked in Read/Accept, and waits for the
// serve loops to return.
func (s *Server) Stop() {
	s.cancel()
	for _, conn := range s.udpConns {
		conn.Close()
	}
	if s.tcpLn != nil {
		s.tcpLn.Close()
	}
	s.wg.Wait()
}

func (s *Server) serveUDP(conn *net.UDPConn, th *reqctx.Thread) {
	defer conn.Close()
	buf := make([]byte, 65535)
	for {
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			th.Stats.IncUDPRecvFail()
			continue
		}
		resp := s.handle(th, buf[:n], remote.IP, true)
		if resp == nil {
			continue
		}
		if _, err := conn.WriteToUDP(resp, remote); err != nil {
			th.Stats.IncUDPSendFail()
		}
	}
}

func (s *Server) serveTCP(ln *net.TCPListener, th *reqctx.Thread) {
	defer ln.Close()
	for {
		conn, err := ln.AcceptTCP()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			continue
		}
		s.handleTCPConn(conn, th)
	}
}

// handleTCPConn serves every query on one TCP connection sequentially,
// reusing th. Concurrent TCP connections serialize on this single
// thread; spec.md §1 explicitly scopes the socket accept loop's
// internals out, so a richer per-connection thread pool is left
// unbuilt.
func (s *Server) handleTCPConn(conn *net.TCPConn, th *reqctx.Thread) {
	defer conn.Close()
	var lenBuf [2]byte
	for {
		if _, err := readFull(conn, lenBuf[:]); err != nil {
			return
		}
		msgLen := binary.BigEndian.Uint16(lenBuf[:])
		msg := make([]byte, msgLen)
		if _, err := readFull(conn, msg); err != nil {
			th.Stats.IncTCPRecvFail()
			return
		}
		th.Stats.AddTCPRecvSize(uint64(msgLen))

		remoteAddr, _ := conn.RemoteAddr().(*net.TCPAddr)
		var remoteIP net.IP
		if remoteAddr != nil {
			remoteIP = remoteAddr.IP
		}
		resp := s.handle(th, msg, remoteIP, false)
		if resp == nil {
			continue
		}
		out := make([]byte, 2+len(resp))
		binary.BigEndian.PutUint16(out, uint16(len(resp)))
		copy(out[2:], resp)
		if _, err := conn.Write(out); err != nil {
			th.Stats.IncTCPSendFail()
			return
		}
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// handle runs one packet through decode -> answer -> assemble. It
// returns nil when the packet must be silently dropped.
func (s *Server) handle(th *reqctx.Thread, packet []byte, sourceIP net.IP, isUDP bool) []byte {
	dec, outcome := qdecode.Decode(packet, isUDP, th.Limits.MaxResponse, th.Limits.AdvertisedUDP, s.cfg.ECSEnabled)
	switch outcome {
	case qdecode.Ignore:
		th.Stats.IncDropped()
		return nil
	case qdecode.NotImp:
		th.Stats.IncNotImp()
		return errorResponse(dec, wire.RcodeNotImp)
	case qdecode.BadVers:
		th.Stats.IncBadVers()
		return s.buildEDNSError(th, dec, isUDP)
	case qdecode.FormErr:
		th.Stats.IncFormErr()
		return errorResponse(dec, wire.RcodeFormErr)
	}

	if dec.EDNS.Present {
		th.Stats.IncEDNS()
		if dec.EDNS.ECS.Present {
			th.Stats.IncEDNSClientSub()
		}
	}
	if sourceIP != nil && sourceIP.To4() == nil {
		th.Stats.IncV6()
	}

	th.Req.EDNS = dec.EDNS
	client := plugin.ClientInfo{DNSSource: sourceIP}
	if dec.EDNS.ECS.Present {
		client.EDNSClientIP = net.IP(dec.EDNS.ECS.Address)
		client.EDNSClientMask = dec.EDNS.ECS.SourceMask
	}

	tree := s.tree.Load()
	res := answer.Build(th, dec, tree, client)
	switch res.RCODE {
	case wire.RcodeNoError:
		th.Stats.IncNoError()
	case wire.RcodeNXDomain:
		th.Stats.IncNXDomain()
	case wire.RcodeRefused:
		th.Stats.IncRefused()
	}

	out := respasm.Assemble(th, dec, res.RCODE, res.AA, isUDP)
	return append([]byte(nil), out...)
}

// buildEDNSError builds a BADVERS response: the OPT RR must still carry
// the extended RCODE, so this goes through respasm.Assemble rather than
// the bare errorResponse helper.
func (s *Server) buildEDNSError(th *reqctx.Thread, dec qdecode.Decoded, isUDP bool) []byte {
	th.Reset()
	th.AnswerBuf = append(th.AnswerBuf, make([]byte, wire.HeaderSize)...)
	th.AnswerBuf = append(th.AnswerBuf, dec.RawQName.Wire()...)
	th.AnswerBuf = wire.PutUint16(th.AnswerBuf, dec.QType)
	th.AnswerBuf = wire.PutUint16(th.AnswerBuf, dec.QClass)
	th.Req.EDNS = dec.EDNS
	out := respasm.Assemble(th, dec, wire.RcodeNoError, false, isUDP)
	return append([]byte(nil), out...)
}

// errorResponse builds a minimal header+question response for an
// outcome that never reaches the answer builder (NOTIMP/FORMERR).
func errorResponse(dec qdecode.Decoded, rcode int) []byte {
	buf := make([]byte, wire.HeaderSize, wire.HeaderSize+dec.RawQName.WireLen()+4)
	if dec.RawQName != nil {
		buf = append(buf, dec.RawQName.Wire()...)
		buf = wire.PutUint16(buf, dec.QType)
		buf = wire.PutUint16(buf, dec.QClass)
	}
	h := wire.Header{ID: dec.Header.ID, QR: true, RD: dec.Header.RD, RCODE: uint8(rcode & 0x0F)}
	if dec.RawQName != nil {
		h.QDCount = 1
	}
	wire.PutHeader(buf, h)
	return buf
}
