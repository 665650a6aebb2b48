// Package transport owns the two UDP sockets the core talks over: a
// multicast socket used exclusively for announcements, and a unicast
// socket bound to an ephemeral port used for everything else. Each
// direction runs its own receive goroutine, generalizing the teacher's
// one-goroutine-per-direction channel pattern (engine/network.go's
// writePump/readPump, server/game.go's channel multiplexing) to a
// raw-socket setting.
package transport

import (
	"encoding/binary"
	"fmt"
	"log"
	"net"

	"serpentine.network/internal/proto"
)

const maxFrameSize = 65507 // max UDP payload over IPv4

// Inbound pairs a decoded message with the peer address it arrived from.
type Inbound struct {
	Message proto.Message
	Addr    *net.UDPAddr
}

// Recorder receives observability events from the transport layer — one
// per malformed frame dropped (§7) — without this package importing the
// dashboard (which itself imports transport indirectly via node). A nil
// Recorder passed to Open is replaced with a no-op implementation.
type Recorder interface {
	DecodeError()
}

type noopRecorder struct{}

func (noopRecorder) DecodeError() {}

// Transport owns the multicast and unicast sockets and fans their inbound
// frames out onto buffered channels. Both sockets outlive every goroutine
// that reads or writes them (§9 design note: model as shared handles with
// interior synchronization, not copies).
type Transport struct {
	mcastConn *net.UDPConn
	ucastConn *net.UDPConn
	mcastAddr *net.UDPAddr
	recorder  Recorder

	McastIn chan Inbound
	UcastIn chan Inbound
}

// Open joins mcastAddr on the named interface (empty ifaceName lets the
// kernel pick) and binds an ephemeral unicast socket. Failure here is a
// Configuration error: fatal at startup (§7). recorder may be nil, in
// which case decode errors are simply not counted.
func Open(mcastGroup string, mcastPort int, ifaceName string, recorder Recorder) (*Transport, error) {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	mcastAddr := &net.UDPAddr{IP: net.ParseIP(mcastGroup), Port: mcastPort}
	if mcastAddr.IP == nil {
		return nil, fmt.Errorf("transport: invalid multicast group %q", mcastGroup)
	}

	var iface *net.Interface
	if ifaceName != "" {
		found, err := net.InterfaceByName(ifaceName)
		if err != nil {
			return nil, fmt.Errorf("transport: interface %q: %w", ifaceName, err)
		}
		iface = found
	}

	mcastConn, err := net.ListenMulticastUDP("udp4", iface, mcastAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: join multicast %s: %w", mcastAddr, err)
	}

	ucastConn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		mcastConn.Close()
		return nil, fmt.Errorf("transport: bind unicast socket: %w", err)
	}

	t := &Transport{
		mcastConn: mcastConn,
		ucastConn: ucastConn,
		mcastAddr: mcastAddr,
		recorder:  recorder,
		McastIn:   make(chan Inbound, 64),
		UcastIn:   make(chan Inbound, 256),
	}

	go t.recvLoop(mcastConn, t.McastIn, "mcast")
	go t.recvLoop(ucastConn, t.UcastIn, "ucast")

	return t, nil
}

// LocalAddr is the ephemeral unicast address peers should reply to.
func (t *Transport) LocalAddr() *net.UDPAddr {
	return t.ucastConn.LocalAddr().(*net.UDPAddr)
}

// recvLoop blocks on ReadFromUDP, decodes each datagram and publishes it
// to out. Malformed frames are dropped with a debug log and no further
// effect (§4.3) — the transport never retransmits or interprets payloads.
func (t *Transport) recvLoop(conn *net.UDPConn, out chan<- Inbound, tag string) {
	buf := make([]byte, maxFrameSize)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return // socket closed
		}
		body, err := stripLengthPrefix(buf[:n])
		if err != nil {
			t.recorder.DecodeError()
			log.Printf("[DECODE-ERROR] %s frame from %s: %v", tag, addr, err)
			continue
		}
		msg, err := proto.Decode(body)
		if err != nil {
			t.recorder.DecodeError()
			log.Printf("[DECODE-ERROR] %s frame from %s: %v", tag, addr, err)
			continue
		}
		out <- Inbound{Message: msg, Addr: addr}
	}
}

// stripLengthPrefix validates and removes the 4-byte big-endian length
// prefix proto.Encode writes ahead of every frame body (§4.2). UDP already
// preserves datagram boundaries, but the prefix is part of the normative
// frame format, so the transport checks it rather than ignoring it.
func stripLengthPrefix(datagram []byte) ([]byte, error) {
	if len(datagram) < 4 {
		return nil, fmt.Errorf("transport: datagram too short for length prefix (%d bytes)", len(datagram))
	}
	length := binary.BigEndian.Uint32(datagram[:4])
	body := datagram[4:]
	if int(length) != len(body) {
		return nil, fmt.Errorf("transport: length prefix %d does not match body length %d", length, len(body))
	}
	return body, nil
}

// SendMcast is a best-effort send to the multicast group (§4.3).
func (t *Transport) SendMcast(m proto.Message) {
	frame := proto.Encode(m)
	if _, err := t.mcastConn.WriteToUDP(frame, t.mcastAddr); err != nil {
		log.Printf("[SEND-ERROR] mcast: %v", err)
	}
}

// SendUcast is a best-effort send to addr (§4.3). The Controller's
// retransmit path, not this method, is responsible for reliability.
func (t *Transport) SendUcast(addr *net.UDPAddr, m proto.Message) error {
	frame := proto.Encode(m)
	_, err := t.ucastConn.WriteToUDP(frame, addr)
	if err != nil {
		log.Printf("[SEND-ERROR] ucast to %s: %v", addr, err)
	}
	return err
}

// Close shuts down both sockets; the recv goroutines exit on their next
// ReadFromUDP error.
func (t *Transport) Close() error {
	err1 := t.mcastConn.Close()
	err2 := t.ucastConn.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
