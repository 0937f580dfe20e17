package rudp

import (
	"context"
	"io"
	"net"

	"github.com/datawire/dlib/dlog"
	"github.com/pkg/errors"
)

// Receiver listens on Conn for datagrams from a single peer, reassembles the
// contiguous prefix of the stream it has received, and writes it to its
// output writer in order. It never terminates on its own; callers cancel ctx to stop it.
type Receiver struct {
	conn Conn
	out  io.Writer

	peer   net.Addr
	buffer map[uint16][]byte
	// next is the sequence number of the next segment to deliver. It's
	// widened past uint16 because seq itself only ranges over [0, 65536):
	// once a stream carries the full 65536 segments, next must be able to
	// reach 65536 and stop incrementing rather than silently wrap to 0 and
	// treat the stream as perpetually incomplete.
	next uint32
}

// NewReceiver builds a Receiver that writes the reassembled stream to out.
func NewReceiver(conn Conn, out io.Writer) *Receiver {
	return &Receiver{
		conn:   conn,
		out:    out,
		buffer: make(map[uint16][]byte),
	}
}

// Run blocks, processing datagrams until ctx is cancelled or a fatal error
// occurs.
func (r *Receiver) Run(ctx context.Context) error {
	buf := make([]byte, 65535)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, addr, err := r.conn.ReadFrom(buf)
		if err != nil {
			return errors.Wrap(err, "read datagram")
		}

		if r.peer == nil {
			r.peer = addr
			dlog.Debugf(ctx, "receiver: locked peer %s", addr)
		} else if addr.String() != r.peer.String() {
			dlog.Tracef(ctx, "receiver: dropping datagram from unauthorized peer %s", addr)
			continue
		}

		pkt, err := Decode(buf[:n])
		if err != nil {
			continue // corrupt: drop silently, do not ack
		}
		if pkt.Kind != KindData {
			continue // wrong kind: drop
		}

		if err := r.handleData(ctx, pkt); err != nil {
			return err
		}
	}
}

func (r *Receiver) handleData(ctx context.Context, pkt Packet) error {
	if uint32(pkt.Seq) >= r.next {
		if _, buffered := r.buffer[pkt.Seq]; !buffered {
			r.buffer[pkt.Seq] = pkt.Payload
		}
	}

	for r.next < 65536 {
		payload, ok := r.buffer[uint16(r.next)]
		if !ok {
			break
		}
		if len(payload) > 0 {
			if _, err := r.out.Write(payload); err != nil {
				return errors.Wrap(err, "write output")
			}
		}
		delete(r.buffer, uint16(r.next))
		r.next++
	}

	ack := Encode(KindAck, pkt.Seq, nil)
	if _, err := r.conn.WriteTo(ack, r.peer); err != nil {
		return errors.Wrapf(err, "ack seq=%d", pkt.Seq)
	}
	dlog.Tracef(ctx, "receiver: seq=%d delivered_through=%d", pkt.Seq, r.next)
	return nil
}
