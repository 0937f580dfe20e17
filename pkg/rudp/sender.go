package rudp

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/datawire/dlib/dlog"
	"github.com/pkg/errors"
)

// Sender reads a byte stream once at startup, segments it into an immutable,
// sequence-indexed array of DATA packets, and drives them across Conn to a
// single peer using selective-repeat retransmission, a sliding window, and an
// adaptive RTT estimate.
type Sender struct {
	conn Conn
	peer net.Addr
	cfg  Config

	packets  [][]byte
	n        int
	inFlight *seqSet
	acked    *seqSet
	sendTime []time.Time

	rtt    float64 // seconds, EWMA
	window int

	// OnStart and OnAck are optional diagnostic hooks (e.g. a progress bar);
	// neither participates in the protocol.
	OnStart func(totalBytes, segments int)
	OnAck   func(seq uint16, payloadLen int)
}

// NewSender builds a Sender that will transmit to peer over conn.
func NewSender(conn Conn, peer net.Addr, cfg Config) *Sender {
	return &Sender{conn: conn, peer: peer, cfg: cfg}
}

// Run consumes input to completion, then drives the transfer until every
// segment has been acknowledged. It returns nil once the full stream has been
// delivered, or a non-nil error on fatal I/O failure or context cancellation.
func (s *Sender) Run(ctx context.Context, input io.Reader) error {
	if err := s.buildPackets(input); err != nil {
		return errors.Wrap(err, "segment input")
	}
	dlog.Debugf(ctx, "sender: %d segments, %d total bytes", s.n, s.totalBytes())
	if s.OnStart != nil {
		s.OnStart(s.totalBytes(), s.n)
	}
	if s.n == 0 {
		return nil
	}

	s.inFlight = newSeqSet(s.n)
	s.acked = newSeqSet(s.n)
	s.sendTime = make([]time.Time, s.n)
	s.window = s.cfg.InitialWindow
	s.rtt = s.cfg.InitialRTT.Seconds()

	for s.acked.len() < s.n {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		now := time.Now()
		s.timeoutSweep(now)
		if err := s.ackIntake(ctx, now); err != nil {
			return err
		}
		if err := s.sendStep(ctx, now); err != nil {
			return err
		}
	}
	dlog.Debugf(ctx, "sender: all %d segments acked", s.n)
	return nil
}

func (s *Sender) buildPackets(r io.Reader) error {
	buf := make([]byte, MaxPayload)
	seq := 0
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if seq > 0xFFFF {
				return errors.New("input exceeds the 16-bit sequence space")
			}
			payload := make([]byte, n)
			copy(payload, buf[:n])
			s.packets = append(s.packets, Encode(KindData, uint16(seq), payload))
			seq++
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return err
		}
	}
	s.n = len(s.packets)
	return nil
}

func (s *Sender) totalBytes() int {
	total := 0
	for _, p := range s.packets {
		total += len(p) - headerLen - checksumLen
	}
	return total
}

// timeoutSweep moves any in-flight segment whose last send is older than
// rtt*2 back to pending, making it eligible for retransmission this
// iteration, and adjusts the window for each one that times out.
func (s *Sender) timeoutSweep(now time.Time) {
	threshold := time.Duration(s.rtt * 2 * float64(time.Second))
	s.inFlight.forEach(s.n, func(seq uint16) {
		if now.Sub(s.sendTime[seq]) > threshold {
			s.inFlight.clear(seq)
			s.adjustWindow()
		}
	})
}

// ackIntake drains every datagram available within the configured bounded
// deadline, applying each valid ACK it finds.
func (s *Sender) ackIntake(ctx context.Context, now time.Time) error {
	if err := s.conn.SetReadDeadline(now.Add(s.cfg.AckIntakeWait)); err != nil {
		return errors.Wrap(err, "set read deadline")
	}

	buf := make([]byte, MaxFrameLen)
	for {
		n, _, err := s.conn.ReadFrom(buf)
		if err != nil {
			if isTimeout(err) {
				return nil
			}
			return errors.Wrap(err, "read from peer")
		}

		pkt, err := Decode(buf[:n])
		if err != nil {
			continue // corrupt: drop silently, do not update rtt
		}
		if pkt.Kind != KindAck {
			continue // wrong kind: drop
		}
		s.applyAck(ctx, pkt.Seq)
	}
}

func (s *Sender) applyAck(ctx context.Context, seq uint16) {
	if !s.inFlight.has(seq) {
		return // late or duplicate ack: ignore, do not double-count
	}
	sample := time.Since(s.sendTime[seq])
	s.inFlight.clear(seq)
	s.acked.set(seq)
	s.rtt = 0.7*s.rtt + 0.3*sample.Seconds()
	s.adjustWindow()
	dlog.Tracef(ctx, "sender: acked seq=%d rtt=%.3fs window=%d", seq, s.rtt, s.window)
	if s.OnAck != nil {
		s.OnAck(seq, len(s.packets[seq])-headerLen-checksumLen)
	}
}

// sendStep transmits at most one new segment per loop iteration, clocked by
// ACK arrival through ackIntake's bounded wait. A socket send error is
// unrecoverable, so it's returned to the caller rather than retried.
func (s *Sender) sendStep(ctx context.Context, now time.Time) error {
	if s.inFlight.len() >= s.window {
		return nil
	}
	seq, ok := firstUnset(s.n, s.acked, s.inFlight)
	if !ok {
		return nil
	}
	if _, err := s.conn.WriteTo(s.packets[seq], s.peer); err != nil {
		return errors.Wrapf(err, "send seq=%d", seq)
	}
	dlog.Tracef(ctx, "sender: sent seq=%d window=%d in_flight=%d", seq, s.window, s.inFlight.len()+1)
	s.inFlight.set(seq)
	s.sendTime[seq] = now
	return nil
}

// adjustWindow grows the window by one while the pipe is saturated, and
// shrinks it multiplicatively once slack appears, floor-clamped so the
// window never collapses to a size that would stall the transfer.
func (s *Sender) adjustWindow() {
	if s.inFlight.len() >= s.window {
		s.window++
		return
	}
	if s.inFlight.len() < s.window && s.window > s.cfg.WindowFloor {
		shrunk := int(float64(s.window) * 0.55)
		if shrunk < s.cfg.WindowFloor {
			shrunk = s.cfg.WindowFloor
		}
		s.window = shrunk
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
