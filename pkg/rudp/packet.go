// Package rudp implements the wire codec and the sender/receiver state
// machines for a selective-repeat, ordered byte-stream transport running
// over an unreliable datagram substrate.
package rudp

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"

	"github.com/pkg/errors"
)

// Kind identifies whether a frame carries stream data or acknowledges one.
type Kind byte

const (
	KindData Kind = 0x00
	KindAck  Kind = 0x01
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "DATA"
	case KindAck:
		return "ACK"
	default:
		return "UNKNOWN"
	}
}

const (
	// MaxPayload is the largest number of stream bytes carried by a single
	// DATA segment.
	MaxPayload = 1024

	headerLen   = 3  // kind(1) + seq(2)
	checksumLen = 20 // sha1 digest

	// MaxFrameLen is the largest encoded frame this protocol ever produces,
	// and must fit inside a single datagram of the underlying substrate.
	MaxFrameLen = headerLen + MaxPayload + checksumLen
)

// ErrCorrupt is returned by Decode for any frame that fails its integrity
// check, whether because it is too short to contain a header and checksum or
// because the checksum does not match. Both cases are "drop silently" per the
// protocol's error handling rules, so callers need not distinguish them.
var ErrCorrupt = errors.New("rudp: corrupt packet")

// Packet is the decoded form of a wire frame.
type Packet struct {
	Kind    Kind
	Seq     uint16
	Payload []byte
}

// Encode produces kind‖seq_be16‖payload‖sha1(kind‖seq_be16‖payload).
func Encode(kind Kind, seq uint16, payload []byte) []byte {
	buf := make([]byte, headerLen+len(payload)+checksumLen)
	buf[0] = byte(kind)
	binary.BigEndian.PutUint16(buf[1:3], seq)
	copy(buf[headerLen:], payload)

	sum := sha1.Sum(buf[:headerLen+len(payload)])
	copy(buf[headerLen+len(payload):], sum[:])
	return buf
}

// Decode validates the checksum and splits a wire frame into its fields. It
// returns ErrCorrupt for anything too short to be a frame or whose checksum
// does not match.
func Decode(frame []byte) (Packet, error) {
	if len(frame) < headerLen+checksumLen {
		return Packet{}, ErrCorrupt
	}

	body := frame[:len(frame)-checksumLen]
	wantSum := frame[len(frame)-checksumLen:]
	gotSum := sha1.Sum(body)
	if !bytes.Equal(gotSum[:], wantSum) {
		return Packet{}, ErrCorrupt
	}

	payload := make([]byte, len(body)-headerLen)
	copy(payload, body[headerLen:])

	return Packet{
		Kind:    Kind(body[0]),
		Seq:     binary.BigEndian.Uint16(body[1:3]),
		Payload: payload,
	}, nil
}
