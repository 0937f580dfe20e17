package rudp

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		kind    Kind
		seq     uint16
		payload []byte
	}{
		{"data with payload", KindData, 0, []byte("hello")},
		{"data max payload", KindData, 65535, make([]byte, MaxPayload)},
		{"data empty payload", KindData, 3, nil},
		{"ack", KindAck, 42, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frame := Encode(tc.kind, tc.seq, tc.payload)
			require.LessOrEqual(t, len(frame), MaxFrameLen)

			got, err := Decode(frame)
			require.NoError(t, err)

			want := Packet{Kind: tc.kind, Seq: tc.seq, Payload: tc.payload}
			if len(want.Payload) == 0 {
				want.Payload = []byte{}
				got.Payload = append([]byte{}, got.Payload...)
				if got.Payload == nil {
					got.Payload = []byte{}
				}
			}
			if diff := cmp.Diff(want.Payload, got.Payload); diff != "" {
				t.Errorf("payload mismatch (-want +got):\n%s", diff)
			}
			require.Equal(t, want.Kind, got.Kind)
			require.Equal(t, want.Seq, got.Seq)
		})
	}
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode(make([]byte, 10))
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestDecodeBitFlipIsCorrupt(t *testing.T) {
	frame := Encode(KindData, 7, []byte("payload"))
	for i := range frame {
		flipped := append([]byte{}, frame...)
		flipped[i] ^= 0x01
		_, err := Decode(flipped)
		require.ErrorIsf(t, err, ErrCorrupt, "byte %d flip should be detected as corrupt", i)
	}
}

func TestDecodeEmptyFrame(t *testing.T) {
	_, err := Decode(nil)
	require.ErrorIs(t, err, ErrCorrupt)
}
