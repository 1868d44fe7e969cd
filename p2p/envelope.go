package p2p

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/rlp"
)

const (
	// LengthPrefixBytes is the fixed-size framing prefix every packet
	// carries: an 8-byte big-endian count of the bytes that follow.
	LengthPrefixBytes = 8
	// MaxPacketBytes bounds a single packet body, guarding against a
	// malicious or corrupt length prefix forcing an unbounded allocation.
	MaxPacketBytes = 32 << 20
)

// wireEnvelope is the outer RLP list every packet is wrapped in: a command
// id followed by the RLP encoding of that command's payload struct.
type wireEnvelope struct {
	Cmd     CommandID
	Payload rlp.RawValue
}

// PacketSize reads the declared body length out of the first 8 bytes of a
// buffer, matching the framing the peer loop uses to decide whether it has
// buffered a complete packet yet.
func PacketSize(prefix []byte) (uint64, error) {
	if len(prefix) < LengthPrefixBytes {
		return 0, fmt.Errorf("p2p: envelope: prefix too short")
	}
	return binary.BigEndian.Uint64(prefix[:LengthPrefixBytes]), nil
}

// EncodePacket builds the framed bytes for a single command and payload:
// an 8-byte length prefix followed by the RLP envelope.
func EncodePacket(cmd CommandID, payload interface{}) ([]byte, error) {
	inner, err := encodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("p2p: encode %s payload: %w", cmd, err)
	}
	body, err := rlp.EncodeToBytes(wireEnvelope{Cmd: cmd, Payload: inner})
	if err != nil {
		return nil, fmt.Errorf("p2p: encode %s envelope: %w", cmd, err)
	}
	if uint64(len(body)) > MaxPacketBytes {
		return nil, fmt.Errorf("p2p: encode %s: body exceeds MaxPacketBytes", cmd)
	}
	out := make([]byte, LengthPrefixBytes+len(body))
	binary.BigEndian.PutUint64(out[:LengthPrefixBytes], uint64(len(body)))
	copy(out[LengthPrefixBytes:], body)
	return out, nil
}

// DecodePacket splits a framed buffer into its command id and raw payload
// bytes, ready for decodePayload into the command's payload type. buf must contain
// exactly one packet's length prefix plus body.
func DecodePacket(buf []byte) (CommandID, []byte, error) {
	if len(buf) < LengthPrefixBytes {
		return 0, nil, fmt.Errorf("p2p: decode: truncated prefix")
	}
	n, err := PacketSize(buf)
	if err != nil {
		return 0, nil, err
	}
	if n > MaxPacketBytes {
		return 0, nil, fmt.Errorf("p2p: decode: body exceeds MaxPacketBytes")
	}
	body := buf[LengthPrefixBytes:]
	if uint64(len(body)) != n {
		return 0, nil, fmt.Errorf("p2p: decode: length mismatch")
	}
	var env wireEnvelope
	if err := rlp.DecodeBytes(body, &env); err != nil {
		return 0, nil, fmt.Errorf("p2p: decode envelope: %w", err)
	}
	return env.Cmd, env.Payload, nil
}

// WriteMessage frames and writes a single packet to w.
func WriteMessage(w io.Writer, cmd CommandID, payload interface{}) error {
	raw, err := EncodePacket(cmd, payload)
	if err != nil {
		return err
	}
	_, err = w.Write(raw)
	return err
}

// ReadMessage blocks until one full packet has arrived on r and returns its
// command id and raw (still-encoded) payload.
func ReadMessage(r io.Reader) (CommandID, []byte, error) {
	var prefix [LengthPrefixBytes]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return 0, nil, err
	}
	n, err := PacketSize(prefix[:])
	if err != nil {
		return 0, nil, err
	}
	if n > MaxPacketBytes {
		return 0, nil, fmt.Errorf("p2p: read: body exceeds MaxPacketBytes")
	}
	body := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return 0, nil, err
		}
	}
	var env wireEnvelope
	if err := rlp.DecodeBytes(body, &env); err != nil {
		return 0, nil, fmt.Errorf("p2p: decode envelope: %w", err)
	}
	return env.Cmd, env.Payload, nil
}
