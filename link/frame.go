package link

import (
	"bytes"
	"encoding/binary"
)

// Event frame wire format: [FrameStartByte][u32 little-endian][FrameEndByte].
const (
	// FrameStartByte marks the beginning of a binary event frame.
	FrameStartByte byte = 0xAA

	// FrameEndByte terminates a binary event frame.
	FrameEndByte byte = 0x55

	// FrameSize is the fixed size of an event frame on the wire.
	FrameSize = 6
)

// DefaultMaxRescan bounds the number of single-byte rescans DecodeFrame
// performs within one buffer before reporting ErrFrameDesync.
const DefaultMaxRescan = 64

// EncodeFrame serializes a tick delta to its 6-byte wire format.
func EncodeFrame(delta uint32) []byte {
	buf := make([]byte, FrameSize)
	buf[0] = FrameStartByte
	binary.LittleEndian.PutUint32(buf[1:5], delta)
	buf[5] = FrameEndByte

	return buf
}

// DecodeResult is the outcome of one DecodeFrame call.
type DecodeResult struct {
	// Delta is the decoded tick delta. Valid only when DecodeFrame
	// returned nil.
	Delta uint32

	// Consumed is the number of bytes the caller must discard from the
	// front of the buffer, including any garbage skipped before the frame.
	Consumed int

	// Rescans counts terminator mismatches: each one discarded a candidate
	// start byte and restarted the scan. Non-zero Rescans with a nil error
	// means the decoder recovered from corruption within this buffer.
	Rescans int
}

// DecodeFrame scans buf for the next complete event frame.
//
// Decoding is attempted only at a fixed 6-byte window anchored on a start
// byte. If the byte at the terminator position is not FrameEndByte, the
// candidate start byte is discarded and the scan restarts one byte later, so
// start-byte values appearing inside payload bytes cannot cause silent
// misalignment. maxRescan bounds the number of such retries within one call;
// when exceeded, ErrFrameDesync is returned (the stream remains recoverable,
// the caller just observes the condition and continues feeding bytes).
//
// Errors:
//   - nil: a frame was decoded; Consumed covers it and any skipped garbage.
//   - ErrNeedMoreData: no complete window remains; keep the tail and read more.
//   - ErrFrameMalformed: a terminator mismatch occurred and no complete frame
//     follows in the buffer; the bad start byte is already consumed.
//   - ErrFrameDesync: more than maxRescan terminator mismatches in this call.
func DecodeFrame(buf []byte, maxRescan int) (DecodeResult, error) {
	if maxRescan <= 0 {
		maxRescan = DefaultMaxRescan
	}

	res := DecodeResult{}
	pos := 0

	for {
		idx := bytes.IndexByte(buf[pos:], FrameStartByte)
		if idx < 0 {
			// No start byte at all; everything is garbage.
			res.Consumed = len(buf)

			return res, needMoreOrMalformed(res.Rescans)
		}

		pos += idx

		if len(buf)-pos < FrameSize {
			// Partial window; keep from the start byte onward.
			res.Consumed = pos

			return res, needMoreOrMalformed(res.Rescans)
		}

		if buf[pos+FrameSize-1] == FrameEndByte {
			res.Delta = binary.LittleEndian.Uint32(buf[pos+1 : pos+5])
			res.Consumed = pos + FrameSize

			return res, nil
		}

		// Terminator mismatch: drop the candidate start byte and rescan.
		res.Rescans++
		pos++

		if res.Rescans > maxRescan {
			res.Consumed = pos

			return res, ErrFrameDesync
		}
	}
}

func needMoreOrMalformed(rescans int) error {
	if rescans > 0 {
		return ErrFrameMalformed
	}

	return ErrNeedMoreData
}
