package protocol

import "encoding/binary"

// LengthPrefixSize is the size of the big-endian frame length on the wire.
const LengthPrefixSize = 4

// Decoder recovers length-prefixed frames from a chunked byte stream.
// It is not safe for concurrent use.
type Decoder struct {
	buf      []byte
	awaited  uint32
	awaiting bool
}

// Feed appends p to the internal buffer and returns every frame completed by it,
// in arrival order. Returned frames do not alias the decoder's buffer.
func (d *Decoder) Feed(p []byte) [][]byte {
	d.buf = append(d.buf, p...)

	var frames [][]byte
	for {
		frame, ok := d.next()
		if !ok {
			return frames
		}
		frames = append(frames, frame)
	}
}

func (d *Decoder) next() ([]byte, bool) {
	if !d.awaiting {
		if len(d.buf) < LengthPrefixSize {
			return nil, false
		}
		d.awaited = binary.BigEndian.Uint32(d.buf)
		d.awaiting = true
		d.buf = d.buf[LengthPrefixSize:]
	}

	if uint64(len(d.buf)) < uint64(d.awaited) {
		return nil, false
	}

	frame := make([]byte, d.awaited)
	copy(frame, d.buf)
	d.buf = d.buf[d.awaited:]
	d.awaiting = false
	d.awaited = 0

	// Reclaim the consumed prefix once the buffer drains.
	if len(d.buf) == 0 {
		d.buf = d.buf[:0:0]
	}
	return frame, true
}

// Buffered reports how many bytes are held without forming a complete frame,
// including a consumed-but-unsatisfied length prefix.
func (d *Decoder) Buffered() int {
	n := len(d.buf)
	if d.awaiting {
		n += LengthPrefixSize
	}
	return n
}

// AppendFrame appends payload to dst with its length prefix.
func AppendFrame(dst, payload []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...)
}
