package protocol

import "bytes"

// Delimiter terminates every message on the wire.
const Delimiter byte = 0x00

// Framer reassembles NUL-delimited messages from arbitrarily chunked reads.
// It is not safe for concurrent use; the session read loop is its only writer.
type Framer struct {
	buf []byte
	off int // start of the first unconsumed byte in buf
}

// Write appends a chunk read from the network.
func (f *Framer) Write(p []byte) (int, error) {
	if f.off > 0 && f.off == len(f.buf) {
		f.buf = f.buf[:0]
		f.off = 0
	}
	f.buf = append(f.buf, p...)
	return len(p), nil
}

// Next returns the next complete payload in arrival order, without its delimiter.
// The returned slice is a copy and stays valid after later writes.
// Empty payloads between consecutive delimiters are skipped.
func (f *Framer) Next() ([]byte, bool) {
	for {
		i := bytes.IndexByte(f.buf[f.off:], Delimiter)
		if i < 0 {
			f.compact()
			return nil, false
		}
		start := f.off
		f.off += i + 1
		if i == 0 {
			continue
		}
		payload := make([]byte, i)
		copy(payload, f.buf[start:start+i])
		return payload, true
	}
}

// Buffered returns the number of bytes belonging to an unterminated message.
func (f *Framer) Buffered() int {
	return len(f.buf) - f.off
}

// Close reports a FramingError if the stream ended in the middle of a message.
func (f *Framer) Close() error {
	if n := f.Buffered(); n > 0 {
		return &FramingError{Buffered: n}
	}
	return nil
}

// compact moves the partial tail to the front so the buffer does not grow without bound
// across many small messages.
func (f *Framer) compact() {
	if f.off == 0 {
		return
	}
	n := copy(f.buf, f.buf[f.off:])
	f.buf = f.buf[:n]
	f.off = 0
}

// Split frames a complete byte stream in one call.
// It returns every complete payload and the unterminated tail, if any.
func Split(stream []byte) ([][]byte, []byte) {
	var f Framer
	_, _ = f.Write(stream)
	var out [][]byte
	for {
		p, ok := f.Next()
		if !ok {
			break
		}
		out = append(out, p)
	}
	return out, f.buf[f.off:]
}
