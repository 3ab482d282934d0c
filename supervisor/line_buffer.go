package supervisor

import "bytes"

// LineBuffer reassembles lines from arbitrarily split chunks. A line longer
// than max is emitted in max sized pieces.
type LineBuffer struct {
	buf  []byte
	max  int
	emit func(line string)
}

func NewLineBuffer(max int, emit func(line string)) *LineBuffer {
	if max <= 0 {
		max = 64 * 1024
	}
	return &LineBuffer{
		buf:  make([]byte, 0, min(max, 4096)),
		max:  max,
		emit: emit,
	}
}

// Write never fails; it implements io.Writer so the buffer can sit behind
// any copy loop. A full buffer is only force flushed once a byte other than
// the line terminator arrives, so a line of exactly max bytes comes out the
// same however its chunks are split.
func (b *LineBuffer) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		if len(b.buf) == b.max {
			if p[0] == '\n' {
				p = p[1:]
			}
			b.flush()
			continue
		}

		seg := p
		idx := bytes.IndexByte(p, '\n')
		if idx >= 0 {
			seg = p[:idx]
		}
		if room := b.max - len(b.buf); len(seg) > room {
			b.buf = append(b.buf, p[:room]...)
			p = p[room:]
			continue
		}

		b.buf = append(b.buf, seg...)
		p = p[len(seg):]
		if idx >= 0 {
			b.flush()
			p = p[1:]
		}
	}
	return n, nil
}

// Flush emits any buffered partial line. Called at EOF.
func (b *LineBuffer) Flush() {
	if len(b.buf) > 0 {
		b.flush()
	}
}

func (b *LineBuffer) flush() {
	line := b.buf
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	b.emit(string(line))
	b.buf = b.buf[:0]
}
