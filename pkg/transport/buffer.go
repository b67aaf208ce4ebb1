package transport

import (
	"bytes"
	"unicode/utf8"
)

// cappedBuffer keeps the first limit bytes written to it and counts the
// rest, so the remote side is always drained.
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
	total int64
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.total += int64(len(p))
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

// String returns the kept bytes. A multi-byte character cut by the limit is
// dropped whole.
func (b *cappedBuffer) String() string {
	out := b.buf.Bytes()
	if b.Truncated() {
		out = trimPartialRune(out)
	}
	return string(out)
}

// trimPartialRune drops an incomplete UTF-8 sequence at the end of p
func trimPartialRune(p []byte) []byte {
	for i := 1; i <= utf8.UTFMax && i <= len(p); i++ {
		if utf8.RuneStart(p[len(p)-i]) {
			if !utf8.FullRune(p[len(p)-i:]) {
				return p[:len(p)-i]
			}
			break
		}
	}
	return p
}

func (b *cappedBuffer) Truncated() bool {
	return b.total > int64(b.limit)
}
