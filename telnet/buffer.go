package telnet

// byteBuffer is a growable byte queue (compacted to the front when it
// grows) used for the composer's input and output side buffers (spec.md
// §6). It trades the generality of a generic queue for byte-specific
// operations (Peek, Drop, TrimLast) that the composer's read/write loops
// use directly.
type byteBuffer struct {
	buf        []byte
	start, end int
}

func newByteBuffer(size int) *byteBuffer {
	return &byteBuffer{buf: make([]byte, size)}
}

func (b *byteBuffer) compact() {
	if b.start == 0 {
		return
	}
	n := copy(b.buf, b.buf[b.start:b.end])
	b.start = 0
	b.end = n
}

func (b *byteBuffer) grow(need int) {
	b.compact()
	newSize := len(b.buf) * 2
	if newSize < need {
		newSize = need
	}
	if newSize == 0 {
		newSize = 64
	}
	next := make([]byte, newSize)
	copy(next, b.buf[b.start:b.end])
	b.end -= b.start
	b.start = 0
	b.buf = next
}

// Append adds bytes to the tail of the buffer, growing it if necessary.
func (b *byteBuffer) Append(data ...byte) {
	if b.end+len(data) > len(b.buf) {
		b.grow(b.end - b.start + len(data))
	}
	b.end += copy(b.buf[b.end:], data)
}

// Take removes and returns up to n bytes from the head of the buffer.
func (b *byteBuffer) Take(n int) []byte {
	if n > b.Len() {
		n = b.Len()
	}
	out := b.buf[b.start : b.start+n]
	b.start += n
	return out
}

// Peek returns the unread contents without consuming them.
func (b *byteBuffer) Peek() []byte {
	return b.buf[b.start:b.end]
}

// Drop discards n unread bytes from the head without returning them.
func (b *byteBuffer) Drop(n int) {
	b.start += n
	if b.start > b.end {
		b.start = b.end
	}
}

// TrimLast removes the most recently appended unread byte, if any. The
// composer uses this to honor an inbound Erase Character against data not
// yet delivered to the application.
func (b *byteBuffer) TrimLast() bool {
	if b.end == b.start {
		return false
	}
	b.end--
	return true
}

// Len returns the number of unread bytes currently buffered.
func (b *byteBuffer) Len() int {
	return b.end - b.start
}

// Reset discards all buffered content.
func (b *byteBuffer) Reset() {
	b.start, b.end = 0, 0
}
