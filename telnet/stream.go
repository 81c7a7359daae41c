package telnet

import "context"

// Stream is the lower-layer transport contract a Conn is composed over
// (spec.md §6). A TCP implementation lives in telnet/telnetsock; tests use
// an in-memory pipe implementation.
//
// Implementations are not required to be safe for concurrent Read and
// Write from multiple goroutines simultaneously, but must allow one
// goroutine to Read while another Writes (the composer's read loop and
// its caller's writes happen concurrently).
type Stream interface {
	// Read blocks until at least one byte is available, ctx is done, or the
	// stream is closed.
	Read(ctx context.Context, buf []byte) (int, error)
	// Write sends buf in full or returns an error.
	Write(ctx context.Context, buf []byte) (int, error)
	// SendSynch transmits the leading byte of a Telnet Synch (three NUL
	// bytes followed by IAC DM) as TCP urgent data, so it overtakes any
	// data already queued for the peer. Implementations that cannot send
	// urgent data may send it in-band instead; this degrades the Synch to
	// an ordinary (non-out-of-band) signal but keeps the byte sequence
	// correct.
	SendSynch(ctx context.Context) error
	// SetOOBInline controls whether urgent data arrives inline in the
	// normal read stream (true) or must be drained separately. Streams
	// that don't support out-of-band delivery may no-op this.
	SetOOBInline(inline bool) error
	// Close releases the underlying transport.
	Close() error
}
