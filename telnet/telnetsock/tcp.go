//go:build linux

package telnetsock

import (
	"context"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/cannibalvox/telnetcore/telnet"
)

// oobPollInterval bounds how long WaitOOB can go without noticing its
// context was cancelled.
const oobPollInterval = 100 * time.Millisecond

// TCPStream adapts a *net.TCPConn to the telnet.Stream contract, including
// the out-of-band pieces the net package doesn't expose: SO_OOBINLINE so
// urgent data arrives in the normal read stream, MSG_OOB for the Synch's
// urgent byte, and a POLLPRI watch that tells the engine when the urgent
// pointer has arrived.
type TCPStream struct {
	conn *net.TCPConn
	raw  syscall.RawConn

	// oobSeen is the edge detector for WaitOOB: POLLPRI is level-triggered
	// and stays set until the inline urgent byte is consumed, so only the
	// clear-to-set transition counts as a new urgent notification.
	oobSeen bool
}

var (
	_ telnet.Stream    = (*TCPStream)(nil)
	_ telnet.OOBWaiter = (*TCPStream)(nil)
)

// Wrap prepares conn for telnet use. Urgent data is switched to inline
// delivery immediately so no OOB byte can be lost before the engine's
// first read.
func Wrap(conn *net.TCPConn) (*TCPStream, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return nil, err
	}

	s := &TCPStream{conn: conn, raw: raw}
	if err := s.SetOOBInline(true); err != nil {
		return nil, err
	}
	return s, nil
}

// Dial connects to addr and wraps the resulting connection.
func Dial(ctx context.Context, network, addr string) (*TCPStream, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return nil, net.UnknownNetworkError(network)
	}
	return Wrap(tcp)
}

// Read blocks until at least one byte arrives, ctx is done, or the
// connection errors. Cancellation is delivered by forcing the read
// deadline; the resulting timeout error is rewritten to ctx.Err so callers
// see an ordinary cancellation.
func (s *TCPStream) Read(ctx context.Context, buf []byte) (int, error) {
	stop := context.AfterFunc(ctx, func() {
		s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	n, err := s.conn.Read(buf)
	if err != nil && ctx.Err() != nil {
		s.conn.SetReadDeadline(time.Time{})
		return n, ctx.Err()
	}
	return n, err
}

// Write sends buf in full unless the connection or ctx fails first.
func (s *TCPStream) Write(ctx context.Context, buf []byte) (int, error) {
	stop := context.AfterFunc(ctx, func() {
		s.conn.SetWriteDeadline(time.Now())
	})
	defer stop()

	n, err := s.conn.Write(buf)
	if err != nil && ctx.Err() != nil {
		s.conn.SetWriteDeadline(time.Time{})
		return n, ctx.Err()
	}
	return n, err
}

// SendSynch transmits a single NUL flagged MSG_OOB, which sets the TCP
// urgent pointer at the peer. The engine follows up with the in-band
// remainder of the Synch (two NULs and IAC DM).
func (s *TCPStream) SendSynch(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var sendErr error
	err := s.raw.Write(func(fd uintptr) bool {
		err := unix.Send(int(fd), []byte{0}, unix.MSG_OOB)
		if err == unix.EAGAIN {
			return false
		}
		sendErr = err
		return true
	})
	if err != nil {
		return err
	}
	return sendErr
}

// SetOOBInline toggles SO_OOBINLINE on the socket.
func (s *TCPStream) SetOOBInline(inline bool) error {
	value := 0
	if inline {
		value = 1
	}

	var optErr error
	err := s.raw.Control(func(fd uintptr) {
		optErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_OOBINLINE, value)
	})
	if err != nil {
		return err
	}
	return optErr
}

// WaitOOB blocks until the socket reports a new urgent-data condition
// (POLLPRI) or ctx is done. Each return corresponds to one urgent pointer:
// the condition must clear (the inline urgent byte must be read past)
// before a later one is reported again.
func (s *TCPStream) WaitOOB(ctx context.Context) error {
	var fd int32
	if err := s.raw.Control(func(f uintptr) { fd = int32(f) }); err != nil {
		return err
	}

	fds := []unix.PollFd{{Fd: fd, Events: unix.POLLPRI}}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fds[0].Revents = 0
		n, err := unix.Poll(fds, int(oobPollInterval.Milliseconds()))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}

		pri := n > 0 && fds[0].Revents&unix.POLLPRI != 0
		if pri && !s.oobSeen {
			s.oobSeen = true
			return nil
		}
		if !pri {
			s.oobSeen = false
			continue
		}
		// Still at the previous mark; let the reader catch up rather than
		// spinning on the level-triggered condition.
		time.Sleep(oobPollInterval)
	}
}

// Close closes the underlying connection.
func (s *TCPStream) Close() error {
	return s.conn.Close()
}
