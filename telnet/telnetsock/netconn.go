package telnetsock

import (
	"context"
	"net"
	"time"

	"github.com/cannibalvox/telnetcore/telnet"
)

// NetStream adapts any net.Conn (a tls.Conn, a pipe, a platform without
// urgent-data support) to the telnet.Stream contract. It has no
// out-of-band channel: SendSynch sends its NUL in band, which keeps the
// wire sequence of a Synch correct but loses the urgent-pointer overtaking
// behavior, and SetOOBInline is a no-op.
type NetStream struct {
	conn net.Conn
}

var _ telnet.Stream = (*NetStream)(nil)

// WrapConn adapts conn. The caller keeps responsibility for any transport
// configuration (TLS handshakes, keepalives) done before or after.
func WrapConn(conn net.Conn) *NetStream {
	return &NetStream{conn: conn}
}

func (s *NetStream) Read(ctx context.Context, buf []byte) (int, error) {
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

func (s *NetStream) Write(ctx context.Context, buf []byte) (int, error) {
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

func (s *NetStream) SendSynch(ctx context.Context) error {
	_, err := s.Write(ctx, []byte{0})
	return err
}

func (s *NetStream) SetOOBInline(inline bool) error {
	return nil
}

func (s *NetStream) Close() error {
	return s.conn.Close()
}
