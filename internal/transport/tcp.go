package transport

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"github.com/Fill84/RGPU-sub000/internal/wire"
)

var zeroTime time.Time

func init() {
	RegisterDialer(KindTCP, tcpDialer{})
}

type tcpDialer struct{}

func (tcpDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return newTCPConn(c), nil
}

// tcpConn wraps a net.Conn, serializing frame writes and buffering reads.
// dittofs's RPC transport serializes one writer goroutine per connection
// the same way (internal/protocol/nfs/rpc); here every WriteFrame call
// takes the same lock so concurrent request/heartbeat writers never
// interleave a frame header with another frame's payload.
type tcpConn struct {
	conn net.Conn
	r    *bufio.Reader

	writeMu sync.Mutex
}

func newTCPConn(c net.Conn) *tcpConn {
	return &tcpConn{conn: c, r: wire.NewFrameReader(c)}
}

func (c *tcpConn) WriteFrame(ctx context.Context, f wire.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(dl)
		defer c.conn.SetWriteDeadline(zeroTime)
	}
	return wire.WriteFrame(c.conn, f)
}

func (c *tcpConn) ReadFrame(ctx context.Context) (wire.Frame, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(dl)
		defer c.conn.SetReadDeadline(zeroTime)
	}
	return wire.ReadFrame(c.r)
}

func (c *tcpConn) Close() error            { return c.conn.Close() }
func (c *tcpConn) LocalAddr() net.Addr     { return c.conn.LocalAddr() }
func (c *tcpConn) RemoteAddr() net.Addr    { return c.conn.RemoteAddr() }

// tcpListener wraps a net.Listener.
type tcpListener struct {
	ln net.Listener
}

// ListenTCP binds addr for the backend's plain-TCP accept loop.
func ListenTCP(addr string) (Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &tcpListener{ln: ln}, nil
}

func (l *tcpListener) Accept(ctx context.Context) (Conn, error) {
	c, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return newTCPConn(c), nil
}

func (l *tcpListener) Close() error   { return l.ln.Close() }
func (l *tcpListener) Addr() net.Addr { return l.ln.Addr() }
