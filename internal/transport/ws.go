package transport

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Fill84/RGPU-sub000/internal/wire"
)

func init() {
	RegisterDialer(KindWebSocket, wsDialer{})
}

type wsDialer struct{}

func (wsDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/rgpu"}
	d := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	c, _, err := d.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return newWSConn(c), nil
}

// wsConn carries wire.Frame values as individual binary WebSocket messages:
// one WriteFrame call maps to exactly one WriteMessage call, so the
// transport relies on the WebSocket protocol's own message boundaries
// instead of the frame's length prefix (still present on the wire for
// parity with the TCP transport, but redundant here).
type wsConn struct {
	conn *websocket.Conn

	writeMu sync.Mutex
}

func newWSConn(c *websocket.Conn) *wsConn {
	return &wsConn{conn: c}
}

func (c *wsConn) WriteFrame(ctx context.Context, f wire.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	var buf bytes.Buffer
	if err := wire.WriteFrame(&buf, f); err != nil {
		return err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(dl)
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, buf.Bytes())
}

func (c *wsConn) ReadFrame(ctx context.Context) (wire.Frame, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(dl)
	}
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return wire.Frame{}, err
	}
	return wire.ReadFrame(bytes.NewReader(data))
}

func (c *wsConn) Close() error         { return c.conn.Close() }
func (c *wsConn) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *wsConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

var upgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 32 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsListener adapts an http.Server accepting WebSocket upgrades into the
// Listener interface: Accept blocks on a channel fed by the HTTP handler.
type wsListener struct {
	addr    net.Addr
	srv     *http.Server
	ln      net.Listener
	accept  chan Conn
	closeCh chan struct{}
}

// ListenWebSocket starts an HTTP server at addr that upgrades every
// request on "/rgpu" to a WebSocket connection.
func ListenWebSocket(addr string) (Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	l := &wsListener{
		addr:    ln.Addr(),
		ln:      ln,
		accept:  make(chan Conn, 16),
		closeCh: make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/rgpu", l.handleUpgrade)
	l.srv = &http.Server{Handler: mux}
	go l.srv.Serve(ln)
	return l, nil
}

func (l *wsListener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	select {
	case l.accept <- newWSConn(c):
	case <-l.closeCh:
		c.Close()
	}
}

func (l *wsListener) Accept(ctx context.Context) (Conn, error) {
	select {
	case c := <-l.accept:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closeCh:
		return nil, net.ErrClosed
	}
}

func (l *wsListener) Close() error {
	close(l.closeCh)
	return l.srv.Close()
}

func (l *wsListener) Addr() net.Addr { return l.addr }
