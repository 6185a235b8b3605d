// Package transport abstracts the byte-exchange layer between the client
// daemon and a backend server behind a single Conn interface, so the rest
// of the system (supervisor, router, listener) never branches on which of
// the two interchangeable carriers — TCP or WebSocket — is in use.
package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/Fill84/RGPU-sub000/internal/wire"
)

// Conn is the raw frame-exchange interface implemented by each transport
// kind. It carries wire.Frame values, not bytes, because both transports
// already preserve message boundaries (TCP via the frame's own length
// prefix, WebSocket via its native message framing).
type Conn interface {
	WriteFrame(ctx context.Context, f wire.Frame) error
	ReadFrame(ctx context.Context) (wire.Frame, error)
	Close() error
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// Kind names a registered transport implementation.
type Kind string

const (
	KindTCP       Kind = "tcp"
	KindWebSocket Kind = "websocket"
)

// Dialer opens an outbound Conn of a given Kind.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Conn, error)
}

// Listener accepts inbound Conns of a given Kind.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Close() error
	Addr() net.Addr
}

var dialers = map[Kind]Dialer{}

// RegisterDialer makes a Dialer available under kind. Called from each
// transport implementation's init().
func RegisterDialer(kind Kind, d Dialer) {
	dialers[kind] = d
}

// DialKind dials addr using the Dialer registered for kind.
func DialKind(ctx context.Context, kind Kind, addr string) (Conn, error) {
	d, ok := dialers[kind]
	if !ok {
		return nil, fmt.Errorf("transport: no dialer registered for kind %q", kind)
	}
	return d.Dial(ctx, addr)
}

// ListenKind opens a Listener of the given Kind bound to addr.
func ListenKind(ctx context.Context, kind Kind, addr string) (Listener, error) {
	switch kind {
	case KindTCP:
		return ListenTCP(addr)
	case KindWebSocket:
		return ListenWebSocket(addr)
	default:
		return nil, fmt.Errorf("transport: unknown kind %q", kind)
	}
}

// ParseKind validates a config-supplied transport name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindTCP, KindWebSocket:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("transport: unknown kind %q", s)
	}
}
