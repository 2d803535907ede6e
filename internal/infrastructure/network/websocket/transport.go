package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/tdex-network/tdex-p2p/internal/core/ports"
	"github.com/tdex-network/tdex-p2p/pkg/circuitbreaker"
	"github.com/tdex-network/tdex-p2p/pkg/wire"
)

const (
	// MaxMessageSize is the max size of an encoded envelope.
	MaxMessageSize = wire.MaxEnvelopeSize

	writeTimeout     = 10 * time.Second
	handshakeTimeout = 10 * time.Second
)

// EnvelopeHandler processes the envelopes received from other peers.
type EnvelopeHandler interface {
	HandleEnvelope(ctx context.Context, env wire.Envelope)
}

// Transport is a ports.Messenger exchanging envelopes over websocket
// connections. It's also the http.Handler accepting the connections of
// other peers. Connections are kept open and reused in both directions.
type Transport struct {
	address  string
	dialer   *websocket.Dialer
	upgrader websocket.Upgrader

	lock     *sync.Mutex
	conns    map[string]*peerConn
	breakers map[string]*gobreaker.CircuitBreaker
	handler  EnvelopeHandler
	closed   bool
}

type peerConn struct {
	peer string
	conn *websocket.Conn
	lock sync.Mutex
}

func (c *peerConn) write(buf []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, buf)
}

// NewTransport returns a transport for the node with the given multiaddress.
func NewTransport(address string) (*Transport, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	return &Transport{
		address: addr,
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
			Proxy:            http.ProxyFromEnvironment,
		},
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeTimeout,
		},
		lock:     &sync.Mutex{},
		conns:    make(map[string]*peerConn),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}, nil
}

var _ ports.Messenger = (*Transport)(nil)

// SetHandler sets the handler of the inbound envelopes. It must be called
// before serving any connection.
func (t *Transport) SetHandler(handler EnvelopeHandler) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.handler = handler
}

func (t *Transport) Address() string {
	return t.address
}

// Send delivers the envelope to the peer, dialing it if not already
// connected. Every peer has its own circuit breaker so that an unreachable
// peer doesn't slow down the others.
func (t *Transport) Send(ctx context.Context, peer string, env wire.Envelope) error {
	buf, err := wire.EncodeEnvelope(env)
	if err != nil {
		return err
	}
	if len(buf) > MaxMessageSize {
		return fmt.Errorf("message exceeds max size of %d bytes", MaxMessageSize)
	}

	cb, err := t.breaker(peer)
	if err != nil {
		return err
	}
	_, err = cb.Execute(func() (interface{}, error) {
		conn, err := t.getConn(ctx, peer)
		if err != nil {
			return nil, err
		}
		if err := conn.write(buf); err != nil {
			t.dropConn(conn)
			return nil, err
		}
		return nil, nil
	})
	return err
}

// ServeHTTP upgrades the connection of a peer. The peer is identified by
// the sender of its first envelope, after which the connection is reused
// to send messages back to it.
func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != Path {
		http.NotFound(w, r)
		return
	}
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Debug("failed to upgrade peer connection")
		return
	}
	go t.readLoop(&peerConn{conn: conn})
}

// Close closes all connections. Sending after closing fails.
func (t *Transport) Close() {
	t.lock.Lock()
	t.closed = true
	conns := t.conns
	t.conns = make(map[string]*peerConn)
	t.lock.Unlock()

	for _, c := range conns {
		c.conn.Close()
	}
}

func (t *Transport) breaker(peer string) (*gobreaker.CircuitBreaker, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.closed {
		return nil, fmt.Errorf("transport closed")
	}
	cb, ok := t.breakers[peer]
	if !ok {
		cb = circuitbreaker.NewCircuitBreaker(peer)
		t.breakers[peer] = cb
	}
	return cb, nil
}

func (t *Transport) getConn(ctx context.Context, peer string) (*peerConn, error) {
	t.lock.Lock()
	c, ok := t.conns[peer]
	t.lock.Unlock()
	if ok {
		return c, nil
	}

	url, err := ToURL(peer)
	if err != nil {
		return nil, err
	}
	conn, _, err := t.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", peer, err)
	}
	c = &peerConn{peer: peer, conn: conn}

	t.lock.Lock()
	if t.closed {
		t.lock.Unlock()
		conn.Close()
		return nil, fmt.Errorf("transport closed")
	}
	// Another goroutine might have connected in the meanwhile.
	if existing, ok := t.conns[peer]; ok {
		t.lock.Unlock()
		conn.Close()
		return existing, nil
	}
	t.conns[peer] = c
	t.lock.Unlock()

	go t.readLoop(c)
	log.Debugf("connected to peer %s", peer)
	return c, nil
}

func (t *Transport) dropConn(c *peerConn) {
	t.lock.Lock()
	if c.peer != "" && t.conns[c.peer] == c {
		delete(t.conns, c.peer)
	}
	t.lock.Unlock()
	c.conn.Close()
}

func (t *Transport) readLoop(c *peerConn) {
	defer t.dropConn(c)
	c.conn.SetReadLimit(MaxMessageSize)

	for {
		_, buf, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err, websocket.CloseGoingAway, websocket.CloseNormalClosure,
			) {
				log.WithError(err).Debugf("connection with %s dropped", c.peer)
			}
			return
		}

		env, err := wire.DecodeEnvelope(buf)
		if err != nil {
			log.WithError(err).Warn("discarding malformed envelope")
			continue
		}
		if c.peer == "" {
			t.bindInbound(c, env.Sender)
		}

		t.lock.Lock()
		handler := t.handler
		t.lock.Unlock()
		if handler == nil {
			log.Warnf("no handler for %s from %s", env.Kind, env.Sender)
			continue
		}
		handler.HandleEnvelope(context.Background(), *env)
	}
}

// bindInbound registers an inbound connection as the one to use to reach
// the sender, unless already connected to it.
func (t *Transport) bindInbound(c *peerConn, sender string) {
	if _, err := ParseAddress(sender); err != nil {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()
	if _, ok := t.conns[sender]; ok || t.closed {
		return
	}
	c.peer = sender
	t.conns[sender] = c
}
