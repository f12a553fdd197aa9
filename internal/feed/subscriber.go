package feed

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	maxMessageSize = 512

	// sendBuffer bounds per-subscriber backlog. A subscriber that cannot
	// drain snapshots fast enough drops intermediate ones; the latest
	// snapshot is always a complete view so nothing is lost.
	sendBuffer = 16
)

// Subscriber is one open feed subscription. It is a cancellable listener:
// messages arrive on C until Close is called, after which Done is closed
// and the subscription is deregistered from the hub.
type Subscriber struct {
	hub   *Hub
	owner string

	send      chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

func newSubscriber(hub *Hub, owner string) *Subscriber {
	return &Subscriber{
		hub:   hub,
		owner: owner,
		send:  make(chan []byte, sendBuffer),
		done:  make(chan struct{}),
	}
}

// Owner returns the identity this subscription is scoped to
func (s *Subscriber) Owner() string {
	return s.owner
}

// C returns the channel of marshalled feed messages
func (s *Subscriber) C() <-chan []byte {
	return s.send
}

// Done is closed when the subscription has been torn down
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Close tears the subscription down. Safe to call more than once.
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() {
		s.hub.unsubscribe(s)
		close(s.done)
	})
}

// push enqueues a payload without blocking. When the buffer is full the
// oldest pending payload is dropped first: a newer snapshot supersedes it.
func (s *Subscriber) push(payload []byte) {
	select {
	case <-s.done:
		return
	default:
	}

	for {
		select {
		case s.send <- payload:
			return
		case <-s.done:
			return
		default:
			select {
			case <-s.send:
			default:
			}
		}
	}
}

// ServeConn pumps the subscription over a WebSocket connection and blocks
// until the peer disconnects or the subscription closes. It owns the
// connection and closes it on return.
func (s *Subscriber) ServeConn(conn *websocket.Conn) {
	defer s.Close()
	defer func() {
		_ = conn.Close()
	}()

	go s.writePump(conn)
	s.readPump(conn)
}

// readPump discards inbound frames; the feed is one-way. It exists to
// process control frames and detect disconnects.
func (s *Subscriber) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Subscriber) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload := <-s.send:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
