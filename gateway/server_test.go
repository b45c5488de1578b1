// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/paracord-chat/fedcheck/lib/testutil"
)

// fakeGateway is a minimal Paracord gateway for tests.
type fakeGateway struct {
	t      *testing.T
	server *httptest.Server

	// hello is the raw HELLO frame sent on connect.
	hello string

	// skipReady suppresses the READY dispatch after IDENTIFY.
	skipReady bool

	// ackHeartbeats answers every heartbeat with op 11.
	ackHeartbeats bool

	origins    chan string
	tokens     chan string
	heartbeats chan struct{}
	conns      chan *gatewayConn

	mu   sync.Mutex
	open []*gatewayConn
}

type gatewayConn struct {
	t  *testing.T
	mu sync.Mutex
	ws *websocket.Conn
}

func newFakeGateway(t *testing.T, configure func(*fakeGateway)) *fakeGateway {
	t.Helper()
	gateway := &fakeGateway{
		t:          t,
		hello:      `{"op":10,"d":{"heartbeat_interval":10000}}`,
		origins:    make(chan string, 8),
		tokens:     make(chan string, 8),
		heartbeats: make(chan struct{}, 64),
		conns:      make(chan *gatewayConn, 8),
	}
	if configure != nil {
		configure(gateway)
	}
	gateway.server = httptest.NewServer(http.HandlerFunc(gateway.handle))
	t.Cleanup(gateway.server.Close)
	t.Cleanup(func() {
		gateway.mu.Lock()
		defer gateway.mu.Unlock()
		for _, conn := range gateway.open {
			conn.ws.Close()
		}
	})
	return gateway
}

// URL returns the ws:// URL of the gateway endpoint.
func (g *fakeGateway) URL() string {
	return "ws" + strings.TrimPrefix(g.server.URL, "http") + "/gateway"
}

// next returns the server side of the next handshaken connection.
func (g *fakeGateway) next() *gatewayConn {
	g.t.Helper()
	return testutil.RequireReceive(g.t, g.conns, 5*time.Second, "gateway connection")
}

func (g *fakeGateway) handle(w http.ResponseWriter, r *http.Request) {
	g.origins <- r.Header.Get("Origin")
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.t.Errorf("upgrade: %v", err)
		return
	}
	conn := &gatewayConn{t: g.t, ws: ws}
	g.mu.Lock()
	g.open = append(g.open, conn)
	g.mu.Unlock()
	defer ws.Close()

	conn.sendRaw(g.hello)
	if g.skipReady {
		g.conns <- conn
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var received struct {
			Op   int             `json:"op"`
			Data json.RawMessage `json:"d"`
		}
		if err := json.Unmarshal(data, &received); err != nil {
			g.t.Errorf("client sent invalid JSON: %s", data)
			return
		}
		switch received.Op {
		case OpIdentify:
			var identify identifyData
			if err := json.Unmarshal(received.Data, &identify); err != nil {
				g.t.Errorf("IDENTIFY payload: %v", err)
			}
			g.tokens <- identify.Token
			if !g.skipReady {
				conn.dispatch(EventReady, 1, map[string]any{"session_id": "s-1"})
				g.conns <- conn
			}
		case OpHeartbeat:
			if string(received.Data) != "null" {
				g.t.Errorf("heartbeat d = %s, want null", received.Data)
			}
			g.heartbeats <- struct{}{}
			if g.ackHeartbeats {
				conn.sendRaw(`{"op":11}`)
			}
		}
	}
}

func (c *gatewayConn) sendRaw(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		c.t.Logf("server write: %v", err)
	}
}

func (c *gatewayConn) dispatch(eventType string, sequence int64, data any) {
	encoded, err := json.Marshal(map[string]any{"op": OpDispatch, "t": eventType, "s": sequence, "d": data})
	if err != nil {
		c.t.Errorf("marshal dispatch: %v", err)
		return
	}
	c.sendRaw(string(encoded))
}

// drop closes the connection without a close frame.
func (c *gatewayConn) drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.UnderlyingConn().Close()
}
