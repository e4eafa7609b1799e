// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

func dial(t *testing.T, server *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, resp, err
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var frame map[string]json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return frame
}

func frameType(t *testing.T, frame map[string]json.RawMessage) string {
	t.Helper()
	var typ string
	if err := json.Unmarshal(frame["type"], &typ); err != nil {
		t.Fatal(err)
	}
	return typ
}

func TestHandlerBroadcastRoundTrip(t *testing.T) {
	hub, _ := startHub(t)
	server := httptest.NewServer(Handler(hub, nil))
	defer server.Close()

	conn, _, err := dial(t, server, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitClients(t, hub, 1)

	hub.BroadcastPendingCount(7)
	frame := readFrame(t, conn)
	if typ := frameType(t, frame); typ != MessageTypePendingCount {
		t.Fatalf("type = %q", typ)
	}
	var data PendingCountData
	if err := json.Unmarshal(frame["data"], &data); err != nil {
		t.Fatal(err)
	}
	if data.Count != 7 {
		t.Errorf("count = %d, want 7", data.Count)
	}
}

func TestClientAnswersPing(t *testing.T) {
	hub, _ := startHub(t)
	server := httptest.NewServer(Handler(hub, nil))
	defer server.Close()

	conn, _, err := dial(t, server, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`not json`)); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatal(err)
	}
	if typ := frameType(t, readFrame(t, conn)); typ != MessageTypePong {
		t.Errorf("type = %q, want pong", typ)
	}
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub, _ := startHub(t)
	server := httptest.NewServer(Handler(hub, nil))
	defer server.Close()

	conn, _, err := dial(t, server, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitClients(t, hub, 1)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	waitClients(t, hub, 0)
}

func TestHandlerCheckOrigin(t *testing.T) {
	hub, _ := startHub(t)
	allowOnly := func(r *http.Request) bool {
		return r.Header.Get("Origin") == "http://allowed.example"
	}
	server := httptest.NewServer(Handler(hub, allowOnly))
	defer server.Close()

	tests := []struct {
		name    string
		origin  string
		wantErr bool
	}{
		{"allowed origin", "http://allowed.example", false},
		{"foreign origin", "http://evil.example", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{"Origin": []string{tt.origin}}
			conn, resp, err := dial(t, server, header)
			if tt.wantErr {
				if err == nil {
					conn.Close()
					t.Fatal("expected handshake failure")
				}
				if resp == nil || resp.StatusCode != http.StatusForbidden {
					t.Errorf("expected 403 response, got %v", resp)
				}
				return
			}
			if err != nil {
				t.Fatalf("dial: %v", err)
			}
			conn.Close()
		})
	}
}

func TestHubShutdownClosesConnections(t *testing.T) {
	hub, cancel := startHub(t)
	server := httptest.NewServer(Handler(hub, nil))
	defer server.Close()

	conn, _, err := dial(t, server, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitClients(t, hub, 1)

	cancel()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to close after hub shutdown")
	}
}

func TestClientIDsIncrease(t *testing.T) {
	hub := NewHub()
	a := NewClient(hub, nil)
	b := NewClient(hub, nil)
	if b.ID() <= a.ID() {
		t.Errorf("ids not increasing: %d then %d", a.ID(), b.ID())
	}
}

func TestKeepaliveTiming(t *testing.T) {
	if pingPeriod >= pongWait {
		t.Errorf("pingPeriod %v must be shorter than pongWait %v", pingPeriod, pongWait)
	}
}
