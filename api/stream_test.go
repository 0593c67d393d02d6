package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/coder/websocket"

	"github.com/lokeshjavvadi/Smart-taskhub-React/domain"
)

func waitForSubscriber(t *testing.T, s *testServer, channel string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for s.hub.SubscriberCount(channel) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("no subscriber joined %s", channel)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamProjectDeliversEvents(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.e)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/projects/p1/stream?token=bob", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %s", ct)
	}

	r := bufio.NewReader(resp.Body)
	if line, _ := r.ReadString('\n'); line != ": connected\n" {
		t.Fatalf("unexpected preamble %q", line)
	}
	waitForSubscriber(t, s, "p1")

	s.hub.Publish(context.Background(), "p1", domain.TaskDeleted{TaskID: "t1"})
	s.hub.Publish(context.Background(), "p2", domain.TaskDeleted{TaskID: "other"})
	s.hub.Publish(context.Background(), "p1", domain.TaskDeleted{TaskID: "t2"})

	var got []string
	for len(got) < 2 {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: "); ok {
			got = append(got, data)
		}
	}
	if got[0] != `{"type":"deleted","taskId":"t1"}` || got[1] != `{"type":"deleted","taskId":"t2"}` {
		t.Fatalf("unexpected events %v", got)
	}

	cancel()
	deadline := time.Now().Add(time.Second)
	for s.hub.SubscriberCount("p1") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber not removed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamProjectRequiresMembership(t *testing.T) {
	s := newTestServer(t)
	if rec := s.do(http.MethodGet, "/api/projects/p3/stream", "alice", ""); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/api/projects/p1/stream", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/api/projects/missing/ws", "alice", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func readSocketMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) map[string]any {
	t.Helper()
	rctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_, data, err := conn.Read(rctx)
	if err != nil {
		t.Fatalf("read socket: %v", err)
	}
	var msg map[string]any
	if err := sonic.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

func sendSocketMessage(t *testing.T, ctx context.Context, conn *websocket.Conn, msg socketMessage) {
	t.Helper()
	data, _ := sonic.Marshal(msg)
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write socket: %v", err)
	}
}

func TestProjectSocketJoinsRooms(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.e)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/projects/p1/ws?token=alice"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	if msg := readSocketMessage(t, ctx, conn); msg["type"] != msgJoined || msg["projectId"] != "p1" {
		t.Fatalf("unexpected greeting %v", msg)
	}

	sendSocketMessage(t, ctx, conn, socketMessage{Type: msgJoinProject, ProjectID: "p3"})
	if msg := readSocketMessage(t, ctx, conn); msg["type"] != msgError || msg["projectId"] != "p3" {
		t.Fatalf("expected join refusal, got %v", msg)
	}

	sendSocketMessage(t, ctx, conn, socketMessage{Type: msgJoinProject, ProjectID: "p2"})
	if msg := readSocketMessage(t, ctx, conn); msg["type"] != msgJoined || msg["projectId"] != "p2" {
		t.Fatalf("unexpected join reply %v", msg)
	}

	s.hub.Publish(context.Background(), "p3", domain.TaskDeleted{TaskID: "secret"})
	s.hub.Publish(context.Background(), "p2", domain.TaskCreated{Task: domain.Task{ID: "t2", Project: "p2"}})
	msg := readSocketMessage(t, ctx, conn)
	if msg["type"] != "created" {
		t.Fatalf("unexpected event %v", msg)
	}
	if task, _ := msg["task"].(map[string]any); task["id"] != "t2" {
		t.Fatalf("unexpected task %v", msg["task"])
	}

	sendSocketMessage(t, ctx, conn, socketMessage{Type: msgLeaveProject, ProjectID: "p1"})
	if msg := readSocketMessage(t, ctx, conn); msg["type"] != msgLeft {
		t.Fatalf("unexpected leave reply %v", msg)
	}
	if n := s.hub.SubscriberCount("p1"); n != 0 {
		t.Fatalf("expected p1 to be left, %d subscribers remain", n)
	}

	conn.Close(websocket.StatusNormalClosure, "")
	deadline := time.Now().Add(2 * time.Second)
	for s.hub.SubscriberCount("p2") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("socket subscriber not removed after close")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestProjectSocketRejectsBadMessages(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.e)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/projects/p1/ws?token=alice"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()
	readSocketMessage(t, ctx, conn)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "unknown type without project", raw: `{"type":"typing"}`, want: "unknown message type"},
		{name: "unknown type with project", raw: `{"type":"typing","projectId":"p1"}`, want: "unknown message type"},
		{name: "join without project", raw: `{"type":"join-project"}`, want: "projectId is required"},
		{name: "not json", raw: `join p2`, want: "invalid message"},
	}
	for _, tt := range tests {
		if err := conn.Write(ctx, websocket.MessageText, []byte(tt.raw)); err != nil {
			t.Fatalf("%s: write: %v", tt.name, err)
		}
		msg := readSocketMessage(t, ctx, conn)
		if msg["type"] != msgError || msg["message"] != tt.want {
			t.Fatalf("%s: unexpected reply %v", tt.name, msg)
		}
	}
}
