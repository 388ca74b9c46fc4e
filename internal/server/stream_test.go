package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNotesStreamEmitsNoteChanges(t *testing.T) {
	server := newTestServer(t, stubTokenValidator{tokens: map[string]string{"good": "reader"}})
	httpServer := httptest.NewServer(server.handler)
	defer httpServer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, httpServer.URL+"/notes/stream?access_token=good", nil)
	if err != nil {
		t.Fatalf("failed to build stream request: %v", err)
	}
	response, err := httpServer.Client().Do(request)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 stream, got %d", response.StatusCode)
	}
	if !strings.HasPrefix(response.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("unexpected content type %q", response.Header.Get("Content-Type"))
	}

	deadline := time.Now().Add(2 * time.Second)
	for server.realtime.SubscriberCount("reader") == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("stream never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	created := server.do(http.MethodPost, "/notes", `{"title":"Grace","content":"c"}`, "Authorization", "Bearer good")
	if created.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", created.Code)
	}
	note := decodeNote(t, created.Body.Bytes())

	reader := bufio.NewReader(response.Body)
	var eventName string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("stream ended before note change: %v", err)
		}
		line = strings.TrimSpace(line)
		if name, ok := strings.CutPrefix(line, "event:"); ok {
			eventName = name
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok || eventName != RealtimeEventNoteChanged {
			continue
		}
		var event noteChangeEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			t.Fatalf("failed to decode event payload: %v", err)
		}
		if event.Operation != "create" || len(event.NoteIDs) != 1 || event.NoteIDs[0] != note.ID {
			t.Fatalf("unexpected event %#v", event)
		}
		if event.Source != realtimeSource {
			t.Fatalf("unexpected event source %q", event.Source)
		}
		return
	}
}

func TestNotesStreamIgnoresOtherSubjects(t *testing.T) {
	server := newTestServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	messages, cleanup := server.realtime.Subscribe(ctx, "someone-else")
	defer cleanup()

	if response := server.do(http.MethodPost, "/notes", `{"title":"t","content":"c"}`); response.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", response.Code)
	}
	select {
	case message := <-messages:
		t.Fatalf("unexpected message for another subject: %#v", message)
	case <-time.After(50 * time.Millisecond):
	}
}
