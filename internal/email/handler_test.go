package email

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, capacity int) (*httptest.Server, *Outbox) {
	t.Helper()
	outbox := NewOutbox(capacity)
	h := NewHandler(outbox, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	mux.HandleFunc("POST /send", h.HandleSend)
	mux.HandleFunc("GET /outbox", h.HandleOutbox)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, outbox
}

func TestHandleSend(t *testing.T) {
	srv, outbox := newTestServer(t, 10)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", `{"to":"ada@example.com","subject":"Order placed","body":"hi"}`, http.StatusOK},
		{"bad address", `{"to":"ada","subject":"Order placed"}`, http.StatusBadRequest},
		{"no subject", `{"to":"ada@example.com","subject":" "}`, http.StatusBadRequest},
		{"not json", `nope`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/send", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			_ = resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}

	if got := len(outbox.Messages("")); got != 1 {
		t.Errorf("outbox has %d messages, want 1", got)
	}
}

func TestClientAndOutbox(t *testing.T) {
	srv, _ := newTestServer(t, 2)
	client := NewClient(srv.URL+"/", srv.Client())

	for _, subject := range []string{"first", "second", "third"} {
		if err := client.Send(context.Background(), Message{To: "Grace@example.com", Subject: subject}); err != nil {
			t.Fatalf("send %s: %v", subject, err)
		}
	}
	if err := client.Send(context.Background(), Message{To: "broken"}); err == nil {
		t.Error("expected error for invalid message")
	}

	resp, err := http.Get(srv.URL + "/outbox?to=grace@example.com")
	if err != nil {
		t.Fatalf("get outbox: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var sent []SentMessage
	if err := json.NewDecoder(resp.Body).Decode(&sent); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sent) != 2 || sent[0].Subject != "second" || sent[1].Subject != "third" {
		t.Errorf("outbox = %+v, want second and third", sent)
	}
}
