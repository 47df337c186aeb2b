// Package email is a stand-in mail service: it validates and records
// messages instead of delivering them.
package email

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"time"
)

type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type SentMessage struct {
	Message
	SentAt time.Time `json:"sent_at"`
}

// Outbox keeps the most recent messages, oldest dropped first.
type Outbox struct {
	mu       sync.Mutex
	messages []SentMessage
	capacity int
}

func NewOutbox(capacity int) *Outbox {
	return &Outbox{capacity: capacity}
}

func (o *Outbox) add(m SentMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, m)
	if over := len(o.messages) - o.capacity; over > 0 {
		o.messages = append([]SentMessage(nil), o.messages[over:]...)
	}
}

// Messages returns sent messages, optionally only those addressed to to.
func (o *Outbox) Messages(to string) []SentMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := []SentMessage{}
	for _, m := range o.messages {
		if to == "" || strings.EqualFold(m.To, to) {
			out = append(out, m)
		}
	}
	return out
}

type Handler struct {
	outbox *Outbox
	logger *slog.Logger
}

func NewHandler(outbox *Outbox, logger *slog.Logger) *Handler {
	return &Handler{
		outbox: outbox,
		logger: logger,
	}
}

type sendResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := mail.ParseAddress(msg.To); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid recipient address")
		return
	}
	if strings.TrimSpace(msg.Subject) == "" {
		h.writeError(w, http.StatusBadRequest, "subject is required")
		return
	}

	h.outbox.add(SentMessage{Message: msg, SentAt: time.Now().UTC()})
	h.logger.Info("email sent", "to", msg.To, "subject", msg.Subject)

	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent"})
}

func (h *Handler) HandleOutbox(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.outbox.Messages(r.URL.Query().Get("to")))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
