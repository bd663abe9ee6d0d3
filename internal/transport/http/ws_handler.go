package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"quizdesk/internal/app"
)

// WSHandler streams session views to a websocket and accepts answers from it.
type WSHandler struct {
	service  *app.QuizService
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, log logrus.FieldLogger) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

const (
	msgView   = "view"
	msgError  = "error"
	msgClosed = "closed"
)

// ServeWS upgrades the request and attaches it to an existing session.
// Dropping the connection leaves the session running; DELETE /sessions/{id}
// ends it, which also ends the stream.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}
	log := h.log.WithField("session", sessionID)

	updates, cancel, err := h.service.Subscribe(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage, 16)
	done := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	emit := func(msg outboundMessage) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.WithError(err).Debug("ws write error")
				return
			}
			if msg.Type == msgClosed {
				// unblocks the read loop below
				conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case view, ok := <-updates:
				if !ok {
					emit(outboundMessage{Type: msgClosed})
					return
				}
				if !emit(outboundMessage{Type: msgView, Payload: view}) {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerRequest
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				emit(outboundMessage{Type: msgError, Payload: errorResponse{Error: "invalid answer payload"}})
				continue
			}
			// the resulting view reaches the client through the subscription
			if _, err := h.service.SelectAnswer(r.Context(), sessionID, payload.QuestionIndex, payload.Key); err != nil {
				emit(outboundMessage{Type: msgError, Payload: errorResponse{Error: err.Error()}})
			}
		default:
			emit(outboundMessage{Type: msgError, Payload: errorResponse{Error: "unsupported message type"}})
		}
	}

	close(done)
	<-updatesDone
	close(send)
	<-writerDone
}
