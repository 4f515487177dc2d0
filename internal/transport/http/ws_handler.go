package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"eduquiz-service/internal/app"
	"eduquiz-service/internal/auth"
	"eduquiz-service/internal/domain"
	"github.com/gorilla/websocket"
)

// WSHandler routes inbound connection events to room operations and
// pumps the resulting broadcasts back out. It keeps no state beyond the
// per-connection subscription.
type WSHandler struct {
	service  *app.RoomService
	verifier *auth.Verifier
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.RoomService, verifier *auth.Verifier) *WSHandler {
	return &WSHandler{
		service:  service,
		verifier: verifier,
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

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type createRoomPayload struct {
	Questions []domain.Question `json:"questions"`
}

type createRoomFromSetPayload struct {
	SetID string `json:"setId"`
}

type joinRoomPayload struct {
	RoomID string `json:"roomId"`
}

type startQuizPayload struct {
	RoomID string `json:"roomId"`
}

type submitAnswerPayload struct {
	RoomID        string `json:"roomId"`
	QuestionIndex int    `json:"questionIndex"`
	AnswerIndex   int    `json:"answerIndex"`
}

type joinRoomSuccessPayload struct {
	RoomID string `json:"roomId"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServeWS authenticates the bearer token, upgrades the connection, and
// runs the event loop until the client goes away.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, err := h.verifier.Verify(bearerToken(r))
	if err != nil {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	// A connection is attached to at most one room at a time; attaching
	// to another room drops the previous subscription first.
	var (
		roomID    string
		cancelSub func()
		pumpDone  chan struct{}
	)

	detach := func() {
		if cancelSub == nil {
			return
		}
		cancelSub()
		<-pumpDone
		h.service.Release(ctx, roomID)
		roomID, cancelSub, pumpDone = "", nil, nil
	}

	attach := func(id string) error {
		detach()
		events, cancel, err := h.service.Subscribe(ctx, id)
		if err != nil {
			return err
		}
		roomID, cancelSub, pumpDone = id, cancel, make(chan struct{})
		go func(events <-chan app.Event, done chan struct{}) {
			defer close(done)
			for {
				select {
				case event, ok := <-events:
					if !ok {
						return
					}
					select {
					case send <- outboundMessage[any]{Type: event.Type, Payload: event.Payload}:
					case <-closeSignals:
						return
					}
				case <-closeSignals:
					return
				}
			}
		}(events, pumpDone)
		return nil
	}

	sendError := func(err error) {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{
			Code:    errorCode(err),
			Message: err.Error(),
		}}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		switch inbound.Type {
		case "createRoom":
			var payload createRoomPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendError(errBadPayload)
				continue
			}
			snapshot, err := h.service.CreateRoom(ctx, identity, payload.Questions)
			if err != nil {
				sendError(err)
				continue
			}
			if err := attach(snapshot.ID); err != nil {
				sendError(err)
				continue
			}
			send <- outboundMessage[any]{Type: "roomCreated", Payload: snapshot}

		case "createRoomFromSet":
			var payload createRoomFromSetPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendError(errBadPayload)
				continue
			}
			snapshot, err := h.service.CreateRoomFromSet(ctx, identity, payload.SetID)
			if err != nil {
				sendError(err)
				continue
			}
			if err := attach(snapshot.ID); err != nil {
				sendError(err)
				continue
			}
			send <- outboundMessage[any]{Type: "roomCreated", Payload: snapshot}

		case "joinRoom":
			var payload joinRoomPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendError(errBadPayload)
				continue
			}
			// Subscribe before joining so the joiner also sees their own
			// participantJoined broadcast.
			if err := attach(payload.RoomID); err != nil {
				sendError(err)
				continue
			}
			if _, err := h.service.Join(ctx, payload.RoomID, identity); err != nil {
				detach()
				sendError(err)
				continue
			}
			send <- outboundMessage[any]{Type: "joinRoomSuccess", Payload: joinRoomSuccessPayload{RoomID: payload.RoomID}}

		case "startQuiz":
			var payload startQuizPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendError(errBadPayload)
				continue
			}
			if err := h.service.Start(ctx, payload.RoomID, identity.UserID); err != nil {
				sendError(err)
			}

		case "submitAnswer":
			var payload submitAnswerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendError(errBadPayload)
				continue
			}
			if err := h.service.SubmitAnswer(ctx, payload.RoomID, identity.UserID, payload.QuestionIndex, payload.AnswerIndex); err != nil {
				sendError(err)
			}

		default:
			sendError(errUnsupportedType)
		}
	}

	close(closeSignals)
	detach()
	close(send)
	<-writerDone
}

var (
	errBadPayload      = errors.New("malformed event payload")
	errUnsupportedType = errors.New("unsupported event type")
)

// errorCode maps domain failures onto the wire-level error kinds the
// client distinguishes.
func errorCode(err error) string {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return "validationError"
	case errors.Is(err, domain.ErrRoomNotFound):
		return "roomNotFound"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalidState"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrNoParticipants):
		return "noParticipants"
	case errors.Is(err, domain.ErrParticipantNotFound):
		return "participantNotFound"
	case errors.Is(err, domain.ErrDuplicateSubmission):
		return "duplicateSubmission"
	case errors.Is(err, domain.ErrStaleSubmission):
		return "staleSubmission"
	case errors.Is(err, domain.ErrExpired):
		return "expired"
	case errors.Is(err, domain.ErrQuestionSetNotFound):
		return "questionSetNotFound"
	default:
		return "internal"
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
