package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wfunc/chessrelay/lobby"
	"github.com/wfunc/chessrelay/logger"
	"github.com/wfunc/chessrelay/network"
	"github.com/wfunc/chessrelay/session"
)

var errUnknownEvent = errors.New("unknown event")

type usernameRequest struct {
	Name string `json:"name"`
}

type joinRoomRequest struct {
	RoomID string `json:"roomId"`
}

type moveRequest struct {
	Room string          `json:"room" validate:"required"`
	Move json.RawMessage `json:"move"`
}

type closeRoomRequest struct {
	RoomID string `json:"roomId" validate:"required"`
}

// handleMessage decodes msg on the caller's goroutine and queues the
// resulting step on the dispatcher.
func (s *GameServer) handleMessage(sess *session.Session, msg *network.Message) {
	received := time.Now()
	s.monitor.IncMessagesReceived(msg.Event)

	step, err := s.route(sess, msg)
	if err != nil {
		logger.Log.Warnf("Session %s: dropping %s: %v", sess.GetID(), msg.Event, err)
		return
	}

	err = s.dispatcher.Submit(func() {
		step()
		s.monitor.ObserveMessageLatency(time.Since(received))
	})
	if err != nil {
		logger.Log.Warnf("Session %s: %s not handled: %v", sess.GetID(), msg.Event, err)
	}
}

func (s *GameServer) route(sess *session.Session, msg *network.Message) (func(), error) {
	switch msg.Event {
	case network.EventUsername:
		var req usernameRequest
		if err := s.bind(msg, &req); err != nil {
			return nil, err
		}
		return func() { s.sessions.SetDisplayName(sess.GetID(), req.Name) }, nil

	case network.EventCreateRoom:
		return func() {
			roomID := s.lobby.CreateRoom(sess)
			s.reply(sess, msg.Ack, roomID)
		}, nil

	case network.EventJoinRoom:
		var req joinRoomRequest
		if err := s.bind(msg, &req); err != nil {
			return nil, err
		}
		return func() {
			state, err := s.lobby.JoinRoom(sess, req.RoomID)
			if err != nil {
				s.reply(sess, msg.Ack, lobby.NewJoinError(err))
				return
			}
			s.reply(sess, msg.Ack, state)
		}, nil

	case network.EventMove:
		var req moveRequest
		if err := s.bind(msg, &req); err != nil {
			return nil, err
		}
		return func() { s.lobby.Relay(sess, req.Room, req.Move) }, nil

	case network.EventCloseRoom:
		var req closeRoomRequest
		if err := s.bind(msg, &req); err != nil {
			return nil, err
		}
		return func() { s.lobby.CloseRoom(req.RoomID, session.HandleOf(sess)) }, nil

	default:
		return nil, fmt.Errorf("%w %q", errUnknownEvent, msg.Event)
	}
}

func (s *GameServer) bind(msg *network.Message, v any) error {
	if err := msg.Bind(v); err != nil {
		return err
	}
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", msg.Event, err)
	}
	return nil
}

// reply answers the request when the client asked for one.
func (s *GameServer) reply(sess *session.Session, ack *uint64, payload any) {
	if ack == nil {
		return
	}
	if err := sess.Reply(*ack, payload); err != nil {
		logger.Log.Warnf("Session %s: %v", sess.GetID(), err)
	}
}
