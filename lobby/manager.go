package lobby

import (
	"encoding/json"

	"go.uber.org/multierr"

	"github.com/wfunc/chessrelay/broadcast"
	"github.com/wfunc/chessrelay/logger"
	"github.com/wfunc/chessrelay/network"
	"github.com/wfunc/chessrelay/room"
	"github.com/wfunc/chessrelay/session"
)

// Room removal causes.
const (
	CauseClosed     = "closed"
	CauseDisconnect = "disconnect"
	CauseLeft       = "left"
)

// Recorder receives lobby activity. *monitor.Monitor implements it.
type Recorder interface {
	SetActiveRooms(count int)
	AddMovesRelayed(n int)
	IncJoinFailures(reason string)
	IncDeliveryFailures(n int)
	IncRoomsClosed(cause string)
}

type nopRecorder struct{}

func (nopRecorder) SetActiveRooms(int)      {}
func (nopRecorder) AddMovesRelayed(int)     {}
func (nopRecorder) IncJoinFailures(string)  {}
func (nopRecorder) IncDeliveryFailures(int) {}
func (nopRecorder) IncRoomsClosed(string)   {}

// Manager drives the room lifecycle: create, join, close and cleanup on
// disconnect. Its methods are not safe for concurrent use; run them
// through a Dispatcher.
type Manager struct {
	rooms    *room.Store
	sessions *session.Manager
	notifier *broadcast.Notifier
	recorder Recorder
}

// NewManager wires a manager over rooms and sessions. recorder may be nil.
func NewManager(rooms *room.Store, sessions *session.Manager, recorder Recorder) *Manager {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Manager{
		rooms:    rooms,
		sessions: sessions,
		notifier: broadcast.NewNotifier(sessions),
		recorder: recorder,
	}
}

func participantOf(s *session.Session) room.Participant {
	return room.Participant{Handle: session.HandleOf(s), DisplayName: s.DisplayName()}
}

// CreateRoom opens a waiting room with s as its only participant and
// returns its id. A session already in a room leaves it first.
func (m *Manager) CreateRoom(s *session.Session) string {
	m.leave(s)

	r := m.rooms.Create(participantOf(s))
	s.RoomID = r.ID
	m.recorder.SetActiveRooms(m.rooms.Len())

	logger.Log.Infof("Session %s created room %s", s.GetID(), r.ID)
	return r.ID
}

// JoinRoom adds s as the second participant of roomID. On failure the
// store and the session are left untouched and the error is one of
// room.ErrRoomNotFound, room.ErrRoomEmpty, room.ErrRoomFull or
// room.ErrAlreadyInRoom.
func (m *Manager) JoinRoom(s *session.Session, roomID string) (*RoomState, error) {
	p := participantOf(s)

	target, err := m.rooms.Get(roomID)
	if err == nil {
		err = target.Admit(p)
	}
	if err != nil {
		m.recorder.IncJoinFailures(failureReason(err))
		logger.Log.Infof("Session %s could not join room %s: %v", s.GetID(), roomID, err)
		return nil, err
	}

	m.leave(s)

	r, err := m.rooms.Join(roomID, p)
	if err != nil {
		m.recorder.IncJoinFailures(failureReason(err))
		return nil, err
	}
	s.RoomID = r.ID
	logger.Log.Infof("Session %s joined room %s", s.GetID(), roomID)

	state := stateOf(r)
	m.notify(r, p.Handle, network.EventOpponentJoined, state)
	return &state, nil
}

// CloseRoom removes roomID and tells every participant but initiator.
// Closing a room that no longer exists does nothing.
func (m *Manager) CloseRoom(roomID, initiator string) {
	r, ok := m.rooms.Delete(roomID)
	if !ok {
		logger.Log.Debugf("Close of unknown room %s ignored", roomID)
		return
	}
	m.detach(r)
	m.recorder.SetActiveRooms(m.rooms.Len())
	m.recorder.IncRoomsClosed(CauseClosed)
	logger.Log.Infof("Room %s closed by %q", roomID, initiator)

	m.notify(r, initiator, network.EventCloseRoom, RoomRef{RoomID: roomID})
}

// HandleDisconnect ends the session of whatever room s was in. The peer,
// if any, gets playerDisconnected; the room is deleted either way.
func (m *Manager) HandleDisconnect(s *session.Session) {
	r, ok := m.rooms.FindByHandle(session.HandleOf(s))
	if !ok {
		return
	}
	m.end(r, s, CauseDisconnect)
}

// Relay forwards payload unmodified as a move to every other participant
// of roomID and returns how many received it. Moves for unknown rooms or
// from non-participants are dropped.
func (m *Manager) Relay(s *session.Session, roomID string, payload json.RawMessage) int {
	r, err := m.rooms.Get(roomID)
	if err != nil {
		logger.Log.Debugf("Move from %s for unknown room %s dropped", s.GetID(), roomID)
		return 0
	}
	if !r.Has(session.HandleOf(s)) {
		logger.Log.Warnf("Session %s sent a move to room %s it is not in", s.GetID(), roomID)
		return 0
	}

	res := m.notify(r, session.HandleOf(s), network.EventMove, payload)
	m.recorder.AddMovesRelayed(res.Sent)
	return res.Sent
}

// Rooms returns a copy of every room, oldest first.
func (m *Manager) Rooms() []*room.Room {
	return m.rooms.List()
}

func (m *Manager) RoomCount() int {
	return m.rooms.Len()
}

// leave ends the room s is currently associated with, if any.
func (m *Manager) leave(s *session.Session) {
	if s.RoomID == "" {
		return
	}
	r, err := m.rooms.Get(s.RoomID)
	if err != nil {
		s.RoomID = ""
		return
	}
	m.end(r, s, CauseLeft)
}

// end deletes r after s departed and informs whoever is left.
func (m *Manager) end(r *room.Room, s *session.Session, cause string) {
	handle := session.HandleOf(s)
	departed, ok := r.Participant(handle)
	if !ok {
		departed = participantOf(s)
	}

	m.rooms.Delete(r.ID)
	m.detach(r)
	m.recorder.SetActiveRooms(m.rooms.Len())
	m.recorder.IncRoomsClosed(cause)
	logger.Log.Infof("Session %s left room %s (%s), room removed", handle, r.ID, cause)

	if len(r.Others(handle)) > 0 {
		m.notify(r, handle, network.EventPlayerDisconnected, departed)
	}
}

// detach clears the routing association of every participant of r.
func (m *Manager) detach(r *room.Room) {
	for _, p := range r.Participants {
		if s, ok := m.sessions.Get(p.Handle); ok && s.RoomID == r.ID {
			s.RoomID = ""
		}
	}
}

func (m *Manager) notify(r *room.Room, except, event string, payload any) broadcast.Result {
	res := m.notifier.Notify(r, except, event, payload)
	if res.Err != nil {
		m.recorder.IncDeliveryFailures(len(multierr.Errors(res.Err)))
	}
	return res
}
