// room/room.go
package room

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// MaxParticipants is the capacity of every room.
const MaxParticipants = 2

// Status is derived from the participant count.
type Status int

const (
	StatusWaiting Status = iota + 1
	StatusActive
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusActive:
		return "active"
	default:
		return "unknown"
	}
}

// Participant is the identity of one side of a room, copied at join time.
type Participant struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
}

// Room is a two-party session. Participants are kept in join order.
type Room struct {
	ID           string
	Participants []Participant
	CreatedAt    time.Time
}

func (r *Room) Status() Status {
	if len(r.Participants) >= MaxParticipants {
		return StatusActive
	}
	return StatusWaiting
}

func (r *Room) Has(handle string) bool {
	return lo.ContainsBy(r.Participants, func(p Participant) bool {
		return p.Handle == handle
	})
}

// Participant returns the snapshot recorded for handle.
func (r *Room) Participant(handle string) (Participant, bool) {
	return lo.Find(r.Participants, func(p Participant) bool {
		return p.Handle == handle
	})
}

// Others lists every participant except the one with handle.
func (r *Room) Others(handle string) []Participant {
	return lo.Filter(r.Participants, func(p Participant, _ int) bool {
		return p.Handle != handle
	})
}

// Admit checks whether p may join. It does not modify the room.
func (r *Room) Admit(p Participant) error {
	switch {
	case len(r.Participants) == 0:
		return ErrRoomEmpty
	case len(r.Participants) >= MaxParticipants:
		return ErrRoomFull
	case r.Has(p.Handle):
		return ErrAlreadyInRoom
	}
	return nil
}

// Clone returns a copy that shares nothing with r.
func (r *Room) Clone() *Room {
	return &Room{
		ID:           r.ID,
		Participants: slices.Clone(r.Participants),
		CreatedAt:    r.CreatedAt,
	}
}

// Store owns every room. Rooms handed out are copies; all changes go
// through Store methods.
type Store struct {
	rooms  map[string]*Room
	issued map[string]struct{}
	newID  func() string
	mutex  sync.RWMutex
}

func NewStore() *Store {
	return &Store{
		rooms:  make(map[string]*Room),
		issued: make(map[string]struct{}),
		newID:  uuid.NewString,
	}
}

// Create opens a room with creator as its only participant. The id has
// never been issued by this store before.
func (s *Store) Create(creator Participant) *Room {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	id := s.newID()
	for {
		if _, used := s.issued[id]; !used {
			break
		}
		id = s.newID()
	}
	s.issued[id] = struct{}{}

	room := &Room{
		ID:           id,
		Participants: []Participant{creator},
		CreatedAt:    time.Now(),
	}
	s.rooms[id] = room
	return room.Clone()
}

// Join appends p to the room if it is admitted. The store is left
// unchanged on error.
func (s *Store) Join(id string, p Participant) (*Room, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	room, exists := s.rooms[id]
	if !exists {
		return nil, ErrRoomNotFound
	}
	if err := room.Admit(p); err != nil {
		return nil, err
	}
	room.Participants = append(room.Participants, p)
	return room.Clone(), nil
}

func (s *Store) Get(id string) (*Room, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	room, exists := s.rooms[id]
	if !exists {
		return nil, ErrRoomNotFound
	}
	return room.Clone(), nil
}

// Delete removes the room and returns its last state.
func (s *Store) Delete(id string) (*Room, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	room, exists := s.rooms[id]
	if !exists {
		return nil, false
	}
	delete(s.rooms, id)
	return room, true
}

// FindByHandle scans all rooms for one that lists handle as a participant.
func (s *Store) FindByHandle(handle string) (*Room, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, room := range s.rooms {
		if room.Has(handle) {
			return room.Clone(), true
		}
	}
	return nil, false
}

// List returns copies of all rooms, oldest first.
func (s *Store) List() []*Room {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rooms := make([]*Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room.Clone())
	}
	slices.SortFunc(rooms, func(a, b *Room) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return rooms
}

func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.rooms)
}
