package room

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = Participant{Handle: "h-alice", DisplayName: "alice"}
	bob   = Participant{Handle: "h-bob", DisplayName: "bob"}
	carol = Participant{Handle: "h-carol", DisplayName: "carol"}
)

func TestStore_CreateAndGet(t *testing.T) {
	store := NewStore()

	created := store.Create(alice)
	require.NotNil(t, created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, []Participant{alice}, created.Participants)
	assert.Equal(t, StatusWaiting, created.Status())

	got, err := store.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Participants, got.Participants)
	assert.Equal(t, 1, store.Len())
}

func TestStore_CreateNeverReusesIDs(t *testing.T) {
	store := NewStore()
	ids := []string{"dup", "dup", "dup", "fresh"}
	store.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	first := store.Create(alice)
	assert.Equal(t, "dup", first.ID)

	// a deleted id stays issued
	_, ok := store.Delete(first.ID)
	require.True(t, ok)

	second := store.Create(bob)
	assert.Equal(t, "fresh", second.ID)
}

func TestStore_CreateUniqueIDs(t *testing.T) {
	store := NewStore()
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		r := store.Create(Participant{Handle: fmt.Sprintf("h%d", i)})
		require.False(t, seen[r.ID], "id %s issued twice", r.ID)
		seen[r.ID] = true
	}
}

func TestStore_Join(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(s *Store) string
		joiner  Participant
		wantErr error
		wantLen int
	}{
		{
			name:    "second player joins",
			setup:   func(s *Store) string { return s.Create(alice).ID },
			joiner:  bob,
			wantLen: 2,
		},
		{
			name:    "unknown room",
			setup:   func(s *Store) string { s.Create(alice); return "nope" },
			joiner:  bob,
			wantErr: ErrRoomNotFound,
		},
		{
			name: "full room",
			setup: func(s *Store) string {
				id := s.Create(alice).ID
				_, err := s.Join(id, bob)
				require.NoError(t, err)
				return id
			},
			joiner:  carol,
			wantErr: ErrRoomFull,
			wantLen: 2,
		},
		{
			name: "member rejoins full room",
			setup: func(s *Store) string {
				id := s.Create(alice).ID
				_, err := s.Join(id, bob)
				require.NoError(t, err)
				return id
			},
			joiner:  bob,
			wantErr: ErrRoomFull,
			wantLen: 2,
		},
		{
			name:    "creator joins own room",
			setup:   func(s *Store) string { return s.Create(alice).ID },
			joiner:  alice,
			wantErr: ErrAlreadyInRoom,
			wantLen: 1,
		},
		{
			name: "empty room entry",
			setup: func(s *Store) string {
				s.rooms["ghost"] = &Room{ID: "ghost"}
				return "ghost"
			},
			joiner:  bob,
			wantErr: ErrRoomEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore()
			id := tt.setup(store)
			before := store.List()

			r, err := store.Join(id, tt.joiner)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, r)
				assert.Equal(t, before, store.List(), "failed join must not mutate the store")
				return
			}
			require.NoError(t, err)
			assert.Len(t, r.Participants, tt.wantLen)
			assert.Equal(t, StatusActive, r.Status())
			assert.Equal(t, tt.joiner, r.Participants[len(r.Participants)-1])
		})
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	store := NewStore()
	created := store.Create(alice)
	created.Participants[0].DisplayName = "mallory"
	created.Participants = append(created.Participants, carol)

	got, err := store.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, []Participant{alice}, got.Participants)
}

func TestStore_Delete(t *testing.T) {
	store := NewStore()
	id := store.Create(alice).ID

	removed, ok := store.Delete(id)
	require.True(t, ok)
	assert.Equal(t, id, removed.ID)

	_, ok = store.Delete(id)
	assert.False(t, ok)

	_, err := store.Get(id)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.Zero(t, store.Len())
}

func TestStore_FindByHandle(t *testing.T) {
	store := NewStore()
	r1 := store.Create(alice)
	_, err := store.Join(r1.ID, bob)
	require.NoError(t, err)
	r2 := store.Create(carol)

	found, ok := store.FindByHandle(bob.Handle)
	require.True(t, ok)
	assert.Equal(t, r1.ID, found.ID)

	found, ok = store.FindByHandle(carol.Handle)
	require.True(t, ok)
	assert.Equal(t, r2.ID, found.ID)

	_, ok = store.FindByHandle("nobody")
	assert.False(t, ok)
}

func TestStore_ListOrdered(t *testing.T) {
	store := NewStore()
	first := store.Create(alice)
	time.Sleep(time.Millisecond)
	second := store.Create(bob)

	rooms := store.List()
	require.Len(t, rooms, 2)
	assert.Equal(t, first.ID, rooms[0].ID)
	assert.Equal(t, second.ID, rooms[1].ID)
}

func TestRoom_Others(t *testing.T) {
	r := &Room{ID: "r", Participants: []Participant{alice, bob}}

	assert.Equal(t, []Participant{bob}, r.Others(alice.Handle))
	assert.Equal(t, []Participant{alice, bob}, r.Others(""))

	p, ok := r.Participant(bob.Handle)
	require.True(t, ok)
	assert.Equal(t, bob, p)

	_, ok = r.Participant(carol.Handle)
	assert.False(t, ok)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "waiting", StatusWaiting.String())
	assert.Equal(t, "active", StatusActive.String())
	assert.Equal(t, "unknown", Status(0).String())
}
