package chatroom

import (
	"sync"
	"time"

	"golang.org/x/exp/slices"
)

// State holds the chat rooms of one player and the room being shown.
// Every change replaces the room slice, so a slice returned by Rooms is
// never modified afterwards.
type State struct {
	mu       sync.RWMutex
	rooms    []ChatRoom
	activeID string
}

func NewState(rooms []ChatRoom) *State {
	return &State{rooms: slices.Clone(rooms)}
}

func (s *State) Rooms() []ChatRoom {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.rooms
}

func (s *State) Room(id string) (ChatRoom, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return FindByID(s.rooms, id)
}

// AppendOrUpdateRoom replaces the room with the same id or appends room.
func (s *State) AppendOrUpdateRoom(room ChatRoom) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := slices.Clone(s.rooms)
	if i := slices.IndexFunc(updated, func(r ChatRoom) bool { return r.ID == room.ID }); i >= 0 {
		updated[i] = room
	} else {
		updated = append(updated, room)
	}
	s.rooms = updated
}

func (s *State) SetActiveRoom(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeID = id
}

func (s *State) ActiveRoomID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.activeID
}

func (s *State) ActiveRoom() (ChatRoom, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.activeID == "" {
		return ChatRoom{}, false
	}

	return FindByID(s.rooms, s.activeID)
}

// AddMessage appends a message to the room and returns the updated room.
func (s *State) AddMessage(roomID, text string, sender Sender, ts time.Time) (ChatRoom, Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated, msg, err := AppendMessage(s.rooms, roomID, text, sender, ts)
	if err != nil {
		return ChatRoom{}, Message{}, err
	}
	s.rooms = updated

	room, _ := FindByID(updated, roomID)
	return room, msg, nil
}

// DeleteRoom removes the room. When it was the active room the first
// remaining room becomes active, or none if the list is empty. The active
// room id after the removal is returned.
func (s *State) DeleteRoom(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := FindByID(s.rooms, id); !ok {
		return s.activeID, ErrRoomNotFound
	}

	s.rooms = DeleteByID(s.rooms, id)
	if s.activeID == id {
		s.activeID = ""
		if len(s.rooms) > 0 {
			s.activeID = s.rooms[0].ID
		}
	}

	return s.activeID, nil
}

// Reset drops every room, used when another video is loaded.
func (s *State) Reset(rooms []ChatRoom) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rooms = slices.Clone(rooms)
	s.activeID = ""
}
