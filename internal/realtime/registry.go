package realtime

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Freeeeeet/campus_lending/internal/model"
)

// Member is anything that can sit in a room and receive encoded events
type Member interface {
	ID() string
	Deliver(msg []byte) error
}

// Registry tracks room membership. A member can be in the admin room and in
// at most one borrower room at a time.
type Registry struct {
	mu           sync.RWMutex
	rooms        map[string]map[string]Member   // room -> member id -> member
	memberRooms  map[string]map[string]struct{} // member id -> rooms
	borrowerRoom map[string]string              // member id -> its borrower room
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:        make(map[string]map[string]Member),
		memberRooms:  make(map[string]map[string]struct{}),
		borrowerRoom: make(map[string]string),
	}
}

func (r *Registry) JoinAdmin(m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.join(m, model.AdminRoom)
}

func (r *Registry) LeaveAdmin(m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leave(m.ID(), model.AdminRoom)
}

// JoinBorrower moves m into the room of one borrower, leaving the previous
// borrower room if any. Returns the room key.
func (r *Registry) JoinBorrower(m Member, kind model.BorrowerKind, borrowerID string) (string, error) {
	borrowerID = strings.TrimSpace(borrowerID)
	if !kind.Valid() || borrowerID == "" {
		return "", fmt.Errorf("invalid borrower %q/%q", kind, borrowerID)
	}
	room := model.BorrowerRoom(kind, borrowerID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.borrowerRoom[m.ID()]; ok && prev != room {
		r.leave(m.ID(), prev)
	}
	r.join(m, room)
	r.borrowerRoom[m.ID()] = room

	return room, nil
}

func (r *Registry) LeaveBorrower(m Member, kind model.BorrowerKind, borrowerID string) {
	room := model.BorrowerRoom(kind, strings.TrimSpace(borrowerID))

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.borrowerRoom[m.ID()] == room {
		r.leave(m.ID(), room)
	}
}

// Remove drops m from every room, called when its connection closes
func (r *Registry) Remove(m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.memberRooms[m.ID()] {
		r.leave(m.ID(), room)
	}
}

// MembersOf returns a snapshot of the members of room
func (r *Registry) MembersOf(room string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]Member, 0, len(r.rooms[room]))
	for _, m := range r.rooms[room] {
		members = append(members, m)
	}
	return members
}

// RoomsOf returns the rooms of member id, sorted
func (r *Registry) RoomsOf(memberID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]string, 0, len(r.memberRooms[memberID]))
	for room := range r.memberRooms[memberID] {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

// Count returns the number of members in room
func (r *Registry) Count(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

func (r *Registry) join(m Member, room string) {
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[string]Member)
	}
	r.rooms[room][m.ID()] = m

	if r.memberRooms[m.ID()] == nil {
		r.memberRooms[m.ID()] = make(map[string]struct{})
	}
	r.memberRooms[m.ID()][room] = struct{}{}
}

func (r *Registry) leave(memberID, room string) {
	if members, ok := r.rooms[room]; ok {
		delete(members, memberID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}

	if rooms, ok := r.memberRooms[memberID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.memberRooms, memberID)
		}
	}

	if r.borrowerRoom[memberID] == room {
		delete(r.borrowerRoom, memberID)
	}
}
