package realtime

import (
	"sync"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

// Hub tracks which local sinks are subscribed to which chat groups.
// A user may hold several sinks at once.
type Hub struct {
	log *logger.Logger

	mu        sync.RWMutex
	sinks     map[string]Sink
	userSinks map[int64]map[string]Sink
	rooms     map[int64]map[string]Sink
	sinkRooms map[string]map[int64]struct{}
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:       log.With("component", "RoomHub"),
		sinks:     make(map[string]Sink),
		userSinks: make(map[int64]map[string]Sink),
		rooms:     make(map[int64]map[string]Sink),
		sinkRooms: make(map[string]map[int64]struct{}),
	}
}

func (h *Hub) Register(s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks[s.ID()] = s
	us := h.userSinks[s.UserID()]
	if us == nil {
		us = make(map[string]Sink)
		h.userSinks[s.UserID()] = us
	}
	us[s.ID()] = s
	if h.sinkRooms[s.ID()] == nil {
		h.sinkRooms[s.ID()] = make(map[int64]struct{})
	}
}

// Unregister drops the sink from every room and returns the rooms it was in.
func (h *Hub) Unregister(s Sink) []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	var rooms []int64
	for g := range h.sinkRooms[s.ID()] {
		rooms = append(rooms, g)
		h.leaveLocked(g, s.ID())
	}
	delete(h.sinkRooms, s.ID())
	delete(h.sinks, s.ID())
	if us := h.userSinks[s.UserID()]; us != nil {
		delete(us, s.ID())
		if len(us) == 0 {
			delete(h.userSinks, s.UserID())
		}
	}
	return rooms
}

// Join reports whether the sink was newly added to the room.
func (h *Hub) Join(groupID int64, s Sink) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sinks[s.ID()]; !ok {
		return false
	}
	room := h.rooms[groupID]
	if room == nil {
		room = make(map[string]Sink)
		h.rooms[groupID] = room
	}
	if _, already := room[s.ID()]; already {
		return false
	}
	room[s.ID()] = s
	h.sinkRooms[s.ID()][groupID] = struct{}{}
	return true
}

// Leave reports whether the sink was in the room.
func (h *Hub) Leave(groupID int64, s Sink) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leaveLocked(groupID, s.ID())
}

func (h *Hub) leaveLocked(groupID int64, sinkID string) bool {
	room := h.rooms[groupID]
	if _, ok := room[sinkID]; !ok {
		return false
	}
	delete(room, sinkID)
	if len(room) == 0 {
		delete(h.rooms, groupID)
	}
	if sr := h.sinkRooms[sinkID]; sr != nil {
		delete(sr, groupID)
	}
	return true
}

func (h *Hub) InRoom(groupID int64, s Sink) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[groupID][s.ID()]
	return ok
}

// UserConnectionsInRoom counts the user's local sinks joined to the group.
func (h *Hub) UserConnectionsInRoom(groupID, userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, s := range h.rooms[groupID] {
		if s.UserID() == userID {
			n++
		}
	}
	return n
}

// SinksForUserInRoom lists the user's local sinks joined to the group.
func (h *Hub) SinksForUserInRoom(groupID, userID int64) []Sink {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []Sink
	for _, s := range h.rooms[groupID] {
		if s.UserID() == userID {
			out = append(out, s)
		}
	}
	return out
}

// Broadcast delivers payload to every sink in the room and returns the
// delivered count. Send failures are logged; the sink closes itself.
func (h *Hub) Broadcast(groupID int64, payload []byte) int {
	h.mu.RLock()
	targets := make([]Sink, 0, len(h.rooms[groupID]))
	for _, s := range h.rooms[groupID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		if err := s.Send(payload); err != nil {
			h.log.Warn("dropping frame", "group_id", groupID, "connection_id", s.ID(), "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

func (h *Hub) SendToUser(userID int64, payload []byte) int {
	h.mu.RLock()
	targets := make([]Sink, 0, len(h.userSinks[userID]))
	for _, s := range h.userSinks[userID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		if s.Send(payload) == nil {
			delivered++
		}
	}
	return delivered
}
