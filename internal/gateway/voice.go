package gateway

import (
	"sort"
	"sync"
)

// voiceRooms is the in-memory participant set per group.
type voiceRooms struct {
	mu    sync.Mutex
	rooms map[int64]map[int64]struct{}
}

func newVoiceRooms() *voiceRooms {
	return &voiceRooms{rooms: make(map[int64]map[int64]struct{})}
}

func (v *voiceRooms) join(groupID, userID int64) ([]int64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	room := v.rooms[groupID]
	if room == nil {
		room = make(map[int64]struct{})
		v.rooms[groupID] = room
	}
	_, already := room[userID]
	room[userID] = struct{}{}
	return participants(room), !already
}

func (v *voiceRooms) leave(groupID, userID int64) ([]int64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	room := v.rooms[groupID]
	if _, ok := room[userID]; !ok {
		return participants(room), false
	}
	delete(room, userID)
	if len(room) == 0 {
		delete(v.rooms, groupID)
	}
	return participants(room), true
}

func participants(room map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(room))
	for id := range room {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
