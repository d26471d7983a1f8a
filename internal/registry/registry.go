// Package registry maps room identifiers to live matches.
//
// Rooms are spread over independently locked shards so that lifecycle
// operations on one room never wait on another shard, and no registry lock is
// held while a match's own guard is taken.
package registry

import (
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/park285/chessroom/internal/domain"
	"github.com/park285/chessroom/internal/match"
)

const shardCount = 32

// Record correlates a room's current match with its persistence record.
type Record struct {
	ID    string
	White string
	Black string
}

type entry struct {
	match  *match.Match
	record Record
}

type shard struct {
	mu    sync.RWMutex
	rooms map[string]*entry
}

type Registry struct {
	shards [shardCount]*shard
}

func New() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &shard{rooms: make(map[string]*entry)}
	}
	return r
}

func (r *Registry) shardFor(room string) *shard {
	return r.shards[xxhash.Sum64String(room)%shardCount]
}

func normalize(room string) (string, error) {
	room = strings.TrimSpace(room)
	if room == "" {
		return "", domain.ErrBadRoom
	}
	return room, nil
}

// Create inserts the match built by build unless the room already exists.
// build runs outside any lock and may be wasted if a concurrent Create wins.
func (r *Registry) Create(room string, build func(room string) *match.Match) (*match.Match, error) {
	room, err := normalize(room)
	if err != nil {
		return nil, err
	}
	sh := r.shardFor(room)

	sh.mu.RLock()
	_, exists := sh.rooms[room]
	sh.mu.RUnlock()
	if exists {
		return nil, domain.ErrRoomExists
	}

	m := build(room)

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, exists := sh.rooms[room]; exists {
		return nil, domain.ErrRoomExists
	}
	sh.rooms[room] = &entry{match: m}
	return m, nil
}

func (r *Registry) Get(room string) (*match.Match, error) {
	room, err := normalize(room)
	if err != nil {
		return nil, err
	}
	sh := r.shardFor(room)
	sh.mu.RLock()
	e, ok := sh.rooms[room]
	sh.mu.RUnlock()
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return e.match, nil
}

// Join seats player as black in room.
func (r *Registry) Join(room, player string) (domain.Color, *match.Match, error) {
	m, err := r.Get(room)
	if err != nil {
		return domain.NoColor, nil, err
	}
	color, err := m.Seat(player)
	if err != nil {
		return domain.NoColor, nil, err
	}
	return color, m, nil
}

// Remove detaches room from future lookups. Holders of the returned match may
// keep using it until they are done; nothing is torn down here.
func (r *Registry) Remove(room string) (*match.Match, Record, bool) {
	room, err := normalize(room)
	if err != nil {
		return nil, Record{}, false
	}
	sh := r.shardFor(room)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.rooms[room]
	if !ok {
		return nil, Record{}, false
	}
	delete(sh.rooms, room)
	return e.match, e.record, true
}

// BindRecord associates room with a persistence record. It returns false if
// the room is gone or now holds a different match.
func (r *Registry) BindRecord(room string, m *match.Match, record Record) bool {
	sh := r.shardFor(room)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.rooms[room]
	if !ok || e.match != m {
		return false
	}
	e.record = record
	return true
}

// SwapRecord binds record only while room holds m and its bound record id is
// still prev. Callers that read, mutate and rebind use it to detect a
// concurrent rebind.
func (r *Registry) SwapRecord(room string, m *match.Match, prev string, record Record) bool {
	sh := r.shardFor(room)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.rooms[room]
	if !ok || e.match != m || e.record.ID != prev {
		return false
	}
	e.record = record
	return true
}

// Record returns the record bound to room while it still holds m.
func (r *Registry) Record(room string, m *match.Match) (Record, bool) {
	sh := r.shardFor(room)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, ok := sh.rooms[room]
	if !ok || e.match != m || e.record.ID == "" {
		return Record{}, false
	}
	return e.record, true
}

// Holds reports whether room is still registered to m.
func (r *Registry) Holds(room string, m *match.Match) bool {
	sh := r.shardFor(room)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, ok := sh.rooms[room]
	return ok && e.match == m
}

// Snapshot lists the matches registered at the time of the call.
func (r *Registry) Snapshot() []*match.Match {
	var out []*match.Match
	for _, sh := range r.shards {
		sh.mu.RLock()
		for _, e := range sh.rooms {
			out = append(out, e.match)
		}
		sh.mu.RUnlock()
	}
	return out
}

func (r *Registry) Len() int {
	n := 0
	for _, sh := range r.shards {
		sh.mu.RLock()
		n += len(sh.rooms)
		sh.mu.RUnlock()
	}
	return n
}
