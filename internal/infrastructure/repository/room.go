package repository

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hilthontt/votehub/internal/domain"
)

const defaultCapacity = 1000

// roomEntry serializes mutations of one room. evicted is set under mu so an
// Update that raced with eviction sees the room as gone.
type roomEntry struct {
	mu         sync.Mutex
	room       *domain.Room
	evicted    bool
	lastAccess atomic.Int64
}

func (e *roomEntry) touch(now time.Time) {
	e.lastAccess.Store(now.UnixNano())
}

type roomRepository struct {
	rooms          map[string]*roomEntry // code -> entry
	capacity       uint
	idleRoomExpiry time.Duration
	onEvict        []func(code string)
	now            func() time.Time
	mu             sync.RWMutex
}

// NewRoomRepository keeps rooms in memory. A zero capacity uses the default;
// a zero idleRoomExpiry disables idle eviction.
func NewRoomRepository(capacity uint, idleRoomExpiry time.Duration) domain.RoomRepository {
	return newRoomRepository(capacity, idleRoomExpiry, time.Now)
}

func newRoomRepository(capacity uint, idleRoomExpiry time.Duration, now func() time.Time) *roomRepository {
	if capacity == 0 {
		capacity = defaultCapacity
	}

	return &roomRepository{
		rooms:          make(map[string]*roomEntry),
		capacity:       capacity,
		idleRoomExpiry: idleRoomExpiry,
		now:            now,
	}
}

func (r *roomRepository) OnEvict(fn func(code string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEvict = append(r.onEvict, fn)
}

// evictLocked drops an entry. The caller holds r.mu for writing.
func (r *roomRepository) evictLocked(code string, entry *roomEntry) {
	delete(r.rooms, code)

	entry.mu.Lock()
	entry.evicted = true
	entry.mu.Unlock()
}

func (r *roomRepository) evictIdle() []string {
	if r.idleRoomExpiry <= 0 {
		return nil
	}

	cutoff := r.now().Add(-r.idleRoomExpiry).UnixNano()
	var evicted []string
	for code, entry := range r.rooms {
		if entry.lastAccess.Load() < cutoff {
			r.evictLocked(code, entry)
			evicted = append(evicted, code)
		}
	}
	return evicted
}

// enforceCapacity makes room for one more entry by dropping the
// least-recently accessed rooms.
func (r *roomRepository) enforceCapacity() []string {
	excess := len(r.rooms) - int(r.capacity) + 1
	if excess <= 0 {
		return nil
	}

	type candidate struct {
		code       string
		lastAccess int64
	}
	candidates := make([]candidate, 0, len(r.rooms))
	for code, entry := range r.rooms {
		candidates = append(candidates, candidate{code, entry.lastAccess.Load()})
	}
	slices.SortFunc(candidates, func(a, b candidate) int {
		switch {
		case a.lastAccess < b.lastAccess:
			return -1
		case a.lastAccess > b.lastAccess:
			return 1
		}
		return 0
	})

	evicted := make([]string, 0, excess)
	for _, c := range candidates[:excess] {
		r.evictLocked(c.code, r.rooms[c.code])
		evicted = append(evicted, c.code)
	}
	return evicted
}

func (r *roomRepository) notifyEvicted(codes []string, callbacks []func(string)) {
	for _, code := range codes {
		for _, fn := range callbacks {
			fn(code)
		}
	}
}

// Create stores the room if its code is free, evicting idle and
// least-recently used rooms first.
func (r *roomRepository) Create(ctx context.Context, room *domain.Room) error {
	if room == nil {
		return domain.ErrInvalidInput
	}
	code := domain.NormalizeRoomCode(room.Code)
	if code == "" {
		return domain.ErrInvalidInput
	}
	room.Code = code

	r.mu.Lock()
	evicted := r.evictIdle()

	if _, exists := r.rooms[code]; exists {
		callbacks := slices.Clone(r.onEvict)
		r.mu.Unlock()
		r.notifyEvicted(evicted, callbacks)
		return domain.ErrRoomAlreadyExists
	}

	evicted = append(evicted, r.enforceCapacity()...)

	entry := &roomEntry{room: room}
	entry.touch(r.now())
	r.rooms[code] = entry

	callbacks := slices.Clone(r.onEvict)
	r.mu.Unlock()

	r.notifyEvicted(evicted, callbacks)
	return nil
}

func (r *roomRepository) lookup(code string) (*roomEntry, error) {
	code = domain.NormalizeRoomCode(code)
	if code == "" {
		return nil, domain.ErrRoomNotFound
	}

	r.mu.RLock()
	entry, exists := r.rooms[code]
	r.mu.RUnlock()
	if !exists {
		return nil, domain.ErrRoomNotFound
	}

	entry.touch(r.now())
	return entry, nil
}

// GetByCode returns a deep copy of the room.
func (r *roomRepository) GetByCode(ctx context.Context, code string) (*domain.Room, error) {
	entry, err := r.lookup(code)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.evicted {
		return nil, domain.ErrRoomNotFound
	}
	return entry.room.Clone(), nil
}

func (r *roomRepository) Update(ctx context.Context, code string, fn func(room *domain.Room) error) error {
	entry, err := r.lookup(code)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.evicted {
		return domain.ErrRoomNotFound
	}
	return fn(entry.room)
}

func (r *roomRepository) Delete(ctx context.Context, code string) error {
	code = domain.NormalizeRoomCode(code)

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.rooms[code]
	if !exists {
		return domain.ErrRoomNotFound
	}
	r.evictLocked(code, entry)
	return nil
}

func (r *roomRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
