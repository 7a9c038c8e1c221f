package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/event-reservation/internal/model"
	"github.com/iliyamo/event-reservation/internal/queue"
)

// memDB is an in-memory stand-in for MySQL. Writes made inside Do are
// applied on commit; GetForUpdate behaves like SELECT ... FOR UPDATE SKIP
// LOCKED followed by an existence probe.
type memDB struct {
	mu           sync.Mutex
	events       map[uuid.UUID]model.Event
	reservations map[uuid.UUID]model.Reservation
	addresses    map[uuid.UUID]model.Address
	locks        map[uuid.UUID]*memTx
	lockMisses   int
	onLockMiss   func()
	plainReads   int
}

type memTx struct {
	locks []uuid.UUID
	ops   []func()
}

type memTxKey struct{}

func newMemDB() *memDB {
	return &memDB{
		events:       map[uuid.UUID]model.Event{},
		reservations: map[uuid.UUID]model.Reservation{},
		addresses:    map[uuid.UUID]model.Address{},
		locks:        map[uuid.UUID]*memTx{},
	}
}

func (db *memDB) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		return fn(ctx)
	}
	tx := &memTx{}
	err := fn(context.WithValue(ctx, memTxKey{}, tx))

	db.mu.Lock()
	defer db.mu.Unlock()
	if err == nil {
		for _, op := range tx.ops {
			op()
		}
	}
	for _, id := range tx.locks {
		delete(db.locks, id)
	}
	return err
}

func (db *memDB) write(ctx context.Context, op func()) {
	if tx, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		tx.ops = append(tx.ops, op)
		return
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	op()
}

// lockFor holds id's row lock on behalf of a foreign transaction.
func (db *memDB) lockFor(id uuid.UUID) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.locks[id] = &memTx{}
}

func (db *memDB) unlock(id uuid.UUID) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.locks, id)
}

func bare(e *model.Event) model.Event {
	return model.Event{
		ID: e.ID, MovieID: e.MovieID, AddressID: e.AddressID, OwnerID: e.OwnerID,
		Capacity: e.Capacity, StartDatetime: e.StartDatetime, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt,
	}
}

// hydrate builds an aggregate from committed rows. Callers hold db.mu.
func (db *memDB) hydrate(row model.Event) *model.Event {
	e := row
	var rs []model.Reservation
	for _, r := range db.reservations {
		if r.EventID == row.ID {
			rs = append(rs, r)
		}
	}
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].ID.String() < rs[j].ID.String()
		}
		return rs[i].CreatedAt.Before(rs[j].CreatedAt)
	})
	e.RestoreReservations(rs)
	return &e
}

func (db *memDB) seed(e *model.Event) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.events[e.ID] = bare(e)
	for _, r := range e.Reservations() {
		db.reservations[r.ID] = r
	}
}

func (db *memDB) Create(ctx context.Context, e *model.Event) error {
	row := bare(e)
	rs := e.Reservations()
	db.write(ctx, func() {
		db.events[row.ID] = row
		for _, r := range rs {
			db.reservations[r.ID] = r
		}
	})
	return nil
}

func (db *memDB) Update(ctx context.Context, e *model.Event) error {
	return db.Create(ctx, e)
}

func (db *memDB) Delete(ctx context.Context, id uuid.UUID) error {
	db.write(ctx, func() {
		delete(db.events, id)
		for rid, r := range db.reservations {
			if r.EventID == id {
				delete(db.reservations, rid)
			}
		}
	})
	return nil
}

func (db *memDB) GetByID(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.plainReads++
	row, ok := db.events[id]
	if !ok {
		return nil, model.ErrEventNotFound
	}
	return db.hydrate(row), nil
}

func (db *memDB) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	tx, ok := ctx.Value(memTxKey{}).(*memTx)
	if !ok {
		panic("GetForUpdate outside a transaction")
	}
	db.mu.Lock()
	row, exists := db.events[id]
	holder, held := db.locks[id]
	if held && holder != tx {
		db.lockMisses++
		hook := db.onLockMiss
		db.mu.Unlock()
		if hook != nil {
			hook()
		}
		if exists {
			return nil, model.ErrEventLocked
		}
		return nil, model.ErrEventNotFound
	}
	defer db.mu.Unlock()
	if !exists {
		return nil, model.ErrEventNotFound
	}
	if !held {
		db.locks[id] = tx
		tx.locks = append(tx.locks, id)
	}
	return db.hydrate(row), nil
}

func (db *memDB) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Event, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := []model.Event{}
	for _, e := range db.events {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (db *memDB) List(ctx context.Context, now time.Time, offset, limit int) ([]model.Event, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := []model.Event{}
	for _, e := range db.events {
		if e.StartDatetime.After(now) {
			out = append(out, *db.hydrate(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	if offset >= len(out) {
		return []model.Event{}, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (db *memDB) ListByAddresses(ctx context.Context, ids []uuid.UUID, now time.Time) ([]model.Event, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := []model.Event{}
	for _, e := range db.events {
		if want[e.AddressID] && e.StartDatetime.After(now) {
			out = append(out, *db.hydrate(e))
		}
	}
	return out, nil
}

// reservationsView adapts memDB to ReservationStore; the method names
// collide with the event side.
type reservationsView struct{ db *memDB }

func (v reservationsView) Create(ctx context.Context, r *model.Reservation) error {
	row := *r
	v.db.write(ctx, func() { v.db.reservations[row.ID] = row })
	return nil
}

func (v reservationsView) GetByID(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	r, ok := v.db.reservations[id]
	if !ok {
		return nil, model.ErrReservationNotFound
	}
	return &r, nil
}

func (v reservationsView) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Reservation, error) {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	out := []model.Reservation{}
	for _, r := range v.db.reservations {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (v reservationsView) Update(ctx context.Context, r *model.Reservation) error {
	return v.Create(ctx, r)
}

func (v reservationsView) count(eventID uuid.UUID) (seats int) {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	for _, r := range v.db.reservations {
		if r.EventID == eventID && r.Status.Active() {
			seats += r.Seats
		}
	}
	return seats
}

type addressesView struct{ db *memDB }

func (v addressesView) GetAddress(ctx context.Context, id uuid.UUID) (*model.Address, error) {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	a, ok := v.db.addresses[id]
	if !ok {
		return nil, model.ErrAddressNotFound
	}
	return &a, nil
}

// NearbyAddresses treats the radius as a box in degrees; precision is not
// what the service tests are about.
func (v addressesView) NearbyAddresses(ctx context.Context, lat, lon, radius float64) ([]model.Address, error) {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	out := []model.Address{}
	for _, a := range v.db.addresses {
		if abs(a.Latitude-lat) <= radius && abs(a.Longitude-lon) <= radius {
			out = append(out, a)
		}
	}
	return out, nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

type sentNote struct {
	to         uuid.UUID
	subject    string
	routingKey string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNote
}

func (n *recordingNotifier) Publish(msg queue.Notification, routingKey string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for user, p := range msg.UserParams {
		n.sent = append(n.sent, sentNote{to: uuid.MustParse(user), subject: p.Subject, routingKey: routingKey})
	}
}

func (n *recordingNotifier) recipients() []uuid.UUID {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]uuid.UUID, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.to)
	}
	return out
}
