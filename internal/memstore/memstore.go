// Package memstore keeps every record in process memory. It backs
// DATABASE_DRIVER=memory and the service tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/design"
	designentity "github.com/ovaphlow/pitchfork/service-shop-go/internal/design/entity"
	orderentity "github.com/ovaphlow/pitchfork/service-shop-go/internal/order/entity"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/store"
	storeentity "github.com/ovaphlow/pitchfork/service-shop-go/internal/store/entity"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/user"
	userentity "github.com/ovaphlow/pitchfork/service-shop-go/internal/user/entity"
)

// Store holds all tables behind one lock.
type Store struct {
	mu sync.RWMutex
	// Now stamps created_at / updated_at and session expiry checks.
	Now func() time.Time

	seq      int64
	users    map[int64]*userentity.User
	sessions map[string]auth.RefreshSession
	stores   map[int64]*storeentity.Store
	designs  map[int64]*designentity.Design
	orders   map[int64]*orderentity.Order
	events   map[string]int64
}

func New() *Store {
	return &Store{
		Now:      time.Now,
		users:    map[int64]*userentity.User{},
		sessions: map[string]auth.RefreshSession{},
		stores:   map[int64]*storeentity.Store{},
		designs:  map[int64]*designentity.Design{},
		orders:   map[int64]*orderentity.Order{},
		events:   map[string]int64{},
	}
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

// Users returns a view of the store implementing user.Repository.
func (s *Store) Users() *Users { return &Users{s} }

// Sessions returns a view implementing auth.SessionRepository.
func (s *Store) Sessions() *Sessions { return &Sessions{s} }

// Stores returns a view implementing store.Repository.
func (s *Store) Stores() *Stores { return &Stores{s} }

// Designs returns a view implementing design.Repository.
func (s *Store) Designs() *Designs { return &Designs{s} }

// Orders returns a view implementing order.Repository and
// payment.OrderStore.
func (s *Store) Orders() *Orders { return &Orders{s} }

// Ledger returns a view implementing payment.EventLedger.
func (s *Store) Ledger() *Ledger { return &Ledger{s} }

// Users

type Users struct{ s *Store }

func (r *Users) Count() int {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.users)
}

func (r *Users) Create(_ context.Context, u *userentity.User) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ex := range r.s.users {
		if ex.Email == u.Email {
			return 0, user.ErrDuplicateEmail
		}
	}
	row := *u
	row.ID = r.s.nextID()
	row.CreatedAt = r.s.Now()
	row.UpdatedAt = row.CreatedAt
	r.s.users[row.ID] = &row
	u.ID = row.ID
	return row.ID, nil
}

func (r *Users) GetByEmail(_ context.Context, email string) (*userentity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (r *Users) GetByID(_ context.Context, id int64) (*userentity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *Users) UpdatePassword(_ context.Context, id int64, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return user.ErrUserNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = r.s.Now()
	return nil
}

func (r *Users) SetActive(_ context.Context, id int64, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return user.ErrUserNotFound
	}
	u.IsActive = active
	u.UpdatedAt = r.s.Now()
	return nil
}

// Delete removes an identity and its sessions, as ON DELETE CASCADE would.
func (r *Users) Delete(id int64) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.users, id)
	for k, v := range r.s.sessions {
		if v.UserID == id {
			delete(r.s.sessions, k)
		}
	}
}

// Sessions

type Sessions struct{ s *Store }

func (r *Sessions) Count() int {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.sessions)
}

func (r *Sessions) Save(_ context.Context, rs auth.RefreshSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.sessions[rs.ID] = rs
	return nil
}

func (r *Sessions) Consume(_ context.Context, jti string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rs, ok := r.s.sessions[jti]
	if !ok {
		return false, nil
	}
	delete(r.s.sessions, jti)
	return rs.ExpiresAt.After(r.s.Now()), nil
}

func (r *Sessions) DeleteByUser(_ context.Context, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, v := range r.s.sessions {
		if v.UserID == userID {
			delete(r.s.sessions, k)
		}
	}
	return nil
}

// Stores

type Stores struct{ s *Store }

func (r *Stores) Create(_ context.Context, st *storeentity.Store) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ex := range r.s.stores {
		if ex.Slug == st.Slug {
			return 0, store.ErrSlugTaken
		}
	}
	row := *st
	row.ID = r.s.nextID()
	row.CreatedAt = r.s.Now()
	row.UpdatedAt = row.CreatedAt
	r.s.stores[row.ID] = &row
	st.ID = row.ID
	return row.ID, nil
}

func (r *Stores) GetByID(_ context.Context, id int64) (*storeentity.Store, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := r.s.stores[id]
	if !ok {
		return nil, store.ErrStoreNotFound
	}
	cp := *st
	return &cp, nil
}

func (r *Stores) GetBySlug(_ context.Context, slug string) (*storeentity.Store, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, st := range r.s.stores {
		if st.Slug == slug {
			cp := *st
			return &cp, nil
		}
	}
	return nil, store.ErrStoreNotFound
}

func (r *Stores) ListByUser(_ context.Context, userID int64) ([]*storeentity.Store, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*storeentity.Store{}
	for _, st := range r.s.stores {
		if st.UserID == userID {
			cp := *st
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Stores) Update(_ context.Context, st *storeentity.Store) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.stores[st.ID]
	if !ok {
		return store.ErrStoreNotFound
	}
	for id, ex := range r.s.stores {
		if id != st.ID && ex.Slug == st.Slug {
			return store.ErrSlugTaken
		}
	}
	row := *st
	row.UserID = cur.UserID
	row.IsActive = cur.IsActive
	row.CreatedAt = cur.CreatedAt
	row.UpdatedAt = r.s.Now()
	r.s.stores[st.ID] = &row
	return nil
}

// Delete cascades to the store's design and orders.
func (r *Stores) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.stores[id]; !ok {
		return store.ErrStoreNotFound
	}
	delete(r.s.stores, id)
	delete(r.s.designs, id)
	for oid, o := range r.s.orders {
		if o.StoreID == id {
			delete(r.s.orders, oid)
		}
	}
	return nil
}

func (r *Stores) SlugTaken(_ context.Context, slug string, excludeID int64) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for id, st := range r.s.stores {
		if id != excludeID && st.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (r *Stores) SetLogo(_ context.Context, id int64, logoURL string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.stores[id]
	if !ok {
		return store.ErrStoreNotFound
	}
	st.LogoURL = &logoURL
	st.UpdatedAt = r.s.Now()
	return nil
}

// Designs, keyed by store id

type Designs struct{ s *Store }

func (r *Designs) GetByStore(_ context.Context, storeID int64) (*designentity.Design, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.designs[storeID]
	if !ok {
		return nil, design.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *Designs) Create(_ context.Context, d *designentity.Design) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.designs[d.StoreID]; ok {
		return nil
	}
	row := *d
	row.ID = r.s.nextID()
	row.CreatedAt = r.s.Now()
	row.UpdatedAt = row.CreatedAt
	r.s.designs[d.StoreID] = &row
	return nil
}

func (r *Designs) Update(_ context.Context, d *designentity.Design, expected int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.designs[d.StoreID]
	if !ok || cur.Version != expected {
		return 0, nil
	}
	cur.DesignData = d.DesignData
	cur.Theme = d.Theme
	cur.CustomCSS = d.CustomCSS
	cur.IsPublished = d.IsPublished
	cur.UpdatedAt = r.s.Now()
	return 1, nil
}

func (r *Designs) Publish(_ context.Context, storeID int64) (*designentity.Design, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.designs[storeID]
	if !ok {
		d = designentity.NewDesign(storeID)
		d.ID = r.s.nextID()
		d.CreatedAt = r.s.Now()
		r.s.designs[storeID] = d
	} else {
		d.Version++
	}
	d.IsPublished = true
	d.UpdatedAt = r.s.Now()
	cp := *d
	return &cp, nil
}

// Orders

type Orders struct{ s *Store }

func copyOrder(o *orderentity.Order) *orderentity.Order {
	cp := *o
	cp.Items = append([]orderentity.Item{}, o.Items...)
	return &cp
}

func (r *Orders) Create(_ context.Context, o *orderentity.Order) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.Now()
	o.ID = r.s.nextID()
	o.CreatedAt = now
	o.UpdatedAt = now
	for i := range o.Items {
		o.Items[i].ID = r.s.nextID()
		o.Items[i].OrderID = o.ID
		o.Items[i].CreatedAt = now
	}
	r.s.orders[o.ID] = copyOrder(o)
	return o.ID, nil
}

func (r *Orders) Get(_ context.Context, id int64) (*orderentity.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, orderentity.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (r *Orders) ListByStore(_ context.Context, storeID int64) ([]*orderentity.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*orderentity.Order{}
	for _, o := range r.s.orders {
		if o.StoreID == storeID {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *Orders) SetPayment(_ context.Context, id int64, method, paymentID, confirmationURL string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return orderentity.ErrOrderNotFound
	}
	o.PaymentMethod = &method
	o.PaymentID = &paymentID
	if confirmationURL != "" {
		o.ConfirmationURL = &confirmationURL
	}
	o.UpdatedAt = r.s.Now()
	return nil
}

// transitionLocked applies t to an unpaid order. The caller holds mu.
func (s *Store) transitionLocked(id int64, t orderentity.PaymentTransition) bool {
	o, ok := s.orders[id]
	if !ok || o.PaymentStatus != orderentity.PaymentUnpaid {
		return false
	}
	o.PaymentStatus = t.PaymentStatus
	if o.Status == orderentity.StatusPending {
		o.Status = t.Status
	}
	if t.CancelReason != "" {
		reason := t.CancelReason
		o.PaymentCancelReason = &reason
	}
	o.UpdatedAt = s.Now()
	return true
}

// Ledger

type Ledger struct{ s *Store }

// ApplyOnce fails without side effects when ctx is already done, the way a
// rolled back transaction would.
func (r *Ledger) ApplyOnce(ctx context.Context, key string, orderID int64, t orderentity.PaymentTransition) (bool, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return false, false, err
	}
	if _, ok := r.s.events[key]; ok {
		return false, false, nil
	}
	r.s.events[key] = orderID
	return true, r.s.transitionLocked(orderID, t), nil
}

func (r *Ledger) Count() int {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.events)
}
