package condo

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps the condominium domain in process memory. It backs tests
// and local runs without a database; the Add* methods seed fixtures.
type MemoryStore struct {
	mu sync.RWMutex

	nextID        int64
	condos        map[int64]Condominium
	units         map[int64]HousingUnit
	people        map[int64]ResidentContact
	residents     map[int64]Resident
	expenses      []Expense
	fines         []Fine
	payments      []Payment
	spaces        map[int64]CommonSpace
	reservations  map[int64]Reservation
	announcements []Announcement
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		condos:       make(map[int64]Condominium),
		units:        make(map[int64]HousingUnit),
		people:       make(map[int64]ResidentContact),
		residents:    make(map[int64]Resident),
		spaces:       make(map[int64]CommonSpace),
		reservations: make(map[int64]Reservation),
	}
}

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *MemoryStore) AddCondominium(c Condominium) Condominium {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		c.ID = m.id()
	}
	m.condos[c.ID] = c
	return c
}

// AddPerson registers a user so units, announcements and payments can
// resolve names. Residents also show up in ListResidents.
func (m *MemoryStore) AddPerson(p ResidentContact, resident bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.people[p.ID] = p
	if resident {
		m.residents[p.ID] = Resident{ID: p.ID, FullName: p.Name, Email: p.Email}
	}
}

func (m *MemoryStore) AddUnit(u HousingUnit) HousingUnit {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == 0 {
		u.ID = m.id()
	}
	if c, ok := m.condos[u.CondominiumID]; ok {
		u.CondominiumName = c.Name
	}
	u.ResidentIDs = append([]int64(nil), u.ResidentIDs...)
	m.units[u.ID] = u
	for _, rid := range u.ResidentIDs {
		if r, ok := m.residents[rid]; ok {
			r.Units = append(r.Units, UnitRef{ID: u.ID, Number: u.Number, Condominium: u.CondominiumName})
			m.residents[rid] = r
		}
	}
	return u
}

func (m *MemoryStore) AddExpense(e Expense) Expense {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == 0 {
		e.ID = m.id()
	}
	if e.Status == "" {
		e.Status = ExpensePending
	}
	e.UnitNumber = m.units[e.UnitID].Number
	m.expenses = append(m.expenses, e)
	return e
}

func (m *MemoryStore) AddPayment(p Payment) Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		p.ID = m.id()
	}
	p.UserName = m.people[p.UserID].Name
	for _, e := range m.expenses {
		if e.ID == p.ExpenseID {
			p.UnitNumber = e.UnitNumber
			p.ExpenseMonth, p.ExpenseYear, p.ExpenseStatus = e.Month, e.Year, e.Status
		}
	}
	m.payments = append(m.payments, p)
	return p
}

func (m *MemoryStore) AddSpace(s CommonSpace) CommonSpace {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == 0 {
		s.ID = m.id()
	}
	m.spaces[s.ID] = s
	return s
}

func (m *MemoryStore) ListUnits(_ context.Context) ([]HousingUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]HousingUnit, 0, len(m.units))
	for _, u := range m.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *MemoryStore) GetUnit(_ context.Context, id int64) (HousingUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.units[id]
	if !ok {
		return HousingUnit{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryStore) UnitsForUser(_ context.Context, userID int64) ([]HousingUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []HousingUnit
	for _, u := range m.units {
		for _, rid := range u.ResidentIDs {
			if rid == userID {
				out = append(out, u)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) UnitResidents(_ context.Context, unitIDs []int64) (map[int64][]ResidentContact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64][]ResidentContact, len(unitIDs))
	for _, id := range unitIDs {
		for _, rid := range m.units[id].ResidentIDs {
			if p, ok := m.people[rid]; ok {
				out[id] = append(out[id], p)
			}
		}
	}
	return out, nil
}

func (m *MemoryStore) ExpensesForUnits(_ context.Context, unitIDs []int64) ([]Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := idSet(unitIDs)
	var out []Expense
	for _, e := range m.expenses {
		if set[e.UnitID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryStore) PendingExpenses(_ context.Context) ([]Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Expense
	for _, e := range m.expenses {
		if e.Status == ExpensePending {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryStore) FinesForUnits(_ context.Context, unitIDs []int64) ([]Fine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := idSet(unitIDs)
	var out []Fine
	for _, f := range m.fines {
		if set[f.UnitID] {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *MemoryStore) ListFines(_ context.Context) ([]Fine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Fine(nil), m.fines...), nil
}

func (m *MemoryStore) CreateFine(_ context.Context, f *Fine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.units[f.UnitID]
	if !ok {
		return ErrNotFound
	}
	f.ID = m.id()
	f.UnitNumber = u.Number
	m.fines = append(m.fines, *f)
	return nil
}

func (m *MemoryStore) ListPayments(_ context.Context) ([]Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Payment(nil), m.payments...), nil
}

func (m *MemoryStore) GetSpace(_ context.Context, id int64) (CommonSpace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.spaces[id]
	if !ok {
		return CommonSpace{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) GetReservation(_ context.Context, id int64) (Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reservations[id]
	if !ok {
		return Reservation{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryStore) ReservationsForUser(_ context.Context, userID int64) ([]Reservation, error) {
	return m.reservationsWhere(func(r Reservation) bool { return r.UserID == userID }), nil
}

func (m *MemoryStore) ListReservations(_ context.Context) ([]Reservation, error) {
	return m.reservationsWhere(func(Reservation) bool { return true }), nil
}

func (m *MemoryStore) reservationsWhere(keep func(Reservation) bool) []Reservation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Reservation
	for _, r := range m.reservations {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func (m *MemoryStore) CreateReservation(_ context.Context, r *Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	space, ok := m.spaces[r.SpaceID]
	if !ok {
		return ErrNotFound
	}
	for _, other := range m.reservations {
		if other.SpaceID == r.SpaceID && other.Status != ReservationCancelled && other.Overlaps(r.Start, r.End) {
			return ErrConflict
		}
	}
	r.ID = m.id()
	r.SpaceName = space.Name
	m.reservations[r.ID] = *r
	return nil
}

func (m *MemoryStore) SetReservationStatus(_ context.Context, id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	m.reservations[id] = r
	return nil
}

func (m *MemoryStore) ActiveAnnouncements(_ context.Context, condoID int64, today time.Time) ([]Announcement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Announcement
	for _, a := range m.announcements {
		if a.CondominiumID != condoID || !a.Active {
			continue
		}
		if a.ExpiresOn != nil && a.ExpiresOn.Before(today) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedOn.After(out[j].PublishedOn) })
	return out, nil
}

func (m *MemoryStore) CreateAnnouncement(_ context.Context, a *Announcement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.condos[a.CondominiumID]; !ok {
		return ErrNotFound
	}
	a.ID = m.id()
	a.AuthorName = m.people[a.AuthorID].Name
	m.announcements = append(m.announcements, *a)
	return nil
}

func (m *MemoryStore) CondominiumExists(_ context.Context, id int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.condos[id]
	return ok, nil
}

func (m *MemoryStore) FirstCondominium(_ context.Context) (Condominium, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var first Condominium
	for id, c := range m.condos {
		if first.ID == 0 || id < first.ID {
			first = c
		}
	}
	if first.ID == 0 {
		return Condominium{}, ErrNotFound
	}
	return first, nil
}

func (m *MemoryStore) ListResidents(_ context.Context) ([]Resident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Resident, 0, len(m.residents))
	for _, r := range m.residents {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func idSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
