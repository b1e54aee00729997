package condo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxTitleLength       = 200
	maxBodyLength        = 5000
	maxDescriptionLength = 1000
	day                  = 24 * time.Hour
)

// Service applies the condominium rules on top of a Store.
type Service struct {
	store Store
	now   func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source used for "today" and past checks.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("condo: store is required")
	}
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) today() time.Time {
	return s.now().UTC().Truncate(day)
}

func (s *Service) Units(ctx context.Context) ([]HousingUnit, error) {
	return s.store.ListUnits(ctx)
}

func (s *Service) Unit(ctx context.Context, id int64) (HousingUnit, error) {
	return s.store.GetUnit(ctx, id)
}

func (s *Service) UnitsForUser(ctx context.Context, userID int64) ([]HousingUnit, error) {
	return s.store.UnitsForUser(ctx, userID)
}

// UnitExpenses lists the expenses of one unit, newest period first.
func (s *Service) UnitExpenses(ctx context.Context, unitID int64) ([]Expense, error) {
	if _, err := s.store.GetUnit(ctx, unitID); err != nil {
		return nil, err
	}
	out, err := s.store.ExpensesForUnits(ctx, []int64{unitID})
	if err != nil {
		return nil, err
	}
	sortExpenses(out)
	return out, nil
}

// UserExpenses lists the expenses of every unit userID lives in.
func (s *Service) UserExpenses(ctx context.Context, userID int64) ([]Expense, error) {
	ids, err := s.unitIDs(ctx, userID)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	out, err := s.store.ExpensesForUnits(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortExpenses(out)
	return out, nil
}

func (s *Service) UserFines(ctx context.Context, userID int64) (FineSummary, error) {
	ids, err := s.unitIDs(ctx, userID)
	if err != nil || len(ids) == 0 {
		return FineSummary{}, err
	}
	fines, err := s.store.FinesForUnits(ctx, ids)
	if err != nil {
		return FineSummary{}, err
	}
	return summarizeFines(fines), nil
}

func (s *Service) AllFines(ctx context.Context) (FineSummary, error) {
	fines, err := s.store.ListFines(ctx)
	if err != nil {
		return FineSummary{}, err
	}
	return summarizeFines(fines), nil
}

// CreateFine validates nf and stores it against an existing unit.
// A zero AppliedOn means today.
func (s *Service) CreateFine(ctx context.Context, nf NewFine) (Fine, error) {
	if nf.UnitID <= 0 {
		return Fine{}, fmt.Errorf("%w: unit is required", ErrInvalidInput)
	}
	if nf.Amount < 0 || math.IsNaN(nf.Amount) || math.IsInf(nf.Amount, 0) {
		return Fine{}, fmt.Errorf("%w: amount must be >= 0", ErrInvalidInput)
	}
	desc := strings.TrimSpace(nf.Description)
	if desc == "" || utf8.RuneCountInString(desc) > maxDescriptionLength {
		return Fine{}, fmt.Errorf("%w: description must be 1-%d characters", ErrInvalidInput, maxDescriptionLength)
	}
	if _, err := s.store.GetUnit(ctx, nf.UnitID); err != nil {
		return Fine{}, err
	}
	applied := nf.AppliedOn
	if applied.IsZero() {
		applied = s.today()
	}
	f := Fine{
		UnitID:      nf.UnitID,
		Amount:      nf.Amount,
		Description: desc,
		AppliedOn:   applied.UTC(),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.CreateFine(ctx, &f); err != nil {
		return Fine{}, err
	}
	return f, nil
}

func (s *Service) Payments(ctx context.Context) (PaymentSummary, error) {
	payments, err := s.store.ListPayments(ctx)
	if err != nil {
		return PaymentSummary{}, err
	}
	sort.SliceStable(payments, func(i, j int) bool { return payments[i].PaidAt.After(payments[j].PaidAt) })
	sum := PaymentSummary{Payments: payments, Count: len(payments)}
	for _, p := range payments {
		sum.TotalAmount += p.Amount
	}
	return sum, nil
}

// Breakdown gathers what userID is billed for. The fixed charge comes from
// the user's lowest-id unit.
func (s *Service) Breakdown(ctx context.Context, userID int64) (Breakdown, error) {
	units, err := s.store.UnitsForUser(ctx, userID)
	if err != nil {
		return Breakdown{}, err
	}
	var b Breakdown
	if len(units) > 0 {
		sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })
		b.FixedChargeUF = units[0].FixedChargeUF
		for _, u := range units {
			b.UnitIDs = append(b.UnitIDs, u.ID)
		}
		if b.Expenses, err = s.store.ExpensesForUnits(ctx, b.UnitIDs); err != nil {
			return Breakdown{}, err
		}
		sortExpenses(b.Expenses)
		if b.Fines, err = s.store.FinesForUnits(ctx, b.UnitIDs); err != nil {
			return Breakdown{}, err
		}
	}
	if b.Reservations, err = s.store.ReservationsForUser(ctx, userID); err != nil {
		return Breakdown{}, err
	}
	return b, nil
}

func (s *Service) Reservation(ctx context.Context, id int64) (Reservation, error) {
	return s.store.GetReservation(ctx, id)
}

func (s *Service) UserReservations(ctx context.Context, userID int64) ([]Reservation, error) {
	return s.store.ReservationsForUser(ctx, userID)
}

func (s *Service) AllReservations(ctx context.Context) ([]Reservation, error) {
	return s.store.ListReservations(ctx)
}

// Reserve books a common space. The interval is half-open and may not start
// in the past or overlap a live reservation of the same space.
func (s *Service) Reserve(ctx context.Context, nr NewReservation) (Reservation, error) {
	if nr.SpaceID <= 0 || nr.UserID <= 0 {
		return Reservation{}, fmt.Errorf("%w: space and user are required", ErrInvalidInput)
	}
	if nr.Start.IsZero() || !nr.End.After(nr.Start) {
		return Reservation{}, fmt.Errorf("%w: end must be after start", ErrInvalidInput)
	}
	now := s.now().UTC()
	if nr.Start.Before(now) {
		return Reservation{}, fmt.Errorf("%w: start is in the past", ErrInvalidInput)
	}
	if nr.Amount < 0 || math.IsNaN(nr.Amount) {
		return Reservation{}, fmt.Errorf("%w: amount must be >= 0", ErrInvalidInput)
	}
	space, err := s.store.GetSpace(ctx, nr.SpaceID)
	if err != nil {
		return Reservation{}, err
	}
	payment := PaymentPaid
	if space.RequiresPayment && nr.Amount > 0 {
		payment = PaymentPending
	}
	r := Reservation{
		SpaceID:       nr.SpaceID,
		SpaceName:     space.Name,
		UserID:        nr.UserID,
		Start:         nr.Start.UTC(),
		End:           nr.End.UTC(),
		Amount:        nr.Amount,
		PaymentStatus: payment,
		Status:        ReservationConfirmed,
		CreatedAt:     now,
	}
	if err := s.store.CreateReservation(ctx, &r); err != nil {
		if errors.Is(err, ErrConflict) {
			return Reservation{}, fmt.Errorf("%w: space already booked for that interval", ErrConflict)
		}
		return Reservation{}, err
	}
	return r, nil
}

// CancelReservation marks a live reservation cancelled. Cancelling twice is
// a conflict.
func (s *Service) CancelReservation(ctx context.Context, id int64) (Reservation, error) {
	r, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	if r.Status == ReservationCancelled {
		return Reservation{}, fmt.Errorf("%w: reservation already cancelled", ErrConflict)
	}
	if err := s.store.SetReservationStatus(ctx, id, ReservationCancelled); err != nil {
		return Reservation{}, err
	}
	r.Status = ReservationCancelled
	return r, nil
}

// Announcements lists the live announcements of a condominium as of today.
func (s *Service) Announcements(ctx context.Context, condoID int64) ([]Announcement, error) {
	ok, err := s.store.CondominiumExists(ctx, condoID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return s.store.ActiveAnnouncements(ctx, condoID, s.today())
}

// DefaultAnnouncements lists the live announcements of the first
// condominium. An empty deployment yields an empty list.
func (s *Service) DefaultAnnouncements(ctx context.Context) ([]Announcement, error) {
	c, err := s.store.FirstCondominium(ctx)
	if errors.Is(err, ErrNotFound) {
		return []Announcement{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.store.ActiveAnnouncements(ctx, c.ID, s.today())
}

func (s *Service) PublishAnnouncement(ctx context.Context, na NewAnnouncement) (Announcement, error) {
	title := strings.TrimSpace(na.Title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
		return Announcement{}, fmt.Errorf("%w: title must be 1-%d characters", ErrInvalidInput, maxTitleLength)
	}
	body := strings.TrimSpace(na.Body)
	if body == "" || utf8.RuneCountInString(body) > maxBodyLength {
		return Announcement{}, fmt.Errorf("%w: content must be 1-%d characters", ErrInvalidInput, maxBodyLength)
	}
	if na.CondominiumID <= 0 || na.AuthorID <= 0 {
		return Announcement{}, fmt.Errorf("%w: condominium and author are required", ErrInvalidInput)
	}
	published := na.PublishedOn
	if published.IsZero() {
		published = s.today()
	}
	if na.ExpiresOn != nil && na.ExpiresOn.Before(published) {
		return Announcement{}, fmt.Errorf("%w: expiration before publication", ErrInvalidInput)
	}
	kind := strings.TrimSpace(na.Kind)
	if kind == "" {
		kind = AnnouncementGeneral
	}
	a := Announcement{
		CondominiumID: na.CondominiumID,
		AuthorID:      na.AuthorID,
		Title:         title,
		Body:          body,
		Kind:          kind,
		PublishedOn:   published.UTC(),
		ExpiresOn:     na.ExpiresOn,
		Active:        true,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.store.CreateAnnouncement(ctx, &a); err != nil {
		return Announcement{}, err
	}
	return a, nil
}

func (s *Service) Residents(ctx context.Context) ([]Resident, error) {
	return s.store.ListResidents(ctx)
}

// Delinquency reports every unit with a pending expense due before today.
// A unit owes its pending expenses plus all of its fines.
func (s *Service) Delinquency(ctx context.Context) (DelinquencyReport, error) {
	today := s.today()
	pending, err := s.store.PendingExpenses(ctx)
	if err != nil {
		return DelinquencyReport{}, err
	}
	byUnit := make(map[int64]*DelinquentUnit)
	var order []int64
	for _, e := range pending {
		if e.DueDate == nil || !e.DueDate.Before(today) {
			continue
		}
		du, ok := byUnit[e.UnitID]
		if !ok {
			du = &DelinquentUnit{UnitID: e.UnitID, UnitNumber: e.UnitNumber, OldestDueDate: *e.DueDate}
			byUnit[e.UnitID] = du
			order = append(order, e.UnitID)
		}
		du.PendingExpenses++
		du.TotalOwed += e.Total
		if e.DueDate.Before(du.OldestDueDate) {
			du.OldestDueDate = *e.DueDate
		}
	}
	if len(order) == 0 {
		return DelinquencyReport{Units: []DelinquentUnit{}}, nil
	}

	fines, err := s.store.FinesForUnits(ctx, order)
	if err != nil {
		return DelinquencyReport{}, err
	}
	for _, f := range fines {
		if du, ok := byUnit[f.UnitID]; ok {
			du.PendingFines++
			du.TotalOwed += f.Amount
		}
	}
	contacts, err := s.store.UnitResidents(ctx, order)
	if err != nil {
		return DelinquencyReport{}, err
	}

	report := DelinquencyReport{Units: make([]DelinquentUnit, 0, len(order))}
	for _, id := range order {
		du := byUnit[id]
		du.Residents = contacts[id]
		du.DaysOverdue = int(today.Sub(du.OldestDueDate.UTC().Truncate(day)) / day)
		report.TotalOwed += du.TotalOwed
		report.Units = append(report.Units, *du)
	}
	sort.SliceStable(report.Units, func(i, j int) bool {
		return report.Units[i].DaysOverdue > report.Units[j].DaysOverdue
	})
	return report, nil
}

func (s *Service) unitIDs(ctx context.Context, userID int64) ([]int64, error) {
	units, err := s.store.UnitsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(units))
	for _, u := range units {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

func summarizeFines(fines []Fine) FineSummary {
	sort.SliceStable(fines, func(i, j int) bool { return fines[i].AppliedOn.After(fines[j].AppliedOn) })
	sum := FineSummary{Fines: fines}
	for _, f := range fines {
		sum.Total += f.Amount
	}
	sum.TotalPending = sum.Total
	return sum
}

func sortExpenses(es []Expense) {
	sort.SliceStable(es, func(i, j int) bool {
		if es[i].Year != es[j].Year {
			return es[i].Year > es[j].Year
		}
		return es[i].Month > es[j].Month
	})
}
