package condo

import (
	"context"
	"time"
)

// Store is the persistence boundary of the condominium domain.
// Lookups of a single row return ErrNotFound when it does not exist.
type Store interface {
	ListUnits(ctx context.Context) ([]HousingUnit, error)
	GetUnit(ctx context.Context, id int64) (HousingUnit, error)
	UnitsForUser(ctx context.Context, userID int64) ([]HousingUnit, error)
	UnitResidents(ctx context.Context, unitIDs []int64) (map[int64][]ResidentContact, error)

	ExpensesForUnits(ctx context.Context, unitIDs []int64) ([]Expense, error)
	PendingExpenses(ctx context.Context) ([]Expense, error)

	FinesForUnits(ctx context.Context, unitIDs []int64) ([]Fine, error)
	ListFines(ctx context.Context) ([]Fine, error)
	CreateFine(ctx context.Context, f *Fine) error

	ListPayments(ctx context.Context) ([]Payment, error)

	GetSpace(ctx context.Context, id int64) (CommonSpace, error)
	GetReservation(ctx context.Context, id int64) (Reservation, error)
	ReservationsForUser(ctx context.Context, userID int64) ([]Reservation, error)
	ListReservations(ctx context.Context) ([]Reservation, error)
	// CreateReservation inserts r unless a non-cancelled reservation of the
	// same space overlaps it, in which case it returns ErrConflict.
	CreateReservation(ctx context.Context, r *Reservation) error
	SetReservationStatus(ctx context.Context, id int64, status string) error

	ActiveAnnouncements(ctx context.Context, condoID int64, today time.Time) ([]Announcement, error)
	CreateAnnouncement(ctx context.Context, a *Announcement) error
	CondominiumExists(ctx context.Context, id int64) (bool, error)
	// FirstCondominium returns the condominium with the lowest id.
	FirstCondominium(ctx context.Context) (Condominium, error)

	ListResidents(ctx context.Context) ([]Resident, error)
}
