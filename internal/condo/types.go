package condo

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("condo: not found")
	ErrInvalidInput = errors.New("condo: invalid input")
	ErrConflict     = errors.New("condo: conflict")
)

// Expense states.
const (
	ExpensePending = "pendiente"
	ExpensePaid    = "pagado"
)

// Reservation states.
const (
	ReservationConfirmed = "confirmada"
	ReservationCancelled = "cancelada"

	PaymentPending = "pendiente"
	PaymentPaid    = "pagado"
)

const (
	AnnouncementGeneral  = "general"
	DefaultPaymentMethod = "webpay"
)

type Condominium struct {
	ID      int64
	Name    string
	Address string
}

// HousingUnit is a dwelling inside a condominium.
type HousingUnit struct {
	ID              int64
	CondominiumID   int64
	CondominiumName string
	Number          string
	FixedChargeUF   float64
	ResidentIDs     []int64
}

// UnitRef is the short form of a unit embedded in other views.
type UnitRef struct {
	ID          int64  `json:"id"`
	Number      string `json:"numero"`
	Condominium string `json:"condominio,omitempty"`
}

// Expense is a monthly common-expense charge of one unit.
type Expense struct {
	ID         int64
	UnitID     int64
	UnitNumber string
	Month      int
	Year       int
	Total      float64
	Status     string
	DueDate    *time.Time
	CreatedAt  time.Time
}

type Fine struct {
	ID          int64
	UnitID      int64
	UnitNumber  string
	Amount      float64
	Description string
	AppliedOn   time.Time
	CreatedAt   time.Time
}

type NewFine struct {
	UnitID      int64
	Amount      float64
	Description string
	AppliedOn   time.Time
}

// FineSummary is a list of fines with totals. Every fine counts as pending.
type FineSummary struct {
	Fines        []Fine
	Total        float64
	TotalPending float64
}

type Payment struct {
	ID            int64
	ExpenseID     int64
	UserID        int64
	UserName      string
	UnitNumber    string
	Amount        float64
	PaidAt        time.Time
	Method        string
	ExpenseMonth  int
	ExpenseYear   int
	ExpenseStatus string
}

type PaymentSummary struct {
	Payments    []Payment
	Count       int
	TotalAmount float64
}

type CommonSpace struct {
	ID              int64
	CondominiumID   int64
	Name            string
	RequiresPayment bool
}

type Reservation struct {
	ID            int64
	SpaceID       int64
	SpaceName     string
	UserID        int64
	Start         time.Time
	End           time.Time
	Amount        float64
	PaymentStatus string
	Status        string
	CreatedAt     time.Time
}

type NewReservation struct {
	SpaceID int64
	UserID  int64
	Start   time.Time
	End     time.Time
	Amount  float64
}

// Overlaps reports whether r and the half-open interval [start, end) intersect.
func (r Reservation) Overlaps(start, end time.Time) bool {
	return r.Start.Before(end) && start.Before(r.End)
}

type Announcement struct {
	ID            int64
	CondominiumID int64
	AuthorID      int64
	AuthorName    string
	Title         string
	Body          string
	Kind          string
	PublishedOn   time.Time
	ExpiresOn     *time.Time
	Active        bool
	CreatedAt     time.Time
}

type NewAnnouncement struct {
	CondominiumID int64
	AuthorID      int64
	Title         string
	Body          string
	Kind          string
	PublishedOn   time.Time
	ExpiresOn     *time.Time
}

// Resident is an active resident account with its units.
type Resident struct {
	ID        int64
	FullName  string
	Email     string
	Units     []UnitRef
	LastLogin *time.Time
	CreatedAt time.Time
}

type ResidentContact struct {
	ID    int64  `json:"id"`
	Name  string `json:"nombre"`
	Email string `json:"email"`
}

// DelinquentUnit aggregates what an overdue unit owes.
type DelinquentUnit struct {
	UnitID          int64
	UnitNumber      string
	Residents       []ResidentContact
	TotalOwed       float64
	PendingExpenses int
	PendingFines    int
	DaysOverdue     int
	OldestDueDate   time.Time
}

type DelinquencyReport struct {
	Units     []DelinquentUnit
	TotalOwed float64
}

// Breakdown is the billing picture of one resident across their units.
type Breakdown struct {
	UnitIDs       []int64
	FixedChargeUF float64
	Expenses      []Expense
	Fines         []Fine
	Reservations  []Reservation
}
