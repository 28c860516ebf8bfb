package model

import "time"

// CirculationRequest is a patron's ask to borrow a title.
type CirculationRequest struct {
	ID          int64      `json:"id"`
	TitleID     int64      `json:"title_id"`
	PatronID    int64      `json:"patron_id"`
	Status      string     `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy  *int64     `json:"reviewed_by,omitempty"`
	FulfilledAt *time.Time `json:"fulfilled_at,omitempty"`
	LoanID      *int64     `json:"loan_id,omitempty"`
}

// Request statuses.
const (
	RequestStatusPending   = "pending"
	RequestStatusApproved  = "approved"
	RequestStatusRejected  = "rejected"
	RequestStatusFulfilled = "fulfilled"
)

// Reservation is a standing claim on a title.
type Reservation struct {
	ID          int64      `json:"id"`
	TitleID     int64      `json:"title_id"`
	PatronID    int64      `json:"patron_id"`
	Status      string     `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	FulfilledAt *time.Time `json:"fulfilled_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	HandledBy   *int64     `json:"handled_by,omitempty"`
	LoanID      *int64     `json:"loan_id,omitempty"`
}

// Reservation statuses.
const (
	ReservationStatusPending   = "pending"
	ReservationStatusFulfilled = "fulfilled"
	ReservationStatusCancelled = "cancelled"
)

// Loan is one copy of a title in a patron's possession.
type Loan struct {
	ID            int64      `json:"id"`
	Ref           string     `json:"ref"`
	TitleID       int64      `json:"title_id"`
	PatronID      int64      `json:"patron_id"`
	IssuedBy      int64      `json:"issued_by"`
	RequestID     *int64     `json:"request_id,omitempty"`
	ReservationID *int64     `json:"reservation_id,omitempty"`
	IssuedAt      time.Time  `json:"issued_at"`
	DueAt         time.Time  `json:"due_at"`
	ReturnedAt    *time.Time `json:"returned_at,omitempty"`
	Status        string     `json:"status"`
	Notes         string     `json:"notes,omitempty"`
}

// Loan statuses.
const (
	LoanStatusIssued   = "issued"
	LoanStatusReturned = "returned"
	LoanStatusOverdue  = "overdue"
)

// Open reports whether the copy is still out.
func (l *Loan) Open() bool {
	return l.Status == LoanStatusIssued || l.Status == LoanStatusOverdue
}

// Fine is the monetary penalty attached to one loan.
type Fine struct {
	ID             int64      `json:"id"`
	LoanID         int64      `json:"loan_id"`
	Amount         Money      `json:"amount"`
	PaidStatus     string     `json:"paid_status"`
	AssessedAt     time.Time  `json:"assessed_at"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	PaidRecordedBy *int64     `json:"paid_recorded_by,omitempty"`
}

// Fine paid statuses.
const (
	FineUnpaid = "unpaid"
	FinePaid   = "paid"
)
