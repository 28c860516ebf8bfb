package model

import "time"

// Event records a state change for the notification and reporting surface.
type Event struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Aggregate   string         `json:"aggregate"`
	AggregateID int64          `json:"aggregate_id"`
	ActorID     int64          `json:"actor_id"`
	Payload     map[string]any `json:"payload,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// Event types.
const (
	EventRequestSubmitted       = "request.submitted"
	EventRequestApproved        = "request.approved"
	EventRequestRejected        = "request.rejected"
	EventRequestFulfilled       = "request.fulfilled"
	EventLoanIssued             = "loan.issued"
	EventLoanReturned           = "loan.returned"
	EventLoanOverdue            = "loan.overdue"
	EventReservationCreated     = "reservation.created"
	EventReservationFulfilled   = "reservation.fulfilled"
	EventReservationCancelled   = "reservation.cancelled"
	EventFineAssessed           = "fine.assessed"
	EventFinePaid               = "fine.paid"
	EventPatronStatusChanged    = "patron.status_changed"
	EventReviewSubmitted        = "review.submitted"
	EventReviewApproved         = "review.approved"
	EventReviewRejected         = "review.rejected"
	EventInventoryInconsistency = "inventory.inconsistency"
)

// Event aggregates.
const (
	AggregateRequest     = "request"
	AggregateReservation = "reservation"
	AggregateLoan        = "loan"
	AggregateFine        = "fine"
	AggregatePatron      = "patron"
	AggregateTitle       = "title"
	AggregateReview      = "review"
)
