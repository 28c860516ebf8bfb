// Package api exposes the circulation service as a JSON REST API.
package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/knjiznica/internal/circulation"
	"github.com/erazemk/knjiznica/internal/fines"
	"github.com/erazemk/knjiznica/internal/model"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string, svc *circulation.Service, formatter *fines.Formatter) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	patronsHandler := &PatronsHandler{DB: db, Service: svc}
	titlesHandler := &TitlesHandler{DB: db, Service: svc}
	circHandler := &CirculationHandler{DB: db, Service: svc}
	reviewsHandler := &ReviewsHandler{DB: db, Service: svc}
	reportsHandler := &ReportsHandler{DB: db, Formatter: formatter}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireLibrarian := RequireRole(model.RoleLibrarian)

	member := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	librarian := func(h http.HandlerFunc) http.Handler { return authMW(requireLibrarian(h)) }
	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }

	// Public.
	mux.HandleFunc("GET /healthz", reportsHandler.Health)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)

	// Own account.
	mux.Handle("POST /api/auth/logout", member(authHandler.Logout))
	mux.Handle("PUT /api/auth/password", member(authHandler.ChangePassword))
	mux.Handle("GET /api/me", member(authHandler.Me))

	// Patrons: status changes (librarian+), everything else admin.
	mux.Handle("GET /api/patrons", librarian(patronsHandler.List))
	mux.Handle("POST /api/patrons", admin(patronsHandler.Create))
	mux.Handle("GET /api/patrons/{id}", librarian(patronsHandler.Get))
	mux.Handle("PUT /api/patrons/{id}", admin(patronsHandler.Update))
	mux.Handle("PUT /api/patrons/{id}/status", librarian(patronsHandler.SetStatus))
	mux.Handle("PUT /api/patrons/{id}/password", admin(patronsHandler.ResetPassword))
	mux.Handle("DELETE /api/patrons/{id}", admin(patronsHandler.Delete))

	// Catalog: read (all roles), write (librarian+).
	mux.Handle("GET /api/titles", member(titlesHandler.List))
	mux.Handle("POST /api/titles", librarian(titlesHandler.Create))
	mux.Handle("GET /api/titles/{id}", member(titlesHandler.Get))
	mux.Handle("PUT /api/titles/{id}", librarian(titlesHandler.Update))
	mux.Handle("PUT /api/titles/{id}/total", librarian(titlesHandler.SetTotal))
	mux.Handle("DELETE /api/titles/{id}", librarian(titlesHandler.Delete))

	// Reviews: members write, librarians moderate. Approved ones show on the title.
	mux.Handle("POST /api/titles/{id}/reviews", member(reviewsHandler.Submit))
	mux.Handle("GET /api/reviews", member(reviewsHandler.List))
	mux.Handle("POST /api/reviews/{id}/moderate", librarian(reviewsHandler.Moderate))

	// Requests.
	mux.Handle("GET /api/requests", member(circHandler.ListRequests))
	mux.Handle("POST /api/requests", member(circHandler.SubmitRequest))
	mux.Handle("POST /api/requests/{id}/review", librarian(circHandler.ReviewRequest))
	mux.Handle("POST /api/requests/{id}/fulfill", librarian(circHandler.FulfillRequest))

	// Reservations. Members may cancel their own; the service checks ownership.
	mux.Handle("GET /api/reservations", member(circHandler.ListReservations))
	mux.Handle("POST /api/reservations", member(circHandler.CreateReservation))
	mux.Handle("POST /api/reservations/{id}/fulfill", librarian(circHandler.FulfillReservation))
	mux.Handle("POST /api/reservations/{id}/cancel", member(circHandler.CancelReservation))

	// Loans.
	mux.Handle("GET /api/loans", member(circHandler.ListLoans))
	mux.Handle("POST /api/loans", librarian(circHandler.IssueLoan))
	mux.Handle("GET /api/loans/{key}", member(circHandler.GetLoan))
	mux.Handle("POST /api/loans/{id}/return", librarian(circHandler.ReturnLoan))
	mux.Handle("POST /api/circulation/sweep", librarian(circHandler.Sweep))

	// Fines.
	mux.Handle("GET /api/fines", member(circHandler.ListFines))
	mux.Handle("POST /api/fines/{id}/pay", librarian(circHandler.PayFine))

	// Reports.
	mux.Handle("GET /api/stats", librarian(reportsHandler.Stats))
	mux.Handle("GET /api/events", librarian(reportsHandler.Events))

	return mux
}
