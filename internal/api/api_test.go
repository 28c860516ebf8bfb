package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/knjiznica/internal/circulation"
	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/fines"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

const testJWTSecret = "test-secret"

func setupTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	database := db.NewTestDB(t)
	formatter, err := fines.NewFormatter("EUR")
	if err != nil {
		t.Fatalf("formatter: %v", err)
	}
	svc := circulation.New(database, circulation.Policy{
		LoanPeriod: 14 * 24 * time.Hour,
		FinePerDay: 100,
	}, circulation.WithFormatter(formatter))

	router := NewRouter(database, testJWTSecret, svc, formatter)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	// Create admin patron.
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	_, err = store.CreatePatron(context.Background(), database, &model.Patron{
		Username:     "admin",
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
		Status:       model.PatronStatusActive,
	})
	if err != nil {
		t.Fatalf("creating admin: %v", err)
	}

	return server, login(t, server, "admin", "password")
}

func login(t *testing.T, server *httptest.Server, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login as %s failed: %d", username, resp.StatusCode)
	}

	var loginResp map[string]string
	json.NewDecoder(resp.Body).Decode(&loginResp)
	token := loginResp["token"]
	if token == "" {
		t.Fatal("empty token from login")
	}
	return token
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends an authenticated request, checks the status and decodes the
// response into out when out is non-nil.
func do(t *testing.T, method, url, token string, body any, want int, out any) {
	t.Helper()
	req, err := authRequest(method, url, token, body)
	if err != nil {
		t.Fatalf("building %s %s: %v", method, url, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var e map[string]string
		json.NewDecoder(resp.Body).Decode(&e)
		t.Fatalf("%s %s: expected %d, got %d (%s)", method, url, want, resp.StatusCode, e["error"])
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s: %v", method, url, err)
		}
	}
}

type resultBody struct {
	Request *model.CirculationRequest `json:"request"`
	Loan    *model.Loan               `json:"loan"`
	Fine    *model.Fine               `json:"fine"`
	Title   *model.Title              `json:"title"`
	Review  *model.Review             `json:"review"`
	Events  []model.Event             `json:"events"`
}

// createMember creates an active member through the admin API and logs in.
func createMember(t *testing.T, server *httptest.Server, adminToken, username string) (int64, string) {
	t.Helper()
	var p model.Patron
	do(t, "POST", server.URL+"/api/patrons", adminToken, map[string]any{
		"username":  username,
		"password":  "password123",
		"full_name": "Test Member",
		"role":      model.RoleMember,
	}, http.StatusCreated, &p)
	return p.ID, login(t, server, username, "password123")
}

func createTitle(t *testing.T, server *httptest.Server, token string, copies int) model.Title {
	t.Helper()
	var title model.Title
	do(t, "POST", server.URL+"/api/titles", token, map[string]any{
		"isbn":         "978-0-13-468599-1",
		"title":        "The Go Programming Language",
		"author":       "Donovan, Kernighan",
		"total_copies": copies,
	}, http.StatusCreated, &title)
	return title
}

func TestLoginEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	// Test invalid credentials.
	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp, _ := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Unknown user gets the same answer.
	body, _ = json.Marshal(map[string]string{"username": "nobody", "password": "password"})
	resp, _ = http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unknown user, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUnauthenticatedAccess(t *testing.T) {
	server, _ := setupTestServer(t)

	for _, path := range []string{"/api/titles", "/api/loans", "/api/me", "/api/stats"} {
		resp, err := http.Get(server.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s: expected 401, got %d", path, resp.StatusCode)
		}
	}

	// Health check is public.
	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from /healthz, got %d", resp.StatusCode)
	}
}

func TestInvalidToken(t *testing.T) {
	server, _ := setupTestServer(t)

	do(t, "GET", server.URL+"/api/titles", "not-a-token", nil, http.StatusUnauthorized, nil)
}

func TestMemberForbiddenFromStaffEndpoints(t *testing.T) {
	server, adminToken := setupTestServer(t)
	_, memberToken := createMember(t, server, adminToken, "ana")

	do(t, "POST", server.URL+"/api/titles", memberToken, map[string]any{
		"title": "Nope", "total_copies": 1,
	}, http.StatusForbidden, nil)
	do(t, "GET", server.URL+"/api/patrons", memberToken, nil, http.StatusForbidden, nil)
	do(t, "GET", server.URL+"/api/stats", memberToken, nil, http.StatusForbidden, nil)
	do(t, "POST", server.URL+"/api/circulation/sweep", memberToken, nil, http.StatusForbidden, nil)

	// Catalog reads are open to members.
	do(t, "GET", server.URL+"/api/titles", memberToken, nil, http.StatusOK, nil)
}

func TestCirculationAPIFlow(t *testing.T) {
	server, adminToken := setupTestServer(t)
	memberID, memberToken := createMember(t, server, adminToken, "ana")
	title := createTitle(t, server, adminToken, 1)

	// Member submits a request.
	var submitted resultBody
	do(t, "POST", server.URL+"/api/requests", memberToken, map[string]any{
		"title_id": title.ID,
	}, http.StatusCreated, &submitted)
	if submitted.Request == nil || submitted.Request.Status != model.RequestStatusPending {
		t.Fatalf("expected pending request, got %+v", submitted.Request)
	}
	if submitted.Request.PatronID != memberID {
		t.Errorf("expected request for patron %d, got %d", memberID, submitted.Request.PatronID)
	}
	reqURL := fmt.Sprintf("%s/api/requests/%d", server.URL, submitted.Request.ID)

	// Members cannot review.
	do(t, "POST", reqURL+"/review", memberToken, map[string]any{
		"decision": circulation.DecisionApprove,
	}, http.StatusForbidden, nil)

	do(t, "POST", reqURL+"/review", adminToken, map[string]any{
		"decision": circulation.DecisionApprove,
	}, http.StatusOK, nil)

	var fulfilled resultBody
	do(t, "POST", reqURL+"/fulfill", adminToken, nil, http.StatusOK, &fulfilled)
	if fulfilled.Loan == nil || fulfilled.Loan.Ref == "" {
		t.Fatalf("expected loan with ref, got %+v", fulfilled.Loan)
	}
	if fulfilled.Title == nil || fulfilled.Title.AvailableCopies != 0 {
		t.Errorf("expected 0 available after fulfill, got %+v", fulfilled.Title)
	}

	// No copies left.
	do(t, "POST", server.URL+"/api/loans", adminToken, map[string]any{
		"patron_id": memberID,
		"title_id":  title.ID,
	}, http.StatusConflict, nil)

	// Member can look up their own loan by reference.
	var lookup struct {
		Loan model.Loan  `json:"loan"`
		Fine *model.Fine `json:"fine"`
	}
	do(t, "GET", server.URL+"/api/loans/"+fulfilled.Loan.Ref, memberToken, nil, http.StatusOK, &lookup)
	if lookup.Loan.ID != fulfilled.Loan.ID {
		t.Errorf("expected loan %d, got %d", fulfilled.Loan.ID, lookup.Loan.ID)
	}
	if lookup.Fine != nil {
		t.Errorf("expected no fine, got %+v", lookup.Fine)
	}

	loanURL := fmt.Sprintf("%s/api/loans/%d", server.URL, fulfilled.Loan.ID)
	var returned resultBody
	do(t, "POST", loanURL+"/return", adminToken, nil, http.StatusOK, &returned)
	if returned.Loan == nil || returned.Loan.Status != model.LoanStatusReturned {
		t.Fatalf("expected returned loan, got %+v", returned.Loan)
	}
	if returned.Fine != nil {
		t.Errorf("expected no fine for on-time return, got %+v", returned.Fine)
	}

	// Second return is rejected.
	do(t, "POST", loanURL+"/return", adminToken, nil, http.StatusConflict, nil)

	var got struct {
		Title     model.Title `json:"title"`
		OpenLoans int         `json:"open_loans"`
	}
	do(t, "GET", fmt.Sprintf("%s/api/titles/%d", server.URL, title.ID), memberToken, nil, http.StatusOK, &got)
	if got.Title.AvailableCopies != 1 || got.OpenLoans != 0 {
		t.Errorf("expected 1 available and 0 open loans, got %d and %d", got.Title.AvailableCopies, got.OpenLoans)
	}

	// Every step landed in the event log.
	var events []model.Event
	do(t, "GET", server.URL+"/api/events?aggregate=loan", adminToken, nil, http.StatusOK, &events)
	if len(events) != 2 {
		t.Errorf("expected issued and returned loan events, got %d", len(events))
	}
}

func TestMemberSeesOnlyOwnLoans(t *testing.T) {
	server, adminToken := setupTestServer(t)
	anaID, anaToken := createMember(t, server, adminToken, "ana")
	bojanID, bojanToken := createMember(t, server, adminToken, "bojan")
	title := createTitle(t, server, adminToken, 2)

	var anaLoan, bojanLoan resultBody
	do(t, "POST", server.URL+"/api/loans", adminToken, map[string]any{
		"patron_id": anaID, "title_id": title.ID,
	}, http.StatusCreated, &anaLoan)
	do(t, "POST", server.URL+"/api/loans", adminToken, map[string]any{
		"patron_id": bojanID, "title_id": title.ID,
	}, http.StatusCreated, &bojanLoan)

	var loans []model.Loan
	do(t, "GET", server.URL+"/api/loans", anaToken, nil, http.StatusOK, &loans)
	if len(loans) != 1 || loans[0].PatronID != anaID {
		t.Errorf("expected only ana's loan, got %+v", loans)
	}

	// Filtering by another patron is overridden for members.
	loans = nil
	do(t, "GET", fmt.Sprintf("%s/api/loans?patron_id=%d", server.URL, bojanID), anaToken, nil, http.StatusOK, &loans)
	if len(loans) != 1 || loans[0].PatronID != anaID {
		t.Errorf("expected patron filter to be ignored for members, got %+v", loans)
	}

	do(t, "GET", server.URL+"/api/loans/"+bojanLoan.Loan.Ref, anaToken, nil, http.StatusNotFound, nil)
	do(t, "GET", server.URL+"/api/loans/"+bojanLoan.Loan.Ref, bojanToken, nil, http.StatusOK, nil)

	loans = nil
	do(t, "GET", server.URL+"/api/loans", adminToken, nil, http.StatusOK, &loans)
	if len(loans) != 2 {
		t.Errorf("expected staff to see 2 loans, got %d", len(loans))
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	server, _ := setupTestServer(t)
	token := login(t, server, "admin", "password")

	do(t, "GET", server.URL+"/api/me", token, nil, http.StatusOK, nil)
	do(t, "POST", server.URL+"/api/auth/logout", token, nil, http.StatusOK, nil)
	do(t, "GET", server.URL+"/api/me", token, nil, http.StatusUnauthorized, nil)
}

func TestRegisterCreatesPendingMember(t *testing.T) {
	server, adminToken := setupTestServer(t)

	body, _ := json.Marshal(map[string]string{"username": "novak", "password": "password123"})
	resp, err := http.Post(server.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("register request: %v", err)
	}
	var p model.Patron
	json.NewDecoder(resp.Body).Decode(&p)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if p.Status != model.PatronStatusPending || p.Role != model.RoleMember {
		t.Errorf("expected pending member, got %s %s", p.Status, p.Role)
	}

	// A pending patron cannot borrow until activated.
	title := createTitle(t, server, adminToken, 1)
	do(t, "POST", server.URL+"/api/loans", adminToken, map[string]any{
		"patron_id": p.ID, "title_id": title.ID,
	}, http.StatusConflict, nil)

	do(t, "PUT", fmt.Sprintf("%s/api/patrons/%d/status", server.URL, p.ID), adminToken, map[string]string{
		"status": model.PatronStatusActive,
	}, http.StatusOK, nil)
	do(t, "POST", server.URL+"/api/loans", adminToken, map[string]any{
		"patron_id": p.ID, "title_id": title.ID,
	}, http.StatusCreated, nil)
}

func TestAdminCannotGrantHigherRole(t *testing.T) {
	server, adminToken := setupTestServer(t)

	do(t, "POST", server.URL+"/api/patrons", adminToken, map[string]any{
		"username": "root2",
		"password": "password123",
		"role":     model.RoleSuperadmin,
	}, http.StatusForbidden, nil)
}

func TestTitleTotalBelowLoaned(t *testing.T) {
	server, adminToken := setupTestServer(t)
	memberID, _ := createMember(t, server, adminToken, "ana")
	title := createTitle(t, server, adminToken, 2)

	do(t, "POST", server.URL+"/api/loans", adminToken, map[string]any{
		"patron_id": memberID, "title_id": title.ID,
	}, http.StatusCreated, nil)

	titleURL := fmt.Sprintf("%s/api/titles/%d", server.URL, title.ID)
	do(t, "PUT", titleURL+"/total", adminToken, map[string]any{"total_copies": 0}, http.StatusBadRequest, nil)
	do(t, "DELETE", titleURL, adminToken, nil, http.StatusConflict, nil)

	var updated model.Title
	do(t, "PUT", titleURL+"/total", adminToken, map[string]any{"total_copies": 3}, http.StatusOK, &updated)
	// Raising the total does not put copies on the shelf.
	if updated.TotalCopies != 3 || updated.AvailableCopies != 1 {
		t.Errorf("expected 3 total and 1 available, got %d and %d", updated.TotalCopies, updated.AvailableCopies)
	}
}

func TestStatsEndpoint(t *testing.T) {
	server, adminToken := setupTestServer(t)
	createTitle(t, server, adminToken, 4)

	var stats map[string]any
	do(t, "GET", server.URL+"/api/stats", adminToken, nil, http.StatusOK, &stats)
	if stats["currency"] != "EUR" {
		t.Errorf("expected EUR currency, got %v", stats["currency"])
	}
	if stats["total_copies"] != float64(4) {
		t.Errorf("expected 4 total copies, got %v", stats["total_copies"])
	}
}

func TestSuspendedStaffLosesAccess(t *testing.T) {
	server, adminToken := setupTestServer(t)
	memberID, memberToken := createMember(t, server, adminToken, "ana")
	title := createTitle(t, server, adminToken, 1)

	var librarian model.Patron
	do(t, "POST", server.URL+"/api/patrons", adminToken, map[string]any{
		"username": "desk",
		"password": "password123",
		"role":     model.RoleLibrarian,
	}, http.StatusCreated, &librarian)
	deskToken := login(t, server, "desk", "password123")
	do(t, "GET", server.URL+"/api/stats", deskToken, nil, http.StatusOK, nil)

	var submitted resultBody
	do(t, "POST", server.URL+"/api/requests", memberToken, map[string]any{
		"title_id": title.ID,
	}, http.StatusCreated, &submitted)

	statusURL := fmt.Sprintf("%s/api/patrons/%d/status", server.URL, librarian.ID)
	do(t, "PUT", statusURL, adminToken, map[string]string{"status": model.PatronStatusSuspended}, http.StatusOK, nil)

	// The token still says librarian.
	do(t, "GET", server.URL+"/api/stats", deskToken, nil, http.StatusForbidden, nil)
	do(t, "POST", fmt.Sprintf("%s/api/requests/%d/review", server.URL, submitted.Request.ID), deskToken, map[string]any{
		"decision": circulation.DecisionApprove,
	}, http.StatusForbidden, nil)
	do(t, "POST", server.URL+"/api/loans", deskToken, map[string]any{
		"patron_id": memberID, "title_id": title.ID,
	}, http.StatusForbidden, nil)

	do(t, "DELETE", fmt.Sprintf("%s/api/patrons/%d", server.URL, librarian.ID), adminToken, nil, http.StatusOK, nil)
	do(t, "GET", server.URL+"/api/me", deskToken, nil, http.StatusUnauthorized, nil)
}

func TestUpdatePatronProfileAndRole(t *testing.T) {
	server, adminToken := setupTestServer(t)
	memberID, _ := createMember(t, server, adminToken, "ana")

	var updated model.Patron
	do(t, "PUT", fmt.Sprintf("%s/api/patrons/%d", server.URL, memberID), adminToken, map[string]any{
		"full_name": "Ana Novak",
		"email":     "ana@example.org",
		"role":      model.RoleLibrarian,
	}, http.StatusOK, &updated)
	if updated.FullName != "Ana Novak" || updated.Role != model.RoleLibrarian {
		t.Errorf("expected profile and role updated, got %q %s", updated.FullName, updated.Role)
	}

	do(t, "PUT", server.URL+"/api/patrons/999", adminToken, map[string]any{"full_name": "x"}, http.StatusNotFound, nil)
	do(t, "PUT", server.URL+"/api/patrons/999/password", adminToken, map[string]any{
		"password": "password123",
	}, http.StatusNotFound, nil)
	do(t, "DELETE", server.URL+"/api/patrons/999", adminToken, nil, http.StatusNotFound, nil)
}

func TestDecodeOptional(t *testing.T) {
	// Chunked requests report an unknown length.
	req := httptest.NewRequest("POST", "/api/loans/1/return", strings.NewReader(""))
	req.ContentLength = -1
	var body notesRequest
	if err := decodeOptional(req, &body); err != nil {
		t.Errorf("empty chunked body: %v", err)
	}

	req = httptest.NewRequest("POST", "/api/loans/1/return", strings.NewReader(`{"notes":"torn cover"}`))
	req.ContentLength = -1
	if err := decodeOptional(req, &body); err != nil {
		t.Fatalf("chunked body: %v", err)
	}
	if body.Notes != "torn cover" {
		t.Errorf("expected notes decoded, got %q", body.Notes)
	}

	req = httptest.NewRequest("POST", "/api/loans/1/return", strings.NewReader(`{"notes": 5}`))
	if err := decodeOptional(req, &body); err == nil {
		t.Error("expected error for mistyped body")
	}
}

func TestReviewWorkflow(t *testing.T) {
	server, adminToken := setupTestServer(t)
	memberID, memberToken := createMember(t, server, adminToken, "ana")
	_, otherToken := createMember(t, server, adminToken, "bor")
	title := createTitle(t, server, adminToken, 1)
	titleURL := fmt.Sprintf("%s/api/titles/%d", server.URL, title.ID)

	do(t, "POST", titleURL+"/reviews", memberToken, map[string]any{"rating": 9}, http.StatusBadRequest, nil)
	do(t, "POST", server.URL+"/api/titles/999/reviews", memberToken, map[string]any{"rating": 3}, http.StatusNotFound, nil)

	var submitted resultBody
	do(t, "POST", titleURL+"/reviews", memberToken, map[string]any{
		"rating":      5,
		"review_text": "required reading",
	}, http.StatusCreated, &submitted)
	if submitted.Review == nil || submitted.Review.Status != model.ReviewStatusPending {
		t.Fatalf("expected pending review, got %+v", submitted.Review)
	}
	if submitted.Review.PatronID != memberID {
		t.Errorf("expected review by patron %d, got %d", memberID, submitted.Review.PatronID)
	}

	// Pending reviews are hidden from the title.
	var detail struct {
		Reviews []model.Review `json:"reviews"`
	}
	do(t, "GET", titleURL, otherToken, nil, http.StatusOK, &detail)
	if len(detail.Reviews) != 0 {
		t.Fatalf("expected no visible reviews, got %d", len(detail.Reviews))
	}

	var own []model.Review
	do(t, "GET", server.URL+"/api/reviews", otherToken, nil, http.StatusOK, &own)
	if len(own) != 0 {
		t.Errorf("expected other member to see none, got %d", len(own))
	}

	moderateURL := fmt.Sprintf("%s/api/reviews/%d/moderate", server.URL, submitted.Review.ID)
	do(t, "POST", moderateURL, memberToken, map[string]any{
		"decision": circulation.DecisionApprove,
	}, http.StatusForbidden, nil)
	do(t, "POST", moderateURL, adminToken, map[string]any{
		"decision": circulation.DecisionApprove,
	}, http.StatusOK, nil)
	do(t, "POST", moderateURL, adminToken, map[string]any{
		"decision": circulation.DecisionReject,
	}, http.StatusConflict, nil)

	do(t, "GET", titleURL, otherToken, nil, http.StatusOK, &detail)
	if len(detail.Reviews) != 1 || detail.Reviews[0].Rating != 5 || detail.Reviews[0].Text != "required reading" {
		t.Errorf("expected the approved review on the title, got %+v", detail.Reviews)
	}
}
