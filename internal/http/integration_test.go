package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/config"
	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/crypto"
	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/db"
	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/model"
	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/repository"
)

func openTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TUTORING_TEST_DB")
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		t.Skip("TUTORING_TEST_DB or DATABASE_URL not set")
		return nil
	}
	pool, err := db.NewPool(context.Background(), url)
	if err != nil {
		t.Skipf("db unavailable: %v", err)
		return nil
	}
	if err := db.Migrate(context.Background(), pool); err != nil {
		pool.Close()
		t.Fatalf("migrations failed: %v", err)
	}
	return pool
}

func testConfig() config.Config {
	return config.Config{
		HTTPAddr:        ":0",
		JWTSecret:       "test-secret",
		JWTIssuer:       "test-issuer",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
	}
}

func newTestApp(t *testing.T, pool *pgxpool.Pool) (*httptest.Server, *repository.Store) {
	t.Helper()
	store := repository.NewStore(pool)
	server := NewServer(testConfig(), store, nil, nil)
	app := httptest.NewServer(server.Router())
	t.Cleanup(app.Close)
	return app, store
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s.%s@example.local", prefix, uuid.NewString()[:8])
}

func doReq(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode error: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("http error: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode error: %v", err)
	}
}

func signup(t *testing.T, appURL string, body map[string]interface{}) authResponse {
	t.Helper()
	resp := doReq(t, http.MethodPost, appURL+"/auth/signup", "", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d", resp.StatusCode)
	}
	var auth authResponse
	decodeBody(t, resp, &auth)
	return auth
}

func createAdmin(t *testing.T, store *repository.Store) (string, string) {
	t.Helper()
	email := uniqueEmail("admin")
	hash, err := crypto.HashPassword("dev-password")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	now := time.Now().UTC()
	account := model.Account{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         "Test Admin",
		Role:         model.RoleAdmin,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreateAccount(context.Background(), account, nil, nil); err != nil {
		t.Fatalf("admin create error: %v", err)
	}
	return account.ID, email
}

func login(t *testing.T, appURL, email, password string) authResponse {
	t.Helper()
	resp := doReq(t, http.MethodPost, appURL+"/auth/login", "", map[string]interface{}{
		"email":    email,
		"password": password,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}
	var auth authResponse
	decodeBody(t, resp, &auth)
	return auth
}

func TestSessionLifecycle(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	app, _ := newTestApp(t, pool)

	tutor := signup(t, app.URL, map[string]interface{}{
		"email": uniqueEmail("tutor"), "password": "dev-password", "name": "Tutor T",
		"role": "TUTOR", "subjects": "Physics, Math", "qualification": "M.Sc Physics",
		"experienceYears": 4,
	})
	student := signup(t, app.URL, map[string]interface{}{
		"email": uniqueEmail("student"), "password": "dev-password", "name": "Student S",
		"role": "STUDENT", "class": "10th", "school": "ABC Public School", "board": "CBSE",
	})

	// Student creates a request; it always starts PENDING.
	resp := doReq(t, http.MethodPost, app.URL+"/sessions", student.AccessToken, map[string]interface{}{
		"tutorId": tutor.Account.ID, "subject": "Physics", "scheduledAt": "2024-05-01T10:00",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d", resp.StatusCode)
	}
	var session sessionResponse
	decodeBody(t, resp, &session)
	if session.Status != model.StatusPending {
		t.Fatalf("expected PENDING, got %s", session.Status)
	}
	if session.TutorID != tutor.Account.ID || session.StudentID != student.Account.ID {
		t.Fatalf("unexpected participants: %+v", session)
	}

	// The student cannot transition it, not even toward approval.
	resp = doReq(t, http.MethodPatch, app.URL+"/sessions/"+session.ID+"/status", student.AccessToken, map[string]interface{}{
		"status": "APPROVED",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("student transition: expected 403, got %d", resp.StatusCode)
	}

	// Another tutor cannot transition someone else's request.
	otherTutor := signup(t, app.URL, map[string]interface{}{
		"email": uniqueEmail("tutor"), "password": "dev-password", "name": "Other Tutor",
		"role": "TUTOR", "subjects": "History",
	})
	resp = doReq(t, http.MethodPatch, app.URL+"/sessions/"+session.ID+"/status", otherTutor.AccessToken, map[string]interface{}{
		"status": "APPROVED",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-owner transition: expected 403, got %d", resp.StatusCode)
	}

	// The referenced tutor approves.
	resp = doReq(t, http.MethodPatch, app.URL+"/sessions/"+session.ID+"/status", tutor.AccessToken, map[string]interface{}{
		"status": "APPROVED",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tutor transition: expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &session)
	if session.Status != model.StatusApproved {
		t.Fatalf("expected APPROVED, got %s", session.Status)
	}

	// Terminal records reject any further transition.
	resp = doReq(t, http.MethodPatch, app.URL+"/sessions/"+session.ID+"/status", tutor.AccessToken, map[string]interface{}{
		"status": "REJECTED",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("double transition: expected 409, got %d", resp.StatusCode)
	}

	// And the record is untouched.
	resp = doReq(t, http.MethodGet, app.URL+"/sessions", tutor.AccessToken, nil)
	var sessions []sessionResponse
	decodeBody(t, resp, &sessions)
	found := false
	for _, item := range sessions {
		if item.ID == session.ID {
			found = true
			if item.Status != model.StatusApproved {
				t.Fatalf("expected record to stay APPROVED, got %s", item.Status)
			}
		}
	}
	if !found {
		t.Fatalf("expected session in tutor's list")
	}

	// PENDING is not a valid transition target.
	resp = doReq(t, http.MethodPost, app.URL+"/sessions", student.AccessToken, map[string]interface{}{
		"tutorId": tutor.Account.ID, "subject": "Math", "scheduledAt": "2024-06-01T09:00",
	})
	var second sessionResponse
	decodeBody(t, resp, &second)
	resp = doReq(t, http.MethodPatch, app.URL+"/sessions/"+second.ID+"/status", tutor.AccessToken, map[string]interface{}{
		"status": "PENDING",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("PENDING target: expected 400, got %d", resp.StatusCode)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	app, _ := newTestApp(t, pool)

	student := signup(t, app.URL, map[string]interface{}{
		"email": uniqueEmail("student"), "password": "dev-password", "name": "Student S",
		"role": "STUDENT",
	})
	otherStudent := signup(t, app.URL, map[string]interface{}{
		"email": uniqueEmail("student"), "password": "dev-password", "name": "Student O",
		"role": "STUDENT",
	})

	// The tutor reference must resolve to an account with role TUTOR.
	resp := doReq(t, http.MethodPost, app.URL+"/sessions", student.AccessToken, map[string]interface{}{
		"tutorId": otherStudent.Account.ID, "subject": "Math", "scheduledAt": "2024-05-01T10:00",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("student as tutor: expected 404, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, app.URL+"/sessions", student.AccessToken, map[string]interface{}{
		"tutorId": uuid.NewString(), "subject": "Math", "scheduledAt": "2024-05-01T10:00",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown tutor: expected 404, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, app.URL+"/sessions", student.AccessToken, map[string]interface{}{
		"tutorId": "", "subject": "", "scheduledAt": "",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing fields: expected 400, got %d", resp.StatusCode)
	}
}

func TestTutorDirectoryFilter(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	app, _ := newTestApp(t, pool)

	mathTutor := signup(t, app.URL, map[string]interface{}{
		"email": uniqueEmail("tutor"), "password": "dev-password", "name": "Math Tutor",
		"role": "TUTOR", "subjects": "Mathematics, Statistics",
	})
	historyTutor := signup(t, app.URL, map[string]interface{}{
		"email": uniqueEmail("tutor"), "password": "dev-password", "name": "History Tutor",
		"role": "TUTOR", "subjects": "History",
	})
	student := signup(t, app.URL, map[string]interface{}{
		"email": uniqueEmail("student"), "password": "dev-password", "name": "Student S",
		"role": "STUDENT",
	})

	// Case-insensitive substring match against the subjects field.
	resp := doReq(t, http.MethodGet, app.URL+"/tutors?subject=math", student.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list tutors: expected 200, got %d", resp.StatusCode)
	}
	var tutors []tutorSummary
	decodeBody(t, resp, &tutors)

	foundMath, foundHistory := false, false
	for _, tutor := range tutors {
		if tutor.ID == mathTutor.Account.ID {
			foundMath = true
		}
		if tutor.ID == historyTutor.Account.ID {
			foundHistory = true
		}
	}
	if !foundMath {
		t.Fatalf("expected math tutor in filtered list")
	}
	if foundHistory {
		t.Fatalf("expected history tutor to be excluded")
	}

	// Unfiltered listing returns both.
	resp = doReq(t, http.MethodGet, app.URL+"/tutors", student.AccessToken, nil)
	decodeBody(t, resp, &tutors)
	foundMath, foundHistory = false, false
	for _, tutor := range tutors {
		if tutor.ID == mathTutor.Account.ID {
			foundMath = true
		}
		if tutor.ID == historyTutor.Account.ID {
			foundHistory = true
		}
	}
	if !foundMath || !foundHistory {
		t.Fatalf("expected both tutors in unfiltered list")
	}
}

func TestAdminVerificationAndStats(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	app, store := newTestApp(t, pool)

	_, adminEmail := createAdmin(t, store)
	admin := login(t, app.URL, adminEmail, "dev-password")

	tutor := signup(t, app.URL, map[string]interface{}{
		"email": uniqueEmail("tutor"), "password": "dev-password", "name": "Tutor T",
		"role": "TUTOR", "subjects": "Physics",
	})
	student := signup(t, app.URL, map[string]interface{}{
		"email": uniqueEmail("student"), "password": "dev-password", "name": "Student S",
		"role": "STUDENT",
	})

	resp := doReq(t, http.MethodGet, app.URL+"/admin/stats", admin.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", resp.StatusCode)
	}
	var before statsResponse
	decodeBody(t, resp, &before)

	// Toggle verification false -> true -> false.
	for _, verified := range []bool{true, false} {
		resp = doReq(t, http.MethodPatch, app.URL+"/accounts/"+tutor.Account.ID+"/verified", admin.AccessToken, map[string]interface{}{
			"isVerified": verified,
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("verify toggle: expected 200, got %d", resp.StatusCode)
		}
		var summary accountSummary
		decodeBody(t, resp, &summary)
		if summary.Tutor == nil || summary.Tutor.IsVerified != verified {
			t.Fatalf("expected isVerified=%v, got %+v", verified, summary.Tutor)
		}
	}

	// The tally is a role count; verification state cannot move it.
	resp = doReq(t, http.MethodGet, app.URL+"/admin/stats", admin.AccessToken, nil)
	var after statsResponse
	decodeBody(t, resp, &after)
	if after != before {
		t.Fatalf("expected counts unchanged by verification, got %+v then %+v", before, after)
	}

	// Verification is not defined for student accounts.
	resp = doReq(t, http.MethodPatch, app.URL+"/accounts/"+student.Account.ID+"/verified", admin.AccessToken, map[string]interface{}{
		"isVerified": true,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("verify student: expected 404, got %d", resp.StatusCode)
	}

	// Students cannot reach admin surfaces.
	resp = doReq(t, http.MethodGet, app.URL+"/admin/stats", student.AccessToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("student stats: expected 403, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodPatch, app.URL+"/accounts/"+tutor.Account.ID+"/verified", student.AccessToken, map[string]interface{}{
		"isVerified": true,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("student verify: expected 403, got %d", resp.StatusCode)
	}
}

func TestProfileEditing(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	app, _ := newTestApp(t, pool)

	student := signup(t, app.URL, map[string]interface{}{
		"email": uniqueEmail("student"), "password": "dev-password", "name": "Student S",
		"role": "STUDENT", "class": "9th",
	})

	// Only the provided fields change.
	resp := doReq(t, http.MethodPatch, app.URL+"/accounts/me", student.AccessToken, map[string]interface{}{
		"school": "XYZ College", "board": "ICSE",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile edit: expected 200, got %d", resp.StatusCode)
	}
	var summary accountSummary
	decodeBody(t, resp, &summary)
	if summary.Student == nil {
		t.Fatalf("expected student profile in response")
	}
	if summary.Student.School != "XYZ College" || summary.Student.Board != "ICSE" {
		t.Fatalf("expected school/board updated, got %+v", summary.Student)
	}
	if summary.Student.Class != "9th" {
		t.Fatalf("expected class untouched, got %q", summary.Student.Class)
	}
}

func TestLoginDoesNotRevealAccounts(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	app, _ := newTestApp(t, pool)

	email := uniqueEmail("student")
	signup(t, app.URL, map[string]interface{}{
		"email": email, "password": "dev-password", "name": "Student S", "role": "STUDENT",
	})

	wrongPassword := doReq(t, http.MethodPost, app.URL+"/auth/login", "", map[string]interface{}{
		"email": email, "password": "nope",
	})
	unknownEmail := doReq(t, http.MethodPost, app.URL+"/auth/login", "", map[string]interface{}{
		"email": uniqueEmail("ghost"), "password": "nope",
	})

	var a, b errorResponse
	decodeBody(t, wrongPassword, &a)
	decodeBody(t, unknownEmail, &b)
	if wrongPassword.StatusCode != http.StatusUnauthorized || unknownEmail.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for both login failures")
	}
	if a.Error != b.Error {
		t.Fatalf("expected identical error codes, got %q and %q", a.Error, b.Error)
	}
}

func TestRefreshRotation(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	app, _ := newTestApp(t, pool)

	student := signup(t, app.URL, map[string]interface{}{
		"email": uniqueEmail("student"), "password": "dev-password", "name": "Student S", "role": "STUDENT",
	})

	resp := doReq(t, http.MethodPost, app.URL+"/auth/refresh", "", map[string]interface{}{
		"refreshToken": student.RefreshToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d", resp.StatusCode)
	}
	var rotated authResponse
	decodeBody(t, resp, &rotated)
	if rotated.RefreshToken == student.RefreshToken {
		t.Fatalf("expected refresh token rotation")
	}

	// The old token is spent.
	resp = doReq(t, http.MethodPost, app.URL+"/auth/refresh", "", map[string]interface{}{
		"refreshToken": student.RefreshToken,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("reused refresh: expected 401, got %d", resp.StatusCode)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}
