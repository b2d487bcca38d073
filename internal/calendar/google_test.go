package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/models"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/store"
)

// newTestService wires a Service against a fake Google backend.
func newTestService(t *testing.T, handler http.Handler) (*Service, *store.InMemoryStore, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	st := store.NewInMemoryStore()
	svc := NewService(st,
		WithCredentials("client-id", "client-secret", "http://localhost/cb"),
		WithTimezone("UTC"),
		WithEndpoints(ts.URL+"/auth", ts.URL+"/token", ts.URL+"/api"),
		WithHTTPClient(ts.Client()),
	)
	return svc, st, ts
}

func connect(t *testing.T, st *store.InMemoryStore) {
	t.Helper()
	err := st.UpsertCalendarIntegration(models.CalendarIntegration{
		UserID: "u1", Provider: ProviderGoogle,
		AccessToken: "live-token", RefreshToken: "refresh-token",
		ExpiresAt:  time.Now().UTC().Add(time.Hour),
		CalendarID: "primary",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAuthURLIssuesState(t *testing.T) {
	svc, st, _ := newTestService(t, http.NewServeMux())
	raw, err := svc.AuthURL(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("bad auth url: %v", err)
	}
	q := u.Query()
	if q.Get("client_id") != "client-id" || q.Get("scope") != OAuthScope {
		t.Errorf("auth url params wrong: %v", q)
	}
	state := q.Get("state")
	if state == "" {
		t.Fatal("no state in auth url")
	}
	stored, err := st.ConsumeOAuthState(state, ProviderGoogle)
	if err != nil || stored.UserID != "u1" {
		t.Errorf("state not persisted: %+v, %v", stored, err)
	}
}

func TestAuthURLRequiresCredentials(t *testing.T) {
	svc := NewService(store.NewInMemoryStore())
	if _, err := svc.AuthURL(context.Background(), "u1"); err == nil {
		t.Error("unconfigured service should refuse to start oauth")
	}
}

func TestHandleCallbackExchangesCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("bad form: %v", err)
		}
		if r.Form.Get("grant_type") != "authorization_code" || r.Form.Get("code") != "the-code" {
			t.Errorf("unexpected token request: %v", r.Form)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "at", "refresh_token": "rt", "expires_in": 3600,
		})
	})
	svc, st, _ := newTestService(t, mux)

	st.SaveOAuthState(models.OAuthState{State: "s1", UserID: "u1", Provider: ProviderGoogle, CreatedAt: time.Now().UTC()})
	userID, err := svc.HandleCallback(context.Background(), "s1", "the-code")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if userID != "u1" {
		t.Errorf("userID = %s", userID)
	}
	ci, err := st.GetCalendarIntegration("u1", ProviderGoogle)
	if err != nil || ci == nil || ci.AccessToken != "at" || ci.RefreshToken != "rt" {
		t.Errorf("integration not persisted: %+v, %v", ci, err)
	}

	connected, err := svc.Status("u1")
	if err != nil || !connected {
		t.Errorf("Status = %v, %v", connected, err)
	}
}

func TestHandleCallbackRejectsExpiredState(t *testing.T) {
	svc, st, _ := newTestService(t, http.NewServeMux())
	st.SaveOAuthState(models.OAuthState{
		State: "old", UserID: "u1", Provider: ProviderGoogle,
		CreatedAt: time.Now().UTC().Add(-StateTTL - time.Minute),
	})
	if _, err := svc.HandleCallback(context.Background(), "old", "code"); err == nil {
		t.Error("expired state must be rejected")
	}
}

func TestListEventsParsesShapes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]interface{}{
				{
					"id": "timed", "summary": "Standup",
					"start": map[string]string{"dateTime": "2025-06-02T09:30:00Z"},
					"end":   map[string]string{"dateTime": "2025-06-02T10:00:00Z"},
				},
				{
					"id": "allday", "summary": "PTO",
					"start": map[string]string{"date": "2025-06-02"},
					"end":   map[string]string{"date": "2025-06-03"},
				},
				{
					"id": "mine", "summary": "commitAI: Focus",
					"start":              map[string]string{"dateTime": "2025-06-02T11:00:00Z"},
					"end":                map[string]string{"dateTime": "2025-06-02T11:30:00Z"},
					"extendedProperties": map[string]interface{}{"private": map[string]string{"commitai": "1"}},
				},
				{
					"id": "gone", "summary": "Cancelled", "status": "cancelled",
					"start": map[string]string{"dateTime": "2025-06-02T12:00:00Z"},
					"end":   map[string]string{"dateTime": "2025-06-02T13:00:00Z"},
				},
			},
		})
	})
	svc, st, _ := newTestService(t, mux)
	connect(t, st)

	from := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	events, err := svc.ListEvents(context.Background(), "u1", from, from.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events (cancelled skipped), got %d", len(events))
	}
	if events[0].ID != "timed" || events[0].AllDay {
		t.Errorf("timed event wrong: %+v", events[0])
	}
	if !events[1].AllDay || events[1].Date != "2025-06-02" {
		t.Errorf("all-day event wrong: %+v", events[1])
	}
	if !events[2].OwnedBySelf() {
		t.Errorf("tagged event not recognized as own: %+v", events[2])
	}
}

func TestCreateEventTagsOwnership(t *testing.T) {
	var captured gcalEvent
	mux := http.NewServeMux()
	mux.HandleFunc("/api/calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("bad body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "ev1", "htmlLink": "http://cal/ev1"})
	})
	svc, st, _ := newTestService(t, mux)
	connect(t, st)

	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	ref, err := svc.CreateEvent(context.Background(), "u1", models.ScheduledBlock{
		ItemID: "i1", Title: "Draft outline", Details: "Open the doc.",
		Start: start, End: start.Add(30 * time.Minute),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.ID != "ev1" {
		t.Errorf("ref = %+v", ref)
	}
	if !strings.HasPrefix(captured.Summary, models.OwnedTitlePrefix) {
		t.Errorf("title not prefixed: %q", captured.Summary)
	}
	if captured.Extended == nil || captured.Extended.Private[models.OwnershipTagKey] != "1" {
		t.Errorf("ownership tag missing: %+v", captured.Extended)
	}
	if captured.Start.TimeZone != "UTC" {
		t.Errorf("timezone = %q", captured.Start.TimeZone)
	}
}

func TestDeleteOwnedEventsInRange(t *testing.T) {
	var deleted []string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]interface{}{
				{
					"id": "mine", "summary": "commitAI: Focus",
					"start": map[string]string{"dateTime": "2025-06-02T11:00:00Z"},
					"end":   map[string]string{"dateTime": "2025-06-02T11:30:00Z"},
				},
				{
					"id": "theirs", "summary": "Dentist",
					"start": map[string]string{"dateTime": "2025-06-02T15:00:00Z"},
					"end":   map[string]string{"dateTime": "2025-06-02T16:00:00Z"},
				},
				{
					"id": "mine-allday", "summary": "commitAI: Rest day",
					"start": map[string]string{"date": "2025-06-02"},
					"end":   map[string]string{"date": "2025-06-03"},
				},
			},
		})
	})
	mux.HandleFunc("/api/calendars/primary/events/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Fatalf("expected DELETE, got %s", r.Method)
		}
		parts := strings.Split(r.URL.Path, "/")
		deleted = append(deleted, parts[len(parts)-1])
		w.WriteHeader(http.StatusNoContent)
	})
	svc, st, _ := newTestService(t, mux)
	connect(t, st)

	from := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	n, err := svc.DeleteOwnedEventsInRange(context.Background(), "u1", from, from.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 || len(deleted) != 1 || deleted[0] != "mine" {
		t.Errorf("deleted = %v (n=%d), want only [mine]", deleted, n)
	}
}

func TestAccessTokenRefreshesWhenExpired(t *testing.T) {
	refreshed := false
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("grant_type") != "refresh_token" {
			t.Errorf("expected refresh grant, got %v", r.Form)
		}
		refreshed = true
		json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "new-at", "expires_in": 3600})
	})
	mux.HandleFunc("/api/calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer new-at" {
			t.Errorf("stale token used: %s", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"items": []interface{}{}})
	})
	svc, st, _ := newTestService(t, mux)
	st.UpsertCalendarIntegration(models.CalendarIntegration{
		UserID: "u1", Provider: ProviderGoogle,
		AccessToken: "stale", RefreshToken: "refresh-token",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	})

	from := time.Now().UTC()
	if _, err := svc.ListEvents(context.Background(), "u1", from, from.Add(time.Hour)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !refreshed {
		t.Error("expired token did not trigger refresh")
	}
	ci, _ := st.GetCalendarIntegration("u1", ProviderGoogle)
	if ci.AccessToken != "new-at" {
		t.Errorf("refreshed token not persisted: %+v", ci)
	}
}

func TestListEventsNotConnected(t *testing.T) {
	svc, _, _ := newTestService(t, http.NewServeMux())
	from := time.Now().UTC()
	if _, err := svc.ListEvents(context.Background(), "u1", from, from.Add(time.Hour)); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}
