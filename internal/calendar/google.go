// Package calendar implements the Google Calendar integration: the OAuth
// connect flow, busy-event listing, and creation/cleanup of the blocks the
// autopilot schedules.
//
// All events created here carry a private ownership tag so later runs can
// tell their own blocks apart from the user's real meetings.
package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/models"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/store"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/util"
)

// Google endpoint defaults, overridable for tests.
const (
	DefaultAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	DefaultTokenURL = "https://oauth2.googleapis.com/token"
	DefaultAPIBase  = "https://www.googleapis.com/calendar/v3"

	// Scope covers event read/write only, not full calendar admin.
	OAuthScope = "https://www.googleapis.com/auth/calendar.events"

	// ProviderGoogle is the provider key stored with the integration row.
	ProviderGoogle = "google"

	// StateTTL bounds how long an issued OAuth state token stays valid.
	StateTTL = 10 * time.Minute
)

// DefaultTimezone is the calendar timezone used when none is configured.
const DefaultTimezone = "America/Detroit"

// ErrNotConnected is returned when a user has no usable Google integration.
var ErrNotConnected = fmt.Errorf("google calendar not connected")

// Opts holds configuration options for the Google Calendar service.
type Opts struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Timezone     string
	AuthURL      string
	TokenURL     string
	APIBase      string
	HTTPClient   *http.Client
}

// Option defines a configuration option for the Google Calendar service.
type Option func(*Opts)

// WithCredentials sets the OAuth client credentials and redirect URI.
func WithCredentials(clientID, clientSecret, redirectURI string) Option {
	return func(o *Opts) {
		o.ClientID = clientID
		o.ClientSecret = clientSecret
		o.RedirectURI = redirectURI
	}
}

// WithTimezone sets the IANA timezone used for event bodies.
func WithTimezone(tz string) Option {
	return func(o *Opts) {
		o.Timezone = tz
	}
}

// WithEndpoints overrides the Google endpoints, used by tests.
func WithEndpoints(authURL, tokenURL, apiBase string) Option {
	return func(o *Opts) {
		o.AuthURL = authURL
		o.TokenURL = tokenURL
		o.APIBase = apiBase
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) {
		o.HTTPClient = c
	}
}

// Service talks to the Google Calendar REST API on behalf of connected users.
// Tokens are persisted through the store so refreshes survive restarts.
type Service struct {
	st       store.Store
	client   *http.Client
	clientID string
	secret   string
	redirect string
	timezone string
	authURL  string
	tokenURL string
	apiBase  string
}

// NewService creates a Google Calendar service backed by the given store.
func NewService(st store.Store, opts ...Option) *Service {
	cfg := Opts{
		Timezone:   DefaultTimezone,
		AuthURL:    DefaultAuthURL,
		TokenURL:   DefaultTokenURL,
		APIBase:    DefaultAPIBase,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Service{
		st:       st,
		client:   cfg.HTTPClient,
		clientID: cfg.ClientID,
		secret:   cfg.ClientSecret,
		redirect: cfg.RedirectURI,
		timezone: cfg.Timezone,
		authURL:  cfg.AuthURL,
		tokenURL: cfg.TokenURL,
		apiBase:  cfg.APIBase,
	}
}

// Configured reports whether OAuth client credentials are present.
func (s *Service) Configured() bool {
	return s.clientID != "" && s.secret != "" && s.redirect != ""
}

// Timezone returns the configured IANA timezone name.
func (s *Service) Timezone() string {
	return s.timezone
}

// AuthURL issues a single-use state token for the user and returns the
// Google consent URL to redirect them to.
func (s *Service) AuthURL(ctx context.Context, userID string) (string, error) {
	if !s.Configured() {
		return "", fmt.Errorf("google oauth not configured")
	}
	state := util.GenerateStateToken()
	err := s.st.SaveOAuthState(models.OAuthState{
		State:     state,
		UserID:    userID,
		Provider:  ProviderGoogle,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to save oauth state: %w", err)
	}
	q := url.Values{}
	q.Set("client_id", s.clientID)
	q.Set("redirect_uri", s.redirect)
	q.Set("response_type", "code")
	q.Set("scope", OAuthScope)
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	q.Set("state", state)
	return s.authURL + "?" + q.Encode(), nil
}

// tokenResponse is the Google token endpoint response body.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

// HandleCallback consumes the state token, exchanges the authorization code
// for tokens, and persists the integration. Re-consent responses may omit
// the refresh token; the stored one is kept in that case.
func (s *Service) HandleCallback(ctx context.Context, state, code string) (string, error) {
	st, err := s.st.ConsumeOAuthState(state, ProviderGoogle)
	if err != nil {
		return "", fmt.Errorf("invalid oauth state: %w", err)
	}
	if time.Since(st.CreatedAt) > StateTTL {
		return "", fmt.Errorf("oauth state expired")
	}
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", s.clientID)
	form.Set("client_secret", s.secret)
	form.Set("redirect_uri", s.redirect)
	form.Set("grant_type", "authorization_code")
	tok, err := s.postToken(ctx, form)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	err = s.st.UpsertCalendarIntegration(models.CalendarIntegration{
		UserID:       st.UserID,
		Provider:     ProviderGoogle,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    time.Now().UTC().Add(time.Duration(tok.ExpiresIn) * time.Second),
		CalendarID:   "primary",
		UpdatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to save integration: %w", err)
	}
	slog.Info("Calendar.HandleCallback: google calendar connected", "userID", st.UserID)
	return st.UserID, nil
}

// Status reports whether the user has a connected integration.
func (s *Service) Status(userID string) (bool, error) {
	integ, err := s.st.GetCalendarIntegration(userID, ProviderGoogle)
	if err != nil {
		return false, err
	}
	if integ == nil {
		return false, nil
	}
	return integ.RefreshToken != "" || integ.AccessToken != "", nil
}

// accessToken returns a live access token for the user, refreshing through
// the token endpoint when the stored one is expired.
func (s *Service) accessToken(ctx context.Context, userID string) (string, string, error) {
	integ, err := s.st.GetCalendarIntegration(userID, ProviderGoogle)
	if err != nil {
		return "", "", err
	}
	if integ == nil {
		return "", "", ErrNotConnected
	}
	calendarID := integ.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	// 60s of slack so a token does not expire mid-request.
	if integ.AccessToken != "" && time.Until(integ.ExpiresAt) > time.Minute {
		return integ.AccessToken, calendarID, nil
	}
	if integ.RefreshToken == "" {
		return "", "", ErrNotConnected
	}
	form := url.Values{}
	form.Set("refresh_token", integ.RefreshToken)
	form.Set("client_id", s.clientID)
	form.Set("client_secret", s.secret)
	form.Set("grant_type", "refresh_token")
	tok, err := s.postToken(ctx, form)
	if err != nil {
		return "", "", fmt.Errorf("token refresh failed: %w", err)
	}
	integ.AccessToken = tok.AccessToken
	integ.ExpiresAt = time.Now().UTC().Add(time.Duration(tok.ExpiresIn) * time.Second)
	integ.UpdatedAt = time.Now().UTC()
	if err := s.st.UpsertCalendarIntegration(*integ); err != nil {
		slog.Warn("Calendar.accessToken: failed to persist refreshed token", "userID", userID, "error", err)
	}
	return tok.AccessToken, calendarID, nil
}

func (s *Service) postToken(ctx context.Context, form url.Values) (tokenResponse, error) {
	var tok tokenResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return tok, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := s.client.Do(req)
	if err != nil {
		return tok, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return tok, err
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return tok, fmt.Errorf("failed to decode token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || tok.Error != "" {
		return tok, fmt.Errorf("token endpoint returned %d: %s %s", resp.StatusCode, tok.Error, tok.ErrorDesc)
	}
	return tok, nil
}

// gcalEvent mirrors the subset of the Google event resource we read/write.
type gcalEvent struct {
	ID       string        `json:"id,omitempty"`
	Summary  string        `json:"summary,omitempty"`
	Desc     string        `json:"description,omitempty"`
	Start    gcalEventTime `json:"start,omitempty"`
	End      gcalEventTime `json:"end,omitempty"`
	HTMLLink string        `json:"htmlLink,omitempty"`
	Extended *gcalExtended `json:"extendedProperties,omitempty"`
	Status   string        `json:"status,omitempty"`
}

type gcalEventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type gcalExtended struct {
	Private map[string]string `json:"private,omitempty"`
}

type gcalEventList struct {
	Items         []gcalEvent `json:"items"`
	NextPageToken string      `json:"nextPageToken"`
}

// ListEvents returns the user's events overlapping [from, to), paginated
// through the API. Cancelled events are skipped.
func (s *Service) ListEvents(ctx context.Context, userID string, from, to time.Time) ([]models.RawEvent, error) {
	token, calendarID, err := s.accessToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	var events []models.RawEvent
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("timeMin", from.UTC().Format(time.RFC3339))
		q.Set("timeMax", to.UTC().Format(time.RFC3339))
		q.Set("singleEvents", "true")
		q.Set("orderBy", "startTime")
		q.Set("maxResults", "250")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		endpoint := fmt.Sprintf("%s/calendars/%s/events?%s", s.apiBase, url.PathEscape(calendarID), q.Encode())
		var page gcalEventList
		if err := s.doJSON(ctx, http.MethodGet, endpoint, token, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to list events: %w", err)
		}
		for _, e := range page.Items {
			if e.Status == "cancelled" {
				continue
			}
			raw, err := toRawEvent(e)
			if err != nil {
				slog.Warn("Calendar.ListEvents: skipping unparseable event", "eventID", e.ID, "error", err)
				continue
			}
			events = append(events, raw)
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	return events, nil
}

// toRawEvent converts a Google event into the internal shape. All-day events
// carry a date string instead of timestamps.
func toRawEvent(e gcalEvent) (models.RawEvent, error) {
	raw := models.RawEvent{
		ID:    e.ID,
		Title: e.Summary,
		Link:  e.HTMLLink,
	}
	if e.Extended != nil {
		raw.Private = e.Extended.Private
	}
	if e.Start.Date != "" {
		raw.AllDay = true
		raw.Date = e.Start.Date
		return raw, nil
	}
	start, err := time.Parse(time.RFC3339, e.Start.DateTime)
	if err != nil {
		return raw, fmt.Errorf("bad start time: %w", err)
	}
	end, err := time.Parse(time.RFC3339, e.End.DateTime)
	if err != nil {
		return raw, fmt.Errorf("bad end time: %w", err)
	}
	raw.Start = start
	raw.End = end
	return raw, nil
}

// CreateEvent creates a timed event for a scheduled block. The event title
// gets the ownership prefix and the private ownership tag so cleanup can
// find it later.
func (s *Service) CreateEvent(ctx context.Context, userID string, block models.ScheduledBlock) (models.EventRef, error) {
	token, calendarID, err := s.accessToken(ctx, userID)
	if err != nil {
		return models.EventRef{}, err
	}
	body := gcalEvent{
		Summary: models.OwnedTitlePrefix + " " + block.Title,
		Desc:    block.Details,
		Start:   gcalEventTime{DateTime: block.Start.Format(time.RFC3339), TimeZone: s.timezone},
		End:     gcalEventTime{DateTime: block.End.Format(time.RFC3339), TimeZone: s.timezone},
		Extended: &gcalExtended{
			Private: map[string]string{models.OwnershipTagKey: "1"},
		},
	}
	endpoint := fmt.Sprintf("%s/calendars/%s/events", s.apiBase, url.PathEscape(calendarID))
	var created gcalEvent
	if err := s.doJSON(ctx, http.MethodPost, endpoint, token, body, &created); err != nil {
		return models.EventRef{}, fmt.Errorf("failed to create event: %w", err)
	}
	return models.EventRef{ID: created.ID, Link: created.HTMLLink}, nil
}

// DeleteEvent deletes one event by ID.
func (s *Service) DeleteEvent(ctx context.Context, userID, eventID string) error {
	token, calendarID, err := s.accessToken(ctx, userID)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s", s.apiBase, url.PathEscape(calendarID), url.PathEscape(eventID))
	if err := s.doJSON(ctx, http.MethodDelete, endpoint, token, nil, nil); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

// DeleteOwnedEventsInRange removes the events this system created in the
// range, leaving user events and all-day entries untouched. It returns the
// number of deleted events.
func (s *Service) DeleteOwnedEventsInRange(ctx context.Context, userID string, from, to time.Time) (int, error) {
	events, err := s.ListEvents(ctx, userID, from, to)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, e := range events {
		if e.AllDay || !e.OwnedBySelf() {
			continue
		}
		if err := s.DeleteEvent(ctx, userID, e.ID); err != nil {
			slog.Warn("Calendar.DeleteOwnedEventsInRange: delete failed", "eventID", e.ID, "error", err)
			continue
		}
		deleted++
	}
	slog.Info("Calendar.DeleteOwnedEventsInRange: cleanup complete", "userID", userID, "deleted", deleted)
	return deleted, nil
}

// doJSON performs an authorized request, encoding body (when non-nil) and
// decoding the response into out (when non-nil).
func (s *Service) doJSON(ctx context.Context, method, endpoint, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = strings.NewReader(string(encoded))
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("google api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
