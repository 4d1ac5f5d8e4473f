package msgraph

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christopherklint97/shiftcal/internal/calendar"
)

type staticToken string

func (s staticToken) AccessToken(ctx context.Context) (string, error) { return string(s), nil }

func newMockedClient(t *testing.T) *Client {
	t.Helper()
	c := NewClient(staticToken("tok"), nil)
	httpmock.ActivateNonDefault(c.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestListCalendars_Roles(t *testing.T) {
	c := newMockedClient(t)
	httpmock.RegisterResponder(http.MethodGet, graphBaseURL+"/me/calendars",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"value": []any{
					map[string]any{"id": "c1", "name": "Calendar", "canEdit": true},
					map[string]any{"id": "c2", "name": "Birthdays", "canEdit": false},
				},
			})
		})

	cals, err := c.ListCalendars(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []calendar.Calendar{
		{ID: "c1", Summary: "Calendar", AccessRole: calendar.RoleWriter},
		{ID: "c2", Summary: "Birthdays", AccessRole: calendar.RoleReader},
	}, cals)
}

func TestListEvents_SkipsAllDayAndCancelled(t *testing.T) {
	c := newMockedClient(t)
	httpmock.RegisterResponder(http.MethodGet, `=~^`+graphBaseURL+`/me/calendars/c1/calendarView`,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
			"value": []any{
				map[string]any{"subject": "Standup", "start": map[string]any{"dateTime": "2025-08-18T09:00:00.0000000", "timeZone": "UTC"}, "end": map[string]any{"dateTime": "2025-08-18T09:15:00.0000000", "timeZone": "UTC"}},
				map[string]any{"subject": "Holiday", "isAllDay": true, "start": map[string]any{"dateTime": "2025-08-18T00:00:00.0000000", "timeZone": "UTC"}, "end": map[string]any{"dateTime": "2025-08-19T00:00:00.0000000", "timeZone": "UTC"}},
				map[string]any{"subject": "Cancelled", "isCancelled": true, "start": map[string]any{"dateTime": "2025-08-18T10:00:00", "timeZone": "UTC"}, "end": map[string]any{"dateTime": "2025-08-18T11:00:00", "timeZone": "UTC"}},
			},
		}))

	lo, hi, _ := calendar.DayBounds("2025-08-18", "2025-08-18")
	events, err := c.ListEvents(context.Background(), "c1", lo, hi)

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Standup", events[0].Summary)
	assert.True(t, events[0].StartTime.Equal(time.Date(2025, 8, 18, 9, 0, 0, 0, time.UTC)))
}

func TestInsertEvent(t *testing.T) {
	c := newMockedClient(t)
	var body map[string]any
	httpmock.RegisterResponder(http.MethodPost, graphBaseURL+"/me/calendars/c1/events",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			return httpmock.NewJsonResponse(http.StatusCreated, map[string]any{"id": "AAMk1"})
		})

	id, err := c.InsertEvent(context.Background(), "c1", calendar.NewEvent{
		Summary:     "Shift: Bar",
		Location:    "Bar",
		Description: "Work shift at Bar",
		Start:       calendar.EventTime{DateTime: "2025-08-18T18:00:00", TimeZone: "Europe/Paris"},
		End:         calendar.EventTime{DateTime: "2025-08-19T02:00:00", TimeZone: "Europe/Paris"},
	})

	require.NoError(t, err)
	assert.Equal(t, "AAMk1", id)
	assert.Equal(t, "Shift: Bar", body["subject"])
	assert.Equal(t, map[string]any{"displayName": "Bar"}, body["location"])
	assert.Equal(t, map[string]any{"dateTime": "2025-08-18T18:00:00", "timeZone": "Europe/Paris"}, body["start"])
}

func TestErrorsAreClassifiedAndNotRetried(t *testing.T) {
	c := newMockedClient(t)
	httpmock.RegisterResponder(http.MethodGet, graphBaseURL+"/me/calendars",
		httpmock.NewStringResponder(http.StatusTooManyRequests, `{"error":{"code":"TooManyRequests"}}`))

	_, err := c.ListCalendars(context.Background())

	assert.ErrorIs(t, err, calendar.ErrRateLimited)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "msgraph_tokens.json")

	tokens, err := LoadTokens(path)
	require.NoError(t, err)
	assert.Nil(t, tokens)

	require.NoError(t, SaveTokens(path, &TokenData{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour)}))
	tokens, err = LoadTokens(path)
	require.NoError(t, err)
	assert.False(t, tokens.IsExpired())

	require.NoError(t, RemoveTokens(path))
	require.NoError(t, RemoveTokens(path))

	_, err = NewAuth("id", "", path, nil).AccessToken(context.Background())
	assert.ErrorIs(t, err, calendar.ErrNotSignedIn)
}
