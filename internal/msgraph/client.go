// Package msgraph implements calendar.Provider on Microsoft Graph.
package msgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/christopherklint97/shiftcal/internal/calendar"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// TokenProvider yields a valid bearer token. *Auth implements it.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// Client is a Microsoft Graph API client for calendar operations.
type Client struct {
	tokens     TokenProvider
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Graph API client. The http client carries no
// timeout of its own; callers bound requests through ctx.
func NewClient(tokens TokenProvider, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		tokens:     tokens,
		baseURL:    graphBaseURL,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

type calendarsResponse struct {
	Value    []graphCalendar `json:"value"`
	NextLink string          `json:"@odata.nextLink"`
}

type graphCalendar struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	CanEdit bool   `json:"canEdit"`
	Owner   struct {
		Address string `json:"address"`
	} `json:"owner"`
}

// calendarViewResponse represents the Graph API calendarView response.
type calendarViewResponse struct {
	Value    []graphEvent `json:"value"`
	NextLink string       `json:"@odata.nextLink"`
}

type graphEvent struct {
	ID          string        `json:"id,omitempty"`
	Subject     string        `json:"subject"`
	Start       graphDateTime `json:"start"`
	End         graphDateTime `json:"end"`
	IsCancelled bool          `json:"isCancelled,omitempty"`
	IsAllDay    bool          `json:"isAllDay,omitempty"`
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphNewEvent struct {
	Subject  string        `json:"subject"`
	Body     graphBody     `json:"body"`
	Location graphLocation `json:"location"`
	Start    graphDateTime `json:"start"`
	End      graphDateTime `json:"end"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphLocation struct {
	DisplayName string `json:"displayName"`
}

// ListCalendars returns the user's calendars. Graph has no access role, so
// editable calendars are reported as writers and the rest as readers.
func (c *Client) ListCalendars(ctx context.Context) ([]calendar.Calendar, error) {
	requestURL := c.baseURL + "/me/calendars?" + url.Values{"$select": {"id,name,canEdit,owner"}}.Encode()
	var cals []calendar.Calendar

	for requestURL != "" {
		var page calendarsResponse
		if err := c.do(ctx, http.MethodGet, requestURL, nil, &page); err != nil {
			return nil, fmt.Errorf("listing calendars: %w", err)
		}
		for _, gc := range page.Value {
			role := calendar.RoleReader
			if gc.CanEdit {
				role = calendar.RoleWriter
			}
			cals = append(cals, calendar.Calendar{ID: gc.ID, Summary: gc.Name, AccessRole: role})
		}
		requestURL = page.NextLink
	}

	c.logger.Debug("graph calendars fetched", "count", len(cals))
	return cals, nil
}

// ListEvents retrieves timed events in the window from one calendar.
func (c *Client) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]calendar.Event, error) {
	params := url.Values{
		"startDateTime": {timeMin.UTC().Format("2006-01-02T15:04:05")},
		"endDateTime":   {timeMax.UTC().Format("2006-01-02T15:04:05")},
		"$select":       {"subject,start,end,isCancelled,isAllDay"},
		"$top":          {"100"},
		"$orderby":      {"start/dateTime"},
	}

	requestURL := c.baseURL + "/me/calendars/" + url.PathEscape(calendarID) + "/calendarView?" + params.Encode()
	var allEvents []calendar.Event

	for requestURL != "" {
		var page calendarViewResponse
		if err := c.do(ctx, http.MethodGet, requestURL, nil, &page); err != nil {
			return nil, fmt.Errorf("listing events: %w", err)
		}
		for _, ge := range page.Value {
			if ge.IsCancelled || ge.IsAllDay {
				continue
			}
			startTime, err := parseGraphDateTime(ge.Start)
			if err != nil {
				c.logger.Debug("skipping event with unparseable start time", "subject", ge.Subject, "error", err)
				continue
			}
			endTime, err := parseGraphDateTime(ge.End)
			if err != nil {
				c.logger.Debug("skipping event with unparseable end time", "subject", ge.Subject, "error", err)
				continue
			}
			allEvents = append(allEvents, calendar.Event{Summary: ge.Subject, StartTime: startTime, EndTime: endTime})
		}
		requestURL = page.NextLink
	}

	c.logger.Debug("graph calendar events fetched", "calendar", calendarID, "count", len(allEvents))
	return allEvents, nil
}

// InsertEvent creates an event. Graph accepts IANA zone names in timeZone.
func (c *Client) InsertEvent(ctx context.Context, calendarID string, ev calendar.NewEvent) (string, error) {
	payload := graphNewEvent{
		Subject:  ev.Summary,
		Body:     graphBody{ContentType: "text", Content: ev.Description},
		Location: graphLocation{DisplayName: ev.Location},
		Start:    graphDateTime{DateTime: ev.Start.DateTime, TimeZone: ev.Start.TimeZone},
		End:      graphDateTime{DateTime: ev.End.DateTime, TimeZone: ev.End.TimeZone},
	}

	var created graphEvent
	requestURL := c.baseURL + "/me/calendars/" + url.PathEscape(calendarID) + "/events"
	if err := c.do(ctx, http.MethodPost, requestURL, payload, &created); err != nil {
		return "", fmt.Errorf("inserting event: %w", err)
	}
	return created.ID, nil
}

// do sends one request and decodes the JSON response into out. Failures are
// not retried.
func (c *Client) do(ctx context.Context, method, requestURL string, body, out any) error {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reqBody)
	if err != nil {
		return fmt.Errorf("creating graph request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Prefer", "outlook.timezone=\"UTC\"")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading graph response: %w", err)
	}

	c.logger.Debug("graph API response", "method", method, "status", resp.StatusCode, "bytes", len(respBody), "elapsed", time.Since(requestStart))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("graph API request failed", "method", method, "status", resp.StatusCode, "response", truncateStr(string(respBody), 200))
		return calendar.WrapStatus(fmt.Errorf("graph API error (status %d): %s", resp.StatusCode, truncateStr(string(respBody), 200)), resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing graph response: %w", err)
	}
	return nil
}

func parseGraphDateTime(gdt graphDateTime) (time.Time, error) {
	// When we request Prefer: outlook.timezone="UTC", times come back in UTC.
	// The dateTime field is in format "2006-01-02T15:04:05.0000000"
	loc := time.UTC
	if gdt.TimeZone != "" && gdt.TimeZone != "UTC" {
		l, err := time.LoadLocation(gdt.TimeZone)
		if err == nil {
			loc = l
		}
	}

	for _, layout := range []string{
		"2006-01-02T15:04:05.0000000",
		"2006-01-02T15:04:05",
	} {
		t, err := time.ParseInLocation(layout, gdt.DateTime, loc)
		if err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("cannot parse datetime %q", gdt.DateTime)
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
