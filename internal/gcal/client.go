// Package gcal implements calendar.Provider on the Google Calendar API.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	gcalapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/christopherklint97/shiftcal/internal/calendar"
)

// Client is a Google Calendar provider.
type Client struct {
	svc    *gcalapi.Service
	logger *slog.Logger
}

// New creates a client. Callers pass option.WithTokenSource for real use or
// option.WithHTTPClient in tests.
func New(ctx context.Context, logger *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	svc, err := gcalapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	return &Client{svc: svc, logger: logger}, nil
}

// NewFromAuth creates a client authorized by the cached token in a.
func NewFromAuth(ctx context.Context, a *Auth, logger *slog.Logger) (*Client, error) {
	ts, err := a.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	return New(ctx, logger, option.WithTokenSource(ts))
}

func (c *Client) ListCalendars(ctx context.Context) ([]calendar.Calendar, error) {
	var cals []calendar.Calendar
	pageToken := ""
	for {
		call := c.svc.CalendarList.List().Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		list, err := call.Do()
		if err != nil {
			return nil, wrapErr("listing calendars", err)
		}
		for _, item := range list.Items {
			cals = append(cals, calendar.Calendar{
				ID:         item.Id,
				Summary:    item.Summary,
				AccessRole: item.AccessRole,
			})
		}
		if list.NextPageToken == "" {
			break
		}
		pageToken = list.NextPageToken
	}

	c.logger.Debug("google calendars fetched", "count", len(cals))
	return cals, nil
}

func (c *Client) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]calendar.Event, error) {
	var events []calendar.Event
	pageToken := ""
	for {
		call := c.svc.Events.List(calendarID).
			TimeMin(timeMin.UTC().Format(time.RFC3339)).
			TimeMax(timeMax.UTC().Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		list, err := call.Do()
		if err != nil {
			return nil, wrapErr("listing events", err)
		}

		for _, item := range list.Items {
			if item.Status == "cancelled" {
				continue
			}
			// All-day events have only a date and are not time conflicts.
			if item.Start == nil || item.End == nil || item.Start.DateTime == "" || item.End.DateTime == "" {
				continue
			}
			start, err := time.Parse(time.RFC3339, item.Start.DateTime)
			if err != nil {
				c.logger.Debug("skipping event with unparseable start", "id", item.Id, "error", err)
				continue
			}
			end, err := time.Parse(time.RFC3339, item.End.DateTime)
			if err != nil {
				c.logger.Debug("skipping event with unparseable end", "id", item.Id, "error", err)
				continue
			}
			events = append(events, calendar.Event{Summary: item.Summary, StartTime: start, EndTime: end})
		}

		if list.NextPageToken == "" {
			break
		}
		pageToken = list.NextPageToken
	}

	c.logger.Debug("google events fetched", "calendar", calendarID, "count", len(events))
	return events, nil
}

func (c *Client) InsertEvent(ctx context.Context, calendarID string, ev calendar.NewEvent) (string, error) {
	created, err := c.svc.Events.Insert(calendarID, &gcalapi.Event{
		Summary:     ev.Summary,
		Location:    ev.Location,
		Description: ev.Description,
		Start:       &gcalapi.EventDateTime{DateTime: ev.Start.DateTime, TimeZone: ev.Start.TimeZone},
		End:         &gcalapi.EventDateTime{DateTime: ev.End.DateTime, TimeZone: ev.End.TimeZone},
	}).Context(ctx).Do()
	if err != nil {
		return "", wrapErr("inserting event", err)
	}
	return created.Id, nil
}

func wrapErr(op string, err error) error {
	err = fmt.Errorf("%s: %w", op, err)

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %v", calendar.ErrNotSignedIn, err)
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	if apiErr.Code == 403 {
		for _, item := range apiErr.Errors {
			if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
				return fmt.Errorf("%w: %v", calendar.ErrRateLimited, err)
			}
		}
	}
	return calendar.WrapStatus(err, apiErr.Code)
}
