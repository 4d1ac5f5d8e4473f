package wizard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/christopherklint97/shiftcal/internal/calendar"
	"github.com/christopherklint97/shiftcal/internal/notify"
	"github.com/christopherklint97/shiftcal/internal/reconcile"
	"github.com/christopherklint97/shiftcal/internal/shift"
	"github.com/christopherklint97/shiftcal/internal/store"
	"github.com/christopherklint97/shiftcal/internal/upload"
	"github.com/christopherklint97/shiftcal/internal/writer"
)

// ErrCalendar tags calendar failures that have no more specific class.
var ErrCalendar = errors.New("calendar request failed")

// History records write outcomes. *store.DB implements it.
type History interface {
	RecordImports(imports []store.Import) error
}

// Options tune the write step.
type Options struct {
	TimeZone      string
	TitlePrefix   string
	MaxConcurrent int
}

// Pipeline runs analysis and writes on a set of clients.
type Pipeline struct {
	clients  *Clients
	opts     Options
	zone     string
	loc      *time.Location
	history  History
	notifier *notify.Notifier
	logger   *slog.Logger
}

// NewPipeline creates a Pipeline. history and notifier may be nil.
func NewPipeline(clients *Clients, opts Options, history History, notifier *notify.Notifier, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	zone, loc := writer.ResolveZone(opts.TimeZone, logger)
	opts.TimeZone = zone
	return &Pipeline{
		clients:  clients,
		opts:     opts,
		zone:     zone,
		loc:      loc,
		history:  history,
		notifier: notifier,
		logger:   logger,
	}
}

// Zone is the IANA zone shifts are interpreted in.
func (p *Pipeline) Zone() string { return p.zone }

// Calendars returns the calendars that accept new events.
func (p *Pipeline) Calendars(ctx context.Context) ([]calendar.Calendar, error) {
	cals, err := p.clients.Calendar.ListCalendars(ctx)
	if err != nil {
		return nil, calendarErr("listing calendars", err)
	}
	return calendar.Writable(cals), nil
}

// Analyze extracts the shifts of userName from img and reconciles them
// against calendarID. advisory is non-nil when the conflict check failed;
// the shifts are still usable in that case.
func (p *Pipeline) Analyze(ctx context.Context, img *upload.Image, userName, calendarID string) (shifts []shift.Shift, advisory error, err error) {
	start := time.Now()
	extracted, err := p.clients.Extractor.ExtractShifts(ctx, img, userName)
	if err != nil {
		p.logger.Error("extraction failed", "image", img.Name, "error", err)
		return nil, nil, err
	}
	p.logger.Info("shifts extracted", "image", img.Name, "count", len(extracted), "elapsed", time.Since(start))

	shifts, advisory = reconcile.Reconcile(ctx, p.clients.Calendar, calendarID, extracted, p.loc, p.logger)
	return shifts, advisory, nil
}

// AnalyzeFile is Analyze on an image read from path.
func (p *Pipeline) AnalyzeFile(ctx context.Context, path, userName, calendarID string) (shifts []shift.Shift, advisory error, err error) {
	img, err := upload.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return p.Analyze(ctx, img, userName, calendarID)
}

// Write inserts shifts into calendarID, records every outcome and sends the
// completion notification. The result is returned even when the batch failed.
func (p *Pipeline) Write(ctx context.Context, calendarID string, shifts []shift.Shift) (*writer.BatchResult, error) {
	w := writer.New(p.clients.Calendar, calendarID, writer.Options{
		TimeZone:      p.opts.TimeZone,
		TitlePrefix:   p.opts.TitlePrefix,
		MaxConcurrent: p.opts.MaxConcurrent,
	}, p.logger)

	res, err := w.Write(ctx, shifts)
	if res == nil {
		return nil, err
	}

	batchID := store.NewBatchID()
	p.record(batchID, calendarID, res)
	p.notifier.BatchDone(len(res.Succeeded()), len(res.Failed()))
	p.logger.Info("batch written", "batch", batchID, "calendar", calendarID, "succeeded", len(res.Succeeded()), "failed", len(res.Failed()))

	if err != nil {
		return res, calendarErr("writing shifts", err)
	}
	return res, nil
}

func (p *Pipeline) record(batchID, calendarID string, res *writer.BatchResult) {
	if p.history == nil {
		return
	}
	imports := make([]store.Import, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		im := store.Import{
			BatchID:    batchID,
			CalendarID: calendarID,
			EventID:    o.EventID,
			Date:       o.Shift.Date,
			StartTime:  o.Shift.StartTime,
			EndTime:    o.Shift.EndTime,
			Location:   o.Shift.Location,
			Status:     store.StatusImported,
		}
		if o.Err != nil {
			im.Status = store.StatusFailed
			im.Error = o.Err.Error()
		}
		imports = append(imports, im)
	}
	if err := p.history.RecordImports(imports); err != nil {
		p.logger.Warn("recording import history", "batch", batchID, "error", err)
	}
}

func calendarErr(op string, err error) error {
	if errors.Is(err, calendar.ErrNotSignedIn) || errors.Is(err, calendar.ErrRateLimited) || errors.Is(err, writer.ErrBatchFailed) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrCalendar, err)
}
