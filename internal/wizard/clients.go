package wizard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/christopherklint97/shiftcal/internal/ai"
	"github.com/christopherklint97/shiftcal/internal/calendar"
	"github.com/christopherklint97/shiftcal/internal/config"
	"github.com/christopherklint97/shiftcal/internal/gcal"
	"github.com/christopherklint97/shiftcal/internal/msgraph"
)

// Calendar provider names accepted in [calendar] provider.
const (
	CalendarGoogle = "google"
	CalendarGraph  = "graph"
	CalendarICS    = "ics"
)

// Authenticator signs the user in to a calendar provider.
type Authenticator interface {
	Login(ctx context.Context, out io.Writer) error
	Logout() error
}

// NewAuthenticator returns the sign-in flow for the configured provider.
// Token caches live in dir. ICS files need no sign-in and yield nil.
func NewAuthenticator(cfg *config.Config, dir string, logger *slog.Logger) (Authenticator, error) {
	switch cfg.Calendar.Provider {
	case CalendarGoogle, "":
		if cfg.Calendar.Google.ClientID == "" {
			return nil, fmt.Errorf("google client_id is not configured (set [calendar.google] client_id or GOOGLE_CLIENT_ID)")
		}
		return gcal.NewAuth(cfg.Calendar.Google.ClientID, cfg.Calendar.Google.ClientSecret, filepath.Join(dir, "google_token.json"), logger), nil
	case CalendarGraph:
		if cfg.Calendar.Graph.ClientID == "" {
			return nil, fmt.Errorf("graph client_id is not configured (set [calendar.graph] client_id or MSGRAPH_CLIENT_ID)")
		}
		return msgraph.NewAuth(cfg.Calendar.Graph.ClientID, cfg.Calendar.Graph.TenantID, filepath.Join(dir, "msgraph_tokens.json"), logger), nil
	case CalendarICS:
		return nil, nil
	}
	return nil, fmt.Errorf("unknown calendar provider %q (want %s, %s or %s)", cfg.Calendar.Provider, CalendarGoogle, CalendarGraph, CalendarICS)
}

// NewCalendar builds the configured calendar provider.
func NewCalendar(ctx context.Context, cfg *config.Config, dir string, logger *slog.Logger) (calendar.Provider, error) {
	if cfg.Calendar.Provider == CalendarICS {
		path := cfg.Calendar.ICS.Path
		if path == "" {
			path = filepath.Join(dir, "shifts.ics")
		}
		return calendar.NewICSFile(path, logger), nil
	}

	auth, err := NewAuthenticator(cfg, dir, logger)
	if err != nil {
		return nil, err
	}
	switch a := auth.(type) {
	case *gcal.Auth:
		return gcal.NewFromAuth(ctx, a, logger)
	case *msgraph.Auth:
		return msgraph.NewClient(a, logger), nil
	}
	return nil, fmt.Errorf("no calendar client for provider %q", cfg.Calendar.Provider)
}

// NewClients builds the extractor and calendar provider from cfg.
// referenceYear overrides cfg.AI.ReferenceYear when non-zero.
func NewClients(ctx context.Context, cfg *config.Config, dir string, referenceYear int, logger *slog.Logger) (*Clients, error) {
	if referenceYear == 0 {
		referenceYear = cfg.AI.ReferenceYear
	}
	ext, err := ai.New(ai.Options{
		Provider:      cfg.AI.Provider,
		Model:         cfg.AI.Model,
		APIKey:        cfg.AI.APIKey,
		ReferenceYear: referenceYear,
	}, logger)
	if err != nil {
		return nil, err
	}
	cal, err := NewCalendar(ctx, cfg, dir, logger)
	if err != nil {
		return nil, err
	}
	return &Clients{Extractor: ext, Calendar: cal}, nil
}
