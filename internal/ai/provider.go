package ai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/christopherklint97/shiftcal/internal/shift"
	"github.com/christopherklint97/shiftcal/internal/upload"
)

// Extractor reads the shifts belonging to one person from a schedule image.
// Implementations make a single request and never retry.
type Extractor interface {
	ExtractShifts(ctx context.Context, img *upload.Image, userName string) ([]shift.Shift, error)
}

const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderClaudeCLI = "claude-cli"
)

// Options selects and configures an extraction provider.
type Options struct {
	Provider      string
	Model         string
	APIKey        string
	ReferenceYear int
}

// New builds the extractor named by opts.Provider.
func New(opts Options, logger *slog.Logger) (Extractor, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	year := opts.ReferenceYear
	if year == 0 {
		year = time.Now().Year()
	}

	switch opts.Provider {
	case ProviderGemini, "":
		return NewGemini(opts.APIKey, opts.Model, year, logger), nil
	case ProviderOpenAI:
		return NewOpenAI(opts.APIKey, opts.Model, year, logger), nil
	case ProviderClaudeCLI:
		return NewClaudeCLI(opts.Model, year, logger), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q (want %s, %s or %s)", opts.Provider, ProviderGemini, ProviderOpenAI, ProviderClaudeCLI)
	}
}
