package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/christopherklint97/shiftcal/internal/shift"
	"github.com/christopherklint97/shiftcal/internal/upload"
)

const defaultGeminiModel = "gemini-2.5-flash"

// Gemini extracts shifts with the Gemini API.
type Gemini struct {
	APIKey        string
	Model         string
	ReferenceYear int
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
	logger     *slog.Logger
}

func NewGemini(apiKey, model string, referenceYear int, logger *slog.Logger) *Gemini {
	if model == "" {
		model = defaultGeminiModel
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Gemini{APIKey: apiKey, Model: model, ReferenceYear: referenceYear, logger: logger}
}

func (g *Gemini) ExtractShifts(ctx context.Context, img *upload.Image, userName string) ([]shift.Shift, error) {
	if err := checkCredential(g.APIKey); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     g.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.HTTPClient,
	})
	if err != nil {
		return nil, classify(fmt.Errorf("creating Gemini client: %w", err), 0)
	}

	prompt := buildPrompt(userName, g.ReferenceYear)
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(img.Data, img.MIMEType),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   geminiSchema(),
	}

	g.logger.Debug("invoking Gemini",
		"model", g.Model,
		"mime_type", img.MIMEType,
		"image_bytes", len(img.Data),
		"prompt_len", len(prompt),
	)

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, g.Model, contents, config)
	if err != nil {
		status := 0
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			status = apiErr.Code
		}
		g.logger.Error("Gemini request failed", "error", err, "status", status, "elapsed", time.Since(start))
		return nil, classify(fmt.Errorf("generating content: %w", err), status)
	}

	if reason := blockReason(resp); reason != "" {
		g.logger.Warn("Gemini blocked the request", "reason", reason)
		return nil, fmt.Errorf("%w: %s", ErrBlocked, reason)
	}

	text := resp.Text()
	g.logger.Debug("Gemini response", "elapsed", time.Since(start), "text_len", len(text), "text", truncateStr(text, 2000))
	return parseShifts(text, g.logger)
}

func blockReason(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return string(resp.PromptFeedback.BlockReason)
	}
	for _, c := range resp.Candidates {
		switch string(c.FinishReason) {
		case "SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST", "SPII", "IMAGE_SAFETY":
			return string(c.FinishReason)
		}
	}
	return ""
}
