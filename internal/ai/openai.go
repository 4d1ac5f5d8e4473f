package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/christopherklint97/shiftcal/internal/shift"
	"github.com/christopherklint97/shiftcal/internal/upload"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAI extracts shifts with the OpenAI chat completions API.
type OpenAI struct {
	APIKey        string
	Model         string
	ReferenceYear int
	// RequestOptions are appended to the client options, mainly for tests.
	RequestOptions []option.RequestOption
	logger         *slog.Logger
}

func NewOpenAI(apiKey, model string, referenceYear int, logger *slog.Logger) *OpenAI {
	if model == "" {
		model = defaultOpenAIModel
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &OpenAI{APIKey: apiKey, Model: model, ReferenceYear: referenceYear, logger: logger}
}

func (o *OpenAI) ExtractShifts(ctx context.Context, img *upload.Image, userName string) ([]shift.Shift, error) {
	if err := checkCredential(o.APIKey); err != nil {
		return nil, err
	}

	opts := append([]option.RequestOption{option.WithAPIKey(o.APIKey), option.WithMaxRetries(0)}, o.RequestOptions...)
	client := openai.NewClient(opts...)

	prompt := buildPrompt(userName, o.ReferenceYear)
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: img.DataURL(),
				}),
			}),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "shift_list",
					Schema: schemaMap(),
					Strict: openai.Bool(true),
				},
			},
		},
	}

	o.logger.Debug("invoking OpenAI", "model", o.Model, "mime_type", img.MIMEType, "image_bytes", len(img.Data))

	start := time.Now()
	completion, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		status := 0
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		o.logger.Error("OpenAI request failed", "error", err, "status", status, "elapsed", time.Since(start))
		return nil, classify(fmt.Errorf("creating chat completion: %w", err), status)
	}
	if len(completion.Choices) == 0 {
		return []shift.Shift{}, nil
	}

	choice := completion.Choices[0]
	if choice.FinishReason == "content_filter" || choice.Message.Refusal != "" {
		o.logger.Warn("OpenAI refused the request", "finish_reason", choice.FinishReason, "refusal", choice.Message.Refusal)
		return nil, fmt.Errorf("%w: %s", ErrBlocked, choice.Message.Refusal)
	}

	o.logger.Debug("OpenAI response", "elapsed", time.Since(start), "content", truncateStr(choice.Message.Content, 2000))
	return parseShifts(choice.Message.Content, o.logger)
}
