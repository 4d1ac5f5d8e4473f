package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/christopherklint97/shiftcal/internal/shift"
	"github.com/christopherklint97/shiftcal/internal/upload"
)

// cleanEnv returns os.Environ() with Claude Code session vars removed
// so the subprocess doesn't get blocked by the nested-session check.
func cleanEnv() []string {
	blocked := map[string]bool{
		"CLAUDECODE":             true,
		"CLAUDE_CODE_ENTRYPOINT": true,
	}
	var env []string
	for _, e := range os.Environ() {
		key, _, _ := strings.Cut(e, "=")
		if !blocked[key] {
			env = append(env, e)
		}
	}
	return env
}

// ClaudeCLI extracts shifts by running the claude CLI, which keeps its own
// login, against a temporary copy of the image.
type ClaudeCLI struct {
	Model         string
	ReferenceYear int
	// Binary is the executable to run; "claude" when empty.
	Binary string
	logger *slog.Logger
}

func NewClaudeCLI(model string, referenceYear int, logger *slog.Logger) *ClaudeCLI {
	if model == "" {
		model = "sonnet"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ClaudeCLI{Model: model, ReferenceYear: referenceYear, logger: logger}
}

func (c *ClaudeCLI) ExtractShifts(ctx context.Context, img *upload.Image, userName string) ([]shift.Shift, error) {
	dir, err := os.MkdirTemp("", "shiftcal-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	imagePath := filepath.Join(dir, "schedule"+imageExt(img.MIMEType))
	if err := os.WriteFile(imagePath, img.Data, 0600); err != nil {
		return nil, fmt.Errorf("writing temp image: %w", err)
	}

	userPrompt := buildPrompt(userName, c.ReferenceYear) +
		fmt.Sprintf("\n\nThe schedule image is at %s. Read it before answering.", imagePath)

	args := []string{
		"-p", userPrompt,
		"--output-format", "json",
		"--model", c.Model,
		"--json-schema", Schema(),
		"--allowedTools", "Read",
		"--add-dir", dir,
		"--no-session-persistence",
	}

	c.logger.Debug("invoking claude CLI",
		"model", c.Model,
		"image", imagePath,
		"prompt_len", len(userPrompt),
	)

	result, err := c.run(ctx, args)
	if err != nil {
		return nil, classify(err, 0)
	}
	return parseShifts(result, c.logger)
}

// run executes the CLI and unwraps the --output-format json envelope.
func (c *ClaudeCLI) run(ctx context.Context, args []string) (string, error) {
	bin := c.Binary
	if bin == "" {
		bin = "claude"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = cleanEnv()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	startTime := time.Now()
	err := cmd.Run()
	elapsed := time.Since(startTime)

	c.logger.Debug("claude CLI finished",
		"elapsed", elapsed,
		"stdout_bytes", stdout.Len(),
		"stderr_bytes", stderr.Len(),
		"error", err,
	)

	if err != nil {
		c.logger.Error("claude CLI failed", "error", err, "elapsed", elapsed, "stderr", stderr.String())
		if ctx.Err() != nil {
			return "", fmt.Errorf("claude CLI timed out after %s", elapsed.Truncate(time.Second))
		}
		return "", fmt.Errorf("running claude CLI: %w (stderr: %s; stdout: %s)", err, stderr.String(), truncateStr(stdout.String(), 500))
	}

	// Prefer structured_output (typed JSON from --json-schema) over result.
	var envelope struct {
		Type             string          `json:"type"`
		Subtype          string          `json:"subtype"`
		IsError          bool            `json:"is_error"`
		Result           json.RawMessage `json:"result"`
		StructuredOutput json.RawMessage `json:"structured_output"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &envelope); err != nil {
		c.logger.Debug("envelope parse failed, treating as raw output", "error", err)
		return stdout.String(), nil
	}

	if envelope.IsError {
		return "", fmt.Errorf("claude CLI reported an error: %s", truncateStr(string(envelope.Result), 500))
	}
	if len(envelope.StructuredOutput) > 0 && (envelope.StructuredOutput[0] == '{' || envelope.StructuredOutput[0] == '[') {
		return string(envelope.StructuredOutput), nil
	}
	if len(envelope.Result) > 0 {
		var s string
		if err := json.Unmarshal(envelope.Result, &s); err == nil {
			return s, nil
		}
		return string(envelope.Result), nil
	}
	return "", nil
}

func imageExt(mimeType string) string {
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".img"
}
