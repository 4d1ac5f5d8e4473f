//go:build integration

package ai_test

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/christopherklint97/shiftcal/internal/ai"
	"github.com/christopherklint97/shiftcal/internal/upload"
)

func skipIfNoClaude(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("claude"); err != nil {
		t.Skip("claude CLI not found in PATH, skipping integration test")
	}
}

// testImage loads the schedule photo named by SHIFTCAL_TEST_IMAGE.
func testImage(t *testing.T) (*upload.Image, string) {
	t.Helper()
	path := os.Getenv("SHIFTCAL_TEST_IMAGE")
	name := os.Getenv("SHIFTCAL_TEST_NAME")
	if path == "" || name == "" {
		t.Skip("SHIFTCAL_TEST_IMAGE and SHIFTCAL_TEST_NAME not set, skipping integration test")
	}
	img, err := upload.Open(path)
	if err != nil {
		t.Fatalf("opening test image: %v", err)
	}
	return img, name
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func TestClaudeCLI_ExtractShifts(t *testing.T) {
	skipIfNoClaude(t)
	img, name := testImage(t)

	cli := ai.NewClaudeCLI("haiku", time.Now().Year(), testLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	shifts, err := cli.ExtractShifts(ctx, img, name)
	if err != nil {
		t.Fatalf("ExtractShifts failed: %v", err)
	}

	t.Logf("Shifts count: %d", len(shifts))
	for i, s := range shifts {
		t.Logf("Shift[%d]: %s (%s) %s-%s @ %s", i, s.Date, s.DayOfWeek, s.StartTime, s.EndTime, s.Location)
		if err := s.Validate(); err != nil {
			t.Errorf("shift %d failed validation: %v", i, err)
		}
	}
}

func TestGemini_ExtractShifts(t *testing.T) {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		t.Skip("GEMINI_API_KEY not set, skipping integration test")
	}
	img, name := testImage(t)

	g := ai.NewGemini(key, "", time.Now().Year(), testLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	shifts, err := g.ExtractShifts(ctx, img, name)
	if err != nil {
		t.Fatalf("ExtractShifts failed: %v (%s)", err, ai.UserMessage(err))
	}
	t.Logf("Shifts: %+v", shifts)
}
