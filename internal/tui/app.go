package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/christopherklint97/shiftcal/internal/calendar"
	"github.com/christopherklint97/shiftcal/internal/notify"
	"github.com/christopherklint97/shiftcal/internal/shift"
	"github.com/christopherklint97/shiftcal/internal/store"
	"github.com/christopherklint97/shiftcal/internal/wizard"
	"github.com/christopherklint97/shiftcal/internal/writer"
)

const readyTimeout = 30 * time.Second

// Prefs persists the setup answers between runs. *store.DB implements it.
type Prefs interface {
	GetState(key string) (string, error)
	SetState(key, value string) error
}

// Config wires the wizard to its services.
type Config struct {
	Ready    *wizard.Ready
	Options  wizard.Options
	History  wizard.History
	Prefs    Prefs
	Notifier *notify.Notifier
	UserName string // preset from config; stored name otherwise
	Logger   *slog.Logger
}

type setupFocus int

const (
	focusName setupFocus = iota
	focusCalendar
)

type clientsReadyMsg struct {
	pipeline  *wizard.Pipeline
	calendars []calendar.Calendar
	err       error
}

type analyzedMsg struct {
	shifts   []shift.Shift
	advisory error
	err      error
}

type writtenMsg struct {
	result *writer.BatchResult
	err    error
}

// App is the Bubbletea model for the import wizard.
type App struct {
	cfg      Config
	session  *wizard.Session
	pipeline *wizard.Pipeline
	logger   *slog.Logger

	name      inputModel
	path      inputModel
	picker    calPickerModel
	focus     setupFocus
	spinner   spinner.Model
	cursor    int
	connected bool
	fatal     string
	errMsg    string
}

func NewApp(cfg Config) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := spinner.New()
	s.Spinner = spinner.Dot

	name := cfg.UserName
	if name == "" && cfg.Prefs != nil {
		name, _ = cfg.Prefs.GetState(store.KeyUserName)
	}

	a := &App{
		cfg:     cfg,
		session: wizard.NewSession(),
		logger:  logger,
		name:    newInputModel("Your name as it appears on the schedule", "Jane Doe", name),
		path:    newInputModel("Schedule image", "~/Pictures/schedule.jpg", ""),
		spinner: s,
	}
	a.name.Focus()
	return a
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.waitClients())
}

// Session exposes the wizard state.
func (a *App) Session() *wizard.Session { return a.session }

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	case clientsReadyMsg:
		return a.handleClientsReady(msg)
	case analyzedMsg:
		return a.handleAnalyzed(msg)
	case writtenMsg:
		return a.handleWritten(msg)
	}

	if a.fatal != "" {
		if _, ok := msg.(tea.KeyMsg); ok {
			return a, tea.Quit
		}
		return a, nil
	}

	switch a.session.Step() {
	case wizard.StepSetup:
		return a.updateSetup(msg)
	case wizard.StepUpload:
		return a.updateUpload(msg)
	case wizard.StepReview:
		return a.updateReview(msg)
	case wizard.StepDone:
		return a.updateDone(msg)
	}
	return a, nil
}

func (a *App) View() string {
	if a.fatal != "" {
		return errorStyle.Render("Error: ") + a.fatal + "\n\n" + helpStyle.Render("Press any key to exit")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("shiftcal: " + stepTitle(a.session.Step())))
	b.WriteString("\n")

	switch a.session.Step() {
	case wizard.StepSetup:
		b.WriteString(a.viewSetup())
	case wizard.StepUpload:
		b.WriteString(subtitleStyle.Render(fmt.Sprintf("Shifts for %s", a.session.UserName())))
		b.WriteString("\n")
		b.WriteString(a.path.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("Enter: analyze • Esc: back to setup • Ctrl+C: quit"))
	case wizard.StepAnalyzing:
		b.WriteString(a.spinner.View() + " Reading the schedule...")
	case wizard.StepReview:
		b.WriteString(a.viewReview())
	case wizard.StepWriting:
		b.WriteString(a.spinner.View() + " Adding shifts to your calendar...")
	case wizard.StepDone:
		res := a.session.Result()
		b.WriteString(successStyle.Render(fmt.Sprintf("Added %d shift(s) to your calendar.", len(res.Succeeded()))))
		b.WriteString("\n\n")
		b.WriteString(renderOutcomes(res))
		b.WriteString(helpStyle.Render("r: import another schedule • Enter/Esc: quit"))
	}

	if a.errMsg != "" {
		b.WriteString("\n\n")
		b.WriteString(errorStyle.Render(a.errMsg))
	}
	return b.String()
}

func stepTitle(s wizard.Step) string {
	switch s {
	case wizard.StepSetup:
		return "Setup"
	case wizard.StepUpload:
		return "Upload schedule"
	case wizard.StepAnalyzing:
		return "Analyzing"
	case wizard.StepReview:
		return "Review shifts"
	case wizard.StepWriting:
		return "Writing"
	case wizard.StepDone:
		return "Done"
	}
	return s.String()
}

func (a *App) viewSetup() string {
	var b strings.Builder
	b.WriteString(a.name.View())
	b.WriteString("\n\n")
	if !a.connected {
		b.WriteString(a.spinner.View() + " Connecting to your calendar...")
	} else {
		b.WriteString(a.picker.View())
	}
	b.WriteString(helpStyle.Render("Tab: switch field • ↑/↓: choose calendar • Enter: continue • Ctrl+C: quit"))
	return b.String()
}

func (a *App) viewReview() string {
	var b strings.Builder
	if adv := a.session.Advisory(); adv != nil {
		b.WriteString(warningStyle.Render(wizard.AdvisoryMessage(adv)))
		b.WriteString("\n\n")
	}
	sel := a.session.Selection()
	b.WriteString(boxStyle.Render(strings.TrimRight(renderShifts(sel, a.cursor, a.session.Result()), "\n")))
	b.WriteString("\n")

	writeHelp := "w: add selected to calendar"
	if sel == nil || !sel.CanWrite() {
		writeHelp = dimStyle.Render("w: nothing selected")
	}
	b.WriteString(helpStyle.Render("Space: toggle • a: all • n: none • " + writeHelp + " • r: start over"))
	return b.String()
}

func (a *App) updateSetup(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "tab", "shift+tab":
			return a, a.toggleFocus()
		case "enter":
			return a, a.confirmSetup()
		}
	}

	var cmd tea.Cmd
	if a.focus == focusName {
		a.name, cmd = a.name.Update(msg)
	} else if a.connected {
		a.picker, cmd = a.picker.Update(msg)
	}
	return a, cmd
}

func (a *App) toggleFocus() tea.Cmd {
	if a.focus == focusName && a.connected {
		a.focus = focusCalendar
		a.name.Blur()
		return a.picker.Focus()
	}
	a.focus = focusName
	a.picker.Blur()
	return a.name.Focus()
}

func (a *App) confirmSetup() tea.Cmd {
	if !a.connected {
		a.errMsg = "Still connecting to your calendar."
		return nil
	}
	cal, ok := a.picker.Selected()
	if !ok {
		a.errMsg = "Choose a calendar to add shifts to."
		return nil
	}
	if err := a.session.Configure(a.name.Value(), cal.ID); err != nil {
		a.errMsg = "Enter your name and choose a calendar."
		return nil
	}
	a.errMsg = ""
	if a.cfg.Prefs != nil {
		if err := a.cfg.Prefs.SetState(store.KeyUserName, a.name.Value()); err != nil {
			a.logger.Warn("saving user name", "error", err)
		}
		if err := a.cfg.Prefs.SetState(store.KeyCalendarID, cal.ID); err != nil {
			a.logger.Warn("saving calendar id", "error", err)
		}
	}
	a.name.Blur()
	a.picker.Blur()
	return a.path.Focus()
}

func (a *App) updateUpload(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			if err := a.session.EditSetup(); err == nil {
				a.path.Blur()
				a.focus = focusName
				return a, a.name.Focus()
			}
		case "enter":
			path := expandHome(a.path.Value())
			if path == "" {
				a.errMsg = "Enter the path of the schedule image."
				return a, nil
			}
			if err := a.session.StartAnalysis(); err != nil {
				a.errMsg = wizard.Message(err)
				return a, nil
			}
			a.errMsg = ""
			return a, tea.Batch(a.spinner.Tick, a.analyze(path))
		}
	}

	var cmd tea.Cmd
	a.path, cmd = a.path.Update(msg)
	return a, cmd
}

func (a *App) updateReview(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return a, nil
	}
	sel := a.session.Selection()

	switch keyMsg.String() {
	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
	case "down", "j":
		if a.cursor < sel.Len()-1 {
			a.cursor++
		}
	case " ", "space", "x":
		if sel.Len() > 0 {
			if err := a.session.Toggle(a.cursor); err != nil {
				a.logger.Debug("toggle", "error", err)
			}
		}
	case "a":
		sel.SetAll(true)
	case "n":
		sel.SetAll(false)
	case "w", "enter":
		shifts, err := a.session.StartWrite()
		if err != nil {
			a.errMsg = wizard.Message(err)
			return a, nil
		}
		a.errMsg = ""
		return a, tea.Batch(a.spinner.Tick, a.write(shifts))
	case "r", "esc":
		return a, a.restart()
	}
	return a, nil
}

func (a *App) updateDone(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "r":
			return a, a.restart()
		case "enter", "esc", "q":
			return a, tea.Quit
		}
	}
	return a, nil
}

func (a *App) restart() tea.Cmd {
	a.session.Restart()
	a.cursor = 0
	a.errMsg = ""
	a.path = newInputModel(a.path.label, a.path.input.Placeholder, "")
	if a.session.Step() == wizard.StepSetup {
		return a.name.Focus()
	}
	return a.path.Focus()
}

func (a *App) handleClientsReady(msg clientsReadyMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		a.fatal = wizard.Message(msg.err)
		return a, nil
	}
	if len(msg.calendars) == 0 {
		a.fatal = "No calendars you can add events to were found."
		return a, nil
	}

	a.pipeline = msg.pipeline
	a.connected = true

	lastID := ""
	if a.cfg.Prefs != nil {
		lastID, _ = a.cfg.Prefs.GetState(store.KeyCalendarID)
	}
	def, _ := calendar.Default(msg.calendars, lastID)
	a.picker = newCalPicker(msg.calendars, def.ID)
	return a, nil
}

func (a *App) handleAnalyzed(msg analyzedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if err := a.session.AnalysisFailed(msg.err); err != nil {
			a.logger.Debug("stale analysis result", "error", err)
			return a, nil
		}
		a.errMsg = wizard.Message(msg.err)
		return a, a.path.Focus()
	}
	if err := a.session.AnalysisDone(msg.shifts, msg.advisory); err != nil {
		a.logger.Debug("stale analysis result", "error", err)
		return a, nil
	}
	a.cursor = 0
	return a, nil
}

func (a *App) handleWritten(msg writtenMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if err := a.session.WriteFailed(msg.result, msg.err); err != nil {
			a.logger.Debug("stale write result", "error", err)
			return a, nil
		}
		a.errMsg = wizard.Message(msg.err)
		return a, nil
	}
	if err := a.session.WriteDone(msg.result); err != nil {
		a.logger.Debug("stale write result", "error", err)
	}
	return a, nil
}

func (a *App) waitClients() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		clients, err := a.cfg.Ready.Wait(ctx, readyTimeout)
		if err != nil {
			return clientsReadyMsg{err: err}
		}
		p := wizard.NewPipeline(clients, a.cfg.Options, a.cfg.History, a.cfg.Notifier, a.logger)
		cals, err := p.Calendars(ctx)
		return clientsReadyMsg{pipeline: p, calendars: cals, err: err}
	}
}

func (a *App) analyze(path string) tea.Cmd {
	userName, calendarID := a.session.UserName(), a.session.CalendarID()
	return func() tea.Msg {
		shifts, advisory, err := a.pipeline.AnalyzeFile(context.Background(), path, userName, calendarID)
		return analyzedMsg{shifts: shifts, advisory: advisory, err: err}
	}
}

func (a *App) write(shifts []shift.Shift) tea.Cmd {
	calendarID := a.session.CalendarID()
	return func() tea.Msg {
		res, err := a.pipeline.Write(context.Background(), calendarID, shifts)
		if err != nil && !errors.Is(err, writer.ErrBatchFailed) {
			a.logger.Error("write failed", "error", err)
		}
		return writtenMsg{result: res, err: err}
	}
}
