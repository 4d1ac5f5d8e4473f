package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/christopherklint97/shiftcal/internal/ai"
	"github.com/christopherklint97/shiftcal/internal/calendar"
	"github.com/christopherklint97/shiftcal/internal/config"
	"github.com/christopherklint97/shiftcal/internal/notify"
	"github.com/christopherklint97/shiftcal/internal/store"
	"github.com/christopherklint97/shiftcal/internal/tui"
	"github.com/christopherklint97/shiftcal/internal/upload"
	"github.com/christopherklint97/shiftcal/internal/wizard"
)

var rootCmd = &cobra.Command{
	Use:           "shiftcal",
	Short:         "Add work shifts from a schedule photo to your calendar",
	Long:          "shiftcal reads your shifts from a photo of a work schedule, checks them against your calendar and adds the ones you pick.",
	RunE:          runWizard,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the interactive import wizard",
	RunE:  runWizard,
}

var extractCmd = &cobra.Command{
	Use:   "extract IMAGE",
	Short: "Print the shifts found in a schedule image as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

var importCmd = &cobra.Command{
	Use:   "import IMAGE",
	Short: "Extract shifts from an image and add them to a calendar",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var calendarsCmd = &cobra.Command{
	Use:   "calendars",
	Short: "List calendars shifts can be added to",
	RunE:  runCalendars,
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Sign in to the configured calendar provider",
	RunE:  runAuth,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently imported shifts",
	RunE:  runHistory,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Open config file in your editor",
	RunE:  runConfig,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set one config value, for example: shiftcal config set calendar.provider graph",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Write a debug log to ~/.config/shiftcal/debug.log")

	for _, c := range []*cobra.Command{rootCmd, runCmd, extractCmd, importCmd} {
		c.Flags().String("week", "", `Week the schedule covers, e.g. "next monday"; sets the year for dates printed without one`)
	}
	for _, c := range []*cobra.Command{extractCmd, importCmd} {
		c.Flags().String("name", "", "Your name as it appears on the schedule")
	}
	importCmd.Flags().String("calendar", "", "Calendar id to add shifts to")
	importCmd.Flags().Bool("skip-conflicts", false, "Do not add shifts that overlap existing events")
	importCmd.Flags().BoolP("yes", "y", false, "Add without asking for confirmation")
	authCmd.Flags().Bool("logout", false, "Remove cached credentials")
	historyCmd.Flags().Int("limit", 20, "Number of imports to show")
	historyCmd.Flags().String("batch", "", "Show every shift of one import batch (id or its first characters)")

	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(runCmd, extractCmd, importCmd, calendarsCmd, authCmd, historyCmd, configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// env is what every command needs: config, data directory and logger.
type env struct {
	cfg    *config.Config
	dir    string
	logger *slog.Logger
	close  func()
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, dir: dir, close: func() {}}
	debug, _ := cmd.Flags().GetBool("debug")
	if !debug {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		return e, nil
	}

	if err := config.EnsureConfigDir(); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "debug.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening debug log: %w", err)
	}
	e.logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	e.close = func() { f.Close() }
	e.logger.Debug("shiftcal starting", "command", cmd.Name(), "ai_provider", cfg.AI.Provider, "calendar_provider", cfg.Calendar.Provider)
	return e, nil
}

// signInHint is printed before talking to a provider that was never signed
// in to, or was signed out of.
func signInHint(provider string, signedIn bool) string {
	if signedIn || provider == wizard.CalendarICS {
		return ""
	}
	return "You have not signed in to your calendar yet. Run 'shiftcal auth' if the next step fails."
}

func (e *env) warnIfSignedOut(db *store.DB) {
	if hint := signInHint(e.cfg.Calendar.Provider, db.SignedIn()); hint != "" {
		fmt.Fprintln(os.Stderr, hint)
	}
}

// userError logs the full error and returns the message meant for the user.
func (e *env) userError(err error) error {
	e.logger.Error("command failed", "error", err)
	return errors.New(wizard.Message(err))
}

func (e *env) referenceYear(cmd *cobra.Command) (int, error) {
	week, _ := cmd.Flags().GetString("week")
	return wizard.ReferenceYear(e.cfg.AI.ReferenceYear, week, time.Now())
}

func (e *env) options() wizard.Options {
	return wizard.Options{
		TimeZone:      e.cfg.Calendar.TimeZone,
		TitlePrefix:   e.cfg.Calendar.EventTitle,
		MaxConcurrent: e.cfg.Calendar.MaxConcurrentInserts,
	}
}

func (e *env) userName(cmd *cobra.Command, db *store.DB) string {
	if name, _ := cmd.Flags().GetString("name"); name != "" {
		return name
	}
	if e.cfg.User.Name != "" {
		return e.cfg.User.Name
	}
	if db != nil {
		name, _ := db.GetState(store.KeyUserName)
		return name
	}
	return ""
}

// chooseCalendar resolves the target calendar: explicit id, configured id,
// then the usual default among the writable calendars.
func chooseCalendar(ctx context.Context, p *wizard.Pipeline, explicit, configured string, db *store.DB) (calendar.Calendar, error) {
	cals, err := p.Calendars(ctx)
	if err != nil {
		return calendar.Calendar{}, err
	}
	for _, want := range []string{explicit, configured} {
		if want == "" {
			continue
		}
		for _, c := range cals {
			if c.ID == want {
				return c, nil
			}
		}
		return calendar.Calendar{}, fmt.Errorf("calendar %q is not one you can add events to (see 'shiftcal calendars')", want)
	}
	lastID, _ := db.GetState(store.KeyCalendarID)
	c, ok := calendar.Default(cals, lastID)
	if !ok {
		return calendar.Calendar{}, fmt.Errorf("no calendars you can add events to were found")
	}
	return c, nil
}

func openStore(dir string) (*store.DB, error) {
	db, err := store.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func runWizard(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	year, err := e.referenceYear(cmd)
	if err != nil {
		return err
	}

	db, err := openStore(e.dir)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	ready := wizard.Prepare(ctx, func(ctx context.Context) (*wizard.Clients, error) {
		return wizard.NewClients(ctx, e.cfg, e.dir, year, e.logger)
	})

	app := tui.NewApp(tui.Config{
		Ready:    ready,
		Options:  e.options(),
		History:  db,
		Prefs:    db,
		Notifier: notify.New(e.cfg.Notifications.Enabled, nil, e.logger),
		UserName: e.cfg.User.Name,
		Logger:   e.logger,
	})
	p := tea.NewProgram(app, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running TUI: %w", err)
	}

	if res := app.Session().Result(); res != nil && app.Session().Step() == wizard.StepDone {
		fmt.Printf("Added %d shift(s) to your calendar.\n", len(res.Succeeded()))
	}
	return nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	name := e.userName(cmd, nil)
	if name == "" {
		return fmt.Errorf("--name is required (or set [user] name in the config)")
	}
	year, err := e.referenceYear(cmd)
	if err != nil {
		return err
	}

	ext, err := ai.New(ai.Options{
		Provider:      e.cfg.AI.Provider,
		Model:         e.cfg.AI.Model,
		APIKey:        e.cfg.AI.APIKey,
		ReferenceYear: year,
	}, e.logger)
	if err != nil {
		return err
	}

	img, err := upload.Open(args[0])
	if err != nil {
		return e.userError(err)
	}
	shifts, err := ext.ExtractShifts(cmd.Context(), img, name)
	if err != nil {
		return e.userError(err)
	}
	return printJSON(os.Stdout, shifts)
}

func runCalendars(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	db, err := openStore(e.dir)
	if err != nil {
		return err
	}
	defer db.Close()
	e.warnIfSignedOut(db)

	cal, err := wizard.NewCalendar(cmd.Context(), e.cfg, e.dir, e.logger)
	if err != nil {
		return e.userError(err)
	}
	p := wizard.NewPipeline(&wizard.Clients{Calendar: cal}, e.options(), nil, nil, e.logger)

	cals, err := p.Calendars(cmd.Context())
	if err != nil {
		return e.userError(err)
	}
	if len(cals) == 0 {
		fmt.Println("No calendars you can add events to.")
		return nil
	}

	lastID, _ := db.GetState(store.KeyCalendarID)
	if e.cfg.Calendar.CalendarID != "" {
		lastID = e.cfg.Calendar.CalendarID
	}
	def, _ := calendar.Default(cals, lastID)

	fmt.Printf("Found %d writable calendars:\n\n", len(cals))
	for _, c := range cals {
		marker := "  "
		if c.ID == def.ID {
			marker = "* "
		}
		fmt.Printf("%s%-30s  %-7s  %s\n", marker, c.Summary, c.AccessRole, c.ID)
	}
	return nil
}

func runAuth(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	db, err := openStore(e.dir)
	if err != nil {
		return err
	}
	defer db.Close()

	auth, err := wizard.NewAuthenticator(e.cfg, e.dir, e.logger)
	if err != nil {
		return err
	}
	if auth == nil {
		fmt.Println("The ICS calendar provider needs no sign-in.")
		return nil
	}

	if logout, _ := cmd.Flags().GetBool("logout"); logout {
		if err := auth.Logout(); err != nil {
			return err
		}
		if err := db.SetSignedIn(false); err != nil {
			return fmt.Errorf("saving sign-in state: %w", err)
		}
		fmt.Println("Signed out.")
		return nil
	}

	if err := auth.Login(cmd.Context(), os.Stdout); err != nil {
		return e.userError(err)
	}
	if err := db.SetSignedIn(true); err != nil {
		return fmt.Errorf("saving sign-in state: %w", err)
	}
	fmt.Println("Signed in.")
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	db, err := openStore(e.dir)
	if err != nil {
		return err
	}
	defer db.Close()

	var imports []store.Import
	if batch, _ := cmd.Flags().GetString("batch"); batch != "" {
		imports, err = db.BatchImports(batch)
	} else {
		limit, _ := cmd.Flags().GetInt("limit")
		imports, err = db.RecentImports(limit)
	}
	if err != nil {
		return fmt.Errorf("fetching import history: %w", err)
	}
	printImports(os.Stdout, imports)
	return nil
}

func printImports(w io.Writer, imports []store.Import) {
	if len(imports) == 0 {
		fmt.Fprintln(w, "No shifts imported yet.")
		return
	}
	for _, im := range imports {
		fmt.Fprintf(w, "  %s  %s %s-%s  %-20s  %-8s  batch %s\n",
			im.CreatedAt.Local().Format("2006-01-02 15:04"),
			im.Date, im.StartTime, im.EndTime,
			im.Location,
			im.Status,
			im.BatchID[:min(8, len(im.BatchID))],
		)
		if im.Error != "" {
			fmt.Fprintf(w, "      %s\n", im.Error)
		}
	}
}

func runConfig(cmd *cobra.Command, args []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if err := config.WriteDefault(configPath); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	fmt.Printf("Opening %s with %s...\n", configPath, editor)

	proc := os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	}
	editorPath, err := exec.LookPath(editor)
	if err != nil {
		fmt.Printf("Could not find %s. Config file is at: %s\n", editor, configPath)
		return nil
	}
	process, err := os.StartProcess(editorPath, []string{editor, configPath}, &proc)
	if err != nil {
		// If editor fails, just print the path
		fmt.Printf("Could not open editor. Config file is at: %s\n", configPath)
		return nil
	}
	_, err = process.Wait()
	return err
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if err := config.Set(configPath, args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("Set %s in %s\n", args[0], configPath)
	return nil
}
