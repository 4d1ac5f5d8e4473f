package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/christopherklint97/shiftcal/internal/notify"
	"github.com/christopherklint97/shiftcal/internal/selection"
	"github.com/christopherklint97/shiftcal/internal/shift"
	"github.com/christopherklint97/shiftcal/internal/store"
	"github.com/christopherklint97/shiftcal/internal/wizard"
)

func runImport(cmd *cobra.Command, args []string) error {
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

	name := e.userName(cmd, db)
	if name == "" {
		return fmt.Errorf("--name is required (or set [user] name in the config)")
	}
	year, err := e.referenceYear(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	clients, err := wizard.NewClients(ctx, e.cfg, e.dir, year, e.logger)
	if err != nil {
		return e.userError(err)
	}
	p := wizard.NewPipeline(clients, e.options(), db, notify.New(e.cfg.Notifications.Enabled, nil, e.logger), e.logger)

	explicit, _ := cmd.Flags().GetString("calendar")
	cal, err := chooseCalendar(ctx, p, explicit, e.cfg.Calendar.CalendarID, db)
	if err != nil {
		return e.userError(err)
	}

	sess := wizard.NewSession()
	if err := sess.Configure(name, cal.ID); err != nil {
		return err
	}
	if err := sess.StartAnalysis(); err != nil {
		return err
	}

	fmt.Printf("Reading shifts for %s...\n", name)
	shifts, advisory, err := p.AnalyzeFile(ctx, args[0], name, cal.ID)
	if err != nil {
		_ = sess.AnalysisFailed(err)
		return e.userError(err)
	}
	if err := sess.AnalysisDone(shifts, advisory); err != nil {
		return err
	}
	if advisory != nil {
		e.logger.Warn("conflict check failed", "error", advisory)
		fmt.Println(wizard.AdvisoryMessage(advisory))
	}

	sel := sess.Selection()
	if sel.Len() == 0 {
		fmt.Println("No shifts were found for you in this schedule.")
		return nil
	}
	if skip, _ := cmd.Flags().GetBool("skip-conflicts"); skip {
		sel.DeselectConflicts()
	}

	fmt.Printf("\nShifts for %s (calendar: %s, zone: %s):\n\n", name, cal.Summary, p.Zone())
	printShifts(os.Stdout, sel)

	chosen, err := sess.StartWrite()
	if err != nil {
		return e.userError(err)
	}

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		if !confirm(os.Stdin, os.Stdout, fmt.Sprintf("\nAdd %d shift(s) to %s? [y/N] ", len(chosen), cal.Summary)) {
			fmt.Println("Nothing added.")
			return nil
		}
	}

	res, err := p.Write(ctx, cal.ID, chosen)
	if res != nil {
		fmt.Println()
		for _, o := range res.Outcomes {
			status := "added"
			if o.Err != nil {
				status = "FAILED"
			}
			fmt.Printf("  %-6s  %s %s-%s  %s\n", status, o.Shift.Date, o.Shift.StartTime, o.Shift.EndTime, o.Shift.Location)
		}
	}
	if err != nil {
		_ = sess.WriteFailed(res, err)
		return e.userError(err)
	}
	_ = sess.WriteDone(res)

	if err := db.SetState(store.KeyCalendarID, cal.ID); err != nil {
		e.logger.Warn("saving calendar id", "error", err)
	}
	if err := db.SetState(store.KeyUserName, name); err != nil {
		e.logger.Warn("saving user name", "error", err)
	}
	fmt.Printf("\nAdded %d shift(s) to %s.\n", len(res.Succeeded()), cal.Summary)
	return nil
}

func printShifts(w io.Writer, sel *selection.State) {
	for i := 0; i < sel.Len(); i++ {
		s := sel.At(i)
		check := "[ ]"
		if s.Selected {
			check = "[x]"
		}
		note := ""
		if s.Conflicting {
			note = "  ! conflicts with an existing event"
		}
		fmt.Fprintf(w, "  %s %s %-9s %s-%s  %s%s\n", check, s.Date, s.DayOfWeek, s.StartTime, s.EndTime, s.Location, note)
	}
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// extracted is one shift as printed by extract. Selection and conflict
// state only exist once shifts are checked against a calendar.
type extracted struct {
	Date      string `json:"date"`
	DayOfWeek string `json:"dayOfWeek"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Location  string `json:"location"`
}

func printJSON(w io.Writer, shifts []shift.Shift) error {
	out := make([]extracted, 0, len(shifts))
	for _, s := range shifts {
		out = append(out, extracted{
			Date:      s.Date,
			DayOfWeek: s.DayOfWeek,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
			Location:  s.Location,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
