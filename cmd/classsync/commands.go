package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"

	"github.com/beekhof/class-sync/internal/auth"
	"github.com/beekhof/class-sync/internal/export"
	"github.com/beekhof/class-sync/internal/recurrence"
	"github.com/beekhof/class-sync/internal/schedule"
	"github.com/beekhof/class-sync/internal/store"
	"github.com/beekhof/class-sync/internal/sync"
)

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorise access to the account's Google Calendar.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "code", Usage: "Exchange an authorisation code obtained elsewhere instead of running the local callback server"},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			if e.cfg.CredentialsPath == "" {
				return fmt.Errorf("credentials_path must be provided via --credentials flag, GOOGLE_CREDENTIALS_PATH environment variable, or config file")
			}
			oauthConfig, err := auth.LoadOAuthConfig(e.cfg.CredentialsPath)
			if err != nil {
				return err
			}
			tokenStore := auth.NewFileTokenStore(e.cfg.TokenDir)

			if code := c.String("code"); code != "" {
				_, err = auth.Exchange(c.Context, oauthConfig, tokenStore, e.cfg.Account, code)
			} else {
				_, err = auth.Authorize(c.Context, oauthConfig, tokenStore, e.cfg.Account, e.out)
			}
			if err != nil {
				return err
			}

			e.logger.Info("Successfully authenticated and saved token.", "account", e.cfg.Account, "file", tokenStore.Path(e.cfg.Account))
			return nil
		}),
	}
}

func scheduleFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "name", Usage: "Class name, e.g. \"CSE 310\""},
		&cli.StringFlag{Name: "location", Usage: "BUILDING ROOM, e.g. \"STC 394\""},
		&cli.StringFlag{Name: "time", Usage: "Time slot, e.g. \"9:00 AM - 9:50 AM\""},
		&cli.StringFlag{Name: "days", Usage: "Comma separated weekdays, e.g. \"Monday,Wednesday\""},
		&cli.StringFlag{Name: "start", Usage: "First date, YYYY-MM-DD"},
		&cli.StringFlag{Name: "end", Usage: "Last date, YYYY-MM-DD"},
		&cli.StringFlag{Name: "semester", Usage: "Fill missing dates from a semester (Winter, Spring, Fall or auto)"},
		&cli.IntSliceFlag{Name: "reminder", Usage: "Extra reminder, minutes before class (repeatable)"},
	}
}

// semesterLabel resolves "auto" to the semester for today.
func semesterLabel(label string) string {
	if strings.EqualFold(label, "auto") {
		return schedule.AutoSelectSemester(time.Now())
	}
	return label
}

// applyScheduleFlags overrides in with every schedule flag that was set.
func applyScheduleFlags(c *cli.Context, in *sync.EventInput) error {
	if label := c.String("semester"); label != "" {
		window, err := schedule.SemesterWindow(semesterLabel(label), time.Now())
		if err != nil {
			return err
		}
		if !c.IsSet("start") {
			in.StartDate = window.StartISO()
		}
		if !c.IsSet("end") {
			in.EndDate = window.EndISO()
		}
	}

	fields := []struct {
		flag   string
		target *string
	}{
		{"name", &in.ClassName},
		{"location", &in.Location},
		{"time", &in.TimeSlot},
		{"days", &in.Days},
		{"start", &in.StartDate},
		{"end", &in.EndDate},
	}
	for _, f := range fields {
		if c.IsSet(f.flag) {
			*f.target = c.String(f.flag)
		}
	}
	if c.IsSet("reminder") {
		in.Reminders = c.IntSlice("reminder")
	}
	return nil
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Add a class and put it in the calendar.",
		Flags: append(scheduleFlags(),
			&cli.StringFlag{Name: "calendar", Value: "primary", Usage: "primary, new (a calendar for the semester) or existing"},
			&cli.StringFlag{Name: "semester-label", Usage: "Semester calendar label; defaults to --semester"},
			&cli.BoolFlag{Name: "recheck", Usage: "Check the sync status again after the configured delay"},
		),
		Action: withEnv(func(c *cli.Context, e *env) error {
			var in sync.EventInput
			if err := applyScheduleFlags(c, &in); err != nil {
				return err
			}

			label := c.String("semester-label")
			if label == "" {
				label = semesterLabel(c.String("semester"))
			}
			var target sync.Target
			switch c.String("calendar") {
			case "primary":
				target = sync.Primary()
			case "new":
				target = sync.NewCalendar(label)
			case "existing":
				target = sync.ExistingCalendar(label)
			default:
				return fmt.Errorf("--calendar must be 'primary', 'new' or 'existing', got '%s'", c.String("calendar"))
			}

			res, err := e.syncer.Create(c.Context, e.cfg.Account, in, target)
			if res != nil {
				if rerr := report(e, res); err == nil {
					err = rerr
				}
			}
			if err != nil {
				return err
			}
			if res.CalendarCreated {
				fmt.Fprintf(e.out, "Created calendar %s for %s\n", res.CalendarID, res.Event.SemesterLabel)
			}

			if c.Bool("recheck") && res.Status == sync.StatusSynced {
				return runCheck(c.Context, e, e.cfg.Recheck())
			}
			return nil
		}),
	}
}

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Change a class. Unset flags keep their current value.",
		ArgsUsage: "EVENT_ID",
		Flags:     scheduleFlags(),
		Action: withEnv(func(c *cli.Context, e *env) error {
			id, err := oneArg(c, "EVENT_ID")
			if err != nil {
				return err
			}
			current, err := e.store.GetEvent(c.Context, e.cfg.Account, id)
			if err != nil {
				return err
			}

			in := sync.EventInput{
				ClassName: current.ClassName,
				Location:  current.Location,
				TimeSlot:  current.TimeSlot,
				Days:      current.Days,
				StartDate: current.StartDate,
				EndDate:   current.EndDate,
				Reminders: current.Reminders,
			}
			if err := applyScheduleFlags(c, &in); err != nil {
				return err
			}

			res, err := e.syncer.Update(c.Context, e.cfg.Account, id, in)
			if res != nil {
				if rerr := report(e, res); err == nil {
					err = rerr
				}
			}
			return err
		}),
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Remove a class from the schedule and the calendar.",
		ArgsUsage: "EVENT_ID",
		Action: withEnv(func(c *cli.Context, e *env) error {
			id, err := oneArg(c, "EVENT_ID")
			if err != nil {
				return err
			}
			res, err := e.syncer.Delete(c.Context, e.cfg.Account, id)
			if err != nil {
				return err
			}
			return report(e, res)
		}),
	}
}

func deleteOccurrencesCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete-occurrences",
		Usage:     "Hide individual dates of a class. The calendar series is not changed.",
		ArgsUsage: "EVENT_ID DATE...",
		Action: withEnv(func(c *cli.Context, e *env) error {
			if c.NArg() < 2 {
				return fmt.Errorf("expected EVENT_ID and at least one DATE")
			}
			res, err := e.syncer.DeleteOccurrences(c.Context, e.cfg.Account, c.Args().First(), c.Args().Tail())
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Deleted %d of %d occurrences\n", res.Deleted, res.Requested)
			return nil
		}),
	}
}

func occurrencesCommand() *cli.Command {
	return &cli.Command{
		Name:      "occurrences",
		Usage:     "List the dates a class meets.",
		ArgsUsage: "EVENT_ID",
		Action: withEnv(func(c *cli.Context, e *env) error {
			id, err := oneArg(c, "EVENT_ID")
			if err != nil {
				return err
			}
			dates, err := e.syncer.Occurrences(c.Context, e.cfg.Account, id)
			if err != nil {
				return err
			}
			for _, d := range recurrence.FormatDates(dates) {
				fmt.Fprintln(e.out, d)
			}
			return nil
		}),
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List the account's classes.",
		Action: withEnv(func(c *cli.Context, e *env) error {
			events, err := e.syncer.ListEvents(c.Context, e.cfg.Account)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCLASS\tLOCATION\tDAYS\tTIME\tDATES\tSEMESTER\tSYNCED")
			for _, ev := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s..%s\t%s\t%v\n",
					ev.ID, ev.ClassName, ev.Location, ev.Days, ev.TimeSlot, ev.StartDate, ev.EndDate, ev.SemesterLabel, ev.InSync())
			}
			return w.Flush()
		}),
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Compare the schedule with the calendar.",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "delay", Usage: "Wait before checking"},
			&cli.StringFlag{Name: "schedule", Usage: "Keep running and check on a cron schedule, e.g. \"*/30 * * * *\""},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			cronSpec := c.String("schedule")
			if cronSpec == "" {
				return runCheck(c.Context, e, c.Duration("delay"))
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			scheduler := cron.New()
			if _, err := scheduler.AddFunc(cronSpec, func() {
				if err := runCheck(ctx, e, 0); err != nil {
					e.logger.Error("Check failed", "error", err)
				}
			}); err != nil {
				return fmt.Errorf("invalid --schedule: %w", err)
			}

			e.logger.Info("Starting scheduled checks.", "schedule", cronSpec)
			scheduler.Start()
			<-ctx.Done()
			<-scheduler.Stop().Done()
			return nil
		}),
	}
}

func runCheck(ctx context.Context, e *env, delay time.Duration) error {
	checker := e.syncer.NewChecker()
	statuses, err := checker.CheckAfter(ctx, e.cfg.Account, delay)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCLASS\tSTATUS")
	counts := make(map[sync.SyncState]int)
	for _, s := range statuses {
		counts[s.State]++
		line := fmt.Sprintf("%s\t%s\t%s", s.EventID, s.ClassName, s.State)
		if s.Err != nil {
			line += "\t" + s.Err.Error()
		}
		fmt.Fprintln(w, line)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if counts[sync.StateNoAuth] > 0 {
		fmt.Fprintln(e.out, "Calendar access needs re-authentication: run 'classsync auth'.")
	}
	if counts[sync.StateMissing] > 0 {
		fmt.Fprintf(e.out, "%d events are missing from the calendar; edit or recreate them to repair.\n", counts[sync.StateMissing])
	}
	if counts[sync.StateOutdated] > 0 {
		fmt.Fprintf(e.out, "%d events have edits the calendar has not received; run 'classsync update' again to retry.\n", counts[sync.StateOutdated])
	}
	return nil
}

func eventColorCommand() *cli.Command {
	return &cli.Command{
		Name:      "event-color",
		Usage:     "Give one class its own colour (event colour id or hex); \"\" clears it.",
		ArgsUsage: "EVENT_ID COLOR",
		Action: withEnv(func(c *cli.Context, e *env) error {
			if c.NArg() != 2 {
				return fmt.Errorf("expected EVENT_ID and COLOR")
			}
			res, err := e.syncer.SetEventColor(c.Context, e.cfg.Account, c.Args().Get(0), c.Args().Get(1))
			if err != nil {
				return err
			}
			return report(e, res)
		}),
	}
}

func calendarsCommand() *cli.Command {
	return &cli.Command{
		Name:  "calendars",
		Usage: "Manage the per-semester calendars.",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List semester calendars.",
				Action: withEnv(func(c *cli.Context, e *env) error {
					cals, err := e.syncer.ListCalendars(c.Context, e.cfg.Account)
					if err != nil {
						return err
					}
					w := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "SEMESTER\tCALENDAR\tCOLOR")
					for _, cal := range cals {
						fmt.Fprintf(w, "%s\t%s\t%s\n", cal.Label, cal.CalendarID, cal.ColorHex)
					}
					return w.Flush()
				}),
			},
			{
				Name:      "color",
				Usage:     "Set a calendar's colour (calendar colour id or hex).",
				ArgsUsage: "CALENDAR_ID COLOR",
				Action: withEnv(func(c *cli.Context, e *env) error {
					if c.NArg() != 2 {
						return fmt.Errorf("expected CALENDAR_ID and COLOR")
					}
					change, err := e.syncer.SetCalendarColor(c.Context, e.cfg.Account, c.Args().Get(0), c.Args().Get(1))
					if err != nil {
						return err
					}
					fmt.Fprintf(e.out, "%s is now colour %s (%s); cleared %d event colours\n",
						change.Label, change.ColorID, change.ColorHex, len(change.Cleared))
					if len(change.Failed) > 0 {
						fmt.Fprintf(e.out, "Could not clear the colour of %d events in the calendar: %s\n",
							len(change.Failed), strings.Join(change.Failed, ", "))
					}
					return nil
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete a semester calendar and every class in it.",
				ArgsUsage: "SEMESTER",
				Action: withEnv(func(c *cli.Context, e *env) error {
					label, err := oneArg(c, "SEMESTER")
					if err != nil {
						return err
					}
					removed, err := e.syncer.DeleteCalendar(c.Context, e.cfg.Account, label)
					if err != nil {
						return err
					}
					fmt.Fprintf(e.out, "Deleted calendar %s and %d classes\n", label, removed)
					return nil
				}),
			},
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write the schedule as an iCalendar file.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file; stdout when empty"},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			events, err := e.store.ListEvents(c.Context, e.cfg.Account)
			if err != nil {
				return err
			}
			entries := make([]export.Entry, 0, len(events))
			for _, ev := range events {
				deleted, err := e.store.ListDeletedOccurrences(c.Context, e.cfg.Account, ev.ID)
				if err != nil {
					return err
				}
				entries = append(entries, export.Entry{Event: ev, Deleted: deleted})
			}

			out := e.out
			if path := c.String("out"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", path, err)
				}
				defer f.Close()
				out = f
			}
			return export.WriteICS(out, entries, e.cfg.Location())
		}),
	}
}

func semesterCommand() *cli.Command {
	return &cli.Command{
		Name:      "semester",
		Usage:     "Show the dates of a semester; without an argument, the current one.",
		ArgsUsage: "[LABEL]",
		Action: func(c *cli.Context) error {
			label := c.Args().First()
			if label == "" {
				label = "auto"
			}
			window, err := schedule.SemesterWindow(semesterLabel(label), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n", window.Label, window.StartISO(), window.EndISO())
			return nil
		},
	}
}

func oneArg(c *cli.Context, name string) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("expected %s", name)
	}
	return c.Args().First(), nil
}

// report prints a Result and turns a rejection into a non-zero exit.
func report(e *env, res *sync.Result) error {
	if res.Cleanup != nil {
		// The process must not exit before the cleanup has run.
		if err := res.Cleanup.Wait(); err != nil {
			fmt.Fprintf(e.out, "Cleanup (%s) failed: %v\n", res.Cleanup.Description, err)
		}
	}

	id := ""
	if res.Event != nil {
		id = res.Event.ID
	}

	switch res.Status {
	case sync.StatusSynced:
		fmt.Fprintf(e.out, "%s: synced (calendar %s)\n", id, res.CalendarID)
	case sync.StatusPending:
		fmt.Fprintf(e.out, "%s: saved, sync pending: %s\n", id, res.Reason)
	case sync.StatusRejected:
		fmt.Fprintf(e.out, "rejected: %s\n", res.Reason)
	}
	if res.NeedsReauth {
		fmt.Fprintln(e.out, "Calendar access needs re-authentication: run 'classsync auth'.")
	}

	if res.Status == sync.StatusRejected {
		if errors.Is(res.Err, store.ErrNotFound) {
			return cli.Exit("", 3)
		}
		return cli.Exit("", 2)
	}
	return nil
}
