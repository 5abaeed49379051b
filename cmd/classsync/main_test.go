package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// run executes the CLI against a private state file and token directory.
func run(t *testing.T, dir string, args ...string) string {
	t.Helper()
	for _, name := range []string{"GOOGLE_CREDENTIALS_PATH", "DATABASE_URL", "CLASSSYNC_ACCOUNT", "CLASSSYNC_TIME_ZONE", "CLASSSYNC_STATE_PATH", "CLASSSYNC_TOKEN_DIR", "CLASSSYNC_CALENDAR_ID", "CLASSSYNC_CALENDAR_COLOR", "CLASSSYNC_RECHECK_DELAY", "CLASSSYNC_VALIDATE_LOCATIONS"} {
		t.Setenv(name, "")
	}

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out

	base := []string{"classsync", "--account", "student@example.com", "--state", filepath.Join(dir, "state.json"), "--token-dir", dir, "--log-level", "error"}
	if err := app.Run(append(base, args...)); err != nil {
		t.Fatalf("classsync %s failed: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestCreateWithoutTokenIsPending(t *testing.T) {
	dir := t.TempDir()

	out := run(t, dir, "create",
		"--name", "CSE 310",
		"--location", "STC 394",
		"--time", "9:00 AM - 9:50 AM",
		"--days", "Monday,Wednesday",
		"--start", "2024-08-26",
		"--end", "2024-12-13",
	)
	if !strings.Contains(out, "sync pending") {
		t.Errorf("Expected a pending result, got: %s", out)
	}
	if !strings.Contains(out, "classsync auth") {
		t.Errorf("Expected a re-authentication hint, got: %s", out)
	}

	if _, err := os.Stat(filepath.Join(dir, "state.json")); err != nil {
		t.Fatalf("Expected the state file to be written: %v", err)
	}

	list := run(t, dir, "list")
	if !strings.Contains(list, "CSE 310") || !strings.Contains(list, "false") {
		t.Errorf("Expected the unsynced class in the list, got: %s", list)
	}

	check := run(t, dir, "check")
	if !strings.Contains(check, "no_auth") {
		t.Errorf("Expected no_auth from check, got: %s", check)
	}

	ics := run(t, dir, "export")
	if !strings.Contains(ics, "BEGIN:VEVENT") || !strings.Contains(ics, "RRULE:FREQ=WEEKLY;BYDAY=MO,WE;UNTIL=20241214T065959Z") {
		t.Errorf("Expected an exported recurring event, got: %s", ics)
	}
}

func TestSemesterCommand(t *testing.T) {
	out := run(t, t.TempDir(), "semester", "fall")
	fields := strings.Fields(out)
	if len(fields) != 3 || fields[0] != "Fall" {
		t.Fatalf("Unexpected output: %q", out)
	}
	if !strings.HasSuffix(fields[1], "-09-01") {
		t.Errorf("Expected a September start, got %s", fields[1])
	}
}

func TestSemesterLabel(t *testing.T) {
	if got := semesterLabel("Fall"); got != "Fall" {
		t.Errorf("Expected Fall, got %s", got)
	}
	if got := semesterLabel("AUTO"); got == "" || got == "AUTO" {
		t.Errorf("Expected auto to resolve to a semester, got %q", got)
	}
}
