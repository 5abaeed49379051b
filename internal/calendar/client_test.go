package calendar_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/beekhof/class-sync/internal/calendar"
	"github.com/beekhof/class-sync/internal/calendar/calendartest"
)

func connect(t *testing.T, srv *calendartest.Server, accessToken string) calendar.Service {
	t.Helper()
	connector := &calendar.GoogleConnector{Endpoint: srv.URL + "/"}
	svc, err := connector.Connect(context.Background(), &oauth2.Token{AccessToken: accessToken})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return svc
}

func TestEventLifecycle(t *testing.T) {
	srv := calendartest.NewServer()
	defer srv.Close()
	svc := connect(t, srv, "token")
	ctx := context.Background()

	created, err := svc.InsertEvent(ctx, calendar.PrimaryCalendarID, &gcal.Event{
		Summary:    "CSE 310",
		Recurrence: []string{"RRULE:FREQ=WEEKLY;BYDAY=MO;UNTIL=20241214T065959Z"},
	})
	if err != nil {
		t.Fatalf("InsertEvent failed: %v", err)
	}
	if created.Id == "" {
		t.Fatal("Expected inserted event to have an id")
	}

	got, err := svc.GetEvent(ctx, calendar.PrimaryCalendarID, created.Id)
	if err != nil {
		t.Fatalf("GetEvent failed: %v", err)
	}
	if got.Summary != "CSE 310" {
		t.Errorf("Expected summary 'CSE 310', got '%s'", got.Summary)
	}

	if _, err := svc.UpdateEvent(ctx, calendar.PrimaryCalendarID, created.Id, &gcal.Event{Summary: "CSE 320"}); err != nil {
		t.Fatalf("UpdateEvent failed: %v", err)
	}
	if srv.Event("primary", created.Id).Summary != "CSE 320" {
		t.Errorf("Expected updated summary on server")
	}

	if err := svc.PatchEventColor(ctx, calendar.PrimaryCalendarID, created.Id, "5"); err != nil {
		t.Fatalf("PatchEventColor failed: %v", err)
	}
	if c := srv.Event("primary", created.Id).ColorId; c != "5" {
		t.Errorf("Expected colour 5, got '%s'", c)
	}
	if err := svc.PatchEventColor(ctx, calendar.PrimaryCalendarID, created.Id, ""); err != nil {
		t.Fatalf("PatchEventColor clear failed: %v", err)
	}
	if c := srv.Event("primary", created.Id).ColorId; c != "" {
		t.Errorf("Expected colour to be cleared, got '%s'", c)
	}

	if err := svc.DeleteEvent(ctx, calendar.PrimaryCalendarID, created.Id); err != nil {
		t.Fatalf("DeleteEvent failed: %v", err)
	}
	if _, err := svc.GetEvent(ctx, calendar.PrimaryCalendarID, created.Id); !calendar.IsNotFound(err) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	// A second delete answers 410 Gone, which is also "not found".
	if err := svc.DeleteEvent(ctx, calendar.PrimaryCalendarID, created.Id); !calendar.IsNotFound(err) {
		t.Errorf("Expected ErrNotFound for 410, got %v", err)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{status: http.StatusUnauthorized, want: calendar.ErrAuthExpired},
		{status: http.StatusNotFound, want: calendar.ErrNotFound},
		{status: http.StatusGone, want: calendar.ErrNotFound},
		{status: http.StatusInternalServerError, want: calendar.ErrTransient},
		{status: http.StatusTooManyRequests, want: calendar.ErrTransient},
		{status: http.StatusForbidden, want: calendar.ErrTransient},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := calendartest.NewServer()
			defer srv.Close()
			svc := connect(t, srv, "token")

			srv.FailNext(calendartest.OpInsertEvent, tt.status)
			_, err := svc.InsertEvent(context.Background(), calendar.PrimaryCalendarID, &gcal.Event{Summary: "x"})
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRejectedToken(t *testing.T) {
	srv := calendartest.NewServer()
	defer srv.Close()
	srv.RequireToken("fresh")

	_, err := connect(t, srv, "stale").GetEvent(context.Background(), calendar.PrimaryCalendarID, "event1")
	if !calendar.IsAuthExpired(err) {
		t.Errorf("Expected ErrAuthExpired, got %v", err)
	}
}

func TestConnectWithoutToken(t *testing.T) {
	connector := &calendar.GoogleConnector{}
	if _, err := connector.Connect(context.Background(), &oauth2.Token{}); err == nil {
		t.Error("Expected an error for an empty access token")
	}
}

func TestCalendarLifecycle(t *testing.T) {
	srv := calendartest.NewServer()
	defer srv.Close()
	svc := connect(t, srv, "token")
	ctx := context.Background()

	cal, err := svc.InsertCalendar(ctx, &gcal.Calendar{Summary: "Fall", TimeZone: "America/Denver"})
	if err != nil {
		t.Fatalf("InsertCalendar failed: %v", err)
	}
	if err := svc.SetCalendarColor(ctx, cal.Id, "16"); err != nil {
		t.Fatalf("SetCalendarColor failed: %v", err)
	}
	if got := srv.CalendarColor(cal.Id); got != "16" {
		t.Errorf("Expected colour 16, got '%s'", got)
	}

	if err := svc.DeleteCalendar(ctx, cal.Id); err != nil {
		t.Fatalf("DeleteCalendar failed: %v", err)
	}
	if err := svc.DeleteCalendar(ctx, cal.Id); !calendar.IsNotFound(err) {
		t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
	}
}
