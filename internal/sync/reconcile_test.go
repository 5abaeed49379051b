package sync

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/beekhof/class-sync/internal/calendar/calendartest"
)

func statesByID(statuses []EventStatus) map[string]EventStatus {
	out := make(map[string]EventStatus, len(statuses))
	for _, s := range statuses {
		out[s.EventID] = s
	}
	return out
}

func TestCheckAll(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	present := f.create(t, mondayWednesday(), Primary())
	vanished := f.create(t, mondayWednesday(), NewCalendar("Fall"))
	f.srv.RemoveEvent(vanished.CalendarID, vanished.Event.RemoteEventID)

	f.srv.FailNext(calendartest.OpInsertEvent, http.StatusInternalServerError)
	unsynced := f.create(t, mondayWednesday(), Primary())

	statuses, err := f.syncer.NewChecker().CheckAll(ctx, testAccount)
	if err != nil {
		t.Fatalf("CheckAll failed: %v", err)
	}
	if len(statuses) != 3 {
		t.Fatalf("Expected 3 statuses, got %d", len(statuses))
	}

	got := statesByID(statuses)
	if got[present.Event.ID].State != StateSynced {
		t.Errorf("Expected synced, got %s", got[present.Event.ID].State)
	}
	if got[vanished.Event.ID].State != StateMissing {
		t.Errorf("Expected missing, got %s", got[vanished.Event.ID].State)
	}
	if got[unsynced.Event.ID].State != StateNotSynced {
		t.Errorf("Expected not_synced, got %s", got[unsynced.Event.ID].State)
	}
	if f.srv.Calls(calendartest.OpGetEvent) != 2 {
		t.Errorf("Expected 2 lookups, got %d", f.srv.Calls(calendartest.OpGetEvent))
	}
}

func TestCheckAllWithoutTokenMakesNoCalls(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, mondayWednesday(), Primary())
	f.create(t, mondayWednesday(), Primary())
	f.tokens.token = nil
	before := f.srv.TotalCalls()

	statuses, err := f.syncer.NewChecker().CheckAll(context.Background(), testAccount)
	if err != nil {
		t.Fatalf("CheckAll failed: %v", err)
	}
	for _, s := range statuses {
		if s.State != StateNoAuth {
			t.Errorf("Expected no_auth for %s, got %s", s.EventID, s.State)
		}
	}
	if len(statuses) != 2 {
		t.Errorf("Expected 2 statuses, got %d", len(statuses))
	}
	if f.srv.TotalCalls() != before {
		t.Errorf("Expected zero remote calls, got %d", f.srv.TotalCalls()-before)
	}
}

func TestCheckAllContinuesAfterFailure(t *testing.T) {
	f := newFixture(t, nil)
	first := f.create(t, mondayWednesday(), Primary())
	second := f.create(t, mondayWednesday(), Primary())
	f.srv.FailNext(calendartest.OpGetEvent, http.StatusInternalServerError)

	statuses, err := f.syncer.NewChecker().CheckAll(context.Background(), testAccount)
	if err != nil {
		t.Fatalf("CheckAll failed: %v", err)
	}
	got := statesByID(statuses)
	if got[first.Event.ID].State != StateUnknown || got[first.Event.ID].Err == nil {
		t.Errorf("Expected unknown with an error, got %+v", got[first.Event.ID])
	}
	if got[second.Event.ID].State != StateSynced {
		t.Errorf("Expected the batch to continue, got %s", got[second.Event.ID].State)
	}
}

func TestCheckAllExpiredToken(t *testing.T) {
	f := newFixture(t, nil)
	created := f.create(t, mondayWednesday(), Primary())
	f.srv.FailNext(calendartest.OpGetEvent, http.StatusUnauthorized)

	statuses, _ := f.syncer.NewChecker().CheckAll(context.Background(), testAccount)
	if got := statesByID(statuses)[created.Event.ID].State; got != StateNoAuth {
		t.Errorf("Expected no_auth, got %s", got)
	}
}

func TestCheckAllCancelledEventIsMissing(t *testing.T) {
	f := newFixture(t, nil)
	created := f.create(t, mondayWednesday(), Primary())
	f.srv.Event("primary", created.Event.RemoteEventID).Status = "cancelled"

	statuses, _ := f.syncer.NewChecker().CheckAll(context.Background(), testAccount)
	if got := statesByID(statuses)[created.Event.ID].State; got != StateMissing {
		t.Errorf("Expected missing, got %s", got)
	}
}

func TestCheckAllOwedEditIsOutdated(t *testing.T) {
	f := newFixture(t, nil)
	created := f.create(t, mondayWednesday(), Primary())
	f.srv.FailNext(calendartest.OpUpdateEvent, http.StatusInternalServerError)

	in := mondayWednesday()
	in.Location = "ENGR 202"
	if res, _ := f.syncer.Update(context.Background(), testAccount, created.Event.ID, in); res.Status != StatusPending {
		t.Fatalf("Expected pending, got %s", res.Status)
	}

	statuses, _ := f.syncer.NewChecker().CheckAll(context.Background(), testAccount)
	if got := statesByID(statuses)[created.Event.ID].State; got != StateOutdated {
		t.Errorf("Expected outdated, got %s", got)
	}
}

func TestCheckAfter(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, mondayWednesday(), Primary())

	statuses, err := f.syncer.NewChecker().CheckAfter(context.Background(), testAccount, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("CheckAfter failed: %v", err)
	}
	if len(statuses) != 1 || statuses[0].State != StateSynced {
		t.Errorf("Expected one synced event, got %+v", statuses)
	}
}

func TestCheckAfterCancelled(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.syncer.NewChecker().CheckAfter(ctx, testAccount, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
