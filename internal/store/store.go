// Package store holds the local, authoritative records of class-sync: class
// events, their deleted occurrences and the per-semester calendars.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a row does not exist for the account.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a uniqueness constraint would be broken.
	ErrDuplicate = errors.New("record already exists")

	// ErrPersistence wraps every failure of the underlying storage.
	ErrPersistence = errors.New("local persistence failure")
)

// ClassEvent is one weekly class as the user entered it, plus what has been
// derived from it and the id of its remote counterpart.
type ClassEvent struct {
	ID            string `json:"id" gorm:"primaryKey;type:varchar(64)"`
	AccountID     string `json:"account_id" gorm:"type:varchar(255);not null;index"`
	ClassName     string `json:"class_name" gorm:"type:varchar(255);not null"`
	Location      string `json:"location,omitempty" gorm:"type:varchar(255)"`
	TimeSlot      string `json:"time_slot" gorm:"type:varchar(64);not null"`
	Days          string `json:"days" gorm:"type:varchar(128);not null"`
	StartDate     string `json:"start_date" gorm:"type:varchar(10);not null"`
	EndDate       string `json:"end_date" gorm:"type:varchar(10);not null"`
	Recurrence    string `json:"recurrence,omitempty" gorm:"type:varchar(255)"`
	RemoteEventID string `json:"remote_event_id,omitempty" gorm:"type:varchar(255)"`
	// RemoteDays is the weekday set of the series RemoteEventID points at,
	// which lags Days until an edit reaches the calendar.
	RemoteDays string `json:"remote_days,omitempty" gorm:"type:varchar(128)"`
	// SyncPending is set while the remote event is behind the local row.
	SyncPending bool `json:"sync_pending,omitempty" gorm:"not null;default:false"`
	// CalendarTarget is the requested placement ("primary", "new" or
	// "existing"). SemesterLabel holds its label until the event is placed,
	// then the label of the calendar it actually lives on.
	CalendarTarget string    `json:"calendar_target,omitempty" gorm:"type:varchar(16)"`
	SemesterLabel  string    `json:"semester_label,omitempty" gorm:"type:varchar(64);index"`
	Reminders      []int     `json:"reminders,omitempty" gorm:"serializer:json"`
	ColorID        string    `json:"color_id,omitempty" gorm:"type:varchar(8)"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName implements gorm's tabler.
func (ClassEvent) TableName() string { return "class_events" }

// Synced reports whether the event has a remote counterpart on record.
func (e *ClassEvent) Synced() bool { return e.RemoteEventID != "" }

// InSync reports whether the remote counterpart matches the local row.
func (e *ClassEvent) InSync() bool { return e.Synced() && !e.SyncPending }

// Clone returns a deep copy.
func (e *ClassEvent) Clone() *ClassEvent {
	c := *e
	if e.Reminders != nil {
		c.Reminders = append([]int(nil), e.Reminders...)
	}
	return &c
}

// DeletedOccurrence excludes one date of a recurring class locally.
type DeletedOccurrence struct {
	EventID   string    `json:"event_id" gorm:"primaryKey;type:varchar(64)"`
	Date      string    `json:"date" gorm:"primaryKey;type:varchar(10)"`
	AccountID string    `json:"account_id" gorm:"type:varchar(255);not null;index"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName implements gorm's tabler.
func (DeletedOccurrence) TableName() string { return "deleted_occurrences" }

// SemesterCalendar binds a semester label to a dedicated remote calendar.
type SemesterCalendar struct {
	AccountID  string    `json:"account_id" gorm:"primaryKey;type:varchar(255)"`
	Label      string    `json:"label" gorm:"primaryKey;type:varchar(64)"`
	CalendarID string    `json:"calendar_id" gorm:"type:varchar(255);not null"`
	ColorHex   string    `json:"color_hex" gorm:"type:varchar(7)"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName implements gorm's tabler.
func (SemesterCalendar) TableName() string { return "semester_calendars" }

// Store is the local persistence contract. Every method is scoped to an
// account; rows of other accounts behave as if they did not exist.
type Store interface {
	ListEvents(ctx context.Context, accountID string) ([]*ClassEvent, error)
	GetEvent(ctx context.Context, accountID, id string) (*ClassEvent, error)
	// CreateEvent assigns ev.ID when it is empty.
	CreateEvent(ctx context.Context, ev *ClassEvent) error
	UpdateEvent(ctx context.Context, ev *ClassEvent) error
	// DeleteEvent removes the event and its deleted occurrences.
	DeleteEvent(ctx context.Context, accountID, id string) error

	// AddDeletedOccurrences records dates, skipping ones already recorded,
	// and returns how many were new.
	AddDeletedOccurrences(ctx context.Context, accountID, eventID string, dates []string) (int, error)
	ListDeletedOccurrences(ctx context.Context, accountID, eventID string) ([]string, error)

	GetSemesterCalendar(ctx context.Context, accountID, label string) (*SemesterCalendar, error)
	ListSemesterCalendars(ctx context.Context, accountID string) ([]*SemesterCalendar, error)
	// CreateSemesterCalendar fails with ErrDuplicate if the label is taken.
	CreateSemesterCalendar(ctx context.Context, cal *SemesterCalendar) error
	UpdateSemesterCalendar(ctx context.Context, cal *SemesterCalendar) error
	// DeleteSemesterCalendar removes the calendar row and every event bound
	// to its label, returning the number of events removed.
	DeleteSemesterCalendar(ctx context.Context, accountID, label string) (int, error)
}
