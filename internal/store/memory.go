package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store. It is used by tests and underlies File.
type Memory struct {
	mu          sync.Mutex
	events      map[string]*ClassEvent
	occurrences map[string]map[string]DeletedOccurrence // eventID -> date -> row
	calendars   map[calendarKey]*SemesterCalendar
	now         func() time.Time
}

type calendarKey struct {
	account string
	label   string
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		events:      make(map[string]*ClassEvent),
		occurrences: make(map[string]map[string]DeletedOccurrence),
		calendars:   make(map[calendarKey]*SemesterCalendar),
		now:         time.Now,
	}
}

func (m *Memory) ListEvents(_ context.Context, accountID string) ([]*ClassEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*ClassEvent
	for _, ev := range m.events {
		if ev.AccountID == accountID {
			out = append(out, ev.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) GetEvent(_ context.Context, accountID, id string) (*ClassEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.events[id]
	if !ok || ev.AccountID != accountID {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return ev.Clone(), nil
}

func (m *Memory) CreateEvent(_ context.Context, ev *ClassEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if _, exists := m.events[ev.ID]; exists {
		return fmt.Errorf("event %s: %w", ev.ID, ErrDuplicate)
	}
	now := m.now()
	ev.CreatedAt, ev.UpdatedAt = now, now
	m.events[ev.ID] = ev.Clone()
	return nil
}

func (m *Memory) UpdateEvent(_ context.Context, ev *ClassEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.events[ev.ID]
	if !ok || existing.AccountID != ev.AccountID {
		return fmt.Errorf("event %s: %w", ev.ID, ErrNotFound)
	}
	ev.CreatedAt = existing.CreatedAt
	ev.UpdatedAt = m.now()
	m.events[ev.ID] = ev.Clone()
	return nil
}

func (m *Memory) DeleteEvent(_ context.Context, accountID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.events[id]
	if !ok || ev.AccountID != accountID {
		return fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	delete(m.events, id)
	delete(m.occurrences, id)
	return nil
}

func (m *Memory) AddDeletedOccurrences(_ context.Context, accountID, eventID string, dates []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.events[eventID]
	if !ok || ev.AccountID != accountID {
		return 0, fmt.Errorf("event %s: %w", eventID, ErrNotFound)
	}

	rows := m.occurrences[eventID]
	if rows == nil {
		rows = make(map[string]DeletedOccurrence)
		m.occurrences[eventID] = rows
	}
	inserted := 0
	for _, d := range dates {
		if _, exists := rows[d]; exists {
			continue
		}
		rows[d] = DeletedOccurrence{EventID: eventID, Date: d, AccountID: accountID, CreatedAt: m.now()}
		inserted++
	}
	return inserted, nil
}

func (m *Memory) ListDeletedOccurrences(_ context.Context, accountID, eventID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var dates []string
	for d, row := range m.occurrences[eventID] {
		if row.AccountID == accountID {
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)
	return dates, nil
}

func (m *Memory) GetSemesterCalendar(_ context.Context, accountID, label string) (*SemesterCalendar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cal, ok := m.calendars[calendarKey{accountID, label}]
	if !ok {
		return nil, fmt.Errorf("semester calendar %q: %w", label, ErrNotFound)
	}
	c := *cal
	return &c, nil
}

func (m *Memory) ListSemesterCalendars(_ context.Context, accountID string) ([]*SemesterCalendar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*SemesterCalendar
	for key, cal := range m.calendars {
		if key.account == accountID {
			c := *cal
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (m *Memory) CreateSemesterCalendar(_ context.Context, cal *SemesterCalendar) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := calendarKey{cal.AccountID, cal.Label}
	if _, exists := m.calendars[key]; exists {
		return fmt.Errorf("semester calendar %q: %w", cal.Label, ErrDuplicate)
	}
	cal.CreatedAt = m.now()
	c := *cal
	m.calendars[key] = &c
	return nil
}

func (m *Memory) UpdateSemesterCalendar(_ context.Context, cal *SemesterCalendar) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := calendarKey{cal.AccountID, cal.Label}
	existing, ok := m.calendars[key]
	if !ok {
		return fmt.Errorf("semester calendar %q: %w", cal.Label, ErrNotFound)
	}
	cal.CreatedAt = existing.CreatedAt
	c := *cal
	m.calendars[key] = &c
	return nil
}

func (m *Memory) DeleteSemesterCalendar(_ context.Context, accountID, label string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := calendarKey{accountID, label}
	if _, ok := m.calendars[key]; !ok {
		return 0, fmt.Errorf("semester calendar %q: %w", label, ErrNotFound)
	}

	removed := 0
	for id, ev := range m.events {
		if ev.AccountID == accountID && ev.SemesterLabel == label {
			delete(m.events, id)
			delete(m.occurrences, id)
			removed++
		}
	}
	delete(m.calendars, key)
	return removed, nil
}

// snapshot is the serialised form of a Memory store.
type snapshot struct {
	Events             []*ClassEvent       `json:"events"`
	DeletedOccurrences []DeletedOccurrence `json:"deleted_occurrences"`
	SemesterCalendars  []*SemesterCalendar `json:"semester_calendars"`
}

func (m *Memory) snapshot() snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	var snap snapshot
	for _, ev := range m.events {
		snap.Events = append(snap.Events, ev.Clone())
	}
	for _, rows := range m.occurrences {
		for _, row := range rows {
			snap.DeletedOccurrences = append(snap.DeletedOccurrences, row)
		}
	}
	for _, cal := range m.calendars {
		c := *cal
		snap.SemesterCalendars = append(snap.SemesterCalendars, &c)
	}

	sort.Slice(snap.Events, func(i, j int) bool { return snap.Events[i].ID < snap.Events[j].ID })
	sort.Slice(snap.DeletedOccurrences, func(i, j int) bool {
		a, b := snap.DeletedOccurrences[i], snap.DeletedOccurrences[j]
		if a.EventID != b.EventID {
			return a.EventID < b.EventID
		}
		return a.Date < b.Date
	})
	sort.Slice(snap.SemesterCalendars, func(i, j int) bool {
		a, b := snap.SemesterCalendars[i], snap.SemesterCalendars[j]
		if a.AccountID != b.AccountID {
			return a.AccountID < b.AccountID
		}
		return a.Label < b.Label
	})
	return snap
}

func (m *Memory) restore(snap snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = make(map[string]*ClassEvent)
	m.occurrences = make(map[string]map[string]DeletedOccurrence)
	m.calendars = make(map[calendarKey]*SemesterCalendar)
	for _, ev := range snap.Events {
		m.events[ev.ID] = ev
	}
	for _, row := range snap.DeletedOccurrences {
		if m.occurrences[row.EventID] == nil {
			m.occurrences[row.EventID] = make(map[string]DeletedOccurrence)
		}
		m.occurrences[row.EventID][row.Date] = row
	}
	for _, cal := range snap.SemesterCalendars {
		m.calendars[calendarKey{cal.AccountID, cal.Label}] = cal
	}
}
