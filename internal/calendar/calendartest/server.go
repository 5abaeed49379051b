// Package calendartest provides an in-process fake of the Google Calendar v3
// API covering the events, calendars and calendarList calls class-sync makes.
package calendartest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/calendar/v3"
)

// Operation names used by Calls and FailNext.
const (
	OpInsertEvent    = "events.insert"
	OpUpdateEvent    = "events.update"
	OpPatchEvent     = "events.patch"
	OpDeleteEvent    = "events.delete"
	OpGetEvent       = "events.get"
	OpInsertCalendar = "calendars.insert"
	OpDeleteCalendar = "calendars.delete"
	OpUpdateListItem = "calendarList.update"
)

// Server is a fake Google Calendar API server for tests.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	events    map[string]map[string]*calendar.Event // calendarID -> eventID -> event
	calendars map[string]*calendar.Calendar
	colors    map[string]string // calendarID -> colorId
	gone      map[string]bool   // calendarID/eventID of deleted events
	calls     map[string]int
	failures  map[string][]int
	token     string
	nextID    int
}

// NewServer starts a fake server. The "primary" calendar always exists.
func NewServer() *Server {
	s := &Server{
		events:    map[string]map[string]*calendar.Event{"primary": {}},
		calendars: map[string]*calendar.Calendar{"primary": {Id: "primary", Summary: "primary"}},
		colors:    make(map[string]string),
		gone:      make(map[string]bool),
		calls:     make(map[string]int),
		failures:  make(map[string][]int),
		nextID:    1,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handleRequest))
	return s
}

// RequireToken makes every request without "Bearer token" fail with 401.
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// FailNext makes the next call of op fail with the given HTTP status. Calls
// stack: FailNext(op, 500); FailNext(op, 404) fails the next two calls.
func (s *Server) FailNext(op string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], status)
}

// Calls returns how many requests for op have been received, failed ones
// included.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// TotalCalls returns the number of API requests received.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// Event returns a stored event or nil.
func (s *Server) Event(calendarID, eventID string) *calendar.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cal := s.events[calendarID]; cal != nil {
		return cal[eventID]
	}
	return nil
}

// Events returns all events stored on a calendar.
func (s *Server) Events(calendarID string) []*calendar.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*calendar.Event
	for _, evt := range s.events[calendarID] {
		out = append(out, evt)
	}
	return out
}

// Calendar returns a stored secondary calendar or nil.
func (s *Server) Calendar(calendarID string) *calendar.Calendar {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calendars[calendarID]
}

// CalendarColor returns the colour id set through calendarList.update.
func (s *Server) CalendarColor(calendarID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.colors[calendarID]
}

// AddEvent stores an event directly, for test setup.
func (s *Server) AddEvent(calendarID string, event *calendar.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.Id == "" {
		event.Id = s.newID("event")
	}
	if s.events[calendarID] == nil {
		s.events[calendarID] = make(map[string]*calendar.Event)
	}
	s.events[calendarID][event.Id] = event
}

// RemoveEvent deletes an event behind the client's back, for desync tests.
func (s *Server) RemoveEvent(calendarID, eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events[calendarID], eventID)
}

func (s *Server) newID(prefix string) string {
	id := fmt.Sprintf("%s%d", prefix, s.nextID)
	s.nextID++
	return id
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case strings.Contains(path, "/users/me/calendarList/"):
		calendarID := path[strings.Index(path, "/users/me/calendarList/")+len("/users/me/calendarList/"):]
		s.route(w, r, OpUpdateListItem, func() { s.updateListEntry(w, r, calendarID) }, http.MethodPut, http.MethodPatch)
		return
	case strings.Contains(path, "/calendars"):
	default:
		http.Error(w, "unsupported endpoint", http.StatusNotFound)
		return
	}

	rest := strings.Trim(path[strings.Index(path, "/calendars")+len("/calendars"):], "/")
	if rest == "" {
		s.route(w, r, OpInsertCalendar, func() { s.insertCalendar(w, r) }, http.MethodPost)
		return
	}

	parts := strings.Split(rest, "/")
	calendarID := parts[0]
	switch {
	case len(parts) == 1:
		s.route(w, r, OpDeleteCalendar, func() { s.deleteCalendar(w, calendarID) }, http.MethodDelete)
	case len(parts) == 2 && parts[1] == "events":
		s.route(w, r, OpInsertEvent, func() { s.insertEvent(w, r, calendarID) }, http.MethodPost)
	case len(parts) == 3 && parts[1] == "events":
		eventID := parts[2]
		switch r.Method {
		case http.MethodGet:
			s.route(w, r, OpGetEvent, func() { s.getEvent(w, calendarID, eventID) }, http.MethodGet)
		case http.MethodPut:
			s.route(w, r, OpUpdateEvent, func() { s.updateEvent(w, r, calendarID, eventID, false) }, http.MethodPut)
		case http.MethodPatch:
			s.route(w, r, OpPatchEvent, func() { s.updateEvent(w, r, calendarID, eventID, true) }, http.MethodPatch)
		case http.MethodDelete:
			s.route(w, r, OpDeleteEvent, func() { s.deleteEvent(w, calendarID, eventID) }, http.MethodDelete)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	default:
		http.Error(w, "invalid path", http.StatusBadRequest)
	}
}

// route counts the call, applies auth and injected failures, then runs handle
// with the lock held.
func (s *Server) route(w http.ResponseWriter, r *http.Request, op string, handle func(), methods ...string) {
	allowed := false
	for _, m := range methods {
		if r.Method == m {
			allowed = true
		}
	}
	if !allowed {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[op]++
	if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
		writeError(w, http.StatusUnauthorized, "Invalid Credentials")
		return
	}
	if queued := s.failures[op]; len(queued) > 0 {
		s.failures[op] = queued[1:]
		writeError(w, queued[0], "injected failure")
		return
	}
	handle()
}

func (s *Server) insertEvent(w http.ResponseWriter, r *http.Request, calendarID string) {
	var event calendar.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if s.calendars[calendarID] == nil {
		writeError(w, http.StatusNotFound, "calendar not found")
		return
	}

	event.Id = s.newID("event")
	event.Status = "confirmed"
	event.Created = time.Now().Format(time.RFC3339)
	event.Updated = event.Created
	event.HtmlLink = "https://calendar.google.com/event?eid=" + event.Id

	if s.events[calendarID] == nil {
		s.events[calendarID] = make(map[string]*calendar.Event)
	}
	s.events[calendarID][event.Id] = &event
	writeJSON(w, &event)
}

func (s *Server) getEvent(w http.ResponseWriter, calendarID, eventID string) {
	event := s.events[calendarID][eventID]
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, event)
}

func (s *Server) updateEvent(w http.ResponseWriter, r *http.Request, calendarID, eventID string, patch bool) {
	existing := s.events[calendarID][eventID]
	if existing == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	var raw map[string]json.RawMessage
	var body calendar.Event
	data := json.NewDecoder(r.Body)
	if err := data.Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	encoded, _ := json.Marshal(raw)
	_ = json.Unmarshal(encoded, &body)

	updated := body
	if patch {
		updated = *existing
		if v, ok := raw["colorId"]; ok {
			var colorID *string
			_ = json.Unmarshal(v, &colorID)
			updated.ColorId = ""
			if colorID != nil {
				updated.ColorId = *colorID
			}
		}
		if body.Summary != "" {
			updated.Summary = body.Summary
		}
	}

	updated.Id = eventID
	updated.Status = existing.Status
	updated.Created = existing.Created
	updated.Updated = time.Now().Format(time.RFC3339)
	updated.HtmlLink = existing.HtmlLink
	s.events[calendarID][eventID] = &updated
	writeJSON(w, &updated)
}

func (s *Server) deleteEvent(w http.ResponseWriter, calendarID, eventID string) {
	key := calendarID + "/" + eventID
	if s.gone[key] {
		writeError(w, http.StatusGone, "Resource has been deleted")
		return
	}
	if s.events[calendarID][eventID] == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	delete(s.events[calendarID], eventID)
	s.gone[key] = true
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) insertCalendar(w http.ResponseWriter, r *http.Request) {
	var cal calendar.Calendar
	if err := json.NewDecoder(r.Body).Decode(&cal); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	cal.Id = s.newID("cal") + "@group.calendar.google.com"
	s.calendars[cal.Id] = &cal
	s.events[cal.Id] = make(map[string]*calendar.Event)
	writeJSON(w, &cal)
}

func (s *Server) deleteCalendar(w http.ResponseWriter, calendarID string) {
	if calendarID == "primary" || s.calendars[calendarID] == nil {
		writeError(w, http.StatusNotFound, "calendar not found")
		return
	}
	delete(s.calendars, calendarID)
	delete(s.events, calendarID)
	delete(s.colors, calendarID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) updateListEntry(w http.ResponseWriter, r *http.Request, calendarID string) {
	var entry calendar.CalendarListEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	cal := s.calendars[calendarID]
	if cal == nil {
		writeError(w, http.StatusNotFound, "calendar not found")
		return
	}
	s.colors[calendarID] = entry.ColorId
	entry.Id = calendarID
	entry.Summary = cal.Summary
	writeJSON(w, &entry)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers in the API's error envelope so clients see a
// *googleapi.Error with the right code.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":    status,
			"message": message,
		},
	})
}
