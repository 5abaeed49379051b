package calendar

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Client is a wrapper around the Google Calendar API service.
type Client struct {
	service *calendar.Service
}

var _ Service = (*Client)(nil)

// NewClient creates a Google Calendar API client using the provided HTTP
// client. A non-empty endpoint replaces the API base URL.
func NewClient(ctx context.Context, httpClient *http.Client, endpoint string) (*Client, error) {
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &Client{service: service}, nil
}

// InsertEvent inserts a new event and returns it with its remote id.
// Important: Sets sendUpdates="none" to prevent notifications.
func (c *Client) InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	created, err := c.service.Events.Insert(calendarID, event).
		SendUpdates("none").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", classify(err))
	}
	return created, nil
}

// UpdateEvent replaces an existing event, keeping its id.
func (c *Client) UpdateEvent(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error) {
	updated, err := c.service.Events.Update(calendarID, eventID, event).
		SendUpdates("none").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to update event %s: %w", eventID, classify(err))
	}
	return updated, nil
}

// PatchEventColor sets an event's colour id. An empty id clears the override
// so the event falls back to its calendar's colour.
func (c *Client) PatchEventColor(ctx context.Context, calendarID, eventID, colorID string) error {
	patch := &calendar.Event{ColorId: colorID}
	if colorID == "" {
		patch.NullFields = []string{"ColorId"}
	}

	_, err := c.service.Events.Patch(calendarID, eventID, patch).
		SendUpdates("none").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to set colour of event %s: %w", eventID, classify(err))
	}
	return nil
}

// DeleteEvent deletes an event from a calendar.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	err := c.service.Events.Delete(calendarID, eventID).
		SendUpdates("none").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to delete event %s: %w", eventID, classify(err))
	}
	return nil
}

// GetEvent retrieves a single event by ID.
func (c *Client) GetEvent(ctx context.Context, calendarID, eventID string) (*calendar.Event, error) {
	event, err := c.service.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", eventID, classify(err))
	}
	return event, nil
}

// InsertCalendar creates a secondary calendar.
func (c *Client) InsertCalendar(ctx context.Context, cal *calendar.Calendar) (*calendar.Calendar, error) {
	created, err := c.service.Calendars.Insert(cal).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar: %w", classify(err))
	}
	return created, nil
}

// DeleteCalendar deletes a secondary calendar and every event on it.
func (c *Client) DeleteCalendar(ctx context.Context, calendarID string) error {
	if err := c.service.Calendars.Delete(calendarID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete calendar %s: %w", calendarID, classify(err))
	}
	return nil
}

// SetCalendarColor sets the colour id of a calendar in the account's
// calendar list.
func (c *Client) SetCalendarColor(ctx context.Context, calendarID, colorID string) error {
	_, err := c.service.CalendarList.Update(calendarID, &calendar.CalendarListEntry{
		Id:      calendarID,
		ColorId: colorID,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to set colour of calendar %s: %w", calendarID, classify(err))
	}
	return nil
}
