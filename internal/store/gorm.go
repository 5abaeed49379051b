package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Gorm is a Store backed by a relational database through gorm.
type Gorm struct {
	db *gorm.DB
}

var _ Store = (*Gorm)(nil)

// OpenPostgres connects to the database at dsn and migrates the schema.
func OpenPostgres(dsn string) (*Gorm, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to database: %v", ErrPersistence, err)
	}
	return NewGorm(db)
}

// NewGorm wraps an open connection and migrates the schema. The connection
// should be opened with TranslateError so duplicates map to ErrDuplicate.
func NewGorm(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(&ClassEvent{}, &DeletedOccurrence{}, &SemesterCalendar{}); err != nil {
		return nil, fmt.Errorf("%w: failed to migrate schema: %v", ErrPersistence, err)
	}
	return &Gorm{db: db}, nil
}

// Close releases the underlying connection pool.
func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// wrap maps gorm errors onto the package errors.
func wrap(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", what, ErrDuplicate)
	default:
		return fmt.Errorf("%w: %s: %v", ErrPersistence, what, err)
	}
}

func (g *Gorm) ListEvents(ctx context.Context, accountID string) ([]*ClassEvent, error) {
	var events []*ClassEvent
	err := g.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at, id").
		Find(&events).Error
	return events, wrap(err, "list events")
}

func (g *Gorm) GetEvent(ctx context.Context, accountID, id string) (*ClassEvent, error) {
	var ev ClassEvent
	err := g.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", id, accountID).
		First(&ev).Error
	if err != nil {
		return nil, wrap(err, "event "+id)
	}
	return &ev, nil
}

func (g *Gorm) CreateEvent(ctx context.Context, ev *ClassEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	return wrap(g.db.WithContext(ctx).Create(ev).Error, "create event")
}

func (g *Gorm) UpdateEvent(ctx context.Context, ev *ClassEvent) error {
	res := g.db.WithContext(ctx).
		Model(ev).
		Where("account_id = ?", ev.AccountID).
		Select("*").
		Omit("id", "account_id", "created_at").
		Updates(ev)
	if res.Error != nil {
		return wrap(res.Error, "update event "+ev.ID)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("event %s: %w", ev.ID, ErrNotFound)
	}
	return nil
}

func (g *Gorm) DeleteEvent(ctx context.Context, accountID, id string) error {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND account_id = ?", id, accountID).Delete(&ClassEvent{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("event_id = ?", id).Delete(&DeletedOccurrence{}).Error
	})
	return wrap(err, "event "+id)
}

func (g *Gorm) AddDeletedOccurrences(ctx context.Context, accountID, eventID string, dates []string) (int, error) {
	if _, err := g.GetEvent(ctx, accountID, eventID); err != nil {
		return 0, err
	}
	if len(dates) == 0 {
		return 0, nil
	}

	rows := make([]DeletedOccurrence, 0, len(dates))
	for _, d := range dates {
		rows = append(rows, DeletedOccurrence{EventID: eventID, Date: d, AccountID: accountID})
	}
	res := g.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows)
	if res.Error != nil {
		return 0, wrap(res.Error, "record deleted occurrences")
	}
	return int(res.RowsAffected), nil
}

func (g *Gorm) ListDeletedOccurrences(ctx context.Context, accountID, eventID string) ([]string, error) {
	var dates []string
	err := g.db.WithContext(ctx).
		Model(&DeletedOccurrence{}).
		Where("event_id = ? AND account_id = ?", eventID, accountID).
		Order("date").
		Pluck("date", &dates).Error
	return dates, wrap(err, "list deleted occurrences")
}

func (g *Gorm) GetSemesterCalendar(ctx context.Context, accountID, label string) (*SemesterCalendar, error) {
	var cal SemesterCalendar
	err := g.db.WithContext(ctx).
		Where("account_id = ? AND label = ?", accountID, label).
		First(&cal).Error
	if err != nil {
		return nil, wrap(err, fmt.Sprintf("semester calendar %q", label))
	}
	return &cal, nil
}

func (g *Gorm) ListSemesterCalendars(ctx context.Context, accountID string) ([]*SemesterCalendar, error) {
	var cals []*SemesterCalendar
	err := g.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("label").
		Find(&cals).Error
	return cals, wrap(err, "list semester calendars")
}

func (g *Gorm) CreateSemesterCalendar(ctx context.Context, cal *SemesterCalendar) error {
	return wrap(g.db.WithContext(ctx).Create(cal).Error, fmt.Sprintf("semester calendar %q", cal.Label))
}

func (g *Gorm) UpdateSemesterCalendar(ctx context.Context, cal *SemesterCalendar) error {
	res := g.db.WithContext(ctx).
		Model(&SemesterCalendar{}).
		Where("account_id = ? AND label = ?", cal.AccountID, cal.Label).
		Updates(map[string]interface{}{"calendar_id": cal.CalendarID, "color_hex": cal.ColorHex})
	if res.Error != nil {
		return wrap(res.Error, fmt.Sprintf("semester calendar %q", cal.Label))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("semester calendar %q: %w", cal.Label, ErrNotFound)
	}
	return nil
}

func (g *Gorm) DeleteSemesterCalendar(ctx context.Context, accountID, label string) (int, error) {
	removed := 0
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("account_id = ? AND label = ?", accountID, label).Delete(&SemesterCalendar{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		bound := tx.Model(&ClassEvent{}).Select("id").Where("account_id = ? AND semester_label = ?", accountID, label)
		if err := tx.Where("event_id IN (?)", bound).Delete(&DeletedOccurrence{}).Error; err != nil {
			return err
		}
		res = tx.Where("account_id = ? AND semester_label = ?", accountID, label).Delete(&ClassEvent{})
		if res.Error != nil {
			return res.Error
		}
		removed = int(res.RowsAffected)
		return nil
	})
	if err != nil {
		return 0, wrap(err, fmt.Sprintf("semester calendar %q", label))
	}
	return removed, nil
}
