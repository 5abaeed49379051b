package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File is a Store kept in memory and written to a JSON file after every
// change. It suits a single CLI user; concurrent processes are not
// coordinated.
type File struct {
	*Memory
	Path string

	saveMu sync.Mutex
}

var _ Store = (*File)(nil)

// OpenFile loads the store at path. A missing file is an empty store.
func OpenFile(path string) (*File, error) {
	f := &File{Memory: NewMemory(), Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("%w: failed to read state file: %v", ErrPersistence, err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: failed to parse state file %s: %v", ErrPersistence, path, err)
	}
	f.restore(snap)
	return f, nil
}

// commit applies change to memory and writes the result. If the write fails
// memory is put back to what is on disk.
func (f *File) commit(change func() error) error {
	f.saveMu.Lock()
	defer f.saveMu.Unlock()

	before := f.snapshot()
	if err := change(); err != nil {
		return err
	}
	if err := f.write(f.snapshot()); err != nil {
		f.restore(before)
		return err
	}
	return nil
}

// write replaces the state file atomically: a temp file in the same
// directory is renamed over the old one.
func (f *File) write(snap snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to marshal state: %v", ErrPersistence, err)
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: failed to create state directory: %v", ErrPersistence, err)
	}
	tmp, err := os.CreateTemp(dir, ".classsync-state-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp file: %v", ErrPersistence, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: failed to write state: %v", ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: failed to write state: %v", ErrPersistence, err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("%w: failed to set state permissions: %v", ErrPersistence, err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("%w: failed to replace state file: %v", ErrPersistence, err)
	}
	return nil
}

func (f *File) CreateEvent(ctx context.Context, ev *ClassEvent) error {
	return f.commit(func() error { return f.Memory.CreateEvent(ctx, ev) })
}

func (f *File) UpdateEvent(ctx context.Context, ev *ClassEvent) error {
	return f.commit(func() error { return f.Memory.UpdateEvent(ctx, ev) })
}

func (f *File) DeleteEvent(ctx context.Context, accountID, id string) error {
	return f.commit(func() error { return f.Memory.DeleteEvent(ctx, accountID, id) })
}

func (f *File) AddDeletedOccurrences(ctx context.Context, accountID, eventID string, dates []string) (int, error) {
	var n int
	err := f.commit(func() error {
		var err error
		n, err = f.Memory.AddDeletedOccurrences(ctx, accountID, eventID, dates)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (f *File) CreateSemesterCalendar(ctx context.Context, cal *SemesterCalendar) error {
	return f.commit(func() error { return f.Memory.CreateSemesterCalendar(ctx, cal) })
}

func (f *File) UpdateSemesterCalendar(ctx context.Context, cal *SemesterCalendar) error {
	return f.commit(func() error { return f.Memory.UpdateSemesterCalendar(ctx, cal) })
}

func (f *File) DeleteSemesterCalendar(ctx context.Context, accountID, label string) (int, error) {
	var n int
	err := f.commit(func() error {
		var err error
		n, err = f.Memory.DeleteSemesterCalendar(ctx, accountID, label)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
