/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxNameLength = 50
	maxWishLength = 500
)

// Wish is one accepted submission. The JSON field names match the snapshot
// file, which includes the submitter's address.
type Wish struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Text      string    `json:"wish"`
	CreatedAt time.Time `json:"timestamp"`
	Source    string    `json:"ip,omitempty"`
}

// PublicWish is what display clients get to see.
type PublicWish struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Text      string    `json:"wish"`
	CreatedAt time.Time `json:"timestamp"`
}

func (w Wish) Public() PublicWish {
	return PublicWish{
		ID:        w.ID,
		Name:      w.Name,
		Text:      w.Text,
		CreatedAt: w.CreatedAt,
	}
}

func publicWishes(wishes []Wish) []PublicWish {
	out := make([]PublicWish, 0, len(wishes))
	for _, w := range wishes {
		out = append(out, w.Public())
	}
	return out
}

// validateSubmission trims name and text and checks both are present and
// within their length limits.
func validateSubmission(name, text string) (string, string, error) {
	name = strings.TrimSpace(name)
	text = strings.TrimSpace(text)

	switch {
	case name == "":
		return "", "", &ValidationError{Field: "name", Message: "name is required"}
	case utf8.RuneCountInString(name) > maxNameLength:
		return "", "", &ValidationError{Field: "name", Message: "name must be at most 50 characters"}
	case text == "":
		return "", "", &ValidationError{Field: "wish", Message: "wish is required"}
	case utf8.RuneCountInString(text) > maxWishLength:
		return "", "", &ValidationError{Field: "wish", Message: "wish must be at most 500 characters"}
	}

	return name, text, nil
}

// WishStore owns the canonical, append-ordered list of wishes and its
// snapshot on disk. All mutation goes through its methods.
//
// Appends are persisted asynchronously by a single background writer, so a
// crash can lose the most recent appends that have not been flushed yet.
// Deletes, clears and imports are written before they return.
type WishStore struct {
	cfg  *Config
	path string
	now  func() time.Time

	mu     sync.RWMutex
	wishes []Wish
	closed bool

	// writeMu serialises every snapshot write. When both are needed it is
	// taken before mu.
	writeMu sync.Mutex

	pending chan struct{}
	done    chan struct{}
}

// openWishStore loads the snapshot at path. A missing or unreadable snapshot
// yields an empty store backed by a freshly written empty snapshot.
func openWishStore(cfg *Config, path string) (*WishStore, error) {
	s := &WishStore{
		cfg:     cfg,
		path:    path,
		now:     time.Now,
		pending: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	wishes, err := readSnapshot(path)
	switch {
	case err == nil:
		s.wishes = wishes
		logf(cfg, "STORE: Loaded %d wishes from %s", len(wishes), path)
	case errors.Is(err, fs.ErrNotExist):
		logf(cfg, "STORE: No snapshot at %s, starting empty", path)
	default:
		logf(cfg, "STORE: Unreadable snapshot %s (%v), starting empty", path, err)
		if moved, qerr := quarantineFile(path); qerr == nil {
			logf(cfg, "STORE: Moved unreadable snapshot to %s", moved)
		}
	}

	if s.wishes == nil {
		s.wishes = []Wish{}

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}

		if err := s.persist("sync"); err != nil {
			return nil, err
		}
	}

	wishesGauge.Set(float64(len(s.wishes)))

	go s.persistLoop()

	return s, nil
}

func readSnapshot(path string) ([]Wish, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var wishes []Wish
	if err := json.Unmarshal(data, &wishes); err != nil {
		return nil, err
	}
	if wishes == nil {
		wishes = []Wish{}
	}

	return wishes, nil
}

func (s *WishStore) persistLoop() {
	defer close(s.done)

	for range s.pending {
		if err := s.persist("async"); err != nil {
			logf(s.cfg, "ERROR: %v", err)
		}
	}
}

// schedulePersist queues an asynchronous write. Callers hold s.mu.
func (s *WishStore) schedulePersist() {
	select {
	case s.pending <- struct{}{}:
	default:
		// A write is already queued and will pick up the current state.
	}
}

// persist writes the current state. It serialises whatever is in memory at
// the time it runs, so queued writes always converge on the newest state.
func (s *WishStore) persist(mode string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	data, err := json.MarshalIndent(s.wishes, "", "  ")
	count := len(s.wishes)
	s.mu.RUnlock()

	if err == nil {
		err = writeFileAtomic(s.path, data, 0o644)
	}
	if err != nil {
		snapshotWritesTotal.WithLabelValues(mode, "error").Inc()
		return &PersistenceError{Path: s.path, Err: err}
	}

	snapshotWritesTotal.WithLabelValues(mode, "ok").Inc()
	logf(s.cfg, "STORE: Saved %d wishes (%s) to %s", count, humanReadableSize(int64(len(data))), s.path)

	return nil
}

// mutate applies fn and writes the result before returning. If the write
// fails the previous state is restored.
func (s *WishStore) mutate(fn func(wishes []Wish) ([]Wish, error)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.wishes

	next, err := fn(slices.Clone(previous))
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(next, "", "  ")
	if err == nil {
		err = writeFileAtomic(s.path, data, 0o644)
	}
	if err != nil {
		snapshotWritesTotal.WithLabelValues("sync", "error").Inc()
		s.wishes = previous
		return &PersistenceError{Path: s.path, Err: err}
	}

	snapshotWritesTotal.WithLabelValues("sync", "ok").Inc()
	s.wishes = next
	wishesGauge.Set(float64(len(next)))

	return nil
}

// Append assigns an id and acceptance time to candidate and adds it at the
// end of the list. The snapshot is written in the background.
func (s *WishStore) Append(candidate Wish) Wish {
	s.mu.Lock()
	defer s.mu.Unlock()

	wish := candidate
	wish.ID = uuid.NewString()
	wish.CreatedAt = s.now()

	if n := len(s.wishes); n > 0 && wish.CreatedAt.Before(s.wishes[n-1].CreatedAt) {
		wish.CreatedAt = s.wishes[n-1].CreatedAt
	}

	s.wishes = append(s.wishes, wish)
	wishesGauge.Set(float64(len(s.wishes)))

	if s.closed {
		go func() {
			if err := s.persist("async"); err != nil {
				logf(s.cfg, "ERROR: %v", err)
			}
		}()
	} else {
		s.schedulePersist()
	}

	return wish
}

// All returns a copy of every wish in acceptance order.
func (s *WishStore) All() []Wish {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.wishes)
}

func (s *WishStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.wishes)
}

func (s *WishStore) Get(id string) (Wish, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := slices.IndexFunc(s.wishes, func(w Wish) bool { return w.ID == id })
	if i < 0 {
		return Wish{}, false
	}

	return s.wishes[i], true
}

// Page returns one page of wishes, newest first. Page and size are clamped
// to at least 1 and a page past the end is empty.
func (s *WishStore) Page(page, size int) ([]Wish, int, int) {
	page = max(page, 1)
	size = max(size, 1)

	sorted := s.All()
	slices.Reverse(sorted)
	slices.SortStableFunc(sorted, func(a, b Wish) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	total := len(sorted)
	totalPages := total / size
	if total%size != 0 {
		totalPages++
	}

	if page > totalPages {
		return []Wish{}, total, totalPages
	}

	start := (page - 1) * size

	return sorted[start:min(start+size, total)], total, totalPages
}

// Delete removes the wish with the given id. It reports false if there is
// no such wish.
func (s *WishStore) Delete(id string) (bool, error) {
	err := s.mutate(func(wishes []Wish) ([]Wish, error) {
		i := slices.IndexFunc(wishes, func(w Wish) bool { return w.ID == id })
		if i < 0 {
			return nil, ErrNotFound
		}
		return slices.Delete(wishes, i, i+1), nil
	})
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}

	return true, nil
}

// Clear removes every wish and returns how many there were.
func (s *WishStore) Clear() (int, error) {
	removed := 0

	err := s.mutate(func(wishes []Wish) ([]Wish, error) {
		removed = len(wishes)
		return []Wish{}, nil
	})
	if err != nil {
		return 0, err
	}

	return removed, nil
}

// Import appends items as one batch. Every item needs a name, a text and a
// timestamp; items without an id get one. If any item is invalid, or an id
// is already taken, nothing is applied.
func (s *WishStore) Import(items []Wish) (int, error) {
	err := s.mutate(func(wishes []Wish) ([]Wish, error) {
		seen := make(map[string]struct{}, len(wishes)+len(items))
		for _, w := range wishes {
			seen[w.ID] = struct{}{}
		}

		batch := make([]Wish, 0, len(items))
		for i, item := range items {
			item.Name = strings.TrimSpace(item.Name)
			item.Text = strings.TrimSpace(item.Text)

			switch {
			case item.Name == "":
				return nil, &ImportError{Index: i, Reason: "missing name"}
			case item.Text == "":
				return nil, &ImportError{Index: i, Reason: "missing wish"}
			case item.CreatedAt.IsZero():
				return nil, &ImportError{Index: i, Reason: "missing timestamp"}
			}

			if item.ID == "" {
				item.ID = uuid.NewString()
			}
			if _, dup := seen[item.ID]; dup {
				return nil, &ImportError{Index: i, Reason: "duplicate id " + item.ID}
			}
			seen[item.ID] = struct{}{}

			batch = append(batch, item)
		}

		return append(wishes, batch...), nil
	})
	if err != nil {
		return 0, err
	}

	return len(items), nil
}

// Close flushes any queued write and stops the background writer.
func (s *WishStore) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.pending)
	s.mu.Unlock()

	<-s.done
}
