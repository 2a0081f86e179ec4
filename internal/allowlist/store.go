// Package allowlist persists the users who opted in to voice line search.
//
// Search autocomplete is answered per user, not per channel, so a user first
// has to opt in from the configured channel. Opt-ins live in a bbolt file
// and survive restarts. Writes are transactional; a crash mid-write cannot
// corrupt previously committed entries.
package allowlist

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"
)

var bucketMembers = []byte("members")

// ErrLocked is returned by [Open] when another process holds the database.
var ErrLocked = errors.New("allowlist: database is locked by another process")

// Member is one opted-in user.
type Member struct {
	UserID  string    `json:"-"`
	Name    string    `json:"name"`
	AddedAt time.Time `json:"added_at"`
}

// Store is a bbolt-backed allow-list. It is safe for concurrent use.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open opens (or creates) the allow-list database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if errors.Is(err, berrors.ErrTimeout) {
		return nil, fmt.Errorf("%w: %q", ErrLocked, path)
	}
	if err != nil {
		return nil, fmt.Errorf("allowlist: open %q: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketMembers)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("allowlist: init: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add opts userID in. It reports false when the user was already present,
// in which case the stored entry is left untouched.
func (s *Store) Add(userID, name string) (added bool, err error) {
	if userID == "" {
		return false, errors.New("allowlist: add: empty user id")
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMembers)
		if b.Get([]byte(userID)) != nil {
			return nil
		}
		v, err := json.Marshal(Member{Name: name, AddedAt: s.now().UTC()})
		if err != nil {
			return err
		}
		added = true
		return b.Put([]byte(userID), v)
	})
	if err != nil {
		return false, fmt.Errorf("allowlist: add %q: %w", userID, err)
	}
	return added, nil
}

// Remove opts userID out. It reports false when the user was not present.
func (s *Store) Remove(userID string) (removed bool, err error) {
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMembers)
		if b.Get([]byte(userID)) == nil {
			return nil
		}
		removed = true
		return b.Delete([]byte(userID))
	})
	if err != nil {
		return false, fmt.Errorf("allowlist: remove %q: %w", userID, err)
	}
	return removed, nil
}

// Contains reports whether userID has opted in.
func (s *Store) Contains(userID string) (bool, error) {
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(bucketMembers).Get([]byte(userID)) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("allowlist: contains %q: %w", userID, err)
	}
	return ok, nil
}

// List returns all members ordered by user ID.
func (s *Store) List() ([]Member, error) {
	var out []Member
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMembers).ForEach(func(k, v []byte) error {
			var m Member
			if err := json.Unmarshal(v, &m); err != nil {
				return fmt.Errorf("decode %q: %w", k, err)
			}
			// k is only valid inside the transaction.
			m.UserID = string(k)
			out = append(out, m)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("allowlist: list: %w", err)
	}
	return out, nil
}
