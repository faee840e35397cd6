// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

// Package store persists newsletters, templates, recipients, and the owner
// recommendation as JSON documents in BadgerDB.
//
// Writes are last-write-wins with no optimistic concurrency. That is
// acceptable for a single-operator deployment and is a documented limitation,
// not a guarantee to build on.
package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/plexdigest/internal/models"
)

// Key prefixes and singleton keys.
const (
	newsletterKeyPrefix = "newsletter:"
	templateKeyPrefix   = "template:"
	recipientsKey       = "recipients"
	ownerRecKey         = "owner_recommendation"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps a BadgerDB handle with typed document accessors.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store at dir. An empty dir opens an in-memory
// store, used by tests.
func Open(dir string) (*Store, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
	}
	// Badger logs through its own logger by default; silence it and rely on
	// our own structured logs at the call sites.
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// get unmarshals the value at key into out.
func (s *Store) get(key string, out interface{}) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
}

// set marshals v and stores it at key.
func (s *Store) set(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// delete removes the value at key. Deleting a missing key is not an error.
func (s *Store) delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// listPrefix unmarshals every value under prefix via fn.
func (s *Store) listPrefix(prefix string, fn func(val []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}

// Newsletters returns all newsletters sorted by name.
func (s *Store) Newsletters() ([]models.Newsletter, error) {
	var list []models.Newsletter
	err := s.listPrefix(newsletterKeyPrefix, func(val []byte) error {
		var n models.Newsletter
		if err := json.Unmarshal(val, &n); err != nil {
			return fmt.Errorf("unmarshal newsletter: %w", err)
		}
		list = append(list, n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

// GetNewsletter returns one newsletter by ID.
func (s *Store) GetNewsletter(id string) (*models.Newsletter, error) {
	var n models.Newsletter
	if err := s.get(newsletterKeyPrefix+id, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// SaveNewsletter creates or replaces a newsletter.
func (s *Store) SaveNewsletter(n *models.Newsletter) error {
	if n.ID == "" {
		return fmt.Errorf("newsletter id must not be empty")
	}
	n.Recipients = NormalizeEmails(n.Recipients)
	return s.set(newsletterKeyPrefix+n.ID, n)
}

// DeleteNewsletter removes a newsletter by ID.
func (s *Store) DeleteNewsletter(id string) error {
	return s.delete(newsletterKeyPrefix + id)
}

// Templates returns all templates sorted by name.
func (s *Store) Templates() ([]models.Template, error) {
	var list []models.Template
	err := s.listPrefix(templateKeyPrefix, func(val []byte) error {
		var t models.Template
		if err := json.Unmarshal(val, &t); err != nil {
			return fmt.Errorf("unmarshal template: %w", err)
		}
		list = append(list, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

// GetTemplate returns one template by ID.
func (s *Store) GetTemplate(id string) (*models.Template, error) {
	var t models.Template
	if err := s.get(templateKeyPrefix+id, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// SaveTemplate creates or replaces a template. Template names are unique
// case-insensitively across the collection.
func (s *Store) SaveTemplate(t *models.Template) error {
	if t.ID == "" {
		return fmt.Errorf("template id must not be empty")
	}
	existing, err := s.Templates()
	if err != nil {
		return err
	}
	for i := range existing {
		if existing[i].ID != t.ID && strings.EqualFold(existing[i].Name, t.Name) {
			return fmt.Errorf("template name %q already in use", t.Name)
		}
	}
	return s.set(templateKeyPrefix+t.ID, t)
}

// DeleteTemplate removes a template by ID.
func (s *Store) DeleteTemplate(id string) error {
	return s.delete(templateKeyPrefix + id)
}

// Recipients returns the global recipient list. A missing document is an
// empty list, not an error.
func (s *Store) Recipients() ([]models.Recipient, error) {
	var list []models.Recipient
	err := s.get(recipientsKey, &list)
	if errors.Is(err, ErrNotFound) {
		return []models.Recipient{}, nil
	}
	if err != nil {
		return nil, err
	}
	return list, nil
}

// SaveRecipients replaces the global recipient list. Entries are
// deduplicated by lowercased email; invalid addresses are dropped.
func (s *Store) SaveRecipients(list []models.Recipient) ([]models.Recipient, error) {
	seen := make(map[string]struct{}, len(list))
	out := make([]models.Recipient, 0, len(list))
	for _, r := range list {
		email := strings.ToLower(strings.TrimSpace(r.Email))
		if !IsEmail(email) {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, models.Recipient{Name: strings.TrimSpace(r.Name), Email: email})
	}
	if err := s.set(recipientsKey, out); err != nil {
		return nil, err
	}
	return out, nil
}

// OwnerRecommendation returns the curated recommendation. A missing document
// is an empty recommendation.
func (s *Store) OwnerRecommendation() (*models.OwnerRecommendation, error) {
	var rec models.OwnerRecommendation
	err := s.get(ownerRecKey, &rec)
	if errors.Is(err, ErrNotFound) {
		return &models.OwnerRecommendation{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveOwnerRecommendation replaces the curated recommendation.
func (s *Store) SaveOwnerRecommendation(rec *models.OwnerRecommendation) error {
	return s.set(ownerRecKey, rec)
}
