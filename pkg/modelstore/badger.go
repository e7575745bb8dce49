// Package modelstore persists the global model history. The history is
// append-only and is the only coordinator state that must survive a
// process restart; in-flight round state is deliberately not durable.
package modelstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/agrifed/agrifed/pkg/fl"
)

var (
	ErrNoModel         = errors.New("no global model has been published")
	ErrVersionNotFound = errors.New("model version not found")
	ErrStaleVersion    = errors.New("model version must be strictly increasing")
)

var modelPrefix = []byte("model/")

type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open model store: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func modelKey(version uint64) []byte {
	key := make([]byte, len(modelPrefix)+8)
	copy(key, modelPrefix)
	binary.BigEndian.PutUint64(key[len(modelPrefix):], version)

	return key
}

// Append stores a newly published model. Versions must arrive strictly
// increasing; anything else indicates a broken round pipeline and is
// rejected rather than overwritten.
func (s *Store) Append(_ context.Context, model fl.GlobalModel) error {
	return s.db.Update(func(txn *badger.Txn) error {
		latest, err := latestVersion(txn)
		if err != nil && !errors.Is(err, ErrNoModel) {
			return err
		}
		if err == nil && model.Version <= latest {
			return fmt.Errorf("%w: have v%d, got v%d", ErrStaleVersion, latest, model.Version)
		}

		data, err := json.Marshal(model)
		if err != nil {
			return fmt.Errorf("failed to marshal model v%d: %w", model.Version, err)
		}

		return txn.Set(modelKey(model.Version), data)
	})
}

// Current returns the highest published model version.
func (s *Store) Current(_ context.Context) (fl.GlobalModel, error) {
	var model fl.GlobalModel
	err := s.db.View(func(txn *badger.Txn) error {
		version, err := latestVersion(txn)
		if err != nil {
			return err
		}
		model, err = readModel(txn, version)

		return err
	})

	return model, err
}

// Version returns one historical model.
func (s *Store) Version(_ context.Context, version uint64) (fl.GlobalModel, error) {
	var model fl.GlobalModel
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		model, err = readModel(txn, version)

		return err
	})

	return model, err
}

// Versions lists all published versions in ascending order.
func (s *Store) Versions(_ context.Context) ([]uint64, error) {
	var versions []uint64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = modelPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			versions = append(versions, binary.BigEndian.Uint64(key[len(modelPrefix):]))
		}

		return nil
	})

	return versions, err
}

func latestVersion(txn *badger.Txn) (uint64, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = modelPrefix
	opts.Reverse = true
	it := txn.NewIterator(opts)
	defer it.Close()

	// Seek past the last possible model key; reverse iteration lands
	// on the highest version.
	it.Seek(modelKey(^uint64(0)))
	if !it.Valid() {
		return 0, ErrNoModel
	}

	key := it.Item().Key()

	return binary.BigEndian.Uint64(key[len(modelPrefix):]), nil
}

func readModel(txn *badger.Txn, version uint64) (fl.GlobalModel, error) {
	item, err := txn.Get(modelKey(version))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fl.GlobalModel{}, ErrVersionNotFound
	}
	if err != nil {
		return fl.GlobalModel{}, err
	}

	var model fl.GlobalModel
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &model)
	}); err != nil {
		return fl.GlobalModel{}, fmt.Errorf("failed to unmarshal model v%d: %w", version, err)
	}

	return model, nil
}
