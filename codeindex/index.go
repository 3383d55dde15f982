package codeindex

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v3"

	log "github.com/sirupsen/logrus"
)

// Match is a manhole code found by a fuzzy search.
type Match struct {
	Code     string `json:"code"`
	Distance int    `json:"distance"`
}

// Index stores the manhole codes of every sewerage in badger. Prefix lookups
// go to badger directly, fuzzy lookups use a BK-tree per sewerage that is
// loaded from badger on first use.
type Index struct {
	db    *badger.DB
	mu    sync.RWMutex
	trees map[int64]*bkTree
	// generations counts the writes per sewerage, a tree loaded while a
	// write was in flight is not cached.
	generations map[int64]uint64
}

// Open opens the index at path, or an index that lives in memory only.
func Open(path string, inMemory bool) (*Index, error) {
	opts := badger.DefaultOptions(path)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("could not open code index: %w", err)
	}

	return &Index{db: db, trees: make(map[int64]*bkTree), generations: make(map[int64]uint64)}, nil
}

func (idx *Index) Close() error {
	return idx.db.Close()
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func sewerageKey(sewerageID int64) []byte {
	return []byte(fmt.Sprintf("s/%d/", sewerageID))
}

func codeKey(sewerageID int64, code string) []byte {
	return append(sewerageKey(sewerageID), normalize(code)...)
}

// Replace sets the codes of a sewerage, codes stored before are removed.
func (idx *Index) Replace(sewerageID int64, codes []string) error {
	defer idx.evict(sewerageID)

	if err := idx.deleteCodes(sewerageID); err != nil {
		return err
	}

	wb := idx.db.NewWriteBatch()
	defer wb.Cancel()

	for _, code := range codes {
		if normalize(code) == "" {
			continue
		}
		if err := wb.Set(codeKey(sewerageID, code), []byte(code)); err != nil {
			return fmt.Errorf("could not store code %s: %w", code, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("could not store codes of sewerage %d: %w", sewerageID, err)
	}

	log.Debugf("Indexed %d manhole codes for sewerage %d", len(codes), sewerageID)
	return nil
}

// Remove deletes all codes of a sewerage.
func (idx *Index) Remove(sewerageID int64) error {
	defer idx.evict(sewerageID)
	return idx.deleteCodes(sewerageID)
}

// evict drops the cached tree of a sewerage once its codes are written.
func (idx *Index) evict(sewerageID int64) {
	idx.mu.Lock()
	delete(idx.trees, sewerageID)
	idx.generations[sewerageID]++
	idx.mu.Unlock()
}

func (idx *Index) deleteCodes(sewerageID int64) error {
	prefix := sewerageKey(sewerageID)
	var keys [][]byte
	err := idx.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not list codes of sewerage %d: %w", sewerageID, err)
	}
	if len(keys) == 0 {
		return nil
	}

	wb := idx.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Prefix returns up to limit codes starting with q, ignoring case, sorted.
func (idx *Index) Prefix(sewerageID int64, q string, limit int) ([]string, error) {
	prefix := codeKey(sewerageID, q)
	codes := []string{}

	err := idx.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(codes) >= limit {
				break
			}
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			codes = append(codes, string(value))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not search code index: %w", err)
	}

	return codes, nil
}

// Fuzzy returns up to limit codes within maxDistance edits of q, closest
// first.
func (idx *Index) Fuzzy(sewerageID int64, q string, maxDistance, limit int) ([]Match, error) {
	tree, err := idx.tree(sewerageID)
	if err != nil {
		return nil, err
	}

	matches := []Match{}
	idx.mu.RLock()
	tree.search(q, maxDistance, func(code string, d int) {
		matches = append(matches, Match{Code: code, Distance: d})
	})
	idx.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Code < matches[j].Code
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	return matches, nil
}

// tree returns the BK-tree of a sewerage, loading it from badger when needed.
func (idx *Index) tree(sewerageID int64) (*bkTree, error) {
	idx.mu.RLock()
	tree, ok := idx.trees[sewerageID]
	generation := idx.generations[sewerageID]
	idx.mu.RUnlock()
	if ok {
		return tree, nil
	}

	tree = &bkTree{}
	prefix := sewerageKey(sewerageID)
	err := idx.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				tree.insert(string(val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not load code index of sewerage %d: %w", sewerageID, err)
	}

	idx.mu.Lock()
	if idx.generations[sewerageID] == generation {
		idx.trees[sewerageID] = tree
	}
	idx.mu.Unlock()

	return tree, nil
}
