package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/serroba/docstore/internal/changes"
	"github.com/serroba/docstore/internal/revtree"
)

// Key layout.
//
//	doc/<id>          revision tree as JSON
//	seq/<uint64 BE>   document id changed at that sequence
//	dseq/<id>         latest sequence of the document
//	meta/last_seq     highest sequence assigned
//
// A document owns at most one seq/ key: committing a new sequence removes
// the previous one, so a prefix scan of seq/ is already deduplicated.
var (
	docPrefix  = []byte("doc/")
	seqPrefix  = []byte("seq/")
	dseqPrefix = []byte("dseq/")
	lastSeqKey = []byte("meta/last_seq")
)

// BadgerConfig holds configuration for a BadgerStore.
type BadgerConfig struct {
	// Path is the directory for database files. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Useful for testing.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives badger's internal logs. Nil disables them.
	Logger *slog.Logger

	// GCEvery runs value log GC after this many commits. Zero disables it.
	GCEvery int

	// GCDiscardRatio is the minimum garbage ratio for a value log rewrite.
	GCDiscardRatio float64
}

// DefaultBadgerConfig returns durable settings for a store at path.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:           path,
		SyncWrites:     true,
		GCEvery:        1000,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryBadgerConfig returns settings for tests.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerStore is a Store backed by an embedded badger database.
type BadgerStore struct {
	db     *badger.DB
	cfg    BadgerConfig
	gc     *GCPolicy
	logger *slog.Logger

	// commitMu serializes commits so sequence assignment never races.
	commitMu sync.Mutex
	gcWG     sync.WaitGroup
	closed   atomic.Bool
}

// OpenBadger opens (or creates) a badger-backed store.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}

		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	logger := cfg.Logger
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
		logger = slog.Default()
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}

	store := &BadgerStore{db: db, cfg: cfg, logger: logger}
	if !cfg.InMemory {
		store.gc = NewGCPolicy(cfg.GCEvery)
	}

	return store, nil
}

// LoadTree reads and decodes the stored tree.
func (b *BadgerStore) LoadTree(docID string) (*revtree.Tree, error) {
	if b.closed.Load() {
		return nil, ErrStoreClosed
	}

	tree := revtree.New(docID)

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(docID))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, tree)
		})
	})

	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, ErrDocumentNotFound
	case err != nil:
		return nil, fmt.Errorf("load tree %s: %w", docID, err)
	}

	return tree, nil
}

// Commit writes the tree and, when winnerChanged, its new sequence in one
// transaction.
func (b *BadgerStore) Commit(tree *revtree.Tree, winnerChanged bool) (int64, error) {
	if b.closed.Load() {
		return 0, ErrStoreClosed
	}

	data, err := json.Marshal(tree)
	if err != nil {
		return 0, fmt.Errorf("encode tree %s: %w", tree.ID(), err)
	}

	b.commitMu.Lock()
	defer b.commitMu.Unlock()

	var seq int64

	err = b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(docKey(tree.ID()), data); err != nil {
			return err
		}

		if !winnerChanged {
			return nil
		}

		last, err := readSeq(txn, lastSeqKey)
		if err != nil {
			return err
		}

		prev, err := readSeq(txn, dseqKey(tree.ID()))
		if err != nil {
			return err
		}

		if prev > 0 {
			if err := txn.Delete(seqKey(prev)); err != nil {
				return err
			}
		}

		seq = last + 1

		if err := txn.Set(seqKey(seq), []byte(tree.ID())); err != nil {
			return err
		}

		if err := txn.Set(dseqKey(tree.ID()), encodeSeq(seq)); err != nil {
			return err
		}

		return txn.Set(lastSeqKey, encodeSeq(seq))
	})
	if err != nil {
		return 0, fmt.Errorf("commit %s: %w", tree.ID(), err)
	}

	if b.gc.RecordCommit() {
		b.logger.Debug("scheduling badger value log GC", slog.Int("commits", b.gc.CommitsSinceGC()))
		b.gc.Reset()
		b.gcWG.Add(1)

		go b.runGC()
	}

	return seq, nil
}

func (b *BadgerStore) runGC() {
	defer b.gcWG.Done()

	err := b.db.RunValueLogGC(b.cfg.GCDiscardRatio)
	switch {
	case err == nil:
		b.logger.Debug("badger value log GC completed")
	case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrRejected):
	default:
		b.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
	}
}

// Changes scans the seq/ index. The upper bound is the last sequence at the
// time Changes is called.
func (b *BadgerStore) Changes(since int64) iter.Seq2[changes.Entry, error] {
	upper, upperErr := b.LastSeq()

	return func(yield func(changes.Entry, error) bool) {
		if upperErr != nil {
			yield(changes.Entry{}, upperErr)

			return
		}

		if b.closed.Load() {
			yield(changes.Entry{}, ErrStoreClosed)

			return
		}

		stopped := false

		err := b.db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()

			for it.Seek(seqKey(max(since, 0) + 1)); it.ValidForPrefix(seqPrefix); it.Next() {
				item := it.Item()

				seq := decodeSeq(item.Key()[len(seqPrefix):])
				if seq > upper {
					return nil
				}

				id, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}

				if !yield(changes.Entry{Seq: seq, ID: string(id)}, nil) {
					stopped = true

					return nil
				}
			}

			return nil
		})
		if err != nil && !stopped {
			yield(changes.Entry{}, fmt.Errorf("scan changes: %w", err))
		}
	}
}

// LastSeq returns the highest sequence assigned so far.
func (b *BadgerStore) LastSeq() (int64, error) {
	if b.closed.Load() {
		return 0, ErrStoreClosed
	}

	var last int64

	err := b.db.View(func(txn *badger.Txn) error {
		var err error

		last, err = readSeq(txn, lastSeqKey)

		return err
	})
	if err != nil {
		return 0, fmt.Errorf("read last seq: %w", err)
	}

	return last, nil
}

// DocIDs lists the doc/ keys in order.
func (b *BadgerStore) DocIDs() ([]string, error) {
	if b.closed.Load() {
		return nil, ErrStoreClosed
	}

	var ids []string

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = docPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(docPrefix); it.ValidForPrefix(docPrefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(docPrefix):]))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	return ids, nil
}

// Close waits for a running GC and closes the database. Safe to call more
// than once.
func (b *BadgerStore) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.gcWG.Wait()

	return b.db.Close()
}

func readSeq(txn *badger.Txn, key []byte) (int64, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}

	if err != nil {
		return 0, err
	}

	val, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}

	return decodeSeq(val), nil
}

func docKey(id string) []byte {
	return append(append([]byte{}, docPrefix...), id...)
}

func dseqKey(id string) []byte {
	return append(append([]byte{}, dseqPrefix...), id...)
}

func seqKey(seq int64) []byte {
	return append(append([]byte{}, seqPrefix...), encodeSeq(seq)...)
}

func encodeSeq(seq int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(seq))

	return buf
}

func decodeSeq(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}

	return int64(binary.BigEndian.Uint64(b))
}

// Ensure BadgerStore implements Store.
var _ Store = (*BadgerStore)(nil)
