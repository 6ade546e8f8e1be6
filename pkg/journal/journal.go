// Package journal keeps a durable record of flushed batches in BadgerDB.
//
// Every flush, successful or not, is stored with its script, bindings and
// outcome under a monotonically increasing sequence number, so a failed
// batch can be inspected and replayed later:
//
//	j, err := journal.Open(journal.Options{Dir: "./data/journal"})
//	if err != nil {
//		return err
//	}
//	defer j.Close()
//	m := mapper.New(client, mapper.WithJournal(j))
//
// Records are msgpack encoded. A Journal is safe for concurrent use.
package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Get for an unknown sequence number.
var ErrNotFound = errors.New("journal: batch not found")

const (
	prefixBatch byte = 0x01
	seqKey           = "\x00seq"
	seqBandwidth     = 64
)

// Batch is one flushed script and its outcome.
type Batch struct {
	Seq       uint64         `msgpack:"seq"`
	Script    string         `msgpack:"script"`
	Params    map[string]any `msgpack:"params"`
	Variables []string       `msgpack:"variables,omitempty"`
	StartedAt time.Time      `msgpack:"started_at"`
	Duration  time.Duration  `msgpack:"duration"`
	Status    string         `msgpack:"status"`
	Error     string         `msgpack:"error,omitempty"`
	Rows      int            `msgpack:"rows"`
}

// Options configures Open.
type Options struct {
	// Dir holds the badger files. Ignored when InMemory is set.
	Dir string
	// InMemory keeps everything in RAM; used by tests and dry runs.
	InMemory bool
	// SyncWrites fsyncs every record.
	SyncWrites bool
	Logger     *zap.Logger
}

// Journal is a badger-backed batch log.
type Journal struct {
	db  *badger.DB
	seq *badger.Sequence
	log *zap.Logger
}

// Open opens or creates a journal.
func Open(opts Options) (*Journal, error) {
	dir := opts.Dir
	if opts.InMemory {
		dir = ""
	}
	badgerOpts := badger.DefaultOptions(dir).
		WithInMemory(opts.InMemory).
		WithSyncWrites(opts.SyncWrites).
		WithLogger(nil).
		WithMemTableSize(8 << 20).
		WithValueLogFileSize(32 << 20).
		WithNumMemtables(2).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("journal: open badger: %w", err)
	}
	seq, err := db.GetSequence([]byte(seqKey), seqBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: sequence: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Journal{db: db, seq: seq, log: log}, nil
}

func batchKey(seq uint64) []byte {
	key := make([]byte, 9)
	key[0] = prefixBatch
	binary.BigEndian.PutUint64(key[1:], seq)
	return key
}

// Record assigns b the next sequence number and stores it.
func (j *Journal) Record(b *Batch) error {
	next, err := j.seq.Next()
	if err != nil {
		return fmt.Errorf("journal: next sequence: %w", err)
	}
	// Sequences start at zero; keep zero for "unset".
	b.Seq = next + 1
	data, err := msgpack.Marshal(b)
	if err != nil {
		return fmt.Errorf("journal: encode batch %d: %w", b.Seq, err)
	}
	if err := j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(batchKey(b.Seq), data)
	}); err != nil {
		return fmt.Errorf("journal: store batch %d: %w", b.Seq, err)
	}
	j.log.Debug("recorded batch", zap.Uint64("seq", b.Seq), zap.String("status", b.Status))
	return nil
}

// Get loads one batch.
func (j *Journal) Get(seq uint64) (*Batch, error) {
	var b Batch
	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(batchKey(seq))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &b)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("journal: get %d: %w", seq, err)
	}
	return &b, nil
}

// Iterate calls fn for every batch, oldest first, or newest first when
// reverse is set. Returning false from fn stops the iteration.
func (j *Journal) Iterate(reverse bool, fn func(*Batch) bool) error {
	return j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = reverse
		opts.Prefix = []byte{prefixBatch}
		it := txn.NewIterator(opts)
		defer it.Close()

		start := []byte{prefixBatch}
		if reverse {
			start = []byte{prefixBatch + 1}
		}
		for it.Seek(start); it.ValidForPrefix(opts.Prefix); it.Next() {
			var b Batch
			if err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &b)
			}); err != nil {
				return fmt.Errorf("journal: decode %x: %w", it.Item().Key(), err)
			}
			if !fn(&b) {
				return nil
			}
		}
		return nil
	})
}

// Close releases the sequence lease and closes badger.
func (j *Journal) Close() error {
	if err := j.seq.Release(); err != nil {
		j.log.Warn("release journal sequence", zap.Error(err))
	}
	return j.db.Close()
}
