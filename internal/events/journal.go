package events

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/pkg/errors"
)

// keys: e:<8-byte big endian position>
var journalPrefix = []byte("e:")

func journalKey(pos uint64) []byte {
	k := make([]byte, len(journalPrefix)+8)
	copy(k, journalPrefix)
	binary.BigEndian.PutUint64(k[len(journalPrefix):], pos)
	return k
}

func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// Journal is an append-only local log of engine events kept in Pebble.
type Journal struct {
	mu  sync.Mutex
	db  *pebble.DB
	pos uint64
}

func OpenJournal(path string) (*Journal, error) {
	return openJournal(path, &pebble.Options{})
}

// OpenMemJournal keeps the journal in memory.
func OpenMemJournal() (*Journal, error) {
	return openJournal("", &pebble.Options{FS: vfs.NewMem()})
}

func openJournal(path string, opts *pebble.Options) (*Journal, error) {
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	j := &Journal{db: db}

	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: journalPrefix, UpperBound: keyUpperBound(journalPrefix)})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "open journal iterator")
	}
	if iter.Last() {
		j.pos = binary.BigEndian.Uint64(iter.Key()[len(journalPrefix):])
	}
	if err := iter.Close(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "close journal iterator")
	}
	return j, nil
}

func (j *Journal) Publish(_ context.Context, events ...Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	batch := j.db.NewBatch()
	defer batch.Close()

	pos := j.pos
	for _, e := range events {
		value, err := Encode(e)
		if err != nil {
			return errors.Wrapf(err, "encode %s event", e.Kind)
		}
		pos++
		if err := batch.Set(journalKey(pos), value, nil); err != nil {
			return errors.Wrap(err, "stage journal entry")
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return errors.Wrap(err, "commit journal batch")
	}
	j.pos = pos
	return nil
}

// Len returns how many events were ever appended.
func (j *Journal) Len() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.pos
}

// Replay calls fn for every event after position from, oldest first.
func (j *Journal) Replay(from uint64, fn func(pos uint64, e Event) error) error {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: journalKey(from + 1),
		UpperBound: keyUpperBound(journalPrefix),
	})
	if err != nil {
		return errors.Wrap(err, "open journal iterator")
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		e, err := Decode(iter.Value())
		if err != nil {
			return errors.Wrap(err, "decode journal entry")
		}
		if err := fn(binary.BigEndian.Uint64(iter.Key()[len(journalPrefix):]), e); err != nil {
			return err
		}
	}
	return errors.Wrap(iter.Error(), "iterate journal")
}

func (j *Journal) Close() error { return j.db.Close() }
