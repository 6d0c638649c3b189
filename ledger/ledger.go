// Package ledger is an append-only record of completed scenario runs,
// keyed by an auto-incrementing sequence number rather than by
// ConversationID. It is a history, not resumable session state, which
// is why it doesn't conflict with the no-durable-in-flight-episodes
// restriction (see DESIGN.md).
//
// Grounded on cmd/mservice/storage/bolt/bolt.go's Storage (itself
// boltdb/bolt, here go.etcd.io/bbolt, the actively maintained fork with
// the same API): one bucket, JSON-encoded values, db.Update/db.View
// closures over a *bolt.Tx.
package ledger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mikabele/canoe/matcher"
	"github.com/mikabele/canoe/scenario"
)

var outcomesBucket = []byte("outcomes")

// Entry is one completed scenario run.
type Entry struct {
	ConversationID string      `json:"conversationId"`
	Kind           string      `json:"kind"`
	Value          interface{} `json:"value,omitempty"`
	Err            string      `json:"err,omitempty"`
	At             time.Time   `json:"at"`
}

// Ledger is a bbolt-backed append-only store of Entries.
type Ledger struct {
	Debug bool

	db *bolt.DB
}

// Open opens (creating if necessary) a ledger file at filename.
func Open(filename string) (*Ledger, error) {
	db, err := bolt.Open(filename, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("ledger: open: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(outcomesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: init: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close closes the underlying database file.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) logf(format string, args ...interface{}) {
	if l.Debug {
		log.Printf("ledger: "+format, args...)
	}
}

// Append writes e under the next sequence number in the outcomes
// bucket.
func (l *Ledger) Append(e Entry) error {
	l.logf("append %s %s", e.ConversationID, e.Kind)

	return l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(outcomesBucket)

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}

		js, err := json.Marshal(&e)
		if err != nil {
			return err
		}

		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, js)
	})
}

// Each calls f with every Entry in sequence order, stopping at the
// first error f returns.
func (l *Ledger) Each(f func(Entry) error) error {
	return l.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(outcomesBucket)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if err := f(e); err != nil {
				return err
			}
		}
		return nil
	})
}

// Recorder adapts a Ledger into the onOutcome callback demux.New wants,
// for a given result type A. A package-level generic function (not a
// Ledger method) because A isn't the receiver's type parameter.
func Recorder[A any](l *Ledger) func(conversationID string, r scenario.Output[A]) {
	return func(conversationID string, r scenario.Output[A]) {
		e := Entry{
			ConversationID: conversationID,
			Kind:           r.Outcome.Kind.String(),
			At:             time.Now(),
		}
		if r.Outcome.Kind == matcher.Matched {
			e.Value = r.Value
		}
		if r.Outcome.Err != nil {
			e.Err = r.Outcome.Err.Error()
		}
		if err := l.Append(e); err != nil {
			log.Printf("ledger: recorder: %s", err)
		}
	}
}
