package store

import (
	"encoding/binary"
	"encoding/json"

	bolt "go.etcd.io/bbolt"

	"github.com/lockbook/lbcore/pkg/lberr"
	"github.com/lockbook/lbcore/pkg/model"
)

// AppendDocEvent appends ev to the activity log, trimming the oldest
// entries once the log exceeds maxDocEvents.
func (s *Store) AppendDocEvent(ev model.DocEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return lberr.UnexpectedErr("marshal doc event: %v", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDocEvents)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		if err := b.Put(seqKey(seq), raw); err != nil {
			return err
		}
		return trimDocEvents(b)
	})
}

// ListDocEvents returns every event in append order.
func (s *Store) ListDocEvents() ([]model.DocEvent, error) {
	var out []model.DocEvent
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDocEvents).ForEach(func(_, v []byte) error {
			var ev model.DocEvent
			if err := json.Unmarshal(v, &ev); err != nil {
				return err
			}
			out = append(out, ev)
			return nil
		})
	})
	if err != nil {
		return nil, lberr.UnexpectedErr("scan doc events: %v", err)
	}
	return out, nil
}

func seqKey(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func trimDocEvents(b *bolt.Bucket) error {
	if b.Stats().KeyN <= maxDocEvents {
		return nil
	}
	excess := b.Stats().KeyN - maxDocEvents
	c := b.Cursor()
	for k, _ := c.First(); k != nil && excess > 0; k, _ = c.Next() {
		if err := b.Delete(k); err != nil {
			return err
		}
		excess--
	}
	return nil
}
