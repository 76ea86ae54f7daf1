// Package activity tracks document read/write events and produces ranked
// suggested-document lists from them.
package activity

import (
	"sort"

	"github.com/google/uuid"
	"github.com/lockbook/lbcore/pkg/lbmetrics"
	"github.com/lockbook/lbcore/pkg/model"
	"github.com/lockbook/lbcore/pkg/store"
)

// Log records document activity into the persistent store's doc_events
// bucket.
type Log struct {
	store *store.Store
}

// NewLog wraps a store for activity tracking.
func NewLog(s *store.Store) *Log {
	return &Log{store: s}
}

// Record appends an event for id at timestampMillis, and increments the
// corresponding in-process metric.
func (l *Log) Record(id uuid.UUID, kind model.EventKind, timestampMillis int64) error {
	if err := l.store.AppendDocEvent(model.DocEvent{ID: id, Timestamp: timestampMillis, Kind: kind}); err != nil {
		return err
	}
	lbmetrics.DocEventsTotal.WithLabelValues(string(kind)).Inc()
	return nil
}

// Weights controls the relative contribution of each ranking component.
// Only their ratio matters; a weight of zero disables that component.
type Weights struct {
	Temporality float64
	IO          float64
}

type candidate struct {
	id        uuid.UUID
	count     int
	lastEvent int64
}

// SuggestedDocs returns up to 10 document ids ranked by a weighted,
// min-max-normalized combination of event count ("io") and most-recent
// event timestamp ("temporality"), ties broken by most-recent timestamp.
func SuggestedDocs(events []model.DocEvent, weights Weights) ([]uuid.UUID, error) {
	byID := make(map[uuid.UUID]*candidate)
	for _, ev := range events {
		c, ok := byID[ev.ID]
		if !ok {
			c = &candidate{id: ev.ID}
			byID[ev.ID] = c
		}
		c.count++
		if ev.Timestamp > c.lastEvent {
			c.lastEvent = ev.Timestamp
		}
	}

	candidates := make([]*candidate, 0, len(byID))
	for _, c := range byID {
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	minCount, maxCount := candidates[0].count, candidates[0].count
	minTime, maxTime := candidates[0].lastEvent, candidates[0].lastEvent
	for _, c := range candidates {
		if c.count < minCount {
			minCount = c.count
		}
		if c.count > maxCount {
			maxCount = c.count
		}
		if c.lastEvent < minTime {
			minTime = c.lastEvent
		}
		if c.lastEvent > maxTime {
			maxTime = c.lastEvent
		}
	}

	normalize := func(v, lo, hi int64) float64 {
		if hi == lo {
			return 1
		}
		return float64(v-lo) / float64(hi-lo)
	}

	type scored struct {
		c     *candidate
		score float64
	}
	scoredList := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		ioScore := normalize(int64(c.count), int64(minCount), int64(maxCount))
		temporalScore := normalize(c.lastEvent, minTime, maxTime)
		score := weights.IO*ioScore + weights.Temporality*temporalScore
		scoredList = append(scoredList, scored{c: c, score: score})
	}

	sort.Slice(scoredList, func(i, j int) bool {
		if scoredList[i].score != scoredList[j].score {
			return scoredList[i].score > scoredList[j].score
		}
		return scoredList[i].c.lastEvent > scoredList[j].c.lastEvent
	})

	n := len(scoredList)
	if n > 10 {
		n = 10
	}
	out := make([]uuid.UUID, n)
	for i := 0; i < n; i++ {
		out[i] = scoredList[i].c.id
	}
	return out, nil
}
