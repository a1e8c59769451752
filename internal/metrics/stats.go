package metrics

import (
	"sort"
	"sync"
	"time"
)

// Sample is one traffic observation for a peer or an interface.
type Sample struct {
	Timestamp        time.Time
	EntityId         string
	BytesReceived    uint64
	BytesTransmitted uint64
}

// Summary is a basic statistics snapshot of a sample window.
type Summary struct {
	Count             int
	Entities          int
	From              time.Time
	To                time.Time
	BytesReceived     uint64
	BytesTransmitted  uint64
	AvgRxBytesPerSec  float64
	AvgTxBytesPerSec  float64
	PeakRxBytesPerSec float64
	PeakTxBytesPerSec float64
}

// Summarize computes traffic rates for samples in a time window. Counter
// resets (a later sample with fewer bytes) start a new baseline instead
// of producing negative rates.
func Summarize(items []Sample, since time.Time) Summary {
	filtered := make([]Sample, 0, len(items))
	for _, s := range items {
		if s.Timestamp.After(since) || s.Timestamp.Equal(since) {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) == 0 {
		return Summary{}
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})

	sum := Summary{
		Count: len(filtered),
		From:  filtered[0].Timestamp,
		To:    filtered[len(filtered)-1].Timestamp,
	}

	last := map[string]Sample{}
	for _, s := range filtered {
		prev, seen := last[s.EntityId]
		last[s.EntityId] = s
		if !seen {
			continue
		}
		if s.BytesReceived < prev.BytesReceived || s.BytesTransmitted < prev.BytesTransmitted {
			continue // counter reset
		}
		elapsed := s.Timestamp.Sub(prev.Timestamp).Seconds()
		if elapsed <= 0 {
			continue
		}

		rx := s.BytesReceived - prev.BytesReceived
		tx := s.BytesTransmitted - prev.BytesTransmitted
		sum.BytesReceived += rx
		sum.BytesTransmitted += tx

		rxRate := float64(rx) / elapsed
		txRate := float64(tx) / elapsed
		if rxRate > sum.PeakRxBytesPerSec {
			sum.PeakRxBytesPerSec = rxRate
		}
		if txRate > sum.PeakTxBytesPerSec {
			sum.PeakTxBytesPerSec = txRate
		}
	}
	sum.Entities = len(last)

	if window := sum.To.Sub(sum.From).Seconds(); window > 0 {
		sum.AvgRxBytesPerSec = float64(sum.BytesReceived) / window
		sum.AvgTxBytesPerSec = float64(sum.BytesTransmitted) / window
	}
	return sum
}

// DefaultLogCap bounds the in-memory sample log.
const DefaultLogCap = 10000

// Log is a bounded, append-only sample buffer fed by the background
// stats job.
type Log struct {
	mu      sync.Mutex
	samples []Sample
	cap     int
}

func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultLogCap
	}
	return &Log{cap: capacity}
}

// Append records samples, dropping the oldest ones past capacity.
func (l *Log) Append(samples ...Sample) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.samples = append(l.samples, samples...)
	if over := len(l.samples) - l.cap; over > 0 {
		l.samples = append([]Sample(nil), l.samples[over:]...)
	}
}

// Samples returns a copy of the buffered samples.
func (l *Log) Samples() []Sample {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Sample, len(l.samples))
	copy(out, l.samples)
	return out
}

// Len returns the number of buffered samples.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.samples)
}
