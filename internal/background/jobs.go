// Package background runs the periodic portal chores: keeping the
// session alive, refreshing traffic stats and exporting samples.
package background

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"portalctl/internal/metrics"
	"portalctl/internal/session"
)

// jobTimeout bounds a single job run.
const jobTimeout = 30 * time.Second

// SessionSource is the slice of the session store the session check
// needs.
type SessionSource interface {
	IsAuthenticated() bool
	LoadSession(ctx context.Context) (string, error)
}

// InterfaceSource feeds the stats refresh with interface data.
type InterfaceSource interface {
	SelectedId() string
	LoadStats(ctx context.Context)
	InterfaceIds() []string
	TrafficTotals(id string) (rx, tx uint64, ok bool)
}

// PeerSource feeds the stats refresh with peer data.
type PeerSource interface {
	LoadStats(ctx context.Context, interfaceId string)
	PeerIds() []string
	TrafficTotals(id string) (rx, tx uint64, ok bool)
}

// Jobs owns the cron scheduler.
type Jobs struct {
	cron *cron.Cron
}

func New() *Jobs {
	return &Jobs{cron: cron.New()}
}

// Schedule registers fn to run every interval.
func (j *Jobs) Schedule(interval time.Duration, fn func()) error {
	if interval <= 0 {
		return fmt.Errorf("invalid job interval %v", interval)
	}
	_, err := j.cron.AddFunc(fmt.Sprintf("@every %ds", int(interval.Seconds())), fn)
	return err
}

// Start launches the scheduler in its own goroutine.
func (j *Jobs) Start() {
	j.cron.Start()
}

// Stop halts the scheduler and waits for running jobs.
func (j *Jobs) Stop() {
	<-j.cron.Stop().Done()
}

// SessionCheck returns a job that revalidates the session against the
// backend, so an expired cookie is noticed without user interaction.
func SessionCheck(sess SessionSource) func() {
	return func() {
		if !sess.IsAuthenticated() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if _, err := sess.LoadSession(ctx); err != nil {
			if errors.Is(err, session.ErrNotAuthenticated) {
				log.Printf("background: session expired")
				return
			}
			log.Printf("background: session check failed: %v", err)
		}
	}
}

// StatsRefresh returns a job that reloads the authoritative stats for
// the selected interface and its peers, then records one traffic sample
// per entity. When path is non-empty the sample log is exported as CSV.
func StatsRefresh(sess SessionSource, ifaces InterfaceSource, peers PeerSource, samples *metrics.Log, path string) func() {
	return func() {
		if !sess.IsAuthenticated() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		ifaces.LoadStats(ctx)
		selected := ifaces.SelectedId()
		if selected != "" {
			peers.LoadStats(ctx, selected)
		}
		if samples == nil {
			return
		}

		now := time.Now().UTC()
		for _, id := range ifaces.InterfaceIds() {
			if rx, tx, ok := ifaces.TrafficTotals(id); ok {
				samples.Append(metrics.Sample{Timestamp: now, EntityId: id, BytesReceived: rx, BytesTransmitted: tx})
			}
		}
		for _, id := range peers.PeerIds() {
			if rx, tx, ok := peers.TrafficTotals(id); ok {
				samples.Append(metrics.Sample{Timestamp: now, EntityId: id, BytesReceived: rx, BytesTransmitted: tx})
			}
		}

		if path == "" {
			return
		}
		if err := exportCSV(path, samples.Samples()); err != nil {
			log.Printf("background: metrics export failed: %v", err)
		}
	}
}

func exportCSV(path string, samples []metrics.Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := metrics.WriteCSV(f, samples); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
