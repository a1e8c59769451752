package background

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"portalctl/internal/metrics"
	"portalctl/internal/session"
)

type fakeSession struct {
	authed bool
	loads  int
	err    error
}

func (s *fakeSession) IsAuthenticated() bool { return s.authed }

func (s *fakeSession) LoadSession(context.Context) (string, error) {
	s.loads++
	return "/", s.err
}

type fakeStats struct {
	selected  string
	loads     int
	peerLoads int
	ifaceIds  []string
	peerIds   []string
	totals    map[string][2]uint64
}

func (f *fakeStats) SelectedId() string        { return f.selected }
func (f *fakeStats) LoadStats(context.Context) { f.loads++ }
func (f *fakeStats) InterfaceIds() []string    { return f.ifaceIds }
func (f *fakeStats) PeerIds() []string         { return f.peerIds }

func (f *fakeStats) TrafficTotals(id string) (uint64, uint64, bool) {
	t, ok := f.totals[id]
	return t[0], t[1], ok
}

type fakePeerStats struct {
	*fakeStats
}

func (f fakePeerStats) LoadStats(ctx context.Context, interfaceId string) {
	f.fakeStats.peerLoads++
}

func TestSessionCheckSkipsLoggedOut(t *testing.T) {
	t.Parallel()

	s := &fakeSession{}
	SessionCheck(s)()
	if s.loads != 0 {
		t.Fatalf("loads=%d while logged out, want 0", s.loads)
	}

	s.authed = true
	SessionCheck(s)()
	if s.loads != 1 {
		t.Fatalf("loads=%d, want 1", s.loads)
	}

	s.err = session.ErrNotAuthenticated
	SessionCheck(s)() // must not panic, only log
}

func TestStatsRefreshRecordsSamples(t *testing.T) {
	t.Parallel()

	stats := &fakeStats{
		selected: "wg0",
		ifaceIds: []string{"wg0"},
		peerIds:  []string{"p1", "p2"},
		totals: map[string][2]uint64{
			"wg0": {100, 200},
			"p1":  {10, 20},
		},
	}
	samples := metrics.NewLog(100)
	path := filepath.Join(t.TempDir(), "traffic.csv")

	job := StatsRefresh(&fakeSession{authed: true}, stats, fakePeerStats{stats}, samples, path)
	job()

	if stats.loads != 1 || stats.peerLoads != 1 {
		t.Fatalf("loads=%d peerLoads=%d, want 1 each", stats.loads, stats.peerLoads)
	}
	// p2 has no stats, so only wg0 and p1 produce samples.
	if samples.Len() != 2 {
		t.Fatalf("samples=%d, want 2", samples.Len())
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("metrics export missing: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("csv rows=%d, want header + 2", len(records))
	}
}

func TestStatsRefreshSkipsLoggedOut(t *testing.T) {
	t.Parallel()

	stats := &fakeStats{selected: "wg0"}
	job := StatsRefresh(&fakeSession{}, stats, fakePeerStats{stats}, metrics.NewLog(10), "")
	job()

	if stats.loads != 0 {
		t.Fatalf("stats loaded while logged out")
	}
}

func TestJobsScheduleValidation(t *testing.T) {
	t.Parallel()

	j := New()
	if err := j.Schedule(0, func() {}); err == nil {
		t.Fatalf("Schedule(0) accepted")
	}
	if err := j.Schedule(5*time.Second, func() {}); err != nil {
		t.Fatalf("Schedule(5s): %v", err)
	}
}
