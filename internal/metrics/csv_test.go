package metrics

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"
)

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	samples := []Sample{
		{Timestamp: base, EntityId: "p1", BytesReceived: 10, BytesTransmitted: 20},
		{Timestamp: base.Add(time.Minute), EntityId: "wg0", BytesReceived: 30, BytesTransmitted: 40},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, samples); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records=%d, want header + 2 rows", len(records))
	}
	if records[0][0] != "timestamp" || records[0][3] != "bytes_transmitted" {
		t.Fatalf("header=%v", records[0])
	}
	if records[1][1] != "p1" || records[1][2] != "10" {
		t.Fatalf("row=%v", records[1])
	}
	if records[2][1] != "wg0" || records[2][3] != "40" {
		t.Fatalf("row=%v", records[2])
	}
}
