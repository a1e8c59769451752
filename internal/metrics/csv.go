package metrics

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// WriteCSV writes samples to CSV with a fixed column order.
func WriteCSV(w io.Writer, items []Sample) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{
		"timestamp",
		"entity_id",
		"bytes_received",
		"bytes_transmitted",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, s := range items {
		record := []string{
			s.Timestamp.UTC().Format(time.RFC3339Nano),
			s.EntityId,
			strconv.FormatUint(s.BytesReceived, 10),
			strconv.FormatUint(s.BytesTransmitted, 10),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}
