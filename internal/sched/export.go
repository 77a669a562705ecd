package sched

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const exportLimit = 10000

// ExportResults writes execution history for one job (or all jobs when jobID
// is empty) to w in "json" or "csv" format, newest first.
func (s *Service) ExportResults(ctx context.Context, w io.Writer, jobID, format string) error {
	results, err := s.store.Results(ctx, jobID, exportLimit)
	if err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case "csv":
		cw := csv.NewWriter(w)
		header := []string{"job_id", "source", "category", "started_at", "duration_ms", "success", "error_kind", "output_count", "quality_score"}
		if err := cw.Write(header); err != nil {
			return err
		}
		for _, r := range results {
			rec := []string{
				r.JobID,
				r.Source,
				r.Category,
				r.StartedAt.Format(time.RFC3339Nano),
				strconv.FormatInt(r.Duration.Milliseconds(), 10),
				strconv.FormatBool(r.Success),
				r.ErrorKind,
				strconv.Itoa(r.OutputCount),
				strconv.Itoa(r.QualityScore),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		return fmt.Errorf("unknown export format %q (use json or csv)", format)
	}
}
