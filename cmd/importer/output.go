package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/movement-ingest/internal/domain/import/model"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeHistory(w io.Writer, records []model.ImportHistoryRecord, format string) error {
	switch format {
	case "json", "":
		return writeJSON(w, records)
	case "csv":
		return gocsv.Marshal(records, w)
	default:
		return fmt.Errorf("unknown output %q, want json or csv", format)
	}
}

// selectRows picks rows by source row number. An empty selection keeps the
// rows not flagged as duplicates.
func selectRows(rows []model.CandidateRow, selection string) ([]model.CandidateRow, error) {
	if strings.TrimSpace(selection) == "" {
		out := make([]model.CandidateRow, 0, len(rows))
		for _, r := range rows {
			if !r.Duplicate {
				out = append(out, r)
			}
		}
		return out, nil
	}

	wanted, err := parseRowSet(selection)
	if err != nil {
		return nil, err
	}

	out := make([]model.CandidateRow, 0, len(wanted))
	for _, r := range rows {
		if wanted[r.SourceRow] {
			out = append(out, r)
			delete(wanted, r.SourceRow)
		}
	}
	if len(wanted) > 0 {
		missing := make([]int, 0, len(wanted))
		for n := range wanted {
			missing = append(missing, n)
		}
		sort.Ints(missing)
		return nil, fmt.Errorf("rows not in preview: %v", missing)
	}
	return out, nil
}

func parseRowSet(selection string) (map[int]bool, error) {
	set := make(map[int]bool)
	for _, part := range strings.Split(selection, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		from, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil || from < 1 {
			return nil, fmt.Errorf("invalid row %q", part)
		}
		to := from
		if isRange {
			if to, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil || to < from {
				return nil, fmt.Errorf("invalid row range %q", part)
			}
		}
		for n := from; n <= to; n++ {
			set[n] = true
		}
	}
	return set, nil
}
