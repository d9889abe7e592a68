// Package dedup owns the equality policy for duplicate movements, both inside
// one extracted batch and against movements already persisted.
package dedup

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/movement-ingest/internal/domain/import/model"
)

// Key identifies a movement for duplicate detection: UTC calendar date,
// amount rounded to cents, description and origin.
type Key struct {
	Date        string
	Amount      string
	Description string
	Origin      string
}

func newKey(at time.Time, amount decimal.Decimal, description, origin string) Key {
	return Key{
		Date:        at.UTC().Format(time.DateOnly),
		Amount:      amount.StringFixed(2),
		Description: strings.TrimSpace(description),
		Origin:      strings.TrimSpace(origin),
	}
}

// RowKey builds the key of a candidate row.
func RowKey(r model.CandidateRow) Key {
	return newKey(r.EmittedAt, r.Amount, r.Description, r.Origin)
}

// MovementKey builds the key of a persisted movement.
func MovementKey(m model.Movement) Key {
	return newKey(m.EmittedAt, m.Amount, m.Description, m.Origin)
}

// MarkIntraBatch flags every row equal to an earlier row of the same batch.
// The first occurrence is never flagged. Rows already flagged keep their
// reason. The input slice is not modified.
func MarkIntraBatch(rows []model.CandidateRow) []model.CandidateRow {
	out := make([]model.CandidateRow, len(rows))
	seen := make(map[Key]int, len(rows))

	for i, r := range rows {
		k := RowKey(r)
		first, dup := seen[k]
		switch {
		case dup && !r.Duplicate:
			out[i] = r.WithDuplicate(fmt.Sprintf("duplicate of row %d", first))
		default:
			out[i] = r
		}
		if !dup {
			seen[k] = r.SourceRow
		}
	}
	return out
}

// MatchHistory flags rows equal to one of the existing movements. Rows that
// are already flagged are left untouched.
func MatchHistory(rows []model.CandidateRow, existing []model.Movement) []model.CandidateRow {
	out := make([]model.CandidateRow, len(rows))
	if len(existing) == 0 {
		copy(out, rows)
		return out
	}

	index := make(map[Key]int64, len(existing))
	for _, m := range existing {
		k := MovementKey(m)
		if _, ok := index[k]; !ok {
			index[k] = m.ID
		}
	}

	for i, r := range rows {
		id, ok := index[RowKey(r)]
		if ok && !r.Duplicate {
			out[i] = r.WithDuplicate(fmt.Sprintf("matches an existing movement (id %d)", id))
			continue
		}
		out[i] = r
	}
	return out
}

// Window returns the first and last UTC calendar day covered by the rows. ok
// is false for an empty batch.
func Window(rows []model.CandidateRow) (from, to time.Time, ok bool) {
	for i, r := range rows {
		day := truncateDay(r.EmittedAt)
		if i == 0 || day.Before(from) {
			from = day
		}
		if i == 0 || day.After(to) {
			to = day
		}
	}
	return from, to, len(rows) > 0
}

// CountUnique counts rows not flagged as duplicates.
func CountUnique(rows []model.CandidateRow) int {
	n := 0
	for _, r := range rows {
		if !r.Duplicate {
			n++
		}
	}
	return n
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
