package data

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/retzproject/retz/internal/errors"
	"github.com/retzproject/retz/internal/domain/model"
)

// fitOrderColumns are the indexed columns a planner may sort the queue by.
// The list is a whitelist; ORDER BY is assembled from these names only, never
// from caller input.
var fitOrderColumns = map[string]bool{
	"id":       true,
	"priority": true,
	"name":     true,
	"appid":    true,
}

// FindFit walks the queue in the planner's order and returns the longest
// prefix whose cumulative demand fits within the offered cpu and memory.
// Scanning stops at the first job that does not fit, even if a later,
// smaller job would. Skipping ahead would starve large jobs forever.
func (s *Store) FindFit(ctx context.Context, orderBy []string, cpu int, memMB int) ([]*model.Job, error) {
	if len(orderBy) == 0 {
		return nil, apperrors.Validationf("findFit: empty order")
	}
	seen := make(map[string]bool, len(orderBy))
	clauses := make([]string, 0, len(orderBy))
	for _, col := range orderBy {
		if !fitOrderColumns[col] {
			return nil, apperrors.Validationf("findFit: unknown order column %q", col)
		}
		if seen[col] {
			return nil, apperrors.Validationf("findFit: duplicate order column %q", col)
		}
		seen[col] = true
		clauses = append(clauses, col+" ASC")
	}

	rows, err := s.DB.QueryContext(ctx,
		"SELECT "+jobColumns+" FROM jobs WHERE state = $1 ORDER BY "+strings.Join(clauses, ", "),
		string(model.JobQueued))
	if err != nil {
		return nil, fmt.Errorf("store: findFit: %w", apperrors.MapDBError(err))
	}
	defer rows.Close()

	var (
		fit      []*model.Job
		totalCPU int
		totalMem int
	)
	for rows.Next() {
		job, scanErr := scanJobRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("store: findFit: %w", scanErr)
		}
		if totalCPU+job.Resources.CPU > cpu || totalMem+job.Resources.MemMB > memMB {
			break
		}
		totalCPU += job.Resources.CPU
		totalMem += job.Resources.MemMB
		fit = append(fit, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: findFit: %w", err)
	}
	return fit, nil
}
