package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc/iter"

	"cropfetcher/internal/table"
)

// Part is one sub-request of a source that fans out per commodity.
type Part struct {
	// Label identifies the sub-request in logs, usually the commodity name
	Label string

	// Fetch retrieves the rows for this part, already labelled
	Fetch func(ctx context.Context) (*table.Table, error)
}

type partResult struct {
	rows *table.Table
	err  error
}

// Gather runs parts concurrently and concatenates the successful ones in
// input order. Failed or empty parts are logged and skipped; Gather fails
// only when no part produced rows.
func Gather(ctx context.Context, source string, logger *slog.Logger, parts []Part) (*table.Table, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(parts) == 0 {
		return nil, NewEmptyError(source)
	}

	mapper := iter.Mapper[Part, partResult]{MaxGoroutines: len(parts)}
	results := mapper.Map(parts, func(p *Part) partResult {
		rows, err := p.Fetch(ctx)
		if err == nil && rows.Empty() {
			err = NewEmptyError(fmt.Sprintf("%s %s", source, p.Label))
		}
		if err == nil {
			if verr := rows.Validate(); verr != nil {
				err = NewParseError(fmt.Sprintf("%s %s", source, p.Label), verr)
			}
		}
		return partResult{rows: rows, err: err}
	})

	var (
		tables []*table.Table
		errs   []error
	)
	for i, r := range results {
		label := parts[i].Label
		if r.err != nil {
			logger.Warn("sub-fetch failed, skipping",
				"source", source,
				"part", label,
				"error", r.err)
			errs = append(errs, fmt.Errorf("%s: %w", label, r.err))
			continue
		}
		logger.Debug("sub-fetch succeeded",
			"source", source,
			"part", label,
			"rows", r.rows.Len())
		tables = append(tables, r.rows)
	}

	if len(tables) == 0 {
		return nil, fmt.Errorf("%s: all %d sub-fetches failed: %w", source, len(parts), errors.Join(errs...))
	}

	return table.Concat(tables...), nil
}
