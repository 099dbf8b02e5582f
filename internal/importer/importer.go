// Package importer bulk-loads user events from CSV, XLSX or JSON files.
// Each row goes through the same validation and geocoding as a single
// create request; rows that fail are reported and skipped.
package importer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/nearby-events/internal/events"
	"github.com/sells-group/nearby-events/internal/model"
)

// Builder turns a create request into a storable event.
type Builder interface {
	Build(ctx context.Context, in events.CreateInput) (*model.Event, error)
}

// Sink writes a batch of events.
type Sink interface {
	ImportEvents(ctx context.Context, evs []model.Event) (int64, error)
}

// Options tunes an import.
type Options struct {
	BatchSize int
	Workers   int
	Sheet     string // XLSX worksheet; empty means the first
	DryRun    bool
}

// RowError is a row that could not be imported. Row is 1-based and counts
// data rows only.
type RowError struct {
	Row int
	Err error
}

// Result summarizes an import.
type Result struct {
	Rows     int
	Imported int64
	Failed   []RowError
}

// Importer builds and writes events in batches.
type Importer struct {
	builder Builder
	sink    Sink
	opts    Options
}

// New creates an Importer.
func New(b Builder, sink Sink, opts Options) *Importer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Importer{builder: b, sink: sink, opts: opts}
}

// ImportFile picks the reader by file extension.
func (im *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		t, err := readCSVFile(ctx, path)
		if err != nil {
			return nil, err
		}
		return im.ImportTable(ctx, t)
	case ".xlsx":
		t, err := ReadXLSX(path, im.opts.Sheet)
		if err != nil {
			return nil, err
		}
		return im.ImportTable(ctx, t)
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrap(err, "importer: read json")
		}
		var inputs []events.CreateInput
		if err := json.Unmarshal(data, &inputs); err != nil {
			return nil, eris.Wrap(err, "importer: decode json")
		}
		return im.Import(ctx, inputs)
	default:
		return nil, eris.Errorf("importer: unsupported file type %q", filepath.Ext(path))
	}
}

// ImportTable maps each row and imports the result. Rows that do not map
// are reported with the build failures.
func (im *Importer) ImportTable(ctx context.Context, t *Table) (*Result, error) {
	m, err := NewMapping(t.Header)
	if err != nil {
		return nil, err
	}

	inputs := make([]events.CreateInput, 0, len(t.Rows))
	rowNums := make([]int, 0, len(t.Rows))
	var failed []RowError
	for i, row := range t.Rows {
		in, err := m.Input(row)
		if err != nil {
			failed = append(failed, RowError{Row: i + 1, Err: err})
			continue
		}
		inputs = append(inputs, in)
		rowNums = append(rowNums, i+1)
	}

	res, err := im.run(ctx, inputs, rowNums)
	if err != nil {
		return nil, err
	}
	res.Rows = len(t.Rows)
	res.Failed = append(failed, res.Failed...)
	slices.SortStableFunc(res.Failed, func(a, b RowError) int { return a.Row - b.Row })
	return res, nil
}

// Import builds and writes inputs.
func (im *Importer) Import(ctx context.Context, inputs []events.CreateInput) (*Result, error) {
	rowNums := make([]int, len(inputs))
	for i := range rowNums {
		rowNums[i] = i + 1
	}
	return im.run(ctx, inputs, rowNums)
}

func (im *Importer) run(ctx context.Context, inputs []events.CreateInput, rowNums []int) (*Result, error) {
	res := &Result{Rows: len(inputs)}

	for start := 0; start < len(inputs); start += im.opts.BatchSize {
		end := min(start+im.opts.BatchSize, len(inputs))

		built := make([]*model.Event, end-start)
		errs := make([]error, end-start)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(im.opts.Workers)
		for i := start; i < end; i++ {
			g.Go(func() error {
				ev, err := im.builder.Build(gctx, inputs[i])
				if err != nil {
					errs[i-start] = err
					return nil
				}
				built[i-start] = ev
				return nil
			})
		}
		_ = g.Wait()
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "importer: cancelled")
		}

		batch := make([]model.Event, 0, len(built))
		for i, ev := range built {
			if errs[i] != nil {
				res.Failed = append(res.Failed, RowError{Row: rowNums[start+i], Err: errs[i]})
				continue
			}
			batch = append(batch, *ev)
		}

		if im.opts.DryRun {
			res.Imported += int64(len(batch))
			continue
		}
		n, err := im.sink.ImportEvents(ctx, batch)
		if err != nil {
			return nil, eris.Wrapf(err, "importer: write rows %d-%d", rowNums[start], rowNums[end-1])
		}
		res.Imported += n

		zap.L().Info("import batch written",
			zap.Int("rows", end-start),
			zap.Int64("imported", n),
			zap.Int("failed_total", len(res.Failed)),
		)
	}
	return res, nil
}
