// Package pipeline collects scraped fragments and writes the final table.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/magpie/table"
)

var (
	// ErrPipelineClosed is returned when Submit is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
	// ErrMissingColumns is returned for a fragment lacking a schema column.
	ErrMissingColumns = errors.New("pipeline: fragment missing columns")
)

// OutputWriter receives the final table once. Nothing is visible at the
// destination until Close; Discard abandons the output.
type OutputWriter interface {
	Write(t *table.Table) error
	Close() error
	Discard() error
	Validate() error
}

// Pipeline validates fragments from scrape workers and, on Close, concatenates
// them diagonally and hands the result to the writer.
type Pipeline struct {
	ctx    context.Context
	writer OutputWriter
	schema *table.Table
	fragCh chan *table.Table

	wg sync.WaitGroup

	fragsMu sync.Mutex
	frags   []*table.Table

	metrics metrics

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline. schema is a zero-row table fixing the column
// order of the output; every fragment must carry its columns.
func NewPipeline(ctx context.Context, writer OutputWriter, schema *table.Table, bufferSize int) *Pipeline {
	if ctx == nil {
		ctx = context.Background()
	}
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Pipeline{
		ctx:      ctx,
		writer:   writer,
		schema:   schema,
		fragCh:   make(chan *table.Table, bufferSize),
		metrics:  newMetrics(),
		shutdown: make(chan struct{}),
	}
}

// Start launches worker goroutines.
func (p *Pipeline) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Submit enqueues a fragment.
func (p *Pipeline) Submit(frag *table.Table) error {
	closed, err := p.state()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}
	return p.enqueue(frag)
}

// Close drains the workers, concatenates the fragments and commits the output.
// On any earlier failure the output is discarded and the first error returned.
func (p *Pipeline) Close() (*table.Table, error) {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.closeOnce.Do(func() {
		close(p.fragCh)
	})

	p.wg.Wait()
	p.signalShutdown()

	if err := p.Err(); err != nil {
		p.discard()
		return nil, err
	}
	if err := p.ctx.Err(); err != nil {
		p.discard()
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	p.fragsMu.Lock()
	inputs := make([]*table.Table, 0, len(p.frags)+1)
	if p.schema != nil {
		inputs = append(inputs, p.schema)
	}
	inputs = append(inputs, p.frags...)
	p.fragsMu.Unlock()

	final, err := table.ConcatDiagonal(inputs...)
	if err != nil {
		p.discard()
		return nil, fmt.Errorf("concatenate fragments: %w", err)
	}
	if err := p.writer.Write(final); err != nil {
		p.discard()
		return nil, fmt.Errorf("write output: %w", err)
	}
	if err := p.writer.Close(); err != nil {
		return nil, fmt.Errorf("commit output: %w", err)
	}
	return final, nil
}

// Abort stops accepting fragments and discards the output.
func (p *Pipeline) Abort(cause error) {
	if cause == nil {
		cause = ErrPipelineClosed
	}
	p.setErr(cause)
	p.wg.Wait()
	p.discard()
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m := p.GetMetrics()
				slog.Info("pipeline progress",
					slog.Int64("fragments", m["fragments"].(int64)),
					slog.Int64("rows", m["rows"].(int64)),
					slog.Int64("empty_fragments", m["empty_fragments"].(int64)),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	for frag := range p.fragCh {
		if err := p.prepare(frag); err != nil {
			p.setErr(err)
			continue
		}
		p.fragsMu.Lock()
		p.frags = append(p.frags, frag)
		p.fragsMu.Unlock()
	}
}

func (p *Pipeline) prepare(frag *table.Table) error {
	if frag == nil {
		p.metrics.addValidation("nil_fragment")
		return fmt.Errorf("pipeline: nil fragment")
	}
	if p.schema != nil {
		var missing []string
		for _, name := range p.schema.Names() {
			if _, ok := frag.Column(name); !ok {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			p.metrics.addValidation("missing_columns")
			return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
		}
	}
	p.metrics.addFragment(frag.Height())
	return nil
}

func (p *Pipeline) enqueue(frag *table.Table) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPipelineClosed
		}
	}()

	select {
	case <-p.shutdown:
		if e := p.Err(); e != nil {
			return e
		}
		return ErrPipelineClosed
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.fragCh <- frag:
		return nil
	}
}

func (p *Pipeline) discard() {
	if err := p.writer.Discard(); err != nil {
		slog.Warn("discard output", slog.Any("error", err))
	}
}

func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return
	}
	p.err = err
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.fragCh)
	})
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type metrics struct {
	mu         sync.Mutex
	fragments  int64
	rows       int64
	empty      int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) addFragment(rows int) {
	m.mu.Lock()
	m.fragments++
	m.rows += int64(rows)
	if rows == 0 {
		m.empty++
	}
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"fragments":         m.fragments,
		"rows":              m.rows,
		"empty_fragments":   m.empty,
		"validation_errors": copyValidation,
	}
}
