// Package session holds one uploaded table and the state derived from it:
// active filters, the filtered view and the last resolved chart plan.
// A failed operation leaves the previous valid state in place.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/chartloom-cli/internal/ai"
	"github.com/KaramelBytes/chartloom-cli/internal/analysis"
	"github.com/KaramelBytes/chartloom-cli/internal/chart"
	"github.com/KaramelBytes/chartloom-cli/internal/filter"
	"github.com/KaramelBytes/chartloom-cli/internal/ingest"
	"github.com/KaramelBytes/chartloom-cli/internal/logging"
	"github.com/KaramelBytes/chartloom-cli/internal/table"
)

// Options configures Open.
type Options struct {
	Ingest ingest.Options
	Logger *slog.Logger
}

// Session is owned by a single caller; it is not safe for concurrent use.
type Session struct {
	ID       string
	Name     string
	OpenedAt time.Time

	table    *table.Table
	filters  []filter.Filter
	filtered *table.Table
	plan     *chart.Plan
	logger   *slog.Logger
}

// Open decodes data, infers its schema and starts a session with no filters.
// Decoding failures are *ExternalServiceError; schema failures are *table.SchemaError.
func Open(name string, data []byte, opt Options) (*Session, error) {
	grid, err := ingest.Read(name, data, opt.Ingest)
	if err != nil {
		return nil, &ExternalServiceError{Service: "ingest", Err: err}
	}
	t, err := table.Infer(grid)
	if err != nil {
		return nil, err
	}
	return New(name, t, opt.Logger), nil
}

// New starts a session over an already typed table.
func New(name string, t *table.Table, logger *slog.Logger) *Session {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Session{
		ID:       uuid.NewString(),
		Name:     name,
		OpenedAt: time.Now(),
		table:    t,
		filtered: t,
	}
	s.logger = logger.With("session", s.ID)
	s.logger.Debug("table loaded",
		"name", name,
		"rows", t.NumRows(),
		"numeric", t.NumericColumns(),
		"categorical", t.CategoricalColumns(),
	)
	return s
}

// Table returns the unfiltered table.
func (s *Session) Table() *table.Table { return s.table }

// Filtered returns the table after the active filters.
func (s *Session) Filtered() *table.Table { return s.filtered }

// Filters returns a copy of the active filters.
func (s *Session) Filters() []filter.Filter {
	out := make([]filter.Filter, len(s.filters))
	copy(out, s.filters)
	return out
}

// Plan returns the last successfully resolved plan, or nil.
func (s *Session) Plan() *chart.Plan { return s.plan }

// SetFilters replaces the active filters. On error the previous filters and
// filtered table are kept.
func (s *Session) SetFilters(filters []filter.Filter) error {
	out, err := filter.Apply(s.table, filters)
	if err != nil {
		s.logger.Warn("filters rejected, keeping previous", "error", err, "active", len(s.filters))
		return err
	}
	s.filters = append([]filter.Filter(nil), filters...)
	s.filtered = out
	s.logger.Debug("filters applied", "filters", len(filters), "rows_in", s.table.NumRows(), "rows_out", out.NumRows())
	return nil
}

// Resolve validates req against the filtered table and stores the plan.
// On error the previous plan is kept.
func (s *Session) Resolve(req chart.Request) (*chart.Plan, error) {
	plan, err := chart.Resolve(s.filtered, req)
	if err != nil {
		s.logger.Warn("chart rejected, keeping previous plan", "error", err, "kind", req.Kind)
		return nil, err
	}
	s.plan = plan
	s.logger.Debug("chart resolved", "kind", plan.Kind, "heatmap_mode", plan.HeatmapMode, "aggregate", plan.Aggregate)
	return plan, nil
}

// Figure builds renderer data for the current plan over the filtered table.
func (s *Session) Figure() (*chart.Figure, error) {
	if s.plan == nil {
		return nil, ErrNoPlan
	}
	return chart.Build(s.filtered, s.plan)
}

// Compose shapes a question over the filtered table without calling a model.
func (s *Session) Compose(question string, mode analysis.Mode, opt analysis.Options) (*analysis.Request, error) {
	if opt.Name == "" {
		opt.Name = s.Name
	}
	req, err := analysis.Compose(s.filtered, question, mode, opt)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("analysis composed", "mode", req.Mode, "sample_rows", req.SampleRows, "tokens", req.Tokens)
	return req, nil
}

// AskOptions controls one language-model call.
type AskOptions struct {
	Provider    string
	Model       string
	MaxTokens   int
	Temperature float64
	Analysis    analysis.Options
	// OnDelta, when set and the runtime can stream, receives partial output.
	OnDelta func(string)
}

// Answer is the outcome of Ask.
type Answer struct {
	Request   *analysis.Request
	Text      string
	Model     string
	Usage     ai.Usage
	RequestID string
	Elapsed   time.Duration
}

// Ask composes the question and performs exactly one runtime call.
// Runtime failures are wrapped as *ExternalServiceError.
func (s *Session) Ask(ctx context.Context, rt ai.Runtime, question string, mode analysis.Mode, opt AskOptions) (*Answer, error) {
	req, err := s.Compose(question, mode, opt.Analysis)
	if err != nil {
		return nil, err
	}
	greq := ai.GenerateRequest{
		Model: opt.Model,
		Messages: []ai.Message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		MaxTokens:   opt.MaxTokens,
		Temperature: opt.Temperature,
	}
	service := opt.Provider
	if service == "" {
		service = "language model"
	}

	start := time.Now()
	ans := &Answer{Request: req, Model: opt.Model}
	if sr, ok := rt.(ai.StreamRuntime); ok && opt.OnDelta != nil {
		var text []byte
		err = sr.GenerateStream(ctx, greq, func(d string) {
			text = append(text, d...)
			opt.OnDelta(d)
		})
		ans.Text = string(text)
	} else {
		var resp *ai.GenerateResponse
		resp, err = rt.Generate(ctx, greq)
		if err == nil {
			ans.Text = resp.Text()
			ans.Usage = resp.Usage
			ans.RequestID = resp.RequestID
		}
	}
	ans.Elapsed = time.Since(start)
	if err != nil {
		s.logger.Warn("analysis call failed", "provider", service, "model", opt.Model, "error", err)
		return nil, &ExternalServiceError{Service: service, Err: err}
	}
	s.logger.Info("analysis answered",
		"provider", service,
		"model", opt.Model,
		"elapsed", ans.Elapsed,
		"request_id", ans.RequestID,
		"completion_tokens", ans.Usage.CompletionTokens,
	)
	return ans, nil
}

// String summarizes the session for logs and headers.
func (s *Session) String() string {
	return fmt.Sprintf("%s (%d/%d rows, %d filters)", s.Name, s.filtered.NumRows(), s.table.NumRows(), len(s.filters))
}
