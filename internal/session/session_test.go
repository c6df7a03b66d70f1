package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/KaramelBytes/chartloom-cli/internal/ai"
	"github.com/KaramelBytes/chartloom-cli/internal/analysis"
	"github.com/KaramelBytes/chartloom-cli/internal/chart"
	"github.com/KaramelBytes/chartloom-cli/internal/filter"
	"github.com/KaramelBytes/chartloom-cli/internal/ingest"
	"github.com/KaramelBytes/chartloom-cli/internal/table"
)

const portsCSV = `Pelabuhan,Kategori,Ekspor2023,Ekspor2022
Belawan,Batubara,"1,200",900
Priok,Semen,2500,2400
Makassar,Batubara,750,
Priok,Batubara,400,350
`

func openPorts(t *testing.T) *Session {
	t.Helper()
	s, err := Open("ports.csv", []byte(portsCSV), Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

type fakeRuntime struct {
	resp  *ai.GenerateResponse
	err   error
	calls int
	last  ai.GenerateRequest
}

func (f *fakeRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	f.calls++
	f.last = req
	return f.resp, f.err
}

type fakeStreamRuntime struct {
	fakeRuntime
	chunks []string
}

func (f *fakeStreamRuntime) GenerateStream(_ context.Context, req ai.GenerateRequest, onDelta func(string)) error {
	f.calls++
	f.last = req
	for _, c := range f.chunks {
		onDelta(c)
	}
	return f.err
}

func TestOpenInfersSchema(t *testing.T) {
	s := openPorts(t)
	if _, err := uuid.Parse(s.ID); err != nil {
		t.Fatalf("session id %q is not a uuid: %v", s.ID, err)
	}
	tbl := s.Table()
	if got := strings.Join(tbl.NumericColumns(), ","); got != "Ekspor2023,Ekspor2022" {
		t.Fatalf("numeric = %s", got)
	}
	if got := strings.Join(tbl.CategoricalColumns(), ","); got != "Pelabuhan,Kategori" {
		t.Fatalf("categorical = %s", got)
	}
	if s.Filtered() != tbl || s.Plan() != nil {
		t.Fatalf("fresh session should be unfiltered without a plan")
	}
}

func TestOpenErrors(t *testing.T) {
	_, err := Open("ports.json", []byte("{}"), Options{})
	if !errors.Is(err, ErrExternalService) || !errors.Is(err, ingest.ErrUnsupportedFormat) {
		t.Fatalf("expected external ingest error, got %v", err)
	}
	_, err = Open("dup.csv", []byte("A,A\n1,2\n"), Options{})
	if !errors.Is(err, table.ErrSchema) || errors.Is(err, ErrExternalService) {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestSetFiltersKeepsPreviousOnError(t *testing.T) {
	s := openPorts(t)
	if err := s.SetFilters([]filter.Filter{{Column: "Kategori", Allowed: []string{"Batubara"}}}); err != nil {
		t.Fatalf("SetFilters: %v", err)
	}
	if s.Filtered().NumRows() != 3 {
		t.Fatalf("filtered rows = %d", s.Filtered().NumRows())
	}
	err := s.SetFilters([]filter.Filter{{Column: "Ekspor2023", Allowed: []string{"750"}}})
	if !errors.Is(err, filter.ErrFilter) {
		t.Fatalf("expected filter error, got %v", err)
	}
	if s.Filtered().NumRows() != 3 || len(s.Filters()) != 1 || s.Filters()[0].Column != "Kategori" {
		t.Fatalf("previous filters not retained: %v rows=%d", s.Filters(), s.Filtered().NumRows())
	}
	if s.Table().NumRows() != 4 {
		t.Fatalf("source table changed: %d rows", s.Table().NumRows())
	}
}

func TestResolveKeepsPreviousPlanOnError(t *testing.T) {
	s := openPorts(t)
	if _, err := s.Figure(); !errors.Is(err, ErrNoPlan) {
		t.Fatalf("expected ErrNoPlan, got %v", err)
	}
	plan, err := s.Resolve(chart.Request{Kind: "bar", X: "Pelabuhan", Y: []string{"Ekspor2023"}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := s.Resolve(chart.Request{Kind: "pie"}); !errors.Is(err, chart.ErrChart) {
		t.Fatalf("expected chart error, got %v", err)
	}
	if s.Plan() != plan {
		t.Fatalf("previous plan not retained: %+v", s.Plan())
	}

	if err := s.SetFilters([]filter.Filter{{Column: "Pelabuhan", Allowed: []string{"Priok"}}}); err != nil {
		t.Fatal(err)
	}
	fig, err := s.Figure()
	if err != nil {
		t.Fatalf("Figure: %v", err)
	}
	if fig.Rows != 2 || len(fig.Series) != 2 || fig.Series[1].Values[0] != 2500.0 {
		t.Fatalf("figure over filtered table = %+v", fig)
	}
}

func TestAskSendsFilteredSample(t *testing.T) {
	s := openPorts(t)
	if err := s.SetFilters([]filter.Filter{{Column: "Kategori", Allowed: []string{"Batubara"}}}); err != nil {
		t.Fatal(err)
	}
	rt := &fakeRuntime{resp: &ai.GenerateResponse{
		Choices:   []ai.Choice{{Message: ai.Message{Role: "assistant", Content: "Belawan leads."}}},
		Usage:     ai.Usage{CompletionTokens: 3},
		RequestID: "req_1",
	}}
	ans, err := s.Ask(context.Background(), rt, "Which port exports most coal?", analysis.DataGrounded, AskOptions{
		Provider: ai.ProviderOpenAI, Model: "gpt-4o", MaxTokens: 2048, Temperature: 1.0,
	})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Text != "Belawan leads." || ans.RequestID != "req_1" || ans.Request.SampleRows != 3 {
		t.Fatalf("answer = %+v", ans)
	}
	if rt.calls != 1 || rt.last.Model != "gpt-4o" || rt.last.MaxTokens != 2048 || len(rt.last.Messages) != 2 {
		t.Fatalf("runtime request = %+v", rt.last)
	}
	user := rt.last.Messages[1].Content
	if !strings.Contains(user, "Makassar") || strings.Contains(user, "Semen") {
		t.Fatalf("sample should hold filtered rows only:\n%s", user)
	}
	if !strings.Contains(user, "File: ports.csv") {
		t.Fatalf("dataset name missing:\n%s", user)
	}
}

func TestAskWrapsRuntimeFailure(t *testing.T) {
	s := openPorts(t)
	rt := &fakeRuntime{err: &ai.RateLimitError{APIError: &ai.APIError{StatusCode: 429}}}
	_, err := s.Ask(context.Background(), rt, "trend?", analysis.DataGrounded, AskOptions{Provider: "openai", Model: "gpt-4o"})
	if !errors.Is(err, ErrExternalService) {
		t.Fatalf("expected ExternalServiceError, got %v", err)
	}
	var rl *ai.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("provider error should stay reachable, got %v", err)
	}
	if rt.calls != 1 {
		t.Fatalf("expected exactly one call, got %d", rt.calls)
	}

	rt.calls = 0
	if _, err := s.Ask(context.Background(), rt, " ", analysis.DataGrounded, AskOptions{}); !errors.Is(err, analysis.ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
	if rt.calls != 0 {
		t.Fatalf("composition errors must not reach the runtime")
	}
}

func TestAskStreams(t *testing.T) {
	s := openPorts(t)
	rt := &fakeStreamRuntime{chunks: []string{"Coal ", "dominates."}}
	var seen []string
	ans, err := s.Ask(context.Background(), rt, "Summarize", analysis.OpenSearch, AskOptions{
		Model:   "llama3.1:8b",
		OnDelta: func(d string) { seen = append(seen, d) },
	})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Text != "Coal dominates." || len(seen) != 2 {
		t.Fatalf("streamed answer = %q deltas=%v", ans.Text, seen)
	}
	if strings.Contains(rt.last.Messages[1].Content, "Belawan") {
		t.Fatalf("open search must not send data")
	}
}

func TestSpecReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	yml := `filters:
  - column: Kategori
    allowed: [Batubara]
chart:
  kind: Scatter
  x: Ekspor2022
  y: [Ekspor2023]
  color: Pelabuhan
question: Is 2023 tracking 2022?
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	sp, err := LoadSpec(path)
	if err != nil {
		t.Fatalf("LoadSpec: %v", err)
	}
	s := openPorts(t)
	if err := s.Apply(sp); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if s.Filtered().NumRows() != 3 || s.Plan() == nil || s.Plan().Kind != chart.KindScatter {
		t.Fatalf("spec not applied: rows=%d plan=%+v", s.Filtered().NumRows(), s.Plan())
	}
	if sp.Question != "Is 2023 tracking 2022?" {
		t.Fatalf("question = %q", sp.Question)
	}

	out := s.Spec()
	if len(out.Filters) != 1 || out.Chart == nil || out.Chart.Color != "Pelabuhan" {
		t.Fatalf("spec snapshot = %+v", out)
	}

	if _, err := ParseSpec([]byte("filter:\n  - column: Kategori\n")); err == nil {
		t.Fatalf("expected unknown key error")
	}
	if sp, err := ParseSpec(nil); err != nil || sp.Chart != nil {
		t.Fatalf("empty spec = %+v, %v", sp, err)
	}
}
