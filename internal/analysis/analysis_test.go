package analysis

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/KaramelBytes/chartloom-cli/internal/table"
)

func portsTable(t *testing.T, rows int) *table.Table {
	t.Helper()
	g := table.Grid{Header: []string{"Pelabuhan", "Kategori", "Ekspor2023", "Ekspor2022"}}
	ports := []string{"Belawan", "Priok", "Makassar"}
	cats := []string{"Batubara", "Semen"}
	for i := 0; i < rows; i++ {
		g.Rows = append(g.Rows, []string{
			ports[i%len(ports)],
			cats[i%len(cats)],
			fmt.Sprintf("1%d0", i%10),
			fmt.Sprintf("%d5", 1+i%9),
		})
	}
	tbl, err := table.Infer(g)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	return tbl
}

func TestComposeEmptyTableStillComposes(t *testing.T) {
	empty, err := table.Infer(table.Grid{Header: []string{"Pelabuhan", "Ekspor2023"}})
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	req, err := Compose(empty, "Which port exports most?", DataGrounded, Options{})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	want := "| Pelabuhan | Ekspor2023 |\n| --- | --- |\n"
	if req.Sample != want {
		t.Fatalf("sample = %q, want %q", req.Sample, want)
	}
	if req.SampleRows != 0 {
		t.Fatalf("sample rows = %d", req.SampleRows)
	}
	if !strings.Contains(req.User, want) || !strings.Contains(req.User, "[QUESTION]\nWhich port exports most?") {
		t.Fatalf("user content missing sections:\n%s", req.User)
	}
}

func TestComposeSampleBoundedToFirstRows(t *testing.T) {
	tbl := portsTable(t, 150)
	req, err := Compose(tbl, "trend?", DataGrounded, Options{SampleRows: 500})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if req.SampleRows != MaxSampleRows {
		t.Fatalf("sample rows = %d, want %d", req.SampleRows, MaxSampleRows)
	}
	// header + separator + rows
	if lines := strings.Count(req.Sample, "\n"); lines != MaxSampleRows+2 {
		t.Fatalf("sample lines = %d", lines)
	}
	first := strings.Split(req.Sample, "\n")[2]
	if first != "| Belawan | Batubara | 100 | 15 |" {
		t.Fatalf("first sample row = %q", first)
	}

	req, err = Compose(tbl, "trend?", DataGrounded, Options{SampleRows: 3})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if req.SampleRows != 3 {
		t.Fatalf("sample rows = %d, want 3", req.SampleRows)
	}
	if !strings.Contains(req.User, "Rows: 150 (sample: first 3)") {
		t.Fatalf("user content missing row note:\n%s", req.User)
	}
	if req.Tokens <= 0 {
		t.Fatalf("tokens = %d", req.Tokens)
	}
}

func TestComposeOpenSearchExcludesData(t *testing.T) {
	tbl := portsTable(t, 5)
	req, err := Compose(tbl, "What drives coal exports?", OpenSearch, Options{Summary: true})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if req.Sample != "" || strings.Contains(req.User, "Belawan") || strings.Contains(req.User, "[SAMPLE ROWS]") {
		t.Fatalf("open search leaked data:\n%s", req.User)
	}
	if !strings.Contains(strings.ToLower(req.System+req.User), "cite") {
		t.Fatalf("open search should ask for sources")
	}
}

func TestComposeErrors(t *testing.T) {
	tbl := portsTable(t, 2)
	if _, err := Compose(tbl, "  ", DataGrounded, Options{}); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
	if _, err := Compose(tbl, "q", Mode("poll"), Options{}); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
	if _, err := ParseMode("maybe"); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
	if m, err := ParseMode("Search"); err != nil || m != OpenSearch {
		t.Fatalf("ParseMode(Search) = %v, %v", m, err)
	}
}

func TestSampleTableSanitizesCells(t *testing.T) {
	long := strings.Repeat("x", 120)
	tbl, err := table.Infer(table.Grid{
		Header: []string{"Note"},
		Rows:   [][]string{{"a|b\nc"}, {long}},
	})
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	lines := strings.Split(SampleTable(tbl), "\n")
	if lines[2] != "| a/b c |" {
		t.Fatalf("sanitized row = %q", lines[2])
	}
	if want := "| " + strings.Repeat("x", 77) + "... |"; lines[3] != want {
		t.Fatalf("truncated row = %q", lines[3])
	}
}

func TestSummarizeAndMarkdown(t *testing.T) {
	tbl, err := table.Infer(table.Grid{
		Header: []string{"Kategori", "Ekspor2023", "Ekspor2022"},
		Rows: [][]string{
			{"Batubara", "100", "90"},
			{"Semen", "250", "240"},
			{"Batubara", "75", ""},
			{"", "40", "35"},
		},
	})
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	p := Summarize("ports.csv", tbl)
	if len(p.Cols) != 3 {
		t.Fatalf("cols = %d", len(p.Cols))
	}
	kat := p.Cols[0]
	if kat.NonNull != 3 || kat.Missing != 1 || kat.Unique != 2 || kat.TopValues[0] != (CategoryCount{"Batubara", 2}) {
		t.Fatalf("Kategori summary = %#v", kat)
	}
	e22 := p.Cols[2]
	if e22.NonNull != 3 || e22.Missing != 1 || e22.Min != 35 || e22.Max != 240 {
		t.Fatalf("Ekspor2022 summary = %#v", e22)
	}
	wantMean := (90.0 + 240 + 35) / 3
	if math.Abs(e22.Mean-wantMean) > 1e-9 {
		t.Fatalf("mean = %f, want %f", e22.Mean, wantMean)
	}
	if len(p.Corr) != 1 || p.Corr[0].A != "Ekspor2023" || p.Corr[0].B != "Ekspor2022" {
		t.Fatalf("corr = %#v", p.Corr)
	}

	md := p.Markdown()
	for _, want := range []string{
		"[DATASET SUMMARY]",
		"File: ports.csv",
		"Rows: 4",
		"- Kategori: categorical (non-null 3, missing 25.0%)",
		"top: Batubara(2), Semen(1)",
		"- Ekspor2022: numeric",
		"[CORRELATIONS]",
		"Ekspor2023 ~ Ekspor2022",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}
