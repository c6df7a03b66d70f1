// Package analysis summarizes typed tables and composes language-model
// requests grounded in a bounded sample of them.
package analysis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/chartloom-cli/internal/table"
	"github.com/KaramelBytes/chartloom-cli/internal/utils"
)

// Mode selects how a question is framed.
type Mode string

const (
	// DataGrounded embeds the sample and asks for an answer grounded in it.
	DataGrounded Mode = "data"
	// OpenSearch sends only the question and asks for cited general knowledge.
	OpenSearch Mode = "search"
)

// MaxSampleRows bounds the rows sent to the model.
const MaxSampleRows = 100

// maxCellRunes truncates long cells in the sample table.
const maxCellRunes = 80

var (
	ErrUnknownMode   = errors.New("unknown analysis mode")
	ErrEmptyQuestion = errors.New("question is empty")
)

const (
	dataSystemPrompt   = "You are a data analyst assistant analysing CSV/Excel files. Ground every statement in the dataset the user provides; if the data is empty or does not answer the question, say so plainly."
	searchSystemPrompt = "You are a research assistant. Answer from general knowledge and cite the sources you rely on."
)

// ParseMode accepts "data" or "search" and a few spellings of each.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "data", "grounded", "data_grounded", "datagrounded":
		return DataGrounded, nil
	case "search", "open", "open_search", "opensearch", "web":
		return OpenSearch, nil
	default:
		return "", fmt.Errorf("%w: %q (use data or search)", ErrUnknownMode, s)
	}
}

// Options controls request composition.
type Options struct {
	// SampleRows caps the sample; values <= 0 or above MaxSampleRows use MaxSampleRows.
	SampleRows int
	// Name labels the dataset in the prompt.
	Name string
	// Summary adds per-column statistics and correlations to the dataset section.
	Summary bool
}

// Request is the outbound analysis request. The composer never sees answers.
type Request struct {
	Mode       Mode
	Question   string
	System     string
	User       string
	Sample     string
	SampleRows int
	// Tokens is a rough size estimate of System+User.
	Tokens int
}

// Compose shapes a question about t into a model request. A table with zero
// rows still composes, with a header-only sample.
func Compose(t *table.Table, question string, mode Mode, opt Options) (*Request, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return nil, ErrEmptyQuestion
	}
	req := &Request{Mode: mode, Question: q}
	var b strings.Builder
	switch mode {
	case DataGrounded:
		n := opt.SampleRows
		if n <= 0 || n > MaxSampleRows {
			n = MaxSampleRows
		}
		sample := t.Head(n)
		req.Sample = SampleTable(sample)
		req.SampleRows = sample.NumRows()
		req.System = dataSystemPrompt

		b.WriteString("[DATASET]\n")
		if opt.Name != "" {
			b.WriteString(fmt.Sprintf("File: %s\n", opt.Name))
		}
		b.WriteString(fmt.Sprintf("Rows: %d (sample: first %d)\n", t.NumRows(), req.SampleRows))
		b.WriteString(fmt.Sprintf("Numeric columns: %s\n", joinOrNone(t.NumericColumns())))
		b.WriteString(fmt.Sprintf("Categorical columns: %s\n", joinOrNone(t.CategoricalColumns())))
		if opt.Summary {
			b.WriteString("\n")
			b.WriteString(Summarize(opt.Name, t).Markdown())
		}
		b.WriteString("\n[SAMPLE ROWS]\n")
		b.WriteString(req.Sample)
		b.WriteString("\n[QUESTION]\n")
		b.WriteString(q)
		b.WriteString("\n\n[TASK]\n")
		b.WriteString("Answer the question using only the data above. Refer to column names and values you rely on, and note when the sample may not represent the whole table.\n")
	case OpenSearch:
		req.System = searchSystemPrompt
		b.WriteString("[QUESTION]\n")
		b.WriteString(q)
		b.WriteString("\n\n[TASK]\n")
		b.WriteString("Answer using general knowledge. Cite sources for factual claims.\n")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	req.User = b.String()
	req.Tokens = utils.CountTokens(req.System) + utils.CountTokens(req.User)
	return req, nil
}

// SampleTable serializes t as a Markdown pipe table. A table with no rows
// renders its header and separator only.
func SampleTable(t *table.Table) string {
	names := t.Names()
	if len(names) == 0 {
		return "(no columns)\n"
	}
	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("| ")
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString(" |\n")
	}
	head := make([]string, len(names))
	sep := make([]string, len(names))
	for i, n := range names {
		head[i] = safeVal(safeName(n))
		sep[i] = "---"
	}
	writeRow(head)
	writeRow(sep)
	for i := 0; i < t.NumRows(); i++ {
		row := t.Row(i)
		cells := make([]string, len(names))
		for j, n := range names {
			cells[j] = truncate(safeVal(row[n].String()))
		}
		writeRow(cells)
	}
	return b.String()
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) > maxCellRunes {
		return string(r[:maxCellRunes-3]) + "..."
	}
	return s
}

func joinOrNone(ss []string) string {
	if len(ss) == 0 {
		return "(none)"
	}
	return strings.Join(ss, ", ")
}
