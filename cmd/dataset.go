package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/chartloom-cli/internal/filter"
	"github.com/KaramelBytes/chartloom-cli/internal/ingest"
	"github.com/KaramelBytes/chartloom-cli/internal/session"
	"github.com/spf13/cobra"
)

// datasetFlags are shared by every command that loads a table.
type datasetFlags struct {
	format     string
	delimiter  string
	sheetName  string
	sheetIndex int
	filters    []string
	specPath   string
}

func (d *datasetFlags) register(c *cobra.Command) {
	c.Flags().StringVar(&d.format, "format", "", "input format: csv|tsv|xlsx|parquet (default: from extension)")
	c.Flags().StringVar(&d.delimiter, "delimiter", "", "delimiter for text input: ','|';'|'tab'|'|' (default: sniffed)")
	c.Flags().StringVar(&d.sheetName, "sheet", "", "XLSX sheet name")
	c.Flags().IntVar(&d.sheetIndex, "sheet-index", 0, "XLSX 1-based sheet index (default first)")
	c.Flags().StringArrayVar(&d.filters, "filter", nil, "category filter Column=value1,value2 (repeatable)")
	c.Flags().StringVar(&d.specPath, "session", "", "YAML session spec with filters/chart/question")
}

func (d *datasetFlags) ingestOptions() (ingest.Options, error) {
	var opt ingest.Options
	f, err := ingest.ParseFormat(d.format)
	if err != nil {
		return opt, err
	}
	opt.Format = f
	switch strings.ToLower(d.delimiter) {
	case "":
	case ",":
		opt.Delimiter = ','
	case ";":
		opt.Delimiter = ';'
	case "\t", "tab", `\t`:
		opt.Delimiter = '\t'
	case "|", "pipe":
		opt.Delimiter = '|'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", d.delimiter)
	}
	opt.SheetName = d.sheetName
	opt.SheetIndex = d.sheetIndex
	return opt, nil
}

// open loads path into a session and replays the session spec, then any
// --filter flags, which replace the spec's filters.
func (d *datasetFlags) open(path string) (*session.Session, *session.Spec, error) {
	opt, err := d.ingestOptions()
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read input: %w", err)
	}
	sess, err := session.Open(filepath.Base(path), data, session.Options{Ingest: opt, Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	spec := &session.Spec{}
	if d.specPath != "" {
		spec, err = session.LoadSpec(d.specPath)
		if err != nil {
			return nil, nil, err
		}
	}
	if len(d.filters) > 0 {
		fs := make([]filter.Filter, 0, len(d.filters))
		for _, raw := range d.filters {
			f, err := filter.Parse(raw)
			if err != nil {
				return nil, nil, err
			}
			fs = append(fs, f)
		}
		spec.Filters = fs
	}
	if spec.Filters != nil {
		if err := sess.SetFilters(spec.Filters); err != nil {
			return nil, nil, err
		}
	}
	return sess, spec, nil
}
