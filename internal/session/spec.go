package session

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/chartloom-cli/internal/chart"
	"github.com/KaramelBytes/chartloom-cli/internal/filter"
)

// Spec is a saved set of selections that can be replayed against a table:
//
//	filters:
//	  - column: Kategori
//	    allowed: [Batubara, Semen]
//	chart:
//	  kind: bar
//	  x: Pelabuhan
//	  y: [Ekspor2023]
//	question: Which port grew fastest?
//	mode: data
type Spec struct {
	Filters  []filter.Filter `yaml:"filters,omitempty"`
	Chart    *chart.Request  `yaml:"chart,omitempty"`
	Question string          `yaml:"question,omitempty"`
	Mode     string          `yaml:"mode,omitempty"`
}

// ParseSpec decodes a YAML session spec, rejecting unknown keys.
func ParseSpec(b []byte) (*Spec, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var sp Spec
	if err := dec.Decode(&sp); err != nil {
		if errors.Is(err, io.EOF) {
			return &sp, nil
		}
		return nil, fmt.Errorf("parse session spec: %w", err)
	}
	return &sp, nil
}

// LoadSpec reads and parses a session spec file.
func LoadSpec(path string) (*Spec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session spec: %w", err)
	}
	return ParseSpec(b)
}

// Apply sets the spec's filters (when present) and resolves its chart (when
// present). The first failure stops the replay; earlier steps stay applied.
func (s *Session) Apply(sp *Spec) error {
	if sp == nil {
		return nil
	}
	if sp.Filters != nil {
		if err := s.SetFilters(sp.Filters); err != nil {
			return err
		}
	}
	if sp.Chart != nil {
		if _, err := s.Resolve(*sp.Chart); err != nil {
			return err
		}
	}
	return nil
}

// Spec renders the session's current selections as a spec.
func (s *Session) Spec() *Spec {
	sp := &Spec{Filters: s.Filters()}
	if s.plan != nil {
		p := s.plan
		sp.Chart = &chart.Request{
			Kind: p.Kind, X: p.X, Y: p.Y, Color: p.Color, Size: p.Size,
			Names: p.Names, Values: p.Values, Path: p.Path,
			RowAxis: p.RowAxis, ColumnAxis: p.ColumnAxis,
		}
		if p.HeatmapMode != chart.HeatmapCorrelation {
			sp.Chart.Dimensions = p.Dimensions
		}
	}
	return sp
}
