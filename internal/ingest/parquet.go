package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/KaramelBytes/chartloom-cli/internal/table"
)

// ReadParquet loads a Parquet file into a string grid, one column per field.
func ReadParquet(data []byte) (table.Grid, error) {
	pf, err := file.NewParquetReader(bytes.NewReader(data), file.WithReadProps(&parquet.ReaderProperties{}))
	if err != nil {
		return table.Grid{}, fmt.Errorf("open parquet: %w", err)
	}
	defer pf.Close()

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	if err != nil {
		return table.Grid{}, fmt.Errorf("create arrow reader: %w", err)
	}
	tbl, err := fr.ReadTable(context.Background())
	if err != nil {
		return table.Grid{}, fmt.Errorf("read parquet data: %w", err)
	}
	defer tbl.Release()

	ncol := int(tbl.NumCols())
	nrow := int(tbl.NumRows())
	g := table.Grid{Header: make([]string, ncol), Rows: make([][]string, nrow)}
	for i := range g.Rows {
		g.Rows[i] = make([]string, ncol)
	}
	for j := 0; j < ncol; j++ {
		g.Header[j] = tbl.Schema().Field(j).Name
		row := 0
		for _, chunk := range tbl.Column(j).Data().Chunks() {
			for k := 0; k < chunk.Len(); k++ {
				g.Rows[row][j] = formatValue(chunk, k)
				row++
			}
		}
	}
	return g, nil
}

// formatValue renders one Arrow value as cell text; nulls become missing.
func formatValue(col arrow.Array, pos int) string {
	if col.IsNull(pos) {
		return ""
	}
	switch c := col.(type) {
	case *array.String:
		return c.Value(pos)
	case *array.LargeString:
		return c.Value(pos)
	case *array.Binary:
		return string(c.Value(pos))
	case *array.Float64:
		return strconv.FormatFloat(c.Value(pos), 'f', -1, 64)
	case *array.Float32:
		return strconv.FormatFloat(float64(c.Value(pos)), 'f', -1, 32)
	case *array.Int64:
		return strconv.FormatInt(c.Value(pos), 10)
	case *array.Int32:
		return strconv.FormatInt(int64(c.Value(pos)), 10)
	case *array.Date32:
		return c.Value(pos).ToTime().Format("2006-01-02")
	case *array.Date64:
		return c.Value(pos).ToTime().Format("2006-01-02")
	default:
		return col.ValueStr(pos)
	}
}
