package sampler

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"gonum.org/v1/gonum/mat"

	"github.com/hierbayes/hierfit/internal/hierr"
)

// Arrow IPC is the interchange format at the sampler boundary: WriteData
// encodes a FlatData as a single record whose per-observation fields are
// columns and whose scalars and prior bounds ride in the schema metadata;
// ReadDraws decodes the draws record an external sampler writes back, one
// float64 column per parameter element named "param" or "param[j]" (1-based).

const (
	metaIntPrefix = "int:"
	metaVecPrefix = "vec:"
)

// WriteData encodes f as an Arrow IPC file.
func WriteData(w io.Writer, f FlatData) error {
	n := f.NumObs()
	if n <= 0 {
		return hierr.Validationf("flat data", "observation count %d", n)
	}

	var metaKeys, metaVals []string
	for _, name := range names(f.Ints) {
		metaKeys = append(metaKeys, metaIntPrefix+name)
		metaVals = append(metaVals, strconv.Itoa(f.Ints[name]))
	}

	var fields []arrow.Field
	var appenders []func(array.Builder)

	for _, name := range names(f.IndexVecs) {
		vec := f.IndexVecs[name]
		if len(vec) != n {
			return hierr.Validationf(name, "length %d does not match observation count %d", len(vec), n)
		}
		fields = append(fields, arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Int32})
		appenders = append(appenders, func(b array.Builder) {
			ib := b.(*array.Int32Builder)
			for _, v := range vec {
				ib.Append(int32(v))
			}
		})
	}

	for _, name := range names(f.Vecs) {
		vec := f.Vecs[name]
		if len(vec) != n {
			// Short vectors (prior bounds) ride in the metadata.
			parts := make([]string, len(vec))
			for i, v := range vec {
				parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
			}
			metaKeys = append(metaKeys, metaVecPrefix+name)
			metaVals = append(metaVals, strings.Join(parts, ","))
			continue
		}
		fields = append(fields, arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64})
		appenders = append(appenders, func(b array.Builder) {
			b.(*array.Float64Builder).AppendValues(vec, nil)
		})
	}

	if f.Basis != nil {
		rows, cols := f.Basis.Dims()
		if rows != n {
			return hierr.Validationf("basis matrix", "row count %d does not match observation count %d", rows, n)
		}
		for j := 0; j < cols; j++ {
			col := make([]float64, rows)
			mat.Col(col, j, f.Basis)
			fields = append(fields, arrow.Field{Name: fmt.Sprintf("basis_%d", j+1), Type: arrow.PrimitiveTypes.Float64})
			appenders = append(appenders, func(b array.Builder) {
				b.(*array.Float64Builder).AppendValues(col, nil)
			})
		}
	}

	md := arrow.NewMetadata(metaKeys, metaVals)
	schema := arrow.NewSchema(fields, &md)

	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()
	for i, appendCol := range appenders {
		appendCol(builder.Field(i))
	}
	rec := builder.NewRecord()
	defer rec.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return fmt.Errorf("opening ipc writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("writing data record: %w", err)
	}
	return fw.Close()
}

// ReadData decodes a FlatData previously written by WriteData. It exists for
// in-process samplers and round-trip verification.
func ReadData(r ipc.ReadAtSeeker) (FlatData, error) {
	fr, err := ipc.NewFileReader(r, ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return FlatData{}, fmt.Errorf("opening ipc reader: %w", err)
	}
	defer fr.Close()
	if fr.NumRecords() != 1 {
		return FlatData{}, hierr.Validationf("data file", "%d records, want 1", fr.NumRecords())
	}
	rec, err := fr.Record(0)
	if err != nil {
		return FlatData{}, fmt.Errorf("reading data record: %w", err)
	}

	f := FlatData{
		Ints:      make(map[string]int),
		IndexVecs: make(map[string][]int),
		Vecs:      make(map[string][]float64),
	}

	md := fr.Schema().Metadata()
	keys, vals := md.Keys(), md.Values()
	for i, key := range keys {
		switch {
		case strings.HasPrefix(key, metaIntPrefix):
			v, err := strconv.Atoi(vals[i])
			if err != nil {
				return FlatData{}, hierr.Validationf(key, "bad integer %q", vals[i])
			}
			f.Ints[strings.TrimPrefix(key, metaIntPrefix)] = v
		case strings.HasPrefix(key, metaVecPrefix):
			parts := strings.Split(vals[i], ",")
			vec := make([]float64, len(parts))
			for j, p := range parts {
				vec[j], err = strconv.ParseFloat(p, 64)
				if err != nil {
					return FlatData{}, hierr.Validationf(key, "bad value %q", p)
				}
			}
			f.Vecs[strings.TrimPrefix(key, metaVecPrefix)] = vec
		}
	}

	var basisCols []string
	for i, field := range fr.Schema().Fields() {
		col := rec.Column(i)
		switch arr := col.(type) {
		case *array.Int32:
			vec := make([]int, arr.Len())
			for j := 0; j < arr.Len(); j++ {
				vec[j] = int(arr.Value(j))
			}
			f.IndexVecs[field.Name] = vec
		case *array.Float64:
			if strings.HasPrefix(field.Name, "basis_") {
				basisCols = append(basisCols, field.Name)
				continue
			}
			vec := make([]float64, arr.Len())
			copy(vec, arr.Float64Values())
			f.Vecs[field.Name] = vec
		default:
			return FlatData{}, hierr.Validationf(field.Name, "unsupported column type %s", field.Type)
		}
	}

	if len(basisCols) > 0 {
		sort.Slice(basisCols, func(i, j int) bool {
			return basisColIndex(basisCols[i]) < basisColIndex(basisCols[j])
		})
		n := int(rec.NumRows())
		basis := mat.NewDense(n, len(basisCols), nil)
		for j, name := range basisCols {
			idx := fieldIndex(fr.Schema(), name)
			arr := rec.Column(idx).(*array.Float64)
			for i := 0; i < n; i++ {
				basis.Set(i, j, arr.Value(i))
			}
		}
		f.Basis = basis
	}
	return f, nil
}

// WriteDraws encodes a Draws as an Arrow IPC file: one float64 column per
// parameter element, one row per retained draw. Every parameter must carry
// the same draw count.
func WriteDraws(w io.Writer, d *Draws) error {
	var fields []arrow.Field
	var cols [][]float64
	nDraws := -1

	for _, name := range d.Names() {
		m := d.params[name]
		rows, units := m.Dims()
		if nDraws == -1 {
			nDraws = rows
		} else if rows != nDraws {
			return hierr.Validationf(name, "%d draws, other parameters have %d", rows, nDraws)
		}
		for j := 0; j < units; j++ {
			col := make([]float64, rows)
			mat.Col(col, j, m)
			field := name
			if units > 1 {
				field = fmt.Sprintf("%s[%d]", name, j+1)
			}
			fields = append(fields, arrow.Field{Name: field, Type: arrow.PrimitiveTypes.Float64})
			cols = append(cols, col)
		}
	}
	if nDraws <= 0 {
		return hierr.Validationf("draws", "nothing to write")
	}

	schema := arrow.NewSchema(fields, nil)
	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()
	for i, col := range cols {
		builder.Field(i).(*array.Float64Builder).AppendValues(col, nil)
	}
	rec := builder.NewRecord()
	defer rec.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return fmt.Errorf("opening ipc writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("writing draws record: %w", err)
	}
	return fw.Close()
}

// ReadDraws decodes the draws record an external sampler wrote, grouping
// "param[j]" columns back into draws-by-unit matrices.
func ReadDraws(r ipc.ReadAtSeeker) (*Draws, error) {
	fr, err := ipc.NewFileReader(r, ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, fmt.Errorf("opening ipc reader: %w", err)
	}
	defer fr.Close()
	if fr.NumRecords() != 1 {
		return nil, hierr.Validationf("draws file", "%d records, want 1", fr.NumRecords())
	}
	rec, err := fr.Record(0)
	if err != nil {
		return nil, fmt.Errorf("reading draws record: %w", err)
	}

	type colRef struct {
		unit int
		vals []float64
	}
	grouped := make(map[string][]colRef)
	nDraws := int(rec.NumRows())

	for i, field := range fr.Schema().Fields() {
		arr, ok := rec.Column(i).(*array.Float64)
		if !ok {
			return nil, hierr.Validationf(field.Name, "unsupported column type %s", field.Type)
		}
		name, unit, err := parseParamColumn(field.Name)
		if err != nil {
			return nil, err
		}
		vals := make([]float64, nDraws)
		copy(vals, arr.Float64Values())
		grouped[name] = append(grouped[name], colRef{unit: unit, vals: vals})
	}

	params := make(map[string]*mat.Dense, len(grouped))
	for name, cols := range grouped {
		sort.Slice(cols, func(i, j int) bool { return cols[i].unit < cols[j].unit })
		m := mat.NewDense(nDraws, len(cols), nil)
		for j, c := range cols {
			if c.unit != j+1 {
				return nil, hierr.Validationf(name, "unit indices not contiguous: found [%d] at position %d", c.unit, j+1)
			}
			m.SetCol(j, c.vals)
		}
		params[name] = m
	}
	return NewDraws(params), nil
}

// parseParamColumn splits "name[j]" into (name, j); a bare name is unit 1.
func parseParamColumn(col string) (string, int, error) {
	open := strings.IndexByte(col, '[')
	if open < 0 {
		return col, 1, nil
	}
	if !strings.HasSuffix(col, "]") {
		return "", 0, hierr.Validationf("draws column", "malformed name %q", col)
	}
	idx, err := strconv.Atoi(col[open+1 : len(col)-1])
	if err != nil || idx < 1 {
		return "", 0, hierr.Validationf("draws column", "malformed unit index in %q", col)
	}
	return col[:open], idx, nil
}

func basisColIndex(name string) int {
	v, _ := strconv.Atoi(strings.TrimPrefix(name, "basis_"))
	return v
}

func fieldIndex(s *arrow.Schema, name string) int {
	for i, f := range s.Fields() {
		if f.Name == name {
			return i
		}
	}
	return -1
}
