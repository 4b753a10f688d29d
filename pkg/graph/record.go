package graph

// RecordProducer converts raw result rows into Records sharing one column
// index, so per-row lookup cost does not scale with column count.
type RecordProducer struct {
	columns []string
	index   map[string]int
}

// NewRecordProducer builds a producer over the given column names.
func NewRecordProducer(columns []string) *RecordProducer {
	index := make(map[string]int, len(columns))
	for i, column := range columns {
		index[column] = i
	}
	return &RecordProducer{columns: columns, index: index}
}

// Columns returns the column names, in result order.
func (p *RecordProducer) Columns() []string {
	out := make([]string, len(p.columns))
	copy(out, p.columns)
	return out
}

// Produce wraps one row of values as a Record.
func (p *RecordProducer) Produce(values []any) Record {
	return Record{producer: p, values: values}
}

// Record is a single result row giving access to its values by position or
// by column name.
type Record struct {
	producer *RecordProducer
	values   []any
}

// Columns returns the row's column names, in result order.
func (r Record) Columns() []string { return r.producer.Columns() }

// Values returns the row's values, in column order.
func (r Record) Values() []any { return r.values }

// Value returns the value at the given position, or nil when out of range.
func (r Record) Value(i int) any {
	if i < 0 || i >= len(r.values) {
		return nil
	}
	return r.values[i]
}

// Get returns the value for the named column.
func (r Record) Get(column string) (any, bool) {
	i, ok := r.producer.index[column]
	if !ok || i >= len(r.values) {
		return nil, false
	}
	return r.values[i], true
}

// Len returns the number of values in the row.
func (r Record) Len() int { return len(r.values) }
