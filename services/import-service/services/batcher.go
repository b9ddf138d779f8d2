package services

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	apperrors "github.com/yashrajoria/catalog-import/services/common/errors"
)

// BatchSize is the queue's per-call entry ceiling.
const BatchSize = 10

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVRow is one decoded line, keyed by the header row in column order.
type CSVRow struct {
	Columns []string
	Values  []string
}

// MarshalJSON writes the row as an object whose keys keep header order.
func (r CSVRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.Values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Batch is a run of consecutive rows. Offset is the zero based index of the
// first row within the file.
type Batch struct {
	Offset int
	Rows   []CSVRow
}

// RecordBatcher decodes a CSV stream incrementally and hands out batches of
// at most BatchSize rows. It is single use and not safe for concurrent use.
type RecordBatcher struct {
	reader    *csv.Reader
	header    []string
	batchSize int

	rows      int
	malformed int
	err       error
}

// NewRecordBatcher wraps src. batchSize outside 1..BatchSize falls back to
// BatchSize.
func NewRecordBatcher(src io.Reader, batchSize int) *RecordBatcher {
	if batchSize <= 0 || batchSize > BatchSize {
		batchSize = BatchSize
	}
	br := bufio.NewReader(src)
	if p, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(p, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = false

	return &RecordBatcher{reader: r, batchSize: batchSize}
}

// Rows is the number of rows handed out so far.
func (b *RecordBatcher) Rows() int { return b.rows }

// Malformed is the number of lines the decoder could not turn into a row.
func (b *RecordBatcher) Malformed() int { return b.malformed }

// Next returns the next batch. It returns io.EOF once the stream is
// exhausted and a *SourceReadError if the underlying reader fails; after
// either, every further call returns the same error.
func (b *RecordBatcher) Next() (Batch, error) {
	if b.err != nil {
		return Batch{}, b.err
	}
	if b.header == nil {
		if err := b.readHeader(); err != nil {
			b.err = err
			return Batch{}, err
		}
	}

	batch := Batch{Offset: b.rows, Rows: make([]CSVRow, 0, b.batchSize)}
	for len(batch.Rows) < b.batchSize {
		record, err := b.reader.Read()
		if err == io.EOF {
			b.err = io.EOF
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				b.malformed++
				continue
			}
			b.err = &apperrors.SourceReadError{Line: b.recordsRead(len(batch.Rows)), Err: err}
			return Batch{}, b.err
		}
		batch.Rows = append(batch.Rows, b.toRow(record))
	}

	if len(batch.Rows) == 0 {
		return Batch{}, b.err
	}
	b.rows += len(batch.Rows)
	return batch, nil
}

func (b *RecordBatcher) readHeader() error {
	header, err := b.reader.Read()
	if err == io.EOF {
		return io.EOF
	}
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return &apperrors.SourceReadError{Line: 1, Err: err}
		}
		return &apperrors.SourceReadError{Line: 0, Err: err}
	}
	b.header = make([]string, len(header))
	for i, h := range header {
		b.header[i] = strings.TrimSpace(h)
	}
	return nil
}

// toRow keys values by header position. Columns beyond the header are keyed
// "_<index>"; columns missing from a short row are left out.
func (b *RecordBatcher) toRow(record []string) CSVRow {
	row := CSVRow{
		Columns: make([]string, len(record)),
		Values:  record,
	}
	for i := range record {
		if i < len(b.header) {
			row.Columns[i] = b.header[i]
		} else {
			row.Columns[i] = "_" + strconv.Itoa(i)
		}
	}
	return row
}

// recordsRead counts records decoded so far, header included. pending is the
// number of rows read into the batch under construction.
func (b *RecordBatcher) recordsRead(pending int) int {
	return 1 + b.rows + pending + b.malformed
}
