package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/yashrajoria/catalog-import/services/common/errors"
)

func csvWithRows(n int) string {
	var sb strings.Builder
	sb.WriteString("title,description,price,count\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "Item %d,Desc %d,%d.99,%d\n", i, i, i+1, i)
	}
	return sb.String()
}

func drain(t *testing.T, b *RecordBatcher) []Batch {
	t.Helper()
	var out []Batch
	for {
		batch, err := b.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, batch)
	}
}

func TestRecordBatcher_BatchSizing(t *testing.T) {
	for _, rows := range []int{0, 1, 9, 10, 11, 20, 50, 57} {
		t.Run(fmt.Sprintf("%d rows", rows), func(t *testing.T) {
			batches := drain(t, NewRecordBatcher(strings.NewReader(csvWithRows(rows)), BatchSize))

			assert.Len(t, batches, (rows+BatchSize-1)/BatchSize)
			total := 0
			for i, b := range batches {
				assert.Equal(t, total, b.Offset)
				if i < len(batches)-1 {
					assert.Len(t, b.Rows, BatchSize)
				} else {
					assert.GreaterOrEqual(t, len(b.Rows), 1)
					assert.LessOrEqual(t, len(b.Rows), BatchSize)
				}
				total += len(b.Rows)
			}
			assert.Equal(t, rows, total)
		})
	}
}

func TestRecordBatcher_StripsBOMAndKeepsColumnOrder(t *testing.T) {
	src := "\xEF\xBB\xBF title ,price,count\nKeyboard,159.99,20\n"
	batches := drain(t, NewRecordBatcher(strings.NewReader(src), BatchSize))
	require.Len(t, batches, 1)

	row := batches[0].Rows[0]
	assert.Equal(t, []string{"title", "price", "count"}, row.Columns)

	body, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Keyboard","price":"159.99","count":"20"}`, string(body))
}

func TestRecordBatcher_ForwardsRowsWithWrongColumnCount(t *testing.T) {
	src := "title,price,count\nMouse\nLamp,12,3,extra\nDesk,100,1\n"
	batches := drain(t, NewRecordBatcher(strings.NewReader(src), BatchSize))
	require.Len(t, batches, 1)
	rows := batches[0].Rows
	require.Len(t, rows, 3)

	body, _ := json.Marshal(rows[0])
	assert.JSONEq(t, `{"title":"Mouse"}`, string(body))

	body, _ = json.Marshal(rows[1])
	assert.JSONEq(t, `{"title":"Lamp","price":"12","count":"3","_3":"extra"}`, string(body))

	assert.Equal(t, []string{"title", "price", "count"}, rows[2].Columns)
	assert.Equal(t, []string{"Desk", "100", "1"}, rows[2].Values)
}

func TestRecordBatcher_QuotedFields(t *testing.T) {
	src := "title,description,price,count\n\"Desk, oak\",\"Says \"\"hi\"\"\",100,1\n"
	batches := drain(t, NewRecordBatcher(strings.NewReader(src), BatchSize))
	require.Len(t, batches, 1)

	body, err := json.Marshal(batches[0].Rows[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Desk, oak","description":"Says \"hi\"","price":"100","count":"1"}`, string(body))
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestRecordBatcher_SourceReadErrorStopsBatches(t *testing.T) {
	ioErr := errors.New("connection reset by peer")
	src := io.MultiReader(strings.NewReader(csvWithRows(15)), failingReader{err: ioErr})
	b := NewRecordBatcher(src, BatchSize)

	first, err := b.Next()
	require.NoError(t, err)
	assert.Len(t, first.Rows, 10)

	_, err = b.Next()
	var readErr *apperrors.SourceReadError
	require.ErrorAs(t, err, &readErr)
	assert.ErrorIs(t, err, ioErr)

	// the error is sticky and the five rows after the first batch are dropped
	_, again := b.Next()
	assert.Same(t, err, again)
	assert.Equal(t, 10, b.Rows())
}

func TestRecordBatcher_EmptyStream(t *testing.T) {
	_, err := NewRecordBatcher(strings.NewReader(""), BatchSize).Next()
	assert.Equal(t, io.EOF, err)
}

func TestRecordBatcher_ClampsBatchSize(t *testing.T) {
	batches := drain(t, NewRecordBatcher(strings.NewReader(csvWithRows(25)), 50))
	assert.Len(t, batches, 3)

	batches = drain(t, NewRecordBatcher(strings.NewReader(csvWithRows(25)), 5))
	assert.Len(t, batches, 5)
}
