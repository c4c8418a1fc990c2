package lark

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnName(t *testing.T) {
	tests := map[int]string{0: "A", 25: "Z", 26: "AA", 51: "AZ", 52: "BA", 701: "ZZ", 702: "AAA"}
	for col, want := range tests {
		assert.Equal(t, want, ColumnName(col), "col %d", col)
	}
}

func TestCellHelpers(t *testing.T) {
	assert.Equal(t, "C5", CellName(4, 2))
	assert.Equal(t, "0b12!A1:C10", CellRange("0b12", 0, 0, 9, 2))

	row, col, err := ParseCellName("ab12")
	require.NoError(t, err)
	assert.Equal(t, 11, row)
	assert.Equal(t, 27, col)

	for _, bad := range []string{"", "12", "A", "A0", "A-1"} {
		_, _, err := ParseCellName(bad)
		assert.Error(t, err, bad)
	}
}

func TestReadRange(t *testing.T) {
	srv := newTestServer(t)
	srv.handle(t, "GET /open-apis/sheets/v2/spreadsheets/{token}/values/{range}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "shtcn1", r.PathValue("token"))
		assert.Equal(t, "0b12!A1:B2", r.PathValue("range"))
		assert.Equal(t, "ToString", r.URL.Query().Get("valueRenderOption"))
		assert.False(t, r.URL.Query().Has("dateTimeRenderOption"))
		writeJSON(w, ok(map[string]any{
			"revision":         3,
			"spreadsheetToken": "shtcn1",
			"valueRange": map[string]any{
				"range":  "0b12!A1:B2",
				"values": [][]any{{"name", "age"}, {"ann", 7}},
			},
		}))
	})
	l := srv.client(t, nil)

	resp, err := l.ReadRange(context.Background(), "shtcn1", "0b12!A1:B2", ReadOptions{ValueRenderOption: "ToString"})
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"name", "age"}, {"ann", float64(7)}}, resp.Data.ValueRange.Values)
}

func TestWriteRowsBatched(t *testing.T) {
	srv := newTestServer(t)
	var mu sync.Mutex
	var ranges []string
	var rowsWritten int
	srv.handle(t, "PUT /open-apis/sheets/v2/spreadsheets/{token}/values", func(w http.ResponseWriter, r *http.Request) {
		var body valueRangeBody
		decodeBody(t, r, &body)
		mu.Lock()
		ranges = append(ranges, body.ValueRange.Range)
		rowsWritten += len(body.ValueRange.Values)
		mu.Unlock()
		writeJSON(w, ok(map[string]any{"updatedRange": body.ValueRange.Range, "updatedRows": len(body.ValueRange.Values)}))
	})
	l := srv.client(t, nil)

	rows := make([][]any, DefaultWriteRowBatchSize*2+10)
	for i := range rows {
		rows[i] = []any{i, "x"}
	}
	rows[5] = []any{"wide", "row", "here"}

	results, err := l.WriteRowsBatched(context.Background(), "shtcn1", "s1", 1, 0, rows)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "s1!A2:C4001", results[0].Data.UpdatedRange)
	assert.Equal(t, "s1!A4002:C8001", results[1].Data.UpdatedRange)
	assert.Equal(t, "s1!A8002:C8011", results[2].Data.UpdatedRange)
	assert.Equal(t, 10, results[2].Data.UpdatedRows)

	assert.Len(t, ranges, 3)
	assert.Equal(t, len(rows), rowsWritten)
}

func TestWriteRowsBatchedStopsOnError(t *testing.T) {
	srv := newTestServer(t)
	srv.handle(t, "PUT /open-apis/sheets/v2/spreadsheets/{token}/values", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"code": 90202, "msg": "range is out of sheet"})
	})
	l := srv.client(t, nil)

	rows := make([][]any, DefaultWriteRowBatchSize+1)
	for i := range rows {
		rows[i] = []any{i}
	}
	_, err := l.WriteRowsBatched(context.Background(), "shtcn1", "s1", 0, 0, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "90202")
}

func TestResolveSheetURL(t *testing.T) {
	srv := newTestServer(t)
	srv.handle(t, "GET /open-apis/wiki/v2/spaces/get_node", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("token") {
		case "wikcnSheet":
			writeJSON(w, ok(map[string]any{"node": map[string]any{"obj_type": "sheet", "obj_token": "shtcnFromWiki"}}))
		default:
			writeJSON(w, ok(map[string]any{"node": map[string]any{"obj_type": "docx", "obj_token": "doxcn1"}}))
		}
	})
	srv.handle(t, "GET /open-apis/sheets/v3/spreadsheets/{token}/sheets/query", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "shtcnFromWiki", r.PathValue("token"))
		writeJSON(w, ok(map[string]any{"sheets": []map[string]any{{"sheet_id": "first"}, {"sheet_id": "second"}}}))
	})
	l := srv.client(t, nil)
	ctx := context.Background()

	loc, err := l.ResolveSheetURL(ctx, "https://example.feishu.cn/sheets/shtcnABC?sheet=0b12")
	require.NoError(t, err)
	assert.Equal(t, &SheetLocation{SpreadsheetToken: "shtcnABC", SheetID: "0b12"}, loc)

	loc, err = l.ResolveSheetURL(ctx, "https://example.feishu.cn/wiki/wikcnSheet")
	require.NoError(t, err)
	assert.Equal(t, &SheetLocation{SpreadsheetToken: "shtcnFromWiki", SheetID: "first"}, loc)

	_, err = l.ResolveSheetURL(ctx, "https://example.feishu.cn/wiki/wikcnDoc?sheet=x")
	assert.ErrorContains(t, err, "not a sheet")

	_, err = l.ResolveSheetURL(ctx, "https://example.feishu.cn/docx/doxcn1")
	assert.Error(t, err)
}
