package lark

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	assert.Nil(t, chunk([]int{}, 3))
	assert.Equal(t, [][]int{{1, 2, 3}, {4, 5, 6}, {7}}, chunk([]int{1, 2, 3, 4, 5, 6, 7}, 3))
	assert.Equal(t, [][]int{{1, 2}}, chunk([]int{1, 2}, 2))

	c := chunk([]int{1, 2, 3, 4}, 2)
	c[0] = append(c[0], 99)
	assert.Equal(t, []int{3, 4}, c[1], "chunks do not share spare capacity")
}

func TestBatchCreateRecords(t *testing.T) {
	srv := newTestServer(t)
	var mu sync.Mutex
	tokens := map[string]bool{}
	srv.handle(t, "POST /open-apis/bitable/v1/apps/{app}/tables/{table}/records/batch_create", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bascnApp", r.PathValue("app"))
		assert.Equal(t, "tblX", r.PathValue("table"))
		mu.Lock()
		tokens[r.URL.Query().Get("client_token")] = true
		mu.Unlock()

		var body struct {
			Records []struct {
				Fields RecordFields `json:"fields"`
			} `json:"records"`
		}
		decodeBody(t, r, &body)
		assert.LessOrEqual(t, len(body.Records), MaxRecordsPerRequest)

		out := make([]map[string]any, len(body.Records))
		for i, rec := range body.Records {
			out[i] = map[string]any{"record_id": fmt.Sprintf("rec%v", rec.Fields["n"]), "fields": rec.Fields}
		}
		writeJSON(w, ok(map[string]any{"records": out}))
	})
	l := srv.client(t, nil)

	records := make([]RecordFields, 2*MaxRecordsPerRequest+3)
	for i := range records {
		records[i] = RecordFields{"n": i}
	}
	created, err := l.BatchCreateRecords(context.Background(), "bascnApp", "tblX", records)
	require.NoError(t, err)
	require.Len(t, created, len(records))
	for i, rec := range created {
		assert.Equal(t, fmt.Sprintf("rec%d", i), rec.RecordID)
	}
	assert.Len(t, tokens, 3, "each chunk carries its own client token")
}

func TestBatchDeleteRecords(t *testing.T) {
	srv := newTestServer(t)
	srv.handle(t, "POST /open-apis/bitable/v1/apps/{app}/tables/{table}/records/batch_delete", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Records []string `json:"records"`
		}
		decodeBody(t, r, &body)
		out := make([]map[string]any, len(body.Records))
		for i, id := range body.Records {
			out[i] = map[string]any{"record_id": id, "deleted": true}
		}
		writeJSON(w, ok(map[string]any{"records": out}))
	})
	l := srv.client(t, nil)

	ids := []string{"rec1", "rec2", "rec3"}
	deleted, err := l.BatchDeleteRecords(context.Background(), "bascnApp", "tblX", ids)
	require.NoError(t, err)
	require.Len(t, deleted, 3)
	assert.Equal(t, "rec3", deleted[2].RecordID)
	assert.True(t, deleted[2].Deleted)
}

func TestSearchRecords(t *testing.T) {
	srv := newTestServer(t)
	srv.handle(t, "POST /open-apis/bitable/v1/apps/{app}/tables/{table}/records/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("page_size"))
		assert.False(t, r.URL.Query().Has("page_token"))
		var body SearchRecordsRequest
		decodeBody(t, r, &body)
		require.NotNil(t, body.Filter)
		assert.Equal(t, "and", body.Filter.Conjunction)
		writeJSON(w, ok(map[string]any{"has_more": true, "page_token": "next", "items": []map[string]any{{"record_id": "rec1"}}}))
	})
	l := srv.client(t, nil)

	resp, err := l.SearchRecords(context.Background(), "bascnApp", "tblX", SearchRecordsRequest{
		Filter: &SearchFilter{
			Conjunction: "and",
			Conditions:  []SearchCondition{{FieldName: "status", Operator: "is", Value: []string{"open"}}},
		},
	}, PageOptions{PageSize: 100})
	require.NoError(t, err)
	assert.True(t, resp.Data.HasMore)
	assert.Equal(t, "next", resp.Data.PageToken)
}

func TestFieldValidation(t *testing.T) {
	srv := newTestServer(t)
	l := srv.client(t, nil)

	_, err := l.CreateField(context.Background(), "bascnApp", "tblX", FieldSpec{Type: FieldTypeText})
	assert.ErrorContains(t, err, "field_name")

	_, err = l.CreateTable(context.Background(), "bascnApp", CreateTableRequest{})
	assert.Error(t, err)
	assert.Zero(t, srv.tokenIssued.Load())
}
