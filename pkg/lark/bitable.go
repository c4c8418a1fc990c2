package lark

import (
	"context"
	"fmt"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	httpclient "github.com/natserract/lark/pkg/http"
)

// MaxRecordsPerRequest is the bitable limit for batch record calls.
const MaxRecordsPerRequest = 500

const maxConcurrentRecordBatches = 4

// PageOptions are the common pagination parameters. Zero values are not sent.
type PageOptions struct {
	PageToken string
	PageSize  int
}

func (p PageOptions) params() map[string]string {
	m := map[string]string{"page_token": p.PageToken}
	if p.PageSize > 0 {
		m["page_size"] = strconv.Itoa(p.PageSize)
	}
	return m
}

type Table struct {
	TableID  string `json:"table_id"`
	Revision int    `json:"revision"`
	Name     string `json:"name"`
}

type TablePage struct {
	HasMore   bool    `json:"has_more"`
	PageToken string  `json:"page_token"`
	Total     int     `json:"total"`
	Items     []Table `json:"items"`
}

type ListTablesResponse = httpclient.Result[TablePage]

type CreateTableRequest struct {
	Table TableSpec `json:"table"`
}

type TableSpec struct {
	Name            string      `json:"name"`
	DefaultViewName string      `json:"default_view_name,omitempty"`
	Fields          []FieldSpec `json:"fields,omitempty"`
}

func (r CreateTableRequest) Validate() error {
	return validation.ValidateStruct(&r.Table,
		validation.Field(&r.Table.Name, validation.Required, validation.Length(1, 100)),
	)
}

type CreateTableData struct {
	TableID       string   `json:"table_id"`
	DefaultViewID string   `json:"default_view_id"`
	FieldIDList   []string `json:"field_id_list"`
}

type CreateTableResponse = httpclient.Result[CreateTableData]

// RecordFields maps field names to values. Value shapes depend on the field
// type: strings, numbers, booleans, option lists, user and link objects.
type RecordFields map[string]any

type RecordUser struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	EnName string `json:"en_name,omitempty"`
	Email  string `json:"email,omitempty"`
}

type Record struct {
	RecordID         string       `json:"record_id"`
	Fields           RecordFields `json:"fields"`
	CreatedBy        *RecordUser  `json:"created_by,omitempty"`
	CreatedTime      int64        `json:"created_time,omitempty"`
	LastModifiedBy   *RecordUser  `json:"last_modified_by,omitempty"`
	LastModifiedTime int64        `json:"last_modified_time,omitempty"`
}

type RecordData struct {
	Record Record `json:"record"`
}

type RecordResponse = httpclient.Result[RecordData]

type RecordsData struct {
	Records []Record `json:"records"`
}

type RecordsResponse = httpclient.Result[RecordsData]

type RecordPage struct {
	HasMore   bool     `json:"has_more"`
	PageToken string   `json:"page_token"`
	Total     int      `json:"total"`
	Items     []Record `json:"items"`
}

type SearchRecordsResponse = httpclient.Result[RecordPage]

type DeletedRecord struct {
	Deleted  bool   `json:"deleted"`
	RecordID string `json:"record_id"`
}

type DeleteRecordResponse = httpclient.Result[DeletedRecord]

type DeletedRecordsData struct {
	Records []DeletedRecord `json:"records"`
}

type SearchSort struct {
	FieldName string `json:"field_name"`
	Desc      bool   `json:"desc"`
}

type SearchCondition struct {
	FieldName string   `json:"field_name"`
	Operator  string   `json:"operator"`
	Value     []string `json:"value,omitempty"`
}

type SearchFilter struct {
	Conjunction string            `json:"conjunction"`
	Conditions  []SearchCondition `json:"conditions"`
}

type SearchRecordsRequest struct {
	ViewID          string        `json:"view_id,omitempty"`
	FieldNames      []string      `json:"field_names,omitempty"`
	Sort            []SearchSort  `json:"sort,omitempty"`
	Filter          *SearchFilter `json:"filter,omitempty"`
	AutomaticFields bool          `json:"automatic_fields,omitempty"`
}

// Field types of the bitable schema.
const (
	FieldTypeText         = 1
	FieldTypeNumber       = 2
	FieldTypeSingleSelect = 3
	FieldTypeMultiSelect  = 4
	FieldTypeDateTime     = 5
	FieldTypeCheckbox     = 7
	FieldTypeUser         = 11
	FieldTypePhone        = 13
	FieldTypeURL          = 15
	FieldTypeAttachment   = 17
)

type FieldSpec struct {
	FieldName   string         `json:"field_name"`
	Type        int            `json:"type"`
	UIType      string         `json:"ui_type,omitempty"`
	Property    map[string]any `json:"property,omitempty"`
	Description map[string]any `json:"description,omitempty"`
}

func (f FieldSpec) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.FieldName, validation.Required),
		validation.Field(&f.Type, validation.Required),
	)
}

type Field struct {
	FieldSpec
	FieldID   string `json:"field_id"`
	IsPrimary bool   `json:"is_primary"`
	IsHidden  bool   `json:"is_hidden,omitempty"`
}

type FieldPage struct {
	HasMore   bool    `json:"has_more"`
	PageToken string  `json:"page_token"`
	Total     int     `json:"total"`
	Items     []Field `json:"items"`
}

type ListFieldsResponse = httpclient.Result[FieldPage]

type FieldData struct {
	Field Field `json:"field"`
}

type FieldResponse = httpclient.Result[FieldData]

type DeletedField struct {
	FieldID string `json:"field_id"`
	Deleted bool   `json:"deleted"`
}

type DeleteFieldResponse = httpclient.Result[DeletedField]

func tablePath(template, appToken, tableID string, extra ...string) (string, error) {
	values := map[string]string{"app_token": appToken, "table_id": tableID}
	for i := 0; i+1 < len(extra); i += 2 {
		values[extra[i]] = extra[i+1]
	}
	return httpclient.FormatPath(template, values)
}

// ListTables lists the tables of a bitable app.
func (l *Lark) ListTables(ctx context.Context, appToken string, page PageOptions) (*ListTablesResponse, error) {
	path, err := httpclient.FormatPath(bitableTablesPath, map[string]string{"app_token": appToken})
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Get[ListTablesResponse](ctx, l.httpClient, path, httpclient.WithParams(page.params()))
	if err != nil {
		return nil, fmt.Errorf("list tables failed: %w", err)
	}
	return resp, nil
}

func (l *Lark) CreateTable(ctx context.Context, appToken string, req CreateTableRequest) (*CreateTableResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid create table request: %w", err)
	}
	path, err := httpclient.FormatPath(bitableTablesPath, map[string]string{"app_token": appToken})
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Post[CreateTableResponse](ctx, l.httpClient, path, req)
	if err != nil {
		return nil, fmt.Errorf("create table failed: %w", err)
	}
	l.logger.Info("Created bitable table",
		zap.String("app_token", appToken),
		zap.String("table_id", resp.Data.TableID))
	return resp, nil
}

func (l *Lark) DeleteTable(ctx context.Context, appToken, tableID string) (*httpclient.Envelope, error) {
	path, err := tablePath(bitableTablePath, appToken, tableID)
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Delete[httpclient.Envelope](ctx, l.httpClient, path)
	if err != nil {
		return nil, fmt.Errorf("delete table failed: %w", err)
	}
	return resp, nil
}

// CreateRecord adds one record. A fresh client_token makes retried calls idempotent.
func (l *Lark) CreateRecord(ctx context.Context, appToken, tableID string, fields RecordFields) (*RecordResponse, error) {
	path, err := tablePath(bitableRecordsPath, appToken, tableID)
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Post[RecordResponse](ctx, l.httpClient, path,
		map[string]any{"fields": fields},
		httpclient.WithParam("client_token", uuid.NewString()))
	if err != nil {
		return nil, fmt.Errorf("create record failed: %w", err)
	}
	return resp, nil
}

func (l *Lark) GetRecord(ctx context.Context, appToken, tableID, recordID string) (*RecordResponse, error) {
	path, err := tablePath(bitableRecordPath, appToken, tableID, "record_id", recordID)
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Get[RecordResponse](ctx, l.httpClient, path)
	if err != nil {
		return nil, fmt.Errorf("get record failed: %w", err)
	}
	return resp, nil
}

func (l *Lark) UpdateRecord(ctx context.Context, appToken, tableID, recordID string, fields RecordFields) (*RecordResponse, error) {
	path, err := tablePath(bitableRecordPath, appToken, tableID, "record_id", recordID)
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Put[RecordResponse](ctx, l.httpClient, path, map[string]any{"fields": fields})
	if err != nil {
		return nil, fmt.Errorf("update record failed: %w", err)
	}
	return resp, nil
}

func (l *Lark) DeleteRecord(ctx context.Context, appToken, tableID, recordID string) (*DeleteRecordResponse, error) {
	path, err := tablePath(bitableRecordPath, appToken, tableID, "record_id", recordID)
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Delete[DeleteRecordResponse](ctx, l.httpClient, path)
	if err != nil {
		return nil, fmt.Errorf("delete record failed: %w", err)
	}
	return resp, nil
}

// SearchRecords queries records with optional filter and sort, at most 500 per page.
func (l *Lark) SearchRecords(ctx context.Context, appToken, tableID string, req SearchRecordsRequest, page PageOptions) (*SearchRecordsResponse, error) {
	path, err := tablePath(bitableRecordsSearchPath, appToken, tableID)
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Post[SearchRecordsResponse](ctx, l.httpClient, path, req,
		httpclient.WithParams(page.params()))
	if err != nil {
		return nil, fmt.Errorf("search records failed: %w", err)
	}
	return resp, nil
}

// BatchCreateRecords adds any number of records, MaxRecordsPerRequest per
// call. Chunks are sent concurrently; created records are returned in input
// order. On error some chunks may already have been written.
func (l *Lark) BatchCreateRecords(ctx context.Context, appToken, tableID string, records []RecordFields) ([]Record, error) {
	path, err := tablePath(bitableRecordsBatchCreate, appToken, tableID)
	if err != nil {
		return nil, err
	}
	chunks := chunk(records, MaxRecordsPerRequest)
	results := make([][]Record, len(chunks))

	l.logger.Info("Batch creating records",
		zap.String("table_id", tableID),
		zap.Int("records", len(records)),
		zap.Int("chunks", len(chunks)))

	p := pool.New().WithMaxGoroutines(maxConcurrentRecordBatches).WithContext(ctx).WithCancelOnError().WithFirstError()
	for i, c := range chunks {
		p.Go(func(ctx context.Context) error {
			body := make([]map[string]any, len(c))
			for j, fields := range c {
				body[j] = map[string]any{"fields": fields}
			}
			resp, err := httpclient.Post[RecordsResponse](ctx, l.httpClient, path,
				map[string]any{"records": body},
				httpclient.WithParam("client_token", uuid.NewString()))
			if err != nil {
				l.logger.Error("Failed to create record chunk", zap.Int("chunk", i), zap.Error(err))
				return fmt.Errorf("batch create records chunk %d failed: %w", i, err)
			}
			results[i] = resp.Data.Records
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(records))
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// BatchDeleteRecords deletes records by id, MaxRecordsPerRequest per call.
func (l *Lark) BatchDeleteRecords(ctx context.Context, appToken, tableID string, recordIDs []string) ([]DeletedRecord, error) {
	path, err := tablePath(bitableRecordsBatchDelete, appToken, tableID)
	if err != nil {
		return nil, err
	}
	chunks := chunk(recordIDs, MaxRecordsPerRequest)
	results := make([][]DeletedRecord, len(chunks))

	p := pool.New().WithMaxGoroutines(maxConcurrentRecordBatches).WithContext(ctx).WithCancelOnError().WithFirstError()
	for i, c := range chunks {
		p.Go(func(ctx context.Context) error {
			resp, err := httpclient.Post[httpclient.Result[DeletedRecordsData]](ctx, l.httpClient, path,
				map[string]any{"records": c})
			if err != nil {
				return fmt.Errorf("batch delete records chunk %d failed: %w", i, err)
			}
			results[i] = resp.Data.Records
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	out := make([]DeletedRecord, 0, len(recordIDs))
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func (l *Lark) ListFields(ctx context.Context, appToken, tableID string, page PageOptions) (*ListFieldsResponse, error) {
	path, err := tablePath(bitableFieldsPath, appToken, tableID)
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Get[ListFieldsResponse](ctx, l.httpClient, path, httpclient.WithParams(page.params()))
	if err != nil {
		return nil, fmt.Errorf("list fields failed: %w", err)
	}
	return resp, nil
}

func (l *Lark) CreateField(ctx context.Context, appToken, tableID string, field FieldSpec) (*FieldResponse, error) {
	if err := field.Validate(); err != nil {
		return nil, fmt.Errorf("invalid field: %w", err)
	}
	path, err := tablePath(bitableFieldsPath, appToken, tableID)
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Post[FieldResponse](ctx, l.httpClient, path, field,
		httpclient.WithParam("client_token", uuid.NewString()))
	if err != nil {
		return nil, fmt.Errorf("create field failed: %w", err)
	}
	return resp, nil
}

func (l *Lark) UpdateField(ctx context.Context, appToken, tableID, fieldID string, field FieldSpec) (*FieldResponse, error) {
	if err := field.Validate(); err != nil {
		return nil, fmt.Errorf("invalid field: %w", err)
	}
	path, err := tablePath(bitableFieldPath, appToken, tableID, "field_id", fieldID)
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Put[FieldResponse](ctx, l.httpClient, path, field)
	if err != nil {
		return nil, fmt.Errorf("update field failed: %w", err)
	}
	return resp, nil
}

func (l *Lark) DeleteField(ctx context.Context, appToken, tableID, fieldID string) (*DeleteFieldResponse, error) {
	path, err := tablePath(bitableFieldPath, appToken, tableID, "field_id", fieldID)
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Delete[DeleteFieldResponse](ctx, l.httpClient, path)
	if err != nil {
		return nil, fmt.Errorf("delete field failed: %w", err)
	}
	return resp, nil
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for size < len(items) {
		items, out = items[size:], append(out, items[:size:size])
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
