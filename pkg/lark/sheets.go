package lark

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	httpclient "github.com/natserract/lark/pkg/http"
)

// DefaultWriteRowBatchSize is the row count written per request by
// WriteRowsBatched. The API rejects single writes above 5000 rows.
const DefaultWriteRowBatchSize = 4000

// maxConcurrentSheetWrites bounds WriteRowsBatched fan-out.
const maxConcurrentSheetWrites = 4

// Append modes for AppendRows.
const (
	InsertOverwrite = "OVERWRITE"
	InsertRows      = "INSERT_ROWS"
)

type Spreadsheet struct {
	Title   string `json:"title"`
	OwnerID string `json:"owner_id"`
	Token   string `json:"token"`
	URL     string `json:"url"`
}

type SpreadsheetData struct {
	Spreadsheet Spreadsheet `json:"spreadsheet"`
}

type SpreadsheetResponse = httpclient.Result[SpreadsheetData]

type GridProperties struct {
	FrozenRowCount    int `json:"frozen_row_count"`
	FrozenColumnCount int `json:"frozen_column_count"`
	RowCount          int `json:"row_count"`
	ColumnCount       int `json:"column_count"`
}

type Merge struct {
	StartRowIndex    int `json:"start_row_index"`
	EndRowIndex      int `json:"end_row_index"`
	StartColumnIndex int `json:"start_column_index"`
	EndColumnIndex   int `json:"end_column_index"`
}

type Worksheet struct {
	SheetID        string          `json:"sheet_id"`
	Title          string          `json:"title"`
	Index          int             `json:"index"`
	Hidden         bool            `json:"hidden"`
	ResourceType   string          `json:"resource_type"`
	GridProperties *GridProperties `json:"grid_properties,omitempty"`
	Merges         []Merge         `json:"merges,omitempty"`
}

type WorksheetsData struct {
	Sheets []Worksheet `json:"sheets"`
}

type WorksheetsResponse = httpclient.Result[WorksheetsData]

type WorksheetData struct {
	Sheet Worksheet `json:"sheet"`
}

type WorksheetResponse = httpclient.Result[WorksheetData]

// ValueRange is a rectangular block of cells. Values are row-major; cells
// decode as string, float64, bool, nil or rich-text objects.
type ValueRange struct {
	MajorDimension string  `json:"majorDimension,omitempty"`
	Range          string  `json:"range"`
	Revision       int     `json:"revision,omitempty"`
	Values         [][]any `json:"values"`
}

type ReadRangeData struct {
	Revision         int        `json:"revision"`
	SpreadsheetToken string     `json:"spreadsheetToken"`
	ValueRange       ValueRange `json:"valueRange"`
}

type ReadRangeResponse = httpclient.Result[ReadRangeData]

type ReadRangesData struct {
	Revision         int          `json:"revision"`
	SpreadsheetToken string       `json:"spreadsheetToken"`
	ValueRanges      []ValueRange `json:"valueRanges"`
}

type ReadRangesResponse = httpclient.Result[ReadRangesData]

// ReadOptions map to the valueRenderOption, dateTimeRenderOption and
// user_id_type query parameters. Empty fields are not sent.
type ReadOptions struct {
	ValueRenderOption    string
	DateTimeRenderOption string
	UserIDType           string
}

func (o ReadOptions) params() map[string]string {
	return map[string]string{
		"valueRenderOption":    o.ValueRenderOption,
		"dateTimeRenderOption": o.DateTimeRenderOption,
		"user_id_type":         o.UserIDType,
	}
}

type UpdatedRange struct {
	SpreadsheetToken string `json:"spreadsheetToken"`
	UpdatedRange     string `json:"updatedRange"`
	UpdatedRows      int    `json:"updatedRows"`
	UpdatedColumns   int    `json:"updatedColumns"`
	UpdatedCells     int    `json:"updatedCells"`
	Revision         int    `json:"revision,omitempty"`
}

type WriteRangeResponse = httpclient.Result[UpdatedRange]

type WriteRangesData struct {
	Revision         int            `json:"revision"`
	SpreadsheetToken string         `json:"spreadsheetToken"`
	Responses        []UpdatedRange `json:"responses"`
}

type WriteRangesResponse = httpclient.Result[WriteRangesData]

type InsertRowsData struct {
	SpreadsheetToken string       `json:"spreadsheetToken"`
	TableRange       string       `json:"tableRange"`
	Revision         int          `json:"revision"`
	Updates          UpdatedRange `json:"updates"`
}

type InsertRowsResponse = httpclient.Result[InsertRowsData]

type valueRangeBody struct {
	ValueRange ValueRange `json:"valueRange"`
}

type valueRangesBody struct {
	ValueRanges []ValueRange `json:"valueRanges"`
}

func spreadsheetPathFor(template, token string) (string, error) {
	return httpclient.FormatPath(template, map[string]string{"spreadsheet_token": token})
}

// GetSpreadsheet returns the title, owner and URL of a spreadsheet.
func (l *Lark) GetSpreadsheet(ctx context.Context, token string) (*SpreadsheetResponse, error) {
	path, err := spreadsheetPathFor(spreadsheetPath, token)
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Get[SpreadsheetResponse](ctx, l.httpClient, path)
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet failed: %w", err)
	}
	return resp, nil
}

// CreateSpreadsheet creates a spreadsheet, inside folderToken when it is set.
func (l *Lark) CreateSpreadsheet(ctx context.Context, title, folderToken string) (*SpreadsheetResponse, error) {
	body := map[string]string{"title": title}
	if folderToken != "" {
		body["folder_token"] = folderToken
	}
	resp, err := httpclient.Post[SpreadsheetResponse](ctx, l.httpClient, spreadsheetsPath, body)
	if err != nil {
		return nil, fmt.Errorf("create spreadsheet failed: %w", err)
	}
	l.logger.Info("Created spreadsheet", zap.String("token", resp.Data.Spreadsheet.Token))
	return resp, nil
}

// ListWorksheets returns every worksheet of a spreadsheet in tab order.
func (l *Lark) ListWorksheets(ctx context.Context, token string) (*WorksheetsResponse, error) {
	path, err := spreadsheetPathFor(worksheetsQueryPath, token)
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Get[WorksheetsResponse](ctx, l.httpClient, path)
	if err != nil {
		return nil, fmt.Errorf("list worksheets failed: %w", err)
	}
	return resp, nil
}

func (l *Lark) GetWorksheet(ctx context.Context, token, sheetID string) (*WorksheetResponse, error) {
	path, err := httpclient.FormatPath(worksheetPath, map[string]string{
		"spreadsheet_token": token,
		"sheet_id":          sheetID,
	})
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Get[WorksheetResponse](ctx, l.httpClient, path)
	if err != nil {
		return nil, fmt.Errorf("get worksheet failed: %w", err)
	}
	return resp, nil
}

// ReadRange reads one range such as "0b12!A1:C10".
func (l *Lark) ReadRange(ctx context.Context, token, rng string, opts ReadOptions) (*ReadRangeResponse, error) {
	path, err := httpclient.FormatPath(valuesRangePath, map[string]string{
		"spreadsheet_token": token,
		"range":             rng,
	})
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Get[ReadRangeResponse](ctx, l.httpClient, path,
		httpclient.WithParams(opts.params()))
	if err != nil {
		return nil, fmt.Errorf("read range %s failed: %w", rng, err)
	}
	return resp, nil
}

// ReadRanges reads several ranges in one call.
func (l *Lark) ReadRanges(ctx context.Context, token string, ranges []string, opts ReadOptions) (*ReadRangesResponse, error) {
	if len(ranges) == 0 {
		return nil, fmt.Errorf("read ranges: at least one range is required")
	}
	path, err := spreadsheetPathFor(valuesBatchGetPath, token)
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Get[ReadRangesResponse](ctx, l.httpClient, path,
		httpclient.WithParams(opts.params()),
		httpclient.WithParam("ranges", strings.Join(ranges, ",")))
	if err != nil {
		return nil, fmt.Errorf("read ranges failed: %w", err)
	}
	return resp, nil
}

// WriteRange overwrites the cells of rng with values.
func (l *Lark) WriteRange(ctx context.Context, token, rng string, values [][]any) (*WriteRangeResponse, error) {
	path, err := spreadsheetPathFor(valuesPath, token)
	if err != nil {
		return nil, err
	}
	body := valueRangeBody{ValueRange: ValueRange{Range: rng, Values: values}}
	resp, err := httpclient.Put[WriteRangeResponse](ctx, l.httpClient, path, body)
	if err != nil {
		return nil, fmt.Errorf("write range %s failed: %w", rng, err)
	}
	return resp, nil
}

// WriteRanges overwrites several ranges in one call.
func (l *Lark) WriteRanges(ctx context.Context, token string, ranges []ValueRange) (*WriteRangesResponse, error) {
	path, err := spreadsheetPathFor(valuesBatchUpdatePath, token)
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Post[WriteRangesResponse](ctx, l.httpClient, path, valueRangesBody{ValueRanges: ranges})
	if err != nil {
		return nil, fmt.Errorf("write ranges failed: %w", err)
	}
	return resp, nil
}

// PrependRows inserts values above rng, shifting existing rows down.
func (l *Lark) PrependRows(ctx context.Context, token, rng string, values [][]any) (*InsertRowsResponse, error) {
	path, err := spreadsheetPathFor(valuesPrependPath, token)
	if err != nil {
		return nil, err
	}
	body := valueRangeBody{ValueRange: ValueRange{Range: rng, Values: values}}
	resp, err := httpclient.Post[InsertRowsResponse](ctx, l.httpClient, path, body)
	if err != nil {
		return nil, fmt.Errorf("prepend rows failed: %w", err)
	}
	return resp, nil
}

// AppendRows writes values into the first empty rows of rng. insertOption is
// InsertOverwrite (default) or InsertRows.
func (l *Lark) AppendRows(ctx context.Context, token, rng string, values [][]any, insertOption string) (*InsertRowsResponse, error) {
	path, err := spreadsheetPathFor(valuesAppendPath, token)
	if err != nil {
		return nil, err
	}
	if insertOption == "" {
		insertOption = InsertOverwrite
	}
	body := valueRangeBody{ValueRange: ValueRange{Range: rng, Values: values}}
	resp, err := httpclient.Post[InsertRowsResponse](ctx, l.httpClient, path, body,
		httpclient.WithParam("insertDataOption", insertOption))
	if err != nil {
		return nil, fmt.Errorf("append rows failed: %w", err)
	}
	return resp, nil
}

// WriteRowsBatched writes rows starting at the zero-based (startRow, startCol)
// cell, DefaultWriteRowBatchSize rows per request. Batches run concurrently;
// the first failure cancels the batches still pending. Results are returned
// in row order.
func (l *Lark) WriteRowsBatched(ctx context.Context, token, sheetID string, startRow, startCol int, rows [][]any) ([]*WriteRangeResponse, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	if width == 0 {
		return nil, fmt.Errorf("write rows: rows have no cells")
	}

	batches := (len(rows) + DefaultWriteRowBatchSize - 1) / DefaultWriteRowBatchSize
	results := make([]*WriteRangeResponse, batches)

	l.logger.Info("Writing rows in batches",
		zap.String("sheet_id", sheetID),
		zap.Int("rows", len(rows)),
		zap.Int("batches", batches))

	p := pool.New().WithMaxGoroutines(maxConcurrentSheetWrites).WithContext(ctx).WithCancelOnError().WithFirstError()
	for i := 0; i < batches; i++ {
		lo := i * DefaultWriteRowBatchSize
		hi := min(lo+DefaultWriteRowBatchSize, len(rows))
		p.Go(func(ctx context.Context) error {
			rng := CellRange(sheetID, startRow+lo, startCol, startRow+hi-1, startCol+width-1)
			resp, err := l.WriteRange(ctx, token, rng, rows[lo:hi])
			if err != nil {
				l.logger.Error("Failed to write row batch",
					zap.Int("batch", i),
					zap.String("range", rng),
					zap.Error(err))
				return err
			}
			results[i] = resp
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ColumnName converts a zero-based column index to its letter form: 0 -> A, 26 -> AA.
func ColumnName(col int) string {
	var b []byte
	for col >= 0 {
		b = append([]byte{byte('A' + col%26)}, b...)
		col = col/26 - 1
	}
	return string(b)
}

// CellName converts zero-based coordinates to A1 notation.
func CellName(row, col int) string {
	return ColumnName(col) + strconv.Itoa(row+1)
}

// CellRange builds "<sheet>!<start>:<end>" from zero-based inclusive bounds.
func CellRange(sheetID string, startRow, startCol, endRow, endCol int) string {
	return sheetID + "!" + CellName(startRow, startCol) + ":" + CellName(endRow, endCol)
}

// ParseCellName converts A1 notation into zero-based (row, col).
func ParseCellName(cell string) (int, int, error) {
	i := 0
	col := 0
	for i < len(cell) {
		c := cell[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c < 'A' || c > 'Z' {
			break
		}
		col = col*26 + int(c-'A') + 1
		i++
	}
	if i == 0 || i == len(cell) {
		return 0, 0, fmt.Errorf("invalid cell %q", cell)
	}
	row, err := strconv.Atoi(cell[i:])
	if err != nil || row < 1 {
		return 0, 0, fmt.Errorf("invalid cell %q", cell)
	}
	return row - 1, col - 1, nil
}

var sheetURLRe = regexp.MustCompile(`/(sheets|wiki)/([^/?#]+)`)

// SheetLocation identifies one worksheet of a spreadsheet.
type SheetLocation struct {
	SpreadsheetToken string
	SheetID          string
}

// ResolveSheetURL extracts the spreadsheet token and sheet id from a browser
// URL. Wiki URLs are resolved to the underlying spreadsheet. Without a sheet
// query parameter the first worksheet is used.
func (l *Lark) ResolveSheetURL(ctx context.Context, rawURL string) (*SheetLocation, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid sheet url: %w", err)
	}
	m := sheetURLRe.FindStringSubmatch(u.Path)
	if m == nil {
		return nil, fmt.Errorf("invalid sheet url %q: expected /sheets/<token> or /wiki/<token>", rawURL)
	}

	loc := &SheetLocation{
		SpreadsheetToken: m[2],
		SheetID:          u.Query().Get("sheet"),
	}

	if m[1] == "wiki" {
		node, err := l.GetWikiNode(ctx, m[2])
		if err != nil {
			return nil, err
		}
		if node.Data.Node.ObjType != WikiObjSheet {
			return nil, fmt.Errorf("wiki node %s is a %s, not a sheet", m[2], node.Data.Node.ObjType)
		}
		loc.SpreadsheetToken = node.Data.Node.ObjToken
	}

	if loc.SheetID == "" {
		sheets, err := l.ListWorksheets(ctx, loc.SpreadsheetToken)
		if err != nil {
			return nil, err
		}
		if len(sheets.Data.Sheets) == 0 {
			return nil, fmt.Errorf("spreadsheet %s has no worksheets", loc.SpreadsheetToken)
		}
		loc.SheetID = sheets.Data.Sheets[0].SheetID
	}

	l.logger.Debug("Resolved sheet url",
		zap.String("spreadsheet_token", loc.SpreadsheetToken),
		zap.String("sheet_id", loc.SheetID))
	return loc, nil
}
