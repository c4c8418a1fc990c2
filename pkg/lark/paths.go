package lark

// API paths relative to the configured base URL. Placeholders are filled with
// httpclient.FormatPath.
const (
	tenantAccessTokenPath = "auth/v3/tenant_access_token/internal"

	messagesPath        = "im/v1/messages"
	messagePath         = "im/v1/messages/{message_id}"
	messageReplyPath    = "im/v1/messages/{message_id}/reply"
	messageForwardPath  = "im/v1/messages/{message_id}/forward"
	messageResourcePath = "im/v1/messages/{message_id}/resources/{file_key}"
	imagesPath          = "im/v1/images"

	spreadsheetsPath      = "sheets/v3/spreadsheets"
	spreadsheetPath       = "sheets/v3/spreadsheets/{spreadsheet_token}"
	worksheetsQueryPath   = "sheets/v3/spreadsheets/{spreadsheet_token}/sheets/query"
	worksheetPath         = "sheets/v3/spreadsheets/{spreadsheet_token}/sheets/{sheet_id}"
	valuesPrependPath     = "sheets/v2/spreadsheets/{spreadsheet_token}/values_prepend"
	valuesAppendPath      = "sheets/v2/spreadsheets/{spreadsheet_token}/values_append"
	valuesPath            = "sheets/v2/spreadsheets/{spreadsheet_token}/values"
	valuesRangePath       = "sheets/v2/spreadsheets/{spreadsheet_token}/values/{range}"
	valuesBatchGetPath    = "sheets/v2/spreadsheets/{spreadsheet_token}/values_batch_get"
	valuesBatchUpdatePath = "sheets/v2/spreadsheets/{spreadsheet_token}/values_batch_update"

	bitableTablesPath         = "bitable/v1/apps/{app_token}/tables"
	bitableTablePath          = "bitable/v1/apps/{app_token}/tables/{table_id}"
	bitableRecordsPath        = "bitable/v1/apps/{app_token}/tables/{table_id}/records"
	bitableRecordPath         = "bitable/v1/apps/{app_token}/tables/{table_id}/records/{record_id}"
	bitableRecordsSearchPath  = "bitable/v1/apps/{app_token}/tables/{table_id}/records/search"
	bitableRecordsBatchCreate = "bitable/v1/apps/{app_token}/tables/{table_id}/records/batch_create"
	bitableRecordsBatchDelete = "bitable/v1/apps/{app_token}/tables/{table_id}/records/batch_delete"
	bitableFieldsPath         = "bitable/v1/apps/{app_token}/tables/{table_id}/fields"
	bitableFieldPath          = "bitable/v1/apps/{app_token}/tables/{table_id}/fields/{field_id}"

	documentsPath              = "docx/v1/documents"
	documentPath               = "docx/v1/documents/{document_id}"
	documentRawContentPath     = "docx/v1/documents/{document_id}/raw_content"
	documentBlocksPath         = "docx/v1/documents/{document_id}/blocks"
	documentBlockPath          = "docx/v1/documents/{document_id}/blocks/{block_id}"
	documentBlockChildrenPath  = "docx/v1/documents/{document_id}/blocks/{block_id}/children"
	documentChildrenDeletePath = "docx/v1/documents/{document_id}/blocks/{block_id}/children/batch_delete"

	driveFileDownloadPath  = "drive/v1/files/{file_token}/download"
	driveMediaDownloadPath = "drive/v1/medias/{file_token}/download"
	whiteboardImagePath    = "board/v1/whiteboards/{whiteboard_id}/download_as_image"

	wikiNodePath = "wiki/v2/spaces/get_node"
)
