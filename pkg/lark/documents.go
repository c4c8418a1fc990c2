package lark

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	httpclient "github.com/natserract/lark/pkg/http"
)

type Document struct {
	DocumentID string `json:"document_id"`
	RevisionID int    `json:"revision_id"`
	Title      string `json:"title"`
}

type DocumentData struct {
	Document Document `json:"document"`
}

type DocumentResponse = httpclient.Result[DocumentData]

type RawContentData struct {
	Content string `json:"content"`
}

type RawContentResponse = httpclient.Result[RawContentData]

type BlockList struct {
	HasMore   bool    `json:"has_more"`
	PageToken string  `json:"page_token"`
	Items     []Block `json:"items"`
}

type BlocksResponse = httpclient.Result[BlockList]

type BlockData struct {
	Block Block `json:"block"`
}

type BlockResponse = httpclient.Result[BlockData]

type CreateChildrenRequest struct {
	Children []Block `json:"children"`
	// Index is the insert position among existing children, -1 appends.
	Index int `json:"index"`
}

type CreateChildrenData struct {
	Children           []Block `json:"children"`
	DocumentRevisionID int     `json:"document_revision_id"`
	ClientToken        string  `json:"client_token"`
}

type CreateChildrenResponse = httpclient.Result[CreateChildrenData]

type RevisionData struct {
	DocumentRevisionID int    `json:"document_revision_id"`
	ClientToken        string `json:"client_token"`
}

type RevisionResponse = httpclient.Result[RevisionData]

func documentPathFor(template, documentID string, extra ...string) (string, error) {
	values := map[string]string{"document_id": documentID}
	if len(extra) == 2 {
		values[extra[0]] = extra[1]
	}
	return httpclient.FormatPath(template, values)
}

// CreateDocument creates an empty docx document, inside folderToken when set.
func (l *Lark) CreateDocument(ctx context.Context, title, folderToken string) (*DocumentResponse, error) {
	body := map[string]string{"title": title}
	if folderToken != "" {
		body["folder_token"] = folderToken
	}
	resp, err := httpclient.Post[DocumentResponse](ctx, l.httpClient, documentsPath, body)
	if err != nil {
		return nil, fmt.Errorf("create document failed: %w", err)
	}
	l.logger.Info("Created document", zap.String("document_id", resp.Data.Document.DocumentID))
	return resp, nil
}

func (l *Lark) GetDocument(ctx context.Context, documentID string) (*DocumentResponse, error) {
	path, err := documentPathFor(documentPath, documentID)
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Get[DocumentResponse](ctx, l.httpClient, path)
	if err != nil {
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return resp, nil
}

// GetRawContent returns the plain text of a document.
func (l *Lark) GetRawContent(ctx context.Context, documentID string) (*RawContentResponse, error) {
	path, err := documentPathFor(documentRawContentPath, documentID)
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Get[RawContentResponse](ctx, l.httpClient, path)
	if err != nil {
		return nil, fmt.Errorf("get raw content failed: %w", err)
	}
	return resp, nil
}

// ListBlocks returns one page of the document's blocks in document order.
func (l *Lark) ListBlocks(ctx context.Context, documentID string, page PageOptions) (*BlocksResponse, error) {
	path, err := documentPathFor(documentBlocksPath, documentID)
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Get[BlocksResponse](ctx, l.httpClient, path,
		httpclient.WithParams(page.params()))
	if err != nil {
		return nil, fmt.Errorf("list blocks failed: %w", err)
	}
	return resp, nil
}

// ListAllBlocks follows page tokens until every block is fetched.
func (l *Lark) ListAllBlocks(ctx context.Context, documentID string) ([]Block, error) {
	var blocks []Block
	page := PageOptions{PageSize: 500}
	for {
		resp, err := l.ListBlocks(ctx, documentID, page)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, resp.Data.Items...)
		if !resp.Data.HasMore || resp.Data.PageToken == "" {
			return blocks, nil
		}
		page.PageToken = resp.Data.PageToken
	}
}

func (l *Lark) GetBlock(ctx context.Context, documentID, blockID string) (*BlockResponse, error) {
	path, err := documentPathFor(documentBlockPath, documentID, "block_id", blockID)
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Get[BlockResponse](ctx, l.httpClient, path)
	if err != nil {
		return nil, fmt.Errorf("get block failed: %w", err)
	}
	return resp, nil
}

func (l *Lark) ListChildren(ctx context.Context, documentID, blockID string, page PageOptions) (*BlocksResponse, error) {
	path, err := documentPathFor(documentBlockChildrenPath, documentID, "block_id", blockID)
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Get[BlocksResponse](ctx, l.httpClient, path,
		httpclient.WithParams(page.params()))
	if err != nil {
		return nil, fmt.Errorf("list children failed: %w", err)
	}
	return resp, nil
}

func (l *Lark) CreateChildren(ctx context.Context, documentID, blockID string, req CreateChildrenRequest) (*CreateChildrenResponse, error) {
	if len(req.Children) == 0 {
		return nil, fmt.Errorf("create children: at least one block is required")
	}
	path, err := documentPathFor(documentBlockChildrenPath, documentID, "block_id", blockID)
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Post[CreateChildrenResponse](ctx, l.httpClient, path, req,
		httpclient.WithParam("document_revision_id", "-1"))
	if err != nil {
		return nil, fmt.Errorf("create children failed: %w", err)
	}
	return resp, nil
}

// BatchDeleteChildren removes the children of blockID in [start, end).
func (l *Lark) BatchDeleteChildren(ctx context.Context, documentID, blockID string, start, end int) (*RevisionResponse, error) {
	if start < 0 || end <= start {
		return nil, fmt.Errorf("batch delete children: invalid index range [%d, %d)", start, end)
	}
	path, err := documentPathFor(documentChildrenDeletePath, documentID, "block_id", blockID)
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.Delete[RevisionResponse](ctx, l.httpClient, path,
		httpclient.WithJSON(map[string]int{"start_index": start, "end_index": end}),
		httpclient.WithParam("document_revision_id", strconv.Itoa(-1)))
	if err != nil {
		return nil, fmt.Errorf("batch delete children failed: %w", err)
	}
	return resp, nil
}

var (
	docxURLRe = regexp.MustCompile(`/docx/([^/?#]+)`)
	wikiURLRe = regexp.MustCompile(`/wiki/([^/?#]+)`)
)

// ResolveDocumentURL returns the document id of a docx or wiki share link.
func (l *Lark) ResolveDocumentURL(ctx context.Context, rawURL string) (string, error) {
	if m := docxURLRe.FindStringSubmatch(rawURL); m != nil {
		return m[1], nil
	}
	m := wikiURLRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", fmt.Errorf("not a document url: %q", rawURL)
	}
	node, err := l.GetWikiNode(ctx, m[1])
	if err != nil {
		return "", err
	}
	if node.Data.Node.ObjType != WikiObjDocx {
		return "", fmt.Errorf("wiki node %s is a %s, not a document", m[1], node.Data.Node.ObjType)
	}
	return node.Data.Node.ObjToken, nil
}

// ReadMarkdown renders a document as Markdown. When assetsDir is set, images
// and whiteboards are downloaded there and linked; otherwise they are skipped.
func (l *Lark) ReadMarkdown(ctx context.Context, rawURL, assetsDir string) (string, error) {
	documentID, err := l.ResolveDocumentURL(ctx, rawURL)
	if err != nil {
		return "", err
	}
	blocks, err := l.ListAllBlocks(ctx, documentID)
	if err != nil {
		return "", err
	}
	r := &markdownRenderer{assetsDir: assetsDir}
	if assetsDir != "" {
		r.assets = l
	}
	return r.Render(ctx, blocks)
}
