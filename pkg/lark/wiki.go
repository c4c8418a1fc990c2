package lark

import (
	"context"
	"fmt"

	httpclient "github.com/natserract/lark/pkg/http"
)

// Object types a wiki node can point at.
const (
	WikiObjDoc      = "doc"
	WikiObjDocx     = "docx"
	WikiObjSheet    = "sheet"
	WikiObjMindnote = "mindnote"
	WikiObjBitable  = "bitable"
	WikiObjFile     = "file"
	WikiObjSlides   = "slides"
)

type WikiNode struct {
	SpaceID         string `json:"space_id"`
	NodeToken       string `json:"node_token"`
	ObjToken        string `json:"obj_token"`
	ObjType         string `json:"obj_type"`
	ParentNodeToken string `json:"parent_node_token"`
	NodeType        string `json:"node_type"`
	OriginNodeToken string `json:"origin_node_token"`
	OriginSpaceID   string `json:"origin_space_id"`
	HasChild        bool   `json:"has_child"`
	Title           string `json:"title"`
	ObjCreateTime   string `json:"obj_create_time"`
	ObjEditTime     string `json:"obj_edit_time"`
	NodeCreateTime  string `json:"node_create_time"`
	Creator         string `json:"creator"`
	Owner           string `json:"owner"`
}

type WikiNodeData struct {
	Node WikiNode `json:"node"`
}

type WikiNodeResponse = httpclient.Result[WikiNodeData]

// GetWikiNode resolves a knowledge-space node token to the object it wraps.
func (l *Lark) GetWikiNode(ctx context.Context, token string) (*WikiNodeResponse, error) {
	if token == "" {
		return nil, fmt.Errorf("get wiki node: token is required")
	}
	resp, err := httpclient.Get[WikiNodeResponse](ctx, l.httpClient, wikiNodePath,
		httpclient.WithParam("token", token))
	if err != nil {
		return nil, fmt.Errorf("get wiki node failed: %w", err)
	}
	return resp, nil
}
