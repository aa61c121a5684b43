package api

import (
	"github.com/starford/nbpress/internal/pageservice"
	"github.com/starford/nbpress/internal/searchdb"
)

// PageDetail is the single-page response type.
type PageDetail = pageservice.PageDetail

// PageListItem is one entry of a list response.
type PageListItem = pageservice.PageListItem

// PageListResponse wraps paginated page listings.
type PageListResponse struct {
	Pages []PageListItem `json:"pages"`
	Total int            `json:"total"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []searchdb.SearchResult `json:"results"`
}

// TagCount is one tag with the number of pages carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Pages int    `json:"pages"`
}

// TagsResponse lists every tag in the index.
type TagsResponse struct {
	Tags []TagCount `json:"tags"`
}

// SyncResponse summarises a pass triggered through the API.
type SyncResponse struct {
	PassID    string `json:"pass_id"`
	New       int    `json:"new"`
	Updated   int    `json:"updated"`
	Unchanged int    `json:"unchanged"`
	Pages     int    `json:"pages"`
}
