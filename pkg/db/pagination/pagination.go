// Package pagination carries opaque keyset cursors through list endpoints.
package pagination

import (
	"encoding/base64"
	"encoding/json"
)

// Pagination is embedded in list requests. A zero PageSize lets each service
// apply its own default.
type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size" binding:"omitempty,gte=1,lte=250"`
}

// Cursor identifies the last row of a page. CreatedAt is set by lists
// ordered on creation time.
type Cursor struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type PageInfo struct {
	NextPageToken     string `json:"next_page_token"`
	PreviousPageToken string `json:"previous_page_token"`
	HasMore           bool   `json:"has_more"`
}

// EncodeCursor returns a query-string safe token.
func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}
	return &cursor, nil
}

// BuildCursorPageInfo expects data fetched with limit+1 rows. The extra row
// only signals HasMore; the next token points at the last row kept.
func BuildCursorPageInfo[T any](data []*T, limit int, cursorOf func(*T) Cursor) (PageInfo, error) {
	if len(data) == 0 || limit <= 0 {
		return PageInfo{}, nil
	}

	hasMore := len(data) > limit
	if hasMore {
		data = data[:limit]
	}

	info := PageInfo{HasMore: hasMore}
	if !hasMore {
		return info, nil
	}
	token, err := EncodeCursor(cursorOf(data[len(data)-1]))
	if err != nil {
		return PageInfo{}, err
	}
	info.NextPageToken = token
	return info, nil
}
