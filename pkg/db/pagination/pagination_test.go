package pagination

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct{ id string }

func TestCursorRoundTripIsURLSafe(t *testing.T) {
	in := Cursor{ID: "1780000000000000000", CreatedAt: "2024-04-01T09:00:00.123456789+05:30"}

	token, err := EncodeCursor(in)
	require.NoError(t, err)
	assert.False(t, strings.ContainsAny(token, "+/="), "token %q needs query escaping", token)

	out, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, in, *out)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("not a token")
	assert.Error(t, err)

	_, err = DecodeCursor(base64.RawURLEncoding.EncodeToString([]byte("[]")))
	assert.Error(t, err)
}

func TestBuildCursorPageInfo(t *testing.T) {
	rows := []*row{{"a"}, {"b"}, {"c"}}
	cursorOf := func(r *row) Cursor { return Cursor{ID: r.id} }

	info, err := BuildCursorPageInfo(rows, 2, cursorOf)
	require.NoError(t, err)
	assert.True(t, info.HasMore)
	next, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, "b", next.ID)

	last, err := BuildCursorPageInfo(rows, 3, cursorOf)
	require.NoError(t, err)
	assert.False(t, last.HasMore)
	assert.Empty(t, last.NextPageToken)

	empty, err := BuildCursorPageInfo([]*row{}, 3, cursorOf)
	require.NoError(t, err)
	assert.Equal(t, PageInfo{}, empty)
}
