package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/wpbs/bunny"
)

var testCollections = []bunny.Collection{
	{VideoLibraryID: 1, GUID: "c1", Name: "wpbs_1", VideoCount: 12, TotalSize: 5 << 30},
	{VideoLibraryID: 1, GUID: "c2", Name: "wpbs_42", VideoCount: 0},
	{VideoLibraryID: 1, GUID: "c3", Name: "Marketing", VideoCount: 3, PreviewImageURLs: []string{"a.jpg", "b.jpg"}},
}

func TestCompile(t *testing.T) {
	tests := []struct {
		name        string
		expression  string
		wantErr     bool
		errContains string
	}{
		{
			name:       "valid expression",
			expression: `videoCount > 10`,
		},
		{
			name:        "empty expression",
			expression:  "  ",
			wantErr:     true,
			errContains: "empty expression",
		},
		{
			name:       "invalid syntax",
			expression: `name == "unclosed`,
			wantErr:    true,
		},
		{
			name:       "unknown field",
			expression: `episodes > 1`,
			wantErr:    true,
		},
		{
			name:       "not boolean",
			expression: `videoCount + 1`,
			wantErr:    true,
		},
		{
			name:       "complex expression",
			expression: `managed && (videoCount == 0 || totalSize > 1024) && name startsWith "wpbs_"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Compile(tt.expression, "wpbs_")
			if tt.wantErr {
				require.Error(t, err)
				var cerr *CompilationError
				assert.ErrorAs(t, err, &cerr)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expression, f.String())
		})
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		wantGUIDs  []string
	}{
		{"by count", `videoCount > 10`, []string{"c1"}},
		{"managed only", `managed`, []string{"c1", "c2"}},
		{"by user", `userId == "42"`, []string{"c2"}},
		{"unmanaged with previews", `!managed && previews == 2`, []string{"c3"}},
		{"by size", `totalSize >= 5 * 1024 * 1024 * 1024`, []string{"c1"}},
		{"string operators", `name contains "ket"`, []string{"c3"}},
		{"no match", `guid == "missing"`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Compile(tt.expression, "wpbs_")
			require.NoError(t, err)

			got, err := f.Apply(testCollections)
			require.NoError(t, err)

			guids := make([]string, 0, len(got))
			for _, c := range got {
				guids = append(guids, c.GUID)
			}
			assert.Equal(t, tt.wantGUIDs, guids)
		})
	}
}

func TestNewEnv(t *testing.T) {
	env := NewEnv(testCollections[1], "wpbs_")
	assert.True(t, env.Managed)
	assert.Equal(t, "42", env.UserID)

	env = NewEnv(testCollections[1], "")
	assert.False(t, env.Managed)
	assert.Empty(t, env.UserID)
}

func TestEvaluationError(t *testing.T) {
	f, err := Compile(`[1, 2][videoCount] == 1`, "wpbs_")
	require.NoError(t, err)

	_, err = f.Apply(testCollections)
	require.Error(t, err)
	var everr *EvaluationError
	require.ErrorAs(t, err, &everr)
	assert.Equal(t, "wpbs_1", everr.Collection)
	assert.Equal(t, "c1", everr.CollectionGUID)
	assert.Contains(t, err.Error(), `collection filter "[1, 2][videoCount] == 1" on wpbs_1 (c1)`)
}

func TestCache(t *testing.T) {
	c := NewCache(2, "wpbs_")

	a, err := c.Get(`videoCount > 1`)
	require.NoError(t, err)
	again, err := c.Get(`videoCount > 1`)
	require.NoError(t, err)
	assert.Same(t, a, again)

	_, err = c.Get(`managed`)
	require.NoError(t, err)
	_, err = c.Get(`previews > 0`)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Size())

	// the first filter was least recently used and has been evicted
	evicted, err := c.Get(`videoCount > 1`)
	require.NoError(t, err)
	assert.NotSame(t, a, evicted)

	_, err = c.Get(`broken ==`)
	require.Error(t, err)
	assert.Equal(t, 2, c.Size())

	c.Clear()
	assert.Zero(t, c.Size())
}
