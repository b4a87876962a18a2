package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	src := &Source{
		ID:        "r1",
		CreatedAt: time.Date(2024, 2, 3, 10, 0, 0, 0, time.UTC),
		Purpose:   "<script>alert(1)</script>",
		Extended:  true,
		Objects: []SourceObject{
			{ID: "100", Type: "CADASTRAL_ID", Name: "Lake"},
			{ID: "200", Type: "CADASTRAL_ID"},
		},
	}

	html, err := Render(src, map[string]string{ScreenshotHash("100"): "https://files/a.jpeg"})
	require.NoError(t, err)

	assert.Contains(t, html, "Nr. r1, 2024-02-03")
	assert.Contains(t, html, "Lake, 100")
	assert.Contains(t, html, `src="https://files/a.jpeg"`)
	assert.Contains(t, html, `class="placeholder"`)
	assert.Contains(t, html, "Kadastro identifikatorius")
	assert.NotContains(t, html, "<script>")
}

func TestRender_BasicOmitsDetails(t *testing.T) {
	html, err := Render(&Source{ID: "r1", Objects: []SourceObject{{ID: "100"}}}, nil)
	require.NoError(t, err)
	assert.NotContains(t, html, "Kadastro identifikatorius")
}

func TestMapObjects_Dedup(t *testing.T) {
	src := &Source{Objects: []SourceObject{{ID: "1"}, {ID: ""}, {ID: "1"}, {ID: "2"}}}
	objs := src.mapObjects()
	require.Len(t, objs, 2)
	assert.Equal(t, ScreenshotHash("2"), objs[1].Hash)
}
