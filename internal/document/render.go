package document

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/request.html
var templateFS embed.FS

var requestTemplate = template.Must(template.ParseFS(templateFS, "templates/request.html"))

// Source is the request data a document is built from.
type Source struct {
	ID            string
	CreatedAt     time.Time
	CreatedBy     string
	Tenant        string
	Purpose       string
	Extended      bool
	Objects       []SourceObject
	GeneratedFile string
}

// SourceObject is one object listed on the request.
type SourceObject struct {
	ID   string
	Type string
	Name string
}

// mapObjects returns the objects that get a screenshot.
func (s *Source) mapObjects() []MapObject {
	out := make([]MapObject, 0, len(s.Objects))
	seen := make(map[string]bool, len(s.Objects))
	for _, o := range s.Objects {
		if o.ID == "" || seen[o.ID] {
			continue
		}
		seen[o.ID] = true
		out = append(out, MapObject{ID: o.ID, Name: o.Name, Hash: ScreenshotHash(o.ID)})
	}
	return out
}

type objectView struct {
	ID         string
	Type       string
	Label      string
	Screenshot string
}

type documentView struct {
	ID       string
	Date     string
	Purpose  string
	Extended bool
	Objects  []objectView
}

// Render builds the document HTML. Objects without a screenshot in
// screenshots get a blank placeholder.
func Render(src *Source, screenshots map[string]string) (string, error) {
	view := documentView{
		ID:       src.ID,
		Date:     src.CreatedAt.Format("2006-01-02"),
		Purpose:  src.Purpose,
		Extended: src.Extended,
		Objects:  make([]objectView, 0, len(src.Objects)),
	}
	for _, o := range src.Objects {
		label := o.Name
		switch {
		case label == "":
			label = o.ID
		case o.ID != "":
			label = fmt.Sprintf("%s, %s", o.Name, o.ID)
		}
		var shot string
		if o.ID != "" {
			shot = screenshots[ScreenshotHash(o.ID)]
		}
		view.Objects = append(view.Objects, objectView{
			ID:         o.ID,
			Type:       o.Type,
			Label:      label,
			Screenshot: shot,
		})
	}

	var buf bytes.Buffer
	if err := requestTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return buf.String(), nil
}
