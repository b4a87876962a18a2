package document

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/waterreg/registry-server/internal/system/blob"
)

const screenshotFolder = "temp/screenshots"

// MapObject is a water body drawn on the document.
type MapObject struct {
	ID   string
	Name string
	Hash string
}

// screenshotter produces the map image of one object, reusing a recent cached copy.
type screenshotter struct {
	blobs    blob.Store
	renderer Renderer
	mapsHost string
	maxAge   time.Duration
	now      func() time.Time
}

func (s *screenshotter) mapURL(objectID string) string {
	q := url.Values{}
	q.Set("item", objectID)
	return s.mapsHost + "/uetk?" + q.Encode()
}

func screenshotKey(hash string) string {
	return fmt.Sprintf("%s/%s.jpeg", screenshotFolder, hash)
}

// task returns the child task for obj. Its output is the screenshot URL.
func (s *screenshotter) task(obj MapObject) Task {
	key := screenshotKey(obj.Hash)
	return Task{
		Key: obj.Hash,
		Run: func(ctx context.Context) (string, error) {
			info, err := s.blobs.Stat(ctx, key)
			if err != nil {
				return "", err
			}
			if info.Exists && s.now().Sub(info.LastModified) <= s.maxAge {
				return s.blobs.URL(key), nil
			}

			image, err := s.renderer.Screenshot(ctx, s.mapURL(obj.ID))
			if err != nil {
				return "", err
			}
			return s.blobs.Put(ctx, key, bytes.NewReader(image), int64(len(image)), "image/jpeg")
		},
	}
}
