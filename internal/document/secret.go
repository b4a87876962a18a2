package document

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/waterreg/registry-server/internal/system/utils"
)

// Secret returns the token that unlocks the public HTML of a request.
func Secret(id string, createdAt time.Time) string {
	return md5Hex(fmt.Sprintf("id=%s&date=%s", id, utils.FormatCompact(createdAt)))
}

// VerifySecret reports whether secret matches the request.
func VerifySecret(id string, createdAt time.Time, secret string) bool {
	if secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(Secret(id, createdAt)), []byte(secret)) == 1
}

// ScreenshotHash keys the cached map screenshot of an object.
func ScreenshotHash(objectID string) string {
	return md5Hex("item=" + objectID)
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
