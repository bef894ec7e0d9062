package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ObjectStore persists an uploaded image and returns its public URL.
type ObjectStore interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// ObjectName builds a collision-free key that keeps the original base name for humans:
// uploads/2024/05/01/<uuid>-<base>.<ext>.
func ObjectName(original, contentType string, now time.Time) string {
	base := strings.TrimSuffix(path.Base(strings.ReplaceAll(original, "\\", "/")), path.Ext(original))
	base = sanitize(base)
	ext := extensions[strings.ToLower(contentType)]
	if ext == "" {
		ext = strings.ToLower(path.Ext(original))
	}
	name := uuid.NewString()
	if base != "" {
		name += "-" + base
	}
	return fmt.Sprintf("uploads/%s/%s%s", now.UTC().Format("2006/01/02"), name, ext)
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('-')
		}
		if b.Len() >= 64 {
			break
		}
	}
	return strings.Trim(b.String(), "-")
}
