package media

import (
	"fmt"
	"mime"
	"slices"
	"strings"
)

var productImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

var extensionsByType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// normalizeMimeType strips parameters and lowercases the media type.
func normalizeMimeType(value string) (string, error) {
	clean := strings.TrimSpace(value)
	if clean == "" {
		return "", fmt.Errorf("mime type required")
	}
	mediaType, _, err := mime.ParseMediaType(clean)
	if err != nil {
		return "", fmt.Errorf("mime type invalid: %w", err)
	}
	return strings.ToLower(mediaType), nil
}

func isProductImageType(mediaType string) bool {
	return slices.Contains(productImageTypes, mediaType)
}

func allowedTypesDescription() string {
	names := make([]string, 0, len(productImageTypes))
	for _, t := range productImageTypes {
		names = append(names, strings.TrimPrefix(t, "image/"))
	}
	return strings.Join(names[:len(names)-1], ", ") + " or " + names[len(names)-1]
}
