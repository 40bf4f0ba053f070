package services

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ImageUpload carries a received image file through validation and into
// object storage.
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

var allowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

var allowedImageContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// validateImage checks the upload against the extension/MIME allow-list
// and the size cap, returning the full batch of violations.
func validateImage(image *ImageUpload, maxBytes int64) []string {
	var problems []string

	ext := strings.ToLower(filepath.Ext(image.Filename))
	if !allowedImageExtensions[ext] {
		problems = append(problems, fmt.Sprintf("image extension %q is not allowed", ext))
	}

	contentType := strings.ToLower(strings.TrimSpace(image.ContentType))
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if contentType != "" && !allowedImageContentTypes[contentType] {
		problems = append(problems, fmt.Sprintf("image content type %q is not allowed", contentType))
	}

	if len(image.Data) == 0 {
		problems = append(problems, "image file is empty")
	} else if int64(len(image.Data)) > maxBytes {
		problems = append(problems, fmt.Sprintf("image exceeds the maximum size of %d bytes", maxBytes))
	}

	return problems
}
