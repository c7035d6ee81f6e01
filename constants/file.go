package constants

import "strings"

// Format is the coarse document kind used to pick an extraction strategy.
type Format string

const (
	PDF   Format = "PDF"
	IMAGE Format = "IMAGE"
)

// SupportedExtensions holds the file extensions the pipeline will pick up
// during discovery. Everything else is silently skipped.
var SupportedExtensions = map[string]Format{
	"pdf":  PDF,
	"png":  IMAGE,
	"jpg":  IMAGE,
	"jpeg": IMAGE,
	"tif":  IMAGE,
	"tiff": IMAGE,
	"bmp":  IMAGE,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat returns the Format for a file extension, or "" if the
// extension is not supported.
func MapExtToFormat(ext string) Format {
	return SupportedExtensions[NormalizeExt(ext)]
}

// IsSupported reports whether the extension belongs to a processable format.
func IsSupported(ext string) bool {
	_, ok := SupportedExtensions[NormalizeExt(ext)]
	return ok
}
