package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/menta2k/photocard/pkg/raster"
)

// photoExts are the extensions the decoders accept
var photoExts = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true,
	"bmp": true, "tiff": true, "tif": true, "webp": true,
}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

// GetFileExtension returns the lowercased file extension without the dot
func GetFileExtension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// IsPhotoFile reports whether a file looks like a decodable photo
func IsPhotoFile(filename string) bool {
	return photoExts[GetFileExtension(filename)]
}

// OutputPath builds the output path for a processed input: the input's base
// name plus suffix, with the extension of format, inside outputDir. An empty
// outputDir keeps the input's directory.
func OutputPath(inputFile, outputDir, suffix string, format raster.Format) string {
	if outputDir == "" {
		outputDir = filepath.Dir(inputFile)
	}
	base := filepath.Base(inputFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, fmt.Sprintf("%s%s.%s", name, suffix, format.Ext()))
}

// ExportFilename names an exported card after its name label
func ExportFilename(cardName string, format raster.Format) string {
	name := SanitizeFilename(strings.ReplaceAll(strings.TrimSpace(cardName), " ", "_"))
	if name == "" {
		name = "card"
	}
	return fmt.Sprintf("%s.%s", name, format.Ext())
}

// ListPhotos recursively lists all photo files in a directory
func ListPhotos(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsPhotoFile(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	return err == nil && info.IsDir()
}

// SanitizeFilename replaces characters that are invalid in file names
func SanitizeFilename(filename string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_")
	return strings.Trim(r.Replace(filename), " .")
}

// FormatFileSize formats a byte count in human-readable form
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
