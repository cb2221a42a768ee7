package filesorter

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

var (
	photoExts    = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".heic": true, ".dng": true, ".raw": true}
	documentExts = map[string]bool{".pdf": true, ".doc": true, ".docx": true, ".txt": true}
)

// Category folder names.
const (
	Photos    = "Photos"
	Documents = "Documents"
	Unsorted  = "Unsorted"
)

// Category returns the top-level folder for a file extension.
func Category(ext string) string {
	ext = strings.ToLower(ext)
	switch {
	case photoExts[ext]:
		return Photos
	case documentExts[ext]:
		return Documents
	}
	return Unsorted
}

// Keywords returns up to n lowercase words from description that are
// purely alphabetic and longer than four letters.
func Keywords(description string, n int) []string {
	var words []string
	for _, w := range strings.Fields(description) {
		if len(words) == n {
			break
		}
		if len([]rune(w)) > 4 && isAlpha(w) {
			words = append(words, strings.ToLower(w))
		}
	}
	return words
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// PlanDestination returns the folder and file name for a file dated at
// date: Photos/YYYY/MM-Month, Documents/YYYY or Unsorted/YYYY under root,
// named YYYY-MM-DD_HHMMSS_<keywords><ext>. Without keywords the original
// base name is used with spaces replaced by underscores.
func PlanDestination(root, original, description string, date time.Time) (dir, name string) {
	base := filepath.Base(original)
	rawExt := filepath.Ext(base)
	ext := strings.ToLower(rawExt)
	year := date.Format("2006")

	switch cat := Category(ext); cat {
	case Photos:
		dir = filepath.Join(root, cat, year, fmt.Sprintf("%02d-%s", int(date.Month()), date.Month()))
	default:
		dir = filepath.Join(root, cat, year)
	}

	descriptive := strings.Join(Keywords(description, 3), "_")
	if descriptive == "" {
		descriptive = strings.ReplaceAll(strings.TrimSuffix(base, rawExt), " ", "_")
	}
	name = fmt.Sprintf("%s_%s%s", date.Format("2006-01-02_150405"), descriptive, ext)
	return dir, name
}
