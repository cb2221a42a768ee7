package filesorter

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// Exif is the subset of EXIF metadata the sorter uses.
type Exif struct {
	Taken time.Time `json:"taken,omitempty"`
	Make  string    `json:"make,omitempty"`
	Model string    `json:"model,omitempty"`
}

// ReadExif extracts capture time and camera from path. Files without
// EXIF data return an error.
func ReadExif(path string) (Exif, error) {
	f, err := os.Open(path)
	if err != nil {
		return Exif{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return Exif{}, fmt.Errorf("decode exif: %w", err)
	}

	var meta Exif
	if t, err := x.DateTime(); err == nil {
		meta.Taken = t
	}
	meta.Make = exifString(x, exif.Make)
	meta.Model = exifString(x, exif.Model)
	return meta, nil
}

func exifString(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}
