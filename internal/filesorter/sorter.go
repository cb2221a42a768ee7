// Package filesorter files incoming photos and documents into a dated
// folder tree, naming them from a vision model's description.
package filesorter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/Brent1981/AIProject/internal/llm"
	"github.com/Brent1981/AIProject/internal/metrics"
	"github.com/Brent1981/AIProject/internal/paths"
	"github.com/Brent1981/AIProject/internal/prompts"
)

const (
	visionTimeout      = 60 * time.Second
	defaultMaxImageDim = 1024
)

// extensions imaging can decode for the vision model.
var decodableExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".tif": true, ".tiff": true}

// Config controls where files go and which models look at them.
type Config struct {
	DestRoot    string
	VisionModel string
	OCRModel    string
	MaxImageDim int
	// Roots expands "share:..." style references before processing.
	Roots *paths.Resolver
}

// Result describes one processed file.
type Result struct {
	Source      string    `json:"original_path"`
	Destination string    `json:"new_path"`
	Date        time.Time `json:"date"`
	Exif        *Exif     `json:"exif,omitempty"`
	Description string    `json:"description,omitempty"`
	Text        string    `json:"ocr_text,omitempty"`
}

// Sorter processes files one at a time.
type Sorter struct {
	cfg     Config
	vision  llm.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a sorter. vision may be nil, in which case files are named
// from their original names.
func New(cfg Config, vision llm.Client, logger *slog.Logger, m *metrics.Metrics) *Sorter {
	if cfg.MaxImageDim <= 0 {
		cfg.MaxImageDim = defaultMaxImageDim
	}
	if cfg.OCRModel == "" {
		cfg.OCRModel = cfg.VisionModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sorter{cfg: cfg, vision: vision, logger: logger.With("component", "filesorter"), metrics: m}
}

// Process extracts metadata, asks the vision model about the file, and
// moves it to its planned destination.
func (s *Sorter) Process(ctx context.Context, path string) (res *Result, err error) {
	defer func() { s.metrics.FileProcessed(err == nil) }()

	path, err = s.cfg.Roots.Resolve(path)
	if err != nil {
		return nil, fmt.Errorf("invalid file_path: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("invalid or non-existent file_path: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("invalid file_path %s: is a directory", path)
	}
	log := s.logger.With("path", path)
	log.Info("processing file")

	res = &Result{Source: path, Date: info.ModTime()}
	if meta, err := ReadExif(path); err != nil {
		log.Debug("no exif data", "error", err)
	} else {
		res.Exif = &meta
		if !meta.Taken.IsZero() {
			res.Date = meta.Taken
		}
	}

	if img, err := s.visionImage(path); err != nil {
		log.Debug("skipping vision", "reason", err)
	} else {
		res.Description = s.ask(ctx, log, s.cfg.VisionModel, prompts.DescribeImagePrompt, img)
		res.Text = s.ask(ctx, log, s.cfg.OCRModel, prompts.OCRPrompt, img)
	}

	dir, name := PlanDestination(s.cfg.DestRoot, path, res.Description, res.Date)
	dst, err := moveFile(path, dir, name)
	if err != nil {
		log.Error("move failed", "destination", filepath.Join(dir, name), "error", err)
		return nil, fmt.Errorf("move file: %w", err)
	}
	res.Destination = dst
	log.Info("file organized", "destination", dst)
	return res, nil
}

// visionImage loads path, downscales it to the configured bound, and
// re-encodes it as JPEG.
func (s *Sorter) visionImage(path string) ([]byte, error) {
	if s.vision == nil {
		return nil, errors.New("no vision model configured")
	}
	if !decodableExts[strings.ToLower(filepath.Ext(path))] {
		return nil, errors.New("not a decodable image")
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	img = fit(img, s.cfg.MaxImageDim)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func fit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxDim && b.Dy() <= maxDim {
		return img
	}
	return imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
}

func (s *Sorter) ask(ctx context.Context, log *slog.Logger, model, prompt string, img []byte) string {
	ctx, cancel := context.WithTimeout(ctx, visionTimeout)
	defer cancel()

	out, err := s.vision.Generate(ctx, llm.Request{Model: model, Prompt: prompt, Images: [][]byte{img}})
	if err != nil {
		log.Warn("vision request failed, continuing without it", "model", model, "error", err)
		return ""
	}
	out = strings.TrimSpace(out)
	if strings.EqualFold(out, "NONE") {
		return ""
	}
	return out
}
