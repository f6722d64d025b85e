package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	// Decoders beyond what imaging registers itself.
	_ "golang.org/x/image/webp"
	_ "image/gif"
)

// File is one raw image as selected by the user.
type File struct {
	Name string
	Data []byte
}

// Normalized is the upload-ready form of one file. Order of a
// normalized batch matches the input batch; downstream placeholder
// reconciliation maps results back by index.
type Normalized struct {
	Data         []byte
	OriginalName string
	NewName      string
	Size         int64
}

// NormalizeOptions bound the output image dimensions and JPEG quality.
type NormalizeOptions struct {
	MaxWidth    int
	MaxHeight   int
	JPEGQuality int

	clock func() time.Time
}

const (
	defaultMaxWidth    = 1920
	defaultMaxHeight   = 1920
	defaultJPEGQuality = 85
)

func (o NormalizeOptions) withDefaults() NormalizeOptions {
	if o.MaxWidth <= 0 {
		o.MaxWidth = defaultMaxWidth
	}
	if o.MaxHeight <= 0 {
		o.MaxHeight = defaultMaxHeight
	}
	if o.JPEGQuality <= 0 {
		o.JPEGQuality = defaultJPEGQuality
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	return o
}

// NormalizeBatch converts, compresses and renames an ordered batch of
// files. JPEG and PNG keep their encoding; every other decodable format
// is converted to JPEG before size reduction. A single bad file fails
// the whole batch: no sibling is uploaded either. (Inherited policy,
// kept as-is; see DESIGN.md.)
func NormalizeBatch(ctx context.Context, files []File, opts NormalizeOptions) ([]Normalized, error) {
	opts = opts.withDefaults()
	out := make([]Normalized, 0, len(files))
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		normalized, err := normalizeOne(file, opts)
		if err != nil {
			return nil, fmt.Errorf("normalize %q (file %d): %w", file.Name, i, err)
		}
		out = append(out, normalized)
	}
	return out, nil
}

func normalizeOne(file File, opts NormalizeOptions) (Normalized, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(file.Data))
	if err != nil {
		return Normalized{}, fmt.Errorf("detect format: %w", err)
	}
	img, err := imaging.Decode(bytes.NewReader(file.Data), imaging.AutoOrientation(true))
	if err != nil {
		return Normalized{}, fmt.Errorf("decode: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > opts.MaxWidth || bounds.Dy() > opts.MaxHeight {
		img = imaging.Fit(img, opts.MaxWidth, opts.MaxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	ext := ".jpg"
	switch format {
	case "png":
		ext = ".png"
		err = imaging.Encode(&buf, img, imaging.PNG)
	default:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(opts.JPEGQuality))
	}
	if err != nil {
		return Normalized{}, fmt.Errorf("encode: %w", err)
	}

	return Normalized{
		Data:         buf.Bytes(),
		OriginalName: file.Name,
		NewName:      UniqueName(file.Name, ext, opts.clock()),
		Size:         int64(buf.Len()),
	}, nil
}

var slugDropRe = regexp.MustCompile(`[^a-z0-9-]+`)

// UniqueName composes the canonical upload name: a timestamp prefix, a
// short random component and a sanitized slug of the original name.
// The timestamp prefix is what makes the name match the Filename token
// pattern; the random component keeps rapid successive uploads apart.
func UniqueName(originalName, ext string, now time.Time) string {
	return fmt.Sprintf("%d-%s-%s%s", now.Unix(), shortRandom(), slugify(originalName), ext)
}

func shortRandom() string {
	return uuid.NewString()[:4]
}

func slugify(name string) string {
	base := name
	if dot := strings.LastIndex(base, "."); dot > 0 {
		base = base[:dot]
	}
	base = strings.ToLower(base)
	base = strings.ReplaceAll(base, " ", "-")
	base = slugDropRe.ReplaceAllString(base, "")
	base = strings.Trim(base, "-")
	if base == "" {
		base = "image"
	}
	return base
}
