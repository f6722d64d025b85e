package media

import (
	"fmt"
	"regexp"
	"strconv"
)

// Kind classifies an image reference found in entry markdown.
type Kind int

const (
	// KindOther covers relative paths and anything else the pipeline
	// does not manage. Passed through untouched.
	KindOther Kind = iota
	// KindFullURL is a reference with an explicit URL scheme.
	KindFullURL
	// KindPlaceholder is a transient uploading-<batch>-<index> token.
	KindPlaceholder
	// KindFilename is a server-side media filename, eligible for signing.
	KindFilename
)

func (k Kind) String() string {
	switch k {
	case KindFullURL:
		return "full-url"
	case KindPlaceholder:
		return "placeholder"
	case KindFilename:
		return "filename"
	default:
		return "other"
	}
}

// Reference is one classified image destination.
type Reference struct {
	Raw  string
	Kind Kind

	// BatchID and Index are set only for KindPlaceholder.
	BatchID int64
	Index   int
}

var (
	schemeRe      = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://`)
	placeholderRe = regexp.MustCompile(`^uploading-(\d+)-(\d+)$`)
	// Server filenames start with a timestamp prefix: leading digits,
	// then anything but a path separator, then an extension.
	filenameRe = regexp.MustCompile(`^\d+[^/]*\.\w+$`)
)

// Classify parses one image destination into a typed reference. The
// placeholder and filename namespaces are disjoint: a placeholder token
// never matches the filename pattern because it starts with a letter.
func Classify(token string) Reference {
	if schemeRe.MatchString(token) {
		return Reference{Raw: token, Kind: KindFullURL}
	}
	if m := placeholderRe.FindStringSubmatch(token); m != nil {
		batchID, _ := strconv.ParseInt(m[1], 10, 64)
		index, _ := strconv.Atoi(m[2])
		return Reference{Raw: token, Kind: KindPlaceholder, BatchID: batchID, Index: index}
	}
	if filenameRe.MatchString(token) {
		return Reference{Raw: token, Kind: KindFilename}
	}
	return Reference{Raw: token, Kind: KindOther}
}

// PlaceholderToken builds the transient token for one file of a batch.
func PlaceholderToken(batchID int64, index int) string {
	return fmt.Sprintf("uploading-%d-%d", batchID, index)
}

// PlaceholderLine is the full markdown line spliced into the buffer
// while a file is uploading.
func PlaceholderLine(originalName string, batchID int64, index int) string {
	return fmt.Sprintf("![Uploading %s...](%s)", originalName, PlaceholderToken(batchID, index))
}
