package media

import (
	"strconv"
	"strings"
)

// Kind is the display category of a file.
type Kind string

const (
	KindImage    Kind = "image"
	KindPDF      Kind = "pdf"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindDocument Kind = "document"
	KindOther    Kind = "other"
)

// PlaceholderName is shown when a reference carries no download filename.
const PlaceholderName = "Datei"

var documentTypes = map[string]struct{}{
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/vnd.oasis.opendocument.text":                                 {},
}

// Classify maps a reference to its display category by MIME type.
func Classify(r Ref) Kind {
	return ClassifyMIME(r.mimeType())
}

// ClassifyMIME maps a MIME type to a display category.
func ClassifyMIME(mime string) Kind {
	if mime == "" {
		return KindOther
	}
	if _, ok := documentTypes[mime]; ok {
		return KindDocument
	}
	switch {
	case strings.HasPrefix(mime, "image/"):
		return KindImage
	case mime == "application/pdf":
		return KindPDF
	case strings.HasPrefix(mime, "video/"):
		return KindVideo
	case strings.HasPrefix(mime, "audio/"):
		return KindAudio
	case strings.Contains(mime, "spreadsheet"), strings.Contains(mime, "presentation"):
		return KindDocument
	}
	return KindOther
}

// DisplayName returns the download filename of the reference (or of the file nested in a
// junction row), falling back to PlaceholderName. An absent reference yields "".
func DisplayName(r Ref) string {
	if r.Shape == ShapeNone {
		return ""
	}
	if name := r.downloadName(); name != "" {
		return name
	}
	return PlaceholderName
}

// ThumbnailURL builds a resized, cropped asset URL. Non-positive width or height is left out.
// It returns "" when the reference resolves to no file id.
func ThumbnailURL(r Ref, baseURL, token string, width, height int) string {
	id := r.FileID()
	if id == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(assetBase(baseURL, id))
	b.WriteByte('?')
	if width > 0 {
		b.WriteString("&width=" + strconv.Itoa(width))
	}
	if height > 0 {
		b.WriteString("&height=" + strconv.Itoa(height))
	}
	b.WriteString("&fit=cover&quality=80&access_token=")
	b.WriteString(token)
	return b.String()
}

// AssetURL builds the full asset URL, optionally forcing a download. The token is appended
// only when non-empty.
func AssetURL(r Ref, baseURL, token string, download bool) string {
	id := r.FileID()
	if id == "" {
		return ""
	}
	u := assetBase(baseURL, id)
	sep := "?"
	if download {
		u += "?download=true"
		sep = "&"
	}
	if token != "" {
		u += sep + "access_token=" + token
	}
	return u
}

func assetBase(baseURL, id string) string {
	return strings.TrimSuffix(baseURL, "/") + "/assets/" + id
}
