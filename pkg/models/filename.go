package models

import (
	"math/rand"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

var contentDispositionFilename = regexp.MustCompile(`filename="?([^"]+)"?`)

// Extensions for media subtypes the Planet API commonly serves. Checked
// before the platform mime database so results are stable across hosts.
var subtypeExtensions = map[string]string{
	"tiff":    ".tif",
	"geotiff": ".tif",
	"jpeg":    ".jpg",
	"png":     ".png",
	"json":    ".json",
	"geojson": ".geojson",
	"zip":     ".zip",
	"xml":     ".xml",
}

const randomNameCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

// FilenameFromHeaders extracts a download filename from the
// Content-Disposition header. Returns "" when no filename token is
// present.
func FilenameFromHeaders(headers http.Header) string {
	cd := headers.Get("Content-Disposition")
	if cd == "" {
		return ""
	}
	m := contentDispositionFilename.FindStringSubmatch(cd)
	if m == nil {
		return ""
	}
	return m[1]
}

// FilenameFromURL returns the final path segment of rawURL, ignoring
// query and fragment. Returns "" when the path has no trailing segment.
func FilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	path := u.Path
	return path[strings.LastIndex(path, "/")+1:]
}

// RandomFilename synthesizes a short random name, suffixed with an
// extension guessed from contentType. An unknown or empty content type
// yields a name with no extension.
func RandomFilename(contentType string) string {
	b := make([]byte, 8)
	for i := range b {
		b[i] = randomNameCharset[rand.Intn(len(randomNameCharset))]
	}
	return "planet-" + string(b) + extensionForType(contentType)
}

// extensionForType guesses a file extension for a media type, preferring
// the fixed subtype table over the platform mime database.
func extensionForType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	if i := strings.Index(mediaType, "/"); i >= 0 {
		if ext, ok := subtypeExtensions[mediaType[i+1:]]; ok {
			return ext
		}
	}
	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}
