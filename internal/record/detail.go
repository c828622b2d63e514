package record

import (
	"fmt"
	"regexp"
	"strings"
)

// Sentinel substrings the archive writes into LinkFoto when no usable photo
// was stored. A link containing either is treated as absent.
var missingPhotoSentinels = []string{"Tidak Ada", "Gagal"}

// driveShareID extracts the file ID from Google Drive share links, both the
// /file/d/<id>/view and the open?id=<id> shapes.
var driveShareID = regexp.MustCompile(`(?:/d/|[?&]id=)([a-zA-Z0-9_-]+)`)

// PhotoURL returns a directly embeddable image URL for the stored photo link,
// or the empty string when the link is absent, not an HTTP URL, or one of the
// known missing-photo sentinels.
//
// Google Drive share links are rewritten to the googleusercontent host
// because the share page itself is not an image.
func (r Record) PhotoURL() string {
	link := strings.TrimSpace(r.LinkFoto)
	if !strings.HasPrefix(link, "http") {
		return ""
	}
	for _, sentinel := range missingPhotoSentinels {
		if strings.Contains(link, sentinel) {
			return ""
		}
	}

	if match := driveShareID.FindStringSubmatch(link); match != nil {
		return "https://lh3.googleusercontent.com/d/" + match[1]
	}
	return link
}

// MapURL returns an external map link for the capture coordinates, or the
// empty string when either coordinate is absent.
func (r Record) MapURL() string {
	if r.Latitude == nil || r.Longitude == nil {
		return ""
	}
	return fmt.Sprintf("https://www.google.com/maps?q=%v,%v", *r.Latitude, *r.Longitude)
}
