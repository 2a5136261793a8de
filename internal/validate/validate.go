package validate

import (
	"fmt"
	"slices"
	"strings"
)

// MaxVideoFileBytes is the largest upload accepted by intake (1 GiB, inclusive).
const MaxVideoFileBytes int64 = 1024 * 1024 * 1024

// AllowedVideoTypes lists the declared media types intake accepts.
var AllowedVideoTypes = []string{"video/mp4", "video/quicktime", "video/x-msvideo"}

const (
	MsgInvalidVideoType = "Please upload a valid video file (MP4, MOV, or AVI)"
	MsgVideoTooLarge    = "File size must be less than 1GB"
)

// Text field length limits shared with clients via /api/limits.
const (
	MaxSearchQueryLength = 200
	MaxFileNameLength    = 255
)

func checkLen(value string, max int, field string) string {
	if len(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

func SearchQuery(s string) string { return checkLen(s, MaxSearchQueryLength, "search query") }
func FileName(s string) string    { return checkLen(s, MaxFileNameLength, "file name") }

// VideoType matches the declared type exactly, parameters and case included.
func VideoType(contentType string) string {
	if slices.Contains(AllowedVideoTypes, contentType) {
		return ""
	}
	return MsgInvalidVideoType
}

func VideoSize(size int64) string {
	if size < 0 || size > MaxVideoFileBytes {
		return MsgVideoTooLarge
	}
	return ""
}

// VideoFile checks type before size and returns the first failure.
func VideoFile(contentType string, size int64) string {
	if msg := VideoType(contentType); msg != "" {
		return msg
	}
	return VideoSize(size)
}

// TypeForExtension maps a file name to the media type a browser would declare for it.
func TypeForExtension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	switch strings.ToLower(name[i+1:]) {
	case "mp4", "m4v":
		return "video/mp4"
	case "mov", "qt":
		return "video/quicktime"
	case "avi":
		return "video/x-msvideo"
	case "webm":
		return "video/webm"
	case "mkv":
		return "video/x-matroska"
	}
	return ""
}

// Limits returns the values served by the /api/limits endpoint.
func Limits() map[string]any {
	return map[string]any{
		"maxVideoFileBytes": MaxVideoFileBytes,
		"allowedVideoTypes": AllowedVideoTypes,
		"searchQuery":       MaxSearchQueryLength,
		"fileName":          MaxFileNameLength,
	}
}
