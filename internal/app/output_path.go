package app

import (
	"path/filepath"
	"strings"
	"unicode"
)

const maxBaseNameRunes = 180

var mediaExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".webm": true, ".mov": true, ".avi": true, ".flv": true,
	".mp3": true, ".m4a": true, ".opus": true, ".ogg": true, ".wav": true, ".flac": true, ".aac": true,
}

// SanitizeFilename turns an arbitrary title into a single safe path component
func SanitizeFilename(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('_')
		case r == '$' && i+1 < len(runes) && startsVariable(runes[i+1]):
			// yt-dlp expands environment variables in output templates
			b.WriteRune('_')
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteRune(' ')
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}

	clean := strings.Join(strings.Fields(b.String()), " ")
	clean = strings.Trim(clean, " .")

	if runes := []rune(clean); len(runes) > maxBaseNameRunes {
		clean = strings.TrimRight(string(runes[:maxBaseNameRunes]), " .")
	}
	return clean
}

func startsVariable(r rune) bool {
	return r == '_' || r == '{' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// OutputBase derives the extension-less target path for a download.
// An explicit filename wins over the title; a known media extension on it is dropped
// because the download tool appends the real one.
func OutputBase(dir, filename, title, fallback string) string {
	base := filename
	if base != "" {
		if ext := strings.ToLower(filepath.Ext(base)); mediaExtensions[ext] {
			base = strings.TrimSuffix(base, filepath.Ext(base))
		}
		base = SanitizeFilename(base)
	}
	if base == "" {
		base = SanitizeFilename(title)
	}
	if base == "" {
		base = fallback
	}
	return filepath.Join(dir, base)
}
