package infrastructure

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/yourusername/mediaq-go/internal/domain"
)

// lineKind classifies one line of yt-dlp output
type lineKind int

const (
	lineOther lineKind = iota
	lineProgress
	linePostProcess
	lineDestination
	lineError
	lineFormats
)

// parsedLine is the interpretation of a single yt-dlp output line
type parsedLine struct {
	kind     lineKind
	progress domain.Progress
	// path is set for destination lines; final is true when it names the post-processed artifact
	path  string
	final bool
	// postProcess is set when the line also announces a post-processing step
	postProcess bool
	// streams is the number of formats yt-dlp will download, set on format lines
	streams int
	text    string
}

var (
	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

	// Textual progress, used when the template is ignored (older yt-dlp builds)
	// [download]  45.0% of ~123.45MiB at  1.23MiB/s ETA 00:12
	textProgressPattern = regexp.MustCompile(`^\[download\]\s+(\d+(?:\.\d+)?)%\s+of\s+~?\s*(\S+)(?:\s+at\s+(\S+))?(?:\s+ETA\s+(\S+))?`)

	mergerPattern       = regexp.MustCompile(`^\[Merger\] Merging formats into "(.+)"$`)
	extractAudioPattern = regexp.MustCompile(`^\[ExtractAudio\] Destination: (.+)$`)
	destinationPattern  = regexp.MustCompile(`^\[download\] Destination: (.+)$`)
	alreadyPattern      = regexp.MustCompile(`^\[download\] (.+) has already been downloaded`)
	moveFilesPattern    = regexp.MustCompile(`^\[MoveFiles\] Moving file ".+" to "(.+)"$`)
	formatsPattern      = regexp.MustCompile(`^\[info\] .+: Downloading \d+ format\(s\): (\S+)$`)
	convertorPattern    = regexp.MustCompile(`^\[VideoConvertor\] Converting video from \S+ to \S+; Destination: (.+)$`)

	postProcessorPrefixes = []string{"[Merger]", "[ExtractAudio]", "[VideoConvertor]", "[FixupM3u8]", "[FixupM4a]", "[FixupStretched]", "[FixupDuplicateMoov]", "[FFmpeg"}

	// mediaPostProcessors are the postprocessors that rewrite the downloaded
	// media. Bookkeeping steps such as MoveFilesAfterDownload are not listed.
	mediaPostProcessors = map[string]bool{
		"Merger":         true,
		"ExtractAudio":   true,
		"VideoConvertor": true,
		"VideoRemuxer":   true,
	}

	sizeUnits = map[string]float64{
		"B": 1, "KiB": 1 << 10, "MiB": 1 << 20, "GiB": 1 << 30, "TiB": 1 << 40,
		"KB": 1e3, "MB": 1e6, "GB": 1e9, "TB": 1e12,
	}
)

// parseOutputLine interprets one line of yt-dlp output
func parseOutputLine(raw string) parsedLine {
	line := strings.TrimSpace(ansiPattern.ReplaceAllString(raw, ""))
	result := parsedLine{kind: lineOther, text: line}

	switch {
	case line == "":
		return result
	case strings.HasPrefix(line, downloadProgressPrefix):
		if p, ok := parseTemplateProgress(strings.TrimSpace(strings.TrimPrefix(line, downloadProgressPrefix))); ok {
			result.kind = lineProgress
			result.progress = p
		}
		return result
	case strings.HasPrefix(line, postprocessProgressPrefix):
		result.kind = linePostProcess
		result.postProcess = transformsMedia(strings.TrimSpace(strings.TrimPrefix(line, postprocessProgressPrefix)))
		return result
	case strings.HasPrefix(line, "ERROR:"):
		result.kind = lineError
		return result
	}

	if m := formatsPattern.FindStringSubmatch(line); m != nil {
		result.kind = lineFormats
		result.streams = len(strings.Split(m[1], "+"))
		return result
	}

	if m := textProgressPattern.FindStringSubmatch(line); m != nil {
		result.kind = lineProgress
		result.progress = parseTextProgress(m)
		return result
	}

	for _, pp := range []struct {
		pattern *regexp.Regexp
		final   bool
	}{
		{mergerPattern, true},
		{extractAudioPattern, true},
		{moveFilesPattern, true},
		{convertorPattern, true},
		{alreadyPattern, false},
		{destinationPattern, false},
	} {
		if m := pp.pattern.FindStringSubmatch(line); m != nil {
			result.kind = lineDestination
			result.path = strings.TrimSpace(m[1])
			result.final = pp.final
			break
		}
	}

	for _, prefix := range postProcessorPrefixes {
		if strings.HasPrefix(line, prefix) {
			result.postProcess = true
			if result.kind == lineOther {
				result.kind = linePostProcess
			}
			break
		}
	}

	return result
}

// transformsMedia reports whether a "status|postprocessor" hook payload
// names a postprocessor that rewrites the media
func transformsMedia(payload string) bool {
	_, name, found := strings.Cut(payload, "|")
	if !found {
		return false
	}
	name = strings.TrimSpace(name)
	return mediaPostProcessors[name] || strings.HasPrefix(name, "Fixup")
}

// parseTemplateProgress parses "downloaded|total|estimate|speed|eta|percent"
func parseTemplateProgress(payload string) (domain.Progress, bool) {
	fields := strings.Split(payload, "|")
	if len(fields) != 6 {
		return domain.Progress{}, false
	}

	var p domain.Progress
	downloaded, hasDownloaded := parseNumber(fields[0])
	if hasDownloaded {
		p.DownloadedBytes = int64(downloaded)
	}

	total, hasTotal := parseNumber(fields[1])
	if !hasTotal {
		total, hasTotal = parseNumber(fields[2])
	}
	if hasTotal && total > 0 {
		t := int64(total)
		p.TotalBytes = &t
	}

	p.Speed = displayField(fields[3])
	p.ETA = displayField(fields[4])

	switch {
	case hasDownloaded && hasTotal && total > 0:
		p.Percent = downloaded / total * 100
	default:
		percent, ok := parseNumber(strings.TrimSuffix(strings.TrimSpace(fields[5]), "%"))
		if !ok {
			return domain.Progress{}, false
		}
		p.Percent = percent
	}

	p.Percent = clampPercent(p.Percent)
	return p, true
}

func parseTextProgress(m []string) domain.Progress {
	var p domain.Progress
	percent, _ := strconv.ParseFloat(m[1], 64)
	p.Percent = clampPercent(percent)

	if total, ok := parseSize(m[2]); ok {
		t := int64(total)
		p.TotalBytes = &t
		p.DownloadedBytes = int64(total * p.Percent / 100)
	}
	p.Speed = displayField(m[3])
	p.ETA = displayField(m[4])
	return p
}

// parseSize converts "123.45MiB" into bytes
func parseSize(s string) (float64, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "~")
	for _, unit := range []string{"KiB", "MiB", "GiB", "TiB", "KB", "MB", "GB", "TB", "B"} {
		if strings.HasSuffix(s, unit) {
			n, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, unit)), 64)
			if err != nil {
				return 0, false
			}
			return n * sizeUnits[unit], true
		}
	}
	return 0, false
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "NA" || s == "None" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// displayField returns nil for yt-dlp's placeholders
func displayField(s string) *string {
	s = strings.TrimSpace(s)
	switch s {
	case "", "NA", "None", "Unknown", "Unknown speed", "Unknown ETA":
		return nil
	}
	return &s
}

func clampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// streamProgress folds per-stream progress into task progress when yt-dlp
// downloads several formats (video+audio) one after another. Each stream
// gets an equal share of the percentage and byte counts accumulate.
type streamProgress struct {
	streams   int
	index     int
	doneBytes int64
	current   domain.Progress
}

func newStreamProgress() *streamProgress {
	return &streamProgress{streams: 1, index: -1}
}

func (s *streamProgress) setStreams(n int) {
	if n > 0 {
		s.streams = n
	}
}

// begin marks the start of the next stream's download
func (s *streamProgress) begin() {
	if s.index >= 0 {
		done := s.current.DownloadedBytes
		if s.current.TotalBytes != nil && *s.current.TotalBytes > done {
			done = *s.current.TotalBytes
		}
		s.doneBytes += done
	}
	s.index++
	s.current = domain.Progress{}
}

// combine converts a sample for the current stream into whole-task progress.
// TotalBytes covers the finished streams plus the current one.
func (s *streamProgress) combine(p domain.Progress) domain.Progress {
	s.current = p
	if s.streams <= 1 {
		return p
	}

	index := s.index
	if index < 0 {
		index = 0
	}
	if index > s.streams-1 {
		index = s.streams - 1
	}

	combined := p
	combined.Percent = clampPercent((float64(index)*100 + p.Percent) / float64(s.streams))
	combined.DownloadedBytes = s.doneBytes + p.DownloadedBytes
	if p.TotalBytes != nil {
		total := s.doneBytes + *p.TotalBytes
		combined.TotalBytes = &total
	}
	return combined
}
