package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// LoadTranscript reads a transcript file. Caption files (.vtt, .srt) are
// reduced to their cue text and HTML pages to their visible text; anything
// else is read as plain text.
func LoadTranscript(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}

	var text string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vtt", ".srt":
		text = ParseCaptions(string(data))
	case ".html", ".htm":
		text, err = ParseHTML(bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("parse transcript HTML: %w", err)
		}
	default:
		text = strings.ReplaceAll(string(data), "\r\n", "\n")
	}

	text = strings.TrimSpace(strings.TrimPrefix(text, "\ufeff"))
	if text == "" {
		return "", fmt.Errorf("read transcript %s: %w", path, errEmptyTranscript)
	}
	return text, nil
}

// SubjectFromPath derives a human-readable subject from a file name
func SubjectFromPath(path string) string {
	base := filepath.Base(path)
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}

	// De-slugify: replace underscores and hyphens with spaces
	base = strings.ReplaceAll(base, "_", " ")
	base = strings.ReplaceAll(base, "-", " ")
	return strings.TrimSpace(base)
}

var (
	cueTiming = regexp.MustCompile(`^\d{1,2}:\d{2}(:\d{2})?[.,]\d{3}\s+-->`)
	cueIndex  = regexp.MustCompile(`^\d+$`)
	cueTag    = regexp.MustCompile(`</?[^>]+>`)
)

// ParseCaptions extracts the spoken text from WebVTT or SubRip captions.
// Rolling captions repeat the previous line, so consecutive duplicates are
// dropped.
func ParseCaptions(captions string) string {
	captions = strings.ReplaceAll(captions, "\r\n", "\n")

	var (
		lines    []string
		skipping bool // Inside a NOTE, STYLE or REGION block
	)
	raw := strings.Split(captions, "\n")
	for i, line := range raw {
		line = strings.TrimSpace(line)

		// Cue identifiers precede the timing line
		if i+1 < len(raw) && cueTiming.MatchString(strings.TrimSpace(raw[i+1])) {
			continue
		}

		switch {
		case line == "":
			skipping = false
			continue
		case skipping:
			continue
		case strings.HasPrefix(line, "WEBVTT"):
			skipping = true // Header block
			continue
		case strings.HasPrefix(line, "NOTE"), line == "STYLE", line == "REGION":
			skipping = true
			continue
		case cueTiming.MatchString(line), cueIndex.MatchString(line):
			continue
		}

		line = strings.TrimSpace(html.UnescapeString(cueTag.ReplaceAllString(line, "")))
		if line == "" || (len(lines) > 0 && lines[len(lines)-1] == line) {
			continue
		}
		lines = append(lines, line)
	}

	return strings.Join(lines, " ")
}

// ParseHTML extracts the visible text of an HTML page. Block elements end a
// line; script, style and head content is ignored.
func ParseHTML(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)

	var (
		b     strings.Builder
		skip  int
		lines []string
	)
	flush := func() {
		if line := strings.Join(strings.Fields(b.String()), " "); line != "" {
			lines = append(lines, line)
		}
		b.Reset()
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", err
			}
			flush()
			return strings.Join(lines, "\n"), nil

		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if hiddenElements[a] && tt == html.StartTagToken {
				skip++
			}
			if blockElements[a] {
				flush()
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if hiddenElements[a] && skip > 0 {
				skip--
			}
			if blockElements[a] {
				flush()
			}
		}
	}
}

var hiddenElements = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

var blockElements = map[atom.Atom]bool{
	atom.P:          true,
	atom.Div:        true,
	atom.Br:         true,
	atom.Li:         true,
	atom.Tr:         true,
	atom.Td:         true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.Section:    true,
	atom.Article:    true,
	atom.Blockquote: true,
}
