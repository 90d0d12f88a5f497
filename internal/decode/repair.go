package decode

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	fencePattern = regexp.MustCompile("```[A-Za-z]*")

	annotationKeyPattern = regexp.MustCompile(`"(?:full_transcript_with_highlights|highlighted_transcript|annotated_transcript|transcript_with_highlights)"\s*:\s*`)

	// fieldBoundary recognises what may follow the closing quote of a string
	// member: the next key, a closer or the end of input
	fieldBoundary = regexp.MustCompile(`^\s*(?:,\s*"[^"\n]{1,80}"\s*:|[}\]]|$)`)
)

// extractObject drops code fences and keeps the text from the first '{' to
// the last '}' (or to the end when no closing brace follows)
func extractObject(text string) string {
	text = fencePattern.ReplaceAllString(text, "")

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return strings.TrimSpace(text)
	}
	end := strings.LastIndexByte(text, '}')
	if end < start {
		return text[start:]
	}
	return text[start : end+1]
}

const (
	outsideString = iota
	asciiString
	curlyString
)

// normalizePunctuation folds typographic punctuation to its ASCII form.
// Curly double quotes become delimiters only where they open a string outside
// any string, or close a string they opened; inside ASCII-delimited strings
// they are kept. Trailing commas before '}' or ']' are removed.
func normalizePunctuation(text string) string {
	runes := []rune(norm.NFC.String(text))

	var b strings.Builder
	b.Grow(len(text))

	state := outsideString
	escaped := false

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if state == outsideString {
			switch {
			case r == '"':
				state = asciiString
				b.WriteRune(r)
			case isCurlyDouble(r):
				state = curlyString
				b.WriteByte('"')
			case isCurlySingle(r):
				b.WriteByte('\'')
			case isNonBreakingSpace(r):
				b.WriteByte(' ')
			case r == ',' && closerFollows(runes, i+1):
			default:
				b.WriteRune(r)
			}
			continue
		}

		switch {
		case escaped:
			escaped = false
			b.WriteRune(r)
		case r == '\\':
			escaped = true
			b.WriteRune(r)
		case r == '"':
			state = outsideString
			b.WriteRune(r)
		case isCurlySingle(r):
			b.WriteByte('\'')
		case state == curlyString && isCurlyDouble(r) && delimiterFollows(runes, i+1):
			state = outsideString
			b.WriteByte('"')
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

func isCurlyDouble(r rune) bool {
	switch r {
	case '“', '”', '„', '‟', '″':
		return true
	}
	return false
}

func isCurlySingle(r rune) bool {
	switch r {
	case '‘', '’', '‚', '‛', '′':
		return true
	}
	return false
}

func isNonBreakingSpace(r rune) bool {
	return r == '\u00a0' || r == '\u2007' || r == '\u202f'
}

// closerFollows reports whether the next non-space rune closes a container
func closerFollows(runes []rune, i int) bool {
	for i < len(runes) && unicode.IsSpace(runes[i]) {
		i++
	}
	return i < len(runes) && (runes[i] == '}' || runes[i] == ']')
}

// delimiterFollows reports whether a quote at i-1 is followed by something
// that can only come after a complete string
func delimiterFollows(runes []rune, i int) bool {
	for i < len(runes) && (runes[i] == ' ' || runes[i] == '\t' || isNonBreakingSpace(runes[i])) {
		i++
	}
	if i == len(runes) {
		return true
	}
	switch runes[i] {
	case ':', ',', '}', ']', '\n', '\r':
		return true
	}
	return false
}

type frameKind uint8

const (
	objectFrame frameKind = iota
	arrayFrame
)

type scanState uint8

const (
	expectKey   scanState = iota // object: key or '}'
	expectColon                  // object: ':' after a key
	expectValue                  // value (or ']' in an array)
	expectNext                   // ',' or a closer
)

type frame struct {
	kind  frameKind
	state scanState
}

// separatorScanner walks the token structure and reports which separator is
// missing in front of each token
type separatorScanner struct {
	stack []frame
}

// before returns the separator to insert ahead of a value token and moves
// the enclosing container to its next state
func (s *separatorScanner) before(isString bool) string {
	if len(s.stack) == 0 {
		return ""
	}
	top := &s.stack[len(s.stack)-1]

	if top.kind == arrayFrame {
		if top.state == expectNext {
			return ","
		}
		top.state = expectNext
		return ""
	}

	switch top.state {
	case expectKey:
		if isString {
			top.state = expectColon
		}
		return ""
	case expectColon:
		top.state = expectNext
		return ":"
	case expectValue:
		top.state = expectNext
		return ""
	default:
		if isString {
			top.state = expectColon
			return ","
		}
		return ""
	}
}

func (s *separatorScanner) push(kind frameKind) {
	state := expectKey
	if kind == arrayFrame {
		state = expectValue
	}
	s.stack = append(s.stack, frame{kind: kind, state: state})
}

func (s *separatorScanner) pop() {
	if len(s.stack) > 0 {
		s.stack = s.stack[:len(s.stack)-1]
	}
}

func (s *separatorScanner) colon() {
	if n := len(s.stack); n > 0 && s.stack[n-1].kind == objectFrame && s.stack[n-1].state == expectColon {
		s.stack[n-1].state = expectValue
	}
}

func (s *separatorScanner) comma() {
	n := len(s.stack)
	if n == 0 || s.stack[n-1].state != expectNext {
		return
	}
	if s.stack[n-1].kind == objectFrame {
		s.stack[n-1].state = expectKey
	} else {
		s.stack[n-1].state = expectValue
	}
}

// insertSeparators inserts a missing ',' between adjacent values or members
// and a missing ':' between a key and its value. Text after the top-level
// value is copied unchanged.
func insertSeparators(text string) string {
	var (
		b       strings.Builder
		scanner separatorScanner
		started bool
	)
	b.Grow(len(text) + 16)

	for i := 0; i < len(text); {
		if started && len(scanner.stack) == 0 {
			b.WriteString(text[i:])
			break
		}

		c := text[i]
		switch {
		case c == '"':
			end := stringEnd(text, i)
			b.WriteString(scanner.before(true))
			b.WriteString(text[i:end])
			i = end
			started = true
			continue
		case c == '{' || c == '[':
			b.WriteString(scanner.before(false))
			if c == '{' {
				scanner.push(objectFrame)
			} else {
				scanner.push(arrayFrame)
			}
			started = true
		case c == '}' || c == ']':
			scanner.pop()
		case c == ':':
			scanner.colon()
		case c == ',':
			scanner.comma()
		case isJSONSpace(c):
		default:
			end := literalEnd(text, i)
			b.WriteString(scanner.before(false))
			b.WriteString(text[i:end])
			i = end
			started = true
			continue
		}

		b.WriteByte(c)
		i++
	}

	return b.String()
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// stringEnd returns the offset just past the string starting at i
func stringEnd(text string, i int) int {
	for j := i + 1; j < len(text); j++ {
		switch text[j] {
		case '\\':
			j++
		case '"':
			return j + 1
		}
	}
	return len(text)
}

// literalEnd returns the offset just past a number or bare word starting at i
func literalEnd(text string, i int) int {
	j := i
	for j < len(text) && !strings.ContainsRune(" \t\r\n,:[]{}\"", rune(text[j])) {
		j++
	}
	if j == i {
		j++
	}
	return j
}

// targetedFix inserts the separator a syntax error reports as missing, at
// the offending byte
func targetedFix(text string, err error) (string, bool) {
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return text, false
	}

	var sep string
	msg := syntaxErr.Error()
	switch {
	case strings.Contains(msg, "after object key:value pair"), strings.Contains(msg, "after array element"):
		sep = ","
	case strings.Contains(msg, "after object key"):
		sep = ":"
	default:
		return text, false
	}

	// Offset counts the offending byte itself
	pos := int(syntaxErr.Offset) - 1
	if pos < 0 || pos > len(text) {
		return text, false
	}
	return text[:pos] + sep + text[pos:], true
}

// stripAnnotationField removes every annotated-transcript member, including
// one whose string value was cut off by truncation
func stripAnnotationField(text string) (string, bool) {
	found := false
	for {
		loc := annotationKeyPattern.FindStringIndex(text)
		if loc == nil {
			return text, found
		}
		found = true

		start, end := loc[0], annotationValueEnd(text, loc[1])
		if p := lastNonSpace(text[:start]); p >= 0 && text[p] == ',' {
			start = p
		} else if n := nextNonSpace(text, end); n < len(text) && text[n] == ',' {
			end = n + 1
		}
		text = text[:start] + text[end:]
	}
}

// annotationValueEnd finds the end of the member value starting at i.
// Annotated transcripts often carry unescaped quotes, so a string only ends
// at a quote followed by a member boundary.
func annotationValueEnd(text string, i int) int {
	if i >= len(text) {
		return len(text)
	}

	switch text[i] {
	case '"':
		for j := i + 1; j < len(text); j++ {
			switch text[j] {
			case '\\':
				j++
			case '"':
				if fieldBoundary.MatchString(text[j+1:]) {
					return j + 1
				}
			}
		}
		return len(text)
	case '{', '[':
		depth := 0
		for j := i; j < len(text); j++ {
			switch text[j] {
			case '"':
				j = stringEnd(text, j) - 1
			case '{', '[':
				depth++
			case '}', ']':
				depth--
				if depth == 0 {
					return j + 1
				}
			}
		}
		return len(text)
	default:
		return literalEnd(text, i)
	}
}

func lastNonSpace(text string) int {
	i := len(text) - 1
	for i >= 0 && isJSONSpace(text[i]) {
		i--
	}
	return i
}

func nextNonSpace(text string, i int) int {
	for i < len(text) && isJSONSpace(text[i]) {
		i++
	}
	return i
}

// balanceClosers terminates an open string and appends the closers of every
// container left open by truncation
func balanceClosers(text string) string {
	var stack []byte
	inString, escaped := false, false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if n := len(stack); n > 0 && stack[n-1] == c {
				stack = stack[:n-1]
			}
		}
	}

	if len(stack) == 0 && !inString {
		return text
	}

	out := text
	if inString {
		if escaped {
			out = out[:len(out)-1]
		}
		out += `"`
	}

	out = strings.TrimRightFunc(out, unicode.IsSpace)
	out = strings.TrimSuffix(out, ",")
	if strings.HasSuffix(out, ":") {
		out += " null"
	}
	for i := len(stack) - 1; i >= 0; i-- {
		out += string(stack[i])
	}
	return out
}
