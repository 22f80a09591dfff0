package chat

import (
	"bytes"
	"os"
	"strings"

	"github.com/alecthomas/chroma"
	"github.com/alecthomas/chroma/formatters"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
)

const chromaStyleName = "dracula"

// segment is a run of reply text: prose, or the body of a fenced block.
type segment struct {
	text  string
	lang  string
	fence string
	code  bool
}

// splitFenced cuts content at fenced code blocks. An unclosed fence is
// treated as prose.
func splitFenced(content string) []segment {
	lines := strings.Split(content, "\n")
	var segments []segment
	var prose []string
	flush := func() {
		if len(prose) > 0 {
			segments = append(segments, segment{text: strings.Join(prose, "\n")})
			prose = nil
		}
	}

	for i := 0; i < len(lines); i++ {
		fence, lang, ok := parseFence(lines[i])
		if !ok {
			prose = append(prose, lines[i])
			continue
		}
		end := findClosingFence(lines, i+1, fence)
		if end == -1 {
			prose = append(prose, lines[i])
			continue
		}
		flush()
		segments = append(segments, segment{
			text:  strings.Join(lines[i+1:end], "\n"),
			lang:  lang,
			fence: fence,
			code:  true,
		})
		i = end
	}
	flush()
	return segments
}

func parseFence(line string) (string, string, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	if len(trimmed) < 3 {
		return "", "", false
	}
	char := trimmed[0]
	if char != '`' && char != '~' {
		return "", "", false
	}
	count := 0
	for count < len(trimmed) && trimmed[count] == char {
		count++
	}
	if count < 3 {
		return "", "", false
	}
	lang := ""
	if parts := strings.Fields(trimmed[count:]); len(parts) > 0 {
		lang = parts[0]
	}
	return trimmed[:count], lang, true
}

func findClosingFence(lines []string, start int, fence string) int {
	for i := start; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if len(trimmed) >= len(fence) && strings.Trim(trimmed, fence[:1]) == "" {
			return i
		}
	}
	return -1
}

// highlightCode colors code for a 256-color terminal. NO_COLOR or any
// formatter failure returns the code unchanged.
func highlightCode(code, lang string) string {
	if code == "" || os.Getenv("NO_COLOR") != "" {
		return code
	}
	iterator, err := resolveLexer(code, lang).Tokenise(nil, code)
	if err != nil {
		return code
	}
	style := styles.Get(chromaStyleName)
	if style == nil {
		style = styles.Fallback
	}
	var buf bytes.Buffer
	if err := formatters.TTY256.Format(&buf, style, iterator); err != nil {
		return code
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func resolveLexer(code, lang string) chroma.Lexer {
	var lexer chroma.Lexer
	if lang = strings.ToLower(strings.TrimSpace(lang)); lang != "" {
		lexer = lexers.Get(lang)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return chroma.Coalesce(lexer)
}
