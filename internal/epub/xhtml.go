package epub

import (
	"regexp"
	"strings"
)

// generateChapterXHTML renders one chapter's title and plain-text,
// "\n"-paragraph-delimited content (model.Chapter.Content) as XHTML.
func (b *Builder) generateChapterXHTML(ch Chapter) string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <title>`)
	sb.WriteString(escapeXML(ch.Title))
	sb.WriteString(`</title>
  <link rel="stylesheet" type="text/css" href="../styles/style.css"/>
</head>
<body>
`)
	sb.WriteString("<h1>")
	sb.WriteString(escapeXML(ch.Title))
	sb.WriteString("</h1>\n")
	sb.WriteString(contentToXHTML(ch.Content))
	sb.WriteString("\n</body>\n</html>\n")

	return sb.String()
}

// contentToXHTML wraps each non-blank "\n"-delimited line in its own
// <p>, escaping and applying the small set of inline emphasis markers
// (**bold**, *italic*) a site's parser may have left in plain text.
func contentToXHTML(content string) string {
	if content == "" {
		return ""
	}
	var sb strings.Builder
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		sb.WriteString("<p>")
		sb.WriteString(processInlineFormatting(trimmed))
		sb.WriteString("</p>\n")
	}
	return sb.String()
}

var (
	boldRe   = regexp.MustCompile(`\*\*(.+?)\*\*|__(.+?)__`)
	italicRe = regexp.MustCompile(`\*([^*]+)\*|_([^_]+)_`)
)

// processInlineFormatting escapes XML then applies bold/italic markup.
func processInlineFormatting(text string) string {
	text = escapeXML(text)
	text = boldRe.ReplaceAllStringFunc(text, func(m string) string {
		return "<strong>" + strings.Trim(m, "*_") + "</strong>"
	})
	text = italicRe.ReplaceAllStringFunc(text, func(m string) string {
		return "<em>" + strings.Trim(m, "*_") + "</em>"
	})
	return text
}
