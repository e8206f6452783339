package epub

import (
	"fmt"
	"strings"
	"time"
)

// generatePackage creates the content.opf package document.
func (b *Builder) generatePackage() string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="pub-id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
`)

	sb.WriteString(fmt.Sprintf("    <dc:identifier id=\"pub-id\">%s</dc:identifier>\n", b.generateUUID()))
	sb.WriteString(fmt.Sprintf("    <dc:title>%s</dc:title>\n", escapeXML(b.book.Title)))
	sb.WriteString(fmt.Sprintf("    <dc:creator>%s</dc:creator>\n", escapeXML(b.book.Author)))

	lang := b.book.Language
	if lang == "" {
		lang = "en"
	}
	sb.WriteString(fmt.Sprintf("    <dc:language>%s</dc:language>\n", lang))

	if b.book.Publisher != "" {
		sb.WriteString(fmt.Sprintf("    <dc:publisher>%s</dc:publisher>\n", escapeXML(b.book.Publisher)))
	}

	sb.WriteString(fmt.Sprintf("    <meta property=\"dcterms:modified\">%s</meta>\n",
		b.modifiedTimestamp()))

	if b.book.CoverImage != "" {
		sb.WriteString("    <meta name=\"cover\" content=\"cover-image\"/>\n")
	}

	sb.WriteString("  </metadata>\n\n")

	sb.WriteString("  <manifest>\n")
	sb.WriteString("    <item id=\"nav\" href=\"nav.xhtml\" media-type=\"application/xhtml+xml\" properties=\"nav\"/>\n")
	sb.WriteString("    <item id=\"ncx\" href=\"toc.ncx\" media-type=\"application/x-dtbncx+xml\"/>\n")
	sb.WriteString("    <item id=\"style\" href=\"styles/style.css\" media-type=\"text/css\"/>\n")

	if b.book.CoverImage != "" {
		ext := coverExt(b.book.CoverImage)
		sb.WriteString(fmt.Sprintf("    <item id=\"cover-image\" href=\"images/cover%s\" media-type=\"%s\" properties=\"cover-image\"/>\n",
			ext, coverMediaType(b.book.CoverImage)))
	}

	for _, ch := range b.allChapters() {
		sb.WriteString(fmt.Sprintf("    <item id=\"%s\" href=\"chapters/%s.xhtml\" media-type=\"application/xhtml+xml\"/>\n",
			ch.ID, ch.ID))
	}

	sb.WriteString("  </manifest>\n\n")

	sb.WriteString("  <spine toc=\"ncx\">\n")
	for _, ch := range b.allChapters() {
		sb.WriteString(fmt.Sprintf("    <itemref idref=\"%s\"/>\n", ch.ID))
	}
	sb.WriteString("  </spine>\n")
	sb.WriteString("</package>\n")

	return sb.String()
}

// modifiedTimestamp returns book.CreatedAt (set by the caller, never
// time.Now, to keep archive generation deterministic) formatted for
// dcterms:modified, defaulting to the Unix epoch if unset.
func (b *Builder) modifiedTimestamp() string {
	t := b.book.CreatedAt
	if t.IsZero() {
		t = time.Unix(0, 0)
	}
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

func coverExt(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[i:]
		}
	}
	return ""
}

// escapeXML escapes the five predefined XML entities.
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
