package epub

import (
	"fmt"
	"strings"
)

// generateNavigation creates the nav.xhtml table of contents, nesting
// chapters under their volume when the volume carries a title.
func (b *Builder) generateNavigation() string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head>
  <title>Table of Contents</title>
  <link rel="stylesheet" type="text/css" href="styles/style.css"/>
</head>
<body>
  <nav epub:type="toc" id="toc">
    <h1>Table of Contents</h1>
    <ol>
`)

	for _, v := range b.volumes {
		if v.Title == "" {
			for _, ch := range v.Chapters {
				sb.WriteString(navEntry(ch))
			}
			continue
		}
		sb.WriteString(fmt.Sprintf("      <li>\n        <span>%s</span>\n", escapeXML(v.Title)))
		if len(v.Chapters) > 0 {
			sb.WriteString("        <ol>\n")
			for _, ch := range v.Chapters {
				sb.WriteString("          ")
				sb.WriteString(navEntry(ch))
			}
			sb.WriteString("        </ol>\n")
		}
		sb.WriteString("      </li>\n")
	}

	sb.WriteString(`    </ol>
  </nav>
</body>
</html>
`)

	return sb.String()
}

func navEntry(ch Chapter) string {
	return fmt.Sprintf("      <li><a href=\"chapters/%s.xhtml\">%s</a></li>\n",
		ch.ID, escapeXML(ch.Title))
}

// generateNCX creates toc.ncx for EPUB 2 reader compatibility.
func (b *Builder) generateNCX() string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <head>
    <meta name="dtb:uid" content="`)
	sb.WriteString(b.generateUUID())
	sb.WriteString(`"/>
    <meta name="dtb:depth" content="2"/>
    <meta name="dtb:totalPageCount" content="0"/>
    <meta name="dtb:maxPageNumber" content="0"/>
  </head>
  <docTitle>
    <text>`)
	sb.WriteString(escapeXML(b.book.Title))
	sb.WriteString(`</text>
  </docTitle>
  <navMap>
`)

	i := 0
	for _, ch := range b.allChapters() {
		i++
		sb.WriteString(fmt.Sprintf("    <navPoint id=\"navpoint-%d\" playOrder=\"%d\">\n", i, i))
		sb.WriteString(fmt.Sprintf("      <navLabel><text>%s</text></navLabel>\n", escapeXML(ch.Title)))
		sb.WriteString(fmt.Sprintf("      <content src=\"chapters/%s.xhtml\"/>\n", ch.ID))
		sb.WriteString("    </navPoint>\n")
	}

	sb.WriteString(`  </navMap>
</ncx>
`)

	return sb.String()
}
