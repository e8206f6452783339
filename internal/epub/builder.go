// Package epub generates EPUB 3 archives from a book's repaired catalog
// and downloaded chapters: generic packaging, as opposed to per-site
// rendering.
package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Book carries the package-level metadata for one EPUB.
type Book struct {
	ID         string
	Title      string
	Author     string
	Language   string // ISO 639-1 code, defaults to "en"
	Publisher  string
	CoverImage string // optional path to a PNG/JPEG cover image on disk
	CreatedAt  time.Time
}

// Chapter is one chapter's exported content: Content is plain text with
// "\n" paragraph breaks (model.Chapter.Content), not markdown.
type Chapter struct {
	ID      string
	Title   string
	Content string
}

// Volume groups chapters under a titled section, mirroring
// model.Volume; an empty Title flattens the group in the nav (no
// container <li>).
type Volume struct {
	Title    string
	Chapters []Chapter
}

// Builder assembles an EPUB 3 archive from a Book and its Volumes.
type Builder struct {
	book    Book
	volumes []Volume
}

// NewBuilder creates a Builder for book over volumes, in catalog order.
func NewBuilder(book Book, volumes []Volume) *Builder {
	return &Builder{book: book, volumes: volumes}
}

// allChapters flattens the volumes into catalog (spine) order.
func (b *Builder) allChapters() []Chapter {
	var all []Chapter
	for _, v := range b.volumes {
		all = append(all, v.Chapters...)
	}
	return all
}

// Build generates the EPUB and writes it to outputPath, creating parent
// directories as needed.
func (b *Builder) Build(outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("epub: create output directory: %w", err)
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("epub: create output file: %w", err)
	}
	defer f.Close()
	return b.WriteTo(f)
}

// BuildToBuffer generates the EPUB into an in-memory buffer.
func (b *Builder) BuildToBuffer() (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	if err := b.WriteTo(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteTo writes the full EPUB 3 archive to w.
func (b *Builder) WriteTo(w io.Writer) error {
	zw := zip.NewWriter(w)
	defer zw.Close()

	if err := b.writeMimetype(zw); err != nil {
		return err
	}
	if err := b.writeContainer(zw); err != nil {
		return err
	}
	if err := b.writePackage(zw); err != nil {
		return err
	}
	if err := b.writeNavigation(zw); err != nil {
		return err
	}
	if err := b.writeNCX(zw); err != nil {
		return err
	}
	if err := b.writeStylesheet(zw); err != nil {
		return err
	}
	if b.book.CoverImage != "" {
		if err := b.writeCoverImage(zw); err != nil {
			return fmt.Errorf("epub: write cover image: %w", err)
		}
	}
	for _, ch := range b.allChapters() {
		if err := b.writeChapter(zw, ch); err != nil {
			return fmt.Errorf("epub: write chapter %s: %w", ch.ID, err)
		}
	}
	return nil
}

func (b *Builder) writeMimetype(zw *zip.Writer) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return fmt.Errorf("epub: create mimetype: %w", err)
	}
	_, err = w.Write([]byte("application/epub+zip"))
	return err
}

func (b *Builder) writeContainer(zw *zip.Writer) error {
	const content = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`
	w, err := zw.Create("META-INF/container.xml")
	if err != nil {
		return fmt.Errorf("epub: create container.xml: %w", err)
	}
	_, err = w.Write([]byte(content))
	return err
}

func (b *Builder) writePackage(zw *zip.Writer) error {
	w, err := zw.Create("OEBPS/content.opf")
	if err != nil {
		return fmt.Errorf("epub: create content.opf: %w", err)
	}
	_, err = w.Write([]byte(b.generatePackage()))
	return err
}

func (b *Builder) writeNavigation(zw *zip.Writer) error {
	w, err := zw.Create("OEBPS/nav.xhtml")
	if err != nil {
		return fmt.Errorf("epub: create nav.xhtml: %w", err)
	}
	_, err = w.Write([]byte(b.generateNavigation()))
	return err
}

func (b *Builder) writeNCX(zw *zip.Writer) error {
	w, err := zw.Create("OEBPS/toc.ncx")
	if err != nil {
		return fmt.Errorf("epub: create toc.ncx: %w", err)
	}
	_, err = w.Write([]byte(b.generateNCX()))
	return err
}

func (b *Builder) writeStylesheet(zw *zip.Writer) error {
	w, err := zw.Create("OEBPS/styles/style.css")
	if err != nil {
		return fmt.Errorf("epub: create style.css: %w", err)
	}
	_, err = w.Write([]byte(defaultStylesheet))
	return err
}

func (b *Builder) writeCoverImage(zw *zip.Writer) error {
	data, err := os.ReadFile(b.book.CoverImage)
	if err != nil {
		return fmt.Errorf("epub: read cover image %s: %w", b.book.CoverImage, err)
	}
	ext := strings.ToLower(filepath.Ext(b.book.CoverImage))
	w, err := zw.Create("OEBPS/images/cover" + ext)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func coverMediaType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

func (b *Builder) writeChapter(zw *zip.Writer, ch Chapter) error {
	filename := fmt.Sprintf("OEBPS/chapters/%s.xhtml", ch.ID)
	w, err := zw.Create(filename)
	if err != nil {
		return err
	}
	_, err = w.Write([]byte(b.generateChapterXHTML(ch)))
	return err
}

func (b *Builder) generateUUID() string {
	if b.book.ID != "" {
		return "urn:uuid:" + b.book.ID
	}
	return "urn:uuid:" + uuid.New().String()
}

const defaultStylesheet = `body {
  font-family: Georgia, "Times New Roman", serif;
  font-size: 1em;
  line-height: 1.6;
  margin: 1em;
  text-align: justify;
}

h1, h2 {
  font-family: "Helvetica Neue", Helvetica, Arial, sans-serif;
  font-weight: bold;
  margin-top: 1.5em;
  margin-bottom: 0.5em;
  text-align: left;
}

h1 {
  font-size: 1.8em;
  border-bottom: 1px solid #ccc;
  padding-bottom: 0.3em;
}

p {
  margin: 0.5em 0;
  text-indent: 1.5em;
}

p:first-of-type {
  text-indent: 0;
}
`
