// Package slides writes simple 16:9 PowerPoint (pptx) decks: one title and
// a list of paragraphs per slide.
package slides

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
)

// Slide dimensions in EMU (English Metric Units), 13.333in x 7.5in.
const (
	SlideWidth  = 12192000
	SlideHeight = 6858000
)

// Paragraph is one line of slide body text.
type Paragraph struct {
	Text   string
	Bullet bool
	Bold   bool
	// Level indents the paragraph; 0 is the outermost level.
	Level int
}

// Slide is a titled slide with body paragraphs. Cover slides center a large
// title above the body.
type Slide struct {
	Title string
	Body  []Paragraph
	Cover bool
}

// Deck is a presentation ready to be written.
type Deck struct {
	Title   string
	Author  string
	Created time.Time
	Slides  []Slide
}

// Text returns a plain paragraph.
func Text(s string) Paragraph { return Paragraph{Text: s} }

// Bullet returns a bulleted paragraph.
func Bullet(s string) Paragraph { return Paragraph{Text: s, Bullet: true} }

// Heading returns a bold paragraph.
func Heading(s string) Paragraph { return Paragraph{Text: s, Bold: true} }

// Lines splits multi-line text into paragraphs, turning "- " and "・" prefixes into bullets.
func Lines(text string) []Paragraph {
	var out []Paragraph
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "):
			out = append(out, Bullet(strings.TrimSpace(trimmed[2:])))
		case strings.HasPrefix(trimmed, "・"):
			out = append(out, Bullet(strings.TrimSpace(strings.TrimPrefix(trimmed, "・"))))
		default:
			out = append(out, Text(trimmed))
		}
	}
	return out
}

// WriteFile writes the deck to path, creating parent directories, and returns its size.
func (d *Deck) WriteFile(path string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return 0, fmt.Errorf("create export directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	if err := d.Write(f); err != nil {
		f.Close()
		_ = os.Remove(path)
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Write encodes the deck as a pptx package.
func (d *Deck) Write(w io.Writer) error {
	if len(d.Slides) == 0 {
		return fmt.Errorf("deck has no slides")
	}
	created := d.Created
	if created.IsZero() {
		created = time.Now()
	}

	parts := []struct {
		name string
		tmpl *template.Template
		data any
	}{
		{"[Content_Types].xml", contentTypesTmpl, d},
		{"_rels/.rels", rootRelsTmpl, nil},
		{"docProps/app.xml", appTmpl, d},
		{"docProps/core.xml", coreTmpl, map[string]any{"Deck": d, "Created": created.UTC().Format(time.RFC3339)}},
		{"ppt/presentation.xml", presentationTmpl, d},
		{"ppt/_rels/presentation.xml.rels", presentationRelsTmpl, d},
		{"ppt/slideMasters/slideMaster1.xml", slideMasterTmpl, nil},
		{"ppt/slideMasters/_rels/slideMaster1.xml.rels", slideMasterRelsTmpl, nil},
		{"ppt/slideLayouts/slideLayout1.xml", slideLayoutTmpl, nil},
		{"ppt/slideLayouts/_rels/slideLayout1.xml.rels", slideLayoutRelsTmpl, nil},
		{"ppt/theme/theme1.xml", themeTmpl, nil},
	}

	zw := zip.NewWriter(w)
	for _, p := range parts {
		if err := writePart(zw, p.name, p.tmpl, p.data); err != nil {
			return err
		}
	}
	for i, s := range d.Slides {
		n := i + 1
		if err := writePart(zw, fmt.Sprintf("ppt/slides/slide%d.xml", n), slideTmpl, s.layout()); err != nil {
			return err
		}
		if err := writePart(zw, fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", n), slideRelsTmpl, nil); err != nil {
			return err
		}
	}
	return zw.Close()
}

type paragraphView struct {
	Paragraph
	Size   int
	Center bool
}

type textBox struct {
	ID         int
	Name       string
	X, Y, W, H int
	Anchor     string
	Paragraphs []paragraphView
}

type slideView struct {
	Boxes []textBox
}

const margin = 457200

// layout places the title and body text boxes. Font sizes are in hundredths of a point.
func (s Slide) layout() slideView {
	width := SlideWidth - 2*margin
	title := textBox{ID: 2, Name: "Title", X: margin, Y: 304800, W: width, H: 914400, Anchor: "b"}
	body := textBox{ID: 3, Name: "Body", X: margin, Y: 1371600, W: width, H: SlideHeight - 1371600 - margin, Anchor: "t"}
	titleSize, bodySize := 3200, 1800
	if s.Cover {
		title.Y, title.H = 2057400, 1371600
		body.Y, body.H = 3581400, 1600200
		titleSize, bodySize = 4400, 2000
	}
	title.Paragraphs = []paragraphView{{Paragraph: Paragraph{Text: s.Title, Bold: true}, Size: titleSize, Center: s.Cover}}
	for _, p := range s.Body {
		size := bodySize
		if p.Level > 0 {
			size -= 200
		}
		body.Paragraphs = append(body.Paragraphs, paragraphView{Paragraph: p, Size: size, Center: s.Cover})
	}
	return slideView{Boxes: []textBox{title, body}}
}

func writePart(zw *zip.Writer, name string, tmpl *template.Template, data any) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	f, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	_, err = f.Write(buf.Bytes())
	return err
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

var funcs = template.FuncMap{
	"x":   escape,
	"add": func(a, b int) int { return a + b },
	"indent": func(level int) int {
		return 342900 * (level + 1)
	},
}

func mustParse(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(funcs).Parse(text))
}
