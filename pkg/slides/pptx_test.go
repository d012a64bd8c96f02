package slides

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDeck() *Deck {
	return &Deck{
		Title:   "Acme Proposal",
		Author:  "sales@example.com",
		Created: time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC),
		Slides: []Slide{
			{Title: "Acme Proposal", Body: []Paragraph{Text("2026-04-01")}, Cover: true},
			{Title: "Opening", Body: Lines("Hello <Acme> & team\n- first point\n・second point")},
			{Title: "Empty"},
		},
	}
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	files := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		files[f.Name] = string(b)
	}
	return files
}

func TestDeck_Write_Parts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, testDeck().Write(&buf))

	files := readZip(t, buf.Bytes())
	for _, name := range []string{
		"[Content_Types].xml",
		"_rels/.rels",
		"docProps/app.xml",
		"docProps/core.xml",
		"ppt/presentation.xml",
		"ppt/_rels/presentation.xml.rels",
		"ppt/slideMasters/slideMaster1.xml",
		"ppt/slideLayouts/slideLayout1.xml",
		"ppt/theme/theme1.xml",
		"ppt/slides/slide1.xml",
		"ppt/slides/slide3.xml",
		"ppt/slides/_rels/slide3.xml.rels",
	} {
		assert.Contains(t, files, name)
	}
	assert.NotContains(t, files, "ppt/slides/slide4.xml")

	assert.Contains(t, files["ppt/presentation.xml"], `<p:sldId id="258" r:id="rId5"/>`)
	assert.Contains(t, files["ppt/_rels/presentation.xml.rels"], `Id="rId5"`)
	assert.Contains(t, files["[Content_Types].xml"], "/ppt/slides/slide3.xml")
	assert.Contains(t, files["docProps/core.xml"], "2026-04-01T09:30:00Z")
	assert.Contains(t, files["docProps/app.xml"], "<Slides>3</Slides>")
}

func TestDeck_Write_WellFormedAndEscaped(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, testDeck().Write(&buf))

	files := readZip(t, buf.Bytes())
	for name, body := range files {
		dec := xml.NewDecoder(strings.NewReader(body))
		for {
			_, err := dec.Token()
			if err == io.EOF {
				break
			}
			require.NoError(t, err, name)
		}
	}

	slide := files["ppt/slides/slide2.xml"]
	assert.Contains(t, slide, "Hello &lt;Acme&gt; &amp; team")
	assert.Contains(t, slide, "<a:buChar")
	assert.Contains(t, files["ppt/slides/slide1.xml"], `algn="ctr"`)
	assert.Contains(t, files["ppt/slides/slide3.xml"], "<a:endParaRPr")
}

func TestDeck_Write_NoSlides(t *testing.T) {
	err := (&Deck{Title: "empty"}).Write(io.Discard)
	assert.Error(t, err)
}

func TestDeck_WriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2026", "04", "01", "proposal.pptx")
	size, err := testDeck().WriteFile(path)
	require.NoError(t, err)
	assert.Positive(t, size)
}

func TestLines(t *testing.T) {
	got := Lines("Intro\r\n\n- one\n* two\n  ・three  \n")
	assert.Equal(t, []Paragraph{
		{Text: "Intro"},
		{Text: "one", Bullet: true},
		{Text: "two", Bullet: true},
		{Text: "three", Bullet: true},
	}, got)
	assert.Empty(t, Lines("  \n"))
}
