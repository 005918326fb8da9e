package pdfgen

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// serifFamilies fall back to Times when no TrueType file is available.
var serifFamilies = map[string]bool{
	"Merriweather":     true,
	"Playfair Display": true,
}

// fontFace is how an editor font family is realized in the PDF.
type fontFace struct {
	family string // name registered with gofpdf
	utf8   []byte // TrueType bytes, nil for a core font
}

// fontCache resolves editor families against an optional font directory.
// Resolution happens once per family; documents register the result.
type fontCache struct {
	dir   string
	faces map[string]fontFace
}

func newFontCache(dir string) *fontCache {
	return &fontCache{dir: dir, faces: make(map[string]fontFace)}
}

// resolve returns the face for family. A file named "<Family>-Regular.ttf" or
// "<Family>.ttf" (spaces removed) in the font directory is embedded as a
// UTF-8 font; otherwise a core font is used.
func (c *fontCache) resolve(family string) (fontFace, error) {
	if f, ok := c.faces[family]; ok {
		return f, nil
	}

	face := fontFace{family: "Helvetica"}
	if serifFamilies[family] {
		face.family = "Times"
	}

	if c.dir != "" {
		base := strings.ReplaceAll(family, " ", "")
		for _, name := range []string{base + "-Regular.ttf", base + ".ttf"} {
			data, err := os.ReadFile(filepath.Join(c.dir, name))
			if err == nil {
				face = fontFace{family: base, utf8: data}
				break
			}
			if !os.IsNotExist(err) {
				return fontFace{}, fmt.Errorf("read font %s: %w", name, err)
			}
		}
	}

	c.faces[family] = face
	return face, nil
}

// use registers face with pdf on first use and selects it at size points.
// registered tracks the families already added to this document.
func (f fontFace) use(pdf *gofpdf.Fpdf, registered map[string]bool, size float64) {
	if f.utf8 != nil && !registered[f.family] {
		pdf.AddUTF8FontFromBytes(f.family, "", f.utf8)
		registered[f.family] = true
	}
	pdf.SetFont(f.family, "", size)
}

// parseHexColor converts "#rrggbb" into RGB components. Anything else is black.
func parseHexColor(s string) (r, g, b int) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}
