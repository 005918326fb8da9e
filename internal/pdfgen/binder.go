// Package pdfgen binds one data row onto the certificate template.
//
// Page 1 of the uploaded template is imported as a form XObject and the
// placed fields are drawn over it at the positions the editor shows, mapped
// from canvas pixels to PDF points through a Viewport.
package pdfgen

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/JonMunkholm/certgen/internal/canvas"
	"github.com/JonMunkholm/certgen/internal/surface"
	"github.com/JonMunkholm/certgen/internal/tabular"
	"github.com/boombuler/barcode/qr"
	"github.com/jung-kurt/gofpdf"
	"github.com/jung-kurt/gofpdf/contrib/barcode"
	"github.com/jung-kurt/gofpdf/contrib/gofpdi"
	"golang.org/x/text/encoding/charmap"
)

// ErrTemplateImport is returned when the template page cannot be imported.
var ErrTemplateImport = errors.New("template import failed")

// Verification mark kinds.
const (
	CodeNone   = ""
	CodeQR     = "qr"
	CodePDF417 = "pdf417"
)

// Placement of the verification mark, in points from the bottom-right corner.
const (
	codeMargin   = 12.0
	qrSide       = 48.0
	pdf417Width  = 150.0
	pdf417Height = 40.0
)

// baselineShift moves a baseline so text is vertically centered on its anchor.
const baselineShift = 0.35

// Options tune document output.
type Options struct {
	// FontDir holds TrueType files for the editor font families.
	FontDir string

	// VerificationCode adds a per-certificate mark: CodeNone, CodeQR or CodePDF417.
	VerificationCode string

	// Creator is written to the document info dictionary.
	Creator string

	// Logger receives binder warnings. Nil uses slog.Default().
	Logger *slog.Logger
}

// ValidCode reports whether code is a known verification mark kind.
func ValidCode(code string) bool {
	switch code {
	case CodeNone, CodeQR, CodePDF417:
		return true
	}
	return false
}

// Binder produces one PDF per data row. It is not safe for concurrent use.
type Binder struct {
	template *surface.Template
	canvas   Size
	images   map[string]*surface.ImageAsset
	opts     Options
	fonts    *fontCache

	page     Size
	viewport Viewport
	prepared bool
	lossy    bool
}

// NewBinder returns a binder for tpl. canvasSize is the editor canvas the
// element positions refer to; images maps asset ids to assets.
func NewBinder(tpl *surface.Template, canvasSize Size, images map[string]*surface.ImageAsset, opts Options) *Binder {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Binder{
		template: tpl,
		canvas:   canvasSize,
		images:   images,
		opts:     opts,
		fonts:    newFontCache(opts.FontDir),
	}
}

// PageSize returns the template page size in points. Valid after Prepare.
func (b *Binder) PageSize() Size {
	return b.page
}

// LossyText reports whether any bound text had characters the core fonts
// cannot show.
func (b *Binder) LossyText() bool {
	return b.lossy
}

// Viewport returns the canvas to page mapping. Valid after Prepare.
func (b *Binder) Viewport() Viewport {
	return b.viewport
}

// Prepare imports the template once to check it and read the page size.
func (b *Binder) Prepare(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.template == nil || len(b.template.Data) == 0 {
		return surface.ErrNoTemplate
	}
	if !ValidCode(b.opts.VerificationCode) {
		return fmt.Errorf("unknown verification code kind %q", b.opts.VerificationCode)
	}

	pdf := gofpdf.New("P", "pt", "A4", "")
	_, _, size, err := importTemplate(pdf, b.template.Data)
	if err != nil {
		return err
	}

	b.page = size
	b.viewport = Fit(b.canvas, size)
	b.prepared = true
	return nil
}

// Bind renders row onto the template with the given elements and returns the
// PDF bytes. index is the zero-based row position, used for the verification
// mark.
func (b *Binder) Bind(ctx context.Context, index int, row tabular.Row, elements []canvas.Element) ([]byte, error) {
	if !b.prepared {
		if err := b.Prepare(ctx); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	if b.opts.Creator != "" {
		pdf.SetCreator(b.opts.Creator, true)
	}

	imp, tplID, size, err := importTemplate(pdf, b.template.Data)
	if err != nil {
		return nil, err
	}
	pdf.AddPageFormat("P", gofpdf.SizeType{Wd: size.W, Ht: size.H})
	imp.UseImportedTemplate(pdf, tplID, 0, 0, size.W, size.H)

	d := &drawer{
		binder:     b,
		pdf:        pdf,
		tr:         pdf.UnicodeTranslatorFromDescriptor(""),
		registered: make(map[string]bool),
	}
	for _, v := range canvas.RenderAll(elements, "", row) {
		switch {
		case v.Text != nil:
			if err := d.text(index, v); err != nil {
				return nil, err
			}
		case v.Image != nil:
			d.image(v)
		}
	}

	if b.opts.VerificationCode != CodeNone {
		d.verification(VerificationCode(b.template.ID, index, row))
	}

	if pdf.Err() {
		return nil, fmt.Errorf("render row %d: %w", index+1, pdf.Error())
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write row %d: %w", index+1, err)
	}
	return buf.Bytes(), nil
}

// drawer carries per-document state while a row is drawn.
type drawer struct {
	binder     *Binder
	pdf        *gofpdf.Fpdf
	tr         func(string) string
	registered map[string]bool
}

func (d *drawer) text(index int, v canvas.Visual) error {
	face, err := d.binder.fonts.resolve(v.Text.FontFamily)
	if err != nil {
		return err
	}

	vp := d.binder.viewport
	cx, cy := vp.ToPage(v.Box.Left+v.Box.Width/2, v.Box.Top+v.Box.Height/2)
	size := vp.Length(float64(v.Text.FontSize))

	face.use(d.pdf, d.registered, size)
	d.pdf.SetTextColor(parseHexColor(v.Text.Color))

	s := v.Text.Content
	if face.utf8 == nil {
		d.binder.checkEncodable(index, v.Text.FontFamily, s)
		s = d.tr(s)
	}
	w := d.pdf.GetStringWidth(s)
	d.pdf.Text(cx-w/2, cy+size*baselineShift, s)
	return nil
}

// checkEncodable warns once per binder when s has characters outside
// Windows-1252, which the core fonts replace.
func (b *Binder) checkEncodable(index int, family, s string) {
	if b.lossy {
		return
	}
	if _, err := charmap.Windows1252.NewEncoder().String(s); err == nil {
		return
	}
	b.lossy = true
	b.opts.Logger.Warn("text has characters the built-in fonts cannot show; set FONT_DIR to embed TrueType fonts",
		"row", index+1, "font_family", family)
}

// image draws an attached asset. Elements without an asset draw nothing.
func (d *drawer) image(v canvas.Visual) {
	asset, ok := d.binder.images[v.Image.Ref]
	if !ok || asset == nil {
		return
	}

	opts := gofpdf.ImageOptions{ImageType: asset.PDFType()}
	if !d.registered["img:"+asset.ID] {
		d.pdf.RegisterImageOptionsReader(asset.ID, opts, bytes.NewReader(asset.Data))
		d.registered["img:"+asset.ID] = true
	}

	vp := d.binder.viewport
	x, y := vp.ToPage(v.Box.Left, v.Box.Top)
	d.pdf.ImageOptions(asset.ID, x, y, vp.Length(v.Box.Width), vp.Length(v.Box.Height), false, opts, 0, "")
}

func (d *drawer) verification(code string) {
	page := d.binder.page
	switch d.binder.opts.VerificationCode {
	case CodeQR:
		key := barcode.RegisterQR(d.pdf, code, qr.M, qr.Unicode)
		barcode.Barcode(d.pdf, key, page.W-codeMargin-qrSide, page.H-codeMargin-qrSide, qrSide, qrSide, false)
	case CodePDF417:
		key := barcode.RegisterPdf417(d.pdf, code, 6, 2)
		barcode.Barcode(d.pdf, key, page.W-codeMargin-pdf417Width, page.H-codeMargin-pdf417Height, pdf417Width, pdf417Height, false)
	}
}

// VerificationCode derives a stable identifier for one certificate from the
// template, the row position and the row contents.
func VerificationCode(templateID string, index int, row tabular.Row) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	io.WriteString(h, templateID)
	io.WriteString(h, "\x00"+strconv.Itoa(index))
	for _, k := range keys {
		io.WriteString(h, "\x00"+k+"\x01"+row[k])
	}
	return "CG-" + strings.ToUpper(hex.EncodeToString(h.Sum(nil))[:20])
}

// importTemplate imports page 1 of data into pdf. gofpdi panics on
// unreadable input, so panics are turned into ErrTemplateImport.
func importTemplate(pdf *gofpdf.Fpdf, data []byte) (imp *gofpdi.Importer, tplID int, size Size, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTemplateImport, r)
		}
	}()

	imp = gofpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(data))
	tplID = imp.ImportPageFromStream(pdf, &rs, 1, "/MediaBox")

	if dims, ok := imp.GetPageSizes()[1]; ok {
		if mb, ok := dims["/MediaBox"]; ok {
			size = Size{W: mb["w"], H: mb["h"]}
		}
	}
	if !size.valid() {
		return nil, 0, Size{}, fmt.Errorf("%w: page 1 has no media box", ErrTemplateImport)
	}
	if pdf.Err() {
		return nil, 0, Size{}, fmt.Errorf("%w: %v", ErrTemplateImport, pdf.Error())
	}
	return imp, tplID, size, nil
}
