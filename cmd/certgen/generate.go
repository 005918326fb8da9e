package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/JonMunkholm/certgen/internal/canvas"
	"github.com/JonMunkholm/certgen/internal/generate"
	"github.com/JonMunkholm/certgen/internal/pdfgen"
	"github.com/JonMunkholm/certgen/internal/surface"
	"github.com/JonMunkholm/certgen/internal/tabular"
	"github.com/spf13/cobra"
)

// pageCounter is replaced in tests.
var pageCounter surface.PageCounter = surface.CountPages

type generateOptions struct {
	Template   string
	Data       string
	Layout     string
	Signature  string
	Seal       string
	Out        string
	NameColumn string
	FontDir    string
	Code       string
	Width      float64
	Height     float64
}

func newGenerateCmd() *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one certificate per data row into a ZIP archive",
		Example: `  certgen generate --template cert.pdf --data people.xlsx --layout layout.json \
      --signature sig.png --out certificates.zip`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runGenerate(ctx, opts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Template, "template", "", "PDF certificate template (required)")
	f.StringVar(&opts.Data, "data", "", "Participant list, .xlsx or .csv (required)")
	f.StringVar(&opts.Layout, "layout", "", "Layout JSON exported from the editor (required)")
	f.StringVar(&opts.Signature, "signature", "", "Signature image")
	f.StringVar(&opts.Seal, "seal", "", "Seal image")
	f.StringVarP(&opts.Out, "out", "o", generate.ArchiveName, "Output ZIP path")
	f.StringVar(&opts.NameColumn, "name-column", "Name", "Data column used in output file names")
	f.StringVar(&opts.FontDir, "font-dir", "", "Directory with TrueType files for the editor fonts")
	f.StringVar(&opts.Code, "code", pdfgen.CodeNone, "Verification mark: qr or pdf417")
	f.Float64Var(&opts.Width, "canvas-width", pdfgen.DefaultCanvasWidth, "Editor canvas width, when the layout does not carry one")
	f.Float64Var(&opts.Height, "canvas-height", pdfgen.DefaultCanvasHeight, "Editor canvas height, when the layout does not carry one")

	for _, name := range []string{"template", "data", "layout"} {
		cmd.MarkFlagRequired(name)
	}
	return cmd
}

// runGenerate writes the archive and a summary to out. Row failures are
// reported but do not fail the command unless no document was produced.
func runGenerate(ctx context.Context, opts generateOptions, out io.Writer) error {
	if !pdfgen.ValidCode(opts.Code) {
		return fmt.Errorf("invalid --code %q (must be qr or pdf417)", opts.Code)
	}

	tpl, err := loadTemplate(ctx, opts.Template)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(opts.Data)
	if err != nil {
		return fmt.Errorf("read data: %w", err)
	}
	table, err := tabular.Parse(opts.Data, data)
	if err != nil {
		return err
	}

	layout, err := readLayoutFile(opts.Layout)
	if err != nil {
		return err
	}
	store, err := layout.Store()
	if err != nil {
		return err
	}

	images := make(map[string]*surface.ImageAsset)
	for kind, path := range map[canvas.Kind]string{canvas.KindSignature: opts.Signature, canvas.KindSeal: opts.Seal} {
		if path == "" {
			continue
		}
		asset, err := loadImage(path)
		if err != nil {
			return err
		}
		images[asset.ID] = asset
		for _, e := range store.Elements() {
			if e.Kind == kind {
				store.Update(e.ID, canvas.Patch{ImageRef: &asset.ID})
			}
		}
	}

	size := pdfgen.Size{W: layout.Width, H: layout.Height}
	if size.W <= 0 || size.H <= 0 {
		size = pdfgen.Size{W: opts.Width, H: opts.Height}
	}

	nameColumn := opts.NameColumn
	if col, ok := table.FindColumn(nameColumn); ok {
		nameColumn = col
	}

	driver := generate.NewDriver(slog.Default())
	progress := driver.Subscribe()
	go func() {
		for p := range progress {
			slog.Debug("progress", "completed", p.Completed, "total", p.Total, "percent", p.Percent())
		}
	}()

	docs, err := driver.Run(ctx, generate.Job{
		Elements:   store.Elements(),
		Rows:       table.Rows,
		NameColumn: nameColumn,
		Binder: pdfgen.NewBinder(tpl, size, images, pdfgen.Options{
			FontDir:          opts.FontDir,
			VerificationCode: opts.Code,
			Creator:          "certgen",
		}),
	})
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	res, _ := driver.Result()

	if err := writeArchiveFile(opts.Out, docs); err != nil {
		return err
	}

	fmt.Fprintf(out, "%d of %d certificates written to %s\n", len(docs), table.Len(), opts.Out)
	for _, re := range res.Errors {
		fmt.Fprintf(out, "  row %d (%s): %s\n", re.Index+1, re.Name, re.Reason)
	}
	if len(docs) == 0 && table.Len() > 0 {
		return errors.New("no certificates could be generated")
	}
	return nil
}

func loadTemplate(ctx context.Context, path string) (*surface.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	s := surface.New(surface.Callbacks{}, pageCounter)
	if _, err := s.Load(ctx, data).Wait(ctx); err != nil {
		return nil, fmt.Errorf("load template %s: %w", path, err)
	}
	return s.Template()
}

func readLayoutFile(path string) (*canvas.Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open layout: %w", err)
	}
	defer f.Close()
	layout, err := canvas.ReadLayout(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return layout, nil
}

func loadImage(path string) (*surface.ImageAsset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	asset, err := surface.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return asset, nil
}

// writeArchiveFile writes to a temporary file first so a failed run never
// leaves a truncated archive at path.
func writeArchiveFile(path string, docs []generate.Document) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	if err := generate.WriteArchive(f, docs); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close archive: %w", err)
	}
	return os.Rename(tmp, path)
}
