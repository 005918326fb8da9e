package main

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func templatePDF(t *testing.T) []byte {
	t.Helper()
	pdf := gofpdf.New("L", "pt", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 24)
	pdf.Text(200, 90, "Certificate of Completion")
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("build template: %v", err)
	}
	return buf.Bytes()
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	for x := 0; x < 20; x++ {
		img.Set(x, 5, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func stubPageCounter(t *testing.T) {
	t.Helper()
	prev := pageCounter
	pageCounter = func(context.Context, []byte) (int, error) { return 1, nil }
	t.Cleanup(func() { pageCounter = prev })
}

const layoutJSON = `{
  "canvas_width": 800,
  "canvas_height": 600,
  "elements": [
    {"kind": "text", "x": 400, "y": 250, "text": {"column": "Name", "font_size": 32}},
    {"kind": "text", "x": 400, "y": 320, "text": {"column": "Course"}},
    {"kind": "signature", "x": 600, "y": 480}
  ]
}`

func TestRunGenerate(t *testing.T) {
	stubPageCounter(t)
	dir := t.TempDir()

	opts := generateOptions{
		Template:   writeFile(t, dir, "cert.pdf", templatePDF(t)),
		Data:       writeFile(t, dir, "people.csv", []byte("name,Course\nAda,Math\nGrace,Compilers\n")),
		Layout:     writeFile(t, dir, "layout.json", []byte(layoutJSON)),
		Signature:  writeFile(t, dir, "sig.png", pngBytes(t)),
		Out:        filepath.Join(dir, "out.zip"),
		NameColumn: "Name",
	}

	var out bytes.Buffer
	if err := runGenerate(context.Background(), opts, &out); err != nil {
		t.Fatalf("runGenerate: %v", err)
	}
	if !strings.Contains(out.String(), "2 of 2 certificates") {
		t.Errorf("summary = %q", out.String())
	}

	zr, err := zip.OpenReader(opts.Out)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	want := []string{"certificate_1_Ada.pdf", "certificate_2_Grace.pdf"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("archive entries = %v, want %v", names, want)
	}
	if _, err := os.Stat(opts.Out + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary archive left behind")
	}
}

func TestRunGenerate_Errors(t *testing.T) {
	stubPageCounter(t)
	dir := t.TempDir()
	tpl := writeFile(t, dir, "cert.pdf", templatePDF(t))
	data := writeFile(t, dir, "people.csv", []byte("Name\nAda\n"))
	layout := writeFile(t, dir, "layout.json", []byte(layoutJSON))

	tests := []struct {
		name    string
		mutate  func(*generateOptions)
		wantErr string
	}{
		{"bad code", func(o *generateOptions) { o.Code = "barcode" }, "invalid --code"},
		{"missing template", func(o *generateOptions) { o.Template = filepath.Join(dir, "nope.pdf") }, "read template"},
		{"template not pdf", func(o *generateOptions) { o.Template = data }, "load template"},
		{"empty layout", func(o *generateOptions) { o.Layout = writeFile(t, dir, "empty.json", []byte("[]")) }, "no elements"},
		{"bad signature", func(o *generateOptions) { o.Signature = data }, "unsupported image format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := generateOptions{Template: tpl, Data: data, Layout: layout, Out: filepath.Join(dir, "out.zip")}
			tt.mutate(&opts)

			err := runGenerate(context.Background(), opts, &bytes.Buffer{})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestRunInspect(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "people.csv", []byte("Name,Course\nAda,Math\nGrace,Compilers\nAlan,Logic\n"))

	var out bytes.Buffer
	if err := runInspect(path, 2, &out); err != nil {
		t.Fatalf("runInspect: %v", err)
	}
	got := out.String()
	for _, want := range []string{"rows:    3", "columns: Name, Course", "Name=Ada  Course=Math", "Name=Grace"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Alan") {
		t.Errorf("printed more rows than asked:\n%s", got)
	}
}

func TestRootCommand_RequiresFlags(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"generate", "--template", "x.pdf"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "required flag") {
		t.Fatalf("err = %v, want missing required flags", err)
	}
}
