package generate

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"sync"
	"testing"

	"github.com/JonMunkholm/certgen/internal/canvas"
	"github.com/JonMunkholm/certgen/internal/tabular"
)

// fakeBinder returns the row's Name value as the document body.
type fakeBinder struct {
	prepareErr error
	failRows   map[int]error
	onBind     func(index int)

	mu    sync.Mutex
	bound []int
}

func (f *fakeBinder) Prepare(ctx context.Context) error {
	return f.prepareErr
}

func (f *fakeBinder) Bind(ctx context.Context, index int, row tabular.Row, elements []canvas.Element) ([]byte, error) {
	f.mu.Lock()
	f.bound = append(f.bound, index)
	f.mu.Unlock()
	if f.onBind != nil {
		f.onBind(index)
	}
	if err := f.failRows[index]; err != nil {
		return nil, err
	}
	return []byte("doc:" + row["Name"]), nil
}

func oneField() []canvas.Element {
	return []canvas.Element{{
		ID:   "text-1",
		Kind: canvas.KindText,
		Text: &canvas.TextAttrs{Column: "Name", FontSize: 16, FontFamily: "Inter", Color: "#000000"},
	}}
}

func rows(names ...string) []tabular.Row {
	out := make([]tabular.Row, len(names))
	for i, n := range names {
		out[i] = tabular.Row{"Name": n}
	}
	return out
}

func TestDriver_PreservesRowOrder(t *testing.T) {
	d := NewDriver(nil)
	docs, err := d.Run(context.Background(), Job{
		Elements:   oneField(),
		Rows:       rows("A", "B", "C"),
		NameColumn: "Name",
		Binder:     &fakeBinder{},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var got []string
	for _, doc := range docs {
		got = append(got, string(doc.Data))
	}
	want := []string{"doc:A", "doc:B", "doc:C"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("documents = %v, want %v", got, want)
	}
	if docs[1].Name != "certificate_2_B.pdf" {
		t.Errorf("docs[1].Name = %q", docs[1].Name)
	}

	p := d.Progress()
	if p.Phase != PhaseCompleted || p.Completed != 3 || p.Total != 3 || p.Percent() != 100 {
		t.Errorf("final progress = %+v (percent %d)", p, p.Percent())
	}
}

func TestDriver_NoRowsCompletesImmediately(t *testing.T) {
	tests := []struct {
		name string
		job  Job
	}{
		{"with elements", Job{Elements: oneField()}},
		{"without elements", Job{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDriver(nil)
			docs, err := d.Run(context.Background(), tt.job)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(docs) != 0 {
				t.Errorf("got %d documents, want 0", len(docs))
			}
			if d.Phase() != PhaseCompleted {
				t.Errorf("phase = %s, want completed", d.Phase())
			}
			if got := d.Progress().Percent(); got != 100 {
				t.Errorf("percent = %d, want 100", got)
			}
		})
	}
}

func TestDriver_SkipsFailedRows(t *testing.T) {
	binder := &fakeBinder{failRows: map[int]error{1: errors.New("image decode failed")}}
	d := NewDriver(nil)

	docs, err := d.Run(context.Background(), Job{
		Elements:   oneField(),
		Rows:       rows("A", "B", "C"),
		NameColumn: "Name",
		Binder:     binder,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(docs) != 2 || docs[0].Index != 0 || docs[1].Index != 2 {
		t.Fatalf("documents = %+v", docs)
	}

	res, err := d.Result()
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if len(res.Errors) != 1 || res.Errors[0].Index != 1 || res.Errors[0].Reason != "image decode failed" {
		t.Errorf("row errors = %+v", res.Errors)
	}
	if res.Progress.Failed != 1 || res.Progress.Completed != 3 {
		t.Errorf("progress = %+v", res.Progress)
	}
}

func TestDriver_RunLevelFailures(t *testing.T) {
	tests := []struct {
		name string
		job  Job
		want error
	}{
		{
			name: "no elements",
			job:  Job{Rows: rows("A"), Binder: &fakeBinder{}},
			want: ErrNoElements,
		},
		{
			name: "no binder",
			job:  Job{Elements: oneField(), Rows: rows("A")},
			want: ErrNoBinder,
		},
		{
			name: "template unusable",
			job:  Job{Elements: oneField(), Rows: rows("A"), Binder: &fakeBinder{prepareErr: io.ErrUnexpectedEOF}},
			want: io.ErrUnexpectedEOF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDriver(nil)
			_, err := d.Run(context.Background(), tt.job)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			p := d.Progress()
			if p.Phase != PhaseFailed || p.Error == "" {
				t.Errorf("progress = %+v, want failed with message", p)
			}
		})
	}
}

func TestDriver_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	binder := &fakeBinder{onBind: func(index int) {
		if index == 1 {
			cancel()
		}
	}}
	d := NewDriver(nil)

	_, err := d.Run(ctx, Job{Elements: oneField(), Rows: rows("A", "B", "C", "D"), Binder: binder})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if d.Phase() != PhaseFailed {
		t.Errorf("phase = %s, want failed", d.Phase())
	}
	if len(binder.bound) != 2 {
		t.Errorf("bound rows = %v, want [0 1]", binder.bound)
	}
}

func TestDriver_SingleUse(t *testing.T) {
	d := NewDriver(nil)
	job := Job{Elements: oneField()}
	if _, err := d.Run(context.Background(), job); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if _, err := d.Run(context.Background(), job); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Run err = %v, want ErrAlreadyStarted", err)
	}
}

func TestDriver_ResultBeforeFinish(t *testing.T) {
	if _, err := NewDriver(nil).Result(); !errors.Is(err, ErrNotFinished) {
		t.Errorf("err = %v, want ErrNotFinished", err)
	}
}

func TestDriver_SubscribeSeesTerminalState(t *testing.T) {
	d := NewDriver(nil)
	updates := d.Subscribe()

	go d.Run(context.Background(), Job{Elements: oneField(), Rows: rows("A", "B"), Binder: &fakeBinder{}})

	var last Progress
	for p := range updates {
		if p.Completed < last.Completed {
			t.Errorf("progress went backwards: %d after %d", p.Completed, last.Completed)
		}
		last = p
	}
	if last.Phase != PhaseCompleted || last.Completed != 2 {
		t.Errorf("last update = %+v", last)
	}

	// Late subscribers get the final state and a closed channel.
	late := d.Subscribe()
	p, ok := <-late
	if !ok || p.Phase != PhaseCompleted {
		t.Errorf("late subscriber got %+v, ok=%v", p, ok)
	}
	if _, ok := <-late; ok {
		t.Error("late subscriber channel not closed")
	}
}

func TestDriver_SnapshotIsolation(t *testing.T) {
	elements := oneField()
	data := rows("A")

	binder := &fakeBinder{onBind: func(int) {
		elements[0].Text.Column = "Changed"
		data[0] = tabular.Row{"Name": "Z"}
	}}
	d := NewDriver(nil)
	docs, err := d.Run(context.Background(), Job{Elements: elements, Rows: data, Binder: binder})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(docs[0].Data) != "doc:A" {
		t.Errorf("document = %q, want doc:A", docs[0].Data)
	}
}

func TestProgress_Percent(t *testing.T) {
	tests := []struct {
		p    Progress
		want int
	}{
		{Progress{Phase: PhaseRunning, Total: 0}, 0},
		{Progress{Phase: PhaseCompleted, Total: 0}, 100},
		{Progress{Phase: PhaseRunning, Completed: 1, Total: 3}, 33},
		{Progress{Phase: PhaseRunning, Completed: 2, Total: 4}, 50},
	}
	for _, tt := range tests {
		if got := tt.p.Percent(); got != tt.want {
			t.Errorf("%+v.Percent() = %d, want %d", tt.p, got, tt.want)
		}
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		name   string
		index  int
		row    tabular.Row
		column string
		want   string
	}{
		{"named", 0, tabular.Row{"Name": "Ada Lovelace"}, "Name", "certificate_1_Ada Lovelace.pdf"},
		{"no column", 4, tabular.Row{"Name": "Ada"}, "", "certificate_5_participant.pdf"},
		{"blank value", 1, tabular.Row{"Name": "  "}, "Name", "certificate_2_participant.pdf"},
		{"path characters", 2, tabular.Row{"Name": "../etc/passwd"}, "Name", "certificate_3__etc_passwd.pdf"},
		{"reserved characters", 0, tabular.Row{"Full": `a:b*c?"d"`}, "Full", "certificate_1_a_b_c__d_.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OutputName(tt.index, tt.row, tt.column); got != tt.want {
				t.Errorf("OutputName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestArchive(t *testing.T) {
	docs := []Document{
		{Index: 0, Name: "certificate_1_A.pdf", Data: []byte("first")},
		{Index: 1, Name: "certificate_2_B.pdf", Data: []byte("second")},
	}
	data, err := Archive(docs)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("archive has %d entries, want 2", len(zr.File))
	}
	for i, f := range zr.File {
		if f.Name != docs[i].Name {
			t.Errorf("entry %d name = %q, want %q", i, f.Name, docs[i].Name)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		body, _ := io.ReadAll(rc)
		rc.Close()
		if !bytes.Equal(body, docs[i].Data) {
			t.Errorf("entry %d body = %q, want %q", i, body, docs[i].Data)
		}
	}
}
