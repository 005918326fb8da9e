package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/certgen/internal/audit"
	"github.com/JonMunkholm/certgen/internal/canvas"
	"github.com/JonMunkholm/certgen/internal/pdfgen"
	"github.com/JonMunkholm/certgen/internal/surface"
	"github.com/JonMunkholm/certgen/internal/tabular"
)

// Session is one user's editor state. All fields behind mu.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	lastSeen  time.Time
	store     *canvas.Store
	drag      *canvas.DragController
	surface   *surface.Surface
	pageSize  pdfgen.Size
	table     *tabular.Table
	dataName  string
	images    map[canvas.Kind]*surface.ImageAsset
	canvas    pdfgen.Size
	activeRun string
}

func newSession(id string, canvasSize pdfgen.Size, now time.Time) *Session {
	store := canvas.NewStore()
	return &Session{
		ID:        id,
		CreatedAt: now,
		lastSeen:  now,
		store:     store,
		drag:      canvas.NewDragController(store),
		images:    make(map[canvas.Kind]*surface.ImageAsset),
		canvas:    canvasSize,
	}
}

func (sess *Session) touch(now time.Time) {
	sess.mu.Lock()
	sess.lastSeen = now
	sess.mu.Unlock()
}

func (sess *Session) idleSince() time.Time {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.lastSeen
}

func (sess *Session) close() {
	sess.mu.Lock()
	sess.store.Reset()
	sess.drag.PointerUp()
	sess.table = nil
	sess.images = map[canvas.Kind]*surface.ImageAsset{}
	sess.mu.Unlock()
}

// sampleRow is the row shown in the editor preview. Callers hold mu.
func (sess *Session) sampleRow() tabular.Row {
	if sess.table == nil {
		return nil
	}
	return sess.table.Sample()
}

// templateView describes the surface. Callers hold mu.
func (sess *Session) templateView() *TemplateView {
	state := sess.surface.State()
	if state == nil {
		return nil
	}
	view := &TemplateView{Status: state.Status(), Page: sess.surface.Page()}
	tpl, tplErr := sess.surface.Template()
	if tplErr == nil {
		view.PageCount = tpl.PageCount
		view.Size = tpl.Size()
	}
	if state.Status() == surface.StatusFailed {
		var msg string
		if _, err := state.Wait(context.Background()); err != nil {
			msg = MapError(err).Message
		}
		if tplErr == nil {
			view.Status = surface.StatusLoaded
			view.LastError = msg
		} else {
			view.Error = msg
		}
	}
	return view
}

func (sess *Session) dataSummary(nameColumn string) *DataSummary {
	if sess.table == nil {
		return nil
	}
	col, _ := sess.table.FindColumn(nameColumn)
	return &DataSummary{
		FileName:   sess.dataName,
		Columns:    sess.table.Columns,
		RowCount:   sess.table.Len(),
		NameColumn: col,
	}
}

// newSurface wires template load events into the log and the audit trail.
func (s *Service) newSurface(sessionID string) *surface.Surface {
	ctx := context.Background()
	logger := s.logger(ctx, sessionID)
	return surface.New(surface.Callbacks{
		OnLoadStart: func() {
			logger.Debug("template load started")
		},
		OnLoadSuccess: func(pages int) {
			logger.Info("template loaded", "pages", pages)
			s.record(ctx, audit.Entry{
				Action:    audit.ActionTemplateLoaded,
				SessionID: sessionID,
				Detail:    fmt.Sprintf("%d pages", pages),
			})
		},
		OnLoadError: func(err error) {
			logger.Warn("template load failed", "error", err)
		},
	}, s.opts.PageCounter)
}

// Snapshot returns the full editor state.
func (s *Service) Snapshot(ctx context.Context, id string) (*Snapshot, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	snap := &Snapshot{
		ID:        sess.ID,
		Elements:  sess.store.Elements(),
		Selected:  sess.store.Selected(),
		Canvas:    sess.canvas,
		Template:  sess.templateView(),
		Data:      sess.dataSummary(s.opts.NameColumn),
		Images:    make(map[canvas.Kind]*surface.ImageAsset, len(sess.images)),
		ActiveRun: sess.activeRun,
	}
	if e, ok := sess.store.SelectedElement(); ok {
		snap.SelectionLabel = canvas.SelectionLabel(e)
	}
	state, _ := sess.drag.State()
	snap.Dragging = state == canvas.Dragging
	for k, v := range sess.images {
		snap.Images[k] = v
	}
	return snap, nil
}

// LoadTemplate replaces the session's template with data and waits for the
// load to settle. A failed load leaves the previous template in place.
func (s *Service) LoadTemplate(ctx context.Context, id string, data []byte) (*TemplateView, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}

	state := sess.surface.Load(ctx, data)
	if _, err := state.Wait(ctx); err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}

	// Read the page box now so the editor can map canvas positions onto
	// the page without importing the PDF on every render.
	tpl, err := sess.surface.Template()
	if err != nil {
		return nil, err
	}
	binder := pdfgen.NewBinder(tpl, pdfgen.Size{}, nil, pdfgen.Options{})
	var page pdfgen.Size
	if err := binder.Prepare(ctx); err != nil {
		s.logger(ctx, id).Warn("template page size unavailable", "error", err)
	} else {
		page = binder.PageSize()
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.pageSize = page
	return sess.templateView(), nil
}

// TemplateState returns the state of the latest template load.
func (s *Service) TemplateState(ctx context.Context, id string) (*TemplateView, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if view := sess.templateView(); view != nil {
		return view, nil
	}
	return nil, surface.ErrNoTemplate
}

// SetPage changes the page shown behind the canvas.
func (s *Service) SetPage(ctx context.Context, id string, page int) (*TemplateView, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !sess.surface.SetPage(page) {
		return nil, fmt.Errorf("page %d: %w", page, ErrPageOutOfRange)
	}
	return sess.templateView(), nil
}

// LoadData parses a data file and makes it the session's table. Parsing
// happens outside the session lock; a failed parse leaves the previous
// table in place.
func (s *Service) LoadData(ctx context.Context, id, fileName string, data []byte) (*DataSummary, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}

	table, err := tabular.Parse(fileName, data)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	sess.table = table
	sess.dataName = fileName
	summary := sess.dataSummary(s.opts.NameColumn)
	sess.mu.Unlock()

	s.record(ctx, audit.Entry{
		Action:    audit.ActionDataLoaded,
		SessionID: id,
		Rows:      table.Len(),
		Detail:    fileName,
	})
	s.logger(ctx, id).Info("data loaded", "file", fileName, "columns", len(table.Columns), "rows", table.Len())
	return summary, nil
}

// Preview returns the first n data rows.
func (s *Service) Preview(ctx context.Context, id string, n int) (*DataPreview, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = DefaultPreviewRows
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.table == nil {
		return nil, ErrNoData
	}
	return &DataPreview{
		Columns: sess.table.Columns,
		Rows:    sess.table.Preview(n),
		Total:   sess.table.Len(),
	}, nil
}

// UploadImage stores the signature or seal image and attaches it to every
// element of that kind.
func (s *Service) UploadImage(ctx context.Context, id string, role canvas.Kind, data []byte) (*surface.ImageAsset, error) {
	if !role.IsImage() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}

	asset, err := surface.DecodeImage(data)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.images[role] = asset
	ref := asset.ID
	for _, e := range sess.store.Elements() {
		if e.Kind == role {
			sess.store.Update(e.ID, canvas.Patch{ImageRef: &ref})
		}
	}
	s.logger(ctx, id).Info("image uploaded", "role", role, "format", asset.Format, "width", asset.Width, "height", asset.Height)
	return asset, nil
}

// SetCanvas records the client's canvas size.
func (s *Service) SetCanvas(ctx context.Context, id string, size pdfgen.Size) error {
	if size.W <= 0 || size.H <= 0 {
		return fmt.Errorf("canvas %gx%g: %w", size.W, size.H, ErrInvalidCanvas)
	}
	sess, err := s.session(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.canvas = size
	sess.mu.Unlock()
	return nil
}

// Render returns the canvas visuals for the sample row.
func (s *Service) Render(ctx context.Context, id string) (*RenderView, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	view := &RenderView{
		Canvas:   sess.canvas,
		Visuals:  canvas.RenderAll(sess.store.Elements(), sess.store.Selected(), sess.sampleRow()),
		Selected: sess.store.Selected(),
		Template: sess.templateView(),
	}
	if e, ok := sess.store.SelectedElement(); ok {
		view.SelectionLabel = canvas.SelectionLabel(e)
	}
	if sess.pageSize.W > 0 && sess.pageSize.H > 0 {
		vp := pdfgen.Fit(sess.canvas, sess.pageSize)
		view.Viewport = &vp
	}
	return view, nil
}
