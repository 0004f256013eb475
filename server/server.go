// Package server exposes the graph state over HTTP: mutations, history,
// persistence, a change stream and rendered views.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/TFMV/forcegraph/graph"
	"github.com/TFMV/forcegraph/ingest"
	"github.com/TFMV/forcegraph/models"
	"github.com/TFMV/forcegraph/render"
	"github.com/TFMV/forcegraph/storage"
	"gonum.org/v1/gonum/spatial/r2"
)

// maxUpload bounds request bodies for imports
const maxUpload = 10 << 20

// Simulation is the layout loop the server can start and stop
type Simulation interface {
	Start()
	Stop()
	Running() bool
}

// Config for the server
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	Render       render.OutputOptions
	Placement    ingest.Placement
}

// Server serves one graph state
type Server struct {
	cfg    Config
	state  *graph.State
	sim    Simulation
	store  storage.Store
	logger *slog.Logger
	mux    *http.ServeMux
}

// New wires the routes. sim and store may be nil, which disables the
// corresponding endpoints.
func New(cfg Config, state *graph.State, sim Simulation, store storage.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Placement.Radius <= 0 {
		cfg.Placement = ingest.DefaultPlacement()
	}
	if cfg.Render.Width <= 0 || cfg.Render.Height <= 0 {
		cfg.Render = *render.NewDefaultOptions("svg")
	}
	s := &Server{
		cfg:    cfg,
		state:  state,
		sim:    sim,
		store:  store,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /render", s.handleRender)

	s.mux.HandleFunc("GET /api/graph", s.handleGraph)
	s.mux.HandleFunc("POST /api/nodes", s.handleAddNode)
	s.mux.HandleFunc("GET /api/nodes/{id}", s.handleNode)
	s.mux.HandleFunc("PATCH /api/nodes/{id}", s.handleMoveNode)
	s.mux.HandleFunc("DELETE /api/nodes/{id}", s.handleDeleteNode)
	s.mux.HandleFunc("POST /api/edges", s.handleAddEdge)
	s.mux.HandleFunc("DELETE /api/edges/{id}", s.handleDeleteEdge)

	s.mux.HandleFunc("POST /api/snapshot", s.handleSnapshot)
	s.mux.HandleFunc("POST /api/undo", s.handleUndo)
	s.mux.HandleFunc("POST /api/redo", s.handleRedo)

	s.mux.HandleFunc("POST /api/save", s.handleSave)
	s.mux.HandleFunc("POST /api/load", s.handleLoad)
	s.mux.HandleFunc("POST /api/import", s.handleImport)

	s.mux.HandleFunc("POST /api/simulation/start", s.handleSimulation(true))
	s.mux.HandleFunc("POST /api/simulation/stop", s.handleSimulation(false))
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
}

// Handler returns the HTTP handler with request logging
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("Shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Flush lets the event stream pass through the recorder
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("Request",
			"method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

// nodeView is the wire form of a node
type nodeView struct {
	ID     models.NodeID `json:"id"`
	Label  int           `json:"label"`
	X      float64       `json:"x"`
	Y      float64       `json:"y"`
	VX     float64       `json:"vx"`
	VY     float64       `json:"vy"`
	Radius float64       `json:"radius"`
	Kind   string        `json:"kind"`
	Note   string        `json:"note,omitempty"`
}

func viewNode(n models.Node) nodeView {
	return nodeView{
		ID:     n.ID,
		Label:  n.Label,
		X:      n.Position.X,
		Y:      n.Position.Y,
		VX:     n.Velocity.X,
		VY:     n.Velocity.Y,
		Radius: n.Radius,
		Kind:   n.Kind.String(),
		Note:   n.Note,
	}
}

type graphView struct {
	Nodes    []nodeView    `json:"nodes"`
	Edges    []models.Edge `json:"edges"`
	Revision uint64        `json:"revision"`
	CanUndo  bool          `json:"can_undo"`
	CanRedo  bool          `json:"can_redo"`
	Running  bool          `json:"running"`
}

func (s *Server) view() graphView {
	nodes, edges, rev := s.state.Read()
	v := graphView{
		Nodes:    make([]nodeView, len(nodes)),
		Edges:    edges,
		Revision: rev,
		CanUndo:  s.state.CanUndo(),
		CanRedo:  s.state.CanRedo(),
	}
	for i, n := range nodes {
		v.Nodes[i] = viewNode(n)
	}
	if s.sim != nil {
		v.Running = s.sim.Running()
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, graph.ErrNodeNotFound), errors.Is(err, graph.ErrEdgeNotFound):
		return http.StatusNotFound
	case errors.Is(err, graph.ErrDuplicateEdge):
		return http.StatusConflict
	case errors.Is(err, graph.ErrSelfLoop):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrLoadingFailed):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDecodingFailed), errors.Is(err, storage.ErrInconsistentFiles):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxUpload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	nodes, edges, _ := s.state.Read()
	notes := models.FilterNodes(nodes, func(n models.Node) bool { return n.Kind == models.KindNote })
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"nodes":  len(nodes),
		"notes":  len(notes),
		"edges":  len(edges),
	})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.view())
}

type addNodeRequest struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Note *string `json:"note,omitempty"`
}

func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	var req addNodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pos := r2.Vec{X: req.X, Y: req.Y}

	var n models.Node
	if req.Note != nil {
		n = s.state.AddNote(pos, *req.Note)
	} else {
		n = s.state.AddNode(pos)
	}
	writeJSON(w, http.StatusCreated, viewNode(n))
}

type nodeDetail struct {
	nodeView
	Outgoing []models.Edge `json:"outgoing"`
	Incoming []models.Edge `json:"incoming"`
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	id := models.NodeID(r.PathValue("id"))
	nodes, edges, _ := s.state.Read()
	i := models.IndexOfNode(nodes, id)
	if i < 0 {
		err := fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, nodeDetail{
		nodeView: viewNode(nodes[i]),
		Outgoing: models.FindOutgoingEdges(edges, id),
		Incoming: models.FindIncomingEdges(edges, id),
	})
}

type moveNodeRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (s *Server) handleMoveNode(w http.ResponseWriter, r *http.Request) {
	var req moveNodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id := models.NodeID(r.PathValue("id"))
	if err := s.state.MoveNode(id, r2.Vec{X: req.X, Y: req.Y}); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	n, _ := s.state.Node(id)
	writeJSON(w, http.StatusOK, viewNode(n))
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	if err := s.state.DeleteNode(models.NodeID(r.PathValue("id"))); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addEdgeRequest struct {
	From models.NodeID `json:"from"`
	To   models.NodeID `json:"to"`
}

func (s *Server) handleAddEdge(w http.ResponseWriter, r *http.Request) {
	var req addEdgeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	e, err := s.state.AddEdge(req.From, req.To)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleDeleteEdge(w http.ResponseWriter, r *http.Request) {
	if err := s.state.DeleteEdge(models.EdgeID(r.PathValue("id"))); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.state.Snapshot()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	if !s.state.Undo() {
		writeError(w, http.StatusConflict, errors.New("nothing to undo"))
		return
	}
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	if !s.state.Redo() {
		writeError(w, http.StatusConflict, errors.New("nothing to redo"))
		return
	}
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, errors.New("no store configured"))
		return
	}
	if err := s.state.SaveTo(s.store); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, errors.New("no store configured"))
		return
	}
	if err := s.state.LoadFrom(s.store); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, s.view())
}

// handleImport replaces the graph with an uploaded description. The body is
// either a multipart form with a dataFile field or the raw document, with
// the format taken from the format query parameter or the file extension.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	format := r.URL.Query().Get("format")

	var data []byte
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("dataFile")
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("error retrieving file: %w", err))
			return
		}
		defer file.Close()
		if format == "" {
			format = strings.TrimPrefix(filepath.Ext(header.Filename), ".")
		}
		if data, err = io.ReadAll(file); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	} else {
		var err error
		if data, err = io.ReadAll(r.Body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if format == "" {
		format = "json"
	}

	proc, err := ingest.GetProcessor(format, s.cfg.Placement)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	imp, err := proc.ProcessData(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.state.Import(imp.Nodes, imp.Edges); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.logger.Info("Graph imported", "processor", proc.GetName(), "nodes", len(imp.Nodes), "edges", len(imp.Edges), "skipped", imp.Skipped)
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleSimulation(start bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.sim == nil {
			writeError(w, http.StatusNotImplemented, errors.New("no simulation configured"))
			return
		}
		if start {
			s.sim.Start()
		} else {
			s.sim.Stop()
		}
		writeJSON(w, http.StatusOK, map[string]bool{"running": s.sim.Running()})
	}
}

// handleEvents streams state changes as server-sent events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	// the stream outlives the server write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	changes, cancel := s.state.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			data, err := json.Marshal(change)
			if err != nil {
				s.logger.Error("Failed to encode change", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

var contentTypes = map[string]string{
	"svg":   "image/svg+xml",
	"ascii": "text/plain; charset=utf-8",
	"txt":   "text/plain; charset=utf-8",
	"json":  "application/json",
	"dot":   "text/vnd.graphviz",
	"gv":    "text/vnd.graphviz",
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "svg"
	}

	options := s.cfg.Render
	options.Format = format
	if name := r.URL.Query().Get("palette"); name != "" {
		options.Palette = render.PaletteByName(name)
	}

	output, err := render.Generate(s.state.State(), &options)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.Header().Set("Content-Type", contentTypes[format])
	w.Write(output)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>forcegraph</title>
  <style>
    body { font-family: 'Helvetica Neue', Arial, sans-serif; margin: 0; padding: 20px; background: #f5f5f5; color: #333; }
    .container { max-width: 1000px; margin: 0 auto; background: white; padding: 30px; border-radius: 8px; }
    img { border: 1px solid #eee; }
  </style>
</head>
<body>
  <div class="container">
    <h1>forcegraph</h1>
    <form action="/api/import" method="post" enctype="multipart/form-data">
      <input type="file" name="dataFile" accept=".json,.csv,.log,.txt" required>
      <button type="submit">Import</button>
    </form>
    <p><img id="view" src="/render?format=svg" width="800" height="600" alt="layout"></p>
  </div>
  <script>
    const view = document.getElementById('view');
    new EventSource('/api/events').addEventListener('change', () => {
      view.src = '/render?format=svg&t=' + Date.now();
    });
  </script>
</body>
</html>
`
