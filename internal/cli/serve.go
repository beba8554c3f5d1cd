package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/refgraph/pkg/errors"
	"github.com/matzehuels/refgraph/pkg/graph"
	"github.com/matzehuels/refgraph/pkg/pipeline"
)

// Server defaults.
const (
	DefaultAddr     = "127.0.0.1:8080"
	DefaultMemoSize = 4096
	shutdownTimeout = 5 * time.Second
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		flags    cycleFlags
		addr     string
		watch    bool
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve read-only graph queries over HTTP",
		Long: `Serve runs one cycle and then answers graph queries over a JSON API.
Prometheus metrics are exposed at /metrics.

With --watch, content changes trigger incremental updates and queries move
to the new graph once it is built.`,
		Example: `  refgraph serve --addr :8080 --watch
  curl localhost:8080/api/v1/deps/file/scenes/level.asset.toml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := newMetrics()
			m.install()

			s, err := c.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			opts := flags.options(s.cfg)
			res, err := s.run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printStats(res)

			srv, err := newServer(s.runner, opts, m, c.Logger)
			if err != nil {
				return err
			}
			return c.serve(cmd.Context(), s, srv, addr, watch, debounce)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", DefaultAddr, "listen address")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-run updates when content changes")
	cmd.Flags().DurationVar(&debounce, "debounce", DefaultDebounce, "quiet period before a watched update runs")
	return cmd
}

// serve runs the HTTP server, and the watcher when asked, until ctx is done
// or one of them fails.
func (c *CLI) serve(ctx context.Context, s *session, srv *server, addr string, watch bool, debounce time.Duration) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		printInfo("Listening on %s", addr)
		if err := hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return hs.Shutdown(sctx)
	})
	if watch {
		g.Go(func() error {
			return c.watchLoop(ctx, s, srv.opts, debounce, func(res *pipeline.Result) {
				c.Logger.Info("graph updated", "run", res.RunID[:8], "nodes", res.Stats.NodeCount, "edges", res.Stats.EdgeCount)
			})
		})
	}
	return g.Wait()
}

// =============================================================================
// server - HTTP query API
// =============================================================================

// graphRunner is the part of pipeline.Runner the server uses.
type graphRunner interface {
	Snapshot() *pipeline.Snapshot
	Execute(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error)
	RequestSizes(nodes ...*graph.Node)
}

// server answers queries against the runner's current snapshot. Analytics
// answers are memoized per snapshot run id.
type server struct {
	runner  graphRunner
	opts    pipeline.Options
	metrics *metrics
	logger  *log.Logger
	memo    *lru.Cache[string, any]
}

func newServer(runner graphRunner, opts pipeline.Options, m *metrics, logger *log.Logger) (*server, error) {
	memo, err := lru.New[string, any](DefaultMemoSize)
	if err != nil {
		return nil, err
	}
	return &server{runner: runner, opts: opts, metrics: m, logger: logger, memo: memo}, nil
}

// Routes builds the router.
func (s *server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/nodes/{type}/*", s.withNode(s.handleNode))
		r.Get("/deps/{type}/*", s.withNode(s.handleDeps))
		r.Get("/refs/{type}/*", s.withNode(s.handleRefs))
		r.Get("/packed/{type}/*", s.withNode(s.handlePacked))
		r.Get("/size/{type}/*", s.withNode(s.handleSize))
		r.Post("/update", s.handleUpdate)
	})
	return r
}

// logRequests attaches a request-scoped logger and records metrics.
func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		logger := s.logger.With("req", middleware.GetReqID(r.Context()))
		next.ServeHTTP(ww, r.WithContext(withLogger(r.Context(), logger)))

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.observeRequest(route, status, time.Since(start))
		logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", status, "took", time.Since(start).Round(time.Microsecond))
	})
}

type nodeHandler func(w http.ResponseWriter, r *http.Request, snap *pipeline.Snapshot, n *graph.Node)

// withNode resolves {type} and the trailing id against the current snapshot.
func (s *server) withNode(h nodeHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := s.runner.Snapshot()
		if snap == nil {
			writeError(w, r, errors.New(errors.ErrCodeNotFound, "no graph built yet"))
			return
		}
		typ, id := chi.URLParam(r, "type"), chi.URLParam(r, "*")
		if id == "" {
			writeError(w, r, errors.New(errors.ErrCodeInvalidID, "empty node id"))
			return
		}
		n, err := snap.GetNode(id, typ)
		if err != nil {
			writeError(w, r, err)
			return
		}
		h(w, r, snap, n)
	}
}

// memoize returns the cached answer for (snapshot, op, node) or computes it.
// compute may decline to cache by returning ok=false.
func (s *server) memoize(snap *pipeline.Snapshot, op string, n *graph.Node, compute func() (v any, ok bool, err error)) (any, error) {
	key := snap.RunID + "|" + op + "|" + n.Key.String()
	if v, ok := s.memo.Get(key); ok {
		return v, nil
	}
	v, ok, err := compute()
	if err != nil {
		return nil, err
	}
	if ok {
		s.memo.Add(key, v)
	}
	return v, nil
}

// =============================================================================
// Responses
// =============================================================================

type statsResponse struct {
	RunID   string    `json:"run_id"`
	BuiltAt time.Time `json:"built_at"`
	Fast    bool      `json:"fast"`
	Nodes   int       `json:"nodes"`
	Edges   int       `json:"edges"`
	Types   []string  `json:"dependency_types"`
}

type nodeResponse struct {
	graph.ExportNode
	Dependencies int `json:"dependencies"`
	Referencers  int `json:"referencers"`
}

type connectionResponse struct {
	Node string `json:"node"`
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
	Hard bool   `json:"hard,omitempty"`
}

type packedResponse struct {
	Node   string `json:"node"`
	Packed bool   `json:"packed"`
}

type sizeResponse struct {
	Node     string `json:"node"`
	OwnSize  int64  `json:"own_size"`
	TreeSize int64  `json:"tree_size"`
	Complete bool   `json:"complete"`
}

type updateResponse struct {
	RunID     string `json:"run_id"`
	Nodes     int    `json:"nodes"`
	Edges     int    `json:"edges"`
	FastBuild bool   `json:"fast_build"`
	Took      string `json:"took"`
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.runner.Snapshot()
	if snap == nil {
		writeError(w, r, errors.New(errors.ErrCodeNotFound, "no graph built yet"))
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		RunID:   snap.RunID,
		BuiltAt: snap.BuiltAt,
		Fast:    snap.Fast,
		Nodes:   snap.Graph.NodeCount(),
		Edges:   snap.Graph.EdgeCount(),
		Types:   snap.Types.IDs(),
	})
}

func (s *server) handleNode(w http.ResponseWriter, r *http.Request, snap *pipeline.Snapshot, n *graph.Node) {
	en := graph.ExportNode{ID: n.ID, Type: n.Type, Name: n.Name, Subtype: n.Subtype}
	en.OwnSize, _ = n.OwnSize()
	if hs, ok := n.HierarchySize(); ok {
		en.HierarchySize = &hs
	} else {
		s.runner.RequestSizes(n)
	}
	writeJSON(w, http.StatusOK, nodeResponse{
		ExportNode:   en,
		Dependencies: len(snap.Dependencies(n)),
		Referencers:  len(snap.Referencers(n)),
	})
}

func (s *server) handleDeps(w http.ResponseWriter, r *http.Request, snap *pipeline.Snapshot, n *graph.Node) {
	writeJSON(w, http.StatusOK, toConnections(snap.Dependencies(n)))
}

func (s *server) handleRefs(w http.ResponseWriter, r *http.Request, snap *pipeline.Snapshot, n *graph.Node) {
	writeJSON(w, http.StatusOK, toConnections(snap.Referencers(n)))
}

func (s *server) handlePacked(w http.ResponseWriter, r *http.Request, snap *pipeline.Snapshot, n *graph.Node) {
	v, err := s.memoize(snap, "packed", n, func() (any, bool, error) {
		packed, err := snap.IsPacked(n)
		return packedResponse{Node: n.Key.String(), Packed: packed}, err == nil, err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *server) handleSize(w http.ResponseWriter, r *http.Request, snap *pipeline.Snapshot, n *graph.Node) {
	v, _ := s.memoize(snap, "size", n, func() (any, bool, error) {
		size, complete := snap.TreeSize(r.Context(), n)
		own, _ := n.OwnSize()
		return sizeResponse{Node: n.Key.String(), OwnSize: own, TreeSize: size, Complete: complete}, complete, nil
	})
	writeJSON(w, http.StatusOK, v)
}

func (s *server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	loggerFromContext(r.Context()).Info("update requested")
	start := time.Now()
	res, err := s.runner.Execute(r.Context(), s.opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updateResponse{
		RunID:     res.RunID,
		Nodes:     res.Stats.NodeCount,
		Edges:     res.Stats.EdgeCount,
		FastBuild: res.Stats.FastBuild,
		Took:      time.Since(start).Round(time.Millisecond).String(),
	})
}

func toConnections(conns []graph.Connection) []connectionResponse {
	out := make([]connectionResponse, len(conns))
	for i, c := range conns {
		out[i] = connectionResponse{
			Node: c.Node.Key.String(),
			Type: c.Type.ID,
			Path: graph.FormatPath(c.Path),
			Hard: c.Type.IsHard,
		}
	}
	return out
}

// =============================================================================
// Encoding
// =============================================================================

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		loggerFromContext(r.Context()).Error("request failed", "err", err)
	}
	code := string(errors.GetCode(err))
	if code == "" {
		code = string(errors.ErrCodeInternal)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: errors.UserMessage(err)})
}

// statusFor maps error codes onto HTTP statuses.
func statusFor(err error) int {
	if errors.IsAborted(err) {
		return http.StatusServiceUnavailable
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeNotFound, errors.ErrCodeNodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidID, errors.ErrCodeConfiguration:
		return http.StatusBadRequest
	case errors.ErrCodeUpdateDenied:
		return http.StatusConflict
	case errors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}
