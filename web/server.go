// Package web serves a dataset to the annotation client and accepts its edits.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/cors"
	goutils "go.viam.com/utils"
	"goji.io"
	"goji.io/pat"

	"github.com/pderoovere/dimo-labeling/config"
	"github.com/pderoovere/dimo-labeling/dataset"
	"github.com/pderoovere/dimo-labeling/logging"
)

// maxRequestBytes bounds the body of a save or pose request.
const maxRequestBytes = 64 << 20

// Options configure RunWeb.
type Options struct {
	// Port to listen on. 0 picks a free port.
	Port int
}

// Server exposes one dataset over HTTP. Loads and saves are serialized so every request sees
// the dataset directory as a whole.
type Server struct {
	mu     sync.Mutex
	cfg    config.Config
	loader *dataset.Loader
	saver  *dataset.Saver
	solver PoseSolver
	logger logging.Logger
}

// NewServer returns a server for the dataset described by cfg. solver answers /pose requests;
// without one /pose reports 501.
func NewServer(cfg config.Config, solver PoseSolver, logger logging.Logger) (*Server, error) {
	cfg.ApplyDefaults()
	loader, err := dataset.NewLoader(cfg, logger.Sublogger("loader"))
	if err != nil {
		return nil, err
	}
	saver, err := dataset.NewSaver(cfg, logger.Sublogger("saver"))
	if err != nil {
		return nil, err
	}
	return &Server{cfg: cfg, loader: loader, saver: saver, solver: solver, logger: logger}, nil
}

// Handler returns the routes of the server. Every route is also reachable under /api, which is
// where the client and the asset URLs expect them.
func (s *Server) Handler() http.Handler {
	mux := goji.NewMux()
	mux.HandleFunc(pat.Get("/load"), s.handleLoad)
	mux.HandleFunc(pat.Post("/load"), s.handleLoad)
	mux.HandleFunc(pat.Post("/save"), s.handleSave)
	mux.HandleFunc(pat.Post("/pose"), s.handlePose)
	mux.Handle(pat.Get("/cdn/*"), http.StripPrefix("/cdn", http.FileServer(http.Dir(s.cfg.Root))))

	root := goji.NewMux()
	root.Handle(pat.New("/api/*"), http.StripPrefix("/api", mux))
	root.Handle(pat.New("/*"), mux)

	corsHandler := cors.AllowAll()
	return corsHandler.Handler(root)
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ds, err := s.loader.Load()
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := toWireDataset(s.cfg.Root, ds)
	s.logger.Debugw("served dataset", "scenes", len(out.Scenes), "parts", len(out.Parts))
	s.writeJSON(w, out)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var scenes []wireScene
	if err := decodeBody(w, r, &scenes); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	parts, err := s.loader.LoadParts()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	toSave := make([]dataset.Scene, 0, len(scenes))
	for _, ws := range scenes {
		scene, err := fromWireScene(ws, parts)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		toSave = append(toSave, scene)
	}
	if err := s.saver.Save(toSave); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, map[string]int{"saved": len(toSave)})
}

func (s *Server) handlePose(w http.ResponseWriter, r *http.Request) {
	if s.solver == nil {
		s.writeError(w, r, errNoSolver)
		return
	}
	var req poseRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	points, pixels, intrinsics, err := parsePoseRequest(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pose, err := s.solver.SolvePose(r.Context(), points, pixels, intrinsics)
	if err != nil {
		s.writeError(w, r, errors.Wrap(err, "solving pose"))
		return
	}
	s.logger.Debugw("solved pose", "correspondences", len(points),
		"reprojection_error", reprojectionError(pose, points, pixels, intrinsics))
	s.writeJSON(w, pose.Flat())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(v); err != nil {
		var syntax *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntax) || errors.As(err, &typeErr) {
			return err
		}
		return newBadRequestError("invalid request body: %v", err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debugw("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		s.logger.Errorw("request failed", "path", r.URL.Path, "error", err)
	} else {
		s.logger.Infow("request rejected", "path", r.URL.Path, "status", code, "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	goutils.UncheckedError(json.NewEncoder(w).Encode(map[string]string{"error": err.Error()}))
}

// RunWeb serves s until ctx is done.
func RunWeb(ctx context.Context, s *Server, options Options, logger logging.Logger) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", options.Port))
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              listener.Addr().String(),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Handler:           s.Handler(),
	}

	stopped := make(chan struct{})
	goutils.PanicCapturingGo(func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("error shutting down", "error", err)
		}
	})

	logger.Infow("serving", "url", fmt.Sprintf("http://%s", listener.Addr().String()), "dataset", s.cfg.Root)
	if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-stopped
	return nil
}
