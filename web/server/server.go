package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/df07/go-starfield/pkg/config"
	"github.com/df07/go-starfield/pkg/core"
	"github.com/df07/go-starfield/pkg/pipeline"
	"github.com/df07/go-starfield/pkg/scene"
)

// Server streams rendered star-field sequences to web clients
type Server struct {
	port   int
	base   *config.Config
	caches *pipeline.CacheStore
	logger core.Logger
}

// NewServer creates a web server whose renders start from base. Kernel
// caches are shared across requests with the same optics.
func NewServer(port int, base *config.Config, logger core.Logger) *Server {
	if base == nil {
		base = config.Default()
	}
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	return &Server{
		port:   port,
		base:   base,
		caches: pipeline.NewCacheStore(),
		logger: logger,
	}
}

// RenderRequest represents a render request from the client
type RenderRequest struct {
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	Frames       int     `json:"frames"`
	Stars        int     `json:"stars"`        // random field size
	Seed         int     `json:"seed"`         // random field seed
	MaxMagnitude float64 `json:"maxMagnitude"` // faintest random star
	SlewRate     float64 `json:"slewRate"`     // degrees per frame about the camera Y axis
	PSF          bool    `json:"psf"`
}

// parameter limits shared by request parsing and /api/config
var limits = map[string][2]float64{
	"width":        {16, 2048},
	"height":       {16, 2048},
	"frames":       {1, 1000},
	"stars":        {0, 200000},
	"seed":         {0, 1 << 30},
	"maxMagnitude": {-2, 16},
	"slewRate":     {-10, 10},
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir("static/")))
	mux.HandleFunc("/api/render", s.handleRender)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/config", s.handleConfig)
	return mux
}

// Start starts the web server
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Printf("Starting web server on http://localhost%s\n", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":       "ok",
		"kernelCaches": s.caches.Len(),
	})
}

// handleConfig returns the request defaults and limits
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	limitsJSON := make(map[string]map[string]float64, len(limits))
	for k, v := range limits {
		limitsJSON[k] = map[string]float64{"min": v[0], "max": v[1]}
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"defaults": s.defaultRequest(),
		"limits":   limitsJSON,
	})
}

// defaultRequest describes the base configuration as a request
func (s *Server) defaultRequest() RenderRequest {
	field := scene.DefaultRandomFieldConfig()
	if s.base.Scene.RandomField != nil {
		field = *s.base.Scene.RandomField
	}
	return RenderRequest{
		Width:        s.base.Camera.Width,
		Height:       s.base.Camera.Height,
		Frames:       s.base.Scene.Slew.Frames,
		Stars:        field.Count,
		Seed:         int(field.Seed),
		MaxMagnitude: field.MaxMagnitude,
		SlewRate:     s.base.Scene.Slew.Rate[1],
		PSF:          s.base.PSF.Enabled,
	}
}

// parseRenderRequest parses request parameters over the defaults
func (s *Server) parseRenderRequest(r *http.Request) (*RenderRequest, error) {
	q := r.URL.Query()
	req := s.defaultRequest()

	var err error
	if req.Width, err = parseIntParam(q, "width", req.Width); err != nil {
		return nil, err
	}
	if req.Height, err = parseIntParam(q, "height", req.Height); err != nil {
		return nil, err
	}
	if req.Frames, err = parseIntParam(q, "frames", req.Frames); err != nil {
		return nil, err
	}
	if req.Stars, err = parseIntParam(q, "stars", req.Stars); err != nil {
		return nil, err
	}
	if req.Seed, err = parseIntParam(q, "seed", req.Seed); err != nil {
		return nil, err
	}
	if req.MaxMagnitude, err = parseFloatParam(q, "maxMagnitude", req.MaxMagnitude); err != nil {
		return nil, err
	}
	if req.SlewRate, err = parseFloatParam(q, "slewRate", req.SlewRate); err != nil {
		return nil, err
	}
	if v := q.Get("psf"); v != "" {
		if req.PSF, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("invalid psf: %s", v)
		}
	}
	return &req, nil
}

// parseIntParam parses an integer parameter from URL query with validation
func parseIntParam(values url.Values, key string, defaultValue int) (int, error) {
	value := values.Get(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", key, value)
	}
	if lim := limits[key]; float64(parsed) < lim[0] || float64(parsed) > lim[1] {
		return 0, fmt.Errorf("%s must be between %g and %g, got: %d", key, lim[0], lim[1], parsed)
	}
	return parsed, nil
}

// parseFloatParam parses a float parameter from URL query with validation
func parseFloatParam(values url.Values, key string, defaultValue float64) (float64, error) {
	value := values.Get(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", key, value)
	}
	if lim := limits[key]; !(parsed >= lim[0] && parsed <= lim[1]) {
		return 0, fmt.Errorf("%s must be between %g and %g, got: %g", key, lim[0], lim[1], parsed)
	}
	return parsed, nil
}

// requestConfig applies req to a copy of the base configuration
func (s *Server) requestConfig(req *RenderRequest) (*config.Config, error) {
	cfg := *s.base
	cfg.Scene.Emitters = append([]config.EmitterConfig(nil), s.base.Scene.Emitters...)

	field := scene.DefaultRandomFieldConfig()
	if s.base.Scene.RandomField != nil {
		field = *s.base.Scene.RandomField
	}
	field.Count = req.Stars
	field.Seed = uint64(req.Seed)
	field.MaxMagnitude = req.MaxMagnitude
	field.MinMagnitude = min(field.MinMagnitude, req.MaxMagnitude)
	cfg.Scene.RandomField = &field

	cfg.Camera.Width = req.Width
	cfg.Camera.Height = req.Height
	cfg.Scene.Slew.Frames = req.Frames
	cfg.Scene.Slew.Rate = [3]float64{0, req.SlewRate, 0}
	cfg.PSF.Enabled = req.PSF
	// request sizes need not match the occluder mask; kernels are shared
	// through the cache store instead of the cache file
	cfg.Scene.Occluder = nil
	cfg.PSF.CacheFile = ""

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
