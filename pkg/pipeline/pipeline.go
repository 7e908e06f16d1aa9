// Package pipeline wires a configuration into a ready-to-run sequence
// renderer: camera, PSF kernel cache, radius estimator, scene and compositor.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/df07/go-starfield/pkg/camera"
	"github.com/df07/go-starfield/pkg/config"
	"github.com/df07/go-starfield/pkg/core"
	"github.com/df07/go-starfield/pkg/psf"
	"github.com/df07/go-starfield/pkg/renderer"
	"github.com/df07/go-starfield/pkg/scene"
)

// CacheStore shares built kernel caches between pipelines with the same
// optics. It is safe for concurrent use.
type CacheStore struct {
	mu     sync.Mutex
	caches map[string]*psf.Cache
}

// NewCacheStore creates an empty store
func NewCacheStore() *CacheStore {
	return &CacheStore{caches: make(map[string]*psf.Cache)}
}

// Len returns the number of stored caches
func (s *CacheStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.caches)
}

func (s *CacheStore) get(key string) *psf.Cache {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caches[key]
}

func (s *CacheStore) put(key string, cache *psf.Cache) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caches[key] = cache
}

// cacheKey identifies everything the kernels depend on. It doubles as the
// fingerprint stored in cache files, so it leaves out where the file lives.
func cacheKey(cfg *config.Config, bins core.SpectralBins) string {
	settings := cfg.PSF
	settings.CacheFile = ""
	return fmt.Sprintf("%+v|%+v|%v", cfg.Camera, settings, bins)
}

// Pipeline is a configured render
type Pipeline struct {
	Config    *config.Config
	Bins      core.SpectralBins
	Camera    *camera.Camera
	Scene     *scene.Scene
	Slew      *scene.Slew
	Estimator renderer.RadiusEstimator // nil renders full kernels
	Renderer  *renderer.SequenceRenderer
}

// New builds a pipeline. Kernel caches come from store when it holds a match,
// then from the configured cache file, and are built otherwise. store may be nil.
func New(ctx context.Context, cfg *config.Config, store *CacheStore, logger core.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = core.NopLogger{}
	}
	bins, err := cfg.Bins()
	if err != nil {
		return nil, err
	}
	cam, err := camera.New(cfg.CameraConfig())
	if err != nil {
		return nil, err
	}

	p := &Pipeline{Config: cfg, Bins: bins, Camera: cam}
	if cfg.PSF.Enabled {
		if err := p.setupKernelCache(ctx, store, logger); err != nil {
			return nil, err
		}
		if cfg.Radius.Threshold > 0 {
			est, err := cam.RadiusEstimator(bins, cfg.Radius.Threshold, cfg.Radius.MinRadius)
			if err != nil {
				return nil, err
			}
			p.Estimator = est
		}
	}

	if p.Scene, err = cfg.BuildScene(bins, logger); err != nil {
		return nil, err
	}
	if p.Slew, err = cfg.BuildSlew(p.Scene); err != nil {
		return nil, err
	}
	logger.Printf("Scene: %d stars, %d emitters over %d frames\n", len(p.Scene.Stars), len(p.Scene.Emitters), p.Slew.Frames())

	compositor := renderer.NewCompositor(cam, cfg.CompositorConfig(), logger)
	p.Renderer, err = renderer.NewSequenceRenderer(compositor, p.Slew, p.Estimator, renderer.SequenceConfig{
		Width:      cam.Width(),
		Height:     cam.Height(),
		Channels:   len(bins),
		WithDepth:  p.Slew.Occluder != nil,
		BufferSize: 2,
	}, logger)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// setupKernelCache attaches a kernel cache to the camera, building and
// persisting it when no stored or saved cache matches.
func (p *Pipeline) setupKernelCache(ctx context.Context, store *CacheStore, logger core.Logger) error {
	cfg := p.Config
	key := cacheKey(cfg, p.Bins)
	if store != nil {
		if cache := store.get(key); cache != nil {
			return p.Camera.SetKernelCache(cache)
		}
	}

	path := cfg.PSF.CacheFile
	if path != "" {
		cache, err := LoadKernelCache(path)
		switch {
		case err == nil && cache.Fingerprint() == key && cache.Channels() == len(p.Bins):
			logger.Printf("Loaded PSF cache from %s\n", path)
			return p.attach(store, key, cache)
		case err == nil:
			logger.Printf("Warning: PSF cache %s does not match the configuration, rebuilding\n", path)
		case !errors.Is(err, os.ErrNotExist):
			logger.Printf("Warning: ignoring unreadable PSF cache %s: %v\n", path, err)
		}
	}

	startTime := time.Now()
	if err := p.Camera.UseAperturePSF(ctx, cfg.PSF.Radius, cfg.PSF.Banks, p.Bins, cfg.BuildConfig(logger)); err != nil {
		return fmt.Errorf("building PSF cache: %w", err)
	}
	logger.Printf("Built PSF cache (R=%d, B=%d) in %v\n", cfg.PSF.Radius, cfg.PSF.Banks, time.Since(startTime))

	cache := p.Camera.KernelCache()
	cache.SetFingerprint(key)
	if store != nil {
		store.put(key, cache)
	}
	if path == "" {
		return nil
	}
	return SaveKernelCache(path, cache)
}

func (p *Pipeline) attach(store *CacheStore, key string, cache *psf.Cache) error {
	if err := p.Camera.SetKernelCache(cache); err != nil {
		return err
	}
	if store != nil {
		store.put(key, cache)
	}
	return nil
}

// LoadKernelCache reads a cache file written by SaveKernelCache
func LoadKernelCache(path string) (*psf.Cache, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return psf.LoadCache(file)
}

// SaveKernelCache writes a built cache to path
func SaveKernelCache(path string, cache *psf.Cache) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating PSF cache file: %w", err)
	}
	if err := cache.Save(file); err != nil {
		file.Close()
		return fmt.Errorf("saving PSF cache: %w", err)
	}
	return file.Close()
}

// Sensor returns a readout model for the given frame; each frame draws
// independent noise.
func (p *Pipeline) Sensor(index int) (*camera.Sensor, error) {
	sc := p.Config.SensorConfig()
	sc.Seed += uint64(index)
	return camera.NewSensor(sc, p.Bins)
}
