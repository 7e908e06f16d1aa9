package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/df07/go-starfield/pkg/config"
	"github.com/df07/go-starfield/pkg/core"
	"github.com/df07/go-starfield/pkg/imageio"
	"github.com/df07/go-starfield/pkg/pipeline"
	"github.com/df07/go-starfield/pkg/renderer"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "YAML render configuration (defaults when empty)")
	outDir := flag.String("out", "", "Output directory, overrides the configuration")
	frames := flag.Int("frames", 0, "Number of frames, overrides the configuration")
	help := flag.Bool("help", false, "Show help information")
	flag.Parse()

	// Show help if requested
	if *help {
		fmt.Println("Starfield Renderer")
		fmt.Println("Usage: starfield [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		fmt.Println()
		fmt.Println("Each frame is written to <out>/frame_<index>.exr with optional")
		fmt.Println("frame_<index>_preview.png and frame_<index>_sensor.png")
		return
	}

	cfg, err := loadConfig(*configPath, *outDir, *frames)
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("Starting Starfield Renderer...")
	if err := run(ctx, cfg, core.NewDefaultLogger()); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file, if any, and applies flag overrides
func loadConfig(path, outDir string, frames int) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if outDir != "" {
		cfg.Output.Dir = outDir
	}
	if frames > 0 {
		cfg.Scene.Slew.Frames = frames
	}
	return cfg, cfg.Validate()
}

// run renders every configured frame and writes the outputs
func run(ctx context.Context, cfg *config.Config, logger core.Logger) error {
	p, err := pipeline.New(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	// stops the sequence if writing a frame fails
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	startTime := time.Now()
	results, errs := p.Renderer.RenderSequence(ctx)
	for result := range results {
		if err := writeFrame(p, result); err != nil {
			return err
		}
	}
	if err := <-errs; err != nil {
		return err
	}
	logger.Printf("Rendered %d frames in %v\n", p.Slew.Frames(), time.Since(startTime))
	return nil
}

// writeFrame writes the products of one frame
func writeFrame(p *pipeline.Pipeline, result renderer.FrameResult) error {
	cfg := p.Config
	base := filepath.Join(cfg.Output.Dir, fmt.Sprintf("frame_%04d", result.Index))

	if cfg.Output.EXR {
		opts := imageio.EXROptions{
			Half: cfg.Output.Half,
			Attributes: map[string]string{
				"frameId":  result.ID,
				"software": "go-starfield",
			},
		}
		if err := imageio.SaveEXR(base+".exr", result.Buffer, opts); err != nil {
			return err
		}
	}

	if cfg.Output.PNG {
		img, err := imageio.Preview(result.Buffer, imageio.DefaultToneMapConfig())
		if err != nil {
			return err
		}
		if err := imageio.SavePNG(base+"_preview.png", img); err != nil {
			return err
		}
	}

	if cfg.Sensor.Enabled && cfg.Output.SensorPNG {
		sensor, err := p.Sensor(result.Index)
		if err != nil {
			return err
		}
		readout, err := sensor.Readout(result.Buffer)
		if err != nil {
			return err
		}
		if err := imageio.SavePNG(base+"_sensor.png", imageio.SensorImage(readout)); err != nil {
			return err
		}
	}
	return nil
}
