package camera

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/df07/go-starfield/pkg/core"
	"github.com/df07/go-starfield/pkg/renderer"
)

// SensorConfig describes the detector readout chain
type SensorConfig struct {
	Exposure          float64 // Integration time in seconds
	QuantumEfficiency float64 // Electrons per photon, in (0, 1]
	DarkCurrent       float64 // Electrons per second per pixel
	ReadNoise         float64 // Read noise in electrons RMS
	FullWell          float64 // Saturation level in electrons
	Gain              float64 // Electrons per ADU
	Bias              float64 // Offset in ADU
	BitDepth          int     // ADC resolution, 1..16
	Seed              uint64  // Noise seed; equal seeds give equal frames
	NoiseFree         bool    // Skip shot and read noise
}

// DefaultSensorConfig returns a typical 12-bit CMOS readout
func DefaultSensorConfig() SensorConfig {
	return SensorConfig{
		Exposure:          0.1,
		QuantumEfficiency: 0.6,
		DarkCurrent:       5,
		ReadNoise:         3,
		FullWell:          20000,
		Gain:              5,
		Bias:              100,
		BitDepth:          12,
		Seed:              1,
	}
}

// Validate checks the readout parameters
func (sc SensorConfig) Validate() error {
	if sc.Exposure <= 0 {
		return fmt.Errorf("sensor: exposure must be positive")
	}
	if sc.QuantumEfficiency <= 0 || sc.QuantumEfficiency > 1 {
		return fmt.Errorf("sensor: quantum efficiency %g outside (0, 1]", sc.QuantumEfficiency)
	}
	if sc.DarkCurrent < 0 || sc.ReadNoise < 0 {
		return fmt.Errorf("sensor: dark current and read noise must be non-negative")
	}
	if sc.FullWell <= 0 || sc.Gain <= 0 {
		return fmt.Errorf("sensor: full well and gain must be positive")
	}
	if sc.BitDepth < 1 || sc.BitDepth > 16 {
		return fmt.Errorf("sensor: bit depth %d outside 1..16", sc.BitDepth)
	}
	return nil
}

// SensorImage is one digitised frame
type SensorImage struct {
	Width     int
	Height    int
	BitDepth  int
	Electrons []float64 // collected electrons per pixel after clamping
	Counts    []uint16  // digital numbers per pixel
}

// MaxCount returns the largest representable digital number
func (si *SensorImage) MaxCount() uint16 {
	return uint16(1<<si.BitDepth - 1)
}

// Sensor converts spectral power into digital counts
type Sensor struct {
	config       SensorConfig
	photonEnergy []float64
}

// NewSensor creates a sensor for the given spectral bins
func NewSensor(config SensorConfig, bins core.SpectralBins) (*Sensor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	energies := make([]float64, len(bins))
	for i, lambda := range bins.CenterWavelengths() {
		energies[i] = core.PhotonEnergy(lambda)
	}
	return &Sensor{config: config, photonEnergy: energies}, nil
}

// MeanElectrons returns the expected electron count for a pixel receiving
// power (W per channel), dark current included.
func (s *Sensor) MeanElectrons(power core.Spectrum) float64 {
	e := s.config.DarkCurrent * s.config.Exposure
	for c, p := range power {
		if c >= len(s.photonEnergy) || s.photonEnergy[c] == 0 {
			continue
		}
		e += p * s.config.Exposure * s.config.QuantumEfficiency / s.photonEnergy[c]
	}
	return e
}

// Readout digitises the power layer of fb
func (s *Sensor) Readout(fb *renderer.FrameBuffer) (*SensorImage, error) {
	if !fb.HasPower() {
		return nil, fmt.Errorf("sensor: frame buffer has no power layer")
	}
	if fb.Channels() != len(s.photonEnergy) {
		return nil, fmt.Errorf("sensor: buffer has %d channels, sensor has %d", fb.Channels(), len(s.photonEnergy))
	}

	w, h := fb.Width(), fb.Height()
	img := &SensorImage{
		Width:     w,
		Height:    h,
		BitDepth:  s.config.BitDepth,
		Electrons: make([]float64, w*h),
		Counts:    make([]uint16, w*h),
	}

	src := rand.NewPCG(s.config.Seed, s.config.Seed^0x9e3779b97f4a7c15)
	readNoise := distuv.Normal{Mu: 0, Sigma: s.config.ReadNoise, Src: src}
	maxCount := float64(img.MaxCount())
	power := core.NewSpectrum(fb.Channels())

	for i := range img.Electrons {
		for c := range power {
			power[c] = fb.Power(c)[i]
		}
		mean := s.MeanElectrons(power)

		e := mean
		if !s.config.NoiseFree {
			if mean > 0 {
				e = distuv.Poisson{Lambda: mean, Src: src}.Rand()
			}
			if s.config.ReadNoise > 0 {
				e += readNoise.Rand()
			}
		}
		e = math.Min(math.Max(e, 0), s.config.FullWell)
		img.Electrons[i] = e

		dn := math.Round(e/s.config.Gain + s.config.Bias)
		img.Counts[i] = uint16(math.Min(math.Max(dn, 0), maxCount))
	}
	return img, nil
}
