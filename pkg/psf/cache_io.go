package psf

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"
)

var cacheMagic = [4]byte{'P', 'S', 'F', 'K'}

const cacheFormatVersion = 2

// maxStoredRadius and maxStoredBanks bound what LoadCache will allocate for.
const (
	maxStoredRadius      = 4096
	maxStoredBanks       = 256
	maxStoredChannels    = 1024
	maxStoredFingerprint = 1 << 16
)

type cacheHeader struct {
	Magic            [4]byte
	Version          uint32
	Radius           uint32
	Banks            uint32
	Channels         uint32
	LUTQuality       uint32
	SubSamples       uint32
	MinLUTResolution uint32
	FingerprintLen   uint32
}

// Save writes a built cache as a zstd-compressed stream: a fixed header, the
// fingerprint bytes, then every bank's planes as little-endian float64, banks
// in row-major order.
func (c *Cache) Save(w io.Writer) error {
	if !c.built.Load() {
		return ErrCacheNotBuilt
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("creating compressor: %w", err)
	}
	bw := bufio.NewWriter(enc)

	hdr := cacheHeader{
		Magic:    cacheMagic,
		Version:  cacheFormatVersion,
		Radius:   uint32(c.radius),
		Banks:    uint32(c.banks),
		Channels: uint32(c.channels),

		LUTQuality:       uint32(c.config.LUTQuality),
		SubSamples:       uint32(c.config.SubSamples),
		MinLUTResolution: uint32(c.config.MinLUTResolution),
		FingerprintLen:   uint32(len(c.fingerprint)),
	}
	if err := binary.Write(bw, binary.LittleEndian, hdr); err != nil {
		enc.Close()
		return fmt.Errorf("writing cache header: %w", err)
	}
	if _, err := bw.WriteString(c.fingerprint); err != nil {
		enc.Close()
		return fmt.Errorf("writing cache fingerprint: %w", err)
	}

	var buf [8]byte
	for _, k := range c.kernels {
		for _, plane := range k.planes {
			for _, v := range plane {
				binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
				if _, err := bw.Write(buf[:]); err != nil {
					enc.Close()
					return fmt.Errorf("writing kernel data: %w", err)
				}
			}
		}
	}

	if err := bw.Flush(); err != nil {
		enc.Close()
		return fmt.Errorf("flushing kernel data: %w", err)
	}
	return enc.Close()
}

// LoadCache reads a cache written by Save. The result is built and immutable.
func LoadCache(r io.Reader) (*Cache, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("creating decompressor: %w", err)
	}
	defer dec.Close()
	br := bufio.NewReader(dec)

	var hdr cacheHeader
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("reading cache header: %w", err)
	}
	if hdr.Magic != cacheMagic {
		return nil, errors.New("psf: not a kernel cache file")
	}
	if hdr.Version != cacheFormatVersion {
		return nil, fmt.Errorf("psf: unsupported kernel cache version %d", hdr.Version)
	}
	if hdr.Radius > maxStoredRadius || hdr.Banks == 0 || hdr.Banks > maxStoredBanks ||
		hdr.Channels == 0 || hdr.Channels > maxStoredChannels || hdr.FingerprintLen > maxStoredFingerprint {
		return nil, fmt.Errorf("psf: implausible cache dimensions r=%d b=%d c=%d", hdr.Radius, hdr.Banks, hdr.Channels)
	}

	config := DefaultBuildConfig()
	config.LUTQuality = int(hdr.LUTQuality)
	config.SubSamples = int(hdr.SubSamples)
	config.MinLUTResolution = int(hdr.MinLUTResolution)
	c, err := NewCache(int(hdr.Radius), int(hdr.Banks), config)
	if err != nil {
		return nil, err
	}

	fingerprint := make([]byte, hdr.FingerprintLen)
	if _, err := io.ReadFull(br, fingerprint); err != nil {
		return nil, fmt.Errorf("reading cache fingerprint: %w", err)
	}
	c.fingerprint = string(fingerprint)

	channels := int(hdr.Channels)
	kernels := make([]*Kernel, c.banks*c.banks)
	var buf [8]byte
	for i := range kernels {
		k := newKernel(c.radius, channels)
		for _, plane := range k.planes {
			for j := range plane {
				if _, err := io.ReadFull(br, buf[:]); err != nil {
					return nil, fmt.Errorf("reading bank %d: %w", i, err)
				}
				plane[j] = math.Float64frombits(binary.LittleEndian.Uint64(buf[:]))
			}
		}
		kernels[i] = k
	}

	c.channels = channels
	c.kernels = kernels
	c.built.Store(true)
	return c, nil
}
