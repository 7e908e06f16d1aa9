// Package loaders reads star catalogues and occluder masks from disk.
package loaders

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// CatalogEntry is one star in Tycho-2 style photometry. Missing bands are NaN.
type CatalogEntry struct {
	RA  float64 // Right ascension in degrees
	Dec float64 // Declination in degrees
	BT  float64 // Tycho blue magnitude
	VT  float64 // Tycho visual magnitude
}

// ParseStarCatalog reads a text catalogue with one star per line:
//
//	ra_deg dec_deg bt_mag vt_mag
//
// Fields are separated by whitespace or commas. Lines starting with '#' and
// blank lines are skipped. A missing magnitude is written as '-' or 'nan';
// stars with neither magnitude are rejected.
func ParseStarCatalog(reader io.Reader) ([]CatalogEntry, error) {
	var entries []CatalogEntry

	scanner := bufio.NewScanner(reader)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if len(fields) != 4 {
			return nil, fmt.Errorf("line %d: expected 4 fields, got %d", lineNo, len(fields))
		}

		entry, err := parseCatalogFields(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}
	return entries, nil
}

func parseCatalogFields(fields []string) (CatalogEntry, error) {
	ra, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return CatalogEntry{}, fmt.Errorf("invalid right ascension %q", fields[0])
	}
	dec, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return CatalogEntry{}, fmt.Errorf("invalid declination %q", fields[1])
	}
	if ra < 0 || ra >= 360 || dec < -90 || dec > 90 {
		return CatalogEntry{}, fmt.Errorf("position (%g, %g) out of range", ra, dec)
	}

	bt, err := parseMagnitude(fields[2])
	if err != nil {
		return CatalogEntry{}, err
	}
	vt, err := parseMagnitude(fields[3])
	if err != nil {
		return CatalogEntry{}, err
	}
	if math.IsNaN(bt) && math.IsNaN(vt) {
		return CatalogEntry{}, fmt.Errorf("star has no magnitude")
	}

	return CatalogEntry{RA: ra, Dec: dec, BT: bt, VT: vt}, nil
}

func parseMagnitude(s string) (float64, error) {
	if s == "-" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	m, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(m, 0) {
		return 0, fmt.Errorf("invalid magnitude %q", s)
	}
	return m, nil
}

// LoadStarCatalog loads and parses a catalogue file
func LoadStarCatalog(filename string) ([]CatalogEntry, error) {
	if err := validateFilePath(filename, ".txt", ".csv", ".cat"); err != nil {
		return nil, err
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer file.Close()

	return ParseStarCatalog(file)
}

// validateFilePath rejects empty, oversized or malformed paths and
// unexpected extensions.
func validateFilePath(filename string, extensions ...string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	// Check for null bytes (could indicate path manipulation)
	if strings.Contains(filename, "\x00") {
		return fmt.Errorf("invalid file path: null bytes not allowed")
	}

	cleanPath := filepath.Clean(filename)
	if len(cleanPath) > 512 {
		return fmt.Errorf("file path too long: maximum 512 characters allowed")
	}

	ext := strings.ToLower(filepath.Ext(cleanPath))
	for _, allowed := range extensions {
		if ext == allowed {
			return nil
		}
	}
	return fmt.Errorf("invalid file type %q: expected one of %v", ext, extensions)
}
