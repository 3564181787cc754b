// Package calibration implements the host-mm to galvo-space coordinate
// mapper: a radial-basis-function interpolator fit to a sampled `.cor`
// correction table, with envelope bounds and an LRU lookup cache.
// Grounded on original_source/balor/Cal.py's Cal class
// (RBFInterpolator fit over (mm_x,mm_y)->(galvo_x,galvo_y), lru_cache of
// maxsize=2048, linear fallback envelope).
package calibration

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/meerk40t/galvo/internal/galvoerr"
)

// DefaultCacheSize matches original_source's @lru_cache(maxsize=2048).
const DefaultCacheSize = 2048

// sample is one row of the loaded .cor table.
type sample struct {
	mmX, mmY       float64
	galvoX, galvoY uint16
}

// Cal implements builder.Calibrator. A zero-value Cal (or one built with
// Disabled()) passes coordinates through with simple rounding: its
// disabled mode.
type Cal struct {
	enabled bool

	mmXMin, mmXMax, mmYMin, mmYMax float64

	samples []sample
	// wx and wy are the per-axis weight solutions of the shared
	// thin-plate-spline system (N+3 square) solved in fit.
	wx, wy *mat.VecDense

	cache *lruCache
}

// Disabled returns a Cal in identity passthrough mode.
func Disabled() *Cal {
	return &Cal{enabled: false}
}

// Load parses a `.cor` text table (whitespace-separated rows of
// `mm_x mm_y _ _ galvo_x_hex galvo_y_hex`) and fits the interpolator.
func Load(r io.Reader, cacheSize int) (*Cal, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}

	var samples []sample
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 6 {
			return nil, fmt.Errorf("%w: calibration row has %d fields, want >= 6: %q", galvoerr.ErrDataValidity, len(fields), line)
		}
		mmX, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: parsing mm_x: %v", galvoerr.ErrDataValidity, err)
		}
		mmY, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: parsing mm_y: %v", galvoerr.ErrDataValidity, err)
		}
		gx, err := strconv.ParseUint(fields[4], 16, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: parsing galvo_x_hex: %v", galvoerr.ErrDataValidity, err)
		}
		gy, err := strconv.ParseUint(fields[5], 16, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: parsing galvo_y_hex: %v", galvoerr.ErrDataValidity, err)
		}
		samples = append(samples, sample{mmX: mmX, mmY: mmY, galvoX: uint16(gx), galvoY: uint16(gy)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading calibration file: %v", galvoerr.ErrDataValidity, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: calibration file has no rows", galvoerr.ErrDataValidity)
	}

	c := &Cal{
		enabled: true,
		samples: samples,
		mmXMin:  samples[0].mmX,
		mmXMax:  samples[len(samples)-1].mmX,
		mmYMin:  samples[0].mmY,
		mmYMax:  samples[len(samples)-1].mmY,
		cache:   newLRUCache(cacheSize),
	}
	if err := c.fit(); err != nil {
		return nil, err
	}
	return c, nil
}

// Bounds returns the host-mm envelope defined by the table's first/last
// rows.
func (c *Cal) Bounds() (xmin, xmax, ymin, ymax float64) {
	return c.mmXMin, c.mmXMax, c.mmYMin, c.mmYMax
}

// Enabled reports whether this Cal was loaded from a table (vs Disabled()).
func (c *Cal) Enabled() bool { return c.enabled }

func round(v float64) uint16 {
	r := math.Round(v)
	if r < 0 {
		r = 0
	}
	if r > 0xFFFF {
		r = 0xFFFF
	}
	return uint16(r)
}

// Interpolate maps a host-space point to galvo-space, satisfying
// builder.Calibrator.
func (c *Cal) Interpolate(xmm, ymm float64) (uint16, uint16, error) {
	if !c.enabled {
		return round(xmm), round(ymm), nil
	}
	if xmm < c.mmXMin || xmm > c.mmXMax || ymm < c.mmYMin || ymm > c.mmYMax {
		return 0, 0, fmt.Errorf("%w: (%.3f,%.3f) outside [%.3f,%.3f]x[%.3f,%.3f]",
			galvoerr.ErrOutOfEnvelope, xmm, ymm, c.mmXMin, c.mmXMax, c.mmYMin, c.mmYMax)
	}

	key := cacheKey{x: xmm, y: ymm}
	if v, ok := c.cache.get(key); ok {
		return v.x, v.y, nil
	}

	gx, gy := c.evaluate(xmm, ymm)
	result := cacheValue{x: round(gx), y: round(gy)}
	c.cache.put(key, result)
	return result.x, result.y, nil
}
