package focus

import (
	"context"
	"errors"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
)

var ErrNoSubject = errors.New("no salient region found")

// SaliencyConfig holds configuration for the contrast based locator
type SaliencyConfig struct {
	// AnalysisSize is the longest side the photo is reduced to before
	// scoring.
	AnalysisSize    int     `json:"analysis_size"`
	EdgeThreshold   float64 `json:"edge_threshold"`
	ContrastWeight  float64 `json:"contrast_weight"`
	ColorWeight     float64 `json:"color_weight"`
	MinSubjectRatio float64 `json:"min_subject_ratio"`
	// TopRegions is how many of the best windows are averaged
	TopRegions int `json:"top_regions"`
}

// DefaultSaliencyConfig returns the default locator settings
func DefaultSaliencyConfig() SaliencyConfig {
	return SaliencyConfig{
		AnalysisSize:    160,
		EdgeThreshold:   0.01,
		ContrastWeight:  0.8,
		ColorWeight:     0.2,
		MinSubjectRatio: 0.01,
		TopRegions:      5,
	}
}

// Saliency locates the subject from local contrast: windows with the most
// edge energy win, and the focus is their score-weighted center.
type Saliency struct {
	config SaliencyConfig
}

// NewSaliency creates a saliency locator
func NewSaliency(config SaliencyConfig) *Saliency {
	def := DefaultSaliencyConfig()
	if config.AnalysisSize <= 0 {
		config.AnalysisSize = def.AnalysisSize
	}
	if config.TopRegions <= 0 {
		config.TopRegions = def.TopRegions
	}
	if config.ContrastWeight == 0 && config.ColorWeight == 0 {
		config.ContrastWeight, config.ColorWeight = def.ContrastWeight, def.ColorWeight
	}
	return &Saliency{config: config}
}

// region is a scored analysis window
type region struct {
	x, y, size int
	score      float64
}

// Locate implements Locator
func (s *Saliency) Locate(ctx context.Context, img image.Image) (Point, error) {
	if img == nil || img.Bounds().Empty() {
		return Point{}, ErrNoSubject
	}
	small := imaging.Fit(img, s.config.AnalysisSize, s.config.AnalysisSize, imaging.Box)
	w, h := small.Bounds().Dx(), small.Bounds().Dy()

	smap := s.saliencyMap(small)
	if err := ctx.Err(); err != nil {
		return Point{}, err
	}

	regions := s.scoreRegions(smap, w, h)
	if len(regions) == 0 {
		return Point{}, ErrNoSubject
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].score > regions[j].score })
	if len(regions) > s.config.TopRegions {
		regions = regions[:s.config.TopRegions]
	}

	var sx, sy, total float64
	for _, r := range regions {
		cx := float64(r.x) + float64(r.size)/2
		cy := float64(r.y) + float64(r.size)/2
		sx += cx * r.score
		sy += cy * r.score
		total += r.score
	}
	return Point{X: sx / total / float64(w), Y: sy / total / float64(h)}.Clamp(), nil
}

// saliencyMap scores each pixel by its color distance to the 8 neighbors
// plus a small brightness term.
func (s *Saliency) saliencyMap(img *image.NRGBA) [][]float64 {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	smap := make([][]float64, h)
	for y := range smap {
		smap[y] = make([]float64, w)
	}

	neighbors := [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
	const maxDiff = 255 * 1.7320508075688772 // sqrt(3) * 255

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			c := img.NRGBAAt(x, y)
			var edge float64
			for _, o := range neighbors {
				n := img.NRGBAAt(x+o[0], y+o[1])
				dr := float64(c.R) - float64(n.R)
				dg := float64(c.G) - float64(n.G)
				db := float64(c.B) - float64(n.B)
				edge += math.Sqrt(dr*dr + dg*dg + db*db)
			}
			edge /= 8 * maxDiff
			brightness := (float64(c.R) + float64(c.G) + float64(c.B)) / (3 * 255)
			smap[y][x] = s.config.ContrastWeight*edge + s.config.ColorWeight*brightness*edge
		}
	}
	return smap
}

// scoreRegions slides square windows of several sizes over the map and
// keeps the ones above the edge threshold.
func (s *Saliency) scoreRegions(smap [][]float64, w, h int) []region {
	// summed-area table for O(1) window sums
	sat := make([][]float64, h+1)
	for y := range sat {
		sat[y] = make([]float64, w+1)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sat[y+1][x+1] = smap[y][x] + sat[y][x+1] + sat[y+1][x] - sat[y][x]
		}
	}

	short := min(w, h)
	minArea := float64(w*h) * s.config.MinSubjectRatio

	var regions []region
	for _, div := range []int{8, 6, 4, 3} {
		size := short / div
		if size < 4 || float64(size*size) < minArea {
			continue
		}
		step := max(1, size/4)
		for y := 0; y+size <= h; y += step {
			for x := 0; x+size <= w; x += step {
				sum := sat[y+size][x+size] - sat[y][x+size] - sat[y+size][x] + sat[y][x]
				score := sum / float64(size*size)
				if score > s.config.EdgeThreshold {
					regions = append(regions, region{x: x, y: y, size: size, score: score})
				}
			}
		}
	}
	return regions
}
