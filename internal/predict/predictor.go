// Package predict classifies incidents against a pre-trained set of cluster
// centroids. The model ships as a YAML file exported from the training
// pipeline; prediction is nearest-centroid with a distance-based confidence.
package predict

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/denisplanner/backend/internal/database"
)

// Model is the on-disk centroid model.
type Model struct {
	Version   string      `yaml:"version"`
	Features  []string    `yaml:"features"`
	Centroids [][]float64 `yaml:"centroids"`
}

// Predictor assigns incidents to the nearest cluster centroid.
type Predictor struct {
	model Model
}

// Load reads and validates a centroid model file.
func Load(path string) (*Predictor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	var m Model
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse model %s: %w", path, err)
	}
	if len(m.Centroids) == 0 {
		return nil, fmt.Errorf("model %s has no centroids", path)
	}
	width := len(m.Centroids[0])
	for i, c := range m.Centroids {
		if len(c) != width {
			return nil, fmt.Errorf("model %s: centroid %d has %d features, want %d", path, i, len(c), width)
		}
	}
	return &Predictor{model: m}, nil
}

// Transform maps an incident to its feature vector:
// [location_id, type_id, trust_score, resolved, hour, weekday, rush_hour].
func (p *Predictor) Transform(inc *database.Incident) []float64 {
	hour := inc.CreatedAt.Hour()
	rushHour := 0.0
	switch hour {
	case 7, 8, 9, 16, 17, 18:
		rushHour = 1.0
	}
	resolved := 0.0
	if inc.Status == database.StatusResolved {
		resolved = 1.0
	}
	return []float64{
		float64(inc.LocationID),
		float64(inc.TypeID),
		inc.TrustScore,
		resolved,
		float64(hour),
		float64(weekday(inc.CreatedAt)),
		rushHour,
	}
}

// Version returns the model version string.
func (p *Predictor) Version() string { return p.model.Version }

// Predict returns the index of the nearest centroid.
func (p *Predictor) Predict(x []float64) int {
	best, _ := p.nearest(x)
	return best
}

// Confidence maps the distance to the predicted centroid into [0,1]:
// max(0, 100 - 10*dist) / 100.
func (p *Predictor) Confidence(x []float64) float64 {
	_, dist := p.nearest(x)
	conf := 100 - dist*10
	if conf < 0 {
		conf = 0
	}
	return conf / 100
}

func (p *Predictor) nearest(x []float64) (index int, distance float64) {
	best := 0
	bestDist := math.Inf(1)
	for i, c := range p.model.Centroids {
		d := euclidean(x, c)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

func euclidean(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// weekday returns Monday=0 .. Sunday=6, matching the training features.
func weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
