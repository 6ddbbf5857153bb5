// Package gate decides whether a screened URL may be admitted into the
// directory. The decision is backed by an outlier-scoring model trained
// offline; the artifact is a JSON file holding per-feature statistics and a
// score threshold, installed by replacing the file and loaded once per
// process.
package gate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/pavelzhurbin/shorturl/internal/models"
)

// Feature keys used in the model artifact.
const (
	FeatureURLLength               = "url_length"
	FeatureSpecialCharCount        = "special_char_count"
	FeatureDomainAgeDays           = "domain_age_days"
	FeatureContentWordCount        = "content_word_count"
	FeatureContentSpecialCharCount = "content_special_char_count"
)

type featureStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// Model is the trained scoring artifact. It is immutable after loading;
// retraining installs a new file.
type Model struct {
	Threshold float64                 `json:"threshold"`
	Features  map[string]featureStats `json:"features"`
}

// LoadModel reads and validates a model artifact from path.
func LoadModel(path string) (*Model, error) {
	const op = "gate.LoadModel"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read model artifact: %w", op, err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%s: failed to decode model artifact: %w", op, err)
	}

	if len(m.Features) == 0 {
		return nil, fmt.Errorf("%s: model artifact has no feature statistics", op)
	}

	return &m, nil
}

// Score computes the anomaly score of a feature snapshot: the mean squared
// z-score over the model's features. Absent optional fields impute to the
// trained mean and contribute nothing to the score.
func (m *Model) Score(features models.FeatureSnapshot) float64 {
	values := map[string]*float64{
		FeatureURLLength:               f64(features.URLLength),
		FeatureSpecialCharCount:        f64(features.SpecialCharCount),
		FeatureDomainAgeDays:           optF64(features.DomainAgeDays),
		FeatureContentWordCount:        optF64(features.ContentWordCount),
		FeatureContentSpecialCharCount: optF64(features.ContentSpecialCharCount),
	}

	var sum float64
	for name, stats := range m.Features {
		v, ok := values[name]
		if !ok || v == nil || stats.StdDev <= 0 {
			continue
		}

		z := (*v - stats.Mean) / stats.StdDev
		sum += z * z
	}

	return sum / float64(len(m.Features))
}

func f64(v int64) *float64 {
	f := float64(v)
	return &f
}

func optF64(v *int64) *float64 {
	if v == nil {
		return nil
	}
	return f64(*v)
}

// ModelGate admits feature snapshots whose anomaly score is within the
// model's threshold. A gate without a model fails closed and rejects
// everything, so a missing or corrupt artifact can never let an unscreened
// URL through.
type ModelGate struct {
	logger *slog.Logger
	model  *Model
}

// New loads the model artifact at path. A load failure is logged once and
// produces a gate that rejects all requests.
func New(logger *slog.Logger, path string) *ModelGate {
	model, err := LoadModel(path)
	if err != nil {
		logger.Error("anomaly model unavailable, rejecting all admissions", slog.Any("err", err))
		model = nil
	}

	return &ModelGate{
		logger: logger,
		model:  model,
	}
}

// NewWithModel wires an already loaded model, mainly for tests.
func NewWithModel(logger *slog.Logger, model *Model) *ModelGate {
	return &ModelGate{
		logger: logger,
		model:  model,
	}
}

// Evaluate reports whether the feature snapshot is admitted.
func (g *ModelGate) Evaluate(features models.FeatureSnapshot) bool {
	if g.model == nil {
		return false
	}

	score := g.model.Score(features)
	if score > g.model.Threshold {
		g.logger.Info("anomaly gate rejected url",
			slog.Float64("score", score),
			slog.Float64("threshold", g.model.Threshold),
		)
		return false
	}

	return true
}
