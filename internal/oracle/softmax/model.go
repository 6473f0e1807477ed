package softmax

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	types "github.com/yungbote/custrisk-backend/internal/domain"
	"github.com/yungbote/custrisk-backend/internal/oracle"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
)

type Scaler struct {
	Mean  []float64 `yaml:"mean" json:"mean"`
	Scale []float64 `yaml:"scale" json:"scale"`
}

// Definition is the on-disk model: a multinomial logistic regression.
// Weights has one row per class, one column per feature.
type Definition struct {
	Name       string      `yaml:"name" json:"name"`
	Features   []string    `yaml:"features" json:"features"`
	Classes    []string    `yaml:"classes" json:"classes"`
	Weights    [][]float64 `yaml:"weights" json:"weights"`
	Intercepts []float64   `yaml:"intercepts" json:"intercepts"`
	Scaler     *Scaler     `yaml:"scaler,omitempty" json:"scaler,omitempty"`
}

func (s *Definition) validate() error {
	if len(s.Features) == 0 {
		s.Features = append([]string(nil), oracle.CanonicalFeatures...)
	}
	if len(s.Classes) == 0 {
		return fmt.Errorf("model has no classes")
	}
	for _, c := range s.Classes {
		if _, err := types.ParseRiskLevel(c); err != nil {
			return fmt.Errorf("model class: %w", err)
		}
	}
	if len(s.Weights) != len(s.Classes) {
		return fmt.Errorf("weights rows=%d, classes=%d", len(s.Weights), len(s.Classes))
	}
	for i, row := range s.Weights {
		if len(row) != len(s.Features) {
			return fmt.Errorf("weights row %d has %d columns, features=%d", i, len(row), len(s.Features))
		}
	}
	if len(s.Intercepts) == 0 {
		s.Intercepts = make([]float64, len(s.Classes))
	}
	if len(s.Intercepts) != len(s.Classes) {
		return fmt.Errorf("intercepts=%d, classes=%d", len(s.Intercepts), len(s.Classes))
	}
	if s.Scaler != nil {
		if len(s.Scaler.Mean) != len(s.Features) || len(s.Scaler.Scale) != len(s.Features) {
			return fmt.Errorf("scaler dimensions do not match %d features", len(s.Features))
		}
		for i, sc := range s.Scaler.Scale {
			if sc == 0 {
				return fmt.Errorf("scaler scale[%d] is zero", i)
			}
		}
	}
	if strings.TrimSpace(s.Name) == "" {
		s.Name = "softmax"
	}
	return nil
}

type Model struct {
	def    Definition
	levels []types.RiskLevel
	log    *logger.Logger
}

// Load reads and validates a model file. JSON is chosen by extension, anything else is parsed as YAML.
func Load(path string, log *logger.Logger) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}
	var def Definition
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(raw, &def)
	default:
		err = yaml.Unmarshal(raw, &def)
	}
	if err != nil {
		return nil, fmt.Errorf("parse model %s: %w", path, err)
	}
	return New(def, log)
}

func New(def Definition, log *logger.Logger) (*Model, error) {
	if err := def.validate(); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	levels := make([]types.RiskLevel, len(def.Classes))
	for i, c := range def.Classes {
		levels[i], _ = types.ParseRiskLevel(c)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Model{
		def:    def,
		levels: levels,
		log:    log.With("oracle", def.Name),
	}, nil
}

func (m *Model) Name() string { return m.def.Name }

func (m *Model) Features() []string { return append([]string(nil), m.def.Features...) }

func (m *Model) Predict(ctx context.Context, features map[string]float64) (*oracle.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x := make([]float64, len(m.def.Features))
	var missing []string
	for i, name := range m.def.Features {
		v, ok := features[name]
		if !ok {
			missing = append(missing, name)
		}
		if m.def.Scaler != nil {
			v = (v - m.def.Scaler.Mean[i]) / m.def.Scaler.Scale[i]
		}
		x[i] = v
	}
	if len(missing) > 0 {
		m.log.Warn("Missing features imputed as zero", "missing", missing)
	}

	logits := make([]float64, len(m.def.Classes))
	maxLogit := math.Inf(-1)
	for k, row := range m.def.Weights {
		z := m.def.Intercepts[k]
		for i, w := range row {
			z += w * x[i]
		}
		logits[k] = z
		if z > maxLogit {
			maxLogit = z
		}
	}
	if math.IsNaN(maxLogit) || math.IsInf(maxLogit, 0) {
		return nil, fmt.Errorf("%w: non-finite model output", types.ErrPredictionFailed)
	}

	var sum float64
	for k, z := range logits {
		logits[k] = math.Exp(z - maxLogit)
		sum += logits[k]
	}
	best := 0
	for k := range logits {
		logits[k] /= sum
		if logits[k] > logits[best] {
			best = k
		}
	}
	conf := logits[best]
	return &oracle.Result{Level: m.levels[best], Confidence: &conf}, nil
}
