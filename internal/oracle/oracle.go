package oracle

import (
	"context"
	"time"

	types "github.com/yungbote/custrisk-backend/internal/domain"
)

// Result is one classification. Confidence is nil when the model does not report one.
type Result struct {
	Level      types.RiskLevel
	Confidence *float64
}

// Oracle maps a feature vector to a risk level.
// Implementations must be safe for concurrent use.
type Oracle interface {
	Name() string
	Predict(ctx context.Context, features map[string]float64) (*Result, error)
}

// CanonicalFeatures is the default feature order when a model does not declare its own.
var CanonicalFeatures = []string{
	"age",
	"income",
	"credit_score",
	"account_balance",
	"num_transactions",
	"transaction_frequency",
	"average_transaction_amount",
}

const (
	TypeSoftmax = "softmax"
	TypeRemote  = "remote"
	TypeStub    = "stub"
)

type Config struct {
	Type string `yaml:"type"`

	// ModelPath points at a softmax model file (.yaml, .yml or .json).
	ModelPath string `yaml:"model_path"`

	// BaseURL and APIKey configure the remote oracle.
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`

	// Timeout bounds a single Predict call at the workflow level.
	Timeout time.Duration `yaml:"timeout"`
}
