package risk

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidValue     = errors.New("invalid value")
	ErrInvalidRiskLevel = errors.New("invalid risk level")
	ErrInvalidType      = errors.New("invalid mitigation type")
	ErrInvalidStatus    = errors.New("invalid mitigation status")
	ErrInvalidState     = errors.New("invalid state")
	ErrPredictionFailed = errors.New("prediction failed")

	// Oracle failures; both also match ErrPredictionFailed.
	ErrOracleTimeout     = &oracleError{msg: "prediction oracle timed out"}
	ErrOracleUnavailable = &oracleError{msg: "prediction oracle unavailable"}
)

type oracleError struct{ msg string }

func (e *oracleError) Error() string { return e.msg }

func (e *oracleError) Is(target error) bool { return target == ErrPredictionFailed }

// IsValidation reports whether err is a client-caused domain failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidValue) ||
		errors.Is(err, ErrInvalidRiskLevel) ||
		errors.Is(err, ErrInvalidType) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidState)
}
