package risk

import (
	"fmt"
	"strings"
)

type Level string

const (
	LevelLow    Level = "Low"
	LevelMedium Level = "Medium"
	LevelHigh   Level = "High"
)

// Levels lists the valid risk levels in ascending order.
var Levels = []Level{LevelLow, LevelMedium, LevelHigh}

func (l Level) Valid() bool {
	switch l {
	case LevelLow, LevelMedium, LevelHigh:
		return true
	}
	return false
}

func (l Level) String() string { return string(l) }

// ParseLevel accepts the canonical spelling and case variants of it ("high", "HIGH").
func ParseLevel(raw string) (Level, error) {
	s := strings.TrimSpace(raw)
	for _, l := range Levels {
		if strings.EqualFold(s, string(l)) {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q (must be one of Low, Medium, High)", ErrInvalidRiskLevel, raw)
}

type MitigationType string

const (
	MitigationFlag    MitigationType = "Flag"
	MitigationNote    MitigationType = "Note"
	MitigationAction  MitigationType = "Action"
	MitigationMonitor MitigationType = "Monitor"
)

var MitigationTypes = []MitigationType{MitigationFlag, MitigationNote, MitigationAction, MitigationMonitor}

func (t MitigationType) Valid() bool {
	switch t {
	case MitigationFlag, MitigationNote, MitigationAction, MitigationMonitor:
		return true
	}
	return false
}

type MitigationStatus string

const (
	StatusPending    MitigationStatus = "Pending"
	StatusInProgress MitigationStatus = "In Progress"
	StatusCompleted  MitigationStatus = "Completed"
	StatusCancelled  MitigationStatus = "Cancelled"
)

var MitigationStatuses = []MitigationStatus{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled}

func (s MitigationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Open reports whether the mitigation still needs work.
// Completed and Cancelled are terminal by convention only; any status may follow any other.
func (s MitigationStatus) Open() bool {
	return s == StatusPending || s == StatusInProgress
}

func joinNames[T ~string](vals []T) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

func ParseMitigationType(raw string) (MitigationType, error) {
	t := MitigationType(strings.TrimSpace(raw))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q (must be one of %s)", ErrInvalidType, raw, joinNames(MitigationTypes))
	}
	return t, nil
}

func ParseMitigationStatus(raw string) (MitigationStatus, error) {
	s := MitigationStatus(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q (must be one of %s)", ErrInvalidStatus, raw, joinNames(MitigationStatuses))
	}
	return s, nil
}
