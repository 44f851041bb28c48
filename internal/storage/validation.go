package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openpulse/vitals/internal/model"
)

// Validation errors.
var (
	ErrNilContext          = errors.New("context cannot be nil")
	ErrEmptyString         = errors.New("string parameter cannot be empty")
	ErrNilParameter        = errors.New("parameter cannot be nil")
	ErrInvalidSnapshot     = errors.New("invalid snapshot")
	ErrInvalidRange        = errors.New("invalid reference range")
	ErrInvalidTriggerCfg   = errors.New("invalid trigger configuration")
	ErrInvalidLimit        = errors.New("limit must be positive")
	ErrImmutableSnapshot   = errors.New("snapshots cannot be modified after creation")
	ErrInvalidPlaybookType = errors.New("invalid playbook type")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateSnapshot validates a snapshot prior to persistence.
func validateSnapshot(snapshot *model.AccountSnapshot) error {
	if snapshot == nil {
		return fmt.Errorf("%w: snapshot", ErrNilParameter)
	}
	if snapshot.AccountID == "" {
		return fmt.Errorf("%w: missing account ID", ErrInvalidSnapshot)
	}
	if !model.ValidSnapshotTrigger(snapshot.Trigger) {
		return fmt.Errorf("%w: unknown trigger %q", ErrInvalidSnapshot, snapshot.Trigger)
	}
	return nil
}

// validateReferenceRange validates a reference range prior to persistence.
func validateReferenceRange(r *model.ReferenceRange) error {
	if r == nil {
		return fmt.Errorf("%w: reference range", ErrNilParameter)
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	return nil
}

// validateTriggerConfig validates a trigger configuration.
func validateTriggerConfig(cfg *model.TriggerConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: trigger config", ErrNilParameter)
	}
	if cfg.TenantID == "" {
		return fmt.Errorf("%w: missing tenant ID", ErrInvalidTriggerCfg)
	}
	if !model.ValidPlaybookType(cfg.Playbook) {
		return fmt.Errorf("%w: %s", ErrInvalidPlaybookType, cfg.Playbook)
	}
	return nil
}
