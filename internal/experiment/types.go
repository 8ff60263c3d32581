// Package experiment implements experiment creation: request validation, id
// assignment, per-variant context augmentation, the bulk call to the context
// store and the final insert of the experiment aggregate.
package experiment

import (
	"fmt"
	"strings"
	"time"
)

// VariantType distinguishes the control arm from the experimental arms.
type VariantType string

const (
	VariantControl      VariantType = "CONTROL"
	VariantExperimental VariantType = "EXPERIMENTAL"
)

// Status is the lifecycle state of an experiment.
type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "INPROGRESS"
	StatusConcluded  Status = "CONCLUDED"
)

// Statuses lists every known status in lifecycle order.
var Statuses = []Status{StatusCreated, StatusInProgress, StatusConcluded}

// ActiveStatuses are the statuses of experiments that still take part in
// conflict checks.
var ActiveStatuses = []Status{StatusCreated, StatusInProgress}

// ParseStatus converts a case-insensitive name into a Status.
func ParseStatus(s string) (Status, error) {
	candidate := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Statuses {
		if candidate == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown experiment status %q", s)
}

// VariantIDDimension is the targeting dimension that selects a variant.
const VariantIDDimension = "variant_id"

// Variant is one arm of an experiment.
//
// ID is chosen by the caller and rewritten to "<experiment_id>-<id>" before
// any remote call. ContextID and OverrideID are only set once the context
// store has created the variant's override.
type Variant struct {
	ID          string         `json:"id" validate:"required,max=64"`
	VariantType VariantType    `json:"variant_type" validate:"required,oneof=CONTROL EXPERIMENTAL"`
	ContextID   string         `json:"context_id,omitempty"`
	OverrideID  string         `json:"override_id,omitempty"`
	Overrides   map[string]any `json:"overrides" validate:"required"`
}

// Experiment is the persisted aggregate.
type Experiment struct {
	ID                int64          `json:"id"`
	Name              string         `json:"name"`
	CreatedBy         string         `json:"created_by"`
	CreatedAt         time.Time      `json:"created_at"`
	LastModified      *time.Time     `json:"last_modified"`
	OverrideKeys      []string       `json:"override_keys"`
	TrafficPercentage int            `json:"traffic_percentage"`
	Status            Status         `json:"status"`
	Context           map[string]any `json:"context"`
	Variants          []Variant      `json:"variants"`
}

// CreateRequest is the input of Service.Create.
//
// Context is kept untyped so a non-object context can be rejected with a
// precise message instead of a decoding error.
type CreateRequest struct {
	Name              string    `json:"name" validate:"required,max=255"`
	OverrideKeys      []string  `json:"override_keys" validate:"dive,required"`
	TrafficPercentage int       `json:"traffic_percentage" validate:"min=0,max=100"`
	Context           any       `json:"context"`
	Variants          []Variant `json:"variants" validate:"required,dive"`
}

// ListFilters narrows an experiment listing. Zero times leave the range open.
type ListFilters struct {
	Statuses []Status
	From     time.Time
	To       time.Time
	Page     int
	Count    int
}

// Offset returns the row offset of the requested page.
func (f ListFilters) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Count
}
