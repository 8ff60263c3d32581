package experiment

import (
	"slices"

	"github.com/rafaeljc/superposition/internal/apperr"
	"github.com/rafaeljc/superposition/internal/jsonlogic"
)

// ConflictPolicy decides which combinations of override keys and targeting
// a new experiment may share with experiments that are still active.
//
// Two experiments share keys when their override key sets intersect, and
// their contexts overlap when one evaluation context can satisfy both.
type ConflictPolicy struct {
	AllowSameKeysOverlappingContext    bool
	AllowDiffKeysOverlappingContext    bool
	AllowSameKeysNonOverlappingContext bool
}

// PermissivePolicy allows every combination.
func PermissivePolicy() ConflictPolicy {
	return ConflictPolicy{
		AllowSameKeysOverlappingContext:    true,
		AllowDiffKeysOverlappingContext:    true,
		AllowSameKeysNonOverlappingContext: true,
	}
}

// Permissive reports whether the policy can never reject an experiment.
func (p ConflictPolicy) Permissive() bool {
	return p.AllowSameKeysOverlappingContext &&
		p.AllowDiffKeysOverlappingContext &&
		p.AllowSameKeysNonOverlappingContext
}

// CheckActiveConflicts rejects a new experiment whose override keys and base
// context collide with an active experiment in a way the policy forbids.
func CheckActiveConflicts(policy ConflictPolicy, overrideKeys []string, context map[string]any, active []*Experiment) error {
	if policy.Permissive() {
		return nil
	}

	dims, err := contextDimensions(context)
	if err != nil {
		return err
	}

	for _, other := range active {
		otherDims, err := contextDimensions(other.Context)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, err, "active experiment has an unreadable context")
		}

		sameKeys := slices.ContainsFunc(other.OverrideKeys, func(k string) bool {
			return slices.Contains(overrideKeys, k)
		})
		overlapping := jsonlogic.Overlapping(dims, otherDims)

		var reason string
		switch {
		case sameKeys && overlapping && !policy.AllowSameKeysOverlappingContext:
			reason = "shares override keys and overlaps the context of"
		case !sameKeys && overlapping && !policy.AllowDiffKeysOverlappingContext:
			reason = "overlaps the context of"
		case sameKeys && !overlapping && !policy.AllowSameKeysNonOverlappingContext:
			reason = "shares override keys with"
		default:
			continue
		}
		return apperr.Validation("invalid experiment config: experiment %s active experiment %d", reason, other.ID)
	}
	return nil
}

// contextDimensions treats an empty context as targeting everyone.
func contextDimensions(context map[string]any) (*jsonlogic.Dimensions, error) {
	if len(context) == 0 {
		return jsonlogic.NewDimensions(), nil
	}
	return jsonlogic.Extract(context)
}
