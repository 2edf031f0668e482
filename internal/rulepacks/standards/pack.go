// Package standards provides the organizational manifest standards rule pack.
// New returns every rule in canonical registration order; the order is the
// tie-break for finding order in reports, so append new rules at the end of
// their family rather than re-sorting.
//
// Adding a new rule:
//  1. Implement the rule in internal/rules/ following the Rule interface.
//  2. Add it to the slice returned by New().
//  3. No other files need to change.
package standards

import (
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/policy"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/rules"
)

// New returns the standards rule pack in registration order.
func New() []rules.Rule {
	return []rules.Rule{
		// structure
		rules.DocumentStructureRule{},
		rules.DocumentTypedSchemaRule{},

		// resource governance
		rules.ContainerResourcesRule{},
		rules.ContainerRequestExceedsLimitRule{},

		// security baseline
		rules.PodRunAsNonRootRule{},
		rules.ContainerRunAsNonRootRule{},
		rules.ContainerReadOnlyRootFSRule{},
		rules.ContainerDropAllCapabilitiesRule{},
		rules.PodSeccompRuntimeDefaultRule{},
		rules.ContainerNoPrivilegeEscalationRule{},
		rules.ContainerPrivilegedRule{},

		// provenance
		rules.ImageMutableTagRule{},
		rules.ImageUnapprovedRegistryRule{},
		rules.ImageNotDigestPinnedRule{},

		// naming & labeling
		rules.MetadataRequiredLabelsRule{},
		rules.MetadataNameConventionRule{},

		// observability
		rules.ObservabilityAnnotationsRule{},

		// health probes
		rules.LivenessProbePresentRule{},
		rules.ReadinessProbePresentRule{},
		rules.ProbeHTTPPathRule{},
		rules.ProbeInitialDelayRule{},

		// cross-document
		rules.ServiceSelectorUnmatchedRule{},
		rules.DuplicateResourceRule{},
	}
}

// IDs returns the IDs of every rule in the pack, in registration order. The
// policy validator uses it to reject unknown rule IDs.
func IDs() []string {
	pack := New()
	ids := make([]string, len(pack))
	for i, r := range pack {
		ids[i] = r.ID()
	}
	return ids
}

// NewRegistry registers the pack into a fresh registry, skipping rules the
// policy disables. A nil cfg registers every rule. A duplicate rule ID is a
// wiring bug and panics.
func NewRegistry(cfg *policy.PolicyConfig) *rules.DefaultRuleRegistry {
	reg := rules.NewDefaultRuleRegistry()
	for _, r := range New() {
		if !policy.RuleEnabled(r.ID(), cfg) {
			continue
		}
		reg.MustRegister(r)
	}
	return reg
}
