package policy

// PolicyConfig is the on-disk policy file. Every section is optional; omitted
// values fall back to the documented defaults (see DefaultOptions).
type PolicyConfig struct {
	Version     int                   `yaml:"version"`
	Rules       map[string]RuleConfig `yaml:"rules"`
	Standards   StandardsConfig       `yaml:"standards"`
	Enforcement EnforcementConfig     `yaml:"enforcement"`
}

// RuleConfig toggles a single rule and optionally overrides the severity of
// the findings it produces.
type RuleConfig struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Severity string `yaml:"severity,omitempty"`
}

// StandardsConfig holds the organizational standards the rule pack checks
// against. A nil slice or pointer means "use the default"; an explicitly
// empty list is taken literally.
type StandardsConfig struct {
	RequiredLabels           []string `yaml:"required_labels"`
	NamePattern              *string  `yaml:"name_pattern"`
	ApprovedRegistryPrefixes []string `yaml:"approved_registry_prefixes"`
	RequireDigestPin         *bool    `yaml:"require_digest_pin"`

	// WorkloadKinds lists the kinds whose pod template carries containers.
	WorkloadKinds []string `yaml:"workload_kinds"`

	// ObservabilityAnnotations maps a document kind to the annotation keys
	// documents of that kind must carry.
	ObservabilityAnnotations map[string][]string `yaml:"observability_annotations"`

	// ObservabilityExpectedValues pins an annotation key to an exact value,
	// e.g. prometheus.io/port: "8080".
	ObservabilityExpectedValues map[string]string `yaml:"observability_expected_values"`

	ProbePathSubstrings    ProbeStrings `yaml:"probe_path_substrings"`
	MinInitialDelaySeconds ProbeInts    `yaml:"min_initial_delay_seconds"`
}

// ProbeStrings carries one string setting per probe type.
type ProbeStrings struct {
	Liveness  *string `yaml:"liveness"`
	Readiness *string `yaml:"readiness"`
}

// ProbeInts carries one integer setting per probe type.
type ProbeInts struct {
	Liveness  *int `yaml:"liveness"`
	Readiness *int `yaml:"readiness"`
}

// EnforcementConfig controls how a finished report maps to the exit status.
type EnforcementConfig struct {
	// FailOnWarning makes warnings fail the run in addition to errors.
	// It never changes Report.Passed.
	FailOnWarning bool `yaml:"fail_on_warning"`
}
