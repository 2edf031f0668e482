package policy

import (
	"fmt"
	"regexp"

	"k8s.io/apimachinery/pkg/util/sets"
)

// Defaults for the organizational standards.
//
// The naming convention is an unresolved product decision: one variant of
// the standards requires the team-app-env pattern below, another requires a
// "banking-team-" prefix and "-prod" suffix, a third has no naming rule. The
// default keeps the team-app-env form; the other variants are expressed by
// setting standards.name_pattern.
var (
	DefaultRequiredLabels = []string{
		"app.kubernetes.io/name",
		"app.kubernetes.io/version",
		"app.kubernetes.io/part-of",
		"environment",
		"managed-by",
	}

	DefaultNamePattern = `^[a-z]+-[a-z]+-[a-z-]+-[a-z]+$`

	DefaultApprovedRegistryPrefixes = []string{
		"registry.bank.internal/",
		"quay.io/redhat-openshift-approved/",
	}

	DefaultWorkloadKinds = []string{
		"Deployment", "StatefulSet", "DaemonSet", "ReplicaSet", "Job", "CronJob", "Pod",
	}

	DefaultObservabilityAnnotations = map[string][]string{
		"Deployment": {"prometheus.io/scrape", "prometheus.io/port"},
		"Service":    {"prometheus.io/scrape", "prometheus.io/port"},
	}
)

const (
	DefaultRequireDigestPin         = true
	DefaultLivenessPathSubstring    = "/health"
	DefaultReadinessPathSubstring   = "/health"
	DefaultMinLivenessInitialDelay  = 30
	DefaultMinReadinessInitialDelay = 10
)

// Options is the compiled, read-only form of StandardsConfig consumed by the
// rules. Build it with Compile or DefaultOptions; never mutate it after
// evaluation has started.
type Options struct {
	RequiredLabels              []string
	NamePattern                 *regexp.Regexp
	ApprovedRegistryPrefixes    []string
	RequireDigestPin            bool
	WorkloadKinds               sets.Set[string]
	ObservabilityAnnotations    map[string][]string
	ObservabilityExpectedValues map[string]string
	LivenessPathSubstring       string
	ReadinessPathSubstring      string
	MinLivenessInitialDelay     int64
	MinReadinessInitialDelay    int64
}

// DefaultOptions returns the options used when no policy file is loaded.
func DefaultOptions() *Options {
	opts, err := Compile(nil)
	if err != nil {
		// The defaults are compile-time constants.
		panic(fmt.Sprintf("policy: invalid defaults: %v", err))
	}
	return opts
}

// Compile validates the standards section of cfg and returns the compiled
// options. A nil cfg yields the defaults. Every problem found is reported in a
// single *ConfigurationError.
func Compile(cfg *PolicyConfig) (*Options, error) {
	var sc StandardsConfig
	if cfg != nil {
		sc = cfg.Standards
	}

	if errs := validateStandards(sc); len(errs) > 0 {
		return nil, NewConfigurationError(errs...)
	}

	opts := &Options{
		RequiredLabels:              dedupe(orDefault(sc.RequiredLabels, DefaultRequiredLabels)),
		ApprovedRegistryPrefixes:    dedupe(orDefault(sc.ApprovedRegistryPrefixes, DefaultApprovedRegistryPrefixes)),
		RequireDigestPin:            DefaultRequireDigestPin,
		WorkloadKinds:               sets.New(orDefault(sc.WorkloadKinds, DefaultWorkloadKinds)...),
		ObservabilityAnnotations:    copyAnnotations(DefaultObservabilityAnnotations),
		ObservabilityExpectedValues: map[string]string{},
		LivenessPathSubstring:       DefaultLivenessPathSubstring,
		ReadinessPathSubstring:      DefaultReadinessPathSubstring,
		MinLivenessInitialDelay:     DefaultMinLivenessInitialDelay,
		MinReadinessInitialDelay:    DefaultMinReadinessInitialDelay,
	}

	pattern := DefaultNamePattern
	if sc.NamePattern != nil {
		pattern = *sc.NamePattern
	}
	opts.NamePattern = regexp.MustCompile(pattern) // validated above

	if sc.RequireDigestPin != nil {
		opts.RequireDigestPin = *sc.RequireDigestPin
	}
	if sc.ObservabilityAnnotations != nil {
		opts.ObservabilityAnnotations = copyAnnotations(sc.ObservabilityAnnotations)
	}
	for k, v := range sc.ObservabilityExpectedValues {
		opts.ObservabilityExpectedValues[k] = v
	}
	if p := sc.ProbePathSubstrings.Liveness; p != nil {
		opts.LivenessPathSubstring = *p
	}
	if p := sc.ProbePathSubstrings.Readiness; p != nil {
		opts.ReadinessPathSubstring = *p
	}
	if d := sc.MinInitialDelaySeconds.Liveness; d != nil {
		opts.MinLivenessInitialDelay = int64(*d)
	}
	if d := sc.MinInitialDelaySeconds.Readiness; d != nil {
		opts.MinReadinessInitialDelay = int64(*d)
	}
	return opts, nil
}

// IsWorkload reports whether kind carries a pod template.
func (o *Options) IsWorkload(kind string) bool {
	return o.WorkloadKinds.Has(kind)
}

func copyAnnotations(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for kind, keys := range in {
		out[kind] = dedupe(keys)
	}
	return out
}

func orDefault(v, def []string) []string {
	if v == nil {
		return def
	}
	return v
}

// dedupe drops repeated entries while keeping the configured order, which is
// the order findings are reported in.
func dedupe(in []string) []string {
	seen := sets.New[string]()
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen.Has(s) {
			continue
		}
		seen.Insert(s)
		out = append(out, s)
	}
	return out
}
