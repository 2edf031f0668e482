package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/pankaj-dahiya-devops/manifest-policy/internal/engine"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/manifest"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/metrics"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/models"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/output"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/policy"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/render"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/rulepacks/standards"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/source"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/version"
)

// s3ClientFactory builds the S3 client for --s3-uri. Tests replace it with a
// fake.
var s3ClientFactory source.ClientFactory = source.NewS3Client

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mp",
		Short:         "Offline policy checks for Kubernetes manifests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// klog registers its flags (-v, --logtostderr, ...) on a private set so
	// repeated command construction in tests never redefines a flag.
	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	root.PersistentFlags().AddGoFlagSet(klogFlags)

	root.AddCommand(newCheckCmd())
	root.AddCommand(newRulesCmd())
	root.AddCommand(newPolicyCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// ── check ─────────────────────────────────────────────────────────────────────

type checkOptions struct {
	policyPath    string
	format        string
	output        string
	workers       int
	metricsFile   string
	s3URI         string
	awsProfile    string
	awsRegion     string
	failOnWarning bool
	color         bool
}

func newCheckCmd() *cobra.Command {
	var o checkOptions

	cmd := &cobra.Command{
		Use:   "check [PATH...]",
		Short: "Evaluate manifests against the organizational standards",
		Long: `Evaluate Kubernetes manifests against the organizational standards.

PATH may be a file, a directory (all .yaml, .yml and .json files beneath it,
in lexicographic order) or "-" for standard input. Manifests can also be read
from an S3 prefix with --s3-uri.

Exit status: 0 when the check passes, 1 when it fails, 2 on configuration or
usage errors.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args, o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.policyPath, "policy", "", "Policy file (default: built-in standards)")
	f.StringVar(&o.format, "format", string(output.FormatText), "Output format: text, json, yaml or table")
	f.StringVar(&o.output, "output", "", "Write the report to this file instead of stdout")
	f.IntVar(&o.workers, "workers", 0, "Documents evaluated in parallel (default: number of CPUs)")
	f.StringVar(&o.metricsFile, "metrics-file", "", "Write Prometheus text-format run metrics to this file")
	f.StringVar(&o.s3URI, "s3-uri", "", "Also evaluate manifests stored under s3://bucket/prefix")
	f.StringVar(&o.awsProfile, "profile", "", "AWS profile for --s3-uri (default: credential chain)")
	f.StringVar(&o.awsRegion, "region", "", "AWS region for --s3-uri")
	f.BoolVar(&o.failOnWarning, "fail-on-warning", false, "Exit 1 when any WARNING finding is reported")
	f.BoolVar(&o.color, "color", false, "Colorize severities in text and table output")
	return cmd
}

func runCheck(cmd *cobra.Command, args []string, o checkOptions) error {
	ctx := cmd.Context()

	format, err := output.ParseFormat(o.format)
	if err != nil {
		return configError(err)
	}
	if len(args) == 0 && o.s3URI == "" {
		return configError(errors.New("no manifests given: pass at least one PATH or --s3-uri"))
	}

	cfg, opts, err := loadPolicy(o.policyPath)
	if err != nil {
		return configError(err)
	}
	if o.failOnWarning {
		if cfg == nil {
			cfg = &policy.PolicyConfig{Version: 1, Rules: map[string]policy.RuleConfig{}}
		}
		cfg.Enforcement.FailOnWarning = true
	}

	sources, err := loadSources(cmd, args, o)
	if err != nil {
		return configError(err)
	}

	eng := engine.NewEngine(standards.NewRegistry(cfg), opts, cfg, o.workers)
	started := time.Now()
	report, err := eng.Run(ctx, sources)
	if err != nil {
		return configError(err)
	}
	finished := time.Now()

	if o.metricsFile != "" {
		m := metrics.NewRunMetrics()
		m.Record(report, started, finished)
		if err := m.WriteFile(o.metricsFile); err != nil {
			return configError(err)
		}
	}

	if err := emitReport(cmd.OutOrStdout(), o.output, report, format, o.color); err != nil {
		return configError(err)
	}

	klog.V(1).InfoS("Check finished", "passed", report.Passed, "findings", len(report.Findings), "duration", finished.Sub(started))
	if policy.ShouldFail(report, cfg) {
		return errCheckFailed
	}
	return nil
}

// loadPolicy returns the policy and compiled options for path. An empty path
// selects the built-in defaults and a nil policy.
func loadPolicy(path string) (*policy.PolicyConfig, *policy.Options, error) {
	if path == "" {
		return nil, policy.DefaultOptions(), nil
	}
	cfg, err := policy.LoadPolicy(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load policy %q: %w", path, err)
	}
	if errs := policy.Validate(cfg, standards.IDs()); len(errs) > 0 {
		return nil, nil, fmt.Errorf("policy %q: %w", path, policy.NewConfigurationError(errs...))
	}
	opts, err := policy.Compile(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("policy %q: %w", path, err)
	}
	return cfg, opts, nil
}

func loadSources(cmd *cobra.Command, args []string, o checkOptions) ([]manifest.Source, error) {
	sources, err := source.Load(args, cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	if o.s3URI == "" {
		return sources, nil
	}

	loc, err := source.ParseS3URI(o.s3URI)
	if err != nil {
		return nil, err
	}
	client, err := source.LoadS3Client(cmd.Context(), source.AWSOptions{Profile: o.awsProfile, Region: o.awsRegion}, s3ClientFactory)
	if err != nil {
		return nil, err
	}
	remote, err := source.NewS3Loader(client).Load(cmd.Context(), loc)
	if err != nil {
		return nil, err
	}
	return append(sources, remote...), nil
}

// emitReport renders report to path, or to stdout when path is empty.
func emitReport(stdout io.Writer, path string, report *models.Report, format output.Format, colored bool) error {
	if path == "" {
		return writeReport(stdout, report, format, colored)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file %q: %w", path, err)
	}
	if err := writeReport(f, report, format, false); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write report file %q: %w", path, err)
	}
	return nil
}

func writeReport(w io.Writer, report *models.Report, format output.Format, colored bool) error {
	switch format {
	case output.FormatJSON:
		return output.WriteJSON(w, report)
	case output.FormatYAML:
		return output.WriteYAML(w, report)
	case output.FormatTable:
		output.RenderTable(w, report.Findings, output.TableOptions{
			Colored:          colored,
			IncludeSource:    true,
			IncludeFieldPath: true,
		})
		fmt.Fprintln(w)
		return render.WriteSummaryLine(w, report)
	default:
		return render.WriteSummary(w, report, colored)
	}
}

// ── rules ─────────────────────────────────────────────────────────────────────

func newRulesCmd() *cobra.Command {
	var policyPath, format string

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the rules of the standards pack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadPolicy(policyPath)
			if err != nil {
				return configError(err)
			}
			infos := ruleCatalogue(cfg)
			switch format {
			case "json":
				return render.WriteRuleCatalogueJSON(cmd.OutOrStdout(), infos)
			case "text":
				render.WriteRuleCatalogue(cmd.OutOrStdout(), infos)
				return nil
			default:
				return configError(fmt.Errorf("unsupported format %q; valid values: text, json", format))
			}
		},
	}
	cmd.Flags().StringVar(&policyPath, "policy", "", "Show rule state and severity under this policy file")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

// ruleCatalogue describes every rule in registration order with the policy's
// toggles and severity overrides applied.
func ruleCatalogue(cfg *policy.PolicyConfig) []render.RuleInfo {
	pack := standards.New()
	infos := make([]render.RuleInfo, 0, len(pack))
	for _, r := range pack {
		sev := r.Severity()
		if cfg != nil {
			if rc, ok := cfg.Rules[r.ID()]; ok && rc.Severity != "" {
				if s, err := models.ParseSeverity(rc.Severity); err == nil {
					sev = s
				}
			}
		}
		infos = append(infos, render.RuleInfo{
			ID:          r.ID(),
			Description: r.Name(),
			Severity:    sev,
			Enabled:     policy.RuleEnabled(r.ID(), cfg),
		})
	}
	return infos
}

// ── policy ────────────────────────────────────────────────────────────────────

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Policy file commands",
	}
	cmd.AddCommand(newPolicyValidateCmd())
	return cmd
}

func newPolicyValidateCmd() *cobra.Command {
	var policyPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a policy file without evaluating manifests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := loadPolicy(policyPath); err != nil {
				return configError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "policy %s is valid\n", policyPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&policyPath, "policy", "", "Policy file to validate")
	_ = cmd.MarkFlagRequired("policy")
	return cmd
}

// ── version ───────────────────────────────────────────────────────────────────

func newVersionCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(version.Get())
			case "text":
				fmt.Fprint(cmd.OutOrStdout(), version.Info())
				return nil
			default:
				return configError(fmt.Errorf("unsupported format %q; valid values: text, json", format))
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}
