package rules

import (
	"strings"

	"github.com/distribution/reference"

	"github.com/pankaj-dahiya-devops/manifest-policy/internal/manifest"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/models"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/policy"
)

// containerImage returns the image field of c and its path. ok is false when
// the field is absent, null or an empty string.
func containerImage(c container) (string, manifest.Path, bool) {
	p := c.Path.Child("image")
	v, found := manifest.Get(c.Node, "image")
	if !found {
		return "", p, false
	}
	s, _ := v.Text()
	s = strings.TrimSpace(s)
	return s, p, s != ""
}

// ── IMAGE_MUTABLE_TAG ────────────────────────────────────────────────────────

// ImageMutableTagRule rejects images referenced by :latest or by no tag at
// all. A digest makes the reference immutable whatever the tag says. This
// rule also owns reporting of missing and unparsable image references so the
// other provenance rules do not repeat them.
type ImageMutableTagRule struct{ workloadRule }

func (r ImageMutableTagRule) ID() string                { return "IMAGE_MUTABLE_TAG" }
func (r ImageMutableTagRule) Name() string              { return "Container images do not use mutable tags" }
func (r ImageMutableTagRule) Severity() models.Severity { return models.SeverityError }

func (r ImageMutableTagRule) Evaluate(ctx RuleContext) ([]models.Finding, error) {
	doc := ctx.Document
	var findings []models.Finding
	for _, c := range containersOf(doc, true) {
		image, p, ok := containerImage(c)
		if !ok {
			findings = append(findings, newFinding(r, doc, p, "%s has no image", c.label()))
			continue
		}
		named, err := reference.ParseNormalizedNamed(image)
		if err != nil {
			findings = append(findings, newFinding(r, doc, p, "%s has an invalid image reference %q: %v", c.label(), image, err))
			continue
		}
		if _, digested := named.(reference.Digested); digested {
			continue
		}
		tagged, hasTag := named.(reference.Tagged)
		switch {
		case !hasTag:
			findings = append(findings, newFinding(r, doc, p, "%s image %q has no tag and resolves to :latest", c.label(), image))
		case tagged.Tag() == "latest":
			findings = append(findings, newFinding(r, doc, p, "%s image %q uses the mutable tag :latest", c.label(), image))
		}
	}
	return findings, nil
}

// ── IMAGE_UNAPPROVED_REGISTRY ────────────────────────────────────────────────

// ImageUnapprovedRegistryRule requires image references to start with one of
// the approved registry prefixes, matched at a host or path boundary. The
// comparison is on the reference as written, before any docker.io
// normalization.
type ImageUnapprovedRegistryRule struct{ workloadRule }

func (r ImageUnapprovedRegistryRule) ID() string { return "IMAGE_UNAPPROVED_REGISTRY" }
func (r ImageUnapprovedRegistryRule) Name() string {
	return "Container images come from an approved registry"
}
func (r ImageUnapprovedRegistryRule) Severity() models.Severity { return models.SeverityError }

func (r ImageUnapprovedRegistryRule) Evaluate(ctx RuleContext) ([]models.Finding, error) {
	doc := ctx.Document
	prefixes := ctx.Opts().ApprovedRegistryPrefixes

	var findings []models.Finding
	for _, c := range containersOf(doc, true) {
		image, p, ok := containerImage(c)
		if !ok {
			continue
		}
		if !hasAnyPrefix(image, prefixes) {
			findings = append(findings, newFinding(r, doc, p,
				"%s image %q is not from an approved registry (%s)", c.label(), image, strings.Join(prefixes, ", ")))
		}
	}
	return findings, nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if registryPrefixMatch(s, p) {
			return true
		}
	}
	return false
}

// registryPrefixMatch reports whether image starts with prefix at a
// reference boundary. A prefix ending in "/" matches as written. Otherwise the
// next character must be "/", or ":" or "@" when the prefix already names a
// repository path, so "registry.bank.internal" never approves
// "registry.bank.internal.evil.io/app" or "registry.bank.internal:5000/app".
func registryPrefixMatch(image, prefix string) bool {
	if !strings.HasPrefix(image, prefix) {
		return false
	}
	if strings.HasSuffix(prefix, "/") || len(image) == len(prefix) {
		return true
	}
	switch image[len(prefix)] {
	case '/':
		return true
	case ':', '@':
		return strings.Contains(prefix, "/")
	}
	return false
}

// ── IMAGE_NOT_DIGEST_PINNED ──────────────────────────────────────────────────

// ImageNotDigestPinnedRule requires image references to carry a valid content
// digest. It only runs when the standards require digest pinning.
type ImageNotDigestPinnedRule struct{}

func (r ImageNotDigestPinnedRule) ID() string                { return "IMAGE_NOT_DIGEST_PINNED" }
func (r ImageNotDigestPinnedRule) Name() string              { return "Container images are pinned by digest" }
func (r ImageNotDigestPinnedRule) Severity() models.Severity { return models.SeverityError }

func (r ImageNotDigestPinnedRule) AppliesTo(doc *manifest.Document, opts *policy.Options) bool {
	return opts.RequireDigestPin && opts.IsWorkload(doc.Kind)
}

func (r ImageNotDigestPinnedRule) Evaluate(ctx RuleContext) ([]models.Finding, error) {
	doc := ctx.Document
	var findings []models.Finding
	for _, c := range containersOf(doc, true) {
		image, p, ok := containerImage(c)
		if !ok {
			continue
		}
		named, err := reference.ParseNormalizedNamed(image)
		if err != nil {
			findings = append(findings, newFinding(r, doc, p, "%s image %q is not pinned by a valid digest", c.label(), image))
			continue
		}
		if _, digested := named.(reference.Digested); !digested {
			findings = append(findings, newFinding(r, doc, p, "%s image %q is not pinned by digest (@sha256:...)", c.label(), image))
		}
	}
	return findings, nil
}
