package rules

import (
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/manifest"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/policy"
)

// podSpecPath returns where the pod spec lives for a workload kind.
// Kinds not listed here are assumed to embed a pod template under
// spec.template, which also covers most custom workload kinds.
func podSpecPath(kind string) manifest.Path {
	switch kind {
	case "Pod":
		return manifest.Path{"spec"}
	case "CronJob":
		return manifest.Path{"spec", "jobTemplate", "spec", "template", "spec"}
	default:
		return manifest.Path{"spec", "template", "spec"}
	}
}

// podLabelsPath returns where the pod labels live for a workload kind.
func podLabelsPath(kind string) manifest.Path {
	switch kind {
	case "Pod":
		return manifest.Path{"metadata", "labels"}
	case "CronJob":
		return manifest.Path{"spec", "jobTemplate", "spec", "template", "metadata", "labels"}
	default:
		return manifest.Path{"spec", "template", "metadata", "labels"}
	}
}

// container is one entry of a pod spec's containers or initContainers list.
type container struct {
	Node *manifest.Node
	Path manifest.Path
	Name string
	Init bool
}

// label returns a display name for messages.
func (c container) label() string {
	name := c.Name
	if name == "" {
		name = c.Path.String()
	}
	if c.Init {
		return "init container " + quote(name)
	}
	return "container " + quote(name)
}

func quote(s string) string { return `"` + s + `"` }

// podSpec returns the pod spec node of a workload document.
func podSpec(doc *manifest.Document) (*manifest.Node, manifest.Path, bool) {
	p := podSpecPath(doc.Kind)
	n, ok := manifest.GetMapping(doc.Root, p...)
	return n, p, ok
}

// containersOf lists the containers of a workload document in spec order:
// regular containers first, then init containers when includeInit is set.
// Entries that are not mappings are skipped.
func containersOf(doc *manifest.Document, includeInit bool) []container {
	spec, base, ok := podSpec(doc)
	if !ok {
		return nil
	}
	fields := []string{"containers"}
	if includeInit {
		fields = append(fields, "initContainers")
	}
	var out []container
	for _, field := range fields {
		items, ok := manifest.GetSequence(spec, field)
		if !ok {
			continue
		}
		for i, item := range items {
			if item.Kind != manifest.MappingNode {
				continue
			}
			name, _ := manifest.GetString(item, "name")
			out = append(out, container{
				Node: item,
				Path: base.Child(field, i),
				Name: name,
				Init: field == "initContainers",
			})
		}
	}
	return out
}

// workloadRule is embedded by rules that only apply to container-bearing
// workload kinds.
type workloadRule struct{}

func (workloadRule) AppliesTo(doc *manifest.Document, opts *policy.Options) bool {
	return opts.IsWorkload(doc.Kind)
}

// anyKindRule is embedded by rules that apply to every document that
// declares a kind.
type anyKindRule struct{}

func (anyKindRule) AppliesTo(doc *manifest.Document, _ *policy.Options) bool {
	return doc.Kind != ""
}

// boolField classifies a boolean field without conflating absence with an
// explicit false.
type boolField int

const (
	boolAbsent boolField = iota
	boolTrue
	boolFalse
	boolInvalid
)

// readBool reads the field at path. An explicit null counts as absent.
func readBool(n *manifest.Node, path ...any) boolField {
	v, ok := manifest.Get(n, path...)
	if !ok || v.IsNull() {
		return boolAbsent
	}
	b, ok := v.AsBool()
	switch {
	case !ok:
		return boolInvalid
	case b:
		return boolTrue
	default:
		return boolFalse
	}
}
