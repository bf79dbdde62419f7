// Package catalog holds the static, read-only mapping from language
// tag to sandbox image and compile/run command template.
package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderPattern matches every {name} token in a command template.
var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_]+)\}`)

// knownPlaceholders are the only placeholder names a template may use.
var knownPlaceholders = map[string]bool{
	"file":      true,
	"output":    true,
	"classname": true,
}

// Descriptor is one immutable catalog entry.
type Descriptor struct {
	Tag                  string
	Ext                  string
	Image                string
	CommandTemplate      string
	TreatStderrAsFailure bool

	// MemoryLimitMB, CPULimit and PidsLimit override the sandbox
	// driver's global defaults for this language. Zero means "use
	// the driver's default".
	MemoryLimitMB int64
	CPULimit      float64
	PidsLimit     int64
}

// Binding supplies the values substituted into a command template.
type Binding struct {
	File      string
	Output    string
	ClassName string
}

// Expand replaces every occurrence of every known placeholder in the
// descriptor's command template with the corresponding value from b.
func (d Descriptor) Expand(b Binding) string {
	cmd := d.CommandTemplate
	cmd = strings.ReplaceAll(cmd, "{file}", b.File)
	cmd = strings.ReplaceAll(cmd, "{output}", b.Output)
	cmd = strings.ReplaceAll(cmd, "{classname}", b.ClassName)
	return cmd
}

// Catalog is the read-only table of all known languages.
type Catalog struct {
	byTag map[string]Descriptor
	tags  []string
}

// ErrNotFound is returned by Resolve for an unregistered tag.
type ErrNotFound struct {
	Tag string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("unsupported language: %q", e.Tag)
}

// New builds a Catalog from a set of descriptors, validating every
// template's placeholders at load time. It panics on an invalid
// descriptor — the catalog is a startup-time invariant, not a runtime
// one, so a bad template belongs in a crash-on-boot check, not an
// error return threaded through every caller.
func New(descriptors []Descriptor) *Catalog {
	c := &Catalog{byTag: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if err := validateTemplate(d.CommandTemplate); err != nil {
			panic(fmt.Sprintf("catalog: language %q: %v", d.Tag, err))
		}
		c.byTag[d.Tag] = d
		c.tags = append(c.tags, d.Tag)
	}
	return c
}

func validateTemplate(template string) error {
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		name := m[1]
		if !knownPlaceholders[name] {
			return fmt.Errorf("unknown placeholder {%s}", name)
		}
	}
	return nil
}

// Resolve looks up a descriptor by tag.
func (c *Catalog) Resolve(tag string) (Descriptor, error) {
	d, ok := c.byTag[strings.ToLower(strings.TrimSpace(tag))]
	if !ok {
		return Descriptor{}, &ErrNotFound{Tag: tag}
	}
	return d, nil
}

// Tags returns every registered language tag, for GET /languages.
func (c *Catalog) Tags() []string {
	out := make([]string, len(c.tags))
	copy(out, c.tags)
	return out
}

// Default returns the catalog described in spec.md §4.1.
func Default() *Catalog {
	return New([]Descriptor{
		{
			Tag:                  "c",
			Ext:                  "c",
			Image:                "gcc:13",
			CommandTemplate:      "gcc {file} -o {output} && {output}",
			TreatStderrAsFailure: true,
			MemoryLimitMB:        128,
			CPULimit:             0.5,
			PidsLimit:            50,
		},
		{
			Tag:                  "cpp",
			Ext:                  "cpp",
			Image:                "gcc:13",
			CommandTemplate:      "g++ {file} -o {output} && {output}",
			TreatStderrAsFailure: true,
			MemoryLimitMB:        256,
			CPULimit:             0.5,
			PidsLimit:            50,
		},
		{
			Tag:                  "python",
			Ext:                  "py",
			Image:                "python",
			CommandTemplate:      "python3 {file}",
			TreatStderrAsFailure: false,
			MemoryLimitMB:        256,
			CPULimit:             0.5,
			PidsLimit:            50,
		},
		{
			Tag:                  "java",
			Ext:                  "java",
			Image:                "openjdk:17",
			CommandTemplate:      "javac {file} && java {classname}",
			TreatStderrAsFailure: true,
			MemoryLimitMB:        512,
			CPULimit:             1.0,
			PidsLimit:            200,
		},
		{
			Tag:                  "node",
			Ext:                  "js",
			Image:                "node",
			CommandTemplate:      "node {file}",
			TreatStderrAsFailure: false,
			MemoryLimitMB:        256,
			CPULimit:             0.5,
			PidsLimit:            50,
		},
	})
}
