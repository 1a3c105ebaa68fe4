package buildconfig

import (
	"regexp"
	"slices"
)

type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// ParseEnvironment converts a selector into an Environment, rejecting anything
// other than the two known values.
func ParseEnvironment(s string) (Environment, error) {
	switch env := Environment(s); env {
	case Development, Production:
		return env, nil
	default:
		return "", configError("environment", s, ErrInvalidEnvironment)
	}
}

// Transform names understood by the asset pipeline.
const (
	TransformSass    = "sass"
	TransformCSS     = "css"
	TransformExtract = "extract"
	TransformStyle   = "style"
)

var knownTransforms = map[string]bool{
	TransformSass:    true,
	TransformCSS:     true,
	TransformExtract: true,
	TransformStyle:   true,
}

// IsTerminalTransform reports whether the transform decides how the module is emitted.
func IsTerminalTransform(name string) bool {
	return name == TransformExtract || name == TransformStyle
}

// TransformRule applies Transforms, in order, to every source path matching Pattern.
type TransformRule struct {
	Pattern    string   `json:"pattern" yaml:"pattern"`
	Transforms []string `json:"transforms" yaml:"transforms"`
}

// BuildDescriptor is the fully resolved set of paths and patterns handed to the bundler.
type BuildDescriptor struct {
	Environment           Environment     `json:"environment" yaml:"environment"`
	Variant               string          `json:"variant" yaml:"variant"`
	Legacy                bool            `json:"legacy,omitempty" yaml:"legacy,omitempty"`
	EntryPath             string          `json:"entryPath" yaml:"entryPath"`
	ChunkName             string          `json:"chunkName" yaml:"chunkName"`
	OutputDirectory       string          `json:"outputDirectory" yaml:"outputDirectory"`
	OutputFilenamePattern string          `json:"outputFilenamePattern" yaml:"outputFilenamePattern"`
	CSSOutputPattern      string          `json:"cssOutputPattern" yaml:"cssOutputPattern"`
	ManifestPath          string          `json:"manifestPath" yaml:"manifestPath"`
	PublicPath            string          `json:"publicPath" yaml:"publicPath"`
	Minify                bool            `json:"minify" yaml:"minify"`
	SourceMap             bool            `json:"sourceMap" yaml:"sourceMap"`
	Precompress           bool            `json:"precompress" yaml:"precompress"`
	TransformRules        []TransformRule `json:"transformRules" yaml:"transformRules"`
}

// Override lists the fields a derived descriptor may replace. Nil fields keep the base value.
type Override struct {
	EntryPath             *string         `yaml:"entryPath"`
	ChunkName             *string         `yaml:"chunkName"`
	OutputDirectory       *string         `yaml:"outputDirectory"`
	OutputFilenamePattern *string         `yaml:"outputFilenamePattern"`
	CSSOutputPattern      *string         `yaml:"cssOutputPattern"`
	ManifestPath          *string         `yaml:"manifestPath"`
	PublicPath            *string         `yaml:"publicPath"`
	Minify                *bool           `yaml:"minify"`
	SourceMap             *bool           `yaml:"sourceMap"`
	Precompress           *bool           `yaml:"precompress"`
	TransformRules        []TransformRule `yaml:"transformRules"`
}

// Apply returns a copy of d with every field set in o taking precedence.
func (d BuildDescriptor) Apply(o Override) BuildDescriptor {
	out := d.clone()

	setString(&out.EntryPath, o.EntryPath)
	setString(&out.ChunkName, o.ChunkName)
	setString(&out.OutputDirectory, o.OutputDirectory)
	setString(&out.OutputFilenamePattern, o.OutputFilenamePattern)
	setString(&out.CSSOutputPattern, o.CSSOutputPattern)
	setString(&out.ManifestPath, o.ManifestPath)
	setString(&out.PublicPath, o.PublicPath)
	setBool(&out.Minify, o.Minify)
	setBool(&out.SourceMap, o.SourceMap)
	setBool(&out.Precompress, o.Precompress)

	// rules replace wholesale, ordering is significant so merging would be ambiguous
	if o.TransformRules != nil {
		out.TransformRules = cloneRules(o.TransformRules)
	}

	return out
}

// Validate checks the required path fields and the transform rules.
func (d BuildDescriptor) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"entryPath", d.EntryPath},
		{"outputDirectory", d.OutputDirectory},
		{"outputFilenamePattern", d.OutputFilenamePattern},
		{"manifestPath", d.ManifestPath},
		{"chunkName", d.ChunkName},
	}
	for _, r := range required {
		if r.value == "" {
			return configError(r.field, "", ErrMissingField)
		}
	}

	for _, rule := range d.TransformRules {
		if err := validateRule(rule, d.CSSOutputPattern); err != nil {
			return err
		}
	}

	return nil
}

func validateRule(rule TransformRule, cssPattern string) error {
	if rule.Pattern == "" {
		return configError("transformRules.pattern", "", ErrMissingField)
	}
	if _, err := regexp.Compile(rule.Pattern); err != nil {
		return configError("transformRules.pattern", rule.Pattern, ErrInvalidTransform)
	}
	if len(rule.Transforms) == 0 {
		return configError("transformRules.transforms", rule.Pattern, ErrMissingField)
	}

	for i, name := range rule.Transforms {
		if !knownTransforms[name] {
			return configError("transformRules.transforms", name, ErrInvalidTransform)
		}
		if IsTerminalTransform(name) && i != len(rule.Transforms)-1 {
			return configError("transformRules.transforms", name, ErrInvalidTransform)
		}
		if name == TransformExtract && cssPattern == "" {
			return configError("cssOutputPattern", "", ErrMissingField)
		}
	}

	return nil
}

func (d BuildDescriptor) clone() BuildDescriptor {
	out := d
	out.TransformRules = cloneRules(d.TransformRules)
	return out
}

func cloneRules(rules []TransformRule) []TransformRule {
	if rules == nil {
		return nil
	}
	out := make([]TransformRule, len(rules))
	for i, r := range rules {
		out[i] = TransformRule{Pattern: r.Pattern, Transforms: slices.Clone(r.Transforms)}
	}
	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
