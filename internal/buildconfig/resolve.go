package buildconfig

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Variant names. Only the first two are reachable through Resolve.
const (
	VariantDevelopment      = "development"
	VariantProduction       = "production"
	VariantLegacy           = "legacy"
	VariantLegacyProduction = "legacy-production"
)

// Resolve returns the build descriptor for env. It performs no I/O and
// returns a fresh value on every call.
func Resolve(env Environment) (BuildDescriptor, error) {
	switch env {
	case Development:
		return development(), nil
	case Production:
		return development().Apply(productionOverride()).withIdentity(Production, VariantProduction), nil
	default:
		return BuildDescriptor{}, configError("environment", string(env), ErrInvalidEnvironment)
	}
}

// ResolveVariant resolves any declared variant by name, including the legacy ones.
func ResolveVariant(name string) (BuildDescriptor, error) {
	switch name {
	case VariantDevelopment:
		return Resolve(Development)
	case VariantProduction:
		return Resolve(Production)
	case VariantLegacy:
		return legacy(), nil
	case VariantLegacyProduction:
		return legacyProduction(), nil
	default:
		return BuildDescriptor{}, configError("variant", name, ErrUnknownVariant)
	}
}

// VariantInfo describes a declared variant for listing.
type VariantInfo struct {
	Name        string
	Environment Environment
	Legacy      bool
	Description string
}

// Variants lists every declared build variant in a stable order.
func Variants() []VariantInfo {
	return []VariantInfo{
		{VariantDevelopment, Development, false, "unhashed output under app/static/dist"},
		{VariantProduction, Production, false, "development overlaid with hashed, minified output"},
		{VariantLegacy, Production, true, "single muspy.css extraction into app/static"},
		{VariantLegacyProduction, Production, true, "script-only output into static/muspy/js"},
	}
}

// LoadOverrides reads a YAML override file. An empty path yields an empty Override.
func LoadOverrides(path string) (Override, error) {
	var o Override
	if path == "" {
		return o, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return o, err
	}

	if err := yaml.Unmarshal(data, &o); err != nil {
		return o, configError("overrides", path, err)
	}

	return o, nil
}

func development() BuildDescriptor {
	return BuildDescriptor{
		Environment:           Development,
		Variant:               VariantDevelopment,
		EntryPath:             "app/static/src/index.js",
		ChunkName:             "main",
		OutputDirectory:       "app/static/dist",
		OutputFilenamePattern: "[name].js",
		CSSOutputPattern:      "[name].css",
		ManifestPath:          "tmp/webpack-stats.json",
		PublicPath:            "/static/dist/",
		SourceMap:             true,
		TransformRules: []TransformRule{
			{Pattern: `\.scss$`, Transforms: []string{TransformSass, TransformCSS, TransformExtract}},
		},
	}
}

func productionOverride() Override {
	return Override{
		OutputFilenamePattern: ptr("[name].[hash].js"),
		CSSOutputPattern:      ptr("[name].[hash].css"),
		ManifestPath:          ptr("tmp/webpack-stats-prod.json"),
		Minify:                ptr(true),
		SourceMap:             ptr(false),
		Precompress:           ptr(true),
	}
}

func legacy() BuildDescriptor {
	return BuildDescriptor{
		Environment:           Production,
		Variant:               VariantLegacy,
		Legacy:                true,
		EntryPath:             "app/static/src/index.js",
		ChunkName:             "main",
		OutputDirectory:       "app/static",
		OutputFilenamePattern: "[name]-[hash].js",
		CSSOutputPattern:      "css/muspy.css",
		ManifestPath:          "webpack-stats.json",
		PublicPath:            "/static/",
		TransformRules: []TransformRule{
			{Pattern: `\.scss$`, Transforms: []string{TransformSass, TransformCSS, TransformExtract}},
		},
	}
}

func legacyProduction() BuildDescriptor {
	return BuildDescriptor{
		Environment:           Production,
		Variant:               VariantLegacyProduction,
		Legacy:                true,
		EntryPath:             "app/static/src/index.js",
		ChunkName:             "main",
		OutputDirectory:       "static/muspy/js",
		OutputFilenamePattern: "[name]-[hash].js",
		ManifestPath:          "tmp/webpack-stats-production.json",
		PublicPath:            "/static/muspy/js/",
	}
}

func (d BuildDescriptor) withIdentity(env Environment, variant string) BuildDescriptor {
	d.Environment = env
	d.Variant = variant
	return d
}

func ptr[T any](v T) *T {
	return &v
}
