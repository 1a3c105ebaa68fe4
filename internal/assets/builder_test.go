package assets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/muspy/assets/internal/buildconfig"
	"github.com/muspy/assets/internal/manifest"
	"github.com/stretchr/testify/require"
)

// writeProject lays out a small front-end project under a temp root.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for name, contents := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	}
	return root
}

var cssProject = map[string]string{
	"app/static/src/index.js":  "import './site.css';\nconsole.log('muspy');\n",
	"app/static/src/site.css": "body { color: rebeccapurple; }\n",
}

// cssDescriptor swaps the sass rule for a plain CSS one so tests do not need Dart Sass installed.
func cssDescriptor(t *testing.T, env buildconfig.Environment) buildconfig.BuildDescriptor {
	t.Helper()

	d, err := buildconfig.Resolve(env)
	require.NoError(t, err)

	return d.Apply(buildconfig.Override{
		TransformRules: []buildconfig.TransformRule{
			{Pattern: `\.css$`, Transforms: []string{buildconfig.TransformCSS, buildconfig.TransformExtract}},
		},
	})
}

func TestBuild_development(t *testing.T) {
	root := writeProject(t, cssProject)

	p, err := New(cssDescriptor(t, buildconfig.Development), Config{Root: root})
	require.NoError(t, err)
	defer p.Close()

	stats, err := p.Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, manifest.StatusDone, stats.Status)

	js, err := os.ReadFile(filepath.Join(root, "app/static/dist/main.js"))
	require.NoError(t, err)
	require.Contains(t, string(js), "muspy")
	require.Contains(t, string(js), "sourceMappingURL=data:")

	css, err := os.ReadFile(filepath.Join(root, "app/static/dist/main.css"))
	require.NoError(t, err)
	require.Contains(t, string(css), "rebeccapurple")

	onDisk, err := manifest.Read(filepath.Join(root, "tmp/webpack-stats.json"))
	require.NoError(t, err)
	require.Equal(t, stats, onDisk)

	chunk := onDisk.Chunks["main"]
	require.Len(t, chunk, 2)
	require.Equal(t, "main.js", chunk[0].Name)
	require.Equal(t, "/static/dist/main.js", chunk[0].PublicPath)
	require.Equal(t, "main.css", chunk[1].Name)
	require.Equal(t, filepath.Join(root, "app/static/dist/main.css"), chunk[1].Path)

	_, err = os.Stat(filepath.Join(root, "app/static/dist/main.js.gz"))
	require.True(t, os.IsNotExist(err), "development builds are not precompressed")
}

func TestBuild_production(t *testing.T) {
	root := writeProject(t, cssProject)

	p, err := New(cssDescriptor(t, buildconfig.Production), Config{Root: root})
	require.NoError(t, err)
	defer p.Close()

	stats, err := p.Build(context.Background())
	require.NoError(t, err)

	chunk := stats.Chunks["main"]
	require.Len(t, chunk, 2)
	require.Regexp(t, regexp.MustCompile(`^main\.[a-z2-7]{20}\.js$`), chunk[0].Name)
	require.Regexp(t, regexp.MustCompile(`^main\.[a-z2-7]{20}\.css$`), chunk[1].Name)

	js, err := os.ReadFile(chunk[0].Path)
	require.NoError(t, err)
	require.NotContains(t, string(js), "sourceMappingURL")
	require.NotContains(t, string(js), "\n  ", "production output is minified")

	for _, a := range chunk {
		for _, suffix := range []string{".gz", ".zst"} {
			_, err := os.Stat(a.Path + suffix)
			require.NoError(t, err)
		}
	}

	_, err = os.Stat(filepath.Join(root, "tmp/webpack-stats-prod.json"))
	require.NoError(t, err)
}

func TestBuild_contentHashIsStable(t *testing.T) {
	root := writeProject(t, cssProject)

	p, err := New(cssDescriptor(t, buildconfig.Production), Config{Root: root})
	require.NoError(t, err)
	defer p.Close()

	first, err := p.Build(context.Background())
	require.NoError(t, err)
	second, err := p.Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, first.Chunks, second.Chunks)
	require.Equal(t, first.Hash, second.Hash)

	require.NoError(t, os.WriteFile(filepath.Join(root, "app/static/src/site.css"), []byte("body { color: teal; }\n"), 0o600))
	third, err := p.Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, first.Chunks["main"][0].Name, third.Chunks["main"][0].Name, "script unchanged")
	require.NotEqual(t, first.Chunks["main"][1].Name, third.Chunks["main"][1].Name, "stylesheet changed")
}

func TestBuild_styleTransform(t *testing.T) {
	root := writeProject(t, cssProject)

	d := cssDescriptor(t, buildconfig.Development).Apply(buildconfig.Override{
		TransformRules: []buildconfig.TransformRule{
			{Pattern: `\.css$`, Transforms: []string{buildconfig.TransformCSS, buildconfig.TransformStyle}},
		},
	})

	p, err := New(d, Config{Root: root})
	require.NoError(t, err)
	defer p.Close()

	stats, err := p.Build(context.Background())
	require.NoError(t, err)
	require.Len(t, stats.Chunks["main"], 1)

	js, err := os.ReadFile(filepath.Join(root, "app/static/dist/main.js"))
	require.NoError(t, err)
	require.Contains(t, string(js), "rebeccapurple")
	require.Contains(t, string(js), "site.css")

	_, err = os.Stat(filepath.Join(root, "app/static/dist/main.css"))
	require.True(t, os.IsNotExist(err))
}

func TestBuild_legacyCSSName(t *testing.T) {
	root := writeProject(t, cssProject)

	d, err := buildconfig.ResolveVariant(buildconfig.VariantLegacy)
	require.NoError(t, err)
	d = d.Apply(buildconfig.Override{
		TransformRules: []buildconfig.TransformRule{
			{Pattern: `\.css$`, Transforms: []string{buildconfig.TransformCSS, buildconfig.TransformExtract}},
		},
	})

	p, err := New(d, Config{Root: root})
	require.NoError(t, err)
	defer p.Close()

	stats, err := p.Build(context.Background())
	require.NoError(t, err)

	chunk := stats.Chunks["main"]
	require.Len(t, chunk, 2)
	require.Regexp(t, regexp.MustCompile(`^main-[a-z2-7]{20}\.js$`), chunk[0].Name)
	require.Equal(t, "css/muspy.css", chunk[1].Name)
	require.Equal(t, "/static/css/muspy.css", chunk[1].PublicPath)

	_, err = os.Stat(filepath.Join(root, "webpack-stats.json"))
	require.NoError(t, err)
}

func TestBuild_errorManifest(t *testing.T) {
	root := writeProject(t, map[string]string{
		"app/static/src/index.js": "import './missing.css';\n",
	})

	p, err := New(cssDescriptor(t, buildconfig.Development), Config{Root: root})
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Build(context.Background())
	require.Error(t, err)

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	require.NotEmpty(t, buildErr.Messages)

	stats, err := manifest.Read(filepath.Join(root, "tmp/webpack-stats.json"))
	require.NoError(t, err)
	require.Equal(t, manifest.StatusError, stats.Status)
	require.Equal(t, "ModuleBuildError", stats.Error)
	require.Contains(t, stats.Message, "missing.css")

	_, _, err = p.LoadScripts("main")
	require.Error(t, err)
}

func TestBuild_metafile(t *testing.T) {
	root := writeProject(t, cssProject)

	p, err := New(cssDescriptor(t, buildconfig.Development), Config{Root: root, MetafilePath: "meta.json"})
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Build(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "meta.json"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"outputs"`)
}

func TestNew_invalidDescriptor(t *testing.T) {
	d := cssDescriptor(t, buildconfig.Development)
	d.ManifestPath = ""

	_, err := New(d, DefaultConfig())
	require.ErrorIs(t, err, buildconfig.ErrMissingField)
}

func TestLoadScriptsAndHandler(t *testing.T) {
	root := writeProject(t, cssProject)

	p, err := NewWithTemplate(cssDescriptor(t, buildconfig.Development), Config{Root: root}, "")
	require.NoError(t, err)
	defer p.Close()

	_, _, err = p.LoadScripts("main")
	require.Error(t, err, "nothing built yet")

	_, err = p.Build(context.Background())
	require.NoError(t, err)

	scripts, styles, err := p.LoadScripts("main")
	require.NoError(t, err)
	require.Equal(t, []string{"/static/dist/main.js"}, scripts)
	require.Equal(t, []string{"/static/dist/main.css"}, styles)

	_, _, err = p.LoadScripts("vendor")
	require.Error(t, err)

	handler, err := p.Handler(DefaultTemplate, "muspy", "main", func(ctx context.Context) any {
		return map[string]string{"user": "alice"}
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.Contains(t, body, `<script src="/static/dist/main.js"></script>`)
	require.Contains(t, body, `<link rel="stylesheet" href="/static/dist/main.css">`)
	require.Contains(t, body, "alice")
}

func TestHandler_withoutTemplate(t *testing.T) {
	p, err := New(cssDescriptor(t, buildconfig.Development), DefaultConfig())
	require.NoError(t, err)

	_, err = p.Handler(DefaultTemplate, "muspy", "main", nil)
	require.Error(t, err)
}

func TestImmutable(t *testing.T) {
	dev, err := New(cssDescriptor(t, buildconfig.Development), DefaultConfig())
	require.NoError(t, err)
	defer dev.Close()

	prod, err := New(cssDescriptor(t, buildconfig.Production), DefaultConfig())
	require.NoError(t, err)
	defer prod.Close()

	require.False(t, dev.Immutable("main.js"))
	require.False(t, dev.Immutable("main.css"))
	require.True(t, dev.Immutable("logo-ZJ6ZWLTC.png"))

	require.True(t, prod.Immutable("main.mfrggzdfmztwqalkmfrg.js"))
	require.True(t, prod.Immutable("main.mfrggzdfmztwqalkmfrg.css"))
	require.False(t, prod.Immutable("main.js"))
}
