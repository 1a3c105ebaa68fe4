package assets

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/muspy/assets/internal/buildconfig"
	"github.com/stretchr/testify/require"
)

func TestStyleModule(t *testing.T) {
	js := styleModule("/src/site.css", "body { content: \"x\"; }\n")

	require.Contains(t, js, `var file = "site.css";`)
	require.Contains(t, js, `s.textContent = "body { content: \"x\"; }\n";`)
}

func TestApplyRule_order(t *testing.T) {
	root := writeProject(t, cssProject)
	p, err := New(cssDescriptor(t, buildconfig.Development), Config{Root: root})
	require.NoError(t, err)

	path := filepath.Join(root, "app/static/src/site.css")

	res, err := p.applyRule(buildconfig.TransformRule{
		Pattern:    `\.css$`,
		Transforms: []string{buildconfig.TransformCSS, buildconfig.TransformExtract},
	}, path)
	require.NoError(t, err)
	require.Equal(t, api.LoaderCSS, res.Loader)
	require.Equal(t, "body { color: rebeccapurple; }\n", *res.Contents)
	require.Equal(t, filepath.Dir(path), res.ResolveDir)

	res, err = p.applyRule(buildconfig.TransformRule{
		Pattern:    `\.css$`,
		Transforms: []string{buildconfig.TransformCSS, buildconfig.TransformStyle},
	}, path)
	require.NoError(t, err)
	require.Equal(t, api.LoaderJS, res.Loader)
	require.Contains(t, *res.Contents, "document.createElement('style')")

	_, err = p.applyRule(buildconfig.TransformRule{Pattern: `\.css$`, Transforms: []string{"postcss"}}, path)
	require.Error(t, err)
}

func TestBuild_sass(t *testing.T) {
	bin, err := exec.LookPath("sass")
	if err != nil {
		t.Skip("dart sass not installed")
	}

	root := writeProject(t, map[string]string{
		"app/static/src/index.js":       "import './muspy.scss';\n",
		"app/static/src/muspy.scss":     "@use 'colors';\n.release { color: colors.$accent; }\n",
		"app/static/src/_colors.scss":   "$accent: #336699;\n",
		"app/static/src/unrelated.scss": "this is not scss {",
	})

	d, err := buildconfig.Resolve(buildconfig.Development)
	require.NoError(t, err)

	p, err := New(d, Config{Root: root, SassBinary: bin})
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Build(context.Background())
	require.NoError(t, err)

	css, err := os.ReadFile(filepath.Join(root, "app/static/dist/main.css"))
	require.NoError(t, err)
	require.Contains(t, string(css), ".release")
	require.Contains(t, string(css), "#336699")
}
