package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/muspy/assets/internal/buildconfig"
)

// styleModuleTemplate injects CSS through a <style> element tagged with its source file
// so a rebuild replaces rather than duplicates it.
const styleModuleTemplate = `(function () {
  var file = %s;
  var s = document.querySelector('style[data-file="' + file + '"]');
  if (!s) { s = document.createElement('style'); s.dataset.file = file; document.head.appendChild(s); }
  s.textContent = %s;
})();
`

// transformPlugin registers one loader per transform rule. Rules are registered in
// declaration order so the first matching rule wins, as with webpack module rules.
func (p *Pipeline) transformPlugin() api.Plugin {
	rules := p.desc.TransformRules

	return api.Plugin{
		Name: "transform-rules",
		Setup: func(build api.PluginBuild) {
			for _, rule := range rules {
				build.OnLoad(api.OnLoadOptions{Filter: rule.Pattern, Namespace: "file"},
					func(args api.OnLoadArgs) (api.OnLoadResult, error) {
						return p.applyRule(rule, args.Path)
					})
			}
		},
	}
}

// applyRule runs the transforms of rule over the file at path, in order.
func (p *Pipeline) applyRule(rule buildconfig.TransformRule, path string) (api.OnLoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return api.OnLoadResult{}, err
	}

	source := string(data)
	loader := api.LoaderCSS

	for _, name := range rule.Transforms {
		switch name {
		case buildconfig.TransformSass:
			source, err = p.sass.compile(path, source)
			if err != nil {
				return api.OnLoadResult{}, err
			}
		case buildconfig.TransformCSS, buildconfig.TransformExtract:
			loader = api.LoaderCSS
		case buildconfig.TransformStyle:
			source = styleModule(path, source)
			loader = api.LoaderJS
		default:
			return api.OnLoadResult{}, fmt.Errorf("unknown transform %q", name)
		}
	}

	return api.OnLoadResult{
		Contents:   &source,
		Loader:     loader,
		ResolveDir: filepath.Dir(path),
	}, nil
}

func styleModule(path, css string) string {
	return fmt.Sprintf(styleModuleTemplate, strconv.Quote(filepath.Base(path)), strconv.Quote(css))
}
