package assets

type Config struct {
	// Root directory the descriptor paths are relative to
	Root string
	// Path to the Dart Sass binary, empty uses "sass" from PATH
	SassBinary string
	// Extra directories searched by sass @use and @import
	SassIncludePaths []string
	// Optional path to write the esbuild metafile, relative to Root
	MetafilePath string
}

// DefaultConfig returns a configuration rooted at the working directory
func DefaultConfig() Config {
	return Config{
		Root: ".",
	}
}
