package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/muspy/assets/internal/buildconfig"
	"github.com/muspy/assets/internal/logger"
	"gopkg.in/yaml.v3"
)

type ResolveCmd struct {
	Variant string `arg:"" optional:"" help:"variant to resolve (development, production, legacy, legacy-production)" default:"development"`
	Format  string `help:"output format" default:"yaml" enum:"yaml,json"`

	out io.Writer `kong:"-"`
}

func (c *ResolveCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)

	desc, err := globals.descriptor(log, c.Variant)
	if err != nil {
		return err
	}

	return writeDescriptor(c.writer(), desc, c.Format)
}

func (c *ResolveCmd) writer() io.Writer {
	if c.out != nil {
		return c.out
	}
	return os.Stdout
}

func writeDescriptor(w io.Writer, desc buildconfig.BuildDescriptor, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(desc)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(desc); err != nil {
			return err
		}
		return enc.Close()
	}
}

type VariantsCmd struct {
	out io.Writer `kong:"-"`
}

func (c *VariantsCmd) Run(globals *Globals) error {
	w := c.out
	if w == nil {
		w = os.Stdout
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tENVIRONMENT\tLEGACY\tDESCRIPTION")
	for _, v := range buildconfig.Variants() {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", v.Name, v.Environment, v.Legacy, v.Description)
	}
	return tw.Flush()
}
