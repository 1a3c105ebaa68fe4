package commands

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gonvenience/ytbx"
	"github.com/homeport/dyff/pkg/dyff"
	"github.com/muspy/assets/internal/logger"
	"github.com/rs/zerolog"
)

type DiffCmd struct {
	From  string `arg:"" optional:"" help:"base variant" default:"development"`
	To    string `arg:"" optional:"" help:"derived variant" default:"production"`
	Color bool   `help:"colorize the report" default:"false"`

	out io.Writer `kong:"-"`
}

func (c *DiffCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)

	report, err := c.report(globals, log)
	if err != nil {
		return err
	}

	w := c.out
	if w == nil {
		w = os.Stdout
	}

	if report == "" {
		_, err = fmt.Fprintf(w, "%s and %s resolve to the same descriptor\n", c.From, c.To)
		return err
	}
	_, err = fmt.Fprintln(w, report)
	return err
}

func (c *DiffCmd) report(globals *Globals, log zerolog.Logger) (string, error) {
	inputs := make([]ytbx.InputFile, 0, 2)

	for _, variant := range []string{c.From, c.To} {
		desc, err := globals.descriptor(log, variant)
		if err != nil {
			return "", err
		}

		var buf bytes.Buffer
		if err := writeDescriptor(&buf, desc, "yaml"); err != nil {
			return "", err
		}

		docs, err := ytbx.LoadYAMLDocuments(buf.Bytes())
		if err != nil {
			return "", fmt.Errorf("parsing %s descriptor: %w", variant, err)
		}
		inputs = append(inputs, ytbx.InputFile{Location: variant, Documents: docs})
	}

	report, err := dyff.CompareInputFiles(inputs[0], inputs[1])
	if err != nil {
		return "", fmt.Errorf("comparing descriptors: %w", err)
	}

	if len(report.Diffs) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	writer := &dyff.HumanReport{
		Report:       report,
		NoTableStyle: !c.Color,
		OmitHeader:   true,
	}
	if err := writer.WriteReport(&buf); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}

	lines := strings.Split(buf.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}
