package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pasqal-io/godasse-tree/deserialize/shared"
	"github.com/pasqal-io/godasse-tree/deserialize/tree"
	"github.com/pasqal-io/godasse-tree/deserialize/xml"
	"github.com/pasqal-io/godasse-tree/deserialize/yaml"
	"github.com/pasqal-io/godasse-tree/internal/logging"
	"github.com/spf13/cobra"
)

func newDumpCmd(out io.Writer) *cobra.Command {
	var maxDepth int
	var format string
	dumpCmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "dump FILE",
		Short: "Print the tree of a document with positions",
		Long:  `Parses FILE and prints every element with its position, attributes and trimmed text. The format is guessed from the extension unless --format is given.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := logging.New(level)

			path := args[0]
			driver, err := driverFor(path, format, maxDepth)
			if err != nil {
				return err
			}
			source, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s:\n\t * %w", path, err)
			}
			root, err := driver.Parse(source)
			if err != nil {
				return fmt.Errorf("at %s, failed to parse document:\n\t * %w", path, err)
			}
			logger.Debug("parsed document", "path", path, "root", root.Name(), "depth", tree.Depth(root))
			return dump(out, root, 0)
		},
	}
	dumpCmd.Flags().IntVar(&maxDepth, "max-depth", 0, "Reject documents nested deeper than this (0 for unlimited)")
	dumpCmd.Flags().StringVar(&format, "format", "", "Either xml or yaml, overrides the extension")
	return dumpCmd
}

func driverFor(path string, format string, maxDepth int) (shared.Driver, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			format = "yaml"
		default:
			format = "xml"
		}
	}
	switch format {
	case "xml":
		return xml.Driver{MaxDepth: maxDepth}, nil //nolint:exhaustruct
	case "yaml":
		return yaml.Driver{MaxDepth: maxDepth}, nil //nolint:exhaustruct
	default:
		return nil, fmt.Errorf("unknown format %q, expected xml or yaml", format)
	}
}

func dump(out io.Writer, node tree.Node, depth int) error {
	indent := strings.Repeat("  ", depth)
	line := fmt.Sprintf("%s%s (%s)", indent, node.Name(), node.Position())
	if text := strings.TrimSpace(node.Text()); text != "" {
		line = fmt.Sprintf("%s %q", line, text)
	}
	if _, err := fmt.Fprintln(out, line); err != nil {
		return err //nolint:wrapcheck
	}
	for _, attr := range node.Attributes() {
		if _, err := fmt.Fprintf(out, "%s  @%s=%q (%s)\n", indent, attr.Name, attr.Value, attr.Position); err != nil {
			return err //nolint:wrapcheck
		}
	}
	for _, child := range node.Children() {
		if err := dump(out, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}
