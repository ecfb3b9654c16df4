package main

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/savefile"
	serrors "github.com/wippyai/savefile/errors"
	"github.com/wippyai/savefile/schema"
)

// errMismatch makes diff exit with status 1 after printing the mismatch.
var errMismatch = stderrors.New("schemas differ")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// readHeader reads the version and schema block at the start of path.
func readHeader(path string, compressed bool) (*savefile.Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if compressed {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open zstd stream: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	h, err := parseHeader(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

// parseHeader reports a corrupt schema block as an error instead of
// letting the invariant panic reach the user.
func parseHeader(r io.Reader) (h *savefile.Header, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			inv, ok := serrors.AsInvariant(rec)
			if !ok {
				panic(rec)
			}
			h, err = nil, fmt.Errorf("corrupt schema block: %w", inv)
		}
	}()
	return savefile.ReadHeader(r)
}

func newInspectCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print the version and schema of a saved file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := readHeader(args[0], v.GetBool("compressed"))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "file:    %s\n", args[0])
			fmt.Fprintf(out, "version: %d\n", h.Version)
			fmt.Fprintf(out, "root:    %s\n", h.Schema.Describe())
			fmt.Fprintf(out, "schema:\n%s\n", indent(schema.Format(h.Schema), "  "))
			return nil
		},
	}
}

func newSchemaCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema FILE",
		Short: "Dump the schema of a saved file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := readHeader(args[0], v.GetBool("compressed"))
			if err != nil {
				return err
			}
			return writeSchema(cmd.OutOrStdout(), h.Schema, v.GetString("format"))
		},
	}
	cmd.Flags().String("format", "text", "output format (text, yaml, json)")
	return cmd
}

func writeSchema(w io.Writer, s *schema.Schema, format string) error {
	switch format {
	case "text":
		_, err := fmt.Fprintln(w, schema.Format(s))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	default:
		return fmt.Errorf("invalid format %s", format)
	}
}

func newDiffCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Check that data saved as OLD can be read with the schema of NEW",
		Long: `Compares the schema blocks of two saved files. NEW plays the role of the
in-memory schema. Prints the first mismatch and exits with status 1 when
the schemas are incompatible.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			compressed := v.GetBool("compressed")
			old, err := readHeader(args[0], compressed)
			if err != nil {
				return err
			}
			cur, err := readHeader(args[1], compressed)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if m := schema.Diff(cur.Schema, old.Schema); m != nil {
				fmt.Fprintln(out, m)
				return errMismatch
			}
			fmt.Fprintf(out, "compatible: version %d data reads as version %d\n", old.Version, cur.Version)
			return nil
		},
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}
