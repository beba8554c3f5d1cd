package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/matzehuels/refgraph/pkg/errors"
	"github.com/matzehuels/refgraph/pkg/graph"
	"github.com/matzehuels/refgraph/pkg/pipeline"
	"github.com/matzehuels/refgraph/pkg/render"
	"github.com/matzehuels/refgraph/pkg/render/nodelink"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatDOT  = "dot"
	FormatSVG  = "svg"
	FormatPDF  = "pdf"
	FormatPNG  = "png"
)

// DefaultPNGScale is the zoom applied to PNG exports.
const DefaultPNGScale = 2.0

var exportFormats = []string{FormatJSON, FormatDOT, FormatSVG, FormatPDF, FormatPNG}

// exportOptions holds export command options.
type exportOptions struct {
	format     string
	output     string
	focus      string
	depth      int
	detailed   bool
	packed     bool
	scale      float64
	background string
}

// validate checks the format and focus syntax.
func (o exportOptions) validate() error {
	if !slices.Contains(exportFormats, o.format) {
		return errors.New(errors.ErrCodeInvalidInput, "unknown format %q (supported: %v)", o.format, exportFormats)
	}
	if o.focus != "" {
		if _, ok := graph.ParseKey(o.focus); !ok {
			return errors.New(errors.ErrCodeInvalidInput, "--focus expects <type>:<id>, got %q", o.focus)
		}
	}
	if o.depth < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "--depth must not be negative")
	}
	if o.format == FormatPNG && o.scale <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "--scale must be positive")
	}
	return nil
}

// exportCommand creates the export command.
func (c *CLI) exportCommand() *cobra.Command {
	var flags cycleFlags
	opts := exportOptions{format: FormatJSON, depth: 2, scale: DefaultPNGScale}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the reference graph as JSON, DOT, SVG, PDF or PNG",
		Example: `  refgraph export -o graph.json
  refgraph export --format svg --focus file:scenes/level.asset.toml --depth 2 -o level.svg
  refgraph export --format png --scale 4 --background white -o graph.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			s, err := c.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.run(cmd.Context(), flags.options(s.cfg))
			if err != nil {
				return err
			}
			data, err := exportSnapshot(cmd.Context(), res.Snapshot, opts)
			if err != nil {
				return err
			}
			if opts.output == "" || opts.output == "-" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(opts.output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", opts.output, err)
			}
			printSuccess("Exported %s", opts.format)
			printStats(res)
			printFile(opts.output)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.format, "format", "f", opts.format, "output format: json, dot, svg, pdf, png")
	f.StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	f.StringVar(&opts.focus, "focus", "", "draw only the neighborhood of <type>:<id>")
	f.IntVar(&opts.depth, "depth", opts.depth, "neighborhood depth for --focus")
	f.BoolVar(&opts.detailed, "detailed", false, "label nodes with type and size, edges with type and path")
	f.BoolVar(&opts.packed, "packed", false, "fill packed nodes")
	f.Float64Var(&opts.scale, "scale", opts.scale, "zoom factor for png output")
	f.StringVar(&opts.background, "background", "", "background color for pdf and png output")
	flags.register(cmd)
	return cmd
}

// exportSnapshot renders s in the requested format.
func exportSnapshot(ctx context.Context, s *pipeline.Snapshot, opts exportOptions) ([]byte, error) {
	if opts.format == FormatJSON {
		var buf bytes.Buffer
		if err := graph.WriteGraph(s.Graph, &buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	dopts := nodelink.Options{Detailed: opts.detailed, Depth: opts.depth}
	if opts.focus != "" {
		k, _ := graph.ParseKey(opts.focus)
		n, err := s.GetNode(k.ID, k.Type)
		if err != nil {
			return nil, err
		}
		dopts.Focus = n
	}
	if opts.packed {
		set, err := s.PackedSet()
		if err != nil {
			return nil, err
		}
		dopts.Packed = set
	}

	dot := nodelink.ToDOT(s.Graph, dopts)
	if opts.format == FormatDOT {
		return []byte(dot), nil
	}
	svg, err := nodelink.RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	if opts.format == FormatSVG {
		return svg, nil
	}
	return opts.converter().Run(ctx, svg)
}

// converter returns the rsvg conversion for pdf and png output.
func (o exportOptions) converter() render.Convert {
	conv := render.Convert{Format: o.format, Background: o.background}
	if o.format == FormatPNG {
		conv.Scale = o.scale
	}
	return conv
}
