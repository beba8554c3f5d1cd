package render

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/matzehuels/refgraph/pkg/errors"
)

// DefaultConverter is the librsvg command used when Convert.Binary is empty.
const DefaultConverter = "rsvg-convert"

// Raster output formats accepted by [Convert].
const (
	PDF = "pdf"
	PNG = "png"
)

// Convert describes one SVG conversion.
type Convert struct {
	Format     string  // PDF or PNG
	Scale      float64 // PNG zoom factor; zero means 1
	Background string  // CSS color painted behind the drawing; empty keeps it transparent
	Binary     string  // converter executable; empty means DefaultConverter
}

func (c Convert) args() ([]string, error) {
	args := []string{"-f", c.Format}
	switch c.Format {
	case PDF:
	case PNG:
		if c.Scale < 0 {
			return nil, errors.New(errors.ErrCodeInvalidInput, "scale must be positive, got %g", c.Scale)
		}
		if c.Scale > 0 && c.Scale != 1 {
			args = append(args, "-z", strconv.FormatFloat(c.Scale, 'f', -1, 64))
		}
	default:
		return nil, errors.New(errors.ErrCodeUnsupported, "cannot convert svg to %q", c.Format)
	}
	if c.Background != "" {
		args = append(args, "-b", c.Background)
	}
	return args, nil
}

// Run pipes svg through the converter. A missing converter is reported as
// UNSUPPORTED with install hints.
func (c Convert) Run(ctx context.Context, svg []byte) ([]byte, error) {
	args, err := c.args()
	if err != nil {
		return nil, err
	}
	bin := c.Binary
	if bin == "" {
		bin = DefaultConverter
	}
	if _, err := exec.LookPath(bin); err != nil {
		return nil, errors.Wrap(errors.ErrCodeUnsupported, err,
			"%s export requires librsvg (brew install librsvg, apt install librsvg2-bin)", c.Format)
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = bytes.NewReader(svg)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, errors.Aborted(ctx.Err(), "%s conversion", c.Format)
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "%s: %s", bin, strings.TrimSpace(stderr.String()))
	}
	return out.Bytes(), nil
}
