package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/refgraph/pkg/analysis"
	"github.com/matzehuels/refgraph/pkg/errors"
	"github.com/matzehuels/refgraph/pkg/graph"
	"github.com/matzehuels/refgraph/pkg/pipeline"
)

// parseNodeArgs accepts either "<type> <id>" or a single "<type>:<id>".
func parseNodeArgs(args []string) (graph.Key, error) {
	switch len(args) {
	case 1:
		if k, ok := graph.ParseKey(args[0]); ok {
			return k, nil
		}
		return graph.Key{}, errors.New(errors.ErrCodeInvalidInput, "expected <type>:<id>, got %q", args[0])
	case 2:
		return graph.K(args[0], args[1]), nil
	}
	return graph.Key{}, errors.New(errors.ErrCodeInvalidInput, "expected <type> <id>")
}

// withNode runs a cycle, resolves the node named by args and calls fn.
func (c *CLI) withNode(ctx context.Context, flags cycleFlags, args []string, fn func(*pipeline.Snapshot, *graph.Node) error) error {
	key, err := parseNodeArgs(args)
	if err != nil {
		return err
	}
	s, err := c.openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.run(ctx, flags.options(s.cfg))
	if err != nil {
		return err
	}
	n, err := res.Snapshot.GetNode(key.ID, key.Type)
	if err != nil {
		return err
	}
	return fn(res.Snapshot, n)
}

// nodeCommand creates a command taking a node as "<type> <id>" or "<type>:<id>".
func (c *CLI) nodeCommand(use, short string, flags *cycleFlags, run func(cmd *cobra.Command, args []string) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:     use + " <type> <id>",
		Short:   short,
		Args:    cobra.RangeArgs(1, 2),
		Example: fmt.Sprintf("  refgraph %s file scenes/level.asset.toml\n  refgraph %s object:scenes/level.asset.toml#hero", use, use),
		RunE:    run,
	}
	cmd.ValidArgsFunction = c.completeNodeArgs
	flags.register(cmd)
	return cmd
}

// depsCommand creates the deps command.
func (c *CLI) depsCommand() *cobra.Command {
	var flags cycleFlags
	return c.nodeCommand("deps", "List what a resource depends on", &flags, func(cmd *cobra.Command, args []string) error {
		return c.withNode(cmd.Context(), flags, args, func(s *pipeline.Snapshot, n *graph.Node) error {
			printNodeHeader(n)
			printConnections("Dependencies", s.Dependencies(n))
			return nil
		})
	})
}

// refsCommand creates the refs command.
func (c *CLI) refsCommand() *cobra.Command {
	var flags cycleFlags
	return c.nodeCommand("refs", "List what references a resource", &flags, func(cmd *cobra.Command, args []string) error {
		return c.withNode(cmd.Context(), flags, args, func(s *pipeline.Snapshot, n *graph.Node) error {
			printNodeHeader(n)
			printConnections("Referencers", s.Referencers(n))
			return nil
		})
	})
}

// packedCommand creates the packed command.
func (c *CLI) packedCommand() *cobra.Command {
	var flags cycleFlags
	return c.nodeCommand("packed", "Report whether a resource ships", &flags, func(cmd *cobra.Command, args []string) error {
		return c.withNode(cmd.Context(), flags, args, func(s *pipeline.Snapshot, n *graph.Node) error {
			packed, err := s.IsPacked(n)
			if err != nil {
				return err
			}
			printNodeHeader(n)
			if packed {
				printSuccess("packed")
			} else {
				printWarning("not packed")
			}
			return nil
		})
	})
}

// sizeCommand creates the size command.
func (c *CLI) sizeCommand() *cobra.Command {
	var flags cycleFlags
	return c.nodeCommand("size", "Report the tree size of a resource", &flags, func(cmd *cobra.Command, args []string) error {
		return c.withNode(cmd.Context(), flags, args, func(s *pipeline.Snapshot, n *graph.Node) error {
			size, complete := s.TreeSize(cmd.Context(), n)
			own, _ := n.OwnSize()
			printNodeHeader(n)
			printKeyValue("own size", formatBytes(own))
			printKeyValue("tree size", formatBytes(size))
			printKeyValue("hard deps", fmt.Sprint(len(analysis.HardClosure(n))-1))
			if !complete {
				printWarning("interrupted, tree size is partial")
			}
			return nil
		})
	})
}
