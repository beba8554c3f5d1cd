package cli

import (
	"github.com/spf13/cobra"
)

// updateCommand creates the update command.
func (c *CLI) updateCommand() *cobra.Command {
	var flags cycleFlags

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Discover changed references and rebuild the graph",
		Long: `Update runs one incremental cycle: load cache files, re-discover resources
whose content changed, save the caches and rebuild the graph.

Interrupting the update (Ctrl+C) leaves cache files untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			prog := newProgress(c.Logger)
			res, err := s.run(cmd.Context(), flags.options(s.cfg))
			if err != nil {
				return err
			}
			prog.done("Updated reference graph")

			printSuccess("Graph built")
			printStats(res)
			printUpdates(res)
			printNextStep("Inspect a resource", "refgraph deps <type> <id>")
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
