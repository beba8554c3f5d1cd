package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/refgraph/pkg/graph"
	"github.com/matzehuels/refgraph/pkg/source"
	"github.com/matzehuels/refgraph/pkg/source/fs"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate a shell completion script for refgraph.

Besides commands and flags, the script completes node arguments of deps,
refs, packed, size and browse from the files below the content root:

  $ refgraph deps file tex<TAB>      -> textures/...
  $ refgraph refs object:scenes/<TAB> -> object:scenes/level.asset.toml#

Load it for the current shell:

  $ source <(refgraph completion bash)
  $ refgraph completion zsh > "${fpath[1]}/_refgraph"
  $ refgraph completion fish | source
  PS> refgraph completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}

	return cmd
}

// completeNodeArgs completes "<type> <id>" and "<type>:<id>" node arguments
// by listing the content root. No cycle runs and no cache is touched.
func (c *CLI) completeNodeArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 1 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	if len(args) == 0 && !strings.Contains(toComplete, ":") {
		return nodeCompletions(nil, args, toComplete)
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	host, err := fs.New(cfg.Root)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	resources, err := host.List(ctx)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	return nodeCompletions(resources, args, toComplete)
}

// nodeCompletions returns the candidates for the next node argument.
// Object candidates end in '#' so the local id can follow without a space.
func nodeCompletions(resources []source.Resource, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	const directive = cobra.ShellCompDirectiveNoFileComp
	var typ, prefix, keyed string
	switch {
	case len(args) == 1:
		typ, prefix = args[0], toComplete
	case strings.Contains(toComplete, ":"):
		typ, prefix, _ = strings.Cut(toComplete, ":")
		keyed = typ + ":"
	default:
		var out []string
		for _, t := range []string{graph.TypeFile, graph.TypeObject, graph.TypeBundle} {
			if strings.HasPrefix(t, toComplete) {
				out = append(out, t)
			}
		}
		return out, directive
	}

	var out []string
	switch typ {
	case graph.TypeFile:
		for _, r := range resources {
			if strings.HasPrefix(r.ID, prefix) {
				out = append(out, keyed+r.ID)
			}
		}
		return out, directive
	case graph.TypeObject:
		if strings.Contains(prefix, "#") {
			return nil, directive
		}
		for _, r := range resources {
			if strings.HasSuffix(r.ID, fs.ObjectSuffix) && strings.HasPrefix(r.ID, prefix) {
				out = append(out, keyed+r.ID+"#")
			}
		}
		return out, directive | cobra.ShellCompDirectiveNoSpace
	}
	return nil, directive
}
