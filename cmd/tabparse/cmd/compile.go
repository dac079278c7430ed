package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dshills/tabparse/internal/jobspec"
	"github.com/dshills/tabparse/pkg/pattern"
)

func newCompileCommand() *cobra.Command {
	var separator string

	cmd := &cobra.Command{
		Use:   "compile PATTERN",
		Short: "Check a line pattern and list its fields",
		Long: `Compiles a line pattern and prints one row per field: its name, its
type and the separator that ends it.

A pattern is a sequence of $name:type fields. A field followed by | ends at
the global separator (--sep); a field followed by 'c ends at the character c.`,
		Example: `  tabparse compile '$host:str'"'"':$port:int|$latency:float'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sep, err := jobspec.ParseSeparator(separator)
			if err != nil {
				return err
			}
			compiled, err := pattern.Compile(args[0], sep, nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			seps := compiled.Separators()
			for i, f := range compiled.Fields() {
				terminator := "end of line"
				if i < len(seps) {
					terminator = strconv.QuoteRune(seps[i])
				}
				fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", i+1, f.Name, f.Type, terminator)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&separator, "sep", "s", "tab", "Global separator")
	return cmd
}
