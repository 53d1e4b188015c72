// File: cmd/locator.go
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/crmpilot/internal/scenario"
)

func newLocatorCmd() *cobra.Command {
	var spec scenario.LocatorSpec
	cmd := &cobra.Command{
		Use:   "locator",
		Short: "Print the locator a scenario target resolves to",
		Example: `  crmpilot locator --attr data-id --mode prefix --match acct-
  crmpilot locator --tag button --attr title --contains Save
  crmpilot locator --by css --value "div.crm-grid"`,
		Args: cobra.NoArgs,
		// Needs no configuration.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := spec.Build()
			if err != nil {
				return err
			}
			cmd.Println(loc.String())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&spec.By, "by", "", "Strategy: id, css, xpath, link_text, partial_link_text, class or tag")
	f.StringVar(&spec.Value, "value", "", "Value for --by")
	f.StringVar(&spec.Attr, "attr", "", "Attribute to match")
	f.StringVar(&spec.Mode, "mode", "full", "Match mode: full, prefix, suffix or part")
	f.StringVar(&spec.Match, "match", "", "Attribute value for --mode")
	f.StringVar(&spec.Tag, "tag", "", "Element tag for a contains match")
	f.StringVar(&spec.Contains, "contains", "", "Substring the attribute must contain, with --tag")
	return cmd
}
