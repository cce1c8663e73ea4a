package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/omochice/crowd-canvas/internal/effect"
)

func effectsCmd() *cobra.Command {
	var (
		catalogPath string
		asYAML      bool
	)

	cmd := &cobra.Command{
		Use:   "effects",
		Short: "List the effects this client accepts",
		Long: `List the effect codes the controller may send, with their price and
what they do to the canvas. --yaml prints a catalog file that can be
edited and passed back via the "catalog" config key.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(catalogPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if asYAML {
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(cat); err != nil {
					return fmt.Errorf("encode catalog: %w", err)
				}
				return enc.Close()
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tNAME\tCATEGORY\tPRICE\tKIND")
			for _, def := range cat.All() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", def.Code, def.Name, def.Category, def.Price, kind(def))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Path to a catalog YAML file (defaults to the built-in catalog)")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print the catalog as YAML")
	return cmd
}

func kind(def effect.Definition) string {
	if !def.Timed() {
		return "instant"
	}
	total := time.Duration(def.Ticks) * def.Interval
	return fmt.Sprintf("timed (%d ticks, %s)", def.Ticks, total.Round(time.Millisecond))
}

func loadCatalog(path string) (*effect.Catalog, error) {
	if path == "" {
		return effect.DefaultCatalog(), nil
	}
	return effect.LoadCatalog(path)
}
