package main

import (
	"fmt"
	"strings"

	"github.com/goblincore/clara"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "lore [words...]",
		Short: "Print the lore sections selected for some user text",
		Long:  "Without words, lists every section title in document order.",
		RunE:  runLore,
	}
	cmd.Flags().IntP("max", "n", clara.DefaultLoreSections, "Max sections")
	rootCmd.AddCommand(cmd)
}

func runLore(cmd *cobra.Command, args []string) error {
	maxSections, _ := cmd.Flags().GetInt("max")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sections, err := clara.LoadLore(cfg.LorePath)
	if err != nil {
		return err
	}
	selector := clara.NewLoreSelector(sections)

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		for i, s := range selector.Sections() {
			fmt.Fprintf(out, "%2d. %s\n", i+1, s.Title)
		}
		return nil
	}

	query := strings.Join(args, " ")
	selected := selector.Select([]clara.Message{{Role: clara.RoleUser, Content: query}}, maxSections)
	fmt.Fprintln(out, clara.RenderLore(selected))
	return nil
}
