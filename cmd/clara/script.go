package main

import (
	"fmt"

	"github.com/goblincore/clara"
	"github.com/spf13/cobra"
)

func init() {
	scriptCmd := &cobra.Command{
		Use:   "script",
		Short: "Inspect dialogue scripts",
	}

	scriptCmd.AddCommand(&cobra.Command{
		Use:   "check [file]",
		Short: "Validate a dialogue script (default: the configured or embedded one)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScriptCheck,
	})

	scriptCmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the script format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := clara.ScriptSchemaJSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})

	rootCmd.AddCommand(scriptCmd)
}

func runScriptCheck(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) == 1 {
		path = args[0]
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.ScriptPath
	}

	script, err := clara.LoadScript(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var questions, actions int
	for _, n := range script.Nodes() {
		switch n := n.(type) {
		case *clara.QuestionNode:
			questions++
			fmt.Fprintf(out, "  %-12s ? %s  [oui→%s non→%s]\n", n.ID, n.Question, n.Yes, n.No)
		case *clara.ActionNode:
			actions++
			fmt.Fprintf(out, "  %-12s ! %s\n", n.ID, n.Action)
		}
	}
	name := path
	if name == "" {
		name = "(embedded)"
	}
	fmt.Fprintf(out, "%s: ok, start=%s, %d questions, %d actions\n", name, script.Start(), questions, actions)
	return nil
}
