package main

import (
	"time"

	"github.com/goblincore/clara"
	"github.com/goblincore/clara/internal/term"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to Clara in the terminal",
		Long: `Runs the scripted introduction and the free chat in the terminal.
With --remote the chat turns are answered by a running clara server.`,
		Args: cobra.NoArgs,
		RunE: runChat,
	}
	cmd.Flags().String("remote", "", "Base URL of a clara server (e.g. http://localhost:3000)")
	cmd.Flags().Bool("instant", false, "Disable the typewriter effect")
	rootCmd.AddCommand(cmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	remote, _ := cmd.Flags().GetString("remote")
	instant, _ := cmd.Flags().GetBool("instant")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var opts []term.Option
	if instant {
		opts = append(opts, term.WithTypeInterval(0))
	}

	sessionCfg := clara.SessionConfig{
		HistoryLimit:     cfg.HistoryLimit,
		MaxMessageLength: cfg.MaxMessageLength,
	}

	if remote != "" {
		script, err := clara.LoadScript(cfg.ScriptPath)
		if err != nil {
			return err
		}
		sess := clara.NewSession(script, clara.NewClient(remote), sessionCfg)
		return term.Run(sess, append(opts, term.WithTimeout(cfg.RequestTimeout+5*time.Second))...)
	}

	// The alt screen owns the terminal; only log when asked to.
	engineLog := zap.NewNop()
	if verbose {
		engineLog = logger.Named("engine")
	}
	engine, err := clara.New(cfg, clara.WithLogger(engineLog))
	if err != nil {
		return err
	}
	defer engine.Close()
	return term.Run(engine.NewSession(), append(opts, term.WithTimeout(cfg.RequestTimeout+5*time.Second))...)
}
