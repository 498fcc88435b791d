package main

import (
	"github.com/spf13/cobra"

	"github.com/memvault/memvault/pkg/config"
	"github.com/memvault/memvault/pkg/llm"
	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/observability/logging"
	"github.com/memvault/memvault/pkg/vault"
)

const version = "0.1.0"

func newRootCmd() *cobra.Command {
	var configPath string
	var cfg *config.Config

	cmd := &cobra.Command{
		Use:     "memvault",
		Short:   "memvault - personal memory for conversational agents",
		Long:    "memvault stores, searches, and chats over personal memories with a lexical or semantic backend.",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := logging.SetLevel(loaded.Logging.Level); err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	cmd.AddCommand(newShellCmd(func() *config.Config { return cfg }))
	cmd.AddCommand(newMCPCmd(func() *config.Config { return cfg }))
	return cmd
}

// buildVault assembles the vault from configuration. A missing chat model
// is tolerated: memory operations work, chat reports the problem.
func buildVault(cfg *config.Config) (*vault.Vault, error) {
	store, err := memory.NewStore(cfg.Memory)
	if err != nil {
		return nil, err
	}
	model, err := llm.New(cfg.LLM)
	if err != nil {
		logging.Warnf("chat model unavailable: %v", err)
		model = nil
	}
	return vault.New(store, model)
}
