package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memvault/memvault/pkg/config"
	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/vault"
)

const shellHelp = `Commands:
  add <text>      store a new memory
  search <query>  find relevant memories
  chat <message>  chat with memories as context
  list            show all memories
  count           show how many memories are stored
  dump [dir]      save memories to disk
  load [dir]      load memories from disk
  clear           delete all memories
  help            show this help
  quit            exit`

func newShellCmd(getConfig func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive memory shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			v, err := buildVault(cfg)
			if err != nil {
				return err
			}
			if err := v.Open(cmd.Context()); err != nil {
				return err
			}
			defer v.Close()
			return runShell(cmd, v, cfg.DataDir)
		},
	}
}

func runShell(cmd *cobra.Command, v *vault.Vault, dataDir string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "memvault shell - type 'help' for commands")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		name, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		switch strings.ToLower(name) {
		case "quit", "exit":
			return nil

		case "add":
			if arg == "" {
				fmt.Fprintln(out, "usage: add <text>")
				continue
			}
			ids, err := v.Add(ctx, []string{arg}, memory.Metadata{Source: memory.SourceManual})
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "added %s\n", ids[0])

		case "search":
			if arg == "" {
				fmt.Fprintln(out, "usage: search <query>")
				continue
			}
			results, err := v.Search(ctx, arg, 5, nil)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			if len(results) == 0 {
				fmt.Fprintln(out, "no matches")
				continue
			}
			for i, r := range results {
				fmt.Fprintf(out, "%d. [%.3f] %s\n", i+1, r.Score, r.Item.Memory)
			}

		case "chat":
			if arg == "" {
				fmt.Fprintln(out, "usage: chat <message>")
				continue
			}
			reply, err := v.Chat(ctx, arg, vault.ChatOptions{})
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintln(out, reply)

		case "list":
			items, err := v.GetAll(ctx)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			for _, item := range items {
				fmt.Fprintf(out, "%s  %s\n", item.ID, item.Memory)
			}
			fmt.Fprintf(out, "(%d memories)\n", len(items))

		case "count":
			n, err := v.Count(ctx)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "%d memories\n", n)

		case "dump":
			dir := arg
			if dir == "" {
				dir = dataDir
			}
			if err := v.Dump(ctx, dir); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "saved to %s\n", dir)

		case "load":
			dir := arg
			if dir == "" {
				dir = dataDir
			}
			if err := v.Load(ctx, dir); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "loaded from %s\n", dir)

		case "clear":
			if err := v.DeleteAll(ctx); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			v.ClearChatHistory()
			fmt.Fprintln(out, "all memories deleted")

		case "help":
			fmt.Fprintln(out, shellHelp)

		default:
			fmt.Fprintf(out, "unknown command %q - type 'help'\n", name)
		}
	}
}
