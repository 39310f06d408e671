package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"
	"github.com/srg/blethermo/pkg/config"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or edit the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting and save the file",
	Long: `Change one setting and save the file.

A running logger picks the change up on SIGHUP. Keys:
  ` + strings.Join(config.Keys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// loadForEdit reads the file at path. A missing file yields the defaults;
// any other failure is returned so a corrupt file is never overwritten.
func loadForEdit(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return cfg, nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "# %v; showing defaults\n", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	key, value := args[0], args[1]

	cfg, err := loadForEdit(path)
	if err != nil {
		return err
	}
	before := *cfg
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	cmd.SilenceUsage = true

	current, _ := cfg.Get(key)
	if *cfg == before {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is already %s\n", key, current)
		return nil
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %s (saved to %s)\n", key, current, path)
	return nil
}
