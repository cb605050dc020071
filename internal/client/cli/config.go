package cli

import (
	"github.com/spf13/cobra"

	"komun/internal/client/config"
	"komun/internal/client/tui"
)

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if path, err := config.GetConfigPath(); err == nil {
			printOut(cmd, tui.Title("Settings ("+path+")"))
		}
		printOut(cmd, tui.Settings(config.Keys, func(key string) string {
			v, _ := cfg.Get(key)
			return v
		}))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:       "set [key] [value]",
	Short:     "Change a setting in the config file",
	Args:      cobra.ExactArgs(2),
	ValidArgs: config.Keys,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.SetAndSave(args[0], args[1])
		if err != nil {
			return err
		}
		v, _ := cfg.Get(args[0])
		printOut(cmd, args[0]+" = "+v)
		return nil
	},
}
