package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/watzon/clickloop/internal/config"
)

var configOutput string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print every setting with its default and effective value",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := config.ConfigFilePath(cfgFile)
		schema := config.GetConfigSchema(cfg, path)

		var (
			data []byte
			err  error
		)
		switch configOutput {
		case "json":
			data, err = json.MarshalIndent(schema, "", "  ")
			data = append(data, '\n')
		case "yaml", "":
			data, err = yaml.Marshal(schema)
		default:
			return fmt.Errorf("unknown output %q (want yaml or json)", configOutput)
		}
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	configShowCmd.Flags().StringVarP(&configOutput, "output", "o", "yaml", "output format (yaml, json)")

	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
