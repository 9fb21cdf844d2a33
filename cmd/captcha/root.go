package cmd

import (
	"fmt"
	"os"

	// Subcommands
	detect "github.com/cozy-creator/captcha-server/cmd/captcha/detect"
	model "github.com/cozy-creator/captcha-server/cmd/captcha/model"
	run "github.com/cozy-creator/captcha-server/cmd/captcha/run"
	"github.com/cozy-creator/captcha-server/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Cmd = &cobra.Command{
	Use:   "captcha",
	Short: "Slider captcha recognition server",
	Long:  "Locates the gap in slider captcha images, over HTTP or from the command line",

	SilenceUsage: true,

	// Runs before this command and any subcommands
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()
		config.ConfigureEnv(v)

		// Flags() includes the parents' persistent flags. Only the running
		// command's flags are bound, so run and detect can both declare
		// --detector-type.
		if err := config.BindFlags(v, cmd.Flags()); err != nil {
			return err
		}

		// Load config and env files
		return config.LoadEnvAndConfigFiles()
	},
}

func Execute() {
	if err := Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pflags := Cmd.PersistentFlags()

	pflags.String("config-file", "", "Path to the config file")
	pflags.String("env-file", "", "Path to the env file")
	pflags.String("environment", config.DefaultEnvironment, "Environment configuration: dev, test or prod")

	config.AnnotateFlag(pflags, "config-file", "config_file")
	config.AnnotateFlag(pflags, "env-file", "env_file")
	config.AnnotateFlag(pflags, "environment", "environment")

	Cmd.AddCommand(run.Cmd, detect.Cmd, model.Cmd)
	Cmd.CompletionOptions.HiddenDefaultCmd = true
}
