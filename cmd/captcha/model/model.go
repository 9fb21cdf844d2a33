package cmd

import (
	"fmt"

	"github.com/cozy-creator/captcha-server/internal/config"
	"github.com/cozy-creator/captcha-server/internal/services/modelfetch"
	"github.com/cozy-creator/captcha-server/pkg/logger"

	"github.com/spf13/cobra"
)

var Cmd = &cobra.Command{
	Use:   "model",
	Short: "Manage the ONNX slider model",
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the ONNX slider model",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.GetConfig()

		url, err := cmd.Flags().GetString("url")
		if err != nil {
			return err
		}

		output, err := cmd.Flags().GetString("output")
		if err != nil {
			return err
		}
		if output == "" {
			output = cfg.Detector.ModelPath
		}

		checksum, err := cmd.Flags().GetString("blake3")
		if err != nil {
			return err
		}

		logger, err := logger.InitLogger(cfg.Environment)
		if err != nil {
			return err
		}
		defer logger.Sync()

		downloader := modelfetch.NewDownloader(logger, modelfetch.WithProgressOutput(cmd.ErrOrStderr()))
		if err := downloader.Download(cmd.Context(), url, output, checksum); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Download complete:", output)
		return nil
	},
}

func init() {
	flags := downloadCmd.Flags()
	flags.String("url", "", "URL of the model file")
	flags.String("output", "", "Destination path; defaults to detector.model_path")
	flags.String("blake3", "", "Expected hex blake3 digest of the model file")
	downloadCmd.MarkFlagRequired("url")

	Cmd.AddCommand(downloadCmd)
}
