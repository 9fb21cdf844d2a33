package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cozy-creator/captcha-server/internal/config"
	"github.com/cozy-creator/captcha-server/internal/detector"
	"github.com/cozy-creator/captcha-server/internal/services/captcha"
	"github.com/cozy-creator/captcha-server/internal/types"
	"github.com/cozy-creator/captcha-server/pkg/logger"

	"github.com/spf13/cobra"
)

var Cmd = &cobra.Command{
	Use:   "detect <image>...",
	Short: "Locate the slider gap in local images",
	Long:  "Runs the configured detector on each image and prints one JSON result per line",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDetect,
}

func init() {
	flags := Cmd.Flags()
	flags.Duration("request-timeout", config.DefaultRequestTimeout, "Upper bound on a single detection")
	config.AnnotateFlag(flags, "request-timeout", "request_timeout")

	config.AddDetectorFlags(flags)
}

type fileResult struct {
	File string `json:"file"`
	*types.CaptchaResponse
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg := config.GetConfig()

	logger, err := logger.InitLogger(cfg.Environment)
	if err != nil {
		return err
	}
	defer logger.Sync()

	d, err := detector.New(cfg.Detector, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	svc := captcha.NewService(d, cfg.RequestTimeout, captcha.WithLogger(logger))
	return detectFiles(cmd.Context(), svc, args, cmd.OutOrStdout())
}

// detectFiles prints a result line for every path. Unreadable files are
// reported the same way as failed detections.
func detectFiles(ctx context.Context, svc *captcha.Service, paths []string, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	enc := json.NewEncoder(w)
	for _, path := range paths {
		var resp *types.CaptchaResponse

		data, err := os.ReadFile(path)
		if err != nil {
			resp = types.NewProcessingErrorResponse(err)
		} else {
			resp = svc.Identify(ctx, data)
		}

		if err := enc.Encode(fileResult{File: path, CaptchaResponse: resp}); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}

	return nil
}
