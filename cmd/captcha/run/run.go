package cmd

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cozy-creator/captcha-server/internal/app"
	"github.com/cozy-creator/captcha-server/internal/config"
	"github.com/cozy-creator/captcha-server/internal/server"
	"go.uber.org/zap"

	"github.com/spf13/cobra"
)

var Cmd = &cobra.Command{
	Use:   "run",
	Short: "Start the captcha server",
	RunE:  runApp,
}

func init() {
	flags := Cmd.Flags()

	flags.Int("port", config.DefaultPort, "Port to run the server on")
	flags.String("host", config.DefaultHost, "Host to run the server on")
	flags.String("public-dir", "", "Directory served under /static. Relative paths are relative to the current working directory.")
	flags.Duration("request-timeout", config.DefaultRequestTimeout, "Upper bound on a single detection")
	flags.Int64("max-upload-size", config.DefaultMaxUploadSize, "Maximum accepted upload size in bytes")

	config.AddDetectorFlags(flags)

	flags.Bool("archive", false, "Store received captcha images")
	flags.String("archive-filesystem", config.FilesystemLocal, "Archive filesystem type: 'local' or 's3'")
	flags.String("archive-dir", config.DefaultArchiveDir, "Archive directory for the local filesystem")
	flags.Int("archive-workers", config.DefaultArchiveWorkers, "Concurrent archive uploads")

	flags.String("s3-access-key", "", "S3 access key")
	flags.String("s3-secret-key", "", "S3 secret key")
	flags.String("s3-region-name", "", "S3 region name")
	flags.String("s3-bucket-name", "", "S3 bucket name")
	flags.String("s3-folder", "", "S3 folder")
	flags.String("s3-public-url", "", "Public URL for S3 files")
	flags.String("s3-endpoint-url", "", "S3 endpoint URL")

	config.AnnotateFlag(flags, "port", "port")
	config.AnnotateFlag(flags, "host", "host")
	config.AnnotateFlag(flags, "public-dir", "public_dir")
	config.AnnotateFlag(flags, "request-timeout", "request_timeout")
	config.AnnotateFlag(flags, "max-upload-size", "max_upload_size")

	config.AnnotateFlag(flags, "archive", "archive.enabled")
	config.AnnotateFlag(flags, "archive-filesystem", "archive.filesystem_type")
	config.AnnotateFlag(flags, "archive-dir", "archive.dir")
	config.AnnotateFlag(flags, "archive-workers", "archive.workers")

	config.AnnotateFlag(flags, "s3-access-key", "s3.access_key")
	config.AnnotateFlag(flags, "s3-secret-key", "s3.secret_key")
	config.AnnotateFlag(flags, "s3-region-name", "s3.region_name")
	config.AnnotateFlag(flags, "s3-bucket-name", "s3.bucket_name")
	config.AnnotateFlag(flags, "s3-folder", "s3.folder")
	config.AnnotateFlag(flags, "s3-public-url", "s3.public_url")
	config.AnnotateFlag(flags, "s3-endpoint-url", "s3.endpoint_url")
}

func runApp(_ *cobra.Command, _ []string) error {
	app, err := app.NewApp(config.GetConfig(),
		app.WithDetectorFromConfig(),
		app.WithArchive(),
	)
	if err != nil {
		return err
	}
	defer app.Close()

	cfg := app.Config()
	app.Logger.Debug("finalized config", zap.Any("config", cfg))

	server, err := server.NewServer(cfg)
	if err != nil {
		return err
	}
	server.SetupRoutes(app)

	errc := make(chan error, 1)
	signalc := make(chan os.Signal, 1)
	signal.Notify(signalc, os.Interrupt, syscall.SIGTERM)

	go func() {
		app.Logger.Info("captcha server listening",
			zap.String("addr", server.Addr()),
			zap.String("detector", cfg.Detector.Type),
		)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-signalc:
		app.Logger.Info("stopping server")
		return server.Stop(app.Context())
	}
}
