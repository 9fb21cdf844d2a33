package app

import (
	"context"

	"github.com/cozy-creator/captcha-server/internal/config"
	"github.com/cozy-creator/captcha-server/internal/detector"
	"github.com/cozy-creator/captcha-server/internal/services/archive"
	"github.com/cozy-creator/captcha-server/internal/services/captcha"
	"github.com/cozy-creator/captcha-server/internal/services/filestorage"
	"github.com/cozy-creator/captcha-server/pkg/logger"
	"go.uber.org/zap"
)

type App struct {
	config     *config.Config
	ctx        context.Context
	cancelFunc context.CancelFunc
	detector   detector.Detector
	archiver   *archive.Archiver
	captcha    *captcha.Service

	Logger *zap.Logger
}

// Option funcs used to initialize the App struct
type OptionFunc func(app *App) error

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(app *App) error {
		app.Logger = logger
		return nil
	}
}

// WithDetector installs an already constructed detector. The app closes it.
func WithDetector(d detector.Detector) OptionFunc {
	return func(app *App) error {
		app.detector = d
		return nil
	}
}

func WithDetectorFromConfig() OptionFunc {
	return func(app *App) error {
		d, err := detector.New(app.config.Detector, app.Logger)
		if err != nil {
			return err
		}
		app.detector = d
		return nil
	}
}

func WithArchive() OptionFunc {
	return func(app *App) error {
		if app.config.Archive == nil || !app.config.Archive.Enabled {
			return nil
		}

		storage, err := filestorage.NewFileStorage(app.config)
		if err != nil {
			return err
		}
		app.archiver = archive.NewArchiver(storage, app.config.Archive.Workers, app.Logger)
		return nil
	}
}

func NewApp(config *config.Config, options ...OptionFunc) (*App, error) {
	logger, err := logger.InitLogger(config.Environment)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		ctx:        ctx,
		config:     config,
		Logger:     logger,
		cancelFunc: cancel,
	}

	// Apply all options
	for _, opt := range options {
		if err := opt(app); err != nil {
			// Continue even if some options fail; /captcha reports the missing
			// detector in-band.
			app.Logger.Error("failed to apply option", zap.Error(err))
		}
	}

	serviceOptions := []captcha.OptionFunc{captcha.WithLogger(app.Logger)}
	if app.archiver != nil {
		serviceOptions = append(serviceOptions, captcha.WithArchiver(app.archiver))
	}
	app.captcha = captcha.NewService(app.detector, config.RequestTimeout, serviceOptions...)

	return app, nil
}

func (app *App) Close() {
	app.cancelFunc()

	if app.archiver != nil {
		app.archiver.Stop()
	}

	if app.detector != nil {
		if err := app.detector.Close(); err != nil {
			app.Logger.Warn("failed to close detector", zap.Error(err))
		}
	}
}

func (app *App) Config() *config.Config {
	return app.config
}

func (app *App) Context() context.Context {
	return app.ctx
}

func (app *App) Captcha() *captcha.Service {
	return app.captcha
}

func (app *App) Detector() detector.Detector {
	return app.detector
}
