package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"

	"github.com/cozy-creator/captcha-server/internal/api/middleware"
	"github.com/cozy-creator/captcha-server/internal/app"
	"github.com/cozy-creator/captcha-server/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const fileField = "file"

var ErrNoFile = errors.New("no file uploaded")

func HelloCaptcha(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"Hello": "Captcha"})
}

// Captcha answers every upload with 200; failures are reported in the body.
func Captcha(c *gin.Context) {
	app := c.MustGet("app").(*app.App)

	data, err := readUpload(c, app.Config().MaxUploadSize)
	if err != nil {
		app.Logger.Debug("failed to read upload",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, types.NewProcessingErrorResponse(err))
		return
	}

	resp := app.Captcha().Identify(c.Request.Context(), data,
		zap.String("request_id", middleware.GetRequestID(c)),
	)
	c.JSON(http.StatusOK, resp)
}

// Healthz always answers 200; a detector that fails its ping is reported as
// "unavailable".
func Healthz(c *gin.Context) {
	app := c.MustGet("app").(*app.App)

	resp := types.HealthResponse{
		Status:   "ok",
		Detector: app.Config().Detector.Type,
	}
	if err := app.Captcha().Ping(c.Request.Context()); err != nil {
		resp.Status = "unavailable"
		resp.Error = err.Error()
	}

	c.JSON(http.StatusOK, resp)
}

// readUpload returns the bytes of the "file" part, or of the first file part
// when no part has that name.
func readUpload(c *gin.Context, maxSize int64) ([]byte, error) {
	if maxSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
	}

	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return nil, ErrNoFile
		}
		return nil, fmt.Errorf("failed to parse upload: %w", err)
	}

	file := pickFile(form)
	if file == nil {
		return nil, ErrNoFile
	}

	content, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer content.Close()

	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return data, nil
}

func pickFile(form *multipart.Form) *multipart.FileHeader {
	if files := form.File[fileField]; len(files) > 0 {
		return files[0]
	}

	names := make([]string, 0, len(form.File))
	for name := range form.File {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if files := form.File[name]; len(files) > 0 {
			return files[0]
		}
	}
	return nil
}
