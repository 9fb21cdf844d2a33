// Package archive keeps a copy of received captcha images for later
// labelling. Work is queued on a worker pool; callers never wait on storage.
package archive

import (
	"context"

	"github.com/cozy-creator/captcha-server/internal/services/filestorage"
	"github.com/cozy-creator/captcha-server/internal/utils/hashutil"
	"github.com/cozy-creator/captcha-server/internal/utils/imageutil"
	"github.com/gammazero/workerpool"
	"go.uber.org/zap"
)

type Archiver struct {
	wp          *workerpool.WorkerPool
	filestorage filestorage.FileStorage
	logger      *zap.Logger
}

func NewArchiver(filestorage filestorage.FileStorage, maxWorkers int, logger *zap.Logger) *Archiver {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Archiver{
		wp:          workerpool.New(maxWorkers),
		filestorage: filestorage,
		logger:      logger,
	}
}

// ContentName is the hex blake3 digest of data; identical uploads share a name.
func ContentName(data []byte) string {
	return hashutil.Blake3Hash(data)
}

// Archive queues data for storage. The slice must not be modified afterwards.
func (a *Archiver) Archive(data []byte) {
	file := filestorage.NewFileInfo(ContentName(data), imageutil.Extension(data), data)
	a.wp.Submit(func() {
		a.store(file)
	})
}

func (a *Archiver) store(file filestorage.FileInfo) {
	ctx := context.Background()

	exists, err := a.filestorage.Exists(ctx, file.Filename())
	if err != nil {
		a.logger.Warn("archive lookup failed", zap.String("file", file.Filename()), zap.Error(err))
	}
	if exists {
		return
	}

	dest, err := a.filestorage.Upload(ctx, file)
	if err != nil {
		a.logger.Error("archive upload failed", zap.String("file", file.Filename()), zap.Error(err))
		return
	}

	a.logger.Debug("archived captcha", zap.String("dest", dest))
}

// Stop waits for queued uploads to finish.
func (a *Archiver) Stop() {
	a.wp.StopWait()
}
