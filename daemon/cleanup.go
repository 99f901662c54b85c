package daemon

import (
	"context"
	"os"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
)

// scratch records the directories a job has made.
type scratch struct {
	// download is only set while it has not been expanded, since
	// expanding removes it
	download string
	final    string
}

// cleanup removes everything a job may have left behind, including
// what is shared with the next job: the registry credential and the
// npm cache. It doesn't stop for errors; they are logged.
func (d *Daemon) cleanup(ctx context.Context, dirs scratch, logger log.Logger) {
	if err := d.Publisher.RemoveCredentialFile(); err != nil {
		logger.Log("err", err)
	}
	for _, dir := range []string{dirs.final, dirs.download} {
		if dir == "" {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			logger.Log("err", errors.Wrap(err, "removing workspace"))
		}
	}
	if err := d.Publisher.CleanCache(ctx); err != nil {
		logger.Log("err", err)
	}
}
