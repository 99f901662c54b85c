// Package artifact gets a job's input artifact from S3 onto local
// disk, and unpacks it.
package artifact

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	worker "github.com/fluxcd/artifactory-worker"
)

// DefaultRegion is where buckets without a location constraint live.
const DefaultRegion = "us-east-1"

const (
	downloadPrefix = "artifact-download-"
	expandPrefix   = "artifact-expand-"
)

// Downloader streams an object to a file; *s3manager.Downloader is
// one.
type Downloader interface {
	DownloadWithContext(ctx aws.Context, w io.WriterAt, input *s3.GetObjectInput, options ...func(*s3manager.Downloader)) (int64, error)
}

// DownloaderFunc makes a Downloader acting with the given
// credentials, in the given region.
type DownloaderFunc func(region string, creds worker.Credentials) (Downloader, error)

// JobDownloader is the DownloaderFunc used outside tests. It opens a
// session with the job's credentials only; the worker's own identity
// is never used to read the artifact.
func JobDownloader(region string, creds worker.Credentials) (Downloader, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewStaticCredentials(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
	})
	if err != nil {
		return nil, err
	}
	return s3manager.NewDownloader(sess), nil
}

// Fetcher downloads input artifacts into fresh workspaces.
type Fetcher struct {
	// Locator looks up bucket regions, as the worker itself.
	Locator       s3iface.S3API
	NewDownloader DownloaderFunc
	// TempDir is where workspaces are created; the system default if
	// empty.
	TempDir string
	Logger  log.Logger
}

// BucketRegion finds the region of the bucket.
func (f *Fetcher) BucketRegion(ctx context.Context, bucket string) (string, error) {
	out, err := f.Locator.GetBucketLocationWithContext(ctx, &s3.GetBucketLocationInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return "", errors.Wrapf(err, "getting location of bucket %s", bucket)
	}
	return normalizeLocation(aws.StringValue(out.LocationConstraint)), nil
}

func normalizeLocation(loc string) string {
	switch loc {
	case "":
		return DefaultRegion
	case "EU":
		return "eu-west-1"
	}
	return loc
}

// FetchInput downloads the object at loc into a new workspace,
// mirroring the directory structure of its key, and returns the
// path of the downloaded file along with the workspace. Nothing is
// left on disk if it fails.
func (f *Fetcher) FetchInput(ctx context.Context, loc worker.Location, creds worker.Credentials) (string, worker.Workspace, error) {
	region, err := f.BucketRegion(ctx, loc.Bucket)
	if err != nil {
		return "", worker.Workspace{}, worker.FetchError(err)
	}
	f.Logger.Log("event", "downloading", "object", loc, "region", region)

	downloader, err := f.NewDownloader(region, creds)
	if err != nil {
		return "", worker.Workspace{}, worker.FetchError(errors.Wrap(err, "opening S3 session"))
	}

	root, err := ioutil.TempDir(f.TempDir, downloadPrefix)
	if err != nil {
		return "", worker.Workspace{}, worker.FetchError(errors.Wrap(err, "creating download workspace"))
	}
	filename, err := f.download(ctx, downloader, root, loc)
	if err != nil {
		os.RemoveAll(root)
		return "", worker.Workspace{}, worker.FetchError(err)
	}
	return filename, worker.Workspace{Root: root, Entries: topLevel(loc.Key)}, nil
}

func (f *Fetcher) download(ctx context.Context, downloader Downloader, root string, loc worker.Location) (string, error) {
	filename, err := within(root, loc.Key)
	if err != nil {
		return "", err
	}
	if dir := path.Dir(loc.Key); dir != "." {
		if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
			return "", errors.Wrap(err, "creating key directories")
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return "", errors.Wrap(err, "creating download file")
	}
	n, err := downloader.DownloadWithContext(ctx, file, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", errors.Wrapf(err, "downloading %s", loc)
	}
	f.Logger.Log("event", "downloaded", "object", loc, "bytes", n, "path", filename)
	return filename, nil
}

// within gives the path of name inside root, refusing names that
// would land outside it.
func within(root, name string) (string, error) {
	p := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("path %q escapes the workspace", name)
	}
	return p, nil
}

func topLevel(key string) []string {
	return []string{strings.SplitN(path.Clean(key), "/", 2)[0]}
}
