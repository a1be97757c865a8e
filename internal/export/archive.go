package export

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/koustreak/sqlpilot/internal/database"
	"github.com/koustreak/sqlpilot/internal/errs"
	"github.com/koustreak/sqlpilot/internal/filestore"
)

// KeyPrefix is the object-key prefix every archive lives under.
const KeyPrefix = "exports/"

// Archive is a stored export.
type Archive struct {
	Key       string    `json:"key"`
	Format    Format    `json:"format"`
	Size      int64     `json:"size"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Archiver uploads export streams to object storage and hands out
// presigned download links.
type Archiver struct {
	store  filestore.Store
	bucket string
	ttl    time.Duration

	now   func() time.Time
	newID func() string
}

// NewArchiver returns an Archiver writing to bucket. ttl <= 0 uses
// filestore.DefaultURLTTL.
func NewArchiver(store filestore.Store, bucket string, ttl time.Duration) *Archiver {
	if ttl <= 0 {
		ttl = filestore.DefaultURLTTL
	}
	return &Archiver{
		store:  store,
		bucket: bucket,
		ttl:    ttl,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Archive encodes res as f and uploads it under
// exports/<yyyy>/<mm>/<dd>/<uuid>.<fmt>. The encoder and the upload are
// connected by a pipe, so the payload is never held in memory as a whole.
func (a *Archiver) Archive(ctx context.Context, res *database.Result, f Format) (*Archive, error) {
	chunks, err := Stream(res, f)
	if err != nil {
		return nil, err
	}

	if err := a.store.EnsureBucket(ctx, a.bucket); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s%s/%s.%s", KeyPrefix, a.now().UTC().Format("2006/01/02"), a.newID(), f)
	pr, pw := io.Pipe()

	var info *filestore.ObjectInfo
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for chunk, err := range chunks {
			if err != nil {
				pw.CloseWithError(err)
				return err
			}
			if _, err := pw.Write(chunk); err != nil {
				return err
			}
		}
		return pw.Close()
	})
	g.Go(func() error {
		var err error
		info, err = a.store.PutObject(gctx, a.bucket, key, pr, -1, f.ContentType())
		// Unblocks the writer if the upload stopped reading early.
		if err != nil {
			pr.CloseWithError(err)
		} else {
			pr.Close()
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	url, err := a.store.PresignGetURL(ctx, a.bucket, key, a.ttl)
	if err != nil {
		return nil, err
	}

	return &Archive{
		Key:       key,
		Format:    f,
		Size:      info.Size,
		URL:       url,
		ExpiresAt: a.now().Add(a.ttl),
	}, nil
}

// List returns stored archives in key order, which is date order.
func (a *Archiver) List(ctx context.Context, limit int) ([]filestore.ObjectInfo, error) {
	return a.store.ListObjects(ctx, a.bucket, filestore.ListOptions{Prefix: KeyPrefix, Limit: limit})
}

// Link returns a fresh presigned URL for an existing archive.
func (a *Archiver) Link(ctx context.Context, key string) (*Archive, error) {
	if !strings.HasPrefix(key, KeyPrefix) || strings.Contains(key, "..") {
		return nil, errs.Newf(errs.ErrKindNotFound, "export %q not found", key)
	}

	info, err := a.store.StatObject(ctx, a.bucket, key)
	if err != nil {
		return nil, err
	}
	url, err := a.store.PresignGetURL(ctx, a.bucket, key, a.ttl)
	if err != nil {
		return nil, err
	}

	return &Archive{
		Key:       key,
		Format:    Format(strings.TrimPrefix(path.Ext(key), ".")),
		Size:      info.Size,
		URL:       url,
		ExpiresAt: a.now().Add(a.ttl),
	}, nil
}
