package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	domainerrors "github.com/scanshelf/scanshelf/internal/errors"
	"github.com/scanshelf/scanshelf/internal/naming"
	"github.com/scanshelf/scanshelf/internal/objectstore"
	"github.com/scanshelf/scanshelf/internal/scanlog"
)

// sniffLen is how much of a capture is read to detect its type.
const sniffLen = 3072

// CaptureResult describes a stored capture.
type CaptureResult struct {
	Resolution naming.Resolution  `json:"resolution"`
	Asset      objectstore.Object `json:"asset"`
	// Attempts is the number of names tried.
	Attempts int `json:"attempts"`
	// TimestampName is set when every sequence name collided.
	TimestampName bool `json:"timestamp_name"`
}

// Capture stores one image for a scanned product under the next free name.
//
// The body must be an image no larger than the configured limit. If the content
// cannot be written, the reserved name is released again so it does not become
// an empty asset.
func (s *CatalogService) Capture(ctx context.Context, primaryID string, body io.Reader) (*CaptureResult, error) {
	if err := s.checkIdentifier(primaryID); err != nil {
		return nil, err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, domainerrors.Wrap(err, domainerrors.CodeValidation, "failed to read capture")
	}
	head = head[:n]
	if n == 0 {
		return nil, domainerrors.Validation("capture is empty")
	}
	mtype := mimetype.Detect(head)
	mimeType := mtype.String()
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, domainerrors.Validationf("unsupported capture type %s, expected an image", mimeType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	policy := s.Policy()
	if !sameFormat(policy.Extension, mtype.Extension()) {
		return nil, domainerrors.ValidationWithDetails(
			fmt.Sprintf("capture is %s but new captures are stored as %s files", mimeType, policy.Extension),
			map[string]string{"detected": mimeType, "extension": policy.Extension},
		)
	}
	res := naming.Resolve(primaryID, policy, s.Table())
	alloc, err := s.allocator.Allocate(ctx, naming.AllocationRequest{
		Base:     res.BaseName,
		Ext:      policy.Extension,
		MimeType: mimeType,
		Bucket:   res.Bucket,
	})
	if err != nil {
		return nil, err
	}

	obj, err := s.write(ctx, alloc.Object, io.MultiReader(bytes.NewReader(head), body))
	if err != nil {
		s.release(alloc.Object)
		return nil, err
	}

	s.logger.Info("capture stored",
		"primary_id", primaryID,
		"name", obj.Name,
		"bucket", res.Bucket,
		"size", obj.Size,
		"attempts", alloc.Attempts,
	)
	if res.Fallback {
		s.logger.Warn("secondary identifier unavailable, named by primary identifier", "primary_id", primaryID)
	}

	s.recordScan(ctx, primaryID, res, 1)

	return &CaptureResult{
		Resolution:    res,
		Asset:         obj,
		Attempts:      alloc.Attempts,
		TimestampName: alloc.Fallback,
	}, nil
}

// extensionAliases maps extensions to the one detection reports for the format.
var extensionAliases = map[string]string{
	".jpeg": ".jpg",
	".jpe":  ".jpg",
	".tif":  ".tiff",
}

// sameFormat reports whether two extensions name the same image format.
func sameFormat(a, b string) bool {
	canonical := func(ext string) string {
		ext = strings.ToLower(ext)
		if alias, ok := extensionAliases[ext]; ok {
			return alias
		}
		return ext
	}
	return a != "" && canonical(a) == canonical(b)
}

// write streams body into the reserved object and returns its final state.
func (s *CatalogService) write(ctx context.Context, obj objectstore.Object, body io.Reader) (objectstore.Object, error) {
	w, err := s.store.OpenWrite(ctx, obj.Handle)
	if err != nil {
		return objectstore.Object{}, err
	}

	written, err := io.Copy(w, io.LimitReader(body, s.maxCaptureBytes+1))
	if err == nil && written > s.maxCaptureBytes {
		err = domainerrors.Validationf("capture exceeds %d bytes", s.maxCaptureBytes)
	}
	if err != nil {
		_ = w.Abort()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return objectstore.Object{}, ctxErr
		}
		var domainErr *domainerrors.Error
		if errors.As(err, &domainErr) {
			return objectstore.Object{}, err
		}
		return objectstore.Object{}, objectstore.ErrUnavailable.WithCause(fmt.Errorf("write %s: %w", obj.Name, err))
	}
	if err := w.Close(); err != nil {
		return objectstore.Object{}, err
	}

	return s.store.Stat(ctx, obj.Handle)
}

// release deletes a reservation whose content could not be written. It runs
// even when the request was cancelled.
func (s *CatalogService) release(obj objectstore.Object) {
	if err := s.store.Delete(context.Background(), obj.Handle); err != nil && !domainerrors.Is(err, objectstore.ErrNotFound) {
		s.logger.Error("failed to release reserved name", "name", obj.Name, "folder", obj.Folder, "error", err)
	}
}

// recordScan updates the scan log. Failures are logged, never returned.
func (s *CatalogService) recordScan(ctx context.Context, primaryID string, res naming.Resolution, captured int) {
	if s.scans == nil {
		return
	}
	entry := scanlog.Scan{
		PrimaryID: primaryID,
		BaseName:  res.BaseName,
		Bucket:    string(res.Bucket),
	}
	if res.Bucket == naming.BucketSecondary {
		entry.SecondaryID = res.Identifier
	}
	if err := s.scans.Record(ctx, entry, captured); err != nil {
		s.logger.Warn("failed to record scan", "primary_id", primaryID, "error", err)
	}
}
