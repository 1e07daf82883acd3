package drive

import (
	"bytes"
	"context"
	"fmt"
)

// SimpleUploadMaxSize is the single-request content ceiling (4 MiB). Larger
// content must go through the chunked upload engine; CreateFile never
// switches paths silently.
const SimpleUploadMaxSize = 4 * 1024 * 1024

// emptyFilePlaceholder is written when CreateFile gets no content. The
// service rejects zero-byte file creation, so a one-byte payload stands in;
// callers overwrite the content afterward.
var emptyFilePlaceholder = []byte{0}

// CreateFolder creates a child folder, resolving name collisions per policy.
func (f *Folder) CreateFolder(ctx context.Context, name string, onCollision CollisionPolicy) (*Folder, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: folder name must not be empty", ErrInvalidArgument)
	}

	behavior, err := ConflictBehavior(onCollision)
	if err != nil {
		return nil, err
	}

	raw, err := f.c.api.CreateFolder(ctx, f.c.driveID, f.ID, name, behavior)
	if err != nil {
		return nil, remoteErr("drive: creating folder", err)
	}

	item := f.c.wrap(raw)

	return item.AsFolder()
}

// CreateFile writes a child file in one request. Content must be at or below
// SimpleUploadMaxSize; exceeding it is ErrPayloadTooLarge before any
// network call, directing the caller to the chunked path. Nil or empty
// content sends the one-byte placeholder.
func (f *Folder) CreateFile(
	ctx context.Context, name string, content []byte, onCollision CollisionPolicy,
) (*Item, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: file name must not be empty", ErrInvalidArgument)
	}

	if len(content) > SimpleUploadMaxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d byte ceiling, use chunked upload",
			ErrPayloadTooLarge, len(content), SimpleUploadMaxSize)
	}

	behavior, err := ConflictBehavior(onCollision)
	if err != nil {
		return nil, err
	}

	if len(content) == 0 {
		content = emptyFilePlaceholder
	}

	raw, err := f.c.api.PutContent(
		ctx, f.c.driveID, f.ID, name, behavior, bytes.NewReader(content), int64(len(content)),
	)
	if err != nil {
		return nil, remoteErr("drive: creating file", err)
	}

	item := f.c.wrap(raw)

	return &item, nil
}
