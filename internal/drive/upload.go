package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mkallio/graphdrive-go/internal/api"
)

// ChunkAlignment is the required granularity for chunk sizes (320 KiB).
// Every chunk except the last must be a multiple of this value; the service
// rejects misaligned ranges.
const ChunkAlignment = 320 * 1024

// DefaultChunkSize is used when UploadOptions does not set one (10 MiB,
// 32 alignment units).
const DefaultChunkSize = 32 * ChunkAlignment

// StatusNone is the Status result when no byte offset is pending — either
// no session exists or the server reports nothing outstanding.
const StatusNone int64 = -1

// ProgressFunc is invoked after each acknowledged chunk with the number of
// bytes durably received and the total content length.
type ProgressFunc func(sent, total int64)

// UploadOptions tunes one chunked upload.
type UploadOptions struct {
	// ChunkSize must be a positive multiple of ChunkAlignment; 0 selects
	// DefaultChunkSize.
	ChunkSize int64
	// Progress, when non-nil, receives per-chunk progress callbacks.
	Progress ProgressFunc
}

// uploadState is the engine's tagged state. Transitions:
//
//	idle -> negotiated -> uploading -> completed
//	negotiated -> cancelled
//	uploading  -> cancelled | failed
//
// Illegal transitions are rejected, not silently absorbed.
type uploadState int

const (
	stateIdle uploadState = iota
	stateNegotiated
	stateUploading
	stateCompleted
	stateCancelled
	stateFailed
)

func (s uploadState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateNegotiated:
		return "negotiated"
	case stateUploading:
		return "uploading"
	case stateCompleted:
		return "completed"
	case stateCancelled:
		return "cancelled"
	case stateFailed:
		return "failed"
	default:
		return fmt.Sprintf("uploadState(%d)", int(s))
	}
}

// Upload is a single-owner, single-use chunked upload of one content stream
// into one target file. At most one operation may be in flight against it;
// Run and Cancel must not be called concurrently. Distinct Uploads share no
// state and may proceed concurrently with each other.
type Upload struct {
	c        *Client
	parentID string
	name     string
	content  io.Reader
	size     int64
	behavior string

	chunkSize int64
	progress  ProgressFunc

	state   uploadState
	session *api.UploadSession
	offset  int64
}

// NewUpload validates parameters and returns an idle upload. All validation
// happens here, before any network call: name must be non-empty, content
// non-nil, size positive, and ChunkSize (when set) a positive multiple of
// ChunkAlignment. The content stream is read once, forward only.
func (f *Folder) NewUpload(
	name string, content io.Reader, size int64, onCollision CollisionPolicy, opts UploadOptions,
) (*Upload, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: upload name must not be empty", ErrInvalidArgument)
	}

	if content == nil {
		return nil, fmt.Errorf("%w: content stream must not be nil", ErrInvalidArgument)
	}

	if size <= 0 {
		return nil, fmt.Errorf("%w: content size must be positive, got %d", ErrInvalidArgument, size)
	}

	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}

	if chunkSize <= 0 || chunkSize%ChunkAlignment != 0 {
		return nil, fmt.Errorf("%w: chunk size %d is not a positive multiple of %d",
			ErrInvalidArgument, chunkSize, ChunkAlignment)
	}

	behavior, err := ConflictBehavior(onCollision)
	if err != nil {
		return nil, err
	}

	return &Upload{
		c:         f.c,
		parentID:  f.ID,
		name:      name,
		content:   content,
		size:      size,
		behavior:  behavior,
		chunkSize: chunkSize,
		progress:  opts.Progress,
		state:     stateIdle,
	}, nil
}

// Upload runs a whole chunked upload in one call: session negotiation,
// sequential chunk loop, finalization. Convenience wrapper over NewUpload
// and Run for callers that do not need cancel or status access mid-flight.
func (f *Folder) Upload(
	ctx context.Context, name string, content io.Reader, size int64,
	onCollision CollisionPolicy, opts UploadOptions,
) (*Item, error) {
	u, err := f.NewUpload(name, content, size, onCollision, opts)
	if err != nil {
		return nil, err
	}

	return u.Run(ctx)
}

// Run negotiates the session and uploads the stream chunk by chunk,
// strictly sequentially — the protocol requires ordered byte ranges within
// one session. On a chunk failure the session is kept so the caller can
// resume from the last acknowledged offset; Run itself never retries.
// Run is valid only from the idle state.
func (u *Upload) Run(ctx context.Context) (*Item, error) {
	if u.state != stateIdle {
		return nil, fmt.Errorf("%w: cannot start upload from %s state", ErrInvalidArgument, u.state)
	}

	if err := u.negotiate(ctx); err != nil {
		return nil, err
	}

	u.state = stateUploading

	item, err := u.uploadChunks(ctx)
	if err != nil {
		u.state = stateFailed

		return nil, err
	}

	u.state = stateCompleted
	u.deleteStoredSession()

	return item, nil
}

// negotiate creates the upload session. Failure leaves the upload idle with
// no session retained, so Run may be attempted again.
func (u *Upload) negotiate(ctx context.Context) error {
	session, err := u.c.api.CreateUploadSession(ctx, u.c.driveID, u.parentID, u.name, u.behavior)
	if err != nil {
		return fmt.Errorf("drive: negotiating upload session: %w", errors.Join(ErrSessionCreation, err))
	}

	u.session = session
	u.state = stateNegotiated
	u.storeSession()

	return nil
}

// uploadChunks reads the stream in chunkSize pieces and uploads each with
// its exact byte range. The final chunk may be shorter than chunkSize and
// need not satisfy the alignment constraint.
func (u *Upload) uploadChunks(ctx context.Context) (*Item, error) {
	for u.offset < u.size {
		length := min(u.chunkSize, u.size-u.offset)
		chunk := io.LimitReader(u.content, length)

		raw, err := u.c.api.UploadChunk(ctx, u.session, chunk, u.offset, length, u.size)
		if err != nil {
			// The session stays valid; chunks the server already holds are
			// retained. The caller decides whether to resume or cancel.
			return nil, fmt.Errorf("drive: uploading chunk at offset %d: %w",
				u.offset, errors.Join(ErrChunkUpload, err))
		}

		u.offset += length

		if u.progress != nil {
			u.progress(u.offset, u.size)
		}

		if raw != nil {
			return u.finish(raw)
		}
	}

	// Stream exhausted but the server never produced the finished record.
	return nil, fmt.Errorf("drive: stream exhausted at offset %d without completion record: %w",
		u.offset, ErrChunkUpload)
}

// finish materializes the completed record.
func (u *Upload) finish(raw *api.Item) (*Item, error) {
	if u.offset != u.size {
		u.c.logger.Warn("upload completed before stream end",
			slog.Int64("offset", u.offset),
			slog.Int64("size", u.size),
		)
	}

	item := u.c.wrap(raw)

	u.c.logger.Info("chunked upload complete",
		slog.String("item_id", item.ID),
		slog.String("name", item.Name),
		slog.Int64("size", u.size),
	)

	return &item, nil
}

// Cancel tears down the upload session, best-effort. With no session ever
// negotiated it is a no-op returning success. The upload transitions to
// cancelled regardless of its prior state; a teardown failure is reported
// but does not resurrect the session. Cancel does not interrupt a chunk
// request already on the wire — callers must not invoke it concurrently
// with Run.
func (u *Upload) Cancel(ctx context.Context) error {
	if u.session == nil {
		return nil
	}

	err := u.c.api.CancelUploadSession(ctx, u.session)

	u.state = stateCancelled
	u.deleteStoredSession()
	u.session = nil

	if err != nil {
		return remoteErr("drive: canceling upload session", err)
	}

	return nil
}

// Status queries the next byte offset the server expects, for resume
// decisions. Returns StatusNone when no session exists or nothing is
// pending. Not every backend variant exposes partial-range introspection;
// on those the query fails and the status is simply unavailable.
func (u *Upload) Status(ctx context.Context) (int64, error) {
	if u.session == nil {
		return StatusNone, nil
	}

	st, err := u.c.api.QueryUploadSession(ctx, u.session)
	if err != nil {
		return StatusNone, remoteErr("drive: querying upload status", err)
	}

	if len(st.NextExpectedRanges) == 0 {
		return StatusNone, nil
	}

	offset, err := parseRangeStart(st.NextExpectedRanges[0])
	if err != nil {
		return StatusNone, fmt.Errorf("drive: parsing expected range: %w", err)
	}

	return offset, nil
}

// Session exposes the negotiated session handle, nil before negotiation.
// Callers layering cross-restart resume persist it; this engine does not
// resume automatically.
func (u *Upload) Session() *api.UploadSession {
	return u.session
}

// Offset reports how many bytes the server has acknowledged so far.
func (u *Upload) Offset() int64 {
	return u.offset
}

// CancelPersistedUpload tears down a session persisted by a previous
// process, addressed by the parent folder ID and file name it was created
// under. Reports whether a record existed. The record is removed even when
// the remote teardown fails — the server expires abandoned sessions on its
// own.
func (c *Client) CancelPersistedUpload(ctx context.Context, parentID, name string) (bool, error) {
	if c.sessions == nil {
		return false, nil
	}

	key := parentID + "/" + name

	rec, err := c.sessions.Load(c.driveID, key)
	if err != nil {
		return false, err
	}

	if rec == nil {
		return false, nil
	}

	cancelErr := c.api.CancelUploadSession(ctx, &api.UploadSession{UploadURL: rec.SessionURL})

	if delErr := c.sessions.Delete(c.driveID, key); delErr != nil {
		c.logger.Warn("failed to delete upload session record",
			slog.String("name", name),
			slog.String("error", delErr.Error()),
		)
	}

	if cancelErr != nil {
		return true, remoteErr("drive: canceling persisted upload session", cancelErr)
	}

	return true, nil
}

// parseRangeStart extracts the starting offset from a range string of the
// form "12345-" or "12345-99999".
func parseRangeStart(r string) (int64, error) {
	head, _, found := strings.Cut(r, "-")
	if !found {
		return 0, fmt.Errorf("malformed range %q", r)
	}

	offset, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed range %q: %w", r, err)
	}

	return offset, nil
}

// storeSession persists the session record when a store is configured.
// Persistence failures degrade resume-after-restart, nothing else.
func (u *Upload) storeSession() {
	if u.c.sessions == nil || u.session == nil {
		return
	}

	rec := &SessionRecord{
		DriveID:    u.c.driveID,
		RemotePath: u.parentID + "/" + u.name,
		SessionURL: u.session.UploadURL,
		FileSize:   u.size,
	}

	if err := u.c.sessions.Save(rec); err != nil {
		u.c.logger.Warn("failed to persist upload session, resume after restart unavailable",
			slog.String("name", u.name),
			slog.String("error", err.Error()),
		)
	}
}

// deleteStoredSession removes the persisted record, fire-and-forget.
func (u *Upload) deleteStoredSession() {
	if u.c.sessions == nil {
		return
	}

	if err := u.c.sessions.Delete(u.c.driveID, u.parentID+"/"+u.name); err != nil {
		u.c.logger.Warn("failed to delete upload session record",
			slog.String("name", u.name),
			slog.String("error", err.Error()),
		)
	}
}
