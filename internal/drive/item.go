package drive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/mkallio/graphdrive-go/internal/api"
)

// Kind discriminates what a materialized record is.
type Kind int

const (
	// KindOther covers records that are neither folders nor files
	// (packages, remote items, malformed records).
	KindOther Kind = iota
	// KindFolder marks folder records, including special folders.
	KindFolder
	// KindFile marks file records.
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindFile:
		return "file"
	default:
		return "other"
	}
}

// ChildCountUnknown means the child count was absent from the record.
const ChildCountUnknown = -1

// Client issues drive operations against one drive. It is caller-owned and
// explicitly constructed — collaborators are injected, there is no package
// singleton. sessions may be nil when upload session persistence is not
// wanted.
type Client struct {
	api      *api.Client
	driveID  string
	sessions *SessionStore
	logger   *slog.Logger
}

// NewClient creates a drive client bound to driveID. The api client is the
// transport/serialization collaborator; sessions, when non-nil, persists
// upload sessions for caller-driven resume after restart.
func NewClient(a *api.Client, driveID string, sessions *SessionStore, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		api:      a,
		driveID:  driveID,
		sessions: sessions,
		logger:   logger,
	}
}

// Item is a typed local handle for a remote record. It carries a non-owning
// reference to the Client that produced it, used for follow-up operations,
// never for lifecycle control.
type Item struct {
	ID         string
	Name       string
	Kind       Kind
	Size       int64
	ETag       string
	ParentID   string
	MimeType   string
	ChildCount int
	Created    time.Time
	Modified   time.Time

	c *Client
}

// Folder is an Item known to be a folder, extended with three independent
// pagination cursors — one per view (all children, files only, folders
// only). The cursors are separate fields consulted and updated only by their
// own view's operations, so advancing one never invalidates another.
type Folder struct {
	Item
	cur cursors
}

// cursors holds one optional continuation per listing view. An empty string
// means no further pages for that view.
type cursors struct {
	children string
	files    string
	folders  string
}

// wrap materializes a raw record into a typed handle. Classification reads
// the record's kind markers: a folder or special-folder facet means folder,
// a file facet means file, anything else is Other. Names are normalized to
// NFC — the service returns mixed NFC/NFD depending on the client that
// created the item. wrap performs no network calls.
func (c *Client) wrap(raw *api.Item) Item {
	item := Item{
		ID:         raw.ID,
		Name:       norm.NFC.String(raw.Name),
		Size:       raw.Size,
		ETag:       raw.ETag,
		ChildCount: ChildCountUnknown,
		c:          c,
	}

	switch {
	case raw.Folder != nil || raw.SpecialFolder != nil:
		item.Kind = KindFolder
	case raw.File != nil:
		item.Kind = KindFile
		item.MimeType = raw.File.MimeType
	default:
		item.Kind = KindOther
	}

	if raw.Folder != nil {
		item.ChildCount = raw.Folder.ChildCount
	}

	if raw.ParentReference != nil {
		item.ParentID = raw.ParentReference.ID
	}

	item.Created = c.parseTimestamp(raw.CreatedDateTime, "createdDateTime", raw.ID)
	item.Modified = c.parseTimestamp(raw.LastModifiedDateTime, "lastModifiedDateTime", raw.ID)

	return item
}

// parseTimestamp parses an RFC3339 timestamp, returning the zero time with
// a warning for absent or malformed values.
func (c *Client) parseTimestamp(raw, field, itemID string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.logger.Warn("invalid timestamp on record",
			slog.String("field", field),
			slog.String("item_id", itemID),
			slog.String("raw", raw),
		)

		return time.Time{}
	}

	return t
}

// AsFolder converts the item to a Folder handle with fresh cursors.
// Returns ErrNotFolder for non-folder items.
func (it Item) AsFolder() (*Folder, error) {
	if it.Kind != KindFolder {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotFolder, it.Name, it.Kind)
	}

	return &Folder{Item: it}, nil
}

// Root returns the drive's root folder.
func (c *Client) Root(ctx context.Context) (*Folder, error) {
	raw, err := c.api.GetItem(ctx, c.driveID, "root")
	if err != nil {
		return nil, remoteErr("drive: getting root", err)
	}

	item := c.wrap(raw)

	return item.AsFolder()
}

// ItemByPath resolves an item by its drive-root-relative path. Returns
// (nil, nil) when the service reports the path does not exist.
func (c *Client) ItemByPath(ctx context.Context, remotePath string) (*Item, error) {
	raw, err := c.api.GetItemByPath(ctx, c.driveID, remotePath)
	if errors.Is(err, api.ErrNotFound) {
		return nil, nil //nolint:nilnil // absent result, per lookup contract
	}

	if err != nil {
		return nil, remoteErr("drive: getting item by path", err)
	}

	item := c.wrap(raw)

	return &item, nil
}

// FolderByPath resolves a folder by path. Absent paths and non-folder items
// both return errors; use ItemByPath when either is acceptable.
func (c *Client) FolderByPath(ctx context.Context, remotePath string) (*Folder, error) {
	item, err := c.ItemByPath(ctx, remotePath)
	if err != nil {
		return nil, err
	}

	if item == nil {
		return nil, fmt.Errorf("%w: no such path %q", ErrNotFolder, remotePath)
	}

	return item.AsFolder()
}

// Delete removes the item (the service keeps it in its recycle bin).
func (it *Item) Delete(ctx context.Context) error {
	if err := it.c.api.DeleteItem(ctx, it.c.driveID, it.ID); err != nil {
		return remoteErr("drive: deleting item", err)
	}

	return nil
}
