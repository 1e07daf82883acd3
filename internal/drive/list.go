package drive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mkallio/graphdrive-go/internal/api"
)

// DefaultPageSize is the $top value used when ListOptions does not set one.
// 200 is the service's maximum for child collections.
const DefaultPageSize = 200

// ListOptions parameterizes one listing request. The zero value asks for
// DefaultPageSize items in service order with no filter.
type ListOptions struct {
	// PageSize must be positive; 0 selects DefaultPageSize. The engine does
	// not enforce an upper bound — the service applies its own cap.
	PageSize int
	// OrderBy is an optional sort key; when set, pages come back in
	// ascending order of that key.
	OrderBy string
	// Filter is an optional predicate expression passed through verbatim to
	// the remote query.
	Filter string
}

// view selects which child records a listing keeps.
type view int

const (
	viewChildren view = iota
	viewFiles
	viewFolders
)

func (v view) String() string {
	switch v {
	case viewFiles:
		return "files"
	case viewFolders:
		return "folders"
	default:
		return "children"
	}
}

// matches reports whether a raw record belongs to the view. Folder
// classification accepts the generic folder facet and the special-folder
// facet as equivalent.
func (v view) matches(raw *api.Item) bool {
	switch v {
	case viewFiles:
		return raw.File != nil
	case viewFolders:
		return raw.Folder != nil || raw.SpecialFolder != nil
	default:
		return true
	}
}

// childrenRequest builds the re-issuable request descriptor for the first
// page of a child listing. Building (and issuing) the descriptor never
// mutates the folder's cursors; only executing a listing operation does.
func (f *Folder) childrenRequest(opts ListOptions) (string, error) {
	pageSize := opts.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}

	if pageSize < 0 {
		return "", fmt.Errorf("%w: page size must be positive, got %d", ErrInvalidArgument, pageSize)
	}

	return api.ChildrenPath(f.c.driveID, f.ID, pageSize, opts.OrderBy, opts.Filter), nil
}

// fetchPage executes one page fetch, filters it to the view, and
// materializes the surviving records. Filtering happens on the fetched page
// only — a short result is never "filled" from further pages.
func (f *Folder) fetchPage(ctx context.Context, path string, v view) ([]Item, string, error) {
	page, err := f.c.api.GetChildPage(ctx, path)
	if err != nil {
		return nil, "", remoteErr("drive: listing "+v.String(), err)
	}

	items := make([]Item, 0, len(page.Items))

	for i := range page.Items {
		raw := &page.Items[i]
		if !v.matches(raw) {
			continue
		}

		items = append(items, f.c.wrap(raw))
	}

	f.c.logger.Debug("listed page",
		slog.String("folder_id", f.ID),
		slog.String("view", v.String()),
		slog.Int("count", len(items)),
		slog.Bool("has_more", page.NextPath != ""),
	)

	return items, page.NextPath, nil
}

// Children fetches the first page of all child records and stores the
// continuation for NextChildren. The returned slice covers this page only.
func (f *Folder) Children(ctx context.Context, opts ListOptions) ([]Item, error) {
	path, err := f.childrenRequest(opts)
	if err != nil {
		return nil, err
	}

	items, next, err := f.fetchPage(ctx, path, viewChildren)
	if err != nil {
		return nil, err
	}

	f.cur.children = next

	return items, nil
}

// Files fetches the first page filtered to file records. The continuation
// for NextFiles is bound to this call's page size, sort, and filter.
func (f *Folder) Files(ctx context.Context, opts ListOptions) ([]Item, error) {
	path, err := f.childrenRequest(opts)
	if err != nil {
		return nil, err
	}

	items, next, err := f.fetchPage(ctx, path, viewFiles)
	if err != nil {
		return nil, err
	}

	f.cur.files = next

	return items, nil
}

// Folders fetches the first page filtered to folder records.
func (f *Folder) Folders(ctx context.Context, opts ListOptions) ([]Item, error) {
	path, err := f.childrenRequest(opts)
	if err != nil {
		return nil, err
	}

	items, next, err := f.fetchPage(ctx, path, viewFolders)
	if err != nil {
		return nil, err
	}

	f.cur.folders = next

	return items, nil
}

// NextChildren fetches the next page of the all-children view. A nil slice
// with nil error means the view is exhausted — a terminal state, never an
// error. Concurrent calls advancing the same cursor race; callers that need
// deterministic page order serialize them.
func (f *Folder) NextChildren(ctx context.Context) ([]Item, error) {
	if f.cur.children == "" {
		return nil, nil
	}

	items, next, err := f.fetchPage(ctx, f.cur.children, viewChildren)
	if err != nil {
		return nil, err
	}

	f.cur.children = next

	return items, nil
}

// NextFiles fetches the next page of the files view. Nil result means
// exhausted.
func (f *Folder) NextFiles(ctx context.Context) ([]Item, error) {
	if f.cur.files == "" {
		return nil, nil
	}

	items, next, err := f.fetchPage(ctx, f.cur.files, viewFiles)
	if err != nil {
		return nil, err
	}

	f.cur.files = next

	return items, nil
}

// NextFolders fetches the next page of the folders view. Nil result means
// exhausted.
func (f *Folder) NextFolders(ctx context.Context) ([]Item, error) {
	if f.cur.folders == "" {
		return nil, nil
	}

	items, next, err := f.fetchPage(ctx, f.cur.folders, viewFolders)
	if err != nil {
		return nil, err
	}

	f.cur.folders = next

	return items, nil
}

// Range returns the children at listing indices [start, start+count). The
// service has no offset query, so the engine requests start+count items from
// the beginning and slices — inefficient for large start values, and kept
// that way deliberately rather than faking server-side skip. Folder cursors
// are untouched. Returns fewer items when the folder is shorter.
func (f *Folder) Range(ctx context.Context, start, count int) ([]Item, error) {
	if start < 0 {
		return nil, fmt.Errorf("%w: start index must be non-negative, got %d", ErrInvalidArgument, start)
	}

	if count <= 0 {
		return nil, fmt.Errorf("%w: count must be positive, got %d", ErrInvalidArgument, count)
	}

	path, err := f.childrenRequest(ListOptions{PageSize: start + count})
	if err != nil {
		return nil, err
	}

	items, _, err := f.fetchPage(ctx, path, viewChildren)
	if err != nil {
		return nil, err
	}

	if start >= len(items) {
		return nil, nil
	}

	end := min(start+count, len(items))

	return items[start:end], nil
}

// ChildByName resolves a single child by name or relative path. Returns
// (nil, nil) when the service reports not-found.
func (f *Folder) ChildByName(ctx context.Context, name string) (*Item, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: child name must not be empty", ErrInvalidArgument)
	}

	raw, err := f.c.api.GetChildItem(ctx, f.c.driveID, f.ID, name)
	if errors.Is(err, api.ErrNotFound) {
		return nil, nil //nolint:nilnil // absent result, per lookup contract
	}

	if err != nil {
		return nil, remoteErr("drive: getting child by name", err)
	}

	item := f.c.wrap(raw)

	return &item, nil
}
