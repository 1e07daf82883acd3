package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// encodePathSegments URL-encodes each segment of a slash-separated path.
// Characters like #, ?, %, and spaces are encoded per-segment so the result
// is safe for interpolation into API URLs.
func encodePathSegments(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	return strings.Join(segments, "/")
}

// fetchItem fetches a single raw record from the given API path.
func (c *Client) fetchItem(ctx context.Context, apiPath string) (*Item, error) {
	resp, err := c.Do(ctx, http.MethodGet, apiPath, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var item Item
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("api: decoding item response: %w", err)
	}

	return &item, nil
}

// GetItem retrieves a single raw record by ID. itemID "root" addresses the
// drive root folder.
func (c *Client) GetItem(ctx context.Context, driveID, itemID string) (*Item, error) {
	c.logger.Info("getting item",
		slog.String("drive_id", driveID),
		slog.String("item_id", itemID),
	)

	return c.fetchItem(ctx, fmt.Sprintf("/drives/%s/items/%s", driveID, itemID))
}

// GetItemByPath retrieves a raw record by its path relative to the drive
// root. The path must not have a leading slash; for the root itself use
// GetItem with itemID "root".
func (c *Client) GetItemByPath(ctx context.Context, driveID, remotePath string) (*Item, error) {
	c.logger.Info("getting item by path",
		slog.String("drive_id", driveID),
		slog.String("path", remotePath),
	)

	return c.fetchItem(ctx, fmt.Sprintf("/drives/%s/root:/%s:", driveID, encodePathSegments(remotePath)))
}

// GetChildItem retrieves a raw record by name or relative path under the
// given parent folder.
func (c *Client) GetChildItem(ctx context.Context, driveID, parentID, name string) (*Item, error) {
	c.logger.Info("getting child item",
		slog.String("drive_id", driveID),
		slog.String("parent_id", parentID),
		slog.String("name", name),
	)

	return c.fetchItem(ctx, fmt.Sprintf("/drives/%s/items/%s:/%s:", driveID, parentID, encodePathSegments(name)))
}

// ChildrenPath builds the API path for the first page of a children listing.
// pageSize becomes the $top parameter; orderBy, when non-empty, appends an
// ascending $orderby directive; filter is passed through verbatim as $filter.
// The returned path is an opaque, re-issuable request descriptor — issuing it
// is idempotent and side-effect free.
func ChildrenPath(driveID, parentID string, pageSize int, orderBy, filter string) string {
	q := url.Values{}
	q.Set("$top", fmt.Sprint(pageSize))

	if orderBy != "" {
		q.Set("$orderby", orderBy+" asc")
	}

	if filter != "" {
		q.Set("$filter", filter)
	}

	return fmt.Sprintf("/drives/%s/items/%s/children?%s", driveID, parentID, q.Encode())
}

// GetChildPage fetches one page of a children listing from the given API
// path — either a path built by ChildrenPath or the NextPath of a previous
// page. It never follows continuations itself; paging policy belongs to the
// caller.
func (c *Client) GetChildPage(ctx context.Context, apiPath string) (*ChildPage, error) {
	resp, err := c.Do(ctx, http.MethodGet, apiPath, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("api: decoding children response: %w", err)
	}

	page := &ChildPage{Items: lr.Value}

	if lr.NextLink != "" {
		nextPath, stripErr := c.stripBaseURL(lr.NextLink)
		if stripErr != nil {
			return nil, stripErr
		}

		page.NextPath = nextPath
	}

	c.logger.Debug("fetched children page",
		slog.Int("count", len(page.Items)),
		slog.Bool("has_more", page.NextPath != ""),
	)

	return page, nil
}

// stripBaseURL removes the client's base URL prefix from a continuation URL,
// returning the path + query string for use with Do().
func (c *Client) stripBaseURL(fullURL string) (string, error) {
	if !strings.HasPrefix(fullURL, c.baseURL) {
		return "", fmt.Errorf("api: continuation URL %q does not match base URL %q", fullURL, c.baseURL)
	}

	return fullURL[len(c.baseURL):], nil
}

// CreateFolder creates a folder under the given parent. conflictBehavior is
// the wire-level collision directive ("fail", "replace", or "rename").
func (c *Client) CreateFolder(ctx context.Context, driveID, parentID, name, conflictBehavior string) (*Item, error) {
	c.logger.Info("creating folder",
		slog.String("drive_id", driveID),
		slog.String("parent_id", parentID),
		slog.String("name", name),
		slog.String("conflict_behavior", conflictBehavior),
	)

	reqBody := createFolderRequest{
		Name:             name,
		Folder:           FolderFacet{},
		ConflictBehavior: conflictBehavior,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("api: marshaling create folder request: %w", err)
	}

	path := fmt.Sprintf("/drives/%s/items/%s/children", driveID, parentID)

	resp, err := c.Do(ctx, http.MethodPost, path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var item Item
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("api: decoding create folder response: %w", err)
	}

	return &item, nil
}

// PutContent writes file content in a single request, creating or replacing
// the named child of the parent folder. The conflict directive rides as a
// query parameter on the content URL. Unlike Do, this path never retries —
// the body reader cannot be replayed.
func (c *Client) PutContent(
	ctx context.Context, driveID, parentID, name, conflictBehavior string, body io.Reader, size int64,
) (*Item, error) {
	c.logger.Info("uploading content",
		slog.String("drive_id", driveID),
		slog.String("parent_id", parentID),
		slog.String("name", name),
		slog.Int64("size", size),
	)

	path := fmt.Sprintf("/drives/%s/items/%s:/%s:/content?@microsoft.graph.conflictBehavior=%s",
		driveID, parentID, url.PathEscape(name), url.QueryEscape(conflictBehavior))

	resp, err := c.doUpload(ctx, http.MethodPut, c.baseURL+path, body, size, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var item Item
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("api: decoding content upload response: %w", err)
	}

	return &item, nil
}

// DeleteItem deletes a record (the service moves it to its recycle bin).
// Returns nil on HTTP 204.
func (c *Client) DeleteItem(ctx context.Context, driveID, itemID string) error {
	c.logger.Info("deleting item",
		slog.String("drive_id", driveID),
		slog.String("item_id", itemID),
	)

	path := fmt.Sprintf("/drives/%s/items/%s", driveID, itemID)

	resp, err := c.Do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	if _, copyErr := io.Copy(io.Discard, resp.Body); copyErr != nil {
		return fmt.Errorf("api: draining delete response body: %w", copyErr)
	}

	return nil
}

// doUpload sends a single octet-stream request. When authed is true the
// request carries a bearer token; session URLs are pre-authenticated and
// must not receive one.
func (c *Client) doUpload(
	ctx context.Context, method, fullURL string, body io.Reader, size int64, authed bool,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("api: creating upload request: %w", err)
	}

	if authed {
		tok, tokErr := c.token.Token()
		if tokErr != nil {
			return nil, fmt.Errorf("api: obtaining token for upload: %w", tokErr)
		}

		req.Header.Set("Authorization", "Bearer "+tok)
	}

	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("User-Agent", userAgent)
	req.ContentLength = size

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("upload request failed",
			slog.String("method", method),
			slog.String("error", err.Error()),
		)

		return nil, fmt.Errorf("api: upload request failed: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errBody, _ := io.ReadAll(resp.Body) //nolint:errcheck // best-effort read for error message
		resp.Body.Close()

		return nil, &Error{
			StatusCode: resp.StatusCode,
			RequestID:  resp.Header.Get("request-id"),
			Message:    string(errBody),
			Err:        classifyStatus(resp.StatusCode),
		}
	}

	return resp, nil
}
