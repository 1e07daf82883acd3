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
	"time"
)

// CreateUploadSession negotiates a resumable upload session for a new child
// of the given parent. conflictBehavior is the wire-level collision
// directive. The returned session contains a pre-authenticated upload URL.
func (c *Client) CreateUploadSession(
	ctx context.Context, driveID, parentID, name, conflictBehavior string,
) (*UploadSession, error) {
	c.logger.Info("creating upload session",
		slog.String("drive_id", driveID),
		slog.String("parent_id", parentID),
		slog.String("name", name),
		slog.String("conflict_behavior", conflictBehavior),
	)

	path := fmt.Sprintf("/drives/%s/items/%s:/%s:/createUploadSession",
		driveID, parentID, url.PathEscape(name))

	reqBody := createSessionRequest{
		Item: sessionItem{ConflictBehavior: conflictBehavior},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("api: marshaling upload session request: %w", err)
	}

	resp, err := c.Do(ctx, http.MethodPost, path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var sr sessionResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&sr); decErr != nil {
		return nil, fmt.Errorf("api: decoding upload session response: %w", decErr)
	}

	session := &UploadSession{
		UploadURL:      sr.UploadURL,
		ExpirationTime: c.parseExpiration(sr.ExpirationDateTime),
	}

	c.logger.Debug("upload session created",
		slog.Time("expires", session.ExpirationTime),
	)

	return session, nil
}

// UploadChunk uploads one chunk of a session. offset is the chunk's starting
// byte, length its size, total the full content length; the server receives
// them as a Content-Range header. Returns the completed raw record on the
// final chunk (200/201) and nil for intermediate chunks (202).
func (c *Client) UploadChunk(
	ctx context.Context, session *UploadSession, chunk io.Reader,
	offset, length, total int64,
) (*Item, error) {
	c.logger.Debug("uploading chunk",
		slog.Int64("offset", offset),
		slog.Int64("length", length),
		slog.Int64("total", total),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, session.UploadURL, chunk)
	if err != nil {
		return nil, fmt.Errorf("api: creating chunk upload request: %w", err)
	}

	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, offset+length-1, total))
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("User-Agent", userAgent)
	req.ContentLength = length

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: chunk upload request failed: %w", err)
	}
	defer resp.Body.Close()

	return c.handleChunkResponse(resp)
}

// handleChunkResponse interprets the status of a chunk upload.
func (c *Client) handleChunkResponse(resp *http.Response) (*Item, error) {
	switch resp.StatusCode {
	case http.StatusAccepted:
		// Intermediate chunk accepted. Drain body to reuse the connection.
		if _, drainErr := io.Copy(io.Discard, resp.Body); drainErr != nil {
			return nil, fmt.Errorf("api: draining chunk response body: %w", drainErr)
		}

		c.logger.Debug("intermediate chunk accepted")

		return nil, nil

	case http.StatusOK, http.StatusCreated:
		// Final chunk — the response carries the finished record.
		var item Item
		if decErr := json.NewDecoder(resp.Body).Decode(&item); decErr != nil {
			return nil, fmt.Errorf("api: decoding final chunk response: %w", decErr)
		}

		c.logger.Debug("upload complete",
			slog.String("item_id", item.ID),
			slog.String("item_name", item.Name),
		)

		return &item, nil

	case http.StatusRequestedRangeNotSatisfiable:
		// The server holds different ranges than we sent. Callers query the
		// session to discover the accepted ranges.
		if _, drainErr := io.Copy(io.Discard, resp.Body); drainErr != nil {
			return nil, fmt.Errorf("api: draining 416 response body: %w", drainErr)
		}

		c.logger.Warn("chunk upload returned 416 Range Not Satisfiable")

		return nil, ErrRangeNotSatisfiable

	default:
		body, _ := io.ReadAll(resp.Body) //nolint:errcheck // best-effort read for error message
		c.logger.Error("chunk upload failed",
			slog.Int("status", resp.StatusCode),
		)

		return nil, &Error{
			StatusCode: resp.StatusCode,
			RequestID:  resp.Header.Get("request-id"),
			Message:    string(body),
			Err:        classifyStatus(resp.StatusCode),
		}
	}
}

// CancelUploadSession deletes an upload session, discarding any chunks the
// server holds for it. The session URL is pre-authenticated.
func (c *Client) CancelUploadSession(ctx context.Context, session *UploadSession) error {
	c.logger.Info("canceling upload session")

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, session.UploadURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("api: creating cancel session request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api: cancel session request failed: %w", err)
	}
	defer resp.Body.Close()

	if _, drainErr := io.Copy(io.Discard, resp.Body); drainErr != nil {
		return fmt.Errorf("api: draining cancel session response body: %w", drainErr)
	}

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("api: cancel session failed with status %d", resp.StatusCode)
	}

	c.logger.Debug("upload session canceled")

	return nil
}

// QueryUploadSession asks the server which byte ranges it still expects.
// Not every backend variant exposes this; a failure here means the status is
// unavailable, not that the session is dead.
func (c *Client) QueryUploadSession(ctx context.Context, session *UploadSession) (*SessionStatus, error) {
	c.logger.Info("querying upload session status")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, session.UploadURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("api: creating query session request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: query session request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body) //nolint:errcheck // best-effort read for error message

		return nil, &Error{
			StatusCode: resp.StatusCode,
			RequestID:  resp.Header.Get("request-id"),
			Message:    string(body),
			Err:        classifyStatus(resp.StatusCode),
		}
	}

	var sr sessionResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&sr); decErr != nil {
		return nil, fmt.Errorf("api: decoding session status response: %w", decErr)
	}

	status := &SessionStatus{
		UploadURL:          sr.UploadURL,
		ExpirationTime:     c.parseExpiration(sr.ExpirationDateTime),
		NextExpectedRanges: sr.NextExpectedRanges,
	}

	c.logger.Debug("upload session status",
		slog.Int("pending_ranges", len(status.NextExpectedRanges)),
	)

	return status, nil
}

// parseExpiration parses a session expiration timestamp. Malformed values
// yield the zero time with a warning rather than failing the operation.
func (c *Client) parseExpiration(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.logger.Warn("invalid session expiration, using zero time",
			slog.String("raw", raw),
			slog.String("error", err.Error()),
		)

		return time.Time{}
	}

	return t
}
