// Package drive is the client-side core over a Graph-style drive service:
// typed folder/file handles materialized from raw records, paginated child
// listings with independent continuation cursors, and the chunked resumable
// upload engine. All network traffic goes through the injected api.Client;
// this package owns no transport policy of its own.
package drive

import (
	"errors"
	"fmt"
)

// Failure taxonomy. Every error returned by this package wraps exactly one
// of these sentinels; check with errors.Is. Validation sentinels
// (ErrInvalidArgument, ErrPayloadTooLarge, ErrUnsupportedPolicy) are raised
// before any network call. Exhausted pagination and absent lookups are nil
// results, never errors.
var (
	ErrInvalidArgument   = errors.New("drive: invalid argument")
	ErrPayloadTooLarge   = errors.New("drive: payload too large for single-request upload")
	ErrRemoteRequest     = errors.New("drive: remote request failed")
	ErrSessionCreation   = errors.New("drive: upload session creation failed")
	ErrChunkUpload       = errors.New("drive: chunk upload failed")
	ErrUnsupportedPolicy = errors.New("drive: unsupported collision policy")
	ErrNotFolder         = errors.New("drive: item is not a folder")
)

// remoteErr tags a transport/service failure with ErrRemoteRequest while
// keeping the underlying api error chain intact for errors.Is checks.
func remoteErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrRemoteRequest, err))
}
