package api

import (
	"encoding/json"
	"time"
)

// Item mirrors the service's driveItem JSON. It is the raw record handed to
// the core for materialization — facet pointers are kind markers: a non-nil
// Folder or SpecialFolder facet marks a folder, a non-nil File facet marks a
// file. This package never classifies; it only decodes.
type Item struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	Size                 int64            `json:"size"`
	ETag                 string           `json:"eTag"`
	CreatedDateTime      string           `json:"createdDateTime"`
	LastModifiedDateTime string           `json:"lastModifiedDateTime"`
	ParentReference      *ParentRef       `json:"parentReference"`
	File                 *FileFacet       `json:"file"`
	Folder               *FolderFacet     `json:"folder"`
	SpecialFolder        *SpecialFolder   `json:"specialFolder"`
	Deleted              *json.RawMessage `json:"deleted"`
	Package              *json.RawMessage `json:"package"`
}

// ParentRef locates the record's parent folder and drive.
type ParentRef struct {
	ID      string `json:"id"`
	DriveID string `json:"driveId"`
	Path    string `json:"path"`
}

// FileFacet is present on file records.
type FileFacet struct {
	MimeType string `json:"mimeType"`
}

// FolderFacet is present on folder records.
type FolderFacet struct {
	ChildCount int `json:"childCount"`
}

// SpecialFolder marks well-known folders (Documents, Photos, ...). A record
// carrying only this facet is still a folder.
type SpecialFolder struct {
	Name string `json:"name"`
}

// ChildPage is one page of a children listing: the raw records plus the
// API path of the next page (empty when the listing is exhausted).
type ChildPage struct {
	Items    []Item
	NextPath string
}

// listResponse is the wire shape of a children listing page.
type listResponse struct {
	Value    []Item `json:"value"`
	NextLink string `json:"@odata.nextLink"` //nolint:tagliatelle // OData annotation key
}

// UploadSession is a server-issued resumable upload context. The upload URL
// is pre-authenticated; requests against it carry no Authorization header.
type UploadSession struct {
	UploadURL      string
	ExpirationTime time.Time
}

// SessionStatus reports which byte ranges an upload session still expects.
// Ranges are strings of the form "12345-" or "12345-55232".
type SessionStatus struct {
	UploadURL          string
	ExpirationTime     time.Time
	NextExpectedRanges []string
}

// createFolderRequest is the wire shape for folder creation. The conflict
// directive rides in the request body as an annotation field.
type createFolderRequest struct {
	Name             string      `json:"name"`
	Folder           FolderFacet `json:"folder"`
	ConflictBehavior string      `json:"@microsoft.graph.conflictBehavior"` //nolint:tagliatelle // service annotation key
}

// createSessionRequest is the wire shape for upload session negotiation.
type createSessionRequest struct {
	Item sessionItem `json:"item"`
}

type sessionItem struct {
	ConflictBehavior string `json:"@microsoft.graph.conflictBehavior"` //nolint:tagliatelle // service annotation key
}

type sessionResponse struct {
	UploadURL          string   `json:"uploadUrl"`
	ExpirationDateTime string   `json:"expirationDateTime"`
	NextExpectedRanges []string `json:"nextExpectedRanges"`
}
