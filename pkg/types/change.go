package types

import "strings"

// OperationKind is the kind of mutation a change record describes.
type OperationKind string

const (
	OpInsert  OperationKind = "insert"
	OpUpdate  OperationKind = "update"
	OpDelete  OperationKind = "delete"
	OpUnknown OperationKind = "unknown"
)

// ParseOperationKind maps both the neutral names and the DynamoDB stream
// event names (INSERT, MODIFY, REMOVE) onto an OperationKind.
func ParseOperationKind(s string) OperationKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "insert":
		return OpInsert
	case "update", "modify":
		return OpUpdate
	case "delete", "remove":
		return OpDelete
	default:
		return OpUnknown
	}
}

// ChangeRecord is one entry of a change feed.
type ChangeRecord struct {
	OperationKind OperationKind `json:"operationKind"`

	// PostImage is the record as it looks after the change. It is nil for
	// deletes and for feeds configured without new images.
	PostImage Map `json:"postImage,omitempty"`
}
