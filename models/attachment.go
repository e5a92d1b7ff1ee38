package models

// Attachment records a file uploaded against a ticket. The bytes live on
// disk under the upload directory; StoredPath is the on-disk name.
type Attachment struct {
	ID          string `db:"id"           json:"id"`
	ParentType  string `db:"parent_type"  json:"parent_type"`
	ParentID    string `db:"parent_id"    json:"parent_id"`
	Filename    string `db:"filename"     json:"filename"`
	StoredPath  string `db:"stored_path"  json:"-"`
	ContentType string `db:"content_type" json:"content_type,omitempty"`
	SizeBytes   int64  `db:"size_bytes"   json:"size_bytes"`
	UploadedBy  string `db:"uploaded_by"  json:"uploaded_by"`
	CreatedAt   string `db:"created_at"   json:"created_at"`
}
