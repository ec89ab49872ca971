package entity

import (
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
)

var ErrDocumentExists = errors.New("document object key already exists")

type Document struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	RecordID       string    `json:"record_id"`
	FileName       string    `json:"file_name"`
	ContentType    string    `json:"content_type"`
	Size           int64     `json:"size"`
	ObjectKey      string    `json:"-"`
	UploadedBy     string    `json:"uploaded_by"`
	URL            string    `json:"url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewDocument gera ID e a chave do objeto no bucket: org/record/id-nome.
func NewDocument(orgID, recordID, uploadedBy, fileName, contentType string, size int64) *Document {
	id := uuid.New().String()
	return &Document{
		ID:             id,
		OrganizationID: orgID,
		RecordID:       recordID,
		FileName:       fileName,
		ContentType:    contentType,
		Size:           size,
		ObjectKey:      fmt.Sprintf("%s/%s/%s-%s", orgID, recordID, id, path.Base(fileName)),
		UploadedBy:     uploadedBy,
		CreatedAt:      time.Now(),
	}
}
