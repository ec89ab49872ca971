package database

import (
	"context"
	"database/sql"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

type DocumentRepository struct {
	DB *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *entity.Document) error {
	query := `
		INSERT INTO documents (id, organization_id, record_id, file_name, content_type, size, object_key, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.DB.ExecContext(ctx, query,
		doc.ID,
		doc.OrganizationID,
		doc.RecordID,
		doc.FileName,
		doc.ContentType,
		doc.Size,
		doc.ObjectKey,
		nullString(doc.UploadedBy),
		doc.CreatedAt,
	)
	if isUniqueViolation(err) {
		return entity.ErrDocumentExists
	}
	return err
}

func (r *DocumentRepository) ListByRecord(ctx context.Context, orgID, recordID string) ([]entity.Document, error) {
	query := `
		SELECT id, organization_id, record_id, file_name, content_type, size, object_key, uploaded_by, created_at
		FROM documents
		WHERE organization_id = $1 AND record_id = $2
		ORDER BY created_at DESC
	`
	rows, err := r.DB.QueryContext(ctx, query, orgID, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []entity.Document
	for rows.Next() {
		var (
			d          entity.Document
			uploadedBy sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.OrganizationID, &d.RecordID, &d.FileName, &d.ContentType, &d.Size,
			&d.ObjectKey, &uploadedBy, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.UploadedBy = stringOrEmpty(uploadedBy)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
