package usecase

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/logger"
)

const documentURLTTL = 15 * time.Minute

type DocumentUseCase struct {
	Records   RecordRepositoryInterface
	Documents DocumentRepositoryInterface
	Storage   ObjectStorage
}

func NewDocumentUseCase(records RecordRepositoryInterface, documents DocumentRepositoryInterface, storage ObjectStorage) *DocumentUseCase {
	return &DocumentUseCase{Records: records, Documents: documents, Storage: storage}
}

// Upload grava o arquivo no bucket e depois a linha no banco. Se o insert
// falhar o objeto é removido.
func (uc *DocumentUseCase) Upload(ctx context.Context, profile *entity.Profile, input UploadDocumentInput, content io.Reader) (*entity.Document, error) {
	if uc.Storage == nil {
		return nil, ErrStorageDisabled
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if _, err := uc.Records.FindByID(ctx, profile.OrganizationID, input.RecordID); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, NewTechnicalError("DB_ERROR", "failed to load record", err)
	}

	contentType := input.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	doc := entity.NewDocument(profile.OrganizationID, input.RecordID, profile.UserID, input.FileName, contentType, input.Size)

	tx := NewTransaction()
	tx.AddOperation("upload_object", func(ctx context.Context) error {
		return uc.Storage.Put(ctx, doc.ObjectKey, content, doc.Size, doc.ContentType)
	})
	tx.AddCompensation("remove_object", func(ctx context.Context) error {
		return uc.Storage.Remove(ctx, doc.ObjectKey)
	})
	tx.AddOperation("insert_document", func(ctx context.Context) error {
		return uc.Documents.Create(ctx, doc)
	})

	if err := tx.Execute(ctx); err != nil {
		return nil, NewTechnicalError("UPLOAD_ERROR", "failed to store document", err)
	}

	if url, err := uc.Storage.PresignedURL(ctx, doc.ObjectKey, documentURLTTL); err == nil {
		doc.URL = url
	}
	return doc, nil
}

func (uc *DocumentUseCase) List(ctx context.Context, profile *entity.Profile, recordID string) ([]entity.Document, error) {
	if _, err := uc.Records.FindByID(ctx, profile.OrganizationID, recordID); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, NewTechnicalError("DB_ERROR", "failed to load record", err)
	}

	docs, err := uc.Documents.ListByRecord(ctx, profile.OrganizationID, recordID)
	if err != nil {
		return nil, NewTechnicalError("DB_ERROR", "failed to list documents", err)
	}
	if docs == nil {
		docs = []entity.Document{}
	}
	if uc.Storage != nil {
		for i := range docs {
			url, err := uc.Storage.PresignedURL(ctx, docs[i].ObjectKey, documentURLTTL)
			if err != nil {
				logger.LogError(logger.Get(), "usecase", "DocumentUseCase.List", "falha ao assinar URL", docs[i].ID, err)
				continue
			}
			docs[i].URL = url
		}
	}
	return docs, nil
}
