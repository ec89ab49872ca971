package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

func TestUploadDocumentSuccess(t *testing.T) {
	ctx := context.Background()
	records := new(MockRecordRepository)
	docs := new(MockDocumentRepository)
	storage := new(MockStorage)
	content := strings.NewReader("%PDF-1.4")

	records.On("FindByID", ctx, orgID, recordID).Return(newDeal("new"), nil)
	storage.On("Put", ctx, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, orgID+"/"+recordID+"/") && strings.HasSuffix(key, "-contrato.pdf")
	}), content, int64(8), "application/pdf").Return(nil)
	docs.On("Create", ctx, mock.AnythingOfType("*entity.Document")).Return(nil)
	storage.On("PresignedURL", ctx, mock.Anything, documentURLTTL).Return("https://minio.local/signed", nil)

	uc := NewDocumentUseCase(records, docs, storage)
	doc, err := uc.Upload(ctx, testProfile(entity.RoleMember), UploadDocumentInput{
		RecordID: recordID, FileName: "contrato.pdf", ContentType: "application/pdf", Size: 8,
	}, content)

	require.NoError(t, err)
	assert.Equal(t, "https://minio.local/signed", doc.URL)
	assert.Equal(t, "user-1", doc.UploadedBy)
	storage.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
}

func TestUploadDocumentRemovesObjectWhenInsertFails(t *testing.T) {
	ctx := context.Background()
	records := new(MockRecordRepository)
	docs := new(MockDocumentRepository)
	storage := new(MockStorage)

	records.On("FindByID", ctx, orgID, recordID).Return(newDeal("new"), nil)
	storage.On("Put", ctx, mock.Anything, mock.Anything, int64(3), "application/octet-stream").Return(nil)
	docs.On("Create", ctx, mock.Anything).Return(errors.New("insert failed"))
	storage.On("Remove", mock.Anything, mock.Anything).Return(nil)

	uc := NewDocumentUseCase(records, docs, storage)
	_, err := uc.Upload(ctx, testProfile(entity.RoleMember), UploadDocumentInput{RecordID: recordID, FileName: "a.txt", Size: 3}, strings.NewReader("abc"))

	assert.True(t, IsTechnicalError(err))
	storage.AssertNumberOfCalls(t, "Remove", 1)
}

func TestUploadDocumentWithoutStorage(t *testing.T) {
	uc := NewDocumentUseCase(new(MockRecordRepository), new(MockDocumentRepository), nil)

	_, err := uc.Upload(context.Background(), testProfile(entity.RoleMember), UploadDocumentInput{}, strings.NewReader(""))

	assert.ErrorIs(t, err, ErrStorageDisabled)
}

func TestTransactionRollsBackInReverseOrder(t *testing.T) {
	var calls []string
	tx := NewTransaction()
	tx.AddOperation("first", func(context.Context) error { calls = append(calls, "first"); return nil })
	tx.AddCompensation("undo_first", func(context.Context) error { calls = append(calls, "undo_first"); return nil })
	tx.AddOperation("second", func(context.Context) error { calls = append(calls, "second"); return nil })
	tx.AddCompensation("undo_second", func(context.Context) error { calls = append(calls, "undo_second"); return nil })
	tx.AddOperation("third", func(context.Context) error { return errors.New("boom") })

	err := tx.Execute(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "operation 'third' failed")
	assert.Equal(t, []string{"first", "second", "undo_second", "undo_first"}, calls)
}

func TestMirrorStageChangeOnlyWonDeals(t *testing.T) {
	ctx := context.Background()
	mirror := new(MockWonDealMirror)
	uc := NewMirrorStageChangeUseCase(mirror)

	require.NoError(t, uc.Execute(ctx, entity.StageChange{RecordType: entity.RecordTypeDeal, IsWon: false}))
	require.NoError(t, uc.Execute(ctx, entity.StageChange{RecordType: entity.RecordTypeLead, IsWon: true}))
	mirror.AssertNotCalled(t, "MirrorWonDeal", mock.Anything, mock.Anything)

	won := entity.StageChange{RecordID: recordID, RecordType: entity.RecordTypeDeal, IsWon: true}
	mirror.On("MirrorWonDeal", ctx, won).Return(42, nil)
	require.NoError(t, uc.Execute(ctx, won))
	mirror.AssertExpectations(t)
}
