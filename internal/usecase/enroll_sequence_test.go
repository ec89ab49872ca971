package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

type enrollmentFixture struct {
	sequences   *MockSequenceRepository
	enrollments *MockEnrollmentRepository
	records     *MockRecordRepository
	uc          *EnrollmentUseCase
	now         time.Time
}

func newEnrollmentFixture() *enrollmentFixture {
	f := &enrollmentFixture{
		sequences:   new(MockSequenceRepository),
		enrollments: new(MockEnrollmentRepository),
		records:     new(MockRecordRepository),
		now:         time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC),
	}
	f.uc = NewEnrollmentUseCase(f.sequences, f.enrollments, f.records)
	f.uc.Now = func() time.Time { return f.now }
	f.sequences.On("FindByID", mock.Anything, orgID, sequenceID).Return(&entity.Sequence{ID: sequenceID, OrganizationID: orgID, Name: "Onboarding"}, nil)
	return f
}

func TestEnrollSkipsRecordsWithoutEmail(t *testing.T) {
	ctx := context.Background()
	f := newEnrollmentFixture()
	ids := []string{recordID, recordID2, recordID3}

	f.records.On("FindByIDs", ctx, orgID, ids).Return(map[string]*entity.Record{
		recordID:  {ID: recordID, Name: "Ana", Email: "ana@ligue.com"},
		recordID2: {ID: recordID2, Name: "Bruno", Email: ""},
		recordID3: {ID: recordID3, Name: "Carla", Email: "carla@ligue.com"},
	}, nil)
	f.enrollments.On("FindOpenRecordIDs", ctx, sequenceID, ids).Return(map[string]bool{}, nil)
	f.sequences.On("ListSteps", ctx, sequenceID).Return([]entity.SequenceStep{{ID: "s1", DelayHours: 2}}, nil)
	f.enrollments.On("Create", ctx, mock.AnythingOfType("*entity.Enrollment")).Return(true, nil)

	out, err := f.uc.Enroll(ctx, testProfile(entity.RoleMember), sequenceID, EnrollInput{RecordIDs: ids})

	require.NoError(t, err)
	assert.Equal(t, 2, out.Enrolled)
	assert.Len(t, out.Enrollments, 2)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, EnrollError{RecordID: recordID2, Error: "No email address"}, out.Errors[0])
	assert.Equal(t, f.now.Add(2*time.Hour), *out.Enrollments[0].NextSendAt)
	f.enrollments.AssertNumberOfCalls(t, "Create", 2)
}

func TestEnrollReportsMissingAndAlreadyEnrolled(t *testing.T) {
	ctx := context.Background()
	f := newEnrollmentFixture()
	ids := []string{recordID, recordID2, "not-a-uuid"}
	valid := []string{recordID, recordID2}

	f.records.On("FindByIDs", ctx, orgID, valid).Return(map[string]*entity.Record{
		recordID: {ID: recordID, Email: "ana@ligue.com"},
	}, nil)
	f.enrollments.On("FindOpenRecordIDs", ctx, sequenceID, valid).Return(map[string]bool{recordID: true}, nil)
	f.sequences.On("ListSteps", ctx, sequenceID).Return([]entity.SequenceStep{}, nil)

	out, err := f.uc.Enroll(ctx, testProfile(entity.RoleMember), sequenceID, EnrollInput{RecordIDs: ids})

	require.NoError(t, err)
	assert.Equal(t, 0, out.Enrolled)
	assert.Equal(t, []EnrollError{
		{RecordID: recordID, Error: "Already enrolled"},
		{RecordID: recordID2, Error: "Record not found"},
		{RecordID: "not-a-uuid", Error: "Record not found"},
	}, out.Errors)
	f.enrollments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestEnrollConflictOnInsertCountsAsAlreadyEnrolled(t *testing.T) {
	ctx := context.Background()
	f := newEnrollmentFixture()
	ids := []string{recordID}

	f.records.On("FindByIDs", ctx, orgID, ids).Return(map[string]*entity.Record{recordID: {ID: recordID, Email: "ana@ligue.com"}}, nil)
	f.enrollments.On("FindOpenRecordIDs", ctx, sequenceID, ids).Return(map[string]bool{}, nil)
	f.sequences.On("ListSteps", ctx, sequenceID).Return([]entity.SequenceStep{}, nil)
	f.enrollments.On("Create", ctx, mock.Anything).Return(false, nil)

	out, err := f.uc.Enroll(ctx, testProfile(entity.RoleMember), sequenceID, EnrollInput{RecordIDs: ids})

	require.NoError(t, err)
	assert.Equal(t, 0, out.Enrolled)
	assert.Equal(t, "Already enrolled", out.Errors[0].Error)
}

func TestEnrollUnknownSequence(t *testing.T) {
	f := newEnrollmentFixture()
	other := "00000000-0000-4000-8000-000000000000"
	f.sequences.On("FindByID", mock.Anything, orgID, other).Return(nil, entity.ErrNotFound)

	_, err := f.uc.Enroll(context.Background(), testProfile(entity.RoleMember), other, EnrollInput{RecordIDs: []string{recordID}})

	assert.ErrorIs(t, err, ErrSequenceNotFound)
}

func TestEnrollRequiresRecordIDs(t *testing.T) {
	f := newEnrollmentFixture()

	_, err := f.uc.Enroll(context.Background(), testProfile(entity.RoleMember), sequenceID, EnrollInput{})

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "record_ids", verrs[0].Field)
}

func TestListEnrollmentsClampsLimit(t *testing.T) {
	ctx := context.Background()
	f := newEnrollmentFixture()
	f.enrollments.On("List", ctx, orgID, sequenceID, entity.EnrollmentPaused, 200, 20).Return([]entity.Enrollment{{ID: "e1"}}, 41, nil)

	out, err := f.uc.List(ctx, testProfile(entity.RoleMember), sequenceID, ListEnrollmentsInput{Status: "paused", Limit: 1000, Offset: 20})

	require.NoError(t, err)
	assert.Equal(t, 200, out.Limit)
	assert.Equal(t, 41, out.Total)
	assert.Len(t, out.Enrollments, 1)
}

func TestListEnrollmentsDefaults(t *testing.T) {
	ctx := context.Background()
	f := newEnrollmentFixture()
	f.enrollments.On("List", ctx, orgID, sequenceID, entity.EnrollmentStatus(""), 50, 0).Return(nil, 0, nil)

	out, err := f.uc.List(ctx, testProfile(entity.RoleMember), sequenceID, ListEnrollmentsInput{})

	require.NoError(t, err)
	assert.Equal(t, 50, out.Limit)
	assert.NotNil(t, out.Enrollments)
}

func TestListEnrollmentsRejectsUnknownStatus(t *testing.T) {
	f := newEnrollmentFixture()

	_, err := f.uc.List(context.Background(), testProfile(entity.RoleMember), sequenceID, ListEnrollmentsInput{Status: "deleted"})

	var verrs ValidationErrors
	assert.ErrorAs(t, err, &verrs)
}

func TestBulkActionPause(t *testing.T) {
	ctx := context.Background()
	f := newEnrollmentFixture()
	ids := []string{recordID, recordID2}
	f.enrollments.On("ApplyAction", ctx, orgID, sequenceID, ids, entity.ActionPause, f.now).Return(int64(2), nil)

	out, err := f.uc.BulkAction(ctx, testProfile(entity.RoleMember), sequenceID, BulkEnrollmentInput{EnrollmentIDs: append(ids, recordID), Action: "pause"})

	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Updated)
}

func TestBulkActionRejectsUnknownAction(t *testing.T) {
	f := newEnrollmentFixture()

	_, err := f.uc.BulkAction(context.Background(), testProfile(entity.RoleMember), sequenceID, BulkEnrollmentInput{EnrollmentIDs: []string{recordID}, Action: "delete"})

	assert.ErrorIs(t, err, ErrInvalidAction)
}
