package services

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackbirdcodelabs/jnanagni-backend/models"
	"github.com/blackbirdcodelabs/jnanagni-backend/storage"
)

type fakeUploader struct {
	uploads map[string][]byte
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{uploads: make(map[string][]byte)}
}

func (f *fakeUploader) Upload(_ context.Context, key, _ string, reader io.Reader) (*storage.UploadResult, error) {
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	f.uploads[key] = body
	return &storage.UploadResult{Key: key, Location: "https://cdn.example.com/" + key}, nil
}

func (f *fakeUploader) Delete(_ context.Context, key string) error {
	delete(f.uploads, key)
	return nil
}

func (f *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

func certTestRegistration(reg int, user int) *models.Registration {
	teamName := "Team Test"
	return &models.Registration{
		ID:           reg,
		EventID:      1,
		RegisteredBy: user,
		TeamName:     &teamName,
		Status:       models.RegistrationActive,
	}
}

func TestUpsertOnAttendanceCreatesThenAdvances(t *testing.T) {
	certs := newFakeCertificateRepo()
	svc := NewCertificateService(certs, nil, discardLogger())
	ctx := context.Background()
	reg := certTestRegistration(10, 7)
	prelims := &models.Round{ID: 1, Name: "Prelims", SequenceNumber: 1}
	finals := &models.Round{ID: 2, Name: "Finals", SequenceNumber: 2}

	cert, err := svc.UpsertOnAttendance(ctx, reg, 7, prelims)
	require.NoError(t, err)
	assert.Equal(t, models.CertificateParticipation, cert.Type)
	assert.Equal(t, "Prelims", cert.RoundReached)
	assert.True(t, strings.HasPrefix(cert.CertificateID, "JGN26-CERT-"))
	require.NotNil(t, cert.TeamName)
	assert.Equal(t, "Team Test", *cert.TeamName)

	cert, err = svc.UpsertOnAttendance(ctx, reg, 7, finals)
	require.NoError(t, err)
	assert.Equal(t, "Finals", cert.RoundReached)
	assert.Equal(t, 2, cert.RoundReachedSeq)

	// Re-scanning an earlier round keeps the high-water mark.
	cert, err = svc.UpsertOnAttendance(ctx, reg, 7, prelims)
	require.NoError(t, err)
	assert.Equal(t, "Finals", cert.RoundReached)
	assert.Equal(t, 2, cert.RoundReachedSeq)

	stored, err := certs.FindByMember(ctx, 10, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.RoundReachedSeq)
}

func TestMarkWinnerUpgradesExistingCertificate(t *testing.T) {
	certs := newFakeCertificateRepo()
	svc := NewCertificateService(certs, nil, discardLogger())
	ctx := context.Background()
	reg := certTestRegistration(10, 7)
	finals := &models.Round{ID: 2, Name: "Finals", SequenceNumber: 2}

	_, err := svc.UpsertOnAttendance(ctx, reg, 7, finals)
	require.NoError(t, err)

	require.NoError(t, svc.MarkWinner(ctx, reg, 7, finals, 2))

	cert, err := certs.FindByMember(ctx, 10, 7)
	require.NoError(t, err)
	assert.Equal(t, models.CertificateWinner, cert.Type)
	assert.True(t, cert.IsWinner)
	require.NotNil(t, cert.WinnerRank)
	assert.Equal(t, 2, *cert.WinnerRank)
}

func TestMarkWinnerCreatesMissingCertificate(t *testing.T) {
	certs := newFakeCertificateRepo()
	svc := NewCertificateService(certs, nil, discardLogger())
	ctx := context.Background()
	reg := certTestRegistration(10, 7)
	finals := &models.Round{ID: 2, Name: "Finals", SequenceNumber: 2}

	// The member was never scanned; the winner upgrade must still land.
	require.NoError(t, svc.MarkWinner(ctx, reg, 7, finals, 1))

	cert, err := certs.FindByMember(ctx, 10, 7)
	require.NoError(t, err)
	assert.True(t, cert.IsWinner)
	assert.Equal(t, "Finals", cert.RoundReached)
}

func TestGetByCertificateID(t *testing.T) {
	certs := newFakeCertificateRepo()
	svc := NewCertificateService(certs, nil, discardLogger())
	ctx := context.Background()
	reg := certTestRegistration(10, 7)
	round := &models.Round{ID: 1, Name: "Prelims", SequenceNumber: 1}

	created, err := svc.UpsertOnAttendance(ctx, reg, 7, round)
	require.NoError(t, err)

	got, err := svc.GetByCertificateID(ctx, "  "+created.CertificateID+"  ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.GetByCertificateID(ctx, "JGN26-CERT-MISSING")
	assert.ErrorIs(t, err, ErrCertificateNotFound)
}

func TestAttachFile(t *testing.T) {
	certs := newFakeCertificateRepo()
	uploader := newFakeUploader()
	svc := NewCertificateService(certs, uploader, discardLogger())
	ctx := context.Background()
	reg := certTestRegistration(10, 7)
	round := &models.Round{ID: 1, Name: "Prelims", SequenceNumber: 1}

	created, err := svc.UpsertOnAttendance(ctx, reg, 7, round)
	require.NoError(t, err)

	cert, err := svc.AttachFile(ctx, created.CertificateID, "application/pdf", strings.NewReader("%PDF-1.7"))
	require.NoError(t, err)
	assert.True(t, cert.IsGenerated)
	require.NotNil(t, cert.FileKey)
	require.NotNil(t, cert.FileURL)
	assert.Contains(t, *cert.FileURL, strings.ToLower(created.CertificateID))
	assert.Contains(t, uploader.uploads, *cert.FileKey)

	// Lookups after attachment expose the public URL.
	got, err := svc.GetByCertificateID(ctx, created.CertificateID)
	require.NoError(t, err)
	require.NotNil(t, got.FileURL)
}

func TestListByUser(t *testing.T) {
	certs := newFakeCertificateRepo()
	svc := NewCertificateService(certs, nil, discardLogger())
	ctx := context.Background()
	round := &models.Round{ID: 1, Name: "Prelims", SequenceNumber: 1}

	_, err := svc.UpsertOnAttendance(ctx, certTestRegistration(10, 7), 7, round)
	require.NoError(t, err)
	_, err = svc.UpsertOnAttendance(ctx, certTestRegistration(11, 7), 7, round)
	require.NoError(t, err)
	_, err = svc.UpsertOnAttendance(ctx, certTestRegistration(12, 8), 8, round)
	require.NoError(t, err)

	mine, err := svc.ListByUser(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}
