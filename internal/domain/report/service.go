package report

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sahayak/sahayak/internal/platform/ai"
	"github.com/sahayak/sahayak/internal/platform/apperr"
	"github.com/sahayak/sahayak/internal/platform/auth"
	"github.com/sahayak/sahayak/internal/platform/blobstore"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// DocumentParser extracts structured findings from report text.
type DocumentParser interface {
	ParseDocument(ctx context.Context, text string) (*ai.DocumentAnalysis, error)
}

type Service struct {
	reports ReportRepository
	blobs   blobstore.BlobStore
	parser  DocumentParser
	log     zerolog.Logger
	now     func() time.Time
}

func NewService(reports ReportRepository, blobs blobstore.BlobStore, parser DocumentParser, logger zerolog.Logger) *Service {
	return &Service{
		reports: reports,
		blobs:   blobs,
		parser:  parser,
		log:     logger.With().Str("component", "report").Logger(),
		now:     time.Now,
	}
}

// canAccess allows the patient and their care team.
func canAccess(actor auth.Actor, patientID uuid.UUID) bool {
	return actor.IsAdmin() || actor.HasRole(auth.RoleASHA) || actor.HasRole(auth.RoleDoctor) ||
		actor.ID == patientID.String()
}

// Upload is the input to Service.Upload.
type Upload struct {
	PatientID   uuid.UUID
	FileName    string
	ContentType string
	Description *string
	Content     io.Reader
}

func blobError(err error) error {
	switch {
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return apperr.Validation("file is too large", map[string]string{"file": "must be at most 10 MB"})
	case errors.Is(err, blobstore.ErrInvalidContentType):
		return apperr.Validation("unsupported file type", map[string]string{"file": "must be pdf, png, jpeg or text"})
	case errors.Is(err, blobstore.ErrMissingKey):
		return apperr.Validation("file name is required", map[string]string{"file": "is required"})
	case errors.Is(err, blobstore.ErrBlobNotFound):
		return apperr.NotFound("report file", "")
	default:
		return apperr.Upstream("blobstore", err)
	}
}

// Upload stores the file and then its metadata. If the metadata write
// fails the stored file is removed again.
func (s *Service) Upload(ctx context.Context, actor auth.Actor, up Upload) (*Report, error) {
	if up.PatientID == uuid.Nil {
		return nil, apperr.Validation("patient_id is required", map[string]string{"patient_id": "is required"})
	}
	if strings.TrimSpace(up.FileName) == "" {
		return nil, apperr.Validation("file name is required", map[string]string{"file": "is required"})
	}
	if !canAccess(actor, up.PatientID) {
		return nil, apperr.Forbidden("cannot upload reports for another patient")
	}

	id := uuid.New()
	key := BlobKey(up.PatientID, id, up.FileName)
	obj, err := s.blobs.Put(ctx, key, up.ContentType, up.Content)
	if err != nil {
		return nil, blobError(err)
	}

	rp := &Report{
		ID:          id,
		PatientID:   up.PatientID,
		BlobKey:     obj.Key,
		URL:         obj.URL,
		FileName:    up.FileName,
		ContentType: obj.ContentType,
		Size:        obj.Size,
		Hash:        obj.Hash,
		Description: up.Description,
		UploadedBy:  actor.ID,
	}
	if err := s.reports.Create(ctx, rp); err != nil {
		if derr := s.blobs.Delete(ctx, key); derr != nil {
			s.log.Error().Err(derr).Str("blob_key", key).Msg("orphaned report blob")
		}
		return nil, err
	}
	s.log.Info().
		Str("report_id", rp.ID.String()).
		Str("patient_id", rp.PatientID.String()).
		Int64("size", rp.Size).
		Msg("report uploaded")
	return rp, nil
}

func (s *Service) List(ctx context.Context, actor auth.Actor, patientID uuid.UUID, limit int) ([]*Report, error) {
	if !canAccess(actor, patientID) {
		return nil, apperr.Forbidden("cannot view another patient's reports")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.reports.ListByPatient(ctx, patientID, limit)
}

// Recent returns the newest reports without an access check, for read
// aggregation that already authorised the caller.
func (s *Service) Recent(ctx context.Context, patientID uuid.UUID, n int) ([]*Report, error) {
	return s.reports.ListByPatient(ctx, patientID, n)
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Report, error) {
	rp, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccess(actor, rp.PatientID) {
		return nil, apperr.Forbidden("cannot view another patient's reports")
	}
	return rp, nil
}

// Open returns the stored file. The caller closes it.
func (s *Service) Open(ctx context.Context, actor auth.Actor, id uuid.UUID) (io.ReadCloser, *Report, error) {
	rp, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	body, _, err := s.blobs.Get(ctx, rp.BlobKey)
	if err != nil {
		return nil, nil, blobError(err)
	}
	return body, rp, nil
}

// Delete removes the file and then the record. Only the owning patient or
// an admin may delete.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	rp, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && actor.ID != rp.PatientID.String() {
		return apperr.Forbidden("only the owner may delete a report")
	}
	if err := s.blobs.Delete(ctx, rp.BlobKey); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
		return blobError(err)
	}
	if err := s.reports.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("report_id", id.String()).Str("actor", actor.ID).Msg("report deleted")
	return nil
}

// Analyze runs the document parser over text taken from the report and
// stores the result on it.
func (s *Service) Analyze(ctx context.Context, actor auth.Actor, id uuid.UUID, text string) (*Report, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Validation("report text is required", map[string]string{"text": "is required"})
	}
	rp, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	analysis, err := s.parser.ParseDocument(ctx, text)
	if err != nil {
		s.log.Error().Err(err).Str("report_id", id.String()).Msg("report analysis failed")
		return nil, err
	}
	parsed := &Parsed{
		Summary:         analysis.Summary,
		Recommendations: analysis.Recommendations,
		Extracted:       analysis.ExtractedData,
		AnalyzedAt:      s.now().UTC(),
	}
	if err := s.reports.SetParsed(ctx, id, parsed); err != nil {
		return nil, err
	}
	rp.Parsed = parsed
	return rp, nil
}
