package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mediconsult/mediconsult/internal/platform/apperr"
	"github.com/mediconsult/mediconsult/internal/platform/auth"
)

// DoctorLookup resolves doctor accounts. identity.Service satisfies it.
type DoctorLookup interface {
	IsDoctor(ctx context.Context, id primitive.ObjectID) (bool, error)
}

type Service struct {
	consultations Repository
	reports       LabReportRepository
	doctors       DoctorLookup
	logger        zerolog.Logger
	now           func() time.Time
}

func NewService(consultations Repository, reports LabReportRepository, doctors DoctorLookup, logger zerolog.Logger) *Service {
	return &Service{
		consultations: consultations,
		reports:       reports,
		doctors:       doctors,
		logger:        logger.With().Str("component", "consultation").Logger(),
		now:           time.Now,
	}
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// CreateConsultation opens a pending consultation from the acting patient
// to a doctor.
func (s *Service) CreateConsultation(ctx context.Context, actor auth.Identity, req CreateRequest) (primitive.ObjectID, error) {
	if !actor.Is(auth.RolePatient) {
		return primitive.NilObjectID, fmt.Errorf("%w: only patients can request consultations", apperr.ErrForbidden)
	}
	symptoms := strings.TrimSpace(req.Symptoms)
	if symptoms == "" {
		return primitive.NilObjectID, apperr.Validation("symptoms are required")
	}
	if req.DoctorID.IsZero() {
		return primitive.NilObjectID, apperr.Validation("doctor_id is required")
	}

	ok, err := s.doctors.IsDoctor(ctx, req.DoctorID)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if !ok {
		return primitive.NilObjectID, apperr.NotFound("doctor")
	}

	now := s.timestamp()
	c := &Consultation{
		PatientID:      actor.UserID,
		DoctorID:       req.DoctorID,
		Symptoms:       symptoms,
		MedicalHistory: cleanList(req.MedicalHistory),
		Allergies:      cleanList(req.Allergies),
		Status:         StatusPending,
		LabRequests:    []string{},
		LabReportIDs:   []primitive.ObjectID{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.consultations.Create(ctx, c); err != nil {
		return primitive.NilObjectID, err
	}

	s.logger.Info().
		Str("consultation_id", c.ID.Hex()).
		Str("patient_id", c.PatientID.Hex()).
		Str("doctor_id", c.DoctorID.Hex()).
		Msg("consultation requested")
	return c.ID, nil
}

// CreateFollowUp opens a new pending consultation with the same doctor,
// carrying over history and allergies. The original is left untouched.
func (s *Service) CreateFollowUp(ctx context.Context, actor auth.Identity, originalID primitive.ObjectID, newSymptoms string) (primitive.ObjectID, error) {
	original, err := s.consultations.GetByID(ctx, originalID)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if !actor.Is(auth.RolePatient) || original.PatientID != actor.UserID {
		return primitive.NilObjectID, fmt.Errorf("%w: not your consultation", apperr.ErrForbidden)
	}
	newSymptoms = strings.TrimSpace(newSymptoms)
	if newSymptoms == "" {
		return primitive.NilObjectID, apperr.Validation("new symptoms are required")
	}

	now := s.timestamp()
	origID := original.ID
	c := &Consultation{
		PatientID:      original.PatientID,
		DoctorID:       original.DoctorID,
		Symptoms:       FollowUpSymptoms(original.Symptoms, newSymptoms),
		MedicalHistory: append([]string{}, original.MedicalHistory...),
		Allergies:      append([]string{}, original.Allergies...),
		Status:         StatusPending,
		LabRequests:    []string{},
		LabReportIDs:   []primitive.ObjectID{},
		FollowUpOf:     &origID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.consultations.Create(ctx, c); err != nil {
		return primitive.NilObjectID, err
	}

	s.logger.Info().
		Str("consultation_id", c.ID.Hex()).
		Str("follow_up_of", origID.Hex()).
		Msg("follow-up requested")
	return c.ID, nil
}

// Respond records the assigned doctor's answer and advances the status. The
// write is conditional on the status read here, so two concurrent responses
// cannot both apply.
func (s *Service) Respond(ctx context.Context, actor auth.Identity, id primitive.ObjectID, req RespondRequest) error {
	c, err := s.consultations.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Is(auth.RoleDoctor) || c.DoctorID != actor.UserID {
		return fmt.Errorf("%w: consultation is assigned to another doctor", apperr.ErrForbidden)
	}
	if !req.Status.Valid() {
		return apperr.Validation("unknown status %q", req.Status)
	}
	if !CanTransition(c.Status, req.Status) {
		return fmt.Errorf("%w: %s to %s", apperr.ErrInvalidTransition, c.Status, req.Status)
	}

	set := map[string]interface{}{
		"diagnosis":          strings.TrimSpace(req.Diagnosis),
		"prescription":       strings.TrimSpace(req.Prescription),
		"consultation_notes": strings.TrimSpace(req.Notes),
		"status":             string(req.Status),
		"updated_at":         s.timestamp(),
	}
	if labs := cleanList(req.LabRequests); len(labs) > 0 {
		set["lab_requests"] = labs
	}

	if err := s.consultations.UpdateIfStatus(ctx, id, c.Status, set); err != nil {
		if errors.Is(err, apperr.ErrInvalidTransition) {
			s.logger.Warn().Str("consultation_id", id.Hex()).Msg("concurrent response lost the race")
		}
		return err
	}

	s.logger.Info().
		Str("consultation_id", id.Hex()).
		Str("from", string(c.Status)).
		Str("to", string(req.Status)).
		Msg("consultation updated")
	return nil
}

// ListByPatient returns the patient's consultations, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientID primitive.ObjectID) ([]*Consultation, error) {
	return s.consultations.List(ctx, Filter{PatientID: patientID})
}

// ListByDoctor returns the doctor's consultations, newest first, optionally
// restricted to one status.
func (s *Service) ListByDoctor(ctx context.Context, doctorID primitive.ObjectID, status Status) ([]*Consultation, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.Validation("unknown status %q", status)
	}
	return s.consultations.List(ctx, Filter{DoctorID: doctorID, Status: status})
}

// Get returns a consultation visible to actor: its patient, its doctor, or
// an admin.
func (s *Service) Get(ctx context.Context, actor auth.Identity, id primitive.ObjectID) (*Consultation, error) {
	c, err := s.consultations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, c) {
		return nil, fmt.Errorf("%w: not a participant", apperr.ErrForbidden)
	}
	return c, nil
}

func canView(actor auth.Identity, c *Consultation) bool {
	switch actor.Role {
	case auth.RoleAdmin:
		return true
	case auth.RolePatient:
		return c.PatientID == actor.UserID
	case auth.RoleDoctor:
		return c.DoctorID == actor.UserID
	}
	return false
}

// AttachLabReport stores a report against a consultation and links it. Only
// the consultation's patient or doctor may attach.
func (s *Service) AttachLabReport(ctx context.Context, actor auth.Identity, consultationID primitive.ObjectID, req LabReportRequest) (*LabReport, error) {
	c, err := s.consultations.GetByID(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	if actor.Is(auth.RoleAdmin) || !canView(actor, c) {
		return nil, fmt.Errorf("%w: not a participant", apperr.ErrForbidden)
	}
	reportType := strings.TrimSpace(req.ReportType)
	if reportType == "" {
		return nil, apperr.Validation("report_type is required")
	}

	now := s.timestamp()
	lr := &LabReport{
		ConsultationID: c.ID,
		PatientID:      c.PatientID,
		DoctorID:       c.DoctorID,
		ReportType:     reportType,
		ReportData:     strings.TrimSpace(req.ReportData),
		FilePath:       strings.TrimSpace(req.FilePath),
		Notes:          strings.TrimSpace(req.Notes),
		UploadedBy:     actor.UserID,
		CreatedAt:      now,
	}
	if err := s.reports.Create(ctx, lr); err != nil {
		return nil, err
	}
	if err := s.consultations.AppendLabReport(ctx, c.ID, lr.ID, now); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("consultation_id", c.ID.Hex()).
		Str("lab_report_id", lr.ID.Hex()).
		Str("uploaded_by", actor.UserID.Hex()).
		Msg("lab report attached")
	return lr, nil
}

// ListLabReports returns the reports of a consultation visible to actor,
// oldest first.
func (s *Service) ListLabReports(ctx context.Context, actor auth.Identity, consultationID primitive.ObjectID) ([]*LabReport, error) {
	if _, err := s.Get(ctx, actor, consultationID); err != nil {
		return nil, err
	}
	return s.reports.ListByConsultation(ctx, consultationID)
}

// Count returns the number of consultations in the system.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.consultations.Count(ctx, Filter{})
}

// CountByStatus counts consultations per status, for one doctor or for
// everyone when doctorID is zero. Every status is present in the result.
func (s *Service) CountByStatus(ctx context.Context, doctorID primitive.ObjectID) (map[Status]int, error) {
	counts := make(map[Status]int, len(Statuses))
	for _, st := range Statuses {
		n, err := s.consultations.Count(ctx, Filter{DoctorID: doctorID, Status: st})
		if err != nil {
			return nil, err
		}
		counts[st] = n
	}
	return counts, nil
}
