package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mediconsult/mediconsult/internal/domain/consultation"
	"github.com/mediconsult/mediconsult/internal/domain/identity"
	"github.com/mediconsult/mediconsult/internal/platform/apperr"
	"github.com/mediconsult/mediconsult/internal/platform/auth"
)

const (
	UnknownDoctor  = "Unknown Doctor"
	UnknownPatient = "Unknown Patient"
	notAvailable   = "N/A"
)

// Service composes the user directory and the consultation service into
// the per-role dashboard views. It holds no state of its own.
type Service struct {
	users         *identity.Service
	consultations *consultation.Service
	logger        zerolog.Logger
}

func NewService(users *identity.Service, consultations *consultation.Service, logger zerolog.Logger) *Service {
	return &Service{
		users:         users,
		consultations: consultations,
		logger:        logger.With().Str("component", "dashboard").Logger(),
	}
}

// userCache resolves user references once per view. Missing users are
// remembered as nil.
type userCache struct {
	users *identity.Service
	seen  map[primitive.ObjectID]*identity.User
}

func (s *Service) newUserCache() *userCache {
	return &userCache{users: s.users, seen: make(map[primitive.ObjectID]*identity.User)}
}

func (uc *userCache) get(ctx context.Context, id primitive.ObjectID) (*identity.User, error) {
	if u, ok := uc.seen[id]; ok {
		return u, nil
	}
	u, err := uc.users.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		u = nil
	}
	uc.seen[id] = u
	return u, nil
}

func requireRole(actor auth.Identity, role auth.Role) error {
	if !actor.Is(role) {
		return fmt.Errorf("%w: requires %s role", apperr.ErrForbidden, role)
	}
	return nil
}

// -- Patient --

// FindDoctors lists doctors for the patient to choose from, optionally
// restricted to one specialization.
func (s *Service) FindDoctors(ctx context.Context, actor auth.Identity, specialization string) ([]DoctorCard, error) {
	if err := requireRole(actor, auth.RolePatient); err != nil {
		return nil, err
	}
	doctors, err := s.users.ListDoctors(ctx, specialization)
	if err != nil {
		return nil, err
	}
	cards := make([]DoctorCard, 0, len(doctors))
	for _, d := range doctors {
		cards = append(cards, newDoctorCard(d))
	}
	return cards, nil
}

// NewConsultation submits the patient's consultation form.
func (s *Service) NewConsultation(ctx context.Context, actor auth.Identity, form ConsultationForm) (primitive.ObjectID, error) {
	doctorID, err := primitive.ObjectIDFromHex(form.DoctorID)
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("doctor_id is not a valid id")
	}
	return s.consultations.CreateConsultation(ctx, actor, consultation.CreateRequest{
		DoctorID:       doctorID,
		Symptoms:       form.Symptoms,
		MedicalHistory: consultation.ParseList(form.MedicalHistory),
		Allergies:      consultation.ParseList(form.Allergies),
	})
}

// Reconsult opens a follow-up of one of the patient's consultations.
func (s *Service) Reconsult(ctx context.Context, actor auth.Identity, originalID primitive.ObjectID, newSymptoms string) (primitive.ObjectID, error) {
	return s.consultations.CreateFollowUp(ctx, actor, originalID, newSymptoms)
}

// History returns the patient's consultations newest first, each with the
// doctor resolved.
func (s *Service) History(ctx context.Context, actor auth.Identity) ([]PatientConsultation, error) {
	if err := requireRole(actor, auth.RolePatient); err != nil {
		return nil, err
	}
	list, err := s.consultations.ListByPatient(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	cache := s.newUserCache()
	out := make([]PatientConsultation, 0, len(list))
	for _, c := range list {
		d, err := cache.get(ctx, c.DoctorID)
		if err != nil {
			return nil, err
		}
		view := PatientConsultation{Consultation: c, DoctorName: UnknownDoctor, DoctorSpecialization: notAvailable}
		if d != nil {
			view.DoctorName = d.Name
			view.DoctorSpecialization = d.Specialization
		}
		out = append(out, view)
	}
	return out, nil
}

// AttachLabReport stores a lab report against a consultation the actor
// takes part in.
func (s *Service) AttachLabReport(ctx context.Context, actor auth.Identity, consultationID primitive.ObjectID, form LabReportForm) (*consultation.LabReport, error) {
	return s.consultations.AttachLabReport(ctx, actor, consultationID, consultation.LabReportRequest{
		ReportType: form.ReportType,
		ReportData: form.ReportData,
		FilePath:   form.FilePath,
		Notes:      form.Notes,
	})
}

// -- Doctor --

// PendingQueue returns the doctor's pending consultations newest first,
// each with the patient's name, age and gender.
func (s *Service) PendingQueue(ctx context.Context, actor auth.Identity) ([]PendingConsultation, error) {
	if err := requireRole(actor, auth.RoleDoctor); err != nil {
		return nil, err
	}
	list, err := s.consultations.ListByDoctor(ctx, actor.UserID, consultation.StatusPending)
	if err != nil {
		return nil, err
	}

	cache := s.newUserCache()
	out := make([]PendingConsultation, 0, len(list))
	for _, c := range list {
		p, err := cache.get(ctx, c.PatientID)
		if err != nil {
			return nil, err
		}
		view := PendingConsultation{Consultation: c, PatientName: UnknownPatient}
		if p != nil {
			view.PatientName = p.Name
			view.PatientAge = p.Age
			view.PatientGender = p.Gender
		}
		out = append(out, view)
	}
	return out, nil
}

// Respond submits the doctor's response form.
func (s *Service) Respond(ctx context.Context, actor auth.Identity, id primitive.ObjectID, form ResponseForm) error {
	return s.consultations.Respond(ctx, actor, id, consultation.RespondRequest{
		Diagnosis:    form.Diagnosis,
		Prescription: form.Prescription,
		LabRequests:  consultation.ParseList(form.LabRequests),
		Notes:        form.Notes,
		Status:       consultation.Status(form.Status),
	})
}

// PatientHistory groups the doctor's consultations by patient. Groups are
// ordered by their most recent consultation, and so are the consultations
// inside each group.
func (s *Service) PatientHistory(ctx context.Context, actor auth.Identity) ([]PatientGroup, error) {
	if err := requireRole(actor, auth.RoleDoctor); err != nil {
		return nil, err
	}
	list, err := s.consultations.ListByDoctor(ctx, actor.UserID, "")
	if err != nil {
		return nil, err
	}

	cache := s.newUserCache()
	index := make(map[primitive.ObjectID]int)
	groups := []PatientGroup{}
	for _, c := range list {
		i, ok := index[c.PatientID]
		if !ok {
			p, err := cache.get(ctx, c.PatientID)
			if err != nil {
				return nil, err
			}
			g := PatientGroup{PatientID: c.PatientID, PatientName: UnknownPatient, LastConsultation: c.CreatedAt}
			if p != nil {
				g.PatientName = p.Name
				g.PatientAge = p.Age
				g.PatientGender = p.Gender
			}
			i = len(groups)
			index[c.PatientID] = i
			groups = append(groups, g)
		}
		groups[i].Consultations = append(groups[i].Consultations, c)
	}
	return groups, nil
}

// Overview returns the doctor's consultation counts and the full list,
// newest first.
func (s *Service) Overview(ctx context.Context, actor auth.Identity) (*DoctorOverview, error) {
	if err := requireRole(actor, auth.RoleDoctor); err != nil {
		return nil, err
	}
	list, err := s.consultations.ListByDoctor(ctx, actor.UserID, "")
	if err != nil {
		return nil, err
	}

	ov := &DoctorOverview{Consultations: list}
	if ov.Consultations == nil {
		ov.Consultations = []*consultation.Consultation{}
	}
	for _, c := range list {
		ov.Total++
		switch c.Status {
		case consultation.StatusPending:
			ov.Pending++
		case consultation.StatusInProgress:
			ov.InProgress++
		case consultation.StatusCompleted:
			ov.Completed++
		}
	}
	return ov, nil
}

// -- Admin --

// Stats returns system-wide user and consultation counts.
func (s *Service) Stats(ctx context.Context, actor auth.Identity) (*AdminStats, error) {
	if err := requireRole(actor, auth.RoleAdmin); err != nil {
		return nil, err
	}

	st := &AdminStats{}
	counts := []struct {
		role auth.Role
		dst  *int
	}{
		{"", &st.TotalUsers},
		{auth.RolePatient, &st.Patients},
		{auth.RoleDoctor, &st.Doctors},
		{auth.RoleAdmin, &st.Admins},
	}
	for _, c := range counts {
		n, err := s.users.CountUsers(ctx, c.role)
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}

	total, err := s.consultations.Count(ctx)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.consultations.CountByStatus(ctx, primitive.NilObjectID)
	if err != nil {
		return nil, err
	}
	st.Consultations = total
	st.ConsultationsByStatus = byStatus
	return st, nil
}

// Users returns one page of users, optionally of a single role.
func (s *Service) Users(ctx context.Context, actor auth.Identity, role auth.Role, limit, offset int) ([]*identity.User, int, error) {
	if err := requireRole(actor, auth.RoleAdmin); err != nil {
		return nil, 0, err
	}
	users, total, err := s.users.ListUsers(ctx, role, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if users == nil {
		users = []*identity.User{}
	}
	return users, total, nil
}
