package consultation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mediconsult/mediconsult/internal/platform/apperr"
	"github.com/mediconsult/mediconsult/internal/platform/docstore"
)

const (
	ConsultationsCollection = "consultations"
	LabReportsCollection    = "lab_reports"
)

// Indexes back the patient history, doctor queue and lab report lookups.
var Indexes = []docstore.Index{
	{Collection: ConsultationsCollection, Keys: []string{"patient_id", "created_at"}},
	{Collection: ConsultationsCollection, Keys: []string{"doctor_id", "status"}},
	{Collection: LabReportsCollection, Keys: []string{"consultation_id"}},
}

var newestFirst = []docstore.SortField{
	{Field: "created_at", Desc: true},
	{Field: "_id", Desc: true},
}

func (f Filter) bson() bson.M {
	m := bson.M{}
	if !f.PatientID.IsZero() {
		m["patient_id"] = f.PatientID
	}
	if !f.DoctorID.IsZero() {
		m["doctor_id"] = f.DoctorID
	}
	if f.Status != "" {
		m["status"] = string(f.Status)
	}
	return m
}

type repoStore struct {
	store docstore.Store
}

func NewRepo(store docstore.Store) Repository {
	return &repoStore{store: store}
}

func (r *repoStore) Create(ctx context.Context, c *Consultation) error {
	id, err := r.store.Insert(ctx, ConsultationsCollection, c)
	if err != nil {
		return fmt.Errorf("insert consultation: %w", err)
	}
	c.ID = id
	return nil
}

func (r *repoStore) GetByID(ctx context.Context, id primitive.ObjectID) (*Consultation, error) {
	var c Consultation
	if err := r.store.FindOne(ctx, ConsultationsCollection, bson.M{"_id": id}, &c); err != nil {
		if errors.Is(err, docstore.ErrNoDocument) {
			return nil, apperr.NotFound("consultation")
		}
		return nil, fmt.Errorf("find consultation: %w", err)
	}
	return &c, nil
}

func (r *repoStore) List(ctx context.Context, f Filter) ([]*Consultation, error) {
	var out []*Consultation
	if err := r.store.FindMany(ctx, ConsultationsCollection, f.bson(), docstore.FindOptions{Sort: newestFirst}, &out); err != nil {
		return nil, fmt.Errorf("list consultations: %w", err)
	}
	return out, nil
}

func (r *repoStore) Count(ctx context.Context, f Filter) (int, error) {
	n, err := r.store.Count(ctx, ConsultationsCollection, f.bson())
	if err != nil {
		return 0, fmt.Errorf("count consultations: %w", err)
	}
	return int(n), nil
}

func (r *repoStore) UpdateIfStatus(ctx context.Context, id primitive.ObjectID, expected Status, set map[string]interface{}) error {
	err := r.store.UpdateByID(ctx, ConsultationsCollection, id, docstore.Update{
		Set:   bson.M(set),
		Guard: bson.M{"status": string(expected)},
	})
	if err != nil {
		if errors.Is(err, docstore.ErrNoMatch) {
			return fmt.Errorf("%w: consultation is no longer %s", apperr.ErrInvalidTransition, expected)
		}
		return fmt.Errorf("update consultation: %w", err)
	}
	return nil
}

func (r *repoStore) AppendLabReport(ctx context.Context, id, reportID primitive.ObjectID, at time.Time) error {
	err := r.store.UpdateByID(ctx, ConsultationsCollection, id, docstore.Update{
		Set:  bson.M{"updated_at": at},
		Push: bson.M{"lab_report_ids": reportID},
	})
	if err != nil {
		if errors.Is(err, docstore.ErrNoMatch) {
			return apperr.NotFound("consultation")
		}
		return fmt.Errorf("append lab report: %w", err)
	}
	return nil
}

type labReportRepoStore struct {
	store docstore.Store
}

func NewLabReportRepo(store docstore.Store) LabReportRepository {
	return &labReportRepoStore{store: store}
}

func (r *labReportRepoStore) Create(ctx context.Context, lr *LabReport) error {
	id, err := r.store.Insert(ctx, LabReportsCollection, lr)
	if err != nil {
		return fmt.Errorf("insert lab report: %w", err)
	}
	lr.ID = id
	return nil
}

func (r *labReportRepoStore) ListByConsultation(ctx context.Context, consultationID primitive.ObjectID) ([]*LabReport, error) {
	var out []*LabReport
	opts := docstore.FindOptions{Sort: []docstore.SortField{{Field: "created_at"}, {Field: "_id"}}}
	if err := r.store.FindMany(ctx, LabReportsCollection, bson.M{"consultation_id": consultationID}, opts, &out); err != nil {
		return nil, fmt.Errorf("list lab reports: %w", err)
	}
	return out, nil
}
