package consultation

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Filter selects consultations by exact field match. Zero fields are ignored.
type Filter struct {
	PatientID primitive.ObjectID
	DoctorID  primitive.ObjectID
	Status    Status
}

type Repository interface {
	Create(ctx context.Context, c *Consultation) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*Consultation, error)
	// List returns matches newest first, ties broken by id descending.
	List(ctx context.Context, f Filter) ([]*Consultation, error)
	Count(ctx context.Context, f Filter) (int, error)
	// UpdateIfStatus applies set only while the stored status still equals
	// expected. It returns apperr.ErrInvalidTransition otherwise.
	UpdateIfStatus(ctx context.Context, id primitive.ObjectID, expected Status, set map[string]interface{}) error
	AppendLabReport(ctx context.Context, id, reportID primitive.ObjectID, at time.Time) error
}

type LabReportRepository interface {
	Create(ctx context.Context, r *LabReport) error
	ListByConsultation(ctx context.Context, consultationID primitive.ObjectID) ([]*LabReport, error)
}
