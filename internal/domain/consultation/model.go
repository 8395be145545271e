package consultation

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status is the consultation lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Statuses in lifecycle order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

func (s Status) rank() int {
	for i, st := range Statuses {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return s.rank() >= 0 }

// CanTransition reports whether a consultation may move from one status to
// another. Status only ever moves forward, and never stays put.
func CanTransition(from, to Status) bool {
	return from.Valid() && to.Valid() && to.rank() > from.rank()
}

// Consultation is one request-response exchange between a patient and a
// doctor.
type Consultation struct {
	ID                primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	PatientID         primitive.ObjectID   `bson:"patient_id" json:"patient_id"`
	DoctorID          primitive.ObjectID   `bson:"doctor_id" json:"doctor_id"`
	Symptoms          string               `bson:"symptoms" json:"symptoms"`
	MedicalHistory    []string             `bson:"medical_history" json:"medical_history"`
	Allergies         []string             `bson:"allergies" json:"allergies"`
	Status            Status               `bson:"status" json:"status"`
	Diagnosis         string               `bson:"diagnosis" json:"diagnosis,omitempty"`
	Prescription      string               `bson:"prescription" json:"prescription,omitempty"`
	LabRequests       []string             `bson:"lab_requests" json:"lab_requests"`
	ConsultationNotes string               `bson:"consultation_notes" json:"consultation_notes,omitempty"`
	LabReportIDs      []primitive.ObjectID `bson:"lab_report_ids" json:"lab_report_ids"`
	FollowUpOf        *primitive.ObjectID  `bson:"follow_up_of,omitempty" json:"follow_up_of,omitempty"`
	CreatedAt         time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time            `bson:"updated_at" json:"updated_at"`
}

// LabReport is an immutable result attached to a consultation.
type LabReport struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConsultationID primitive.ObjectID `bson:"consultation_id" json:"consultation_id"`
	PatientID      primitive.ObjectID `bson:"patient_id" json:"patient_id"`
	DoctorID       primitive.ObjectID `bson:"doctor_id" json:"doctor_id"`
	ReportType     string             `bson:"report_type" json:"report_type"`
	ReportData     string             `bson:"report_data" json:"report_data"`
	FilePath       string             `bson:"file_path,omitempty" json:"file_path,omitempty"`
	Notes          string             `bson:"notes,omitempty" json:"notes,omitempty"`
	UploadedBy     primitive.ObjectID `bson:"uploaded_by" json:"uploaded_by"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

type CreateRequest struct {
	DoctorID       primitive.ObjectID
	Symptoms       string
	MedicalHistory []string
	Allergies      []string
}

// RespondRequest is a doctor's answer. LabRequests replaces the stored list
// only when non-empty.
type RespondRequest struct {
	Diagnosis    string
	Prescription string
	LabRequests  []string
	Notes        string
	Status       Status
}

type LabReportRequest struct {
	ReportType string
	ReportData string
	FilePath   string
	Notes      string
}

// ParseList splits free text into one entry per non-blank line. Commas are
// kept inside entries, so "diabetes, type 2" stays one item.
func ParseList(text string) []string {
	out := []string{}
	for _, line := range strings.Split(text, "\n") {
		if item := strings.TrimSpace(line); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// FollowUpSymptoms combines the original complaint with the new one.
func FollowUpSymptoms(original, update string) string {
	return "Follow-up: " + original + "\nNew: " + update
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := strings.TrimSpace(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}
