package dashboard

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mediconsult/mediconsult/internal/domain/consultation"
	"github.com/mediconsult/mediconsult/internal/domain/identity"
)

// DoctorCard is the public profile a patient sees when picking a doctor.
type DoctorCard struct {
	ID              primitive.ObjectID `json:"id"`
	Name            string             `json:"name"`
	Specialization  string             `json:"specialization"`
	Qualifications  string             `json:"qualifications,omitempty"`
	ConsultationFee float64            `json:"consultation_fee"`
	AvailableHours  string             `json:"available_hours,omitempty"`
	IsAvailable     bool               `json:"is_available"`
}

func newDoctorCard(u *identity.User) DoctorCard {
	return DoctorCard{
		ID:              u.ID,
		Name:            u.Name,
		Specialization:  u.Specialization,
		Qualifications:  u.Qualifications,
		ConsultationFee: u.ConsultationFee,
		AvailableHours:  u.AvailableHours,
		IsAvailable:     u.IsAvailable == nil || *u.IsAvailable,
	}
}

type PatientConsultation struct {
	*consultation.Consultation
	DoctorName           string `json:"doctor_name"`
	DoctorSpecialization string `json:"doctor_specialization"`
}

type PendingConsultation struct {
	*consultation.Consultation
	PatientName   string `json:"patient_name"`
	PatientAge    int    `json:"patient_age,omitempty"`
	PatientGender string `json:"patient_gender,omitempty"`
}

type PatientGroup struct {
	PatientID        primitive.ObjectID           `json:"patient_id"`
	PatientName      string                       `json:"patient_name"`
	PatientAge       int                          `json:"patient_age,omitempty"`
	PatientGender    string                       `json:"patient_gender,omitempty"`
	LastConsultation time.Time                    `json:"last_consultation"`
	Consultations    []*consultation.Consultation `json:"consultations"`
}

type DoctorOverview struct {
	Total         int                          `json:"total"`
	Pending       int                          `json:"pending"`
	InProgress    int                          `json:"in_progress"`
	Completed     int                          `json:"completed"`
	Consultations []*consultation.Consultation `json:"consultations"`
}

type AdminStats struct {
	TotalUsers            int                         `json:"total_users"`
	Patients              int                         `json:"patients"`
	Doctors               int                         `json:"doctors"`
	Admins                int                         `json:"admins"`
	Consultations         int                         `json:"consultations"`
	ConsultationsByStatus map[consultation.Status]int `json:"consultations_by_status"`
}

// ConsultationForm is the patient's request form. MedicalHistory and
// Allergies are free text, one entry per line.
type ConsultationForm struct {
	DoctorID       string `json:"doctor_id"`
	Symptoms       string `json:"symptoms"`
	MedicalHistory string `json:"medical_history"`
	Allergies      string `json:"allergies"`
}

type FollowUpForm struct {
	Symptoms string `json:"symptoms"`
}

// ResponseForm is the doctor's answer. LabRequests is free text, one test
// per line.
type ResponseForm struct {
	Diagnosis    string `json:"diagnosis"`
	Prescription string `json:"prescription"`
	LabRequests  string `json:"lab_requests"`
	Notes        string `json:"consultation_notes"`
	Status       string `json:"status"`
}

type LabReportForm struct {
	ReportType string `json:"report_type"`
	ReportData string `json:"report_data"`
	FilePath   string `json:"file_path"`
	Notes      string `json:"notes"`
}
