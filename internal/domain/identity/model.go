package identity

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mediconsult/mediconsult/internal/platform/apperr"
	"github.com/mediconsult/mediconsult/internal/platform/auth"
)

// Specializations is the fixed list a doctor picks from at registration.
var Specializations = []string{
	"Cardiologist",
	"Dermatologist",
	"Neurologist",
	"Orthopedic",
	"Pediatrician",
	"Psychiatrist",
	"General Physician",
}

// Genders accepted on patient records.
var Genders = []string{"Male", "Female", "Other"}

// IsSpecialization reports whether s is one of Specializations.
func IsSpecialization(s string) bool {
	for _, sp := range Specializations {
		if sp == s {
			return true
		}
	}
	return false
}

// User is a record in the users collection. Doctor and patient fields are
// empty for other roles.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Role         auth.Role          `bson:"role" json:"role"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`

	// Doctor
	Specialization  string  `bson:"specialization,omitempty" json:"specialization,omitempty"`
	Qualifications  string  `bson:"qualifications,omitempty" json:"qualifications,omitempty"`
	ConsultationFee float64 `bson:"consultation_fee,omitempty" json:"consultation_fee,omitempty"`
	AvailableHours  string  `bson:"available_hours,omitempty" json:"available_hours,omitempty"`
	IsAvailable     *bool   `bson:"is_available,omitempty" json:"is_available,omitempty"`

	// Patient
	Age            int      `bson:"age,omitempty" json:"age,omitempty"`
	Gender         string   `bson:"gender,omitempty" json:"gender,omitempty"`
	Allergies      []string `bson:"allergies,omitempty" json:"allergies,omitempty"`
	MedicalHistory []string `bson:"medical_history,omitempty" json:"medical_history,omitempty"`
}

// Identity returns the acting identity for u.
func (u *User) Identity() auth.Identity {
	return auth.Identity{UserID: u.ID, Role: u.Role, Name: u.Name}
}

// DoctorExtraFields are the role-specific fields of a doctor registration.
type DoctorExtraFields struct {
	Specialization  string  `json:"specialization"`
	Qualifications  string  `json:"qualifications,omitempty"`
	ConsultationFee float64 `json:"consultation_fee,omitempty"`
	AvailableHours  string  `json:"available_hours,omitempty"`
}

func (d *DoctorExtraFields) Validate() error {
	if !IsSpecialization(d.Specialization) {
		return apperr.Validation("specialization must be one of %s", strings.Join(Specializations, ", "))
	}
	if d.ConsultationFee < 0 {
		return apperr.Validation("consultation_fee must not be negative")
	}
	return nil
}

// PatientExtraFields are the role-specific fields of a patient registration.
type PatientExtraFields struct {
	Age            int      `json:"age,omitempty"`
	Gender         string   `json:"gender,omitempty"`
	Allergies      []string `json:"allergies,omitempty"`
	MedicalHistory []string `json:"medical_history,omitempty"`
}

func (p *PatientExtraFields) Validate() error {
	if p.Age != 0 && (p.Age < 1 || p.Age > 120) {
		return apperr.Validation("age must be between 1 and 120")
	}
	if p.Gender != "" {
		ok := false
		for _, g := range Genders {
			if g == p.Gender {
				ok = true
				break
			}
		}
		if !ok {
			return apperr.Validation("gender must be one of %s", strings.Join(Genders, ", "))
		}
	}
	return nil
}

// RegisterRequest is the input of Register. Exactly the extras matching
// Role are used; Doctor is required for doctors.
type RegisterRequest struct {
	Name     string              `json:"name"`
	Email    string              `json:"email"`
	Password string              `json:"password"`
	Role     auth.Role           `json:"role"`
	Phone    string              `json:"phone,omitempty"`
	Doctor   *DoctorExtraFields  `json:"doctor,omitempty"`
	Patient  *PatientExtraFields `json:"patient,omitempty"`
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
