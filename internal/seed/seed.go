// Package seed creates the accounts a fresh deployment needs: one admin and,
// optionally, a pair of sample doctors.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mediconsult/mediconsult/internal/domain/identity"
	"github.com/mediconsult/mediconsult/internal/platform/apperr"
	"github.com/mediconsult/mediconsult/internal/platform/auth"
)

// Directory is the subset of identity.Service used for seeding.
type Directory interface {
	GetByEmail(ctx context.Context, email string) (*identity.User, error)
	Register(ctx context.Context, req identity.RegisterRequest) (primitive.ObjectID, error)
}

type Config struct {
	AdminEmail    string
	AdminPassword string
	SampleDoctors bool
}

const (
	adminName  = "System Administrator"
	adminPhone = "+1234567890"

	sampleDoctorPassword = "doctor123"
)

// SampleDoctors are created when Config.SampleDoctors is set.
var SampleDoctors = []identity.RegisterRequest{
	{
		Name:     "Dr. Sarah Wilson",
		Email:    "cardio@mediconsult.com",
		Password: sampleDoctorPassword,
		Role:     auth.RoleDoctor,
		Phone:    "+1234567891",
		Doctor: &identity.DoctorExtraFields{
			Specialization:  "Cardiologist",
			Qualifications:  "MD Cardiology, 10 years experience",
			ConsultationFee: 100,
			AvailableHours:  "Mon-Fri 9AM-5PM",
		},
	},
	{
		Name:     "Dr. Michael Chen",
		Email:    "derma@mediconsult.com",
		Password: sampleDoctorPassword,
		Role:     auth.RoleDoctor,
		Phone:    "+1234567892",
		Doctor: &identity.DoctorExtraFields{
			Specialization:  "Dermatologist",
			Qualifications:  "MD Dermatology, Skin specialist",
			ConsultationFee: 80,
			AvailableHours:  "Mon-Wed-Fri 10AM-6PM",
		},
	},
}

// Result reports which accounts were created by a run.
type Result struct {
	Created []string
	Skipped []string
}

// EnsureSeedData creates the seed accounts that do not exist yet. Running it
// again, or concurrently from another instance, creates nothing new.
func EnsureSeedData(ctx context.Context, dir Directory, cfg Config, logger zerolog.Logger) (*Result, error) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil, fmt.Errorf("seed: admin email and password are required")
	}

	reqs := []identity.RegisterRequest{{
		Name:     adminName,
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
		Role:     auth.RoleAdmin,
		Phone:    adminPhone,
	}}
	if cfg.SampleDoctors {
		reqs = append(reqs, SampleDoctors...)
	}

	res := &Result{}
	for _, req := range reqs {
		created, err := ensureUser(ctx, dir, req)
		if err != nil {
			return res, fmt.Errorf("seed %s: %w", req.Email, err)
		}
		if created {
			res.Created = append(res.Created, req.Email)
			logger.Info().Str("email", req.Email).Str("role", string(req.Role)).Msg("seeded user")
		} else {
			res.Skipped = append(res.Skipped, req.Email)
		}
	}
	return res, nil
}

func ensureUser(ctx context.Context, dir Directory, req identity.RegisterRequest) (bool, error) {
	if _, err := dir.GetByEmail(ctx, req.Email); err == nil {
		return false, nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return false, err
	}

	if _, err := dir.Register(ctx, req); err != nil {
		if errors.Is(err, apperr.ErrDuplicateEmail) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
