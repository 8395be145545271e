package identity

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
	"github.com/mediconsult/mediconsult/internal/platform/credential"
)

type Service struct {
	users  UserRepository
	hasher *credential.Hasher
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(users UserRepository, hasher *credential.Hasher, logger zerolog.Logger) *Service {
	return &Service{
		users:  users,
		hasher: hasher,
		logger: logger.With().Str("component", "identity").Logger(),
		now:    time.Now,
	}
}

// Register creates a user after validating the request. Email uniqueness is
// checked once up front and enforced again by the store's unique index.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (primitive.ObjectID, error) {
	u, err := s.buildUser(req)
	if err != nil {
		return primitive.NilObjectID, err
	}

	if _, err := s.users.GetByEmail(ctx, u.Email); err == nil {
		return primitive.NilObjectID, apperr.ErrDuplicateEmail
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return primitive.NilObjectID, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return primitive.NilObjectID, err
	}
	u.PasswordHash = hash

	if err := s.users.Create(ctx, u); err != nil {
		return primitive.NilObjectID, err
	}

	s.logger.Info().Str("user_id", u.ID.Hex()).Str("role", string(u.Role)).Msg("user registered")
	return u.ID, nil
}

func (s *Service) buildUser(req RegisterRequest) (*User, error) {
	name := strings.TrimSpace(req.Name)
	email := NormalizeEmail(req.Email)
	switch {
	case name == "":
		return nil, apperr.Validation("name is required")
	case email == "" || !strings.Contains(email, "@"):
		return nil, apperr.Validation("a valid email is required")
	case req.Password == "":
		return nil, apperr.Validation("password is required")
	case len(req.Password) > credential.MaxPasswordBytes:
		return nil, apperr.Validation("password must be at most %d bytes", credential.MaxPasswordBytes)
	case !req.Role.Valid():
		return nil, apperr.Validation("role must be patient, doctor or admin")
	}

	u := &User{
		Name:      name,
		Email:     email,
		Role:      req.Role,
		Phone:     strings.TrimSpace(req.Phone),
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}

	switch req.Role {
	case auth.RoleDoctor:
		if req.Doctor == nil {
			return nil, apperr.Validation("doctor details are required")
		}
		if err := req.Doctor.Validate(); err != nil {
			return nil, err
		}
		available := true
		u.Specialization = req.Doctor.Specialization
		u.Qualifications = strings.TrimSpace(req.Doctor.Qualifications)
		u.ConsultationFee = req.Doctor.ConsultationFee
		u.AvailableHours = strings.TrimSpace(req.Doctor.AvailableHours)
		u.IsAvailable = &available
	case auth.RolePatient:
		if req.Patient != nil {
			if err := req.Patient.Validate(); err != nil {
				return nil, err
			}
			u.Age = req.Patient.Age
			u.Gender = req.Patient.Gender
			u.Allergies = req.Patient.Allergies
			u.MedicalHistory = req.Patient.MedicalHistory
		}
	}
	return u, nil
}

// Authenticate verifies an email/password pair. When expectedRole is set the
// user must also hold that role. Every failure, including a corrupt stored
// hash, is reported as ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string, expectedRole auth.Role) (*User, error) {
	u, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := s.hasher.Verify(password, u.PasswordHash)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", u.ID.Hex()).Msg("stored password hash is malformed")
		return nil, apperr.ErrInvalidCredentials
	}
	if !ok {
		return nil, apperr.ErrInvalidCredentials
	}
	if expectedRole != "" && u.Role != expectedRole {
		return nil, apperr.ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) GetByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.users.GetByEmail(ctx, NormalizeEmail(email))
}

// IsDoctor reports whether id names an existing doctor account.
func (s *Service) IsDoctor(ctx context.Context, id primitive.ObjectID) (bool, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return u.Role == auth.RoleDoctor, nil
}

// ListDoctors returns doctors in insertion order, optionally restricted to
// one specialization.
func (s *Service) ListDoctors(ctx context.Context, specialization string) ([]*User, error) {
	specialization = strings.TrimSpace(specialization)
	if specialization != "" && !IsSpecialization(specialization) {
		return nil, apperr.Validation("unknown specialization %q", specialization)
	}
	return s.users.List(ctx, UserFilter{Role: auth.RoleDoctor, Specialization: specialization}, 0, 0)
}

// ListUsers returns one page of users of the given role (all roles when
// empty) together with the total count.
func (s *Service) ListUsers(ctx context.Context, role auth.Role, limit, offset int) ([]*User, int, error) {
	if role != "" && !role.Valid() {
		return nil, 0, apperr.Validation("unknown role %q", role)
	}
	f := UserFilter{Role: role}
	total, err := s.users.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	users, err := s.users.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// CountUsers counts users of role, or all users when role is empty.
func (s *Service) CountUsers(ctx context.Context, role auth.Role) (int, error) {
	return s.users.Count(ctx, UserFilter{Role: role})
}

// ChangePassword replaces the actor's password after verifying the old one.
func (s *Service) ChangePassword(ctx context.Context, actor auth.Identity, oldPassword, newPassword string) error {
	if newPassword == "" {
		return apperr.Validation("new password is required")
	}
	u, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return err
	}
	ok, err := s.hasher.Verify(oldPassword, u.PasswordHash)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", u.ID.Hex()).Msg("stored password hash is malformed")
		return apperr.ErrInvalidCredentials
	}
	if !ok {
		return apperr.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.SetPasswordHash(ctx, u.ID, hash); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", u.ID.Hex()).Msg("password changed")
	return nil
}

// SetAvailability toggles whether a doctor accepts new consultations.
func (s *Service) SetAvailability(ctx context.Context, actor auth.Identity, available bool) error {
	if !actor.Is(auth.RoleDoctor) {
		return fmt.Errorf("%w: only doctors have availability", apperr.ErrForbidden)
	}
	return s.users.SetAvailability(ctx, actor.UserID, available)
}
