package user

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/caretrack/go-caretrack/internal/auth"
	"github.com/caretrack/go-caretrack/internal/domain/errs"
	"github.com/caretrack/go-caretrack/internal/domain/patient"
)

// ErrInvalidCredentials is returned for a bad email or password. Login
// never reveals which of the two was wrong.
var ErrInvalidCredentials = errs.ErrAccessDenied

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ProfileStore creates and resolves the role profile behind an account.
type ProfileStore interface {
	CreatePatient(ctx context.Context, p *patient.Patient) error
	CreateDoctor(ctx context.Context, d *patient.Doctor) error
	GetPatientByUserID(ctx context.Context, userID string) (*patient.Patient, error)
	GetDoctorByUserID(ctx context.Context, userID string) (*patient.Doctor, error)
}

// Service handles account lifecycle and authentication.
type Service struct {
	repo     Repository
	profiles ProfileStore
	issuer   auth.TokenIssuer
	logger   *zap.Logger
	now      func() time.Time

	// hashCost is the bcrypt work factor.
	hashCost int
}

func NewService(repo Repository, profiles ProfileStore, issuer auth.TokenIssuer, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		profiles: profiles,
		issuer:   issuer,
		logger:   logger,
		now:      time.Now,
		hashCost: bcrypt.DefaultCost,
	}
}

// RegisterInput carries a new account plus its profile seed.
type RegisterInput struct {
	Email     string
	Password  string
	Role      auth.Role
	FirstName string
	LastName  string
	Specialty string
}

// Session is the result of a successful registration or login.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ProfileID string    `json:"profile_id"`
	Role      auth.Role `json:"role"`
}

// Register creates the account and its role profile, then issues a
// token so the client is signed in immediately.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if !emailRe.MatchString(email) {
		return nil, errs.Validation("email", "must be a valid email address")
	}
	if len(in.Password) < 8 {
		return nil, errs.Validation("password", "must be at least 8 characters")
	}
	if !in.Role.Valid() || in.Role == auth.RoleAdmin {
		return nil, errs.Validation("role", "must be patient or doctor")
	}
	if in.FirstName == "" || in.LastName == "" {
		return nil, errs.Validation("name", "first and last name are required")
	}

	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errs.ErrConflict
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         in.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	profileID := uuid.NewString()
	switch in.Role {
	case auth.RolePatient:
		err = s.profiles.CreatePatient(ctx, &patient.Patient{
			ID: profileID, UserID: u.ID,
			FirstName: in.FirstName, LastName: in.LastName,
			CreatedAt: now, UpdatedAt: now,
		})
	case auth.RoleDoctor:
		err = s.profiles.CreateDoctor(ctx, &patient.Doctor{
			ID: profileID, UserID: u.ID,
			FirstName: in.FirstName, LastName: in.LastName,
			Specialty: in.Specialty,
			CreatedAt: now, UpdatedAt: now,
		})
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return s.session(u, profileID)
}

// Login verifies credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	profileID, err := s.profileID(ctx, u)
	if err != nil {
		return nil, err
	}
	return s.session(u, profileID)
}

// Me resolves the account and profile behind an authenticated actor.
func (s *Service) Me(ctx context.Context, actor auth.Actor) (*User, interface{}, error) {
	u, err := s.repo.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, nil, err
	}
	switch u.Role {
	case auth.RolePatient:
		p, err := s.profiles.GetPatientByUserID(ctx, u.ID)
		if err != nil {
			return nil, nil, err
		}
		return u, p, nil
	case auth.RoleDoctor:
		d, err := s.profiles.GetDoctorByUserID(ctx, u.ID)
		if err != nil {
			return nil, nil, err
		}
		return u, d, nil
	}
	return u, nil, nil
}

func (s *Service) profileID(ctx context.Context, u *User) (string, error) {
	switch u.Role {
	case auth.RolePatient:
		p, err := s.profiles.GetPatientByUserID(ctx, u.ID)
		if err != nil {
			return "", err
		}
		return p.ID, nil
	case auth.RoleDoctor:
		d, err := s.profiles.GetDoctorByUserID(ctx, u.ID)
		if err != nil {
			return "", err
		}
		return d.ID, nil
	}
	return "", nil
}

func (s *Service) session(u *User, profileID string) (*Session, error) {
	token, err := s.issuer.Issue(auth.Actor{
		UserID:    u.ID,
		ProfileID: profileID,
		Role:      u.Role,
	})
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:     token,
		UserID:    u.ID,
		ProfileID: profileID,
		Role:      u.Role,
	}, nil
}
