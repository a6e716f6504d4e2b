package user

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/caretrack/go-caretrack/internal/auth"
	"github.com/caretrack/go-caretrack/internal/domain/errs"
	"github.com/caretrack/go-caretrack/internal/domain/patient"
)

type fakeUserRepo struct {
	byEmail map[string]*User
	byID    map[string]*User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: map[string]*User{}, byID: map[string]*User{}}
}

func (f *fakeUserRepo) Create(_ context.Context, u *User) error {
	f.byEmail[u.Email] = u
	f.byID[u.ID] = u
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) EmailExists(_ context.Context, email string) (bool, error) {
	_, ok := f.byEmail[email]
	return ok, nil
}

type fakeProfiles struct {
	patients map[string]*patient.Patient // keyed by user id
	doctors  map[string]*patient.Doctor
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{patients: map[string]*patient.Patient{}, doctors: map[string]*patient.Doctor{}}
}

func (f *fakeProfiles) CreatePatient(_ context.Context, p *patient.Patient) error {
	f.patients[p.UserID] = p
	return nil
}

func (f *fakeProfiles) CreateDoctor(_ context.Context, d *patient.Doctor) error {
	f.doctors[d.UserID] = d
	return nil
}

func (f *fakeProfiles) GetPatientByUserID(_ context.Context, userID string) (*patient.Patient, error) {
	p, ok := f.patients[userID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return p, nil
}

func (f *fakeProfiles) GetDoctorByUserID(_ context.Context, userID string) (*patient.Doctor, error) {
	d, ok := f.doctors[userID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return d, nil
}

type fakeIssuer struct{}

func (fakeIssuer) Issue(actor auth.Actor) (string, error) {
	return "token-" + actor.UserID, nil
}

func newTestService() (*Service, *fakeUserRepo, *fakeProfiles) {
	repo := newFakeUserRepo()
	profiles := newFakeProfiles()
	svc := NewService(repo, profiles, fakeIssuer{}, zap.NewNop())
	// MinCost keeps the hashing in tests fast.
	svc.hashCost = bcrypt.MinCost
	return svc, repo, profiles
}

func validRegister() RegisterInput {
	return RegisterInput{
		Email:     "ana@example.com",
		Password:  "correct horse",
		Role:      auth.RolePatient,
		FirstName: "Ana",
		LastName:  "Silva",
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService()

	cases := map[string]struct {
		mutate func(*RegisterInput)
		field  string
	}{
		"bad email":      {func(in *RegisterInput) { in.Email = "not-an-email" }, "email"},
		"short password": {func(in *RegisterInput) { in.Password = "short" }, "password"},
		"admin role":     {func(in *RegisterInput) { in.Role = auth.RoleAdmin }, "role"},
		"unknown role":   {func(in *RegisterInput) { in.Role = "superuser" }, "role"},
		"missing name":   {func(in *RegisterInput) { in.FirstName = "" }, "name"},
	}
	for name, c := range cases {
		in := validRegister()
		c.mutate(&in)
		_, err := svc.Register(context.Background(), in)
		var verr *errs.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s: got %v, want validation error", name, err)
			continue
		}
		if verr.Field != c.field {
			t.Errorf("%s: field = %s, want %s", name, verr.Field, c.field)
		}
	}
}

func TestRegisterPatient(t *testing.T) {
	svc, repo, profiles := newTestService()

	sess, err := svc.Register(context.Background(), validRegister())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if sess.Token == "" || sess.Role != auth.RolePatient {
		t.Errorf("session = %+v", sess)
	}

	u := repo.byEmail["ana@example.com"]
	if u == nil {
		t.Fatal("account not persisted")
	}
	if u.PasswordHash == "correct horse" {
		t.Error("password stored in the clear")
	}
	p := profiles.patients[u.ID]
	if p == nil || p.ID != sess.ProfileID {
		t.Errorf("patient profile = %+v, session profile id = %s", p, sess.ProfileID)
	}
}

func TestRegisterNormalizesEmail(t *testing.T) {
	svc, repo, _ := newTestService()

	in := validRegister()
	in.Email = "  Ana@Example.COM "
	if _, err := svc.Register(context.Background(), in); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if repo.byEmail["ana@example.com"] == nil {
		t.Error("email not lowercased and trimmed before storage")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.Register(context.Background(), validRegister()); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	_, err := svc.Register(context.Background(), validRegister())
	if !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("got %v, want conflict", err)
	}
}

func TestRegisterDoctor(t *testing.T) {
	svc, _, profiles := newTestService()

	in := validRegister()
	in.Email = "dr@example.com"
	in.Role = auth.RoleDoctor
	in.Specialty = "cardiology"
	sess, err := svc.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	d := profiles.doctors[sess.UserID]
	if d == nil || d.Specialty != "cardiology" {
		t.Errorf("doctor profile = %+v", d)
	}
}

func TestLogin(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.Register(context.Background(), validRegister()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	sess, err := svc.Login(context.Background(), "ANA@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.Token == "" || sess.ProfileID == "" {
		t.Errorf("session = %+v", sess)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	svc, repo, _ := newTestService()
	if _, err := svc.Register(context.Background(), validRegister()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Unknown email and wrong password come back as the same error.
	if _, err := svc.Login(context.Background(), "nobody@example.com", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: got %v", err)
	}
	if _, err := svc.Login(context.Background(), "ana@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v", err)
	}

	repo.byEmail["ana@example.com"].IsActive = false
	if _, err := svc.Login(context.Background(), "ana@example.com", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("deactivated account: got %v", err)
	}
}

func TestMe(t *testing.T) {
	svc, _, _ := newTestService()
	sess, err := svc.Register(context.Background(), validRegister())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	u, profile, err := svc.Me(context.Background(), auth.Actor{
		UserID: sess.UserID, ProfileID: sess.ProfileID, Role: sess.Role,
	})
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if u.Email != "ana@example.com" {
		t.Errorf("email = %s", u.Email)
	}
	p, ok := profile.(*patient.Patient)
	if !ok || p.ID != sess.ProfileID {
		t.Errorf("profile = %#v", profile)
	}
}
