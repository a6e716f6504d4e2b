package patient

import (
	"context"
	"errors"
	"testing"

	"github.com/caretrack/go-caretrack/internal/auth"
)

type fakeLinks struct {
	active map[string]bool
	err    error
}

func (f *fakeLinks) HasActiveLink(_ context.Context, doctorID, patientID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.active[doctorID+":"+patientID], nil
}

func TestGuardPatientOwnRecord(t *testing.T) {
	g := NewGuard(&fakeLinks{})
	actor := auth.Actor{Role: auth.RolePatient, ProfileID: "p1"}

	ok, err := g.CanAccess(context.Background(), actor, "p1")
	if err != nil || !ok {
		t.Fatalf("patient should reach own record: ok=%v err=%v", ok, err)
	}

	ok, err = g.CanAccess(context.Background(), actor, "p2")
	if err != nil || ok {
		t.Fatalf("patient must not reach another record: ok=%v err=%v", ok, err)
	}
}

func TestGuardDoctorLink(t *testing.T) {
	links := &fakeLinks{active: map[string]bool{"d1:p1": true}}
	g := NewGuard(links)
	actor := auth.Actor{Role: auth.RoleDoctor, ProfileID: "d1"}

	ok, err := g.CanAccess(context.Background(), actor, "p1")
	if err != nil || !ok {
		t.Fatalf("linked doctor should have access: ok=%v err=%v", ok, err)
	}

	ok, err = g.CanAccess(context.Background(), actor, "p2")
	if err != nil || ok {
		t.Fatalf("unlinked doctor must be refused: ok=%v err=%v", ok, err)
	}
}

func TestGuardDoctorLinkError(t *testing.T) {
	g := NewGuard(&fakeLinks{err: errors.New("db down")})
	actor := auth.Actor{Role: auth.RoleDoctor, ProfileID: "d1"}

	ok, err := g.CanAccess(context.Background(), actor, "p1")
	if err == nil || ok {
		t.Fatalf("link check failures must propagate: ok=%v err=%v", ok, err)
	}
}

func TestGuardOtherRolesRefused(t *testing.T) {
	g := NewGuard(&fakeLinks{active: map[string]bool{"a1:p1": true}})
	// Only the patient and doctor roles ever reach patient records, even
	// when a link row happens to match the actor's id.
	for _, role := range []auth.Role{auth.RoleAdmin, "auditor", ""} {
		ok, err := g.CanAccess(context.Background(), auth.Actor{Role: role, ProfileID: "a1"}, "p1")
		if err != nil || ok {
			t.Errorf("role %q must be refused: ok=%v err=%v", role, ok, err)
		}
	}
}

func TestComputeBMI(t *testing.T) {
	w := 80.0
	h := 180.0
	got := ComputeBMI(&w, &h)
	if got == nil {
		t.Fatal("expected a BMI value")
	}
	want := 80.0 / (1.8 * 1.8)
	if *got < want-0.001 || *got > want+0.001 {
		t.Errorf("bmi = %f, want %f", *got, want)
	}

	zero := 0.0
	cases := map[string]struct{ w, h *float64 }{
		"missing weight": {nil, &h},
		"missing height": {&w, nil},
		"zero weight":    {&zero, &h},
		"zero height":    {&w, &zero},
	}
	for name, c := range cases {
		if ComputeBMI(c.w, c.h) != nil {
			t.Errorf("%s: expected nil", name)
		}
	}
}
