package patient

import (
	"context"

	"github.com/caretrack/go-caretrack/internal/auth"
)

// LinkChecker answers whether a doctor currently has an active link to
// a patient.
type LinkChecker interface {
	HasActiveLink(ctx context.Context, doctorID, patientID string) (bool, error)
}

// Guard decides whether an actor may touch a patient's records.
// Patients reach only their own record; doctors reach patients they
// hold an active link to; everyone else is refused. Callers surface a
// refusal the same way as a missing record, so probing for valid
// patient ids reveals nothing.
type Guard struct {
	links LinkChecker
}

func NewGuard(links LinkChecker) *Guard {
	return &Guard{links: links}
}

// CanAccess reports whether the actor may read or write patientID's
// records.
func (g *Guard) CanAccess(ctx context.Context, actor auth.Actor, patientID string) (bool, error) {
	switch actor.Role {
	case auth.RolePatient:
		return actor.ProfileID == patientID, nil
	case auth.RoleDoctor:
		return g.links.HasActiveLink(ctx, actor.ProfileID, patientID)
	}
	return false, nil
}
