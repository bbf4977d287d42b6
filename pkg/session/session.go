package session

import (
	"github.com/tenantgate/tenantgate/pkg/apiclient"
)

// State is the session lifecycle state.
type State int

const (
	// StateUnauthenticated means no usable session exists.
	StateUnauthenticated State = iota
	// StateLoading means a profile refresh is in flight. Guards must not
	// issue redirect decisions while loading.
	StateLoading
	// StateAuthenticated means the principal is known and tokens are held.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Principal is the authenticated identity.
type Principal struct {
	ID          int64
	DisplayName string
	Email       string
	Role        string
	// Company is the principal's own tenant slug, from the profile. It
	// outlives the stored slug, which a bad link can clear.
	Company string
}

func principalFromUser(u *apiclient.User) *Principal {
	if u == nil {
		return nil
	}
	return &Principal{
		ID:          u.ID,
		DisplayName: u.DisplayName(),
		Email:       u.Email,
		Role:        u.Role,
		Company:     u.Company,
	}
}

// Session is a read-only snapshot of the session state.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         *Principal
	State        State
}

// Authenticated reports whether the snapshot holds a usable identity.
func (s Session) Authenticated() bool {
	return s.State == StateAuthenticated && s.User != nil
}
