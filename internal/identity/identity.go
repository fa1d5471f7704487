package identity

import "context"

// Session is the minimal identity the core consumes from the external auth
// collaborator.
type Session struct {
	UserID   string
	Username string
}

// Profile is the persistent cross-session record kept by the external
// persistence collaborator.
type Profile struct {
	ID         string
	Username   string
	Wins       int
	Losses     int
	TotalScore int
}

// LeaderboardEntry is one row of the global standings.
type LeaderboardEntry struct {
	Username   string
	Wins       int
	TotalScore int
}

// AuthProvider is the external authentication port. Implementations come
// from outside the core; nothing here reaches for ambient singletons.
type AuthProvider interface {
	GetSession(ctx context.Context) (*Session, error)
	OnAuthStateChange(fn func(*Session))
}

// ProfileStore is the external persistence port for player profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	UpsertProfile(ctx context.Context, profile Profile) error
}

// StaticProvider serves a fixed session, used for local play where no real
// auth backend is wired.
type StaticProvider struct {
	Session Session
}

func (p *StaticProvider) GetSession(ctx context.Context) (*Session, error) {
	if p.Session.UserID == "" {
		return nil, nil
	}
	s := p.Session
	return &s, nil
}

func (p *StaticProvider) OnAuthStateChange(fn func(*Session)) {}

var _ AuthProvider = (*StaticProvider)(nil)
