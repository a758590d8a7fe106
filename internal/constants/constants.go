package constants

// Context keys shared between middleware and handlers.
const (
	ContextKeyUserID = "user_id"
)

// Session settings.
const (
	SessionCookieName = "ctf_session"
)

// Authentication rules.
const (
	MinPasswordLength = 8
)

// Team rules.
const (
	// MaxTeamSize bounds a team roster, leader included.
	MaxTeamSize = 4

	InviteCodeLength = 12
)

// Pagination defaults.
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Leaderboard defaults.
const (
	DefaultLeaderboardLimit = 20
	DefaultSolveFeedLimit   = 20
)
