package repository

import (
	"time"

	"github.com/soratobu/ctf-arena-api/internal/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(user *models.User) error

	// FindByID finds a user by ID
	FindByID(id uint64) (*models.User, error)

	// FindByUsername finds a user by username
	FindByUsername(username string) (*models.User, error)

	// FindByEmail finds a user by email
	FindByEmail(email string) (*models.User, error)

	// TopByPoints lists users ordered by points descending, earlier last
	// solve winning ties
	TopByPoints(limit int) ([]models.User, error)
}

// ChallengeFilter holds filtering options for listing challenges
type ChallengeFilter struct {
	Status   *models.ChallengeStatus
	Category string
	Page     int
	PageSize int
}

// ChallengeRepository defines the interface for challenge catalog access
type ChallengeRepository interface {
	// Create creates a new challenge
	Create(challenge *models.Challenge) error

	// FindByID finds a challenge by ID
	FindByID(id uint64) (*models.Challenge, error)

	// List retrieves challenges with filtering and pagination
	List(filter ChallengeFilter) ([]models.Challenge, int64, error)

	// Update updates a challenge
	Update(challenge *models.Challenge) error

	// SetStatus flips a challenge between active and inactive
	SetStatus(id uint64, status models.ChallengeStatus) error
}

// AbsorbMemberParams describes a member joining a team together with the
// team-solve rows their personal history may contribute.
type AbsorbMemberParams struct {
	Team       *models.Team
	Member     *models.TeamMember
	Candidates []models.TeamSolve
	// DeletePending requires a pending join request to exist and removes it
	// within the same transaction.
	DeletePending bool
}

// AbsorbMemberResult reports what a join actually added to the team.
type AbsorbMemberResult struct {
	NewSolves   int
	PointsAdded uint
}

// TeamRepository defines the interface for team and membership data access
type TeamRepository interface {
	// FindByID finds a team by ID
	FindByID(id uint64) (*models.Team, error)

	// FindByNameKey finds a team by its lowercased name
	FindByNameKey(nameKey string) (*models.Team, error)

	// FindByInviteCode finds a private team by invite code
	FindByInviteCode(code string) (*models.Team, error)

	// FindByMember finds the team a user belongs to
	FindByMember(userID uint64) (*models.Team, error)

	// FindMember finds a specific team member
	FindMember(teamID, userID uint64) (*models.TeamMember, error)

	// FindMembershipByUser finds a user's membership in any team
	FindMembershipByUser(userID uint64) (*models.TeamMember, error)

	// ListMembers lists all members of a team
	ListMembers(teamID uint64) ([]models.TeamMember, error)

	// CountMembers counts the team roster, leader included
	CountMembers(teamID uint64) (int64, error)

	// CreateWithSeed creates a team, its leader membership, and the
	// team-solve rows seeded from the leader's history atomically
	CreateWithSeed(team *models.Team, leader *models.TeamMember, seeds []models.TeamSolve) error

	// AbsorbMember adds a member and credits the team with the member's
	// prior solves it does not already hold, atomically
	AbsorbMember(params AbsorbMemberParams) (*AbsorbMemberResult, error)

	// RemoveMember removes a member; a team left with no members is
	// deleted together with its pending requests and solve credits
	RemoveMember(teamID, userID uint64) error

	// Update updates team fields that are not scoring aggregates
	Update(team *models.Team) error

	// CreateJoinRequest records a pending join request
	CreateJoinRequest(request *models.JoinRequest) error

	// FindJoinRequest finds a pending join request
	FindJoinRequest(teamID, userID uint64) (*models.JoinRequest, error)

	// ListJoinRequests lists a team's pending join requests
	ListJoinRequests(teamID uint64) ([]models.JoinRequest, error)

	// DeleteJoinRequest removes a pending join request
	DeleteJoinRequest(teamID, userID uint64) error

	// HasPendingRequest reports whether the user has a pending request
	// with any team
	HasPendingRequest(userID uint64) (bool, error)

	// TopByPoints lists teams ordered by points descending, earlier last
	// solve winning ties
	TopByPoints(limit int) ([]models.Team, error)
}

// RecordSolveParams describes one verified flag submission to append to the
// ledger.
type RecordSolveParams struct {
	UserID      uint64
	ChallengeID uint64
	TeamID      *uint64
	Points      uint
	SubmittedAt time.Time
}

// RecordSolveResult reports the appended ledger entry and whether this
// submission won the team its credit for the challenge.
type RecordSolveResult struct {
	Solve          models.Solve
	FirstTeamSolve bool
}

// SolveRepository defines the interface for the append-only solve ledger
type SolveRepository interface {
	// Record appends a ledger entry and applies the user, team, and
	// challenge aggregate updates in one transaction
	Record(params RecordSolveParams) (*RecordSolveResult, error)

	// HasSolved reports whether the user already has a ledger entry for
	// the challenge
	HasSolved(userID, challengeID uint64) (bool, error)

	// ListByUser lists a user's ledger entries
	ListByUser(userID uint64) ([]models.Solve, error)

	// ListByTeam lists ledger entries attributed to a team
	ListByTeam(teamID uint64) ([]models.Solve, error)

	// ListRecent lists the newest ledger entries with challenge and user
	// preloaded, for the live solve feed
	ListRecent(limit int) ([]models.Solve, error)

	// ListTeamSolves lists the challenges a team holds credit for
	ListTeamSolves(teamID uint64) ([]models.TeamSolve, error)
}
