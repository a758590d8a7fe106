package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soratobu/ctf-arena-api/internal/constants"
	"github.com/soratobu/ctf-arena-api/internal/models"
	"github.com/soratobu/ctf-arena-api/internal/repository"
	"github.com/soratobu/ctf-arena-api/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrTeamNotFound        = errors.New("team not found")
	ErrInvalidTeamName     = errors.New("team name cannot be empty")
	ErrTeamNameTaken       = errors.New("team name already exists")
	ErrAlreadyInTeam       = errors.New("user already belongs to a team")
	ErrAlreadyRequested    = errors.New("user already has a pending join request")
	ErrTeamFull            = errors.New("team is full")
	ErrNoPendingRequest    = errors.New("no pending join request for this user")
	ErrNotTeamMember       = errors.New("user is not a member of this team")
	ErrNotTeamLeader       = errors.New("only the team leader can perform this action")
	ErrCannotRemoveLeader  = errors.New("the team leader cannot be removed")
	ErrLeaderCannotLeave   = errors.New("the leader cannot leave while the team has other members")
	ErrTeamNotPublic       = errors.New("team does not accept join requests")
	ErrInvalidInviteCode   = errors.New("invalid invite code")
	ErrInviteCodeForbidden = errors.New("public teams do not use invite codes")
)

// A stale team version means a roster or solved-set change committed between
// loading the team and admitting the member. The admission reloads the team,
// recomputes its absorption candidates, and tries again a bounded number of
// times.
const (
	admitMaxAttempts  = 3
	admitRetryBackoff = 25 * time.Millisecond
)

// TeamService owns team formation and the re-attribution rules that keep
// team aggregates consistent with member history as rosters change.
type TeamService struct {
	userRepo  repository.UserRepository
	teamRepo  repository.TeamRepository
	solveRepo repository.SolveRepository
	notifier  Notifier
}

// NewTeamService creates a new TeamService.
func NewTeamService(
	userRepo repository.UserRepository,
	teamRepo repository.TeamRepository,
	solveRepo repository.SolveRepository,
	notifier Notifier,
) *TeamService {
	return &TeamService{
		userRepo:  userRepo,
		teamRepo:  teamRepo,
		solveRepo: solveRepo,
		notifier:  notifier,
	}
}

// CreateTeamInput represents parameters to create a team.
type CreateTeamInput struct {
	LeaderID uint64
	Name     string
	IsPublic bool
}

// CreateTeam creates a team with the given user as leader and sole member.
// The team's solved-set and point total are seeded from the leader's own
// ledger entries at their recorded point values, a one-time import with no
// new ledger rows. Private teams get an invite code; public teams use the
// request/approve flow instead.
func (s *TeamService) CreateTeam(input CreateTeamInput) (*models.Team, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrInvalidTeamName
	}

	leader, err := s.userRepo.FindByID(input.LeaderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := s.ensureFreeAgent(leader.ID); err != nil {
		return nil, err
	}

	nameKey := strings.ToLower(name)
	if _, err := s.teamRepo.FindByNameKey(nameKey); err == nil {
		return nil, ErrTeamNameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check team name: %w", err)
	}

	inviteCode := ""
	if !input.IsPublic {
		inviteCode, err = utils.GenerateInviteCode(constants.InviteCodeLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate invite code: %w", err)
		}
	}

	history, err := s.solveRepo.ListByUser(leader.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load leader history: %w", err)
	}

	team := &models.Team{
		Name:       name,
		NameKey:    nameKey,
		LeaderID:   leader.ID,
		IsPublic:   input.IsPublic,
		InviteCode: inviteCode,
	}

	seeds := make([]models.TeamSolve, 0, len(history))
	for _, solve := range history {
		solve := solve
		seeds = append(seeds, models.TeamSolve{
			ChallengeID: solve.ChallengeID,
			Points:      solve.Points,
			SolvedBy:    &solve.UserID,
			CreatedAt:   solve.CreatedAt,
		})
		team.Points += solve.Points
		team.SolveCount++
		if team.LastSolveAt == nil || solve.CreatedAt.After(*team.LastSolveAt) {
			at := solve.CreatedAt
			team.LastSolveAt = &at
		}
	}

	member := &models.TeamMember{
		UserID:   leader.ID,
		Role:     models.TeamRoleLeader,
		JoinedAt: time.Now(),
	}

	if err := s.teamRepo.CreateWithSeed(team, member, seeds); err != nil {
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return nil, ErrTeamNameTaken
		case errors.Is(err, repository.ErrMemberConflict):
			return nil, ErrAlreadyInTeam
		default:
			return nil, fmt.Errorf("failed to create team: %w", err)
		}
	}

	s.notifier.Publish(EventTeamCreated, map[string]interface{}{
		"team_id":   team.ID,
		"name":      team.Name,
		"leader_id": leader.ID,
		"is_public": team.IsPublic,
	})

	return team, nil
}

// RequestJoin records a join request with a public team. Capacity is only
// advisory here; the binding check happens when the request is accepted.
func (s *TeamService) RequestJoin(teamID, userID uint64) error {
	team, err := s.findTeam(teamID)
	if err != nil {
		return err
	}
	if !team.IsPublic {
		return ErrTeamNotPublic
	}

	if err := s.ensureFreeAgent(userID); err != nil {
		return err
	}

	count, err := s.teamRepo.CountMembers(team.ID)
	if err != nil {
		return fmt.Errorf("failed to count members: %w", err)
	}
	if count >= constants.MaxTeamSize {
		return ErrTeamFull
	}

	request := &models.JoinRequest{
		TeamID: team.ID,
		UserID: userID,
	}
	if err := s.teamRepo.CreateJoinRequest(request); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAlreadyRequested
		}
		return fmt.Errorf("failed to create join request: %w", err)
	}
	return nil
}

// JoinResult reports what a join added to the team.
type JoinResult struct {
	Team *models.Team
	// NewSolves counts challenges absorbed into the team's solved-set from
	// the joining member's history.
	NewSolves int
	// PointsAdded is the sum of the recorded point values of those newly
	// absorbed challenges. The joining user's raw point total is never
	// added as a second addend, so joining is idempotent with respect to
	// re-joins.
	PointsAdded int
}

// AcceptJoinRequest admits a pending requester. Any current member may
// accept. Challenges the joining user solved before joining, and which the
// team has not been credited for, are retroactively absorbed into the team's
// solved-set and point total at their ledger-recorded values.
func (s *TeamService) AcceptJoinRequest(teamID, joiningUserID, actorID uint64) (*JoinResult, error) {
	team, err := s.findTeam(teamID)
	if err != nil {
		return nil, err
	}

	if _, err := s.teamRepo.FindMember(team.ID, actorID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotTeamMember
		}
		return nil, fmt.Errorf("failed to check actor membership: %w", err)
	}

	if _, err := s.teamRepo.FindJoinRequest(team.ID, joiningUserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoPendingRequest
		}
		return nil, fmt.Errorf("failed to find join request: %w", err)
	}

	return s.admitMember(team, joiningUserID, true)
}

// RejectJoinRequest discards a pending join request. Any current member may
// reject.
func (s *TeamService) RejectJoinRequest(teamID, requesterID, actorID uint64) error {
	team, err := s.findTeam(teamID)
	if err != nil {
		return err
	}

	if _, err := s.teamRepo.FindMember(team.ID, actorID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotTeamMember
		}
		return fmt.Errorf("failed to check actor membership: %w", err)
	}

	if err := s.teamRepo.DeleteJoinRequest(team.ID, requesterID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoPendingRequest
		}
		return fmt.Errorf("failed to delete join request: %w", err)
	}
	return nil
}

// JoinByInviteCode admits a user to a private team directly, with the same
// absorption rules as an accepted request.
func (s *TeamService) JoinByInviteCode(userID uint64, code string) (*JoinResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidInviteCode
	}

	team, err := s.teamRepo.FindByInviteCode(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidInviteCode
		}
		return nil, fmt.Errorf("failed to find team by invite code: %w", err)
	}

	if err := s.ensureFreeAgent(userID); err != nil {
		return nil, err
	}

	return s.admitMember(team, userID, false)
}

// admitMember runs the shared admission path: build the absorption
// candidates from the joining user's ledger history, then hand the atomic
// roster-and-aggregate change to the repository. A stale team version is
// retried against the reloaded team.
func (s *TeamService) admitMember(team *models.Team, userID uint64, consumeRequest bool) (*JoinResult, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	history, err := s.solveRepo.ListByUser(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user history: %w", err)
	}

	var absorbed *repository.AbsorbMemberResult
	for attempt := 1; ; attempt++ {
		held, err := s.solveRepo.ListTeamSolves(team.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load team solves: %w", err)
		}
		heldSet := make(map[uint64]struct{}, len(held))
		for _, ts := range held {
			heldSet[ts.ChallengeID] = struct{}{}
		}

		now := time.Now()
		candidates := make([]models.TeamSolve, 0, len(history))
		for _, solve := range history {
			if _, ok := heldSet[solve.ChallengeID]; ok {
				continue
			}
			// SolvedBy stays nil: absorbed credit, not a live team solve.
			candidates = append(candidates, models.TeamSolve{
				TeamID:      team.ID,
				ChallengeID: solve.ChallengeID,
				Points:      solve.Points,
				CreatedAt:   now,
			})
		}

		member := &models.TeamMember{
			TeamID:   team.ID,
			UserID:   user.ID,
			Role:     models.TeamRoleMember,
			JoinedAt: now,
		}

		absorbed, err = s.teamRepo.AbsorbMember(repository.AbsorbMemberParams{
			Team:          team,
			Member:        member,
			Candidates:    candidates,
			DeletePending: consumeRequest,
		})
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrTeamStale) && attempt < admitMaxAttempts {
			time.Sleep(admitRetryBackoff * time.Duration(attempt))
			team, err = s.teamRepo.FindByID(team.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to reload team: %w", err)
			}
			continue
		}
		switch {
		case errors.Is(err, repository.ErrTeamCapacity):
			return nil, ErrTeamFull
		case errors.Is(err, repository.ErrRequestMissing):
			return nil, ErrNoPendingRequest
		case errors.Is(err, repository.ErrMemberConflict):
			return nil, ErrAlreadyInTeam
		default:
			return nil, fmt.Errorf("failed to admit member: %w", err)
		}
	}

	updated, err := s.teamRepo.FindByID(team.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload team: %w", err)
	}

	s.notifier.Publish(EventTeamMemberJoined, map[string]interface{}{
		"team_id":      updated.ID,
		"team_name":    updated.Name,
		"user_id":      user.ID,
		"username":     user.Username,
		"new_solves":   absorbed.NewSolves,
		"points_added": absorbed.PointsAdded,
	})

	return &JoinResult{
		Team:        updated,
		NewSolves:   absorbed.NewSolves,
		PointsAdded: int(absorbed.PointsAdded),
	}, nil
}

// LeaveTeam removes the caller from their team. The departing member's
// contributed points and solve credits stay with the team: team achievement
// is immutable history, a policy decision rather than an oversight. A leader
// may only leave as the last member, which deletes the team.
func (s *TeamService) LeaveTeam(userID uint64) error {
	membership, err := s.teamRepo.FindMembershipByUser(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotTeamMember
		}
		return fmt.Errorf("failed to find membership: %w", err)
	}

	if membership.Role == models.TeamRoleLeader {
		count, err := s.teamRepo.CountMembers(membership.TeamID)
		if err != nil {
			return fmt.Errorf("failed to count members: %w", err)
		}
		if count > 1 {
			return ErrLeaderCannotLeave
		}
	}

	if err := s.teamRepo.RemoveMember(membership.TeamID, userID); err != nil {
		return fmt.Errorf("failed to leave team: %w", err)
	}

	s.notifier.Publish(EventTeamMemberLeft, map[string]interface{}{
		"team_id": membership.TeamID,
		"user_id": userID,
		"action":  "leave",
	})
	return nil
}

// RemoveMember expels a member. Only the leader may do this, and the leader
// cannot be the target. Team credit is sticky, as with LeaveTeam.
func (s *TeamService) RemoveMember(teamID, targetID, actorID uint64) error {
	team, err := s.findTeam(teamID)
	if err != nil {
		return err
	}

	actor, err := s.teamRepo.FindMember(team.ID, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotTeamMember
		}
		return fmt.Errorf("failed to check actor membership: %w", err)
	}
	if actor.Role != models.TeamRoleLeader {
		return ErrNotTeamLeader
	}
	if targetID == team.LeaderID {
		return ErrCannotRemoveLeader
	}

	if err := s.teamRepo.RemoveMember(team.ID, targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotTeamMember
		}
		return fmt.Errorf("failed to remove member: %w", err)
	}

	s.notifier.Publish(EventTeamMemberLeft, map[string]interface{}{
		"team_id": team.ID,
		"user_id": targetID,
		"action":  "remove",
	})
	return nil
}

// RegenerateInviteCode rotates a private team's invite code. Leader only.
func (s *TeamService) RegenerateInviteCode(teamID, actorID uint64) (*models.Team, error) {
	team, err := s.findTeam(teamID)
	if err != nil {
		return nil, err
	}
	if team.LeaderID != actorID {
		return nil, ErrNotTeamLeader
	}
	if team.IsPublic {
		return nil, ErrInviteCodeForbidden
	}

	code, err := utils.GenerateInviteCode(constants.InviteCodeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate invite code: %w", err)
	}

	team.InviteCode = code
	if err := s.teamRepo.Update(team); err != nil {
		return nil, fmt.Errorf("failed to update invite code: %w", err)
	}
	return team, nil
}

// GetTeamWithMembers returns a team and its roster.
func (s *TeamService) GetTeamWithMembers(teamID uint64) (*models.Team, []models.TeamMember, error) {
	team, err := s.findTeam(teamID)
	if err != nil {
		return nil, nil, err
	}

	members, err := s.teamRepo.ListMembers(team.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list members: %w", err)
	}
	return team, members, nil
}

// ListJoinRequests returns a team's pending requests, visible to members
// only.
func (s *TeamService) ListJoinRequests(teamID, actorID uint64) ([]models.JoinRequest, error) {
	team, err := s.findTeam(teamID)
	if err != nil {
		return nil, err
	}

	if _, err := s.teamRepo.FindMember(team.ID, actorID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotTeamMember
		}
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}

	requests, err := s.teamRepo.ListJoinRequests(team.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list join requests: %w", err)
	}
	return requests, nil
}

// TeamForUser returns the team a user belongs to, or ErrNotTeamMember.
func (s *TeamService) TeamForUser(userID uint64) (*models.Team, error) {
	team, err := s.teamRepo.FindByMember(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotTeamMember
		}
		return nil, fmt.Errorf("failed to find team: %w", err)
	}
	return team, nil
}

func (s *TeamService) findTeam(teamID uint64) (*models.Team, error) {
	team, err := s.teamRepo.FindByID(teamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to find team: %w", err)
	}
	return team, nil
}

// ensureFreeAgent fails unless the user has no membership and no pending
// request anywhere.
func (s *TeamService) ensureFreeAgent(userID uint64) error {
	if _, err := s.teamRepo.FindMembershipByUser(userID); err == nil {
		return ErrAlreadyInTeam
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check membership: %w", err)
	}

	pending, err := s.teamRepo.HasPendingRequest(userID)
	if err != nil {
		return fmt.Errorf("failed to check pending requests: %w", err)
	}
	if pending {
		return ErrAlreadyRequested
	}
	return nil
}
