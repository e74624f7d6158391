package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stake-plus/council-gov/src/council"
	"github.com/stake-plus/council-gov/src/types"
	"gorm.io/gorm"
)

// MySQL is the gorm-backed ProposalStore.
type MySQL struct {
	db *gorm.DB
}

func NewMySQL(db *gorm.DB) *MySQL {
	return &MySQL{db: db}
}

func (s *MySQL) CreateProposal(ctx context.Context, p council.CreateParams) (*types.Proposal, error) {
	if p.Amount == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", council.ErrValidation)
	}
	members := dedupe(p.Electorate)
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: electorate is empty", council.ErrValidation)
	}

	prop := types.Proposal{
		ID:            uuid.NewString(),
		GuildID:       p.GuildID,
		ProposerID:    p.ProposerID,
		TargetID:      p.TargetID,
		TargetGroupID: p.TargetGroupID,
		Amount:        p.Amount,
		Description:   p.Description,
		AttachmentURL: p.AttachmentURL,
		SnapshotN:     len(members),
		ThresholdT:    council.Threshold(len(members)),
		Status:        types.StatusActive,
		DeadlineAt:    time.Now().Add(p.Window),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&prop).Error; err != nil {
			return err
		}
		voters := make([]types.ProposalVoter, 0, len(members))
		for _, member := range members {
			voters = append(voters, types.ProposalVoter{ProposalID: prop.ID, MemberID: member})
		}
		return tx.Create(&voters).Error
	})
	if err != nil {
		return nil, err
	}
	return &prop, nil
}

func (s *MySQL) GetProposal(ctx context.Context, id string) (*types.Proposal, error) {
	var prop types.Proposal
	if err := s.db.WithContext(ctx).First(&prop, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", council.ErrNotFound, id)
		}
		return nil, err
	}
	return &prop, nil
}

func (s *MySQL) UpsertVote(ctx context.Context, proposalID, voterID string, choice int16) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prop types.Proposal
		if err := tx.First(&prop, "id = ?", proposalID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", council.ErrNotFound, proposalID)
			}
			return err
		}
		if prop.Status != types.StatusActive {
			return fmt.Errorf("%w: proposal %s is %s", council.ErrInvalidState, proposalID, prop.Status)
		}

		// Re-votes replace the previous row; the latest choice is authoritative.
		if err := tx.Where("proposal_id = ? AND voter_id = ?", proposalID, voterID).
			Delete(&types.ProposalVote{}).Error; err != nil {
			return err
		}
		vote := types.ProposalVote{
			ProposalID: proposalID,
			VoterID:    voterID,
			Choice:     choice,
		}
		if err := tx.Create(&vote).Error; err != nil {
			return err
		}
		return tx.Model(&types.Proposal{}).Where("id = ?", proposalID).
			Update("updated_at", time.Now()).Error
	})
}

func (s *MySQL) Tally(ctx context.Context, proposalID string) (council.Tally, error) {
	type agg struct {
		Choice int16
		Count  int
	}
	var rows []agg
	err := s.db.WithContext(ctx).Table("proposal_votes").
		Select("choice, count(*) as count").
		Where("proposal_id = ?", proposalID).
		Group("choice").
		Scan(&rows).Error
	if err != nil {
		return council.Tally{}, err
	}

	var t council.Tally
	for _, r := range rows {
		switch r.Choice {
		case types.ChoiceApprove:
			t.Approve = r.Count
		case types.ChoiceReject:
			t.Reject = r.Count
		case types.ChoiceAbstain:
			t.Abstain = r.Count
		}
	}
	return t, nil
}

// SetStatus is the resolution compare-and-set: only an ACTIVE row can move
// to a terminal status, so two racing resolvers cannot both win.
func (s *MySQL) SetStatus(ctx context.Context, proposalID, status, executionRef, executionError string) error {
	res := s.db.WithContext(ctx).Model(&types.Proposal{}).
		Where("id = ? AND status = ?", proposalID, types.StatusActive).
		Updates(map[string]interface{}{
			"status":          status,
			"execution_ref":   executionRef,
			"execution_error": executionError,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		s.db.WithContext(ctx).Model(&types.Proposal{}).Where("id = ?", proposalID).Count(&count)
		if count == 0 {
			return fmt.Errorf("%w: %s", council.ErrNotFound, proposalID)
		}
		return fmt.Errorf("%w: proposal %s already resolved", council.ErrInvalidState, proposalID)
	}
	return nil
}

func (s *MySQL) ListDue(ctx context.Context, now time.Time) ([]types.Proposal, error) {
	var out []types.Proposal
	err := s.db.WithContext(ctx).
		Where("status = ? AND deadline_at <= ?", types.StatusActive, now).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (s *MySQL) ListReminderCandidates(ctx context.Context, now time.Time, lead time.Duration) ([]types.Proposal, error) {
	var out []types.Proposal
	err := s.db.WithContext(ctx).
		Where("status = ? AND reminder_sent = ? AND deadline_at > ? AND deadline_at <= ?",
			types.StatusActive, false, now, now.Add(lead)).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (s *MySQL) MarkReminded(ctx context.Context, proposalID string) error {
	return s.db.WithContext(ctx).Model(&types.Proposal{}).
		Where("id = ?", proposalID).
		Update("reminder_sent", true).Error
}

func (s *MySQL) ListActive(ctx context.Context, guildID string) ([]types.Proposal, error) {
	q := s.db.WithContext(ctx).Where("status = ?", types.StatusActive)
	if guildID != "" {
		q = q.Where("guild_id = ?", guildID)
	}
	var out []types.Proposal
	err := q.Order("created_at ASC").Find(&out).Error
	return out, err
}

func (s *MySQL) Electorate(ctx context.Context, proposalID string) ([]string, error) {
	var voters []types.ProposalVoter
	err := s.db.WithContext(ctx).
		Where("proposal_id = ?", proposalID).
		Order("member_id ASC").
		Find(&voters).Error
	if err != nil {
		return nil, err
	}
	if len(voters) == 0 {
		return nil, fmt.Errorf("%w: %s", council.ErrNotFound, proposalID)
	}
	out := make([]string, 0, len(voters))
	for _, v := range voters {
		out = append(out, v.MemberID)
	}
	return out, nil
}

func (s *MySQL) UnvotedMembers(ctx context.Context, proposalID string) ([]string, error) {
	var out []string
	err := s.db.WithContext(ctx).Table("proposal_voters").
		Joins("LEFT JOIN proposal_votes ON proposal_votes.proposal_id = proposal_voters.proposal_id AND proposal_votes.voter_id = proposal_voters.member_id").
		Where("proposal_voters.proposal_id = ? AND proposal_votes.id IS NULL", proposalID).
		Order("proposal_voters.member_id ASC").
		Pluck("proposal_voters.member_id", &out).Error
	return out, err
}

func (s *MySQL) Votes(ctx context.Context, proposalID string) (map[string]int16, error) {
	var votes []types.ProposalVote
	err := s.db.WithContext(ctx).
		Where("proposal_id = ?", proposalID).
		Find(&votes).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int16, len(votes))
	for _, v := range votes {
		out[v.VoterID] = v.Choice
	}
	return out, nil
}

// MarkResultNotified claims the final-result broadcast for a proposal. The
// timestamp lives on the row so the claim survives restarts.
func (s *MySQL) MarkResultNotified(ctx context.Context, proposalID string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&types.Proposal{}).
		Where("id = ? AND result_notified_at IS NULL", proposalID).
		Update("result_notified_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *MySQL) ExportInterval(ctx context.Context, guildID string, start, end time.Time) ([]types.AuditRecord, error) {
	var props []types.Proposal
	err := s.db.WithContext(ctx).
		Where("guild_id = ? AND created_at >= ? AND created_at <= ?", guildID, start, end).
		Order("created_at ASC").
		Find(&props).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.AuditRecord, 0, len(props))
	for i := range props {
		out = append(out, auditRecord(&props[i]))
	}
	return out, nil
}
