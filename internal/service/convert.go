package service

import (
	"github.com/tripmates/accord/internal/consensus"
	"github.com/tripmates/accord/internal/models"
	"github.com/tripmates/accord/pkg/api"
)

// Conversions between domain models and their wire forms. Kept in one place
// so the handlers stay focused on policy and error mapping.

func toAPITrip(t *models.Trip) *api.Trip {
	return &api.Trip{
		ID:        t.ID,
		Name:      t.Name,
		MemberIDs: t.Members,
		CreatedAt: t.CreatedAt,
	}
}

func toAPISlot(s *models.Slot) *api.Slot {
	return &api.Slot{
		ID:                    s.ID,
		TripID:                s.TripID,
		Title:                 s.Title,
		ActivityID:            s.ActivityID,
		Category:              s.Category,
		DayNumber:             s.DayNumber,
		SortOrder:             s.SortOrder,
		PivotDepth:            s.PivotDepth,
		WasSwapped:            s.WasSwapped,
		ReplacementActivityID: s.ReplacementActivityID,
		PivotEventID:          s.PivotEventID,
		CreatedAt:             s.CreatedAt,
		UpdatedAt:             s.UpdatedAt,
	}
}

func toAPIBallot(b *models.Ballot) *api.Ballot {
	votes := make(map[string]string, len(b.Votes))
	for member, choice := range b.Votes {
		votes[member] = string(choice)
	}
	return &api.Ballot{
		TripID:     b.TripID,
		SlotID:     b.SlotID,
		Threshold:  b.Threshold,
		Votes:      votes,
		Resolved:   b.Resolved,
		Outcome:    string(b.Outcome),
		CreatedAt:  b.CreatedAt,
		ResolvedAt: b.ResolvedAt,
	}
}

func toAPITally(t consensus.Tally, pending int) *api.Tally {
	return &api.Tally{
		Approve:      t.Approve,
		Reject:       t.Reject,
		Abstain:      t.Abstain,
		Pending:      pending,
		ApprovalRate: t.Rate,
	}
}

func toAPIPivot(p *models.PivotEvent) *api.Pivot {
	if p == nil {
		return nil
	}
	return &api.Pivot{
		ID:                    p.ID,
		TripID:                p.TripID,
		SlotID:                p.SlotID,
		TriggerType:           string(p.TriggerType),
		TriggerPayload:        p.TriggerPayload,
		Status:                string(p.Status),
		PivotDepth:            p.PivotDepth,
		ProposedActivityID:    p.ProposedActivityID,
		ReplacementActivityID: p.ReplacementActivityID,
		ProposedBy:            p.ProposedBy,
		CreatedAt:             p.CreatedAt,
		ExpiresAt:             p.ExpiresAt,
		ResolvedAt:            p.ResolvedAt,
	}
}

func toAPIModerationItem(m *models.ModerationItem) *api.ModerationItem {
	return &api.ModerationItem{
		ID:           m.ID,
		ActivityID:   m.ActivityID,
		TripID:       m.TripID,
		SlotID:       m.SlotID,
		ReportedBy:   m.ReportedBy,
		Note:         m.Note,
		Status:       m.Status,
		ReviewStatus: m.ReviewStatus,
		CreatedAt:    m.CreatedAt,
	}
}
