package sqlite

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tripmates/accord/internal/models"
	"github.com/tripmates/accord/internal/storage"
)

func TestSQLiteStore(t *testing.T) {
	// Create temp directory for test database
	tempDir, err := os.MkdirTemp("", "accord-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	dbPath := filepath.Join(tempDir, "test.db")
	store, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	trip := &models.Trip{
		Name:    "Lisbon, March",
		Members: []string{"alice", "bob", "cara"},
	}

	t.Run("CreateTrip generates ID and seeds ledger", func(t *testing.T) {
		if err := store.CreateTrip(ctx, trip); err != nil {
			t.Fatalf("CreateTrip failed: %v", err)
		}
		if trip.ID == "" {
			t.Error("Expected trip ID to be generated")
		}
		if trip.CreatedAt == 0 {
			t.Error("Expected CreatedAt to be set")
		}

		debts, err := store.GetDebts(ctx, trip.ID)
		if err != nil {
			t.Fatalf("GetDebts failed: %v", err)
		}
		if len(debts) != 3 {
			t.Fatalf("Expected 3 zeroed debt rows, got %d", len(debts))
		}
		for _, debt := range debts {
			if debt.Balance != 0 {
				t.Errorf("Expected zero balance for %s, got %f", debt.MemberID, debt.Balance)
			}
		}
	})

	t.Run("GetTrip retrieves roster", func(t *testing.T) {
		retrieved, err := store.GetTrip(ctx, trip.ID)
		if err != nil {
			t.Fatalf("GetTrip failed: %v", err)
		}
		if retrieved.Name != "Lisbon, March" {
			t.Errorf("Name mismatch: got %s", retrieved.Name)
		}
		if len(retrieved.Members) != 3 {
			t.Fatalf("Expected 3 members, got %d", len(retrieved.Members))
		}
		// Members come back sorted
		want := []string{"alice", "bob", "cara"}
		for i, m := range retrieved.Members {
			if m != want[i] {
				t.Errorf("Member %d mismatch: got %s, want %s", i, m, want[i])
			}
		}
	})

	t.Run("Missing rows surface ErrNotFound", func(t *testing.T) {
		if _, err := store.GetTrip(ctx, "nonexistent-id"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetTrip error = %v, want storage.ErrNotFound", err)
		}
		if _, err := store.GetSlot(ctx, trip.ID, "no-such-slot"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetSlot error = %v, want storage.ErrNotFound", err)
		}
		if _, err := store.GetBallot(ctx, trip.ID, "no-such-slot"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetBallot error = %v, want storage.ErrNotFound", err)
		}
		if _, err := store.GetPivot(ctx, "no-such-pivot"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetPivot error = %v, want storage.ErrNotFound", err)
		}
	})

	slot := &models.Slot{
		ID:         "slot-1",
		TripID:     trip.ID,
		Title:      "Miradouro walk",
		ActivityID: "act-original",
		Category:   "outdoor",
		DayNumber:  2,
		SortOrder:  1,
	}

	t.Run("UpsertSlot inserts and preserves engine fields on re-sync", func(t *testing.T) {
		if err := store.UpsertSlot(ctx, slot); err != nil {
			t.Fatalf("UpsertSlot failed: %v", err)
		}
		if slot.CreatedAt == 0 || slot.UpdatedAt == 0 {
			t.Error("Expected timestamps to be set")
		}

		// Simulate an accepted pivot mutating engine-owned fields.
		pivotID := seedPivot(t, store, ctx, trip.ID, "slot-1")
		accepted, err := store.GetPivot(ctx, pivotID)
		if err != nil {
			t.Fatalf("GetPivot failed: %v", err)
		}
		accepted.Status = models.PivotAccepted
		accepted.ReplacementActivityID = "act-replacement"
		accepted.ResolvedAt = time.Now().Unix()

		swapped := *slot
		swapped.PivotDepth = 1
		swapped.WasSwapped = true
		swapped.ReplacementActivityID = "act-replacement"
		swapped.PivotEventID = pivotID
		swapped.UpdatedAt = time.Now().Unix()
		if err := store.ResolvePivot(ctx, accepted, &swapped); err != nil {
			t.Fatalf("ResolvePivot failed: %v", err)
		}

		// Product re-sync with changed metadata must not clobber engine fields.
		resync := &models.Slot{
			ID:         "slot-1",
			TripID:     trip.ID,
			Title:      "Miradouro walk (updated)",
			ActivityID: "act-original",
			Category:   "outdoor",
			DayNumber:  2,
			SortOrder:  3,
		}
		if err := store.UpsertSlot(ctx, resync); err != nil {
			t.Fatalf("UpsertSlot re-sync failed: %v", err)
		}

		got, err := store.GetSlot(ctx, trip.ID, "slot-1")
		if err != nil {
			t.Fatalf("GetSlot failed: %v", err)
		}
		if got.Title != "Miradouro walk (updated)" {
			t.Errorf("Title not updated: %s", got.Title)
		}
		if got.SortOrder != 3 {
			t.Errorf("SortOrder not updated: %d", got.SortOrder)
		}
		if got.PivotDepth != swapped.PivotDepth {
			t.Errorf("PivotDepth clobbered by re-sync: got %d, want %d", got.PivotDepth, swapped.PivotDepth)
		}
		if got.WasSwapped != swapped.WasSwapped {
			t.Errorf("WasSwapped clobbered by re-sync: got %v", got.WasSwapped)
		}
		if got.ReplacementActivityID != swapped.ReplacementActivityID {
			t.Errorf("ReplacementActivityID clobbered: got %q", got.ReplacementActivityID)
		}
	})

	t.Run("ListSlotsByDay orders by sort order", func(t *testing.T) {
		for _, s := range []*models.Slot{
			{ID: "slot-d3-b", TripID: trip.ID, Title: "Dinner", ActivityID: "a2", Category: "restaurant", DayNumber: 3, SortOrder: 2},
			{ID: "slot-d3-a", TripID: trip.ID, Title: "Museum", ActivityID: "a1", Category: "museum", DayNumber: 3, SortOrder: 1},
			{ID: "slot-d4", TripID: trip.ID, Title: "Beach", ActivityID: "a3", Category: "beach", DayNumber: 4, SortOrder: 1},
		} {
			if err := store.UpsertSlot(ctx, s); err != nil {
				t.Fatalf("UpsertSlot failed: %v", err)
			}
		}

		slots, err := store.ListSlotsByDay(ctx, trip.ID, 3)
		if err != nil {
			t.Fatalf("ListSlotsByDay failed: %v", err)
		}
		if len(slots) != 2 {
			t.Fatalf("Expected 2 slots on day 3, got %d", len(slots))
		}
		if slots[0].ID != "slot-d3-a" || slots[1].ID != "slot-d3-b" {
			t.Errorf("Wrong order: %s, %s", slots[0].ID, slots[1].ID)
		}
	})

	t.Run("Ballot lifecycle", func(t *testing.T) {
		ballot := &models.Ballot{
			TripID:    trip.ID,
			SlotID:    "slot-1",
			Threshold: 0.6,
		}
		if err := store.CreateBallot(ctx, ballot); err != nil {
			t.Fatalf("CreateBallot failed: %v", err)
		}

		// One ballot per slot
		if err := store.CreateBallot(ctx, &models.Ballot{TripID: trip.ID, SlotID: "slot-1", Threshold: 0.6}); err == nil {
			t.Error("Expected error for duplicate ballot")
		}

		if err := store.SaveVote(ctx, trip.ID, "slot-1", "alice", models.VoteReject); err != nil {
			t.Fatalf("SaveVote failed: %v", err)
		}
		// Last write wins
		if err := store.SaveVote(ctx, trip.ID, "slot-1", "alice", models.VoteApprove); err != nil {
			t.Fatalf("SaveVote re-vote failed: %v", err)
		}
		if err := store.SaveVote(ctx, trip.ID, "slot-1", "bob", models.VoteApprove); err != nil {
			t.Fatalf("SaveVote failed: %v", err)
		}

		got, err := store.GetBallot(ctx, trip.ID, "slot-1")
		if err != nil {
			t.Fatalf("GetBallot failed: %v", err)
		}
		if got.Resolved {
			t.Error("Ballot should be open")
		}
		if len(got.Votes) != 2 {
			t.Fatalf("Expected 2 votes, got %d", len(got.Votes))
		}
		if got.Votes["alice"] != models.VoteApprove {
			t.Errorf("Last write should win: got %s", got.Votes["alice"])
		}

		got.Resolved = true
		got.Outcome = models.OutcomeConfirmed
		got.ResolvedAt = time.Now().Unix()
		debts := []models.Debt{
			{TripID: trip.ID, MemberID: "alice", Balance: 1.0 / 3.0, UpdatedAt: got.ResolvedAt},
			{TripID: trip.ID, MemberID: "bob", Balance: 1.0 / 3.0, UpdatedAt: got.ResolvedAt},
			{TripID: trip.ID, MemberID: "cara", Balance: -2.0 / 3.0, UpdatedAt: got.ResolvedAt},
		}
		if err := store.ApplyResolution(ctx, got, debts); err != nil {
			t.Fatalf("ApplyResolution failed: %v", err)
		}

		// Resolving again is a conflict the service layer never retries blindly.
		if err := store.ApplyResolution(ctx, got, nil); err == nil {
			t.Error("Expected error re-resolving a resolved ballot")
		}

		// Votes after resolution are refused.
		if err := store.SaveVote(ctx, trip.ID, "slot-1", "cara", models.VoteReject); err == nil {
			t.Error("Expected error voting on resolved ballot")
		}

		reread, err := store.GetBallot(ctx, trip.ID, "slot-1")
		if err != nil {
			t.Fatalf("GetBallot after resolve failed: %v", err)
		}
		if !reread.Resolved || reread.Outcome != models.OutcomeConfirmed {
			t.Errorf("Resolution not persisted: resolved=%v outcome=%s", reread.Resolved, reread.Outcome)
		}

		stored, err := store.GetDebts(ctx, trip.ID)
		if err != nil {
			t.Fatalf("GetDebts failed: %v", err)
		}
		var sum float64
		for _, d := range stored {
			sum += d.Balance
		}
		if math.Abs(sum) > 1e-9 {
			t.Errorf("Ledger must stay zero-sum, got %g", sum)
		}
	})

	t.Run("Pivot lifecycle", func(t *testing.T) {
		pivot := &models.PivotEvent{
			TripID:         trip.ID,
			SlotID:         "slot-d4",
			TriggerType:    models.TriggerWeatherChange,
			TriggerPayload: "storm",
			Status:         models.PivotProposed,
			PivotDepth:     0,
			ProposedBy:     "system",
			ExpiresAt:      time.Now().Add(30 * time.Minute).Unix(),
		}
		if err := store.CreatePivot(ctx, pivot); err != nil {
			t.Fatalf("CreatePivot failed: %v", err)
		}
		if pivot.ID == "" {
			t.Error("Expected pivot ID to be generated")
		}

		// The partial unique index allows one proposed pivot per slot.
		dup := &models.PivotEvent{
			TripID:      trip.ID,
			SlotID:      "slot-d4",
			TriggerType: models.TriggerUserMood,
			Status:      models.PivotProposed,
			ProposedBy:  "bob",
			ExpiresAt:   time.Now().Add(30 * time.Minute).Unix(),
		}
		if err := store.CreatePivot(ctx, dup); err == nil {
			t.Error("Expected error for second proposed pivot on same slot")
		}

		active, err := store.ActivePivot(ctx, trip.ID, "slot-d4")
		if err != nil {
			t.Fatalf("ActivePivot failed: %v", err)
		}
		if active == nil || active.ID != pivot.ID {
			t.Fatalf("ActivePivot returned wrong pivot: %+v", active)
		}

		none, err := store.ActivePivot(ctx, trip.ID, "slot-d3-a")
		if err != nil {
			t.Fatalf("ActivePivot failed: %v", err)
		}
		if none != nil {
			t.Errorf("Expected nil active pivot, got %+v", none)
		}

		// Accept: pivot terminal + slot swap in one transaction.
		now := time.Now().Unix()
		pivot.Status = models.PivotAccepted
		pivot.ReplacementActivityID = "act-indoor"
		pivot.ResolvedAt = now

		target, err := store.GetSlot(ctx, trip.ID, "slot-d4")
		if err != nil {
			t.Fatalf("GetSlot failed: %v", err)
		}
		target.PivotDepth++
		target.WasSwapped = true
		target.ReplacementActivityID = "act-indoor"
		target.PivotEventID = pivot.ID
		target.UpdatedAt = now

		if err := store.ResolvePivot(ctx, pivot, target); err != nil {
			t.Fatalf("ResolvePivot failed: %v", err)
		}

		resolved, err := store.GetPivot(ctx, pivot.ID)
		if err != nil {
			t.Fatalf("GetPivot failed: %v", err)
		}
		if resolved.Status != models.PivotAccepted {
			t.Errorf("Status not persisted: %s", resolved.Status)
		}
		if resolved.ReplacementActivityID != "act-indoor" {
			t.Errorf("Replacement not persisted: %q", resolved.ReplacementActivityID)
		}

		swappedSlot, err := store.GetSlot(ctx, trip.ID, "slot-d4")
		if err != nil {
			t.Fatalf("GetSlot failed: %v", err)
		}
		if swappedSlot.PivotDepth != 1 || !swappedSlot.WasSwapped {
			t.Errorf("Slot swap not persisted: depth=%d swapped=%v", swappedSlot.PivotDepth, swappedSlot.WasSwapped)
		}

		// Slot is free for a fresh proposal once the last one is terminal.
		if err := store.CreatePivot(ctx, dup); err != nil {
			t.Errorf("Expected fresh proposal after terminal pivot, got: %v", err)
		}
	})

	t.Run("ListPivots filters by slot", func(t *testing.T) {
		all, err := store.ListPivots(ctx, trip.ID, "")
		if err != nil {
			t.Fatalf("ListPivots failed: %v", err)
		}
		bySlot, err := store.ListPivots(ctx, trip.ID, "slot-d4")
		if err != nil {
			t.Fatalf("ListPivots by slot failed: %v", err)
		}
		if len(bySlot) > len(all) {
			t.Errorf("Slot filter returned more rows than unfiltered list")
		}
		for _, p := range bySlot {
			if p.SlotID != "slot-d4" {
				t.Errorf("Filter leaked slot %s", p.SlotID)
			}
		}
	})

	t.Run("ListExpiredProposed honors cutoff", func(t *testing.T) {
		past := &models.PivotEvent{
			TripID:      trip.ID,
			SlotID:      "slot-d3-a",
			TriggerType: models.TriggerTimeOverrun,
			Status:      models.PivotProposed,
			ProposedBy:  "alice",
			CreatedAt:   time.Now().Add(-2 * time.Hour).Unix(),
			ExpiresAt:   time.Now().Add(-time.Hour).Unix(),
		}
		if err := store.CreatePivot(ctx, past); err != nil {
			t.Fatalf("CreatePivot failed: %v", err)
		}

		expired, err := store.ListExpiredProposed(ctx, time.Now().Unix())
		if err != nil {
			t.Fatalf("ListExpiredProposed failed: %v", err)
		}
		found := false
		for _, p := range expired {
			if p.ID == past.ID {
				found = true
			}
			if p.ExpiresAt > time.Now().Unix() {
				t.Errorf("Pivot %s not past cutoff", p.ID)
			}
		}
		if !found {
			t.Error("Expected lapsed pivot in expired list")
		}
	})

	t.Run("Signals round-trip", func(t *testing.T) {
		base := time.Now().Unix()
		older := &models.BehavioralSignal{
			TripID:      trip.ID,
			SlotID:      "slot-1",
			MemberID:    "alice",
			SignalType:  models.SignalPivotAccepted,
			SignalValue: 1.0,
			TripPhase:   models.PhaseMidTrip,
			CreatedAt:   base - 10,
		}
		newer := &models.BehavioralSignal{
			TripID:      trip.ID,
			SlotID:      "slot-1",
			MemberID:    "bob",
			SignalType:  models.SignalPivotRejected,
			SignalValue: -0.5,
			TripPhase:   models.PhaseMidTrip,
			CreatedAt:   base - 5,
		}
		if err := store.AppendBehavioralSignal(ctx, older); err != nil {
			t.Fatalf("AppendBehavioralSignal failed: %v", err)
		}
		if err := store.AppendBehavioralSignal(ctx, newer); err != nil {
			t.Fatalf("AppendBehavioralSignal failed: %v", err)
		}

		signals, err := store.ListBehavioralSignals(ctx, trip.ID)
		if err != nil {
			t.Fatalf("ListBehavioralSignals failed: %v", err)
		}
		if len(signals) != 2 {
			t.Fatalf("Expected 2 behavioral signals, got %d", len(signals))
		}
		if signals[0].ID != newer.ID {
			t.Errorf("Expected newest first, got %s", signals[0].SignalType)
		}
		if signals[0].SignalValue != -0.5 {
			t.Errorf("SignalValue mismatch: %f", signals[0].SignalValue)
		}

		intent := &models.IntentionSignal{
			TripID:        trip.ID,
			MemberID:      "alice",
			ActivityID:    "act-original",
			IntentionType: models.IntentionRejection,
			Source:        models.SourceUserExplicit,
			Confidence:    1.0,
			UserProvided:  true,
		}
		if err := store.AppendIntentionSignal(ctx, intent); err != nil {
			t.Fatalf("AppendIntentionSignal failed: %v", err)
		}
		intents, err := store.ListIntentionSignals(ctx, trip.ID)
		if err != nil {
			t.Fatalf("ListIntentionSignals failed: %v", err)
		}
		if len(intents) != 1 {
			t.Fatalf("Expected 1 intention signal, got %d", len(intents))
		}
		if !intents[0].UserProvided || intents[0].Confidence != 1.0 {
			t.Errorf("Intention fields mismatch: %+v", intents[0])
		}
	})

	t.Run("Gate audit round-trip", func(t *testing.T) {
		entry := &models.GateAuditEntry{
			TripID:     trip.ID,
			MemberID:   "bob",
			Prompt:     "the museum is closed today",
			Label:      "venue_closure",
			Confidence: 0.9,
			Method:     models.GateMethodLLM,
		}
		if err := store.AppendGateAudit(ctx, entry); err != nil {
			t.Fatalf("AppendGateAudit failed: %v", err)
		}

		entries, err := store.ListGateAudit(ctx, trip.ID)
		if err != nil {
			t.Fatalf("ListGateAudit failed: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("Expected 1 audit entry, got %d", len(entries))
		}
		if entries[0].Prompt != entry.Prompt || entries[0].Method != models.GateMethodLLM {
			t.Errorf("Audit entry mismatch: %+v", entries[0])
		}
	})

	t.Run("Moderation queue oldest first", func(t *testing.T) {
		base := time.Now().Unix()
		first := &models.ModerationItem{
			ActivityID:   "act-1",
			TripID:       trip.ID,
			SlotID:       "slot-1",
			ReportedBy:   "alice",
			Note:         "hours are wrong",
			Status:       models.ModerationFlagged,
			ReviewStatus: models.ReviewPending,
			CreatedAt:    base - 20,
		}
		second := &models.ModerationItem{
			ActivityID:   "act-2",
			TripID:       trip.ID,
			ReportedBy:   "bob",
			Status:       models.ModerationFlagged,
			ReviewStatus: models.ReviewPending,
			CreatedAt:    base - 10,
		}
		if err := store.EnqueueModeration(ctx, first); err != nil {
			t.Fatalf("EnqueueModeration failed: %v", err)
		}
		if err := store.EnqueueModeration(ctx, second); err != nil {
			t.Fatalf("EnqueueModeration failed: %v", err)
		}

		items, err := store.ListModerationQueue(ctx, trip.ID)
		if err != nil {
			t.Fatalf("ListModerationQueue failed: %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("Expected 2 pending items, got %d", len(items))
		}
		if items[0].ID != first.ID {
			t.Errorf("Expected oldest first, got %s", items[0].ActivityID)
		}
		if items[0].Note != "hours are wrong" {
			t.Errorf("Note mismatch: %q", items[0].Note)
		}
	})
}

// seedPivot inserts a proposed pivot for the slot and returns its id.
func seedPivot(t *testing.T, store *SQLiteStore, ctx context.Context, tripID, slotID string) string {
	t.Helper()
	pivot := &models.PivotEvent{
		TripID:      tripID,
		SlotID:      slotID,
		TriggerType: models.TriggerUserRequest,
		Status:      models.PivotProposed,
		ProposedBy:  "alice",
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
	}
	if err := store.CreatePivot(ctx, pivot); err != nil {
		t.Fatalf("seedPivot failed: %v", err)
	}
	return pivot.ID
}
