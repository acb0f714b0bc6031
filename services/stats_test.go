package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

func day(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		t.Fatalf("bad day literal %q: %v", value, err)
	}
	return parsed
}

func completeCatalog(t *testing.T, svc *StatsService, userID string, now time.Time) *CompleteResult {
	t.Helper()

	var last *CompleteResult
	for _, id := range ExerciseCatalog {
		result, err := svc.CompleteExercise(context.Background(), userID, id, now)
		if err != nil {
			t.Fatalf("CompleteExercise(%q) failed: %v", id, err)
		}
		last = result
	}
	return last
}

func TestCompleteExerciseInvalidID(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewStatsService(repo, nil)
	now := day(t, "2025-03-10 09:00")

	_, err := svc.CompleteExercise(context.Background(), "user-1", "shouting-contest", now)
	if !errors.Is(err, ErrInvalidExercise) {
		t.Fatalf("expected ErrInvalidExercise, got %v", err)
	}

	stats, err := svc.GetStats(context.Background(), "user-1", now)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if len(stats.CompletedToday) != 0 || stats.TotalPoints != 0 {
		t.Errorf("rejected exercise mutated stats: %+v", stats)
	}
}

func TestCompleteExerciseSameDayIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewStatsService(repo, nil)
	now := day(t, "2025-03-10 09:00")

	first, err := svc.CompleteExercise(context.Background(), "user-1", "box-breathing", now)
	if err != nil {
		t.Fatalf("first completion failed: %v", err)
	}
	if len(first.Stats.CompletedToday) != 1 {
		t.Fatalf("expected 1 completed exercise, got %d", len(first.Stats.CompletedToday))
	}

	second, err := svc.CompleteExercise(context.Background(), "user-1", "box-breathing", now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("repeat completion failed: %v", err)
	}
	if second.Message != "already completed today" {
		t.Errorf("expected idempotent message, got %q", second.Message)
	}
	if len(second.Stats.CompletedToday) != 1 {
		t.Errorf("repeat completion grew the set: %v", second.Stats.CompletedToday)
	}
	if second.PointsEarned != 0 {
		t.Errorf("repeat completion awarded %d points", second.PointsEarned)
	}
}

func TestPartialCatalogAwardsNothing(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewStatsService(repo, nil)
	now := day(t, "2025-03-10 09:00")

	result, err := svc.CompleteExercise(context.Background(), "user-1", "pitch-slides", now)
	if err != nil {
		t.Fatalf("CompleteExercise failed: %v", err)
	}
	if result.AllCompleted {
		t.Error("single exercise reported catalog complete")
	}
	if result.Stats.TotalPoints != 0 || result.Stats.Streak != 0 {
		t.Errorf("partial completion moved streak/points: %+v", result.Stats)
	}
	if result.Message != "1 of 9 exercises completed today" {
		t.Errorf("unexpected progress message %q", result.Message)
	}
}

func TestFullCatalogAwardsBonusOnce(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewStatsService(repo, nil)
	now := day(t, "2025-03-10 09:00")

	result := completeCatalog(t, svc, "user-1", now)

	if !result.AllCompleted {
		t.Fatal("full catalog not reported as complete")
	}
	if result.PointsEarned != DailyBonusPoints {
		t.Errorf("expected %d points earned, got %d", DailyBonusPoints, result.PointsEarned)
	}
	if result.Stats.Streak != 1 {
		t.Errorf("expected streak 1 on first completion, got %d", result.Stats.Streak)
	}
	if result.Stats.TotalPoints != DailyBonusPoints {
		t.Errorf("expected %d total points, got %d", DailyBonusPoints, result.Stats.TotalPoints)
	}
	if result.StreakRestarted {
		t.Error("first-ever completion flagged as streak restart")
	}

	// Re-completing after the bonus must not award again.
	repeat, err := svc.CompleteExercise(context.Background(), "user-1", ExerciseCatalog[0], now.Add(time.Hour))
	if err != nil {
		t.Fatalf("repeat completion failed: %v", err)
	}
	if repeat.PointsEarned != 0 || repeat.Stats.TotalPoints != DailyBonusPoints {
		t.Errorf("daily bonus awarded twice: %+v", repeat)
	}
}

func TestStreakIncrementsOnConsecutiveDays(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewStatsService(repo, nil)

	completeCatalog(t, svc, "user-1", day(t, "2025-03-10 09:00"))
	result := completeCatalog(t, svc, "user-1", day(t, "2025-03-11 21:30"))

	if result.Stats.Streak != 2 {
		t.Errorf("expected streak 2, got %d", result.Stats.Streak)
	}
	if result.StreakRestarted {
		t.Error("consecutive day flagged as restart")
	}
	if result.Stats.TotalPoints != 2*DailyBonusPoints {
		t.Errorf("expected %d total points, got %d", 2*DailyBonusPoints, result.Stats.TotalPoints)
	}
}

func TestStreakRestartsAfterGap(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewStatsService(repo, nil)

	completeCatalog(t, svc, "user-1", day(t, "2025-03-10 09:00"))
	completeCatalog(t, svc, "user-1", day(t, "2025-03-11 09:00"))
	result := completeCatalog(t, svc, "user-1", day(t, "2025-03-14 09:00"))

	if result.Stats.Streak != 1 {
		t.Errorf("expected streak reset to 1 after gap, got %d", result.Stats.Streak)
	}
	if !result.StreakRestarted {
		t.Error("gap completion not flagged as restart")
	}
	// Points survive the restart.
	if result.Stats.TotalPoints != 3*DailyBonusPoints {
		t.Errorf("expected %d total points, got %d", 3*DailyBonusPoints, result.Stats.TotalPoints)
	}
}

func TestRolloverClearsCompletedSet(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewStatsService(repo, nil)

	if _, err := svc.CompleteExercise(context.Background(), "user-1", "lip-trills", day(t, "2025-03-10 09:00")); err != nil {
		t.Fatalf("CompleteExercise failed: %v", err)
	}

	stats, err := svc.GetStats(context.Background(), "user-1", day(t, "2025-03-11 08:00"))
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if len(stats.CompletedToday) != 0 {
		t.Errorf("completed set survived day rollover: %v", stats.CompletedToday)
	}

	// The same exercise is completable again on the new day.
	result, err := svc.CompleteExercise(context.Background(), "user-1", "lip-trills", day(t, "2025-03-11 09:00"))
	if err != nil {
		t.Fatalf("CompleteExercise failed: %v", err)
	}
	if len(result.Stats.CompletedToday) != 1 || result.Message == "already completed today" {
		t.Errorf("exercise not completable after rollover: %+v", result)
	}
}

func TestRolloverDayDedupes(t *testing.T) {
	repo := newTestRepo(t)

	stats, err := repo.GetOrCreateUserStats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetOrCreateUserStats failed: %v", err)
	}
	stats.CompletedToday = []string{"box-breathing", "box-breathing", "lip-trills"}
	stats.LastExerciseDate = "2025-03-10"

	if !rolloverDay(stats, "2025-03-10") {
		t.Error("dedupe on the same day not reported as a change")
	}
	if len(stats.CompletedToday) != 2 {
		t.Errorf("expected deduped set of 2, got %v", stats.CompletedToday)
	}

	if rolloverDay(stats, "2025-03-10") {
		t.Error("clean same-day set reported as changed")
	}

	if !rolloverDay(stats, "2025-03-11") {
		t.Error("day rollover not reported as a change")
	}
	if len(stats.CompletedToday) != 0 || stats.LastExerciseDate != "2025-03-11" {
		t.Errorf("rollover to new day did not reset: %+v", stats)
	}
}

func TestGetStatsDedupesSameDaySet(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewStatsService(repo, nil)
	now := day(t, "2025-03-10 09:00")

	stats, err := repo.GetOrCreateUserStats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetOrCreateUserStats failed: %v", err)
	}
	stats.CompletedToday = []string{"box-breathing", "box-breathing", "lip-trills"}
	stats.LastExerciseDate = "2025-03-10"
	if err := repo.SaveUserStats(context.Background(), stats); err != nil {
		t.Fatalf("SaveUserStats failed: %v", err)
	}

	snapshot, err := svc.GetStats(context.Background(), "user-1", now)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if len(snapshot.CompletedToday) != 2 {
		t.Errorf("expected deduped set of 2, got %v", snapshot.CompletedToday)
	}

	// The deduped set is persisted, not just returned.
	stored, err := repo.GetOrCreateUserStats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetOrCreateUserStats failed: %v", err)
	}
	if len(stored.CompletedToday) != 2 {
		t.Errorf("deduped set not persisted: %v", stored.CompletedToday)
	}
}
