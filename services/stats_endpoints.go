package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vocalcoach/backend/models"
	"github.com/vocalcoach/backend/repository"
)

type StatsEndpoints struct {
	statsService *StatsService
	leaderboard  *LeaderboardService
	repo         *repository.GORMRepository
}

type CompleteExerciseRequest struct {
	ExerciseID string `json:"exerciseId"`
}

func NewStatsEndpoints(statsService *StatsService, leaderboard *LeaderboardService, repo *repository.GORMRepository) *StatsEndpoints {
	return &StatsEndpoints{
		statsService: statsService,
		leaderboard:  leaderboard,
		repo:         repo,
	}
}

func (e *StatsEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/stats", func(r chi.Router) {
		r.Get("/", e.GetStatsHandler)
		r.Post("/complete-exercise", e.CompleteExerciseHandler)
		r.Get("/leaderboard", e.LeaderboardHandler)
	})
}

func (e *StatsEndpoints) GetStatsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	stats, err := e.statsService.GetStats(r.Context(), user.ID, time.Now())
	if err != nil {
		slog.Error("Failed to get stats", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to get stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)

	slog.Info("Stats retrieved", "user_id", user.ID, "streak", stats.Streak)
}

func (e *StatsEndpoints) CompleteExerciseHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	var req CompleteExerciseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ExerciseID == "" {
		http.Error(w, "exerciseId is required", http.StatusBadRequest)
		return
	}

	result, err := e.statsService.CompleteExercise(r.Context(), user.ID, req.ExerciseID, time.Now())
	if err != nil {
		if errors.Is(err, ErrInvalidExercise) {
			http.Error(w, "Invalid exercise id", http.StatusBadRequest)
			return
		}
		slog.Error("Failed to complete exercise", "error", err, "user_id", user.ID, "exercise_id", req.ExerciseID)
		http.Error(w, "Failed to complete exercise", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)

	slog.Info("Exercise completion processed",
		"user_id", user.ID,
		"exercise_id", req.ExerciseID,
		"all_completed", result.AllCompleted,
		"points_earned", result.PointsEarned)
}

// LeaderboardHandler serves the points leaderboard from Redis, falling back
// to a database scan when Redis is not configured.
func (e *StatsEndpoints) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	var entries []LeaderboardEntry
	if e.leaderboard != nil {
		var err error
		entries, err = e.leaderboard.Top(r.Context(), limit)
		if err != nil {
			slog.Error("Failed to read leaderboard from Redis", "error", err)
			entries = nil
		}
	}

	if entries == nil {
		stats, err := e.repo.TopUsersByPoints(r.Context(), limit)
		if err != nil {
			http.Error(w, "Failed to get leaderboard", http.StatusInternalServerError)
			return
		}
		entries = make([]LeaderboardEntry, 0, len(stats))
		for i, s := range stats {
			entries = append(entries, LeaderboardEntry{
				UserID: s.UserID,
				Points: s.TotalPoints,
				Rank:   i + 1,
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"leaderboard": entries,
		"count":       len(entries),
	})
}
