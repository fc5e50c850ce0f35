package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ecolearn-hub/ecolearn-backend/config"
	"github.com/ecolearn-hub/ecolearn-backend/internal/application/command"
	"github.com/ecolearn-hub/ecolearn-backend/internal/application/query"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/challenge"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/lesson"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/user"
	"github.com/ecolearn-hub/ecolearn-backend/pkg/logger"
)

// maxRequestBodySize caps request bodies to keep JSON decoding bounded.
const maxRequestBodySize = 1 << 20 // 1 MB

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "EcoLearn API",
		"version":     "v1",
		"description": "REST API for EcoLearn - Learn Ecology Through Play",
		"endpoints": map[string]string{
			"health":      "/health",
			"register":    "/api/v1/auth/register",
			"login":       "/api/v1/auth/login",
			"leaderboard": "/api/v1/leaderboard",
			"modules":     "/api/v1/modules",
			"profile":     "/api/v1/profile",
			"challenges":  "/api/v1/challenges",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	// Default health response
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type registerRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// handleRegister handles POST /api/v1/auth/register
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if s.deps.RegisterUserHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Registration is not available")
		return
	}

	var req registerRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.RegisterUserHandler.Handle(r.Context(), command.RegisterUserCommand{
		Username:      req.Username,
		Password:      req.Password,
		DisplayName:   req.DisplayName,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		switch {
		case errors.Is(err, user.ErrUserAlreadyExists):
			writeJSONError(w, http.StatusConflict, "user_exists", "A user with this username already exists")
		case errors.Is(err, user.ErrInvalidUsername):
			writeJSONError(w, http.StatusBadRequest, "invalid_username", "Username must be non-empty and contain no spaces")
		case errors.Is(err, command.ErrWeakPassword):
			writeJSONError(w, http.StatusBadRequest, "weak_password", "Password must be at least 6 characters")
		default:
			s.logger.Error("registration failed", logger.Err(err))
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to register user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":           result.ID,
		"username":     result.Username,
		"display_name": result.DisplayName,
		"level":        result.Level,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin handles POST /api/v1/auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.deps.LoginUserHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Login is not available")
		return
	}

	var req loginRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.LoginUserHandler.Handle(r.Context(), command.LoginUserCommand{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, command.ErrInvalidCredentials) {
			writeJSONError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password")
			return
		}
		s.logger.Error("login failed", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to log in")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":        result.Token,
		"username":     result.Username,
		"display_name": result.DisplayName,
		"level":        result.Level,
		"role":         result.Role,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetProfile handles GET /api/v1/profile for the authenticated user.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	username := usernameFromContext(r.Context())
	if username == "" {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	s.writeProfile(w, r, username)
}

// handleGetUser handles GET /api/v1/users/{username}
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	if username == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Username is required")
		return
	}

	s.writeProfile(w, r, username)
}

func (s *Server) writeProfile(w http.ResponseWriter, r *http.Request, username string) {
	if s.deps.GetProfileHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Profiles are not available")
		return
	}

	result, err := s.deps.GetProfileHandler.Handle(r.Context(), query.GetProfileQuery{Username: username})
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			writeJSONError(w, http.StatusNotFound, "user_not_found", "User not found")
			return
		}
		s.logger.Error("failed to get profile",
			logger.String("username", username),
			logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to get profile")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard handles GET /api/v1/leaderboard. When the request
// carries a valid token, the viewer's own position is included as well.
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetLeaderboardHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Leaderboard is not available")
		return
	}

	viewer := usernameFromContext(r.Context())
	if !s.featureEnabled(config.FeatureLeaderboardViewerRank, viewer) {
		viewer = ""
	}

	result, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), query.GetLeaderboardQuery{
		Limit:  getQueryParamInt(r, "limit", 20),
		Viewer: viewer,
	})
	if err != nil {
		s.logger.Error("failed to get leaderboard", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to get leaderboard")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEARNING CONTENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListModules handles GET /api/v1/modules
func (s *Server) handleListModules(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListModulesHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Modules are not available")
		return
	}

	result, err := s.deps.ListModulesHandler.Handle(r.Context())
	if err != nil {
		s.logger.Error("failed to list modules", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to list modules")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleListLessons handles GET /api/v1/modules/{moduleID}/lessons. Each
// lesson carries the caller's progression state (completed, unlocked or
// locked).
func (s *Server) handleListLessons(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListLessonsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Lessons are not available")
		return
	}

	moduleID, ok := pathVarInt64(w, r, "moduleID")
	if !ok {
		return
	}

	result, err := s.deps.ListLessonsHandler.Handle(r.Context(), query.ListLessonsQuery{
		Username: usernameFromContext(r.Context()),
		ModuleID: moduleID,
	})
	if err != nil {
		if errors.Is(err, lesson.ErrModuleNotFound) {
			writeJSONError(w, http.StatusNotFound, "module_not_found", "Module not found")
			return
		}
		s.logger.Error("failed to list lessons",
			logger.Int64("module_id", moduleID),
			logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to list lessons")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleCompleteLesson handles POST /api/v1/lessons/{lessonID}/complete.
// A repeated completion succeeds without moving XP.
func (s *Server) handleCompleteLesson(w http.ResponseWriter, r *http.Request) {
	if s.deps.CompleteLessonHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Lesson completion is not available")
		return
	}

	lessonID, ok := pathVarInt64(w, r, "lessonID")
	if !ok {
		return
	}

	result, err := s.deps.CompleteLessonHandler.Handle(r.Context(), command.CompleteLessonCommand{
		Username:      usernameFromContext(r.Context()),
		LessonID:      lessonID,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		switch {
		case errors.Is(err, lesson.ErrLessonNotFound):
			writeJSONError(w, http.StatusNotFound, "lesson_not_found", "Lesson not found")
		case errors.Is(err, user.ErrUserNotFound):
			writeJSONError(w, http.StatusNotFound, "user_not_found", "User not found")
		default:
			s.logger.Error("failed to complete lesson",
				logger.Int64("lesson_id", lessonID),
				logger.Err(err))
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to complete lesson")
		}
		return
	}

	resp := map[string]interface{}{
		"username":          result.Username,
		"lesson_id":         result.LessonID,
		"already_completed": result.AlreadyCompleted,
		"xp_awarded":        result.XPAwarded,
	}
	if result.Award != nil {
		resp["award"] = awardResponse(result.Award)
	}

	writeJSON(w, http.StatusOK, resp)
}

type submitQuizRequest struct {
	// Answers maps question IDs to the chosen option.
	Answers map[int64]string `json:"answers"`
}

// handleSubmitQuiz handles POST /api/v1/quizzes/{quizID}/submit
func (s *Server) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	if s.deps.SubmitQuizHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Quizzes are not available")
		return
	}
	if !s.featureEnabled(config.FeatureContentQuizzes, usernameFromContext(r.Context())) {
		writeJSONError(w, http.StatusForbidden, "feature_disabled", "Quiz submissions are currently disabled")
		return
	}

	quizID, ok := pathVarInt64(w, r, "quizID")
	if !ok {
		return
	}

	var req submitQuizRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.SubmitQuizHandler.Handle(r.Context(), command.SubmitQuizCommand{
		Username:      usernameFromContext(r.Context()),
		QuizID:        quizID,
		Answers:       req.Answers,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		switch {
		case errors.Is(err, lesson.ErrQuizNotFound):
			writeJSONError(w, http.StatusNotFound, "quiz_not_found", "Quiz not found")
		case errors.Is(err, user.ErrUserNotFound):
			writeJSONError(w, http.StatusNotFound, "user_not_found", "User not found")
		default:
			s.logger.Error("failed to submit quiz",
				logger.Int64("quiz_id", quizID),
				logger.Err(err))
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to submit quiz")
		}
		return
	}

	resp := map[string]interface{}{
		"username":   result.Username,
		"quiz_id":    result.QuizID,
		"correct":    result.Correct,
		"total":      result.Total,
		"xp_awarded": result.XPAwarded,
	}
	if result.Award != nil {
		resp["award"] = awardResponse(result.Award)
	}

	writeJSON(w, http.StatusOK, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type challengeDTO struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Difficulty  string `json:"difficulty"`
	XPReward    int64  `json:"xp_reward"`
}

// handleListChallenges handles GET /api/v1/challenges
func (s *Server) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	if s.deps.ChallengeRepo == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Challenges are not available")
		return
	}

	challenges, err := s.deps.ChallengeRepo.ListChallenges(r.Context())
	if err != nil {
		s.logger.Error("failed to list challenges", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to list challenges")
		return
	}

	dtos := make([]challengeDTO, 0, len(challenges))
	for _, c := range challenges {
		dtos = append(dtos, challengeDTO{
			ID:          c.ID,
			Title:       c.Title,
			Description: c.Description,
			Difficulty:  string(c.Difficulty),
			XPReward:    c.XPReward,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"challenges": dtos,
		"count":      len(dtos),
	})
}

type submitChallengeRequest struct {
	// ImagePath points at the uploaded proof photo in file storage.
	ImagePath string `json:"image_path"`
}

// handleSubmitChallenge handles POST /api/v1/challenges/{challengeID}/submit.
// Each user may submit a given challenge once.
func (s *Server) handleSubmitChallenge(w http.ResponseWriter, r *http.Request) {
	if s.deps.SubmitChallengeHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Challenge submission is not available")
		return
	}
	if !s.featureEnabled(config.FeatureContentChallenges, usernameFromContext(r.Context())) {
		writeJSONError(w, http.StatusForbidden, "feature_disabled", "Challenge submissions are currently disabled")
		return
	}

	challengeID, ok := pathVarInt64(w, r, "challengeID")
	if !ok {
		return
	}

	var req submitChallengeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.SubmitChallengeHandler.Handle(r.Context(), command.SubmitChallengeCommand{
		Username:      usernameFromContext(r.Context()),
		ChallengeID:   challengeID,
		ImagePath:     req.ImagePath,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		switch {
		case errors.Is(err, challenge.ErrChallengeNotFound):
			writeJSONError(w, http.StatusNotFound, "challenge_not_found", "Challenge not found")
		case errors.Is(err, challenge.ErrAlreadySubmitted):
			writeJSONError(w, http.StatusConflict, "already_submitted", "You have already submitted this challenge")
		case errors.Is(err, user.ErrUserNotFound):
			writeJSONError(w, http.StatusNotFound, "user_not_found", "User not found")
		default:
			s.logger.Error("failed to submit challenge",
				logger.Int64("challenge_id", challengeID),
				logger.Err(err))
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to submit challenge")
		}
		return
	}

	resp := map[string]interface{}{
		"username":     result.Username,
		"challenge_id": result.ChallengeID,
		"xp_awarded":   result.XPAwarded,
	}
	if result.Award != nil {
		resp["award"] = awardResponse(result.Award)
	}

	writeJSON(w, http.StatusOK, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE SHAPING
// ══════════════════════════════════════════════════════════════════════════════

type badgeGrantDTO struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Tier string `json:"tier"`
	Gems int    `json:"gems"`
}

type awardDTO struct {
	OldXP         int64           `json:"old_xp"`
	NewXP         int64           `json:"new_xp"`
	OldLevel      int             `json:"old_level"`
	NewLevel      int             `json:"new_level"`
	LeveledUp     bool            `json:"leveled_up"`
	Streak        int             `json:"streak"`
	GemsEarned    int             `json:"gems_earned,omitempty"`
	BadgesGranted []badgeGrantDTO `json:"badges_granted,omitempty"`
}

// awardResponse flattens an award outcome into the wire shape.
func awardResponse(a *command.AwardXPResult) awardDTO {
	dto := awardDTO{
		OldXP:      a.OldXP,
		NewXP:      a.NewXP,
		OldLevel:   a.OldLevel,
		NewLevel:   a.NewLevel,
		LeveledUp:  a.LeveledUp,
		Streak:     a.Streak,
		GemsEarned: a.GemsEarned,
	}
	for _, b := range a.BadgesGranted {
		dto.BadgesGranted = append(dto.BadgesGranted, badgeGrantDTO{
			Code: b.Code,
			Name: b.Name,
			Tier: string(b.Tier),
			Gems: b.Tier.GemBonus(),
		})
	}
	return dto
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody decodes a JSON request body into dst. On failure it writes a 400
// response and returns false.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Failed to read request body")
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", "Request body must be valid JSON")
		return false
	}

	return true
}

// pathVarInt64 extracts a numeric path variable. On failure it writes a 400
// response and returns ok=false.
func pathVarInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || v <= 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_path_parameter", "Parameter "+name+" must be a positive integer")
		return 0, false
	}
	return v, true
}
