package httpapi

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bonus-drops/internal/database"
	"bonus-drops/internal/models"
	"bonus-drops/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var codePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)

type createBonusCodeRequest struct {
	Code               string             `json:"code" binding:"required"`
	RewardAmount       string             `json:"rewardAmount" binding:"required"`
	WageredRequirement string             `json:"wageredRequirement" binding:"required"`
	ClaimsCount        string             `json:"claimsCount" binding:"required"`
	ExpiryDuration     string             `json:"expiryDuration" binding:"required"`
	MessageType        models.MessageType `json:"messageType" binding:"required"`
	ExpiresAt          *time.Time         `json:"expiresAt" binding:"required"`
}

func (s *Server) listBonusCodes(c *gin.Context) {
	filters, err := parseFilters(c)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	s.list(c, filters)
}

func (s *Server) listActiveBonusCodes(c *gin.Context) {
	active, expired := true, false
	s.list(c, models.BonusCodeFilters{IsActive: &active, Expired: &expired})
}

func (s *Server) list(c *gin.Context, f models.BonusCodeFilters) {
	codes, err := s.store.List(c.Request.Context(), f)
	if err != nil {
		s.internalError(c, "Failed to list bonus codes", err)
		return
	}
	if codes == nil {
		codes = []models.BonusCode{}
	}
	ok(c, http.StatusOK, codes)
}

func (s *Server) getBonusCode(c *gin.Context) {
	code, err := s.store.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, database.ErrBonusCodeNotFound) {
		fail(c, http.StatusNotFound, "Bonus code not found")
		return
	}
	if err != nil {
		s.internalError(c, "Failed to get bonus code", err)
		return
	}
	ok(c, http.StatusOK, code)
}

func (s *Server) createBonusCode(c *gin.Context) {
	var req createBonusCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	now := s.now().UTC()
	if msg := req.validate(now); msg != "" {
		fail(c, http.StatusBadRequest, msg)
		return
	}

	expiresAt := req.ExpiresAt.UTC()
	code := &models.BonusCode{
		ID:                 uuid.NewString(),
		Code:               req.Code,
		RewardAmount:       strings.TrimSpace(req.RewardAmount),
		WageredRequirement: strings.TrimSpace(req.WageredRequirement),
		ClaimsCount:        strings.TrimSpace(req.ClaimsCount),
		ExpiryDuration:     strings.TrimSpace(req.ExpiryDuration),
		MessageType:        req.MessageType,
		OriginalMessage:    "Manual entry by admin: " + req.Code,
		CreatedAt:          now,
		ExpiresAt:          &expiresAt,
		IsActive:           true,
		Source:             models.SourceManual,
	}

	if err := s.store.Create(c.Request.Context(), code); err != nil {
		if errors.Is(err, database.ErrBonusCodeExists) {
			fail(c, http.StatusConflict, "Bonus code already exists")
			return
		}
		s.internalError(c, "Failed to create bonus code", err)
		return
	}

	logger.Info("Bonus code created manually",
		logger.String("id", code.ID),
		logger.String("code", code.Code),
	)
	ok(c, http.StatusCreated, code)
}

func (r createBonusCodeRequest) validate(now time.Time) string {
	switch {
	case !codePattern.MatchString(r.Code):
		return "code must be 1-50 letters, digits, hyphens or underscores"
	case !r.MessageType.Valid():
		return "messageType must be Rainbet Bonus or Rainbet Vip Bonus"
	case !r.ExpiresAt.After(now):
		return "expiresAt must be in the future"
	}
	for _, msg := range []string{
		checkReward(r.RewardAmount),
		checkWagered(r.WageredRequirement),
		checkClaims(r.ClaimsCount),
		checkExpiry(r.ExpiryDuration),
	} {
		if msg != "" {
			return msg
		}
	}
	return ""
}

func (s *Server) updateBonusCode(c *gin.Context) {
	var u models.BonusCodeUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if u.Empty() {
		fail(c, http.StatusBadRequest, "at least one field to update must be provided")
		return
	}
	if msg := validateUpdate(u); msg != "" {
		fail(c, http.StatusBadRequest, msg)
		return
	}

	id := c.Param("id")
	if err := s.store.Update(c.Request.Context(), id, u); err != nil {
		if errors.Is(err, database.ErrBonusCodeNotFound) {
			fail(c, http.StatusNotFound, "Bonus code not found")
			return
		}
		s.internalError(c, "Failed to update bonus code", err)
		return
	}

	code, err := s.store.GetByID(c.Request.Context(), id)
	if err != nil {
		s.internalError(c, "Failed to reload bonus code", err)
		return
	}
	ok(c, http.StatusOK, code)
}

func (s *Server) deleteBonusCode(c *gin.Context) {
	id := c.Param("id")
	if err := s.store.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, database.ErrBonusCodeNotFound) {
			fail(c, http.StatusNotFound, "Bonus code not found")
			return
		}
		s.internalError(c, "Failed to delete bonus code", err)
		return
	}

	logger.Info("Bonus code deleted", logger.String("id", id))
	ok(c, http.StatusOK, gin.H{"id": id})
}

func (s *Server) cleanupExpired(c *gin.Context) {
	n, err := s.store.DeactivateExpired(c.Request.Context(), s.now())
	if err != nil {
		s.internalError(c, "Failed to deactivate expired bonus codes", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"deactivated": n})
}

func (s *Server) internalError(c *gin.Context, msg string, err error) {
	logger.Error(msg,
		logger.Err(err),
		logger.String("request_id", c.GetString(requestIDKey)),
	)
	fail(c, http.StatusInternalServerError, "internal server error")
}

func parseFilters(c *gin.Context) (models.BonusCodeFilters, error) {
	var f models.BonusCodeFilters

	var err error
	if f.IsActive, err = boolQuery(c, "isActive"); err != nil {
		return f, err
	}
	if f.Expired, err = boolQuery(c, "expired"); err != nil {
		return f, err
	}

	if v := c.Query("messageType"); v != "" {
		f.MessageType = models.MessageType(v)
		if !f.MessageType.Valid() {
			return f, errors.New("invalid messageType")
		}
	}

	if v := c.Query("source"); v != "" {
		f.Source = models.Source(v)
		if !f.Source.Valid() {
			return f, errors.New("invalid source")
		}
	}

	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("invalid limit")
		}
		f.Limit = n
	}

	return f, nil
}

func boolQuery(c *gin.Context, key string) (*bool, error) {
	v, present := c.GetQuery(key)
	if !present {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, errors.New("invalid " + key)
	}
	return &b, nil
}
