package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	profileUC "github.com/khoahotran/linkgraph/internal/application/usecase/profile"
	"github.com/khoahotran/linkgraph/pkg/apperror"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

type ProfileHandler struct {
	profileUseCase *profileUC.ProfileUseCase
	logger         logger.Logger
}

func NewProfileHandler(uc *profileUC.ProfileUseCase, log logger.Logger) *ProfileHandler {
	return &ProfileHandler{
		profileUseCase: uc,
		logger:         log,
	}
}

func (h *ProfileHandler) GetProfile(c *gin.Context) {
	profileID, ok := GetProfileIDFromGinContext(c)
	if !ok {
		c.Error(apperror.NewPermissionDenied("profileID not found in context"))
		return
	}
	h.render(c, profileID)
}

// GetProfileByID shows any directory member, shadows included.
func (h *ProfileHandler) GetProfileByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperror.NewInvalidInput("invalid profile ID format", err))
		return
	}
	h.render(c, id)
}

func (h *ProfileHandler) render(c *gin.Context, id uuid.UUID) {
	output, err := h.profileUseCase.ExecuteGetProfile(c.Request.Context(), profileUC.GetProfileInput{ProfileID: id})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ToProfileDTO(output))
}

func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	profileID, ok := GetProfileIDFromGinContext(c)
	if !ok {
		c.Error(apperror.NewPermissionDenied("profileID not found in context"))
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.NewInvalidInput("invalid JSON body for profile update", err))
		return
	}

	if _, err := h.profileUseCase.ExecuteUpdateProfile(c.Request.Context(), req.ToInput(profileID)); err != nil {
		c.Error(err)
		return
	}
	h.render(c, profileID)
}

func (h *ProfileHandler) ListConnections(c *gin.Context) {
	profileID, ok := GetProfileIDFromGinContext(c)
	if !ok {
		c.Error(apperror.NewPermissionDenied("profileID not found in context"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	output, err := h.profileUseCase.ExecuteListConnections(c.Request.Context(), profileUC.ListConnectionsInput{
		ProfileID: profileID,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		c.Error(err)
		return
	}

	dto := ConnectionListDTO{
		Connections: make([]ConnectionDTO, len(output.Connections)),
		Total:       output.Total,
		Limit:       limit,
		Offset:      offset,
	}
	for i, conn := range output.Connections {
		dto.Connections[i] = ConnectionDTO{
			Profile:     ToProfileSummaryDTO(&conn.Profile),
			ConnectedOn: conn.ConnectedOn,
		}
	}
	c.JSON(http.StatusOK, dto)
}
