package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adminhub/internal/services"
	"github.com/charlesng35/adminhub/pkg/response"
)

// SetupHandler bootstraps the first super administrator.
type SetupHandler struct {
	setup *services.SetupService
}

func NewSetupHandler(setup *services.SetupService) *SetupHandler {
	return &SetupHandler{setup: setup}
}

// GET /api/setup/status
func (h *SetupHandler) Status(c *gin.Context) {
	initialized, err := h.setup.Initialized(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"initialized": initialized})
}

type setupRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// POST /api/setup/initialize
func (h *SetupHandler) Initialize(c *gin.Context) {
	var req setupRequest
	if !bindAndValidate(c, &req) {
		return
	}

	principal, err := h.setup.Initialize(requestContext(c), services.CreatePrincipalInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}, originFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"principal": principal})
}
