package marketplaceserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	userdomain "github.com/Apurer/course-marketplace-api/internal/domains/users/domain"
	userports "github.com/Apurer/course-marketplace-api/internal/domains/users/ports"
	apierrors "github.com/Apurer/course-marketplace-api/internal/shared/errors"
)

// AuthAPI handles buyer registration and sessions.
type AuthAPI struct {
	service userports.Service
}

func NewAuthAPI(service userports.Service) AuthAPI {
	return AuthAPI{service: service}
}

// Post /auth/register
func (api *AuthAPI) Register(c *gin.Context) {
	var payload RegisterRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	user, err := api.service.Register(c.Request.Context(), userports.RegisterInput{
		Email:       payload.Email,
		DisplayName: payload.DisplayName,
		Password:    payload.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fromUser(user))
}

// Post /auth/login
func (api *AuthAPI) Login(c *gin.Context) {
	var payload LoginRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	result, err := api.service.Login(c.Request.Context(), payload.Email, payload.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, LoginResponse{Token: result.Token, ExpiresAt: result.ExpiresAt, Buyer: fromUser(result.User)})
}

// Post /auth/logout
func (api *AuthAPI) Logout(c *gin.Context) {
	if p := principalFrom(c); p != nil {
		if err := api.service.Logout(c.Request.Context(), p.SessionID); err != nil {
			respondError(c, err)
			return
		}
	}
	c.Status(http.StatusNoContent)
}

func fromUser(u *userdomain.User) Buyer {
	if u == nil {
		return Buyer{}
	}
	return Buyer{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, CreatedAt: u.CreatedAt}
}
