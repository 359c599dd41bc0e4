package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	cartapp "github.com/foodcourt/storefront/internal/application/cart"
	orderapp "github.com/foodcourt/storefront/internal/application/order"
	"github.com/foodcourt/storefront/internal/domain/cart"
	"github.com/foodcourt/storefront/internal/domain/order"
	"github.com/foodcourt/storefront/internal/domain/shared"
	"github.com/foodcourt/storefront/internal/infrastructure/logger"
	"github.com/foodcourt/storefront/internal/interfaces/http/dto"
	"github.com/foodcourt/storefront/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// InvalidJSON reports a body that could not be bound
func (h *BaseHandler) InvalidJSON(c *gin.Context, err error) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, err.Error())
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// HandleError converts domain errors to HTTP responses. Anything that is not
// a domain error is logged and reported as an internal error.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		status := dto.GetHTTPStatus(code)
		message := domainErr.Message
		if status >= http.StatusInternalServerError {
			logger.GetGinLogger(c).Error("request failed", zap.String("code", domainErr.Code), zap.Error(err))
			if domainErr.Code == shared.CodePersistence {
				message = "An unexpected error occurred"
			}
		}
		h.Error(c, status, code, message)
		return
	}

	logger.GetGinLogger(c).Error("unexpected error", zap.Error(err))
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}

// requester builds the order requester from the verified token
func requester(c *gin.Context) (orderapp.Requester, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		return orderapp.Requester{}, false
	}
	if claims.IsVendor() {
		return orderapp.Requester{
			Actor:    order.ActorVendor,
			UserID:   claims.UserUUID(),
			VendorID: claims.VendorUUID(),
		}, true
	}
	return orderapp.Requester{Actor: order.ActorCustomer, UserID: claims.UserUUID()}, true
}

// ownerOf returns the cart owner of the request: the signed-in user, or the
// guest when no token was presented
func ownerOf(c *gin.Context) cart.Owner {
	if claims := middleware.GetClaims(c); claims != nil {
		if id := claims.UserUUID(); id != uuid.Nil {
			return cart.UserOwner(id)
		}
	}
	return cart.GuestOwner
}

// SessionSource resolves the cart session of a request
type SessionSource interface {
	Get(ctx context.Context, sessionID string) (*cartapp.SyncController, error)
}

// cartSession returns the cart controller of the request session, switched
// to the identity carried by the request
func cartSession(c *gin.Context, sessions SessionSource) (*cartapp.SyncController, error) {
	ctrl, err := sessions.Get(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		return nil, err
	}
	if err := ctrl.SetIdentity(c.Request.Context(), ownerOf(c)); err != nil {
		return nil, err
	}
	return ctrl, nil
}

// parseID binds the :id path parameter
func (h *BaseHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid id")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		h.BadRequest(c, "Invalid id")
		return uuid.Nil, false
	}
	return id, true
}
