package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"vn.io.arda/onboarding/internal/application"
	"vn.io.arda/onboarding/internal/domain"
)

// Handler holds all HTTP handler methods.
type Handler struct {
	svc      *application.Service
	validate *validator.Validate
}

// NewHandler creates a new Handler.
func NewHandler(svc *application.Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

// --- Customers ---

// ListCustomers GET /api/customers
func (h *Handler) ListCustomers(c echo.Context) error {
	customers, err := h.svc.ListCustomers(c.Request().Context(), parseBoolQuery(c, "refresh"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"data": customers})
}

// ListCustomerInternalUsers GET /api/customers/:id/internal-users
func (h *Handler) ListCustomerInternalUsers(c echo.Context) error {
	users, err := h.svc.ListInternalUsersForCustomer(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"data": users})
}

// --- Tenants ---

// ListTenants GET /api/instances/:id/tenants
func (h *Handler) ListTenants(c echo.Context) error {
	ctx := c.Request().Context()
	inst, err := h.svc.Instance(ctx, c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	tenants, err := h.svc.ListTenants(ctx, inst, parseBoolQuery(c, "refresh"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"data": tenants})
}

// ResolveTenant GET /api/instances/:id/tenants/resolve?match=
func (h *Handler) ResolveTenant(c echo.Context) error {
	ctx := c.Request().Context()
	inst, err := h.svc.Instance(ctx, c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	rec, err := h.svc.ResolveTenant(ctx, inst, c.QueryParam("match"))
	if err != nil {
		return toHTTPError(err)
	}
	if rec == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no tenant matches")
	}
	return c.JSON(http.StatusOK, rec)
}

// InvalidateTenantCache DELETE /api/instances/:id/tenant-cache
func (h *Handler) InvalidateTenantCache(c echo.Context) error {
	if err := h.svc.InvalidateTenantCache(c.Request().Context(), c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Internal users ---

// ListInternalUsers GET /api/internal-users
func (h *Handler) ListInternalUsers(c echo.Context) error {
	var in application.ListInternalUsersInput
	if err := h.bind(c, &in); err != nil {
		return err
	}

	ctx := c.Request().Context()
	inst, err := h.svc.Instance(ctx, in.InstanceID)
	if err != nil {
		return toHTTPError(err)
	}
	users, err := h.svc.ListInternalUsers(ctx, inst, in.TenantID, in.Subscriber, in.AccountType, in.ForceRefresh)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"data": users})
}

// CreateInternalUser POST /api/internal-users
func (h *Handler) CreateInternalUser(c echo.Context) error {
	var in application.CreateInternalUserInput
	if err := h.bind(c, &in); err != nil {
		return err
	}
	user, err := h.svc.CreateInternalUser(c.Request().Context(), in)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, user)
}

// UpdateInternalUserPassword POST /api/internal-users/password
func (h *Handler) UpdateInternalUserPassword(c echo.Context) error {
	var in application.UpdatePasswordInput
	if err := h.bind(c, &in); err != nil {
		return err
	}
	if err := h.svc.UpdateInternalUserPassword(c.Request().Context(), in); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// InvalidateInternalUserCache DELETE /api/internal-users/cache
func (h *Handler) InvalidateInternalUserCache(c echo.Context) error {
	key := domain.InternalUserKey{
		InstanceID:  c.QueryParam("instance_id"),
		TenantID:    c.QueryParam("tenant_id"),
		Subscriber:  c.QueryParam("subscriber"),
		AccountType: c.QueryParam("account_type"),
	}
	if err := h.svc.InvalidateInternalUserCache(c.Request().Context(), key); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Healthcheck ---

// Health GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"status": "ok"})
}

// --- Helpers ---

// bind decodes the request into dst and runs the struct validation tags.
func (h *Handler) bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if err := h.validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			fields := make(map[string]string, len(ve))
			for _, fe := range ve {
				fields[fe.Field()] = fe.Tag()
			}
			return echo.NewHTTPError(http.StatusBadRequest, map[string]any{
				"message": "validation failed",
				"errors":  fields,
			})
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// toHTTPError maps service errors onto status codes.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDirectoryUnavailable):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		return echo.ErrInternalServerError
	}
}

func parseBoolQuery(c echo.Context, key string) bool {
	v, err := strconv.ParseBool(c.QueryParam(key))
	return err == nil && v
}
