package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"

	"github.com/Mtaasisi/NEON-POS-sub042/internal/apierror"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/infra"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/middleware"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// retryAfterSeconds is advertised on 503 responses caused by storage outages.
const retryAfterSeconds = 5

var validate = validator.New()

func init() {
	// decimal.Decimal is validated as a number so min=0 and friends work on prices.
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds the JSON body and runs the validator tags.
// On failure it writes the response; the caller just returns.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid_json", "invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, apierror.New("invalid_request", err.Error()))
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Namespace()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// uuidParam parses a path parameter, writing a 400 when it is not a UUID.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid_id", "invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

func intQuery(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{service.ErrDuplicateIdentifier, http.StatusConflict, "duplicate_identifier"},
	{service.ErrOutOfStock, http.StatusConflict, "out_of_stock"},
	{service.ErrParentNotFound, http.StatusNotFound, "parent_not_found"},
	{service.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
	{service.ErrVariantNotFound, http.StatusNotFound, "variant_not_found"},
	{service.ErrUnitNotFound, http.StatusNotFound, "unit_not_found"},
	{service.ErrInvalidTransition, http.StatusUnprocessableEntity, "invalid_transition"},
	{service.ErrLastVariant, http.StatusUnprocessableEntity, "last_variant"},
	{service.ErrVariantHasStock, http.StatusUnprocessableEntity, "variant_has_stock"},
	{service.ErrInsufficientStock, http.StatusUnprocessableEntity, "insufficient_stock"},
	{service.ErrInvalidKind, http.StatusUnprocessableEntity, "invalid_kind"},
	{service.ErrInvalidInput, http.StatusBadRequest, "invalid_request"},
}

// respondError maps a service error onto the HTTP envelope. Storage errors
// are logged with the request id and reported without detail.
func respondError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrUnavailable) || errors.Is(err, infra.ErrBreakerOpen) {
		log.Warn().Err(err).Str("request_id", c.GetString(middleware.RequestIDKey)).Msg("storage unavailable")
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		c.JSON(http.StatusServiceUnavailable, apierror.New("unavailable", "storage temporarily unavailable, retry later"))
		return
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, apierror.New(m.code, err.Error()))
			return
		}
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, apierror.New("internal", "internal server error"))
}

// actor names the caller for logs and queued jobs.
func actor(c *gin.Context) string {
	if claims := middleware.GetClaims(c); claims != nil && claims.UserID != "" {
		return claims.UserID
	}
	return "anonymous"
}
