package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/funnelkit/qrstock/internal/inventory"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return field.Name
			}
			return name
		})
	}
}

// pageQuery is the shared paging query for list endpoints.
type pageQuery struct {
	Page  int `form:"page,default=1"`   // Page number.
	Limit int `form:"limit,default=50"` // Page size.
}

func (q *pageQuery) normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 200 {
		q.Limit = 50
	}
}

func (q pageQuery) offset() int {
	return (q.Page - 1) * q.Limit
}

// parseUintParam trims and parses a uint64 from a string parameter.
func parseUintParam(value string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(value), 10, 64)
}

// parseIDParam reads the :id route parameter, replying 400 when it is invalid.
func parseIDParam(c *gin.Context) (uint64, bool) {
	id, errParse := parseUintParam(c.Param("id"))
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// parseOptionalUintQuery parses an optional numeric query filter.
func parseOptionalUintQuery(c *gin.Context, name string) (*uint64, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	id, errParse := parseUintParam(raw)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return nil, false
	}
	return &id, true
}

// readAdminIDFromContext returns the admin ID from request context.
func readAdminIDFromContext(c *gin.Context) (uint64, bool) {
	value, ok := c.Get("adminID")
	if !ok {
		return 0, false
	}
	id, ok := value.(uint64)
	return id, ok
}

// actingAdmin returns the authenticated admin ID for audit columns.
func actingAdmin(c *gin.Context) *uint64 {
	id, ok := readAdminIDFromContext(c)
	if !ok {
		return nil
	}
	return &id
}

// bindJSON binds and validates a request body, replying 400 on failure.
func bindJSON(c *gin.Context, dest any) bool {
	errBind := c.ShouldBindJSON(dest)
	if errBind == nil {
		return true
	}
	var validationErrors validator.ValidationErrors
	if errors.As(errBind, &validationErrors) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(validationErrors)})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
	return false
}

// validationMessage flattens field errors into one message.
func validationMessage(validationErrors validator.ValidationErrors) string {
	parts := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		switch fe.Tag() {
		case "required":
			parts = append(parts, "missing "+fe.Field())
		case "min", "gte":
			parts = append(parts, fe.Field()+" must be at least "+fe.Param())
		case "max", "lte":
			parts = append(parts, fe.Field()+" must be at most "+fe.Param())
		case "oneof":
			parts = append(parts, fe.Field()+" must be one of "+fe.Param())
		default:
			parts = append(parts, "invalid "+fe.Field())
		}
	}
	return strings.Join(parts, "; ")
}

// respondServiceError maps inventory errors onto HTTP statuses. Unclassified
// errors are logged and reported with the generic fallback message.
func respondServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, inventory.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": trimSentinel(err, inventory.ErrValidation)})
	case errors.Is(err, inventory.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": trimSentinel(err, inventory.ErrNotFound) + " not found"})
	case errors.Is(err, inventory.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": trimSentinel(err, inventory.ErrConflict)})
	default:
		log.WithError(err).WithField("path", c.FullPath()).Error(fallback)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func trimSentinel(err, sentinel error) string {
	msg := err.Error()
	if trimmed := strings.TrimPrefix(msg, sentinel.Error()+": "); trimmed != "" {
		return trimmed
	}
	return msg
}
