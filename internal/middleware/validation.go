package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/temcen/gamerec/internal/validation"
)

// ValidationMiddleware validates admin payloads against JSON schemas and
// query parameters against their bounds.
type ValidationMiddleware struct {
	validator *validation.SchemaValidator
	maxK      int
	maxN      int
}

// NewValidationMiddleware creates a new validation middleware instance
func NewValidationMiddleware(validator *validation.SchemaValidator, maxK, maxN int) *ValidationMiddleware {
	return &ValidationMiddleware{
		validator: validator,
		maxK:      maxK,
		maxN:      maxN,
	}
}

// ValidateSnapshot validates rebuild payloads. An empty body is allowed and
// means "load the snapshot from the database".
func (vm *ValidationMiddleware) ValidateSnapshot() gin.HandlerFunc {
	return vm.validateRequestBody(validation.SnapshotSchema)
}

// ValidateRefreshRequest validates refresh payloads. The body is optional.
func (vm *ValidationMiddleware) ValidateRefreshRequest() gin.HandlerFunc {
	return vm.validateRequestBody(validation.RefreshRequestSchema)
}

func (vm *ValidationMiddleware) validateRequestBody(schemaName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil {
			c.Next()
			return
		}

		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			vm.sendValidationError(c, "BODY_READ_ERROR", "Failed to read request body", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}

		// Restore request body for downstream handlers
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		if len(bytes.TrimSpace(bodyBytes)) == 0 {
			c.Next()
			return
		}

		if !json.Valid(bodyBytes) {
			vm.sendValidationError(c, "INVALID_JSON", "Request body must be valid JSON", nil)
			return
		}

		result := vm.validator.ValidateJSONString(schemaName, string(bodyBytes))
		if !result.Valid {
			apiError := result.ToAPIError()
			if errorObj, ok := apiError["error"].(map[string]interface{}); ok {
				errorObj["timestamp"] = time.Now().UTC().Format(time.RFC3339)
				errorObj["requestId"] = c.GetString(requestIDKey)
				errorObj["path"] = c.Request.URL.Path
				errorObj["method"] = c.Request.Method
			}

			c.AbortWithStatusJSON(http.StatusBadRequest, apiError)
			return
		}

		c.Next()
	}
}

// ValidateQueryParams checks the k and n list sizes before they reach handlers.
func (vm *ValidationMiddleware) ValidateQueryParams() gin.HandlerFunc {
	return func(c *gin.Context) {
		errors := make([]validation.ValidationError, 0)

		if k := c.Query("k"); k != "" && !isValidPositiveInt(k, vm.maxK) {
			errors = append(errors, validation.ValidationError{
				Field:   "k",
				Message: "k must be a positive integer no greater than " + strconv.Itoa(vm.maxK),
				Code:    "INVALID_PARAMETER",
				Value:   k,
			})
		}

		if n := c.Query("n"); n != "" && !isValidPositiveInt(n, vm.maxN) {
			errors = append(errors, validation.ValidationError{
				Field:   "n",
				Message: "n must be a positive integer no greater than " + strconv.Itoa(vm.maxN),
				Code:    "INVALID_PARAMETER",
				Value:   n,
			})
		}

		if len(errors) > 0 {
			vm.sendValidationErrors(c, errors)
			return
		}

		c.Next()
	}
}

func isValidPositiveInt(value string, max int) bool {
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return false
	}
	return max <= 0 || parsed <= max
}

// Error response helpers
func (vm *ValidationMiddleware) sendValidationError(c *gin.Context, code, message string, details map[string]interface{}) {
	errorResponse := map[string]interface{}{
		"error": map[string]interface{}{
			"code":      code,
			"message":   message,
			"details":   details,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"requestId": c.GetString(requestIDKey),
			"path":      c.Request.URL.Path,
			"method":    c.Request.Method,
		},
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse)
}

func (vm *ValidationMiddleware) sendValidationErrors(c *gin.Context, errors []validation.ValidationError) {
	errorDetails := make(map[string]interface{})
	errorDetails["validationErrors"] = errors

	fieldErrors := make(map[string][]string)
	for _, err := range errors {
		if err.Field != "" {
			fieldErrors[err.Field] = append(fieldErrors[err.Field], err.Message)
		}
	}

	if len(fieldErrors) > 0 {
		errorDetails["fieldErrors"] = fieldErrors
	}

	errorResponse := map[string]interface{}{
		"error": map[string]interface{}{
			"code":      "VALIDATION_ERROR",
			"message":   "Request validation failed",
			"details":   errorDetails,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"requestId": c.GetString(requestIDKey),
			"path":      c.Request.URL.Path,
			"method":    c.Request.Method,
		},
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse)
}
