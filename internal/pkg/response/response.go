package response

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type ErrorBody struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func Error(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, errorEnvelope{Error: ErrorBody{
		StatusCode: status,
		Name:       ErrorName(status),
		Message:    message,
	}})
}

// ErrorName turns a status into an error class name, 422 becomes
// "UnprocessableEntityError".
func ErrorName(status int) string {
	name := strings.ReplaceAll(http.StatusText(status), " ", "")
	name = strings.ReplaceAll(name, "-", "")
	if name == "" {
		name = "Unknown"
	}
	if !strings.HasSuffix(name, "Error") {
		name += "Error"
	}
	return name
}
