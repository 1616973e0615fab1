package app

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/lostmedia/interaction-service/internal/logger"
	"github.com/lostmedia/interaction-service/internal/middleware"
	"github.com/lostmedia/interaction-service/internal/service"
	"github.com/lostmedia/interaction-service/internal/util"
	"github.com/lostmedia/interaction-service/internal/validate"

	"github.com/gin-gonic/gin"
)

const msgInternal = "Internal server error"

// respondError writes the envelope for a service failure. Only *service.Error messages reach
// the client; anything else is logged and reported as an opaque 500.
func respondError(c *gin.Context, err error) {
	var se *service.Error
	if !errors.As(err, &se) {
		logger.For(c.Request.Context()).WithError(err).Error("unclassified error")
		util.InternalServerError(c, msgInternal)
		return
	}

	status := se.Kind.HTTPStatus()
	log := logger.For(c.Request.Context()).WithError(se.Err).WithField("kind", se.Kind.String())
	switch se.Kind {
	case service.KindInternal:
		log.Error(se.Message)
	case service.KindDependencyUnavailable:
		log.Warn(se.Message)
	}

	var details interface{}
	var invalid validate.ErrInvalidInput
	if se.Kind == service.KindInvalidInput && errors.As(err, &invalid) {
		fields := make(map[string]string, len(invalid.Fields))
		for i, f := range invalid.Fields {
			fields[f] = invalid.Reasons[i]
		}
		details = fields
	} else if se.Kind == service.KindInvalidInput && se.Err != nil {
		details = se.Err.Error()
	}
	util.ErrorResponse(c, status, se.Message, details)
}

// requireUser returns the authenticated caller or writes a 401.
func requireUser(c *gin.Context) (string, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		util.Unauthorized(c, "User not authenticated")
		return "", false
	}
	return userID, true
}

// pageQuery reads ?page and ?limit, defaulting to the first page of DefaultPageSize.
// Range checks happen in the service.
func pageQuery(c *gin.Context) (service.PageQuery, bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(service.DefaultPage)))
	if err != nil {
		util.BadRequest(c, "page must be an integer")
		return service.PageQuery{}, false
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(service.DefaultPageSize)))
	if err != nil {
		util.BadRequest(c, "limit must be an integer")
		return service.PageQuery{}, false
	}
	return service.PageQuery{Page: page, Limit: limit}, true
}

func health(checks map[string]func(c *gin.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		results := make(gin.H, len(checks))
		for name, check := range checks {
			if err := check(c); err != nil {
				logger.For(c.Request.Context()).WithError(err).WithField("check", name).Warn("health check failed")
				results[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "up"
		}
		results["status"] = "ok"
		if status != http.StatusOK {
			results["status"] = "degraded"
		}
		c.JSON(status, results)
	}
}
