package marketplaceserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	entports "github.com/Apurer/course-marketplace-api/internal/domains/entitlements/ports"
	apierrors "github.com/Apurer/course-marketplace-api/internal/shared/errors"
)

// AccessAPI exposes the access guard and the buyer's enrollments.
type AccessAPI struct {
	service entports.Service
}

func NewAccessAPI(service entports.Service) AccessAPI {
	return AccessAPI{service: service}
}

// Get /courses/:courseId/access
// 200 when the buyer may open the course, 403 with a reason otherwise
func (api *AccessAPI) CheckAccess(c *gin.Context) {
	courseID := strings.TrimSpace(c.Param("courseId"))
	decision, err := api.service.Authorize(c.Request.Context(), buyerID(c), courseID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !decision.Allowed {
		respondProblem(c, apierrors.NewForbiddenProblem(string(decision.Reason)).WithExtension("courseId", courseID))
		return
	}
	c.JSON(http.StatusOK, AccessDecision{Allowed: true, CourseID: courseID, Enrollment: fromEnrollment(decision.Enrollment)})
}

// Get /me/entitlements
func (api *AccessAPI) ListEntitlements(c *gin.Context) {
	list, err := api.service.ListForBuyer(c.Request.Context(), buyerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fromEnrollments(list))
}

// Post /admin/enrollments/:enrollmentId/refund
func (api *AccessAPI) Refund(c *gin.Context) {
	enrollment, err := api.service.Refund(c.Request.Context(), c.Param("enrollmentId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fromEnrollment(enrollment))
}
