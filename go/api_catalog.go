package marketplaceserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	catalogports "github.com/Apurer/course-marketplace-api/internal/domains/catalog/ports"
)

// CatalogAPI lists what can be bought.
type CatalogAPI struct {
	service catalogports.Service
}

func NewCatalogAPI(service catalogports.Service) CatalogAPI {
	return CatalogAPI{service: service}
}

// Get /courses
// Optional ?level= narrows the list to one level
func (api *CatalogAPI) ListCourses(c *gin.Context) {
	courses, err := api.service.ListCourses(c.Request.Context(), c.Query("level"))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]Course, 0, len(courses))
	for _, course := range courses {
		if course.Published {
			out = append(out, fromCourse(course))
		}
	}
	c.JSON(http.StatusOK, out)
}

// Get /courses/:courseId
func (api *CatalogAPI) GetCourse(c *gin.Context) {
	course, err := api.service.GetCourse(c.Request.Context(), c.Param("courseId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fromCourse(course))
}
