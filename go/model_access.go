package marketplaceserver

import (
	"time"

	catalogdomain "github.com/Apurer/course-marketplace-api/internal/domains/catalog/domain"
	entdomain "github.com/Apurer/course-marketplace-api/internal/domains/entitlements/domain"
)

type Enrollment struct {
	ID             string     `json:"id"`
	TargetKind     string     `json:"targetKind"`
	TargetID       string     `json:"targetId"`
	Status         string     `json:"status"`
	OrderCode      int64      `json:"orderCode,omitempty"`
	PaidAmount     int64      `json:"paidAmount,omitempty"`
	PaymentDate    *time.Time `json:"paymentDate,omitempty"`
	EnrolledAt     time.Time  `json:"enrolledAt"`
	LastAccessedAt *time.Time `json:"lastAccessedAt,omitempty"`
}

type AccessDecision struct {
	Allowed    bool        `json:"allowed"`
	CourseID   string      `json:"courseId"`
	Enrollment *Enrollment `json:"enrollment,omitempty"`
}

type Course struct {
	ID            string `json:"id"`
	LevelCode     string `json:"levelCode,omitempty"`
	Title         string `json:"title"`
	Price         int64  `json:"price"`
	StudentsCount int64  `json:"studentsCount"`
}

func fromEnrollment(e *entdomain.Enrollment) *Enrollment {
	if e == nil {
		return nil
	}
	return &Enrollment{
		ID:             e.ID,
		TargetKind:     string(e.Target.Kind),
		TargetID:       e.Target.ID,
		Status:         string(e.Status),
		OrderCode:      e.OrderCode,
		PaidAmount:     e.PaidAmount,
		PaymentDate:    e.PaymentDate,
		EnrolledAt:     e.EnrolledAt,
		LastAccessedAt: e.LastAccessedAt,
	}
}

func fromEnrollments(list []*entdomain.Enrollment) []Enrollment {
	out := make([]Enrollment, 0, len(list))
	for _, e := range list {
		out = append(out, *fromEnrollment(e))
	}
	return out
}

func fromCourse(c *catalogdomain.Course) Course {
	return Course{ID: c.ID, LevelCode: c.LevelCode, Title: c.Title, Price: c.Price, StudentsCount: c.StudentsCount}
}
