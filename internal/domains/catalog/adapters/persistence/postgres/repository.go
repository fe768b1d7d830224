package postgres

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/course-marketplace-api/internal/domains/catalog/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/catalog/ports"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

var _ ports.Repository = (*Repository)(nil)

// Repository persists levels and courses in PostgreSQL using GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository wires a PostgreSQL-backed repository. Caller manages DB lifecycle and schema.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type levelRecord struct {
	Code          string `gorm:"primaryKey;column:code"`
	Title         string `gorm:"column:title"`
	Price         int64  `gorm:"column:price"`
	Published     bool   `gorm:"column:published"`
	StudentsCount int64  `gorm:"column:students_count"`
}

func (levelRecord) TableName() string { return "levels" }

type courseRecord struct {
	ID            string `gorm:"primaryKey;column:id"`
	LevelCode     string `gorm:"column:level_code"`
	Title         string `gorm:"column:title"`
	Price         int64  `gorm:"column:price"`
	Published     bool   `gorm:"column:published"`
	StudentsCount int64  `gorm:"column:students_count"`
}

func (courseRecord) TableName() string { return "courses" }

func (r *Repository) GetLevel(ctx context.Context, code string) (*domain.Level, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record levelRecord
	if err := r.db.WithContext(ctx).First(&record, "code = ?", strings.ToUpper(code)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return &domain.Level{Code: record.Code, Title: record.Title, Price: record.Price, Published: record.Published, StudentsCount: record.StudentsCount}, nil
}

func (r *Repository) GetCourse(ctx context.Context, id string) (*domain.Course, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record courseRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

func (r *Repository) ListCourses(ctx context.Context, levelCode string) ([]*domain.Course, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	query := r.db.WithContext(ctx).Order("id")
	if levelCode != "" {
		query = query.Where("level_code = ?", strings.ToUpper(levelCode))
	}
	var records []courseRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	result := make([]*domain.Course, 0, len(records))
	for i := range records {
		result = append(result, records[i].toDomain())
	}
	return result, nil
}

// SaveLevel upserts everything but the counter, which only IncrementStudents touches.
func (r *Repository) SaveLevel(ctx context.Context, level *domain.Level) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	record := levelRecord{Code: level.Code, Title: level.Title, Price: level.Price, Published: level.Published, StudentsCount: level.StudentsCount}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "price", "published"}),
	}).Create(&record).Error
}

func (r *Repository) SaveCourse(ctx context.Context, course *domain.Course) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	record := courseRecord{
		ID: course.ID, LevelCode: course.LevelCode, Title: course.Title,
		Price: course.Price, Published: course.Published, StudentsCount: course.StudentsCount,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"level_code", "title", "price", "published"}),
	}).Create(&record).Error
}

func (r *Repository) IncrementStudents(ctx context.Context, target purchase.Target, delta int64) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	var result *gorm.DB
	expr := gorm.Expr("GREATEST(students_count + ?, 0)", delta)
	switch target.Kind {
	case purchase.KindLevel:
		result = r.db.WithContext(ctx).Model(&levelRecord{}).Where("code = ?", strings.ToUpper(target.ID)).Update("students_count", expr)
	default:
		result = r.db.WithContext(ctx).Model(&courseRecord{}).Where("id = ?", target.ID).Update("students_count", expr)
	}
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r *Repository) ensureDB() error {
	if r == nil || r.db == nil {
		return errors.New("postgres repository not configured")
	}
	return nil
}

func (r courseRecord) toDomain() *domain.Course {
	return &domain.Course{
		ID:            r.ID,
		LevelCode:     r.LevelCode,
		Title:         r.Title,
		Price:         r.Price,
		Published:     r.Published,
		StudentsCount: r.StudentsCount,
	}
}
