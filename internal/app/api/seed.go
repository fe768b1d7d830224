package api

import (
	"context"
	"fmt"

	catalogdomain "github.com/Apurer/course-marketplace-api/internal/domains/catalog/domain"
	catalogports "github.com/Apurer/course-marketplace-api/internal/domains/catalog/ports"
)

type seedCourse struct {
	id, title string
	price     int64
}

type seedLevel struct {
	code, title string
	price       int64
	courses     []seedCourse
}

// demoCatalog is what a fresh in-memory deployment sells. Prices are in the smallest currency unit.
var demoCatalog = []seedLevel{
	{code: "A1", title: "Beginner", price: 8000, courses: []seedCourse{
		{id: "a1-greetings", title: "Greetings and introductions", price: 3000},
		{id: "a1-numbers", title: "Numbers and time", price: 3000},
	}},
	{code: "A2", title: "Elementary", price: 9000, courses: []seedCourse{
		{id: "a2-travel", title: "Travel basics", price: 3500},
	}},
	{code: "B1", title: "Intermediate", price: 10000, courses: []seedCourse{
		{id: "b1-grammar", title: "Intermediate grammar", price: 4000},
		{id: "b1-listening", title: "Listening practice", price: 4000},
	}},
	{code: "B2", title: "Upper intermediate", price: 12000, courses: []seedCourse{
		{id: "b2-writing", title: "Essay writing", price: 5000},
	}},
}

// SeedCatalog upserts the demo levels and courses. Student counters are left alone.
func SeedCatalog(ctx context.Context, catalog catalogports.Service) error {
	for _, lvl := range demoCatalog {
		level, err := catalogdomain.NewLevel(lvl.code, lvl.title, lvl.price, true)
		if err != nil {
			return err
		}
		if err := catalog.SaveLevel(ctx, level); err != nil {
			return fmt.Errorf("seed level %s: %w", lvl.code, err)
		}
		for _, c := range lvl.courses {
			course, err := catalogdomain.NewCourse(c.id, lvl.code, c.title, c.price, true)
			if err != nil {
				return err
			}
			if err := catalog.SaveCourse(ctx, course); err != nil {
				return fmt.Errorf("seed course %s: %w", c.id, err)
			}
		}
	}
	return nil
}
