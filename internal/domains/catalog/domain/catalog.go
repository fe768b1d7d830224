package domain

import (
	"errors"
	"strings"
)

var (
	ErrInvalidCode  = errors.New("level code is required")
	ErrInvalidID    = errors.New("course id is required")
	ErrInvalidPrice = errors.New("price must be greater than zero")
)

// Level is a package of courses sold together (for example B1).
type Level struct {
	Code          string
	Title         string
	Price         int64
	Published     bool
	StudentsCount int64
}

// Course belongs to at most one level and can also be sold on its own.
type Course struct {
	ID            string
	LevelCode     string
	Title         string
	Price         int64
	Published     bool
	StudentsCount int64
}

func NewLevel(code, title string, price int64, published bool) (*Level, error) {
	l := &Level{Code: strings.ToUpper(strings.TrimSpace(code)), Title: strings.TrimSpace(title), Price: price, Published: published}
	if l.Code == "" {
		return nil, ErrInvalidCode
	}
	if l.Price <= 0 {
		return nil, ErrInvalidPrice
	}
	return l, nil
}

func NewCourse(id, levelCode, title string, price int64, published bool) (*Course, error) {
	c := &Course{
		ID:        strings.TrimSpace(id),
		LevelCode: strings.ToUpper(strings.TrimSpace(levelCode)),
		Title:     strings.TrimSpace(title),
		Price:     price,
		Published: published,
	}
	if c.ID == "" {
		return nil, ErrInvalidID
	}
	if c.Price <= 0 {
		return nil, ErrInvalidPrice
	}
	return c, nil
}

// Purchasable reports whether the item can be put in a checkout.
func (l *Level) Purchasable() bool { return l != nil && l.Published && l.Price > 0 }

func (c *Course) Purchasable() bool { return c != nil && c.Published && c.Price > 0 }
