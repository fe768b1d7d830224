package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Apurer/course-marketplace-api/internal/domains/entitlements/adapters/memory"
	"github.com/Apurer/course-marketplace-api/internal/domains/entitlements/ports"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

type fakeCatalog struct {
	mu        sync.Mutex
	courses   map[string]ports.CourseRef
	students  map[purchase.Target]int64
	adjustErr error
	lookupErr error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		courses: map[string]ports.CourseRef{
			"b1-grammar": {ID: "b1-grammar", LevelCode: "B1", Published: true},
			"b1-retired": {ID: "b1-retired", LevelCode: "B1", Published: false},
			"standalone": {ID: "standalone", Published: true},
		},
		students: map[purchase.Target]int64{},
	}
}

func (c *fakeCatalog) LookupCourse(_ context.Context, id string) (*ports.CourseRef, error) {
	if c.lookupErr != nil {
		return nil, c.lookupErr
	}
	ref, ok := c.courses[id]
	if !ok {
		return nil, ports.ErrUnknownTarget
	}
	return &ref, nil
}

func (c *fakeCatalog) AdjustStudents(_ context.Context, target purchase.Target, delta int64) error {
	if c.adjustErr != nil {
		return c.adjustErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.students[target] += delta
	return nil
}

func (c *fakeCatalog) count(target purchase.Target) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.students[target]
}

type fakeDirectory struct{}

func (fakeDirectory) Contact(_ context.Context, buyerID string) (*ports.Contact, error) {
	if buyerID == "ghost" {
		return nil, errors.New("no such user")
	}
	return &ports.Contact{Email: buyerID + "@example.com", DisplayName: buyerID}, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []ports.GrantedNotice
	err     error
}

func (n *recordingNotifier) NotifyGranted(_ context.Context, notice ports.GrantedNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return n.err
}

func (n *recordingNotifier) sent() []ports.GrantedNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ports.GrantedNotice(nil), n.notices...)
}

// touchFailingRepo fails access timestamps only.
type touchFailingRepo struct {
	*memory.Repository
}

func (touchFailingRepo) Touch(context.Context, string, time.Time) error {
	return errors.New("database unavailable")
}

type harness struct {
	svc      *Service
	repo     *memory.Repository
	catalog  *fakeCatalog
	notifier *recordingNotifier
	now      time.Time
}

func newHarness(opts ...Option) *harness {
	var seq atomic.Int64
	h := &harness{
		repo:     memory.NewRepository(),
		catalog:  newFakeCatalog(),
		notifier: &recordingNotifier{},
		now:      time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	base := []Option{
		WithNotifier(h.notifier),
		WithDirectory(fakeDirectory{}),
		WithClock(func() time.Time { return h.now }),
		WithIDGenerator(func() string { return fmt.Sprintf("enr-%d", seq.Add(1)) }),
	}
	h.svc = NewService(h.repo, h.catalog, append(base, opts...)...)
	return h
}

func grantInput(buyer string, target purchase.Target, code int64) ports.GrantInput {
	return ports.GrantInput{
		BuyerID:   buyer,
		Target:    target,
		OrderCode: code,
		Amount:    10000,
		PaidAt:    time.Date(2025, 3, 1, 9, 59, 0, 0, time.UTC),
	}
}
