package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Apurer/course-marketplace-api/internal/domains/payments/adapters/memory"
	"github.com/Apurer/course-marketplace-api/internal/domains/payments/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/payments/ports"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

const testSignature = "valid-signature"

type fakeVerifier struct{}

func (fakeVerifier) Verify(_ []byte, signature string) bool { return signature == testSignature }

type fakeGateway struct {
	mu         sync.Mutex
	status     domain.Status
	amountPaid int64
	queryErr   error
	createErr  error
	cancelErr  error
	queries    int
	cancels    []int64
}

func (g *fakeGateway) CreateSession(_ context.Context, req ports.SessionRequest) (*ports.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &ports.Session{CheckoutURL: "https://pay.example/checkout/" + req.Description, QRPayload: "qr-" + req.Description}, nil
}

func (g *fakeGateway) QueryStatus(_ context.Context, code int64) (*ports.RemoteStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queries++
	if g.queryErr != nil {
		return nil, g.queryErr
	}
	status := g.status
	if status == "" {
		status = domain.StatusPending
	}
	return &ports.RemoteStatus{Status: status, AmountPaid: g.amountPaid, Reference: "FT-1"}, nil
}

func (g *fakeGateway) Cancel(_ context.Context, code int64, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancelErr != nil {
		return g.cancelErr
	}
	g.cancels = append(g.cancels, code)
	return nil
}

func (g *fakeGateway) set(status domain.Status, amountPaid int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = status
	g.amountPaid = amountPaid
}

func (g *fakeGateway) queryCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queries
}

func (g *fakeGateway) cancelled() []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int64(nil), g.cancels...)
}

// fakeGranter mirrors the insert-or-return contract of the real granter.
type fakeGranter struct {
	mu      sync.Mutex
	granted map[string]ports.GrantRequest
	calls   int
	created int
	failN   int
}

func newFakeGranter() *fakeGranter {
	return &fakeGranter{granted: map[string]ports.GrantRequest{}}
}

func (g *fakeGranter) Grant(_ context.Context, req ports.GrantRequest) (*ports.GrantResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.failN > 0 {
		g.failN--
		return nil, errors.New("enrollment store offline")
	}
	key := req.BuyerID + "|" + req.Target.String()
	if _, ok := g.granted[key]; ok {
		return &ports.GrantResult{Created: false, EntitlementOf: req.Target}, nil
	}
	g.granted[key] = req
	g.created++
	return &ports.GrantResult{Created: true, EntitlementOf: req.Target}, nil
}

func (g *fakeGranter) HasEntitlement(_ context.Context, buyerID string, target purchase.Target) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.granted[buyerID+"|"+target.String()]
	return ok, nil
}

func (g *fakeGranter) createdCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.created
}

type fakePricing struct{}

func (fakePricing) Quote(_ context.Context, target purchase.Target) (*ports.Offer, error) {
	if target.ID == "retired" {
		return nil, ports.ErrTargetUnavailable
	}
	return &ports.Offer{Target: target, Title: "Level " + target.ID, Amount: 10000}, nil
}

// scriptedCodes hands out the given codes, then counts upward.
type scriptedCodes struct {
	mu     sync.Mutex
	script []int64
	next   int64
}

func (c *scriptedCodes) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.script) > 0 {
		code := c.script[0]
		c.script = c.script[1:]
		return code
	}
	c.next++
	return c.next
}

// countingRepo records repository reads so tests can assert nothing was touched, and fails
// AttachSession while attachErr is set.
type countingRepo struct {
	*memory.Repository
	reads     atomic.Int32
	attachErr error
}

func (r *countingRepo) AttachSession(ctx context.Context, code int64, checkoutURL, qrPayload string) error {
	if r.attachErr != nil {
		return r.attachErr
	}
	return r.Repository.AttachSession(ctx, code, checkoutURL, qrPayload)
}

func (r *countingRepo) GetByCode(ctx context.Context, code int64) (*domain.Order, error) {
	r.reads.Add(1)
	return r.Repository.GetByCode(ctx, code)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	repo    *countingRepo
	events  *memory.EventLog
	gateway *fakeGateway
	granter *fakeGranter
	codes   *scriptedCodes
	clock   *clock
	service *Service
}

func newHarness() *harness {
	h := &harness{
		repo:    &countingRepo{Repository: memory.NewRepository()},
		events:  memory.NewEventLog(),
		gateway: &fakeGateway{},
		granter: newFakeGranter(),
		codes:   &scriptedCodes{next: 1000},
		clock:   newClock(),
	}
	reconciler := NewReconciler(h.repo, h.gateway, fakeVerifier{}, h.granter,
		WithEventLog(h.events), WithClock(h.clock.Now))
	registry := NewRegistry(h.repo, h.codes, 15*time.Minute)
	h.service = NewService(reconciler, registry, fakePricing{}, nil)
	return h
}

// seed stores a PENDING order directly, bypassing the gateway.
func (h *harness) seed(code int64, buyerID string, target purchase.Target, amount int64) *domain.Order {
	order, err := domain.NewOrder(code, buyerID, target, amount, h.clock.Now(), 15*time.Minute)
	if err != nil {
		panic(err)
	}
	created, err := h.repo.Create(context.Background(), order)
	if err != nil {
		panic(err)
	}
	return created
}
