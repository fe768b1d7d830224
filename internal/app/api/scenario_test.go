package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	entports "github.com/Apurer/course-marketplace-api/internal/domains/entitlements/ports"
	"github.com/Apurer/course-marketplace-api/internal/domains/payments/domain"
	paymentsports "github.com/Apurer/course-marketplace-api/internal/domains/payments/ports"
	userports "github.com/Apurer/course-marketplace-api/internal/domains/users/ports"
	"github.com/Apurer/course-marketplace-api/internal/platform/signature"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

const scenarioChecksum = "scenario-checksum"

type fixedCodes struct{ code int64 }

func (f fixedCodes) Next() int64 { return f.code }

type pendingGateway struct{}

func (pendingGateway) CreateSession(_ context.Context, req paymentsports.SessionRequest) (*paymentsports.Session, error) {
	return &paymentsports.Session{CheckoutURL: fmt.Sprintf("https://pay.example/%d", req.OrderCode)}, nil
}

func (pendingGateway) QueryStatus(context.Context, int64) (*paymentsports.RemoteStatus, error) {
	return &paymentsports.RemoteStatus{Status: domain.StatusPending}, nil
}

func (pendingGateway) Cancel(context.Context, int64, string) error { return nil }

type recordingNotifier struct {
	mu      sync.Mutex
	notices []entports.GrantedNotice
}

func (n *recordingNotifier) NotifyGranted(_ context.Context, notice entports.GrantedNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return nil
}

func (n *recordingNotifier) all() []entports.GrantedNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]entports.GrantedNotice(nil), n.notices...)
}

func buildScenarioApp(t *testing.T, notifier entports.Notifier) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := Config{
		JWTSecret: "scenario-secret",
		Gateway:   GatewayConfig{ChecksumKey: scenarioChecksum},
	}
	app, err := Build(context.Background(), cfg, Deps{
		Gateway:  pendingGateway{},
		Notifier: notifier,
		Watcher:  paymentsports.NoopSettlementWatcher,
		Codes:    fixedCodes{code: 1234567890},
	})
	require.NoError(t, err)
	t.Cleanup(app.Wait)
	return app
}

func registerBuyer(t *testing.T, app *App, email string) (string, string) {
	t.Helper()
	ctx := context.Background()
	user, err := app.Users.Register(ctx, userports.RegisterInput{Email: email, DisplayName: "Mai", Password: "correct horse"})
	require.NoError(t, err)
	login, err := app.Users.Login(ctx, email, "correct horse")
	require.NoError(t, err)
	return user.ID, login.Token
}

func serve(t *testing.T, app *App, method, path, token string, body []byte, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, req)
	return w
}

func TestScenario_LevelPurchaseSettledByWebhook(t *testing.T) {
	notifier := &recordingNotifier{}
	app := buildScenarioApp(t, notifier)
	ctx := context.Background()
	buyer, token := registerBuyer(t, app, "mai@example.com")

	w := serve(t, app, http.MethodPost, "/payments/sessions", token, []byte(`{"targetKind":"level","targetId":"B1"}`))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var session struct {
		OrderCode int64 `json:"orderCode"`
		Amount    int64 `json:"amount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	require.Equal(t, int64(1234567890), session.OrderCode)
	require.Equal(t, int64(10000), session.Amount)

	body := []byte(`{"orderCode":1234567890,"status":"PAID","amount":10000,"reference":"FT-1"}`)
	sig := signature.New(scenarioChecksum).Sign(body)
	for i := 0; i < 2; i++ {
		w = serve(t, app, http.MethodPost, "/payments/webhook", "", body, "X-Payment-Signature", sig)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	app.Wait()

	order, err := app.Payments.GetOrder(ctx, 1234567890, buyer)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPaid, order.Status)
	require.NotNil(t, order.GrantedAt)

	enrollments, err := app.Entitlements.ListForBuyer(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	require.Equal(t, purchase.Level("B1"), enrollments[0].Target)
	require.Equal(t, int64(1234567890), enrollments[0].OrderCode)

	level, err := app.Catalog.GetLevel(ctx, "B1")
	require.NoError(t, err)
	require.Equal(t, int64(1), level.StudentsCount)

	notices := notifier.all()
	require.Len(t, notices, 1)
	require.Equal(t, "mai@example.com", notices[0].Email)
	require.Equal(t, int64(1234567890), notices[0].OrderCode)
}

func TestScenario_AccessDependsOnlyOnEntitlements(t *testing.T) {
	app := buildScenarioApp(t, &recordingNotifier{})
	_, payer := registerBuyer(t, app, "payer@example.com")
	_, other := registerBuyer(t, app, "other@example.com")

	w := serve(t, app, http.MethodPost, "/payments/sessions", payer, []byte(`{"targetKind":"level","targetId":"B1"}`))
	require.Equal(t, http.StatusCreated, w.Code)
	body := []byte(`{"orderCode":1234567890,"status":"PAID","amount":10000}`)
	w = serve(t, app, http.MethodPost, "/payments/webhook", "", body, "X-Payment-Signature", signature.New(scenarioChecksum).Sign(body))
	require.Equal(t, http.StatusOK, w.Code)

	cases := []struct {
		token, course string
		want          int
	}{
		{payer, "b1-grammar", http.StatusOK},
		{payer, "b1-listening", http.StatusOK},
		{payer, "a1-greetings", http.StatusForbidden},
		{other, "b1-grammar", http.StatusForbidden},
	}
	for _, tc := range cases {
		w := serve(t, app, http.MethodGet, "/courses/"+tc.course+"/access", tc.token, nil)
		require.Equal(t, tc.want, w.Code, tc.course)
	}
}

func TestScenario_LowerCaseLevelCodeGrantsTheLevel(t *testing.T) {
	app := buildScenarioApp(t, &recordingNotifier{})
	ctx := context.Background()
	buyer, token := registerBuyer(t, app, "lan@example.com")

	w := serve(t, app, http.MethodPost, "/payments/sessions", token, []byte(`{"targetKind":"level","targetId":"b1"}`))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := []byte(`{"orderCode":1234567890,"status":"PAID","amount":10000}`)
	w = serve(t, app, http.MethodPost, "/payments/webhook", "", body, "X-Payment-Signature", signature.New(scenarioChecksum).Sign(body))
	require.Equal(t, http.StatusOK, w.Code)
	app.Wait()

	enrollments, err := app.Entitlements.ListForBuyer(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	require.Equal(t, purchase.Level("B1"), enrollments[0].Target)

	w = serve(t, app, http.MethodGet, "/courses/b1-grammar/access", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// the upper-case spelling is the same purchase
	w = serve(t, app, http.MethodPost, "/payments/sessions", token, []byte(`{"targetKind":"level","targetId":"B1"}`))
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}
