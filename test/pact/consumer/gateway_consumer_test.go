//go:build pact
// +build pact

package consumer_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	pactconsumer "github.com/pact-foundation/pact-go/v2/consumer"
	pactlog "github.com/pact-foundation/pact-go/v2/log"
	"github.com/pact-foundation/pact-go/v2/matchers"
	"github.com/stretchr/testify/require"

	gatewayclient "github.com/Apurer/course-marketplace-api/internal/clients/http/gateway"
	pacttest "github.com/Apurer/course-marketplace-api/test/pact"
)

func TestPaymentGatewayContract(t *testing.T) {
	pactlog.SetLogLevel("INFO")

	pact, err := pactconsumer.NewV2Pact(pactconsumer.MockHTTPProviderConfig{
		Consumer: pacttest.GatewayConsumerName,
		Provider: pacttest.GatewayProviderName,
		PactDir:  pacttest.PactDir(t),
		LogDir:   pacttest.LogDir(t),
	})
	require.NoError(t, err)

	jsonContentType := matchers.Regex("application/json", "application\\/json(?:;\\s?charset=utf-8)?")
	credentials := func(b *pactconsumer.V2RequestBuilder) {
		b.Header("x-client-id", matchers.S(pacttest.ClientID))
		b.Header("x-api-key", matchers.S(pacttest.APIKey))
	}

	pact.AddInteraction().
		UponReceiving("a request to open a payment link").
		WithRequest(http.MethodPost, "/v2/payment-requests", func(b *pactconsumer.V2RequestBuilder) {
			credentials(b)
			b.Header("Content-Type", matchers.S("application/json"))
			b.JSONBody(matchers.Map{
				"orderCode":   matchers.Like(pacttest.OrderCode),
				"amount":      matchers.Like(pacttest.OrderAmount),
				"description": matchers.Like(pacttest.OrderReferenceLevel),
				"returnUrl":   matchers.S(pacttest.ReturnURL),
				"cancelUrl":   matchers.S(pacttest.CancelURL),
				"signature":   matchers.Term("9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08", "^[0-9a-f]{64}$"),
			})
		}).
		WillRespondWith(http.StatusOK, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(matchers.Map{
				"code": matchers.S(gatewayclient.CodeSuccess),
				"desc": matchers.Like("success"),
				"data": matchers.Map{
					"orderCode":     matchers.Like(pacttest.OrderCode),
					"amount":        matchers.Like(pacttest.OrderAmount),
					"description":   matchers.Like(pacttest.OrderReferenceLevel),
					"paymentLinkId": matchers.Like(pacttest.ExampleLinkID),
					"status":        matchers.Term(gatewayclient.StatusPending, "PENDING|PROCESSING"),
					"checkoutUrl":   matchers.Like(pacttest.ExampleCheckout),
					"qrCode":        matchers.Like("00020101021238570010A000000727"),
				},
			})
		})

	pact.AddInteraction().
		Given(pacttest.StateOrderPaid).
		UponReceiving("a request for a paid order").
		WithRequest(http.MethodGet, fmt.Sprintf("/v2/payment-requests/%d", pacttest.OrderCode), credentials).
		WillRespondWith(http.StatusOK, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(matchers.Map{
				"code": matchers.S(gatewayclient.CodeSuccess),
				"desc": matchers.Like("success"),
				"data": matchers.Map{
					"id":              matchers.Like(pacttest.ExampleLinkID),
					"orderCode":       matchers.Like(pacttest.OrderCode),
					"amount":          matchers.Like(pacttest.OrderAmount),
					"amountPaid":      matchers.Like(pacttest.OrderAmount),
					"amountRemaining": matchers.Like(0),
					"status":          matchers.S(gatewayclient.StatusPaid),
					"transactions": matchers.EachLike(matchers.Map{
						"reference":           matchers.Like(pacttest.ExampleReference),
						"amount":              matchers.Like(pacttest.OrderAmount),
						"transactionDateTime": matchers.Like("2024-06-12T10:00:00Z"),
					}, 1),
				},
			})
		})

	pact.AddInteraction().
		Given(pacttest.StateOrderUnknown).
		UponReceiving("a request for an unknown order").
		WithRequest(http.MethodGet, fmt.Sprintf("/v2/payment-requests/%d", pacttest.UnknownOrder), credentials).
		WillRespondWith(http.StatusOK, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(matchers.Map{
				"code": matchers.S(gatewayclient.CodeOrderNotFound),
				"desc": matchers.Like("order not found"),
			})
		})

	err = pact.ExecuteTest(t, func(config pactconsumer.MockServerConfig) error {
		host := config.Host
		if host == "" {
			host = "localhost"
		}
		client, err := gatewayclient.NewClient(gatewayclient.Config{
			BaseURL:     fmt.Sprintf("http://%s:%d", host, config.Port),
			ClientID:    pacttest.ClientID,
			APIKey:      pacttest.APIKey,
			ChecksumKey: pacttest.ChecksumKey,
			ReturnURL:   pacttest.ReturnURL,
			CancelURL:   pacttest.CancelURL,
			Timeout:     5 * time.Second,
			HTTPClient:  &http.Client{Transport: &http.Transport{TLSClientConfig: config.TLSConfig}},
		})
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		link, err := client.CreatePaymentLink(ctx, gatewayclient.CreatePaymentRequest{
			OrderCode:   pacttest.OrderCode,
			Amount:      pacttest.OrderAmount,
			Description: pacttest.OrderReferenceLevel,
		})
		if err != nil {
			return fmt.Errorf("create payment link: %w", err)
		}
		if link.CheckoutURL == "" {
			return errors.New("expected a checkout URL")
		}

		info, err := client.GetPaymentInfo(ctx, pacttest.OrderCode)
		if err != nil {
			return fmt.Errorf("get payment info: %w", err)
		}
		if info.Status != gatewayclient.StatusPaid || info.LastReference() == "" {
			return fmt.Errorf("expected a paid order with a reference, got %+v", info)
		}

		if _, err := client.GetPaymentInfo(ctx, pacttest.UnknownOrder); !errors.Is(err, gatewayclient.ErrOrderNotFound) {
			return fmt.Errorf("expected ErrOrderNotFound, got %v", err)
		}
		return nil
	})
	require.NoError(t, err)
}
