package application

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/Apurer/course-marketplace-api/internal/domains/payments/domain"
)

// webhookPayload is the provider's push body. Status may be absent when the provider only
// sends the success code.
type webhookPayload struct {
	OrderCode int64  `json:"orderCode"`
	Status    string `json:"status"`
	Code      string `json:"code"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

// successCode is what the provider sends in "code" for a completed payment.
const successCode = "00"

func decodeWebhook(raw []byte) (webhookPayload, domain.Status, error) {
	var payload webhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return webhookPayload{}, "", err
	}
	if payload.OrderCode <= 0 {
		return webhookPayload{}, "", domain.ErrInvalidCode
	}
	status := domain.Status(strings.ToUpper(strings.TrimSpace(payload.Status)))
	if status == "" && payload.Code == successCode {
		status = domain.StatusPaid
	}
	if !status.Valid() {
		return webhookPayload{}, "", errors.New("unknown status " + payload.Status)
	}
	return payload, status, nil
}
