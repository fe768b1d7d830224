package gateway

// Response codes in the provider envelope.
const (
	CodeSuccess       = "00"
	CodeOrderNotFound = "101"
)

// Payment link statuses reported by the provider.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusPaid       = "PAID"
	StatusCancelled  = "CANCELLED"
	StatusExpired    = "EXPIRED"
)

// envelope wraps every provider response.
type envelope[T any] struct {
	Code      string `json:"code"`
	Desc      string `json:"desc"`
	Data      *T     `json:"data"`
	Signature string `json:"signature,omitempty"`
}

// CreatePaymentRequest opens a hosted checkout.
type CreatePaymentRequest struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	BuyerName   string `json:"buyerName,omitempty"`
	ReturnURL   string `json:"returnUrl"`
	CancelURL   string `json:"cancelUrl"`
	ExpiredAt   int64  `json:"expiredAt,omitempty"`
	Signature   string `json:"signature"`
}

// PaymentLink is the created checkout.
type PaymentLink struct {
	OrderCode     int64  `json:"orderCode"`
	Amount        int64  `json:"amount"`
	Description   string `json:"description"`
	PaymentLinkID string `json:"paymentLinkId"`
	Status        string `json:"status"`
	CheckoutURL   string `json:"checkoutUrl"`
	QRCode        string `json:"qrCode"`
}

// Transaction is one settlement credited to a payment link.
type Transaction struct {
	Reference     string `json:"reference"`
	Amount        int64  `json:"amount"`
	TransactionAt string `json:"transactionDateTime"`
}

// PaymentInfo is the provider's view of a payment link.
type PaymentInfo struct {
	ID                 string        `json:"id"`
	OrderCode          int64         `json:"orderCode"`
	Amount             int64         `json:"amount"`
	AmountPaid         int64         `json:"amountPaid"`
	AmountRemaining    int64         `json:"amountRemaining"`
	Status             string        `json:"status"`
	CancellationReason string        `json:"cancellationReason,omitempty"`
	Transactions       []Transaction `json:"transactions"`
}

// LastReference returns the reference of the most recent transaction.
func (p *PaymentInfo) LastReference() string {
	if p == nil || len(p.Transactions) == 0 {
		return ""
	}
	return p.Transactions[len(p.Transactions)-1].Reference
}

type cancelRequest struct {
	CancellationReason string `json:"cancellationReason,omitempty"`
}
