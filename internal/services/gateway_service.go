package services

import (
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/config"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/models"
)

// Gateway parameter names. The processor signs and verifies over these
// exact keys, so they are part of the wire contract.
const (
	paramVersion      = "version"
	paramMerchantCode = "merchantCode"
	paramOrderID      = "orderId"
	paramOrderInfo    = "orderInfo"
	paramAmount       = "amount"
	paramCurrency     = "currCode"
	paramReturnURL    = "returnUrl"
	paramCreateTime   = "createTime"
	paramExpireTime   = "expireTime"
	paramResponseCode = "responseCode"
	paramTransaction  = "transactionNo"
	paramBankCode     = "bankCode"
	paramPayDate      = "payDate"
	paramSecureHash   = "secureHash"
	paramHashType     = "secureHashType"
)

const gatewayTimeLayout = "20060102150405"

// GatewayService builds signed redirect URLs for the external payment
// processor and verifies its callbacks. This is the single trust boundary
// for money-moving state changes: nothing downstream of VerifyCallback
// re-checks the signature.
type GatewayService struct {
	cfg    config.GatewayConfig
	client *http.Client
	now    func() time.Time
}

// NewGatewayService creates a new GatewayService
func NewGatewayService(cfg config.GatewayConfig) *GatewayService {
	return &GatewayService{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		now:    time.Now,
	}
}

// sign computes the hex-encoded HMAC-SHA-512 of the canonical query string:
// URL-encoded, alphabetically sorted by key, signature fields excluded.
// url.Values.Encode already sorts by key.
func (s *GatewayService) sign(params url.Values) string {
	mac := hmac.New(sha512.New, []byte(s.cfg.HashSecret))
	mac.Write([]byte(params.Encode()))
	return hex.EncodeToString(mac.Sum(nil))
}

// BuildRedirect builds the signed external URL the payer is sent to for the
// given payment. The amount travels in minor currency units, and the URL
// embeds an expiry so abandoned checkouts cannot be completed later.
func (s *GatewayService) BuildRedirect(payment *models.Payment, orderInfo string) (string, error) {
	if payment.IsTerminal() {
		return "", &models.ForbiddenTransitionError{
			Entity: "payment",
			From:   string(payment.PaymentStatus),
			To:     "redirect",
		}
	}

	now := s.now()
	params := url.Values{}
	params.Set(paramVersion, s.cfg.Version)
	params.Set(paramMerchantCode, s.cfg.MerchantCode)
	params.Set(paramOrderID, payment.OrderID)
	params.Set(paramOrderInfo, orderInfo)
	params.Set(paramAmount, strconv.FormatInt(int64(math.Round(payment.Amount*100)), 10))
	params.Set(paramCurrency, s.cfg.Currency)
	params.Set(paramReturnURL, s.cfg.ReturnURL)
	params.Set(paramCreateTime, now.Format(gatewayTimeLayout))
	params.Set(paramExpireTime, now.Add(s.cfg.RedirectTTL).Format(gatewayTimeLayout))

	signature := s.sign(params)
	params.Set(paramSecureHash, signature)

	return s.cfg.BaseURL + "?" + params.Encode(), nil
}

// VerifyCallback recomputes the HMAC over every inbound parameter except the
// signature fields and compares in constant time. A mismatch returns a
// SignatureError and the callback must be discarded without side effects.
// On success it returns the parsed, already-mapped result ready for
// reconciliation.
func (s *GatewayService) VerifyCallback(rawParams url.Values) (*models.CallbackResult, error) {
	received := rawParams.Get(paramSecureHash)
	if received == "" {
		return nil, &models.SignatureError{Detail: "callback missing signature"}
	}

	signed := url.Values{}
	for key, values := range rawParams {
		if key == paramSecureHash || key == paramHashType {
			continue
		}
		for _, v := range values {
			signed.Add(key, v)
		}
	}

	expected := s.sign(signed)
	if subtle.ConstantTimeCompare([]byte(strings.ToLower(received)), []byte(expected)) != 1 {
		return nil, &models.SignatureError{Detail: "callback signature mismatch"}
	}

	result := &models.CallbackResult{
		OrderID:       rawParams.Get(paramOrderID),
		ResponseCode:  rawParams.Get(paramResponseCode),
		TransactionID: rawParams.Get(paramTransaction),
		BankCode:      rawParams.Get(paramBankCode),
	}
	result.Result = MapResponseCode(result.ResponseCode)
	if result.OrderID == "" {
		return nil, &models.SignatureError{Detail: "callback missing orderId"}
	}
	if raw := rawParams.Get(paramPayDate); raw != "" {
		if paidAt, err := time.ParseInLocation(gatewayTimeLayout, raw, time.Local); err == nil {
			result.PaidAt = &paidAt
		} else {
			logrus.WithFields(logrus.Fields{
				"order_id": result.OrderID,
				"pay_date": raw,
			}).Warn("Unparseable payDate in gateway callback, ignoring")
		}
	}
	return result, nil
}

// MapResponseCode maps the processor's raw response code to the internal
// result taxonomy. Unrecognized codes map to other, never to success.
func MapResponseCode(code string) models.GatewayResult {
	switch code {
	case "00":
		return models.GatewayResultSuccess
	case "24":
		return models.GatewayResultUserCancelled
	case "51":
		return models.GatewayResultInsufficientFunds
	case "11":
		return models.GatewayResultExpired
	case "75":
		return models.GatewayResultBankMaintenance
	default:
		return models.GatewayResultOther
	}
}

// QueryTransaction asks the processor for the current state of an order, used
// when a callback never arrived. Transport or non-2xx failures surface as
// ExternalUnavailable so callers retry with backoff instead of guessing an
// outcome.
func (s *GatewayService) QueryTransaction(orderID string) (*models.CallbackResult, error) {
	params := url.Values{}
	params.Set(paramVersion, s.cfg.Version)
	params.Set(paramMerchantCode, s.cfg.MerchantCode)
	params.Set(paramOrderID, orderID)
	params.Set(paramCreateTime, s.now().Format(gatewayTimeLayout))
	params.Set(paramSecureHash, s.sign(params))

	resp, err := s.client.Get(s.cfg.QueryURL + "?" + params.Encode())
	if err != nil {
		return nil, &models.ExternalUnavailableError{Op: "gateway query", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &models.ExternalUnavailableError{
			Op:  "gateway query",
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &models.ExternalUnavailableError{Op: "gateway query", Err: err}
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, &models.ExternalUnavailableError{Op: "gateway query", Err: fmt.Errorf("unparseable response: %w", err)}
	}
	return s.VerifyCallback(values)
}
