package vnpay

import (
	"net/url"
	"strconv"
	"strings"
)

// Well-known VNPay return parameters.
const (
	ParamResponseCode      = "vnp_ResponseCode"
	ParamTransactionStatus = "vnp_TransactionStatus"
	ParamTxnRef            = "vnp_TxnRef"
	ParamAmount            = "vnp_Amount"

	// ResponseCodeSuccess is the only code VNPay uses for an approved payment.
	ResponseCodeSuccess = "00"
)

// Callback is the parsed form of a gateway return redirect. It is built once
// per terminal navigation / deep-link / message event and never mutated.
type Callback struct {
	ResponseCode      string
	TransactionStatus string
	TransactionRef    string
	// Amount is in minor units (VND x100), as sent by the gateway.
	Amount    int64
	RawParams map[string]string
}

// Succeeded reports whether the gateway approved the payment. When the
// secondary vnp_TransactionStatus field is present it must also be "00".
func (c *Callback) Succeeded() bool {
	if c.ResponseCode != ResponseCodeSuccess {
		return false
	}
	if c.TransactionStatus != "" && c.TransactionStatus != ResponseCodeSuccess {
		return false
	}
	return true
}

// MajorAmount converts the gateway's minor-unit amount to whole VND.
func (c *Callback) MajorAmount() int64 {
	return c.Amount / 100
}

// HasResponseCode reports whether rawURL carries the gateway's terminal
// marker. Used by the navigation guard to distinguish the final redirect from
// ordinary in-page navigation.
func HasResponseCode(rawURL string) bool {
	return strings.Contains(rawURL, ParamResponseCode+"=")
}

// ParseCallback extracts gateway response fields from a redirect URL. The URL
// may be malformed or partial; strict parsing is attempted first and a manual
// key=value split is used as a fallback. Returns nil when no transaction
// reference can be derived from vnp_TxnRef, orderId, or fallbackOrderID.
func ParseCallback(rawURL, fallbackOrderID string) *Callback {
	params := extractParams(rawURL)
	if len(params) == 0 && fallbackOrderID == "" {
		return nil
	}

	cb := &Callback{
		ResponseCode:      params[ParamResponseCode],
		TransactionStatus: params[ParamTransactionStatus],
		RawParams:         params,
	}

	switch {
	case params["orderId"] != "":
		cb.TransactionRef = params["orderId"]
	case params[ParamTxnRef] != "":
		cb.TransactionRef = params[ParamTxnRef]
	default:
		cb.TransactionRef = fallbackOrderID
	}
	if cb.TransactionRef == "" {
		return nil
	}

	if raw := params[ParamAmount]; raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cb.Amount = n
		}
	}

	return cb
}

// extractParams pulls query parameters out of an arbitrary string. Strict URL
// parsing wins; on failure the substring after the first '?' (or the whole
// string when there is none) is split manually with percent-decoding.
func extractParams(rawURL string) map[string]string {
	params := make(map[string]string)

	if u, err := url.Parse(rawURL); err == nil {
		if q, qerr := url.ParseQuery(u.RawQuery); qerr == nil && len(q) > 0 {
			for key, values := range q {
				if len(values) > 0 {
					params[key] = values[0]
				}
			}
			return params
		}
		if u.Fragment != "" {
			if q, qerr := url.ParseQuery(strings.TrimPrefix(u.Fragment, "?")); qerr == nil && len(q) > 0 {
				for key, values := range q {
					if len(values) > 0 {
						params[key] = values[0]
					}
				}
				return params
			}
		}
	}

	query := rawURL
	if idx := strings.Index(rawURL, "?"); idx >= 0 {
		query = rawURL[idx+1:]
	}

	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		if key == "" {
			continue
		}
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		params[key] = value
	}

	return params
}
