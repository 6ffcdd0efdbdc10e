package vnpay

import (
	"strings"
)

// DeepLink is the parsed form of the app's custom-scheme return URI
// (or its web-redirect mirror), e.g.
// farmmarket://payment-result?orderId=123&success=true&amount=100000&code=00.
type DeepLink struct {
	OrderID string
	// Success is nil when the link carries no success parameter.
	Success *bool
	Amount  string
	Code    string
	Message string
}

// AppLinkMatcher decides whether a URL belongs to the app itself rather than
// the gateway: either the custom URI scheme or the mirror domain hosting the
// web redirect fallback.
type AppLinkMatcher struct {
	Scheme       string // e.g. "farmmarket://"
	MirrorDomain string // e.g. "pay.farmmarket.vn"
}

// Matches reports whether rawURL should be handled as an app deep link.
func (m AppLinkMatcher) Matches(rawURL string) bool {
	if m.Scheme != "" && strings.HasPrefix(rawURL, m.Scheme) {
		return true
	}
	if m.MirrorDomain != "" && strings.Contains(rawURL, m.MirrorDomain) {
		return true
	}
	return false
}

// ParseDeepLink extracts the payment-result parameters from a deep-link URI.
// Tolerates custom schemes that net/url refuses to parse.
func ParseDeepLink(rawURL string) DeepLink {
	params := extractParams(rawURL)

	link := DeepLink{
		OrderID: params["orderId"],
		Amount:  params["amount"],
		Code:    params["code"],
		Message: params["message"],
	}
	if raw, ok := params["success"]; ok && raw != "" {
		v := raw == "true"
		link.Success = &v
	}
	return link
}

// AsCallback folds a deep link into the common callback shape consumed by the
// state machine. The success flag wins over any code field.
func (d DeepLink) AsCallback() *Callback {
	code := d.Code
	if code == "" && d.Success != nil && *d.Success {
		code = ResponseCodeSuccess
	}
	raw := map[string]string{}
	if d.OrderID != "" {
		raw["orderId"] = d.OrderID
	}
	if code != "" {
		raw[ParamResponseCode] = code
	}
	return &Callback{
		ResponseCode:   code,
		TransactionRef: d.OrderID,
		RawParams:      raw,
	}
}
