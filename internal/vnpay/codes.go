package vnpay

import "fmt"

// responseMessages maps VNPay response codes to human-readable reasons.
// Source: VNPay merchant integration docs, table "vnp_ResponseCode".
var responseMessages = map[string]string{
	"00": "Transaction successful",
	"07": "Money deducted but transaction is held as suspected fraud",
	"09": "Card or account has not registered for internet banking",
	"10": "Card or account information verified incorrectly more than 3 times",
	"11": "Payment window expired, please retry the transaction",
	"12": "Card or account is locked",
	"13": "Incorrect OTP entered, please retry the transaction",
	"24": "Transaction cancelled by customer",
	"51": "Insufficient account balance to complete transaction",
	"65": "Daily transaction limit exceeded",
	"75": "Bank is under maintenance",
	"79": "Incorrect payment password entered too many times",
	"99": "Unknown error, please contact support",
}

// Translate maps a gateway response code to a display message. Total: unknown
// codes fall back to a templated message carrying the raw code.
func Translate(code string) string {
	if msg, ok := responseMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("Payment error (code: %s)", code)
}
