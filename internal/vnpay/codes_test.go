package vnpay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	t.Run("known codes", func(t *testing.T) {
		require.Equal(t, "Transaction successful", Translate("00"))
		require.Equal(t, "Transaction cancelled by customer", Translate("24"))
		require.Equal(t, "Insufficient account balance to complete transaction", Translate("51"))
		require.Equal(t, "Unknown error, please contact support", Translate("99"))
	})

	t.Run("unknown codes fall back to templated message", func(t *testing.T) {
		require.Equal(t, "Payment error (code: 42)", Translate("42"))
		require.Equal(t, "Payment error (code: )", Translate(""))
	})

	t.Run("never empty", func(t *testing.T) {
		for _, code := range []string{"00", "07", "09", "10", "11", "12", "13", "24", "51", "65", "75", "79", "99", "XX", ""} {
			require.NotEmpty(t, Translate(code))
		}
	})
}
