package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Эталонные значения hex(HMAC-SHA256(key, "pay_1|sub_1")).
const (
	providerSignature    = "cb7233e70a08f0a2c057871c5cbd9e0f7cd1fa86bd2447aa4e7ede6532270670"
	otherSecretSignature = "c5e3a97ace032ebbe48ae7947a217f12a1b78835c6009bb17833941196fda3b7"
	// hex(HMAC-SHA256("s3cr3t", "sub_1|pay_1")), обратный порядок полей.
	reversedSignature = "9b3616bdd776db483bac8ccbe9f5311bd1d52065f28474e0e3ada810c30d1f08"
)

func TestVerifier_Sign(t *testing.T) {
	v := NewVerifier("s3cr3t")
	assert.Equal(t, providerSignature, v.Sign("pay_1", "sub_1"))
	assert.Equal(t, otherSecretSignature, NewVerifier("other").Sign("pay_1", "sub_1"))
}

func TestVerifier_Verify(t *testing.T) {
	v := NewVerifier("s3cr3t")

	flip := []byte(providerSignature)
	if flip[0] == 'a' {
		flip[0] = 'b'
	} else {
		flip[0] = 'a'
	}

	tests := []struct {
		name           string
		paymentID      string
		subscriptionID string
		claimed        string
		want           bool
	}{
		{name: "provider signature", paymentID: "pay_1", subscriptionID: "sub_1", claimed: providerSignature, want: true},
		{name: "one char changed", paymentID: "pay_1", subscriptionID: "sub_1", claimed: string(flip), want: false},
		{name: "reversed field order", paymentID: "pay_1", subscriptionID: "sub_1", claimed: reversedSignature, want: false},
		{name: "swapped ids", paymentID: "sub_1", subscriptionID: "pay_1", claimed: providerSignature, want: false},
		{name: "other subscription", paymentID: "pay_1", subscriptionID: "sub_2", claimed: providerSignature, want: false},
		{name: "other secret", paymentID: "pay_1", subscriptionID: "sub_1", claimed: otherSecretSignature, want: false},
		{name: "upper case hex", paymentID: "pay_1", subscriptionID: "sub_1", claimed: "CB7233E70A08F0A2C057871C5CBD9E0F7CD1FA86BD2447AA4E7EDE6532270670", want: false},
		{name: "empty signature", paymentID: "pay_1", subscriptionID: "sub_1", claimed: "", want: false},
		{name: "empty payment id", paymentID: "", subscriptionID: "sub_1", claimed: providerSignature, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Verify(tt.paymentID, tt.subscriptionID, tt.claimed))
		})
	}
}

func TestVerifier_EmptySecret(t *testing.T) {
	v := NewVerifier("")
	assert.False(t, v.Verify("pay_1", "sub_1", v.Sign("pay_1", "sub_1")))
}
