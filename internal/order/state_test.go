package order

import (
	"testing"

	"baklava-be/internal/apperror"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		actor    Actor
		from, to Status
		want     bool
	}{
		{ActorCustomer, StatusPending, StatusPendingPayment, true},
		{ActorCustomer, StatusPendingPayment, StatusPendingPayment, true},
		{ActorCustomer, StatusPending, StatusCancelled, true},
		{ActorCustomer, StatusProcessing, StatusCancelled, false},
		{ActorCustomer, StatusPending, StatusProcessing, false},
		{ActorWebhook, StatusPendingPayment, StatusProcessing, true},
		{ActorWebhook, StatusPending, StatusProcessing, true},
		{ActorWebhook, StatusCancelled, StatusProcessing, false},
		{ActorAdmin, StatusPending, StatusProcessing, true},
		{ActorAdmin, StatusProcessing, StatusShipped, true},
		{ActorAdmin, StatusShipped, StatusDelivered, true},
		{ActorAdmin, StatusProcessing, StatusCancelled, true},
		{ActorAdmin, StatusDelivered, StatusPending, false},
		{ActorAdmin, StatusShipped, StatusCancelled, false},
		{ActorAdmin, StatusCancelled, StatusProcessing, false},
		{ActorAdmin, StatusDelivered, StatusDelivered, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.actor)+"_"+string(tt.from)+"_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.actor, tt.from, tt.to))
		})
	}
}

func TestCanTransitionPayment(t *testing.T) {
	assert.True(t, CanTransitionPayment(ActorWebhook, PaymentUnpaid, PaymentPaid))
	assert.False(t, CanTransitionPayment(ActorWebhook, PaymentPaid, PaymentRefunded))
	assert.True(t, CanTransitionPayment(ActorAdmin, PaymentPaid, PaymentRefunded))
	assert.False(t, CanTransitionPayment(ActorAdmin, PaymentRefunded, PaymentUnpaid))
	assert.False(t, CanTransitionPayment(ActorCustomer, PaymentUnpaid, PaymentPaid))
	assert.True(t, CanTransitionPayment(ActorCustomer, PaymentPaid, PaymentPaid))
}

func TestValidateEnums(t *testing.T) {
	assert.NoError(t, ValidateStatus(StatusShipped))
	err := ValidateStatus(Status("lost"))
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	assert.Equal(t, "status", apperror.FieldOf(err))

	assert.NoError(t, ValidatePaymentStatus(PaymentRefunded))
	assert.Equal(t, "payment_status", apperror.FieldOf(ValidatePaymentStatus("free")))

	assert.True(t, MethodCash.Valid())
	assert.False(t, PaymentMethod("cheque").Valid())
}
