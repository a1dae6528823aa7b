package order

// Actor is whoever drives a transition.
type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorAdmin    Actor = "admin"
	ActorWebhook  Actor = "webhook"
)

var statusTransitions = map[Actor]map[Status][]Status{
	ActorCustomer: {
		StatusPending:        {StatusPendingPayment, StatusCancelled},
		StatusPendingPayment: {StatusPendingPayment, StatusCancelled},
	},
	ActorWebhook: {
		StatusPending:        {StatusProcessing},
		StatusPendingPayment: {StatusProcessing},
	},
	ActorAdmin: {
		StatusPending:        {StatusProcessing, StatusCancelled},
		StatusPendingPayment: {StatusProcessing, StatusCancelled},
		StatusProcessing:     {StatusShipped, StatusCancelled},
		StatusShipped:        {StatusDelivered},
	},
}

var paymentTransitions = map[Actor]map[PaymentStatus][]PaymentStatus{
	ActorWebhook: {
		PaymentUnpaid: {PaymentPaid},
	},
	ActorAdmin: {
		PaymentUnpaid: {PaymentPaid},
		PaymentPaid:   {PaymentRefunded},
	},
}

// CanTransition reports whether actor may move an order from one fulfillment
// status to another. A no-op move is always allowed.
func CanTransition(actor Actor, from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range statusTransitions[actor][from] {
		if next == to {
			return true
		}
	}
	return false
}

func CanTransitionPayment(actor Actor, from, to PaymentStatus) bool {
	if from == to {
		return true
	}
	for _, next := range paymentTransitions[actor][from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateStatus returns ErrInvalidStatus unless s is a known status.
func ValidateStatus(s Status) error {
	if !s.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

func ValidatePaymentStatus(p PaymentStatus) error {
	if !p.Valid() {
		return ErrInvalidPaymentStatus
	}
	return nil
}
