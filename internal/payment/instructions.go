package payment

import (
	"strings"

	"baklava-be/internal/order"
)

var InstructionMap = map[order.PaymentMethod][]string{
	order.MethodCash: {
		"Your order will be delivered to the shipping address",
		"Have {{amount}} ready in cash when the courier arrives",
		"Pay the courier directly and keep the delivery receipt",
	},
	order.MethodCard: {
		"You will be redirected to our secure card payment page",
		"Complete the payment of {{amount}}",
		"Your order moves to processing as soon as the payment is confirmed",
	},
}

func GetInstructions(method order.PaymentMethod) []string {
	if steps, ok := InstructionMap[method]; ok {
		return steps
	}

	return []string{
		"Follow the payment instructions shown on this page",
	}
}

type InstructionVars map[string]string

func InjectVariables(
	steps []string,
	vars InstructionVars,
) []string {
	result := make([]string, 0, len(steps))

	for _, step := range steps {
		updated := step
		for key, value := range vars {
			updated = strings.ReplaceAll(
				updated,
				"{{"+key+"}}",
				value,
			)
		}
		result = append(result, updated)
	}

	return result
}

// InstructionsFor renders the payment steps for an order.
func InstructionsFor(o *order.Order) []string {
	return InjectVariables(GetInstructions(o.PaymentMethod), InstructionVars{
		"amount":    o.TotalAmount.StringFixed(2),
		"reference": o.ReferenceNumber,
	})
}
