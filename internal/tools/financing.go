package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/autoventa/dealerbot/internal/financing"
)

// FinancingTool calculates payment plans for all standard terms.
type FinancingTool struct {
	Calculator *financing.Calculator
}

func (t *FinancingTool) Name() string { return "calculate_financing" }

func (t *FinancingTool) Description() string {
	return "Calcula planes de financiamiento para un auto. Necesitas el precio del auto " +
		"y el enganche. Los plazos disponibles son únicamente 3, 4, 5 o 6 años; la " +
		"herramienta calcula todos los plazos válidos. Si el cliente pide un plazo " +
		"distinto, infórmale los plazos disponibles en lugar de usar esta herramienta."
}

func (t *FinancingTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"car_price":    map[string]any{"type": "number", "description": "Precio del auto en pesos"},
			"down_payment": map[string]any{"type": "number", "description": "Enganche en pesos"},
		},
		"required": []string{"car_price", "down_payment"},
	}
}

func (t *FinancingTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		CarPrice    float64 `json:"car_price"`
		DownPayment float64 `json:"down_payment"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("calculate_financing arguments: %w", err)
	}

	plans, err := t.Calculator.Plans(in.CarPrice, in.DownPayment, 0, 0)
	if err == financing.ErrDownPaymentTooHigh {
		return "No se pudieron calcular los planes: el enganche debe ser menor al precio del auto.", nil
	}
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Planes de financiamiento (precio $%s, enganche $%s, tasa %.0f%% anual):\n",
		formatPesos(in.CarPrice), formatPesos(in.DownPayment), t.Calculator.AnnualRate*100)
	for _, p := range plans {
		fmt.Fprintf(&b, "- %d meses: $%s al mes (total $%s, intereses $%s)\n",
			p.Months, formatPesos(p.MonthlyPayment), formatPesos(p.TotalAmount),
			formatPesos(p.InterestAmount))
	}
	return b.String(), nil
}
