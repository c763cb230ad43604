package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/autoventa/dealerbot/internal/catalog"
	"github.com/autoventa/dealerbot/internal/session"
)

// metadata key where the last recommended stock IDs are remembered so the
// user can say "ese auto" / "el primero".
const lastStockIDsKey = "last_stock_ids"

// CatalogSearcher is the catalog surface the car tools need.
type CatalogSearcher interface {
	Search(ctx context.Context, f catalog.Filter) ([]catalog.Car, error)
	Repo() catalog.Repository
}

// SearchCarsTool finds catalog cars matching the customer's preferences.
type SearchCarsTool struct {
	Catalog  CatalogSearcher
	Sessions *session.Store
}

func (t *SearchCarsTool) Name() string { return "search_cars" }

func (t *SearchCarsTool) Description() string {
	return "Busca autos en el catálogo según las preferencias del cliente. " +
		"Puedes filtrar por marca, modelo, año y precio."
}

func (t *SearchCarsTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"make":      map[string]any{"type": "string", "description": "Marca del auto (ej: Toyota, VW)"},
			"model":     map[string]any{"type": "string", "description": "Modelo del auto (ej: Corolla, Jetta)"},
			"min_year":  map[string]any{"type": "integer", "description": "Año mínimo"},
			"max_year":  map[string]any{"type": "integer", "description": "Año máximo"},
			"min_price": map[string]any{"type": "number", "description": "Precio mínimo en pesos"},
			"max_price": map[string]any{"type": "number", "description": "Precio máximo en pesos"},
			"limit":     map[string]any{"type": "integer", "description": "Máximo de resultados (default 5)"},
		},
	}
}

func (t *SearchCarsTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Make     string  `json:"make"`
		Model    string  `json:"model"`
		MinYear  int     `json:"min_year"`
		MaxYear  int     `json:"max_year"`
		MinPrice float64 `json:"min_price"`
		MaxPrice float64 `json:"max_price"`
		Limit    int     `json:"limit"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("search_cars arguments: %w", err)
	}
	if in.Limit <= 0 {
		in.Limit = 5
	}

	cars, err := t.Catalog.Search(ctx, catalog.Filter{
		Make: in.Make, Model: in.Model,
		MinYear: in.MinYear, MaxYear: in.MaxYear,
		MinPrice: in.MinPrice, MaxPrice: in.MaxPrice,
		Limit: in.Limit,
	})
	if err != nil {
		return "", err
	}
	if len(cars) == 0 {
		return "No encontré autos que coincidan con esas preferencias. Intenta con otros criterios.", nil
	}

	// Remember what was shown so follow-up references resolve.
	if t.Sessions != nil {
		if sender := SenderFrom(ctx); sender != "" {
			stockIDs := make([]string, len(cars))
			for i, c := range cars {
				stockIDs[i] = c.StockID
			}
			t.Sessions.SetMetadata(sender, lastStockIDsKey, stockIDs)
		}
	}

	var b strings.Builder
	b.WriteString("Encontré los siguientes autos disponibles:\n")
	for i, c := range cars {
		fmt.Fprintf(&b, "%d. %s %s %d (Stock ID: %s, Precio: $%s, KM: %d)\n",
			i+1, c.Make, c.Model, c.Year, c.StockID, formatPesos(c.Price), c.KM)
	}
	return b.String(), nil
}

// CarDetailsTool returns the details of a specific car, resolving
// contextual references against the session's last recommendations.
type CarDetailsTool struct {
	Catalog  CatalogSearcher
	Sessions *session.Store
}

func (t *CarDetailsTool) Name() string { return "get_car_details" }

func (t *CarDetailsTool) Description() string {
	return "Obtiene los detalles de un auto específico por Stock ID. Si el cliente " +
		"usa referencias como 'ese auto' o 'el primero', llama sin stock_id con " +
		"reference_index indicando la posición (1 = primero)."
}

func (t *CarDetailsTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"stock_id":        map[string]any{"type": "string", "description": "Stock ID del auto"},
			"reference_index": map[string]any{"type": "integer", "description": "Posición en la última lista mostrada (1 = primero)"},
		},
	}
}

func (t *CarDetailsTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		StockID        string `json:"stock_id"`
		ReferenceIndex int    `json:"reference_index"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("get_car_details arguments: %w", err)
	}

	stockID := in.StockID
	if stockID == "" {
		stockID = t.resolveReference(ctx, in.ReferenceIndex)
	}
	if stockID == "" {
		return "No sé a qué auto te refieres. ¿Me das el Stock ID o buscamos de nuevo?", nil
	}

	car, err := t.Catalog.Repo().GetByStockID(ctx, stockID)
	if err == catalog.ErrNotFound {
		return fmt.Sprintf("No encontré ningún auto con Stock ID %s.", stockID), nil
	}
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %d\n", car.Make, car.Model, car.Year)
	fmt.Fprintf(&b, "Stock ID: %s\nPrecio: $%s\nKilometraje: %d km\n", car.StockID, formatPesos(car.Price), car.KM)
	if car.Version != "" {
		fmt.Fprintf(&b, "Versión: %s\n", car.Version)
	}
	fmt.Fprintf(&b, "Bluetooth: %s\nCarPlay: %s\n", siNo(car.Bluetooth), siNo(car.CarPlay))
	return b.String(), nil
}

func (t *CarDetailsTool) resolveReference(ctx context.Context, index int) string {
	if t.Sessions == nil {
		return ""
	}
	sender := SenderFrom(ctx)
	if sender == "" {
		return ""
	}
	snap, ok := t.Sessions.Snapshot(sender)
	if !ok {
		return ""
	}
	ids, ok := snap.Metadata[lastStockIDsKey].([]string)
	if !ok || len(ids) == 0 {
		return ""
	}
	if index < 1 || index > len(ids) {
		index = 1
	}
	return ids[index-1]
}

func siNo(b bool) string {
	if b {
		return "sí"
	}
	return "no"
}

// formatPesos renders an amount with thousands separators, no decimals.
func formatPesos(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, d := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
