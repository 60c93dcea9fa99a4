package handlers_test

import (
	"net/http"
	"regexp"
	"testing"
)

var orderCode = regexp.MustCompile(`^PED\d{9}$`)

func TestOrderFlow(t *testing.T) {
	a := newTestApp(t, testConfig())
	key := a.operatorKey

	status, order := a.call(t, "POST", "/api/v1/orders", key, map[string]any{
		"ID_Cliente":     "cli-002",
		"ID_Sucursal":    "suc-centro",
		"Metodo_Entrega": "Retiro_Tienda",
		"Costo_Envio":    "0",
		"detalles": []map[string]any{
			{"ID_Producto": "prod-martillo", "Cantidad": 5},
			{"ID_Producto": "prod-tornillos", "Cantidad": 2, "Descuento": "490"},
		},
	})
	if status != http.StatusCreated {
		t.Fatalf("create order: expected 201, got %d %v", status, order)
	}
	id, _ := order["ID_Pedido"].(string)
	code, _ := order["Codigo_Pedido"].(string)
	if !orderCode.MatchString(code) || order["Estado"] != "Pendiente" {
		t.Fatalf("unexpected order header %v", order)
	}
	if lines, _ := order["detalles"].([]any); len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %v", order["detalles"])
	}

	_, rec := a.call(t, "GET", "/api/v1/inventory/inv-martillo-centro", key, nil)
	if rec["Stock_Actual"] != float64(35) || rec["Stock_Reservado"] != float64(5) {
		t.Fatalf("reservation not applied: %v", rec)
	}

	status, body := a.call(t, "GET", "/api/v1/orders/"+id, key, nil)
	if status != http.StatusOK || body["Codigo_Pedido"] != code {
		t.Fatalf("get order: got %d %v", status, body)
	}
	status, body = a.call(t, "GET", "/api/v1/orders?status=Pendiente&customerId=cli-002", key, nil)
	if status != http.StatusOK || body["total"] != float64(1) {
		t.Fatalf("list orders: got %d %v", status, body)
	}

	status, body = a.call(t, "PATCH", "/api/v1/orders/"+id+"/status", key, map[string]any{"Estado": "Aprobado"})
	if status != http.StatusOK || body["Estado"] != "Aprobado" {
		t.Fatalf("approve: got %d %v", status, body)
	}
	status, _ = a.call(t, "PATCH", "/api/v1/orders/"+id+"/status", key, map[string]any{"Estado": "Aprobado"})
	if status != http.StatusOK {
		t.Fatalf("same status: expected 200, got %d", status)
	}
	status, _ = a.call(t, "PATCH", "/api/v1/orders/"+id+"/status", key, map[string]any{"Estado": "Pendiente"})
	if status != http.StatusBadRequest {
		t.Fatalf("backwards status: expected 400, got %d", status)
	}

	// Cancel with no body: the acting user comes from the API key.
	status, body = a.call(t, "POST", "/api/v1/orders/"+id+"/cancel", key, nil)
	if status != http.StatusOK || body["Estado"] != "Cancelado" {
		t.Fatalf("cancel: got %d %v", status, body)
	}
	_, rec = a.call(t, "GET", "/api/v1/inventory/inv-martillo-centro", key, nil)
	if rec["Stock_Actual"] != float64(40) || rec["Stock_Reservado"] != float64(0) {
		t.Fatalf("reservation not released: %v", rec)
	}
	status, _ = a.call(t, "POST", "/api/v1/orders/"+id+"/cancel", key, map[string]any{"Comentario": "again"})
	if status != http.StatusBadRequest {
		t.Fatalf("second cancel: expected 400, got %d", status)
	}

	status, hist := a.callList(t, "/api/v1/orders/"+id+"/history", key)
	if status != http.StatusOK || len(hist) != 3 {
		t.Fatalf("history: expected 3 entries, got %d %v", status, hist)
	}
	if hist[2]["Estado_Nuevo"] != "Cancelado" || hist[2]["ID_Usuario"] != "u-bodega" {
		t.Fatalf("cancel history entry: %v", hist[2])
	}

	status, moves := a.callList(t, "/api/v1/orders/"+id+"/movements", key)
	if status != http.StatusOK || len(moves) != 4 {
		t.Fatalf("order movements: expected 4, got %d %v", status, moves)
	}
	if moves[0]["Tipo_Movimiento"] != "Reserva" || moves[3]["Tipo_Movimiento"] != "LiberacionReserva" {
		t.Fatalf("order movements out of order: %v", moves)
	}
	if status, _ := a.call(t, "GET", "/api/v1/orders/ord-404/movements", key, nil); status != http.StatusNotFound {
		t.Fatalf("movements of missing order: expected 404, got %d", status)
	}
}

func TestOrderRejections(t *testing.T) {
	a := newTestApp(t, testConfig())
	key := a.operatorKey

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"insufficient stock", map[string]any{
			"ID_Cliente": "cli-001", "ID_Sucursal": "suc-centro",
			"detalles": []map[string]any{{"ID_Producto": "prod-martillo", "Cantidad": 1}, {"ID_Producto": "prod-taladro", "Cantidad": 99}},
		}, http.StatusBadRequest},
		{"no lines", map[string]any{"ID_Cliente": "cli-001", "ID_Sucursal": "suc-centro", "detalles": []map[string]any{}}, http.StatusBadRequest},
		{"bad channel", map[string]any{
			"ID_Cliente": "cli-001", "ID_Sucursal": "suc-centro", "Canal": "Fax",
			"detalles": []map[string]any{{"ID_Producto": "prod-martillo", "Cantidad": 1}},
		}, http.StatusBadRequest},
		{"quantity past the unit limit", map[string]any{
			"ID_Cliente": "cli-001", "ID_Sucursal": "suc-centro",
			"detalles": []map[string]any{{"ID_Producto": "prod-martillo", "Cantidad": 2147483648}},
		}, http.StatusBadRequest},
		{"unknown customer", map[string]any{
			"ID_Cliente": "cli-404", "ID_Sucursal": "suc-centro",
			"detalles": []map[string]any{{"ID_Producto": "prod-martillo", "Cantidad": 1}},
		}, http.StatusNotFound},
	}
	for _, tc := range cases {
		status, body := a.call(t, "POST", "/api/v1/orders", key, tc.body)
		if status != tc.want {
			t.Fatalf("%s: expected %d, got %d %v", tc.name, tc.want, status, body)
		}
	}

	_, rec := a.call(t, "GET", "/api/v1/inventory/inv-martillo-centro", key, nil)
	if rec["Stock_Actual"] != float64(40) || rec["Stock_Reservado"] != float64(0) {
		t.Fatalf("rejected orders changed stock: %v", rec)
	}
	status, _ := a.call(t, "GET", "/api/v1/orders/ord-404", key, nil)
	if status != http.StatusNotFound {
		t.Fatalf("missing order: expected 404, got %d", status)
	}
}
