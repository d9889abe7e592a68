package categorization

import "github.com/FACorreiaa/movement-ingest/internal/domain/import/model"

func expense(category string, keywords ...string) []Rule {
	return ruleSet(model.KindExpense, category, keywords)
}

func income(category string, keywords ...string) []Rule {
	return ruleSet(model.KindIncome, category, keywords)
}

func ruleSet(kind model.Kind, category string, keywords []string) []Rule {
	rules := make([]Rule, len(keywords))
	for i, k := range keywords {
		rules[i] = Rule{Keyword: k, Category: category, Kind: kind}
	}
	return rules
}

// DefaultRules is the built-in keyword table for Argentine bank and wallet
// descriptions.
func DefaultRules() []Rule {
	var rules []Rule
	for _, set := range [][]Rule{
		expense("Impuestos", "afip", "arca", "iibb", "ingresos brutos", "arba", "agip", "impuesto", "monotributo", "sellos"),
		expense("Sueldos", "sueldo", "haberes", "aguinaldo", "nomina", "honorarios"),
		expense("Alquiler", "alquiler", "expensas"),
		expense("Servicios", "edenor", "edesur", "metrogas", "naturgy", "aysa", "luz", "gas", "agua",
			"telecom", "movistar", "claro", "fibertel", "personal", "internet", "telefonia"),
		expense("Comisiones bancarias", "comision", "mantenimiento de cuenta", "cargo por", "gastos bancarios"),
		expense("Combustible", "ypf", "shell", "axion", "combustible", "nafta"),
		expense("Transporte", "uber", "cabify", "sube", "peaje", "didi"),
		expense("Alimentos", "supermercado", "carrefour", "coto", "jumbo", "disco", "vea", "almacen"),
		expense("Marketing", "publicidad", "facebook ads", "google ads", "meta ads"),
		expense("Proveedores", "proveedor", "pago a proveedores"),
		expense("Tarjetas", "tarjeta de credito", "visa", "mastercard", "amex"),
		income("Ventas", "venta", "cobro", "cobranza", "liquidacion de ventas"),
		income("Intereses", "interes", "plazo fijo", "rendimiento"),
		income("Reintegros", "reintegro", "devolucion", "contracargo"),
		income("Aportes", "aporte de capital", "aporte socio"),
	} {
		rules = append(rules, set...)
	}

	// a received transfer is a collection, not a generic sale
	rules = append(rules, Rule{Keyword: "transferencia recibida", Category: "Cobranzas", Kind: model.KindIncome, Priority: 1})
	return rules
}
