// Package fixture serves a stand-in point-of-sale page with the same
// checkout contract as the real application: "Add to Order" buttons, a
// "Checkout & Print" button that calls window.print, and a hidden
// #printable-bill.
package fixture

import (
	"bytes"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Variant selects which parts of the bill the page renders
type Variant struct {
	Bill   bool // Render #printable-bill at all
	Marker bool // Include the RECEIPT marker inside the bill
}

// Routes served by Handler
const (
	PathComplete  = "/"
	PathNoReceipt = "/no-receipt"
	PathNoBill    = "/no-bill"
)

var page = template.Must(template.New("pos").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>POS Fixture</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
.product { display: inline-block; border: 1px solid #ccc; padding: 1rem; margin: .5rem; }
.print-only { display: none; }
</style>
</head>
<body>
<h2>Products</h2>
<div id="products">
  <div class="product"><h3>Espresso</h3><p>$3.50</p><button data-name="Espresso" data-price="3.50"><span>Add to Order</span></button></div>
  <div class="product"><h3>Croissant</h3><p>$2.75</p><button data-name="Croissant" data-price="2.75"><span>Add to Order</span></button></div>
</div>
<aside id="cart">
  <h2>Current Order</h2>
  <ul id="cart-items"></ul>
  <p>Total <span id="cart-total">$0.00</span></p>
  <button id="checkout" disabled>Checkout &amp; Print</button>
</aside>
{{if .Bill}}<div id="printable-bill" class="print-only">
  <h1>Fixture Cafe</h1>
  {{if .Marker}}<p>*** RECEIPT ***</p>{{else}}<p>Thank you for your order</p>{{end}}
  <table><thead><tr><th>Item</th><th>Qty</th><th>Total</th></tr></thead><tbody id="bill-items"></tbody></table>
  <p id="bill-total"></p>
</div>{{end}}
<script>
const cart = [];
function money(v) { return "$" + v.toFixed(2); }
function render() {
  const list = document.getElementById("cart-items");
  list.innerHTML = "";
  let total = 0;
  cart.forEach(item => {
    const li = document.createElement("li");
    li.textContent = item.name + " " + money(item.price);
    list.appendChild(li);
    total += item.price;
  });
  document.getElementById("cart-total").textContent = money(total * 1.1);
  document.getElementById("checkout").disabled = cart.length === 0;
  const rows = document.getElementById("bill-items");
  if (rows) {
    rows.innerHTML = "";
    cart.forEach(item => {
      const tr = document.createElement("tr");
      [item.name, "1", money(item.price)].forEach(text => {
        const td = document.createElement("td");
        td.textContent = text;
        tr.appendChild(td);
      });
      rows.appendChild(tr);
    });
    document.getElementById("bill-total").textContent = "Total " + money(total * 1.1);
  }
}
document.querySelectorAll("#products button").forEach(btn => {
  btn.addEventListener("click", () => {
    cart.push({ name: btn.dataset.name, price: parseFloat(btn.dataset.price) });
    render();
  });
});
document.getElementById("checkout").addEventListener("click", () => {
  setTimeout(() => window.print(), 100);
});
</script>
</body>
</html>
`))

// Render returns the page for v
func Render(v Variant) ([]byte, error) {
	var buf bytes.Buffer
	if err := page.Execute(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Handler routes the three page variants. logger may be nil.
func Handler(logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(requestLogger(logger))

	r.Get(PathComplete, serve(Variant{Bill: true, Marker: true}))
	r.Get(PathNoReceipt, serve(Variant{Bill: true}))
	r.Get(PathNoBill, serve(Variant{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

func serve(v Variant) http.HandlerFunc {
	body, err := Render(v)
	return func(w http.ResponseWriter, _ *http.Request) {
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(body)
	}
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("fixture request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)))
		})
	}
}
