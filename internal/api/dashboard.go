package api

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/Paigeblanch/TimeAuthority/internal/logging"
)

// The dashboard is a read-only collaborator: it consumes the ledger scan
// output via the service layer and renders it as a single HTML page,
// transactions newest first.
var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Service}} Dashboard</title>
<style>
* { margin: 0; padding: 0; box-sizing: border-box; }
body {
  font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
  background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
  min-height: 100vh;
  padding: 20px;
}
.container { max-width: 1200px; margin: 0 auto; }
.header { text-align: center; color: white; margin-bottom: 40px; }
.header h1 { font-size: 2.5em; margin-bottom: 10px; }
.stats {
  display: grid;
  grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
  gap: 20px;
  margin-bottom: 40px;
}
.stat-card {
  background: white;
  border-radius: 15px;
  padding: 25px;
  box-shadow: 0 10px 30px rgba(0,0,0,0.2);
}
.stat-card h3 {
  color: #666;
  font-size: 0.9em;
  text-transform: uppercase;
  letter-spacing: 1px;
  margin-bottom: 10px;
}
.stat-card .value { font-size: 2.5em; font-weight: bold; color: #667eea; }
.transactions {
  background: white;
  border-radius: 15px;
  padding: 30px;
  box-shadow: 0 10px 30px rgba(0,0,0,0.2);
}
.transactions h2 { margin-bottom: 20px; }
table { width: 100%; border-collapse: collapse; }
th, td { text-align: left; padding: 10px 8px; border-bottom: 1px solid #eee; font-size: 0.9em; }
th { color: #666; text-transform: uppercase; font-size: 0.8em; letter-spacing: 1px; }
td.hash { font-family: monospace; font-size: 0.8em; word-break: break-all; }
.empty { color: #999; text-align: center; padding: 40px 0; }
</style>
</head>
<body>
<div class="container">
  <div class="header">
    <h1>{{.Service}} Dashboard</h1>
    <p>Timestamp witness revenue and transaction log</p>
  </div>
  <div class="stats">
    <div class="stat-card">
      <h3>Total Timestamps</h3>
      <div class="value">{{.TotalTimestamps}}</div>
    </div>
    <div class="stat-card">
      <h3>Total Revenue</h3>
      <div class="value">{{printf "%.2f" .TotalRevenueUSDC}} {{.PaymentToken}}</div>
    </div>
    <div class="stat-card">
      <h3>Price Per Timestamp</h3>
      <div class="value">{{.PricePerTimestamp}} {{.PaymentToken}}</div>
    </div>
  </div>
  <div class="transactions">
    <h2>Transactions</h2>
    {{if .Transactions}}
    <table>
      <tr>
        <th>Transaction ID</th>
        <th>Timestamp</th>
        <th>Document Hash</th>
        <th>Amount</th>
        <th>Verified</th>
      </tr>
      {{range .Transactions}}
      <tr>
        <td>{{.TransactionID}}</td>
        <td>{{.Timestamp}}</td>
        <td class="hash">{{.DocumentHash}}</td>
        <td>{{.PaymentAmount}} {{.PaymentToken}}</td>
        <td>{{if .PaymentVerified}}yes{{else}}no{{end}}</td>
      </tr>
      {{end}}
    </table>
    {{else}}
    <div class="empty">No transactions yet.</div>
    {{end}}
  </div>
</div>
</body>
</html>
`))

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data := h.service.Dashboard(r.Context())
	logging.AddField(r.Context(), "op", "dashboard")
	logging.AddField(r.Context(), "transaction_count", data.TotalTimestamps)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := dashboardTmpl.Execute(w, data); err != nil {
		h.logger.Error("render dashboard", slog.String("error", err.Error()))
	}
}
