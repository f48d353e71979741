package services

import (
	"fmt"
	"html"
	"strings"

	dto "operator-dispatch.com/operator-dispatch/internal/data_models"
)

const (
	transactionDirect  = "direct"
	statusCalcRequired = "calc_requested"

	documentFileName = "dkp.doc"
	documentCaption  = "Sale contract for signature"
)

var statusTexts = map[string]string{
	"created":          "Deal created",
	"visit_scheduled":  "Client visit scheduled",
	statusCalcRequired: "Calculation requested",
	"calc_ready":       "Calculation ready",
	"awaiting_payment": "Awaiting payment",
	"paid":             "Payment received",
	"completed":        "Deal completed",
	"cancelled":        "Deal cancelled",
}

func statusText(status string) string {
	if text, ok := statusTexts[status]; ok {
		return text
	}
	return "Update"
}

func directionLabel(transactionType string) string {
	if transactionType == transactionDirect {
		return "DIRECT"
	}
	return "REVERSE"
}

func topicTitle(req *dto.TransactionCreateRequest) string {
	return strings.TrimSpace(fmt.Sprintf("%s | %s %s",
		directionLabel(req.TransactionType), req.CashAmount.String(), req.CashCurrency))
}

func dealSummary(req *dto.TransactionCreateRequest, city, partner string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Type:</b> %s\n", directionLabel(req.TransactionType))
	fmt.Fprintf(&b, "<b>City:</b> %s\n", html.EscapeString(city))
	fmt.Fprintf(&b, "<b>Partner:</b> %s\n", html.EscapeString(partner))
	fmt.Fprintf(&b, "<b>Client:</b> %s\n", html.EscapeString(req.ClientFullName))
	fmt.Fprintf(&b, "<b>Amount:</b> %s %s\n", req.CashAmount.String(), html.EscapeString(req.CashCurrency))
	if req.VisitTime != "" {
		fmt.Fprintf(&b, "<b>Visit:</b> %s\n", html.EscapeString(req.VisitTime))
	}
	if req.WalletAddress != "" {
		fmt.Fprintf(&b, "<b>Wallet:</b> <code>%s</code> %s\n",
			html.EscapeString(req.WalletAddress), html.EscapeString(req.WalletNetwork))
	}
	if req.IndividualConditions != 0 {
		b.WriteString("<b>Individual conditions</b>\n")
	}
	if req.FormURL != "" {
		fmt.Fprintf(&b, "<a href=\"%s\">Open form</a>", html.EscapeString(req.FormURL))
	}
	return strings.TrimRight(b.String(), "\n")
}

func statusMessage(status string, assignment *AssignResult, link string) string {
	msg := statusText(status)
	if assignment != nil {
		msg += "\nAssigned: " + html.EscapeString(assignment.Display())
		if link != "" {
			msg += "\n" + html.EscapeString(link)
		}
	}
	return msg
}

func calculationMessage(req *dto.CalculationReportRequest) string {
	var b strings.Builder
	b.WriteString("<b>DEAL CALCULATION</b>\n\n")

	rows := []struct {
		label string
		value string
	}{
		{"Type", req.TransactionType},
		{"Calculation", req.CalculationType},
		{"Operator rate", req.OperatorRate.String()},
		{"Total percentage", req.TotalPercentage.String()},
		{"Client rate", req.ClientRate.String()},
		{"Fee", req.Fee.String()},
		{"Formula", req.Formula},
		{"Test", req.TestInfo},
	}
	for _, row := range rows {
		if row.value == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", row.label, html.EscapeString(row.value))
	}

	fmt.Fprintf(&b, "\nTOTAL: <b>%s</b>", req.TotalToTransfer.String())
	return b.String()
}
