package dto

import "github.com/shopspring/decimal"

type TransactionCreateRequest struct {
	CityID               Scalar          `json:"city_id"`
	BrandID              Scalar          `json:"brand_id"`
	VisitTime            string          `json:"visit_time"`
	TransactionType      string          `json:"transaction_type"`
	ClientFullName       string          `json:"client_full_name"`
	CashAmount           decimal.Decimal `json:"cash_amount"`
	CashCurrency         string          `json:"cash_currency"`
	WalletAddress        string          `json:"wallet_address"`
	WalletNetwork        string          `json:"wallet_network"`
	FormURL              string          `json:"form_url"`
	IndividualConditions int             `json:"individual_conditions"`
}

type StatusUpdateRequest struct {
	ChatID          Scalar  `json:"chat_id"`
	MessageThreadID FlexInt `json:"message_thread_id"`
	Status          string  `json:"status"`
	Link            string  `json:"link"`
}

type CalculationReportRequest struct {
	ChatID          Scalar          `json:"chat_id"`
	MessageThreadID FlexInt         `json:"message_thread_id"`
	TransactionType string          `json:"transaction_type"`
	CalculationType string          `json:"calculation_type"`
	OperatorRate    Scalar          `json:"operator_rate"`
	TotalPercentage Scalar          `json:"total_percentage"`
	ClientRate      Scalar          `json:"client_rate"`
	Fee             Scalar          `json:"fee"`
	Formula         string          `json:"formula"`
	TotalToTransfer decimal.Decimal `json:"total_to_transfer"`
	TestInfo        string          `json:"test_info"`
}

type DocumentUploadRequest struct {
	ChatID          Scalar `json:"chat_id"`
	MessageThreadID int    `json:"message_thread_id"`
	FileURL         string `json:"file_url"`
}
