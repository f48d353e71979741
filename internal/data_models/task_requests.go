package dto

type AssignRequest struct {
	ChatID          Scalar  `json:"chat_id"`
	MessageThreadID FlexInt `json:"message_thread_id"`
	Link            string  `json:"link"`
}

type ActionRequestData struct {
	OperatorID Scalar `json:"operator_id"`
	Action     string `json:"action"`
}

type EvidenceRequest struct {
	OperatorID Scalar `json:"operator_id"`
	Text       string `json:"text"`
}
