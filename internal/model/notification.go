package model

// NotificationRecord is the journal representation of one send attempt.
type NotificationRecord struct {
	ProposalID     string `json:"proposal_id"`
	VotingEndBlock string `json:"voting_end_block"`
	Link           string `json:"link"`
	ChatID         string `json:"chat_id"`
	Text           string `json:"text"`
	Response       string `json:"response,omitempty"`
	Error          string `json:"error,omitempty"`
	BlockNumber    uint64 `json:"block_number"`
	TxHash         string `json:"tx_hash"`
	LogIndex       uint64 `json:"log_index"`
	SentAt         string `json:"sent_at"`
}
