package model

import "math/big"

// Proposal is a decoded ProposalInitialized event.
type Proposal struct {
	ProposalID     *big.Int
	VotingEndBlock *big.Int
	BlockNumber    uint64
	TxHash         string
	LogIndex       uint64
}
