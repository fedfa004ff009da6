package notify

import (
	"fmt"

	"proposalRelay/internal/model"
)

// FormatMessage renders the chat text for a new proposal.
func FormatMessage(proposal model.Proposal, link string) string {
	return fmt.Sprintf(
		"New DAO Proposal Initialized:\nID: %s\nVoting End Block: %s\nProposal Link: %s",
		proposal.ProposalID.String(), proposal.VotingEndBlock.String(), link,
	)
}
