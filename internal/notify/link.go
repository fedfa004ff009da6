package notify

import "math/big"

// LinkBuilder renders frontend links to a proposal page.
type LinkBuilder struct {
	prefix string
}

// NewLinkBuilder joins baseURL and frontendContract verbatim; baseURL is
// expected to carry its own trailing slash.
func NewLinkBuilder(baseURL, frontendContract string) LinkBuilder {
	return LinkBuilder{prefix: baseURL + frontendContract + "/proposals/"}
}

// ProposalLink returns {base}{contract}/proposals/{id}.
func (b LinkBuilder) ProposalLink(proposalID *big.Int) string {
	return b.prefix + proposalID.String()
}
