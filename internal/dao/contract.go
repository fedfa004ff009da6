package dao

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"proposalRelay/internal/model"
)

const (
	// EventProposalInitialized is the only event the relay subscribes to.
	EventProposalInitialized = "ProposalInitialized"

	fieldProposalID     = "proposalId"
	fieldVotingEndBlock = "votingEndBlock"
)

// Contract is a typed handle over the DAO contract built from its fetched ABI.
type Contract struct {
	address common.Address
	abi     abi.ABI
	event   abi.Event
	bound   *bind.BoundContract
}

// NewContract parses abiJSON and binds it to address. backend may be nil when
// the handle is only used to decode logs.
func NewContract(address common.Address, abiJSON []byte, backend bind.ContractBackend) (*Contract, error) {
	parsed, err := abi.JSON(bytes.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}

	event, ok := parsed.Events[EventProposalInitialized]
	if !ok {
		return nil, fmt.Errorf("abi has no %s event", EventProposalInitialized)
	}
	for _, name := range []string{fieldProposalID, fieldVotingEndBlock} {
		if !hasInput(event, name) {
			return nil, fmt.Errorf("%s event has no %s field", EventProposalInitialized, name)
		}
	}

	return &Contract{
		address: address,
		abi:     parsed,
		event:   event,
		bound:   bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

// Address returns the checksummed contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// EventID returns topic0 of ProposalInitialized.
func (c *Contract) EventID() common.Hash {
	return c.event.ID
}

// Events lists event signatures declared by the ABI, sorted by name.
func (c *Contract) Events() []string {
	names := make([]string, 0, len(c.abi.Events))
	for name := range c.abi.Events {
		names = append(names, name)
	}
	sort.Strings(names)

	sigs := make([]string, 0, len(names))
	for _, name := range names {
		sigs = append(sigs, c.abi.Events[name].Sig)
	}
	return sigs
}

// DecodeProposal unpacks a ProposalInitialized log.
func (c *Contract) DecodeProposal(log types.Log) (model.Proposal, error) {
	if log.Address != c.address {
		return model.Proposal{}, fmt.Errorf("log from %s, expected %s", log.Address.Hex(), c.address.Hex())
	}

	values := make(map[string]interface{})
	if err := c.bound.UnpackLogIntoMap(values, EventProposalInitialized, log); err != nil {
		return model.Proposal{}, fmt.Errorf("unpack %s: %w", EventProposalInitialized, err)
	}

	proposalID, err := asUint(values, fieldProposalID)
	if err != nil {
		return model.Proposal{}, err
	}
	votingEndBlock, err := asUint(values, fieldVotingEndBlock)
	if err != nil {
		return model.Proposal{}, err
	}

	return model.Proposal{
		ProposalID:     proposalID,
		VotingEndBlock: votingEndBlock,
		BlockNumber:    log.BlockNumber,
		TxHash:         log.TxHash.Hex(),
		LogIndex:       uint64(log.Index),
	}, nil
}

func hasInput(event abi.Event, name string) bool {
	for _, input := range event.Inputs {
		if input.Name == name {
			return true
		}
	}
	return false
}

func asUint(values map[string]interface{}, name string) (*big.Int, error) {
	value, ok := values[name]
	if !ok {
		return nil, fmt.Errorf("missing field %s", name)
	}

	var out *big.Int
	switch typed := value.(type) {
	case *big.Int:
		out = new(big.Int).Set(typed)
	case uint8:
		out = new(big.Int).SetUint64(uint64(typed))
	case uint16:
		out = new(big.Int).SetUint64(uint64(typed))
	case uint32:
		out = new(big.Int).SetUint64(uint64(typed))
	case uint64:
		out = new(big.Int).SetUint64(typed)
	default:
		return nil, fmt.Errorf("field %s has unexpected type %T", name, value)
	}

	if out.Sign() < 0 {
		return nil, fmt.Errorf("field %s is negative: %s", name, out)
	}
	return out, nil
}
