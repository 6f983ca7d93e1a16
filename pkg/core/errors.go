package core

import (
	"errors"
	"fmt"
)

var ErrEntityNotFound = errors.New("entity not found")

// ExitError is an abort raised by a contract handler. The transaction that
// produced it leaves no trace except what the ledger bounces back.
type ExitError struct {
	Code uint32
	Name string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%v (exit code %d)", e.Name, e.Code)
}

func exitError(code uint32, name string) *ExitError {
	return &ExitError{Code: code, Name: name}
}

var (
	ErrInvalidLength          = exitError(201, "invalid_length")
	ErrInvalidSignature       = exitError(202, "invalid_signature")
	ErrWrongSubwalletID       = exitError(203, "wrong_subwallet_id")
	ErrNotYetValidSignature   = exitError(204, "not_yet_valid_signature")
	ErrExpiredSignature       = exitError(205, "expired_signature")
	ErrNotEnoughFunds         = exitError(206, "not_enough_funds")
	ErrWrongTopupComment      = exitError(207, "wrong_topup_comment")
	ErrUnknownOp              = exitError(208, "unknown_op")
	ErrUninited               = exitError(210, "uninited")
	ErrTooSmallStake          = exitError(211, "too_small_stake")
	// ErrExpectedOnchainContent and ErrForbiddenChangeDNS belong to the DNS
	// record handlers, which items do not implement.
	ErrExpectedOnchainContent = exitError(212, "expected_onchain_content")
	ErrForbiddenNotDeploy     = exitError(213, "forbidden_not_deploy")
	ErrForbiddenNotStake      = exitError(214, "forbidden_not_stake")
	ErrForbiddenTopup         = exitError(215, "forbidden_topup")
	ErrForbiddenTransfer      = exitError(216, "forbidden_transfer")
	ErrForbiddenChangeDNS     = exitError(217, "forbidden_change_dns")
	ErrForbiddenTouch         = exitError(218, "forbidden_touch")
	ErrNoAuction              = exitError(219, "no_auction")
	ErrForbiddenAuction       = exitError(220, "forbidden_auction")
	ErrAlreadyHasStakes       = exitError(221, "already_has_stakes")
	// Starting an auction while one is configured fails with
	// ErrForbiddenNotStake, ErrAuctionAlreadyStarted is never raised.
	ErrAuctionAlreadyStarted  = exitError(222, "auction_already_started")
	ErrInvalidAuctionConfig   = exitError(223, "invalid_auction_config")
	ErrInvalidSenderAddress   = exitError(224, "invalid_sender_address")
	ErrIncorrectWorkchain     = exitError(333, "incorrect_workchain")
)

// ExitCodeOf extracts the contract exit code carried by err.
func ExitCodeOf(err error) (uint32, bool) {
	var e *ExitError
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}
