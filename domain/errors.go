package domain

import "errors"

var (
	// ErrInternalServerError will throw if any the Internal Server Error happen
	ErrInternalServerError = errors.New("Internal Server Error")
	// ErrNotFound will throw if the requested item is not exists
	ErrNotFound = errors.New("Your requested Item is not found")
	// ErrConflict will throw if the current action already exists
	ErrConflict = errors.New("Your Item already exist")
	// ErrBadParamInput will throw if the given request-body or params is not valid
	ErrBadParamInput = errors.New("Given Param is not valid")

	// validation errors: rejected before any state mutation or external call
	ErrNotAdmin            = errors.New("only admin can make that action")
	ErrNotOwner            = errors.New("only owner can make that action")
	ErrNotOfferer          = errors.New("can not withdraw other user's offer")
	ErrNotApprovedContract = errors.New("contract is not approved")
	ErrNotOnSale           = errors.New("item is not on sale")
	ErrOnSale              = errors.New("remove the item from sale first")
	ErrAlreadyListed       = errors.New("item is already listed")
	ErrAuctionActive       = errors.New("there is an opened auction")
	ErrAuctionExists       = errors.New("there is already an auction")
	ErrNoAuction           = errors.New("auction does not exist")
	ErrAuctionEnded        = errors.New("auction has already ended")
	ErrAuctionNotEnded     = errors.New("auction is not over")
	ErrPriceTooLow         = errors.New("can not offer less or equal to the current bid price")
	ErrInvalidPrice        = errors.New("invalid price")
	ErrInvalidPeriod       = errors.New("invalid bid period or duration")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrValueMismatch       = errors.New("attached value does not match price")
	ErrDuplicateOffer      = errors.New("an offer with these params already exists")
	ErrNoSuchOffer         = errors.New("offer does not exist")

	// ErrWrongTransaction reports a different in-flight saga on the listing.
	ErrWrongTransaction = errors.New("wrong transaction")

	// ErrTransferFailed reports an external transfer failure before the
	// irreversible tail; state is rolled back and the caller may retry from
	// scratch.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrRerunTransaction reports an external transfer failure after the
	// irreversible tail; the saga slot is left populated and the caller must
	// resubmit the identical request to resume.
	ErrRerunTransaction = errors.New("rerun transaction")

	// request error
	ErrInvalidAddress   = errors.New("Invalid address")
	ErrInvalidSignature = errors.New("Invalid signature")
)
