package api

import (
	"errors"

	"github.com/atmx/gateway-sim/internal/auth"
	"github.com/atmx/gateway-sim/internal/history"
	"github.com/atmx/gateway-sim/internal/order"
)

// Error codes are per operation family; the numeric values are the
// gateway's wire values.

const codeSuccess = 0

// Login, app and API key.
const (
	loginInvalidCredentials = 3
	loginUnknownError       = 8
)

// Logout.
const (
	logoutInvalidSession = 1
	logoutUnknownError   = 2
)

// Validate.
const (
	validateSessionNotFound = 2
	validateExpiredToken    = 3
	validateUnknownError    = 4
)

// Order and position search, trade search.
const (
	searchAccountNotFound = 1
)

// Contract by id.
const (
	contractNotFound = 1
)

// Place order.
const (
	placeAccountNotFound   = 1
	placeOrderRejected     = 2
	placeUnknownError      = 7
	placeContractNotFound  = 8
	placeContractNotActive = 9
	placeAccountRejected   = 10
)

// Cancel and modify share a code space.
const (
	changeAccountNotFound = 1
	changeOrderNotFound   = 2
	changeRejected        = 3
	changeUnknownError    = 5
)

// Close position.
const (
	closeAccountNotFound  = 1
	closePositionNotFound = 2
	closeContractNotFound = 3
	closeUnknownError     = 7
)

// Partial close position.
const (
	partialAccountNotFound  = 1
	partialPositionNotFound = 2
	partialInvalidCloseSize = 5
	partialUnknownError     = 8
)

// Retrieve bars.
const (
	barsContractNotFound  = 1
	barsUnitInvalid       = 2
	barsUnitNumberInvalid = 3
	barsLimitInvalid      = 4
)

// codeFor returns the code paired with the first sentinel err matches, or
// fallback.
func codeFor(err error, fallback int, table []errCode) int {
	for _, ec := range table {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return fallback
}

type errCode struct {
	err  error
	code int
}

var loginCodes = []errCode{
	{auth.ErrInvalidCredentials, loginInvalidCredentials},
}

var logoutCodes = []errCode{
	{auth.ErrNoToken, logoutInvalidSession},
	{auth.ErrSessionNotFound, logoutInvalidSession},
}

// An unknown token reads as expired; only a missing one is SessionNotFound.
var validateCodes = []errCode{
	{auth.ErrNoToken, validateSessionNotFound},
	{auth.ErrSessionNotFound, validateExpiredToken},
	{auth.ErrSessionExpired, validateExpiredToken},
}

var placeCodes = []errCode{
	{order.ErrAccountNotFound, placeAccountNotFound},
	{order.ErrContractNotFound, placeContractNotFound},
	{order.ErrContractNotActive, placeContractNotActive},
	{order.ErrAccountRejected, placeAccountRejected},
	{order.ErrInvalidSize, placeOrderRejected},
	{order.ErrInvalidSide, placeOrderRejected},
}

var changeCodes = []errCode{
	{order.ErrAccountNotFound, changeAccountNotFound},
	{order.ErrOrderNotFound, changeOrderNotFound},
	{order.ErrNotOwner, changeRejected},
	{order.ErrInvalidStatus, changeRejected},
	{order.ErrInvalidSize, changeRejected},
}

var closeCodes = []errCode{
	{order.ErrAccountNotFound, closeAccountNotFound},
	{order.ErrPositionNotFound, closePositionNotFound},
	{order.ErrContractNotFound, closeContractNotFound},
}

var partialCodes = []errCode{
	{order.ErrAccountNotFound, partialAccountNotFound},
	{order.ErrPositionNotFound, partialPositionNotFound},
	{order.ErrInvalidCloseSize, partialInvalidCloseSize},
}

var barsCodes = []errCode{
	{history.ErrContractNotFound, barsContractNotFound},
	{history.ErrUnitInvalid, barsUnitInvalid},
	{history.ErrUnitNumberInvalid, barsUnitNumberInvalid},
	{history.ErrLimitInvalid, barsLimitInvalid},
}
