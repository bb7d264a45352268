package services

import "errors"

// LotteryError is a protocol error surfaced to callers. Code values match
// the on-chain program so clients can map either source the same way.
type LotteryError struct {
	Code    int
	Name    string
	Message string
}

func (e *LotteryError) Error() string { return e.Message }

var (
	ErrInvalidTicketCount = &LotteryError{6000, "InvalidTicketCount", "invalid ticket count"}
	ErrRoundNotActive     = &LotteryError{6001, "RoundNotActive", "round is not active"}
	ErrRoundNotExpired    = &LotteryError{6002, "RoundNotExpired", "round has not expired yet"}
	ErrRoundExpired       = &LotteryError{6003, "RoundExpired", "round has expired"}
	ErrMaxTicketsReached  = &LotteryError{6004, "MaxTicketsReached", "maximum tickets per round reached"}
	ErrNoTicketsSold      = &LotteryError{6005, "NoTicketsSold", "no tickets were sold in this round"}
	ErrRoundNotEnded      = &LotteryError{6006, "RoundNotEnded", "round has not ended yet"}
	ErrNoWinningNumber    = &LotteryError{6007, "NoWinningNumber", "no winning number has been set"}
	ErrNotWinner          = &LotteryError{6008, "NotWinner", "ticket position does not hold the winning index"}
	ErrInvalidWinner      = &LotteryError{6009, "InvalidWinner", "ticket position belongs to another buyer"}
	ErrUserNotActivated   = &LotteryError{6010, "UserNotActivated", "wallet not activated"}
	ErrAlreadyActivated   = &LotteryError{6011, "AlreadyActivated", "wallet already activated"}
	ErrInvalidAdminWallet = &LotteryError{6012, "InvalidAdminWallet", "invalid admin wallet address"}
	ErrNoPrize            = &LotteryError{6013, "NoPrize", "no prize available to claim"}
	ErrMathOverflow       = &LotteryError{6014, "MathOverflow", "arithmetic overflow"}
)

var lotteryErrors = []*LotteryError{
	ErrInvalidTicketCount, ErrRoundNotActive, ErrRoundNotExpired, ErrRoundExpired,
	ErrMaxTicketsReached, ErrNoTicketsSold, ErrRoundNotEnded, ErrNoWinningNumber,
	ErrNotWinner, ErrInvalidWinner, ErrUserNotActivated, ErrAlreadyActivated,
	ErrInvalidAdminWallet, ErrNoPrize, ErrMathOverflow,
}

// ErrorByCode returns the protocol error with the given code.
func ErrorByCode(code int) (*LotteryError, bool) {
	for _, e := range lotteryErrors {
		if e.Code == code {
			return e, true
		}
	}
	return nil, false
}

// AsLotteryError unwraps err to a protocol error, if it is one.
func AsLotteryError(err error) (*LotteryError, bool) {
	var le *LotteryError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
