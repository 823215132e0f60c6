package transfer

// Code is the stable numeric outcome of a transfer.
type Code int

const (
	CodeSuccess                         Code = 0
	CodeSourceAccountNotEnoughResources Code = 1
	CodeDestinationAccountLocked        Code = 2
	CodeDestinationAccountNotFound      Code = 3
	CodeAmountMustBeMoreThanZero        Code = 4
)

// Result is the outcome of a transfer. Business failures are results, not errors.
type Result struct {
	Success bool   `json:"success"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

var (
	Success = Result{
		Success: true,
		Code:    CodeSuccess,
		Message: "Transfer succeeded",
	}
	SourceAccountNotEnoughResources = Result{
		Code:    CodeSourceAccountNotEnoughResources,
		Message: "Could not block requested amount on the source account",
	}
	DestinationAccountLocked = Result{
		Code:    CodeDestinationAccountLocked,
		Message: "The destination account is locked and does not accept transfers",
	}
	DestinationAccountNotFound = Result{
		Code:    CodeDestinationAccountNotFound,
		Message: "The destination account was not found",
	}
	AmountMustBeMoreThanZero = Result{
		Code:    CodeAmountMustBeMoreThanZero,
		Message: "The transfer amount must be bigger than zero",
	}
)

func (c Code) String() string {
	switch c {
	case CodeSuccess:
		return "Success"
	case CodeSourceAccountNotEnoughResources:
		return "SourceAccountNotEnoughResources"
	case CodeDestinationAccountLocked:
		return "DestinationAccountLocked"
	case CodeDestinationAccountNotFound:
		return "DestinationAccountNotFound"
	case CodeAmountMustBeMoreThanZero:
		return "AmountMustBeMoreThanZero"
	default:
		return "Unknown"
	}
}
