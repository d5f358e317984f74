package solana

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/ybbus/jsonrpc"
)

// TransactionErrorKey is the string key returned in a transaction error.
//
// Source: https://github.com/solana-labs/solana/blob/fc2bf2d3b669d1c6655ae48b0a05f470938f3676/sdk/src/transaction/mod.rs#L37
type TransactionErrorKey string

const (
	TransactionErrorAccountInUse               TransactionErrorKey = "AccountInUse"
	TransactionErrorAccountNotFound            TransactionErrorKey = "AccountNotFound"
	TransactionErrorProgramAccountNotFound     TransactionErrorKey = "ProgramAccountNotFound"
	TransactionErrorInsufficientFundsForFee    TransactionErrorKey = "InsufficientFundsForFee"
	TransactionErrorDuplicateSignature         TransactionErrorKey = "DuplicateSignature"
	TransactionErrorBlockhashNotFound          TransactionErrorKey = "BlockhashNotFound"
	TransactionErrorInstructionError           TransactionErrorKey = "InstructionError"
	TransactionErrorMissingSignatureForFee     TransactionErrorKey = "MissingSignatureForFee"
	TransactionErrorInvalidAccountIndex        TransactionErrorKey = "InvalidAccountIndex"
	TransactionErrorSignatureFailure           TransactionErrorKey = "SignatureFailure"
	TransactionErrorInvalidProgramForExecution TransactionErrorKey = "InvalidProgramForExecution"
	TransactionErrorSanitizeFailure            TransactionErrorKey = "SanitizeFailure"
	TransactionErrorAccountBorrowOutstanding   TransactionErrorKey = "AccountBorrowOutstanding"
	TransactionErrorInsufficientFundsForRent   TransactionErrorKey = "InsufficientFundsForRent"
	TransactionErrorAccountLoadedTwice         TransactionErrorKey = "AccountLoadedTwice"
)

// InstructionErrorKey is the string key returned in an instruction error.
//
// Source: https://github.com/solana-labs/solana/blob/4e2754341514cd181ae3f373cc2548bd22e918b8/sdk/program/src/instruction.rs#L23
type InstructionErrorKey string

const (
	InstructionErrorGenericError                InstructionErrorKey = "GenericError"
	InstructionErrorInvalidArgument             InstructionErrorKey = "InvalidArgument"
	InstructionErrorInvalidInstructionData      InstructionErrorKey = "InvalidInstructionData"
	InstructionErrorInvalidAccountData          InstructionErrorKey = "InvalidAccountData"
	InstructionErrorAccountDataTooSmall         InstructionErrorKey = "AccountDataTooSmall"
	InstructionErrorInsufficientFunds           InstructionErrorKey = "InsufficientFunds"
	InstructionErrorIncorrectProgramID          InstructionErrorKey = "IncorrectProgramId"
	InstructionErrorMissingRequiredSignature    InstructionErrorKey = "MissingRequiredSignature"
	InstructionErrorAccountAlreadyInitialized   InstructionErrorKey = "AccountAlreadyInitialized"
	InstructionErrorUninitializedAccount        InstructionErrorKey = "UninitializedAccount"
	InstructionErrorUnbalancedInstruction       InstructionErrorKey = "UnbalancedInstruction"
	InstructionErrorModifiedProgramID           InstructionErrorKey = "ModifiedProgramId"
	InstructionErrorExternalAccountLamportSpend InstructionErrorKey = "ExternalAccountLamportSpend"
	InstructionErrorExternalAccountDataModified InstructionErrorKey = "ExternalAccountDataModified"
	InstructionErrorReadonlyLamportChange       InstructionErrorKey = "ReadonlyLamportChange"
	InstructionErrorReadonlyDataModified        InstructionErrorKey = "ReadonlyDataModified"
	InstructionErrorExecutableModified          InstructionErrorKey = "ExecutableModified"
	InstructionErrorNotEnoughAccountKeys        InstructionErrorKey = "NotEnoughAccountKeys"
	InstructionErrorAccountDataSizeChanged      InstructionErrorKey = "AccountDataSizeChanged"
	InstructionErrorAccountNotExecutable        InstructionErrorKey = "AccountNotExecutable"
	InstructionErrorAccountBorrowFailed         InstructionErrorKey = "AccountBorrowFailed"
	InstructionErrorAccountBorrowOutstanding    InstructionErrorKey = "AccountBorrowOutstanding"
	InstructionErrorCustom                      InstructionErrorKey = "Custom"
	InstructionErrorUnsupportedProgramID        InstructionErrorKey = "UnsupportedProgramId"
	InstructionErrorInvalidSeeds                InstructionErrorKey = "InvalidSeeds"
	InstructionErrorInvalidRealloc              InstructionErrorKey = "InvalidRealloc"
	InstructionErrorComputationalBudgetExceeded InstructionErrorKey = "ComputationalBudgetExceeded"
	InstructionErrorBorshIoError                InstructionErrorKey = "BorshIoError"
	InstructionErrorProgramFailedToComplete     InstructionErrorKey = "ProgramFailedToComplete"
)

// ProgramError is a builtin error a program returns to the runtime.
type ProgramError InstructionErrorKey

var (
	ErrNotEnoughAccountKeys        = ProgramError(InstructionErrorNotEnoughAccountKeys)
	ErrIncorrectProgramID          = ProgramError(InstructionErrorIncorrectProgramID)
	ErrMissingRequiredSignature    = ProgramError(InstructionErrorMissingRequiredSignature)
	ErrInvalidInstructionData      = ProgramError(InstructionErrorInvalidInstructionData)
	ErrInvalidAccountData          = ProgramError(InstructionErrorInvalidAccountData)
	ErrInvalidArgument             = ProgramError(InstructionErrorInvalidArgument)
	ErrInsufficientFunds           = ProgramError(InstructionErrorInsufficientFunds)
	ErrAccountBorrowFailed         = ProgramError(InstructionErrorAccountBorrowFailed)
	ErrAccountBorrowOutstanding    = ProgramError(InstructionErrorAccountBorrowOutstanding)
	ErrAccountDataSizeChanged      = ProgramError(InstructionErrorAccountDataSizeChanged)
	ErrExternalAccountDataModified = ProgramError(InstructionErrorExternalAccountDataModified)
	ErrExternalLamportSpend        = ProgramError(InstructionErrorExternalAccountLamportSpend)
	ErrReadonlyDataModified        = ProgramError(InstructionErrorReadonlyDataModified)
	ErrReadonlyLamportChange       = ProgramError(InstructionErrorReadonlyLamportChange)
	ErrExecutableModified          = ProgramError(InstructionErrorExecutableModified)
	ErrModifiedProgramID           = ProgramError(InstructionErrorModifiedProgramID)
	ErrUnbalancedInstruction       = ProgramError(InstructionErrorUnbalancedInstruction)
	ErrUnsupportedProgramID        = ProgramError(InstructionErrorUnsupportedProgramID)
	ErrInvalidSeeds                = ProgramError(InstructionErrorInvalidSeeds)
	ErrInvalidRealloc              = ProgramError(InstructionErrorInvalidRealloc)
	ErrComputationalBudgetExceeded = ProgramError(InstructionErrorComputationalBudgetExceeded)
	ErrProgramFailedToComplete     = ProgramError(InstructionErrorProgramFailedToComplete)
)

var programErrorDescriptions = map[InstructionErrorKey]string{
	InstructionErrorNotEnoughAccountKeys:        "not enough account keys",
	InstructionErrorIncorrectProgramID:          "incorrect program id",
	InstructionErrorMissingRequiredSignature:    "missing required signature",
	InstructionErrorInvalidInstructionData:      "invalid instruction data",
	InstructionErrorInvalidAccountData:          "invalid account data",
	InstructionErrorInvalidArgument:             "invalid argument",
	InstructionErrorInsufficientFunds:           "insufficient funds",
	InstructionErrorAccountBorrowFailed:         "account data already borrowed",
	InstructionErrorAccountBorrowOutstanding:    "account data borrow outstanding",
	InstructionErrorAccountDataSizeChanged:      "account data size changed",
	InstructionErrorExternalAccountDataModified: "data of an account not owned by the program was modified",
	InstructionErrorExternalAccountLamportSpend: "lamports of an account not owned by the program were debited",
	InstructionErrorReadonlyDataModified:        "data of a read-only account was modified",
	InstructionErrorReadonlyLamportChange:       "lamports of a read-only account were changed",
	InstructionErrorExecutableModified:          "executable account was modified",
	InstructionErrorModifiedProgramID:           "account owner was changed by a non-owner",
	InstructionErrorUnbalancedInstruction:       "sum of account balances changed",
	InstructionErrorUnsupportedProgramID:        "unsupported program id",
	InstructionErrorInvalidSeeds:                "invalid seeds",
	InstructionErrorInvalidRealloc:              "invalid account data realloc",
	InstructionErrorComputationalBudgetExceeded: "computational budget exceeded",
	InstructionErrorProgramFailedToComplete:     "program failed to complete",
}

func (e ProgramError) Error() string {
	if desc, ok := programErrorDescriptions[InstructionErrorKey(e)]; ok {
		return desc
	}
	return string(e)
}

// Key returns the instruction error key reported for the error.
func (e ProgramError) Key() InstructionErrorKey {
	return InstructionErrorKey(e)
}

// CustomError is the numerical error returned by a non-system program.
type CustomError int

func (c CustomError) Error() string {
	return fmt.Sprintf("custom program error: %x", int(c))
}

// InstructionError indicates an instruction returned an error in a transaction.
type InstructionError struct {
	Index int
	Err   error
}

func parseInstructionError(v interface{}) (e InstructionError, err error) {
	values, ok := v.([]interface{})
	if !ok {
		return e, errors.New("unexpected instruction error format")
	}

	if len(values) != 2 {
		return e, errors.Errorf("too many entries in InstructionError tuple: %d", len(values))
	}

	e.Index, err = parseJSONNumber(values[0])
	if err != nil {
		return e, err
	}

	switch t := values[1].(type) {
	case string:
		e.Err = ProgramError(t)
	case map[string]interface{}:
		if len(t) != 1 {
			e.Err = errors.New("unhandled InstructionError")
			return e, errors.Errorf("invalid instruction result size: %d", len(t))
		}

		for k, v := range t {
			switch InstructionErrorKey(k) {
			case InstructionErrorCustom:
				code, err := parseJSONNumber(v)
				if err != nil {
					e.Err = errors.New("unhandled CustomError")
					break
				}
				e.Err = CustomError(code)
			case InstructionErrorBorshIoError:
				msg, _ := v.(string)
				e.Err = errors.New(msg)
			default:
				e.Err = ProgramError(k)
			}
		}
	}

	return e, nil
}

func (i InstructionError) Error() string {
	return fmt.Sprintf("Error processing Instruction %d: %v", i.Index, i.Err)
}

func (i InstructionError) Unwrap() error {
	return i.Err
}

// ErrorKey maps the underlying error onto its instruction error key. Errors
// that are neither builtin nor custom (for example codec failures surfaced
// by a program) are reported as BorshIoError.
func (i InstructionError) ErrorKey() InstructionErrorKey {
	if i.Err == nil {
		return ""
	}

	var pe ProgramError
	if errors.As(i.Err, &pe) {
		return pe.Key()
	}
	if i.CustomError() != nil {
		return InstructionErrorCustom
	}

	return InstructionErrorBorshIoError
}

func (i InstructionError) JSONString() string {
	switch i.ErrorKey() {
	case InstructionErrorCustom:
		return fmt.Sprintf(`[%d, {"%s": %d}]`, i.Index, InstructionErrorCustom, *i.CustomError())
	case InstructionErrorBorshIoError:
		msg, _ := json.Marshal(i.Err.Error())
		return fmt.Sprintf(`[%d, {"%s": %s}]`, i.Index, InstructionErrorBorshIoError, msg)
	default:
		return fmt.Sprintf(`[%d, "%s"]`, i.Index, i.ErrorKey())
	}
}

func (i InstructionError) CustomError() *CustomError {
	var ce CustomError
	if errors.As(i.Err, &ce) {
		return &ce
	}

	return nil
}

// TransactionError contains the transaction error details.
type TransactionError struct {
	transactionError error
	instructionError *InstructionError
	raw              interface{}
}

// ParseRPCError parses the jsonrpc.RPCError returned from a method.
func ParseRPCError(err *jsonrpc.RPCError) (*TransactionError, error) {
	if err == nil {
		return nil, nil
	}

	data, ok := err.Data.(map[string]interface{})
	if !ok {
		return nil, errors.New("expected map type")
	}

	if txErr, ok := data["err"]; ok && txErr != nil {
		return ParseTransactionError(txErr)
	}

	return nil, nil
}

// ParseTransactionError parses the JSON error returned from the "err" field in various
// RPC methods and fields.
func ParseTransactionError(raw interface{}) (*TransactionError, error) {
	if raw == nil {
		return nil, nil
	}

	switch t := raw.(type) {
	case string:
		return &TransactionError{
			transactionError: errors.New(t),
			raw:              raw,
		}, nil
	case map[string]interface{}:
		if len(t) != 1 {
			return &TransactionError{
				transactionError: errors.New("unhandled transaction error"),
				raw:              raw,
			}, errors.Errorf("invalid transaction result size: %d", len(t))
		}

		var k string
		var v interface{}
		for k, v = range t {
		}

		if k != string(TransactionErrorInstructionError) {
			return &TransactionError{
				transactionError: errors.New(k),
				raw:              raw,
			}, nil
		}

		instructionErr, err := parseInstructionError(v)
		if err != nil {
			return &TransactionError{
				transactionError: errors.New("unhandled transaction error"),
				raw:              raw,
			}, errors.Wrap(err, "failed to parse instruction error")
		}

		return &TransactionError{
			transactionError: errors.New(string(TransactionErrorInstructionError)),
			instructionError: &instructionErr,
			raw:              raw,
		}, nil
	default:
		return nil, errors.New("unhandled error type")
	}
}

func NewTransactionError(key TransactionErrorKey) *TransactionError {
	return &TransactionError{
		transactionError: errors.New(string(key)),
		raw:              string(key),
	}
}

// NewInsufficientFundsForRentError reports the account at accountIndex was
// left below its rent-exempt minimum.
func NewInsufficientFundsForRentError(accountIndex int) *TransactionError {
	return &TransactionError{
		transactionError: errors.New(string(TransactionErrorInsufficientFundsForRent)),
		raw: map[string]interface{}{
			string(TransactionErrorInsufficientFundsForRent): map[string]interface{}{
				"account_index": float64(accountIndex),
			},
		},
	}
}

func TransactionErrorFromInstructionError(err *InstructionError) (*TransactionError, error) {
	var raw interface{}
	if err := json.Unmarshal([]byte(err.JSONString()), &raw); err != nil {
		return nil, errors.Wrap(err, "failed to generate raw value")
	}

	return &TransactionError{
		transactionError: errors.New(string(TransactionErrorInstructionError)),
		instructionError: err,
		raw: map[string]interface{}{
			string(TransactionErrorInstructionError): raw,
		},
	}, nil
}

func (t TransactionError) Error() string {
	if t.instructionError != nil {
		return t.instructionError.Error()
	}

	if t.transactionError != nil {
		return t.transactionError.Error()
	}

	return ""
}

// Unwrap exposes the instruction error, so errors.Is can reach the
// program error that failed the transaction.
func (t TransactionError) Unwrap() error {
	if t.instructionError != nil {
		return *t.instructionError
	}
	return nil
}

func (t TransactionError) ErrorKey() TransactionErrorKey {
	if t.transactionError == nil {
		return ""
	}

	return TransactionErrorKey(t.transactionError.Error())
}

func (t TransactionError) InstructionError() *InstructionError {
	return t.instructionError
}

func (t TransactionError) JSONString() (string, error) {
	b, err := json.Marshal(t.raw)
	return string(b), err
}

func parseJSONNumber(v interface{}) (int, error) {
	switch t := v.(type) {
	case json.Number:
		index, err := t.Int64()
		if err != nil {
			return 0, errors.Errorf("non int64 value in InstructionError tuple: %v", v)
		}
		return int(index), nil
	case string:
		index, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, errors.Errorf("non numeric value in InstructionError tuple: %v", v)
		}
		return int(index), nil
	case float64:
		return int(t), nil
	}

	return 0, errors.Errorf("non numeric value in InstructionError tuple: %v", v)
}
