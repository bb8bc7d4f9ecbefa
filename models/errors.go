package models

// DomainError is a user-facing failure with a stable code and a specific message.
// Two DomainErrors match under errors.Is when their codes are equal, so callers can
// compare against the sentinels below while the message names the entity involved.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

const (
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeTerminalState       = "TERMINAL_STATE"
	CodeDuplicateAssignment = "DUPLICATE_ASSIGNMENT"
	CodeMissingPrefix       = "MISSING_PREFIX"
	CodePrefixConflict      = "PREFIX_CONFLICT"
	CodeAlreadyGenerated    = "ALREADY_GENERATED"
	CodeNothingToGenerate   = "NOTHING_TO_GENERATE"
	CodeNotFound            = "NOT_FOUND"
	CodeIneligible          = "INELIGIBLE"
	CodeAlreadyClaimed      = "ALREADY_CLAIMED"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeCouponExpired       = "COUPON_EXPIRED"
	CodeCouponExhausted     = "COUPON_EXHAUSTED"
	CodeCouponNotApplicable = "COUPON_NOT_APPLICABLE"
)

var (
	ErrInvalidTransition   = NewDomainError(CodeInvalidTransition, "transição de status não permitida")
	ErrTerminalState       = NewDomainError(CodeTerminalState, "o pedido já foi entregue")
	ErrDuplicateAssignment = NewDomainError(CodeDuplicateAssignment, "o mesmo atleta foi atribuído a mais de uma inscrição")
	ErrMissingPrefix       = NewDomainError(CodeMissingPrefix, "modalidade sem prefixo de numeração")
	ErrPrefixConflict      = NewDomainError(CodePrefixConflict, "prefixo de numeração repetido")
	ErrAlreadyGenerated    = NewDomainError(CodeAlreadyGenerated, "a numeração desta corrida já foi gerada")
	ErrNothingToGenerate   = NewDomainError(CodeNothingToGenerate, "nenhuma inscrição identificada para numerar")
	ErrNotFound            = NewDomainError(CodeNotFound, "registro não encontrado")
	ErrIneligible          = NewDomainError(CodeIneligible, "inscrição não está apta para retirada do kit")
	ErrAlreadyClaimed      = NewDomainError(CodeAlreadyClaimed, "kit já retirado")
	ErrInvalidInput        = NewDomainError(CodeInvalidInput, "dados inválidos")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "registro alterado por outra operação")
	ErrCouponExpired       = NewDomainError(CodeCouponExpired, "este cupom expirou")
	ErrCouponExhausted     = NewDomainError(CodeCouponExhausted, "este cupom atingiu o limite de usos")
	ErrCouponNotApplicable = NewDomainError(CodeCouponNotApplicable, "este cupom não é válido para esta corrida")
)
