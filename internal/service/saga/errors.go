package saga

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Reason — тег причины отказа саги. Все внутренние ошибки перехватываются
// на границе саги и возвращаются одним исходом с тегом; наружу ничего
// не «пролетает» необработанным.
type Reason string

const (
	ReasonValidation        Reason = "validation"
	ReasonNotFound          Reason = "not_found"
	ReasonInsufficientStock Reason = "insufficient_stock"
	ReasonInvalidTransition Reason = "invalid_transition"
	ReasonPersistence       Reason = "persistence"
)

// Error — единый исход неудачной операции саги: причина, первичная ошибка
// и список ошибок компенсации (если откатить что-то не удалось).
// Ошибки компенсации не подменяют первичную причину, но и не теряются.
type Error struct {
	Reason       Reason
	Err          error
	Compensation []error
}

// Error формирует текст с первичной причиной и ошибками компенсации.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "saga failed (%s): %v", e.Reason, e.Err)
	for _, comp := range e.Compensation {
		fmt.Fprintf(&b, "; compensation: %v", comp)
	}
	return b.String()
}

// Unwrap отдаёт первичную ошибку для errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(reason Reason, err error) *Error {
	return &Error{Reason: reason, Err: err}
}

// ReasonOf возвращает тег причины или пустую строку для сторонних ошибок.
func ReasonOf(err error) Reason {
	var sagaErr *Error
	if errors.As(err, &sagaErr) {
		return sagaErr.Reason
	}
	return ""
}

// reasonFor классифицирует ошибку нижнего слоя по таксономии саги.
func reasonFor(err error) Reason {
	switch {
	case domain.IsNotFound(err):
		return ReasonNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		return ReasonInsufficientStock
	case errors.Is(err, domain.ErrInvalidTransition):
		return ReasonInvalidTransition
	default:
		return ReasonPersistence
	}
}
