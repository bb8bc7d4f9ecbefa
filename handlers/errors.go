package handlers

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"

	"github.com/padraicbc/raceops/models"
)

var statusByCode = map[string]int{
	models.CodeNotFound:            http.StatusNotFound,
	models.CodeDuplicateAssignment: http.StatusConflict,
	models.CodeAlreadyGenerated:    http.StatusConflict,
	models.CodeAlreadyClaimed:      http.StatusConflict,
	models.CodeTerminalState:       http.StatusConflict,
	models.CodePrefixConflict:      http.StatusConflict,
	models.CodeConcurrencyConflict: http.StatusConflict,
	models.CodeInvalidTransition:   http.StatusUnprocessableEntity,
	models.CodeMissingPrefix:       http.StatusUnprocessableEntity,
	models.CodeNothingToGenerate:   http.StatusUnprocessableEntity,
	models.CodeIneligible:          http.StatusUnprocessableEntity,
	models.CodeCouponExpired:       http.StatusUnprocessableEntity,
	models.CodeCouponExhausted:     http.StatusUnprocessableEntity,
	models.CodeCouponNotApplicable: http.StatusUnprocessableEntity,
	models.CodeInvalidInput:        http.StatusBadRequest,
}

// httpError maps a service error to an echo error. Domain errors render as
// {code, message}; anything else is a 500 with the cause kept internal.
func httpError(err error) error {
	var de *models.DomainError
	if errors.As(err, &de) {
		status, ok := statusByCode[de.Code]
		if !ok {
			status = http.StatusBadRequest
		}
		return domainHTTPError(status, de)
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "erro interno").SetInternal(err)
}

// invalid wraps a bind or validation failure as INVALID_INPUT.
func invalid(err error) error {
	msg := err.Error()
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		msg = verrs.Error()
	}
	return domainHTTPError(http.StatusBadRequest, models.NewDomainError(models.CodeInvalidInput, msg))
}

// domainHTTPError keeps the code in the body. echo flattens an error message
// to {"message": ...}, so the pair goes out as a plain map.
func domainHTTPError(status int, de *models.DomainError) *echo.HTTPError {
	return echo.NewHTTPError(status, echo.Map{"code": de.Code, "message": de.Message}).SetInternal(de)
}

type validatable interface {
	Validate() error
}

// bind decodes the body into req and validates it.
func bind(c echo.Context, req validatable) error {
	if err := c.Bind(req); err != nil {
		return invalid(err)
	}
	if err := req.Validate(); err != nil {
		return invalid(err)
	}
	return nil
}
