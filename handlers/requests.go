package handlers

import (
	"errors"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/shopspring/decimal"

	"github.com/padraicbc/raceops/lifecycle"
	"github.com/padraicbc/raceops/models"
)

var (
	documentPattern = regexp.MustCompile(`^[0-9.\-/ ]{5,20}$|^[A-Za-z0-9]{5,20}$`)
	shirtSizes      = []interface{}{"PP", "P", "M", "G", "GG", "XG", "XGG", "INFANTIL"}
)

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *signinRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

type couponRequest struct {
	Code   string          `json:"code"`
	RaceID string          `json:"raceId"`
	Amount decimal.Decimal `json:"amount"`
}

func (r *couponRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Code, validation.Required, validation.Length(2, 40)),
		validation.Field(&r.RaceID, validation.Required, is.UUID),
		validation.Field(&r.Amount, validation.By(positiveAmount)),
	)
}

func positiveAmount(v interface{}) error {
	d, _ := v.(decimal.Decimal)
	if !d.IsPositive() {
		return errors.New("deve ser maior que zero")
	}
	return nil
}

type profileRequest struct {
	FullName       string `json:"fullName"`
	DocumentNumber string `json:"documentNumber"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	BirthDate      string `json:"birthDate"`
	Gender         string `json:"gender"`
	TeamName       string `json:"teamName"`
}

func (r profileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.Length(3, 120)),
		validation.Field(&r.DocumentNumber, validation.Required, validation.Match(documentPattern)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.BirthDate, validation.Date("2006-01-02")),
	)
}

func (r profileRequest) profile() models.AthleteProfile {
	return models.AthleteProfile{
		FullName:       r.FullName,
		DocumentNumber: r.DocumentNumber,
		Email:          r.Email,
		Phone:          r.Phone,
		BirthDate:      r.BirthDate,
		Gender:         r.Gender,
		TeamName:       r.TeamName,
	}
}

type identifyRequest struct {
	Profile   profileRequest `json:"profile"`
	ShirtSize string         `json:"shirtSize"`
}

func (r *identifyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Profile),
		validation.Field(&r.ShirtSize, validation.In(shirtSizes...)),
	)
}

type bulkIdentifyRequest struct {
	Assignments []lifecycle.Assignment `json:"assignments"`
}

func (r *bulkIdentifyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Assignments, validation.Required, validation.By(assignmentsComplete)),
	)
}

func assignmentsComplete(v interface{}) error {
	list, _ := v.([]lifecycle.Assignment)
	for _, a := range list {
		if a.ParticipantID == "" || a.TeamMemberID == "" {
			return errors.New("participantId e teamMemberId são obrigatórios")
		}
	}
	return nil
}

type kitCodeRequest struct {
	Code   string `json:"code"`
	RaceID string `json:"raceId"`
}

func (r *kitCodeRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Code, validation.Required),
		validation.Field(&r.RaceID, validation.Required, is.UUID),
	)
}

type kitConfirmRequest struct {
	ParticipantID   string `json:"participantId"`
	RaceID          string `json:"raceId"`
	ResponsibleName string `json:"responsibleName"`
	Observation     string `json:"observation"`
}

func (r *kitConfirmRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ParticipantID, validation.Required, is.UUID),
		validation.Field(&r.RaceID, validation.Required, is.UUID),
		validation.Field(&r.ResponsibleName, validation.Length(0, 120)),
		validation.Field(&r.Observation, validation.Length(0, 500)),
	)
}

type blockRequest struct {
	Reason string `json:"reason"`
}

func (r *blockRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Reason, validation.Required, validation.Length(3, 500)),
	)
}

type deliveryStatusRequest struct {
	Status      models.DeliveryStatus `json:"status"`
	Observation string                `json:"observation"`
}

func (r *deliveryStatusRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Status, validation.Required, validation.In(
			models.DeliveryPrinted, models.DeliveryDelivered, models.DeliveryNotAnswered, models.DeliveryProblem)),
		validation.Field(&r.Observation, validation.Length(0, 1000)),
	)
}

type scanRequest struct {
	Code string `json:"code"`
}

func (r *scanRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Code, validation.Required),
	)
}

type prefixesRequest struct {
	Prefixes map[string]int `json:"prefixes"`
}

func (r *prefixesRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Prefixes, validation.Required),
	)
}
