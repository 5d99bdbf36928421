package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
)

const dateLayout = "2006-01-02"

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError carries field-level messages and matches common.ErrorInvalidInput.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Unwrap() error { return common.ErrorInvalidInput }

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &validationError{msg: err.Error()}
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("field '%s' %s", fe.Field(), msgForTag(fe)))
	}
	return &validationError{msg: strings.Join(msgs, "; ")}
}

func msgForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}

// decodeAndValidate reads a JSON body into dst and validates it.
func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &validationError{msg: "malformed JSON body"}
	}
	return validateStruct(dst)
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type userResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	AvatarURL  *string   `json:"avatar_url"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:         u.ID,
		Email:      u.Email,
		Role:       u.Role,
		AvatarURL:  u.AvatarURL,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
	}
}

type contactRequest struct {
	FirstName      string  `json:"first_name" validate:"required,max=100"`
	LastName       string  `json:"last_name" validate:"required,max=100"`
	Email          string  `json:"email" validate:"required,email"`
	PhoneNumber    string  `json:"phone_number" validate:"required"`
	Birthday       string  `json:"birthday" validate:"required,datetime=2006-01-02"`
	AdditionalData *string `json:"additional_data"`
}

func (c contactRequest) toModel() (models.Contact, error) {
	bday, err := time.Parse(dateLayout, c.Birthday)
	if err != nil {
		return models.Contact{}, &validationError{msg: "field 'birthday' must be a date in YYYY-MM-DD format"}
	}
	return models.Contact{
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		Email:          c.Email,
		PhoneNumber:    c.PhoneNumber,
		Birthday:       bday,
		AdditionalData: c.AdditionalData,
	}, nil
}

// contactPatchRequest accepts any subset of the contact fields. A field that
// is present must satisfy the same rules as on create.
type contactPatchRequest struct {
	FirstName      *string `json:"first_name" validate:"omitnil,required,max=100"`
	LastName       *string `json:"last_name" validate:"omitnil,required,max=100"`
	Email          *string `json:"email" validate:"omitnil,required,email"`
	PhoneNumber    *string `json:"phone_number" validate:"omitnil,required"`
	Birthday       *string `json:"birthday" validate:"omitnil,required,datetime=2006-01-02"`
	AdditionalData *string `json:"additional_data"`
}

func (p contactPatchRequest) toPatch() (models.ContactPatch, error) {
	patch := models.ContactPatch{
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Email:          p.Email,
		PhoneNumber:    p.PhoneNumber,
		AdditionalData: p.AdditionalData,
	}
	if p.Birthday != nil {
		bday, err := time.Parse(dateLayout, *p.Birthday)
		if err != nil {
			return models.ContactPatch{}, &validationError{msg: "field 'birthday' must be a date in YYYY-MM-DD format"}
		}
		patch.Birthday = &bday
	}
	return patch, nil
}

type contactResponse struct {
	ID             string  `json:"id"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	Email          string  `json:"email"`
	PhoneNumber    string  `json:"phone_number"`
	Birthday       string  `json:"birthday"`
	AdditionalData *string `json:"additional_data"`
	OwnerID        string  `json:"owner_id"`
}

func toContactResponse(c *models.Contact) contactResponse {
	return contactResponse{
		ID:             c.ID,
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		Email:          c.Email,
		PhoneNumber:    c.PhoneNumber,
		Birthday:       c.Birthday.Format(dateLayout),
		AdditionalData: c.AdditionalData,
		OwnerID:        c.OwnerID,
	}
}

func toContactResponses(cs []models.Contact) []contactResponse {
	out := make([]contactResponse, 0, len(cs))
	for i := range cs {
		out = append(out, toContactResponse(&cs[i]))
	}
	return out
}
