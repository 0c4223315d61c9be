package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"

	"github.com/woodraft/draftauth/internal/server/models"
)

// bcrypt only looks at the first 72 bytes.
const maxPasswordBytes = 72

const maxBodyBytes = 1 << 20

type inviteRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (r inviteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Token    string `json:"token"`
}

func (r registerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(1, maxPasswordBytes)),
		validation.Field(&r.Token, validation.Required),
	)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// decode reads a JSON body into dst, trims surrounding whitespace from
// string fields via normalize and runs validation. It writes the 422
// response itself and reports false on failure.
func decode[T validation.Validatable](w http.ResponseWriter, r *http.Request, dst *T, normalize func(*T)) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		errorJSON(w, http.StatusUnprocessableEntity, detailInvalidBody)
		return false
	}

	if normalize != nil {
		normalize(dst)
	}

	if err := (*dst).Validate(); err != nil {
		var fields validation.Errors
		if errors.As(err, &fields) {
			errorJSON(w, http.StatusUnprocessableEntity, fields)
		} else {
			errorJSON(w, http.StatusUnprocessableEntity, err.Error())
		}
		return false
	}
	return true
}

func trimInvite(r *inviteRequest) {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
}

func trimRegister(r *registerRequest) {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Token = strings.TrimSpace(r.Token)
}

func trimLogin(r *loginRequest) {
	r.Email = strings.TrimSpace(r.Email)
}

type messageResponse struct {
	Message string `json:"message"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// userResponse never carries the password hash or invite token.
type userResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	IsVerified bool      `json:"is_verified"`
	IsAdmin    bool      `json:"is_admin"`
	CreatedAt  time.Time `json:"created_at"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		IsVerified: u.IsVerified,
		IsAdmin:    u.IsAdmin,
		CreatedAt:  u.CreatedAt,
	}
}

type sessionResponse struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	IsAdmin    bool      `json:"is_admin"`
	IsVerified bool      `json:"is_verified"`
}

type coachResponse struct {
	ID         uuid.UUID     `json:"id"`
	Name       string        `json:"name"`
	Email      string        `json:"email"`
	Status     models.Status `json:"status"`
	IsVerified bool          `json:"is_verified"`
	CreatedAt  time.Time     `json:"created_at"`
}
