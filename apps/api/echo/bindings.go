package echoapi

import "github.com/arkibo/backend/core"

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
		// Remember asks for a durable session instead of a tab-scoped one.
		Remember bool `json:"remember"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	ReactionRequest struct {
		Type string `json:"type" validate:"required,oneof=like love clap"`
	}
)

func (r *LoginRequest) Validate() error {
	r.Email = core.CleanString(r.Email, true /* lower */)
	return core.Validate.Struct(r)
}

func (r *ReactionRequest) Validate() error {
	r.Type = core.CleanString(r.Type, true /* lower */)
	return core.Validate.Struct(r)
}
