package user

import "github.com/frahmantamala/access-management/internal"

type DeleteAccountDTO struct {
	Confirmation string `json:"confirmation"`
}

func (d DeleteAccountDTO) Validate() error {
	if d.Confirmation == "" {
		return internal.NewValidationFieldError("confirmation", "confirmation is required", internal.ErrCodeConfirmationInvalid)
	}
	return nil
}
