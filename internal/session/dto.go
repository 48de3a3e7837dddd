package session

type SessionsResponse struct {
	Sessions []View `json:"sessions"`
}

// RevokeAllDTO keeps the caller's current session unless KeepCurrent is
// explicitly false.
type RevokeAllDTO struct {
	KeepCurrent *bool `json:"keep_current"`
}

func (dto RevokeAllDTO) keepCurrent() bool {
	return dto.KeepCurrent == nil || *dto.KeepCurrent
}

type RevokeAllResponse struct {
	Revoked int64 `json:"revoked"`
}
