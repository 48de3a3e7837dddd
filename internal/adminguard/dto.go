package adminguard

type AddEntryDTO struct {
	IPAddress   string `json:"ip_address"`
	Description string `json:"description"`
}

type ToggleEntryDTO struct {
	IsActive *bool `json:"is_active"`
}

type EntriesResponse struct {
	Entries []*Entry `json:"entries"`
}
