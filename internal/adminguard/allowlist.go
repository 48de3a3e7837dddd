// Package adminguard restricts the administrative surface to an allow-list
// of client IP addresses.
package adminguard

import (
	"net/netip"
	"strings"
	"time"

	allowlistDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/allowlist"
)

type Entry struct {
	ID          int64     `json:"id"`
	IPAddress   string    `json:"ip_address"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	AddedBy     *int64    `json:"added_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CanonicalIP returns the canonical text form of ip (lower-case, compressed
// IPv6; IPv4-mapped IPv6 unmapped) or the trimmed input when it does not
// parse.
func CanonicalIP(ip string) string {
	ip = strings.TrimSpace(ip)
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ip
	}
	return addr.Unmap().String()
}

func FromDataModel(e *allowlistDatamodel.AdminIPAllowEntry) *Entry {
	return &Entry{
		ID:          e.ID,
		IPAddress:   e.IPAddress,
		Description: e.Description,
		IsActive:    e.IsActive,
		AddedBy:     e.AddedBy,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}
