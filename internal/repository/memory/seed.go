package memory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
)

// Seed is the fixture format read from MEMORY_SEED_FILE. Accounts and catalog
// products are owned by other services, so a memory-backed process needs them
// loaded up front.
type Seed struct {
	Users    []domain.User    `json:"users"`
	Products []domain.Product `json:"products"`
}

// LoadSeedFile reads a JSON seed file.
func LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	return &seed, nil
}

// Apply loads the seed into the store. Missing statuses default to a fresh
// product awaiting moderation.
func (s *Store) Apply(seed *Seed) {
	now := s.now()
	for _, u := range seed.Users {
		if u.Role == "" {
			u.Role = domain.RoleUser
		}
		if u.CreatedAt.IsZero() {
			u.CreatedAt = now
		}
		s.PutUser(u)
	}
	for _, p := range seed.Products {
		if p.Status == "" {
			p.Status = domain.ProductStatusDraft
		}
		if p.ModerationStatus == "" {
			p.ModerationStatus = domain.ModerationPending
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = p.CreatedAt
		}
		s.PutProduct(p)
	}
}
