// Package apikey mints API keys. The raw key is returned once and only
// its bcrypt hash is persisted.
package apikey

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kiranshivaraju/equiplens/pkg/models"
)

const (
	// Prefix starts every raw key.
	Prefix = "el_"
	// PrefixLen is the number of leading characters stored in clear for lookup.
	PrefixLen = 8

	secretBytes = 24
)

// Generate creates a key for ownerID and returns the raw key with the record
// to persist. cost is the bcrypt cost; zero selects bcrypt.DefaultCost.
func Generate(ownerID uuid.UUID, name string, scopes []string, cost int) (string, *models.APIKey, error) {
	secret := make([]byte, secretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", nil, fmt.Errorf("reading random bytes: %w", err)
	}
	raw := Prefix + hex.EncodeToString(secret)

	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), cost)
	if err != nil {
		return "", nil, fmt.Errorf("hashing key: %w", err)
	}

	if scopes == nil {
		scopes = []string{}
	}
	now := time.Now().UTC()
	return raw, &models.APIKey{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Name:      name,
		KeyHash:   string(hash),
		KeyPrefix: raw[:PrefixLen],
		Scopes:    scopes,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
