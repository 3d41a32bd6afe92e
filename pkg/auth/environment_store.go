package auth

import (
	"os"
	"time"

	"imgurcomments/pkg/config"
)

// EnvClientID is the variable the environment store reads
const EnvClientID = config.EnvPrefix + "CLIENT_ID"

// EnvironmentStore is a read-only CredentialStore backed by IMGURCOMMENTS_CLIENT_ID
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment credential under any name
func (e *EnvironmentStore) Retrieve(name string) (*Credential, error) {
	clientID := os.Getenv(EnvClientID)
	if clientID == "" {
		return nil, ErrCredentialsNotFound
	}

	if name == "" {
		name = DefaultName
	}

	return &Credential{
		Name:     name,
		ClientID: clientID,
		Note:     "from " + EnvClientID,
		// environment values never win over stored ones in Manager.List
		LastModified: time.Time{},
	}, nil
}

// List returns a single credential if the variable is set
func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve("")
	if err != nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if the environment credential is set
func (e *EnvironmentStore) Exists(name string) bool {
	return os.Getenv(EnvClientID) != ""
}
