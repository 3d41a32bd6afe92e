package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

const testClientID = "0123456789abcde"

func TestManagerLifecycle(t *testing.T) {
	manager, store := NewMockManager()

	cred := &Credential{Name: "work", ClientID: "  " + testClientID + "\n", Note: "laptop"}
	require.NoError(t, manager.Store(cred))
	assert.Equal(t, testClientID, cred.ClientID, "client id is trimmed")
	assert.False(t, cred.LastModified.IsZero())

	retrieved, err := manager.Retrieve("work")
	require.NoError(t, err)
	assert.Equal(t, testClientID, retrieved.ClientID)
	assert.Equal(t, "laptop", retrieved.Note)

	creds, err := manager.List()
	require.NoError(t, err)
	assert.Len(t, creds, 1)

	require.NoError(t, manager.Delete("work"))
	_, err = manager.Retrieve("work")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.Equal(t, 0, store.Count())

	err = manager.Delete("work")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestManagerStoreValidation(t *testing.T) {
	manager, _ := NewMockManager()

	tests := []struct {
		name string
		cred *Credential
	}{
		{name: "nil", cred: nil},
		{name: "empty client id", cred: &Credential{Name: "x"}},
		{name: "whitespace inside", cred: &Credential{Name: "x", ClientID: "abc def ghi"}},
		{name: "too short", cred: &Credential{Name: "x", ClientID: "abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, manager.Store(tt.cred))
		})
	}
}

func TestManagerDefaultName(t *testing.T) {
	manager, store := NewMockManager()

	require.NoError(t, manager.Store(&Credential{ClientID: testClientID}))
	assert.True(t, store.Exists(DefaultName))

	cred, err := manager.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, DefaultName, cred.Name)
}

func TestRetrieveDefaultFallsBackToNewest(t *testing.T) {
	store := NewMockStore()
	manager := NewManagerWithStores(store)

	now := time.Now()
	require.NoError(t, store.Store(&Credential{Name: "old", ClientID: "aaaaaaaaaa", LastModified: now.Add(-time.Hour)}))
	require.NoError(t, store.Store(&Credential{Name: "new", ClientID: "bbbbbbbbbb", LastModified: now}))

	cred, err := manager.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "new", cred.Name)

	_, err = NewManagerWithStores(NewMockStore()).RetrieveDefault()
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestManagerFallsThroughFailingStore(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("keychain locked")
	working := NewMockStore()
	manager := NewManagerWithStores(broken, working)

	require.NoError(t, manager.Store(&Credential{Name: "x", ClientID: testClientID}))
	assert.Equal(t, 0, broken.Count())
	assert.Equal(t, 1, working.Count())

	working.StoreError = errors.New("disk full")
	err := manager.Store(&Credential{Name: "y", ClientID: testClientID})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestSanitizeCredential(t *testing.T) {
	cred := &Credential{Name: "x", ClientID: testClientID}

	masked := SanitizeCredential(cred)
	assert.Equal(t, "0123...bcde", masked.ClientID)
	assert.Equal(t, testClientID, cred.ClientID, "original untouched")
	assert.Nil(t, SanitizeCredential(nil))
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv(EnvPassphrase, "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "nested", "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	assert.Equal(t, path, store.Path())

	require.NoError(t, store.Store(&Credential{Name: "default", ClientID: "secretclientid42"}))
	require.NoError(t, store.Store(&Credential{Name: "other", ClientID: "anotherclientid7"}))

	cred, err := store.Retrieve("default")
	require.NoError(t, err)
	assert.Equal(t, "secretclientid42", cred.ClientID)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "secretclientid42")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	t.Run("wrong passphrase cannot read", func(t *testing.T) {
		t.Setenv(EnvPassphrase, "something else")
		other, err := NewEncryptedFileStore(path)
		require.NoError(t, err)
		_, err = other.Retrieve("default")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrCredentialsNotFound)
	})

	creds, err := store.List()
	require.NoError(t, err)
	assert.Len(t, creds, 2)

	require.NoError(t, store.Delete("other"))
	require.NoError(t, store.Delete("default"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file removed with the last credential")

	assert.ErrorIs(t, store.Delete("default"), ErrCredentialsNotFound)
	assert.False(t, store.Exists("default"))
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	t.Setenv(EnvPassphrase, "")
	dir := t.TempDir()

	store, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)
	require.NoError(t, store.Store(&Credential{Name: "default", ClientID: testClientID}))

	_, err = os.Stat(filepath.Join(dir, ".passphrase"))
	require.NoError(t, err)

	reopened, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)
	cred, err := reopened.Retrieve("default")
	require.NoError(t, err)
	assert.Equal(t, testClientID, cred.ClientID)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	creds, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, creds)

	require.NoError(t, store.Store(&Credential{Name: "work", ClientID: testClientID, LastModified: time.Now()}))
	require.NoError(t, store.Store(&Credential{Name: "home", ClientID: "fedcba987654321", LastModified: time.Now()}))
	require.NoError(t, store.Store(&Credential{Name: "work", ClientID: "abcdefabcdef123", LastModified: time.Now()}))

	assert.True(t, store.Exists("work"))
	cred, err := store.Retrieve("work")
	require.NoError(t, err)
	assert.Equal(t, "abcdefabcdef123", cred.ClientID)

	creds, err = store.List()
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, "home", creds[0].Name)
	assert.Equal(t, "work", creds[1].Name)

	require.NoError(t, store.Delete("home"))
	assert.ErrorIs(t, store.Delete("home"), ErrCredentialsNotFound)
	_, err = store.Retrieve("home")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	creds, err = store.List()
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "work", creds[0].Name)

	assert.ErrorIs(t, store.Store(&Credential{}), ErrInvalidCredentials)
}

func TestEnvironmentStore(t *testing.T) {
	store := NewEnvironmentStore()

	t.Setenv(EnvClientID, "")
	_, err := store.Retrieve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.False(t, store.Exists(""))

	t.Setenv(EnvClientID, "envclientid123")
	cred, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, DefaultName, cred.Name)
	assert.Equal(t, "envclientid123", cred.ClientID)

	creds, err := store.List()
	require.NoError(t, err)
	assert.Len(t, creds, 1)

	assert.ErrorIs(t, store.Store(cred), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete(DefaultName), ErrStoreUnavailable)
}

func TestStoredCredentialWinsOverEnvironment(t *testing.T) {
	t.Setenv(EnvPassphrase, "pass")
	t.Setenv(EnvClientID, "envclientid123")

	encrypted, err := NewEncryptedFileStore(filepath.Join(t.TempDir(), "credentials.enc"))
	require.NoError(t, err)
	manager := NewManagerWithStores(encrypted, NewEnvironmentStore())

	require.NoError(t, manager.Store(&Credential{ClientID: "storedclientid9"}))

	creds, err := manager.List()
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "storedclientid9", creds[0].ClientID)

	require.NoError(t, manager.Delete(DefaultName), "environment refusal is not a failure")
}

func TestMockStoreErrorInjection(t *testing.T) {
	store := NewMockStore()
	store.ListError = errors.New("injected error")

	_, err := store.List()
	assert.EqualError(t, err, "injected error")
}

func TestShowClientIDGuide(t *testing.T) {
	var buf bytes.Buffer
	ShowClientIDGuide(&buf)
	assert.Contains(t, buf.String(), "https://api.imgur.com/oauth2/addclient")

	buf.Reset()
	ShowQuickGuide(&buf)
	assert.Contains(t, buf.String(), "Client ID")
}
