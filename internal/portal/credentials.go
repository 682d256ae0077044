package portal

import (
	"intralu-bot/internal/components/store"
)

// CredentialStore keeps the credentials each chat submitted, in memory only.
type CredentialStore struct {
	creds *store.Store[ChatID, Credentials]
}

func NewCredentialStore() CredentialStore {
	return CredentialStore{creds: store.New[ChatID, Credentials]()}
}

// Set overwrites whatever the chat submitted before.
func (s CredentialStore) Set(chatID ChatID, creds Credentials) {
	s.creds.Put(chatID, creds)
}

func (s CredentialStore) Get(chatID ChatID) (Credentials, bool) {
	return s.creds.Get(chatID)
}
