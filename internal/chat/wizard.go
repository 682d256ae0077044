package chat

import (
	"time"

	"intralu-bot/internal/portal"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type loginStep int

const (
	stepIdentifier loginStep = iota
	stepConfirmIdentifier
	stepSecret
	stepConfirmSecret
)

type loginState struct {
	step       loginStep
	identifier string
	secret     string
}

// wizardTTL is how long an abandoned /login keeps waiting for input.
const wizardTTL = 15 * time.Minute

// wizard tracks the chats that are halfway through /login. Entries expire so
// a forgotten flow does not swallow later messages forever.
type wizard struct {
	states *expirable.LRU[portal.ChatID, loginState]
}

func newWizard(ttl time.Duration) wizard {
	return wizard{
		states: expirable.NewLRU[portal.ChatID, loginState](1024, nil, ttl),
	}
}

func (w wizard) start(chatID portal.ChatID) {
	w.states.Add(chatID, loginState{step: stepIdentifier})
}

func (w wizard) get(chatID portal.ChatID) (loginState, bool) {
	return w.states.Get(chatID)
}

func (w wizard) set(chatID portal.ChatID, state loginState) {
	w.states.Add(chatID, state)
}

func (w wizard) cancel(chatID portal.ChatID) bool {
	return w.states.Remove(chatID)
}
