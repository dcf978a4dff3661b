package dialer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"voiceagent-platform/internal/phone"
	"voiceagent-platform/internal/voiceai"
)

// Resolver maps the configured caller number to the provider's phone-number
// ID, registering the number with the provider on first use. Without a
// resolved ID no call can be placed, so resolution failure fails the whole
// dial run.
type Resolver struct {
	provider    voiceai.Provider
	accountSID  string
	authToken   string
	countryCode string
	log         *slog.Logger

	mu    sync.Mutex
	cache map[string]string
}

func NewResolver(provider voiceai.Provider, accountSID, authToken, countryCode string, log *slog.Logger) *Resolver {
	return &Resolver{
		provider:    provider,
		accountSID:  accountSID,
		authToken:   authToken,
		countryCode: countryCode,
		log:         log,
		cache:       make(map[string]string),
	}
}

// Resolve returns the provider phone-number ID for number. Matching against
// the provider's registry is done on normalized form, so "0612345678" and
// "+33612345678" resolve to the same entry.
func (r *Resolver) Resolve(ctx context.Context, number string) (string, error) {
	normalized := phone.Normalize(number, r.countryCode)
	if normalized == "" {
		return "", fmt.Errorf("agent phone number is empty")
	}

	r.mu.Lock()
	if id, ok := r.cache[normalized]; ok {
		r.mu.Unlock()
		return id, nil
	}
	r.mu.Unlock()

	known, err := r.provider.ListPhoneNumbers(ctx)
	if err != nil {
		return "", fmt.Errorf("list phone numbers: %w", err)
	}
	for _, pn := range known {
		if phone.Equal(pn.Number, normalized, r.countryCode) {
			r.remember(normalized, pn.ID)
			return pn.ID, nil
		}
	}

	r.log.Info("registering phone number with provider", "number", normalized)
	registered, err := r.provider.RegisterPhoneNumber(ctx, voiceai.RegisterPhoneNumberRequest{
		Number:           normalized,
		Label:            "outbound-dialer",
		TwilioAccountSID: r.accountSID,
		TwilioAuthToken:  r.authToken,
	})
	if err != nil {
		return "", fmt.Errorf("register phone number: %w", err)
	}
	r.remember(normalized, registered.ID)
	return registered.ID, nil
}

func (r *Resolver) remember(number, id string) {
	r.mu.Lock()
	r.cache[number] = id
	r.mu.Unlock()
}
