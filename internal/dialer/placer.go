package dialer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"voiceagent-platform/internal/campaign"
	"voiceagent-platform/internal/conversation"
	"voiceagent-platform/internal/phone"
	"voiceagent-platform/internal/voiceai"
)

// Placer starts one outbound call and records it. The conversation row is
// created and linked to the contact BEFORE any polling, so a crashed or
// timed-out run still leaves enough breadcrumbs for the reconciliation sweep.
type Placer struct {
	provider      voiceai.Provider
	conversations conversation.Store
	contacts      campaign.Store
	agentNumber   string
	countryCode   string
	clock         func() time.Time
}

func NewPlacer(provider voiceai.Provider, conversations conversation.Store, contacts campaign.Store, agentNumber, countryCode string) *Placer {
	return &Placer{
		provider:      provider,
		conversations: conversations,
		contacts:      contacts,
		agentNumber:   agentNumber,
		countryCode:   countryCode,
		clock:         time.Now,
	}
}

// Place dials the contact and returns the local conversation record. The
// returned conversation always carries the provider's session ID.
func (p *Placer) Place(ctx context.Context, camp campaign.Campaign, ct campaign.Contact, phoneNumberID string) (conversation.Conversation, error) {
	callee := phone.Normalize(ct.Phone, p.countryCode)

	result, err := p.provider.StartOutboundCall(ctx, voiceai.OutboundCallRequest{
		AgentID:       camp.AgentID,
		PhoneNumberID: phoneNumberID,
		ToNumber:      callee,
		DynamicVariables: map[string]string{
			"contact_name":  ct.Name,
			"contact_phone": callee,
			"campaign_name": camp.Name,
		},
	})
	if err != nil {
		return conversation.Conversation{}, fmt.Errorf("start outbound call: %w", err)
	}

	providerID := result.ConversationID
	conv := conversation.Conversation{
		ID:                     uuid.NewString(),
		UserID:                 camp.UserID,
		AgentID:                camp.AgentID,
		ProviderConversationID: &providerID,
		Status:                 conversation.StatusActive,
		Direction:              conversation.DirectionOutbound,
		CallerPhone:            phone.Normalize(p.agentNumber, p.countryCode),
		CalleePhone:            callee,
		CreatedAt:              p.clock().UTC(),
	}
	if err := p.conversations.Create(ctx, conv); err != nil {
		return conversation.Conversation{}, fmt.Errorf("record conversation: %w", err)
	}
	if err := p.contacts.LinkConversation(ctx, ct.ID, conv.ID); err != nil {
		return conversation.Conversation{}, fmt.Errorf("link conversation: %w", err)
	}
	return conv, nil
}
