package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/kapu/vc-campus-server/pkg/vcwire"
)

// EgressFunc pushes an envelope to an external transport.
type EgressFunc func(ctx context.Context, env *vcwire.Envelope) error

// VCBridgeSession relays envelopes between the dispatcher and an external
// transport (the legacy VC client bridge). It has no user identity of its
// own; UserID is always -1.
type VCBridgeSession struct {
	id     string
	gameID int
	egress EgressFunc
}

func NewVCBridgeSession(gameID int, egress EgressFunc) *VCBridgeSession {
	return &VCBridgeSession{id: uuid.NewString(), gameID: gameID, egress: egress}
}

func (b *VCBridgeSession) ID() string       { return b.id }
func (b *VCBridgeSession) UserID() int      { return -1 }
func (b *VCBridgeSession) GameID() int      { return b.gameID }
func (b *VCBridgeSession) Receivable() bool { return b.egress != nil }

func (b *VCBridgeSession) Send(ctx context.Context, env *vcwire.Envelope) error {
	if b.egress == nil {
		return ErrNotReceivable
	}
	return b.egress(ctx, env)
}
