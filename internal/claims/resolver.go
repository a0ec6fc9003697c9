package claims

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrimandi/agrimarket-backend/internal/parties"
	"github.com/agrimandi/agrimarket-backend/pkg/db/models"
	"github.com/agrimandi/agrimarket-backend/pkg/enums"
	pkgerrors "github.com/agrimandi/agrimarket-backend/pkg/errors"
	"github.com/agrimandi/agrimarket-backend/pkg/logger"
)

// resolveInput carries everything the fallback chain may draw on.
type resolveInput struct {
	Explicit     *uuid.UUID
	Policy       *models.PolicyTemplate
	Subscription *models.InsuranceSubscription
}

// strategy returns the resolved agent, or nil when it has no answer. Lookup
// failures are swallowed so the chain can keep going; only the final pool
// lookup is fatal.
type strategy func(ctx context.Context, in resolveInput) *models.Party

// AgentResolver picks the agent a claim is assigned to: explicit agent, then
// the policy creator, then the subscription's recorded agent, then any
// insurance-role party, and finally the reserved pool party.
type AgentResolver struct {
	partyRepo  parties.Repository
	logg       *logger.Logger
	strategies []strategy
}

// NewAgentResolver builds the ordered fallback chain.
func NewAgentResolver(partyRepo parties.Repository, logg *logger.Logger) *AgentResolver {
	r := &AgentResolver{partyRepo: partyRepo, logg: logg}
	r.strategies = []strategy{
		r.explicitAgent,
		r.policyCreator,
		r.subscriptionAgent,
		r.anyInsuranceParty,
	}
	return r
}

// Resolve evaluates the chain in order; the first hit wins.
func (r *AgentResolver) Resolve(ctx context.Context, in resolveInput) (*models.Party, error) {
	for _, resolve := range r.strategies {
		if agent := resolve(ctx, in); agent != nil {
			return agent, nil
		}
	}

	pool, err := r.partyRepo.FindByExternalRef(ctx, models.ReservedAgentPoolRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "agent pool party is not provisioned")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load agent pool")
	}
	r.logg.Warn(ctx, "no agent resolvable, assigning claim to the reserved pool")
	return pool, nil
}

func (r *AgentResolver) explicitAgent(ctx context.Context, in resolveInput) *models.Party {
	if in.Explicit == nil {
		return nil
	}
	return r.insuranceParty(ctx, *in.Explicit, "explicit agent")
}

func (r *AgentResolver) policyCreator(ctx context.Context, in resolveInput) *models.Party {
	if in.Policy == nil {
		return nil
	}
	return r.insuranceParty(ctx, in.Policy.CreatorID, "policy creator")
}

func (r *AgentResolver) subscriptionAgent(ctx context.Context, in resolveInput) *models.Party {
	if in.Subscription == nil || in.Subscription.AgentID == nil {
		return nil
	}
	return r.insuranceParty(ctx, *in.Subscription.AgentID, "subscription agent")
}

func (r *AgentResolver) anyInsuranceParty(ctx context.Context, _ resolveInput) *models.Party {
	party, err := r.partyRepo.FindAnyByRole(ctx, enums.PartyRoleInsurance)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			r.logg.Warn(ctx, "insurance party lookup failed, falling through")
		}
		return nil
	}
	return party
}

// insuranceParty loads the candidate and keeps it only if it carries the
// insurance role. Anything else falls through to the next strategy.
func (r *AgentResolver) insuranceParty(ctx context.Context, id uuid.UUID, source string) *models.Party {
	party, err := r.partyRepo.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logCtx := r.logg.WithField(ctx, "source", source)
			r.logg.Warn(logCtx, "agent candidate lookup failed, falling through")
		}
		return nil
	}
	if party.Role != enums.PartyRoleInsurance {
		return nil
	}
	return party
}
