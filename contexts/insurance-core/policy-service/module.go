package policyservice

import (
	"log/slog"

	httpadapter "meridian/contexts/insurance-core/policy-service/adapters/http"
	"meridian/contexts/insurance-core/policy-service/adapters/memory"
	"meridian/contexts/insurance-core/policy-service/application/commands"
	"meridian/contexts/insurance-core/policy-service/application/lifecycle"
	"meridian/contexts/insurance-core/policy-service/application/queries"
	"meridian/contexts/insurance-core/policy-service/domain/entities"
	"meridian/contexts/insurance-core/policy-service/ports"
)

type Module struct {
	Handler   httpadapter.Handler
	Lifecycle *lifecycle.Coordinator
	Store     *memory.Store
}

type Dependencies struct {
	Repository        ports.PolicyRepository
	Outbox            ports.OutboxWriter
	Correlation       ports.CorrelationStore
	Fraud             ports.FraudGateway
	Clock             ports.Clock
	IDGen             ports.IDGenerator
	StrictTransitions bool
	Logger            *slog.Logger
}

func NewModule(deps Dependencies) Module {
	coordinator := lifecycle.NewCoordinator(lifecycle.Config{
		Repository:        deps.Repository,
		Outbox:            deps.Outbox,
		Correlation:       deps.Correlation,
		Clock:             deps.Clock,
		IDGen:             deps.IDGen,
		StrictTransitions: deps.StrictTransitions,
		Logger:            deps.Logger,
	})
	createUseCase := commands.CreatePolicyUseCase{
		Repository: deps.Repository,
		Fraud:      deps.Fraud,
		Lifecycle:  coordinator,
		Clock:      deps.Clock,
		IDGen:      deps.IDGen,
		Logger:     deps.Logger,
	}
	cancelUseCase := commands.CancelPolicyUseCase{
		Lifecycle: coordinator,
		Logger:    deps.Logger,
	}
	queryUseCase := queries.QueryUseCase{
		Repository: deps.Repository,
	}
	return Module{
		Handler: httpadapter.Handler{
			CreatePolicy: createUseCase,
			CancelPolicy: cancelUseCase,
			Queries:      queryUseCase,
			Logger:       deps.Logger,
		},
		Lifecycle: coordinator,
	}
}

// NewInMemoryModule wires the module onto the in-memory store, used by tests
// and DSN-less local runs.
func NewInMemoryModule(
	seed []entities.Policy,
	correlation ports.CorrelationStore,
	fraud ports.FraudGateway,
	clock ports.Clock,
	idGen ports.IDGenerator,
	logger *slog.Logger,
) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Repository:  store,
		Outbox:      store,
		Correlation: correlation,
		Fraud:       fraud,
		Clock:       clock,
		IDGen:       idGen,
		Logger:      logger,
	})
	module.Store = store
	return module
}
