package app

import (
	"context"
	"fmt"

	"github.com/familygrove/engine/internal/app/domain/feature"
	"github.com/familygrove/engine/internal/app/events"
	"github.com/familygrove/engine/internal/app/metrics"
	entitlementsvc "github.com/familygrove/engine/internal/app/services/entitlements"
	growthsvc "github.com/familygrove/engine/internal/app/services/growth"
	ledgersvc "github.com/familygrove/engine/internal/app/services/ledger"
	membersvc "github.com/familygrove/engine/internal/app/services/members"
	rewardsvc "github.com/familygrove/engine/internal/app/services/rewards"
	tasksvc "github.com/familygrove/engine/internal/app/services/tasks"
	"github.com/familygrove/engine/internal/app/storage"
	"github.com/familygrove/engine/internal/app/storage/memory"
	"github.com/familygrove/engine/internal/app/system"
	"github.com/familygrove/engine/pkg/logger"
)

// Options configures optional application dependencies. The zero value wires
// an in-memory store with the compiled-in presets.
type Options struct {
	Store      storage.Store
	Presets    *feature.Presets
	EventsSize int
}

// Application ties the domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Bus          *events.Bus
	Members      *membersvc.Service
	Ledger       *ledgersvc.Service
	Tasks        *tasksvc.Service
	Rewards      *rewardsvc.Service
	Growth       *growthsvc.Service
	Entitlements *entitlementsvc.Service
}

// New builds a fully initialised application.
func New(opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	store := opts.Store
	if store == nil {
		store = memory.New()
	}

	bus := events.NewBus(opts.EventsSize)
	manager := system.NewManager()

	memberService := membersvc.New(store, log)
	ledgerService := ledgersvc.New(store, store, bus, log)
	taskService := tasksvc.New(store, store, ledgerService, bus, log)
	rewardService := rewardsvc.New(store, store, ledgerService, bus, log)
	growthService := growthsvc.New(store, store, ledgerService, bus, log)
	entitlementService := entitlementsvc.New(store, store, opts.Presets, bus, log)

	bus.Subscribe(recordMetrics)

	for _, name := range []string{"members", "ledger", "tasks", "rewards", "growth", "entitlements"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	return &Application{
		manager:      manager,
		log:          log,
		Bus:          bus,
		Members:      memberService,
		Ledger:       ledgerService,
		Tasks:        taskService,
		Rewards:      rewardService,
		Growth:       growthService,
		Entitlements: entitlementService,
	}, nil
}

// recordMetrics keeps the Prometheus counters in step with the event stream.
func recordMetrics(e events.Event) {
	switch e.Type {
	case events.TypeBalanceChanged:
		metrics.RecordTransaction(e.Payload["kind"])
	case events.TypeTaskCompleted:
		metrics.RecordTaskCompletion()
	case events.TypeRewardRedeemed:
		metrics.RecordRedemption()
	case events.TypeTreeGrown:
		metrics.RecordTreeGrown()
	}
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
