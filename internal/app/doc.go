// Package app composes the family economy engine into a running application.
//
// # Architecture Role
//
// The app package sits above the domain and storage layers and wires them
// into services, an event bus, and metrics. It is NOT a business logic
// layer - business logic belongs in internal/app/services/.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── member/         # Family members and roles
//	│   ├── ledger/         # Point transactions
//	│   ├── task/           # Tasks, statuses, recurrence
//	│   ├── reward/         # Reward catalog and redemptions
//	│   ├── tree/           # Trees, growth stages, collections
//	│   └── feature/        # Feature catalog, presets, subscriptions
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # Store interfaces and the atomic Tx surface
//	│   ├── memory/         # In-memory implementation for testing
//	│   └── postgres/       # PostgreSQL implementation for production
//	├── services/           # Business logic, one package per module
//	├── events/             # In-process event bus with replay buffer
//	├── httpapi/            # HTTP API handlers and the websocket feed
//	├── system/             # Lifecycle management
//	└── metrics/            # Prometheus collectors
//
// # Responsibilities
//
// The app package is responsible for:
//
//   - Composing services from internal/app/services/ with their dependencies
//   - Defining the storage interfaces that services depend on
//   - Providing the domain models shared across services
//   - Exposing HTTP endpoints and the event feed for external access
//   - Keeping metrics in step with the domain event stream
//
// # Example: Adding a New Domain
//
// When adding a new domain (e.g. "goals"):
//
//  1. Create domain models in internal/app/domain/goal/
//  2. Add a store interface to internal/app/storage/interfaces.go
//  3. Implement storage in internal/app/storage/postgres/ and memory/
//  4. Create a service in internal/app/services/goals/service.go
//  5. Wire the service in internal/app/application.go
//  6. Add HTTP handlers in internal/app/httpapi/
package app
