// Package app composes the membership layer services into a running
// application.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct and wiring
//	├── domain/             # Domain models (pure data structures)
//	│   ├── tier/           # Tier catalog and definitions
//	│   ├── payment/        # Payment intent records
//	│   └── member/         # Member tier records and leaderboard entries
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # Store interfaces (IntentStore, MemberStore)
//	│   ├── memory/         # In-memory implementation for tests and dev
//	│   └── postgres/       # PostgreSQL implementation for production
//	├── services/           # Business logic
//	│   ├── payments/       # Payment verification and webhook ingestion
//	│   ├── ledger/         # Authoritative tier and spend ledger
//	│   └── leaderboard/    # Ordered spend index
//	├── httpapi/            # HTTP handlers and routing
//	└── metrics/            # Prometheus collectors
//
// # Responsibilities
//
// The app package is responsible for:
//
//   - Composing services with their stores and the payment gateway
//   - Defining the storage interfaces that services depend on
//   - Providing domain models shared across services
//   - Exposing the HTTP endpoints for external access
//
// Business rules live under internal/app/services/; this package only wires
// them together.
//
// # Example: Adding a New Domain
//
// When adding a new domain (e.g., "gifting"):
//
//  1. Create domain models in internal/app/domain/gifting/
//  2. Add a storage interface to internal/app/storage/interfaces.go
//  3. Implement storage in internal/app/storage/postgres/ and memory/
//  4. Create the service in internal/app/services/gifting/service.go
//  5. Wire the service in internal/app/application.go
//  6. Add HTTP handlers in internal/app/httpapi/handler.go
package app
