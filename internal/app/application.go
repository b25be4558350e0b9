package app

import (
	"context"
	"time"

	"github.com/VanityClub/membership_layer/internal/app/domain/tier"
	"github.com/VanityClub/membership_layer/internal/app/services/leaderboard"
	"github.com/VanityClub/membership_layer/internal/app/services/ledger"
	"github.com/VanityClub/membership_layer/internal/app/services/payments"
	"github.com/VanityClub/membership_layer/internal/app/storage"
	"github.com/VanityClub/membership_layer/internal/app/storage/memory"
	"github.com/VanityClub/membership_layer/internal/gateway"
	"github.com/VanityClub/membership_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Intents storage.IntentStore
	Members storage.MemberStore
}

// Options configures the application beyond its stores.
type Options struct {
	Catalog            *tier.Catalog
	Gateway            gateway.PaymentGateway
	WebhookSecret      string
	SignatureTolerance time.Duration
}

// Application ties the domain services together.
type Application struct {
	log *logger.Logger

	Catalog  *tier.Catalog
	Ledger   *ledger.Service
	Payments *payments.Service
	Ingestor *payments.Ingestor
}

// New builds a fully initialised application with the provided stores.
func New(ctx context.Context, stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Intents == nil {
		stores.Intents = mem
	}
	if stores.Members == nil {
		stores.Members = mem
	}

	catalog := opts.Catalog
	if catalog == nil {
		catalog = tier.DefaultCatalog()
	}

	ledgerService, err := ledger.New(ctx, stores.Members, leaderboard.NewIndex(), log.WithField("component", "ledger"))
	if err != nil {
		return nil, err
	}

	paymentService := payments.New(catalog, stores.Intents, ledgerService, opts.Gateway, log.WithField("component", "payments"))
	ingestor := payments.NewIngestor(paymentService, opts.WebhookSecret, opts.SignatureTolerance, log.WithField("component", "webhook"))

	return &Application{
		log:      log,
		Catalog:  catalog,
		Ledger:   ledgerService,
		Payments: paymentService,
		Ingestor: ingestor,
	}, nil
}
