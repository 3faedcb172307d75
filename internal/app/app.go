// Package app wires repositories, services and handlers into one
// http.Handler.
package app

import (
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/auth"
	authrepo "github.com/ovaphlow/pitchfork/service-shop-go/internal/auth/repo"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/credential"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/design"
	designrepo "github.com/ovaphlow/pitchfork/service-shop-go/internal/design/repo"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/mail"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/memstore"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/order"
	orderrepo "github.com/ovaphlow/pitchfork/service-shop-go/internal/order/repo"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/payment"
	paymentrepo "github.com/ovaphlow/pitchfork/service-shop-go/internal/payment/repo"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/recovery"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/store"
	storerepo "github.com/ovaphlow/pitchfork/service-shop-go/internal/store/repo"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-shop-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-shop-go/pkg/database"
)

// Repos are the persistence collaborators of the services.
type Repos struct {
	Users    user.Repository
	Sessions auth.SessionRepository
	Stores   store.Repository
	Designs  design.Repository
	Orders   order.Repository
	Ledger   payment.EventLedger
}

// MemoryRepos backs every repository with ms.
func MemoryRepos(ms *memstore.Store) Repos {
	return Repos{
		Users:    ms.Users(),
		Sessions: ms.Sessions(),
		Stores:   ms.Stores(),
		Designs:  ms.Designs(),
		Orders:   ms.Orders(),
		Ledger:   ms.Ledger(),
	}
}

// PostgresRepos returns sqlx repositories and the table ensurers in
// foreign key order.
func PostgresRepos(db *sqlx.DB) (Repos, []database.TableEnsurer) {
	users := userrepo.NewUserRepo(db)
	sessions := authrepo.NewRefreshRepo(db)
	stores := storerepo.NewStoreRepo(db)
	designs := designrepo.NewRepo(db)
	orders := orderrepo.NewOrderRepo(db)
	ledger := paymentrepo.NewLedgerRepo(db)
	repos := Repos{
		Users:    users,
		Sessions: sessions,
		Stores:   stores,
		Designs:  designs,
		Orders:   orders,
		Ledger:   ledger,
	}
	return repos, []database.TableEnsurer{users, sessions, stores, designs, orders, ledger}
}

// Options carries collaborators that tests replace.
type Options struct {
	// Mailer defaults to SMTP.
	Mailer mail.Sender
	// Gateway defaults to YooKassa when merchant credentials are set.
	Gateway payment.Gateway
	Hasher  credential.PasswordHasher
}

// App is the assembled service.
type App struct {
	Handler  http.Handler
	Users    *user.UserService
	Auth     *auth.Service
	Recovery *recovery.Service
	Stores   *store.Service
	Designs  *design.Service
	Orders   *order.Service
	Webhook  *payment.Webhook
}

func New(cfg *config.Config, logger *zap.SugaredLogger, repos Repos, opts Options) (*App, error) {
	hasher := opts.Hasher
	if hasher == nil {
		hasher = credential.BcryptHasher{Cost: cfg.Auth.BcryptCost}
	}
	signer := credential.NewSigner([]byte(cfg.Auth.JWTSecret), cfg.Auth.Leeway)

	users := user.NewUserService(repos.Users, hasher)
	authSvc := auth.NewService(users, signer, repos.Sessions, auth.Options{
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
		Rotation:   cfg.Auth.RefreshRotation,
	})

	mailer := opts.Mailer
	if mailer == nil {
		mailer = mail.NewSMTPSender(cfg.Mail)
	}
	recoverySvc := recovery.NewService(users, signer, mailer, logger, recovery.Options{
		TTL:         cfg.Auth.ResetTTL,
		SingleUse:   cfg.Auth.ResetSingleUse,
		SendTimeout: cfg.Mail.Timeout,
	})

	gateway := opts.Gateway
	if gateway == nil && cfg.Payment.Enabled() {
		gateway = payment.NewYooKassaClient(cfg.Payment)
	}
	if gateway == nil {
		logger.Warn("payment gateway disabled: orders are created without payments")
	}

	allow, err := payment.NewAllowList(cfg.Webhook.AllowedSources, cfg.Webhook.TrustProxy)
	if err != nil {
		return nil, fmt.Errorf("webhook allow list: %w", err)
	}

	stores := store.NewService(repos.Stores)
	designs := design.NewService(repos.Designs, stores, cfg.PublicBaseURL)
	orders := order.NewService(repos.Orders, stores, gateway, payment.MerchantCredentials{
		ShopID:    cfg.Payment.ShopID,
		SecretKey: cfg.Payment.SecretKey,
	}, cfg.Payment.Currency, logger)
	webhook := payment.NewWebhook(repos.Orders, repos.Ledger, logger)

	storeHandler := store.NewHandler(stores, logger)
	handler := router.RegisterRoutes(logger, router.Handlers{
		Auth:     auth.NewHandler(authSvc, users, logger),
		AuthSvc:  authSvc,
		Recovery: recovery.NewHandler(recoverySvc, logger),
		Payment:  payment.NewHandler(webhook, allow, cfg.Webhook.MaxBodyBytes, logger),
		Store:    storeHandler,
		Design:   design.NewHandler(designs, storeHandler, logger),
		Order:    order.NewHandler(orders, logger),
	})

	return &App{
		Handler:  handler,
		Users:    users,
		Auth:     authSvc,
		Recovery: recoverySvc,
		Stores:   stores,
		Designs:  designs,
		Orders:   orders,
		Webhook:  webhook,
	}, nil
}
