// Package app wires configuration, providers, the dispatch log and the
// dispatcher together for the HTTP server and the CLI.
package app

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"parent-messenger/internal/batch"
	"parent-messenger/internal/config"
	"parent-messenger/internal/database"
	"parent-messenger/internal/dispatch"
	"parent-messenger/internal/hypersender"
	"parent-messenger/internal/smsgateway"
	"parent-messenger/internal/twilio"
	"parent-messenger/internal/wassenger"
	"parent-messenger/internal/whatsapp"
	"parent-messenger/internal/ws"
)

type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	Clients    dispatch.Router
	DB         *gorm.DB
	Store      *database.LogStore // nil when the dispatch log is disabled
	Hub        *ws.Hub            // nil unless WithHub
	Dispatcher *batch.Dispatcher
}

type Option func(*options)

type options struct {
	hub     bool
	clients *dispatch.Router
}

// WithHub adds a websocket hub that receives batch progress.
func WithHub() Option {
	return func(o *options) { o.hub = true }
}

// WithClients replaces the configured providers.
func WithClients(r dispatch.Router) Option {
	return func(o *options) { o.clients = &r }
}

// New validates cfg and builds everything a batch needs. Configuration
// problems come back as *config.Error before anything is sent.
func New(cfg *config.Config, log *zap.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if log == nil {
		log = zap.NewNop()
	}

	a := &App{Config: cfg, Logger: log}
	if o.clients != nil {
		a.Clients = *o.clients
	} else {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		clients, err := NewClients(cfg)
		if err != nil {
			return nil, err
		}
		a.Clients = clients
	}

	db, err := database.Open(cfg, log)
	if err != nil {
		return nil, err
	}
	var recorders []batch.Recorder
	if db != nil {
		a.DB = db
		a.Store = database.NewLogStore(db)
		recorders = append(recorders, a.Store)
	}
	if o.hub {
		a.Hub = ws.NewHub(log.Named("ws"))
		recorders = append(recorders, a.Hub)
	}

	a.Dispatcher, err = batch.New(cfg, a.Clients, log.Named("batch"), recorders...)
	if err != nil {
		a.Close()
		return nil, err
	}
	log.Info("Dispatcher ready",
		zap.String("provider", a.Clients.Default.Name()),
		zap.Bool("sms", a.Clients.SMS != nil),
		zap.Bool("dispatch_log", a.Store != nil))
	return a, nil
}

// NewClients builds the provider clients selected by PROVIDER and
// SMS_PROVIDER.
func NewClients(cfg *config.Config) (dispatch.Router, error) {
	var r dispatch.Router
	var err error

	switch cfg.Provider {
	case config.ProviderMeta:
		r.Default, err = whatsapp.NewClient(cfg)
	case config.ProviderWassenger:
		r.Default, err = wassenger.NewClient(cfg)
	case config.ProviderHypersender:
		r.Default, err = hypersender.NewClient(cfg)
	default:
		err = &config.Error{Key: "PROVIDER", Reason: fmt.Sprintf("unknown provider %q", cfg.Provider)}
	}
	if err != nil {
		return dispatch.Router{}, err
	}

	switch cfg.SMSProvider {
	case "":
	case config.ProviderTwilio:
		r.SMS, err = twilio.NewClient(cfg)
	case config.ProviderSMSGateway:
		r.SMS, err = smsgateway.NewClient(cfg)
	default:
		err = &config.Error{Key: "SMS_PROVIDER", Reason: fmt.Sprintf("unknown provider %q", cfg.SMSProvider)}
	}
	if err != nil {
		return dispatch.Router{}, err
	}
	return r, nil
}

// Close releases the database connection.
func (a *App) Close() {
	if a.DB == nil {
		return
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
}
