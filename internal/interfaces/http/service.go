package httpinterface

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/fiatln-daemon/internal/core/bus"
	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
	"github.com/tdex-network/fiatln-daemon/internal/core/ports"
	"github.com/tdex-network/fiatln-daemon/internal/interfaces"
)

const (
	defaultCommandTimeout  = 30 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

type ServiceOpts struct {
	Address   string
	Publisher bus.Publisher
	Settings  domain.Settings
	// WebhookSvc is optional, the webhook endpoints are not served if nil.
	WebhookSvc       WebhookService
	ConnectionStatus ports.ConnectionStatus
	CommandTimeout   time.Duration
}

func (o ServiceOpts) validate() error {
	if len(o.Address) <= 0 {
		return fmt.Errorf("missing listening address")
	}
	if o.Publisher == nil {
		return fmt.Errorf("missing publisher")
	}
	return o.Settings.Validate()
}

// Service serves the user commands over HTTP. It must be added to the bus
// router to receive the replies to the commands it publishes.
type Service struct {
	opts     ServiceOpts
	commands *commandBridge
	engine   *gin.Engine
	server   *http.Server
}

var _ interfaces.Service = (*Service)(nil)

func NewService(opts ServiceOpts) (*Service, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid opts: %s", err)
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}

	gin.SetMode(gin.ReleaseMode)
	commands := newCommandBridge(opts.Publisher, opts.CommandTimeout)
	h := &handler{
		commands:   commands,
		webhookSvc: opts.WebhookSvc,
		settings:   opts.Settings,
	}
	if opts.ConnectionStatus != nil {
		h.isConnected = opts.ConnectionStatus.IsConnected
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), loggerMiddleware(), prometheusMiddleware())
	h.registerRoutes(engine)

	return &Service{
		opts:     opts,
		commands: commands,
		engine:   engine,
	}, nil
}

func (s *Service) MessageHandlers() map[bus.Kind]bus.HandlerFunc {
	return s.commands.MessageHandlers()
}

// Handler returns the http handler serving the API.
func (s *Service) Handler() http.Handler {
	return s.engine
}

func (s *Service) Start() error {
	lis, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return err
	}
	s.server = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server stopped unexpectedly")
		}
	}()

	log.Infof("http interface is listening on %s", lis.Addr())
	return nil
}

func (s *Service) Stop() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("failed to gracefully stop http server")
	}
	log.Debug("stopped http interface")
}
