package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	. "github.com/alexdcox/cardano-connector"
	"github.com/alexdcox/cardano-connector/kms"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pkg/errors"
)

func NewHttpRpcServer(config *_config, service *Service, store kms.Store) (server *HttpRpcServer, err error) {
	if service == nil {
		err = errors.New("http server requires a service")
		return
	}

	server = &HttpRpcServer{
		config:  config,
		service: service,
		store:   store,
	}
	server.app = server.newApp()

	return
}

type HttpRpcServer struct {
	app     *fiber.App
	config  *_config
	service *Service
	store   kms.Store
}

func (s *HttpRpcServer) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           120 * time.Second,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(func(c *fiber.Ctx) error {
		started := time.Now()
		rsp := c.Next()
		route := c.Route().Path
		observeRequest(route, c.Response().StatusCode(), started)
		log.Info().Msgf("http response: [%d] %s - %s %s", c.Response().StatusCode(), c.IP(), c.Method(), c.Path())
		return rsp
	})

	app.Get("/v3/kms/pending/:chain", s.getKmsPending)
	app.Get("/v3/kms/:id", s.getKmsTransaction)
	app.Delete("/v3/kms/:id", s.deleteKmsTransaction)

	app.Get("/v3/:chain/info", s.withChain(s.getInfo))
	app.Get("/v3/:chain/transaction/:hash", s.withChain(s.getTransaction))
	app.Get("/v3/:chain/:address/utxos", s.withChain(s.getUtxos))
	app.Post("/v3/:chain/transaction/fee", s.withChain(s.postEstimateFee))
	app.Post("/v3/:chain/transaction", s.withChain(s.postTransaction))
	app.Post("/v3/:chain/broadcast", s.withChain(s.postBroadcast))

	return app
}

func (s *HttpRpcServer) Start() (err error) {
	log.Info().Msgf("http/rpc server listening on %s", s.config.RpcHostPort)

	err = errors.WithStack(s.app.Listen(s.config.RpcHostPort))

	return
}

func (s *HttpRpcServer) Stop() (err error) {
	return errors.WithStack(s.app.Shutdown())
}

var (
	badRequestErrors = []error{
		ErrMissingFundingSpec,
		ErrConflictingFundingSpec,
		ErrMissingDestination,
		ErrInvalidAmount,
		ErrMissingSigningKey,
		ErrInvalidPrivateKey,
		ErrInvalidPublicKey,
		ErrInvalidAddress,
		ErrInvalidTransaction,
		ErrNetworkInvalid,
		ErrChainNotSupported,
	}
	notFoundErrors = []error{
		ErrUtxoNotFound,
		ErrTransactionNotFound,
		ErrSignatureNotFound,
	}
	forbiddenErrors = []error{
		ErrInsufficientFunds,
	}
)

// errorStatuses is checked in order; the first matching sentinel decides.
var errorStatuses = []struct {
	status int
	errs   []error
}{
	{http.StatusBadRequest, badRequestErrors},
	{http.StatusNotFound, notFoundErrors},
	{http.StatusForbidden, forbiddenErrors},
}

func errorStatus(err error) (int, error) {
	for _, entry := range errorStatuses {
		for _, match := range entry.errs {
			if errors.Is(err, match) {
				return entry.status, match
			}
		}
	}
	return http.StatusInternalServerError, err
}

func (s *HttpRpcServer) errorResponse(c *fiber.Ctx, err error) error {
	statusCode, reportedErr := errorStatus(err)

	if statusCode == http.StatusInternalServerError {
		log.Error().Msgf("%+v", err)
	} else {
		log.Debug().Msgf("%+v", err)
	}

	return c.Status(statusCode).JSON(map[string]any{
		"error":   reportedErr.Error(),
		"details": fmt.Sprintf("%+v", err),
	})
}

func (s *HttpRpcServer) unmarshalJson(c *fiber.Ctx, target any) (err error) {
	if !strings.HasPrefix(c.Get("Content-Type"), "application/json") {
		return errors.Wrap(ErrInvalidTransaction, "expected an application/json body")
	}

	if err = c.BodyParser(target); err != nil {
		return errors.Wrapf(ErrInvalidTransaction, "%v", err)
	}

	return
}

// withChain resolves the :chain parameter once, before the handler runs.
func (s *HttpRpcServer) withChain(handler func(c *fiber.Ctx, chain Chain) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		chain := ParseChain(c.Params("chain"))
		if _, err := s.service.Builders.Builder(chain); err != nil {
			return s.errorResponse(c, err)
		}
		return handler(c, chain)
	}
}

func (s *HttpRpcServer) getInfo(c *fiber.Ctx, _ Chain) error {
	info, err := s.service.Info(c.UserContext())
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(info)
}

func (s *HttpRpcServer) getUtxos(c *fiber.Ctx, _ Chain) error {
	utxos, err := s.service.Utxos(c.UserContext(), c.Params("address"))
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(utxos)
}

func (s *HttpRpcServer) getTransaction(c *fiber.Ctx, _ Chain) error {
	tx, err := s.service.Transaction(c.UserContext(), c.Params("hash"))
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(tx)
}

func (s *HttpRpcServer) postTransaction(c *fiber.Ctx, chain Chain) error {
	var req TransferRequest
	if err := s.unmarshalJson(c, &req); err != nil {
		return s.errorResponse(c, err)
	}

	rsp, err := s.service.SendTransaction(c.UserContext(), chain, req)
	if err != nil {
		return s.errorResponse(c, err)
	}

	kind := ResultSigned
	if rsp.SignatureID != "" {
		kind = ResultSigningRequest
	}
	transactionsBuilt.WithLabelValues(string(chain), kind.String()).Inc()

	return c.JSON(rsp)
}

func (s *HttpRpcServer) postEstimateFee(c *fiber.Ctx, chain Chain) error {
	var req TransferRequest
	if err := s.unmarshalJson(c, &req); err != nil {
		return s.errorResponse(c, err)
	}

	estimate, err := s.service.EstimateFee(c.UserContext(), chain, req)
	if err != nil {
		return s.errorResponse(c, err)
	}

	return c.JSON(estimate)
}

func (s *HttpRpcServer) postBroadcast(c *fiber.Ctx, _ Chain) error {
	var req BroadcastRequest
	if err := s.unmarshalJson(c, &req); err != nil {
		return s.errorResponse(c, err)
	}

	rsp, err := s.service.Broadcast(c.UserContext(), req)
	if err != nil {
		broadcasts.WithLabelValues("error").Inc()
		return s.errorResponse(c, err)
	}

	outcome := "ok"
	if rsp.Failed {
		outcome = "kms_incomplete"
	}
	broadcasts.WithLabelValues(outcome).Inc()

	return c.JSON(rsp)
}

func (s *HttpRpcServer) getKmsPending(c *fiber.Ctx) error {
	chain := ParseChain(c.Params("chain"))
	if _, err := s.service.Builders.Builder(chain); err != nil {
		return s.errorResponse(c, err)
	}

	pending, err := s.store.GetPending(c.UserContext(), chain)
	if err != nil {
		return s.errorResponse(c, err)
	}

	return c.JSON(pending)
}

func (s *HttpRpcServer) getKmsTransaction(c *fiber.Ctx) error {
	pending, err := s.store.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(pending)
}

func (s *HttpRpcServer) deleteKmsTransaction(c *fiber.Ctx) error {
	if err := s.store.Delete(c.UserContext(), c.Params("id")); err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(map[string]any{"deleted": c.Params("id")})
}
