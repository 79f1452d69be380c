package dig_container

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/masomo-console/apps/api/echo"
	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/dashboard"
	"github.com/trezcool/masomo-console/core/entity"
	logsvc "github.com/trezcool/masomo-console/services/logger"
	"github.com/trezcool/masomo-console/services/upstream"
	"github.com/trezcool/masomo-console/storage/cache/inmem"
	"github.com/trezcool/masomo-console/storage/cache/redis"
)

type UpstreamLoggerParam struct {
	dig.In
	Logger core.Logger `name:"upstreamLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger(os.Stdout, "api", conf.Debug), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newUpstreamLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger(os.Stdout, "upstream", conf.Debug), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// newValidator registers the custom validators before anything validates with it.
func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	return validate
}

func newRegistry(validate *validator.Validate, translator ut.Translator) (*entity.Registry, error) {
	registry, err := entity.NewDefaultRegistry(validate)
	if err != nil {
		return nil, errors.Wrap(err, "registering entities")
	}
	registry.InitValidators(validate, translator)
	return registry, nil
}

func newUpstreamClient(conf *core.Config, loggerParam UpstreamLoggerParam) *upstream.Client {
	return upstream.NewClient(upstream.NewOptions(conf), loggerParam.Logger)
}

func newPageCache(conf *core.Config, logger core.Logger) (core.PageCache, error) {
	switch conf.Cache.Driver {
	case "memory":
		return inmemcache.New(conf.Cache.TTL), nil
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), conf.Upstream.Timeout)
		defer cancel()

		client, err := rediscache.Open(ctx, conf.Cache.RedisURL)
		if err != nil {
			return nil, err
		}
		logger.Info("page cache: redis", map[string]interface{}{"ttl": conf.Cache.TTL.String()})
		return rediscache.New(client, conf.Cache.TTL), nil
	}
	return core.NoCache{}, nil
}

func newDashboard(
	conf *core.Config,
	registry *entity.Registry,
	client *upstream.Client,
	cache core.PageCache,
	validate *validator.Validate,
	logger core.Logger,
) *dashboard.Service {
	return dashboard.NewService(dashboard.NewOptions(conf), registry, client, cache, validate, logger)
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
	svc *dashboard.Service,
) echoapi.Server {
	return echoapi.NewServer(conf, &echoapi.Deps{
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		Dashboard:  svc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newUpstreamLogger, dig.Name("upstreamLogger")))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newRegistry))
	must(c.Provide(newUpstreamClient))
	must(c.Provide(newPageCache))
	must(c.Provide(newDashboard))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
