package main

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/breaker"
	"github.com/sells-group/enrich-cli/internal/config"
	"github.com/sells-group/enrich-cli/internal/connector"
	"github.com/sells-group/enrich-cli/internal/credential"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/resilience"
)

// chairmanPayload is the JSON shape the registered REST sources answer with.
type chairmanPayload struct {
	Items []struct {
		ChairmanName string `json:"chairman_name"`
		ChairmanINN  string `json:"chairman_inn"`
	} `json:"items"`
}

// extractChairman parses a source response body. An empty items list means
// the source answered authoritatively and the entity is not listed.
func extractChairman(_ model.Entity, body []byte) (connector.Person, bool, error) {
	var payload chairmanPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return connector.Person{}, false, eris.Wrap(err, "decode source payload")
	}
	if len(payload.Items) == 0 || payload.Items[0].ChairmanName == "" {
		return connector.Person{}, false, nil
	}
	return connector.Person{
		Name:  payload.Items[0].ChairmanName,
		TaxID: payload.Items[0].ChairmanINN,
	}, true, nil
}

// buildRegistry wires configured sources into a connector registry, sharing
// one credential pool and one circuit breaker per source across every
// connector instance the dispatcher creates.
func buildRegistry(cfg *config.Config) (*connector.Registry, *breaker.SourceBreakers, error) {
	if len(cfg.Sources) == 0 {
		return nil, nil, eris.New("no sources configured")
	}

	breakers := breaker.NewSourceBreakers(cfg.Breaker.Cooldown, cfg.Breaker.Debounce)
	retry := resilience.DefaultRetryConfig()
	if cfg.Dispatch.RetryAttempts > 0 {
		retry.MaxAttempts = cfg.Dispatch.RetryAttempts + 1
	}

	reg := connector.NewRegistry()
	for _, sc := range cfg.Sources {
		if sc.Disabled {
			continue
		}

		var pool *credential.Pool
		if keys := cfg.Credentials.Sources[sc.Name]; len(keys) > 0 {
			pool = credential.NewPool(sc.Name, keys, cfg.Credentials.RotateAfter)
		}

		sc := sc
		rateLimit := sc.RateLimit
		if rateLimit <= 0 {
			rateLimit = time.Second
		}

		reg.Register(connector.Source{
			Name:             sc.Name,
			Credentials:      pool,
			MaxPerCredential: sc.MaxPerCredential,
			RateLimit:        rateLimit,
			New: func(pinnedKey string) connector.Connector {
				return connector.NewAPI(connector.APIOptions{
					Name:      sc.Name,
					BaseURL:   sc.BaseURL,
					RateLimit: rateLimit,
					PinnedKey: pinnedKey,
					Pool:      pool,
					Breaker:   breakers.Get(sc.Name),
					Retry:     retry,
					Extract:   extractChairman,
				})
			},
		})
	}

	for _, src := range reg.All() {
		if !src.Usable() {
			zap.L().Warn("source is quota-gated but has no credentials, skipping",
				zap.String("source", src.Name))
		}
	}
	if len(reg.Usable()) == 0 {
		return nil, nil, eris.New("all configured sources are disabled or inert")
	}
	return reg, breakers, nil
}
