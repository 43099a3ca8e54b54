package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/caseflow-hq/caseflow/modules/tasks/services"
)

var caseCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "caseflow",
	Subsystem: "case_cache",
	Name:      "requests_total",
	Help:      "Total number of case data cache lookups broken down by hit/miss.",
}, []string{"result"})

// CachedCaseDataProvider fronts the case-data store with a redis cache.
// Cache failures degrade to a miss; the store stays authoritative.
type CachedCaseDataProvider struct {
	inner  services.CaseDataProvider
	redis  *redis.Client
	log    *logrus.Logger
	prefix string
	ttl    time.Duration
}

func NewCachedCaseDataProvider(inner services.CaseDataProvider, rdb *redis.Client, log *logrus.Logger, ttl time.Duration) *CachedCaseDataProvider {
	return &CachedCaseDataProvider{
		inner:  inner,
		redis:  rdb,
		log:    log,
		prefix: "tasks:cases:v1:",
		ttl:    ttl,
	}
}

func (p *CachedCaseDataProvider) Case(ctx context.Context, caseID string) (services.CaseData, error) {
	key := p.prefix + caseID
	result, err := p.redis.Get(ctx, key).Result()
	if err == nil {
		var data services.CaseData
		if err := json.Unmarshal([]byte(result), &data); err == nil {
			caseCacheRequests.WithLabelValues("hit").Inc()
			return data, nil
		}
		p.log.WithField("case_id", caseID).Warn("dropping undecodable case cache entry")
		p.redis.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		p.log.WithField("case_id", caseID).WithError(err).Warn("case cache read failed")
	}
	caseCacheRequests.WithLabelValues("miss").Inc()

	data, err := p.inner.Case(ctx, caseID)
	if err != nil {
		return services.CaseData{}, err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return data, nil
	}
	if err := p.redis.Set(ctx, key, payload, p.ttl).Err(); err != nil {
		p.log.WithField("case_id", caseID).WithError(err).Warn("case cache write failed")
	}
	return data, nil
}

// Invalidate drops a cached case after external case mutations.
func (p *CachedCaseDataProvider) Invalidate(ctx context.Context, caseID string) error {
	return p.redis.Del(ctx, p.prefix+caseID).Err()
}
