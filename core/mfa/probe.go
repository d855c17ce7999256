package mfa

import (
	"context"
	"sync"
	"time"

	"mspb-config/core/utils"

	"github.com/robfig/cron/v3"
)

// Probe periodically checks secret-service reachability so operators see an
// outage before the next login degrades MFA to not-required.
type Probe struct {
	secrets  SecretService
	schedule string
	logger   *utils.Logger

	cron *cron.Cron

	mu        sync.Mutex
	healthy   bool
	lastCheck time.Time
	ticks     uint64
	failures  uint64
}

func NewProbe(secrets SecretService, schedule string, logger *utils.Logger) *Probe {
	return &Probe{
		secrets:  secrets,
		schedule: schedule,
		logger:   logger,
		healthy:  true,
	}
}

func (p *Probe) Start() error {
	if p == nil || p.secrets == nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(p.schedule, p.run); err != nil {
		return err
	}
	p.cron = c
	c.Start()
	if p.logger != nil {
		p.logger.Printf("mfa probe started (%s)", p.schedule)
	}
	return nil
}

func (p *Probe) Stop() {
	if p == nil || p.cron == nil {
		return
	}
	ctx := p.cron.Stop()
	<-ctx.Done()
}

func (p *Probe) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := p.secrets.Ping(ctx)

	p.mu.Lock()
	p.ticks++
	p.lastCheck = time.Now().UTC()
	wasHealthy := p.healthy
	p.healthy = err == nil
	if err != nil {
		p.failures++
	}
	p.mu.Unlock()

	if p.logger == nil {
		return
	}
	if err != nil && wasHealthy {
		p.logger.Errorf("mfa secret service unreachable: %v", err)
	}
	if err == nil && !wasHealthy {
		p.logger.Printf("mfa secret service reachable again")
	}
}

// Snapshot reports probe state for the metrics collector.
func (p *Probe) Snapshot() (healthy bool, lastCheck time.Time, ticks, failures uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.healthy, p.lastCheck, p.ticks, p.failures
}
