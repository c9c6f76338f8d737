package store

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper periodically deletes outputs older than the retention period.
type Sweeper struct {
	cron      *cron.Cron
	store     *Local
	retention time.Duration
	log       zerolog.Logger
}

// NewSweeper schedules nothing until Start is called.
func NewSweeper(store *Local, retention time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		cron:      cron.New(),
		store:     store,
		retention: retention,
		log:       log.With().Str("component", "sweeper").Logger(),
	}
}

// Start runs the sweep every minute.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc("@every 1m", s.RunNow); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Dur("retention", s.retention).Msg("output sweeper started")
	return nil
}

// Stop halts scheduling; the returned context is done once a running sweep finishes.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

// RunNow performs one sweep synchronously.
func (s *Sweeper) RunNow() {
	n, err := s.store.Sweep(s.retention)
	if err != nil {
		s.log.Error().Err(err).Msg("output sweep failed")
		return
	}
	if n > 0 {
		s.log.Info().Int("removed", n).Msg("expired outputs removed")
	}
}
