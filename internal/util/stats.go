package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// Stats is the process-wide negotiation/messaging counter.
var Stats = &stats{}

type stats struct {
	OffersAnswered    atomic.Int64 // offers for which an answer was emitted
	OffersRejected    atomic.Int64 // offers rejected (busy or failed)
	CandidatesApplied atomic.Int64 // remote candidates applied to the connection
	CandidatesDropped atomic.Int64 // remote candidates dropped on apply failure
	MessagesSent      atomic.Int64 // application messages sent over the channel
	MessagesQueued    atomic.Int64 // application messages parked in the outbound queue
	MessagesReceived  atomic.Int64 // application messages received from the channel
}

func (s *stats) AddOfferAnswered()    { s.OffersAnswered.Add(1) }
func (s *stats) AddOfferRejected()    { s.OffersRejected.Add(1) }
func (s *stats) AddCandidateApplied() { s.CandidatesApplied.Add(1) }
func (s *stats) AddCandidateDropped() { s.CandidatesDropped.Add(1) }
func (s *stats) AddSent()             { s.MessagesSent.Add(1) }
func (s *stats) AddQueued()           { s.MessagesQueued.Add(1) }
func (s *stats) AddReceived()         { s.MessagesReceived.Add(1) }

// StartStatsReporter launches a goroutine that logs session statistics
// every 30 seconds while anything changed. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		var prevSent, prevRecv, prevAnswered int64
		for {
			select {
			case <-ticker.C:
				answered := Stats.OffersAnswered.Load()
				sent := Stats.MessagesSent.Load()
				recv := Stats.MessagesReceived.Load()

				if answered != prevAnswered || sent != prevSent || recv != prevRecv {
					pterm.DefaultLogger.Info(formatStats(answered, sent, recv))
				}

				prevAnswered = answered
				prevSent = sent
				prevRecv = recv

			case <-ctx.Done():
				return
			}
		}
	}()
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(answered, sent, recv int64) string {
	return fmt.Sprintf("Answered: %d | Msg out: %d | Msg in: %d | Cand: %d applied %d dropped",
		answered,
		sent,
		recv,
		Stats.CandidatesApplied.Load(),
		Stats.CandidatesDropped.Load(),
	)
}
