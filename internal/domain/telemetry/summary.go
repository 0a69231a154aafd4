package telemetry

import (
	"context"
	"sort"

	"github.com/alanensastegui/subsights-demo/backend/internal/shared/types"
	"gonum.org/v1/gonum/stat"
)

// LoadTimeStats aggregates client-reported load times.
type LoadTimeStats struct {
	Samples int     `json:"samples"`
	MeanMs  float64 `json:"meanMs"`
	P50Ms   float64 `json:"p50Ms"`
	P90Ms   float64 `json:"p90Ms"`
	MaxMs   float64 `json:"maxMs"`
}

// Summary is a rollup of the stored events.
type Summary struct {
	Total    int                  `json:"total"`
	Sessions int                  `json:"sessions"`
	BySlug   map[string]int       `json:"bySlug"`
	ByReason map[types.Reason]int `json:"byReason"`
	ByMode   map[types.Mode]int   `json:"byMode"`
	// DefaultRate is the share of events that left a visitor on the default page.
	DefaultRate float64        `json:"defaultRate"`
	LoadTime    *LoadTimeStats `json:"loadTime,omitempty"`
}

// Summary computes a rollup over the current buffer.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	events, err := s.List(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(events), nil
}

// Summarize computes a rollup over events.
func Summarize(events []Event) Summary {
	sum := Summary{
		Total:    len(events),
		BySlug:   make(map[string]int),
		ByReason: make(map[types.Reason]int),
		ByMode:   make(map[types.Mode]int),
	}

	sessions := make(map[string]struct{})
	var loads []float64
	for _, e := range events {
		sum.BySlug[e.Slug]++
		sum.ByReason[e.Reason]++
		sum.ByMode[e.Mode]++
		sessions[e.SessionID] = struct{}{}
		if e.Performance != nil && e.Performance.LoadTimeMs > 0 {
			loads = append(loads, e.Performance.LoadTimeMs)
		}
	}
	sum.Sessions = len(sessions)

	if sum.Total > 0 {
		sum.DefaultRate = float64(sum.ByMode[types.ModeDefault]) / float64(sum.Total)
	}

	if len(loads) > 0 {
		sort.Float64s(loads)
		sum.LoadTime = &LoadTimeStats{
			Samples: len(loads),
			MeanMs:  stat.Mean(loads, nil),
			P50Ms:   stat.Quantile(0.5, stat.Empirical, loads, nil),
			P90Ms:   stat.Quantile(0.9, stat.Empirical, loads, nil),
			MaxMs:   loads[len(loads)-1],
		}
	}
	return sum
}
