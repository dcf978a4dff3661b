package pricing

import "math"

// Service prices calls for which the voice provider reports no charge of its
// own. The provider's figure, when present and positive, is always
// authoritative; this fallback must never overwrite it.
type Service struct {
	euroPerMinute float64
}

func NewService(euroPerMinute float64) *Service {
	return &Service{euroPerMinute: euroPerMinute}
}

// EuroPerMinute exposes the configured flat rate.
func (s *Service) EuroPerMinute() float64 { return s.euroPerMinute }

// EstimateCallCost derives a cost from call duration, prorated by the second
// and rounded to the cent. Zero-duration calls cost nothing.
func (s *Service) EstimateCallCost(durationSeconds int) float64 {
	if durationSeconds <= 0 || s.euroPerMinute <= 0 {
		return 0
	}
	raw := float64(durationSeconds) / 60.0 * s.euroPerMinute
	return math.Round(raw*100) / 100
}
