package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/fieldsched/internal/apperr"
	"github.com/Freeeeeet/fieldsched/internal/model"
)

// MaxSuggestions — сколько кандидатов возвращает поиск
const MaxSuggestions = 5

// SuggestionPhase — фаза поиска, давшая результат
type SuggestionPhase string

const (
	PhasePreferredDay SuggestionPhase = "preferred_day"
	PhaseSLA          SuggestionPhase = "sla"
	PhaseOpen         SuggestionPhase = "open"
)

// SuggestionQuery — параметры поиска свободного окна
type SuggestionQuery struct {
	TechnicianID        int64
	DurationMinutes     int
	From                time.Time // окно поиска
	To                  time.Time
	SLAFrom             *time.Time
	SLATo               *time.Time
	PreferStart         *time.Time // важен только календарный день
	SlotMinutes         int
	TravelBufferMinutes int
}

func (q *SuggestionQuery) validate() error {
	if q.DurationMinutes <= 0 {
		return apperr.Validation("durationMin must be positive, got %d", q.DurationMinutes)
	}
	if q.DurationMinutes > maxMinutes {
		return apperr.Validation("durationMin must not exceed %d, got %d", maxMinutes, q.DurationMinutes)
	}
	if window := q.To.Sub(q.From); window > 0 && time.Duration(q.DurationMinutes)*time.Minute > window {
		return apperr.Validation("durationMin %d does not fit into the search window %s", q.DurationMinutes, window)
	}
	if (q.SLAFrom == nil) != (q.SLATo == nil) {
		return apperr.Validation("slaFrom and slaTo must be given together")
	}
	if q.SLAFrom != nil {
		if err := (model.Interval{Start: *q.SLAFrom, End: *q.SLATo}).Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (q *SuggestionQuery) slaWindow() (model.Interval, bool) {
	if q.SLAFrom == nil || q.SLATo == nil {
		return model.Interval{}, false
	}
	return model.Interval{Start: *q.SLAFrom, End: *q.SLATo}, true
}

// Suggestions — результат поиска
type Suggestions struct {
	Candidates    []model.Interval
	WithinSLA     bool
	NextAvailable *model.Interval
	Phase         SuggestionPhase // пусто, если ничего не найдено
}

// SuggestionService ищет непрерывные свободные окна нужной длительности
type SuggestionService struct {
	availability *AvailabilityService
	logger       *zap.Logger
}

func NewSuggestionService(availability *AvailabilityService, logger *zap.Logger) *SuggestionService {
	return &SuggestionService{
		availability: availability,
		logger:       logger,
	}
}

// Suggest считает слоты по окну поиска и перебирает фазы:
// предпочтительный день, затем SLA, затем всё окно
func (s *SuggestionService) Suggest(ctx context.Context, q SuggestionQuery) (*Suggestions, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	aq := AvailabilityQuery{
		TechnicianID:        q.TechnicianID,
		From:                q.From,
		To:                  q.To,
		SlotMinutes:         q.SlotMinutes,
		TravelBufferMinutes: q.TravelBufferMinutes,
	}
	slots, err := s.availability.ComputeSlots(ctx, aq)
	if err != nil {
		return nil, err
	}
	if q.SlotMinutes == 0 {
		q.SlotMinutes = s.availability.defaultSlot
	}

	result := SuggestFromSlots(slots, q, s.availability.Location())

	s.logger.Debug("Slot suggestions computed",
		zap.Int64("technician_id", q.TechnicianID),
		zap.Int("duration_minutes", q.DurationMinutes),
		zap.String("phase", string(result.Phase)),
		zap.Int("candidates", len(result.Candidates)),
		zap.Bool("within_sla", result.WithinSLA),
	)

	return result, nil
}

// SuggestFromSlots — чистая часть поиска по уже посчитанным слотам
func SuggestFromSlots(slots []model.Slot, q SuggestionQuery, loc *time.Location) *Suggestions {
	need := (q.DurationMinutes + q.SlotMinutes - 1) / q.SlotMinutes
	duration := time.Duration(q.DurationMinutes) * time.Minute

	type phase struct {
		name  SuggestionPhase
		allow func(start time.Time) bool
	}

	var phases []phase
	if q.PreferStart != nil {
		y, m, d := q.PreferStart.In(loc).Date()
		phases = append(phases, phase{PhasePreferredDay, func(start time.Time) bool {
			sy, sm, sd := start.In(loc).Date()
			return sy == y && sm == m && sd == d
		}})
	}
	sla, hasSLA := q.slaWindow()
	if hasSLA {
		phases = append(phases, phase{PhaseSLA, func(start time.Time) bool {
			return !start.Before(sla.Start) && start.Before(sla.End)
		}})
	}
	phases = append(phases, phase{PhaseOpen, func(time.Time) bool { return true }})

	result := &Suggestions{}
	for _, p := range phases {
		starts := findRuns(slots, need, p.allow)
		if len(starts) == 0 {
			continue
		}

		result.Phase = p.name
		for _, i := range starts {
			result.Candidates = append(result.Candidates, model.Interval{
				Start: slots[i].Start,
				End:   slots[i].Start.Add(duration),
			})
		}
		break
	}

	if len(result.Candidates) == 0 {
		return result
	}

	next := result.Candidates[0]
	result.NextAvailable = &next

	if !hasSLA {
		result.WithinSLA = true
		return result
	}
	for _, c := range result.Candidates {
		if sla.Contains(c) {
			result.WithinSLA = true
			break
		}
	}
	return result
}

// findRuns возвращает индексы до MaxSuggestions стартовых слотов, с которых
// идут need доступных и смежных слотов
func findRuns(slots []model.Slot, need int, allow func(time.Time) bool) []int {
	var starts []int
	for i := 0; i+need <= len(slots) && len(starts) < MaxSuggestions; i++ {
		if !allow(slots[i].Start) {
			continue
		}
		ok := true
		for k := i; k < i+need; k++ {
			if !slots[k].Available {
				ok = false
				break
			}
			// Слоты должны идти встык, иначе окно разорвано
			if k > i && !slots[k].Start.Equal(slots[k-1].End) {
				ok = false
				break
			}
		}
		if ok {
			starts = append(starts, i)
		}
	}
	return starts
}
