package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/refdatahub/refdata-engine/pkg/models"
	"github.com/refdatahub/refdata-engine/pkg/repositories"
)

// topValueLimit caps the per-field top matched and unmatched lists.
const topValueLimit = 10

// MatchStatsService derives reconciliation coverage reports. Statistics are
// computed on demand from samples, the ledger and the matcher; nothing is
// stored.
type MatchStatsService interface {
	FieldStats(ctx context.Context, mappingID uuid.UUID) (*models.FieldMatchStats, error)
	ConnectionStats(ctx context.Context, connectionID uuid.UUID) ([]*models.FieldMatchStats, error)
	// UnmatchedValues flattens every unmatched distinct value across the
	// connection's mapped fields, with relaxed-threshold suggestions.
	UnmatchedValues(ctx context.Context, connectionID uuid.UUID) ([]*models.UnmatchedValueRecord, error)
}

type matchStatsService struct {
	fieldMappings repositories.FieldMappingRepository
	samples       repositories.SampleRepository
	valueMappings repositories.ValueMappingRepository
	matcher       MatcherService
	logger        *zap.Logger
}

// NewMatchStatsService creates a MatchStatsService.
func NewMatchStatsService(
	fieldMappings repositories.FieldMappingRepository,
	samples repositories.SampleRepository,
	valueMappings repositories.ValueMappingRepository,
	matcher MatcherService,
	logger *zap.Logger,
) MatchStatsService {
	return &matchStatsService{
		fieldMappings: fieldMappings,
		samples:       samples,
		valueMappings: valueMappings,
		matcher:       matcher,
		logger:        logger.Named("stats"),
	}
}

var _ MatchStatsService = (*matchStatsService)(nil)

func (s *matchStatsService) FieldStats(ctx context.Context, mappingID uuid.UUID) (*models.FieldMatchStats, error) {
	mapping, err := s.fieldMappings.GetByID(ctx, mappingID)
	if err != nil {
		return nil, err
	}
	stats, _, err := s.computeField(ctx, mapping)
	return stats, err
}

func (s *matchStatsService) ConnectionStats(ctx context.Context, connectionID uuid.UUID) ([]*models.FieldMatchStats, error) {
	mappings, err := s.fieldMappings.ListByConnection(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	stats := make([]*models.FieldMatchStats, 0, len(mappings))
	for _, mapping := range mappings {
		fieldStats, _, err := s.computeField(ctx, mapping)
		if err != nil {
			return nil, err
		}
		stats = append(stats, fieldStats)
	}
	return stats, nil
}

func (s *matchStatsService) UnmatchedValues(ctx context.Context, connectionID uuid.UUID) ([]*models.UnmatchedValueRecord, error) {
	mappings, err := s.fieldMappings.ListByConnection(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	records := make([]*models.UnmatchedValueRecord, 0)
	for _, mapping := range mappings {
		_, unmatched, err := s.computeField(ctx, mapping)
		if err != nil {
			return nil, err
		}
		for _, u := range unmatched {
			records = append(records, &models.UnmatchedValueRecord{
				MappingID:       mapping.ID,
				SourceTable:     mapping.SourceTable,
				SourceField:     mapping.SourceField,
				RefDimension:    mapping.RefDimension,
				RawValue:        u.RawValue,
				OccurrenceCount: u.OccurrenceCount,
				Suggestions:     u.Suggestions,
			})
		}
	}
	return records, nil
}

// computeField walks a field's distinct sample values. The ledger wins over
// the matcher: an entry there resolves the value regardless of score, and a
// suggested entry counts as matched until an operator rejects it. Values the
// ledger misses go to the matcher at the strict threshold; failures are
// annotated with relaxed-threshold suggestions.
func (s *matchStatsService) computeField(ctx context.Context, mapping *models.SourceFieldMapping) (*models.FieldMatchStats, []models.UnmatchedValue, error) {
	samples, err := s.samples.ListByField(ctx, mapping.ConnectionID, mapping.SourceTable, mapping.SourceField)
	if err != nil {
		return nil, nil, err
	}

	ledger, err := s.valueMappings.ListExpanded(ctx, mapping.ConnectionID, mapping.SourceTable, mapping.SourceField)
	if err != nil {
		return nil, nil, err
	}
	byRawValue := make(map[string]*models.ValueMappingExpanded, len(ledger))
	for _, entry := range ledger {
		byRawValue[entry.RawValue] = entry
	}

	session, err := s.matcher.Session(ctx, mapping.RefDimension)
	if err != nil {
		return nil, nil, err
	}
	settings := session.Settings()

	stats := &models.FieldMatchStats{
		MappingID:    mapping.ID,
		SourceTable:  mapping.SourceTable,
		SourceField:  mapping.SourceField,
		RefDimension: mapping.RefDimension,
		TopUnmatched: []models.UnmatchedValue{},
		TopMatched:   []models.MatchedValue{},
	}

	var allUnmatched []models.UnmatchedValue

	// Samples arrive ordered by occurrence count, so the first N matched and
	// unmatched values are already the top lists.
	for _, sample := range samples {
		stats.TotalValues += sample.OccurrenceCount

		if entry, ok := byRawValue[sample.RawValue]; ok {
			stats.MatchedValues += sample.OccurrenceCount
			if len(stats.TopMatched) < topValueLimit {
				confidence := 1.0
				if entry.Confidence != nil {
					confidence = *entry.Confidence
				}
				stats.TopMatched = append(stats.TopMatched, models.MatchedValue{
					RawValue:        sample.RawValue,
					OccurrenceCount: sample.OccurrenceCount,
					CanonicalID:     entry.CanonicalID,
					CanonicalLabel:  entry.CanonicalLabel,
					MatchType:       models.MatchTypeMapping,
					Confidence:      confidence,
				})
			}
			continue
		}

		// The full ranking serves both checks: the best score against the
		// strict threshold, the tail against the relaxed one.
		candidates, err := session.Rank(ctx, sample.RawValue, 0)
		if err != nil {
			return nil, nil, err
		}

		if len(candidates) > 0 && candidates[0].Score >= settings.MatchThreshold {
			best := candidates[0]
			stats.MatchedValues += sample.OccurrenceCount
			if len(stats.TopMatched) < topValueLimit {
				stats.TopMatched = append(stats.TopMatched, models.MatchedValue{
					RawValue:        sample.RawValue,
					OccurrenceCount: sample.OccurrenceCount,
					CanonicalID:     best.CanonicalID,
					CanonicalLabel:  best.CanonicalLabel,
					MatchType:       models.MatchTypeSemantic,
					Confidence:      best.Score,
				})
			}
			continue
		}

		stats.UnmatchedValues += sample.OccurrenceCount
		unmatched := models.UnmatchedValue{
			RawValue:        sample.RawValue,
			OccurrenceCount: sample.OccurrenceCount,
			Suggestions:     relaxedSuggestions(candidates, settings.RelaxedThreshold()),
		}
		allUnmatched = append(allUnmatched, unmatched)
		if len(stats.TopUnmatched) < topValueLimit {
			stats.TopUnmatched = append(stats.TopUnmatched, unmatched)
		}
	}

	if stats.TotalValues > 0 {
		stats.MatchRate = float64(stats.MatchedValues) / float64(stats.TotalValues)
	}

	return stats, allUnmatched, nil
}

// relaxedSuggestions filters candidates at the relaxed threshold, capped at
// suggestionLimit. Candidates arrive sorted by score.
func relaxedSuggestions(candidates []models.MatchCandidate, threshold float64) []models.MatchCandidate {
	suggestions := make([]models.MatchCandidate, 0, suggestionLimit)
	for _, c := range candidates {
		if c.Score < threshold {
			break
		}
		suggestions = append(suggestions, c)
		if len(suggestions) == suggestionLimit {
			break
		}
	}
	return suggestions
}
