package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/refdatahub/refdata-engine/pkg/apperrors"
	"github.com/refdatahub/refdata-engine/pkg/database"
	"github.com/refdatahub/refdata-engine/pkg/models"
	"github.com/refdatahub/refdata-engine/pkg/repositories"
	"github.com/refdatahub/refdata-engine/pkg/tabular"
)

// BulkImportService turns uploaded tables into canonical values. Preview
// infers column roles; Run validates a confirmed mapping, detects duplicates
// and commits atomically.
type BulkImportService interface {
	// Preview infers column roles and a target dimension. sourceName is the
	// uploaded file's base name, used as a last-resort dimension hint.
	Preview(ctx context.Context, table *tabular.Table, sheets []string, sheet, sourceName, defaultDimension string) (*models.BulkImportPreview, error)
	// Run executes a dry run or a commit. A commit with unresolved duplicates
	// and no strategy aborts with ErrConflict and returns the duplicate list
	// for review.
	Run(ctx context.Context, table *tabular.Table, mapping models.ImportMapping, dryRun bool, strategy models.DuplicateStrategy) (*models.BulkImportResult, error)
}

type bulkImportService struct {
	db            *database.DB
	dimensionRepo repositories.DimensionRepository
	canonicalRepo repositories.CanonicalValueRepository
	logger        *zap.Logger
}

// NewBulkImportService creates a BulkImportService.
func NewBulkImportService(
	db *database.DB,
	dimensionRepo repositories.DimensionRepository,
	canonicalRepo repositories.CanonicalValueRepository,
	logger *zap.Logger,
) BulkImportService {
	return &bulkImportService{
		db:            db,
		dimensionRepo: dimensionRepo,
		canonicalRepo: canonicalRepo,
		logger:        logger.Named("import"),
	}
}

var _ BulkImportService = (*bulkImportService)(nil)

func (s *bulkImportService) Preview(ctx context.Context, table *tabular.Table, sheets []string, sheet, sourceName, defaultDimension string) (*models.BulkImportPreview, error) {
	dims, err := s.dimensionRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(dims))
	for _, d := range dims {
		known[d.Code] = true
	}

	previews := InferColumns(table, known)

	preview := &models.BulkImportPreview{
		Columns:  previews,
		RowCount: len(table.Rows),
		Sheets:   sheets,
		Sheet:    sheet,
	}

	// Target dimension: the explicit hint wins, then the dominant value of a
	// dimension-role column, then a code derived from the sheet or file name.
	code := deriveKnownOrNew(defaultDimension, known)
	if code == "" {
		code = dominantDimensionValue(table, previews, known)
	}
	if code == "" {
		name := sheet
		if name == "" {
			name = sourceName
		}
		code = deriveKnownOrNew(name, known)
	}
	if code == "" {
		return preview, nil
	}

	preview.Dimension = code
	if known[code] {
		preview.DimensionExists = true
		return preview, nil
	}
	preview.ProposedDimension = proposeDimension(code, "", previews)
	return preview, nil
}

// deriveKnownOrNew resolves raw against the registry, falling back to the
// singularized code a new dimension would get.
func deriveKnownOrNew(raw string, known map[string]bool) string {
	if raw == "" {
		return ""
	}
	if code := resolveDimensionCode(raw, known); code != "" {
		return code
	}
	return DeriveDimensionCode(raw)
}

// dominantDimensionValue is the most frequent code appearing in the
// dimension-role column, when inference found one.
func dominantDimensionValue(table *tabular.Table, previews []models.ColumnPreview, known map[string]bool) string {
	col := -1
	for i, p := range previews {
		if p.Role == models.RoleDimension {
			col = i
			break
		}
	}
	if col < 0 {
		return ""
	}

	counts := map[string]int{}
	bestCode, bestCount := "", 0
	for row := range table.Rows {
		code := deriveKnownOrNew(table.Cell(row, col), known)
		if code == "" {
			continue
		}
		counts[code]++
		if counts[code] > bestCount {
			bestCode, bestCount = code, counts[code]
		}
	}
	return bestCode
}

// importRow is one validated upload row awaiting duplicate resolution.
type importRow struct {
	number      int
	dimension   string
	label       string
	description string
	attributes  map[string]any
}

// importPlan is the fully validated, deduplicated shape of an upload.
type importPlan struct {
	rows       []importRow
	newDims    map[string]*models.Dimension
	duplicates []models.BulkImportDuplicateRecord
	errors     []string
}

func (s *bulkImportService) Run(ctx context.Context, table *tabular.Table, mapping models.ImportMapping, dryRun bool, strategy models.DuplicateStrategy) (*models.BulkImportResult, error) {
	if !strategy.Valid() {
		return nil, fmt.Errorf("%w: invalid duplicate strategy %q", apperrors.ErrInvalidInput, strategy)
	}

	plan, err := s.plan(ctx, table, mapping)
	if err != nil {
		return nil, err
	}

	result := &models.BulkImportResult{
		DryRun:     dryRun,
		Created:    []*models.CanonicalValue{},
		Updated:    []*models.CanonicalValue{},
		Duplicates: plan.duplicates,
		Errors:     plan.errors,
	}

	if dryRun {
		for _, row := range plan.rows {
			result.Created = append(result.Created, &models.CanonicalValue{
				Dimension:      row.dimension,
				CanonicalLabel: row.label,
				Description:    row.description,
				Attributes:     row.attributes,
			})
		}
		return result, nil
	}

	if len(plan.duplicates) > 0 && strategy == models.DuplicateStrategyNone {
		return result, fmt.Errorf("%w: %d duplicate labels need a strategy",
			apperrors.ErrConflict, len(plan.duplicates))
	}

	if err := s.commit(ctx, plan, strategy, result); err != nil {
		return nil, err
	}

	s.logger.Info("Bulk import committed",
		zap.Int("created", len(result.Created)),
		zap.Int("updated", len(result.Updated)),
		zap.Int("duplicates", len(result.Duplicates)),
		zap.Int("errors", len(result.Errors)))

	return result, nil
}

// plan validates the mapping, extracts rows, resolves dimensions and runs
// duplicate detection. Row-level problems become entries in errors, never
// failures; structural problems with the mapping itself do fail.
func (s *bulkImportService) plan(ctx context.Context, table *tabular.Table, mapping models.ImportMapping) (*importPlan, error) {
	cols, err := resolveColumns(table, mapping)
	if err != nil {
		return nil, err
	}

	plan := &importPlan{newDims: map[string]*models.Dimension{}}
	dims := map[string]*models.Dimension{}

	// seenLabels tracks case-normalized labels within the upload itself.
	seenLabels := map[string]int{}

	for i := range table.Rows {
		rowNum := i + 2 // header is row 1

		label := strings.TrimSpace(table.Cell(i, cols.label))
		if label == "" {
			plan.errors = append(plan.errors, fmt.Sprintf("row %d: empty label", rowNum))
			continue
		}

		dimension := mapping.DefaultDimension
		if cols.dimension >= 0 {
			if v := table.Cell(i, cols.dimension); v != "" {
				dimension = v
			}
		}
		dimension = NormalizeKey(dimension)
		if dimension == "" {
			plan.errors = append(plan.errors, fmt.Sprintf("row %d: no dimension", rowNum))
			continue
		}

		dim, err := s.resolveDimension(ctx, dimension, mapping, cols, dims, plan)
		if err != nil {
			return nil, err
		}
		if dim == nil {
			plan.errors = append(plan.errors, fmt.Sprintf("row %d: unknown dimension %q", rowNum, dimension))
			continue
		}

		rawAttrs := make(map[string]any, len(cols.attributes))
		for _, attr := range cols.attributes {
			if v := table.Cell(i, attr.index); v != "" {
				rawAttrs[attr.key] = v
			}
		}
		attrs, err := ValidateAttributesAgainst(dim, rawAttrs)
		if err != nil {
			plan.errors = append(plan.errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}

		labelKey := dimension + "\x00" + strings.ToLower(label)
		if firstRow, ok := seenLabels[labelKey]; ok {
			plan.errors = append(plan.errors,
				fmt.Sprintf("row %d: duplicate of row %d within upload", rowNum, firstRow))
			continue
		}
		seenLabels[labelKey] = rowNum

		description := ""
		if cols.description >= 0 {
			description = table.Cell(i, cols.description)
		}

		row := importRow{
			number:      rowNum,
			dimension:   dimension,
			label:       label,
			description: description,
			attributes:  attrs,
		}

		// Case-normalized collision against the existing store. Synthesized
		// dimensions cannot collide; they have no values yet.
		if _, isNew := plan.newDims[dimension]; !isNew {
			existing, err := s.canonicalRepo.FindByLabel(ctx, dimension, label)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				plan.duplicates = append(plan.duplicates, models.BulkImportDuplicateRecord{
					RowNumber:           rowNum,
					Dimension:           dimension,
					CanonicalLabel:      label,
					ExistingValue:       existing,
					IncomingDescription: description,
					IncomingAttributes:  attrs,
				})
				continue
			}
		}

		plan.rows = append(plan.rows, row)
	}

	return plan, nil
}

// resolveDimension looks up a dimension, consulting the plan's cache and
// synthesizing a new one when the mapping opts in.
func (s *bulkImportService) resolveDimension(
	ctx context.Context,
	code string,
	mapping models.ImportMapping,
	cols *resolvedColumns,
	cache map[string]*models.Dimension,
	plan *importPlan,
) (*models.Dimension, error) {
	if dim, ok := cache[code]; ok {
		return dim, nil
	}

	dim, err := s.dimensionRepo.GetByCode(ctx, code)
	if err == nil {
		cache[code] = dim
		return dim, nil
	}
	if err != apperrors.ErrNotFound {
		return nil, err
	}

	if !mapping.CreateDimension {
		cache[code] = nil
		return nil, nil
	}

	proposal := proposeDimension(code, mapping.DimensionLabel, nil)
	for _, attr := range cols.attributes {
		proposal.ExtraFields = append(proposal.ExtraFields, models.ExtraField{
			Key:      attr.key,
			Label:    attr.label,
			DataType: attr.dataType,
			Required: false,
		})
	}

	newDim := &models.Dimension{
		Code:        proposal.Code,
		Label:       proposal.Label,
		ExtraFields: proposal.ExtraFields,
	}
	cache[code] = newDim
	plan.newDims[code] = newDim
	return newDim, nil
}

// commit writes the plan in a single transaction: synthesized dimensions
// first, then inserts and strategy-driven updates.
func (s *bulkImportService) commit(ctx context.Context, plan *importPlan, strategy models.DuplicateStrategy, result *models.BulkImportResult) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin import transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	dimRepo := s.dimensionRepo.WithTx(tx)
	valueRepo := s.canonicalRepo.WithTx(tx)

	for _, dim := range plan.newDims {
		if err := dim.Validate(); err != nil {
			return err
		}
		if err := dimRepo.Create(ctx, dim); err != nil {
			return fmt.Errorf("create dimension %q: %w", dim.Code, err)
		}
	}

	for _, row := range plan.rows {
		value := &models.CanonicalValue{
			Dimension:      row.dimension,
			CanonicalLabel: row.label,
			Description:    row.description,
			Attributes:     row.attributes,
		}
		if err := valueRepo.Create(ctx, value); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", row.number, err))
			continue
		}
		result.Created = append(result.Created, value)
	}

	if strategy == models.DuplicateStrategyUpdate {
		for _, dup := range plan.duplicates {
			value := dup.ExistingValue
			value.Description = dup.IncomingDescription
			value.Attributes = dup.IncomingAttributes
			if err := valueRepo.Update(ctx, value); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", dup.RowNumber, err))
				continue
			}
			result.Updated = append(result.Updated, value)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit import transaction: %w", err)
	}
	return nil
}

// ============================================================================
// Mapping resolution
// ============================================================================

type attributeColumn struct {
	index    int
	key      string
	label    string
	dataType models.FieldType
}

type resolvedColumns struct {
	label       int
	dimension   int
	description int
	attributes  []attributeColumn
}

// resolveColumns validates a confirmed mapping against the parsed table.
// Exactly one label column is required; attribute keys must be unique after
// normalization.
func resolveColumns(table *tabular.Table, mapping models.ImportMapping) (*resolvedColumns, error) {
	cols := &resolvedColumns{label: -1, dimension: -1, description: -1}
	seenKeys := map[string]string{}

	for _, assignment := range mapping.Columns {
		idx := table.Column(assignment.Column)
		if idx < 0 {
			return nil, fmt.Errorf("%w: column %q not present in upload", apperrors.ErrInvalidInput, assignment.Column)
		}

		switch assignment.Role {
		case models.RoleLabel:
			if cols.label >= 0 {
				return nil, fmt.Errorf("%w: multiple label columns", apperrors.ErrAmbiguousColumnMapping)
			}
			cols.label = idx
		case models.RoleDimension:
			if cols.dimension >= 0 {
				return nil, fmt.Errorf("%w: multiple dimension columns", apperrors.ErrAmbiguousColumnMapping)
			}
			cols.dimension = idx
		case models.RoleDescription:
			if cols.description >= 0 {
				return nil, fmt.Errorf("%w: multiple description columns", apperrors.ErrAmbiguousColumnMapping)
			}
			cols.description = idx
		case models.RoleAttribute:
			key := assignment.AttributeKey
			if key == "" {
				key = assignment.Column
			}
			key = NormalizeKey(key)
			if key == "" {
				return nil, fmt.Errorf("%w: column %q: empty attribute key", apperrors.ErrInvalidInput, assignment.Column)
			}
			if prev, ok := seenKeys[key]; ok {
				return nil, fmt.Errorf("%w: columns %q and %q both map to attribute %q",
					apperrors.ErrDuplicateKey, prev, assignment.Column, key)
			}
			seenKeys[key] = assignment.Column

			label := assignment.AttributeLabel
			if label == "" {
				label = assignment.Column
			}
			dataType := assignment.DataType
			if dataType == "" {
				dataType = models.FieldTypeString
			}
			if !dataType.Valid() {
				return nil, fmt.Errorf("%w: column %q: invalid data type %q", apperrors.ErrInvalidInput, assignment.Column, dataType)
			}
			cols.attributes = append(cols.attributes, attributeColumn{
				index:    idx,
				key:      key,
				label:    label,
				dataType: dataType,
			})
		case models.RoleIgnore:
			// Skipped entirely.
		default:
			return nil, fmt.Errorf("%w: column %q: invalid role %q", apperrors.ErrInvalidInput, assignment.Column, assignment.Role)
		}
	}

	if cols.label < 0 {
		return nil, fmt.Errorf("%w: no label column", apperrors.ErrAmbiguousColumnMapping)
	}
	if cols.dimension < 0 && mapping.DefaultDimension == "" {
		return nil, fmt.Errorf("%w: no dimension column and no default dimension", apperrors.ErrAmbiguousColumnMapping)
	}

	return cols, nil
}

// proposeDimension synthesizes a registry entry for a missing dimension.
// Every synthesized field is optional; uploads rarely fill every cell.
func proposeDimension(code, label string, previews []models.ColumnPreview) *models.DimensionProposal {
	if label == "" {
		label = titleize(code)
	}
	proposal := &models.DimensionProposal{
		Code:        code,
		Label:       label,
		ExtraFields: []models.ExtraField{},
	}
	for _, p := range previews {
		if p.Role == models.RoleAttribute {
			proposal.ExtraFields = append(proposal.ExtraFields, models.ExtraField{
				Key:      p.AttributeKey,
				Label:    titleize(p.AttributeKey),
				DataType: p.DataType,
				Required: false,
			})
		}
	}
	return proposal
}

func titleize(code string) string {
	parts := strings.Split(code, "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
