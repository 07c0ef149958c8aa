package services

import (
	"strconv"
	"strings"

	"github.com/refdatahub/refdata-engine/pkg/models"
	"github.com/refdatahub/refdata-engine/pkg/tabular"
)

// inferSampleLimit bounds how many distinct values per column feed inference.
const inferSampleLimit = 50

// previewSampleLimit bounds the sample values echoed in a preview column.
const previewSampleLimit = 5

// Header hints resolved against normalized column names. Inference is
// advisory only; callers can override any role before committing.
var (
	labelHeaders = map[string]bool{
		"label": true, "name": true, "value": true, "title": true,
		"canonical_label": true, "display_name": true, "term": true,
	}
	dimensionHeaders = map[string]bool{
		"dimension": true, "category": true, "type": true, "domain": true,
		"group": true, "dimension_code": true,
	}
	descriptionHeaders = map[string]bool{
		"description": true, "desc": true, "definition": true, "notes": true,
		"comment": true, "meaning": true,
	}
	ignoreHeaders = map[string]bool{
		"id": true, "uuid": true, "created_at": true, "updated_at": true,
		"created": true, "modified": true, "row": true,
	}
)

// dimensionValueShare is the fraction of a column's sampled values that must
// resolve to registered dimension codes before the column reads as the
// per-row dimension source.
const dimensionValueShare = 0.5

// InferColumns profiles a parsed table and assigns a role to every column.
// Header hints decide first, including headers that name (or singularize to)
// a registered dimension code; columns whose values resolve to registered
// codes are read next; when no header names a label, the most distinct
// textual column is promoted so every inference yields exactly one label.
func InferColumns(table *tabular.Table, dimensionCodes map[string]bool) []models.ColumnPreview {
	previews := make([]models.ColumnPreview, len(table.Columns))
	samplesByColumn := make([][]string, len(table.Columns))
	haveLabel := false
	haveDimension := false

	for i, name := range table.Columns {
		samples := columnSamples(table, i)
		samplesByColumn[i] = samples
		preview := models.ColumnPreview{
			Name:          name,
			DistinctCount: len(samples),
			SampleValues:  capSamples(samples),
		}

		key := NormalizeKey(name)
		switch {
		case key == "":
			preview.Role = models.RoleIgnore
		case labelHeaders[key] && !haveLabel:
			preview.Role = models.RoleLabel
			haveLabel = true
		case !haveDimension && (dimensionHeaders[key] || resolveDimensionCode(name, dimensionCodes) != ""):
			preview.Role = models.RoleDimension
			haveDimension = true
		case descriptionHeaders[key]:
			preview.Role = models.RoleDescription
		case ignoreHeaders[key]:
			preview.Role = models.RoleIgnore
		default:
			preview.Role = models.RoleAttribute
			preview.AttributeKey = key
			preview.DataType = inferDataType(samples)
		}

		previews[i] = preview
	}

	if !haveDimension {
		promoteDimension(previews, samplesByColumn, dimensionCodes)
	}
	if !haveLabel {
		promoteLabel(previews)
	}

	return previews
}

// resolveDimensionCode maps a header or cell value onto a registered
// dimension code, trying the normalized form first and its singular second.
// Returns "" when neither is registered.
func resolveDimensionCode(raw string, dimensionCodes map[string]bool) string {
	if code := NormalizeKey(raw); dimensionCodes[code] {
		return code
	}
	if code := DeriveDimensionCode(raw); dimensionCodes[code] {
		return code
	}
	return ""
}

// promoteDimension finds the per-row dimension source by value shape: among
// string columns, the lowest-cardinality one whose sampled values mostly
// resolve to registered dimension codes.
func promoteDimension(previews []models.ColumnPreview, samplesByColumn [][]string, dimensionCodes map[string]bool) {
	best := -1
	for i, p := range previews {
		if p.Role != models.RoleAttribute || p.DataType != models.FieldTypeString {
			continue
		}
		samples := samplesByColumn[i]
		if len(samples) == 0 {
			continue
		}
		matched := 0
		for _, v := range samples {
			if resolveDimensionCode(v, dimensionCodes) != "" {
				matched++
			}
		}
		if float64(matched) < dimensionValueShare*float64(len(samples)) {
			continue
		}
		if best == -1 || p.DistinctCount < previews[best].DistinctCount {
			best = i
		}
	}
	if best >= 0 {
		previews[best].Role = models.RoleDimension
		previews[best].AttributeKey = ""
		previews[best].DataType = ""
	}
}

// promoteLabel turns the most distinct string-typed attribute column into the
// label. Numeric columns stay attributes; a code-like numeric column is a
// poor label.
func promoteLabel(previews []models.ColumnPreview) {
	best := -1
	for i, p := range previews {
		if p.Role != models.RoleAttribute || p.DataType != models.FieldTypeString {
			continue
		}
		if best == -1 || p.DistinctCount > previews[best].DistinctCount {
			best = i
		}
	}
	if best >= 0 {
		previews[best].Role = models.RoleLabel
		previews[best].AttributeKey = ""
		previews[best].DataType = ""
	}
}

// columnSamples returns up to inferSampleLimit distinct non-empty values in
// first-seen order.
func columnSamples(table *tabular.Table, col int) []string {
	seen := make(map[string]struct{})
	var samples []string
	for row := range table.Rows {
		v := table.Cell(row, col)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		samples = append(samples, v)
		if len(samples) == inferSampleLimit {
			break
		}
	}
	return samples
}

func capSamples(samples []string) []string {
	if len(samples) > previewSampleLimit {
		samples = samples[:previewSampleLimit]
	}
	out := make([]string, len(samples))
	copy(out, samples)
	return out
}

// inferDataType picks the narrowest type that fits every sample.
func inferDataType(samples []string) models.FieldType {
	if len(samples) == 0 {
		return models.FieldTypeString
	}

	allNumber := true
	allBool := true
	for _, s := range samples {
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			allNumber = false
		}
		switch strings.ToLower(s) {
		case "true", "false", "yes", "no", "y", "n":
		default:
			allBool = false
		}
		if !allNumber && !allBool {
			return models.FieldTypeString
		}
	}

	if allNumber {
		return models.FieldTypeNumber
	}
	return models.FieldTypeBoolean
}

// AssignmentsFromPreviews converts an inference result into the mapping shape
// a caller would send back, used when committing without overrides.
func AssignmentsFromPreviews(previews []models.ColumnPreview) []models.ColumnAssignment {
	assignments := make([]models.ColumnAssignment, len(previews))
	for i, p := range previews {
		assignments[i] = models.ColumnAssignment{
			Column:       p.Name,
			Role:         p.Role,
			AttributeKey: p.AttributeKey,
			DataType:     p.DataType,
		}
	}
	return assignments
}
