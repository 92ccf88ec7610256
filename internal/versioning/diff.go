// Package versioning holds the pure comparison logic for document version
// chains. Nothing here performs I/O; versions are compared on metadata only,
// since the file bytes themselves live in blob storage.
package versioning

import (
	"fmt"

	"github.com/anbudportalen/tender-service/internal/models"
)

// comparedFields is the fixed set of metadata fields a diff looks at.
var comparedFields = []struct {
	name string
	get  func(*models.DocumentVersion) string
}{
	{"name", func(v *models.DocumentVersion) string { return v.Name }},
	{"size", func(v *models.DocumentVersion) string { return FormatBytes(v.Size) }},
	{"type", func(v *models.DocumentVersion) string { return v.ContentType }},
	{"uploadedBy", func(v *models.DocumentVersion) string { return v.UploadedByName }},
	{"changeReason", func(v *models.DocumentVersion) string { return v.ChangeReason }},
}

// CreatedChange is the synthetic change record for the first version of a
// document.
func CreatedChange(name string) models.VersionChange {
	return models.VersionChange{
		Field:    "document",
		NewValue: name,
		Type:     models.ChangeCreated,
	}
}

// ComputeChanges describes the delta from prev to next. A nil prev means
// next is the first version and yields a single "created" entry.
func ComputeChanges(prev, next *models.DocumentVersion) []models.VersionChange {
	if prev == nil {
		return []models.VersionChange{CreatedChange(next.Name)}
	}

	var changes []models.VersionChange
	for _, f := range comparedFields {
		oldVal, newVal := f.get(prev), f.get(next)
		if oldVal == newVal {
			continue
		}
		changes = append(changes, models.VersionChange{
			Field:    f.name,
			OldValue: oldVal,
			NewValue: newVal,
			Type:     models.ChangeModified,
		})
	}
	return changes
}

// Compare produces the field-level differences between two versions of the
// same document. When the sizes differ the delta is also rendered as an
// absolute size and as a percentage of the old size.
func Compare(v1, v2 *models.DocumentVersion) models.VersionComparison {
	cmp := models.VersionComparison{
		Differences: ComputeChanges(v1, v2),
	}
	cmp.HasChanges = len(cmp.Differences) > 0

	if v1 != nil && v1.Size != v2.Size {
		cmp.SizeDelta = FormatSizeDelta(v1.Size, v2.Size)
		cmp.SizeDeltaPct = SizeDeltaPercent(v1.Size, v2.Size)
	}
	return cmp
}

// FormatBytes renders a byte count as B, KB or MB with one decimal place
// above 1024 bytes.
func FormatBytes(size int64) string {
	if size < 1024 {
		return fmt.Sprintf("%d B", size)
	}
	kb := float64(size) / 1024
	if kb < 1024 {
		return fmt.Sprintf("%.1f KB", kb)
	}
	return fmt.Sprintf("%.1f MB", kb/1024)
}

// FormatSizeDelta renders the signed absolute size difference.
func FormatSizeDelta(oldSize, newSize int64) string {
	delta := newSize - oldSize
	sign := "+"
	if delta < 0 {
		sign = "-"
		delta = -delta
	}
	return sign + FormatBytes(delta)
}

// SizeDeltaPercent renders the size change as a percentage of the old size,
// one decimal place. A previous size of zero has no defined percentage and
// yields "N/A".
func SizeDeltaPercent(oldSize, newSize int64) string {
	if oldSize == 0 {
		return "N/A"
	}
	pct := float64(newSize-oldSize) / float64(oldSize) * 100
	return fmt.Sprintf("%+.1f%%", pct)
}
