package overlay

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/phrazzld/taskboard-api/internal/domain"
)

// Fields is a domain-level overlay patch: camelCase keys mapped to typed
// values (strings, bools, time.Time, []string tags, *domain.Layout,
// *domain.Category). The store translates it to the wire column names and
// encodings on write.
type Fields map[string]any

// Patchable field names. These are also the whitelist for caller-supplied
// patches; the sync-state fields below are only ever written by this system.
const (
	FieldTitle           = "title"
	FieldWorkingStatus   = "workingStatus"
	FieldWorkType        = "workType"
	FieldTags            = "tags"
	FieldActiveStartedAt = "activeStartedAt"
	FieldLastWorkedAt    = "lastWorkedAt"
	FieldEnergy          = "energy"
	FieldEffortMinutes   = "effortMinutes"
	FieldImpact          = "impact"
	FieldOverlayNotes    = "overlayNotes"
	FieldPinned          = "pinned"
	FieldLayout          = "layout"
	FieldCategory        = "category"

	FieldExternalState       = "externalState"
	FieldLastKnownDueDateUTC = "lastKnownDueDateUtc"
	FieldLastKnownCompleted  = "lastKnownCompleted"
	FieldLastExternalSyncAt  = "lastExternalSyncAt"
)

// WritableFields is the whitelist of patch keys callers may set through the
// upsert operation. Unknown keys are silently dropped, not errors.
var WritableFields = map[string]struct{}{
	FieldTitle:           {},
	FieldWorkingStatus:   {},
	FieldWorkType:        {},
	FieldTags:            {},
	FieldActiveStartedAt: {},
	FieldLastWorkedAt:    {},
	FieldEnergy:          {},
	FieldEffortMinutes:   {},
	FieldImpact:          {},
	FieldOverlayNotes:    {},
	FieldPinned:          {},
	FieldLayout:          {},
	FieldCategory:        {},
}

// SanitizePatch keeps only whitelisted keys from a raw caller patch.
func SanitizePatch(raw map[string]any) Fields {
	out := make(Fields, len(raw))
	for k, v := range raw {
		if _, ok := WritableFields[k]; ok {
			out[k] = v
		}
	}
	return out
}

// listItem is the wire shape of one overlay row.
type listItem struct {
	ID     string     `json:"id"`
	Fields itemFields `json:"fields"`
}

// itemFields maps the store's column names. Tags, Layout and Category are
// JSON-encoded strings at this boundary per the persisted schema.
type itemFields struct {
	Title                string   `json:"Title,omitempty"`
	UserUpn              string   `json:"UserUpn,omitempty"`
	Provider             string   `json:"Provider,omitempty"`
	ExternalTaskID       string   `json:"ExternalTaskId,omitempty"`
	WorkingStatus        string   `json:"WorkingStatus,omitempty"`
	WorkType             string   `json:"WorkType,omitempty"`
	Tags                 string   `json:"Tags,omitempty"`
	ActiveStartedAt      string   `json:"ActiveStartedAt,omitempty"`
	LastWorkedAt         string   `json:"LastWorkedAt,omitempty"`
	Energy               string   `json:"Energy,omitempty"`
	EffortMinutes        *float64 `json:"EffortMinutes,omitempty"`
	Impact               string   `json:"Impact,omitempty"`
	OverlayNotes         string   `json:"OverlayNotes,omitempty"`
	Pinned               bool     `json:"Pinned"`
	Layout               string   `json:"Layout,omitempty"`
	Category             string   `json:"Category,omitempty"`
	ExternalState        string   `json:"ExternalState,omitempty"`
	LastKnownDueDateUTC  string   `json:"LastKnownDueDateUtc,omitempty"`
	LastKnownCompleted   bool     `json:"LastKnownCompleted"`
	LastExternalSyncAt   string   `json:"LastExternalSyncAt,omitempty"`
	LastOverlayUpdatedAt string   `json:"LastOverlayUpdatedAt,omitempty"`
}

// columnNames maps domain-level patch keys to store column names.
var columnNames = map[string]string{
	FieldTitle:               "Title",
	FieldWorkingStatus:       "WorkingStatus",
	FieldWorkType:            "WorkType",
	FieldTags:                "Tags",
	FieldActiveStartedAt:     "ActiveStartedAt",
	FieldLastWorkedAt:        "LastWorkedAt",
	FieldEnergy:              "Energy",
	FieldEffortMinutes:       "EffortMinutes",
	FieldImpact:              "Impact",
	FieldOverlayNotes:        "OverlayNotes",
	FieldPinned:              "Pinned",
	FieldLayout:              "Layout",
	FieldCategory:            "Category",
	FieldExternalState:       "ExternalState",
	FieldLastKnownDueDateUTC: "LastKnownDueDateUtc",
	FieldLastKnownCompleted:  "LastKnownCompleted",
	FieldLastExternalSyncAt:  "LastExternalSyncAt",
}

// columnsFromPatch translates a domain patch into wire columns, JSON-encoding
// the blob fields and formatting instants to RFC3339. LastOverlayUpdatedAt is
// stamped on every write.
func columnsFromPatch(patch Fields, now time.Time) (map[string]any, error) {
	out := make(map[string]any, len(patch)+1)
	for key, value := range patch {
		column, ok := columnNames[key]
		if !ok {
			continue
		}
		encoded, err := encodeColumn(key, value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for field %q: %w", key, err)
		}
		out[column] = encoded
	}
	out["LastOverlayUpdatedAt"] = now.UTC().Format(time.RFC3339)
	return out, nil
}

func encodeColumn(key string, value any) (any, error) {
	switch key {
	case FieldTags:
		tags, err := coerceTags(value)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(tags)
		if err != nil {
			return nil, err
		}
		return string(encoded), nil

	case FieldLayout, FieldCategory:
		if value == nil {
			return "", nil
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		return string(encoded), nil

	case FieldActiveStartedAt, FieldLastWorkedAt, FieldLastKnownDueDateUTC, FieldLastExternalSyncAt:
		if value == nil {
			return "", nil
		}
		if ts := coerceTime(value); ts != nil {
			return ts.UTC().Format(time.RFC3339), nil
		}
		return nil, fmt.Errorf("not a recognizable instant: %v", value)

	case FieldPinned, FieldLastKnownCompleted:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", value)
		}
		return b, nil

	case FieldEffortMinutes:
		switch n := value.(type) {
		case nil:
			return nil, nil
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		default:
			return nil, fmt.Errorf("expected number, got %T", value)
		}

	default:
		// Free-form string columns.
		s, ok := value.(string)
		if !ok {
			if value == nil {
				return "", nil
			}
			return nil, fmt.Errorf("expected string, got %T", value)
		}
		return s, nil
	}
}

// coerceTime accepts the instant representations a patch may carry:
// time.Time, *time.Time, or a string in one of the accepted layouts.
func coerceTime(value any) *time.Time {
	switch v := value.(type) {
	case time.Time:
		return &v
	case *time.Time:
		return v
	case string:
		return parseInstant(v)
	default:
		return nil
	}
}

func coerceTags(value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return []string{}, nil
	case []string:
		return v, nil
	case []any:
		tags := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("tag entries must be strings, got %T", item)
			}
			tags = append(tags, s)
		}
		return tags, nil
	default:
		return nil, fmt.Errorf("expected tag list, got %T", value)
	}
}

var instantLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseInstant(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range instantLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			utc := ts.UTC()
			return &utc
		}
	}
	return nil
}

// overlayFromItem decodes one store row into the domain shape. Undecodable
// blob fields degrade to nil rather than failing the whole listing.
func overlayFromItem(item listItem) *domain.Overlay {
	f := item.Fields

	ov := &domain.Overlay{
		ItemID:               item.ID,
		UserUPN:              domain.NormalizeUPN(f.UserUpn),
		Provider:             domain.Provider(f.Provider),
		ExternalTaskID:       f.ExternalTaskID,
		Title:                f.Title,
		WorkingStatus:        f.WorkingStatus,
		WorkType:             f.WorkType,
		Tags:                 decodeTags(f.Tags),
		ActiveStartedAt:      parseInstant(f.ActiveStartedAt),
		LastWorkedAt:         parseInstant(f.LastWorkedAt),
		Energy:               f.Energy,
		EffortMinutes:        f.EffortMinutes,
		Impact:               f.Impact,
		OverlayNotes:         f.OverlayNotes,
		Pinned:               f.Pinned,
		ExternalState:        domain.ExternalState(f.ExternalState),
		LastKnownDueDateUTC:  parseInstant(f.LastKnownDueDateUTC),
		LastKnownCompleted:   f.LastKnownCompleted,
		LastExternalSyncAt:   parseInstant(f.LastExternalSyncAt),
		LastOverlayUpdatedAt: parseInstant(f.LastOverlayUpdatedAt),
	}

	if f.Layout != "" {
		var layout domain.Layout
		if err := json.Unmarshal([]byte(f.Layout), &layout); err == nil {
			ov.Layout = &layout
		}
	}
	if f.Category != "" {
		var category domain.Category
		if err := json.Unmarshal([]byte(f.Category), &category); err == nil {
			ov.Category = &category
		}
	}

	return ov
}

func decodeTags(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil || tags == nil {
		return []string{}
	}
	return tags
}

// applyToOverlay returns a copy of ov with the patch applied, used to report
// write results without a follow-up read.
func applyToOverlay(ov *domain.Overlay, patch Fields, now time.Time) *domain.Overlay {
	out := *ov
	updatedAt := now.UTC()
	out.LastOverlayUpdatedAt = &updatedAt

	for key, value := range patch {
		switch key {
		case FieldTitle:
			if s, ok := value.(string); ok {
				out.Title = s
			}
		case FieldWorkingStatus:
			if s, ok := value.(string); ok {
				out.WorkingStatus = s
			}
		case FieldWorkType:
			if s, ok := value.(string); ok {
				out.WorkType = s
			}
		case FieldTags:
			if tags, err := coerceTags(value); err == nil {
				out.Tags = tags
			}
		case FieldActiveStartedAt:
			out.ActiveStartedAt = normalizeTimePtr(value)
		case FieldLastWorkedAt:
			out.LastWorkedAt = normalizeTimePtr(value)
		case FieldEnergy:
			if s, ok := value.(string); ok {
				out.Energy = s
			}
		case FieldEffortMinutes:
			switch n := value.(type) {
			case nil:
				out.EffortMinutes = nil
			case float64:
				v := n
				out.EffortMinutes = &v
			case int:
				v := float64(n)
				out.EffortMinutes = &v
			}
		case FieldImpact:
			if s, ok := value.(string); ok {
				out.Impact = s
			}
		case FieldOverlayNotes:
			if s, ok := value.(string); ok {
				out.OverlayNotes = s
			}
		case FieldPinned:
			if b, ok := value.(bool); ok {
				out.Pinned = b
			}
		case FieldLayout:
			out.Layout = coerceLayout(value)
		case FieldCategory:
			out.Category = coerceCategory(value)
		case FieldExternalState:
			if s, ok := value.(string); ok {
				out.ExternalState = domain.ExternalState(s)
			}
		case FieldLastKnownDueDateUTC:
			out.LastKnownDueDateUTC = normalizeTimePtr(value)
		case FieldLastKnownCompleted:
			if b, ok := value.(bool); ok {
				out.LastKnownCompleted = b
			}
		case FieldLastExternalSyncAt:
			out.LastExternalSyncAt = normalizeTimePtr(value)
		}
	}

	if out.Tags == nil {
		out.Tags = []string{}
	}
	return &out
}

func normalizeTimePtr(value any) *time.Time {
	if ts := coerceTime(value); ts != nil {
		utc := ts.UTC()
		return &utc
	}
	return nil
}

func coerceLayout(value any) *domain.Layout {
	switch v := value.(type) {
	case nil:
		return nil
	case *domain.Layout:
		return v
	case domain.Layout:
		return &v
	case map[string]any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		var layout domain.Layout
		if err := json.Unmarshal(encoded, &layout); err != nil {
			return nil
		}
		return &layout
	default:
		return nil
	}
}

func coerceCategory(value any) *domain.Category {
	switch v := value.(type) {
	case nil:
		return nil
	case *domain.Category:
		return v
	case domain.Category:
		return &v
	case map[string]any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		var category domain.Category
		if err := json.Unmarshal(encoded, &category); err != nil {
			return nil
		}
		return &category
	default:
		return nil
	}
}
