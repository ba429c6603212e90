// Package items turns provider list responses into core.IntegrationItem values.
package items

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-training/integration-broker/pkg/core"
)

// Record is one entry of a provider list response.
type Record struct {
	ID         NativeID       `json:"id"`
	Properties map[string]any `json:"properties"`
	CreatedAt  string         `json:"createdAt"`
	UpdatedAt  string         `json:"updatedAt"`
	Archived   bool           `json:"archived"`
}

// NativeID accepts both string and numeric record ids.
type NativeID string

func (n *NativeID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = NativeID(strings.TrimSpace(s))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("record id must be a string or number: %w", err)
	}
	*n = NativeID(num.String())
	return nil
}

// Variant selects the name derivation rule for a resource type.
type Variant int

const (
	VariantGeneric Variant = iota
	VariantContact
	VariantCompany
	VariantDeal
)

var variants = map[string]Variant{
	"contacts":  VariantContact,
	"companies": VariantCompany,
	"deals":     VariantDeal,
}

var typeLabels = map[Variant]string{
	VariantContact: "Contact",
	VariantCompany: "Company",
	VariantDeal:    "Deal",
}

// VariantFor returns the variant for a resource type; unknown types are generic.
func VariantFor(resourceType string) Variant {
	if v, ok := variants[strings.ToLower(resourceType)]; ok {
		return v
	}
	return VariantGeneric
}

// TypeLabel returns the item type for a resource type, e.g. "contacts" -> "Contact".
func TypeLabel(resourceType string) string {
	if label, ok := typeLabels[VariantFor(resourceType)]; ok {
		return label
	}
	resourceType = strings.TrimSpace(resourceType)
	if resourceType == "" {
		return "Item"
	}
	r, size := utf8.DecodeRuneInString(resourceType)
	return string(unicode.ToUpper(r)) + resourceType[size:]
}

// name derives the display name for rec, or "" when the variant finds nothing.
func (v Variant) name(rec Record) string {
	switch v {
	case VariantContact:
		full := strings.TrimSpace(prop(rec, "firstname") + " " + prop(rec, "lastname"))
		if full != "" {
			return full
		}
		return prop(rec, "email")
	case VariantCompany:
		return firstProp(rec, "name", "domain")
	case VariantDeal:
		return firstProp(rec, "dealname", "name")
	default:
		return prop(rec, "name")
	}
}

// Normalizer maps provider records to integration items. It has no state and
// the mapping is deterministic.
type Normalizer struct{}

// Normalize maps rec to an IntegrationItem of the given resource type.
// It fails with core.ErrMalformedRecord only when rec has no native id.
func (Normalizer) Normalize(rec Record, resourceType string) (core.IntegrationItem, error) {
	nativeID := string(rec.ID)
	if nativeID == "" {
		nativeID = prop(rec, "hs_object_id")
	}
	if nativeID == "" {
		return core.IntegrationItem{}, core.NewError(core.KindMalformedRecord, "record has no id")
	}

	label := TypeLabel(resourceType)
	name := VariantFor(resourceType).name(rec)
	if name == "" {
		name = label + " " + nativeID
	}

	return core.IntegrationItem{
		ID:               nativeID + "_" + label,
		Name:             name,
		Type:             label,
		CreationTime:     firstTime(rec.CreatedAt, prop(rec, "createdate")),
		LastModifiedTime: firstTime(rec.UpdatedAt, prop(rec, "lastmodifieddate"), prop(rec, "hs_lastmodifieddate")),
		URL:              firstProp(rec, "website", "domain"),
		Visibility:       !rec.Archived,
	}, nil
}

// NormalizeJSON decodes one raw record and normalizes it.
func (n Normalizer) NormalizeJSON(raw json.RawMessage, resourceType string) (core.IntegrationItem, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return core.IntegrationItem{}, core.WrapError(core.KindMalformedRecord, "undecodable record", err)
	}
	return n.Normalize(rec, resourceType)
}

func prop(rec Record, key string) string {
	v, ok := rec.Properties[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func firstProp(rec Record, keys ...string) string {
	for _, k := range keys {
		if v := prop(rec, k); v != "" {
			return v
		}
	}
	return ""
}

func firstTime(values ...string) *time.Time {
	for _, v := range values {
		if v == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return &t
		}
	}
	return nil
}
