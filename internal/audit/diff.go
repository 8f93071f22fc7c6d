// Package audit computes field-level change sets for the admin audit trail.
package audit

import (
	"reflect"
	"sort"
	"strings"
	"time"

	"pipe-company/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// skippedFields are bookkeeping columns that never appear in a change set
var skippedFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

var decimalType = reflect.TypeOf(decimal.Decimal{})
var timeType = reflect.TypeOf(time.Time{})

// Diff compares two values of the same struct type and returns the fields that differ,
// in declaration order. Either side may be nil, which models a create (old nil) or a
// delete (new nil); in that case only non-zero fields of the other side are reported.
// Slices of structs (loaded children) are not compared.
func Diff(old, new any) []domain.FieldChange {
	ov, oOK := structValue(old)
	nv, nOK := structValue(new)

	switch {
	case !oOK && !nOK:
		return nil
	case !oOK:
		return snapshot(nv, false)
	case !nOK:
		return snapshot(ov, true)
	}

	if ov.Type() != nv.Type() {
		return nil
	}

	var changes []domain.FieldChange
	forEachField(ov.Type(), func(i int, name string) {
		a, b := ov.Field(i), nv.Field(i)
		if equalValues(a, b) {
			return
		}
		changes = append(changes, domain.FieldChange{
			Field: name,
			Old:   exportValue(a),
			New:   exportValue(b),
		})
	})
	return changes
}

// NewEntry builds an audit entry. It returns nil for an update with no changes.
func NewEntry(entityType string, entityID uuid.UUID, action string, changes []domain.FieldChange, userID *uuid.UUID) *domain.AuditLogEntry {
	if action == domain.AuditActionUpdate && len(changes) == 0 {
		return nil
	}
	if changes == nil {
		changes = []domain.FieldChange{}
	}
	return &domain.AuditLogEntry{
		ID:         uuid.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Changes:    changes,
		UserID:     userID,
		CreatedAt:  time.Now().UTC(),
	}
}

// ChangedFields returns just the sorted field names of a change set
func ChangedFields(changes []domain.FieldChange) []string {
	names := make([]string, 0, len(changes))
	for _, c := range changes {
		names = append(names, c.Field)
	}
	sort.Strings(names)
	return names
}

func snapshot(v reflect.Value, deleted bool) []domain.FieldChange {
	var changes []domain.FieldChange
	forEachField(v.Type(), func(i int, name string) {
		f := v.Field(i)
		if isZero(f) {
			return
		}
		change := domain.FieldChange{Field: name}
		if deleted {
			change.Old = exportValue(f)
		} else {
			change.New = exportValue(f)
		}
		changes = append(changes, change)
	})
	return changes
}

func structValue(x any) (reflect.Value, bool) {
	if x == nil {
		return reflect.Value{}, false
	}
	v := reflect.ValueOf(x)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	return v, true
}

func forEachField(t reflect.Type, fn func(i int, name string)) {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := fieldName(sf)
		if name == "" || skippedFields[name] {
			continue
		}
		if sf.Type.Kind() == reflect.Slice && sf.Type.Elem().Kind() == reflect.Struct {
			continue
		}
		fn(i, name)
	}
}

func fieldName(sf reflect.StructField) string {
	tag := sf.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name
	}
	return sf.Name
}

func equalValues(a, b reflect.Value) bool {
	switch {
	case a.Type() == decimalType:
		return a.Interface().(decimal.Decimal).Equal(b.Interface().(decimal.Decimal))
	case a.Type() == timeType:
		return a.Interface().(time.Time).Equal(b.Interface().(time.Time))
	case a.Kind() == reflect.Map:
		if a.Len() == 0 && b.Len() == 0 {
			return true
		}
		return reflect.DeepEqual(a.Interface(), b.Interface())
	case a.Kind() == reflect.Pointer:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() == b.IsNil()
		}
		return equalValues(a.Elem(), b.Elem())
	default:
		return reflect.DeepEqual(a.Interface(), b.Interface())
	}
}

func isZero(v reflect.Value) bool {
	switch {
	case v.Type() == decimalType:
		return v.Interface().(decimal.Decimal).IsZero()
	case v.Kind() == reflect.Map || v.Kind() == reflect.Slice:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}

// exportValue converts a field to a JSON-friendly value for storage in the audit log
func exportValue(v reflect.Value) any {
	switch {
	case v.Type() == decimalType:
		return v.Interface().(decimal.Decimal).String()
	case v.Kind() == reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return exportValue(v.Elem())
	case v.Kind() == reflect.Map && v.Len() == 0:
		return nil
	}
	if id, ok := v.Interface().(uuid.UUID); ok {
		return id.String()
	}
	return v.Interface()
}
