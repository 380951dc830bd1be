// SPDX-License-Identifier: MIT

package config

import (
	"reflect"
	"strings"

	platformnet "github.com/ManuGH/epgmerge/internal/platform/net"
)

// sensitiveKeywords contains keywords that indicate sensitive fields.
// Any field name containing these keywords (case-insensitive) will be masked.
var sensitiveKeywords = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"apikey",
	"api_key",
	"credential",
}

// MaskSecrets converts data into maps and slices suitable for logging or
// JSON output. Sensitive fields become "***" and URLs lose credentials and
// query strings.
func MaskSecrets(data any) any {
	if data == nil {
		return nil
	}

	val := reflect.ValueOf(data)
	for val.Kind() == reflect.Pointer {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}

	switch val.Kind() {
	case reflect.String:
		s := val.String()
		if strings.Contains(s, "://") {
			return platformnet.SanitizeURL(s)
		}
		return s

	case reflect.Map:
		result := make(map[string]any, val.Len())
		iter := val.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			if isSensitiveKey(key) {
				result[key] = "***"
				continue
			}
			result[key] = MaskSecrets(iter.Value().Interface())
		}
		return result

	case reflect.Slice, reflect.Array:
		result := make([]any, val.Len())
		for i := range val.Len() {
			result[i] = MaskSecrets(val.Index(i).Interface())
		}
		return result

	case reflect.Struct:
		result := make(map[string]any)
		typ := val.Type()
		for i := range val.NumField() {
			field := typ.Field(i)
			if !field.IsExported() {
				continue
			}
			if isSensitiveKey(field.Name) {
				result[field.Name] = "***"
				continue
			}
			fv := val.Field(i)
			if d, ok := fv.Interface().(interface{ String() string }); ok && fv.Kind() == reflect.Int64 {
				// time.Duration
				result[field.Name] = d.String()
				continue
			}
			result[field.Name] = MaskSecrets(fv.Interface())
		}
		return result

	default:
		return data
	}
}

// isSensitiveKey checks if a key name contains any sensitive keyword.
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lowerKey, keyword) {
			return true
		}
	}
	return false
}
