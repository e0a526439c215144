/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package store

import (
	"fmt"
	"time"
)

const (
	// DocType is the single mapping type used by every index.
	DocType       = "doc"
	dateLayout    = "2006.01.02"
	keywordIgnore = 256
)

type (
	// Field is one typed property of an index mapping.
	Field struct {
		Name string
		Spec map[string]interface{}
	}
	// Mapping is an index creation body: sort settings plus a typed schema.
	Mapping struct {
		Settings map[string]interface{} `json:"settings"`
		Mappings map[string]interface{} `json:"mappings"`
	}
)

// IndexName returns {family}-{env}-{YYYY.MM.DD} for the local date of t.
func IndexName(family, env string, t time.Time) string {
	return fmt.Sprintf("%s-%s-%s", family, env, t.Format(dateLayout))
}

func DateField(name string) Field {
	return Field{Name: name, Spec: map[string]interface{}{"type": "date"}}
}

func FloatField(name string) Field {
	return Field{Name: name, Spec: map[string]interface{}{"type": "float"}}
}

// KeywordTextField is a full-text field with a keyword sub field for exact matches and aggregations.
func KeywordTextField(name string) Field {
	return Field{Name: name, Spec: map[string]interface{}{
		"type": "text",
		"fields": map[string]interface{}{
			"keyword": map[string]interface{}{
				"type":         "keyword",
				"ignore_above": keywordIgnore,
			},
		},
	}}
}

// NewMapping builds a mapping sorted by @timestamp descending.
func NewMapping(fields ...Field) *Mapping {
	properties := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		properties[f.Name] = f.Spec
	}
	return &Mapping{
		Settings: map[string]interface{}{
			"index": map[string]interface{}{
				"sort.field": []string{"@timestamp"},
				"sort.order": []string{"desc"},
			},
		},
		Mappings: map[string]interface{}{
			DocType: map[string]interface{}{
				"properties": properties,
			},
		},
	}
}
