/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package store

import (
	"bufio"
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

type (
	BulkAction struct {
		Index BulkActionMeta `json:"index"`
	}
	BulkActionMeta struct {
		Index string `json:"_index"`
		Type  string `json:"_type"`
	}
	// BulkResponse is the part of the _bulk response we look at.
	BulkResponse struct {
		Took   int64                         `json:"took"`
		Errors bool                          `json:"errors"`
		Items  []map[string]BulkResponseItem `json:"items"`
	}
	BulkResponseItem struct {
		Index  string          `json:"_index"`
		Id     string          `json:"_id"`
		Status int             `json:"status"`
		Error  json.RawMessage `json:"error,omitempty"`
	}
)

// BuildBulkPayload renders docs as newline delimited action/document pairs targeting index.
func BuildBulkPayload(index string, docs []interface{}) ([]byte, error) {
	action, err := json.Marshal(&BulkAction{Index: BulkActionMeta{Index: index, Type: DocType}})
	if err != nil {
		return nil, err
	}

	buf := bytes.NewBuffer(make([]byte, 0, len(docs)*256))
	for i, doc := range docs {
		b, err := json.Marshal(doc)
		if err != nil {
			return nil, errors.Wrapf(err, "marshal doc %d", i)
		}
		buf.Write(action)
		buf.WriteByte('\n')
		buf.Write(b)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// ParseBulkPayload splits a payload back into its action and document lines.
func ParseBulkPayload(payload []byte) ([]BulkAction, []json.RawMessage, error) {
	var actions []BulkAction
	var docs []json.RawMessage

	scanner := bufio.NewScanner(bytes.NewReader(payload))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		b := scanner.Bytes()
		if len(bytes.TrimSpace(b)) == 0 {
			continue
		}
		if line%2 == 0 {
			action := BulkAction{}
			if err := json.Unmarshal(b, &action); err != nil {
				return nil, nil, errors.Wrapf(err, "action line %d", line)
			}
			actions = append(actions, action)
		} else {
			if !json.Valid(b) {
				return nil, nil, errors.Errorf("document line %d is not json", line)
			}
			docs = append(docs, append(json.RawMessage(nil), b...))
		}
		line++
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	if len(actions) != len(docs) {
		return nil, nil, errors.Errorf("unpaired action line, actions=%d docs=%d", len(actions), len(docs))
	}
	return actions, docs, nil
}

// FailedItems counts items whose status is not 2xx.
func (r *BulkResponse) FailedItems() int {
	if r == nil {
		return 0
	}
	failed := 0
	for _, item := range r.Items {
		for _, result := range item {
			if result.Status/100 != 2 || len(result.Error) > 0 {
				failed++
			}
		}
	}
	return failed
}
