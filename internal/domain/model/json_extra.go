package model

import "encoding/json"

// Entities are persisted as a canonical JSON blob next to their indexed
// columns. The blob is the source of truth, so decoding must not lose fields
// written by newer versions of the server. Each entity keeps the keys it does
// not recognise in an extra map and merges them back on encode.

// splitUnknown returns every key of data that is not present in known.
// known is the JSON encoding of the recognised fields.
func splitUnknown(data, known []byte) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	var knownKeys map[string]json.RawMessage
	if err := json.Unmarshal(known, &knownKeys); err != nil {
		return nil, err
	}
	for k := range knownKeys {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// mergeUnknown merges extra keys into the encoded entity body.
func mergeUnknown(body []byte, extra map[string]json.RawMessage) ([]byte, error) {
	if len(extra) == 0 {
		return body, nil
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(body, &all); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, ok := all[k]; !ok {
			all[k] = v
		}
	}
	return json.Marshal(all)
}
