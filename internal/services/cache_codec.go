package services

import "encoding/json"

func marshalCached(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func unmarshalCached(raw []byte, v interface{}) error {
	return json.Unmarshal(raw, v)
}
