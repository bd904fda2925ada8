package httpapi

import (
	"bytes"
	"encoding/json"
	"mime"
	"mime/multipart"
	"net/url"
)

// stopStrategy extracts the client's partial output from a stop request body.
type stopStrategy func(mediaType string, params map[string]string, body []byte) (string, bool)

// Stop requests arrive from fetch (JSON), forms and navigator.sendBeacon,
// which often labels a JSON payload text/plain. First success wins.
var stopStrategies = []stopStrategy{jsonOutput, formOutput, rawJSONOutput}

// stopOutput returns the "output" field of a stop body, or "".
func stopOutput(contentType string, body []byte) string {
	if len(bytes.TrimSpace(body)) == 0 {
		return ""
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, params = "", nil
	}
	for _, s := range stopStrategies {
		if out, ok := s(mediaType, params, body); ok {
			return out
		}
	}
	return ""
}

func jsonOutput(mediaType string, _ map[string]string, body []byte) (string, bool) {
	if mediaType != "application/json" {
		return "", false
	}
	return outputField(body)
}

func formOutput(mediaType string, params map[string]string, body []byte) (string, bool) {
	switch mediaType {
	case "application/x-www-form-urlencoded":
		vals, err := url.ParseQuery(string(body))
		if err != nil || !vals.Has("output") {
			return "", false
		}
		return vals.Get("output"), true
	case "multipart/form-data":
		boundary := params["boundary"]
		if boundary == "" {
			return "", false
		}
		form, err := multipart.NewReader(bytes.NewReader(body), boundary).ReadForm(maxBodyBytes)
		if err != nil {
			return "", false
		}
		defer form.RemoveAll()
		if v := form.Value["output"]; len(v) > 0 {
			return v[0], true
		}
	}
	return "", false
}

// rawJSONOutput ignores the declared content type.
func rawJSONOutput(_ string, _ map[string]string, body []byte) (string, bool) {
	return outputField(body)
}

func outputField(body []byte) (string, bool) {
	var v struct {
		Output *string `json:"output"`
	}
	if err := json.Unmarshal(body, &v); err != nil || v.Output == nil {
		return "", false
	}
	return *v.Output, true
}
