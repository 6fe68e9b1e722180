package domain

import "net/http"

// LocationSpec describes signed remote access to a single object. The same
// shape is used for task inputs, data parameters, and the status, logfile
// and output publication targets.
type LocationSpec struct {
	SignedURL string `json:"signed_url"`
	Method    string `json:"method,omitempty"`
}

// LocationSpecFromSignedURL builds a read location for a bare signed URL.
func LocationSpecFromSignedURL(url string) LocationSpec {
	return LocationSpec{SignedURL: url, Method: http.MethodGet}
}

// IsLocationSpec reports whether a decoded JSON value has the location-spec
// shape: an object carrying a non-empty string "signed_url". This is the
// single discriminator used for both input parsing and parameter
// classification.
func IsLocationSpec(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	url, ok := obj["signed_url"].(string)
	return ok && url != ""
}
