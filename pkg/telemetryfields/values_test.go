package telemetryfields

import "testing"

func TestNormalizeErrorType(t *testing.T) {
	cases := map[string]string{
		"ApiCallError":        ErrorTypeAPICall,
		"apiCallError":        ErrorTypeAPICall,
		"api_call_error":      ErrorTypeAPICall,
		"InternalError":       ErrorTypeInternal,
		"internalError":       ErrorTypeInternal,
		"ParameterError":      ErrorTypeParameter,
		"NotImplementedError": ErrorTypeNotImplemented,
		"Unauthorized":        ErrorTypeUnauthorized,
		"somethingElse":       "somethingelse",
	}
	for k, want := range cases {
		if got := NormalizeErrorType(k); got != want {
			t.Fatalf("NormalizeErrorType(%q) = %q, want %q", k, got, want)
		}
	}
}
