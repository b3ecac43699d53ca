package camera

import "net/http"

func OverloadDoRequest(overload func(*http.Client, *http.Request) (*http.Response, error)) func() {
	doRequestRef := doRequest
	doRequest = overload
	return func() { doRequest = doRequestRef }
}
