/*
Copyright 2025 Syncwatch Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package request is a small JSON HTTP helper for outbound webhook calls.
package request

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"
)

// callTimeout bounds every outbound call. Webhook endpoints are outside our
// control and must not stall a notification worker.
const callTimeout = 15 * time.Second

// ToJsonReq wraps a payload as a JSON body for an outbound call.
func ToJsonReq(payload interface{}) (*bytes.Buffer, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return bytes.NewBuffer(body), nil
}

// Call sends req with a JSON content type and decodes the response body into
// response. The body is drained and closed here; callers read the decoded
// value and the status code only.
func Call(req *http.Request, response interface{}) (*http.Response, error) {
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: callTimeout}

	resp, err := client.Do(req)
	if err != nil {
		return resp, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return resp, err
	}
	return resp, nil
}
