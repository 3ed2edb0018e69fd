// Package lambdaproxy serves an http.Handler behind an AWS Lambda function
// URL.
package lambdaproxy

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
)

// Adapter translates function URL events into requests for Handler.
type Adapter struct {
	Handler http.Handler
}

func New(h http.Handler) *Adapter {
	return &Adapter{Handler: h}
}

// Handle is the Lambda entry point, suitable for lambda.Start.
func (a *Adapter) Handle(ctx context.Context, event events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	req, err := NewRequest(ctx, event)
	if err != nil {
		return events.LambdaFunctionURLResponse{}, err
	}
	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, req)
	return NewResponse(rec.Result()), nil
}

// NewRequest builds the *http.Request described by event.
func NewRequest(ctx context.Context, event events.LambdaFunctionURLRequest) (*http.Request, error) {
	method := event.RequestContext.HTTP.Method
	if method == "" {
		method = http.MethodGet
	}

	path := event.RawPath
	if path == "" {
		path = "/"
	}
	target := path
	if event.RawQueryString != "" {
		target += "?" + event.RawQueryString
	}

	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return nil, fmt.Errorf("decode base64 body: %w", err)
		}
		body = decoded
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range event.Headers {
		req.Header.Set(k, v)
	}
	for _, c := range event.Cookies {
		req.Header.Add("Cookie", c)
	}
	if host := req.Header.Get("Host"); host != "" {
		req.Host = host
	} else {
		req.Host = event.RequestContext.DomainName
	}
	if ip := event.RequestContext.HTTP.SourceIP; ip != "" {
		req.RemoteAddr = ip + ":0"
	}
	req.ContentLength = int64(len(body))
	if len(body) == 0 {
		req.Body = http.NoBody
	}
	req.RequestURI = target
	return req, nil
}

// NewResponse converts a recorded response. Bodies that are not valid
// UTF-8 are sent base64 encoded.
func NewResponse(resp *http.Response) events.LambdaFunctionURLResponse {
	var buf bytes.Buffer
	if resp.Body != nil {
		_, _ = buf.ReadFrom(resp.Body)
		resp.Body.Close()
	}

	out := events.LambdaFunctionURLResponse{
		StatusCode: resp.StatusCode,
		Headers:    make(map[string]string, len(resp.Header)),
	}
	for k, v := range resp.Header {
		if strings.EqualFold(k, "Set-Cookie") {
			out.Cookies = append(out.Cookies, v...)
			continue
		}
		out.Headers[k] = strings.Join(v, ", ")
	}

	if utf8.Valid(buf.Bytes()) {
		out.Body = buf.String()
	} else {
		out.Body = base64.StdEncoding.EncodeToString(buf.Bytes())
		out.IsBase64Encoded = true
	}
	return out
}
