package apiclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samvad-hq/tvapi/pkg/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeResponse lets us stub the httpclient.Response interface.
type fakeResponse struct {
	body       []byte
	statusCode int
	header     http.Header
}

func (f fakeResponse) Body() []byte        { return f.body }
func (f fakeResponse) StatusCode() int     { return f.statusCode }
func (f fakeResponse) Header() http.Header { return f.header }

// fakeHTTPClient records every request and replies with a canned response or error.
type fakeHTTPClient struct {
	resp  fakeResponse
	err   error
	calls []*httpclient.Request
}

func (f *fakeHTTPClient) Do(_ context.Context, req *httpclient.Request) (httpclient.Response, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func jsonResponse(body string) fakeResponse {
	return fakeResponse{
		body:       []byte(body),
		statusCode: http.StatusOK,
		header:     http.Header{"Content-Type": []string{"application/json; charset=utf-8"}},
	}
}

// recordingLogger counts error lines.
type recordingLogger struct {
	noopLogger
	errors []string
}

func (r *recordingLogger) ErrorObj(msg, _ string, _ interface{}) {
	r.errors = append(r.errors, msg)
}

func TestRequestComposesURLMethodAndDefaultHeaders(t *testing.T) {
	client := &fakeHTTPClient{resp: jsonResponse(`[]`)}
	svc := New("https://api.example.com", WithHTTPClient(client))

	_, err := svc.Request(context.Background(), "/items", RequestOptions{})
	require.NoError(t, err)
	require.Len(t, client.calls, 1)

	call := client.calls[0]
	assert.Equal(t, "https://api.example.com/items", call.URL)
	assert.Equal(t, http.MethodGet, call.Method)
	assert.Equal(t, map[string]string{"Content-Type": "application/json"}, call.Headers)
	assert.Nil(t, call.Body)
}

func TestRequestDoesNotNormalizeSlashes(t *testing.T) {
	client := &fakeHTTPClient{resp: jsonResponse(`{}`)}
	svc := New("https://api.example.com/", WithHTTPClient(client))

	_, err := svc.Get(context.Background(), "/items", RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com//items", client.calls[0].URL)
}

func TestRequestMergesHeaders(t *testing.T) {
	client := &fakeHTTPClient{resp: jsonResponse(`{}`)}
	svc := New("", WithHTTPClient(client))

	_, err := svc.Get(context.Background(), "/a", RequestOptions{
		Headers: map[string]string{"Authorization": "Bearer x"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer x",
	}, client.calls[0].Headers)

	_, err = svc.Get(context.Background(), "/a", RequestOptions{
		Headers: map[string]string{"content-type": "text/plain"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Content-Type": "text/plain"}, client.calls[1].Headers)
}

func TestRequestPassesMethodBodyAndCookies(t *testing.T) {
	client := &fakeHTTPClient{resp: jsonResponse(`{}`)}
	svc := New("", WithHTTPClient(client))
	cookie := &http.Cookie{Name: "sid", Value: "1"}

	_, err := svc.Request(context.Background(), "/a", RequestOptions{
		Method:  "patch",
		Body:    "raw",
		Cookies: []*http.Cookie{cookie},
	})
	require.NoError(t, err)

	call := client.calls[0]
	assert.Equal(t, http.MethodPatch, call.Method)
	assert.Equal(t, "raw", string(call.Body))
	assert.Equal(t, []*http.Cookie{cookie}, call.Cookies)
}

func TestRequestParsesJSONByContentType(t *testing.T) {
	client := &fakeHTTPClient{resp: jsonResponse(`{"id":1,"tags":["a"]}`)}
	svc := New("", WithHTTPClient(client))

	resp, err := svc.Get(context.Background(), "/a", RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, KindJSON, resp.Kind)
	assert.Equal(t, map[string]any{"id": float64(1), "tags": []any{"a"}}, resp.JSON)
	assert.Equal(t, resp.JSON, resp.Value())

	var typed struct {
		ID int `json:"id"`
	}
	require.NoError(t, resp.Decode(&typed))
	assert.Equal(t, 1, typed.ID)
}

func TestRequestContentTypeMatchIsCaseInsensitive(t *testing.T) {
	resp := jsonResponse(`{"ok":true}`)
	resp.header = http.Header{"Content-Type": []string{"Application/JSON"}}
	svc := New("", WithHTTPClient(&fakeHTTPClient{resp: resp}))

	out, err := svc.Get(context.Background(), "/a", RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, KindJSON, out.Kind)
}

func TestRequestReturnsTextForOtherContentTypes(t *testing.T) {
	cases := map[string]http.Header{
		"missing":   nil,
		"html":      {"Content-Type": []string{"text/html"}},
		"plaintext": {"Content-Type": []string{"text/plain"}},
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			client := &fakeHTTPClient{resp: fakeResponse{
				body:       []byte(`{"looks":"like json"}`),
				statusCode: http.StatusOK,
				header:     header,
			}}
			svc := New("", WithHTTPClient(client))

			resp, err := svc.Get(context.Background(), "/a", RequestOptions{})
			require.NoError(t, err)
			assert.Equal(t, KindText, resp.Kind)
			assert.Equal(t, `{"looks":"like json"}`, resp.Text)
			assert.Nil(t, resp.JSON)
		})
	}
}

func TestRequestWrapsStatusError(t *testing.T) {
	log := &recordingLogger{}
	client := &fakeHTTPClient{resp: jsonResponse(`{"error":"x"}`)}
	client.resp.statusCode = http.StatusNotFound
	svc := New("", WithHTTPClient(client), WithLogger(log))

	resp, err := svc.Get(context.Background(), "/ok", RequestOptions{})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, "API request failed: HTTP error! status: 404", err.Error())

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	code, ok := StatusCode(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusNotFound, code)
	assert.True(t, IsStatusError(err))
	assert.Len(t, log.errors, 1)
}

func TestRequestWrapsTransportError(t *testing.T) {
	log := &recordingLogger{}
	cause := errors.New("dial tcp: connection refused")
	svc := New("", WithHTTPClient(&fakeHTTPClient{err: cause}), WithLogger(log))

	_, err := svc.Delete(context.Background(), "/a", RequestOptions{})
	require.Error(t, err)
	assert.Equal(t, "API request failed: dial tcp: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsStatusError(err))
	assert.Len(t, log.errors, 1)
}

func TestRequestWrapsParseError(t *testing.T) {
	log := &recordingLogger{}
	svc := New("", WithHTTPClient(&fakeHTTPClient{resp: jsonResponse(`{not json`)}), WithLogger(log))

	_, err := svc.Get(context.Background(), "/a", RequestOptions{})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), requestFailedPrefix))
	assert.Len(t, log.errors, 1)
}

func TestRequestEmptyJSONBodyIsParseError(t *testing.T) {
	log := &recordingLogger{}
	svc := New("", WithHTTPClient(&fakeHTTPClient{resp: jsonResponse(``)}), WithLogger(log))

	resp, err := svc.Get(context.Background(), "/a", RequestOptions{})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, strings.HasPrefix(err.Error(), requestFailedPrefix))
	assert.False(t, IsStatusError(err))
	assert.Len(t, log.errors, 1)
}

func TestRequestRejectsBodyOnGetAndHead(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	for _, method := range []string{"", http.MethodGet, http.MethodHead} {
		t.Run("method="+method, func(t *testing.T) {
			log := &recordingLogger{}
			svc := New(srv.URL, WithLogger(log))

			_, err := svc.Request(context.Background(), "/a", RequestOptions{Method: method, Body: "payload"})
			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), requestFailedPrefix))
			assert.Contains(t, err.Error(), "cannot have body")
			assert.Len(t, log.errors, 1)
		})
	}
	assert.Zero(t, hits)
}

func TestRequestSendsBodyOnOtherMethods(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	svc := New(srv.URL)
	resp, err := svc.Request(context.Background(), "/a", RequestOptions{Method: http.MethodDelete, Body: "payload"})
	require.NoError(t, err)
	assert.Equal(t, KindText, resp.Kind)
	assert.Equal(t, "payload", gotBody)
}

func TestPostAndPutSerializeData(t *testing.T) {
	for _, method := range []string{http.MethodPost, http.MethodPut} {
		t.Run(method, func(t *testing.T) {
			client := &fakeHTTPClient{resp: jsonResponse(`{}`)}
			svc := New("https://api.example.com", WithHTTPClient(client))

			data := map[string]string{"name": "a"}
			var err error
			if method == http.MethodPost {
				_, err = svc.Post(context.Background(), "/items", data, RequestOptions{Method: http.MethodGet})
			} else {
				_, err = svc.Put(context.Background(), "/items", data, RequestOptions{})
			}
			require.NoError(t, err)

			call := client.calls[0]
			assert.Equal(t, method, call.Method)
			assert.Equal(t, "https://api.example.com/items", call.URL)
			assert.JSONEq(t, `{"name":"a"}`, string(call.Body))
			assert.Equal(t, "application/json", call.Headers["Content-Type"])
		})
	}
}

func TestPostWithoutDataKeepsOptionBody(t *testing.T) {
	client := &fakeHTTPClient{resp: jsonResponse(`{}`)}
	svc := New("", WithHTTPClient(client))

	_, err := svc.Post(context.Background(), "/items", nil, RequestOptions{Body: "preset"})
	require.NoError(t, err)
	assert.Equal(t, "preset", string(client.calls[0].Body))

	_, err = svc.Put(context.Background(), "/items", nil, RequestOptions{})
	require.NoError(t, err)
	assert.Nil(t, client.calls[1].Body)
}

func TestPostRejectsUnencodableData(t *testing.T) {
	client := &fakeHTTPClient{resp: jsonResponse(`{}`)}
	svc := New("", WithHTTPClient(client))

	_, err := svc.Post(context.Background(), "/items", make(chan int), RequestOptions{})
	require.Error(t, err)
	assert.Empty(t, client.calls)
}

func TestGetAndDeleteForceMethod(t *testing.T) {
	client := &fakeHTTPClient{resp: jsonResponse(`{}`)}
	svc := New("", WithHTTPClient(client))

	_, err := svc.Get(context.Background(), "/a", RequestOptions{Method: http.MethodPost})
	require.NoError(t, err)
	_, err = svc.Delete(context.Background(), "/a", RequestOptions{Method: http.MethodPost})
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, client.calls[0].Method)
	assert.Equal(t, http.MethodDelete, client.calls[1].Method)
}

func TestFetchJSONBypassesBaseURLAndDefaults(t *testing.T) {
	client := &fakeHTTPClient{resp: fakeResponse{body: []byte(`[1,2]`), statusCode: http.StatusOK}}
	svc := New("https://api.example.com", WithHTTPClient(client))

	out, err := svc.FetchJSON(context.Background(), "http://x/ok")
	require.NoError(t, err)
	assert.Equal(t, []any{float64(1), float64(2)}, out)

	call := client.calls[0]
	assert.Equal(t, "http://x/ok", call.URL)
	assert.Equal(t, http.MethodGet, call.Method)
	assert.Empty(t, call.Headers)
}

func TestFetchJSONReturnsOriginalError(t *testing.T) {
	log := &recordingLogger{}
	client := &fakeHTTPClient{resp: fakeResponse{statusCode: http.StatusInternalServerError}}
	svc := New("", WithHTTPClient(client), WithLogger(log))

	_, err := svc.FetchJSON(context.Background(), "http://x/ok")
	require.Error(t, err)
	assert.Equal(t, "HTTP error! status: 500", err.Error())

	statusErr, ok := err.(*StatusError)
	require.True(t, ok, "expected unwrapped *StatusError, got %T", err)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, []string{"Failed to fetch JSON"}, log.errors)

	_, err = svc.Request(context.Background(), "http://x/ok", RequestOptions{})
	require.Error(t, err)
	assert.Equal(t, "API request failed: HTTP error! status: 500", err.Error())
}

func TestFetchJSONParseErrorIsUnwrapped(t *testing.T) {
	client := &fakeHTTPClient{resp: fakeResponse{body: []byte("<html>"), statusCode: http.StatusOK}}
	svc := New("", WithHTTPClient(client))

	_, err := svc.FetchJSON(context.Background(), "http://x/ok")
	require.Error(t, err)
	assert.False(t, strings.HasPrefix(err.Error(), requestFailedPrefix))
}

func TestFetchText(t *testing.T) {
	log := &recordingLogger{}
	cause := errors.New("boom")
	client := &fakeHTTPClient{resp: jsonResponse(`{"a":1}`)}
	svc := New("", WithHTTPClient(client), WithLogger(log))

	text, err := svc.FetchText(context.Background(), "http://x/ok")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, text)

	client.err = cause
	_, err = svc.FetchText(context.Background(), "http://x/ok")
	assert.Same(t, cause, err)
	assert.Equal(t, []string{"Failed to fetch text"}, log.errors)
}

func TestMetricsRecordOutcomes(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	client := &fakeHTTPClient{resp: jsonResponse(`{}`)}
	svc := New("", WithHTTPClient(client), WithMetrics(m))

	_, err := svc.Get(context.Background(), "/a", RequestOptions{})
	require.NoError(t, err)
	client.resp.statusCode = http.StatusBadGateway
	_, err = svc.Get(context.Background(), "/a", RequestOptions{})
	require.Error(t, err)
	_, err = svc.FetchText(context.Background(), "http://x")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues(opRequest, http.MethodGet, outcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues(opRequest, http.MethodGet, outcomeStatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues(opFetchText, http.MethodGet, outcomeStatusError)))
}

func TestServiceAgainstHTTPServer(t *testing.T) {
	var gotContentType, gotBody, gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":7,"name":"a"}`))
	}))
	defer srv.Close()

	svc := New(srv.URL)
	resp, err := svc.Post(context.Background(), "/items", map[string]string{"name": "a"}, RequestOptions{})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/items", gotPath)
	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, `{"name":"a"}`, gotBody)
	assert.Equal(t, KindJSON, resp.Kind)
	assert.Equal(t, map[string]any{"id": float64(7), "name": "a"}, resp.JSON)
}

func TestDefaultHeadersOption(t *testing.T) {
	svc := New("", WithDefaultHeader("accept", "application/json"))
	assert.Equal(t, map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}, svc.DefaultHeaders())
}

func TestServiceConcurrentCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"caller":"` + r.Header.Get("X-Caller") + `"}`))
	}))
	defer srv.Close()

	svc := New(srv.URL, WithMetrics(NewMetrics(prometheus.NewRegistry())))

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers*2)
	for i := 0; i < workers; i++ {
		caller := strings.Repeat("c", i+1)
		wg.Add(2)
		go func() {
			defer wg.Done()
			resp, err := svc.Get(context.Background(), "/items", RequestOptions{
				Headers: map[string]string{"X-Caller": caller},
			})
			if err != nil {
				errs <- err
				return
			}
			if got := resp.JSON.(map[string]any)["caller"]; got != caller {
				errs <- fmt.Errorf("caller %q got response for %v", caller, got)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := svc.FetchJSON(context.Background(), srv.URL+"/items"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, map[string]string{"Content-Type": "application/json"}, svc.DefaultHeaders())
}
