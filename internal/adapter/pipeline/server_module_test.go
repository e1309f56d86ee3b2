package pipeline

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/thushan/gateway/internal/core/domain"
)

type fakeDoer struct {
	responses []*http.Response
	errs      []error
	calls     int
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i], nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func newTestRequestContext() *domain.RequestContext {
	rc := domain.NewRequestContext()
	rc.ProtocolConfig.Endpoint = "http://upstream.test/v1/chat/completions"
	rc.ProtocolConfig.APIKey = "k1"
	rc.Metadata = xsync.NewMap[string, interface{}]()
	return rc
}

func TestServerModule_SuccessPassthroughChoices(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{
		jsonResponse(200, `{"choices":[{"message":{"role":"assistant","content":"hi"}}]}`),
	}}
	m := newServerModule(doer, 3)
	rc := newTestRequestContext()

	out, err := m.Process(context.Background(), rc, map[string]interface{}{
		"model":    "m",
		"messages": []interface{}{},
	})
	require.NoError(t, err)
	assert.NotNil(t, out["choices"])
}

func TestServerModule_NormalizesBareContent(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{
		jsonResponse(200, `{"content":"plain text reply"}`),
	}}
	m := newServerModule(doer, 1)
	rc := newTestRequestContext()

	out, err := m.Process(context.Background(), rc, map[string]interface{}{"model": "m", "messages": []interface{}{}})
	require.NoError(t, err)

	choices := out["choices"].([]interface{})
	require.Len(t, choices, 1)
	message := choices[0].(map[string]interface{})["message"].(map[string]interface{})
	assert.Equal(t, "plain text reply", message["content"])
}

func TestServerModule_ClassifiesAuthError(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{jsonResponse(401, `{"error":"unauthorized"}`)}}
	m := newServerModule(doer, 3)
	rc := newTestRequestContext()

	_, err := m.Process(context.Background(), rc, map[string]interface{}{"model": "m", "messages": []interface{}{}})
	require.Error(t, err)
	serverErr, ok := err.(*domain.ServerError)
	require.True(t, ok)
	assert.Equal(t, domain.ErrorClassAuthentication, serverErr.Class)
	assert.Equal(t, 1, doer.calls, "auth errors must not be retried")
}

func TestServerModule_RetriesRecoverableThenSucceeds(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{
		jsonResponse(500, `{"error":"boom"}`),
		jsonResponse(500, `{"error":"boom"}`),
		jsonResponse(200, `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`),
	}}
	m := newServerModule(doer, 3)
	m.policy.Start = 0
	rc := newTestRequestContext()

	out, err := m.Process(context.Background(), rc, map[string]interface{}{"model": "m", "messages": []interface{}{}})
	require.NoError(t, err)
	assert.NotNil(t, out["choices"])
	assert.Equal(t, 3, doer.calls)
}

func TestServerModule_ExhaustsRetriesAndSurfaces(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{
		jsonResponse(500, `{}`), jsonResponse(500, `{}`), jsonResponse(500, `{}`),
	}}
	m := newServerModule(doer, 3)
	m.policy.Start = 0
	rc := newTestRequestContext()

	_, err := m.Process(context.Background(), rc, map[string]interface{}{"model": "m", "messages": []interface{}{}})
	require.Error(t, err)
	assert.Equal(t, 3, doer.calls)
}

func TestParseWithSalvage_BalancesBraces(t *testing.T) {
	raw := []byte(`{"choices":[{"message":{"role":"assistant","content":"hi"}}`)
	parsed, err := parseWithSalvage(raw)
	require.NoError(t, err)
	assert.NotNil(t, parsed["choices"])
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, domain.ErrorClassAuthentication, classifyStatus(401))
	assert.Equal(t, domain.ErrorClassAuthentication, classifyStatus(403))
	assert.Equal(t, domain.ErrorClassRateLimit, classifyStatus(429))
	assert.Equal(t, domain.ErrorClassNetwork, classifyStatus(408))
	assert.Equal(t, domain.ErrorClassNetwork, classifyStatus(504))
	assert.Equal(t, domain.ErrorClassRecoverable, classifyStatus(503))
	assert.Equal(t, domain.ErrorClassUnrecoverable, classifyStatus(400))
}

func TestBuildRequestBody_DefaultsTemperatureAndDropsEmptyTools(t *testing.T) {
	body := buildRequestBody(map[string]interface{}{
		"model":    "m",
		"messages": []interface{}{},
		"tools":    []interface{}{},
	})
	assert.Equal(t, 0.7, body["temperature"])
	assert.Equal(t, false, body["stream"])
	_, hasTools := body["tools"]
	assert.False(t, hasTools)
}
