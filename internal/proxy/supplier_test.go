package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewProxySupplier_Empty(t *testing.T) {
	s := NewProxySupplier(context.Background(), nil, "http://apteka.test/")

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, "", s.Get())
}

func TestNewProxySupplier_DropsBrokenProxies(t *testing.T) {
	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer working.Close()

	refusing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer refusing.Close()

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	s := NewProxySupplier(context.Background(), []string{deadURL, working.URL, refusing.URL}, "http://apteka.test/api/catalog/search")

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, working.URL, s.Get())
	assert.Equal(t, working.URL, s.Get())
}

func TestProxySupplier_RoundRobin(t *testing.T) {
	s := &proxySupplier{proxies: []string{"http://a:1", "http://b:2", "http://c:3"}}

	got := make([]string, 0, 5)
	for range 5 {
		got = append(got, s.Get())
	}

	assert.Equal(t, []string{"http://a:1", "http://b:2", "http://c:3", "http://a:1", "http://b:2"}, got)
}
