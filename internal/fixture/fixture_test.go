package fixture

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, srv *httptest.Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHandlerVariants(t *testing.T) {
	srv := httptest.NewServer(Handler(nil))
	defer srv.Close()

	tests := []struct {
		path       string
		wantBill   bool
		wantMarker bool
	}{
		{PathComplete, true, true},
		{PathNoReceipt, true, false},
		{PathNoBill, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			code, body := get(t, srv, tt.path)
			require.Equal(t, http.StatusOK, code)

			assert.Contains(t, body, "<span>Add to Order</span>")
			assert.Contains(t, body, "Checkout &amp; Print")
			assert.Contains(t, body, "window.print()")
			assert.Equal(t, tt.wantBill, strings.Contains(body, `id="printable-bill"`))
			assert.Equal(t, tt.wantMarker, strings.Contains(body, "RECEIPT"))
		})
	}
}

func TestHandlerHealthAndUnknown(t *testing.T) {
	srv := httptest.NewServer(Handler(nil))
	defer srv.Close()

	code, _ := get(t, srv, "/healthz")
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = get(t, srv, "/menu")
	assert.Equal(t, http.StatusNotFound, code)
}
