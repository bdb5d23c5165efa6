package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iurnickita/foodorder/internal/token"
	"github.com/iurnickita/foodorder/internal/token/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenCmd(t *testing.T) {
	out, err := execute(t, "token", "--user", "12", "--role", token.RoleAdmin, "--secret", "secret")
	require.NoError(t, err)

	claims, err := token.NewToken(config.Config{SecretKey: "secret"}).GetClaims(strings.TrimSpace(out))
	require.NoError(t, err)
	require.Equal(t, int64(12), claims.UserID)
	require.Equal(t, token.RoleAdmin, claims.Role)
}

func TestTokenCmdNoSecret(t *testing.T) {
	t.Setenv("FOODORDER_TOKEN_SECRET", "")
	_, err := execute(t, "token", "--user", "12")
	require.Error(t, err)
}

func TestSettleCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/user/payments", r.URL.Path)
		require.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "9.99", req["amount"])
		require.EqualValues(t, 4, req["order_id"])

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success":true,"data":{"id":1,"order_id":4,"amount":"9.99"}}`))
	}))
	defer srv.Close()

	out, err := execute(t, "settle", "4", "--type", "2", "--amount", "9.99", "--addr", srv.URL, "--token", "user-token")
	require.NoError(t, err)
	require.Contains(t, out, `"amount": "9.99"`)
}

func TestBalanceCmdBadID(t *testing.T) {
	_, err := execute(t, "balance", "abc")
	require.Error(t, err)
}
