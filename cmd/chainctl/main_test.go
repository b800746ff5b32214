package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/invorya-verifactu/pkg/jwt"
)

func TestRun_ErroresDeUso(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"comando desconocido", []string{"borrar"}, "comando desconocido"},
		{"verify sin tenant", []string{"verify"}, "requiere --tenant"},
		{"token sin tenant", []string{"token", "--user", "u1"}, "requiere --tenant"},
		{"flag desconocido", []string{"verify", "--tenat", "t1"}, "tenat"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := run(tc.args, &bytes.Buffer{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRun_SinComandoMuestraAyuda(t *testing.T) {
	assert.NoError(t, run(nil, &bytes.Buffer{}))
	assert.NoError(t, run([]string{"-h"}, &bytes.Buffer{}))
}

func TestRun_TokenFirmaConLaConfiguracion(t *testing.T) {
	t.Setenv("JWT_SECRET", "secreto-chainctl")
	t.Setenv("JWT_ISSUER", "chainctl-test")

	var out bytes.Buffer
	require.NoError(t, run([]string{"token", "--tenant", "t1", "--user", "u1", "--role", "auditor"}, &out))

	id, err := jwt.Verify("secreto-chainctl", strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, jwt.Identity{UserID: "u1", TenantID: "t1", Role: "auditor"}, id)
}

func TestRun_TokenRechazaRolDesconocido(t *testing.T) {
	t.Setenv("JWT_SECRET", "secreto-chainctl")

	err := run([]string{"token", "--tenant", "t1", "--user", "u1", "--role", "vendedor"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rol desconocido")
}

func TestExitError_LlevaCodigo(t *testing.T) {
	err := &exitError{code: 2, msg: "cadena inválida: 1 discrepancias"}
	assert.Equal(t, 2, err.ExitCode())
	assert.Equal(t, "cadena inválida: 1 discrepancias", err.Error())
}
