package core

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFromEmail(t *testing.T) {
	got := parseFromEmail("Presencia <noreply@presencia.edu.bo>")
	assert.Equal(t, mail.Address{Name: "Presencia", Address: "noreply@presencia.edu.bo"}, got)

	got = parseFromEmail("noreply@localhost")
	assert.Equal(t, mail.Address{Address: "noreply@localhost"}, got)

	// unparsable strings are kept as a bare address rather than dropped
	got = parseFromEmail("not an address")
	assert.Equal(t, "not an address", got.Address)
}

func TestNewConfig_DefaultFromEmail(t *testing.T) {
	conf := NewConfig(t.TempDir())
	require.NotNil(t, conf)
	assert.Equal(t, mail.Address{Address: "noreply@localhost"}, conf.DefaultFromEmail)
}
