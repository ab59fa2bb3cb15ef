package indexmerge

import (
	"bytes"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const releaseBody = `Origin: Example
Label: Example
Suite: stable
Codename: bookworm
Version: 12.0
Architectures: amd64
Components: main
`

func testSigner(t *testing.T) *openpgp.Entity {
	t.Helper()
	entity, err := openpgp.NewEntity("Example Archive", "", "archive@example.test", nil)
	require.NoError(t, err)
	return entity
}

func clearsignBody(t *testing.T, signer *openpgp.Entity, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := clearsign.Encode(&buf, signer.PrivateKey, nil)
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestVerifyInReleaseTrustedWithMatchingKeyring(t *testing.T) {
	signer := testSigner(t)
	signed := clearsignBody(t, signer, releaseBody)

	decision, err := VerifyInRelease(bytes.NewReader(signed), openpgp.EntityList{signer})
	require.NoError(t, err)
	assert.True(t, decision.Trusted)
	assert.Equal(t, releaseBody, string(decision.Body))
}

func TestVerifyInReleaseUntrustedWithEmptyKeyring(t *testing.T) {
	signer := testSigner(t)
	signed := clearsignBody(t, signer, releaseBody)

	decision, err := VerifyInRelease(bytes.NewReader(signed), nil)
	require.NoError(t, err)
	assert.False(t, decision.Trusted)
	assert.Equal(t, releaseBody, string(decision.Body))
}

func TestVerifyInReleaseRejectsWrongKeyring(t *testing.T) {
	signer := testSigner(t)
	other := testSigner(t)
	signed := clearsignBody(t, signer, releaseBody)

	decision, err := VerifyInRelease(bytes.NewReader(signed), openpgp.EntityList{other})
	assert.Error(t, err)
	assert.False(t, decision.Trusted)
}

func TestVerifyDetachedTrusted(t *testing.T) {
	signer := testSigner(t)
	var sig bytes.Buffer
	require.NoError(t, openpgp.ArmoredDetachSign(&sig, signer, bytes.NewReader([]byte(releaseBody)), nil))

	decision, err := VerifyDetached(bytes.NewReader([]byte(releaseBody)), bytes.NewReader(sig.Bytes()), openpgp.EntityList{signer})
	require.NoError(t, err)
	assert.True(t, decision.Trusted)
	assert.Equal(t, releaseBody, string(decision.Body))
}

func TestRegisterReleaseFromTrustedBody(t *testing.T) {
	gen := newTestGenerator()
	id, err := RegisterRelease(gen, "http://example.test/debian", "Release", []byte(releaseBody), true)
	require.NoError(t, err)
	require.NotZero(t, id)

	rel := gen.Cache.RelFile(id)
	assert.True(t, rel.Trusted)
}
