package indexmerge

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"
)

// TrustDecision is the outcome of verifying one Release/InRelease file
// against a keyring, per §6 "Sources list" Signed-By/Trusted options.
type TrustDecision struct {
	Trusted bool
	Signer  *openpgp.Entity
	// Body is the clearsigned payload with the signature stripped, ready
	// to hand to control.NewDecoder for stanza parsing.
	Body []byte
}

// VerifyInRelease checks an InRelease file's clearsign signature against
// keyring. An empty keyring means "no keys configured for this source":
// the file parses but TrustDecision.Trusted is false, matching the
// unsigned/untrusted-repository warning path rather than a hard failure,
// since a caller may still proceed with an explicit --allow-unauthenticated
// override (out of scope here; the decision is only reported).
func VerifyInRelease(r io.Reader, keyring openpgp.EntityList) (TrustDecision, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return TrustDecision{}, fmt.Errorf("indexmerge: reading InRelease: %w", err)
	}

	block, _ := clearsign.Decode(data)
	if block == nil {
		return TrustDecision{}, errors.New("indexmerge: not a valid clearsigned InRelease file")
	}

	if len(keyring) == 0 {
		return TrustDecision{Trusted: false, Body: block.Bytes}, nil
	}

	signer, err := openpgp.CheckDetachedSignature(keyring, bytes.NewReader(block.Bytes), block.ArmoredSignature.Body, nil)
	if err != nil {
		return TrustDecision{Trusted: false, Body: block.Bytes}, fmt.Errorf("indexmerge: signature check: %w", err)
	}
	return TrustDecision{Trusted: true, Signer: signer, Body: block.Bytes}, nil
}

// VerifyDetached checks a bare Release file against a detached Release.gpg
// signature, the pre-InRelease two-file form §6 still documents as a
// fallback for older clients.
func VerifyDetached(release, signature io.Reader, keyring openpgp.EntityList) (TrustDecision, error) {
	data, err := io.ReadAll(release)
	if err != nil {
		return TrustDecision{}, fmt.Errorf("indexmerge: reading Release: %w", err)
	}
	if len(keyring) == 0 {
		return TrustDecision{Trusted: false, Body: data}, nil
	}
	signer, err := openpgp.CheckDetachedSignature(keyring, bytes.NewReader(data), signature, nil)
	if err != nil {
		return TrustDecision{Trusted: false, Body: data}, fmt.Errorf("indexmerge: signature check: %w", err)
	}
	return TrustDecision{Trusted: true, Signer: signer, Body: data}, nil
}

// LoadKeyring reads an armored public keyring from r, the parsed form of a
// source's Signed-By option (a path to a keyring file).
func LoadKeyring(r io.Reader) (openpgp.EntityList, error) {
	return openpgp.ReadArmoredKeyRing(r)
}
